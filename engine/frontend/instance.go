package frontend

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

// createInstance loads the Vulkan entry points through procAddr and creates
// an instance with the extensions the window needs.
func createInstance(procAddr unsafe.Pointer, appName string, windowExtensions []string, validation bool) (vk.Instance, vk.DebugReportCallback, error) {
	if procAddr == nil {
		return nil, vk.NullDebugReportCallback, errors.New("GetInstanceProcAddr is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, vk.NullDebugReportCallback, errors.Wrap(err, "vulkan loader init")
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   vulkan.VulkanSafeString(appName),
		PEngineName:        vulkan.VulkanSafeString("volcano frontend"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := append([]string{}, windowExtensions...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if !layerAvailable(validationLayerName) {
			return nil, vk.NullDebugReportCallback, errors.Newf("required validation layer is missing: %s", validationLayerName)
		}
		layers = append(layers, validationLayerName)
		core.LogInfo("Validation layers enabled.")
	}
	for _, e := range extensions {
		core.LogDebug("Required extension: %s", e)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = vulkan.VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = vulkan.VulkanSafeStrings(layers)

	var instance vk.Instance
	if err := vulkan.VulkanError(vk.CreateInstance(&createInfo, nil, &instance), "vkCreateInstance"); err != nil {
		core.LogError(err.Error())
		return nil, vk.NullDebugReportCallback, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, vk.NullDebugReportCallback, errors.Wrap(err, "vulkan instance init")
	}
	core.LogInfo("Vulkan Instance created.")

	if !validation {
		return instance, vk.NullDebugReportCallback, nil
	}

	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugReport,
	}
	var callback vk.DebugReportCallback
	if err := vk.Error(vk.CreateDebugReportCallback(instance, &debugCreateInfo, nil, &callback)); err != nil {
		vk.DestroyInstance(instance, nil)
		core.LogError("vk.CreateDebugReportCallback failed with %s", err)
		return nil, vk.NullDebugReportCallback, errors.Wrap(err, "create debug report callback")
	}
	core.LogDebug("Vulkan debugger created.")
	return instance, callback, nil
}

func layerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		end := vulkan.FindFirstZeroInByteArray(layers[i].LayerName[:])
		if string(layers[i].LayerName[:end]) == name {
			return true
		}
	}
	return false
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.False
}
