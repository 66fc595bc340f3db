package frontend

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
)

type physicalDeviceChoice struct {
	handle      vk.PhysicalDevice
	name        string
	queueFamily uint32
	// portability is set when the device exposes VK_KHR_portability_subset,
	// which must then be enabled.
	portability bool
}

// selectPhysicalDevice returns the first device with a queue family that
// does graphics and transfer and, with a surface, can present. Discrete
// GPUs are preferred.
func selectPhysicalDevice(instance vk.Instance, surface vk.Surface) (*physicalDeviceChoice, error) {
	var count uint32
	if err := vulkan.VulkanError(vk.EnumeratePhysicalDevices(instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, errors.New("no devices which support Vulkan were found")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := vulkan.VulkanError(vk.EnumeratePhysicalDevices(instance, &count, devices), "vkEnumeratePhysicalDevices"); err != nil {
		return nil, err
	}

	var chosen *physicalDeviceChoice
	for _, device := range devices {
		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(device, &properties)
		properties.Deref()
		name := vk.ToString(properties.DeviceName[:])

		family, ok := graphicsQueueFamily(device, surface)
		if !ok {
			core.LogInfo("Device '%s' has no suitable queue family, skipping.", name)
			continue
		}
		extensions := deviceExtensions(device)
		if surface != vk.NullSurface && !extensions[vk.KhrSwapchainExtensionName] {
			core.LogInfo("Device '%s' cannot present, skipping.", name)
			continue
		}

		candidate := &physicalDeviceChoice{
			handle:      device,
			name:        name,
			queueFamily: family,
			portability: extensions["VK_KHR_portability_subset"],
		}
		if properties.DeviceType == vk.PhysicalDeviceTypeDiscreteGpu {
			chosen = candidate
			break
		}
		if chosen == nil {
			chosen = candidate
		}
	}
	if chosen == nil {
		return nil, errors.New("no physical devices were found which meet the requirements")
	}
	core.LogInfo("Selected device: '%s', queue family %d.", chosen.name, chosen.queueFamily)
	return chosen, nil
}

func graphicsQueueFamily(device vk.PhysicalDevice, surface vk.Surface) (uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	required := vk.QueueFlags(vk.QueueGraphicsBit)
	for i := range families {
		families[i].Deref()
		if families[i].QueueFlags&required != required {
			continue
		}
		if surface != vk.NullSurface {
			var supportsPresent vk.Bool32
			if res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &supportsPresent); res != vk.Success {
				continue
			}
			if supportsPresent != vk.True {
				continue
			}
		}
		// Graphics queues always support transfer.
		return uint32(i), true
	}
	return 0, false
}

func deviceExtensions(device vk.PhysicalDevice) map[string]bool {
	var count uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil); res != vk.Success {
		return nil
	}
	available := make([]vk.ExtensionProperties, count)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &count, available); res != vk.Success {
		return nil
	}
	names := make(map[string]bool, count)
	for i := range available {
		available[i].Deref()
		end := vulkan.FindFirstZeroInByteArray(available[i].ExtensionName[:])
		names[string(available[i].ExtensionName[:end])] = true
	}
	return names
}

// createLogicalDevice creates a device with a single queue on the chosen
// family.
func createLogicalDevice(choice *physicalDeviceChoice, swapchain bool) (vk.Device, vk.Queue, error) {
	queueCreateInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: choice.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}

	var extensionNames []string
	if swapchain {
		extensionNames = append(extensionNames, vk.KhrSwapchainExtensionName)
	}
	if choice.portability {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{{}},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: vulkan.VulkanSafeStrings(extensionNames),
	}

	var device vk.Device
	if err := vulkan.VulkanError(vk.CreateDevice(choice.handle, &deviceCreateInfo, nil, &device), "vkCreateDevice"); err != nil {
		return nil, nil, err
	}
	core.LogInfo("Logical device created.")

	var queue vk.Queue
	vk.GetDeviceQueue(device, choice.queueFamily, 0, &queue)
	core.LogInfo("Queue obtained.")
	return device, queue, nil
}
