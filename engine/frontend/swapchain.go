package frontend

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
)

// errSwapchainOutOfDate asks the caller to recreate the swapchain and skip
// the frame.
var errSwapchainOutOfDate = errors.New("swapchain out of date")

type swapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	Images      []vk.Image

	device         vk.Device
	physicalDevice vk.PhysicalDevice
	surface        vk.Surface
}

func newSwapchain(physicalDevice vk.PhysicalDevice, device vk.Device, surface vk.Surface, width, height uint32) (*swapchain, error) {
	sc := &swapchain{
		device:         device,
		physicalDevice: physicalDevice,
		surface:        surface,
	}
	if err := sc.create(width, height, vk.NullSwapchain); err != nil {
		return nil, err
	}
	return sc, nil
}

func (sc *swapchain) create(width, height uint32, old vk.Swapchain) error {
	var capabilities vk.SurfaceCapabilities
	if err := vulkan.VulkanError(vk.GetPhysicalDeviceSurfaceCapabilities(sc.physicalDevice, sc.surface, &capabilities), "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return err
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()

	format, err := sc.chooseFormat()
	if err != nil {
		return err
	}
	sc.ImageFormat = format

	extent := vk.Extent2D{Width: width, Height: height}
	if capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = capabilities.CurrentExtent
	}
	// Clamp to the value allowed by the GPU.
	extent.Width = clamp(extent.Width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width)
	extent.Height = clamp(extent.Height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height)
	sc.Extent = extent

	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          sc.surface,
		MinImageCount:    imageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	var handle vk.Swapchain
	if err := vulkan.VulkanError(vk.CreateSwapchain(sc.device, &createInfo, nil, &handle), "vkCreateSwapchainKHR"); err != nil {
		core.LogError(err.Error())
		return err
	}
	sc.Handle = handle

	var count uint32
	if err := vulkan.VulkanError(vk.GetSwapchainImages(sc.device, handle, &count, nil), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}
	sc.Images = make([]vk.Image, count)
	if err := vulkan.VulkanError(vk.GetSwapchainImages(sc.device, handle, &count, sc.Images), "vkGetSwapchainImagesKHR"); err != nil {
		return err
	}

	core.LogInfo("Swapchain created: %d images of %dx%d.", count, extent.Width, extent.Height)
	return nil
}

// chooseFormat prefers an sRGB-nonlinear BGRA8 surface and falls back to
// the first reported format.
func (sc *swapchain) chooseFormat() (vk.SurfaceFormat, error) {
	var count uint32
	if err := vulkan.VulkanError(vk.GetPhysicalDeviceSurfaceFormats(sc.physicalDevice, sc.surface, &count, nil), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return vk.SurfaceFormat{}, err
	}
	if count == 0 {
		return vk.SurfaceFormat{}, errors.New("surface reports no formats")
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vulkan.VulkanError(vk.GetPhysicalDeviceSurfaceFormats(sc.physicalDevice, sc.surface, &count, formats), "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return vk.SurfaceFormat{}, err
	}
	for i := range formats {
		formats[i].Deref()
		if formats[i].Format == vk.FormatB8g8r8a8Unorm && formats[i].ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return formats[i], nil
		}
	}
	return formats[0], nil
}

// Recreate replaces the swapchain after the surface changed.
func (sc *swapchain) Recreate(width, height uint32) error {
	vk.DeviceWaitIdle(sc.device)
	old := sc.Handle
	err := sc.create(width, height, old)
	vk.DestroySwapchain(sc.device, old, nil)
	return err
}

// AcquireNextImage returns errSwapchainOutOfDate when the swapchain must be
// recreated first.
func (sc *swapchain) AcquireNextImage(semaphore vk.Semaphore) (uint32, error) {
	var index uint32
	res := vk.AcquireNextImage(sc.device, sc.Handle, math.MaxUint64, semaphore, vk.NullFence, &index)
	switch res {
	case vk.Success, vk.Suboptimal:
		return index, nil
	case vk.ErrorOutOfDate:
		return 0, errSwapchainOutOfDate
	}
	return 0, vulkan.VulkanError(res, "vkAcquireNextImageKHR")
}

func (sc *swapchain) Present(queue vk.Queue, renderComplete vk.Semaphore, imageIndex uint32) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{imageIndex},
	}
	res := vk.QueuePresent(queue, &presentInfo)
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return errSwapchainOutOfDate
	}
	return vulkan.VulkanError(res, "vkQueuePresentKHR")
}

// Destroy releases the swapchain. Its images are owned by it and go with it.
func (sc *swapchain) Destroy() {
	if sc.Handle != vk.NullSwapchain {
		vk.DestroySwapchain(sc.device, sc.Handle, nil)
		sc.Handle = vk.NullSwapchain
	}
	sc.Images = nil
}

func clamp(value, lo, hi uint32) uint32 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
