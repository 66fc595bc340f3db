package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

// RenderTargetFormat is the format of every ring image.
const RenderTargetFormat = vk.FormatR8g8b8a8Unorm

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format

	// ViewInfo is the create info the view was built from. The frontend
	// needs it alongside the view.
	ViewInfo vk.ImageViewCreateInfo

	device Device
}

// CreateRenderTarget creates a device-local 2D color image the frontend can
// sample and copy from, together with its view.
func CreateRenderTarget(device Device, width, height uint32, format vk.Format) (*VulkanImage, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		Flags:     vk.ImageCreateFlags(vk.ImageCreateMutableFormatBit),
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	handle, err := device.CreateImage(&imageInfo)
	if err != nil {
		core.LogError("failed to create render target image: %s", err)
		return nil, err
	}

	img := &VulkanImage{
		Handle: handle,
		Width:  width,
		Height: height,
		Format: format,
		device: device,
	}

	memory, err := allocateFor(device, device.ImageMemoryRequirements(handle), vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.Destroy()
		core.LogError("failed to allocate render target memory: %s", err)
		return nil, err
	}
	img.Memory = memory

	if err := device.BindImageMemory(handle, memory); err != nil {
		img.Destroy()
		core.LogError("failed to bind render target memory: %s", err)
		return nil, err
	}

	img.ViewInfo = vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: colorSubresourceRange(),
	}
	view, err := device.CreateImageView(&img.ViewInfo)
	if err != nil {
		img.Destroy()
		core.LogError("failed to create render target view: %s", err)
		return nil, err
	}
	img.View = view

	return img, nil
}

// Destroy releases the view, the image and its memory, in that order.
func (img *VulkanImage) Destroy() {
	if img.View != nil {
		img.device.DestroyImageView(img.View)
		img.View = nil
	}
	if img.Handle != nil {
		img.device.DestroyImage(img.Handle)
		img.Handle = nil
	}
	if img.Memory != nil {
		img.device.FreeMemory(img.Memory)
		img.Memory = nil
	}
}

func colorSubresourceRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}
