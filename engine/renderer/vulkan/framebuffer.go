package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
	Width       uint32
	Height      uint32
}

func FramebufferCreate(device Device, renderpass *VulkanRenderpass, width uint32, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	// Take a copy of the attachments.
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
		Width:       width,
		Height:      height,
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}

	handle, err := device.CreateFramebuffer(&framebufferCreateInfo)
	if err != nil {
		core.LogError("failed to create framebuffer: %s", err)
		return nil, err
	}
	outFramebuffer.Handle = handle
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(device Device) {
	if vfb.Handle != nil {
		device.DestroyFramebuffer(vfb.Handle)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}
