package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

type VulkanRenderpass struct {
	Handle     vk.RenderPass
	X, Y, W, H float32
	R, G, B, A float32
}

// RenderpassCreate creates a single color attachment pass. The attachment
// is expected in, and left in, color attachment optimal layout; the frame
// barriers move it in and out of that layout.
func RenderpassCreate(device Device, format vk.Format, x, y, w, h, r, g, b, a float32) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		X: x,
		Y: y,
		W: w,
		H: h,
		R: r,
		G: g,
		B: b,
		A: a,
	}

	colorAttachment := vk.AttachmentDescription{
		Format:         format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutColorAttachmentOptimal,
		FinalLayout:    vk.ImageLayoutColorAttachmentOptimal,
	}

	colorAttachmentReference := []vk.AttachmentReference{
		{
			Attachment: 0, // Attachment description array index
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		},
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    colorAttachmentReference,
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.AttachmentDescription{colorAttachment},
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
	}

	handle, err := device.CreateRenderPass(&renderpassCreateInfo)
	if err != nil {
		core.LogError("failed to create render pass: %s", err)
		return nil, err
	}
	outRenderpass.Handle = handle
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) Destroy(device Device) {
	if vr.Handle != nil {
		device.DestroyRenderPass(vr.Handle)
		vr.Handle = nil
	}
}

// Begin starts the pass on commandBuffer, clearing the whole render area.
func (vr *VulkanRenderpass) Begin(recorder CommandRecorder, commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{
				X: int32(vr.X),
				Y: int32(vr.Y),
			},
			Extent: vk.Extent2D{
				Width:  uint32(vr.W),
				Height: uint32(vr.H),
			},
		},
		ClearValueCount: 1,
		PClearValues:    []vk.ClearValue{vk.NewClearValue([]float32{vr.R, vr.G, vr.B, vr.A})},
	}

	recorder.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
}

func (vr *VulkanRenderpass) End(recorder CommandRecorder, commandBuffer *VulkanCommandBuffer) {
	recorder.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
}
