package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/libretro"
)

// Device is the slice of the Vulkan device API the renderer needs. Every
// fallible call reports a non-success VkResult as an error.
type Device interface {
	// DeviceName is the physical device name reported by the driver.
	DeviceName() string
	// MemoryTypes lists the memory types of the physical device in index order.
	MemoryTypes() []vk.MemoryType

	CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error)
	DestroyBuffer(buffer vk.Buffer)
	BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements
	BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory) error

	CreateImage(info *vk.ImageCreateInfo) (vk.Image, error)
	DestroyImage(image vk.Image)
	ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements
	BindImageMemory(image vk.Image, memory vk.DeviceMemory) error
	CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)

	AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error)
	FreeMemory(memory vk.DeviceMemory)
	// WriteMemory maps memory, copies data at offset and unmaps it again.
	WriteMemory(memory vk.DeviceMemory, offset vk.DeviceSize, data []byte) error

	CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout)
	CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error)
	DestroyDescriptorPool(pool vk.DescriptorPool)
	AllocateDescriptorSets(info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error)
	UpdateDescriptorSets(writes []vk.WriteDescriptorSet)

	CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)
	DestroyPipelineLayout(layout vk.PipelineLayout)
	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(renderPass vk.RenderPass)
	CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error)
	DestroyShaderModule(module vk.ShaderModule)
	CreatePipelineCache(info *vk.PipelineCacheCreateInfo) (vk.PipelineCache, error)
	DestroyPipelineCache(cache vk.PipelineCache)
	CreateGraphicsPipeline(cache vk.PipelineCache, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)
	DestroyPipeline(pipeline vk.Pipeline)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)

	CreateCommandPool(info *vk.CommandPoolCreateInfo) (vk.CommandPool, error)
	DestroyCommandPool(pool vk.CommandPool)
	AllocateCommandBuffer(info *vk.CommandBufferAllocateInfo) (vk.CommandBuffer, error)
	FreeCommandBuffer(pool vk.CommandPool, buffer vk.CommandBuffer)

	CreateFence(info *vk.FenceCreateInfo) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence vk.Fence, timeoutNs uint64) error
	ResetFence(fence vk.Fence) error
	CreateSemaphore(info *vk.SemaphoreCreateInfo) (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error
	WaitIdle() error

	CommandRecorder
}

// CommandRecorder records into command buffers. The Cmd* calls cannot fail
// at record time, errors surface at EndCommandBuffer or submission.
type CommandRecorder interface {
	ResetCommandBuffer(buffer vk.CommandBuffer) error
	BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error
	EndCommandBuffer(buffer vk.CommandBuffer) error

	CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier)
	CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(buffer vk.CommandBuffer)
	CmdBindPipeline(buffer vk.CommandBuffer, pipeline vk.Pipeline)
	CmdBindDescriptorSets(buffer vk.CommandBuffer, layout vk.PipelineLayout, sets []vk.DescriptorSet)
	CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport)
	CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D)
	CmdBindVertexBuffers(buffer vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize)
	CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
}

// DeviceOpener resolves a Device from the hardware context handed over by
// the frontend.
type DeviceOpener func(hw libretro.HWRenderInterface) (Device, error)
