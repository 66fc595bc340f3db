package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/libretro"
)

// VulkanDevice implements Device on top of the handles the frontend shares
// with the core. It owns none of them.
type VulkanDevice struct {
	PhysicalDevice vk.PhysicalDevice
	LogicalDevice  vk.Device
	Allocator      *vk.AllocationCallbacks

	Properties       vk.PhysicalDeviceProperties
	MemoryProperties vk.PhysicalDeviceMemoryProperties

	locks *VulkanLockPool
}

// OpenDevice resolves the Vulkan entry points through the frontend's
// vkGetInstanceProcAddr and queries the physical device.
func OpenDevice(hw libretro.HWRenderInterface) (Device, error) {
	procAddr := hw.GetInstanceProcAddr()
	if procAddr == nil {
		return nil, errors.New("frontend did not provide vkGetInstanceProcAddr")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vulkan loader init")
	}
	if err := vk.InitInstance(hw.Instance()); err != nil {
		return nil, errors.Wrap(err, "vulkan instance init")
	}

	return NewVulkanDevice(hw.PhysicalDevice(), hw.Device(), NewVulkanLockPool()), nil
}

// NewVulkanDevice wraps handles whose entry points are already loaded and
// queries the physical device.
func NewVulkanDevice(physicalDevice vk.PhysicalDevice, logicalDevice vk.Device, locks *VulkanLockPool) *VulkanDevice {
	d := &VulkanDevice{
		PhysicalDevice: physicalDevice,
		LogicalDevice:  logicalDevice,
		locks:          locks,
	}

	vk.GetPhysicalDeviceProperties(d.PhysicalDevice, &d.Properties)
	d.Properties.Deref()
	d.Properties.Limits.Deref()

	vk.GetPhysicalDeviceMemoryProperties(d.PhysicalDevice, &d.MemoryProperties)
	d.MemoryProperties.Deref()

	core.LogDebug("Physical device properties queried: %s", d.DeviceName())
	return d
}

func (d *VulkanDevice) DeviceName() string {
	return vk.ToString(d.Properties.DeviceName[:])
}

func (d *VulkanDevice) MemoryTypes() []vk.MemoryType {
	types := make([]vk.MemoryType, d.MemoryProperties.MemoryTypeCount)
	for i := range types {
		d.MemoryProperties.MemoryTypes[i].Deref()
		types[i] = d.MemoryProperties.MemoryTypes[i]
	}
	return types
}

func (d *VulkanDevice) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	var buffer vk.Buffer
	err := d.locks.SafeCall(BufferManagement, func() error {
		return VulkanError(vk.CreateBuffer(d.LogicalDevice, info, d.Allocator, &buffer), "vkCreateBuffer")
	})
	return buffer, err
}

func (d *VulkanDevice) DestroyBuffer(buffer vk.Buffer) {
	_ = d.locks.SafeCall(BufferManagement, func() error {
		vk.DestroyBuffer(d.LogicalDevice, buffer, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.LogicalDevice, buffer, &requirements)
	requirements.Deref()
	return requirements
}

func (d *VulkanDevice) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory) error {
	return VulkanError(vk.BindBufferMemory(d.LogicalDevice, buffer, memory, 0), "vkBindBufferMemory")
}

func (d *VulkanDevice) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	var image vk.Image
	err := d.locks.SafeCall(ImageManagement, func() error {
		return VulkanError(vk.CreateImage(d.LogicalDevice, info, d.Allocator, &image), "vkCreateImage")
	})
	return image, err
}

func (d *VulkanDevice) DestroyImage(image vk.Image) {
	_ = d.locks.SafeCall(ImageManagement, func() error {
		vk.DestroyImage(d.LogicalDevice, image, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.LogicalDevice, image, &requirements)
	requirements.Deref()
	return requirements
}

func (d *VulkanDevice) BindImageMemory(image vk.Image, memory vk.DeviceMemory) error {
	return VulkanError(vk.BindImageMemory(d.LogicalDevice, image, memory, 0), "vkBindImageMemory")
}

func (d *VulkanDevice) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	var view vk.ImageView
	err := d.locks.SafeCall(ImageManagement, func() error {
		return VulkanError(vk.CreateImageView(d.LogicalDevice, info, d.Allocator, &view), "vkCreateImageView")
	})
	return view, err
}

func (d *VulkanDevice) DestroyImageView(view vk.ImageView) {
	_ = d.locks.SafeCall(ImageManagement, func() error {
		vk.DestroyImageView(d.LogicalDevice, view, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	var memory vk.DeviceMemory
	err := d.locks.SafeCall(MemoryManagement, func() error {
		return VulkanError(vk.AllocateMemory(d.LogicalDevice, info, d.Allocator, &memory), "vkAllocateMemory")
	})
	return memory, err
}

func (d *VulkanDevice) FreeMemory(memory vk.DeviceMemory) {
	_ = d.locks.SafeCall(MemoryManagement, func() error {
		vk.FreeMemory(d.LogicalDevice, memory, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) WriteMemory(memory vk.DeviceMemory, offset vk.DeviceSize, data []byte) error {
	return d.locks.SafeCall(MemoryManagement, func() error {
		var pData unsafe.Pointer
		if err := VulkanError(vk.MapMemory(d.LogicalDevice, memory, offset, vk.DeviceSize(len(data)), 0, &pData), "vkMapMemory"); err != nil {
			return err
		}
		vk.Memcopy(pData, data)
		vk.UnmapMemory(d.LogicalDevice, memory)
		return nil
	})
}

// ReadMemory maps size bytes at offset and copies them out.
func (d *VulkanDevice) ReadMemory(memory vk.DeviceMemory, offset, size vk.DeviceSize) ([]byte, error) {
	out := make([]byte, size)
	err := d.locks.SafeCall(MemoryManagement, func() error {
		var pData unsafe.Pointer
		if err := VulkanError(vk.MapMemory(d.LogicalDevice, memory, offset, size, 0, &pData), "vkMapMemory"); err != nil {
			return err
		}
		copy(out, unsafe.Slice((*byte)(pData), int(size)))
		vk.UnmapMemory(d.LogicalDevice, memory)
		return nil
	})
	return out, err
}

func (d *VulkanDevice) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	err := d.locks.SafeCall(ResourceManagement, func() error {
		return VulkanError(vk.CreateDescriptorSetLayout(d.LogicalDevice, info, d.Allocator, &layout), "vkCreateDescriptorSetLayout")
	})
	return layout, err
}

func (d *VulkanDevice) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	_ = d.locks.SafeCall(ResourceManagement, func() error {
		vk.DestroyDescriptorSetLayout(d.LogicalDevice, layout, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	var pool vk.DescriptorPool
	err := d.locks.SafeCall(ResourceManagement, func() error {
		return VulkanError(vk.CreateDescriptorPool(d.LogicalDevice, info, d.Allocator, &pool), "vkCreateDescriptorPool")
	})
	return pool, err
}

func (d *VulkanDevice) DestroyDescriptorPool(pool vk.DescriptorPool) {
	_ = d.locks.SafeCall(ResourceManagement, func() error {
		vk.DestroyDescriptorPool(d.LogicalDevice, pool, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) AllocateDescriptorSets(info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error) {
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	if len(sets) == 0 {
		return sets, nil
	}
	err := d.locks.SafeCall(ResourceManagement, func() error {
		return VulkanError(vk.AllocateDescriptorSets(d.LogicalDevice, info, &sets[0]), "vkAllocateDescriptorSets")
	})
	return sets, err
}

func (d *VulkanDevice) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	_ = d.locks.SafeCall(ResourceManagement, func() error {
		vk.UpdateDescriptorSets(d.LogicalDevice, uint32(len(writes)), writes, 0, nil)
		return nil
	})
}

func (d *VulkanDevice) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	err := d.locks.SafeCall(PipelineManagement, func() error {
		return VulkanError(vk.CreatePipelineLayout(d.LogicalDevice, info, d.Allocator, &layout), "vkCreatePipelineLayout")
	})
	return layout, err
}

func (d *VulkanDevice) DestroyPipelineLayout(layout vk.PipelineLayout) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineLayout(d.LogicalDevice, layout, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderPass vk.RenderPass
	err := d.locks.SafeCall(RenderpassManagement, func() error {
		return VulkanError(vk.CreateRenderPass(d.LogicalDevice, info, d.Allocator, &renderPass), "vkCreateRenderPass")
	})
	return renderPass, err
}

func (d *VulkanDevice) DestroyRenderPass(renderPass vk.RenderPass) {
	_ = d.locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyRenderPass(d.LogicalDevice, renderPass, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	var module vk.ShaderModule
	err := d.locks.SafeCall(ShaderManagement, func() error {
		return VulkanError(vk.CreateShaderModule(d.LogicalDevice, info, d.Allocator, &module), "vkCreateShaderModule")
	})
	return module, err
}

func (d *VulkanDevice) DestroyShaderModule(module vk.ShaderModule) {
	_ = d.locks.SafeCall(ShaderManagement, func() error {
		vk.DestroyShaderModule(d.LogicalDevice, module, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreatePipelineCache(info *vk.PipelineCacheCreateInfo) (vk.PipelineCache, error) {
	var cache vk.PipelineCache
	err := d.locks.SafeCall(PipelineManagement, func() error {
		return VulkanError(vk.CreatePipelineCache(d.LogicalDevice, info, d.Allocator, &cache), "vkCreatePipelineCache")
	})
	return cache, err
}

func (d *VulkanDevice) DestroyPipelineCache(cache vk.PipelineCache) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipelineCache(d.LogicalDevice, cache, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreateGraphicsPipeline(cache vk.PipelineCache, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	err := d.locks.SafeCall(PipelineManagement, func() error {
		result := vk.CreateGraphicsPipelines(
			d.LogicalDevice,
			cache,
			1,
			[]vk.GraphicsPipelineCreateInfo{*info},
			d.Allocator,
			pipelines)
		return VulkanError(result, "vkCreateGraphicsPipelines")
	})
	return pipelines[0], err
}

func (d *VulkanDevice) DestroyPipeline(pipeline vk.Pipeline) {
	_ = d.locks.SafeCall(PipelineManagement, func() error {
		vk.DestroyPipeline(d.LogicalDevice, pipeline, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	err := d.locks.SafeCall(RenderpassManagement, func() error {
		return VulkanError(vk.CreateFramebuffer(d.LogicalDevice, info, d.Allocator, &framebuffer), "vkCreateFramebuffer")
	})
	return framebuffer, err
}

func (d *VulkanDevice) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	_ = d.locks.SafeCall(RenderpassManagement, func() error {
		vk.DestroyFramebuffer(d.LogicalDevice, framebuffer, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) CreateCommandPool(info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	var pool vk.CommandPool
	err := d.locks.SafeCall(CommandPoolManagement, func() error {
		return VulkanError(vk.CreateCommandPool(d.LogicalDevice, info, d.Allocator, &pool), "vkCreateCommandPool")
	})
	return pool, err
}

func (d *VulkanDevice) DestroyCommandPool(pool vk.CommandPool) {
	_ = d.locks.SafeCall(CommandPoolManagement, func() error {
		vk.DestroyCommandPool(d.LogicalDevice, pool, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) AllocateCommandBuffer(info *vk.CommandBufferAllocateInfo) (vk.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	err := d.locks.SafeCall(CommandPoolManagement, func() error {
		return VulkanError(vk.AllocateCommandBuffers(d.LogicalDevice, info, buffers), "vkAllocateCommandBuffers")
	})
	return buffers[0], err
}

func (d *VulkanDevice) FreeCommandBuffer(pool vk.CommandPool, buffer vk.CommandBuffer) {
	_ = d.locks.SafeCall(CommandPoolManagement, func() error {
		vk.FreeCommandBuffers(d.LogicalDevice, pool, 1, []vk.CommandBuffer{buffer})
		return nil
	})
}

func (d *VulkanDevice) CreateFence(info *vk.FenceCreateInfo) (vk.Fence, error) {
	var fence vk.Fence
	err := d.locks.SafeCall(SynchronizationManagement, func() error {
		return VulkanError(vk.CreateFence(d.LogicalDevice, info, d.Allocator, &fence), "vkCreateFence")
	})
	return fence, err
}

func (d *VulkanDevice) DestroyFence(fence vk.Fence) {
	_ = d.locks.SafeCall(SynchronizationManagement, func() error {
		vk.DestroyFence(d.LogicalDevice, fence, d.Allocator)
		return nil
	})
}

func (d *VulkanDevice) WaitForFence(fence vk.Fence, timeoutNs uint64) error {
	return VulkanError(vk.WaitForFences(d.LogicalDevice, 1, []vk.Fence{fence}, vk.True, timeoutNs), "vkWaitForFences")
}

func (d *VulkanDevice) ResetFence(fence vk.Fence) error {
	return VulkanError(vk.ResetFences(d.LogicalDevice, 1, []vk.Fence{fence}), "vkResetFences")
}

func (d *VulkanDevice) CreateSemaphore(info *vk.SemaphoreCreateInfo) (vk.Semaphore, error) {
	var semaphore vk.Semaphore
	err := d.locks.SafeCall(SynchronizationManagement, func() error {
		return VulkanError(vk.CreateSemaphore(d.LogicalDevice, info, d.Allocator, &semaphore), "vkCreateSemaphore")
	})
	return semaphore, err
}

func (d *VulkanDevice) DestroySemaphore(semaphore vk.Semaphore) {
	_ = d.locks.SafeCall(SynchronizationManagement, func() error {
		vk.DestroySemaphore(d.LogicalDevice, semaphore, d.Allocator)
		return nil
	})
}

// QueueSubmit expects the caller to hold the frontend's queue lock.
func (d *VulkanDevice) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	return VulkanError(vk.QueueSubmit(queue, uint32(len(submits)), submits, fence), "vkQueueSubmit")
}

func (d *VulkanDevice) WaitIdle() error {
	return VulkanError(vk.DeviceWaitIdle(d.LogicalDevice), "vkDeviceWaitIdle")
}

func (d *VulkanDevice) ResetCommandBuffer(buffer vk.CommandBuffer) error {
	return VulkanError(vk.ResetCommandBuffer(buffer, 0), "vkResetCommandBuffer")
}

func (d *VulkanDevice) BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	return VulkanError(vk.BeginCommandBuffer(buffer, info), "vkBeginCommandBuffer")
}

func (d *VulkanDevice) EndCommandBuffer(buffer vk.CommandBuffer) error {
	return VulkanError(vk.EndCommandBuffer(buffer), "vkEndCommandBuffer")
}

func (d *VulkanDevice) CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	vk.CmdPipelineBarrier(buffer, srcStage, dstStage, 0, 0, nil, 0, nil, uint32(len(barriers)), barriers)
}

func (d *VulkanDevice) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(buffer, info, vk.SubpassContentsInline)
}

func (d *VulkanDevice) CmdEndRenderPass(buffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(buffer)
}

func (d *VulkanDevice) CmdBindPipeline(buffer vk.CommandBuffer, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(buffer, vk.PipelineBindPointGraphics, pipeline)
}

func (d *VulkanDevice) CmdBindDescriptorSets(buffer vk.CommandBuffer, layout vk.PipelineLayout, sets []vk.DescriptorSet) {
	vk.CmdBindDescriptorSets(buffer, vk.PipelineBindPointGraphics, layout, 0, uint32(len(sets)), sets, 0, nil)
}

func (d *VulkanDevice) CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport) {
	vk.CmdSetViewport(buffer, 0, uint32(len(viewports)), viewports)
}

func (d *VulkanDevice) CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D) {
	vk.CmdSetScissor(buffer, 0, uint32(len(scissors)), scissors)
}

func (d *VulkanDevice) CmdBindVertexBuffers(buffer vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	vk.CmdBindVertexBuffers(buffer, 0, uint32(len(buffers)), buffers, offsets)
}

func (d *VulkanDevice) CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(buffer, vertexCount, instanceCount, firstVertex, firstInstance)
}

// CmdBlitImage and CmdCopyImageToBuffer serve the presentation side, the
// renderer never transfers.
func (d *VulkanDevice) CmdBlitImage(buffer vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, regions []vk.ImageBlit) {
	vk.CmdBlitImage(buffer, src, srcLayout, dst, dstLayout, uint32(len(regions)), regions, vk.FilterLinear)
}

func (d *VulkanDevice) CmdCopyImageToBuffer(buffer vk.CommandBuffer, src vk.Image, srcLayout vk.ImageLayout, dst vk.Buffer, regions []vk.BufferImageCopy) {
	vk.CmdCopyImageToBuffer(buffer, src, srcLayout, dst, uint32(len(regions)), regions)
}
