package vulkan

import (
	"math/bits"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

// UniformSize is the size of the per-slot uniform buffer: one 4x4 float32
// matrix.
const UniformSize vk.DeviceSize = 16 * 4

// RingSizeFromMask returns the number of frame slots implied by the
// frontend's sync index mask: one more than the highest set bit. Sizes
// above max are capped.
func RingSizeFromMask(mask uint32, max uint32) (uint32, error) {
	if mask == 0 {
		return 0, errors.Wrap(core.ErrInvalidSyncMask, "sync index mask is 0")
	}
	size := uint32(bits.Len32(mask))
	if max > 0 && size > max {
		core.LogWarn("sync index mask 0x%x asks for %d images, capping the ring at %d", mask, size, max)
		size = max
	}
	return size, nil
}

type FrameRingConfig struct {
	Width            uint32
	Height           uint32
	QueueFamilyIndex uint32
	// SlotFences gives every slot its own fence and semaphore so the core
	// can submit its own work.
	SlotFences bool
}

// FrameSlot is the GPU state one in-flight frame needs.
type FrameSlot struct {
	Index         uint32
	Uniform       *VulkanBuffer
	DescriptorSet vk.DescriptorSet
	CommandBuffer *VulkanCommandBuffer
	Image         *VulkanImage
	Framebuffer   *VulkanFramebuffer
	Fence         *VulkanFence
	Semaphore     vk.Semaphore
}

type FrameRing struct {
	Slots       []*FrameSlot
	Descriptors *VulkanDescriptorPool

	device Device
}

// NewFrameRing builds size slots against pipeline. If any slot fails, every
// object created so far is released before the error is returned.
func NewFrameRing(device Device, pipeline *VulkanPipeline, size uint32, config FrameRingConfig) (*FrameRing, error) {
	if size == 0 {
		return nil, errors.Wrap(core.ErrInvalidSyncMask, "frame ring needs at least one slot")
	}
	ring := &FrameRing{
		Slots:  make([]*FrameSlot, 0, size),
		device: device,
	}

	descriptors, err := NewDescriptorPool(device, pipeline.SetLayout, size)
	if err != nil {
		return nil, err
	}
	ring.Descriptors = descriptors

	for i := uint32(0); i < size; i++ {
		slot, err := ring.newSlot(i, pipeline, config)
		if err != nil {
			ring.release()
			return nil, errors.Wrapf(err, "frame slot %d", i)
		}
		ring.Slots = append(ring.Slots, slot)
	}

	core.LogDebug("Frame ring created with %d slots (%dx%d)", size, config.Width, config.Height)
	return ring, nil
}

func (r *FrameRing) newSlot(index uint32, pipeline *VulkanPipeline, config FrameRingConfig) (*FrameSlot, error) {
	slot := &FrameSlot{Index: index}
	fail := func(err error) (*FrameSlot, error) {
		slot.destroy(r.device)
		return nil, err
	}

	uniform, err := CreateBuffer(r.device, nil, UniformSize, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	if err != nil {
		return fail(err)
	}
	slot.Uniform = uniform

	slot.DescriptorSet = r.Descriptors.Sets[index]
	r.Descriptors.BindUniform(slot.DescriptorSet, uniform)

	commandBuffer, err := NewVulkanCommandBuffer(r.device, config.QueueFamilyIndex)
	if err != nil {
		return fail(err)
	}
	slot.CommandBuffer = commandBuffer

	image, err := CreateRenderTarget(r.device, config.Width, config.Height, RenderTargetFormat)
	if err != nil {
		return fail(err)
	}
	slot.Image = image

	framebuffer, err := FramebufferCreate(r.device, pipeline.Renderpass, config.Width, config.Height, []vk.ImageView{image.View})
	if err != nil {
		return fail(err)
	}
	slot.Framebuffer = framebuffer

	if config.SlotFences {
		fence, err := NewFence(r.device, true)
		if err != nil {
			return fail(err)
		}
		slot.Fence = fence

		semaphore, err := r.device.CreateSemaphore(&vk.SemaphoreCreateInfo{
			SType: vk.StructureTypeSemaphoreCreateInfo,
		})
		if err != nil {
			core.LogError("failed to create semaphore: %s", err)
			return fail(err)
		}
		slot.Semaphore = semaphore
	}
	return slot, nil
}

// destroy releases the slot's objects in reverse creation order. The
// descriptor set belongs to the ring's pool and is not freed here.
func (s *FrameSlot) destroy(device Device) {
	if s.Semaphore != nil {
		device.DestroySemaphore(s.Semaphore)
		s.Semaphore = nil
	}
	if s.Fence != nil {
		s.Fence.Destroy(device)
		s.Fence = nil
	}
	if s.Framebuffer != nil {
		s.Framebuffer.Destroy(device)
		s.Framebuffer = nil
	}
	if s.Image != nil {
		s.Image.Destroy()
		s.Image = nil
	}
	if s.CommandBuffer != nil {
		s.CommandBuffer.Free(device)
		s.CommandBuffer = nil
	}
	s.DescriptorSet = nil
	if s.Uniform != nil {
		s.Uniform.Destroy()
		s.Uniform = nil
	}
}

// Size is the number of slots in the ring.
func (r *FrameRing) Size() uint32 {
	return uint32(len(r.Slots))
}

// Slot returns the slot for a sync index, or ErrSyncIndexOutOfRange.
func (r *FrameRing) Slot(index uint32) (*FrameSlot, error) {
	if index >= r.Size() {
		return nil, errors.Wrapf(core.ErrSyncIndexOutOfRange, "sync index %d, ring size %d", index, r.Size())
	}
	return r.Slots[index], nil
}

// Destroy waits for the device to go idle, then releases the slots last to
// first and the descriptor pool after them.
func (r *FrameRing) Destroy() {
	if err := r.device.WaitIdle(); err != nil {
		core.LogWarn("device wait idle before ring teardown: %s", err)
	}
	r.release()
}

func (r *FrameRing) release() {
	for i := len(r.Slots) - 1; i >= 0; i-- {
		r.Slots[i].destroy(r.device)
	}
	r.Slots = nil
	if r.Descriptors != nil {
		r.Descriptors.Destroy()
		r.Descriptors = nil
	}
}
