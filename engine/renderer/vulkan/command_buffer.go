package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

func (s VulkanCommandBufferState) String() string {
	switch s {
	case COMMAND_BUFFER_STATE_READY:
		return "ready"
	case COMMAND_BUFFER_STATE_RECORDING:
		return "recording"
	case COMMAND_BUFFER_STATE_IN_RENDER_PASS:
		return "in render pass"
	case COMMAND_BUFFER_STATE_RECORDING_ENDED:
		return "recording ended"
	case COMMAND_BUFFER_STATE_SUBMITTED:
		return "submitted"
	case COMMAND_BUFFER_STATE_NOT_ALLOCATED:
		return "not allocated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// VulkanCommandBuffer is a command buffer together with the resettable pool
// it was allocated from. Each frame slot owns exactly one.
type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	Pool   vk.CommandPool
	// Command buffer state.
	State VulkanCommandBufferState
}

// NewVulkanCommandBuffer creates a pool whose buffers can be reset one by
// one, and allocates a single primary buffer from it.
func NewVulkanCommandBuffer(device Device, queueFamilyIndex uint32) (*VulkanCommandBuffer, error) {
	vCommandBuffer := &VulkanCommandBuffer{
		State: COMMAND_BUFFER_STATE_NOT_ALLOCATED,
	}

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamilyIndex,
	}
	pool, err := device.CreateCommandPool(&poolInfo)
	if err != nil {
		core.LogError("failed to create command pool: %s", err)
		return nil, err
	}
	vCommandBuffer.Pool = pool

	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	handle, err := device.AllocateCommandBuffer(&allocateInfo)
	if err != nil {
		device.DestroyCommandPool(pool)
		core.LogError("failed to allocate command buffer: %s", err)
		return nil, err
	}
	vCommandBuffer.Handle = handle
	vCommandBuffer.State = COMMAND_BUFFER_STATE_READY

	return vCommandBuffer, nil
}

// Free releases the buffer and then its pool.
func (v *VulkanCommandBuffer) Free(device Device) {
	if v.Handle != nil {
		device.FreeCommandBuffer(v.Pool, v.Handle)
		v.Handle = nil
	}
	if v.Pool != nil {
		device.DestroyCommandPool(v.Pool)
		v.Pool = nil
	}
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

func (v *VulkanCommandBuffer) Begin(
	recorder CommandRecorder,
	isSingleUse,
	isRenderpassContinue,
	isSimultaneousUse bool) error {

	vBeginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: 0,
	}

	if isSingleUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		vBeginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}

	if err := recorder.BeginCommandBuffer(v.Handle, vBeginInfo); err != nil {
		core.LogError("failed to begin command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING

	return nil
}

func (v *VulkanCommandBuffer) End(recorder CommandRecorder) error {
	if err := recorder.EndCommandBuffer(v.Handle); err != nil {
		core.LogError("failed to end command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

// Reset returns the buffer to the initial state so it can be recorded again.
func (v *VulkanCommandBuffer) Reset(recorder CommandRecorder) error {
	if err := recorder.ResetCommandBuffer(v.Handle); err != nil {
		core.LogError("failed to reset command buffer: %s", err)
		return err
	}
	v.State = COMMAND_BUFFER_STATE_READY
	return nil
}
