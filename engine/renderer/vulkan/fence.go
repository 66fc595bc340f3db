package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(device Device, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{
		// Make sure to signal the fence if required.
		IsSignaled: createSignaled,
	}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if fence.IsSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	handle, err := device.CreateFence(&fenceCreateInfo)
	if err != nil {
		core.LogError("failed to create fence: %s", err)
		return nil, err
	}
	fence.Handle = handle
	return fence, nil
}

func (vf *VulkanFence) Destroy(device Device) {
	if vf.Handle != nil {
		device.DestroyFence(vf.Handle)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// Wait blocks until the fence is signaled or timeoutNs elapses. A fence
// already known to be signaled returns immediately.
func (vf *VulkanFence) Wait(device Device, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	if err := device.WaitForFence(vf.Handle, timeoutNs); err != nil {
		core.LogError("vk_fence_wait - %s", err)
		return err
	}
	vf.IsSignaled = true
	return nil
}

// Reset returns a signaled fence to the unsignaled state. It must be called
// before the fence is handed to a new submission.
func (vf *VulkanFence) Reset(device Device) error {
	if vf.IsSignaled {
		if err := device.ResetFence(vf.Handle); err != nil {
			core.LogError("failed to reset fence: %s", err)
			return err
		}
		vf.IsSignaled = false
	}
	return nil
}
