package libretro

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

// HWRenderInterfaceVulkanVersion is the retro_hw_render_interface_vulkan
// revision this core expects.
const HWRenderInterfaceVulkanVersion uint32 = 5

// Image mirrors retro_vulkan_image: the view handed to the frontend, the
// layout it will be in when the frontend samples it and the create info the
// view was built from.
type Image struct {
	ImageView   vk.ImageView
	ImageLayout vk.ImageLayout
	CreateInfo  vk.ImageViewCreateInfo
}

// HWRenderInterface is the Go face of retro_hw_render_interface_vulkan. The
// frontend owns every handle returned here and the synchronization behind
// the sync index calls.
type HWRenderInterface interface {
	Instance() vk.Instance
	PhysicalDevice() vk.PhysicalDevice
	Device() vk.Device
	Queue() vk.Queue
	QueueIndex() uint32

	// GetInstanceProcAddr returns the frontend's vkGetInstanceProcAddr.
	GetInstanceProcAddr() unsafe.Pointer

	// SetImage publishes the image for the current frame. The frontend waits
	// on semaphores before it reads the image.
	SetImage(image *Image, semaphores []vk.Semaphore, srcQueueFamily uint32)
	// SyncIndex is the index of the frame slot to use this frame.
	SyncIndex() uint32
	// SyncIndexMask has one bit set per frame slot the frontend rotates through.
	SyncIndexMask() uint32
	// SetCommandBuffers queues command buffers for the frontend to submit.
	SetCommandBuffers(buffers []vk.CommandBuffer)
	// WaitSyncIndex blocks until the slot returned by SyncIndex is free.
	WaitSyncIndex()
	LockQueue()
	UnlockQueue()
}
