package vulkantest

import (
	"math/bits"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/libretro"
)

var _ libretro.HWRenderInterface = (*HW)(nil)

type SetImageCall struct {
	Image          libretro.Image
	Semaphores     []vk.Semaphore
	SrcQueueFamily uint32
}

// HW is a fake libretro.HWRenderInterface. SyncIndex returns Index; with
// Rotate set, the index advances through the mask after every
// SetCommandBuffers call the way a frontend advances after a frame.
type HW struct {
	Mask        uint32
	Index       uint32
	Rotate      bool
	QueueFamily uint32
	ProcAddr    unsafe.Pointer

	// Events holds the presentation calls in the order they were made.
	Events         []string
	Images         []SetImageCall
	CommandBuffers [][]vk.CommandBuffer
	// Locked is true between LockQueue and UnlockQueue.
	Locked bool

	// OnWaitSyncIndex runs inside WaitSyncIndex when set.
	OnWaitSyncIndex func()

	instance vk.Instance
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
}

func NewHW(mask uint32) *HW {
	return &HW{
		Mask:     mask,
		ProcAddr: unsafe.Pointer(new([8]byte)),
		instance: vk.Instance(unsafe.Pointer(new([8]byte))),
		physical: vk.PhysicalDevice(unsafe.Pointer(new([8]byte))),
		device:   vk.Device(unsafe.Pointer(new([8]byte))),
		queue:    vk.Queue(unsafe.Pointer(new([8]byte))),
	}
}

func (h *HW) Instance() vk.Instance             { return h.instance }
func (h *HW) PhysicalDevice() vk.PhysicalDevice { return h.physical }
func (h *HW) Device() vk.Device                 { return h.device }
func (h *HW) Queue() vk.Queue                   { return h.queue }
func (h *HW) QueueIndex() uint32                { return h.QueueFamily }

func (h *HW) GetInstanceProcAddr() unsafe.Pointer {
	return h.ProcAddr
}

func (h *HW) SetImage(image *libretro.Image, semaphores []vk.Semaphore, srcQueueFamily uint32) {
	h.Events = append(h.Events, "set_image")
	call := SetImageCall{SrcQueueFamily: srcQueueFamily}
	if image != nil {
		call.Image = *image
	}
	call.Semaphores = append(call.Semaphores, semaphores...)
	h.Images = append(h.Images, call)
}

func (h *HW) SyncIndex() uint32 {
	h.Events = append(h.Events, "sync_index")
	return h.Index
}

func (h *HW) SyncIndexMask() uint32 {
	return h.Mask
}

func (h *HW) SetCommandBuffers(buffers []vk.CommandBuffer) {
	h.Events = append(h.Events, "set_command_buffers")
	h.CommandBuffers = append(h.CommandBuffers, append([]vk.CommandBuffer(nil), buffers...))
	if h.Rotate && h.Mask != 0 {
		h.Index = (h.Index + 1) % uint32(bits.Len32(h.Mask))
	}
}

func (h *HW) WaitSyncIndex() {
	h.Events = append(h.Events, "wait_sync_index")
	if h.OnWaitSyncIndex != nil {
		h.OnWaitSyncIndex()
	}
}

func (h *HW) LockQueue() {
	h.Events = append(h.Events, "lock_queue")
	h.Locked = true
}

func (h *HW) UnlockQueue() {
	h.Events = append(h.Events, "unlock_queue")
	h.Locked = false
}

// SPIRV returns a minimal blob that passes SPIR-V validation: the magic
// number followed by words-1 zero words.
func SPIRV(words int) []byte {
	if words < 1 {
		words = 1
	}
	code := make([]byte, words*4)
	code[0], code[1], code[2], code[3] = 0x03, 0x02, 0x23, 0x07
	return code
}
