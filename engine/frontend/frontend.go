package frontend

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/config"
	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/libretro"
	"github.com/spaghettifunk/volcano/engine/platform"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
)

const fenceTimeoutNs = math.MaxUint64

// presentSlot is what the frontend keeps per sync index.
type presentSlot struct {
	fence         *vulkan.VulkanFence
	commandBuffer *vulkan.VulkanCommandBuffer
	// Only in window mode.
	imageAvailable vk.Semaphore
	renderComplete vk.Semaphore
}

// Frontend owns a Vulkan instance and device and plays the presenting side
// of the hardware render interface for a single core.
type Frontend struct {
	platform *platform.Platform
	width    uint32
	height   uint32

	instance       vk.Instance
	debugCallback  vk.DebugReportCallback
	surface        vk.Surface
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	queue          vk.Queue
	queueFamily    uint32

	vkDevice  *vulkan.VulkanDevice
	locks     *vulkan.VulkanLockPool
	swapchain *swapchain

	slots  []*presentSlot
	index  uint32
	frames uint64

	// Published by the core for the current frame.
	image          *libretro.Image
	semaphores     []vk.Semaphore
	commandBuffers []vk.CommandBuffer
}

var _ libretro.HWRenderInterface = (*Frontend)(nil)

// New creates the instance and device and the per sync index objects. On
// failure everything created so far is released.
func New(cfg *config.Config, p *platform.Platform) (*Frontend, error) {
	f := &Frontend{
		platform: p,
		width:    cfg.Renderer.Width,
		height:   cfg.Renderer.Height,
		locks:    vulkan.NewVulkanLockPool(),
	}
	if err := f.initialize(cfg.Frontend); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (f *Frontend) initialize(cfg config.FrontendConfig) error {
	instance, callback, err := createInstance(f.platform.GetInstanceProcAddr(), "volcano", f.platform.RequiredExtensions(), cfg.Validation)
	if err != nil {
		return err
	}
	f.instance, f.debugCallback = instance, callback

	f.surface = vk.NullSurface
	if cfg.Window {
		surface, err := f.platform.CreateSurface(f.instance)
		if err != nil {
			return err
		}
		f.surface = surface
	}

	choice, err := selectPhysicalDevice(f.instance, f.surface)
	if err != nil {
		return err
	}
	f.physicalDevice = choice.handle
	f.queueFamily = choice.queueFamily

	f.device, f.queue, err = createLogicalDevice(choice, cfg.Window)
	if err != nil {
		return err
	}
	f.vkDevice = vulkan.NewVulkanDevice(f.physicalDevice, f.device, f.locks)

	if cfg.Window {
		width, height := f.platform.FramebufferSize()
		f.swapchain, err = newSwapchain(f.physicalDevice, f.device, f.surface, width, height)
		if err != nil {
			return err
		}
	}

	for i := uint32(0); i < cfg.SyncImages; i++ {
		slot, err := f.newPresentSlot(cfg.Window)
		if err != nil {
			return err
		}
		f.slots = append(f.slots, slot)
	}
	core.LogInfo("Frontend ready with %d sync images.", len(f.slots))
	return nil
}

func (f *Frontend) newPresentSlot(window bool) (*presentSlot, error) {
	slot := &presentSlot{}
	var err error
	// Signaled so the first wait on every index returns at once.
	if slot.fence, err = vulkan.NewFence(f.vkDevice, true); err != nil {
		return nil, err
	}
	if slot.commandBuffer, err = vulkan.NewVulkanCommandBuffer(f.vkDevice, f.queueFamily); err != nil {
		f.destroySlot(slot)
		return nil, err
	}
	if !window {
		return slot, nil
	}
	semaphoreInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	if slot.imageAvailable, err = f.vkDevice.CreateSemaphore(&semaphoreInfo); err != nil {
		f.destroySlot(slot)
		return nil, err
	}
	if slot.renderComplete, err = f.vkDevice.CreateSemaphore(&semaphoreInfo); err != nil {
		f.destroySlot(slot)
		return nil, err
	}
	return slot, nil
}

func (f *Frontend) destroySlot(slot *presentSlot) {
	if slot.renderComplete != vk.NullSemaphore {
		f.vkDevice.DestroySemaphore(slot.renderComplete)
		slot.renderComplete = vk.NullSemaphore
	}
	if slot.imageAvailable != vk.NullSemaphore {
		f.vkDevice.DestroySemaphore(slot.imageAvailable)
		slot.imageAvailable = vk.NullSemaphore
	}
	if slot.commandBuffer != nil {
		slot.commandBuffer.Free(f.vkDevice)
	}
	if slot.fence != nil {
		slot.fence.Destroy(f.vkDevice)
	}
}

func (f *Frontend) Instance() vk.Instance             { return f.instance }
func (f *Frontend) PhysicalDevice() vk.PhysicalDevice { return f.physicalDevice }
func (f *Frontend) Device() vk.Device                 { return f.device }
func (f *Frontend) Queue() vk.Queue                   { return f.queue }
func (f *Frontend) QueueIndex() uint32                { return f.queueFamily }

func (f *Frontend) GetInstanceProcAddr() unsafe.Pointer {
	return f.platform.GetInstanceProcAddr()
}

func (f *Frontend) SetImage(image *libretro.Image, semaphores []vk.Semaphore, srcQueueFamily uint32) {
	f.image = image
	f.semaphores = append(f.semaphores[:0], semaphores...)
	if srcQueueFamily != vk.QueueFamilyIgnored && srcQueueFamily != f.queueFamily {
		core.LogWarn("image released from queue family %d, frontend uses %d", srcQueueFamily, f.queueFamily)
	}
}

func (f *Frontend) SyncIndex() uint32 {
	return f.index
}

func (f *Frontend) SyncIndexMask() uint32 {
	return syncIndexMask(uint32(len(f.slots)))
}

func syncIndexMask(images uint32) uint32 {
	if images >= 32 {
		return math.MaxUint32
	}
	return 1<<images - 1
}

func (f *Frontend) SetCommandBuffers(buffers []vk.CommandBuffer) {
	f.commandBuffers = append(f.commandBuffers[:0], buffers...)
}

// WaitSyncIndex blocks until the submission that last used the current
// index has completed.
func (f *Frontend) WaitSyncIndex() {
	if err := f.slots[f.index].fence.Wait(f.vkDevice, fenceTimeoutNs); err != nil {
		core.LogError("failed to wait for sync index %d: %s", f.index, err)
	}
}

func (f *Frontend) LockQueue() {
	f.locks.LockQueue(f.queueFamily)
}

func (f *Frontend) UnlockQueue() {
	f.locks.UnlockQueue(f.queueFamily)
}

// Frames is the number of frames presented so far.
func (f *Frontend) Frames() uint64 {
	return f.frames
}

// Present submits the command buffers the core queued followed by the
// frontend's own copy work for the current index, presents in window mode
// and advances the sync index.
func (f *Frontend) Present() error {
	slot := f.slots[f.index]
	if err := slot.fence.Wait(f.vkDevice, fenceTimeoutNs); err != nil {
		return err
	}

	if f.swapchain != nil && f.platform.Resized() {
		if err := f.recreateSwapchain(); err != nil {
			return err
		}
	}

	cb := slot.commandBuffer
	if err := cb.Reset(f.vkDevice); err != nil {
		return err
	}
	if err := cb.Begin(f.vkDevice, true, false, false); err != nil {
		return err
	}

	waits := append([]vk.Semaphore{}, f.semaphores...)
	present := false
	var imageIndex uint32
	if f.swapchain != nil && f.image != nil {
		index, err := f.swapchain.AcquireNextImage(slot.imageAvailable)
		switch {
		case errors.Is(err, errSwapchainOutOfDate):
			// Skip presenting this frame, the core's work still runs.
			if err := f.recreateSwapchain(); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			imageIndex = index
			present = true
			waits = append(waits, slot.imageAvailable)
			f.recordBlit(cb.Handle, f.swapchain.Images[imageIndex])
		}
	}
	if err := cb.End(f.vkDevice); err != nil {
		return err
	}

	stages := make([]vk.PipelineStageFlags, len(waits))
	for i := range stages {
		stages[i] = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	}
	buffers := append(append([]vk.CommandBuffer{}, f.commandBuffers...), cb.Handle)
	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		PWaitDstStageMask:  stages,
		CommandBufferCount: uint32(len(buffers)),
		PCommandBuffers:    buffers,
	}
	if present {
		submitInfo.SignalSemaphoreCount = 1
		submitInfo.PSignalSemaphores = []vk.Semaphore{slot.renderComplete}
	}

	if err := slot.fence.Reset(f.vkDevice); err != nil {
		return err
	}
	var presentErr error
	err := f.locks.SafeQueueCall(f.queueFamily, func() error {
		if err := f.vkDevice.QueueSubmit(f.queue, []vk.SubmitInfo{submitInfo}, slot.fence.Handle); err != nil {
			return err
		}
		cb.UpdateSubmitted()
		if present {
			presentErr = f.swapchain.Present(f.queue, slot.renderComplete, imageIndex)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if errors.Is(presentErr, errSwapchainOutOfDate) {
		if err := f.recreateSwapchain(); err != nil {
			return err
		}
	} else if presentErr != nil {
		return presentErr
	}

	f.commandBuffers = f.commandBuffers[:0]
	f.semaphores = f.semaphores[:0]
	f.index = (f.index + 1) % uint32(len(f.slots))
	f.frames++
	return nil
}

// recordBlit scales the core's image onto the swapchain image and leaves
// the core's image in the layout it was handed over in.
func (f *Frontend) recordBlit(cb vk.CommandBuffer, target vk.Image) {
	source := f.image.CreateInfo.Image
	f.vkDevice.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		[]vk.ImageMemoryBarrier{
			transferBarrier(source,
				vk.AccessFlags(vk.AccessShaderReadBit), vk.AccessFlags(vk.AccessTransferReadBit),
				f.image.ImageLayout, vk.ImageLayoutTransferSrcOptimal),
			transferBarrier(target,
				0, vk.AccessFlags(vk.AccessTransferWriteBit),
				vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal),
		})

	extent := f.swapchain.Extent
	f.vkDevice.CmdBlitImage(cb,
		source, vk.ImageLayoutTransferSrcOptimal,
		target, vk.ImageLayoutTransferDstOptimal,
		[]vk.ImageBlit{{
			SrcSubresource: colorLayers(),
			SrcOffsets:     [2]vk.Offset3D{{}, {X: int32(f.width), Y: int32(f.height), Z: 1}},
			DstSubresource: colorLayers(),
			DstOffsets:     [2]vk.Offset3D{{}, {X: int32(extent.Width), Y: int32(extent.Height), Z: 1}},
		}})

	f.vkDevice.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		[]vk.ImageMemoryBarrier{
			transferBarrier(source,
				vk.AccessFlags(vk.AccessTransferReadBit), vk.AccessFlags(vk.AccessShaderReadBit),
				vk.ImageLayoutTransferSrcOptimal, f.image.ImageLayout),
			transferBarrier(target,
				vk.AccessFlags(vk.AccessTransferWriteBit), vk.AccessFlags(vk.AccessMemoryReadBit),
				vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutPresentSrc),
		})
}

func (f *Frontend) recreateSwapchain() error {
	width, height := f.platform.FramebufferSize()
	if width == 0 || height == 0 {
		// Minimized, keep the old swapchain until there is something to draw.
		return nil
	}
	core.LogDebug("Recreating swapchain at %dx%d", width, height)
	return f.swapchain.Recreate(width, height)
}

func transferBarrier(image vk.Image, srcAccess, dstAccess vk.AccessFlags, oldLayout, newLayout vk.ImageLayout) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}
}

func colorLayers() vk.ImageSubresourceLayers {
	return vk.ImageSubresourceLayers{
		AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LayerCount: 1,
	}
}

// Close waits for the device and releases everything in reverse creation
// order. It is safe on a partially initialized frontend.
func (f *Frontend) Close() {
	if f.vkDevice != nil {
		if err := f.vkDevice.WaitIdle(); err != nil {
			core.LogWarn("failed to wait for the device: %s", err)
		}
		for i := len(f.slots) - 1; i >= 0; i-- {
			f.destroySlot(f.slots[i])
		}
		f.slots = nil
	}
	if f.swapchain != nil {
		f.swapchain.Destroy()
		f.swapchain = nil
	}
	if f.device != nil {
		vk.DestroyDevice(f.device, nil)
		f.device = nil
		f.vkDevice = nil
	}
	if f.surface != vk.NullSurface {
		vk.DestroySurface(f.instance, f.surface, nil)
		f.surface = vk.NullSurface
	}
	if f.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(f.instance, f.debugCallback, nil)
		f.debugCallback = vk.NullDebugReportCallback
	}
	if f.instance != nil {
		vk.DestroyInstance(f.instance, nil)
		f.instance = nil
	}
	core.LogDebug("Frontend closed")
}
