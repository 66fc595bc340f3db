package vulkan

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/config"
	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/libretro"
	vmath "github.com/spaghettifunk/volcano/engine/math"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
)

// State is the position of the renderer in its per-frame cycle.
type State int

const (
	StateIdle State = iota
	StateAcquireIndex
	StateUpdateUniform
	StateRecordCommands
	StateSubmit
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquireIndex:
		return "acquire index"
	case StateUpdateUniform:
		return "update uniform"
	case StateRecordCommands:
		return "record commands"
	case StateSubmit:
		return "submit"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats describes the last completed frame.
type Stats struct {
	Frames        uint64
	LastDrawCount int
	LastIndex     uint32
}

type Option func(*Renderer)

// WithDeviceOpener replaces OpenDevice, mostly for tests.
func WithDeviceOpener(opener DeviceOpener) Option {
	return func(r *Renderer) {
		r.openDevice = opener
	}
}

// WithStateObserver registers fn to be called on every state change.
func WithStateObserver(fn func(State)) Option {
	return func(r *Renderer) {
		r.observer = fn
	}
}

// Renderer owns every GPU object the core creates and drives one frame per
// Render call.
type Renderer struct {
	config     config.RendererConfig
	openDevice DeviceOpener
	observer   func(State)

	hw       libretro.HWRenderInterface
	device   Device
	pipeline *VulkanPipeline
	ring     *FrameRing
	meshes   *MeshStore

	// model spins every frame under a fixed placement parent.
	model *vmath.Transform
	state State
	// frame is never reset, the animation continues across Destroy/Init.
	frame uint64
	stats Stats
}

func NewRenderer(cfg config.RendererConfig, opts ...Option) *Renderer {
	placement := vmath.TransformCreate()
	placement.SetPosition(mgl32.Vec3(cfg.Position))
	placement.SetScale(mgl32.Vec3{cfg.Scale, cfg.Scale, cfg.Scale})
	model := vmath.TransformCreate()
	model.Parent = placement

	r := &Renderer{
		config:     cfg,
		openDevice: OpenDevice,
		model:      model,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Init resolves the device, builds the pipeline and sizes the frame ring
// from the frontend's sync index mask. A failure tears down whatever was
// built and is marked with core.ErrInitializationFailed.
func (r *Renderer) Init(hw libretro.HWRenderInterface, vertexShader, fragmentShader []byte) error {
	if r.device != nil {
		return core.InitializationFailed(errors.New("renderer already initialized"), "renderer")
	}
	r.hw = hw

	device, err := r.openDevice(hw)
	if err != nil {
		core.LogError("failed to open device: %s", err)
		return core.InitializationFailed(err, "device")
	}
	r.device = device
	core.LogInfo("Using device: %s", device.DeviceName())

	size, err := RingSizeFromMask(hw.SyncIndexMask(), r.config.MaxSync)
	if err != nil {
		r.teardown()
		core.LogError("invalid sync index mask: %s", err)
		return core.InitializationFailed(err, "sync index mask")
	}

	core.LogDebug("Building graphics pipeline...")
	pipeline, err := BuildPipeline(device, &VulkanPipelineConfig{
		Format:         RenderTargetFormat,
		Width:          r.config.Width,
		Height:         r.config.Height,
		ClearColor:     r.config.ClearColor,
		VertexShader:   vertexShader,
		FragmentShader: fragmentShader,
	})
	if err != nil {
		r.teardown()
		return core.InitializationFailed(err, "pipeline")
	}
	r.pipeline = pipeline

	core.LogDebug("Building frame ring...")
	ring, err := NewFrameRing(device, pipeline, size, FrameRingConfig{
		Width:            r.config.Width,
		Height:           r.config.Height,
		QueueFamilyIndex: hw.QueueIndex(),
		SlotFences:       r.config.SlotFences,
	})
	if err != nil {
		r.teardown()
		return core.InitializationFailed(err, "frame ring")
	}
	r.ring = ring
	r.meshes = NewMeshStore(device)

	core.LogInfo("Renderer initialized: ring size %d, %dx%d, slot fences %t", size, r.config.Width, r.config.Height, r.config.SlotFences)
	return nil
}

// AddMesh uploads data and appends it to the mesh store. It must be called
// between frames, on the render goroutine.
func (r *Renderer) AddMesh(data *metadata.MeshData) (*Mesh, error) {
	if r.meshes == nil {
		return nil, errors.Wrap(core.ErrNotInitialized, "add mesh")
	}
	return r.meshes.Add(data)
}

// Meshes returns the stored meshes in append order.
func (r *Renderer) Meshes() []*Mesh {
	if r.meshes == nil {
		return nil
	}
	return r.meshes.Meshes()
}

func (r *Renderer) State() State {
	return r.state
}

func (r *Renderer) Stats() Stats {
	return r.stats
}

// RingSize is the number of frame slots, zero before Init.
func (r *Renderer) RingSize() uint32 {
	if r.ring == nil {
		return 0
	}
	return r.ring.Size()
}

func (r *Renderer) setState(s State) {
	r.state = s
	if r.observer != nil {
		r.observer(s)
	}
}

// Render runs one cycle of the frame state machine. Any error is marked
// with core.ErrFrameFailed and leaves the renderer Idle.
func (r *Renderer) Render() error {
	if r.ring == nil {
		return errors.Wrap(core.ErrNotInitialized, "render")
	}
	defer r.setState(StateIdle)

	r.setState(StateAcquireIndex)
	slot, err := r.acquireIndex()
	if err != nil {
		return r.frameFailed(err)
	}

	r.setState(StateUpdateUniform)
	if err := r.updateUniform(slot); err != nil {
		return r.frameFailed(err)
	}

	r.setState(StateRecordCommands)
	draws, err := r.recordCommands(slot)
	if err != nil {
		return r.frameFailed(err)
	}

	r.setState(StateSubmit)
	if err := r.submit(slot); err != nil {
		return r.frameFailed(err)
	}

	r.stats.Frames++
	r.stats.LastDrawCount = draws
	r.stats.LastIndex = slot.Index
	core.LogDebug("frame %d: slot %d, %d draws", r.stats.Frames, slot.Index, draws)
	return nil
}

func (r *Renderer) frameFailed(err error) error {
	err = core.FrameFailed(err, r.state.String())
	core.LogError("%s", err)
	return err
}

func (r *Renderer) acquireIndex() (*FrameSlot, error) {
	r.hw.WaitSyncIndex()
	slot, err := r.ring.Slot(r.hw.SyncIndex())
	if err != nil {
		return nil, err
	}
	if slot.Fence != nil {
		if err := slot.Fence.Wait(r.device, vk.MaxUint64); err != nil {
			return nil, err
		}
	}
	return slot, nil
}

func (r *Renderer) updateUniform(slot *FrameSlot) error {
	r.model.SetRotation(vmath.FrameRotation(r.frame, r.config.RotationStep, r.config.Tilt))
	if err := slot.Uniform.Write(vmath.Mat4Bytes(r.model.GetWorld())); err != nil {
		return err
	}
	r.frame++
	return nil
}

func (r *Renderer) recordCommands(slot *FrameSlot) (int, error) {
	cb := slot.CommandBuffer
	if err := cb.Reset(r.device); err != nil {
		return 0, err
	}
	if err := cb.Begin(r.device, true, false, false); err != nil {
		return 0, err
	}

	// Whatever the frontend left in the image is discarded.
	r.device.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		[]vk.ImageMemoryBarrier{imageBarrier(slot.Image.Handle,
			0, vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			vk.ImageLayoutUndefined, vk.ImageLayoutColorAttachmentOptimal)})

	r.pipeline.Renderpass.Begin(r.device, cb, slot.Framebuffer.Handle)
	r.pipeline.Bind(r.device, cb)
	r.device.CmdBindDescriptorSets(cb.Handle, r.pipeline.PipelineLayout, []vk.DescriptorSet{slot.DescriptorSet})

	width, height := slot.Framebuffer.Width, slot.Framebuffer.Height
	r.device.CmdSetViewport(cb.Handle, []vk.Viewport{{
		X:        0,
		Y:        0,
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: 0.0,
		MaxDepth: 1.0,
	}})
	r.device.CmdSetScissor(cb.Handle, []vk.Rect2D{{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: vk.Extent2D{Width: width, Height: height},
	}})

	draws := 0
	for _, mesh := range r.meshes.meshes {
		r.device.CmdBindVertexBuffers(cb.Handle, []vk.Buffer{mesh.Buffer.Handle}, []vk.DeviceSize{0})
		r.device.CmdDraw(cb.Handle, mesh.VertexCount, 1, 0, 0)
		draws++
	}

	r.pipeline.Renderpass.End(r.device, cb)

	// Hand the image over for sampling by the frontend.
	r.device.CmdPipelineBarrier(cb.Handle,
		vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		[]vk.ImageMemoryBarrier{imageBarrier(slot.Image.Handle,
			vk.AccessFlags(vk.AccessColorAttachmentWriteBit), vk.AccessFlags(vk.AccessShaderReadBit),
			vk.ImageLayoutColorAttachmentOptimal, vk.ImageLayoutShaderReadOnlyOptimal)})

	if err := cb.End(r.device); err != nil {
		return 0, err
	}
	return draws, nil
}

func imageBarrier(image vk.Image, srcAccess, dstAccess vk.AccessFlags, oldLayout, newLayout vk.ImageLayout) vk.ImageMemoryBarrier {
	return vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange:    colorSubresourceRange(),
	}
}

func (r *Renderer) submit(slot *FrameSlot) error {
	cb := slot.CommandBuffer
	image := &libretro.Image{
		ImageView:   slot.Image.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		CreateInfo:  slot.Image.ViewInfo,
	}

	if slot.Fence == nil {
		r.hw.SetImage(image, nil, vk.QueueFamilyIgnored)
		r.hw.SetCommandBuffers([]vk.CommandBuffer{cb.Handle})
		cb.UpdateSubmitted()
		return nil
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cb.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{slot.Semaphore},
	}
	// The fence is reset only once a submission is about to signal it again.
	if err := slot.Fence.Reset(r.device); err != nil {
		return err
	}
	r.hw.LockQueue()
	err := r.device.QueueSubmit(r.hw.Queue(), []vk.SubmitInfo{submitInfo}, slot.Fence.Handle)
	r.hw.UnlockQueue()
	if err != nil {
		// Nothing was queued, so no wait on this slot may block.
		slot.Fence.IsSignaled = true
		return err
	}
	cb.UpdateSubmitted()

	r.hw.SetImage(image, []vk.Semaphore{slot.Semaphore}, r.hw.QueueIndex())
	r.hw.SetCommandBuffers(nil)
	return nil
}

// Destroy waits for the device and releases meshes, frame ring and pipeline
// in reverse creation order. The renderer can be initialized again.
func (r *Renderer) Destroy() {
	if r.device == nil {
		return
	}
	if err := r.device.WaitIdle(); err != nil {
		core.LogWarn("device wait idle before teardown: %s", err)
	}
	r.teardown()
	core.LogDebug("Renderer destroyed")
}

func (r *Renderer) teardown() {
	if r.meshes != nil {
		r.meshes.Destroy()
		r.meshes = nil
	}
	if r.ring != nil {
		r.ring.Destroy()
		r.ring = nil
	}
	if r.pipeline != nil {
		r.pipeline.Destroy(r.device)
		r.pipeline = nil
	}
	r.device = nil
	r.hw = nil
	r.state = StateIdle
}
