// Package vulkantest provides recording fakes of the renderer's Vulkan device
// and of the frontend's hardware render interface. No GPU is needed: every
// handle is a unique host pointer and every call is logged.
package vulkantest

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
)

// Object is a handle created through the fake.
type Object struct {
	Kind   string
	Handle unsafe.Pointer
}

type Draw struct {
	CommandBuffer vk.CommandBuffer
	// VertexBuffer is the buffer bound at binding 0 when the draw was recorded.
	VertexBuffer  vk.Buffer
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

type Barrier struct {
	CommandBuffer vk.CommandBuffer
	SrcStage      vk.PipelineStageFlags
	DstStage      vk.PipelineStageFlags
	Image         vk.ImageMemoryBarrier
}

type Submit struct {
	Queue vk.Queue
	Infos []vk.SubmitInfo
	Fence vk.Fence
}

type failure struct {
	nth int
	err error
}

// Device records every call made through the renderer's Device interface.
// It is safe for use from one goroutine at a time.
type Device struct {
	Name  string
	Types []vk.MemoryType
	// MemoryTypeBits is reported in every memory requirement.
	MemoryTypeBits uint32

	Calls     []string
	Created   []Object
	Destroyed []Object
	// Invalid collects destroys of handles that are not alive.
	Invalid []Object

	Draws         []Draw
	Barriers      []Barrier
	Submits       []Submit
	RenderPasses  []vk.RenderPassCreateInfo
	Pipelines     []vk.GraphicsPipelineCreateInfo
	ShaderModules []vk.ShaderModuleCreateInfo
	Images        []vk.ImageCreateInfo
	Views         []vk.ImageViewCreateInfo
	Framebuffers  []vk.FramebufferCreateInfo
	CommandPools  []vk.CommandPoolCreateInfo
	BeginInfos    []vk.CommandBufferBeginInfo
	DescriptorOps []vk.WriteDescriptorSet
	RenderArea    []vk.RenderPassBeginInfo

	mu       sync.Mutex
	live     map[unsafe.Pointer]string
	sizes    map[unsafe.Pointer]vk.DeviceSize
	memory   map[unsafe.Pointer][]byte
	bound    map[unsafe.Pointer]vk.Buffer
	counts   map[string]int
	failures map[string]failure
}

// NewDevice returns a fake with two memory types: 0 is device local, 1 is
// host visible and coherent.
func NewDevice() *Device {
	return &Device{
		Name: "vulkantest",
		Types: []vk.MemoryType{
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit), HeapIndex: 0},
			{PropertyFlags: vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit), HeapIndex: 1},
		},
		MemoryTypeBits: 0x3,
		live:           make(map[unsafe.Pointer]string),
		sizes:          make(map[unsafe.Pointer]vk.DeviceSize),
		memory:         make(map[unsafe.Pointer][]byte),
		bound:          make(map[unsafe.Pointer]vk.Buffer),
		counts:         make(map[string]int),
		failures:       make(map[string]failure),
	}
}

// FailOn makes the nth call (1-based) to method return err. With nth 0
// every call fails.
func (d *Device) FailOn(method string, nth int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		err = errors.Newf("%s failed with VK_ERROR_OUT_OF_DEVICE_MEMORY", method)
	}
	d.failures[method] = failure{nth: nth, err: err}
}

// Count returns how many times method was called.
func (d *Device) Count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counts[method]
}

// Live returns the objects created and not destroyed yet.
func (d *Device) Live() []Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Object
	for _, o := range d.Created {
		if _, ok := d.live[o.Handle]; ok {
			out = append(out, o)
		}
	}
	return out
}

// MemoryContents returns a copy of the last bytes written to memory.
func (d *Device) MemoryContents(memory vk.DeviceMemory) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.memory[unsafe.Pointer(memory)]...)
}

// DestroyedKinds lists the kinds of destroyed objects in destruction order.
func (d *Device) DestroyedKinds() []string {
	kinds := make([]string, len(d.Destroyed))
	for i, o := range d.Destroyed {
		kinds[i] = o.Kind
	}
	return kinds
}

// CreatedKinds lists the kinds of created objects in creation order.
func (d *Device) CreatedKinds() []string {
	kinds := make([]string, len(d.Created))
	for i, o := range d.Created {
		kinds[i] = o.Kind
	}
	return kinds
}

func (d *Device) call(method string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = append(d.Calls, method)
	d.counts[method]++
	if f, ok := d.failures[method]; ok && (f.nth == 0 || f.nth == d.counts[method]) {
		return f.err
	}
	return nil
}

func (d *Device) create(kind string) unsafe.Pointer {
	d.mu.Lock()
	defer d.mu.Unlock()
	h := unsafe.Pointer(new([8]byte))
	d.live[h] = kind
	d.Created = append(d.Created, Object{Kind: kind, Handle: h})
	return h
}

func (d *Device) destroy(kind string, h unsafe.Pointer) {
	_ = d.call("Destroy" + kind)
	d.mu.Lock()
	defer d.mu.Unlock()
	o := Object{Kind: kind, Handle: h}
	if k, ok := d.live[h]; !ok || k != kind {
		d.Invalid = append(d.Invalid, o)
		return
	}
	delete(d.live, h)
	d.Destroyed = append(d.Destroyed, o)
}

func (d *Device) DeviceName() string {
	return d.Name
}

func (d *Device) MemoryTypes() []vk.MemoryType {
	return append([]vk.MemoryType(nil), d.Types...)
}

func (d *Device) CreateBuffer(info *vk.BufferCreateInfo) (vk.Buffer, error) {
	if err := d.call("CreateBuffer"); err != nil {
		return nil, err
	}
	h := d.create("Buffer")
	d.mu.Lock()
	d.sizes[h] = info.Size
	d.mu.Unlock()
	return vk.Buffer(h), nil
}

func (d *Device) DestroyBuffer(buffer vk.Buffer) {
	d.destroy("Buffer", unsafe.Pointer(buffer))
}

func (d *Device) BufferMemoryRequirements(buffer vk.Buffer) vk.MemoryRequirements {
	_ = d.call("BufferMemoryRequirements")
	d.mu.Lock()
	defer d.mu.Unlock()
	return vk.MemoryRequirements{
		Size:           d.sizes[unsafe.Pointer(buffer)],
		Alignment:      16,
		MemoryTypeBits: d.MemoryTypeBits,
	}
}

func (d *Device) BindBufferMemory(buffer vk.Buffer, memory vk.DeviceMemory) error {
	return d.call("BindBufferMemory")
}

func (d *Device) CreateImage(info *vk.ImageCreateInfo) (vk.Image, error) {
	if err := d.call("CreateImage"); err != nil {
		return nil, err
	}
	d.Images = append(d.Images, *info)
	h := d.create("Image")
	d.mu.Lock()
	d.sizes[h] = vk.DeviceSize(info.Extent.Width) * vk.DeviceSize(info.Extent.Height) * 4
	d.mu.Unlock()
	return vk.Image(h), nil
}

func (d *Device) DestroyImage(image vk.Image) {
	d.destroy("Image", unsafe.Pointer(image))
}

func (d *Device) ImageMemoryRequirements(image vk.Image) vk.MemoryRequirements {
	_ = d.call("ImageMemoryRequirements")
	d.mu.Lock()
	defer d.mu.Unlock()
	return vk.MemoryRequirements{
		Size:           d.sizes[unsafe.Pointer(image)],
		Alignment:      256,
		MemoryTypeBits: d.MemoryTypeBits,
	}
}

func (d *Device) BindImageMemory(image vk.Image, memory vk.DeviceMemory) error {
	return d.call("BindImageMemory")
}

func (d *Device) CreateImageView(info *vk.ImageViewCreateInfo) (vk.ImageView, error) {
	if err := d.call("CreateImageView"); err != nil {
		return nil, err
	}
	d.Views = append(d.Views, *info)
	return vk.ImageView(d.create("ImageView")), nil
}

func (d *Device) DestroyImageView(view vk.ImageView) {
	d.destroy("ImageView", unsafe.Pointer(view))
}

func (d *Device) AllocateMemory(info *vk.MemoryAllocateInfo) (vk.DeviceMemory, error) {
	if err := d.call("AllocateMemory"); err != nil {
		return nil, err
	}
	if int(info.MemoryTypeIndex) >= len(d.Types) {
		return nil, errors.Newf("memory type index %d out of range", info.MemoryTypeIndex)
	}
	h := d.create("Memory")
	d.mu.Lock()
	d.sizes[h] = info.AllocationSize
	d.mu.Unlock()
	return vk.DeviceMemory(h), nil
}

func (d *Device) FreeMemory(memory vk.DeviceMemory) {
	d.destroy("Memory", unsafe.Pointer(memory))
}

func (d *Device) WriteMemory(memory vk.DeviceMemory, offset vk.DeviceSize, data []byte) error {
	if err := d.call("WriteMemory"); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	h := unsafe.Pointer(memory)
	size, ok := d.sizes[h]
	if !ok {
		return errors.New("write to unknown memory")
	}
	if offset+vk.DeviceSize(len(data)) > size {
		return errors.Newf("write of %d bytes at %d overflows %d bytes", len(data), offset, size)
	}
	buf := d.memory[h]
	if buf == nil {
		buf = make([]byte, size)
	}
	copy(buf[offset:], data)
	d.memory[h] = buf
	return nil
}

func (d *Device) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	if err := d.call("CreateDescriptorSetLayout"); err != nil {
		return nil, err
	}
	return vk.DescriptorSetLayout(d.create("DescriptorSetLayout")), nil
}

func (d *Device) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	d.destroy("DescriptorSetLayout", unsafe.Pointer(layout))
}

func (d *Device) CreateDescriptorPool(info *vk.DescriptorPoolCreateInfo) (vk.DescriptorPool, error) {
	if err := d.call("CreateDescriptorPool"); err != nil {
		return nil, err
	}
	return vk.DescriptorPool(d.create("DescriptorPool")), nil
}

func (d *Device) DestroyDescriptorPool(pool vk.DescriptorPool) {
	d.destroy("DescriptorPool", unsafe.Pointer(pool))
}

// AllocateDescriptorSets hands out sets that are freed with their pool, so
// they are not tracked as live objects.
func (d *Device) AllocateDescriptorSets(info *vk.DescriptorSetAllocateInfo) ([]vk.DescriptorSet, error) {
	if err := d.call("AllocateDescriptorSets"); err != nil {
		return nil, err
	}
	sets := make([]vk.DescriptorSet, info.DescriptorSetCount)
	for i := range sets {
		sets[i] = vk.DescriptorSet(unsafe.Pointer(new([8]byte)))
	}
	return sets, nil
}

func (d *Device) UpdateDescriptorSets(writes []vk.WriteDescriptorSet) {
	_ = d.call("UpdateDescriptorSets")
	d.DescriptorOps = append(d.DescriptorOps, writes...)
}

func (d *Device) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	if err := d.call("CreatePipelineLayout"); err != nil {
		return nil, err
	}
	return vk.PipelineLayout(d.create("PipelineLayout")), nil
}

func (d *Device) DestroyPipelineLayout(layout vk.PipelineLayout) {
	d.destroy("PipelineLayout", unsafe.Pointer(layout))
}

func (d *Device) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	if err := d.call("CreateRenderPass"); err != nil {
		return nil, err
	}
	d.RenderPasses = append(d.RenderPasses, *info)
	return vk.RenderPass(d.create("RenderPass")), nil
}

func (d *Device) DestroyRenderPass(renderPass vk.RenderPass) {
	d.destroy("RenderPass", unsafe.Pointer(renderPass))
}

func (d *Device) CreateShaderModule(info *vk.ShaderModuleCreateInfo) (vk.ShaderModule, error) {
	if err := d.call("CreateShaderModule"); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.ShaderModules = append(d.ShaderModules, *info)
	d.mu.Unlock()
	return vk.ShaderModule(d.create("ShaderModule")), nil
}

func (d *Device) DestroyShaderModule(module vk.ShaderModule) {
	d.destroy("ShaderModule", unsafe.Pointer(module))
}

func (d *Device) CreatePipelineCache(info *vk.PipelineCacheCreateInfo) (vk.PipelineCache, error) {
	if err := d.call("CreatePipelineCache"); err != nil {
		return nil, err
	}
	return vk.PipelineCache(d.create("PipelineCache")), nil
}

func (d *Device) DestroyPipelineCache(cache vk.PipelineCache) {
	d.destroy("PipelineCache", unsafe.Pointer(cache))
}

func (d *Device) CreateGraphicsPipeline(cache vk.PipelineCache, info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	if err := d.call("CreateGraphicsPipeline"); err != nil {
		return nil, err
	}
	d.Pipelines = append(d.Pipelines, *info)
	return vk.Pipeline(d.create("Pipeline")), nil
}

func (d *Device) DestroyPipeline(pipeline vk.Pipeline) {
	d.destroy("Pipeline", unsafe.Pointer(pipeline))
}

func (d *Device) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	if err := d.call("CreateFramebuffer"); err != nil {
		return nil, err
	}
	d.Framebuffers = append(d.Framebuffers, *info)
	return vk.Framebuffer(d.create("Framebuffer")), nil
}

func (d *Device) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	d.destroy("Framebuffer", unsafe.Pointer(framebuffer))
}

func (d *Device) CreateCommandPool(info *vk.CommandPoolCreateInfo) (vk.CommandPool, error) {
	if err := d.call("CreateCommandPool"); err != nil {
		return nil, err
	}
	d.CommandPools = append(d.CommandPools, *info)
	return vk.CommandPool(d.create("CommandPool")), nil
}

func (d *Device) DestroyCommandPool(pool vk.CommandPool) {
	d.destroy("CommandPool", unsafe.Pointer(pool))
}

func (d *Device) AllocateCommandBuffer(info *vk.CommandBufferAllocateInfo) (vk.CommandBuffer, error) {
	if err := d.call("AllocateCommandBuffer"); err != nil {
		return nil, err
	}
	return vk.CommandBuffer(d.create("CommandBuffer")), nil
}

func (d *Device) FreeCommandBuffer(pool vk.CommandPool, buffer vk.CommandBuffer) {
	d.destroy("CommandBuffer", unsafe.Pointer(buffer))
}

func (d *Device) CreateFence(info *vk.FenceCreateInfo) (vk.Fence, error) {
	if err := d.call("CreateFence"); err != nil {
		return nil, err
	}
	return vk.Fence(d.create("Fence")), nil
}

func (d *Device) DestroyFence(fence vk.Fence) {
	d.destroy("Fence", unsafe.Pointer(fence))
}

func (d *Device) WaitForFence(fence vk.Fence, timeoutNs uint64) error {
	return d.call("WaitForFence")
}

func (d *Device) ResetFence(fence vk.Fence) error {
	return d.call("ResetFence")
}

func (d *Device) CreateSemaphore(info *vk.SemaphoreCreateInfo) (vk.Semaphore, error) {
	if err := d.call("CreateSemaphore"); err != nil {
		return nil, err
	}
	return vk.Semaphore(d.create("Semaphore")), nil
}

func (d *Device) DestroySemaphore(semaphore vk.Semaphore) {
	d.destroy("Semaphore", unsafe.Pointer(semaphore))
}

func (d *Device) QueueSubmit(queue vk.Queue, submits []vk.SubmitInfo, fence vk.Fence) error {
	if err := d.call("QueueSubmit"); err != nil {
		return err
	}
	d.Submits = append(d.Submits, Submit{Queue: queue, Infos: submits, Fence: fence})
	return nil
}

func (d *Device) WaitIdle() error {
	return d.call("WaitIdle")
}

func (d *Device) ResetCommandBuffer(buffer vk.CommandBuffer) error {
	return d.call("ResetCommandBuffer")
}

func (d *Device) BeginCommandBuffer(buffer vk.CommandBuffer, info *vk.CommandBufferBeginInfo) error {
	if err := d.call("BeginCommandBuffer"); err != nil {
		return err
	}
	d.BeginInfos = append(d.BeginInfos, *info)
	return nil
}

func (d *Device) EndCommandBuffer(buffer vk.CommandBuffer) error {
	return d.call("EndCommandBuffer")
}

func (d *Device) CmdPipelineBarrier(buffer vk.CommandBuffer, srcStage, dstStage vk.PipelineStageFlags, barriers []vk.ImageMemoryBarrier) {
	_ = d.call("CmdPipelineBarrier")
	for _, b := range barriers {
		d.Barriers = append(d.Barriers, Barrier{
			CommandBuffer: buffer,
			SrcStage:      srcStage,
			DstStage:      dstStage,
			Image:         b,
		})
	}
}

func (d *Device) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	_ = d.call("CmdBeginRenderPass")
	d.RenderArea = append(d.RenderArea, *info)
}

func (d *Device) CmdEndRenderPass(buffer vk.CommandBuffer) {
	_ = d.call("CmdEndRenderPass")
}

func (d *Device) CmdBindPipeline(buffer vk.CommandBuffer, pipeline vk.Pipeline) {
	_ = d.call("CmdBindPipeline")
}

func (d *Device) CmdBindDescriptorSets(buffer vk.CommandBuffer, layout vk.PipelineLayout, sets []vk.DescriptorSet) {
	_ = d.call("CmdBindDescriptorSets")
}

func (d *Device) CmdSetViewport(buffer vk.CommandBuffer, viewports []vk.Viewport) {
	_ = d.call("CmdSetViewport")
}

func (d *Device) CmdSetScissor(buffer vk.CommandBuffer, scissors []vk.Rect2D) {
	_ = d.call("CmdSetScissor")
}

func (d *Device) CmdBindVertexBuffers(buffer vk.CommandBuffer, buffers []vk.Buffer, offsets []vk.DeviceSize) {
	_ = d.call("CmdBindVertexBuffers")
	if len(buffers) > 0 {
		d.mu.Lock()
		d.bound[unsafe.Pointer(buffer)] = buffers[0]
		d.mu.Unlock()
	}
}

func (d *Device) CmdDraw(buffer vk.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	_ = d.call("CmdDraw")
	d.mu.Lock()
	vb := d.bound[unsafe.Pointer(buffer)]
	d.mu.Unlock()
	d.Draws = append(d.Draws, Draw{
		CommandBuffer: buffer,
		VertexBuffer:  vb,
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	})
}

// ResetRecording clears the recorded commands, keeping live objects and failures.
func (d *Device) ResetRecording() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls = nil
	d.Draws = nil
	d.Barriers = nil
	d.Submits = nil
	d.RenderArea = nil
	d.BeginInfos = nil
}

func (o Object) String() string {
	return fmt.Sprintf("%s(%p)", o.Kind, o.Handle)
}
