package vulkan

import "sync"

type LockGroup string

const (
	ResourceManagement        LockGroup = "resource_management"
	CommandBufferManagement   LockGroup = "command_buffer_management"
	RenderpassManagement      LockGroup = "renderpass_management"
	BufferManagement          LockGroup = "buffer_management"
	ImageManagement           LockGroup = "image_management"
	CommandPoolManagement     LockGroup = "command_pool_management"
	PipelineManagement        LockGroup = "pipeline_management"
	MemoryManagement          LockGroup = "memory_management"
	ShaderManagement          LockGroup = "shader_management"
	SynchronizationManagement LockGroup = "synchronization_management"
)

// VulkanLockPool hands out one mutex per object group and one per queue
// family. Vulkan requires external synchronization for pools and queues.
type VulkanLockPool struct {
	locks map[LockGroup]*sync.Mutex
	mu    sync.Mutex // Protects access to both maps

	queueMutexes map[uint32]*sync.Mutex // Queue family index as key
}

func NewVulkanLockPool() *VulkanLockPool {
	return &VulkanLockPool{
		locks:        make(map[LockGroup]*sync.Mutex),
		queueMutexes: make(map[uint32]*sync.Mutex),
	}
}

func (vs *VulkanLockPool) groupLock(group LockGroup) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.locks[group]; !exists {
		vs.locks[group] = &sync.Mutex{}
	}
	return vs.locks[group]
}

func (vs *VulkanLockPool) queueLock(index uint32) *sync.Mutex {
	vs.mu.Lock()
	defer vs.mu.Unlock()

	if _, exists := vs.queueMutexes[index]; !exists {
		vs.queueMutexes[index] = &sync.Mutex{}
	}
	return vs.queueMutexes[index]
}

// SafeCall runs fn while holding the group's mutex.
func (vs *VulkanLockPool) SafeCall(group LockGroup, fn func() error) error {
	l := vs.groupLock(group)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// SafeQueueCall runs fn while holding the mutex of the queue family.
func (vs *VulkanLockPool) SafeQueueCall(queueFamilyIndex uint32, fn func() error) error {
	l := vs.queueLock(queueFamilyIndex)
	l.Lock()
	defer l.Unlock()

	return fn()
}

// LockQueue and UnlockQueue split SafeQueueCall for callers that hold the
// queue across a call boundary.
func (vs *VulkanLockPool) LockQueue(queueFamilyIndex uint32) {
	vs.queueLock(queueFamilyIndex).Lock()
}

func (vs *VulkanLockPool) UnlockQueue(queueFamilyIndex uint32) {
	vs.queueLock(queueFamilyIndex).Unlock()
}
