package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

// hostMemoryFlags are required for every buffer the CPU writes.
var hostMemoryFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
	Usage  vk.BufferUsageFlags

	device Device
}

// CreateBuffer creates a host-visible buffer and, when data is not nil,
// copies it in. On failure nothing created by the call is left behind.
func CreateBuffer(device Device, data []byte, size vk.DeviceSize, usage vk.BufferUsageFlags) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, errors.New("buffer size must be greater than zero")
	}
	if vk.DeviceSize(len(data)) > size {
		return nil, errors.Newf("buffer data of %d bytes does not fit in %d bytes", len(data), size)
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	handle, err := device.CreateBuffer(&bufferInfo)
	if err != nil {
		core.LogError("failed to create buffer: %s", err)
		return nil, err
	}

	memory, err := allocateFor(device, device.BufferMemoryRequirements(handle), hostMemoryFlags)
	if err != nil {
		device.DestroyBuffer(handle)
		core.LogError("failed to allocate buffer memory: %s", err)
		return nil, err
	}

	buffer := &VulkanBuffer{
		Handle: handle,
		Memory: memory,
		Size:   size,
		Usage:  usage,
		device: device,
	}

	if err := device.BindBufferMemory(handle, memory); err != nil {
		buffer.Destroy()
		core.LogError("failed to bind buffer memory: %s", err)
		return nil, err
	}

	if data != nil {
		if err := buffer.Write(data); err != nil {
			buffer.Destroy()
			return nil, err
		}
	}
	return buffer, nil
}

// Write copies data to the start of the buffer.
func (b *VulkanBuffer) Write(data []byte) error {
	if vk.DeviceSize(len(data)) > b.Size {
		return errors.Newf("write of %d bytes overflows buffer of %d bytes", len(data), b.Size)
	}
	if err := b.device.WriteMemory(b.Memory, 0, data); err != nil {
		core.LogError("failed to write buffer memory: %s", err)
		return err
	}
	return nil
}

// Destroy frees the buffer, then its memory.
func (b *VulkanBuffer) Destroy() {
	if b.Handle != nil {
		b.device.DestroyBuffer(b.Handle)
		b.Handle = nil
	}
	if b.Memory != nil {
		b.device.FreeMemory(b.Memory)
		b.Memory = nil
	}
}
