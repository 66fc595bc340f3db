package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

// UniformBinding is the binding of the transform uniform buffer.
const UniformBinding uint32 = 0

// createUniformSetLayout creates a set layout with a single uniform buffer
// visible to the vertex stage.
func createUniformSetLayout(device Device) (vk.DescriptorSetLayout, error) {
	binding := vk.DescriptorSetLayoutBinding{
		Binding:         UniformBinding,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		DescriptorCount: 1,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit),
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings:    []vk.DescriptorSetLayoutBinding{binding},
	}
	layout, err := device.CreateDescriptorSetLayout(&info)
	if err != nil {
		core.LogError("failed to create descriptor set layout: %s", err)
		return nil, err
	}
	return layout, nil
}

// VulkanDescriptorPool holds exactly count uniform buffer sets, one per
// frame slot.
type VulkanDescriptorPool struct {
	Handle vk.DescriptorPool
	Sets   []vk.DescriptorSet

	device Device
}

func NewDescriptorPool(device Device, layout vk.DescriptorSetLayout, count uint32) (*VulkanDescriptorPool, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       count,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeUniformBuffer,
			DescriptorCount: count,
		}},
	}
	handle, err := device.CreateDescriptorPool(&poolInfo)
	if err != nil {
		core.LogError("failed to create descriptor pool: %s", err)
		return nil, err
	}
	pool := &VulkanDescriptorPool{Handle: handle, device: device}

	layouts := make([]vk.DescriptorSetLayout, count)
	for i := range layouts {
		layouts[i] = layout
	}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     handle,
		DescriptorSetCount: count,
		PSetLayouts:        layouts,
	}
	sets, err := device.AllocateDescriptorSets(&allocInfo)
	if err != nil {
		pool.Destroy()
		core.LogError("failed to allocate descriptor sets: %s", err)
		return nil, err
	}
	pool.Sets = sets
	return pool, nil
}

// BindUniform points set at the whole of buffer.
func (p *VulkanDescriptorPool) BindUniform(set vk.DescriptorSet, buffer *VulkanBuffer) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      UniformBinding,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.Handle,
			Offset: 0,
			Range:  buffer.Size,
		}},
	}
	p.device.UpdateDescriptorSets([]vk.WriteDescriptorSet{write})
}

// Destroy releases the pool and with it every set allocated from it.
func (p *VulkanDescriptorPool) Destroy() {
	if p.Handle != nil {
		p.device.DestroyDescriptorPool(p.Handle)
		p.Handle = nil
	}
	p.Sets = nil
}
