package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

// FindMemoryType returns the lowest memory type index whose bit is set in
// typeFilter and whose property flags contain all of propertyFlags.
func FindMemoryType(types []vk.MemoryType, typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < uint32(len(types)) && i < 32; i++ {
		// Check each memory type to see if its bit is set to 1.
		if typeFilter&(1<<i) == 0 {
			continue
		}
		if types[i].PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return 0, errors.Wrapf(core.ErrNoSuitableMemoryType, "type bits 0x%x, property flags 0x%x", typeFilter, uint32(propertyFlags))
}

// allocateFor allocates memory satisfying requirements and the property
// flags.
func allocateFor(device Device, requirements vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	index, err := FindMemoryType(device.MemoryTypes(), requirements.MemoryTypeBits, flags)
	if err != nil {
		return nil, err
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: index,
	}
	return device.AllocateMemory(&info)
}
