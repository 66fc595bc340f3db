package vulkan

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
)

// SPIRVMagic is the first word of every SPIR-V module.
const SPIRVMagic uint32 = 0x07230203

// VulkanShaderStage is a single shader stage.
type VulkanShaderStage struct {
	// The internal shader module Handle.
	Handle vk.ShaderModule
	// The pipeline shader stage creation info.
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// ValidateSPIRV checks that code looks like a SPIR-V module: non-empty,
// made of whole words, and starting with the magic number.
func ValidateSPIRV(code []byte) error {
	if len(code) == 0 {
		return errors.Wrap(core.ErrInvalidShader, "empty shader blob")
	}
	if len(code)%4 != 0 {
		return errors.Wrapf(core.ErrInvalidShader, "shader blob of %d bytes is not a multiple of 4", len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != SPIRVMagic {
		return errors.Wrapf(core.ErrInvalidShader, "bad SPIR-V magic 0x%08x", magic)
	}
	return nil
}

// spirvWords reinterprets the blob as little-endian 32-bit words.
func spirvWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}

// NewShaderModule creates the module for one stage. The entry point is
// always main.
func NewShaderModule(device Device, code []byte, stage vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	if err := ValidateSPIRV(code); err != nil {
		return nil, err
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(len(code)),
		PCode:    spirvWords(code),
	}
	handle, err := device.CreateShaderModule(&createInfo)
	if err != nil {
		core.LogError("failed to create shader module: %s", err)
		return nil, err
	}

	return &VulkanShaderStage{
		Handle: handle,
		ShaderStageCreateInfo: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  stage,
			Module: handle,
			PName:  VulkanSafeString("main"),
		},
	}, nil
}

func (s *VulkanShaderStage) Destroy(device Device) {
	if s.Handle != nil {
		device.DestroyShaderModule(s.Handle)
		s.Handle = nil
	}
}
