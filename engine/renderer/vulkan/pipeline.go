package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
)

// VulkanPipeline holds the graphics pipeline and every object it was built
// against. It is created once and shared read-only by all frames.
type VulkanPipeline struct {
	// The internal pipeline handle.
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout
	SetLayout      vk.DescriptorSetLayout
	Cache          vk.PipelineCache
	Renderpass     *VulkanRenderpass
}

type VulkanPipelineConfig struct {
	Format     vk.Format
	Width      uint32
	Height     uint32
	ClearColor [4]float32
	// SPIR-V blobs for the two stages.
	VertexShader   []byte
	FragmentShader []byte
}

// vertexAttributes describe metadata.Vertex: position and color as vec4,
// the normal as vec3.
func vertexAttributes() []vk.VertexInputAttributeDescription {
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: metadata.PositionOffset},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: metadata.ColorOffset},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: metadata.NormalOffset},
	}
}

// BuildPipeline creates, in order, the descriptor set layout, the pipeline
// layout, the render pass, the pipeline cache and the graphics pipeline.
// The shader modules only live for the duration of the call. On failure
// everything created so far is destroyed.
func BuildPipeline(device Device, config *VulkanPipelineConfig) (*VulkanPipeline, error) {
	if err := ValidateSPIRV(config.VertexShader); err != nil {
		core.LogError("vertex shader rejected: %s", err)
		return nil, err
	}
	if err := ValidateSPIRV(config.FragmentShader); err != nil {
		core.LogError("fragment shader rejected: %s", err)
		return nil, err
	}

	outPipeline := &VulkanPipeline{}
	fail := func(err error) (*VulkanPipeline, error) {
		outPipeline.Destroy(device)
		return nil, err
	}

	setLayout, err := createUniformSetLayout(device)
	if err != nil {
		return fail(err)
	}
	outPipeline.SetLayout = setLayout

	pipelineLayoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: 1,
		PSetLayouts:    []vk.DescriptorSetLayout{setLayout},
	}
	pipelineLayout, err := device.CreatePipelineLayout(&pipelineLayoutCreateInfo)
	if err != nil {
		core.LogError("failed to create pipeline layout: %s", err)
		return fail(err)
	}
	outPipeline.PipelineLayout = pipelineLayout

	c := config.ClearColor
	renderpass, err := RenderpassCreate(device, config.Format, 0, 0, float32(config.Width), float32(config.Height), c[0], c[1], c[2], c[3])
	if err != nil {
		return fail(err)
	}
	outPipeline.Renderpass = renderpass

	cache, err := device.CreatePipelineCache(&vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	})
	if err != nil {
		core.LogError("failed to create pipeline cache: %s", err)
		return fail(err)
	}
	outPipeline.Cache = cache

	vertexStage, err := NewShaderModule(device, config.VertexShader, vk.ShaderStageVertexBit)
	if err != nil {
		return fail(err)
	}

	fragmentStage, err := NewShaderModule(device, config.FragmentShader, vk.ShaderStageFragmentBit)
	if err != nil {
		vertexStage.Destroy(device)
		return fail(err)
	}

	handle, err := device.CreateGraphicsPipeline(cache, graphicsPipelineInfo(
		pipelineLayout,
		renderpass.Handle,
		[]vk.PipelineShaderStageCreateInfo{vertexStage.ShaderStageCreateInfo, fragmentStage.ShaderStageCreateInfo},
	))
	// The modules are only needed while the pipeline is compiled.
	vertexStage.Destroy(device)
	fragmentStage.Destroy(device)
	if err != nil {
		core.LogError("failed to create graphics pipeline: %s", err)
		return fail(err)
	}
	outPipeline.Handle = handle

	core.LogDebug("Graphics pipeline created!")
	return outPipeline, nil
}

func graphicsPipelineInfo(layout vk.PipelineLayout, renderPass vk.RenderPass, stages []vk.PipelineShaderStageCreateInfo) *vk.GraphicsPipelineCreateInfo {
	// Viewport and scissor are dynamic, only the counts matter here.
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizerCreateInfo := vk.PipelineRasterizationStateCreateInfo{
		SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
		DepthClampEnable:        vk.False,
		RasterizerDiscardEnable: vk.False,
		PolygonMode:             vk.PolygonModeFill,
		LineWidth:               1.0,
		CullMode:                vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:               vk.FrontFaceCounterClockwise,
		DepthBiasEnable:         vk.False,
	}

	multisamplingCreateInfo := vk.PipelineMultisampleStateCreateInfo{
		SType:                 vk.StructureTypePipelineMultisampleStateCreateInfo,
		SampleShadingEnable:   vk.False,
		RasterizationSamples:  vk.SampleCount1Bit,
		MinSampleShading:      1.0,
		AlphaToCoverageEnable: vk.False,
		AlphaToOneEnable:      vk.False,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:       vk.False,
		DepthWriteEnable:      vk.False,
		DepthBoundsTestEnable: vk.False,
		StencilTestEnable:     vk.False,
	}

	colorBlendAttachmentState := vk.PipelineColorBlendAttachmentState{
		BlendEnable: vk.False,
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}

	colorBlendStateCreateInfo := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		LogicOpEnable:   vk.False,
		LogicOp:         vk.LogicOpCopy,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{colorBlendAttachmentState},
	}

	dynamicStates := []vk.DynamicState{
		vk.DynamicStateViewport,
		vk.DynamicStateScissor,
	}
	dynamicStateCreateInfo := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	bindingDescription := vk.VertexInputBindingDescription{
		Binding:   0, // Binding index
		Stride:    metadata.VertexStride,
		InputRate: vk.VertexInputRateVertex, // Move to next data entry for each vertex.
	}
	attributes := vertexAttributes()
	vertexInputInfo := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   1,
		PVertexBindingDescriptions:      []vk.VertexInputBindingDescription{bindingDescription},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology:               vk.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: vk.False,
	}

	return &vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInputInfo,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizerCreateInfo,
		PMultisampleState:   &multisamplingCreateInfo,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlendStateCreateInfo,
		PDynamicState:       &dynamicStateCreateInfo,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineHandle:  vk.NullPipeline,
		BasePipelineIndex:   -1,
	}
}

// Destroy releases the objects in reverse creation order. It is safe on a
// partially built pipeline.
func (pipeline *VulkanPipeline) Destroy(device Device) {
	if pipeline.Handle != nil {
		device.DestroyPipeline(pipeline.Handle)
		pipeline.Handle = nil
	}
	if pipeline.Cache != nil {
		device.DestroyPipelineCache(pipeline.Cache)
		pipeline.Cache = nil
	}
	if pipeline.Renderpass != nil {
		pipeline.Renderpass.Destroy(device)
		pipeline.Renderpass = nil
	}
	if pipeline.PipelineLayout != nil {
		device.DestroyPipelineLayout(pipeline.PipelineLayout)
		pipeline.PipelineLayout = nil
	}
	if pipeline.SetLayout != nil {
		device.DestroyDescriptorSetLayout(pipeline.SetLayout)
		pipeline.SetLayout = nil
	}
}

// Bind binds the pipeline for graphics on commandBuffer.
func (pipeline *VulkanPipeline) Bind(recorder CommandRecorder, commandBuffer *VulkanCommandBuffer) {
	recorder.CmdBindPipeline(commandBuffer.Handle, pipeline.Handle)
}
