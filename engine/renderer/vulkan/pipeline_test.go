package vulkan_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan/vulkantest"
)

func pipelineConfig() *vulkan.VulkanPipelineConfig {
	return &vulkan.VulkanPipelineConfig{
		Format:         vulkan.RenderTargetFormat,
		Width:          1280,
		Height:         720,
		ClearColor:     [4]float32{0.8, 0.6, 0.2, 1.0},
		VertexShader:   vulkantest.SPIRV(8),
		FragmentShader: vulkantest.SPIRV(8),
	}
}

func TestBuildPipeline(t *testing.T) {
	dev := vulkantest.NewDevice()
	p, err := vulkan.BuildPipeline(dev, pipelineConfig())
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}

	wantCreated := []string{"DescriptorSetLayout", "PipelineLayout", "RenderPass", "PipelineCache", "ShaderModule", "ShaderModule", "Pipeline"}
	if got := dev.CreatedKinds(); !equalStrings(got, wantCreated) {
		t.Fatalf("creation order %v, want %v", got, wantCreated)
	}
	// Only the two shader modules are gone once the pipeline exists.
	if got := dev.DestroyedKinds(); !equalStrings(got, []string{"ShaderModule", "ShaderModule"}) {
		t.Fatalf("destroyed after build: %v", got)
	}

	// CodeSize is in bytes while PCode holds 32-bit words.
	for i, sm := range dev.ShaderModules {
		if sm.CodeSize != 8*4 || uint64(len(sm.PCode))*4 != sm.CodeSize {
			t.Errorf("shader module %d: code size %d with %d words", i, sm.CodeSize, len(sm.PCode))
		}
		if sm.PCode[0] != 0x07230203 {
			t.Errorf("shader module %d: magic %#x", i, sm.PCode[0])
		}
	}

	rp := dev.RenderPasses[0]
	if rp.AttachmentCount != 1 {
		t.Fatalf("expected one attachment, got %d", rp.AttachmentCount)
	}
	att := rp.PAttachments[0]
	if att.Format != vk.FormatR8g8b8a8Unorm {
		t.Errorf("attachment format %v", att.Format)
	}
	if att.InitialLayout != vk.ImageLayoutColorAttachmentOptimal || att.FinalLayout != vk.ImageLayoutColorAttachmentOptimal {
		t.Errorf("attachment layouts %v -> %v", att.InitialLayout, att.FinalLayout)
	}
	if att.LoadOp != vk.AttachmentLoadOpClear || att.StoreOp != vk.AttachmentStoreOpStore {
		t.Errorf("attachment ops %v/%v", att.LoadOp, att.StoreOp)
	}

	info := dev.Pipelines[0]
	if info.StageCount != 2 {
		t.Errorf("expected 2 stages, got %d", info.StageCount)
	}
	if info.PInputAssemblyState.Topology != vk.PrimitiveTopologyTriangleList {
		t.Errorf("topology %v", info.PInputAssemblyState.Topology)
	}
	raster := info.PRasterizationState
	if raster.CullMode != vk.CullModeFlags(vk.CullModeBackBit) || raster.FrontFace != vk.FrontFaceCounterClockwise {
		t.Errorf("rasterizer cull %v front %v", raster.CullMode, raster.FrontFace)
	}
	if info.PDepthStencilState.DepthTestEnable != vk.False {
		t.Error("depth test must be disabled")
	}
	dyn := info.PDynamicState.PDynamicStates
	if len(dyn) != 2 || dyn[0] != vk.DynamicStateViewport || dyn[1] != vk.DynamicStateScissor {
		t.Errorf("dynamic states %v", dyn)
	}

	vi := info.PVertexInputState
	if vi.PVertexBindingDescriptions[0].Stride != metadata.VertexStride || metadata.VertexStride != 44 {
		t.Errorf("vertex stride %d", vi.PVertexBindingDescriptions[0].Stride)
	}
	attrs := []struct {
		format vk.Format
		offset uint32
	}{
		{vk.FormatR32g32b32a32Sfloat, 0},
		{vk.FormatR32g32b32a32Sfloat, 16},
		{vk.FormatR32g32b32Sfloat, 32},
	}
	if int(vi.VertexAttributeDescriptionCount) != len(attrs) {
		t.Fatalf("expected %d attributes, got %d", len(attrs), vi.VertexAttributeDescriptionCount)
	}
	for i, want := range attrs {
		got := vi.PVertexAttributeDescriptions[i]
		if got.Location != uint32(i) || got.Format != want.format || got.Offset != want.offset {
			t.Errorf("attribute %d: %+v", i, got)
		}
	}
	for _, stage := range info.PStages {
		if stage.PName != "main\x00" {
			t.Errorf("entry point %q", stage.PName)
		}
	}

	p.Destroy(dev)
	wantDestroyed := []string{"ShaderModule", "ShaderModule", "Pipeline", "PipelineCache", "RenderPass", "PipelineLayout", "DescriptorSetLayout"}
	if got := dev.DestroyedKinds(); !equalStrings(got, wantDestroyed) {
		t.Fatalf("destroy order %v, want %v", got, wantDestroyed)
	}
	if live := dev.Live(); len(live) != 0 {
		t.Fatalf("objects leaked: %v", live)
	}
}

func TestBuildPipelineRejectsBadShaders(t *testing.T) {
	tests := []struct {
		name string
		vert []byte
		frag []byte
	}{
		{"empty vertex", nil, vulkantest.SPIRV(4)},
		{"ragged fragment", vulkantest.SPIRV(4), append(vulkantest.SPIRV(4), 0)},
		{"bad magic", []byte{0xde, 0xad, 0xbe, 0xef}, vulkantest.SPIRV(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := vulkantest.NewDevice()
			cfg := pipelineConfig()
			cfg.VertexShader, cfg.FragmentShader = tt.vert, tt.frag
			_, err := vulkan.BuildPipeline(dev, cfg)
			if !errors.Is(err, core.ErrInvalidShader) {
				t.Fatalf("expected ErrInvalidShader, got %v", err)
			}
			if len(dev.Calls) != 0 {
				t.Fatalf("no device call expected, got %v", dev.Calls)
			}
		})
	}
}

func TestBuildPipelineUnwinds(t *testing.T) {
	steps := []string{
		"CreateDescriptorSetLayout",
		"CreatePipelineLayout",
		"CreateRenderPass",
		"CreatePipelineCache",
		"CreateShaderModule",
		"CreateGraphicsPipeline",
	}
	for _, step := range steps {
		t.Run(step, func(t *testing.T) {
			dev := vulkantest.NewDevice()
			dev.FailOn(step, 1, nil)
			if _, err := vulkan.BuildPipeline(dev, pipelineConfig()); err == nil {
				t.Fatal("expected an error")
			}
			if live := dev.Live(); len(live) != 0 {
				t.Fatalf("objects leaked: %v", live)
			}
			if len(dev.Invalid) != 0 {
				t.Fatalf("invalid destroys: %v", dev.Invalid)
			}
		})
	}

	// The fragment module fails after the vertex one exists.
	dev := vulkantest.NewDevice()
	dev.FailOn("CreateShaderModule", 2, nil)
	if _, err := vulkan.BuildPipeline(dev, pipelineConfig()); err == nil {
		t.Fatal("expected an error")
	}
	if live := dev.Live(); len(live) != 0 {
		t.Fatalf("objects leaked: %v", live)
	}
}
