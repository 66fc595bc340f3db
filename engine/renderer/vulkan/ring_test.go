package vulkan_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan/vulkantest"
)

func TestRingSizeFromMask(t *testing.T) {
	tests := []struct {
		mask    uint32
		max     uint32
		want    uint32
		wantErr bool
	}{
		{mask: 0b0001, max: 4, want: 1},
		{mask: 0b1011, max: 4, want: 4},
		{mask: 0b0111, max: 4, want: 3},
		{mask: 0b0100, max: 4, want: 3},
		{mask: 0xFF, max: 4, want: 4},
		{mask: 0x80000000, max: 32, want: 32},
		{mask: 0, max: 4, wantErr: true},
	}
	for _, tt := range tests {
		got, err := vulkan.RingSizeFromMask(tt.mask, tt.max)
		if tt.wantErr {
			if !errors.Is(err, core.ErrInvalidSyncMask) {
				t.Errorf("mask %#b: expected ErrInvalidSyncMask, got %v", tt.mask, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("mask %#b: unexpected error %v", tt.mask, err)
			continue
		}
		if got != tt.want {
			t.Errorf("mask %#b: got %d want %d", tt.mask, got, tt.want)
		}
	}
}

func newTestPipeline(t *testing.T, dev *vulkantest.Device) *vulkan.VulkanPipeline {
	t.Helper()
	p, err := vulkan.BuildPipeline(dev, pipelineConfig())
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	return p
}

func TestNewFrameRing(t *testing.T) {
	dev := vulkantest.NewDevice()
	p := newTestPipeline(t, dev)
	created := len(dev.Created)

	ring, err := vulkan.NewFrameRing(dev, p, 3, vulkan.FrameRingConfig{Width: 1280, Height: 720, QueueFamilyIndex: 2})
	if err != nil {
		t.Fatalf("NewFrameRing: %v", err)
	}
	if ring.Size() != 3 {
		t.Fatalf("ring size %d", ring.Size())
	}

	perSlot := []string{"Buffer", "Memory", "CommandPool", "CommandBuffer", "Image", "Memory", "ImageView", "Framebuffer"}
	want := []string{"DescriptorPool"}
	for i := 0; i < 3; i++ {
		want = append(want, perSlot...)
	}
	if got := dev.CreatedKinds()[created:]; !equalStrings(got, want) {
		t.Fatalf("creation order\n got %v\nwant %v", got, want)
	}

	for i, img := range dev.Images {
		if img.Format != vk.FormatR8g8b8a8Unorm {
			t.Errorf("image %d format %v", i, img.Format)
		}
		if img.Flags&vk.ImageCreateFlags(vk.ImageCreateMutableFormatBit) == 0 {
			t.Errorf("image %d is not mutable format", i)
		}
		usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageTransferSrcBit)
		if img.Usage != usage {
			t.Errorf("image %d usage %v", i, img.Usage)
		}
		if img.Extent.Width != 1280 || img.Extent.Height != 720 {
			t.Errorf("image %d extent %+v", i, img.Extent)
		}
	}
	for i, fb := range dev.Framebuffers {
		if fb.Width != 1280 || fb.Height != 720 || fb.AttachmentCount != 1 {
			t.Errorf("framebuffer %d: %dx%d with %d attachments", i, fb.Width, fb.Height, fb.AttachmentCount)
		}
	}
	for i, pool := range dev.CommandPools {
		if pool.QueueFamilyIndex != 2 {
			t.Errorf("pool %d queue family %d", i, pool.QueueFamilyIndex)
		}
		if pool.Flags&vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit) == 0 {
			t.Errorf("pool %d is not resettable", i)
		}
	}
	if len(dev.DescriptorOps) != 3 {
		t.Fatalf("expected 3 descriptor writes, got %d", len(dev.DescriptorOps))
	}
	for i, slot := range ring.Slots {
		w := dev.DescriptorOps[i]
		if w.DstSet != slot.DescriptorSet || w.PBufferInfo[0].Buffer != slot.Uniform.Handle {
			t.Errorf("slot %d descriptor does not point at its uniform buffer", i)
		}
		if slot.Uniform.Size != 64 {
			t.Errorf("slot %d uniform size %d", i, slot.Uniform.Size)
		}
		if slot.Fence != nil || slot.Semaphore != nil {
			t.Errorf("slot %d has sync objects without slot fences", i)
		}
	}

	if _, err := ring.Slot(3); !errors.Is(err, core.ErrSyncIndexOutOfRange) {
		t.Fatalf("expected ErrSyncIndexOutOfRange, got %v", err)
	}

	destroyed := len(dev.Destroyed)
	ring.Destroy()
	if dev.Count("WaitIdle") != 1 {
		t.Fatalf("expected one WaitIdle, got %d", dev.Count("WaitIdle"))
	}
	reversePerSlot := []string{"Framebuffer", "ImageView", "Image", "Memory", "CommandBuffer", "CommandPool", "Buffer", "Memory"}
	var wantDestroyed []string
	for i := 0; i < 3; i++ {
		wantDestroyed = append(wantDestroyed, reversePerSlot...)
	}
	wantDestroyed = append(wantDestroyed, "DescriptorPool")
	if got := dev.DestroyedKinds()[destroyed:]; !equalStrings(got, wantDestroyed) {
		t.Fatalf("destroy order\n got %v\nwant %v", got, wantDestroyed)
	}

	p.Destroy(dev)
	if live := dev.Live(); len(live) != 0 {
		t.Fatalf("objects leaked: %v", live)
	}
}

func TestNewFrameRingWithFences(t *testing.T) {
	dev := vulkantest.NewDevice()
	p := newTestPipeline(t, dev)
	defer p.Destroy(dev)

	ring, err := vulkan.NewFrameRing(dev, p, 2, vulkan.FrameRingConfig{Width: 64, Height: 64, SlotFences: true})
	if err != nil {
		t.Fatalf("NewFrameRing: %v", err)
	}
	for i, slot := range ring.Slots {
		if slot.Fence == nil || !slot.Fence.IsSignaled {
			t.Errorf("slot %d fence should start signaled", i)
		}
		if slot.Semaphore == nil {
			t.Errorf("slot %d has no semaphore", i)
		}
	}
	ring.Destroy()
	for _, o := range dev.Live() {
		if o.Kind == "Fence" || o.Kind == "Semaphore" {
			t.Fatalf("leaked %v", o)
		}
	}
}

func TestNewFrameRingUnwinds(t *testing.T) {
	tests := []struct {
		method string
		nth    int
	}{
		{"CreateDescriptorPool", 1},
		{"AllocateDescriptorSets", 1},
		{"CreateCommandPool", 2},
		{"AllocateCommandBuffer", 3},
		{"CreateImage", 2},
		{"CreateImageView", 1},
		{"CreateFramebuffer", 3},
		{"CreateFence", 2},
		{"CreateSemaphore", 1},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			dev := vulkantest.NewDevice()
			p := newTestPipeline(t, dev)
			dev.FailOn(tt.method, tt.nth, nil)

			if _, err := vulkan.NewFrameRing(dev, p, 3, vulkan.FrameRingConfig{Width: 64, Height: 64, SlotFences: true}); err == nil {
				t.Fatal("expected an error")
			}
			p.Destroy(dev)
			if live := dev.Live(); len(live) != 0 {
				t.Fatalf("objects leaked: %v", live)
			}
			if len(dev.Invalid) != 0 {
				t.Fatalf("invalid destroys: %v", dev.Invalid)
			}
		})
	}
}
