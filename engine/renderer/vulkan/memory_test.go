package vulkan_test

import (
	"bytes"
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan/vulkantest"
)

var _ vulkan.Device = (*vulkantest.Device)(nil)

func memType(flags ...vk.MemoryPropertyFlagBits) vk.MemoryType {
	var f vk.MemoryPropertyFlags
	for _, b := range flags {
		f |= vk.MemoryPropertyFlags(b)
	}
	return vk.MemoryType{PropertyFlags: f}
}

func TestFindMemoryType(t *testing.T) {
	types := []vk.MemoryType{
		memType(vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyHostCoherentBit),
		memType(vk.MemoryPropertyDeviceLocalBit),
		memType(vk.MemoryPropertyHostVisibleBit, vk.MemoryPropertyHostCoherentBit, vk.MemoryPropertyHostCachedBit),
		memType(vk.MemoryPropertyDeviceLocalBit, vk.MemoryPropertyHostVisibleBit),
	}
	host := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	local := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)

	tests := []struct {
		name    string
		bits    uint32
		flags   vk.MemoryPropertyFlags
		want    uint32
		wantErr bool
	}{
		{name: "first match wins", bits: 0xF, flags: host, want: 0},
		{name: "superset flags match", bits: 0x4, flags: host, want: 2},
		{name: "bit 0 unset skips type 0", bits: 0xE, flags: host, want: 2},
		{name: "device local", bits: 0xF, flags: local, want: 1},
		{name: "device local restricted", bits: 0x8, flags: local, want: 3},
		{name: "no flags takes lowest bit", bits: 0x6, flags: 0, want: 1},
		{name: "bits exclude every match", bits: 0x2, flags: host, wantErr: true},
		{name: "empty bitmask", bits: 0, flags: 0, wantErr: true},
		{name: "bits beyond reported types", bits: 0xF0, flags: 0, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vulkan.FindMemoryType(types, tt.bits, tt.flags)
			if tt.wantErr {
				if !errors.Is(err, core.ErrNoSuitableMemoryType) {
					t.Fatalf("expected ErrNoSuitableMemoryType, got %v (index %d)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got index %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCreateBufferUploadsData(t *testing.T) {
	dev := vulkantest.NewDevice()
	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	buf, err := vulkan.CreateBuffer(dev, data, 16, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	got := dev.MemoryContents(buf.Memory)
	if !bytes.Equal(got[:len(data)], data) {
		t.Fatalf("memory holds %v, want prefix %v", got, data)
	}
	if dev.Count("BindBufferMemory") != 1 {
		t.Fatalf("expected one bind, got %d", dev.Count("BindBufferMemory"))
	}

	buf.Destroy()
	if live := dev.Live(); len(live) != 0 {
		t.Fatalf("objects leaked: %v", live)
	}
	want := []string{"Buffer", "Memory"}
	if got := dev.DestroyedKinds(); !equalStrings(got, want) {
		t.Fatalf("destroy order %v, want %v", got, want)
	}
}

func TestCreateBufferWithoutData(t *testing.T) {
	dev := vulkantest.NewDevice()
	buf, err := vulkan.CreateBuffer(dev, nil, vulkan.UniformSize, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer buf.Destroy()
	if dev.Count("WriteMemory") != 0 {
		t.Fatal("nil data must not be written")
	}
	if err := buf.Write(make([]byte, vulkan.UniformSize+1)); err == nil {
		t.Fatal("expected an overflowing write to fail")
	}
}

func TestCreateBufferFailuresLeaveNothing(t *testing.T) {
	tests := []struct {
		name   string
		method string
	}{
		{"create", "CreateBuffer"},
		{"allocate", "AllocateMemory"},
		{"bind", "BindBufferMemory"},
		{"write", "WriteMemory"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := vulkantest.NewDevice()
			dev.FailOn(tt.method, 1, nil)
			if _, err := vulkan.CreateBuffer(dev, []byte{1, 2, 3, 4}, 4, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)); err == nil {
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
}

func TestCreateBufferNoHostMemory(t *testing.T) {
	dev := vulkantest.NewDevice()
	// Only the device local type is allowed for the resource.
	dev.MemoryTypeBits = 0x1
	_, err := vulkan.CreateBuffer(dev, nil, 64, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	if !errors.Is(err, core.ErrNoSuitableMemoryType) {
		t.Fatalf("expected ErrNoSuitableMemoryType, got %v", err)
	}
	if dev.Count("AllocateMemory") != 0 {
		t.Fatal("memory must not be allocated without a matching type")
	}
	if live := dev.Live(); len(live) != 0 {
		t.Fatalf("objects leaked: %v", live)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
