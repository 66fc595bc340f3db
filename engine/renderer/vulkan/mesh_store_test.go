package vulkan_test

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan"
	"github.com/spaghettifunk/volcano/engine/renderer/vulkan/vulkantest"
)

func triangle(name string) *metadata.MeshData {
	return metadata.NewMeshData(name, []metadata.Vertex{
		{X: -0.5, Y: -0.5, W: 1, R: 1, A: 1, NZ: 1},
		{X: 0.5, Y: -0.5, W: 1, G: 1, A: 1, NZ: 1},
		{X: 0, Y: 0.5, W: 1, B: 1, A: 1, NZ: 1},
	})
}

func TestMeshStoreKeepsAppendOrder(t *testing.T) {
	dev := vulkantest.NewDevice()
	store := vulkan.NewMeshStore(dev)

	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		if _, err := store.Add(triangle(n)); err != nil {
			t.Fatalf("Add(%s): %v", n, err)
		}
	}
	if store.Len() != len(names) {
		t.Fatalf("len %d, want %d", store.Len(), len(names))
	}
	for i, m := range store.Meshes() {
		if m.Name != names[i] {
			t.Errorf("mesh %d is %q, want %q", i, m.Name, names[i])
		}
		if m.VertexCount != 3 {
			t.Errorf("mesh %d vertex count %d", i, m.VertexCount)
		}
	}
}

func TestMeshStoreUploadsVertices(t *testing.T) {
	dev := vulkantest.NewDevice()
	store := vulkan.NewMeshStore(dev)

	cube := metadata.GenerateCube("cube", 1)
	mesh, err := store.Add(cube)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if mesh.ID != cube.ID {
		t.Errorf("mesh id %s, want %s", mesh.ID, cube.ID)
	}
	if mesh.VertexCount != 36 {
		t.Errorf("vertex count %d, want 36", mesh.VertexCount)
	}
	want := metadata.VerticesToBytes(cube.Vertices)
	if mesh.Buffer.Size != 36*44 {
		t.Errorf("buffer size %d", mesh.Buffer.Size)
	}
	if got := dev.MemoryContents(mesh.Buffer.Memory); !bytes.Equal(got[:len(want)], want) {
		t.Error("vertex buffer does not hold the packed vertices")
	}
}

func TestMeshStoreRejectsEmptyMeshes(t *testing.T) {
	tests := []struct {
		name string
		data *metadata.MeshData
	}{
		{"nil", nil},
		{"no vertices", metadata.NewMeshData("empty", nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := vulkantest.NewDevice()
			store := vulkan.NewMeshStore(dev)
			if _, err := store.Add(tt.data); !errors.Is(err, core.ErrEmptyMesh) {
				t.Fatalf("expected ErrEmptyMesh, got %v", err)
			}
			if store.Len() != 0 || len(dev.Calls) != 0 {
				t.Fatalf("store changed: len %d, calls %v", store.Len(), dev.Calls)
			}
		})
	}
}

func TestMeshStoreFailedUploadIsNotStored(t *testing.T) {
	dev := vulkantest.NewDevice()
	store := vulkan.NewMeshStore(dev)
	if _, err := store.Add(triangle("first")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	dev.FailOn("AllocateMemory", 2, nil)
	if _, err := store.Add(triangle("second")); err == nil {
		t.Fatal("expected the upload to fail")
	}
	if store.Len() != 1 || store.Meshes()[0].Name != "first" {
		t.Fatalf("store holds %d meshes after a failed add", store.Len())
	}
}

func TestMeshStoreMeshesIsACopy(t *testing.T) {
	dev := vulkantest.NewDevice()
	store := vulkan.NewMeshStore(dev)
	defer store.Destroy()
	for _, n := range []string{"a", "b"} {
		if _, err := store.Add(triangle(n)); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	got := store.Meshes()
	got[0], got[1] = got[1], got[0]
	_ = append(got[:1], nil)

	meshes := store.Meshes()
	if len(meshes) != 2 || meshes[0].Name != "a" || meshes[1].Name != "b" {
		t.Fatalf("store order changed through the returned slice: %v", meshes)
	}
}

func TestMeshStoreDestroyNewestFirst(t *testing.T) {
	dev := vulkantest.NewDevice()
	store := vulkan.NewMeshStore(dev)
	var handles []unsafe.Pointer
	for _, n := range []string{"a", "b", "c"} {
		m, err := store.Add(triangle(n))
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		handles = append(handles, unsafe.Pointer(m.Buffer.Handle))
	}

	store.Destroy()
	var buffers []unsafe.Pointer
	for _, o := range dev.Destroyed {
		if o.Kind == "Buffer" {
			buffers = append(buffers, o.Handle)
		}
	}
	if len(buffers) != 3 {
		t.Fatalf("destroyed %d buffers", len(buffers))
	}
	for i := range buffers {
		if buffers[i] != handles[len(handles)-1-i] {
			t.Errorf("buffer %d destroyed out of order", i)
		}
	}
	if live := dev.Live(); len(live) != 0 {
		t.Fatalf("objects leaked: %v", live)
	}
	if store.Len() != 0 {
		t.Fatal("store not emptied")
	}
}
