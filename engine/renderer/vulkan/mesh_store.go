package vulkan

import (
	"slices"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/volcano/engine/core"
	"github.com/spaghettifunk/volcano/engine/renderer/metadata"
)

// Mesh is an uploaded vertex buffer. It is immutable once stored.
type Mesh struct {
	ID          uuid.UUID
	Name        string
	Buffer      *VulkanBuffer
	VertexCount uint32
}

// MeshStore keeps meshes in the order they were added. There is no removal
// and no reordering; everything is released together by Destroy.
type MeshStore struct {
	meshes []*Mesh
	device Device
}

func NewMeshStore(device Device) *MeshStore {
	return &MeshStore{device: device}
}

// Add uploads the vertices of data into a new vertex buffer and appends it.
func (s *MeshStore) Add(data *metadata.MeshData) (*Mesh, error) {
	if data == nil || len(data.Vertices) == 0 {
		name := ""
		if data != nil {
			name = data.Name
		}
		return nil, errors.Wrapf(core.ErrEmptyMesh, "mesh %q", name)
	}

	bytes := metadata.VerticesToBytes(data.Vertices)
	buffer, err := CreateBuffer(s.device, bytes, vk.DeviceSize(len(bytes)), vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit))
	if err != nil {
		return nil, errors.Wrapf(err, "upload mesh %q", data.Name)
	}

	mesh := &Mesh{
		ID:          data.ID,
		Name:        data.Name,
		Buffer:      buffer,
		VertexCount: data.VertexCount(),
	}
	s.meshes = append(s.meshes, mesh)
	core.LogDebug("mesh %q (%s) added with %d vertices", mesh.Name, mesh.ID, mesh.VertexCount)
	return mesh, nil
}

// Meshes returns a copy of the stored meshes in append order.
func (s *MeshStore) Meshes() []*Mesh {
	return slices.Clone(s.meshes)
}

func (s *MeshStore) Len() int {
	return len(s.meshes)
}

// Destroy frees every vertex buffer, newest first.
func (s *MeshStore) Destroy() {
	for i := len(s.meshes) - 1; i >= 0; i-- {
		s.meshes[i].Buffer.Destroy()
	}
	s.meshes = nil
}
