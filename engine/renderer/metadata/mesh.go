package metadata

import (
	"github.com/google/uuid"
)

// MeshData is the host side description of a mesh, before it is uploaded.
type MeshData struct {
	ID       uuid.UUID
	Name     string
	Vertices []Vertex
}

func NewMeshData(name string, vertices []Vertex) *MeshData {
	return &MeshData{
		ID:       uuid.New(),
		Name:     name,
		Vertices: vertices,
	}
}

func (m *MeshData) VertexCount() uint32 {
	return uint32(len(m.Vertices))
}

var cubeFaceColors = [6][4]float32{
	{1.0, 0.0, 0.0, 1.0}, // front
	{0.0, 1.0, 0.0, 1.0}, // back
	{0.0, 0.0, 1.0, 1.0}, // left
	{1.0, 1.0, 0.0, 1.0}, // right
	{1.0, 0.0, 1.0, 1.0}, // top
	{0.0, 1.0, 1.0, 1.0}, // bottom
}

// GenerateCube returns a non-indexed cube of the given edge length centred on
// the origin: 6 faces, 2 triangles each, counter-clockwise when seen from
// outside.
func GenerateCube(name string, size float32) *MeshData {
	if size == 0 {
		size = 1.0
	}
	h := size * 0.5

	type face struct {
		normal  [3]float32
		corners [4][3]float32 // bottom-left, bottom-right, top-right, top-left seen from outside
	}
	faces := [6]face{
		{[3]float32{0, 0, 1}, [4][3]float32{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
	}

	vertices := make([]Vertex, 0, 36)
	for i, f := range faces {
		c := cubeFaceColors[i]
		for _, idx := range [6]int{0, 1, 2, 0, 2, 3} {
			p := f.corners[idx]
			vertices = append(vertices, Vertex{
				X: p[0], Y: p[1], Z: p[2], W: 1.0,
				R: c[0], G: c[1], B: c[2], A: c[3],
				NX: f.normal[0], NY: f.normal[1], NZ: f.normal[2],
			})
		}
	}
	return NewMeshData(name, vertices)
}
