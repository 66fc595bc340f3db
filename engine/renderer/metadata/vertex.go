package metadata

import (
	"encoding/binary"
	"math"
)

const (
	// VertexFloats is the number of float32 values in one Vertex.
	VertexFloats = 11
	// VertexStride is the size in bytes of one Vertex on the GPU.
	VertexStride uint32 = VertexFloats * 4

	PositionOffset uint32 = 0
	ColorOffset    uint32 = 16
	NormalOffset   uint32 = 32
)

// Vertex matches the layout consumed by the graphics pipeline: a homogeneous
// position, an RGBA color and a normal, all float32.
type Vertex struct {
	X, Y, Z, W float32
	R, G, B, A float32
	NX, NY, NZ float32
}

func NewVertex(values [VertexFloats]float32) Vertex {
	return Vertex{
		X: values[0], Y: values[1], Z: values[2], W: values[3],
		R: values[4], G: values[5], B: values[6], A: values[7],
		NX: values[8], NY: values[9], NZ: values[10],
	}
}

func (v Vertex) Floats() [VertexFloats]float32 {
	return [VertexFloats]float32{v.X, v.Y, v.Z, v.W, v.R, v.G, v.B, v.A, v.NX, v.NY, v.NZ}
}

// VerticesToBytes packs vertices as little-endian float32 values, which is
// the byte order of every host the renderer targets.
func VerticesToBytes(vertices []Vertex) []byte {
	out := make([]byte, len(vertices)*int(VertexStride))
	off := 0
	for _, v := range vertices {
		for _, f := range v.Floats() {
			binary.LittleEndian.PutUint32(out[off:], math.Float32bits(f))
			off += 4
		}
	}
	return out
}
