package metadata

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/uuid"
)

func TestGenerateCube(t *testing.T) {
	cube := GenerateCube("cube", 2.0)
	if cube.VertexCount() != 36 {
		t.Fatalf("expected 36 vertices, got %d", cube.VertexCount())
	}
	if cube.ID == uuid.Nil {
		t.Fatal("expected a generated id")
	}
	for i, v := range cube.Vertices {
		if v.W != 1.0 {
			t.Fatalf("vertex %d: w = %f", i, v.W)
		}
		for _, c := range []float32{v.X, v.Y, v.Z} {
			if c != 1.0 && c != -1.0 {
				t.Fatalf("vertex %d is not on the cube surface: %+v", i, v)
			}
		}
		// Each vertex lies on the face its normal points at.
		dot := v.X*v.NX + v.Y*v.NY + v.Z*v.NZ
		if dot != 1.0 {
			t.Fatalf("vertex %d: normal does not match face: %+v", i, v)
		}
	}
}

func TestGenerateCubeWinding(t *testing.T) {
	cube := GenerateCube("cube", 1.0)
	for tri := 0; tri < 12; tri++ {
		a, b, c := cube.Vertices[tri*3], cube.Vertices[tri*3+1], cube.Vertices[tri*3+2]
		e1 := [3]float32{b.X - a.X, b.Y - a.Y, b.Z - a.Z}
		e2 := [3]float32{c.X - a.X, c.Y - a.Y, c.Z - a.Z}
		n := [3]float32{
			e1[1]*e2[2] - e1[2]*e2[1],
			e1[2]*e2[0] - e1[0]*e2[2],
			e1[0]*e2[1] - e1[1]*e2[0],
		}
		if n[0]*a.NX+n[1]*a.NY+n[2]*a.NZ <= 0 {
			t.Fatalf("triangle %d is not counter-clockwise from outside", tri)
		}
	}
}

func TestVerticesToBytes(t *testing.T) {
	v := NewVertex([VertexFloats]float32{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11})
	if v.Floats()[10] != 11 {
		t.Fatalf("round trip through Floats failed: %+v", v)
	}
	b := VerticesToBytes([]Vertex{v, v})
	if len(b) != 2*int(VertexStride) {
		t.Fatalf("expected %d bytes, got %d", 2*VertexStride, len(b))
	}
	tests := []struct {
		offset uint32
		want   float32
	}{
		{PositionOffset, 1},
		{ColorOffset, 5},
		{NormalOffset, 9},
		{VertexStride + NormalOffset + 8, 11},
	}
	for _, tt := range tests {
		got := math.Float32frombits(binary.LittleEndian.Uint32(b[tt.offset:]))
		if got != tt.want {
			t.Errorf("offset %d: got %f want %f", tt.offset, got, tt.want)
		}
	}
}
