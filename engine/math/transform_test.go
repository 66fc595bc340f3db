package math

import (
	"bytes"
	"encoding/binary"
	m "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFrameRotationMatchesMatrices(t *testing.T) {
	tests := []struct {
		frame uint64
		step  float32
		tilt  float32
	}{
		{0, 0.01, 0.5},
		{1, 0.01, 0.5},
		{250, 0.01, 0.5},
		{42, 0.1, 0},
	}
	for _, tt := range tests {
		want := mgl32.HomogRotate3DY(float32(tt.frame) * tt.step).Mul4(mgl32.HomogRotate3DX(tt.tilt))
		got := FrameRotation(tt.frame, tt.step, tt.tilt).Mat4()
		for i := range got {
			if m.Abs(float64(got[i]-want[i])) > 1e-5 {
				t.Errorf("frame %d element %d: got %v want %v", tt.frame, i, got[i], want[i])
			}
		}
	}
}

func TestFrameRotationChangesEveryFrame(t *testing.T) {
	a := Mat4Bytes(FrameRotation(10, 0.01, 0.5).Mat4())
	b := Mat4Bytes(FrameRotation(11, 0.01, 0.5).Mat4())
	if bytes.Equal(a, b) {
		t.Fatal("consecutive frames produced the same matrix")
	}
}

func TestTransformLocal(t *testing.T) {
	tr := TransformCreate()
	if !tr.GetLocal().ApproxEqual(mgl32.Ident4()) {
		t.Fatalf("new transform is not identity: %v", tr.GetLocal())
	}

	tr.SetPosition(mgl32.Vec3{1, 2, 3})
	tr.SetScale(mgl32.Vec3{2, 2, 2})
	p := tr.GetLocal().Mul4x1(mgl32.Vec4{1, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{3, 2, 3, 1}) {
		t.Fatalf("expected scale then translate, got %v", p)
	}
	if tr.IsDirty {
		t.Fatal("GetLocal should clear IsDirty")
	}

	parent := TransformCreate()
	parent.SetPosition(mgl32.Vec3{0, 10, 0})
	tr.Parent = parent
	p = tr.GetWorld().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{1, 12, 3, 1}) {
		t.Fatalf("parent translation not applied: %v", p)
	}
}

func TestMat4Bytes(t *testing.T) {
	mat := mgl32.Translate3D(7, 8, 9)
	b := Mat4Bytes(mat)
	if len(b) != 64 {
		t.Fatalf("expected 64 bytes, got %d", len(b))
	}
	// Column-major: the translation sits in elements 12..14.
	for i, want := range []float32{7, 8, 9} {
		got := m.Float32frombits(binary.LittleEndian.Uint32(b[(12+i)*4:]))
		if got != want {
			t.Errorf("element %d: got %f want %f", 12+i, got, want)
		}
	}
}
