package math

import (
	"encoding/binary"
	m "math"

	"github.com/go-gl/mathgl/mgl32"
)

var (
	AxisX = mgl32.Vec3{1, 0, 0}
	AxisY = mgl32.Vec3{0, 1, 0}
)

// Transform is a position, rotation and scale with a cached local matrix.
type Transform struct {
	// The position in the world.
	Position mgl32.Vec3
	// The rotation in the world.
	Rotation mgl32.Quat
	// The scale in the world.
	Scale mgl32.Vec3
	// Set whenever position, rotation or scale change; Local is stale.
	IsDirty bool
	// Local is T * R * S, valid when IsDirty is false.
	Local mgl32.Mat4
	// Optional parent transform.
	Parent *Transform
}

func TransformCreate() *Transform {
	return TransformFromPositionRotationScale(mgl32.Vec3{}, mgl32.QuatIdent(), mgl32.Vec3{1, 1, 1})
}

func TransformFromPositionRotationScale(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) *Transform {
	t := &Transform{Local: mgl32.Ident4()}
	t.SetPositionRotationScale(position, rotation, scale)
	return t
}

func (t *Transform) SetPosition(position mgl32.Vec3) {
	t.Position = position
	t.IsDirty = true
}

func (t *Transform) SetRotation(rotation mgl32.Quat) {
	t.Rotation = rotation
	t.IsDirty = true
}

func (t *Transform) SetScale(scale mgl32.Vec3) {
	t.Scale = scale
	t.IsDirty = true
}

func (t *Transform) SetPositionRotationScale(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) {
	t.Position = position
	t.Rotation = rotation
	t.Scale = scale
	t.IsDirty = true
}

func (t *Transform) GetLocal() mgl32.Mat4 {
	if t == nil {
		return mgl32.Ident4()
	}
	if t.IsDirty {
		translation := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
		scale := mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z())
		t.Local = translation.Mul4(t.Rotation.Mat4()).Mul4(scale)
		t.IsDirty = false
	}
	return t.Local
}

func (t *Transform) GetWorld() mgl32.Mat4 {
	if t == nil {
		return mgl32.Ident4()
	}
	l := t.GetLocal()
	if t.Parent != nil {
		return t.Parent.GetWorld().Mul4(l)
	}
	return l
}

// FrameRotation is the spin applied on frame: a turn of frame*step radians
// around Y after a fixed tilt around X.
func FrameRotation(frame uint64, step, tilt float32) mgl32.Quat {
	angle := float32(m.Mod(float64(frame)*float64(step), 2*m.Pi))
	return mgl32.QuatRotate(angle, AxisY).Mul(mgl32.QuatRotate(tilt, AxisX))
}

// Mat4Bytes packs mat column-major as little-endian float32, the layout a
// GLSL mat4 uniform expects.
func Mat4Bytes(mat mgl32.Mat4) []byte {
	out := make([]byte, len(mat)*4)
	for i, f := range mat {
		binary.LittleEndian.PutUint32(out[i*4:], m.Float32bits(f))
	}
	return out
}
