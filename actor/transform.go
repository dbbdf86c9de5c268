package actor

import "github.com/go-gl/mathgl/mgl64"

// Transform represents a position and orientation in 3D space
type Transform struct {
	Position        mgl64.Vec3
	Rotation        mgl64.Quat
	InverseRotation mgl64.Quat
}

// NewTransform creates a transform and caches the inverse rotation used by the support functions.
// A zero quaternion is treated as identity.
func NewTransform(position mgl64.Vec3, rotation mgl64.Quat) Transform {
	if rotation.Len() < 1e-12 {
		rotation = mgl64.QuatIdent()
	}
	rotation = rotation.Normalize()

	return Transform{
		Position:        position,
		Rotation:        rotation,
		InverseRotation: rotation.Inverse(),
	}
}

// ToLocal converts a world space point into the transform's local space
func (t Transform) ToLocal(point mgl64.Vec3) mgl64.Vec3 {
	return t.InverseRotation.Rotate(point.Sub(t.Position))
}

// ToWorld converts a local space point into world space
func (t Transform) ToWorld(point mgl64.Vec3) mgl64.Vec3 {
	return t.Rotation.Rotate(point).Add(t.Position)
}
