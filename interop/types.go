package interop

import (
	"github.com/akmonengine/quill"
	"github.com/akmonengine/quill/debugdraw"
	"github.com/go-gl/mathgl/mgl64"
)

// The structs below are shared with the host byte for byte. Their size and field order are
// part of the boundary and are checked by the tests.

type Vec3 struct {
	X, Y, Z float32
}

type Quat struct {
	X, Y, Z, W float32
}

type Colour struct {
	R, G, B, A float32
}

// RayHit is 32 bytes: the hit body, its sub shape, where along the ray and the body's user data
type RayHit struct {
	Body       Handle
	SubShapeID uint32
	Fraction   float32
	Distance   float32
	UserData   [quill.UserDataSize]byte
}

// CollisionRecord is the host copy of a quill.CollisionRecord
type CollisionRecord struct {
	Body1, Body2             Handle
	SubShapeID1, SubShapeID2 uint32
	PenetrationDepth         float32
	JustStarted              uint32
	Step                     uint32
	UserData1, UserData2     [quill.UserDataSize]byte
}

type DebugLine struct {
	From, To Vec3
	Colour   Colour
}

type DebugTriangle struct {
	V1, V2, V3 Vec3
	Colour     Colour
}

func (v Vec3) vec() mgl64.Vec3 {
	return mgl64.Vec3{float64(v.X), float64(v.Y), float64(v.Z)}
}

func toVec3(v mgl64.Vec3) Vec3 {
	return Vec3{X: float32(v.X()), Y: float32(v.Y()), Z: float32(v.Z())}
}

func (q Quat) quat() mgl64.Quat {
	return mgl64.Quat{W: float64(q.W), V: mgl64.Vec3{float64(q.X), float64(q.Y), float64(q.Z)}}
}

func toQuat(q mgl64.Quat) Quat {
	return Quat{X: float32(q.V.X()), Y: float32(q.V.Y()), Z: float32(q.V.Z()), W: float32(q.W)}
}

func toColour(c debugdraw.Colour) Colour {
	return Colour{R: c.R, G: c.G, B: c.B, A: c.A}
}

func boolFlag(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
