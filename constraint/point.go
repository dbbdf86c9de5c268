package constraint

import (
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// JointCompliance is the default softness of joints, stiffer than contacts
const JointCompliance = 1e-9

// PointJoint keeps an anchor of BodyA within [MinDistance, MaxDistance] of an anchor of BodyB.
// With a nil BodyB the second anchor is a fixed world position. Min and max both zero pin the
// anchors together; LockRotation additionally keeps the relative orientation found at creation.
type PointJoint struct {
	BodyA, BodyB *actor.RigidBody

	// LocalAnchorA is in BodyA space. LocalAnchorB is in BodyB space, or world space when BodyB is nil.
	LocalAnchorA mgl64.Vec3
	LocalAnchorB mgl64.Vec3

	MinDistance float64
	MaxDistance float64
	Compliance  float64

	LockRotation     bool
	relativeRotation mgl64.Quat
}

// NewPointJoint anchors both bodies at the world point anchor
func NewPointJoint(a, b *actor.RigidBody, anchor mgl64.Vec3) *PointJoint {
	joint := &PointJoint{
		BodyA:        a,
		BodyB:        b,
		LocalAnchorA: a.Transform.ToLocal(anchor),
		LocalAnchorB: anchor,
		Compliance:   JointCompliance,
	}
	if b != nil {
		joint.LocalAnchorB = b.Transform.ToLocal(anchor)
	}
	return joint
}

// NewDistanceJoint links the centres of a and b, keeping their distance within [minDistance, maxDistance]
func NewDistanceJoint(a, b *actor.RigidBody, minDistance, maxDistance float64) *PointJoint {
	joint := &PointJoint{
		BodyA:       a,
		BodyB:       b,
		MinDistance: minDistance,
		MaxDistance: maxDistance,
		Compliance:  JointCompliance,
	}
	if b == nil {
		joint.LocalAnchorB = a.Transform.Position
	}
	return joint
}

// NewFixedJoint welds b to a in their current relative pose
func NewFixedJoint(a, b *actor.RigidBody) *PointJoint {
	anchor := a.Transform.Position
	if b != nil {
		anchor = anchor.Add(b.Transform.Position).Mul(0.5)
	}

	joint := NewPointJoint(a, b, anchor)
	joint.LockRotation = true
	joint.relativeRotation = a.Transform.InverseRotation.Mul(rotationOf(b))
	return joint
}

func rotationOf(body *actor.RigidBody) mgl64.Quat {
	if body == nil {
		return mgl64.QuatIdent()
	}
	return body.Transform.Rotation
}

func (j *PointJoint) Bodies() (*actor.RigidBody, *actor.RigidBody) {
	return j.BodyA, j.BodyB
}

// WorldAnchors returns both anchors in world space
func (j *PointJoint) WorldAnchors() (mgl64.Vec3, mgl64.Vec3) {
	anchorA := j.BodyA.Transform.ToWorld(j.LocalAnchorA)
	if j.BodyB == nil {
		return anchorA, j.LocalAnchorB
	}
	return anchorA, j.BodyB.Transform.ToWorld(j.LocalAnchorB)
}

func (j *PointJoint) SolvePosition(dt float64) {
	unlock := lockPair(j.BodyA, j.BodyB)
	defer unlock()

	alphaTilde := j.Compliance / (dt * dt)
	j.solveDistance(alphaTilde)
	if j.LockRotation {
		j.solveRotation(alphaTilde)
	}
}

func (j *PointJoint) solveDistance(alphaTilde float64) {
	anchorA, anchorB := j.WorldAnchors()
	delta := anchorB.Sub(anchorA)
	length := delta.Len()

	var violation float64
	switch {
	case length > j.MaxDistance:
		violation = length - j.MaxDistance
	case length < j.MinDistance:
		violation = length - j.MinDistance
	default:
		return
	}
	if length < 1e-9 {
		return
	}
	normal := delta.Mul(1.0 / length)

	rA := anchorA.Sub(j.BodyA.Transform.Position)
	rB := mgl64.Vec3{}
	if j.BodyB != nil {
		rB = anchorB.Sub(j.BodyB.Transform.Position)
	}

	invInertiaA := inverseInertia(j.BodyA)
	invInertiaB := inverseInertia(j.BodyB)
	rAxN := rA.Cross(normal)
	rBxN := rB.Cross(normal)
	weight := inverseMass(j.BodyA) + invInertiaA.Mul3x1(rAxN).Dot(rAxN) +
		inverseMass(j.BodyB) + invInertiaB.Mul3x1(rBxN).Dot(rBxN)
	if weight <= 1e-12 {
		return
	}

	// Pulls A toward B when stretched, pushes them apart when compressed
	impulse := normal.Mul(violation / (weight + alphaTilde))

	translate(j.BodyA, impulse.Mul(inverseMass(j.BodyA)))
	applyRotation(j.BodyA, invInertiaA.Mul3x1(rA.Cross(impulse)))
	translate(j.BodyB, impulse.Mul(-inverseMass(j.BodyB)))
	applyRotation(j.BodyB, invInertiaB.Mul3x1(rB.Cross(impulse.Mul(-1))))
}

func (j *PointJoint) solveRotation(alphaTilde float64) {
	target := j.BodyA.Transform.Rotation.Mul(j.relativeRotation)
	difference := rotationOf(j.BodyB).Mul(target.Conjugate()).Normalize()
	if difference.W < 0 {
		difference = difference.Scale(-1)
	}

	// Small angle vector taking the target orientation to the current orientation of B
	theta := difference.V.Mul(2)
	angle := theta.Len()
	if angle < 1e-9 {
		return
	}
	axis := theta.Mul(1.0 / angle)

	invInertiaA := inverseInertia(j.BodyA)
	invInertiaB := inverseInertia(j.BodyB)
	weight := invInertiaA.Mul3x1(axis).Dot(axis) + invInertiaB.Mul3x1(axis).Dot(axis)
	if weight <= 1e-12 {
		return
	}

	lambda := angle / (weight + alphaTilde)
	applyRotation(j.BodyA, invInertiaA.Mul3x1(axis.Mul(lambda)))
	applyRotation(j.BodyB, invInertiaB.Mul3x1(axis.Mul(-lambda)))
}

// SolveVelocity damps the relative velocity along the joint, positions already hold the joint
func (j *PointJoint) SolveVelocity(dt float64) {
	if j.MaxDistance > j.MinDistance || math.IsInf(j.MaxDistance, 1) {
		return
	}

	unlock := lockPair(j.BodyA, j.BodyB)
	defer unlock()

	velocityB := mgl64.Vec3{}
	if j.BodyB != nil {
		velocityB = j.BodyB.Velocity
	}
	relative := velocityB.Sub(j.BodyA.Velocity)
	weight := inverseMass(j.BodyA) + inverseMass(j.BodyB)
	if weight <= 1e-12 || relative.LenSqr() < 1e-12 {
		return
	}

	const damping = 0.1
	impulse := relative.Mul(damping / weight)
	addVelocity(j.BodyA, impulse.Mul(inverseMass(j.BodyA)), mgl64.Vec3{})
	addVelocity(j.BodyB, impulse.Mul(-inverseMass(j.BodyB)), mgl64.Vec3{})
}
