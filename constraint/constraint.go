// Package constraint holds the XPBD constraints solved by the solver: contacts produced by the
// narrowphase every step, and joints that live until they are removed.
package constraint

import (
	"math"
	"unsafe"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

// Constraint is solved once per collision step, positions first then velocities
type Constraint interface {
	SolvePosition(dt float64)
	SolveVelocity(dt float64)
}

// Joint is a persistent constraint between one body and either a second body or the world
type Joint interface {
	Constraint
	// Bodies returns the constrained bodies, b is nil for a world joint
	Bodies() (a, b *actor.RigidBody)
}

// ComputeRestitution averages both materials
func ComputeRestitution(matA, matB actor.Material) float64 {
	return (matA.Restitution + matB.Restitution) / 2.0
}

// ComputeStaticFriction is the geometric mean of both materials
func ComputeStaticFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.StaticFriction * matB.StaticFriction)
}

func ComputeDynamicFriction(matA, matB actor.Material) float64 {
	return math.Sqrt(matA.DynamicFriction * matB.DynamicFriction)
}

func clampSmallVelocities(rb *actor.RigidBody) {
	const velocityThreshold = 1e-5

	if rb.Velocity.Len() < velocityThreshold {
		rb.Velocity = mgl64.Vec3{0, 0, 0}
	}
	if rb.AngularVelocity.Len() < velocityThreshold {
		rb.AngularVelocity = mgl64.Vec3{0, 0, 0}
	}
}

// lockPair locks the movable bodies of a pair in address order, so two constraints sharing the
// same bodies never wait on each other. Bodies that cannot move are never written and stay unlocked.
func lockPair(a, b *actor.RigidBody) func() {
	first, second := a, b
	if b != nil && uintptr(unsafe.Pointer(b)) < uintptr(unsafe.Pointer(a)) {
		first, second = b, a
	}

	var locked [2]*actor.RigidBody
	count := 0
	for _, body := range [2]*actor.RigidBody{first, second} {
		if body == nil || body.BodyType != actor.BodyTypeDynamic {
			continue
		}
		if count == 1 && locked[0] == body {
			continue
		}
		body.Mutex.Lock()
		locked[count] = body
		count++
	}

	return func() {
		for i := count - 1; i >= 0; i-- {
			locked[i].Mutex.Unlock()
		}
	}
}

// translate and addVelocity only write dynamic bodies, the others are shared unlocked
func translate(body *actor.RigidBody, delta mgl64.Vec3) {
	if body == nil || body.BodyType != actor.BodyTypeDynamic {
		return
	}
	body.Transform.Position = body.Transform.Position.Add(delta)
}

func addVelocity(body *actor.RigidBody, linear, angular mgl64.Vec3) {
	if body == nil || body.BodyType != actor.BodyTypeDynamic {
		return
	}
	body.Velocity = body.Velocity.Add(linear)
	body.AngularVelocity = body.AngularVelocity.Add(angular)
	clampSmallVelocities(body)
}

// applyRotation rotates the body by the small angle vector deltaRotation
func applyRotation(body *actor.RigidBody, deltaRotation mgl64.Vec3) {
	if body == nil || body.BodyType != actor.BodyTypeDynamic || deltaRotation.Len() <= 1e-10 {
		return
	}

	qDelta := mgl64.Quat{W: 1.0, V: deltaRotation.Mul(0.5)}.Normalize()
	body.Transform.Rotation = qDelta.Mul(body.Transform.Rotation).Normalize()
	body.Transform.InverseRotation = body.Transform.Rotation.Inverse()
}

func inverseInertia(body *actor.RigidBody) mgl64.Mat3 {
	if body == nil {
		return mgl64.Mat3{}
	}
	return body.GetInverseInertiaWorld()
}

func inverseMass(body *actor.RigidBody) float64 {
	if body == nil {
		return 0
	}
	return body.InverseMass()
}
