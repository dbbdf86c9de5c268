package constraint

import (
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// DefaultCompliance is the softness of contacts, in m/N.
	// 1e-10 is very stiff and may jitter, 1e-6 lets bodies sink visibly.
	DefaultCompliance = 1e-7

	minPenetration = 1e-8
)

type ContactPoint struct {
	Position    mgl64.Vec3
	Penetration float64
}

// ContactConstraint pushes two touching bodies apart along Normal (from BodyA toward BodyB)
type ContactConstraint struct {
	BodyA      *actor.RigidBody
	BodyB      *actor.RigidBody
	Points     []ContactPoint
	Normal     mgl64.Vec3
	Compliance float64
}

// MaxPenetration returns the deepest point of the manifold
func (c *ContactConstraint) MaxPenetration() float64 {
	deepest := 0.0
	for _, point := range c.Points {
		deepest = math.Max(deepest, point.Penetration)
	}
	return deepest
}

// SolvePosition resolves the penetration with a single aggregated XPBD correction
func (c *ContactConstraint) SolvePosition(dt float64) {
	if len(c.Points) == 0 || (c.BodyA.IsSleeping && c.BodyB.IsSleeping) {
		return
	}

	bodyA, bodyB := c.BodyA, c.BodyB
	unlock := lockPair(bodyA, bodyB)
	defer unlock()

	invMassA := bodyA.InverseMass()
	invMassB := bodyB.InverseMass()
	invInertiaA := bodyA.GetInverseInertiaWorld()
	invInertiaB := bodyB.GetInverseInertiaWorld()

	var totalWeight, totalPenetration float64
	for _, point := range c.Points {
		if point.Penetration <= minPenetration {
			continue
		}

		rA := point.Position.Sub(bodyA.Transform.Position).Cross(c.Normal)
		rB := point.Position.Sub(bodyB.Transform.Position).Cross(c.Normal)

		totalWeight += invMassA + invInertiaA.Mul3x1(rA).Dot(rA)
		totalWeight += invMassB + invInertiaB.Mul3x1(rB).Dot(rB)
		totalPenetration += point.Penetration
	}

	if totalWeight <= 1e-8 {
		return
	}

	alphaTilde := c.Compliance / (dt * dt)
	deltaLambda := -totalPenetration / (totalWeight + alphaTilde)
	impulse := c.Normal.Mul(deltaLambda)

	// A moves against the normal, B along it
	translate(bodyA, impulse.Mul(invMassA))
	translate(bodyB, impulse.Mul(-invMassB))

	var torqueA, torqueB mgl64.Vec3
	for _, point := range c.Points {
		if point.Penetration <= minPenetration {
			continue
		}
		torqueA = torqueA.Add(point.Position.Sub(bodyA.Transform.Position).Cross(impulse))
		torqueB = torqueB.Add(point.Position.Sub(bodyB.Transform.Position).Cross(impulse.Mul(-1)))
	}

	applyRotation(bodyA, invInertiaA.Mul3x1(torqueA))
	applyRotation(bodyB, invInertiaB.Mul3x1(torqueB))
}

// SolveVelocity applies restitution against the pre-solve velocity and Coulomb friction
func (c *ContactConstraint) SolveVelocity(dt float64) {
	if len(c.Points) == 0 || (c.BodyA.IsSleeping && c.BodyB.IsSleeping) {
		return
	}

	bodyA, bodyB := c.BodyA, c.BodyB
	unlock := lockPair(bodyA, bodyB)
	defer unlock()

	invMassA := bodyA.InverseMass()
	invMassB := bodyB.InverseMass()
	invInertiaA := bodyA.GetInverseInertiaWorld()
	invInertiaB := bodyB.GetInverseInertiaWorld()

	restitution := ComputeRestitution(bodyA.Material, bodyB.Material)
	staticFriction := ComputeStaticFriction(bodyA.Material, bodyB.Material)
	dynamicFriction := ComputeDynamicFriction(bodyA.Material, bodyB.Material)

	var linearA, linearB, angularA, angularB mgl64.Vec3

	// effectiveMass along direction for the lever arms rA and rB
	effectiveMass := func(rA, rB, direction mgl64.Vec3) float64 {
		rAxD := rA.Cross(direction)
		rBxD := rB.Cross(direction)
		return invMassA + invMassB + invInertiaA.Mul3x1(rAxD).Dot(rAxD) + invInertiaB.Mul3x1(rBxD).Dot(rBxD)
	}
	accumulate := func(rA, rB, impulse mgl64.Vec3) {
		linearA = linearA.Sub(impulse.Mul(invMassA))
		linearB = linearB.Add(impulse.Mul(invMassB))
		angularA = angularA.Add(invInertiaA.Mul3x1(rA.Cross(impulse.Mul(-1))))
		angularB = angularB.Add(invInertiaB.Mul3x1(rB.Cross(impulse)))
	}

	for _, point := range c.Points {
		rA := point.Position.Sub(bodyA.Transform.Position)
		rB := point.Position.Sub(bodyB.Transform.Position)

		relativeVelocity := bodyB.Velocity.Add(bodyB.AngularVelocity.Cross(rB)).
			Sub(bodyA.Velocity.Add(bodyA.AngularVelocity.Cross(rA)))
		normalVelocity := relativeVelocity.Dot(c.Normal)

		previousVelocity := bodyB.PresolveVelocity.Add(bodyB.PresolveAngularVelocity.Cross(rB)).
			Sub(bodyA.PresolveVelocity.Add(bodyA.PresolveAngularVelocity.Cross(rA)))
		previousNormalVelocity := previousVelocity.Dot(c.Normal)

		normalMass := effectiveMass(rA, rB, c.Normal)
		if normalMass < 1e-10 {
			continue
		}

		lambdaNormal := (-restitution*previousNormalVelocity - normalVelocity) / normalMass
		if lambdaNormal <= 0 {
			// Contacts only push
			continue
		}
		accumulate(rA, rB, c.Normal.Mul(lambdaNormal))

		tangentVelocity := relativeVelocity.Sub(c.Normal.Mul(normalVelocity))
		tangentSpeed := tangentVelocity.Len()
		if tangentSpeed <= 1e-6 {
			continue
		}
		tangent := tangentVelocity.Mul(1.0 / tangentSpeed)

		tangentMass := effectiveMass(rA, rB, tangent)
		if tangentMass < 1e-10 {
			continue
		}

		lambdaTangent := -tangentSpeed / tangentMass
		if math.Abs(lambdaTangent) > staticFriction*lambdaNormal {
			lambdaTangent = -dynamicFriction * lambdaNormal
		}
		accumulate(rA, rB, tangent.Mul(lambdaTangent))
	}

	addVelocity(bodyA, linearA, angularA)
	addVelocity(bodyB, linearB, angularB)
}
