package actor

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// BodyType represents the type of rigid body
type BodyType int

const (
	// BodyTypeDynamic bodies are affected by forces, gravity, and collisions
	// They have finite mass and can move freely
	BodyTypeDynamic BodyType = iota

	// BodyTypeStatic bodies are immovable and have infinite mass
	// They are not affected by forces or gravity (e.g., ground, walls)
	BodyTypeStatic

	// BodyTypeKinematic bodies move only by their velocity and push dynamic bodies away
	BodyTypeKinematic
)

func (t BodyType) String() string {
	switch t {
	case BodyTypeDynamic:
		return "dynamic"
	case BodyTypeStatic:
		return "static"
	case BodyTypeKinematic:
		return "kinematic"
	}
	return "unknown"
}

type Material struct {
	Density     float64
	mass        float64
	Restitution float64 // 0= no rebound, 1= perfect restitution

	StaticFriction  float64
	DynamicFriction float64
	LinearDamping   float64 // 0.0 - 1.0, typical: 0.01
	AngularDamping  float64 // 0.0 - 1.0, typical: 0.05
}

func (material Material) GetMass() float64 {
	return material.mass
}

// RigidBody represents a rigid body in the physics simulation
type RigidBody struct {
	// Held by the contact and joint solvers while they move the body
	Mutex sync.Mutex

	// Spatial properties
	PreviousTransform Transform
	Transform         Transform

	// Linear motion
	PresolveVelocity mgl64.Vec3
	Velocity         mgl64.Vec3 // Linear velocity (m/s)

	// Angular motion
	PresolveAngularVelocity mgl64.Vec3
	AngularVelocity         mgl64.Vec3 // rad/s

	InertiaLocal        mgl64.Mat3
	InverseInertiaLocal mgl64.Mat3

	accumulatedForce  mgl64.Vec3
	accumulatedTorque mgl64.Vec3

	IsSleeping bool
	SleepTimer float64
	AllowSleep bool

	// Scales the world gravity for this body, 1 by default
	GravityFactor float64

	// Physical properties
	Material Material
	BodyType BodyType

	// Collision shape
	Shape ShapeInterface
	aabb  AABB
}

// NewRigidBody creates a new rigid body with the given properties
// density is used to calculate mass for dynamic bodies (ignored for static and kinematic)
func NewRigidBody(transform Transform, shape ShapeInterface, bodyType BodyType, density float64) *RigidBody {
	rb := &RigidBody{
		PreviousTransform: NewTransform(transform.Position, transform.Rotation),
		Transform:         NewTransform(transform.Position, transform.Rotation),
		Shape:             shape,
		BodyType:          bodyType,
		AllowSleep:        true,
		GravityFactor:     1.0,
	}

	if bodyType == BodyTypeDynamic {
		rb.Material = Material{
			Density: density,
			mass:    shape.ComputeMass(density),
		}
		rb.InertiaLocal = shape.ComputeInertia(rb.Material.mass)
		rb.InverseInertiaLocal = rb.InertiaLocal.Inv()
	} else {
		// Static and kinematic bodies have infinite mass
		rb.Material = Material{mass: math.Inf(1)}
	}

	rb.UpdateAABB()

	return rb
}

// AABB returns the bounds computed at the last transform change
func (rb *RigidBody) AABB() AABB {
	return rb.aabb
}

func (rb *RigidBody) UpdateAABB() {
	rb.aabb = rb.Shape.ComputeAABB(rb.Transform)
}

// InverseMass is zero for static and kinematic bodies
func (rb *RigidBody) InverseMass() float64 {
	if rb.BodyType != BodyTypeDynamic {
		return 0
	}
	mass := rb.Material.GetMass()
	if mass <= 0 || math.IsInf(mass, 1) {
		return 0
	}
	return 1.0 / mass
}

// SetTransform teleports the body, previous state included so no velocity is derived from the move
func (rb *RigidBody) SetTransform(position mgl64.Vec3, rotation mgl64.Quat) {
	rb.Transform = NewTransform(position, rotation)
	rb.PreviousTransform = rb.Transform
	rb.UpdateAABB()
}

func (rb *RigidBody) TrySleep(dt float64, timethreshold float64, velocityThreshold float64) {
	if !rb.AllowSleep || rb.BodyType != BodyTypeDynamic {
		return
	}
	if rb.Velocity.Len() < velocityThreshold && rb.AngularVelocity.Len() < velocityThreshold {
		rb.SleepTimer += dt
		if rb.SleepTimer >= timethreshold {
			rb.Sleep()
		}
	} else {
		rb.Awake()
	}
}

func (rb *RigidBody) Sleep() {
	rb.IsSleeping = true
	rb.SleepTimer = 0.0

	rb.UpdateAABB()
	rb.ClearForces()
	rb.Velocity = mgl64.Vec3{}
	rb.AngularVelocity = mgl64.Vec3{}
}

func (rb *RigidBody) Awake() {
	rb.IsSleeping = false
	rb.SleepTimer = 0.0
}

func (rb *RigidBody) Integrate(dt float64, gravity mgl64.Vec3) {
	if rb.BodyType == BodyTypeStatic || rb.IsSleeping {
		return
	}

	rb.PreviousTransform = rb.Transform

	if rb.BodyType == BodyTypeDynamic {
		// Linear integration
		invMass := rb.InverseMass()
		acceleration := gravity.Mul(rb.GravityFactor).Add(rb.accumulatedForce.Mul(invMass))
		rb.Velocity = rb.Velocity.Add(acceleration.Mul(dt))
		rb.Velocity = rb.Velocity.Mul(math.Exp(-rb.Material.LinearDamping * dt))

		// Angular integration
		angularAccel := rb.GetInverseInertiaWorld().Mul3x1(rb.accumulatedTorque)
		rb.AngularVelocity = rb.AngularVelocity.Add(angularAccel.Mul(dt))
		rb.AngularVelocity = rb.AngularVelocity.Mul(math.Exp(-rb.Material.AngularDamping * dt))
	}

	rb.Transform.Position = rb.Transform.Position.Add(rb.Velocity.Mul(dt))

	omegaQuat := mgl64.Quat{V: rb.AngularVelocity, W: 0}
	qDot := omegaQuat.Mul(rb.Transform.Rotation).Scale(0.5)
	rb.Transform.Rotation = rb.Transform.Rotation.Add(qDot.Scale(dt)).Normalize()
	rb.Transform.InverseRotation = rb.Transform.Rotation.Inverse()

	rb.PresolveVelocity = rb.Velocity
	rb.PresolveAngularVelocity = rb.AngularVelocity

	rb.UpdateAABB()
	rb.ClearForces()
}

// Update derives the velocities from the solved positions
func (rb *RigidBody) Update(dt float64) {
	if rb.BodyType != BodyTypeDynamic || rb.IsSleeping {
		return
	}

	rb.Velocity = rb.Transform.Position.Sub(rb.PreviousTransform.Position).Mul(1.0 / dt)
	qDelta := rb.Transform.Rotation.Mul(rb.PreviousTransform.Rotation.Conjugate()).Normalize()
	if qDelta.W >= 0.0 {
		rb.AngularVelocity = qDelta.V.Mul(2.0 / dt)
	} else {
		rb.AngularVelocity = qDelta.V.Mul(-2.0 / dt)
	}

	rb.UpdateAABB()
}

// AddForce accumulates a force (N) applied at the centre of mass until the next integration
func (rb *RigidBody) AddForce(force mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()
		rb.accumulatedForce = rb.accumulatedForce.Add(force)
	}
}

// AddTorque accumulates a torque (N⋅m) until the next integration
func (rb *RigidBody) AddTorque(torque mgl64.Vec3) {
	if rb.BodyType == BodyTypeDynamic {
		rb.Awake()
		rb.accumulatedTorque = rb.accumulatedTorque.Add(torque)
	}
}

// ApplyImpulse changes the linear velocity by impulse / mass
func (rb *RigidBody) ApplyImpulse(impulse mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}
	rb.Awake()
	rb.Velocity = rb.Velocity.Add(impulse.Mul(rb.InverseMass()))
}

// ApplyAngularImpulse changes the angular velocity by I⁻¹ * impulse
func (rb *RigidBody) ApplyAngularImpulse(impulse mgl64.Vec3) {
	if rb.BodyType != BodyTypeDynamic {
		return
	}
	rb.Awake()
	rb.AngularVelocity = rb.AngularVelocity.Add(rb.GetInverseInertiaWorld().Mul3x1(impulse))
}

func (rb *RigidBody) ClearForces() {
	rb.accumulatedForce = mgl64.Vec3{0, 0, 0}
	rb.accumulatedTorque = mgl64.Vec3{0, 0, 0}
}

func (rb *RigidBody) SupportWorld(direction mgl64.Vec3) mgl64.Vec3 {
	localDirection := rb.Transform.InverseRotation.Rotate(direction)
	localSupport := rb.Shape.Support(localDirection)

	return rb.Transform.ToWorld(localSupport)
}

// GetInertiaWorld returns R * I_local * R^T
func (rb *RigidBody) GetInertiaWorld() mgl64.Mat3 {
	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InertiaLocal).Mul3(R.Transpose())
}

// GetInverseInertiaWorld returns R * I_local^(-1) * R^T, zero for non dynamic bodies
func (rb *RigidBody) GetInverseInertiaWorld() mgl64.Mat3 {
	if rb.BodyType != BodyTypeDynamic {
		return mgl64.Mat3{}
	}

	R := rb.Transform.Rotation.Mat4().Mat3()
	return R.Mul3(rb.InverseInertiaLocal).Mul3(R.Transpose())
}
