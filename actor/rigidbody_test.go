package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func newSphereBody(position mgl64.Vec3, bodyType BodyType) *RigidBody {
	return NewRigidBody(NewTransform(position, mgl64.QuatIdent()), &Sphere{Radius: 1}, bodyType, 1.0)
}

// =============================================================================
// Construction Tests
// =============================================================================

func TestNewRigidBody_MassByType(t *testing.T) {
	tests := []struct {
		name        string
		bodyType    BodyType
		wantInvMass float64
	}{
		{"dynamic", BodyTypeDynamic, 1.0 / ((4.0 / 3.0) * math.Pi)},
		{"static", BodyTypeStatic, 0},
		{"kinematic", BodyTypeKinematic, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := newSphereBody(mgl64.Vec3{}, tt.bodyType)
			if math.Abs(rb.InverseMass()-tt.wantInvMass) > 1e-12 {
				t.Errorf("InverseMass() = %v, want %v", rb.InverseMass(), tt.wantInvMass)
			}
		})
	}
}

func TestNewRigidBody_ZeroRotationIsIdentity(t *testing.T) {
	rb := NewRigidBody(Transform{Position: mgl64.Vec3{1, 2, 3}}, &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, BodyTypeDynamic, 1)

	if rb.Transform.Rotation != mgl64.QuatIdent() {
		t.Errorf("rotation = %v, want identity", rb.Transform.Rotation)
	}
	support := rb.SupportWorld(mgl64.Vec3{1, 1, 1})
	if !support.ApproxEqual(mgl64.Vec3{2, 3, 4}) {
		t.Errorf("support = %v, want {2,3,4}", support)
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

func TestIntegrate_Gravity(t *testing.T) {
	rb := newSphereBody(mgl64.Vec3{0, 10, 0}, BodyTypeDynamic)
	gravity := mgl64.Vec3{0, -9.81, 0}
	dt := 1.0 / 60.0

	rb.Integrate(dt, gravity)

	wantVelocity := -9.81 * dt
	if math.Abs(rb.Velocity.Y()-wantVelocity) > 1e-12 {
		t.Errorf("velocity = %v, want %v", rb.Velocity.Y(), wantVelocity)
	}
	if math.Abs(rb.Transform.Position.Y()-(10+wantVelocity*dt)) > 1e-12 {
		t.Errorf("position = %v, want %v", rb.Transform.Position.Y(), 10+wantVelocity*dt)
	}
	if rb.PreviousTransform.Position.Y() != 10 {
		t.Errorf("previous position = %v, want 10", rb.PreviousTransform.Position.Y())
	}
}

func TestIntegrate_GravityFactor(t *testing.T) {
	rb := newSphereBody(mgl64.Vec3{}, BodyTypeDynamic)
	rb.GravityFactor = 0

	rb.Integrate(1.0/60.0, mgl64.Vec3{0, -9.81, 0})

	if rb.Velocity.Len() != 0 {
		t.Errorf("velocity = %v, want zero", rb.Velocity)
	}
}

func TestIntegrate_StaticAndSleepingDoNotMove(t *testing.T) {
	static := newSphereBody(mgl64.Vec3{0, 1, 0}, BodyTypeStatic)
	sleeping := newSphereBody(mgl64.Vec3{0, 1, 0}, BodyTypeDynamic)
	sleeping.Sleep()

	for _, rb := range []*RigidBody{static, sleeping} {
		rb.Integrate(1.0/60.0, mgl64.Vec3{0, -9.81, 0})
		if rb.Transform.Position != (mgl64.Vec3{0, 1, 0}) {
			t.Errorf("%v body moved to %v", rb.BodyType, rb.Transform.Position)
		}
	}
}

func TestIntegrate_KinematicIgnoresGravity(t *testing.T) {
	rb := newSphereBody(mgl64.Vec3{}, BodyTypeKinematic)
	rb.Velocity = mgl64.Vec3{1, 0, 0}

	rb.Integrate(0.5, mgl64.Vec3{0, -9.81, 0})

	if !rb.Transform.Position.ApproxEqual(mgl64.Vec3{0.5, 0, 0}) {
		t.Errorf("position = %v, want {0.5,0,0}", rb.Transform.Position)
	}
}

func TestUpdate_DerivesVelocityFromPositions(t *testing.T) {
	rb := newSphereBody(mgl64.Vec3{}, BodyTypeDynamic)
	rb.Integrate(0.1, mgl64.Vec3{})
	rb.Transform.Position = mgl64.Vec3{0, 0.2, 0}

	rb.Update(0.1)

	if !rb.Velocity.ApproxEqual(mgl64.Vec3{0, 2, 0}) {
		t.Errorf("velocity = %v, want {0,2,0}", rb.Velocity)
	}
}

// =============================================================================
// Impulse and Sleep Tests
// =============================================================================

func TestApplyImpulse_WakesAndScalesByMass(t *testing.T) {
	rb := NewRigidBody(NewTransform(mgl64.Vec3{}, mgl64.QuatIdent()), &Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, BodyTypeDynamic, 2.0)
	rb.Sleep()

	rb.ApplyImpulse(mgl64.Vec3{4, 0, 0})

	if rb.IsSleeping {
		t.Error("impulse should wake the body")
	}
	if !rb.Velocity.ApproxEqual(mgl64.Vec3{2, 0, 0}) {
		t.Errorf("velocity = %v, want {2,0,0}", rb.Velocity)
	}
}

func TestApplyImpulse_StaticIgnored(t *testing.T) {
	rb := newSphereBody(mgl64.Vec3{}, BodyTypeStatic)
	rb.ApplyImpulse(mgl64.Vec3{4, 0, 0})
	rb.ApplyAngularImpulse(mgl64.Vec3{4, 0, 0})

	if rb.Velocity.Len() != 0 || rb.AngularVelocity.Len() != 0 {
		t.Error("static body should ignore impulses")
	}
}

func TestTrySleep(t *testing.T) {
	rb := newSphereBody(mgl64.Vec3{}, BodyTypeDynamic)

	rb.TrySleep(0.06, 0.1, 0.05)
	if rb.IsSleeping {
		t.Fatal("body should not sleep before the time threshold")
	}
	rb.TrySleep(0.06, 0.1, 0.05)
	if !rb.IsSleeping {
		t.Fatal("body should sleep after the time threshold")
	}

	awake := newSphereBody(mgl64.Vec3{}, BodyTypeDynamic)
	awake.AllowSleep = false
	awake.TrySleep(1, 0.1, 0.05)
	if awake.IsSleeping {
		t.Error("AllowSleep=false must keep the body awake")
	}
}

func TestSetTransform_ResetsPrevious(t *testing.T) {
	rb := newSphereBody(mgl64.Vec3{}, BodyTypeDynamic)
	rb.SetTransform(mgl64.Vec3{5, 0, 0}, mgl64.QuatIdent())

	if rb.PreviousTransform.Position != rb.Transform.Position {
		t.Error("teleport must not leave a previous position behind")
	}
	if !rb.AABB().ContainsPoint(mgl64.Vec3{5, 0, 0}) {
		t.Error("AABB was not refreshed")
	}
}
