package gjk

import (
	"math"
	"testing"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

func createBoxBody(position mgl64.Vec3, rotation mgl64.Quat, halfExtents mgl64.Vec3) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransform(position, rotation), &actor.Box{HalfExtents: halfExtents}, actor.BodyTypeDynamic, 1.0)
}

func createSphereBody(position mgl64.Vec3, radius float64) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransform(position, mgl64.QuatIdent()), &actor.Sphere{Radius: radius}, actor.BodyTypeDynamic, 1.0)
}

// =============================================================================
// MinkowskiSupport Tests
// =============================================================================

func TestMinkowskiSupport(t *testing.T) {
	tests := []struct {
		name      string
		a, b      *actor.RigidBody
		direction mgl64.Vec3
		wantX     float64
	}{
		{"separated spheres", createSphereBody(mgl64.Vec3{}, 1), createSphereBody(mgl64.Vec3{3, 0, 0}, 1), mgl64.Vec3{1, 0, 0}, -1},
		{"overlapping spheres", createSphereBody(mgl64.Vec3{}, 1), createSphereBody(mgl64.Vec3{1.5, 0, 0}, 1), mgl64.Vec3{1, 0, 0}, 0.5},
		{"opposite direction", createSphereBody(mgl64.Vec3{}, 1), createSphereBody(mgl64.Vec3{3, 0, 0}, 1), mgl64.Vec3{-1, 0, 0}, -5},
		{"boxes", createBoxBody(mgl64.Vec3{}, mgl64.QuatIdent(), mgl64.Vec3{1, 1, 1}), createBoxBody(mgl64.Vec3{4, 0, 0}, mgl64.QuatIdent(), mgl64.Vec3{1, 1, 1}), mgl64.Vec3{1, 0, 0}, -2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			support := MinkowskiSupport(tt.a, tt.b, tt.direction)
			if math.Abs(support.X()-tt.wantX) > 1e-9 {
				t.Errorf("support.X = %v, want %v", support.X(), tt.wantX)
			}
		})
	}
}

// =============================================================================
// Overlap Tests
// =============================================================================

func TestOverlap(t *testing.T) {
	unit := mgl64.Vec3{1, 1, 1}
	tilted := mgl64.QuatRotate(math.Pi/4, mgl64.Vec3{0, 0, 1})

	tests := []struct {
		name string
		a, b *actor.RigidBody
		want bool
	}{
		{"spheres apart", createSphereBody(mgl64.Vec3{}, 1), createSphereBody(mgl64.Vec3{2.5, 0, 0}, 1), false},
		{"spheres overlapping", createSphereBody(mgl64.Vec3{}, 1), createSphereBody(mgl64.Vec3{1.5, 0, 0}, 1), true},
		{"concentric spheres", createSphereBody(mgl64.Vec3{}, 1), createSphereBody(mgl64.Vec3{}, 0.5), true},
		{"boxes apart", createBoxBody(mgl64.Vec3{}, mgl64.QuatIdent(), unit), createBoxBody(mgl64.Vec3{0, 2.5, 0}, mgl64.QuatIdent(), unit), false},
		{"boxes overlapping", createBoxBody(mgl64.Vec3{}, mgl64.QuatIdent(), unit), createBoxBody(mgl64.Vec3{1.5, 0.5, 0}, mgl64.QuatIdent(), unit), true},
		{"diagonal boxes apart", createBoxBody(mgl64.Vec3{}, mgl64.QuatIdent(), unit), createBoxBody(mgl64.Vec3{2.1, 2.1, 2.1}, mgl64.QuatIdent(), unit), false},
		// the tilted edge reaches sqrt(2) along x
		{"tilted box corner", createBoxBody(mgl64.Vec3{}, tilted, unit), createBoxBody(mgl64.Vec3{2.3, 0, 0}, mgl64.QuatIdent(), unit), true},
		{"tilted box clear", createBoxBody(mgl64.Vec3{}, tilted, unit), createBoxBody(mgl64.Vec3{2.5, 0, 0}, mgl64.QuatIdent(), unit), false},
		{"sphere against box face", createSphereBody(mgl64.Vec3{0, 1.4, 0}, 0.5), createBoxBody(mgl64.Vec3{}, mgl64.QuatIdent(), unit), true},
		{"sphere near box edge", createSphereBody(mgl64.Vec3{1.4, 1.4, 0}, 0.5), createBoxBody(mgl64.Vec3{}, mgl64.QuatIdent(), unit), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var simplex Simplex
			if got := Overlap(tt.a, tt.b, &simplex); got != tt.want {
				t.Errorf("Overlap = %v, want %v", got, tt.want)
			}
			var reversed Simplex
			if got := Overlap(tt.b, tt.a, &reversed); got != tt.want {
				t.Errorf("reversed Overlap = %v, want %v", got, tt.want)
			}
			if simplex.Count < 1 || simplex.Count > 4 {
				t.Errorf("simplex holds %d points", simplex.Count)
			}
		})
	}
}

func TestSimplex_Reset(t *testing.T) {
	var simplex Simplex
	simplex.set(mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0})
	if simplex.Count != 2 {
		t.Fatalf("count = %d, want 2", simplex.Count)
	}
	simplex.Reset()
	if simplex.Count != 0 {
		t.Errorf("count after reset = %d", simplex.Count)
	}
}
