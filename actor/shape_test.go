package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// =============================================================================
// AABB Tests
// =============================================================================

func TestBox_ComputeAABB_Rotated(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	identity := box.ComputeAABB(NewTransform(mgl64.Vec3{1, 1, 1}, mgl64.QuatIdent()))
	if !identity.Min.ApproxEqual(mgl64.Vec3{0, -1, -2}) || !identity.Max.ApproxEqual(mgl64.Vec3{2, 3, 4}) {
		t.Errorf("identity AABB = %v, want min {0,-1,-2} max {2,3,4}", identity)
	}

	// 90° around Z swaps the X and Y extents
	rotated := box.ComputeAABB(NewTransform(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, mgl64.Vec3{0, 0, 1})))
	want := mgl64.Vec3{2, 1, 3}
	if !rotated.Max.ApproxEqualThreshold(want, 1e-9) {
		t.Errorf("rotated AABB max = %v, want %v", rotated.Max, want)
	}
}

// =============================================================================
// Ray Cast Tests
// =============================================================================

func TestShapes_CastRay(t *testing.T) {
	tests := []struct {
		name       string
		shape      ShapeInterface
		origin     mgl64.Vec3
		direction  mgl64.Vec3
		wantHit    bool
		wantT      float64
		wantNormal mgl64.Vec3
	}{
		{"sphere from above", &Sphere{Radius: 1}, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -10, 0}, true, 0.4, mgl64.Vec3{0, 1, 0}},
		{"sphere miss", &Sphere{Radius: 1}, mgl64.Vec3{2, 5, 0}, mgl64.Vec3{0, -10, 0}, false, 0, mgl64.Vec3{}},
		{"sphere too short", &Sphere{Radius: 1}, mgl64.Vec3{0, 5, 0}, mgl64.Vec3{0, -2, 0}, false, 0, mgl64.Vec3{}},
		{"box from side", &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{4, 0, 0}, true, 0.5, mgl64.Vec3{-1, 0, 0}},
		{"box from below", &Box{HalfExtents: mgl64.Vec3{1, 2, 1}}, mgl64.Vec3{0, -4, 0}, mgl64.Vec3{0, 4, 0}, true, 0.5, mgl64.Vec3{0, -1, 0}},
		{"box miss", &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, mgl64.Vec3{-3, 2, 0}, mgl64.Vec3{6, 0, 0}, false, 0, mgl64.Vec3{}},
		{"plane hit", &Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{0, 2, 0}, mgl64.Vec3{0, -4, 0}, true, 0.5, mgl64.Vec3{0, 1, 0}},
		{"plane parallel", &Plane{Normal: mgl64.Vec3{0, 1, 0}}, mgl64.Vec3{0, 2, 0}, mgl64.Vec3{4, 0, 0}, false, 0, mgl64.Vec3{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, normal, hit := tt.shape.CastRay(tt.origin, tt.direction)
			if hit != tt.wantHit {
				t.Fatalf("hit = %v, want %v", hit, tt.wantHit)
			}
			if !hit {
				return
			}
			if math.Abs(got-tt.wantT) > 1e-9 {
				t.Errorf("t = %v, want %v", got, tt.wantT)
			}
			if !normal.ApproxEqualThreshold(tt.wantNormal, 1e-9) {
				t.Errorf("normal = %v, want %v", normal, tt.wantNormal)
			}
		})
	}
}

// =============================================================================
// Plane Collision Tests
// =============================================================================

func TestSphere_CollideWithPlane(t *testing.T) {
	sphere := &Sphere{Radius: 1}
	up := mgl64.Vec3{0, 1, 0}

	hit, contacts := sphere.CollideWithPlane(up, 0, NewTransform(mgl64.Vec3{0, 0.75, 0}, mgl64.QuatIdent()))
	if !hit || len(contacts) != 1 {
		t.Fatalf("expected a single contact, got hit=%v contacts=%d", hit, len(contacts))
	}
	if math.Abs(contacts[0].Penetration-0.25) > 1e-9 {
		t.Errorf("penetration = %v, want 0.25", contacts[0].Penetration)
	}

	hit, _ = sphere.CollideWithPlane(up, 0, NewTransform(mgl64.Vec3{0, 1.5, 0}, mgl64.QuatIdent()))
	if hit {
		t.Error("sphere above the plane should not collide")
	}
}

func TestBox_CollideWithPlane_FlatFace(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}

	hit, contacts := box.CollideWithPlane(mgl64.Vec3{0, 1, 0}, 0, NewTransform(mgl64.Vec3{0, 0.9, 0}, mgl64.QuatIdent()))
	if !hit {
		t.Fatal("expected collision")
	}
	if len(contacts) != 4 {
		t.Fatalf("expected 4 bottom corners, got %d", len(contacts))
	}
	for _, c := range contacts {
		if math.Abs(c.Penetration-0.1) > 1e-9 {
			t.Errorf("penetration = %v, want 0.1", c.Penetration)
		}
	}
}

func TestBox_GetContactFeature_PicksAlignedFace(t *testing.T) {
	box := &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}

	face := box.GetContactFeature(mgl64.Vec3{0, -1, 0.1})
	if len(face) != 4 {
		t.Fatalf("expected a 4 vertex face, got %d", len(face))
	}
	for _, v := range face {
		if v.Y() != -2 {
			t.Errorf("vertex %v is not on the -Y face", v)
		}
	}
}
