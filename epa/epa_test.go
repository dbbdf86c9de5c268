package epa

import (
	"math"
	"testing"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

func createBoxBody(position mgl64.Vec3, halfExtents mgl64.Vec3) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransform(position, mgl64.QuatIdent()), &actor.Box{HalfExtents: halfExtents}, actor.BodyTypeDynamic, 1.0)
}

func createSphereBody(position mgl64.Vec3, radius float64) *actor.RigidBody {
	return actor.NewRigidBody(actor.NewTransform(position, mgl64.QuatIdent()), &actor.Sphere{Radius: radius}, actor.BodyTypeDynamic, 1.0)
}

// shiftedTetrahedron is a regular tetrahedron around the origin, moved so that the face
// opposite (1, 1, 1) is the closest one.
func shiftedTetrahedron() gjk.Simplex {
	shift := mgl64.Vec3{0.5, 0.2, 0}
	return gjk.Simplex{
		Points: [4]mgl64.Vec3{
			mgl64.Vec3{1, 1, 1}.Add(shift),
			mgl64.Vec3{1, -1, -1}.Add(shift),
			mgl64.Vec3{-1, 1, -1}.Add(shift),
			mgl64.Vec3{-1, -1, 1}.Add(shift),
		},
		Count: 4,
	}
}

func assertOutward(t *testing.T, faces []Face, points []mgl64.Vec3) {
	t.Helper()
	for i, face := range faces {
		if face.Distance <= 0 {
			t.Errorf("face %d distance %v", i, face.Distance)
		}
		for _, point := range points {
			if point.Dot(face.Normal) > face.Distance+1e-9 {
				t.Errorf("face %d does not enclose %v", i, point)
			}
		}
	}
}

// =============================================================================
// Polytope Tests
// =============================================================================

func TestPolytopeBuilder_BuildInitialFaces(t *testing.T) {
	var builder PolytopeBuilder
	simplex := shiftedTetrahedron()
	if err := builder.BuildInitialFaces(&simplex); err != nil {
		t.Fatal(err)
	}
	if len(builder.faces) != 4 {
		t.Fatalf("faces = %d, want 4", len(builder.faces))
	}
	assertOutward(t, builder.faces, simplex.Points[:])

	closest := builder.faces[builder.FindClosestFaceIndex()]
	if want := 0.3 / math.Sqrt(3); math.Abs(closest.Distance-want) > 1e-9 {
		t.Errorf("closest distance = %v, want %v", closest.Distance, want)
	}
	if want := (mgl64.Vec3{-1, -1, -1}).Normalize(); !closest.Normal.ApproxEqualThreshold(want, 1e-9) {
		t.Errorf("closest normal = %v, want %v", closest.Normal, want)
	}
}

func TestPolytopeBuilder_RejectsIncompleteSimplex(t *testing.T) {
	var builder PolytopeBuilder
	simplex := gjk.Simplex{Count: 3}
	if err := builder.BuildInitialFaces(&simplex); err == nil {
		t.Error("expected an error for a triangle")
	}
	if builder.FindClosestFaceIndex() != -1 {
		t.Error("empty builder returned a face")
	}
}

func TestPolytopeBuilder_AddPointAndRebuildFaces(t *testing.T) {
	var builder PolytopeBuilder
	simplex := shiftedTetrahedron()
	if err := builder.BuildInitialFaces(&simplex); err != nil {
		t.Fatal(err)
	}

	index := builder.FindClosestFaceIndex()
	support := builder.faces[index].Normal.Mul(2)
	builder.AddPointAndRebuildFaces(support, index)

	if len(builder.faces) != 6 {
		t.Fatalf("faces = %d, want 6", len(builder.faces))
	}
	points := append(simplex.Points[:], support)
	assertOutward(t, builder.faces, points)
}

// =============================================================================
// EPA Tests
// =============================================================================

func TestEPA(t *testing.T) {
	unit := mgl64.Vec3{1, 1, 1}

	tests := []struct {
		name       string
		a, b       *actor.RigidBody
		wantNormal mgl64.Vec3
		wantDepth  float64
	}{
		{"boxes side by side", createBoxBody(mgl64.Vec3{}, unit), createBoxBody(mgl64.Vec3{1.5, 0.2, 0.1}, unit), mgl64.Vec3{1, 0, 0}, 0.5},
		{"boxes reversed", createBoxBody(mgl64.Vec3{1.5, 0.2, 0.1}, unit), createBoxBody(mgl64.Vec3{}, unit), mgl64.Vec3{-1, 0, 0}, 0.5},
		{"stacked boxes", createBoxBody(mgl64.Vec3{}, mgl64.Vec3{2, 0.5, 2}), createBoxBody(mgl64.Vec3{0.3, 0.8, -0.2}, mgl64.Vec3{0.5, 0.5, 0.5}), mgl64.Vec3{0, 1, 0}, 0.2},
		{"sphere on box", createBoxBody(mgl64.Vec3{}, unit), createSphereBody(mgl64.Vec3{0.2, 1.4, 0.1}, 0.5), mgl64.Vec3{0, 1, 0}, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var simplex gjk.Simplex
			if !gjk.Overlap(tt.a, tt.b, &simplex) {
				t.Fatal("bodies do not overlap")
			}

			contact, err := EPA(tt.a, tt.b, &simplex)
			if err != nil {
				t.Fatal(err)
			}
			if contact.BodyA != tt.a || contact.BodyB != tt.b {
				t.Error("contact bodies swapped")
			}
			if !contact.Normal.ApproxEqualThreshold(tt.wantNormal, 0.01) {
				t.Errorf("normal = %v, want %v", contact.Normal, tt.wantNormal)
			}
			if depth := contact.MaxPenetration(); math.Abs(depth-tt.wantDepth) > 0.01 {
				t.Errorf("depth = %v, want %v", depth, tt.wantDepth)
			}
			if n := len(contact.Points); n < 1 || n > maxManifoldPoints {
				t.Errorf("manifold has %d points", n)
			}
		})
	}
}

func TestEPA_DegenerateSimplexStillGivesContact(t *testing.T) {
	a := createSphereBody(mgl64.Vec3{}, 1)
	b := createSphereBody(mgl64.Vec3{0, 0.5, 0}, 1)
	simplex := gjk.Simplex{Count: 1}

	contact, err := EPA(a, b, &simplex)
	if err != nil {
		t.Fatal(err)
	}
	if !contact.Normal.ApproxEqual(mgl64.Vec3{0, 1, 0}) {
		t.Errorf("normal = %v, want the direction between the centers", contact.Normal)
	}
	if contact.MaxPenetration() != DegeneratePenetrationEstimate {
		t.Errorf("depth = %v", contact.MaxPenetration())
	}
}

// =============================================================================
// Manifold Tests
// =============================================================================

func TestGenerateManifold_FaceToFace(t *testing.T) {
	ground := createBoxBody(mgl64.Vec3{}, mgl64.Vec3{5, 0.5, 5})
	crate := createBoxBody(mgl64.Vec3{0, 0.9, 0}, mgl64.Vec3{0.5, 0.5, 0.5})

	points := GenerateManifold(ground, crate, mgl64.Vec3{0, 1, 0}, 0.1)
	if len(points) != 4 {
		t.Fatalf("points = %d, want the 4 crate corners", len(points))
	}
	for _, point := range points {
		if math.Abs(point.Position.Y()-0.4) > 1e-6 {
			t.Errorf("corner %v is not on the crate bottom", point.Position)
		}
		if math.Abs(point.Position.X()) > 0.5+1e-6 || math.Abs(point.Position.Z()) > 0.5+1e-6 {
			t.Errorf("corner %v is outside the crate", point.Position)
		}
		if point.Penetration != 0.1 {
			t.Errorf("penetration = %v", point.Penetration)
		}
	}
}

func TestGenerateManifold_SphereGivesOnePoint(t *testing.T) {
	ground := createBoxBody(mgl64.Vec3{}, mgl64.Vec3{5, 0.5, 5})
	ball := createSphereBody(mgl64.Vec3{1, 0.9, 0}, 0.5)

	points := GenerateManifold(ground, ball, mgl64.Vec3{0, 1, 0}, 0.1)
	if len(points) != 1 {
		t.Fatalf("points = %d, want 1", len(points))
	}
	if !points[0].Position.ApproxEqualThreshold(mgl64.Vec3{1, 0.4, 0}, 1e-6) {
		t.Errorf("contact at %v", points[0].Position)
	}
}
