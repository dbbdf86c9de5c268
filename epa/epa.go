// Package epa implements the Expanding Polytope Algorithm for computing penetration depth.
//
// EPA runs after gjk.Overlap succeeds. Starting from the enclosing tetrahedron it expands a
// polytope of the Minkowski difference toward its surface until the face closest to the
// origin stops moving: that face gives the contact normal and the penetration depth, and a
// clipped manifold gives the contact points.
package epa

import (
	"fmt"
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/constraint"
	"github.com/akmonengine/quill/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	// MaxIterations bounds the polytope expansion
	MaxIterations = 32

	// ConvergenceTolerance is the minimum progress of a new support point
	ConvergenceTolerance = 0.001

	// MinFaceDistance skips faces touching the origin, they are degenerate
	MinFaceDistance = 0.0001

	// NormalSnapThreshold clamps nearly-zero normal components to exactly zero
	NormalSnapThreshold = 1e-8

	// DegeneratePenetrationEstimate is used when GJK could not build a tetrahedron
	DegeneratePenetrationEstimate = 0.01

	polytopeInitialCapacity = 16
)

// EPA computes the contact between two overlapping bodies. The normal points from a toward b
// and the penetration depth is positive.
func EPA(a, b *actor.RigidBody, simplex *gjk.Simplex) (constraint.ContactConstraint, error) {
	if simplex.Count < 4 {
		return degenerateContact(a, b, simplex), nil
	}

	builder := polytopeBuilderPool.Get().(*PolytopeBuilder)
	defer polytopeBuilderPool.Put(builder)
	builder.Reset()

	if err := builder.BuildInitialFaces(simplex); err != nil {
		return constraint.ContactConstraint{}, err
	}

	for i := 0; i < MaxIterations; i++ {
		if len(builder.faces) == 0 {
			break
		}

		closestIndex := builder.FindClosestFaceIndex()
		closest := builder.faces[closestIndex]

		if closest.Distance < MinFaceDistance {
			builder.removeFace(closestIndex)
			continue
		}

		support := gjk.MinkowskiSupport(a, b, closest.Normal)
		if support.Dot(closest.Normal)-closest.Distance < ConvergenceTolerance {
			return newContact(a, b, closest.Normal, closest.Distance), nil
		}

		builder.AddPointAndRebuildFaces(support, closestIndex)
	}

	return constraint.ContactConstraint{}, fmt.Errorf("epa: failed to converge after %d iterations", MaxIterations)
}

func newContact(a, b *actor.RigidBody, normal mgl64.Vec3, depth float64) constraint.ContactConstraint {
	return constraint.ContactConstraint{
		BodyA:  a,
		BodyB:  b,
		Points: GenerateManifold(a, b, normal, depth),
		Normal: normal,
	}
}

// degenerateContact estimates a contact when the simplex is not a tetrahedron
func degenerateContact(a, b *actor.RigidBody, simplex *gjk.Simplex) constraint.ContactConstraint {
	if simplex.Count >= 2 {
		p0 := simplex.Points[0]
		p1 := simplex.Points[1]
		closest := p0
		if p1.Len() < p0.Len() {
			closest = p1
		}
		if closest.LenSqr() > NormalSnapThreshold*NormalSnapThreshold {
			return newContact(a, b, closest.Normalize(), closest.Len())
		}
	}

	normal := b.Transform.Position.Sub(a.Transform.Position)
	if normal.Len() < NormalSnapThreshold {
		normal = mgl64.Vec3{0, 1, 0}
	} else {
		normal = normal.Normalize()
	}

	return newContact(a, b, normal, DegeneratePenetrationEstimate)
}

// snapNormalToAxis clamps tiny components so axis-aligned contacts stay exactly axis-aligned
func snapNormalToAxis(normal mgl64.Vec3) mgl64.Vec3 {
	for i := 0; i < 3; i++ {
		if math.Abs(normal[i]) < NormalSnapThreshold {
			normal[i] = 0
		}
	}

	length := normal.Len()
	if length <= 1e-8 {
		return mgl64.Vec3{0, 1, 0}
	}

	return normal.Mul(1.0 / length)
}
