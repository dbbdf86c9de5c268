// Package gjk implements the Gilbert-Johnson-Keerthi overlap test for convex rigid bodies.
//
// Two convex shapes overlap when their Minkowski difference contains the origin. The test
// grows a simplex of support points toward the origin and stops as soon as the origin is
// either enclosed (overlap) or provably out of reach (separated). A successful test leaves a
// tetrahedron in the simplex, which the epa package expands into a penetration depth.
package gjk

import (
	"sync"

	"github.com/akmonengine/quill/actor"
	"github.com/go-gl/mathgl/mgl64"
)

const maxIterations = 32

// Simplex holds 1-4 support points of the Minkowski difference, most recent last.
type Simplex struct {
	Points [4]mgl64.Vec3
	Count  int
}

func (s *Simplex) Reset() {
	s.Count = 0
}

func (s *Simplex) set(points ...mgl64.Vec3) {
	s.Count = copy(s.Points[:], points)
}

var SimplexPool = sync.Pool{
	New: func() interface{} {
		return &Simplex{}
	},
}

// MinkowskiSupport returns the furthest point of A - B along direction.
func MinkowskiSupport(a, b *actor.RigidBody, direction mgl64.Vec3) mgl64.Vec3 {
	return a.SupportWorld(direction).Sub(b.SupportWorld(direction.Mul(-1)))
}

// Overlap reports whether a and b intersect. The simplex is filled in place.
func Overlap(a, b *actor.RigidBody, simplex *Simplex) bool {
	// Searching toward the other body first usually saves a couple of iterations
	direction := b.Transform.Position.Sub(a.Transform.Position)
	if direction.LenSqr() < 1e-8 {
		direction = mgl64.Vec3{1, 0, 0}
	}

	simplex.set(MinkowskiSupport(a, b, direction))
	direction = simplex.Points[0].Mul(-1)
	if direction.LenSqr() < 1e-16 {
		// Touching at exactly one point
		return true
	}

	for i := 0; i < maxIterations; i++ {
		point := MinkowskiSupport(a, b, direction)
		if point.Dot(direction) <= 0 {
			// The new point does not pass the origin: separated
			return false
		}

		simplex.Points[simplex.Count] = point
		simplex.Count++

		if refine(simplex, &direction) {
			return true
		}
	}

	return false
}

// refine reduces the simplex to the feature closest to the origin and updates the search
// direction. It returns true once the origin is enclosed.
func refine(simplex *Simplex, direction *mgl64.Vec3) bool {
	switch simplex.Count {
	case 2:
		return refineLine(simplex, direction)
	case 3:
		return refineTriangle(simplex, direction)
	case 4:
		return refineTetrahedron(simplex, direction)
	}
	return false
}

func refineLine(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Points[1]
	b := simplex.Points[0]
	ab := b.Sub(a)
	ao := a.Mul(-1)

	if ab.LenSqr() < 1e-8 {
		if ao.LenSqr() < 1e-8 {
			return true
		}
		simplex.set(a)
		*direction = ao
		return false
	}

	if ab.Dot(ao) <= 0 {
		simplex.set(a)
		*direction = ao
		return false
	}

	perp := ab.Cross(ao).Cross(ab)
	if perp.LenSqr() < 1e-8 {
		// Origin lies on the segment
		return true
	}

	*direction = perp
	return false
}

func refineTriangle(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Points[2]
	b := simplex.Points[1]
	c := simplex.Points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ao := a.Mul(-1)
	abc := ab.Cross(ac)

	if abc.LenSqr() < 1e-10 {
		// Colinear, drop the oldest point
		simplex.set(b, a)
		return refineLine(simplex, direction)
	}

	if ab.Cross(abc).Dot(ao) > 0 {
		simplex.set(b, a)
		*direction = ab.Cross(ao).Cross(ab)
		return false
	}

	if abc.Cross(ac).Dot(ao) > 0 {
		simplex.set(c, a)
		*direction = ac.Cross(ao).Cross(ac)
		return false
	}

	if abc.Dot(ao) > 0 {
		*direction = abc
	} else {
		// Keep the winding consistent with the search direction
		simplex.set(b, c, a)
		*direction = abc.Mul(-1)
	}

	return false
}

func refineTetrahedron(simplex *Simplex, direction *mgl64.Vec3) bool {
	a := simplex.Points[3]
	b := simplex.Points[2]
	c := simplex.Points[1]
	d := simplex.Points[0]

	ab := b.Sub(a)
	ac := c.Sub(a)
	ad := d.Sub(a)
	ao := a.Mul(-1)

	// Face normals must point away from the opposite vertex
	abc := outward(ab.Cross(ac), ad)
	acd := outward(ac.Cross(ad), ab)
	adb := outward(ad.Cross(ab), ac)

	if abc.LenSqr() < 1e-10 || acd.LenSqr() < 1e-10 || adb.LenSqr() < 1e-10 {
		simplex.set(c, b, a)
		return refineTriangle(simplex, direction)
	}

	switch {
	case abc.Dot(ao) > 0:
		simplex.set(c, b, a)
	case acd.Dot(ao) > 0:
		simplex.set(d, c, a)
	case adb.Dot(ao) > 0:
		simplex.set(b, d, a)
	default:
		return true
	}

	return refineTriangle(simplex, direction)
}

func outward(normal, towardOpposite mgl64.Vec3) mgl64.Vec3 {
	if normal.Dot(towardOpposite) > 0 {
		return normal.Mul(-1)
	}
	return normal
}
