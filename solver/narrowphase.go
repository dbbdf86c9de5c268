package solver

import (
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/constraint"
	"github.com/akmonengine/quill/epa"
	"github.com/akmonengine/quill/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Collide computes the contact between two bodies. The normal of the returned constraint
// points from a toward b. It returns false when the bodies do not touch.
func Collide(a, b *actor.RigidBody) (constraint.ContactConstraint, bool) {
	_, aIsPlane := a.Shape.(*actor.Plane)
	_, bIsPlane := b.Shape.(*actor.Plane)

	switch {
	case aIsPlane && bIsPlane:
		return constraint.ContactConstraint{}, false
	case aIsPlane || bIsPlane:
		return collidePlane(a, b)
	}

	sphereA, aIsSphere := a.Shape.(*actor.Sphere)
	sphereB, bIsSphere := b.Shape.(*actor.Sphere)
	boxA, aIsBox := a.Shape.(*actor.Box)
	boxB, bIsBox := b.Shape.(*actor.Box)

	switch {
	case aIsSphere && bIsSphere:
		return collideSpheres(a, sphereA, b, sphereB)
	case aIsSphere && bIsBox:
		return collideSphereBox(a, sphereA, b, boxB, false)
	case aIsBox && bIsSphere:
		return collideSphereBox(b, sphereB, a, boxA, true)
	}

	return collideConvex(a, b)
}

// collideConvex is the generic GJK + EPA path
func collideConvex(a, b *actor.RigidBody) (constraint.ContactConstraint, bool) {
	simplex := gjk.SimplexPool.Get().(*gjk.Simplex)
	defer gjk.SimplexPool.Put(simplex)
	simplex.Reset()

	if !gjk.Overlap(a, b, simplex) {
		return constraint.ContactConstraint{}, false
	}

	contact, err := epa.EPA(a, b, simplex)
	if err != nil {
		return constraint.ContactConstraint{}, false
	}
	return contact, true
}

func collidePlane(a, b *actor.RigidBody) (constraint.ContactConstraint, bool) {
	planeBody, object := a, b
	plane, ok := a.Shape.(*actor.Plane)
	normal := mgl64.Vec3{}
	if ok {
		normal = plane.Normal
	} else {
		plane = b.Shape.(*actor.Plane)
		planeBody, object = b, a
		normal = plane.Normal.Mul(-1)
	}

	// The plane equation is in world space, offset by the plane body position
	distance := plane.Distance - plane.Normal.Dot(planeBody.Transform.Position)
	hit, found := object.Shape.CollideWithPlane(plane.Normal, distance, object.Transform)
	if !hit {
		return constraint.ContactConstraint{}, false
	}

	points := make([]constraint.ContactPoint, 0, len(found))
	for _, point := range found {
		points = append(points, constraint.ContactPoint{Position: point.Position, Penetration: point.Penetration})
	}

	return constraint.ContactConstraint{BodyA: a, BodyB: b, Normal: normal, Points: points}, true
}

func collideSpheres(a *actor.RigidBody, sphereA *actor.Sphere, b *actor.RigidBody, sphereB *actor.Sphere) (constraint.ContactConstraint, bool) {
	delta := b.Transform.Position.Sub(a.Transform.Position)
	distance := delta.Len()
	radii := sphereA.Radius + sphereB.Radius
	if distance >= radii {
		return constraint.ContactConstraint{}, false
	}

	normal := mgl64.Vec3{0, 1, 0}
	if distance > 1e-9 {
		normal = delta.Mul(1.0 / distance)
	}
	penetration := radii - distance
	// Midway between both surfaces
	position := a.Transform.Position.Add(normal.Mul(sphereA.Radius - penetration/2))

	return constraint.ContactConstraint{
		BodyA:  a,
		BodyB:  b,
		Normal: normal,
		Points: []constraint.ContactPoint{{Position: position, Penetration: penetration}},
	}, true
}

// collideSphereBox finds the closest point of the box to the sphere centre. The normal points
// from the sphere to the box, or from the box to the sphere when flip is set.
func collideSphereBox(sphereBody *actor.RigidBody, sphere *actor.Sphere, boxBody *actor.RigidBody, box *actor.Box, flip bool) (constraint.ContactConstraint, bool) {
	center := boxBody.Transform.ToLocal(sphereBody.Transform.Position)
	h := box.HalfExtents

	closest := mgl64.Vec3{
		math.Max(-h.X(), math.Min(h.X(), center.X())),
		math.Max(-h.Y(), math.Min(h.Y(), center.Y())),
		math.Max(-h.Z(), math.Min(h.Z(), center.Z())),
	}

	var localNormal mgl64.Vec3 // from the box surface toward the sphere centre
	var penetration float64

	if closest != center {
		delta := center.Sub(closest)
		distance := delta.Len()
		if distance >= sphere.Radius {
			return constraint.ContactConstraint{}, false
		}
		localNormal = delta.Mul(1.0 / distance)
		penetration = sphere.Radius - distance
	} else {
		// Centre inside the box: leave through the nearest face
		axis, sign, depth := 0, 1.0, math.Inf(1)
		for i := 0; i < 3; i++ {
			if d := h[i] - center[i]; d < depth {
				axis, sign, depth = i, 1, d
			}
			if d := h[i] + center[i]; d < depth {
				axis, sign, depth = i, -1, d
			}
		}
		localNormal[axis] = sign
		closest[axis] = sign * h[axis]
		penetration = sphere.Radius + depth
	}

	normal := boxBody.Transform.Rotation.Rotate(localNormal)
	contact := constraint.ContactConstraint{
		Points: []constraint.ContactPoint{{Position: boxBody.Transform.ToWorld(closest), Penetration: penetration}},
	}
	if flip {
		contact.BodyA, contact.BodyB, contact.Normal = boxBody, sphereBody, normal
	} else {
		contact.BodyA, contact.BodyB, contact.Normal = sphereBody, boxBody, normal.Mul(-1)
	}

	return contact, true
}
