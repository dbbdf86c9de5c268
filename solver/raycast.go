package solver

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"
)

// RayResult is one body hit by a ray
type RayResult struct {
	Body *Body
	// Fraction along the ray, hit point = origin + Fraction*direction
	Fraction   float64
	Point      mgl64.Vec3
	Normal     mgl64.Vec3
	SubShapeID uint32
}

// castBody intersects the segment origin + t*direction, t in [0, 1], with one body
func castBody(body *Body, origin, direction mgl64.Vec3) (RayResult, bool) {
	if _, ok := body.AABB().IntersectsRay(origin, direction); !ok {
		return RayResult{}, false
	}

	transform := body.rigid.Transform
	localOrigin := transform.ToLocal(origin)
	localDirection := transform.InverseRotation.Rotate(direction)

	fraction, localNormal, ok := body.rigid.Shape.CastRay(localOrigin, localDirection)
	if !ok {
		return RayResult{}, false
	}

	return RayResult{
		Body:       body,
		Fraction:   fraction,
		Point:      origin.Add(direction.Mul(fraction)),
		Normal:     transform.Rotation.Rotate(localNormal),
		SubShapeID: WholeShape,
	}, true
}

// CastRay returns the closest body along origin + direction. A nil filter accepts every body.
func (s *System) CastRay(origin, direction mgl64.Vec3, filter func(*Body) bool) (RayResult, bool) {
	var closest RayResult
	found := false

	for _, body := range s.active {
		if filter != nil && !filter(body) {
			continue
		}
		hit, ok := castBody(body, origin, direction)
		if ok && (!found || hit.Fraction < closest.Fraction) {
			closest = hit
			found = true
		}
	}

	return closest, found
}

// CastRayAll hands every hit to collector, nearest first, until collector returns false
func (s *System) CastRayAll(origin, direction mgl64.Vec3, collector func(RayResult) bool) {
	var hits []RayResult
	for _, body := range s.active {
		if hit, ok := castBody(body, origin, direction); ok {
			hits = append(hits, hit)
		}
	}

	slices.SortStableFunc(hits, func(a, b RayResult) int {
		switch {
		case a.Fraction < b.Fraction:
			return -1
		case a.Fraction > b.Fraction:
			return 1
		}
		return 0
	})

	for _, hit := range hits {
		if !collector(hit) {
			return
		}
	}
}
