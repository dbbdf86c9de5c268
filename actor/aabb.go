package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// AABB represents an axis-aligned bounding box
type AABB struct {
	Min mgl64.Vec3
	Max mgl64.Vec3
}

// ContainsPoint checks if a point is inside the AABB
func (a AABB) ContainsPoint(point mgl64.Vec3) bool {
	return point.X() >= a.Min.X() && point.X() <= a.Max.X() &&
		point.Y() >= a.Min.Y() && point.Y() <= a.Max.Y() &&
		point.Z() >= a.Min.Z() && point.Z() <= a.Max.Z()
}

// Overlaps checks if two AABBs overlap
func (a AABB) Overlaps(other AABB) bool {
	return a.Max.X() >= other.Min.X() && a.Min.X() <= other.Max.X() &&
		a.Max.Y() >= other.Min.Y() && a.Min.Y() <= other.Max.Y() &&
		a.Max.Z() >= other.Min.Z() && a.Min.Z() <= other.Max.Z()
}

// Center returns the middle point of the box
func (a AABB) Center() mgl64.Vec3 {
	return a.Min.Add(a.Max).Mul(0.5)
}

// Extents returns the full size of the box on each axis
func (a AABB) Extents() mgl64.Vec3 {
	return a.Max.Sub(a.Min)
}

// IntersectsRay runs a slab test for the segment origin + t*direction, t in [0, 1].
// It returns the entry parameter when the segment touches the box.
func (a AABB) IntersectsRay(origin, direction mgl64.Vec3) (float64, bool) {
	tMin := 0.0
	tMax := 1.0

	for axis := 0; axis < 3; axis++ {
		if math.Abs(direction[axis]) < 1e-12 {
			if origin[axis] < a.Min[axis] || origin[axis] > a.Max[axis] {
				return 0, false
			}
			continue
		}

		inv := 1.0 / direction[axis]
		t1 := (a.Min[axis] - origin[axis]) * inv
		t2 := (a.Max[axis] - origin[axis]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		tMin = math.Max(tMin, t1)
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, false
		}
	}

	return tMin, true
}
