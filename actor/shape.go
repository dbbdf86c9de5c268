package actor

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ShapeType represents the type of collision shape
type ShapeType int

const (
	ShapeTypeSphere ShapeType = iota
	ShapeTypeBox
	ShapeTypePlane
)

func (t ShapeType) String() string {
	switch t {
	case ShapeTypeSphere:
		return "sphere"
	case ShapeTypeBox:
		return "box"
	case ShapeTypePlane:
		return "plane"
	}
	return "unknown"
}

// PlaneContact is one point of a shape found below a plane
type PlaneContact struct {
	Position    mgl64.Vec3
	Penetration float64
}

// ShapeInterface is the interface that all collision shapes must implement.
// Shapes are immutable once created and may be shared by any number of bodies.
type ShapeInterface interface {
	Type() ShapeType
	// ComputeAABB calculates the axis-aligned bounding box for the shape at the given transform
	ComputeAABB(transform Transform) AABB
	// ComputeMass calculates the mass for the shape given a density
	ComputeMass(density float64) float64
	ComputeInertia(mass float64) mgl64.Mat3
	Support(direction mgl64.Vec3) mgl64.Vec3
	GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3
	// CollideWithPlane tests the shape at transform against the plane Normal·p + Distance = 0
	CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform) (bool, []PlaneContact)
	// CastRay intersects the local space segment origin + t*direction, t in [0, 1].
	// It returns the entry parameter and the local surface normal.
	CastRay(origin, direction mgl64.Vec3) (float64, mgl64.Vec3, bool)
}

// Box represents an oriented box collision shape
// The box is defined by its half-extents (half-width, half-height, half-depth)
type Box struct {
	HalfExtents mgl64.Vec3
}

func (b *Box) Type() ShapeType {
	return ShapeTypeBox
}

func (b *Box) ComputeAABB(transform Transform) AABB {
	// |R| * h gives the world extent of a rotated box
	r := transform.Rotation.Mat4().Mat3()
	var extent mgl64.Vec3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			extent[row] += math.Abs(r.At(row, col)) * b.HalfExtents[col]
		}
	}

	return AABB{
		Min: transform.Position.Sub(extent),
		Max: transform.Position.Add(extent),
	}
}

// ComputeMass calculates mass data for the box
func (b *Box) ComputeMass(density float64) float64 {
	// Volume = 8 * hx * hy * hz (full dimensions are 2*halfExtents)
	volume := 8.0 * b.HalfExtents.X() * b.HalfExtents.Y() * b.HalfExtents.Z()

	return density * volume
}

func (b *Box) ComputeInertia(mass float64) mgl64.Mat3 {
	x := b.HalfExtents.X() * 2
	y := b.HalfExtents.Y() * 2
	z := b.HalfExtents.Z() * 2

	// I = (m/12) * (d1² + d2²)
	factor := mass / 12.0

	return mgl64.Mat3{
		factor * (y*y + z*z), 0, 0,
		0, factor * (x*x + z*z), 0,
		0, 0, factor * (x*x + y*y),
	}
}

func (b *Box) Support(direction mgl64.Vec3) mgl64.Vec3 {
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	if direction.X() < 0 {
		hx = -hx
	}
	if direction.Y() < 0 {
		hy = -hy
	}
	if direction.Z() < 0 {
		hz = -hz
	}

	return mgl64.Vec3{hx, hy, hz}
}

// GetContactFeature returns the face whose normal is the most aligned with direction
func (b *Box) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	dir := direction.Normalize()
	hx, hy, hz := b.HalfExtents.X(), b.HalfExtents.Y(), b.HalfExtents.Z()

	axis := 0
	best := math.Abs(dir[0])
	for i := 1; i < 3; i++ {
		if math.Abs(dir[i]) > best {
			best = math.Abs(dir[i])
			axis = i
		}
	}
	positive := dir[axis] >= 0

	// Vertices are CCW seen from outside
	switch {
	case axis == 0 && positive:
		return []mgl64.Vec3{{hx, -hy, -hz}, {hx, hy, -hz}, {hx, hy, hz}, {hx, -hy, hz}}
	case axis == 0:
		return []mgl64.Vec3{{-hx, -hy, hz}, {-hx, hy, hz}, {-hx, hy, -hz}, {-hx, -hy, -hz}}
	case axis == 1 && positive:
		return []mgl64.Vec3{{-hx, hy, -hz}, {-hx, hy, hz}, {hx, hy, hz}, {hx, hy, -hz}}
	case axis == 1:
		return []mgl64.Vec3{{-hx, -hy, hz}, {-hx, -hy, -hz}, {hx, -hy, -hz}, {hx, -hy, hz}}
	case positive:
		return []mgl64.Vec3{{-hx, -hy, hz}, {hx, -hy, hz}, {hx, hy, hz}, {-hx, hy, hz}}
	default:
		return []mgl64.Vec3{{hx, -hy, -hz}, {-hx, -hy, -hz}, {-hx, hy, -hz}, {hx, hy, -hz}}
	}
}

func (b *Box) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform) (bool, []PlaneContact) {
	var contacts []PlaneContact
	h := b.HalfExtents
	for i := 0; i < 8; i++ {
		corner := mgl64.Vec3{h.X(), h.Y(), h.Z()}
		if i&1 != 0 {
			corner[0] = -corner[0]
		}
		if i&2 != 0 {
			corner[1] = -corner[1]
		}
		if i&4 != 0 {
			corner[2] = -corner[2]
		}

		world := transform.ToWorld(corner)
		signed := normal.Dot(world) + distance
		if signed < 0 {
			contacts = append(contacts, PlaneContact{Position: world, Penetration: -signed})
		}
	}

	return len(contacts) > 0, contacts
}

func (b *Box) CastRay(origin, direction mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	tMin := 0.0
	tMax := 1.0
	var normal mgl64.Vec3

	for axis := 0; axis < 3; axis++ {
		h := b.HalfExtents[axis]
		if math.Abs(direction[axis]) < 1e-12 {
			if origin[axis] < -h || origin[axis] > h {
				return 0, mgl64.Vec3{}, false
			}
			continue
		}

		inv := 1.0 / direction[axis]
		t1 := (-h - origin[axis]) * inv
		t2 := (h - origin[axis]) * inv
		sign := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			sign = 1.0
		}
		if t1 > tMin {
			tMin = t1
			normal = mgl64.Vec3{}
			normal[axis] = sign
		}
		tMax = math.Min(tMax, t2)
		if tMin > tMax {
			return 0, mgl64.Vec3{}, false
		}
	}

	if normal.LenSqr() == 0 {
		// Started inside the box
		normal = direction.Mul(-1)
		if normal.LenSqr() > 0 {
			normal = normal.Normalize()
		}
	}

	return tMin, normal, true
}

// Sphere represents a spherical collision shape
type Sphere struct {
	Radius float64
}

func (s *Sphere) Type() ShapeType {
	return ShapeTypeSphere
}

// ComputeAABB calculates the axis-aligned bounding box for the sphere
func (s *Sphere) ComputeAABB(transform Transform) AABB {
	// Sphere AABB is not affected by rotation, only by position
	radiusVec := mgl64.Vec3{s.Radius, s.Radius, s.Radius}

	return AABB{
		Min: transform.Position.Sub(radiusVec),
		Max: transform.Position.Add(radiusVec),
	}
}

// ComputeMass calculates mass data for the sphere
func (s *Sphere) ComputeMass(density float64) float64 {
	volume := (4.0 / 3.0) * math.Pi * math.Pow(s.Radius, 3)

	return density * volume
}

func (s *Sphere) ComputeInertia(mass float64) mgl64.Mat3 {
	i := (2.0 / 5.0) * mass * s.Radius * s.Radius

	return mgl64.Mat3{
		i, 0, 0,
		0, i, 0,
		0, 0, i,
	}
}

func (s *Sphere) Support(direction mgl64.Vec3) mgl64.Vec3 {
	if direction.LenSqr() < 1e-24 {
		return mgl64.Vec3{s.Radius, 0, 0}
	}
	return direction.Normalize().Mul(s.Radius)
}

func (s *Sphere) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	return []mgl64.Vec3{s.Support(direction)}
}

func (s *Sphere) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform) (bool, []PlaneContact) {
	signed := normal.Dot(transform.Position) + distance
	if signed >= s.Radius {
		return false, nil
	}

	return true, []PlaneContact{{
		Position:    transform.Position.Sub(normal.Mul(s.Radius)),
		Penetration: s.Radius - signed,
	}}
}

func (s *Sphere) CastRay(origin, direction mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	c := origin.Dot(origin) - s.Radius*s.Radius
	if c <= 0 {
		normal := origin
		if normal.LenSqr() > 0 {
			normal = normal.Normalize()
		}
		return 0, normal, true
	}

	a := direction.Dot(direction)
	if a < 1e-24 {
		return 0, mgl64.Vec3{}, false
	}
	b := origin.Dot(direction)
	discriminant := b*b - a*c
	if discriminant < 0 {
		return 0, mgl64.Vec3{}, false
	}

	t := (-b - math.Sqrt(discriminant)) / a
	if t < 0 || t > 1 {
		return 0, mgl64.Vec3{}, false
	}

	return t, origin.Add(direction.Mul(t)).Normalize(), true
}

// Plane represents an infinite plane collision shape
// The plane is defined by the equation: Normal · p + Distance = 0
// where Normal is the plane's normal vector (must be normalized)
// and Distance is the signed distance from the origin along the normal
type Plane struct {
	Normal   mgl64.Vec3
	Distance float64
}

func (p *Plane) Type() ShapeType {
	return ShapeTypePlane
}

func (p *Plane) ComputeAABB(transform Transform) AABB {
	const thickness = 1.0
	const infinity = 1e10

	// Point on the plane closest to the origin
	planePoint := p.Normal.Mul(-p.Distance)

	min := planePoint.Sub(p.Normal.Mul(thickness)).Add(transform.Position)
	max := planePoint.Add(transform.Position)
	for axis := 0; axis < 3; axis++ {
		if min[axis] > max[axis] {
			min[axis], max[axis] = max[axis], min[axis]
		}
		// Non-dominant axes extend to infinity
		if math.Abs(p.Normal[axis]) < 1.0 {
			min[axis] = -infinity
			max[axis] = infinity
		}
	}

	return AABB{Min: min, Max: max}
}

// ComputeMass returns an infinite mass, planes are always static
func (p *Plane) ComputeMass(density float64) float64 {
	return math.Inf(1)
}

func (p *Plane) ComputeInertia(mass float64) mgl64.Mat3 {
	return mgl64.Mat3{}
}

// For simplicity, we use a 2000 width/depth box. Can obviously break for bigger worlds
func (p *Plane) Support(direction mgl64.Vec3) mgl64.Vec3 {
	const halfWidth = 1000.0
	const halfHeight = 0.5

	support := mgl64.Vec3{halfWidth, 0, halfWidth}
	if direction.X() < 0 {
		support[0] = -halfWidth
	}
	if direction.Y() <= 0 {
		support[1] = -halfHeight
	}
	if direction.Z() < 0 {
		support[2] = -halfWidth
	}

	return support
}

func (p *Plane) GetContactFeature(direction mgl64.Vec3) []mgl64.Vec3 {
	tangent1, tangent2 := TangentBasis(p.Normal)
	center := p.Normal.Mul(-p.Distance)
	const size = 1000.0

	return []mgl64.Vec3{
		center.Add(tangent1.Mul(-size)).Add(tangent2.Mul(-size)),
		center.Add(tangent1.Mul(-size)).Add(tangent2.Mul(size)),
		center.Add(tangent1.Mul(size)).Add(tangent2.Mul(size)),
		center.Add(tangent1.Mul(size)).Add(tangent2.Mul(-size)),
	}
}

func (p *Plane) CollideWithPlane(normal mgl64.Vec3, distance float64, transform Transform) (bool, []PlaneContact) {
	return false, nil
}

func (p *Plane) CastRay(origin, direction mgl64.Vec3) (float64, mgl64.Vec3, bool) {
	start := p.Normal.Dot(origin) + p.Distance
	if start <= 0 {
		return 0, p.Normal, true
	}

	denom := p.Normal.Dot(direction)
	if denom >= -1e-12 {
		return 0, mgl64.Vec3{}, false
	}

	t := -start / denom
	if t > 1 {
		return 0, mgl64.Vec3{}, false
	}

	return t, p.Normal, true
}

// TangentBasis builds two unit vectors orthogonal to normal and to each other
func TangentBasis(normal mgl64.Vec3) (mgl64.Vec3, mgl64.Vec3) {
	tangent1 := mgl64.Vec3{1, 0, 0}
	if math.Abs(normal.X()) > 0.9 {
		tangent1 = mgl64.Vec3{0, 1, 0}
	}

	tangent1 = tangent1.Sub(normal.Mul(tangent1.Dot(normal))).Normalize()
	tangent2 := normal.Cross(tangent1).Normalize()

	return tangent1, tangent2
}
