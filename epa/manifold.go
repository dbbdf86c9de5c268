package epa

import (
	"math"

	"github.com/akmonengine/quill/actor"
	"github.com/akmonengine/quill/constraint"
	"github.com/go-gl/mathgl/mgl64"
)

const (
	maxManifoldPoints = 4
	clipTolerance     = 1e-6
	// Reference features wider than this are treated as unbounded planes
	unboundedFeatureSize = 100.0
)

// GenerateManifold builds 1 to 4 contact points between two touching bodies.
//
// Each body contributes the feature (vertex, edge or face) most aligned with the contact normal.
// The feature with fewer vertices is the incident one: it is clipped against the side planes of
// the reference feature (Sutherland-Hodgman) and only the points behind the reference plane are
// kept. The normal points from bodyA toward bodyB.
func GenerateManifold(bodyA, bodyB *actor.RigidBody, normal mgl64.Vec3, depth float64) []constraint.ContactPoint {
	featureA := worldFeature(bodyA, bodyA.Transform.InverseRotation.Rotate(normal))
	featureB := worldFeature(bodyB, bodyB.Transform.InverseRotation.Rotate(normal.Mul(-1)))

	incident, reference := featureA, featureB
	if len(featureB) <= len(featureA) {
		incident, reference = featureB, featureA
	}

	if len(incident) == 1 {
		return []constraint.ContactPoint{{Position: incident[0], Penetration: depth}}
	}

	clipped := clipAgainstSides(incident, reference, normal)
	points := keepBehindReference(clipped, reference, normal, depth)

	if len(points) == 0 {
		points = append(points, constraint.ContactPoint{
			Position:    bodyB.SupportWorld(normal.Mul(-1)),
			Penetration: depth,
		})
	}

	if len(points) > maxManifoldPoints {
		points = reduceToExtremes(points, normal)
	}

	return points
}

func worldFeature(body *actor.RigidBody, localDirection mgl64.Vec3) []mgl64.Vec3 {
	feature := body.Shape.GetContactFeature(localDirection)
	for i := range feature {
		feature[i] = body.Transform.ToWorld(feature[i])
	}
	return feature
}

// keepBehindReference drops the clipped points lying in front of the reference face
func keepBehindReference(clipped, reference []mgl64.Vec3, normal mgl64.Vec3, depth float64) []constraint.ContactPoint {
	if len(clipped) == 0 || len(reference) < 3 {
		points := make([]constraint.ContactPoint, 0, len(clipped))
		for _, point := range clipped {
			points = append(points, constraint.ContactPoint{Position: point, Penetration: depth})
		}
		return points
	}

	faceNormal := reference[1].Sub(reference[0]).Cross(reference[2].Sub(reference[0]))
	if faceNormal.LenSqr() < 1e-20 {
		faceNormal = normal
	} else {
		faceNormal = faceNormal.Normalize()
	}
	if faceNormal.Dot(normal) < 0 {
		faceNormal = faceNormal.Mul(-1)
	}
	offset := reference[0].Dot(faceNormal)

	points := make([]constraint.ContactPoint, 0, len(clipped))
	for _, point := range clipped {
		if point.Dot(faceNormal)-offset <= 0 {
			points = append(points, constraint.ContactPoint{Position: point, Penetration: depth})
		}
	}
	return points
}

// clipAgainstSides trims the incident polygon to the extent of the reference polygon
func clipAgainstSides(incident, reference []mgl64.Vec3, normal mgl64.Vec3) []mgl64.Vec3 {
	if len(reference) < 2 || isUnbounded(reference) {
		return incident
	}

	center := centroid(reference)
	output := incident
	for i := 0; i < len(reference) && len(output) > 0; i++ {
		v1 := reference[i]
		v2 := reference[(i+1)%len(reference)]

		sideNormal := v2.Sub(v1).Cross(normal)
		if sideNormal.LenSqr() < 1e-20 {
			continue
		}
		sideNormal = sideNormal.Normalize()
		if center.Sub(v1).Dot(sideNormal) < 0 {
			sideNormal = sideNormal.Mul(-1)
		}

		output = clipPolygon(output, v1, sideNormal)
	}

	return output
}

// clipPolygon keeps the part of polygon on the positive side of the plane
func clipPolygon(polygon []mgl64.Vec3, planePoint, planeNormal mgl64.Vec3) []mgl64.Vec3 {
	output := make([]mgl64.Vec3, 0, len(polygon)+1)

	for i := range polygon {
		current := polygon[i]
		next := polygon[(i+1)%len(polygon)]
		currentInside := current.Sub(planePoint).Dot(planeNormal) >= -clipTolerance
		nextInside := next.Sub(planePoint).Dot(planeNormal) >= -clipTolerance

		if currentInside {
			output = append(output, current)
		}
		if currentInside != nextInside {
			output = append(output, segmentPlaneIntersection(current, next, planePoint, planeNormal))
		}
	}

	return output
}

func segmentPlaneIntersection(p1, p2, planePoint, planeNormal mgl64.Vec3) mgl64.Vec3 {
	direction := p2.Sub(p1)
	denominator := direction.Dot(planeNormal)
	if math.Abs(denominator) < 1e-10 {
		return p1
	}

	t := -p1.Sub(planePoint).Dot(planeNormal) / denominator
	t = math.Max(0, math.Min(1, t))

	return p1.Add(direction.Mul(t))
}

func centroid(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1.0 / float64(len(points)))
}

func isUnbounded(feature []mgl64.Vec3) bool {
	for i := range feature {
		for j := i + 1; j < len(feature); j++ {
			if feature[i].Sub(feature[j]).Len() > unboundedFeatureSize {
				return true
			}
		}
	}
	return false
}

// reduceToExtremes keeps the points furthest along both tangent axes
func reduceToExtremes(points []constraint.ContactPoint, normal mgl64.Vec3) []constraint.ContactPoint {
	tangent1, tangent2 := actor.TangentBasis(normal)

	var extremes [4]int
	best := [4]float64{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for i, p := range points {
		x := p.Position.Dot(tangent1)
		y := p.Position.Dot(tangent2)
		if x < best[0] {
			best[0], extremes[0] = x, i
		}
		if x > best[1] {
			best[1], extremes[1] = x, i
		}
		if y < best[2] {
			best[2], extremes[2] = y, i
		}
		if y > best[3] {
			best[3], extremes[3] = y, i
		}
	}

	result := make([]constraint.ContactPoint, 0, maxManifoldPoints)
	for i, index := range extremes {
		duplicate := false
		for _, previous := range extremes[:i] {
			if previous == index {
				duplicate = true
				break
			}
		}
		if !duplicate {
			result = append(result, points[index])
		}
	}

	return result
}
