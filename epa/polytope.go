package epa

import (
	"fmt"
	"math"
	"sync"

	"github.com/akmonengine/quill/gjk"
	"github.com/go-gl/mathgl/mgl64"
)

// Face is one triangle of the polytope
type Face struct {
	Points   [3]mgl64.Vec3
	Normal   mgl64.Vec3 // points away from the polytope interior
	Distance float64    // distance from the origin to the face plane
}

// EdgeEntry counts how many removed faces share an edge; count 1 means it is on the horizon.
// Edges are normalized so A < B lexicographically.
type EdgeEntry struct {
	A, B  mgl64.Vec3
	Count int
}

// PolytopeBuilder holds the reusable buffers of one EPA run
type PolytopeBuilder struct {
	faces          []Face
	uniquePoints   []mgl64.Vec3
	edges          []EdgeEntry
	visibleIndices []int
}

var polytopeBuilderPool = sync.Pool{
	New: func() interface{} {
		return &PolytopeBuilder{
			faces:          make([]Face, 0, polytopeInitialCapacity),
			uniquePoints:   make([]mgl64.Vec3, 0, polytopeInitialCapacity),
			edges:          make([]EdgeEntry, 0, polytopeInitialCapacity),
			visibleIndices: make([]int, 0, polytopeInitialCapacity),
		}
	},
}

func (b *PolytopeBuilder) Reset() {
	b.faces = b.faces[:0]
	b.uniquePoints = b.uniquePoints[:0]
	b.edges = b.edges[:0]
	b.visibleIndices = b.visibleIndices[:0]
}

// BuildInitialFaces turns the GJK tetrahedron into four outward facing triangles
func (b *PolytopeBuilder) BuildInitialFaces(simplex *gjk.Simplex) error {
	if simplex.Count != 4 {
		return fmt.Errorf("epa: invalid simplex count %d, expected 4", simplex.Count)
	}

	p0, p1, p2, p3 := simplex.Points[0], simplex.Points[1], simplex.Points[2], simplex.Points[3]
	candidates := [4]Face{
		createFaceOutward(p0, p1, p2, p3),
		createFaceOutward(p0, p2, p3, p1),
		createFaceOutward(p0, p3, p1, p2),
		createFaceOutward(p1, p3, p2, p0),
	}

	for _, face := range candidates {
		if face.Distance >= MinFaceDistance {
			b.faces = append(b.faces, face)
		}
	}

	// A valid polytope needs at least three faces, keep the degenerate ones otherwise
	if len(b.faces) < 3 {
		b.faces = append(b.faces[:0], candidates[:]...)
	}

	return nil
}

// createFaceOutward builds a face whose normal points away from oppositePoint and the origin
func createFaceOutward(p0, p1, p2, oppositePoint mgl64.Vec3) Face {
	face := Face{Points: [3]mgl64.Vec3{p0, p1, p2}}

	normal := p1.Sub(p0).Cross(p2.Sub(p0))
	length := normal.Len()
	if length < 1e-8 {
		face.Normal = mgl64.Vec3{0, 1, 0}
		face.Distance = MinFaceDistance
		return face
	}
	normal = normal.Mul(1.0 / length)

	if normal.Dot(oppositePoint.Sub(p0)) > 0 {
		normal = normal.Mul(-1)
	}

	distance := p0.Dot(normal)
	if distance < 0 {
		normal = normal.Mul(-1)
		distance = -distance
	}

	face.Normal = snapNormalToAxis(normal)
	face.Distance = math.Max(distance, MinFaceDistance)

	return face
}

// FindClosestFaceIndex returns the index of the face closest to the origin, -1 when empty
func (b *PolytopeBuilder) FindClosestFaceIndex() int {
	if len(b.faces) == 0 {
		return -1
	}

	closest := 0
	for i := 1; i < len(b.faces); i++ {
		if b.faces[i].Distance < b.faces[closest].Distance {
			closest = i
		}
	}

	return closest
}

func (b *PolytopeBuilder) removeFace(index int) {
	last := len(b.faces) - 1
	b.faces[index] = b.faces[last]
	b.faces = b.faces[:last]
}

// AddPointAndRebuildFaces expands the polytope with a new support point: faces that can see the
// point are removed and the horizon is stitched back to it.
func (b *PolytopeBuilder) AddPointAndRebuildFaces(support mgl64.Vec3, closestIndex int) {
	centroid := b.centroid()

	b.visibleIndices = b.visibleIndices[:0]
	for i := range b.faces {
		if support.Sub(b.faces[i].Points[0]).Dot(b.faces[i].Normal) > 0 {
			b.visibleIndices = append(b.visibleIndices, i)
		}
	}

	// Never remove every face
	if len(b.visibleIndices) >= len(b.faces) {
		b.visibleIndices = append(b.visibleIndices[:0], closestIndex)
	}

	b.collectHorizon()
	b.removeVisibleFaces()

	for _, edge := range b.edges {
		if edge.Count == 1 {
			b.faces = append(b.faces, createFaceOutward(edge.A, edge.B, support, centroid))
		}
	}

	if len(b.faces) == 0 {
		b.faces = append(b.faces, Face{
			Points:   [3]mgl64.Vec3{support, support, support},
			Normal:   mgl64.Vec3{0, 1, 0},
			Distance: MinFaceDistance,
		})
	}
}

// centroid averages the unique vertices of the polytope
func (b *PolytopeBuilder) centroid() mgl64.Vec3 {
	b.uniquePoints = b.uniquePoints[:0]

	for i := range b.faces {
		for _, point := range b.faces[i].Points {
			index := b.pointInsertionIndex(point)
			if index < len(b.uniquePoints) && b.uniquePoints[index] == point {
				continue
			}
			b.uniquePoints = append(b.uniquePoints, mgl64.Vec3{})
			copy(b.uniquePoints[index+1:], b.uniquePoints[index:])
			b.uniquePoints[index] = point
		}
	}

	if len(b.uniquePoints) == 0 {
		return mgl64.Vec3{}
	}

	var sum mgl64.Vec3
	for _, point := range b.uniquePoints {
		sum = sum.Add(point)
	}

	return sum.Mul(1.0 / float64(len(b.uniquePoints)))
}

func (b *PolytopeBuilder) pointInsertionIndex(point mgl64.Vec3) int {
	left, right := 0, len(b.uniquePoints)
	for left < right {
		mid := (left + right) / 2
		if compareVec3(b.uniquePoints[mid], point) < 0 {
			left = mid + 1
		} else {
			right = mid
		}
	}
	return left
}

// collectHorizon counts the edges of the visible faces
func (b *PolytopeBuilder) collectHorizon() {
	b.edges = b.edges[:0]

	for _, faceIndex := range b.visibleIndices {
		face := &b.faces[faceIndex]
		for i := 0; i < 3; i++ {
			edgeA, edgeB := face.Points[i], face.Points[(i+1)%3]
			if compareVec3(edgeA, edgeB) > 0 {
				edgeA, edgeB = edgeB, edgeA
			}

			found := false
			for j := range b.edges {
				if b.edges[j].A == edgeA && b.edges[j].B == edgeB {
					b.edges[j].Count++
					found = true
					break
				}
			}
			if !found {
				b.edges = append(b.edges, EdgeEntry{A: edgeA, B: edgeB, Count: 1})
			}
		}
	}
}

// removeVisibleFaces swaps visible faces out, highest index first so indices stay valid
func (b *PolytopeBuilder) removeVisibleFaces() {
	indices := b.visibleIndices
	for i := 1; i < len(indices); i++ {
		for j := i; j > 0 && indices[j-1] < indices[j]; j-- {
			indices[j-1], indices[j] = indices[j], indices[j-1]
		}
	}

	for _, index := range indices {
		if index < len(b.faces) {
			b.removeFace(index)
		}
	}
}

func compareVec3(a, b mgl64.Vec3) int {
	for i := 0; i < 3; i++ {
		if a[i] < b[i] {
			return -1
		}
		if a[i] > b[i] {
			return 1
		}
	}
	return 0
}
