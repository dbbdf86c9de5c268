package solver

import (
	"math"
	"slices"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Bodies spanning more cells than this skip the grid and are tested against everyone
const maxCellsPerBody = 512

// CellKey is the integer coordinate of a grid cell
type CellKey struct {
	X, Y, Z int
}

type cell struct {
	bodyIndices []int
}

// Pair is a candidate pair from the broadphase, Body1 always has the lower index
type Pair struct {
	Body1, Body2 *Body
}

// SpatialGrid is a uniform grid hashed into a power of two table of cells
type SpatialGrid struct {
	cellSize float64
	cells    []cell
	cellMask int
	// Unbounded bodies (planes) and very large ones
	large []int
}

func NewSpatialGrid(cellSize float64, numCells int) *SpatialGrid {
	numCells = nextPowerOfTwo(numCells)

	cells := make([]cell, numCells)
	for i := range cells {
		cells[i].bodyIndices = make([]int, 0, 8)
	}

	return &SpatialGrid{
		cellSize: cellSize,
		cells:    cells,
		cellMask: numCells - 1,
	}
}

func nextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++
	return n
}

func (sg *SpatialGrid) CellSize() float64 {
	return sg.cellSize
}

func (sg *SpatialGrid) CellCount() int {
	return len(sg.cells)
}

// Insert adds the body to every cell its AABB touches
func (sg *SpatialGrid) Insert(bodyIndex int, body *Body) {
	minCell, maxCell, ok := sg.cellRange(body)
	if !ok {
		sg.large = append(sg.large, bodyIndex)
		return
	}

	for x := minCell.X; x <= maxCell.X; x++ {
		for y := minCell.Y; y <= maxCell.Y; y++ {
			for z := minCell.Z; z <= maxCell.Z; z++ {
				index := sg.hashCell(CellKey{x, y, z})
				sg.cells[index].bodyIndices = append(sg.cells[index].bodyIndices, bodyIndex)
			}
		}
	}
}

// cellRange returns false when the body covers too many cells to be inserted
func (sg *SpatialGrid) cellRange(body *Body) (CellKey, CellKey, bool) {
	aabb := body.AABB()
	size := aabb.Max.Sub(aabb.Min)
	cells := 1.0
	for axis := 0; axis < 3; axis++ {
		cells *= math.Floor(size[axis]/sg.cellSize) + 2
	}
	if cells > maxCellsPerBody || math.IsInf(cells, 0) || math.IsNaN(cells) {
		return CellKey{}, CellKey{}, false
	}

	return sg.worldToCell(aabb.Min), sg.worldToCell(aabb.Max), true
}

func (sg *SpatialGrid) Clear() {
	for i := range sg.cells {
		sg.cells[i].bodyIndices = sg.cells[i].bodyIndices[:0]
	}
	sg.large = sg.large[:0]
}

func (sg *SpatialGrid) SortCells() {
	for i := range sg.cells {
		if len(sg.cells[i].bodyIndices) > 1 {
			slices.Sort(sg.cells[i].bodyIndices)
		}
	}
}

// FindPairs returns every overlapping pair once, ordered by body index.
// Pairs where no body can move, or where both are asleep, are skipped.
func (sg *SpatialGrid) FindPairs(bodies []*Body, jobs JobSystem) []Pair {
	var (
		mu    sync.Mutex
		pairs []Pair
	)

	jobs.ParallelFor("broadphase", len(bodies), func(start, end int) {
		seen := make([]bool, len(bodies))
		var touched []int
		var local []Pair

		consider := func(bodyIndex, otherIndex int) {
			if otherIndex <= bodyIndex || seen[otherIndex] {
				return
			}
			seen[otherIndex] = true
			touched = append(touched, otherIndex)

			if candidate(bodies[bodyIndex], bodies[otherIndex]) {
				local = append(local, Pair{Body1: bodies[bodyIndex], Body2: bodies[otherIndex]})
			}
		}

		for bodyIndex := start; bodyIndex < end; bodyIndex++ {
			for _, index := range touched {
				seen[index] = false
			}
			touched = touched[:0]

			if minCell, maxCell, ok := sg.cellRange(bodies[bodyIndex]); ok {
				for x := minCell.X; x <= maxCell.X; x++ {
					for y := minCell.Y; y <= maxCell.Y; y++ {
						for z := minCell.Z; z <= maxCell.Z; z++ {
							for _, otherIndex := range sg.cells[sg.hashCell(CellKey{x, y, z})].bodyIndices {
								consider(bodyIndex, otherIndex)
							}
						}
					}
				}
				for _, otherIndex := range sg.large {
					consider(bodyIndex, otherIndex)
				}
			} else {
				// Large bodies see everything
				for otherIndex := bodyIndex + 1; otherIndex < len(bodies); otherIndex++ {
					consider(bodyIndex, otherIndex)
				}
			}
		}

		mu.Lock()
		pairs = append(pairs, local...)
		mu.Unlock()
	})

	slices.SortFunc(pairs, func(a, b Pair) int {
		if a.Body1.id.Index() != b.Body1.id.Index() {
			return int(a.Body1.id.Index()) - int(b.Body1.id.Index())
		}
		return int(a.Body2.id.Index()) - int(b.Body2.id.Index())
	})

	return pairs
}

func candidate(a, b *Body) bool {
	if !a.IsDynamic() && !b.IsDynamic() {
		return false
	}
	if !a.IsActive() && !b.IsActive() {
		return false
	}
	return a.AABB().Overlaps(b.AABB())
}

func (sg *SpatialGrid) worldToCell(pos mgl64.Vec3) CellKey {
	return CellKey{
		X: int(math.Floor(pos.X() / sg.cellSize)),
		Y: int(math.Floor(pos.Y() / sg.cellSize)),
		Z: int(math.Floor(pos.Z() / sg.cellSize)),
	}
}

func (sg *SpatialGrid) hashCell(key CellKey) int {
	h := (key.X * 73856093) ^ (key.Y * 19349663) ^ (key.Z * 83492791)
	return h & sg.cellMask
}

// optimalGrid derives a cell size from the typical body extent and a cell count from the body count
func optimalGrid(bodies []*Body) (float64, int) {
	const minCellSize = 0.5

	total := 0.0
	counted := 0
	for _, body := range bodies {
		aabb := body.AABB()
		size := aabb.Max.Sub(aabb.Min)
		extent := math.Max(size.X(), math.Max(size.Y(), size.Z()))
		if math.IsInf(extent, 0) || extent > 1e6 {
			continue
		}
		total += extent
		counted++
	}

	cellSize := minCellSize
	if counted > 0 {
		cellSize = math.Max(minCellSize, 2*total/float64(counted))
	}

	return cellSize, max(64, nextPowerOfTwo(2*len(bodies)))
}
