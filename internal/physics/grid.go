package physics

import "github.com/asterobia/core/internal/mathvec"

// SpatialGrid is a uniform 3D grid for broad-phase proximity queries,
// generalizing the teacher's 2D SpatialGrid (internal/physics/grid.go in
// tomz197/asteroids) from a wrapping rectangular world to an unbounded 3D
// space around a sphere. Instead of a dense row/col array sized to a fixed
// world rectangle, cells are addressed by an integer (x,y,z) key in a map,
// since positions on (and above) a sphere aren't bounded the way a 2D
// screen-wrapped arena is.
//
// Cell size must be >= the maximum interaction distance between any two
// objects that should be found in the same 3x3x3 neighborhood query.
type SpatialGrid struct {
	cellSize    float64
	invCellSize float64
	cells       map[cellKey][]int
}

type cellKey struct {
	x, y, z int
}

// NewSpatialGrid creates an empty 3D spatial grid with the given cell size.
func NewSpatialGrid(cellSize float64) *SpatialGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &SpatialGrid{
		cellSize:    cellSize,
		invCellSize: 1.0 / cellSize,
		cells:       make(map[cellKey][]int),
	}
}

// Clear removes all items from the grid without deallocating the map's
// backing buckets.
func (g *SpatialGrid) Clear() {
	for k := range g.cells {
		g.cells[k] = g.cells[k][:0]
	}
}

func (g *SpatialGrid) keyOf(p mathvec.Vec3) cellKey {
	return cellKey{
		x: int(floorDiv(p.X, g.invCellSize)),
		y: int(floorDiv(p.Y, g.invCellSize)),
		z: int(floorDiv(p.Z, g.invCellSize)),
	}
}

func floorDiv(v, invCell float64) int {
	scaled := v * invCell
	if scaled < 0 {
		return int(scaled) - 1
	}
	return int(scaled)
}

// Insert adds an item (identified by index) at the given world position.
func (g *SpatialGrid) Insert(p mathvec.Vec3, index int) {
	k := g.keyOf(p)
	g.cells[k] = append(g.cells[k], index)
}

// QueryAround calls fn for each item index in the 3x3x3 cell neighborhood
// around the given world position. If fn returns true, iteration stops
// early (useful for "find first" queries).
func (g *SpatialGrid) QueryAround(p mathvec.Vec3, fn func(index int) bool) {
	center := g.keyOf(p)
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				k := cellKey{center.x + dx, center.y + dy, center.z + dz}
				for _, idx := range g.cells[k] {
					if fn(idx) {
						return
					}
				}
			}
		}
	}
}
