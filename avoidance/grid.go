package avoidance

import "github.com/pthm-cable/crowd/geom"

// Neighbor holds a nearby agent with precomputed spatial data.
type Neighbor struct {
	Index  int       // index into the positions slice passed to the query
	Delta  geom.Vec2 // from the query origin to the neighbor
	DistSq float64
}

// MaxQueryResults caps the number of neighbors returned by spatial queries.
// This prevents density spikes from causing unbounded work.
const MaxQueryResults = 128

// Grid provides constant-time neighbor lookups over a bounded region.
// Positions outside the region are kept in the nearest edge cell, so queries
// stay correct for agents that wander off.
type Grid struct {
	origin   geom.Vec2
	cellSize float64
	cols     int
	rows     int
	cells    [][]int
}

// NewGrid creates a grid covering [lo, hi].
func NewGrid(lo, hi geom.Vec2, cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = 1
	}
	cols := int((hi.X-lo.X)/cellSize) + 1
	rows := int((hi.Z-lo.Z)/cellSize) + 1
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	cells := make([][]int, cols*rows)
	for i := range cells {
		cells[i] = make([]int, 0, 8)
	}

	return &Grid{origin: lo, cellSize: cellSize, cols: cols, rows: rows, cells: cells}
}

// Clear removes all entries from the grid.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds index i at pos.
func (g *Grid) Insert(i int, pos geom.Vec2) {
	col, row := g.cell(pos)
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], i)
}

// QueryRadiusInto finds entries within radius of pos and appends them to dst
// (up to MaxQueryResults). positions must be the slice the grid was filled
// from.
func (g *Grid) QueryRadiusInto(dst []Neighbor, pos geom.Vec2, radius float64, exclude int, positions []geom.Vec2) []Neighbor {
	cellRadius := int(radius/g.cellSize) + 1
	centerCol, centerRow := g.cell(pos)
	radiusSq := radius * radius

	c0, c1 := max(centerCol-cellRadius, 0), min(centerCol+cellRadius, g.cols-1)
	r0, r1 := max(centerRow-cellRadius, 0), min(centerRow+cellRadius, g.rows-1)

	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			for _, i := range g.cells[row*g.cols+col] {
				if i == exclude {
					continue
				}
				d := positions[i].Sub(pos)
				distSq := d.LenSq()
				if distSq <= radiusSq {
					dst = append(dst, Neighbor{Index: i, Delta: d, DistSq: distSq})
					if len(dst) >= MaxQueryResults {
						return dst
					}
				}
			}
		}
	}

	return dst
}

// cell returns the clamped column and row for a position.
func (g *Grid) cell(pos geom.Vec2) (col, row int) {
	col = int((pos.X - g.origin.X) / g.cellSize)
	row = int((pos.Z - g.origin.Z) / g.cellSize)
	col = min(max(col, 0), g.cols-1)
	row = min(max(row, 0), g.rows-1)
	return col, row
}
