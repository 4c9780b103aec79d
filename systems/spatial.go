package systems

import (
	"math"

	"github.com/pthm-cable/crowd/geom"
)

// SpatialGrid buckets the tick's position snapshot into square cells so
// proximity queries touch only nearby agents. Positions outside the bounds
// land in the nearest edge cell.
type SpatialGrid struct {
	cellSize float64
	origin   geom.Vec2
	cols     int
	rows     int
	cells    [][]int32 // indices into positions
	points   []geom.Vec2
}

// NewSpatialGrid creates a grid covering [lo, hi].
func NewSpatialGrid(lo, hi geom.Vec2, cellSize float64) *SpatialGrid {
	size := hi.Sub(lo)
	cols := int(size.X/cellSize) + 1
	rows := int(size.Z/cellSize) + 1

	cells := make([][]int32, cols*rows)
	for i := range cells {
		cells[i] = make([]int32, 0, 8)
	}
	return &SpatialGrid{
		cellSize: cellSize,
		origin:   lo,
		cols:     cols,
		rows:     rows,
		cells:    cells,
	}
}

// Rebuild replaces the grid contents with positions. The slice is retained
// until the next Rebuild.
func (g *SpatialGrid) Rebuild(positions []geom.Vec2) {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.points = positions
	for i, p := range positions {
		col, row := g.cellOf(p)
		idx := row*g.cols + col
		g.cells[idx] = append(g.cells[idx], int32(i))
	}
}

// Len returns the number of indexed positions.
func (g *SpatialGrid) Len() int { return len(g.points) }

// CloserAgent is the grid-backed equivalent of the package-level
// CloserAgent over the rebuilt snapshot.
func (g *SpatialGrid) CloserAgent(pos geom.Vec2, radius float64) Neighborhood {
	n := Neighborhood{Nearest: pos, Centroid: pos}
	if len(g.points) < 2 {
		return n
	}
	col, row := g.cellOf(pos)

	// Radius aggregate.
	var sum geom.Vec2
	reach := int(radius/g.cellSize) + 1
	for r := max(row-reach, 0); r <= min(row+reach, g.rows-1); r++ {
		for c := max(col-reach, 0); c <= min(col+reach, g.cols-1); c++ {
			for _, i := range g.cells[r*g.cols+c] {
				p := g.points[i]
				if p.Dist(pos) <= radius {
					n.Count++
					sum = sum.Add(p)
				}
			}
		}
	}
	if n.Count > 1 {
		n.Centroid = sum.Scale(1 / float64(n.Count))
	}

	// Nearest: expanding rings until nothing unseen can be closer.
	best := math.Inf(1)
	maxRing := max(g.cols, g.rows)
	for k := 0; k <= maxRing; k++ {
		g.ring(col, row, k, func(i int32) {
			p := g.points[i]
			if d := p.Dist(pos); d < best && d > MinNearestDist {
				best = d
				n.Nearest = p
			}
		})
		if best <= float64(k)*g.cellSize {
			break
		}
	}
	n.NearestDist = pos.Dist(n.Nearest)
	return n
}

// ring visits the cells at Chebyshev distance k from (col, row).
func (g *SpatialGrid) ring(col, row, k int, visit func(int32)) {
	for r := row - k; r <= row+k; r++ {
		if r < 0 || r >= g.rows {
			continue
		}
		edge := r == row-k || r == row+k
		for c := col - k; c <= col+k; c++ {
			if c < 0 || c >= g.cols {
				continue
			}
			if !edge && c != col-k && c != col+k {
				continue
			}
			for _, i := range g.cells[r*g.cols+c] {
				visit(i)
			}
		}
	}
}

// cellOf returns the clamped cell of p.
func (g *SpatialGrid) cellOf(p geom.Vec2) (col, row int) {
	rel := p.Sub(g.origin)
	col = int(math.Floor(rel.X / g.cellSize))
	row = int(math.Floor(rel.Z / g.cellSize))

	if col < 0 {
		col = 0
	} else if col >= g.cols {
		col = g.cols - 1
	}
	if row < 0 {
		row = 0
	} else if row >= g.rows {
		row = g.rows - 1
	}
	return col, row
}
