package profile

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/pthm-cable/crowd/geom"
)

// Field is the grid of rooms that answers behavior queries by position.
//
// Writes (SetActiveBucket, RecomputeEdgeBlends) and reads (Query) are not
// synchronized; callers run all writes for a tick before any read.
type Field struct {
	rows, cols int
	halfSize   float64
	buckets    int
	updating   bool

	rooms map[Coord]*Room
	order []Coord
}

// NewField builds a rows x cols grid of root rooms whose cells are
// 2*halfSize wide. Non-positive dimensions produce an empty field.
func NewField(rows, cols int, halfSize float64, buckets int) *Field {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	if halfSize <= 0 {
		halfSize = 1
	}
	f := &Field{
		rows:     rows,
		cols:     cols,
		halfSize: halfSize,
		buckets:  buckets,
		updating: true,
		rooms:    make(map[Coord]*Room, rows*cols),
	}
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := RootCoord(row, col)
			f.rooms[c] = newRoom(c, true, buckets)
			f.order = append(f.order, c)
		}
	}
	f.RecomputeEdgeBlends()
	return f
}

// Rows returns the root grid height.
func (f *Field) Rows() int { return f.rows }

// Cols returns the root grid width.
func (f *Field) Cols() int { return f.cols }

// HalfSize returns half a cell's side length.
func (f *Field) HalfSize() float64 { return f.halfSize }

// CellSize returns a cell's side length.
func (f *Field) CellSize() float64 { return 2 * f.halfSize }

// Buckets returns the timeline length used for new non-root rooms.
func (f *Field) Buckets() int { return f.buckets }

// SetBuckets changes the timeline length used for rooms added later.
func (f *Field) SetBuckets(n int) { f.buckets = n }

// Updating reports whether active-bucket changes are applied.
func (f *Field) Updating() bool { return f.updating }

// SetUpdating toggles whether active-bucket changes are applied.
func (f *Field) SetUpdating(on bool) { f.updating = on }

// Center returns the world position of a lattice coordinate.
func (f *Field) Center(c Coord) geom.Vec2 {
	size := f.CellSize()
	return geom.V(float64(c.X)*size, float64(c.Z)*size)
}

// GridCenter returns the world position of the middle of the root grid.
func (f *Field) GridCenter() geom.Vec2 {
	size := f.CellSize()
	return geom.V(float64(f.cols-1)*size/2, -float64(f.rows-1)*size/2)
}

// Bounds returns the corners of the area covered by the root grid.
func (f *Field) Bounds() (lo, hi geom.Vec2) {
	c := f.GridCenter()
	ext := geom.V(f.halfSize*float64(f.cols), f.halfSize*float64(f.rows))
	return c.Sub(ext), c.Add(ext)
}

// InBounds reports whether p lies inside the root grid.
func (f *Field) InBounds(p geom.Vec2) bool {
	if f.rows == 0 || f.cols == 0 {
		return false
	}
	lo, hi := f.Bounds()
	return p.X >= lo.X && p.X <= hi.X && p.Z >= lo.Z && p.Z <= hi.Z
}

// Room returns the room at c.
func (f *Field) Room(c Coord) (*Room, bool) {
	r, ok := f.rooms[c]
	return r, ok
}

// RootRoom returns the root room at (row, col).
func (f *Field) RootRoom(row, col int) (*Room, bool) {
	if row < 0 || row >= f.rows || col < 0 || col >= f.cols {
		return nil, false
	}
	return f.Room(RootCoord(row, col))
}

// Rooms returns every room, root rooms first in row-major order.
func (f *Field) Rooms() []*Room {
	out := make([]*Room, 0, len(f.order))
	for _, c := range f.order {
		out = append(out, f.rooms[c])
	}
	return out
}

// Len returns the number of rooms.
func (f *Field) Len() int { return len(f.rooms) }

// Snap returns the lattice coordinate whose center is closest to p.
func (f *Field) Snap(p geom.Vec2) Coord {
	size := f.CellSize()
	return Coord{X: int(math.Round(p.X / size)), Z: int(math.Round(p.Z / size))}
}

// AddRoom creates a non-root room at c. It returns false if c is occupied.
func (f *Field) AddRoom(c Coord) bool {
	if _, ok := f.rooms[c]; ok {
		return false
	}
	f.rooms[c] = newRoom(c, false, f.buckets)
	f.order = append(f.order, c)
	return true
}

// RemoveRoom deletes the non-root room at c. Root rooms are never removed.
func (f *Field) RemoveRoom(c Coord) bool {
	r, ok := f.rooms[c]
	if !ok || r.root {
		return false
	}
	delete(f.rooms, c)
	for i, oc := range f.order {
		if oc == c {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

// CellContains reports whether p lies strictly inside the cell at c.
func (f *Field) CellContains(c Coord, p geom.Vec2) bool {
	d := p.Sub(f.Center(c))
	return math.Abs(d.X) < f.halfSize && math.Abs(d.Z) < f.halfSize
}

// AppendProfile adds v to the end of the room's sequence. The first
// appended profile becomes current.
func (f *Field) AppendProfile(c Coord, v Vector) bool {
	r, ok := f.rooms[c]
	if !ok {
		return false
	}
	r.appendProfile(v)
	return true
}

// SetActiveBucket selects bucket index as the room's current profile. Out of
// range indices and a disabled field leave the current profile unchanged.
func (f *Field) SetActiveBucket(c Coord, index int) {
	if r, ok := f.rooms[c]; ok {
		r.setActive(index, f.updating)
	}
}

// SetActiveBucketAll applies SetActiveBucket to every room.
func (f *Field) SetActiveBucketAll(index int) {
	for _, c := range f.order {
		f.rooms[c].setActive(index, f.updating)
	}
}

// SetProfileAtIndex overwrites bucket index and pins it as current.
func (f *Field) SetProfileAtIndex(c Coord, index int, v Vector) bool {
	r, ok := f.rooms[c]
	if !ok {
		return false
	}
	return r.setAt(index, v)
}

// RecomputeEdgeBlends refreshes every room's cached blend with its four
// neighbors. Run after all current profiles for the tick are settled.
func (f *Field) RecomputeEdgeBlends() {
	for _, c := range f.order {
		r := f.rooms[c]
		for d := Direction(0); d < numDirections; d++ {
			off := d.offset()
			n, ok := f.rooms[Coord{c.X + off.X, c.Z + off.Z}]
			if !ok {
				r.edges[d] = r.current
				continue
			}
			r.edges[d] = r.current.Lerp(n.current, 0.5)
		}
	}
}

// DetectRoom returns the room whose center is nearest p, or nil when the
// field is empty.
func (f *Field) DetectRoom(p geom.Vec2) *Room {
	if r, ok := f.rooms[f.Snap(p)]; ok {
		return r
	}
	var best *Room
	bestD := math.Inf(1)
	for _, c := range f.order {
		d := p.DistSq(f.Center(c))
		if d < bestD {
			bestD = d
			best = f.rooms[c]
		}
	}
	return best
}

// Query returns the blended behavior profile at p.
func (f *Field) Query(p geom.Vec2) Vector {
	r := f.DetectRoom(p)
	if r == nil {
		return DefaultVector
	}
	rel := p.Sub(f.Center(r.coord))
	u := geom.Clamp(rel.X/f.halfSize, -1, 1)
	v := geom.Clamp(rel.Z/f.halfSize, -1, 1)
	return r.blend(u, v)
}

// Key formats a root room's save-file key.
func Key(row, col int) string {
	return strconv.Itoa(row) + "_" + strconv.Itoa(col)
}

// ParseKey is the inverse of Key.
func ParseKey(k string) (row, col int, err error) {
	a, b, ok := strings.Cut(k, "_")
	if !ok {
		return 0, 0, fmt.Errorf("room key %q: missing separator", k)
	}
	if row, err = strconv.Atoi(a); err != nil {
		return 0, 0, fmt.Errorf("room key %q: %w", k, err)
	}
	if col, err = strconv.Atoi(b); err != nil {
		return 0, 0, fmt.Errorf("room key %q: %w", k, err)
	}
	return row, col, nil
}

// Export returns every root room's sequence keyed by "row_col".
func (f *Field) Export() map[string][][4]float64 {
	out := make(map[string][][4]float64, f.rows*f.cols)
	for row := 0; row < f.rows; row++ {
		for col := 0; col < f.cols; col++ {
			r := f.rooms[RootCoord(row, col)]
			seq := make([][4]float64, len(r.sequence))
			for i, v := range r.sequence {
				seq[i] = v.Array()
			}
			out[Key(row, col)] = seq
		}
	}
	return out
}

// Import replaces root room sequences from an Export map. Keys outside the
// grid are skipped and reported in the returned slice. Each imported room
// pins its first entry as current.
func (f *Field) Import(data map[string][][4]float64) (skipped []string) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		row, col, err := ParseKey(k)
		if err != nil {
			skipped = append(skipped, k)
			continue
		}
		r, ok := f.RootRoom(row, col)
		if !ok {
			skipped = append(skipped, k)
			continue
		}
		r.sequence = r.sequence[:0]
		for _, a := range data[k] {
			r.appendProfile(FromArray(a))
		}
		if len(r.sequence) > 0 {
			r.current = r.sequence[0]
			r.frame = 0
		}
	}
	f.RecomputeEdgeBlends()
	return skipped
}
