package profile

// Direction indexes a room's edge blends.
type Direction int

const (
	North Direction = iota // +z
	South                  // -z
	East                   // +x
	West                   // -x
	numDirections
)

func (d Direction) String() string {
	switch d {
	case North:
		return "north"
	case South:
		return "south"
	case East:
		return "east"
	case West:
		return "west"
	default:
		return "unknown"
	}
}

// offset returns the lattice step for d.
func (d Direction) offset() Coord {
	switch d {
	case North:
		return Coord{0, 1}
	case South:
		return Coord{0, -1}
	case East:
		return Coord{1, 0}
	default:
		return Coord{-1, 0}
	}
}

// Coord is a room's position on the integer lattice. Root room (row, col)
// sits at X = col, Z = -row.
type Coord struct {
	X, Z int
}

// RootCoord returns the lattice coordinate of root room (row, col).
func RootCoord(row, col int) Coord {
	return Coord{X: col, Z: -row}
}

// Room is one cell of the field.
type Room struct {
	coord    Coord
	root     bool
	sequence []Vector
	current  Vector
	frame    int
	edges    [numDirections]Vector
}

func newRoom(c Coord, root bool, buckets int) *Room {
	r := &Room{coord: c, root: root, current: DefaultVector}
	if !root {
		r.sequence = make([]Vector, buckets)
		for i := range r.sequence {
			r.sequence[i] = DefaultVector
		}
	}
	for d := range r.edges {
		r.edges[d] = r.current
	}
	return r
}

// Coord returns the room's lattice position.
func (r *Room) Coord() Coord { return r.coord }

// IsRoot reports whether the room belongs to the primary grid.
func (r *Room) IsRoot() bool { return r.root }

// Current returns the profile selected by the active bucket.
func (r *Room) Current() Vector { return r.current }

// Edge returns the cached blend toward d.
func (r *Room) Edge(d Direction) Vector { return r.edges[d] }

// Frame returns the last bucket index requested for the room.
func (r *Room) Frame() int { return r.frame }

// Len returns the number of time buckets the room holds.
func (r *Room) Len() int { return len(r.sequence) }

// Sequence returns a copy of the room's time-indexed profiles.
func (r *Room) Sequence() []Vector {
	out := make([]Vector, len(r.sequence))
	copy(out, r.sequence)
	return out
}

// At returns the profile stored for bucket i.
func (r *Room) At(i int) (Vector, bool) {
	if i < 0 || i >= len(r.sequence) {
		return Vector{}, false
	}
	return r.sequence[i], true
}

func (r *Room) appendProfile(v Vector) {
	r.sequence = append(r.sequence, v)
	if len(r.sequence) == 1 {
		r.current = v
	}
}

func (r *Room) setActive(i int, updating bool) {
	r.frame = i
	if i < 0 || i >= len(r.sequence) || !updating {
		return
	}
	r.current = r.sequence[i]
}

func (r *Room) setAt(i int, v Vector) bool {
	if i < 0 || i >= len(r.sequence) {
		return false
	}
	r.sequence[i] = v
	r.frame = i
	r.current = v
	return true
}

// blend applies the directional in-cell blend for fractional offsets u, v.
func (r *Room) blend(u, v float64) Vector {
	au, av := abs(u), abs(v)
	if au+av == 0 {
		return r.current
	}

	var horizontal, vertical Vector
	if u > 0 {
		horizontal = r.current.Lerp(r.edges[East], u)
	} else {
		horizontal = r.current.Lerp(r.edges[West], au)
	}
	if v > 0 {
		vertical = r.current.Lerp(r.edges[North], v)
	} else {
		vertical = r.current.Lerp(r.edges[South], av)
	}

	total := au + av
	return horizontal.Scale(au / total).Add(vertical.Scale(av / total))
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
