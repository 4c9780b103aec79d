package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/pthm-cable/crowd/profile"
	"github.com/pthm-cable/crowd/spawn"
)

// Environment describes the dataset grid and its timing.
type Environment struct {
	Width         int `json:"width"`  // columns
	Height        int `json:"height"` // rows
	FrameInterval int `json:"frame_interval"`
	Framerate     int `json:"framerate"`
}

// CellProfile is one cell entry of a class range.
type CellProfile struct {
	Key     string
	Profile profile.Vector
}

// ClassRange holds the per-cell profiles for one "start_end" frame range.
// Cells keep document order; the i-th cell maps to root cell i in row-major
// order.
type ClassRange struct {
	Key   string
	Cells []CellProfile
}

// Classes is the ordered set of class ranges.
type Classes []ClassRange

// UnmarshalJSON decodes the nested object keeping document order.
func (c *Classes) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	var out Classes
	for dec.More() {
		key, err := stringToken(dec)
		if err != nil {
			return err
		}
		r := ClassRange{Key: key}
		if err := expectDelim(dec, '{'); err != nil {
			return err
		}
		for dec.More() {
			cell, err := stringToken(dec)
			if err != nil {
				return err
			}
			var v profile.Vector
			if err := dec.Decode(&v); err != nil {
				return fmt.Errorf("class %s/%s: %w", key, cell, err)
			}
			r.Cells = append(r.Cells, CellProfile{Key: cell, Profile: v})
		}
		if err := expectDelim(dec, '}'); err != nil {
			return err
		}
		out = append(out, r)
	}
	if err := expectDelim(dec, '}'); err != nil {
		return err
	}
	*c = out
	return nil
}

// MarshalJSON encodes the ranges in order.
func (c Classes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, r := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, _ := json.Marshal(r.Key)
		buf.Write(k)
		buf.WriteString(":{")
		for j, cell := range r.Cells {
			if j > 0 {
				buf.WriteByte(',')
			}
			ck, _ := json.Marshal(cell.Key)
			v, err := json.Marshal(cell.Profile)
			if err != nil {
				return nil, err
			}
			buf.Write(ck)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("reading classes: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("reading classes: got %v, want %v", tok, want)
	}
	return nil
}

func stringToken(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("reading classes: %w", err)
	}
	s, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("reading classes: got %v, want key", tok)
	}
	return s, nil
}

// Simulation is a dataset document.
type Simulation struct {
	Environment Environment            `json:"Environment"`
	Classes     Classes                `json:"Classes"`
	Clusters    [][]float64            `json:"Clusters,omitempty"`
	Agents      map[string][][]float64 `json:"Agents,omitempty"`
}

// LoadSimulation validates and decodes a dataset document.
func LoadSimulation(r io.Reader) (*Simulation, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading simulation: %w", err)
	}
	if err := validate(simulationSchema, data); err != nil {
		return nil, err
	}
	var sim Simulation
	if err := json.Unmarshal(data, &sim); err != nil {
		return nil, fmt.Errorf("decoding simulation: %w", err)
	}
	return &sim, nil
}

// WriteSimulation encodes s as indented JSON.
func WriteSimulation(w io.Writer, s *Simulation) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encoding simulation: %w", err)
	}
	return nil
}

// Populate appends every class range to the field's root rooms in frame
// order and returns the matching timeline. Cells beyond the grid are
// ignored.
func (s *Simulation) Populate(f *profile.Field) (*profile.Timeline, error) {
	tpb := s.Environment.FrameInterval
	type ranged struct {
		frame int
		r     *ClassRange
	}
	ordered := make([]ranged, 0, len(s.Classes))
	for i := range s.Classes {
		fr, err := profile.RangeFrame(s.Classes[i].Key, tpb)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, ranged{frame: fr, r: &s.Classes[i]})
	}
	slices.SortStableFunc(ordered, func(a, b ranged) int { return a.frame - b.frame })

	keys := make([]string, 0, len(ordered))
	cells := f.Rows() * f.Cols()
	for _, o := range ordered {
		for j, cell := range o.r.Cells {
			if j >= cells {
				break
			}
			f.AppendProfile(profile.RootCoord(j/f.Cols(), j%f.Cols()), cell.Profile)
		}
		keys = append(keys, o.r.Key)
	}
	f.SetBuckets(len(keys))
	return profile.TimelineFromKeys(keys, tpb)
}

// ClusterProfiles returns the representative profiles listed in Clusters.
func (s *Simulation) ClusterProfiles() []profile.Vector {
	out := make([]profile.Vector, 0, len(s.Clusters))
	for _, c := range s.Clusters {
		if v, ok := profile.FromSlice(c); ok {
			out = append(out, v)
		}
	}
	return out
}

// AgentFrames returns the dataset agents keyed by frame, reordered into the
// spawn row layout. Malformed rows are dropped.
func (s *Simulation) AgentFrames() (map[int][][]float64, error) {
	out := make(map[int][][]float64, len(s.Agents))
	for k, rows := range s.Agents {
		frame, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("agent frame %q: %w", k, err)
		}
		for _, raw := range rows {
			if row, ok := spawn.DatasetRow(raw); ok {
				out[frame] = append(out[frame], row)
			}
		}
	}
	return out, nil
}
