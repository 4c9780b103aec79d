package dataset

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/profile"
	"github.com/pthm-cable/crowd/systems"
)

const simulationDoc = `{
  "Environment": {"width": 2, "height": 1, "frame_interval": 10, "framerate": 25},
  "Classes": {
    "10_20": {
      "0_1": {"goal": 0.1, "group": 0.2, "interaction": 0.3, "connection": 0.4},
      "0_0": {"goal": 0.5, "group": 0.5, "interaction": 0, "connection": 0}
    },
    "0_10": {
      "0_1": {"goal": 1, "group": 0, "interaction": 0, "connection": 0.25},
      "0_0": {"goal": 0, "group": 1, "interaction": 0, "connection": 0.75}
    }
  },
  "Clusters": [[1, 0, 0, 0.25], [0, 1, 0, 0.5]],
  "Agents": {"12": [[0, 0.5, 0.5, 0, 1, 1, 3]]}
}`

func TestLoadSimulationKeepsOrder(t *testing.T) {
	sim, err := LoadSimulation(strings.NewReader(simulationDoc))
	if err != nil {
		t.Fatalf("LoadSimulation: %v", err)
	}
	if len(sim.Classes) != 2 || sim.Classes[0].Key != "10_20" {
		t.Fatalf("classes = %+v", sim.Classes)
	}
	if sim.Classes[0].Cells[0].Key != "0_1" {
		t.Errorf("first cell = %q, want document order", sim.Classes[0].Cells[0].Key)
	}
	if len(sim.ClusterProfiles()) != 2 {
		t.Errorf("clusters = %v", sim.ClusterProfiles())
	}
}

func TestPopulate(t *testing.T) {
	sim, err := LoadSimulation(strings.NewReader(simulationDoc))
	if err != nil {
		t.Fatalf("LoadSimulation: %v", err)
	}
	f := profile.NewField(1, 2, 5, 0)
	tl, err := sim.Populate(f)
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if tl.Len() != 2 || tl.Buckets()[0].Key != "0_10" || tl.Buckets()[1].Frame != 10 {
		t.Fatalf("timeline = %+v", tl.Buckets())
	}
	if f.Buckets() != 2 {
		t.Errorf("field buckets = %d, want 2", f.Buckets())
	}

	// The first listed cell fills room (0,0) regardless of its key.
	r, _ := f.RootRoom(0, 0)
	want := []profile.Vector{
		{Goal: 1, Connectivity: 0.25},
		{Goal: 0.1, Group: 0.2, Interaction: 0.3, Connectivity: 0.4},
	}
	seq := r.Sequence()
	if len(seq) != 2 || seq[0] != want[0] || seq[1] != want[1] {
		t.Errorf("room (0,0) sequence = %+v, want %+v", seq, want)
	}
}

func TestLoadSimulationSchemaError(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing environment", `{"Classes": {}}`},
		{"zero width", `{"Environment": {"width": 0, "height": 1, "frame_interval": 1, "framerate": 1}, "Classes": {}}`},
		{"bad range key", `{"Environment": {"width": 1, "height": 1, "frame_interval": 1, "framerate": 1}, "Classes": {"abc": {}}}`},
		{"missing weight", `{"Environment": {"width": 1, "height": 1, "frame_interval": 1, "framerate": 1}, "Classes": {"0_1": {"0_0": {"goal": 1}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSimulation(strings.NewReader(tt.doc))
			if !errors.Is(err, ErrSchema) {
				t.Errorf("err = %v, want ErrSchema", err)
			}
		})
	}
}

func TestAgentFrames(t *testing.T) {
	sim, err := LoadSimulation(strings.NewReader(simulationDoc))
	if err != nil {
		t.Fatalf("LoadSimulation: %v", err)
	}
	frames, err := sim.AgentFrames()
	if err != nil {
		t.Fatalf("AgentFrames: %v", err)
	}
	rows := frames[12]
	want := []float64{0.5, 0.5, 1, 1, 0, 3}
	if len(rows) != 1 {
		t.Fatalf("rows = %v", frames)
	}
	for i := range want {
		if rows[0][i] != want[i] {
			t.Errorf("row = %v, want %v", rows[0], want)
			break
		}
	}
}

func TestSceneBoxes(t *testing.T) {
	doc := `{
	  "EnvironmentParams": {"min_width": 0, "max_width": 10, "min_height": 0, "max_height": 10},
	  "EnvironmentObjects": [
	    {"pos_x": 0.5, "pos_z": 0.5, "scale_x": 0.1, "scale_z": 0.2, "type": 0},
	    {"pos_x": 1, "pos_z": 0, "scale_x": 0.05, "scale_z": 0.05, "type": 1}
	  ]
	}`
	scene, err := LoadScene(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadScene: %v", err)
	}
	boxes := scene.Boxes(geom.V(5, -5), 5, 2, 2)
	if len(boxes) != 2 {
		t.Fatalf("boxes = %d, want 2", len(boxes))
	}
	if boxes[0].Kind != systems.BoxObstacle || boxes[0].Center != geom.V(5, -5) || boxes[0].HalfExtent != geom.V(1, 2) {
		t.Errorf("box 0 = %+v", boxes[0])
	}
	// pos_z 0 maps to the top edge because the scene's z axis is flipped.
	if boxes[1].Kind != systems.BoxInteraction || boxes[1].Center != geom.V(15, 5) {
		t.Errorf("box 1 = %+v", boxes[1])
	}

	if _, err := LoadScene(strings.NewReader(`{"EnvironmentObjects": [{"pos_x": 1}]}`)); !errors.Is(err, ErrSchema) {
		t.Errorf("err = %v, want ErrSchema", err)
	}
}

func newProfileField() *profile.Field {
	f := profile.NewField(2, 2, 5, 2)
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			c := profile.RootCoord(row, col)
			f.AppendProfile(c, profile.Vector{Goal: float64(row), Group: float64(col)})
			f.AppendProfile(c, profile.Vector{Interaction: 1, Connectivity: 0.5})
		}
	}
	return f
}

func TestSaveLoadProfiles(t *testing.T) {
	src := newProfileField()
	var buf bytes.Buffer
	if err := SaveProfiles(&buf, src); err != nil {
		t.Fatalf("SaveProfiles: %v", err)
	}

	dst := profile.NewField(2, 2, 5, 2)
	if err := LoadProfiles(&buf, dst); err != nil {
		t.Fatalf("LoadProfiles: %v", err)
	}
	r, _ := dst.RootRoom(1, 0)
	if r.Current() != (profile.Vector{Goal: 1}) || r.Len() != 2 {
		t.Errorf("room (1,0) current=%+v len=%d", r.Current(), r.Len())
	}
}

func TestSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.json.zst")
	if err := WriteSnapshot(path, newProfileField()); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	dst := profile.NewField(2, 2, 5, 2)
	if err := ReadSnapshot(path, dst); err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	r, _ := dst.RootRoom(0, 1)
	if got, _ := r.At(1); got != (profile.Vector{Interaction: 1, Connectivity: 0.5}) {
		t.Errorf("room (0,1)[1] = %+v", got)
	}
	if err := ReadSnapshot(filepath.Join(t.TempDir(), "missing"), dst); err == nil {
		t.Error("expected error for missing snapshot")
	}
}

func TestSynthesize(t *testing.T) {
	sim := Synthesize(3, 4, 5, 25, 7)
	if len(sim.Classes) != 5 {
		t.Fatalf("ranges = %d, want 5", len(sim.Classes))
	}
	for _, r := range sim.Classes {
		if len(r.Cells) != 12 {
			t.Fatalf("range %s has %d cells, want 12", r.Key, len(r.Cells))
		}
		for _, c := range r.Cells {
			v := c.Profile
			if sum := v.Goal + v.Group + v.Interaction; math.Abs(sum-1) > 1e-9 {
				t.Errorf("%s/%s: weights sum to %v", r.Key, c.Key, sum)
			}
			if v.Connectivity < 0 || v.Connectivity > 1 {
				t.Errorf("%s/%s: connectivity %v", r.Key, c.Key, v.Connectivity)
			}
		}
	}

	// A synthesized document passes the same validation as a real one.
	var buf bytes.Buffer
	if err := WriteSimulation(&buf, sim); err != nil {
		t.Fatalf("WriteSimulation: %v", err)
	}
	loaded, err := LoadSimulation(&buf)
	if err != nil {
		t.Fatalf("LoadSimulation: %v", err)
	}
	f := profile.NewField(3, 4, 5, 0)
	tl, err := loaded.Populate(f)
	if err != nil || tl.Len() != 5 {
		t.Fatalf("Populate: %v len=%d", err, tl.Len())
	}
}

func TestReadTrajectory(t *testing.T) {
	in := "t;x;z\n0;0;5\n0.08;10;10\n"
	pts, err := ReadTrajectory(strings.NewReader(in), 25, SceneParams{MinWidth: 0, MaxWidth: 10, MinHeight: 0, MaxHeight: 10})
	if err != nil {
		t.Fatalf("ReadTrajectory: %v", err)
	}
	if len(pts) != 2 {
		t.Fatalf("points = %d, want 2", len(pts))
	}
	if pts[0].Norm != geom.V(-1, 0) || pts[1].Norm != geom.V(1, 1) {
		t.Errorf("norm = %v %v", pts[0].Norm, pts[1].Norm)
	}
	if pts[1].Frame != 2 || pts[1].Raw != geom.V(10, 10) {
		t.Errorf("point 1 = %+v", pts[1])
	}

	if pts, err := ReadTrajectory(strings.NewReader(""), 25, SceneParams{}); err != nil || pts != nil {
		t.Errorf("empty input = %v, %v", pts, err)
	}
}
