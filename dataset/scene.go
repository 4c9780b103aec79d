package dataset

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/systems"
)

// SceneParams are the real-world extents used to normalize trajectories.
type SceneParams struct {
	MinWidth  float64 `json:"min_width"`
	MaxWidth  float64 `json:"max_width"`
	MinHeight float64 `json:"min_height"`
	MaxHeight float64 `json:"max_height"`
}

// SceneObject is a box in normalized scene coordinates. Type < 1 is an
// obstacle, anything else an interaction target.
type SceneObject struct {
	PosX   float64 `json:"pos_x"`
	PosZ   float64 `json:"pos_z"`
	ScaleX float64 `json:"scale_x"`
	ScaleZ float64 `json:"scale_z"`
	Type   float64 `json:"type"`
}

// Scene is a scene-objects document.
type Scene struct {
	Params  SceneParams   `json:"EnvironmentParams"`
	Objects []SceneObject `json:"EnvironmentObjects"`
}

// LoadScene validates and decodes a scene document.
func LoadScene(r io.Reader) (*Scene, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading scene: %w", err)
	}
	if err := validate(sceneSchema, data); err != nil {
		return nil, err
	}
	var s Scene
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scene: %w", err)
	}
	return &s, nil
}

// Boxes maps scene objects onto a field of cols x rows cells centred on
// center. The scene's z axis runs opposite to the field's.
func (s *Scene) Boxes(center geom.Vec2, halfSize float64, cols, rows int) []systems.Box {
	sx := halfSize * float64(cols)
	sz := halfSize * float64(rows)
	out := make([]systems.Box, 0, len(s.Objects))
	for _, o := range s.Objects {
		kind := systems.BoxInteraction
		if o.Type < 1 {
			kind = systems.BoxObstacle
		}
		out = append(out, systems.Box{
			Center: center.Add(geom.V(
				geom.MapRange(o.PosX, 0, 1, -1, 1)*sx,
				geom.MapRange(1-o.PosZ, 0, 1, -1, 1)*sz,
			)),
			HalfExtent: geom.V(o.ScaleX*sx, o.ScaleZ*sz),
			Kind:       kind,
		})
	}
	return out
}
