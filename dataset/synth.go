package dataset

import (
	"fmt"

	"github.com/ojrac/opensimplex-go"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/profile"
)

// noiseScale spaces samples so neighboring cells stay correlated.
const noiseScale = 0.35

// Synthesize builds a dataset whose class ranges come from smooth noise over
// cells and buckets. Goal, group and interaction weights sum to 1 in every
// cell; connectivity is independent.
func Synthesize(rows, cols, buckets, frameInterval int, seed int64) *Simulation {
	noise := [4]opensimplex.Noise{
		opensimplex.NewNormalized(seed),
		opensimplex.NewNormalized(seed + 1),
		opensimplex.NewNormalized(seed + 2),
		opensimplex.NewNormalized(seed + 3),
	}
	if frameInterval <= 0 {
		frameInterval = 1
	}

	sim := &Simulation{
		Environment: Environment{Width: cols, Height: rows, FrameInterval: frameInterval, Framerate: 25},
	}
	w := make([]float64, 3)
	for b := 0; b < buckets; b++ {
		r := ClassRange{Key: fmt.Sprintf("%d_%d", b*frameInterval, (b+1)*frameInterval)}
		// The bucket index is a third noise coordinate so profiles drift over time.
		t := float64(b) * noiseScale
		for row := 0; row < rows; row++ {
			for col := 0; col < cols; col++ {
				x, z := float64(col)*noiseScale, float64(row)*noiseScale
				for i := range w {
					w[i] = noise[i].Eval3(x, z, t)
				}
				v := profile.DefaultVector
				if sum := floats.Sum(w); sum > 0 {
					floats.Scale(1/sum, w)
					v = profile.Vector{Goal: w[0], Group: w[1], Interaction: w[2]}
				}
				v.Connectivity = geom.Clamp01(noise[3].Eval3(x, z, t))
				r.Cells = append(r.Cells, CellProfile{Key: profile.Key(row, col), Profile: v})
			}
		}
		sim.Classes = append(sim.Classes, r)
	}
	return sim
}
