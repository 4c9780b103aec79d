// Field preview tool - samples the blended profile field at every time bucket.
//
// Usage: go run ./cmd/fieldpreview [-dataset sim.json] [-samples 48] [-csv out.csv]
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/dataset"
	"github.com/pthm-cable/crowd/geom"
	"github.com/pthm-cable/crowd/profile"
)

// sample is one CSV row.
type sample struct {
	Bucket       int     `csv:"bucket"`
	X            float64 `csv:"x"`
	Z            float64 `csv:"z"`
	Goal         float64 `csv:"goal"`
	Group        float64 `csv:"group"`
	Interaction  float64 `csv:"interaction"`
	Connectivity float64 `csv:"connectivity"`
}

// Map glyphs by dominant weight.
const (
	glyphGoal        = '.'
	glyphGroup       = '#'
	glyphInteraction = '*'
	glyphOutside     = ' '
)

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	datasetPath := flag.String("dataset", "", "Dataset JSON (empty = synthesize from config)")
	seed := flag.Int64("seed", 0, "Synthesis seed (0 = use config)")
	n := flag.Int("samples", 48, "Samples per side of the preview grid")
	csvPath := flag.String("csv", "", "Write samples as CSV instead of printing maps")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *seed == 0 {
		*seed = cfg.Sim.Seed
	}
	if *n < 2 {
		log.Fatal("--samples must be at least 2")
	}

	var s *dataset.Simulation
	if *datasetPath != "" {
		f, err := os.Open(*datasetPath)
		if err != nil {
			log.Fatalf("failed to open dataset: %v", err)
		}
		s, err = dataset.LoadSimulation(f)
		f.Close()
		if err != nil {
			log.Fatalf("failed to load dataset: %v", err)
		}
	} else {
		s = dataset.Synthesize(cfg.Field.Rows, cfg.Field.Cols, max(cfg.Field.Buckets, 1), cfg.Derived.TicksPerBucket, *seed)
	}

	field := profile.NewField(s.Environment.Height, s.Environment.Width, cfg.Field.CellHalfSize, 0)
	timeline, err := s.Populate(field)
	if err != nil {
		log.Fatalf("failed to populate field: %v", err)
	}

	var rows []sample
	for i, b := range timeline.Buckets() {
		field.SetActiveBucketAll(i)
		field.RecomputeEdgeBlends()
		grid := sampleGrid(field, *n, i)

		if *csvPath != "" {
			rows = append(rows, grid...)
			continue
		}
		fmt.Printf("Bucket %d (%s, frame %d)\n", i, b.Key, b.Frame)
		printMap(grid, *n)
		printStats(grid)
		fmt.Println()
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			log.Fatalf("failed to create csv: %v", err)
		}
		defer f.Close()
		if err := gocsv.MarshalFile(&rows, f); err != nil {
			log.Fatalf("failed to write csv: %v", err)
		}
		fmt.Printf("%d samples over %d buckets written to %s\n", len(rows), timeline.Len(), *csvPath)
	}
}

// sampleGrid queries the field at the centres of an n by n lattice over its
// bounds, row-major from the low corner.
func sampleGrid(f *profile.Field, n, bucket int) []sample {
	lo, hi := f.Bounds()
	step := hi.Sub(lo).Scale(1 / float64(n))
	out := make([]sample, 0, n*n)
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			p := lo.Add(geom.V((float64(c)+0.5)*step.X, (float64(r)+0.5)*step.Z))
			var v profile.Vector
			if f.DetectRoom(p) != nil {
				v = f.Query(p)
			}
			out = append(out, sample{
				Bucket:       bucket,
				X:            p.X,
				Z:            p.Z,
				Goal:         v.Goal,
				Group:        v.Group,
				Interaction:  v.Interaction,
				Connectivity: v.Connectivity,
			})
		}
	}
	return out
}

func dominant(s sample) rune {
	switch {
	case s.Goal == 0 && s.Group == 0 && s.Interaction == 0:
		return glyphOutside
	case s.Group >= s.Goal && s.Group >= s.Interaction:
		return glyphGroup
	case s.Interaction >= s.Goal:
		return glyphInteraction
	default:
		return glyphGoal
	}
}

// printMap draws high z at the top.
func printMap(grid []sample, n int) {
	var sb strings.Builder
	for r := n - 1; r >= 0; r-- {
		sb.WriteByte('|')
		for c := 0; c < n; c++ {
			sb.WriteRune(dominant(grid[r*n+c]))
		}
		sb.WriteString("|\n")
	}
	fmt.Print(sb.String())
}

func printStats(grid []sample) {
	var sum profile.Vector
	counts := map[rune]int{}
	for _, s := range grid {
		counts[dominant(s)]++
		sum = sum.Add(profile.Vector{Goal: s.Goal, Group: s.Group, Interaction: s.Interaction, Connectivity: s.Connectivity})
	}
	avg := sum.Scale(1 / float64(len(grid)))
	fmt.Printf("Avg goal: %.3f  group: %.3f  interaction: %.3f  connectivity: %.3f\n",
		avg.Goal, avg.Group, avg.Interaction, avg.Connectivity)
	fmt.Printf("Dominant '%c' goal=%d  '%c' group=%d  '%c' interaction=%d\n",
		glyphGoal, counts[glyphGoal], glyphGroup, counts[glyphGroup], glyphInteraction, counts[glyphInteraction])
}
