package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/dataset"
	"github.com/pthm-cable/crowd/profile"
	"github.com/pthm-cable/crowd/sim"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	seed := flag.Int64("seed", 0, "RNG seed (0 = use config)")
	maxTicks := flag.Int("max-ticks", 0, "Stop after N ticks (0 = use config, then run until the scene empties)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	datasetPath := flag.String("dataset", "", "Dataset JSON driving the field and spawns (switches to dataset mode)")
	scenePath := flag.String("scene", "", "Scene objects JSON")
	profilesPath := flag.String("profiles", "", "Room profiles to load (.json, or a .zst snapshot)")
	saveProfiles := flag.String("save-profiles", "", "Write the field's room profiles as a .zst snapshot on exit")
	indexPath := flag.String("index", "", "sqlite run index (empty = use config)")
	logStats := flag.Bool("log-stats", false, "Output stats via slog")
	trajectories := flag.Bool("trajectories", false, "Write per-agent trajectories under the output directory")
	statsWindow := flag.Float64("stats-window", 0, "Stats window size in seconds (0 = use config)")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	if *seed != 0 {
		cfg.Sim.Seed = *seed
	}
	if *logStats {
		cfg.Telemetry.LogStats = true
	}
	if *trajectories {
		cfg.Telemetry.Trajectories = true
	}
	if *statsWindow > 0 {
		cfg.Telemetry.StatsWindow = *statsWindow
	}
	ticks := cfg.Sim.MaxTicks
	if *maxTicks > 0 {
		ticks = *maxTicks
	}

	opts := []sim.Option{
		sim.WithOutput(*outputDir),
		sim.WithIndex(*indexPath),
	}

	rows, cols := cfg.Field.Rows, cfg.Field.Cols
	if *datasetPath != "" {
		s, err := loadSimulation(*datasetPath)
		if err != nil {
			slog.Error("failed to load dataset", "path", *datasetPath, "error", err)
			os.Exit(1)
		}
		if err := cfg.SetMode(config.ModeDataset); err != nil {
			slog.Error("invalid config", "error", err)
			os.Exit(1)
		}
		rows, cols = s.Environment.Height, s.Environment.Width
		opts = append(opts, sim.WithSimulation(s))
	}

	if *scenePath != "" {
		scene, err := loadScene(*scenePath)
		if err != nil {
			slog.Error("failed to load scene", "path", *scenePath, "error", err)
			os.Exit(1)
		}
		// Same grid geometry the world will build.
		grid := profile.NewField(rows, cols, cfg.Field.CellHalfSize, 0)
		opts = append(opts, sim.WithBoxes(scene.Boxes(grid.GridCenter(), cfg.Field.CellHalfSize, cols, rows)...))
	}

	w, err := sim.New(cfg, opts...)
	if err != nil {
		slog.Error("failed to create simulation", "error", err)
		os.Exit(1)
	}

	if *profilesPath != "" {
		if err := loadProfiles(*profilesPath, w.Field()); err != nil {
			slog.Error("failed to load profiles", "path", *profilesPath, "error", err)
			w.Close()
			os.Exit(1)
		}
	}

	slog.Info("starting headless simulation",
		"seed", cfg.Sim.Seed,
		"mode", cfg.Sim.Mode,
		"max_ticks", ticks,
		"run", w.RunID(),
	)

	for !w.Done() {
		w.Tick()
		if ticks > 0 && w.CurrentTick() >= ticks {
			slog.Info("max ticks reached", "tick", w.CurrentTick())
			break
		}
	}

	summarize(w.Outcomes(), w.CurrentTick())

	if *saveProfiles != "" {
		if err := dataset.WriteSnapshot(*saveProfiles, w.Field()); err != nil {
			slog.Error("failed to save profiles", "error", err)
		}
	}
	if err := w.Close(); err != nil {
		slog.Error("failed to close simulation", "error", err)
		os.Exit(1)
	}
}

func loadSimulation(path string) (*dataset.Simulation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataset.LoadSimulation(f)
}

func loadScene(path string) (*dataset.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return dataset.LoadScene(f)
}

func loadProfiles(path string, field *profile.Field) error {
	if strings.EqualFold(filepath.Ext(path), ".zst") {
		return dataset.ReadSnapshot(path, field)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening profiles: %w", err)
	}
	defer f.Close()
	return dataset.LoadProfiles(f, field)
}

// summarize logs outcome counts and the mean episode return.
func summarize(outcomes []sim.Outcome, ticks int) {
	counts := make(map[string]int)
	var total float64
	for _, o := range outcomes {
		counts[o.Kind.String()]++
		total += o.Return
	}
	mean := 0.0
	if len(outcomes) > 0 {
		mean = total / float64(len(outcomes))
	}
	slog.Info("run_complete",
		"ticks", ticks,
		"episodes", len(outcomes),
		"outcomes", counts,
		"mean_return", mean,
	)
}
