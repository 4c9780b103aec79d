package main

import (
	"log/slog"
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/crowd/config"
	"github.com/pthm-cable/crowd/sim"
	"github.com/pthm-cable/crowd/telemetry"
)

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params     *ParamVector
	maxTicks   int
	seeds      []int64
	baseConfig *config.Config

	mu          sync.Mutex
	bestFitness float64
	lastQuality float64 // quality from most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, maxTicks int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		maxTicks:    maxTicks,
		seeds:       seeds,
		baseConfig:  baseCfg,
		bestFitness: math.Inf(1),
	}
}

// LastQuality returns the quality score from the most recent evaluation.
func (fe *FitnessEvaluator) LastQuality() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastQuality
}

// BestFitness returns the lowest average fitness seen so far.
func (fe *FitnessEvaluator) BestFitness() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

const (
	qualityWeight     = 2.0 // scales the arrival share added to the mean return
	noEpisodesPenalty = 1e6 // fitness of a run that never spawned anyone
)

// runResult holds the results from a single simulation run.
type runResult struct {
	returns     []float64
	windowStats []telemetry.WindowStats
	ticks       int
}

type seedResult struct {
	fitness float64
	quality float64
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Fitness is the negated mean episode return plus an arrival bonus.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]seedResult, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			r := fe.runSimulation(x, s)
			q := computeQuality(r.windowStats)
			results[idx] = seedResult{
				fitness: computeFitness(r, q),
				quality: q,
			}
		}(i, seed)
	}
	wg.Wait()

	fitness := make([]float64, len(results))
	quality := make([]float64, len(results))
	for i, r := range results {
		fitness[i] = r.fitness
		quality[i] = r.quality
	}
	avg := stat.Mean(fitness, nil)

	fe.mu.Lock()
	if avg < fe.bestFitness {
		fe.bestFitness = avg
	}
	fe.lastQuality = stat.Mean(quality, nil)
	fe.mu.Unlock()

	return avg
}

// runSimulation executes one headless run until the scene empties or
// maxTicks elapse.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed int64) *runResult {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)

	result := &runResult{}
	w, err := sim.New(cfg,
		sim.WithSeed(seed),
		sim.WithStatsCallback(func(s telemetry.WindowStats) {
			result.windowStats = append(result.windowStats, s)
		}),
	)
	if err != nil {
		slog.Error("failed to create simulation", "seed", seed, "error", err)
		return result
	}
	defer w.Close()

	for !w.Done() && w.CurrentTick() < fe.maxTicks {
		w.Tick()
	}
	result.ticks = w.CurrentTick()
	for _, o := range w.Outcomes() {
		result.returns = append(result.returns, o.Return)
	}
	// Agents still walking at the cutoff contribute their running return.
	for _, a := range w.Agents() {
		result.returns = append(result.returns, a.Score.Total)
	}
	return result
}

// copyConfig returns an independent copy of the base config with file
// outputs disabled, so parallel runs never share a writer.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Spawn.Areas = append([]config.AreaConfig(nil), fe.baseConfig.Spawn.Areas...)
	if fe.baseConfig.Spawn.Inheritance != nil {
		area := *fe.baseConfig.Spawn.Inheritance
		cfg.Spawn.Inheritance = &area
	}
	cfg.Telemetry.IndexPath = ""
	cfg.Telemetry.Trajectories = false
	cfg.Telemetry.LogStats = false
	return &cfg
}

// computeFitness calculates the scalar fitness (lower = better).
func computeFitness(r *runResult, quality float64) float64 {
	if len(r.returns) == 0 {
		return noEpisodesPenalty
	}
	return -(stat.Mean(r.returns, nil) + qualityWeight*quality)
}

// computeQuality is the share of finished episodes that arrived, over all
// windows. It is in [0, 1].
func computeQuality(windows []telemetry.WindowStats) float64 {
	var arrived, finished int
	for _, w := range windows {
		arrived += w.Arrived
		finished += w.Arrived + w.Collided + w.Exited + w.Expired + w.Removed
	}
	if finished == 0 {
		return 0
	}
	return float64(arrived) / float64(finished)
}
