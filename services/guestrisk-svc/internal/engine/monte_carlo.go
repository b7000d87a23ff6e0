// services/guestrisk-svc/internal/engine/monte_carlo.go
package engine

import (
	"context"
	"errors"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"guestrisk/pkg/apperror"
	"guestrisk/pkg/logger"
)

// DefaultBatchSize число испытаний, разыгрываемых одним потоком случайных чисел
const DefaultBatchSize = 512

// TrialResult одна строка результата
type TrialResult struct {
	TrialIndex     int            `json:"trial_index"`
	AttendeeCount  int            `json:"attendee_count"`
	TotalCost      float64        `json:"total_cost"`
	Risk           float64        `json:"risk"`
	OverBudgetFlag OverBudgetFlag `json:"over_budget_flag"`
	Recommendation Recommendation `json:"recommendation"`
}

// ResultSet упорядоченный набор испытаний одного прогона
type ResultSet struct {
	Parameters SimulationParameters `json:"parameters"`
	Seed       int64                `json:"seed"`
	Trials     []TrialResult        `json:"trials"`
}

// Len количество испытаний
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Trials)
}

// Risks returns the risk column in trial order.
func (rs *ResultSet) Risks() []float64 {
	out := make([]float64, len(rs.Trials))
	for i, t := range rs.Trials {
		out[i] = t.Risk
	}
	return out
}

// TotalCosts returns the total_cost column in trial order.
func (rs *ResultSet) TotalCosts() []float64 {
	out := make([]float64, len(rs.Trials))
	for i, t := range rs.Trials {
		out[i] = t.TotalCost
	}
	return out
}

// AttendeeCounts returns the attendee_count column in trial order.
func (rs *ResultSet) AttendeeCounts() []float64 {
	out := make([]float64, len(rs.Trials))
	for i, t := range rs.Trials {
		out[i] = float64(t.AttendeeCount)
	}
	return out
}

// Config настройки движка
type Config struct {
	Parallel   bool
	MaxWorkers int
	BatchSize  int
}

// MonteCarloEngine движок Monte Carlo симуляции явки гостей
type MonteCarloEngine struct {
	config Config
}

// NewMonteCarloEngine создаёт новый движок
func NewMonteCarloEngine(config Config) *MonteCarloEngine {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &MonteCarloEngine{config: config}
}

// ResolveSeed заменяет нулевой seed на значение от часов
func ResolveSeed(seed int64) int64 {
	if seed == 0 {
		return time.Now().UnixNano()
	}
	return seed
}

// Workers returns how many goroutines a run of trialCount trials would use.
func (e *MonteCarloEngine) Workers(trialCount int) int {
	if !e.config.Parallel {
		return 1
	}

	numWorkers := runtime.NumCPU()
	if e.config.MaxWorkers > 0 && e.config.MaxWorkers < numWorkers {
		numWorkers = e.config.MaxWorkers
	}

	numBatches := (trialCount + e.config.BatchSize - 1) / e.config.BatchSize
	if numBatches < numWorkers {
		numWorkers = numBatches
	}
	if numWorkers < 1 {
		numWorkers = 1
	}
	return numWorkers
}

// Run validates params and executes TrialCount independent trials.
//
// Trials are cut into fixed-size batches; batch b draws from its own
// generator seeded with the b-th value of a master stream built from seed.
// Batch boundaries and seeds do not depend on the worker count, so a given
// seed reproduces the same ResultSet whether the run is parallel or not.
func (e *MonteCarloEngine) Run(ctx context.Context, params SimulationParameters, seed int64) (*ResultSet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	seed = ResolveSeed(seed)
	trialCount := params.TrialCount
	batchSize := e.config.BatchSize
	numBatches := (trialCount + batchSize - 1) / batchSize

	master := rand.New(NewSource(seed))
	batchSeeds := make([]int64, numBatches)
	for b := range batchSeeds {
		batchSeeds[b] = master.Int64()
	}

	trials := make([]TrialResult, trialCount)
	numWorkers := e.Workers(trialCount)

	logger.Log.Debug("monte carlo run started",
		"trials", trialCount,
		"invited", params.InvitedCount,
		"batches", numBatches,
		"workers", numWorkers,
		"seed", seed,
	)

	tasks := make(chan int, numBatches)
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range tasks {
				select {
				case <-ctx.Done():
					return
				default:
				}

				start := b * batchSize
				end := start + batchSize
				if end > trialCount {
					end = trialCount
				}

				// Каждый батч пишет только в свой диапазон индексов
				runBatch(NewSource(batchSeeds[b]), params, trials[start:end], start)
			}
		}()
	}

	for b := 0; b < numBatches; b++ {
		tasks <- b
	}
	close(tasks)

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, contextError(err)
	}

	return &ResultSet{
		Parameters: params,
		Seed:       seed,
		Trials:     trials,
	}, nil
}

// RunWithSource runs every trial sequentially from a single caller-owned
// random source.
func RunWithSource(params SimulationParameters, src RandomSource) (*ResultSet, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	trials := make([]TrialResult, params.TrialCount)
	runBatch(src, params, trials, 0)

	return &ResultSet{
		Parameters: params,
		Trials:     trials,
	}, nil
}

// runBatch fills out with trials numbered offset+1 .. offset+len(out).
func runBatch(src RandomSource, params SimulationParameters, out []TrialResult, offset int) {
	for i := range out {
		p := SampleProbability(src, params.AttendanceProbability)
		attendees := SampleAttendees(src, params.InvitedCount, p)
		out[i] = EvaluateTrial(offset+i+1, attendees, params)
	}
}

func contextError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Wrap(err, apperror.CodeTimeout, "simulation run timed out")
	}
	return apperror.Wrap(err, apperror.CodeCancelled, "simulation run cancelled")
}
