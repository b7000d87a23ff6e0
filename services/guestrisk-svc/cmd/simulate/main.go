// Команда simulate выполняет один прогон локально, без HTTP сервиса.
//
//	go run ./services/guestrisk-svc/cmd/simulate -invited 150 -budget 30000 -trials out.csv
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"guestrisk/pkg/logger"
	"guestrisk/services/guestrisk-svc/internal/engine"
)

type options struct {
	params    engine.SimulationParameters
	tolerance float64
	seed      int64
	workers   int
	trialsOut string
}

// output то, что печатается в stdout
type output struct {
	Seed    int64           `json:"seed"`
	Workers int             `json:"workers"`
	Summary *engine.Summary `json:"summary"`
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)

	o := &options{}
	fs.IntVar(&o.params.TrialCount, "n", 10000, "number of trials")
	fs.IntVar(&o.params.InvitedCount, "invited", 150, "number of invited guests")
	fs.Float64Var(&o.params.AttendanceProbability.Low, "p-low", 0.6, "lower bound of attendance probability")
	fs.Float64Var(&o.params.AttendanceProbability.High, "p-high", 0.9, "upper bound of attendance probability")
	fs.Float64Var(&o.params.FixedCost, "fixed", 22000, "fixed cost")
	fs.Float64Var(&o.params.VariableCostPerGuest, "per-guest", 125, "variable cost per attending guest")
	fs.IntVar(&o.params.GuestBaseCount, "base", 50, "guests covered by the fixed cost")
	fs.Float64Var(&o.params.Budget, "budget", 30000, "budget")
	fs.Float64Var(&o.tolerance, "tolerance", 0.2, "risk tolerance in [0,1]")
	fs.Int64Var(&o.seed, "seed", 0, "random seed, 0 picks one from the clock")
	fs.IntVar(&o.workers, "workers", 0, "worker limit, 0 uses all CPUs, 1 runs sequentially")
	fs.StringVar(&o.trialsOut, "trials", "", "write per-trial results to this CSV file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

func run(ctx context.Context, o *options, stdout io.Writer) error {
	if err := engine.ValidateRiskTolerance(o.tolerance); err != nil {
		return err
	}

	mc := engine.NewMonteCarloEngine(engine.Config{
		Parallel:   o.workers != 1,
		MaxWorkers: o.workers,
	})

	seed := engine.ResolveSeed(o.seed)
	rs, err := mc.Run(ctx, o.params, seed)
	if err != nil {
		return err
	}

	summary, err := engine.Summarize(rs, o.tolerance)
	if err != nil {
		return err
	}

	if o.trialsOut != "" {
		if err := writeTrialsFile(o.trialsOut, rs); err != nil {
			return err
		}
		logger.Info("Trials written", "path", o.trialsOut, "rows", rs.Len())
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(output{
		Seed:    rs.Seed,
		Workers: mc.Workers(o.params.TrialCount),
		Summary: summary,
	})
}

func writeTrialsFile(path string, rs *engine.ResultSet) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return writeTrials(f, rs)
}

// writeTrials пишет result set колонками для построения графиков
func writeTrials(w io.Writer, rs *engine.ResultSet) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{
		"trial_index", "attendee_count", "total_cost", "risk", "over_budget_flag", "recommendation",
	}); err != nil {
		return err
	}

	for _, t := range rs.Trials {
		if err := cw.Write([]string{
			strconv.Itoa(t.TrialIndex),
			strconv.Itoa(t.AttendeeCount),
			strconv.FormatFloat(t.TotalCost, 'f', -1, 64),
			strconv.FormatFloat(t.Risk, 'f', -1, 64),
			string(t.OverBudgetFlag),
			string(t.Recommendation),
		}); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func main() {
	logger.InitWithConfig(logger.Config{Level: "info", Format: "text", Output: "stderr"})

	o, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if err := run(context.Background(), o, os.Stdout); err != nil {
		logger.Error("Simulation failed", "error", err)
		os.Exit(1)
	}
}
