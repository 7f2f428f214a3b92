package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/nsurkov/cmaes"
	"github.com/nsurkov/cmaes/bench"
)

var (
	runSeed       int64
	runLambda     int
	runSigma      float64
	runMaxIter    int
	runMaxEvals   int
	runTolFun     float64
	runStart      string
	runBounded    bool
	runParallel   int
	runDiag       int
	runDiagPrefix string
	runDBPath     string
)

var runCmd = &cobra.Command{
	Use:   "run <function>",
	Short: "Minimize a benchmark function",
	Long: `Run CMA-ES on one of the built-in benchmark functions, e.g.

  cmaesopt run rosenbrock_5d --sigma 0.5 --seed 42
  cmaesopt run ackley_2d --bounded --start 10,10 --sigma 5 --db runs.sqlite`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Int64Var(&runSeed, "seed", 42, "Random seed (0 = time-based)")
	runCmd.Flags().IntVar(&runLambda, "lambda", 0, "Population size (0 = default)")
	runCmd.Flags().Float64Var(&runSigma, "sigma", 0.3, "Initial step size")
	runCmd.Flags().IntVar(&runMaxIter, "max-iter", 0, "Generation cap (0 = default)")
	runCmd.Flags().IntVar(&runMaxEvals, "max-evals", 0, "Evaluation cap (0 = default)")
	runCmd.Flags().Float64Var(&runTolFun, "tol-fun", 1e-12, "Fitness spread tolerance")
	runCmd.Flags().StringVar(&runStart, "start", "", "Comma-separated start point (default: center of bounds)")
	runCmd.Flags().BoolVar(&runBounded, "bounded", false, "Enforce the function's box bounds by resampling")
	runCmd.Flags().IntVar(&runParallel, "parallel", 0, "Concurrent objective evaluations (0 = serial)")
	runCmd.Flags().IntVar(&runDiag, "diag", cmaes.DiagStdout, "Diagnostics level (bit 0 stdout, bit 1 files)")
	runCmd.Flags().StringVar(&runDiagPrefix, "diag-prefix", "cmaes", "Path prefix for diagnostic files")
	runCmd.Flags().StringVar(&runDBPath, "db", "", "Record per-generation rows into this sqlite file")
}

func runRun(cmd *cobra.Command, args []string) error {
	fn, err := bench.Lookup(args[0])
	if err != nil {
		return err
	}

	x0 := bench.Center(fn)
	if runStart != "" {
		x0, err = parsePoint(runStart)
		if err != nil {
			return err
		}
	}

	opts, db, err := solverOptions(fn)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	s, err := cmaes.New(cmaes.Func(fn.Eval), x0, opts...)
	if err != nil {
		return err
	}
	return drive(s, fn)
}

func solverOptions(fn bench.Func) ([]cmaes.Option, *sql.DB, error) {
	opts := []cmaes.Option{
		cmaes.Seed(runSeed),
		cmaes.Sigma(runSigma),
		cmaes.TolFun(runTolFun),
		cmaes.Diagnostics(runDiag),
		cmaes.DiagPrefix(runDiagPrefix),
	}
	if runLambda > 0 {
		opts = append(opts, cmaes.Lambda(runLambda))
	}
	if runMaxIter > 0 {
		opts = append(opts, cmaes.MaxIter(runMaxIter))
	}
	if runMaxEvals > 0 {
		opts = append(opts, cmaes.MaxFunEvals(runMaxEvals))
	}
	if runBounded {
		low, up := fn.Bounds()
		opts = append(opts, cmaes.Bounds(low, up))
	}
	if runParallel > 0 {
		opts = append(opts, cmaes.WithEvaler(cmaes.ParallelEvaler{NConcurrent: runParallel}))
	}

	var db *sql.DB
	if runDBPath != "" {
		var err error
		db, err = sql.Open("sqlite", runDBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening %v: %w", runDBPath, err)
		}
		opts = append(opts, cmaes.DB(db))
	}
	return opts, db, nil
}

// drive runs the solver to termination, honoring Ctrl-C via UserAbort.
func drive(s *cmaes.Solver, fn bench.Func) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runID := uuid.NewString()
	slog.Info("starting optimization", "run", runID, "function", fn.Name(), "seed", s.Seed())

	best, reason, err := s.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("finished", "run", runID, "reason", reason.String(),
		"generations", s.Gen(), "evaluations", s.Neval(), "fbest", best.Val)
	fmt.Printf("fbest = %v\n", best.Val)
	fmt.Printf("xbest = %v\n", best.Pos())
	if opt := fn.Optima(); len(opt) > 0 {
		fmt.Printf("known optimum = %v at %v\n", opt[0].Val, opt[0].Pos())
	}
	return nil
}

func parsePoint(s string) ([]float64, error) {
	fields := strings.Split(s, ",")
	x := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("bad start point %q: %w", s, err)
		}
		x[i] = v
	}
	return x, nil
}
