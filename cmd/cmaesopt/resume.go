package main

import (
	"github.com/spf13/cobra"

	"github.com/nsurkov/cmaes"
	"github.com/nsurkov/cmaes/bench"
)

var resumeSnapshot string

var resumeCmd = &cobra.Command{
	Use:   "resume <function>",
	Short: "Continue a run from a snapshot",
	Long: `Resume continues an interrupted optimization from a snapshot written
at diagnostics bit 1 (the <prefix>-resume.dat file).  The function and its
configuration must match the run that wrote the snapshot; the continued
trajectory is then identical to an uninterrupted run.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().StringVar(&resumeSnapshot, "snapshot", "cmaes-resume.dat", "Snapshot file to resume from")
	resumeCmd.Flags().Int64Var(&runSeed, "seed", 42, "Random seed of the original run")
	resumeCmd.Flags().IntVar(&runLambda, "lambda", 0, "Population size (0 = default)")
	resumeCmd.Flags().Float64Var(&runSigma, "sigma", 0.3, "Initial step size of the original run")
	resumeCmd.Flags().IntVar(&runMaxIter, "max-iter", 0, "Generation cap (0 = default)")
	resumeCmd.Flags().IntVar(&runMaxEvals, "max-evals", 0, "Evaluation cap (0 = default)")
	resumeCmd.Flags().Float64Var(&runTolFun, "tol-fun", 1e-12, "Fitness spread tolerance")
	resumeCmd.Flags().BoolVar(&runBounded, "bounded", false, "Enforce the function's box bounds by resampling")
	resumeCmd.Flags().IntVar(&runDiag, "diag", cmaes.DiagStdout, "Diagnostics level (bit 0 stdout, bit 1 files)")
	resumeCmd.Flags().StringVar(&runDiagPrefix, "diag-prefix", "cmaes", "Path prefix for diagnostic files")
	resumeCmd.Flags().StringVar(&runDBPath, "db", "", "Record per-generation rows into this sqlite file")
}

func runResume(cmd *cobra.Command, args []string) error {
	fn, err := bench.Lookup(args[0])
	if err != nil {
		return err
	}

	opts, db, err := solverOptions(fn)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	opts = append(opts, cmaes.ResumeFrom(resumeSnapshot))

	// x0 only sizes the problem here; the snapshot replaces the state.
	s, err := cmaes.New(cmaes.Func(fn.Eval), bench.Center(fn), opts...)
	if err != nil {
		return err
	}
	return drive(s, fn)
}
