package cmaes

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// Diagnostics levels are a 2-bit set: bit 0 prints a summary at start and
// stop, bit 1 persists a per-generation log plus resume and final dumps at
// termination.
const (
	DiagNone   = 0
	DiagStdout = 1 << 0
	DiagFiles  = 1 << 1
)

var (
	// ErrBadConfig tags all configuration validation failures reported by New.
	ErrBadConfig = errors.New("cmaes: invalid configuration")
	// ErrInfeasibleStart is returned by New when the initial point violates
	// the box bounds.
	ErrInfeasibleStart = errors.New("cmaes: initial point outside bounds")
)

type config struct {
	lambda     int
	sigma      float64
	seed       int64
	maxIter    int
	maxFunEval int
	tolFun     float64
	tolX       float64
	eigenFrac  float64
	low, up    []float64
	ev         Evaler
	db         *sql.DB
	diag       int
	diagPrefix string
	out        io.Writer
	recorders  []Recorder
	resume     string
}

func defaultConfig() config {
	return config{
		sigma:      0.3,
		seed:       1,
		tolFun:     1e-12,
		tolX:       1e-11,
		eigenFrac:  1.0,
		ev:         SerialEvaler{},
		diagPrefix: "cmaes",
		out:        os.Stdout,
	}
}

type Option func(*config)

// Lambda sets the number of offspring sampled per generation.  The default
// is 4+floor(3*ln(n)).
func Lambda(lambda int) Option {
	return func(c *config) { c.lambda = lambda }
}

// Sigma sets the initial global step size.  The default is 0.3; problems
// whose interesting region is not roughly the unit box should set this to
// about a third of the expected distance to the optimum.
func Sigma(sigma float64) Option {
	return func(c *config) { c.sigma = sigma }
}

// Seed sets the random seed.  Zero selects a time-based seed; any positive
// seed gives a reproducible run.
func Seed(seed int64) Option {
	return func(c *config) { c.seed = seed }
}

// MaxIter caps the number of generations.  Zero (the default) derives a cap
// from the function evaluation budget.
func MaxIter(n int) Option {
	return func(c *config) { c.maxIter = n }
}

// MaxFunEvals caps the number of objective evaluations.  Zero (the default)
// uses 900*(n+3)^2*sqrt(lambda).
func MaxFunEvals(n int) Option {
	return func(c *config) { c.maxFunEval = n }
}

// TolFun sets the fitness spread below which the run is considered
// converged (the TolFun stopping criterion).
func TolFun(tol float64) Option {
	return func(c *config) { c.tolFun = tol }
}

// TolX sets the step threshold, relative to the initial sigma, below which
// the run is considered stalled (the TolX stopping criterion).
func TolX(tol float64) Option {
	return func(c *config) { c.tolX = tol }
}

// MaxEigenFraction bounds the fraction of evaluation time that may be spent
// on covariance eigendecompositions, in (0,1].  Values below 1 let the
// decomposition lag behind C by a few generations on expensive objectives;
// the default of 1 refreshes eagerly, which keeps trajectories bit-identical
// across machines.
func MaxEigenFraction(frac float64) Option {
	return func(c *config) { c.eigenFrac = frac }
}

// Bounds sets componentwise box limits.  Offspring are resampled until they
// fall inside the box, so the objective is only ever called with feasible
// points.
func Bounds(low, up []float64) Option {
	return func(c *config) {
		c.low = append([]float64{}, low...)
		c.up = append([]float64{}, up...)
	}
}

// WithEvaler replaces the default SerialEvaler, e.g. with a ParallelEvaler
// for expensive objectives.
func WithEvaler(ev Evaler) Option {
	return func(c *config) { c.ev = ev }
}

// DB directs per-generation records into sqlite (or any database/sql
// backend); tables are created on first use.
func DB(db *sql.DB) Option {
	return func(c *config) { c.db = db }
}

// Diagnostics sets the 2-bit diagnostics level.
func Diagnostics(level int) Option {
	return func(c *config) { c.diag = level }
}

// DiagPrefix sets the path prefix for files written at diagnostics bit 1.
func DiagPrefix(prefix string) Option {
	return func(c *config) { c.diagPrefix = prefix }
}

// LogTo redirects the diagnostics summary away from stdout.
func LogTo(w io.Writer) Option {
	return func(c *config) { c.out = w }
}

// WithRecorder attaches an additional per-generation recorder.
func WithRecorder(r Recorder) Option {
	return func(c *config) { c.recorders = append(c.recorders, r) }
}

// ResumeFrom replaces the freshly initialized distribution state with the
// snapshot stored at path before the first generation runs.
func ResumeFrom(path string) Option {
	return func(c *config) { c.resume = path }
}

// strategy holds the derived CMA-ES strategy parameters.  All fields are
// fixed at New time; see Hansen's tutorial for the standard formulas.
type strategy struct {
	n       int
	lambda  int
	mu      int
	weights []float64
	mueff   float64
	csigma  float64
	dsigma  float64
	cc      float64
	c1      float64
	cmu     float64
	chiN    float64

	maxIter    int
	maxFunEval int
	tolFun     float64
	tolX       float64
	histLen    int
	// eigenGap is the largest number of generations the eigendecomposition
	// of C may lag behind before a refresh is forced.
	eigenGap float64
}

func deriveStrategy(n int, cfg *config) strategy {
	st := strategy{n: n}

	st.lambda = cfg.lambda
	if st.lambda == 0 {
		st.lambda = 4 + int(3*math.Log(float64(n)))
	}
	st.mu = st.lambda / 2

	st.weights = make([]float64, st.mu)
	sum := 0.0
	for i := range st.weights {
		st.weights[i] = math.Log(float64(st.mu)+0.5) - math.Log(float64(i+1))
		sum += st.weights[i]
	}
	sumsq := 0.0
	for i := range st.weights {
		st.weights[i] /= sum
		sumsq += st.weights[i] * st.weights[i]
	}
	st.mueff = 1 / sumsq

	fn := float64(n)
	st.csigma = (st.mueff + 2) / (fn + st.mueff + 5)
	st.dsigma = 1 + 2*math.Max(0, math.Sqrt((st.mueff-1)/(fn+1))-1) + st.csigma
	st.cc = (4 + st.mueff/fn) / (fn + 4 + 2*st.mueff/fn)
	st.c1 = 2 / ((fn+1.3)*(fn+1.3) + st.mueff)
	st.cmu = math.Min(1-st.c1, 2*(st.mueff-2+1/st.mueff)/((fn+2)*(fn+2)+st.mueff))
	st.chiN = math.Sqrt(fn) * (1 - 1/(4*fn) + 1/(21*fn*fn))

	st.maxFunEval = cfg.maxFunEval
	if st.maxFunEval == 0 {
		st.maxFunEval = int(900 * (fn + 3) * (fn + 3) * math.Sqrt(float64(st.lambda)))
	}
	st.maxIter = cfg.maxIter
	if st.maxIter == 0 {
		st.maxIter = (st.maxFunEval + st.lambda - 1) / st.lambda
	}
	st.tolFun = cfg.tolFun
	st.tolX = cfg.tolX
	st.histLen = 10 + int(math.Ceil(30*fn/float64(st.lambda)))
	st.eigenGap = 1 / (10 * fn * (st.c1 + st.cmu))
	return st
}

func validate(x0 []float64, cfg *config) error {
	n := len(x0)
	if n < 2 {
		return fmt.Errorf("%w: dimension %v < 2", ErrBadConfig, n)
	}
	if cfg.lambda < 0 || cfg.lambda == 1 {
		return fmt.Errorf("%w: lambda %v must be >= 2", ErrBadConfig, cfg.lambda)
	}
	if cfg.sigma <= 0 || math.IsNaN(cfg.sigma) || math.IsInf(cfg.sigma, 0) {
		return fmt.Errorf("%w: sigma %v must be positive and finite", ErrBadConfig, cfg.sigma)
	}
	if cfg.seed < 0 {
		return fmt.Errorf("%w: seed %v must be non-negative", ErrBadConfig, cfg.seed)
	}
	if cfg.maxIter < 0 || cfg.maxFunEval < 0 {
		return fmt.Errorf("%w: negative stopping budget", ErrBadConfig)
	}
	if cfg.tolFun < 0 || cfg.tolX < 0 {
		return fmt.Errorf("%w: negative tolerance", ErrBadConfig)
	}
	if cfg.eigenFrac <= 0 || cfg.eigenFrac > 1 {
		return fmt.Errorf("%w: maxEigenFraction %v outside (0,1]", ErrBadConfig, cfg.eigenFrac)
	}
	if cfg.diag < 0 || cfg.diag > DiagStdout|DiagFiles {
		return fmt.Errorf("%w: diagnostics level %v outside [0,3]", ErrBadConfig, cfg.diag)
	}
	if (cfg.low == nil) != (cfg.up == nil) {
		return fmt.Errorf("%w: only one of the bound vectors was given", ErrBadConfig)
	}
	if cfg.low != nil {
		if len(cfg.low) != n || len(cfg.up) != n {
			return fmt.Errorf("%w: bounds length %v/%v does not match dimension %v",
				ErrBadConfig, len(cfg.low), len(cfg.up), n)
		}
		for i := range cfg.low {
			if cfg.low[i] > cfg.up[i] {
				return fmt.Errorf("%w: lower bound %v above upper bound %v at index %v",
					ErrBadConfig, cfg.low[i], cfg.up[i], i)
			}
		}
		for i, x := range x0 {
			if x < cfg.low[i] || x > cfg.up[i] {
				return fmt.Errorf("%w: x0[%v] = %v not within [%v, %v]",
					ErrInfeasibleStart, i, x, cfg.low[i], cfg.up[i])
			}
		}
	}
	return nil
}
