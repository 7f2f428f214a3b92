package cmaes

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Solver drives one CMA-ES run.  It owns the distribution state, the random
// source, and the offspring population; none of them are shared or
// internally synchronized.  Construct with New, then either step with Next
// or drive to termination with Run.
type Solver struct {
	cfg   config
	strat strategy
	st    *state
	mon   *monitor
	obj   Objectiver

	reason  Reason
	err     error
	started bool
}

// New validates the configuration and prepares a run starting from x0.
// The problem dimension is len(x0), which must be at least 2.
func New(obj Objectiver, x0 []float64, opts ...Option) (*Solver, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := validate(x0, &cfg); err != nil {
		return nil, err
	}

	seed := cfg.seed
	if seed == 0 {
		seed = time.Now().UnixNano() & math.MaxInt32
	}

	s := &Solver{
		cfg:   cfg,
		strat: deriveStrategy(len(x0), &cfg),
		st:    newState(x0, cfg.sigma, seed),
		obj:   obj,
	}
	s.mon = newMonitor(s.strat.histLen)
	s.st.updateEigen()

	if cfg.diag&DiagFiles != 0 {
		s.cfg.recorders = append(s.cfg.recorders, newTextRecorder(cfg.diagPrefix))
	}
	if cfg.db != nil {
		s.cfg.recorders = append(s.cfg.recorders, NewDBRecorder(cfg.db, fmt.Sprintf("seed%v", seed)))
	}

	if cfg.resume != "" {
		snap, err := ReadSnapshot(cfg.resume)
		if err != nil {
			return nil, err
		}
		if err := s.restore(snap); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Next runs a single generation: sample, bounds-filter, evaluate, adapt,
// check termination.  It returns false once the run is over, either because
// a stopping criterion fired (see Reason) or because evaluation failed (see
// Err).
func (s *Solver) Next() bool {
	if s.reason != 0 || s.err != nil {
		return false
	}
	if !s.started {
		s.started = true
		if s.cfg.diag&DiagStdout != 0 {
			s.banner(s.cfg.out)
		}
	}

	st := s.st
	if st.eigenDue(s.strat.eigenGap, s.cfg.eigenFrac) {
		st.updateEigen()
	}

	pop := st.sample(s.strat.lambda, s.cfg.low, s.cfg.up)

	points := make([]Point, len(pop))
	for i := range pop {
		points[i] = NewPoint(pop[i].x, math.Inf(1))
	}
	start := time.Now()
	results, n, err := s.cfg.ev.Eval(s.obj, points...)
	st.evalCost += time.Since(start)
	st.neval += n
	if err != nil {
		s.err = fmt.Errorf("cmaes: objective evaluation failed: %w", err)
		s.finish()
		return false
	}
	curLo, curHi := math.Inf(1), math.Inf(-1)
	for i := range results {
		pop[i].f = results[i].Val
		curLo = math.Min(curLo, pop[i].f)
		curHi = math.Max(curHi, pop[i].f)
	}

	order := rank(pop)
	st.observeBest(pop, order)
	s.mon.push(pop[order[0]].f)
	st.adapt(s.strat, pop, order)

	for _, rec := range s.cfg.recorders {
		if err := rec.Record(s); err != nil {
			s.err = fmt.Errorf("cmaes: diagnostics recording failed: %w", err)
			s.finish()
			return false
		}
	}

	s.reason = s.mon.check(st, s.strat, curLo, curHi)
	if s.reason != 0 {
		s.finish()
		return false
	}
	return true
}

func (s *Solver) finish() {
	for _, rec := range s.cfg.recorders {
		if err := rec.Close(s, s.reason); err != nil && s.err == nil {
			s.err = fmt.Errorf("cmaes: diagnostics close failed: %w", err)
		}
	}
	s.cfg.recorders = nil
	if s.cfg.diag&DiagStdout != 0 {
		s.report(s.cfg.out)
	}
}

// Run drives the generation loop until a stopping criterion fires or ctx is
// cancelled.  Cancellation is polled between generations and reported as
// the StopUserAbort reason.  On objective failure the returned error is
// non-nil and the best point is not meaningful.
func (s *Solver) Run(ctx context.Context) (best Point, r Reason, err error) {
	for s.Next() {
		select {
		case <-ctx.Done():
			s.reason |= StopUserAbort
			s.finish()
			return s.Best(), s.reason, s.err
		default:
		}
	}
	return s.Best(), s.reason, s.err
}

// Best returns the best-ever point observed so far.
func (s *Solver) Best() Point { return s.st.best }

// Reason returns the bitset of stopping criteria that ended the run, or 0
// while it is still running.
func (s *Solver) Reason() Reason { return s.reason }

// Err returns the fatal run error, if any.
func (s *Solver) Err() error { return s.err }

// Gen returns the number of completed generations.
func (s *Solver) Gen() int { return s.st.gen }

// Neval returns the number of objective evaluations consumed.
func (s *Solver) Neval() int { return s.st.neval }

// Sigma returns the current global step size.
func (s *Solver) Sigma() float64 { return s.st.sigma }

// Mean returns a copy of the current distribution mean.
func (s *Solver) Mean() []float64 {
	return append([]float64{}, s.st.mean...)
}

// Seed returns the seed actually in use, which differs from the configured
// one only when time-based seeding was requested.
func (s *Solver) Seed() int64 { return s.st.rng.Seed() }
