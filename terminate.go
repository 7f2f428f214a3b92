package cmaes

import (
	"math"
	"strings"
)

// Reason is a bitset of triggered stopping criteria.  A run ends as soon as
// any bit is set; several criteria can fire in the same generation.
type Reason uint16

const (
	// StopMaxIter: the generation cap was reached.
	StopMaxIter Reason = 1 << iota
	// StopMaxFunEvals: the objective evaluation budget was exhausted.
	StopMaxFunEvals
	// StopTolFun: best fitnesses over the history window and fitnesses
	// within the current generation both span less than the tolerance.
	StopTolFun
	// StopTolX: steps in all coordinates became negligible relative to the
	// initial step size.
	StopTolX
	// StopConditionCov: the condition number of C exceeded 1e14, or the
	// eigendecomposition degenerated.
	StopConditionCov
	// StopNoEffectAxis: adding a 0.1-sigma step along a principal axis no
	// longer changes the mean.
	StopNoEffectAxis
	// StopNoEffectCoord: adding a 0.2-sigma step in some coordinate no
	// longer changes the mean.
	StopNoEffectCoord
	// StopEqualFunValues: the best fitness was bit-identical over the
	// whole history window.
	StopEqualFunValues
	// StopUserAbort: the run context was cancelled between generations.
	StopUserAbort
)

const maxCondition = 1e14

var reasonNames = []struct {
	r    Reason
	name string
}{
	{StopMaxIter, "MaxIter"},
	{StopMaxFunEvals, "MaxFunEvals"},
	{StopTolFun, "TolFun"},
	{StopTolX, "TolX"},
	{StopConditionCov, "ConditionCov"},
	{StopNoEffectAxis, "NoEffectAxis"},
	{StopNoEffectCoord, "NoEffectCoord"},
	{StopEqualFunValues, "EqualFunValues"},
	{StopUserAbort, "UserAbort"},
}

func (r Reason) String() string {
	if r == 0 {
		return "none"
	}
	var parts []string
	for _, rn := range reasonNames {
		if r&rn.r != 0 {
			parts = append(parts, rn.name)
		}
	}
	return strings.Join(parts, "|")
}

// monitor tracks the best-of-generation fitness history and evaluates the
// stopping criteria after each generation.
type monitor struct {
	hist  []float64 // ring buffer of best-of-generation fitness
	next  int
	count int
}

func newMonitor(histLen int) *monitor {
	return &monitor{hist: make([]float64, histLen)}
}

func (m *monitor) push(best float64) {
	m.hist[m.next] = best
	m.next = (m.next + 1) % len(m.hist)
	if m.count < len(m.hist) {
		m.count++
	}
}

func (m *monitor) full() bool { return m.count == len(m.hist) }

func (m *monitor) histRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range m.hist[:m.count] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

func (m *monitor) histEqual() bool {
	for _, v := range m.hist[1:m.count] {
		if v != m.hist[0] {
			return false
		}
	}
	return true
}

// check evaluates all stopping criteria against the state after a completed
// generation.  curLo and curHi are the fitness extremes within that
// generation.
func (m *monitor) check(s *state, p strategy, curLo, curHi float64) Reason {
	var r Reason

	if s.gen >= p.maxIter {
		r |= StopMaxIter
	}
	if s.neval >= p.maxFunEval {
		r |= StopMaxFunEvals
	}

	if m.full() {
		lo, hi := m.histRange()
		if hi-lo < p.tolFun && curHi-curLo < p.tolFun {
			r |= StopTolFun
		}
		if m.histEqual() {
			r |= StopEqualFunValues
		}
	}

	// TolX: both the evolution path and the marginal deviations shrank
	// below a fraction of the initial sigma in every coordinate.
	tolx := p.tolX * s.sigma0
	stalled := true
	for i := 0; i < s.n; i++ {
		if s.sigma*math.Abs(s.pc[i]) >= tolx || s.sigma*math.Sqrt(s.cov.At(i, i)) >= tolx {
			stalled = false
			break
		}
	}
	if stalled {
		r |= StopTolX
	}

	if s.degenerate || s.condition() > maxCondition {
		r |= StopConditionCov
	}

	// NoEffectAxis, cycling one principal axis per generation.
	axis := s.gen % s.n
	fac := 0.1 * s.sigma * s.d[axis]
	moved := false
	for j := 0; j < s.n; j++ {
		if s.mean[j] != s.mean[j]+fac*s.b.At(j, axis) {
			moved = true
			break
		}
	}
	if !moved {
		r |= StopNoEffectAxis
	}

	for i := 0; i < s.n; i++ {
		if s.mean[i] == s.mean[i]+0.2*s.sigma*math.Sqrt(s.cov.At(i, i)) {
			r |= StopNoEffectCoord
			break
		}
	}

	return r
}
