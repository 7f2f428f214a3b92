package cmaes

import (
	"testing"
)

func testStrategy(n int) strategy {
	cfg := defaultConfig()
	return deriveStrategy(n, &cfg)
}

// quietState builds a healthy state that triggers no criterion on its own:
// identity covariance, unit sigma, mean away from the coordinate scale where
// additions cancel.
func quietState(n int) *state {
	s := newState(make([]float64, n), 1.0, 1)
	for i := range s.mean {
		s.mean[i] = 1
	}
	return s
}

func TestReasonString(t *testing.T) {
	cases := []struct {
		r    Reason
		want string
	}{
		{0, "none"},
		{StopMaxIter, "MaxIter"},
		{StopTolFun | StopNoEffectAxis, "TolFun|NoEffectAxis"},
		{StopMaxIter | StopUserAbort, "MaxIter|UserAbort"},
	}
	for _, c := range cases {
		if got := c.r.String(); got != c.want {
			t.Errorf("Reason(%d): expected %q, got %q", c.r, c.want, got)
		}
	}
}

func TestMonitorRing(t *testing.T) {
	m := newMonitor(3)
	if m.full() {
		t.Fatal("empty monitor reported full")
	}
	m.push(5)
	m.push(3)
	if m.full() {
		t.Fatal("monitor full after 2 of 3 pushes")
	}
	m.push(4)
	if !m.full() {
		t.Fatal("monitor not full after 3 pushes")
	}
	lo, hi := m.histRange()
	if lo != 3 || hi != 5 {
		t.Errorf("expected range [3,5], got [%v,%v]", lo, hi)
	}

	// Oldest entry (5) falls out of the window.
	m.push(3.5)
	lo, hi = m.histRange()
	if lo != 3 || hi != 4 {
		t.Errorf("after wrap: expected range [3,4], got [%v,%v]", lo, hi)
	}
	if m.histEqual() {
		t.Error("distinct history reported equal")
	}

	m.push(3)
	m.push(3)
	m.push(3)
	if !m.histEqual() {
		t.Error("constant history not reported equal")
	}
}

func TestCheckQuietStateNoReason(t *testing.T) {
	p := testStrategy(3)
	s := quietState(3)
	m := newMonitor(p.histLen)
	m.push(1.0) // not full, history criteria stay silent
	if r := m.check(s, p, 0.5, 1.5); r != 0 {
		t.Fatalf("healthy state triggered %v", r)
	}
}

func TestCheckBudgets(t *testing.T) {
	p := testStrategy(3)
	m := newMonitor(p.histLen)

	s := quietState(3)
	s.gen = p.maxIter
	if r := m.check(s, p, 0, 1); r&StopMaxIter == 0 {
		t.Errorf("expected StopMaxIter, got %v", r)
	}

	s = quietState(3)
	s.neval = p.maxFunEval
	if r := m.check(s, p, 0, 1); r&StopMaxFunEvals == 0 {
		t.Errorf("expected StopMaxFunEvals, got %v", r)
	}
}

func TestCheckTolFun(t *testing.T) {
	p := testStrategy(3)
	s := quietState(3)
	m := newMonitor(p.histLen)
	for i := 0; i < p.histLen; i++ {
		m.push(1 + float64(i)*1e-15)
	}
	r := m.check(s, p, 1, 1)
	if r&StopTolFun == 0 {
		t.Errorf("expected StopTolFun, got %v", r)
	}
	if r&StopEqualFunValues != 0 {
		t.Errorf("distinct history fired StopEqualFunValues: %v", r)
	}

	// A wide spread within the current generation blocks it.
	if r := m.check(s, p, 0, 1); r&StopTolFun != 0 {
		t.Errorf("StopTolFun fired despite wide generation spread: %v", r)
	}
}

func TestCheckEqualFunValues(t *testing.T) {
	p := testStrategy(3)
	s := quietState(3)
	m := newMonitor(p.histLen)
	for i := 0; i < p.histLen; i++ {
		m.push(2.5)
	}
	if r := m.check(s, p, 2.5, 2.5); r&StopEqualFunValues == 0 {
		t.Errorf("expected StopEqualFunValues, got %v", r)
	}
}

func TestCheckTolX(t *testing.T) {
	p := testStrategy(3)
	m := newMonitor(p.histLen)
	s := quietState(3)
	s.sigma = 1e-20 // sigma0 stays 1, so all steps shrink below tolX*sigma0
	if r := m.check(s, p, 0, 1); r&StopTolX == 0 {
		t.Errorf("expected StopTolX, got %v", r)
	}
}

func TestCheckConditionCov(t *testing.T) {
	p := testStrategy(3)
	m := newMonitor(p.histLen)

	s := quietState(3)
	s.d[0] = 1e8 // condition (1e8)^2 > 1e14
	if r := m.check(s, p, 0, 1); r&StopConditionCov == 0 {
		t.Errorf("expected StopConditionCov from condition number, got %v", r)
	}

	s = quietState(3)
	s.degenerate = true
	if r := m.check(s, p, 0, 1); r&StopConditionCov == 0 {
		t.Errorf("expected StopConditionCov from degenerate flag, got %v", r)
	}
}

func TestCheckNoEffect(t *testing.T) {
	p := testStrategy(3)
	m := newMonitor(p.histLen)

	// Mean so large that a 0.1-sigma axis step vanishes in rounding.
	s := quietState(3)
	for i := range s.mean {
		s.mean[i] = 1e18
	}
	r := m.check(s, p, 0, 1)
	if r&StopNoEffectAxis == 0 {
		t.Errorf("expected StopNoEffectAxis, got %v", r)
	}
	if r&StopNoEffectCoord == 0 {
		t.Errorf("expected StopNoEffectCoord, got %v", r)
	}

	// The axis test cycles one principal axis per generation; a single
	// vanished axis only fires on its own generation.
	s = quietState(3)
	s.mean[0] = 1e18
	s.d[0] = 1e-3
	s.gen = 1 // axis 1 is healthy
	if r := m.check(s, p, 0, 1); r&StopNoEffectAxis != 0 {
		t.Errorf("StopNoEffectAxis fired on a healthy axis: %v", r)
	}
}
