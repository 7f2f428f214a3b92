package cmaes

import (
	"errors"
	"math"
	"testing"
)

func TestDeriveStrategyDefaults(t *testing.T) {
	cfg := defaultConfig()
	st := deriveStrategy(10, &cfg)

	if st.lambda != 10 { // 4 + floor(3*ln(10))
		t.Errorf("lambda: expected 10, got %v", st.lambda)
	}
	if st.mu != 5 {
		t.Errorf("mu: expected 5, got %v", st.mu)
	}

	sum := 0.0
	for _, w := range st.weights {
		if w <= 0 {
			t.Errorf("non-positive weight %v", w)
		}
		sum += w
	}
	if math.Abs(sum-1) > 1e-12 {
		t.Errorf("weights sum: expected 1 +- 1e-12, got %v", sum)
	}
	for i := 1; i < len(st.weights); i++ {
		if st.weights[i] >= st.weights[i-1] {
			t.Errorf("weights not strictly decreasing at %v: %v >= %v", i, st.weights[i], st.weights[i-1])
		}
	}

	if st.mueff < 1 || st.mueff > float64(st.mu) {
		t.Errorf("mueff %v outside [1, mu]", st.mueff)
	}
	for name, v := range map[string]float64{
		"csigma": st.csigma, "dsigma": st.dsigma, "cc": st.cc, "c1": st.c1, "cmu": st.cmu,
	} {
		if v <= 0 || v > 2 {
			t.Errorf("%v = %v outside sane range", name, v)
		}
	}
	if st.c1+st.cmu > 1 {
		t.Errorf("c1+cmu = %v > 1 would make the C update lose mass", st.c1+st.cmu)
	}

	// chiN approximates E|N(0,I)| = sqrt(n) for large n.
	if st.chiN <= 0 || st.chiN >= math.Sqrt(10) {
		t.Errorf("chiN = %v implausible for n=10", st.chiN)
	}

	if st.histLen != 10+int(math.Ceil(30.0*10/10)) {
		t.Errorf("histLen: expected 40, got %v", st.histLen)
	}
}

func TestDeriveStrategyCornerMu1(t *testing.T) {
	cfg := defaultConfig()
	cfg.lambda = 2
	st := deriveStrategy(2, &cfg)

	if st.mu != 1 {
		t.Fatalf("mu: expected 1, got %v", st.mu)
	}
	if len(st.weights) != 1 || math.Abs(st.weights[0]-1) > 1e-12 {
		t.Errorf("corner weights: expected [1], got %v", st.weights)
	}
	if st.mueff != 1 {
		t.Errorf("mueff: expected 1, got %v", st.mueff)
	}
	for name, v := range map[string]float64{
		"csigma": st.csigma, "dsigma": st.dsigma, "cc": st.cc, "c1": st.c1,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%v is not finite: %v", name, v)
		}
	}
	if st.cmu < 0 {
		t.Errorf("cmu: expected >= 0, got %v", st.cmu)
	}
}

func TestValidate(t *testing.T) {
	sphere := Func(func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] })

	tests := []struct {
		name string
		x0   []float64
		opts []Option
		want error
	}{
		{"dim too small", []float64{1}, nil, ErrBadConfig},
		{"lambda one", []float64{1, 1}, []Option{Lambda(1)}, ErrBadConfig},
		{"zero sigma", []float64{1, 1}, []Option{Sigma(0)}, ErrBadConfig},
		{"negative sigma", []float64{1, 1}, []Option{Sigma(-0.5)}, ErrBadConfig},
		{"negative seed", []float64{1, 1}, []Option{Seed(-3)}, ErrBadConfig},
		{"bad eigen fraction", []float64{1, 1}, []Option{MaxEigenFraction(1.5)}, ErrBadConfig},
		{"bad diag level", []float64{1, 1}, []Option{Diagnostics(9)}, ErrBadConfig},
		{"inverted bounds", []float64{1, 1}, []Option{Bounds([]float64{2, 2}, []float64{-2, -2})}, ErrBadConfig},
		{"bounds length", []float64{1, 1}, []Option{Bounds([]float64{-2}, []float64{2})}, ErrBadConfig},
		{"infeasible start", []float64{5, 5}, []Option{Bounds([]float64{-2, -2}, []float64{2, 2})}, ErrInfeasibleStart},
	}

	for _, test := range tests {
		_, err := New(sphere, test.x0, test.opts...)
		if err == nil {
			t.Errorf("%v: expected error, got none", test.name)
		} else if !errors.Is(err, test.want) {
			t.Errorf("%v: expected %v, got %v", test.name, test.want, err)
		}
	}

	if _, err := New(sphere, []float64{1, 1}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}
