package cmaes

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// rank returns the offspring indices sorted ascending by fitness.
func rank(pop []offspring) []int {
	order := make([]int, len(pop))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return pop[order[a]].f < pop[order[b]].f
	})
	return order
}

// adapt performs one CMA-ES distribution update from the ranked offspring:
// mean, sigma evolution path, step size, covariance evolution path, and
// covariance matrix, in that order, then advances the generation counter.
func (s *state) adapt(p strategy, pop []offspring, order []int) {
	n := s.n

	// mu-weighted recombination of the selected steps.
	yw := make([]float64, n)
	zw := make([]float64, n)
	for k := 0; k < p.mu; k++ {
		o := &pop[order[k]]
		w := p.weights[k]
		for i := 0; i < n; i++ {
			yw[i] += w * o.y[i]
			zw[i] += w * o.z[i]
		}
	}

	// m <- m + sigma*<y>_w
	for i := 0; i < n; i++ {
		s.mean[i] += s.sigma * yw[i]
	}

	// p_sigma <- (1-cs)*p_sigma + sqrt(cs*(2-cs)*mueff) * B*<z>_w
	bz := mat.NewVecDense(n, nil)
	bz.MulVec(s.b, mat.NewVecDense(n, zw))
	csn := math.Sqrt(p.csigma * (2 - p.csigma) * p.mueff)
	for i := 0; i < n; i++ {
		s.psigma[i] = (1-p.csigma)*s.psigma[i] + csn*bz.AtVec(i)
	}
	psNorm := floats.Norm(s.psigma, 2)

	// sigma <- sigma * exp((cs/ds) * (|p_sigma|/chiN - 1))
	s.sigma *= math.Exp((p.csigma / p.dsigma) * (psNorm/p.chiN - 1))

	// Heaviside damping of the rank-one update while the sigma path is
	// unusually long.
	unbias := math.Sqrt(1 - math.Pow(1-p.csigma, float64(2*(s.gen+1))))
	hsigma := 0.0
	if psNorm/unbias < (1.4+2/float64(n+1))*p.chiN {
		hsigma = 1
	}

	// p_c <- (1-cc)*p_c + hsigma*sqrt(cc*(2-cc)*mueff)*<y>_w
	ccn := math.Sqrt(p.cc * (2 - p.cc) * p.mueff)
	for i := 0; i < n; i++ {
		s.pc[i] = (1-p.cc)*s.pc[i] + hsigma*ccn*yw[i]
	}

	// C <- (1-c1-cmu)*C + c1*(p_c*p_c' + (1-hsigma)*cc*(2-cc)*C)
	//                   + cmu*sum_k w_k*y_k*y_k'
	decay := 1 - p.c1 - p.cmu + (1-hsigma)*p.c1*p.cc*(2-p.cc)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := decay*s.cov.At(i, j) + p.c1*s.pc[i]*s.pc[j]
			for k := 0; k < p.mu; k++ {
				o := &pop[order[k]]
				v += p.cmu * p.weights[k] * o.y[i] * o.y[j]
			}
			cov.SetSym(i, j, v)
		}
	}
	// The triangular representation keeps C symmetric by construction, so
	// no explicit (C+C')/2 pass is needed to kill drift.
	s.cov = cov

	s.gen++
}

// observeBest records the generation's best offspring into the best-ever
// slot if it improves on it.
func (s *state) observeBest(pop []offspring, order []int) {
	top := &pop[order[0]]
	if top.f < s.best.Val {
		s.best = NewPoint(top.x, top.f)
	}
}
