package cmaes

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/nsurkov/cmaes/rng"
)

// eigenFloor is the relative floor applied to non-positive or vanishing
// eigenvalues of C.  Flooring never fails the run; it trips the degeneracy
// flag, which surfaces as the ConditionCov termination reason.
const eigenFloor = 1e-30

// state is the mutable distribution state of a run: everything that changes
// from one generation to the next.
type state struct {
	n      int
	mean   []float64
	sigma  float64
	sigma0 float64
	cov    *mat.SymDense
	b      *mat.Dense // orthonormal eigenbasis of cov, columns
	d      []float64  // sqrt eigenvalues, same column order as b
	psigma []float64
	pc     []float64
	gen    int
	neval  int
	best   Point
	rng    *rng.Rng

	lastEigenGen int
	eigenCost    time.Duration // duration of the most recent decomposition
	evalCost     time.Duration // evaluation time since that decomposition
	degenerate   bool
}

func newState(x0 []float64, sigma float64, seed int64) *state {
	n := len(x0)
	s := &state{
		n:      n,
		mean:   append([]float64{}, x0...),
		sigma:  sigma,
		sigma0: sigma,
		cov:    mat.NewSymDense(n, nil),
		b:      mat.NewDense(n, n, nil),
		d:      make([]float64, n),
		psigma: make([]float64, n),
		pc:     make([]float64, n),
		best:   badPoint(n),
		rng:    rng.New(seed),
	}
	for i := 0; i < n; i++ {
		s.cov.SetSym(i, i, 1)
		s.b.Set(i, i, 1)
		s.d[i] = 1
	}
	return s
}

// updateEigen refreshes (B, D) from C.  Tiny or negative eigenvalues are
// floored rather than failed; a failed factorization keeps the previous
// basis.  Either case marks the state degenerate.
func (s *state) updateEigen() {
	start := time.Now()
	defer func() {
		s.eigenCost = time.Since(start)
		s.evalCost = 0
		s.lastEigenGen = s.gen
	}()

	var es mat.EigenSym
	if ok := es.Factorize(s.cov, true); !ok {
		s.degenerate = true
		return
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	vmax := vals[len(vals)-1] // ascending order
	floor := eigenFloor
	if vmax > 0 {
		floor = vmax * eigenFloor
	}
	for i, v := range vals {
		if v < floor {
			v = floor
			s.degenerate = true
		}
		s.d[i] = math.Sqrt(v)
	}
	s.b.Copy(&vecs)
}

// eigenDue reports whether (B, D) should be recomputed before sampling.
// With frac == 1 the decomposition is refreshed every generation.  Below 1
// the refresh is delayed while decompositions would consume more than frac
// of the objective evaluation time, but never longer than the strategy's
// generation gap.
func (s *state) eigenDue(gap, frac float64) bool {
	if s.gen == s.lastEigenGen {
		return false
	}
	if float64(s.gen-s.lastEigenGen) >= gap {
		return true
	}
	if frac >= 1 {
		return true
	}
	return float64(s.eigenCost) <= frac*float64(s.evalCost)
}

// condition returns the condition number of C estimated from D.
func (s *state) condition() float64 {
	dmin, dmax := s.d[0], s.d[0]
	for _, v := range s.d[1:] {
		dmin = math.Min(dmin, v)
		dmax = math.Max(dmax, v)
	}
	if dmin == 0 {
		return math.Inf(1)
	}
	r := dmax / dmin
	return r * r
}

// offspring is one sampled candidate together with the normal draw it came
// from.  The z and y vectors always correspond to the x actually kept, also
// after bounds resampling, so the adapter never mixes pre-resample draws
// into the paths.
type offspring struct {
	z []float64 // standard normal draw
	y []float64 // B * (D .* z)
	x []float64 // mean + sigma*y
	f float64
}

// sampleOne redraws candidate o in place from the current distribution.
func (s *state) sampleOne(o *offspring) {
	dz := make([]float64, s.n)
	for i := 0; i < s.n; i++ {
		o.z[i] = s.rng.Gauss()
		dz[i] = s.d[i] * o.z[i]
	}
	yv := mat.NewVecDense(s.n, o.y)
	yv.MulVec(s.b, mat.NewVecDense(s.n, dz))
	for i := 0; i < s.n; i++ {
		o.x[i] = s.mean[i] + s.sigma*o.y[i]
	}
	o.f = math.Inf(1)
}

// sample draws lambda offspring from N(mean, sigma^2*C).  Candidates
// violating the box bounds are resampled until feasible; there is no
// rejection cap since divergent geometry is caught by the TolX and
// ConditionCov criteria.
func (s *state) sample(lambda int, low, up []float64) []offspring {
	pop := make([]offspring, lambda)
	for i := range pop {
		pop[i] = offspring{
			z: make([]float64, s.n),
			y: make([]float64, s.n),
			x: make([]float64, s.n),
		}
		s.sampleOne(&pop[i])
		if low != nil {
			for !feasible(pop[i].x, low, up) {
				s.sampleOne(&pop[i])
			}
		}
	}
	return pop
}

func feasible(x, low, up []float64) bool {
	for i := range x {
		if x[i] < low[i] || x[i] > up[i] {
			return false
		}
	}
	return true
}
