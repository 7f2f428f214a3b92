// Package bench provides benchmark objective functions for exercising the
// CMA-ES engine, drawn from
// http://en.wikipedia.org/wiki/Test_functions_for_optimization and
// http://www.sfu.ca/~ssurjano/optimization.html.
package bench

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nsurkov/cmaes"
)

var (
	sin  = math.Sin
	cos  = math.Cos
	abs  = math.Abs
	exp  = math.Exp
	sqrt = math.Sqrt
)

type Func interface {
	Eval(v []float64) float64
	Bounds() (low, up []float64)
	Optima() []cmaes.Point
	Name() string
}

var AllFuncs = []Func{
	Sphere{NDim: 2},
	Sphere{NDim: 10},
	Cigtab{NDim: 4},
	Rosenbrock{NDim: 2},
	Rosenbrock{NDim: 5},
	Rosenbrock{NDim: 10},
	Ackley{NDim: 2},
	Ackley{NDim: 10},
	DropWave{},
	Easom{},
	Schwefel{NDim: 2},
	Eggholder{},
	Styblinski{NDim: 2},
	Styblinski{NDim: 10},
}

// Lookup finds a function from AllFuncs by its case-insensitive name, e.g.
// "rosenbrock_5d".
func Lookup(name string) (Func, error) {
	for _, fn := range AllFuncs {
		if strings.EqualFold(fn.Name(), name) {
			return fn, nil
		}
	}
	names := make([]string, len(AllFuncs))
	for i, fn := range AllFuncs {
		names[i] = fn.Name()
	}
	sort.Strings(names)
	return nil, fmt.Errorf("bench: unknown function %q (have %v)", name, strings.Join(names, ", "))
}

func boxBounds(ndim int, lim float64) (low, up []float64) {
	low = make([]float64, ndim)
	up = make([]float64, ndim)
	for i := range low {
		low[i] = -lim
		up[i] = lim
	}
	return low, up
}

func uniformPoint(ndim int, x, val float64) []cmaes.Point {
	pos := make([]float64, ndim)
	for i := range pos {
		pos[i] = x
	}
	return []cmaes.Point{cmaes.NewPoint(pos, val)}
}

type Sphere struct {
	NDim int
}

func (fn Sphere) Name() string { return fmt.Sprintf("Sphere_%vD", fn.NDim) }

func (fn Sphere) Eval(x []float64) float64 {
	tot := 0.0
	for _, v := range x {
		tot += v * v
	}
	return tot
}

func (fn Sphere) Bounds() (low, up []float64) { return boxBounds(fn.NDim, 100) }

func (fn Sphere) Optima() []cmaes.Point { return uniformPoint(fn.NDim, 0, 0) }

// Cigtab is cigar-shaped with one heavy and one light axis, from Hansen's
// cma-es example code.
type Cigtab struct {
	NDim int
}

func (fn Cigtab) Name() string { return fmt.Sprintf("Cigtab_%vD", fn.NDim) }

func (fn Cigtab) Eval(x []float64) float64 {
	f := 1e4*x[0]*x[0] + 1e-4*x[1]*x[1]
	for _, v := range x {
		f += v * v
	}
	return f
}

func (fn Cigtab) Bounds() (low, up []float64) { return boxBounds(fn.NDim, 1000) }

func (fn Cigtab) Optima() []cmaes.Point { return uniformPoint(fn.NDim, 0, 0) }

type Rosenbrock struct {
	NDim int
}

func (fn Rosenbrock) Name() string { return fmt.Sprintf("Rosenbrock_%vD", fn.NDim) }

func (fn Rosenbrock) Eval(x []float64) float64 {
	tot := 0.0
	for i := 0; i < fn.NDim-1; i++ {
		tot += 100*math.Pow(x[i+1]-x[i]*x[i], 2) + math.Pow(x[i]-1, 2)
	}
	return tot
}

func (fn Rosenbrock) Bounds() (low, up []float64) { return boxBounds(fn.NDim, 1000) }

func (fn Rosenbrock) Optima() []cmaes.Point { return uniformPoint(fn.NDim, 1, 0) }

// Ackley in its general n-dimensional form with a=20, b=0.2, c=2*pi.
type Ackley struct {
	NDim int
}

func (fn Ackley) Name() string { return fmt.Sprintf("Ackley_%vD", fn.NDim) }

func (fn Ackley) Eval(x []float64) float64 {
	const a, b = 20, 0.2
	c := 2 * math.Pi
	sumsq, sumcos := 0.0, 0.0
	for _, v := range x {
		sumsq += v * v
		sumcos += cos(c * v)
	}
	n := float64(len(x))
	return -a*exp(-b*sqrt(sumsq/n)) - exp(sumcos/n) + a + math.E
}

func (fn Ackley) Bounds() (low, up []float64) { return boxBounds(fn.NDim, 32.768) }

func (fn Ackley) Optima() []cmaes.Point { return uniformPoint(fn.NDim, 0, 0) }

// DropWave is a heavily multi-modal 2D function with a single deep well at
// the origin.
type DropWave struct{}

func (fn DropWave) Name() string { return "DropWave" }

func (fn DropWave) Eval(v []float64) float64 {
	dot := v[0]*v[0] + v[1]*v[1]
	return -(1 + cos(12*sqrt(dot))) / (0.5*dot + 2)
}

func (fn DropWave) Bounds() (low, up []float64) { return boxBounds(2, 5.12) }

func (fn DropWave) Optima() []cmaes.Point { return uniformPoint(2, 0, -1) }

// Easom is flat almost everywhere with a narrow well at (pi, pi).
type Easom struct{}

func (fn Easom) Name() string { return "Easom" }

func (fn Easom) Eval(v []float64) float64 {
	x, y := v[0], v[1]
	return -cos(x) * cos(y) * exp(-(x-math.Pi)*(x-math.Pi)-(y-math.Pi)*(y-math.Pi))
}

func (fn Easom) Bounds() (low, up []float64) { return boxBounds(2, 100) }

func (fn Easom) Optima() []cmaes.Point { return uniformPoint(2, math.Pi, -1) }

type Schwefel struct {
	NDim int
}

func (fn Schwefel) Name() string { return fmt.Sprintf("Schwefel_%vD", fn.NDim) }

func (fn Schwefel) Eval(x []float64) float64 {
	f := 418.9829 * float64(fn.NDim)
	for _, v := range x {
		f -= v * sin(sqrt(abs(v)))
	}
	return f
}

func (fn Schwefel) Bounds() (low, up []float64) { return boxBounds(fn.NDim, 500) }

func (fn Schwefel) Optima() []cmaes.Point { return uniformPoint(fn.NDim, 420.9687, 0) }

type Eggholder struct{}

func (fn Eggholder) Name() string { return "Eggholder" }

func (fn Eggholder) Eval(v []float64) float64 {
	x := v[0]
	y := v[1]
	return -(y+47)*sin(sqrt(abs(y+x/2+47))) - x*sin(sqrt(abs(x-(y+47))))
}

func (fn Eggholder) Bounds() (low, up []float64) { return boxBounds(2, 512) }

func (fn Eggholder) Optima() []cmaes.Point {
	return []cmaes.Point{
		cmaes.NewPoint([]float64{512, 404.2319}, -959.6407),
	}
}

type Styblinski struct {
	NDim int
}

func (fn Styblinski) Name() string { return fmt.Sprintf("Styblinski_%vD", fn.NDim) }

func (fn Styblinski) Eval(x []float64) float64 {
	tot := 0.0
	for _, v := range x {
		tot += math.Pow(v, 4) - 16*math.Pow(v, 2) + 5*v
	}
	return tot / 2
}

func (fn Styblinski) Bounds() (low, up []float64) { return boxBounds(fn.NDim, 5) }

func (fn Styblinski) Optima() []cmaes.Point {
	return uniformPoint(fn.NDim, -2.903534, -39.16599*float64(fn.NDim))
}

// Center returns the midpoint of fn's bounds, a neutral starting point.
func Center(fn Func) []float64 {
	low, up := fn.Bounds()
	pos := make([]float64, len(low))
	for i := range pos {
		pos[i] = (low[i] + up[i]) / 2
	}
	return pos
}

// Solve runs the engine on fn from x0 until termination and reports the
// best point found, the stopping reasons, and the evaluation count.
func Solve(fn Func, x0 []float64, opts ...cmaes.Option) (best cmaes.Point, r cmaes.Reason, neval int, err error) {
	s, err := cmaes.New(cmaes.Func(fn.Eval), x0, opts...)
	if err != nil {
		return cmaes.Point{}, 0, 0, err
	}
	for s.Next() {
	}
	return s.Best(), s.Reason(), s.Neval(), s.Err()
}
