package cmaes

import (
	"crypto/sha1"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"
)

type Objectiver interface {
	// Objective evaluates the variables in v and returns the objective
	// function value.  The objective function must be framed so that lower
	// values are better.  A non-nil error aborts the run; the state
	// accumulated so far is not considered to hold a meaningful best.
	Objective(v []float64) (float64, error)
}

// Func adapts a plain function to the Objectiver interface.
type Func func([]float64) float64

func (f Func) Objective(v []float64) (float64, error) { return f(v), nil }

type Evaler interface {
	// Eval evaluates each point using obj and returns the evaluated points
	// and the number of objective invocations n.  Unevaluated points must
	// not be returned in the results slice.
	Eval(obj Objectiver, points ...Point) (results []Point, n int, err error)
}

// SerialEvaler evaluates points one at a time in order.  It stops at the
// first objective error.
type SerialEvaler struct{}

func (ev SerialEvaler) Eval(obj Objectiver, points ...Point) (results []Point, n int, err error) {
	results = make([]Point, 0, len(points))
	for _, p := range points {
		p.Val, err = obj.Objective(p.Pos())
		n++
		if err != nil {
			return results, n, err
		}
		results = append(results, p)
	}
	return results, n, nil
}

// ParallelEvaler evaluates all points of a generation concurrently.  The
// objective must be safe for concurrent calls.  Because CMA-ES only consumes
// the finished (point, value) pairs after a full generation, concurrent
// evaluation does not change the optimization trajectory.
type ParallelEvaler struct {
	// NConcurrent bounds the number of in-flight evaluations.  Zero means
	// one goroutine per point.
	NConcurrent int
}

func (ev ParallelEvaler) Eval(obj Objectiver, points ...Point) (results []Point, n int, err error) {
	results = make([]Point, len(points))
	var g errgroup.Group
	if ev.NConcurrent > 0 {
		g.SetLimit(ev.NConcurrent)
	}
	for i := range points {
		i := i
		g.Go(func() error {
			val, err := obj.Objective(points[i].Pos())
			results[i] = NewPoint(points[i].Pos(), val)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, len(points), err
	}
	return results, len(points), nil
}

// CacheEvaler wraps another Evaler and reuses previously computed objective
// values for positions it has seen before.  Useful when bounds resampling or
// flat regions revisit identical positions.
type CacheEvaler struct {
	ev    Evaler
	cache map[[sha1.Size]byte]float64
}

func NewCacheEvaler(ev Evaler) *CacheEvaler {
	return &CacheEvaler{
		ev:    ev,
		cache: map[[sha1.Size]byte]float64{},
	}
}

func (ev *CacheEvaler) Eval(obj Objectiver, points ...Point) (results []Point, n int, err error) {
	results = make([]Point, 0, len(points))
	newp := make([]Point, 0, len(points))
	fromnew := make([]int, 0, len(points))
	for i, p := range points {
		if val, ok := ev.cache[hashPoint(p)]; ok {
			p.Val = val
			results = append(results, p)
		} else {
			fromnew = append(fromnew, i)
			newp = append(newp, p)
			results = append(results, p)
		}
	}

	newresults, n, err := ev.ev.Eval(obj, newp...)
	for i, p := range newresults {
		ev.cache[hashPoint(p)] = p.Val
		results[fromnew[i]].Val = p.Val
	}
	if err != nil {
		// Drop the entries whose evaluations never finished.
		unfinished := map[int]bool{}
		for _, src := range fromnew[len(newresults):] {
			unfinished[src] = true
		}
		done := results[:0]
		for i, p := range results {
			if !unfinished[i] {
				done = append(done, p)
			}
		}
		return done, n, err
	}
	return results, n, nil
}

// ObjectivePrinter wraps an Objectiver and writes every evaluated position
// and value to w.  Handy for eyeballing small runs.
type ObjectivePrinter struct {
	Objectiver
	Count int
	w     io.Writer
}

func NewObjectivePrinter(obj Objectiver, w io.Writer) *ObjectivePrinter {
	return &ObjectivePrinter{Objectiver: obj, w: w}
}

func (op *ObjectivePrinter) Objective(v []float64) (float64, error) {
	val, err := op.Objectiver.Objective(v)

	op.Count++
	fmt.Fprint(op.w, op.Count, " ")
	for _, x := range v {
		fmt.Fprint(op.w, x, " ")
	}
	fmt.Fprintln(op.w, "    ", val)

	return val, err
}
