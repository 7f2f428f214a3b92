package cmaes

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

const errcount = 3

type ErrObj struct {
	count int
}

func (o *ErrObj) Objective(x []float64) (float64, error) {
	o.count++
	if o.count >= errcount {
		return math.Inf(1), errors.New("fake error")
	}
	return 0, nil
}

func TestSerialEvalerErr(t *testing.T) {
	obj := &ErrObj{}
	ev := SerialEvaler{}

	results, n, err := ev.Eval(obj, Point{}, Point{}, Point{}, Point{}, Point{})
	if len(results) != errcount-1 {
		t.Errorf("returned wrong number of results: expected %v, got %v", errcount-1, len(results))
	}
	if n != errcount {
		t.Errorf("returned wrong evaluation count: expected %v, got %v", errcount, n)
	}
	if err == nil {
		t.Errorf("did not propagate error through return")
	}
}

type countObj struct {
	count int
}

func (o *countObj) Objective(x []float64) (float64, error) {
	o.count++
	tot := 0.0
	for _, v := range x {
		tot += v * v
	}
	return tot, nil
}

func TestCacheEvaler(t *testing.T) {
	obj := &countObj{}
	ev := NewCacheEvaler(SerialEvaler{})

	p1 := NewPoint([]float64{1, 2}, math.Inf(1))
	p2 := NewPoint([]float64{3, 4}, math.Inf(1))

	results, _, err := ev.Eval(obj, p1, p2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.count != 2 {
		t.Errorf("expected 2 objective calls, got %v", obj.count)
	}

	results, _, err = ev.Eval(obj, p1, p2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if obj.count != 2 {
		t.Errorf("cache miss on repeated points: %v objective calls", obj.count)
	}
	if results[0].Val != 5 || results[1].Val != 25 {
		t.Errorf("wrong cached values: got %v and %v", results[0].Val, results[1].Val)
	}
}

func TestParallelEvalerMatchesSerial(t *testing.T) {
	obj := Func(func(x []float64) float64 {
		tot := 0.0
		for _, v := range x {
			tot += v * v
		}
		return tot
	})

	points := []Point{
		NewPoint([]float64{1, 1}, math.Inf(1)),
		NewPoint([]float64{2, 2}, math.Inf(1)),
		NewPoint([]float64{3, 3}, math.Inf(1)),
		NewPoint([]float64{4, 4}, math.Inf(1)),
	}

	serial, sn, err := SerialEvaler{}.Eval(obj, points...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	par, pn, err := ParallelEvaler{NConcurrent: 2}.Eval(obj, points...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sn != pn {
		t.Errorf("evaluation counts differ: %v != %v", sn, pn)
	}
	for i := range serial {
		if serial[i].Val != par[i].Val {
			t.Errorf("value %v differs: serial %v, parallel %v", i, serial[i].Val, par[i].Val)
		}
	}
}

func TestObjectivePrinter(t *testing.T) {
	var buf bytes.Buffer
	obj := NewObjectivePrinter(Func(func(x []float64) float64 { return 7 }), &buf)

	val, err := obj.Objective([]float64{1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 7 {
		t.Errorf("expected 7, got %v", val)
	}
	if obj.Count != 1 {
		t.Errorf("expected count 1, got %v", obj.Count)
	}
	if buf.Len() == 0 {
		t.Errorf("printer wrote nothing")
	}
}
