// Package cmaes implements the Covariance Matrix Adaptation Evolution
// Strategy for minimizing noisy, non-convex objective functions of
// moderately many continuous variables, optionally subject to box bounds.
//
// A Solver owns the full state of one optimization run: the sampling
// distribution N(m, sigma^2*C), its eigendecomposition, the evolution paths
// driving step-size and covariance adaptation, and the best point found so
// far.  Runs are deterministic for a fixed seed and can be snapshotted and
// resumed bit-exactly.
package cmaes

import (
	"crypto/sha1"
	"encoding/binary"
	"math"
)

// Point is a position in parameter space together with its objective value.
// Positions are copied on construction and on access so points can be passed
// around freely.
type Point struct {
	pos []float64
	Val float64
}

func NewPoint(pos []float64, val float64) Point {
	cpos := make([]float64, len(pos))
	copy(cpos, pos)
	return Point{pos: cpos, Val: val}
}

func (p Point) At(i int) float64 { return p.pos[i] }

func (p Point) Len() int { return len(p.pos) }

func (p Point) Pos() []float64 {
	pos := make([]float64, len(p.pos))
	copy(pos, p.pos)
	return pos
}

func badPoint(n int) Point {
	return NewPoint(make([]float64, n), math.Inf(1))
}

func hashPoint(p Point) [sha1.Size]byte {
	data := make([]byte, p.Len()*8)
	for i := 0; i < p.Len(); i++ {
		binary.BigEndian.PutUint64(data[i*8:], math.Float64bits(p.At(i)))
	}
	return sha1.Sum(data)
}
