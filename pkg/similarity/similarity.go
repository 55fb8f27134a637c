// Package similarity scores how closely each system vertex resembles each vertex of a
// pattern template, using an iterative topological similarity measure.
package similarity

import (
	"errors"
	"fmt"
	"math"

	"github.com/ritzau/pattern-detector/pkg/graph"
	"github.com/ritzau/pattern-detector/pkg/logging"
	"gonum.org/v1/gonum/mat"
)

// ErrNonConvergent is returned when the scores have not settled within the iteration
// bound
var ErrNonConvergent = errors.New("similarity did not converge")

const (
	DefaultTolerance     = 0.001
	DefaultMaxIterations = 10000
)

// Options tunes the convergence loop
type Options struct {
	Tolerance     float64 // Max per-cell difference between two even iterations
	MaxIterations int
}

// DefaultOptions returns the stock tolerance and iteration bound
func DefaultOptions() Options {
	return Options{Tolerance: DefaultTolerance, MaxIterations: DefaultMaxIterations}
}

// Algorithm computes similarity matrices between a system graph and a pattern graph
type Algorithm struct {
	opts Options
}

// New creates an algorithm; zero or negative option values fall back to the defaults
func New(opts Options) *Algorithm {
	if opts.Tolerance <= 0 {
		opts.Tolerance = DefaultTolerance
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Algorithm{opts: opts}
}

// Options returns the effective options
func (a *Algorithm) Options() Options {
	return a.opts
}

// Perform returns a |pattern| x |system| matrix where cell (i, j) scores system vertex
// j against template vertex i. It returns nil without error when either graph has no
// vertices or no current adjacency matrix.
func (a *Algorithm) Perform(system, pattern graph.Reader) (*mat.Dense, error) {
	if system == nil || pattern == nil {
		return nil, nil
	}
	if system.Len() == 0 || pattern.Len() == 0 || !system.HasMatrix() || !pattern.HasMatrix() {
		return nil, nil
	}

	var s *mat.Dense
	if pattern.Pattern().UsesReplicaAdjacency() {
		s = system.ReplicaAdjacency()
	} else {
		s = system.Adjacency()
	}
	p := pattern.Adjacency()
	if s == nil || p == nil {
		return nil, nil
	}

	rows, cols := pattern.Len(), system.Len()
	if isZero(s) || isZero(p) {
		return mat.NewDense(rows, cols, nil), nil
	}

	result := ones(rows, cols)
	snapshot := mat.NewDense(rows, cols, nil)

	for iteration := 1; iteration <= a.opts.MaxIterations; iteration++ {
		next := step(p, s, result)

		norm := mat.Norm(next, 1)
		if norm == 0 {
			return mat.NewDense(rows, cols, nil), nil
		}
		next.Scale(1/norm, next)
		result = next

		if iteration%2 != 0 {
			continue
		}
		if within(result, snapshot, a.opts.Tolerance) {
			logging.Trace("Similarity converged", "pattern", pattern.Pattern(), "iterations", iteration)
			return result, nil
		}
		snapshot = mat.DenseCopyOf(result)
	}

	return nil, fmt.Errorf("%s after %d iterations: %w", pattern.Pattern(), a.opts.MaxIterations, ErrNonConvergent)
}

// step computes P·X·Sᵗ + Pᵗ·X·S
func step(p, s, x *mat.Dense) *mat.Dense {
	var px, forward mat.Dense
	px.Mul(p, x)
	forward.Mul(&px, s.T())

	var ptx, backward mat.Dense
	ptx.Mul(p.T(), x)
	backward.Mul(&ptx, s)

	var next mat.Dense
	next.Add(&forward, &backward)
	return &next
}

func ones(rows, cols int) *mat.Dense {
	data := make([]float64, rows*cols)
	for i := range data {
		data[i] = 1
	}
	return mat.NewDense(rows, cols, data)
}

func isZero(m mat.Matrix) bool {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.At(i, j) != 0 {
				return false
			}
		}
	}
	return true
}

func within(a, b *mat.Dense, tolerance float64) bool {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) > tolerance {
				return false
			}
		}
	}
	return true
}
