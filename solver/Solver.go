// Package solver implements constrained minimisation of smooth convex
// objectives over closed convex sets, as needed by regularised-leader
// weight updates.
//
// The package separates the objective (a Problem), the feasible region
// (a Set) and the minimisation method (ProjectedGradient). The
// canonical probability simplex gets an exact projection; arbitrary
// equality/inequality specifications are handled through cyclic
// projections onto their linearisations.
package solver

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Problem describes a smooth objective together with its gradient.
type Problem struct {
	// Func evaluates the objective at x.
	Func func(x []float64) float64

	// Grad stores the gradient of the objective at x into dst.
	Grad func(dst, x []float64)
}

// Type discriminates equality from inequality constraints.
type Type string

// Available constraint types
const (
	Equality   Type = "eq"   // fun(x) = 0
	Inequality Type = "ineq" // fun(x) >= 0
)

// Constraint is a vector-valued equality or inequality specification.
// Jac returns the Jacobian of Fun at x, one row per component of the
// returned value; when nil it is approximated by forward differences.
type Constraint struct {
	Type Type
	Fun  func(x []float64) []float64
	Jac  func(x []float64) *mat.Dense
}

// Set is a closed convex feasible region.
type Set interface {
	// Project overwrites x with (an approximation of) its Euclidean
	// projection onto the set.
	Project(x []float64)

	// Dim returns the dimension of the set's ambient space.
	Dim() int
}

// specSet realises a Set from generic constraint specifications by
// cyclically projecting onto the linearisation of each violated
// component until all constraints hold within a small slack.
type specSet struct {
	dim         int
	constraints []Constraint
}

// FromSpecs builds a Set of the given ambient dimension from equality
// and inequality specifications.
func FromSpecs(dim int, constraints []Constraint) (Set, error) {
	if dim < 1 {
		return nil, fmt.Errorf("fromspecs: dimension must be positive, "+
			"got %v", dim)
	}
	for i, c := range constraints {
		if c.Type != Equality && c.Type != Inequality {
			return nil, fmt.Errorf("fromspecs: constraint %v has "+
				"unknown type %q", i, c.Type)
		}
		if c.Fun == nil {
			return nil, fmt.Errorf("fromspecs: constraint %v has no "+
				"function", i)
		}
	}
	return &specSet{dim: dim, constraints: constraints}, nil
}

func (s *specSet) Dim() int {
	return s.dim
}

func (s *specSet) Project(x []float64) {
	const (
		passes = 100
		slack  = 1e-10
	)

	row := make([]float64, s.dim)
	for pass := 0; pass < passes; pass++ {
		feasible := true
		for _, c := range s.constraints {
			values := c.Fun(x)
			jac := s.jacobian(c, x, len(values))

			for i, v := range values {
				violated := (c.Type == Equality && (v > slack || v < -slack)) ||
					(c.Type == Inequality && v < -slack)
				if !violated {
					continue
				}
				feasible = false

				mat.Row(row, i, jac)
				norm := floats.Dot(row, row)
				if norm == 0 {
					continue
				}
				// Newton step onto the hyperplane {z : v + J·(z-x) = 0}
				floats.AddScaled(x, -v/norm, row)
			}
		}
		if feasible {
			return
		}
	}
}

// jacobian returns the Jacobian of a constraint at x, computing it by
// forward differences when the specification carries none.
func (s *specSet) jacobian(c Constraint, x []float64, rows int) *mat.Dense {
	if c.Jac != nil {
		return c.Jac(x)
	}

	const h = 1e-8
	jac := mat.NewDense(rows, s.dim, nil)
	base := c.Fun(x)
	shifted := make([]float64, s.dim)
	copy(shifted, x)
	for j := 0; j < s.dim; j++ {
		shifted[j] += h
		values := c.Fun(shifted)
		shifted[j] = x[j]
		for i := 0; i < rows; i++ {
			jac.Set(i, j, (values[i]-base[i])/h)
		}
	}
	return jac
}
