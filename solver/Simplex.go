package solver

import (
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Simplex is the canonical probability simplex
// {x : x >= 0, sum(x) = 1} with an exact Euclidean projection.
type Simplex struct {
	n int
}

// NewSimplex returns the probability simplex of the given dimension.
func NewSimplex(n int) *Simplex {
	return &Simplex{n: n}
}

// Dim returns the dimension of the ambient space.
func (s *Simplex) Dim() int {
	return s.n
}

// Project overwrites x with its Euclidean projection onto the simplex
// using the sort-and-threshold algorithm.
func (s *Simplex) Project(x []float64) {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))

	cumSum := 0.0
	tau := 0.0
	for j, u := range sorted {
		cumSum += u
		t := (cumSum - 1) / float64(j+1)
		if u-t > 0 {
			tau = t
		}
	}

	for i := range x {
		if x[i]-tau > 0 {
			x[i] -= tau
		} else {
			x[i] = 0
		}
	}
}

// Specs returns the equality/inequality description of the simplex,
// matching the default constraint set of the regularised-leader
// configuration: one equality sum(x) = 1 and n inequalities x >= 0.
func (s *Simplex) Specs() []Constraint {
	n := s.n
	return []Constraint{
		{
			Type: Equality,
			Fun: func(x []float64) []float64 {
				return []float64{floats.Sum(x) - 1}
			},
			Jac: func(x []float64) *mat.Dense {
				ones := make([]float64, n)
				for i := range ones {
					ones[i] = 1
				}
				return mat.NewDense(1, n, ones)
			},
		},
		{
			Type: Inequality,
			Fun: func(x []float64) []float64 {
				out := make([]float64, n)
				copy(out, x)
				return out
			},
			Jac: func(x []float64) *mat.Dense {
				eye := mat.NewDense(n, n, nil)
				for i := 0; i < n; i++ {
					eye.Set(i, i, 1)
				}
				return eye
			},
		},
	}
}
