package solver

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Default termination parameters of the projected-gradient method
const (
	DefaultTol     float64 = 1e-20
	DefaultMaxIter int     = 500
)

// ProjectedGradient minimises a smooth objective over a convex Set by
// projected gradient descent with a backtracking line search. The
// method is warm-started from the caller's initial point.
type ProjectedGradient struct {
	Tol     float64
	MaxIter int
}

// NewProjectedGradient returns a projected-gradient minimiser with the
// given termination tolerance and iteration cap. Non-positive
// arguments select the defaults.
func NewProjectedGradient(tol float64, maxIter int) *ProjectedGradient {
	if tol <= 0 {
		tol = DefaultTol
	}
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	return &ProjectedGradient{Tol: tol, MaxIter: maxIter}
}

// Minimize returns an approximate minimiser of the problem over the
// set, starting from x0. Iteration stops when the step between
// consecutive projected iterates falls below the tolerance or the
// iteration cap is reached.
func (pg *ProjectedGradient) Minimize(p Problem, set Set,
	x0 []float64) ([]float64, error) {
	if p.Func == nil || p.Grad == nil {
		return nil, fmt.Errorf("minimize: problem must supply both " +
			"objective and gradient")
	}
	if len(x0) != set.Dim() {
		return nil, fmt.Errorf("minimize: expected initial point of "+
			"dimension %v, got %v", set.Dim(), len(x0))
	}

	x := make([]float64, len(x0))
	copy(x, x0)
	set.Project(x)

	grad := make([]float64, len(x))
	next := make([]float64, len(x))
	diff := make([]float64, len(x))

	for iter := 0; iter < pg.MaxIter; iter++ {
		p.Grad(grad, x)
		fx := p.Func(x)

		// Backtracking line search on the projected step: accept the
		// trial point when it satisfies the sufficient-decrease
		// condition of the proximal-gradient method.
		stepSize := 1.0
		accepted := false
		for trial := 0; trial < 40; trial++ {
			copy(next, x)
			floats.AddScaled(next, -stepSize, grad)
			set.Project(next)

			floats.SubTo(diff, next, x)
			quad := floats.Dot(grad, diff) +
				floats.Dot(diff, diff)/(2*stepSize)
			fNext := p.Func(next)
			if !math.IsNaN(fNext) && fNext <= fx+quad {
				accepted = true
				break
			}
			stepSize /= 2
		}
		if !accepted {
			// The line search stalled; x is as good as it gets.
			return x, nil
		}

		moved := floats.Norm(diff, math.Inf(1))
		copy(x, next)
		if moved <= pg.Tol {
			break
		}
	}
	return x, nil
}
