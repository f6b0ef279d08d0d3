// Package ftrl implements the follow-the-regularised-leader rule.
//
// FTRL keeps the cumulative linearised gradient of the loss and, at
// each step, sets its weights to the minimiser of the regulariser plus
// the scaled linear regret term over a constraint set. The default
// configuration regularises with the KL divergence to the uniform
// anchor and constrains the weights to the probability simplex.
package ftrl

import (
	"errors"
	"fmt"
	"math"

	"github.com/tpaquier/opera/aggregator"
	"github.com/tpaquier/opera/loss"
	"github.com/tpaquier/opera/solver"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// ErrGradientRequired is returned when FTRL is constructed without a
// usable loss gradient.
var ErrGradientRequired = errors.New(
	"ftrl requires the loss gradient")

// Config collects the optional parameters of the rule. The zero value
// selects the KL-to-uniform regulariser, the probability simplex and
// the default solver termination settings.
type Config struct {
	// FunReg is the regulariser. When nil the KL divergence to the
	// uniform anchor is used.
	FunReg func(x []float64) float64

	// FunRegGrad stores the gradient of FunReg at x into dst. It must
	// be set whenever FunReg is.
	FunRegGrad func(dst, x []float64)

	// Constraints describes the feasible region. When nil the
	// canonical probability simplex is used, with its exact
	// projection.
	Constraints []solver.Constraint

	// Tol is the solver termination tolerance; non-positive selects
	// the solver default.
	Tol float64

	// MaxIter caps the solver iterations; non-positive selects the
	// solver default.
	MaxIter int
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.FunReg != nil && c.FunRegGrad == nil {
		return fmt.Errorf("validate: custom regulariser needs its " +
			"gradient")
	}
	return nil
}

// FTRL implements the follow-the-regularised-leader update.
type FTRL struct {
	k    int
	loss loss.Loss

	w  *mat.VecDense
	g  []float64 // cumulative gradient surrogate
	gt []float64 // per-step gradient, reused across steps

	eta    float64
	etaSet bool // explicit flag instead of an infinite sentinel

	w0         []float64 // regulariser anchor
	funReg     func(x []float64) float64
	funRegGrad func(dst, x []float64)

	set solver.Set
	pg  *solver.ProjectedGradient
}

// New returns a new FTRL aggregation rule over k experts. The initial
// weight vector is the minimiser of the regulariser over the
// constraint set, computed from initialWeights as a warm start. The
// loss must carry a gradient; conf may be nil for the defaults.
func New(k int, initialWeights []float64, l loss.Loss,
	conf *Config) (*FTRL, error) {
	if k < 1 {
		return nil, fmt.Errorf("ftrl: expert count must be positive, "+
			"got %v", k)
	}
	if len(initialWeights) != k {
		return nil, fmt.Errorf("ftrl: expected %v initial weights, "+
			"got %v", k, len(initialWeights))
	}
	if l.Grad == nil {
		return nil, fmt.Errorf("ftrl: %w", ErrGradientRequired)
	}
	if conf == nil {
		conf = &Config{}
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("ftrl: %v", err)
	}

	f := &FTRL{
		k:    k,
		loss: l,
		w:    mat.NewVecDense(k, nil),
		g:    make([]float64, k),
		gt:   make([]float64, k),
		w0:   make([]float64, k),
		pg:   solver.NewProjectedGradient(conf.Tol, conf.MaxIter),
	}
	for i := 0; i < k; i++ {
		f.w0[i] = 1 / float64(k)
	}

	if conf.FunReg != nil {
		f.funReg = conf.FunReg
		f.funRegGrad = conf.FunRegGrad
	} else {
		f.funReg = f.klToAnchor
		f.funRegGrad = f.klToAnchorGrad
	}

	if conf.Constraints != nil {
		set, err := solver.FromSpecs(k, conf.Constraints)
		if err != nil {
			return nil, fmt.Errorf("ftrl: %v", err)
		}
		f.set = set
	} else {
		f.set = solver.NewSimplex(k)
	}

	// The starting weights minimise the bare regulariser.
	initial, err := f.pg.Minimize(solver.Problem{
		Func: f.funReg,
		Grad: f.funRegGrad,
	}, f.set, initialWeights)
	if err != nil {
		return nil, fmt.Errorf("ftrl: %v", err)
	}
	for i := 0; i < k; i++ {
		f.w.SetVec(i, initial[i])
	}
	return f, nil
}

// klToAnchor is the default regulariser, the KL divergence of x to the
// anchor distribution. Components are floored away from zero so the
// logarithms stay finite on the boundary of the simplex.
func (f *FTRL) klToAnchor(x []float64) float64 {
	sum := 0.0
	for i, xi := range x {
		xi = math.Max(xi, aggregator.AccumulatorFloor)
		sum += xi * math.Log(xi/f.w0[i])
	}
	return sum
}

func (f *FTRL) klToAnchorGrad(dst, x []float64) {
	for i, xi := range x {
		xi = math.Max(xi, aggregator.AccumulatorFloor)
		dst[i] = math.Log(xi/f.w0[i]) + 1
	}
}

// Step advances the rule by one observation.
func (f *FTRL) Step(x *mat.VecDense, y float64, awake *mat.VecDense) (
	float64, *mat.VecDense, error) {
	if x.Len() != f.k || awake.Len() != f.k {
		return 0, nil, fmt.Errorf("step: expected %v experts, got %v",
			f.k, x.Len())
	}
	if !aggregator.AnyActive(awake) {
		return mat.Dot(f.w, x), mat.VecDenseCopyOf(f.w), nil
	}

	// Prediction uses the weights renormalised over active experts.
	used := mat.VecDenseCopyOf(f.w)
	maskedSum := 0.0
	for i := 0; i < f.k; i++ {
		used.SetVec(i, used.AtVec(i)*awake.AtVec(i))
		maskedSum += used.AtVec(i)
	}
	if maskedSum == 0 {
		active := 0.0
		for i := 0; i < f.k; i++ {
			active += awake.AtVec(i)
		}
		for i := 0; i < f.k; i++ {
			used.SetVec(i, awake.AtVec(i)/active)
		}
	} else {
		used.ScaleVec(1/maskedSum, used)
	}

	yHat := mat.Dot(used, x)

	// Linearised per-expert gradient; sleeping experts contribute
	// nothing to the accumulator.
	grad := f.loss.Grad(yHat, y)
	for i := 0; i < f.k; i++ {
		f.gt[i] = grad * x.AtVec(i) * awake.AtVec(i)
	}
	floats.Add(f.g, f.gt)

	normSq := floats.Dot(f.gt, f.gt)
	if !f.etaSet {
		if normSq > 0 {
			f.eta = 1 / math.Sqrt(normSq)
			f.etaSet = true
		}
	} else {
		f.eta = 1 / math.Sqrt(1/(f.eta*f.eta)+normSq)
	}

	// Minimise  reg(z) + eta * <G, z>  warm-started at the current
	// weights. Until the first gradient signal arrives the linear
	// term is dropped.
	eta := f.eta
	if !f.etaSet {
		eta = 0
	}
	problem := solver.Problem{
		Func: func(z []float64) float64 {
			return f.funReg(z) + eta*floats.Dot(f.g, z)
		},
		Grad: func(dst, z []float64) {
			f.funRegGrad(dst, z)
			floats.AddScaled(dst, eta, f.g)
		},
	}

	next, err := f.pg.Minimize(problem, f.set, vecData(f.w))
	if err != nil {
		return 0, nil, fmt.Errorf("step: %v", err)
	}
	for i := 0; i < f.k; i++ {
		f.w.SetVec(i, next[i])
	}

	return yHat, used, nil
}

// RecomputeWeights is a no-op: the weight vector already holds the
// post-solve minimiser after every step.
func (f *FTRL) RecomputeWeights() {}

// Weights returns a copy of the current weight vector.
func (f *FTRL) Weights() *mat.VecDense {
	return mat.VecDenseCopyOf(f.w)
}

// K returns the number of experts.
func (f *FTRL) K() int {
	return f.k
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
