// Package mlpol implements the polynomially weighted average forecaster
// with multiple learning rates (ML-Poly).
//
// ML-Poly keeps the positive part of the cumulative regret per expert
// and weights experts proportionally to it, with per-expert learning
// rates driven by the running maximum of the squared regrets.
package mlpol

import (
	"fmt"
	"math"

	"github.com/tpaquier/opera/aggregator"
	"github.com/tpaquier/opera/loss"
	"gonum.org/v1/gonum/mat"
)

// MLPol implements the ML-Poly aggregation update.
type MLPol struct {
	k             int
	loss          loss.Loss
	gradientTrick bool

	w *mat.VecDense

	learningRates []float64
	cumRegrets    []float64
	maxSqRegrets  []float64
}

// New returns a new MLPol aggregation rule over k experts starting
// from the given weight vector.
func New(k int, initialWeights []float64, l loss.Loss,
	gradientTrick bool) (*MLPol, error) {
	if k < 1 {
		return nil, fmt.Errorf("mlpol: expert count must be positive, "+
			"got %v", k)
	}
	if len(initialWeights) != k {
		return nil, fmt.Errorf("mlpol: expected %v initial weights, got %v",
			k, len(initialWeights))
	}
	if gradientTrick && l.Grad == nil {
		return nil, fmt.Errorf("mlpol: %w", loss.ErrMissingGradient)
	}

	m := &MLPol{
		k:             k,
		loss:          l,
		gradientTrick: gradientTrick,
		w:             mat.NewVecDense(k, nil),
		learningRates: make([]float64, k),
		cumRegrets:    make([]float64, k),
		maxSqRegrets:  make([]float64, k),
	}
	for i := 0; i < k; i++ {
		m.w.SetVec(i, initialWeights[i])
		m.learningRates[i] = aggregator.AccumulatorFloor
	}
	return m, nil
}

// computeWeights refreshes the weight vector from the accumulators.
// Weights are proportional to the learning rate times the positive
// part of the cumulative regret; if every regret is non-positive the
// rule falls back to the uniform mixture.
func (m *MLPol) computeWeights(awake *mat.VecDense) {
	sum := 0.0
	for i := 0; i < m.k; i++ {
		wi := m.learningRates[i] * math.Max(m.cumRegrets[i], 0)
		m.w.SetVec(i, wi)
		sum += wi
	}
	if sum == 0 {
		uniform := 1 / float64(m.k)
		for i := 0; i < m.k; i++ {
			m.w.SetVec(i, uniform)
		}
	} else {
		m.w.ScaleVec(1/sum, m.w)
	}

	if awake == nil {
		return
	}
	maskedSum := 0.0
	for i := 0; i < m.k; i++ {
		m.w.SetVec(i, m.w.AtVec(i)*awake.AtVec(i))
		maskedSum += m.w.AtVec(i)
	}
	if maskedSum == 0 {
		// All mass sat on sleeping experts; spread it over the active
		// ones instead.
		active := 0.0
		for i := 0; i < m.k; i++ {
			active += awake.AtVec(i)
		}
		for i := 0; i < m.k; i++ {
			m.w.SetVec(i, awake.AtVec(i)/active)
		}
	} else {
		m.w.ScaleVec(1/maskedSum, m.w)
	}
}

// Step advances the rule by one observation.
func (m *MLPol) Step(x *mat.VecDense, y float64, awake *mat.VecDense) (
	float64, *mat.VecDense, error) {
	if x.Len() != m.k || awake.Len() != m.k {
		return 0, nil, fmt.Errorf("step: expected %v experts, got %v",
			m.k, x.Len())
	}
	if !aggregator.AnyActive(awake) {
		return mat.Dot(m.w, x), mat.VecDenseCopyOf(m.w), nil
	}

	m.computeWeights(awake)
	used := mat.VecDenseCopyOf(m.w)

	yHat, r := aggregator.Regret(m.loss, m.gradientTrick, m.w, x, y, awake)

	maxSq := 0.0
	for i := 0; i < m.k; i++ {
		ri := r.AtVec(i)
		m.cumRegrets[i] += ri
		if ri*ri > maxSq {
			maxSq = ri * ri
		}
	}

	// Only the excess of the current squared-regret maximum over the
	// running maximum contributes to the learning-rate update.
	for i := 0; i < m.k; i++ {
		ri := r.AtVec(i)
		excess := math.Max(maxSq-m.maxSqRegrets[i], 0)
		m.learningRates[i] = 1 /
			(1/m.learningRates[i] + ri*ri + excess)
		m.maxSqRegrets[i] += excess
	}

	return yHat, used, nil
}

// RecomputeWeights refreshes the weight vector from the accumulators
// over all experts, ignoring any activation mask.
func (m *MLPol) RecomputeWeights() {
	m.computeWeights(nil)
}

// Weights returns a copy of the current weight vector.
func (m *MLPol) Weights() *mat.VecDense {
	return mat.VecDenseCopyOf(m.w)
}

// K returns the number of experts.
func (m *MLPol) K() int {
	return m.k
}
