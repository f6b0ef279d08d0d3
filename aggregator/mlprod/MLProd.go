// Package mlprod implements the multiplicative forecaster with
// multiple learning rates (ML-Prod).
//
// ML-Prod tracks a log-domain cumulative regret per expert and weights
// experts proportionally to its exponential. When the learning rate of
// an expert changes, its accumulated regret is rescaled by the ratio of
// the new rate to the old one before the current regret is folded in.
package mlprod

import (
	"fmt"
	"math"

	"github.com/tpaquier/opera/aggregator"
	"github.com/tpaquier/opera/loss"
	"gonum.org/v1/gonum/mat"
)

// learning rates are capped at 1/epsilon
const epsilon float64 = 1e-30

// MLProd implements the ML-Prod aggregation update.
type MLProd struct {
	k             int
	loss          loss.Loss
	gradientTrick bool

	w *mat.VecDense

	learningRates []float64
	cumVars       []float64
	maxLosses     []float64
	cumRegrets    []float64
}

// New returns a new MLProd aggregation rule over k experts starting
// from the given weight vector.
func New(k int, initialWeights []float64, l loss.Loss,
	gradientTrick bool) (*MLProd, error) {
	if k < 1 {
		return nil, fmt.Errorf("mlprod: expert count must be positive, "+
			"got %v", k)
	}
	if len(initialWeights) != k {
		return nil, fmt.Errorf("mlprod: expected %v initial weights, "+
			"got %v", k, len(initialWeights))
	}
	if gradientTrick && l.Grad == nil {
		return nil, fmt.Errorf("mlprod: %w", loss.ErrMissingGradient)
	}

	m := &MLProd{
		k:             k,
		loss:          l,
		gradientTrick: gradientTrick,
		w:             mat.NewVecDense(k, nil),
		learningRates: make([]float64, k),
		cumVars:       make([]float64, k),
		maxLosses:     make([]float64, k),
		cumRegrets:    make([]float64, k),
	}
	for i := 0; i < k; i++ {
		m.w.SetVec(i, initialWeights[i])
		m.learningRates[i] = aggregator.AccumulatorFloor
		m.cumVars[i] = aggregator.AccumulatorFloor
		m.maxLosses[i] = aggregator.AccumulatorFloor
	}
	return m, nil
}

// computeWeights refreshes the weight vector from the accumulators.
func (m *MLProd) computeWeights(awake *mat.VecDense) {
	sum := 0.0
	for i := 0; i < m.k; i++ {
		wi := m.learningRates[i] * math.Exp(m.cumRegrets[i])
		m.w.SetVec(i, wi)
		sum += wi
	}
	m.w.ScaleVec(1/sum, m.w)

	if awake == nil {
		return
	}
	maskedSum := 0.0
	for i := 0; i < m.k; i++ {
		m.w.SetVec(i, m.w.AtVec(i)*awake.AtVec(i))
		maskedSum += m.w.AtVec(i)
	}
	m.w.ScaleVec(1/maskedSum, m.w)
}

// Step advances the rule by one observation.
func (m *MLProd) Step(x *mat.VecDense, y float64, awake *mat.VecDense) (
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

	logK := math.Log(float64(m.k))
	for i := 0; i < m.k; i++ {
		ri := r.AtVec(i)
		m.cumVars[i] += ri * ri
		m.maxLosses[i] = math.Max(m.maxLosses[i], math.Abs(ri))

		eta := math.Min(0.5/m.maxLosses[i],
			math.Sqrt(logK/m.cumVars[i]))
		eta = math.Min(eta, 1/epsilon)
		eta = math.Max(eta, aggregator.AccumulatorFloor)

		m.cumRegrets[i] = eta/m.learningRates[i]*m.cumRegrets[i] +
			math.Log(1+eta*ri)
		m.learningRates[i] = eta
	}

	return yHat, used, nil
}

// RecomputeWeights refreshes the weight vector from the accumulators
// over all experts, ignoring any activation mask.
func (m *MLProd) RecomputeWeights() {
	m.computeWeights(nil)
}

// Weights returns a copy of the current weight vector.
func (m *MLProd) Weights() *mat.VecDense {
	return mat.VecDenseCopyOf(m.w)
}

// K returns the number of experts.
func (m *MLProd) K() int {
	return m.k
}
