// Package boa implements the Bernstein Online Aggregation rule.
//
// BOA keeps a second-order (variance) accumulator per expert and uses
// it to tune per-expert learning rates. Weights are recovered from the
// regularised cumulative regrets through an exponential reweighting,
// computed with a log-sum-exp shift for numerical stability.
package boa

import (
	"fmt"
	"math"

	"github.com/tpaquier/opera/aggregator"
	"github.com/tpaquier/opera/loss"
	"github.com/tpaquier/opera/utils/floatutils"
	"gonum.org/v1/gonum/mat"
)

// BOA implements the Bernstein Online Aggregation update.
type BOA struct {
	k             int
	loss          loss.Loss
	gradientTrick bool

	w *mat.VecDense

	learningRates []float64
	cumVars       []float64
	maxLosses     []float64
	cumRegRegrets []float64
	cumRegrets    []float64
}

// New returns a new BOA aggregation rule over k experts starting from
// the given weight vector.
func New(k int, initialWeights []float64, l loss.Loss,
	gradientTrick bool) (*BOA, error) {
	if k < 1 {
		return nil, fmt.Errorf("boa: expert count must be positive, got %v",
			k)
	}
	if len(initialWeights) != k {
		return nil, fmt.Errorf("boa: expected %v initial weights, got %v",
			k, len(initialWeights))
	}
	if gradientTrick && l.Grad == nil {
		return nil, fmt.Errorf("boa: %w", loss.ErrMissingGradient)
	}

	b := &BOA{
		k:             k,
		loss:          l,
		gradientTrick: gradientTrick,
		w:             mat.NewVecDense(k, nil),
		learningRates: make([]float64, k),
		cumVars:       make([]float64, k),
		maxLosses:     make([]float64, k),
		cumRegRegrets: make([]float64, k),
		cumRegrets:    make([]float64, k),
	}
	for i := 0; i < k; i++ {
		b.w.SetVec(i, initialWeights[i])
		b.learningRates[i] = aggregator.AccumulatorFloor
		b.cumVars[i] = aggregator.AccumulatorFloor
		b.maxLosses[i] = aggregator.AccumulatorFloor
	}
	return b, nil
}

// computeWeights refreshes the weight vector from the accumulators.
// When awake is non-nil, sleeping experts get zero weight and the
// log-sum-exp shift is taken over active experts only.
func (b *BOA) computeWeights(awake *mat.VecDense) {
	logK := math.Log(float64(b.k))

	rAux := make([]float64, b.k)
	rMax := math.Inf(-1)
	for i := 0; i < b.k; i++ {
		rAux[i] = math.Log(b.learningRates[i]) - logK +
			b.learningRates[i]*b.cumRegRegrets[i]
		if (awake == nil || awake.AtVec(i) > 0) && rAux[i] > rMax {
			rMax = rAux[i]
		}
	}

	sum := 0.0
	for i := 0; i < b.k; i++ {
		if awake != nil && awake.AtVec(i) <= 0 {
			b.w.SetVec(i, 0)
			continue
		}
		b.w.SetVec(i, math.Exp(rAux[i]-rMax))
		sum += b.w.AtVec(i)
	}
	b.w.ScaleVec(1/sum, b.w)
}

// Step advances the rule by one observation.
func (b *BOA) Step(x *mat.VecDense, y float64, awake *mat.VecDense) (
	float64, *mat.VecDense, error) {
	if x.Len() != b.k || awake.Len() != b.k {
		return 0, nil, fmt.Errorf("step: expected %v experts, got %v",
			b.k, x.Len())
	}
	if !aggregator.AnyActive(awake) {
		// Nothing to learn from; predict with the pre-step weights.
		return mat.Dot(b.w, x), mat.VecDenseCopyOf(b.w), nil
	}

	b.computeWeights(awake)
	used := mat.VecDenseCopyOf(b.w)

	yHat, r := aggregator.Regret(b.loss, b.gradientTrick, b.w, x, y, awake)

	logK := math.Log(float64(b.k))
	for i := 0; i < b.k; i++ {
		ri := r.AtVec(i)
		rSq := ri * ri

		b.maxLosses[i] = math.Max(b.maxLosses[i], math.Abs(ri))
		b2 := floatutils.Ceil2(b.maxLosses[i])
		b.cumVars[i] += rSq

		eta := math.Min(1/b2, math.Sqrt(logK/b.cumVars[i]))
		eta = math.Max(eta, aggregator.AccumulatorFloor)
		b.learningRates[i] = eta

		// Bernstein correction, with a clipping term when a single
		// regret would otherwise destabilise the step.
		clip := 0.0
		if eta*ri > 0.5 {
			clip = b2
		}
		b.cumRegRegrets[i] += 0.5 * (ri - eta*rSq + clip)
		b.cumRegrets[i] += ri
	}

	return yHat, used, nil
}

// RecomputeWeights refreshes the weight vector from the accumulators
// over all experts, ignoring any activation mask.
func (b *BOA) RecomputeWeights() {
	b.computeWeights(nil)
}

// Weights returns a copy of the current weight vector.
func (b *BOA) Weights() *mat.VecDense {
	return mat.VecDenseCopyOf(b.w)
}

// K returns the number of experts.
func (b *BOA) K() int {
	return b.k
}
