// Package aggregator describes the sequential aggregation rules that
// combine expert forecasts into a single prediction.
//
// An aggregation rule owns a weight vector on the probability simplex
// and a set of per-expert accumulators. At each time step it is shown
// the expert forecasts x, the realised target y and an activation mask
// a, and it advances its state by one step, producing the mixture
// prediction for that step together with the weights it used.
package aggregator

import (
	"gonum.org/v1/gonum/mat"
)

// AccumulatorFloor is the small positive constant used to initialise
// variance, max-loss and learning-rate accumulators so that logarithms
// stay finite and divisors non-zero on the first step.
const AccumulatorFloor float64 = 1.0 / (1 << 20)

// Aggregator is a sequential aggregation rule. Implementations advance
// their state one observation at a time; processing of step t must
// complete before step t+1 begins.
type Aggregator interface {
	// Step advances the rule by one observation. The x argument holds
	// the K expert forecasts, y the realised target and awake the
	// activation mask (1 = active, 0 = sleeping). It returns the
	// mixture prediction for the step and a copy of the weight vector
	// that produced it.
	Step(x *mat.VecDense, y float64, awake *mat.VecDense) (float64,
		*mat.VecDense, error)

	// RecomputeWeights refreshes the current weight vector from the
	// rule's accumulators, without any activation mask. It is called
	// once at the end of each batch of observations so that
	// predictions on fresh forecasts use fully updated weights.
	RecomputeWeights()

	// Weights returns a copy of the current weight vector.
	Weights() *mat.VecDense

	// K returns the number of experts.
	K() int
}

// AnyActive reports whether at least one expert is active in the mask.
func AnyActive(awake *mat.VecDense) bool {
	for i := 0; i < awake.Len(); i++ {
		if awake.AtVec(i) > 0 {
			return true
		}
	}
	return false
}
