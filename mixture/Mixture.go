// Package mixture implements online prediction by expert aggregation.
//
// A Mixture combines the forecasts of K experts into a single
// prediction for each step of a target sequence, with mixing weights
// on the probability simplex updated sequentially from past losses.
// The aggregation rule, the loss and the regret form are fixed at
// construction; observations are then fed in batches through Update,
// and Predict forms mixture forecasts from the current weights without
// changing state.
//
// A Mixture owns its state exclusively and is not safe for concurrent
// use; callers serialise access.
package mixture

import (
	"fmt"

	"github.com/tpaquier/opera/aggregator"
	"github.com/tpaquier/opera/history"
	"github.com/tpaquier/opera/loss"
	"github.com/tpaquier/opera/utils/matutils"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Mixture aggregates expert forecasts into sequential predictions.
type Mixture struct {
	agg  aggregator.Aggregator
	loss loss.Loss

	model       string
	expertNames []string
	k           int

	hist     *history.History
	meanLoss float64
}

// New creates a Mixture over the experts named by the forecast frame
// and immediately processes the given targets. The awake matrix may be
// nil, in which case every expert is active at every step.
func New(y []float64, experts *Frame, awake *mat.Dense,
	conf Config) (*Mixture, error) {
	names := experts.Names()
	k := len(names)
	if k < 1 {
		return nil, fmt.Errorf("new: %w: no expert columns",
			ErrBadExperts)
	}

	l, err := conf.resolveLoss()
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	w0, err := conf.initialWeights(k)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	agg, model, err := conf.newAggregator(k, w0, l)
	if err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}

	m := &Mixture{
		agg:         agg,
		loss:        l,
		model:       model,
		expertNames: names,
		k:           k,
		hist:        history.New(k),
	}
	if err := m.Update(experts, y, awake); err != nil {
		return nil, fmt.Errorf("new: %w", err)
	}
	return m, nil
}

// Update feeds a batch of observations to the aggregation rule in
// order, appending one row per observation to the history. The awake
// matrix may be nil, activating every expert.
func (m *Mixture) Update(newExperts *Frame, newY []float64,
	awake *mat.Dense) error {
	x, err := newExperts.align(m.expertNames)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}
	rows, _ := x.Dims()
	if rows != len(newY) {
		return fmt.Errorf("update: %w: %v forecast rows for %v targets",
			ErrShapeMismatch, rows, len(newY))
	}
	awake, err = m.checkAwake(awake, rows)
	if err != nil {
		return fmt.Errorf("update: %w", err)
	}

	xt := mat.NewVecDense(m.k, nil)
	at := mat.NewVecDense(m.k, nil)
	for t := 0; t < rows; t++ {
		for j := 0; j < m.k; j++ {
			xt.SetVec(j, x.At(t, j))
			at.SetVec(j, awake.At(t, j))
		}

		yHat, used, err := m.agg.Step(xt, newY[t], at)
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
		err = m.hist.Append(vecData(used), vecData(xt), vecData(at),
			yHat, newY[t])
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
	}

	m.agg.RecomputeWeights()
	m.meanLoss = m.empiricalLoss()
	return nil
}

// Predict forms mixture predictions for fresh forecasts from the
// current weights without changing any state. The awake matrix may be
// nil, activating every expert.
func (m *Mixture) Predict(newExperts *Frame, awake *mat.Dense) (
	[]float64, error) {
	x, err := newExperts.align(m.expertNames)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	rows, _ := x.Dims()
	awake, err = m.checkAwake(awake, rows)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	w := m.agg.Weights()
	coef := mat.NewVecDense(m.k, nil)
	out := make([]float64, rows)
	for t := 0; t < rows; t++ {
		sum := 0.0
		for j := 0; j < m.k; j++ {
			coef.SetVec(j, w.AtVec(j)*awake.At(t, j))
			sum += coef.AtVec(j)
		}
		if sum > 0 {
			matutils.VecNormalize(coef)
		} else {
			coef.CopyVec(w)
		}

		for j := 0; j < m.k; j++ {
			out[t] += coef.AtVec(j) * x.At(t, j)
		}
	}
	return out, nil
}

// checkAwake validates an activation matrix against the expected row
// count, substituting the all-active mask when nil.
func (m *Mixture) checkAwake(awake *mat.Dense, rows int) (*mat.Dense,
	error) {
	if awake == nil {
		ones := make([]float64, rows*m.k)
		for i := range ones {
			ones[i] = 1
		}
		return mat.NewDense(rows, m.k, ones), nil
	}
	r, c := awake.Dims()
	if r != rows || c != m.k {
		return nil, fmt.Errorf("checkawake: %w: expected %vx%v "+
			"activations, got %vx%v", ErrShapeMismatch, rows, m.k, r, c)
	}
	return awake, nil
}

// empiricalLoss returns the mean loss of the recorded predictions.
func (m *Mixture) empiricalLoss() float64 {
	predictions := m.hist.Predictions()
	targets := m.hist.Targets()
	if len(predictions) == 0 {
		return 0
	}
	losses := make([]float64, len(predictions))
	for i := range predictions {
		losses[i] = m.loss.Fn(predictions[i], targets[i])
	}
	return stat.Mean(losses, nil)
}

// Weights returns the recorded weight rows, one per observation.
func (m *Mixture) Weights() *mat.Dense { return m.hist.Weights() }

// Experts returns the recorded raw forecast rows.
func (m *Mixture) Experts() *mat.Dense { return m.hist.Experts() }

// Awakes returns the recorded activation rows.
func (m *Mixture) Awakes() *mat.Dense { return m.hist.Awakes() }

// Predictions returns the recorded mixture predictions.
func (m *Mixture) Predictions() []float64 { return m.hist.Predictions() }

// Targets returns the recorded targets.
func (m *Mixture) Targets() []float64 { return m.hist.Targets() }

// CurrentWeights returns the weight vector Predict would mix with,
// refreshed from the accumulators at the end of the last Update.
func (m *Mixture) CurrentWeights() *mat.VecDense { return m.agg.Weights() }

// Loss returns the mean empirical loss over all recorded predictions.
func (m *Mixture) Loss() float64 { return m.meanLoss }

// LossFunction returns the configured loss.
func (m *Mixture) LossFunction() loss.Loss { return m.loss }

// ExpertNames returns the expert names in engine order.
func (m *Mixture) ExpertNames() []string {
	return append([]string(nil), m.expertNames...)
}

// K returns the number of experts.
func (m *Mixture) K() int { return m.k }

// Model returns the canonical name of the aggregation rule.
func (m *Mixture) Model() string { return m.model }

// History returns the underlying append-only log of the run.
func (m *Mixture) History() *history.History { return m.hist }

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
