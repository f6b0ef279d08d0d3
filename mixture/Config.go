package mixture

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tpaquier/opera/aggregator"
	"github.com/tpaquier/opera/aggregator/boa"
	"github.com/tpaquier/opera/aggregator/ftrl"
	"github.com/tpaquier/opera/aggregator/mlpol"
	"github.com/tpaquier/opera/aggregator/mlprod"
	"github.com/tpaquier/opera/loss"
)

// Errors reported at the construction and update boundary
var (
	// ErrBadExperts indicates a forecast frame without usable named
	// columns.
	ErrBadExperts = errors.New("bad experts")

	// ErrBadInitialWeights indicates an explicit initial weight
	// vector of the wrong length or not summing to 1.
	ErrBadInitialWeights = errors.New("bad initial weights")

	// ErrUnknownAlgorithm indicates an aggregation rule outside the
	// supported set.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")

	// ErrShapeMismatch indicates forecast, target and activation
	// dimensions that disagree.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownExpert indicates column names that differ from the
	// engine's experts.
	ErrUnknownExpert = errors.New("unknown expert")
)

// Names of the available aggregation rules
const (
	BOA    string = "BOA"
	MLPol  string = "MLpol"
	MLProd string = "MLprod"
	FTRL   string = "FTRL"
)

// Config describes a Mixture. The zero value selects BOA with the MSE
// loss, direct-form (loss-difference) regrets and uniform initial
// weights.
type Config struct {
	// Model selects the aggregation rule, matched case-insensitively
	// against BOA, MLpol, MLprod and FTRL. Empty selects BOA.
	Model string `json:"model"`

	// Loss names one of the supported losses. Empty selects MSE.
	// Ignored when LossFn is set.
	Loss string `json:"loss"`

	// LossFn is a custom pointwise loss. When used together with the
	// gradient trick, LossGrad must be supplied as well.
	LossFn loss.Function `json:"-"`

	// LossGrad is the gradient of the loss with respect to the
	// prediction. When set alongside a named loss it replaces the
	// paired gradient.
	LossGrad loss.Function `json:"-"`

	// GradientTrick selects the linearised regret form. When false,
	// regrets are loss differences.
	GradientTrick bool `json:"gradientTrick"`

	// InitialWeights is an explicit starting weight vector summing
	// to 1. Nil selects the uniform mixture.
	InitialWeights []float64 `json:"initialWeights,omitempty"`

	// FTRL collects the optional parameters of the FTRL rule.
	FTRL *ftrl.Config `json:"-"`
}

// resolveLoss returns the Loss described by the configuration.
func (c *Config) resolveLoss() (loss.Loss, error) {
	if c.LossFn != nil {
		if c.GradientTrick && c.LossGrad == nil {
			return loss.Loss{}, fmt.Errorf("config: %w: custom loss "+
				"used with the gradient trick", loss.ErrMissingGradient)
		}
		return loss.Custom(c.LossFn, c.LossGrad), nil
	}

	name := c.Loss
	if name == "" {
		name = loss.MSE
	}
	l, err := loss.FromName(name)
	if err != nil {
		return loss.Loss{}, fmt.Errorf("config: %w", err)
	}
	if c.LossGrad != nil {
		l.Grad = c.LossGrad
	}
	return l, nil
}

// initialWeights returns the validated starting weight vector for k
// experts.
func (c *Config) initialWeights(k int) ([]float64, error) {
	if c.InitialWeights == nil {
		w := make([]float64, k)
		for i := range w {
			w[i] = 1 / float64(k)
		}
		return w, nil
	}
	if len(c.InitialWeights) != k {
		return nil, fmt.Errorf("config: %w: expected length %v, got %v",
			ErrBadInitialWeights, k, len(c.InitialWeights))
	}
	sum := 0.0
	for _, wi := range c.InitialWeights {
		sum += wi
	}
	if math.Abs(sum-1) > 1e-9 {
		return nil, fmt.Errorf("config: %w: weights sum to %v",
			ErrBadInitialWeights, sum)
	}
	return append([]float64(nil), c.InitialWeights...), nil
}

// newAggregator builds the configured aggregation rule for k experts.
func (c *Config) newAggregator(k int, w0 []float64, l loss.Loss) (
	aggregator.Aggregator, string, error) {
	model := c.Model
	if model == "" {
		model = BOA
	}

	switch canonicalModel(model) {
	case BOA:
		agg, err := boa.New(k, w0, l, c.GradientTrick)
		return agg, BOA, err
	case MLPol:
		agg, err := mlpol.New(k, w0, l, c.GradientTrick)
		return agg, MLPol, err
	case MLProd:
		agg, err := mlprod.New(k, w0, l, c.GradientTrick)
		return agg, MLProd, err
	case FTRL:
		if !c.GradientTrick {
			return nil, "", fmt.Errorf("config: %w",
				ftrl.ErrGradientRequired)
		}
		agg, err := ftrl.New(k, w0, l, c.FTRL)
		return agg, FTRL, err
	default:
		return nil, "", fmt.Errorf("config: %w: %v", ErrUnknownAlgorithm,
			model)
	}
}

// canonicalModel maps a case-insensitive model name to its canonical
// spelling, or returns it unchanged when unrecognised.
func canonicalModel(model string) string {
	for _, name := range []string{BOA, MLPol, MLProd, FTRL} {
		if strings.EqualFold(model, name) {
			return name
		}
	}
	return model
}
