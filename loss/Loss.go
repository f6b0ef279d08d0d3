// Package loss implements the pointwise loss functions used to score
// expert forecasts, together with their gradients with respect to the
// prediction.
package loss

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/tpaquier/opera/utils/floatutils"
)

// ErrUnsupportedLoss is returned when a named loss is not in the
// supported set.
var ErrUnsupportedLoss = errors.New("unsupported loss")

// ErrMissingGradient is returned when a custom loss is supplied
// without its gradient but the gradient is required.
var ErrMissingGradient = errors.New("missing loss gradient")

// Function is a pointwise loss or loss-gradient evaluated at a
// prediction and a target.
type Function func(prediction, target float64) float64

// Names of the supported losses
const (
	MAPE string = "mape"
	MAE  string = "mae"
	MSE  string = "mse"
	MSLE string = "msle"
	MSPE string = "mspe"
)

// Loss pairs a pointwise loss function with its gradient with respect
// to the prediction. The gradient may be nil for custom losses that
// are only used in direct form.
type Loss struct {
	Name string
	Fn   Function
	Grad Function
}

// FromName returns the named Loss with its paired gradient. Names are
// matched case-insensitively. An ErrUnsupportedLoss is returned for
// names outside the supported set.
func FromName(name string) (Loss, error) {
	switch strings.ToLower(name) {
	case MAPE:
		return Loss{MAPE, Mape, GradientMape}, nil
	case MAE:
		return Loss{MAE, Mae, GradientMae}, nil
	case MSE:
		return Loss{MSE, Mse, GradientMse}, nil
	case MSLE:
		return Loss{MSLE, Msle, GradientMsle}, nil
	case MSPE:
		return Loss{MSPE, Mspe, GradientMspe}, nil
	default:
		return Loss{}, fmt.Errorf("fromname: %w: %v", ErrUnsupportedLoss,
			name)
	}
}

// Custom returns a Loss wrapping a user-supplied function and,
// optionally, its gradient. The gradient may be nil when the loss is
// only used in direct form; callers requiring the gradient trick must
// validate it is non-nil.
func Custom(fn, grad Function) Loss {
	return Loss{Name: "custom", Fn: fn, Grad: grad}
}

// Mape is the absolute error relative to the target. The target must
// be non-zero.
func Mape(prediction, target float64) float64 {
	return math.Abs(prediction-target) / target
}

// GradientMape is the gradient of Mape with respect to the prediction.
func GradientMape(prediction, target float64) float64 {
	return floatutils.Sign(prediction-target) / target
}

// Mae is the absolute error.
func Mae(prediction, target float64) float64 {
	return math.Abs(prediction - target)
}

// GradientMae is the gradient of Mae with respect to the prediction.
func GradientMae(prediction, target float64) float64 {
	return floatutils.Sign(prediction - target)
}

// Mse is the squared error.
func Mse(prediction, target float64) float64 {
	diff := prediction - target
	return diff * diff
}

// GradientMse is the gradient of Mse with respect to the prediction.
func GradientMse(prediction, target float64) float64 {
	return 2 * (prediction - target)
}

// Msle is the squared error between the shifted logarithms of the
// prediction and target. Both must be greater than -1.
func Msle(prediction, target float64) float64 {
	diff := math.Log(target+1) - math.Log(prediction+1)
	return diff * diff
}

// GradientMsle is the gradient of Msle with respect to the prediction.
func GradientMsle(prediction, target float64) float64 {
	return -2 * (math.Log(target+1) - math.Log(prediction+1)) /
		(prediction + 1)
}

// Mspe is the squared error relative to the squared target. The target
// must be non-zero.
func Mspe(prediction, target float64) float64 {
	diff := target - prediction
	return diff * diff / (target * target)
}

// GradientMspe is the gradient of Mspe with respect to the prediction.
func GradientMspe(prediction, target float64) float64 {
	return -2 * (target - prediction) / (target * target)
}

// GradientMspeUnscaled is a variant of GradientMspe that omits the
// 1/target² scaling. Pair it with Mspe through Custom when
// compatibility with implementations using the unscaled form is
// needed.
func GradientMspeUnscaled(prediction, target float64) float64 {
	return -2*prediction + 2*target
}
