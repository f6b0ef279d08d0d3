package aggregator

import (
	"github.com/tpaquier/opera/loss"
	"gonum.org/v1/gonum/mat"
)

// Regret computes the mixture prediction and the per-expert
// instantaneous regret for one observation.
//
// The prediction is the weighted sum of the forecasts under the given
// weights. The regret of expert k measures how much following that
// expert alone would have helped on this step. In direct form it is
// the loss difference
//
//	r_k = a_k * (L(ŷ, y) - L(x_k, y))
//
// and with the gradient trick it is the first-order surrogate
//
//	r_k = a_k * ∂L(ŷ, y) * (ŷ - x_k)
//
// Sleeping experts (a_k = 0) receive zero regret. When gradientTrick
// is set the Loss must carry a non-nil gradient.
func Regret(l loss.Loss, gradientTrick bool, w, x *mat.VecDense,
	y float64, awake *mat.VecDense) (float64, *mat.VecDense) {
	yHat := mat.Dot(w, x)

	k := x.Len()
	r := mat.NewVecDense(k, nil)
	if gradientTrick {
		grad := l.Grad(yHat, y)
		for i := 0; i < k; i++ {
			r.SetVec(i, awake.AtVec(i)*grad*(yHat-x.AtVec(i)))
		}
	} else {
		mixLoss := l.Fn(yHat, y)
		for i := 0; i < k; i++ {
			r.SetVec(i, awake.AtVec(i)*(mixLoss-l.Fn(x.AtVec(i), y)))
		}
	}
	return yHat, r
}
