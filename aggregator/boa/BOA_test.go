package boa

import (
	"math"
	"testing"

	"github.com/tpaquier/opera/loss"
	"github.com/tpaquier/opera/utils/matutils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
)

func uniform(k int) []float64 {
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / float64(k)
	}
	return w
}

func onSimplex(t *testing.T, w *mat.VecDense) {
	t.Helper()
	sum := 0.0
	for i := 0; i < w.Len(); i++ {
		if w.AtVec(i) < -1e-12 {
			t.Errorf("negative weight %v at %v", w.AtVec(i), i)
		}
		sum += w.AtVec(i)
	}
	if !scalar.EqualWithinAbs(sum, 1, 1e-9) {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

func mustLoss(t *testing.T, name string) loss.Loss {
	t.Helper()
	l, err := loss.FromName(name)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

// TestConstantPerfectExpert feeds a stream where the first expert is
// always correct; nearly all mass should move onto it.
func TestConstantPerfectExpert(t *testing.T) {
	b, err := New(3, uniform(3), mustLoss(t, loss.MSE), false)
	if err != nil {
		t.Fatal(err)
	}

	forecasts := [][]float64{
		{1, 0, 2},
		{1, 2, 0},
		{1, 0.5, 1.5},
		{1, 3, -1},
		{1, 0, 2},
	}
	awake := matutils.VecOnes(3)
	for _, row := range forecasts {
		_, used, err := b.Step(mat.NewVecDense(3, row), 1, awake)
		if err != nil {
			t.Fatal(err)
		}
		onSimplex(t, used)
	}

	b.RecomputeWeights()
	w := b.Weights()
	onSimplex(t, w)
	if w.AtVec(0) < 0.8 {
		t.Errorf("perfect expert weight = %v, want > 0.8", w.AtVec(0))
	}
	if w.AtVec(1)+w.AtVec(2) > 0.2 {
		t.Errorf("imperfect experts hold %v, want < 0.2",
			w.AtVec(1)+w.AtVec(2))
	}
}

func TestLearningRatesNonIncreasing(t *testing.T) {
	b, err := New(2, uniform(2), mustLoss(t, loss.MSE), true)
	if err != nil {
		t.Fatal(err)
	}

	targets := []float64{1, -2, 3, 0.5, -1, 2, 0, 4}
	awake := matutils.VecOnes(2)
	var previous []float64
	for step, y := range targets {
		x := mat.NewVecDense(2, []float64{y + 0.1, -y})
		if _, _, err := b.Step(x, y, awake); err != nil {
			t.Fatal(err)
		}

		current := append([]float64(nil), b.learningRates...)
		if step > 0 {
			for i := range current {
				if current[i] > previous[i] {
					t.Errorf("step %v: learning rate %v rose from %v "+
						"to %v", step, i, previous[i], current[i])
				}
			}
		}
		for i := range current {
			if current[i] <= 0 {
				t.Errorf("step %v: learning rate %v not positive",
					step, i)
			}
			if b.cumVars[i] <= 0 || b.maxLosses[i] <= 0 {
				t.Errorf("step %v: accumulator %v not positive", step, i)
			}
		}
		previous = current
	}
}

func TestSingleExpert(t *testing.T) {
	b, err := New(1, []float64{1}, mustLoss(t, loss.MAPE), false)
	if err != nil {
		t.Fatal(err)
	}

	awake := matutils.VecOnes(1)
	for _, y := range []float64{1, 2, 3} {
		yHat, used, err := b.Step(mat.NewVecDense(1, []float64{y + 1}),
			y, awake)
		if err != nil {
			t.Fatal(err)
		}
		if used.AtVec(0) != 1 {
			t.Errorf("single expert weight = %v, want 1", used.AtVec(0))
		}
		if yHat != y+1 {
			t.Errorf("prediction = %v, want the sole forecast %v",
				yHat, y+1)
		}
		if math.IsNaN(yHat) || math.IsInf(yHat, 0) {
			t.Errorf("prediction not finite: %v", yHat)
		}
	}
}

func TestSleepingExpertExcluded(t *testing.T) {
	b, err := New(3, uniform(3), mustLoss(t, loss.MSE), false)
	if err != nil {
		t.Fatal(err)
	}

	x := mat.NewVecDense(3, []float64{10, -10, 0})
	awake := mat.NewVecDense(3, []float64{1, 0, 1})
	for step := 0; step < 3; step++ {
		_, used, err := b.Step(x, 0, awake)
		if err != nil {
			t.Fatal(err)
		}
		if used.AtVec(1) != 0 {
			t.Errorf("step %v: sleeping expert weight = %v, want 0",
				step, used.AtVec(1))
		}
		if !scalar.EqualWithinAbs(used.AtVec(0)+used.AtVec(2), 1,
			1e-9) {
			t.Errorf("step %v: active weights sum to %v, want 1",
				step, used.AtVec(0)+used.AtVec(2))
		}
	}
}

func TestAllAsleepLeavesStateUnchanged(t *testing.T) {
	b, err := New(2, uniform(2), mustLoss(t, loss.MSE), false)
	if err != nil {
		t.Fatal(err)
	}
	active := matutils.VecOnes(2)
	if _, _, err := b.Step(mat.NewVecDense(2, []float64{1, 3}), 2,
		active); err != nil {
		t.Fatal(err)
	}

	before := append([]float64(nil), b.cumRegRegrets...)
	wBefore := b.Weights()

	x := mat.NewVecDense(2, []float64{5, -5})
	asleep := mat.NewVecDense(2, nil)
	yHat, used, err := b.Step(x, 0, asleep)
	if err != nil {
		t.Fatal(err)
	}

	if !floats.Equal(before, b.cumRegRegrets) {
		t.Error("accumulators moved on an all-asleep step")
	}
	if !mat.Equal(wBefore, used) {
		t.Error("weights moved on an all-asleep step")
	}
	if want := mat.Dot(wBefore, x); yHat != want {
		t.Errorf("prediction = %v, want %v from pre-step weights",
			yHat, want)
	}
}

func BenchmarkStep(b *testing.B) {
	l, err := loss.FromName(loss.MSE)
	if err != nil {
		b.Fatal(err)
	}
	agg, err := New(10, uniform(10), l, true)
	if err != nil {
		b.Fatal(err)
	}

	x := mat.NewVecDense(10, nil)
	awake := mat.NewVecDense(10, nil)
	for i := 0; i < 10; i++ {
		x.SetVec(i, float64(i))
		awake.SetVec(i, 1)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := agg.Step(x, 4.5, awake); err != nil {
			b.Fatal(err)
		}
	}
}
