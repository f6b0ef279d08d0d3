package mlpol

import (
	"testing"

	"github.com/tpaquier/opera/loss"
	"github.com/tpaquier/opera/utils/matutils"
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

// TestIdenticalExperts checks that indistinguishable experts keep the
// uniform mixture: every forecast row is (1, 1, 1) with target 0.
func TestIdenticalExperts(t *testing.T) {
	l, err := loss.FromName(loss.MSE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(3, uniform(3), l, true)
	if err != nil {
		t.Fatal(err)
	}

	x := matutils.VecOnes(3)
	awake := matutils.VecOnes(3)
	for step := 0; step < 3; step++ {
		yHat, used, err := m.Step(x, 0, awake)
		if err != nil {
			t.Fatal(err)
		}
		if yHat != 1 {
			t.Errorf("step %v: prediction = %v, want 1", step, yHat)
		}
		for i := 0; i < 3; i++ {
			if !scalar.EqualWithinAbs(used.AtVec(i), 1.0/3, 1e-12) {
				t.Errorf("step %v: weight %v = %v, want 1/3", step, i,
					used.AtVec(i))
			}
		}
	}
}

// TestBestExpertGainsWeight checks mass concentrates on the expert
// that is always right.
func TestBestExpertGainsWeight(t *testing.T) {
	l, err := loss.FromName(loss.MSE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(3, uniform(3), l, false)
	if err != nil {
		t.Fatal(err)
	}

	awake := matutils.VecOnes(3)
	for step := 0; step < 20; step++ {
		x := mat.NewVecDense(3, []float64{1, 2, 3})
		if _, _, err := m.Step(x, 1, awake); err != nil {
			t.Fatal(err)
		}
	}

	m.RecomputeWeights()
	w := m.Weights()
	if w.AtVec(0) < 0.9 {
		t.Errorf("perfect expert weight = %v, want > 0.9", w.AtVec(0))
	}
	sum := w.AtVec(0) + w.AtVec(1) + w.AtVec(2)
	if !scalar.EqualWithinAbs(sum, 1, 1e-9) {
		t.Errorf("weights sum to %v, want 1", sum)
	}
}

func TestSingleExpert(t *testing.T) {
	l, err := loss.FromName(loss.MAE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(1, []float64{1}, l, false)
	if err != nil {
		t.Fatal(err)
	}

	awake := matutils.VecOnes(1)
	for _, y := range []float64{0, 1, -2} {
		yHat, used, err := m.Step(mat.NewVecDense(1, []float64{y - 1}),
			y, awake)
		if err != nil {
			t.Fatal(err)
		}
		if used.AtVec(0) != 1 {
			t.Errorf("single expert weight = %v, want 1", used.AtVec(0))
		}
		if yHat != y-1 {
			t.Errorf("prediction = %v, want %v", yHat, y-1)
		}
	}
}

// TestSleepingMassRespread checks the uniform fallback spreads over
// active experts only when every positive-regret expert is asleep.
func TestSleepingMassRespread(t *testing.T) {
	l, err := loss.FromName(loss.MSE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(2, uniform(2), l, false)
	if err != nil {
		t.Fatal(err)
	}

	// Give the first expert all the cumulative regret, then put it to
	// sleep.
	active := matutils.VecOnes(2)
	if _, _, err := m.Step(mat.NewVecDense(2, []float64{1, 5}), 1,
		active); err != nil {
		t.Fatal(err)
	}

	onlySecond := mat.NewVecDense(2, []float64{0, 1})
	_, used, err := m.Step(mat.NewVecDense(2, []float64{1, 2}), 1,
		onlySecond)
	if err != nil {
		t.Fatal(err)
	}
	if used.AtVec(0) != 0 || used.AtVec(1) != 1 {
		t.Errorf("masked weights = (%v, %v), want (0, 1)",
			used.AtVec(0), used.AtVec(1))
	}
}
