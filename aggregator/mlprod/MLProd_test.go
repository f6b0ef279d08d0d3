package mlprod

import (
	"math"
	"testing"

	"github.com/tpaquier/opera/loss"
	"github.com/tpaquier/opera/utils/matutils"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

func uniform(k int) []float64 {
	w := make([]float64, k)
	for i := range w {
		w[i] = 1 / float64(k)
	}
	return w
}

// TestHighVarianceExpertFadesOut feeds a noisy target with one
// reasonable and one wildly noisy expert: the run must stay finite,
// the noisy expert's learning rate must not rise, and its weight must
// fade.
func TestHighVarianceExpertFadesOut(t *testing.T) {
	l, err := loss.FromName(loss.MSE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(2, uniform(2), l, true)
	if err != nil {
		t.Fatal(err)
	}

	target := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(42)}
	small := distuv.Normal{Mu: 0, Sigma: 0.1, Src: rand.NewSource(43)}
	huge := distuv.Normal{Mu: 0, Sigma: 50, Src: rand.NewSource(44)}

	awake := matutils.VecOnes(2)
	var previous []float64
	for step := 0; step < 100; step++ {
		y := target.Rand()
		x := mat.NewVecDense(2, []float64{y + small.Rand(), huge.Rand()})

		yHat, used, err := m.Step(x, y, awake)
		if err != nil {
			t.Fatal(err)
		}
		if math.IsNaN(yHat) || math.IsInf(yHat, 0) {
			t.Fatalf("step %v: prediction not finite: %v", step, yHat)
		}
		for i := 0; i < 2; i++ {
			if math.IsNaN(used.AtVec(i)) {
				t.Fatalf("step %v: weight %v is NaN", step, i)
			}
			if math.IsNaN(m.cumRegrets[i]) ||
				math.IsInf(m.cumRegrets[i], 0) {
				t.Fatalf("step %v: accumulator %v not finite", step, i)
			}
		}

		current := append([]float64(nil), m.learningRates...)
		if step > 0 && current[1] > previous[1] {
			t.Errorf("step %v: noisy expert's learning rate rose "+
				"from %v to %v", step, previous[1], current[1])
		}
		previous = current
	}

	m.RecomputeWeights()
	w := m.Weights()
	if w.AtVec(1) > 0.2 {
		t.Errorf("noisy expert weight = %v, want < 0.2", w.AtVec(1))
	}
	if !scalar.EqualWithinAbs(w.AtVec(0)+w.AtVec(1), 1, 1e-9) {
		t.Errorf("weights sum to %v, want 1", w.AtVec(0)+w.AtVec(1))
	}
}

func TestLearningRatesNonIncreasing(t *testing.T) {
	l, err := loss.FromName(loss.MSE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(3, uniform(3), l, false)
	if err != nil {
		t.Fatal(err)
	}

	awake := matutils.VecOnes(3)
	targets := []float64{1, -1, 2, 0, 3, -2, 1, 1}
	var previous []float64
	for step, y := range targets {
		x := mat.NewVecDense(3, []float64{y, -y, 2 * y})
		if _, _, err := m.Step(x, y, awake); err != nil {
			t.Fatal(err)
		}

		current := append([]float64(nil), m.learningRates...)
		if step > 0 {
			for i := range current {
				if current[i] > previous[i] {
					t.Errorf("step %v: learning rate %v rose from %v "+
						"to %v", step, i, previous[i], current[i])
				}
			}
		}
		previous = current
	}
}

func TestSingleExpert(t *testing.T) {
	l, err := loss.FromName(loss.MSE)
	if err != nil {
		t.Fatal(err)
	}
	m, err := New(1, []float64{1}, l, true)
	if err != nil {
		t.Fatal(err)
	}

	awake := matutils.VecOnes(1)
	for _, y := range []float64{2, 4, 8} {
		yHat, used, err := m.Step(mat.NewVecDense(1, []float64{y}), y,
			awake)
		if err != nil {
			t.Fatal(err)
		}
		if used.AtVec(0) != 1 {
			t.Errorf("single expert weight = %v, want 1", used.AtVec(0))
		}
		if yHat != y {
			t.Errorf("prediction = %v, want %v", yHat, y)
		}
	}
}
