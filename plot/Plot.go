// Package plot renders diagnostic charts for an aggregation run as
// PNG files. It consumes only the read surface a Mixture exposes (the
// history buffers, the loss function and the rule name) and never
// touches engine state.
package plot

import (
	"fmt"
	"sort"

	"github.com/fogleman/gg"
	"github.com/tpaquier/opera/loss"
	"github.com/tpaquier/opera/utils/matutils"
	"gonum.org/v1/gonum/mat"
)

// Source is the read surface the diagnostics need. A *mixture.Mixture
// satisfies it.
type Source interface {
	Weights() *mat.Dense
	Experts() *mat.Dense
	Awakes() *mat.Dense
	Predictions() []float64
	Targets() []float64
	ExpertNames() []string
	Model() string
	LossFunction() loss.Loss
}

// Chart dimensions
const (
	width   = 1000
	height  = 800
	marginX = 80.0
	marginY = 60.0
)

// palette holds the expert series colours, cycled when there are more
// experts than entries.
var palette = [][3]float64{
	{0.122, 0.467, 0.706},
	{1.000, 0.498, 0.055},
	{0.173, 0.627, 0.173},
	{0.839, 0.153, 0.157},
	{0.580, 0.404, 0.741},
	{0.549, 0.337, 0.294},
	{0.890, 0.467, 0.761},
	{0.498, 0.498, 0.498},
	{0.737, 0.741, 0.133},
	{0.090, 0.745, 0.812},
}

func colour(i int) [3]float64 {
	return palette[i%len(palette)]
}

// run captures the buffers of a Source as plain slices, with experts
// ranked by mean weight so charts can focus on the heaviest ones.
type run struct {
	names       []string
	weights     *mat.Dense
	experts     *mat.Dense
	awakes      *mat.Dense
	predictions []float64
	targets     []float64
	model       string
	lossFn      loss.Function

	steps  int
	k      int
	ranked []int // expert indices, lightest first
}

func newRun(src Source) (*run, error) {
	r := &run{
		names:       src.ExpertNames(),
		weights:     src.Weights(),
		experts:     src.Experts(),
		awakes:      src.Awakes(),
		predictions: src.Predictions(),
		targets:     src.Targets(),
		model:       src.Model(),
		lossFn:      src.LossFunction().Fn,
	}
	r.steps = len(r.predictions)
	r.k = len(r.names)
	if r.steps == 0 {
		return nil, fmt.Errorf("plot: empty history")
	}

	means := matutils.ColMean(r.weights)
	r.ranked = make([]int, r.k)
	for i := range r.ranked {
		r.ranked[i] = i
	}
	sort.SliceStable(r.ranked, func(a, b int) bool {
		return means.AtVec(r.ranked[a]) < means.AtVec(r.ranked[b])
	})
	return r, nil
}

// best returns the indices of the maxExperts heaviest experts, in
// ranking order.
func (r *run) best(maxExperts int) []int {
	if maxExperts <= 0 || maxExperts > r.k {
		maxExperts = r.k
	}
	return r.ranked[r.k-maxExperts:]
}

// worst returns the indices of the experts outside the maxExperts
// heaviest.
func (r *run) worst(maxExperts int) []int {
	if maxExperts <= 0 || maxExperts > r.k {
		maxExperts = r.k
	}
	return r.ranked[:r.k-maxExperts]
}

// displayExperts returns the forecasts with sleeping experts' values
// replaced by the mixture prediction for that step. History keeps the
// raw forecasts; this substitution is display-only.
func (r *run) displayExperts() *mat.Dense {
	out := mat.NewDense(r.steps, r.k, nil)
	for t := 0; t < r.steps; t++ {
		for j := 0; j < r.k; j++ {
			if r.awakes.At(t, j) > 0 {
				out.Set(t, j, r.experts.At(t, j))
			} else {
				out.Set(t, j, r.predictions[t])
			}
		}
	}
	return out
}

// uniformMixture returns the prediction series of the uniform mixture
// over the raw forecasts.
func (r *run) uniformMixture() []float64 {
	out := make([]float64, r.steps)
	for t := 0; t < r.steps; t++ {
		for j := 0; j < r.k; j++ {
			out[t] += r.experts.At(t, j) / float64(r.k)
		}
	}
	return out
}

// chart is a drawing context with a data-space to pixel-space mapping.
type chart struct {
	dc         *gg.Context
	xMin, xMax float64
	yMin, yMax float64
}

func newChart(title string, xMin, xMax, yMin, yMax float64) *chart {
	if yMax == yMin {
		yMax = yMin + 1
	}
	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	dc.SetRGB(0, 0, 0)
	dc.DrawStringAnchored(title, width/2, marginY/2, 0.5, 0.5)

	// Axes
	dc.SetLineWidth(1.5)
	dc.DrawLine(marginX, marginY, marginX, height-marginY)
	dc.DrawLine(marginX, height-marginY, width-marginX, height-marginY)
	dc.Stroke()

	return &chart{dc: dc, xMin: xMin, xMax: xMax, yMin: yMin, yMax: yMax}
}

func (c *chart) px(x float64) float64 {
	return marginX + (x-c.xMin)/(c.xMax-c.xMin)*(width-2*marginX)
}

func (c *chart) py(y float64) float64 {
	return height - marginY - (y-c.yMin)/(c.yMax-c.yMin)*(height-2*marginY)
}

// line draws a data-space polyline.
func (c *chart) line(xs, ys []float64, col [3]float64, dashed bool) {
	c.dc.SetRGB(col[0], col[1], col[2])
	c.dc.SetLineWidth(1.5)
	if dashed {
		c.dc.SetDash(6, 4)
	}
	for i := range xs {
		if i == 0 {
			c.dc.MoveTo(c.px(xs[i]), c.py(ys[i]))
		} else {
			c.dc.LineTo(c.px(xs[i]), c.py(ys[i]))
		}
	}
	c.dc.Stroke()
	c.dc.SetDash()
}

// band fills the area between two data-space series.
func (c *chart) band(xs, lower, upper []float64, col [3]float64) {
	c.dc.SetRGB(col[0], col[1], col[2])
	for i := range xs {
		c.dc.LineTo(c.px(xs[i]), c.py(upper[i]))
	}
	for i := len(xs) - 1; i >= 0; i-- {
		c.dc.LineTo(c.px(xs[i]), c.py(lower[i]))
	}
	c.dc.ClosePath()
	c.dc.Fill()
}

// label writes a legend entry at the given slot.
func (c *chart) label(slot int, text string, col [3]float64) {
	x := marginX + 10
	y := marginY + 16*float64(slot+1)
	c.dc.SetRGB(col[0], col[1], col[2])
	c.dc.DrawRectangle(x, y-8, 10, 10)
	c.dc.Fill()
	c.dc.SetRGB(0, 0, 0)
	c.dc.DrawStringAnchored(text, x+16, y-3, 0, 0.5)
}

func (c *chart) save(filename string) error {
	if err := c.dc.SavePNG(filename); err != nil {
		return fmt.Errorf("plot: could not save chart: %v", err)
	}
	return nil
}

func steps(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i)
	}
	return out
}

func minMax(series ...[]float64) (float64, float64) {
	min, max := series[0][0], series[0][0]
	for _, s := range series {
		for _, v := range s {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
	}
	return min, max
}
