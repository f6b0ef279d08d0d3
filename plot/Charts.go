package plot

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Weights renders a stacked chart of the weights associated with each
// expert over time. At most maxExperts experts are drawn individually,
// by mean weight; the remainder is grouped as "others".
func Weights(src Source, maxExperts int, filename string) error {
	r, err := newRun(src)
	if err != nil {
		return err
	}
	best := r.best(maxExperts)
	worst := r.worst(maxExperts)

	xs := steps(r.steps)
	lower := make([]float64, r.steps)
	upper := make([]float64, r.steps)

	c := newChart("Weights associated with the experts", 0,
		float64(r.steps-1), 0, 1)

	slot := 0
	if len(worst) > 0 {
		for t := 0; t < r.steps; t++ {
			sum := 0.0
			for _, j := range worst {
				sum += r.weights.At(t, j)
			}
			upper[t] = lower[t] + sum
		}
		grey := [3]float64{0.6, 0.6, 0.6}
		c.band(xs, lower, upper, grey)
		c.label(slot, "others", grey)
		slot++
		copy(lower, upper)
	}
	for _, j := range best {
		for t := 0; t < r.steps; t++ {
			upper[t] = lower[t] + r.weights.At(t, j)
		}
		c.band(xs, lower, upper, colour(j))
		c.label(slot, r.names[j], colour(j))
		slot++
		copy(lower, upper)
	}
	return c.save(filename)
}

// BoxplotWeights renders a box-and-whisker summary of each displayed
// expert's weight distribution, plus the lightest and heaviest of the
// remaining experts.
func BoxplotWeights(src Source, maxExperts int, filename string) error {
	r, err := newRun(src)
	if err != nil {
		return err
	}
	best := r.best(maxExperts)
	worst := r.worst(maxExperts)

	type box struct {
		name   string
		col    [3]float64
		values []float64
	}
	boxes := make([]box, 0, len(best)+2)
	column := func(j int) []float64 {
		out := make([]float64, r.steps)
		for t := 0; t < r.steps; t++ {
			out[t] = r.weights.At(t, j)
		}
		return out
	}
	for _, j := range best {
		boxes = append(boxes, box{r.names[j], colour(j), column(j)})
	}
	if len(worst) > 0 {
		j := worst[0]
		boxes = append(boxes,
			box{"worst others", [3]float64{0.5, 0.5, 0.5}, column(j)})
	}
	if len(worst) > 1 {
		j := worst[len(worst)-1]
		boxes = append(boxes,
			box{"best others", [3]float64{0.7, 0.7, 0.7}, column(j)})
	}

	c := newChart("Weights associated with the experts", 0,
		float64(len(boxes)), 0, 1)
	boxWidth := 0.6
	for i, b := range boxes {
		sorted := append([]float64(nil), b.values...)
		sort.Float64s(sorted)
		q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
		q2 := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
		lo := sorted[0]
		hi := sorted[len(sorted)-1]

		mid := float64(i) + 0.5
		left, right := mid-boxWidth/2, mid+boxWidth/2

		c.dc.SetRGB(b.col[0], b.col[1], b.col[2])
		c.dc.DrawRectangle(c.px(left), c.py(q3),
			c.px(right)-c.px(left), c.py(q1)-c.py(q3))
		c.dc.Fill()

		c.dc.SetRGB(0, 0, 0)
		c.dc.SetLineWidth(1.5)
		c.dc.DrawLine(c.px(left), c.py(q2), c.px(right), c.py(q2))
		c.dc.DrawLine(c.px(mid), c.py(q3), c.px(mid), c.py(hi))
		c.dc.DrawLine(c.px(mid), c.py(q1), c.px(mid), c.py(lo))
		c.dc.Stroke()

		c.dc.DrawStringAnchored(b.name, c.px(mid), height-marginY+16,
			0.5, 0.5)
	}
	return c.save(filename)
}

// CumulativeResiduals renders the running sum of target minus
// prediction for each displayed expert, the aggregated mixture and the
// uniform mixture.
func CumulativeResiduals(src Source, maxExperts int,
	filename string) error {
	r, err := newRun(src)
	if err != nil {
		return err
	}
	residual := func(preds []float64) []float64 {
		out := make([]float64, r.steps)
		sum := 0.0
		for t := 0; t < r.steps; t++ {
			sum += r.targets[t] - preds[t]
			out[t] = sum
		}
		return out
	}
	names, cols, series := r.lineSeries(maxExperts)
	for i := range series {
		series[i] = residual(series[i])
	}

	yMin, yMax := minMax(series...)
	c := newChart("Cumulative Residuals", 0, float64(r.steps-1),
		yMin, yMax)
	xs := steps(r.steps)
	for i := range series {
		c.line(xs, series[i], cols[i], false)
		c.label(i, names[i], cols[i])
	}
	return c.save(filename)
}

// DynamicAverageLoss renders the running mean loss of each displayed
// expert, the aggregated mixture and the uniform mixture.
func DynamicAverageLoss(src Source, maxExperts int,
	filename string) error {
	r, err := newRun(src)
	if err != nil {
		return err
	}
	avgLoss := func(preds []float64) []float64 {
		out := make([]float64, r.steps)
		sum := 0.0
		for t := 0; t < r.steps; t++ {
			sum += r.lossFn(preds[t], r.targets[t])
			out[t] = sum / float64(t+1)
		}
		return out
	}
	names, cols, series := r.lineSeries(maxExperts)
	for i := range series {
		series[i] = avgLoss(series[i])
	}

	yMin, yMax := minMax(series...)
	c := newChart("Dynamic average loss", 0, float64(r.steps-1),
		yMin, yMax)
	xs := steps(r.steps)
	for i := range series {
		c.line(xs, series[i], cols[i], false)
		c.label(i, names[i], cols[i])
	}
	return c.save(filename)
}

// AverageLoss renders the mean loss suffered by each displayed expert,
// the aggregated mixture and the uniform mixture as bars sorted from
// best to worst.
func AverageLoss(src Source, maxExperts int, filename string) error {
	r, err := newRun(src)
	if err != nil {
		return err
	}
	names, cols, series := r.lineSeries(maxExperts)

	type bar struct {
		name string
		col  [3]float64
		mean float64
	}
	bars := make([]bar, len(series))
	for i, preds := range series {
		sum := 0.0
		for t := 0; t < r.steps; t++ {
			sum += r.lossFn(preds[t], r.targets[t])
		}
		bars[i] = bar{names[i], cols[i], sum / float64(r.steps)}
	}
	sort.Slice(bars, func(a, b int) bool {
		return bars[a].mean < bars[b].mean
	})

	yMax := bars[len(bars)-1].mean
	c := newChart("Average loss suffered by the experts", 0,
		float64(len(bars)), 0, yMax)
	barWidth := 0.6
	for i, b := range bars {
		mid := float64(i) + 0.5
		left := mid - barWidth/2
		c.dc.SetRGB(b.col[0], b.col[1], b.col[2])
		c.dc.DrawRectangle(c.px(left), c.py(b.mean),
			c.px(left+barWidth)-c.px(left), c.py(0)-c.py(b.mean))
		c.dc.Fill()
		c.dc.SetRGB(0, 0, 0)
		c.dc.DrawStringAnchored(b.name, c.px(mid), height-marginY+16,
			0.5, 0.5)
	}
	return c.save(filename)
}

// Contribution renders each displayed expert's weighted contribution
// to the mixture prediction as a stacked chart, with the prediction
// itself overlaid.
func Contribution(src Source, maxExperts int, filename string) error {
	r, err := newRun(src)
	if err != nil {
		return err
	}
	best := r.best(maxExperts)
	worst := r.worst(maxExperts)

	xs := steps(r.steps)
	lower := make([]float64, r.steps)
	upper := make([]float64, r.steps)

	yMin, yMax := minMax(r.predictions)
	if yMin > 0 {
		yMin = 0
	}
	c := newChart("Contribution of each expert to the prediction", 0,
		float64(r.steps-1), yMin, yMax)

	slot := 0
	if len(worst) > 0 {
		for t := 0; t < r.steps; t++ {
			sum := 0.0
			for _, j := range worst {
				sum += r.weights.At(t, j)
			}
			upper[t] = lower[t] + sum*r.predictions[t]
		}
		grey := [3]float64{0.6, 0.6, 0.6}
		c.band(xs, lower, upper, grey)
		c.label(slot, "others", grey)
		slot++
		copy(lower, upper)
	}
	for _, j := range best {
		for t := 0; t < r.steps; t++ {
			upper[t] = lower[t] + r.weights.At(t, j)*r.predictions[t]
		}
		c.band(xs, lower, upper, colour(j))
		c.label(slot, r.names[j], colour(j))
		slot++
		copy(lower, upper)
	}

	black := [3]float64{0, 0, 0}
	c.line(xs, r.predictions, black, true)
	c.label(slot, "Predictions", black)
	return c.save(filename)
}

// All renders every chart, deriving file names from the given prefix.
func All(src Source, maxExperts int, prefix string) error {
	charts := []struct {
		name   string
		render func(Source, int, string) error
	}{
		{"weights", Weights},
		{"boxplot_weights", BoxplotWeights},
		{"dynamic_average_loss", DynamicAverageLoss},
		{"cumulative_residuals", CumulativeResiduals},
		{"average_loss", AverageLoss},
		{"contribution", Contribution},
	}
	for _, ch := range charts {
		filename := fmt.Sprintf("%v_%v.png", prefix, ch.name)
		if err := ch.render(src, maxExperts, filename); err != nil {
			return err
		}
	}
	return nil
}

// lineSeries collects the prediction series the line and bar charts
// compare: the displayed experts (sleeping steps replaced by the
// mixture prediction), the lightest and heaviest of the remaining
// experts, the aggregated mixture and the uniform mixture.
func (r *run) lineSeries(maxExperts int) ([]string, [][3]float64,
	[][]float64) {
	best := r.best(maxExperts)
	worst := r.worst(maxExperts)
	display := r.displayExperts()

	column := func(j int) []float64 {
		out := make([]float64, r.steps)
		for t := 0; t < r.steps; t++ {
			out[t] = display.At(t, j)
		}
		return out
	}

	var names []string
	var cols [][3]float64
	var series [][]float64
	for _, j := range best {
		names = append(names, r.names[j])
		cols = append(cols, colour(j))
		series = append(series, column(j))
	}
	if len(worst) > 0 {
		names = append(names, "worst others")
		cols = append(cols, [3]float64{0.5, 0.5, 0.5})
		series = append(series, column(worst[0]))
	}
	if len(worst) > 1 {
		names = append(names, "best others")
		cols = append(cols, [3]float64{0.7, 0.7, 0.7})
		series = append(series, column(worst[len(worst)-1]))
	}
	names = append(names, r.model, "Uniform")
	cols = append(cols, [3]float64{0, 0, 0}, [3]float64{0.3, 0.3, 0.3})
	series = append(series, r.predictions, r.uniformMixture())
	return names, cols, series
}
