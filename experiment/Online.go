// Package experiment implements functionality for running an
// aggregation procedure over a stored stream of observations.
package experiment

import (
	"fmt"
	"time"

	"github.com/samuelfneumann/progressbar"
	"github.com/tpaquier/opera/mixture"
	"gonum.org/v1/gonum/mat"
)

// Online feeds a stored sequence of forecasts and targets to a Mixture
// in order, in fixed-size batches, displaying progress along the way.
type Online struct {
	mixture *mixture.Mixture
	experts *mixture.Frame
	targets []float64
	awake   *mat.Dense

	batchSize int
	progBar   *progressbar.ProgressBar
}

// NewOnline creates and returns a new online run feeding the given
// observations to the mixture. The awake matrix may be nil. Batches of
// batchSize rows are handed to the engine at a time; a non-positive
// batchSize processes everything in a single batch.
func NewOnline(m *mixture.Mixture, experts *mixture.Frame,
	targets []float64, awake *mat.Dense, batchSize int) *Online {
	if batchSize <= 0 {
		batchSize = len(targets)
	}

	// Create a progress bar for watching run progress
	progBar := progressbar.New(50, len(targets), time.Second, true)
	progBar.Display()

	return &Online{
		mixture:   m,
		experts:   experts,
		targets:   targets,
		awake:     awake,
		batchSize: batchSize,
		progBar:   progBar,
	}
}

// Run feeds every observation to the mixture and returns the mean
// empirical loss once the stream is exhausted.
func (o *Online) Run() (float64, error) {
	rows := o.experts.Rows()
	if rows != len(o.targets) {
		return 0, fmt.Errorf("run: %v forecast rows for %v targets",
			rows, len(o.targets))
	}

	k := len(o.experts.Names())
	for start := 0; start < rows; start += o.batchSize {
		end := start + o.batchSize
		if end > rows {
			end = rows
		}

		frame, err := o.experts.SliceRows(start, end)
		if err != nil {
			return 0, fmt.Errorf("run: %v", err)
		}

		var awake *mat.Dense
		if o.awake != nil {
			awake = mat.DenseCopyOf(o.awake.Slice(start, end, 0, k))
		}

		if err := o.mixture.Update(frame, o.targets[start:end],
			awake); err != nil {
			return 0, fmt.Errorf("run: %v", err)
		}
		for i := start; i < end; i++ {
			o.progBar.Increment()
		}
	}

	o.progBar.AddMessage(fmt.Sprintf("Mean loss: %v", o.mixture.Loss()))
	return o.mixture.Loss(), nil
}
