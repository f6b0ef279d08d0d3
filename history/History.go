// Package history implements the append-only log of an aggregation
// run. One row is recorded per processed observation: the weight
// vector used at that step, the mixture prediction, the raw expert
// forecasts, the target and the activation mask. Downstream consumers
// (diagnostics, persistence) read runs exclusively through this log.
package history

import (
	"encoding/gob"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// History holds the buffers of a run. Buffers grow by one row per
// observation and are never mutated afterwards.
type History struct {
	k int

	// Row-major T x K buffers
	weights []float64
	experts []float64
	awakes  []float64

	predictions []float64
	targets     []float64
}

// New creates an empty History for k experts.
func New(k int) *History {
	return &History{k: k}
}

// Append records one processed observation. The weight, forecast and
// activation slices must have one entry per expert.
func (h *History) Append(weights, experts, awake []float64,
	prediction, target float64) error {
	if len(weights) != h.k || len(experts) != h.k || len(awake) != h.k {
		return fmt.Errorf("append: expected rows of %v experts, got "+
			"%v/%v/%v", h.k, len(weights), len(experts), len(awake))
	}
	h.weights = append(h.weights, weights...)
	h.experts = append(h.experts, experts...)
	h.awakes = append(h.awakes, awake...)
	h.predictions = append(h.predictions, prediction)
	h.targets = append(h.targets, target)
	return nil
}

// Len returns the number of recorded observations.
func (h *History) Len() int {
	return len(h.predictions)
}

// K returns the number of experts.
func (h *History) K() int {
	return h.k
}

// Weights returns the recorded weight rows as a T x K matrix.
func (h *History) Weights() *mat.Dense {
	return h.matrix(h.weights)
}

// Experts returns the recorded forecast rows as a T x K matrix.
func (h *History) Experts() *mat.Dense {
	return h.matrix(h.experts)
}

// Awakes returns the recorded activation rows as a T x K matrix.
func (h *History) Awakes() *mat.Dense {
	return h.matrix(h.awakes)
}

// Predictions returns a copy of the recorded mixture predictions.
func (h *History) Predictions() []float64 {
	out := make([]float64, len(h.predictions))
	copy(out, h.predictions)
	return out
}

// Targets returns a copy of the recorded targets.
func (h *History) Targets() []float64 {
	out := make([]float64, len(h.targets))
	copy(out, h.targets)
	return out
}

func (h *History) matrix(buffer []float64) *mat.Dense {
	if h.Len() == 0 {
		return &mat.Dense{}
	}
	data := make([]float64, len(buffer))
	copy(data, buffer)
	return mat.NewDense(h.Len(), h.k, data)
}

// record mirrors History with exported fields for gob encoding.
type record struct {
	K                        int
	Weights, Experts, Awakes []float64
	Predictions, Targets     []float64
}

// Save writes the History to disk.
func (h *History) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	err = en.Encode(record{
		K:           h.k,
		Weights:     h.weights,
		Experts:     h.experts,
		Awakes:      h.awakes,
		Predictions: h.predictions,
		Targets:     h.targets,
	})
	if err != nil {
		return fmt.Errorf("save: could not encode history: %v", err)
	}
	return nil
}

// Load reads a History previously written with Save.
func Load(filename string) (*History, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("load: could not open file: %v", err)
	}
	defer file.Close()

	var rec record
	de := gob.NewDecoder(file)
	if err := de.Decode(&rec); err != nil {
		return nil, fmt.Errorf("load: could not decode history: %v", err)
	}
	return &History{
		k:           rec.K,
		weights:     rec.Weights,
		experts:     rec.Experts,
		awakes:      rec.Awakes,
		predictions: rec.Predictions,
		targets:     rec.Targets,
	}, nil
}
