package mixture

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Frame pairs a matrix of per-step values with the expert name of each
// column. It is the unit of exchange for forecasts: the engine matches
// columns by name, not position.
type Frame struct {
	names []string
	data  *mat.Dense
}

// NewFrame creates a Frame from column names and a matrix with one
// column per name. Names must be unique.
func NewFrame(names []string, data *mat.Dense) (*Frame, error) {
	_, c := data.Dims()
	if c != len(names) {
		return nil, fmt.Errorf("newframe: %w: expected %v named "+
			"columns, got %v", ErrBadExperts, len(names), c)
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, fmt.Errorf("newframe: %w: duplicate column %q",
				ErrBadExperts, name)
		}
		seen[name] = true
	}
	return &Frame{names: append([]string(nil), names...), data: data}, nil
}

// Names returns the column names in order.
func (f *Frame) Names() []string {
	return append([]string(nil), f.names...)
}

// Rows returns the number of rows.
func (f *Frame) Rows() int {
	r, _ := f.data.Dims()
	return r
}

// SliceRows returns a view of the frame restricted to rows [from, to).
func (f *Frame) SliceRows(from, to int) (*Frame, error) {
	r, c := f.data.Dims()
	if from < 0 || to > r || from > to {
		return nil, fmt.Errorf("slicerows: rows [%v, %v) out of range "+
			"for %v rows", from, to, r)
	}
	view := f.data.Slice(from, to, 0, c).(*mat.Dense)
	return &Frame{names: f.names, data: view}, nil
}

// align returns the frame's values with columns reordered to the given
// name order. The frame must hold exactly the given names.
func (f *Frame) align(names []string) (*mat.Dense, error) {
	if len(names) != len(f.names) {
		return nil, fmt.Errorf("align: %w: expected columns %v, got %v",
			ErrUnknownExpert, names, f.names)
	}
	position := make(map[string]int, len(f.names))
	for i, name := range f.names {
		position[name] = i
	}

	r, _ := f.data.Dims()
	out := mat.NewDense(r, len(names), nil)
	col := make([]float64, r)
	for j, name := range names {
		from, ok := position[name]
		if !ok {
			return nil, fmt.Errorf("align: %w: expected columns %v, "+
				"got %v", ErrUnknownExpert, names, f.names)
		}
		mat.Col(col, from, f.data)
		out.SetCol(j, col)
	}
	return out, nil
}
