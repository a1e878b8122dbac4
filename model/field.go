// Package model holds the data shapes exchanged between the simulation core
// and its external collaborators: generated sample fields on the way in and
// the component types the core itself stores.
package model

import "fmt"

// Field is the bulk output of the world-generation collaborator: a square
// grid of scalar samples in named layers (height, temperature, rainfall,
// ...) plus a precomputed neighbour list per sample. The core never
// generates fields; it only consumes them for bulk entity insertion.
type Field struct {
	// Size is the side length of the square grid; the field holds
	// Size*Size samples.
	Size int

	// Layers maps a layer name to its per-sample values, indexed
	// row-major.
	Layers map[string][]float64

	// Neighbors lists, per sample, the indices of its spatial neighbours.
	// May be nil when adjacency is not wanted.
	Neighbors [][]int
}

// Len returns the number of samples in the field.
func (f *Field) Len() int {
	return f.Size * f.Size
}

// Layer returns the named sample layer.
func (f *Field) Layer(name string) ([]float64, error) {
	layer, ok := f.Layers[name]
	if !ok {
		return nil, fmt.Errorf("field has no layer %q", name)
	}
	return layer, nil
}

// Validate checks that every layer and the neighbour table match the
// declared grid size and that no neighbour index is out of range.
func (f *Field) Validate() error {
	if f.Size <= 0 {
		return fmt.Errorf("field size %d must be positive", f.Size)
	}
	n := f.Len()
	for name, layer := range f.Layers {
		if len(layer) != n {
			return fmt.Errorf("layer %q has %d samples, want %d", name, len(layer), n)
		}
	}
	if f.Neighbors != nil {
		if len(f.Neighbors) != n {
			return fmt.Errorf("neighbour table has %d rows, want %d", len(f.Neighbors), n)
		}
		for i, row := range f.Neighbors {
			for _, j := range row {
				if j < 0 || j >= n {
					return fmt.Errorf("sample %d lists neighbour %d, out of range", i, j)
				}
			}
		}
	}
	return nil
}
