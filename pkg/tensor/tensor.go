// Package tensor provides a dense row-major float64 tensor used to move
// batches between the dataset loader, models and loss functions.
package tensor

import (
	"fmt"
	"strings"
)

// Tensor is a dense row-major array with an explicit shape.
type Tensor struct {
	shape []int
	data  []float64
}

// New allocates a zeroed tensor with the given shape.
func New(shape ...int) (Tensor, error) {
	n, err := volume(shape)
	if err != nil {
		return Tensor{}, err
	}
	return Tensor{shape: append([]int(nil), shape...), data: make([]float64, n)}, nil
}

// FromData wraps data with the given shape. The slice is not copied.
func FromData(data []float64, shape ...int) (Tensor, error) {
	n, err := volume(shape)
	if err != nil {
		return Tensor{}, err
	}
	if n != len(data) {
		return Tensor{}, fmt.Errorf("tensor: shape %v needs %d values, got %d", shape, n, len(data))
	}
	return Tensor{shape: append([]int(nil), shape...), data: data}, nil
}

// MustNew is New for shapes known to be valid.
func MustNew(shape ...int) Tensor {
	t, err := New(shape...)
	if err != nil {
		panic(err)
	}
	return t
}

func volume(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("tensor: empty shape")
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("tensor: invalid dimension %d in %v", d, shape)
		}
		n *= d
	}
	return n, nil
}

// Shape returns a copy of the dimensions.
func (t Tensor) Shape() []int { return append([]int(nil), t.shape...) }

// Rank is the number of dimensions.
func (t Tensor) Rank() int { return len(t.shape) }

// Dim returns the size of dimension i.
func (t Tensor) Dim(i int) int { return t.shape[i] }

// Len is the total number of values.
func (t Tensor) Len() int { return len(t.data) }

// Data exposes the backing slice.
func (t Tensor) Data() []float64 { return t.data }

// Row returns the contiguous block for index i along the first dimension.
func (t Tensor) Row(i int) []float64 {
	stride := len(t.data) / t.shape[0]
	return t.data[i*stride : (i+1)*stride]
}

// At returns the value at the given multi-index.
func (t Tensor) At(idx ...int) float64 { return t.data[t.offset(idx)] }

// Set writes v at the given multi-index.
func (t Tensor) Set(v float64, idx ...int) { t.data[t.offset(idx)] = v }

func (t Tensor) offset(idx []int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("tensor: index %v for shape %v", idx, t.shape))
	}
	off := 0
	for i, x := range idx {
		if x < 0 || x >= t.shape[i] {
			panic(fmt.Sprintf("tensor: index %v out of range for shape %v", idx, t.shape))
		}
		off = off*t.shape[i] + x
	}
	return off
}

// Stack concatenates equally shaped samples along a new leading batch dimension.
func Stack(samples []Tensor) (Tensor, error) {
	if len(samples) == 0 {
		return Tensor{}, fmt.Errorf("tensor: stack of zero samples")
	}
	inner := samples[0].shape
	out := make([]float64, 0, len(samples)*samples[0].Len())
	for i, s := range samples {
		if !SameShape(s.shape, inner) {
			return Tensor{}, fmt.Errorf("tensor: sample %d has shape %v, want %v", i, s.shape, inner)
		}
		out = append(out, s.data...)
	}
	return FromData(out, append([]int{len(samples)}, inner...)...)
}

// SameShape reports whether two shapes are identical.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func (t Tensor) String() string {
	dims := make([]string, len(t.shape))
	for i, d := range t.shape {
		dims[i] = fmt.Sprint(d)
	}
	return "Tensor[" + strings.Join(dims, "x") + "]"
}
