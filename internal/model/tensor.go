package model

import (
	"errors"
	"fmt"
)

var (
	// ErrShape is returned when a tensor or parameter has an unexpected shape.
	ErrShape = errors.New("shape mismatch")

	// ErrMissingParameter is returned when a checkpoint lacks a required key.
	ErrMissingParameter = errors.New("missing parameter")
)

// Tensor is a dense row-major float32 array.
type Tensor struct {
	Shape []int
	Data  []float32
}

// NewTensor allocates a zero tensor of the given shape.
func NewTensor(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float32, volume(shape))}
}

// FromData wraps data in a tensor of the given shape.
func FromData(data []float32, shape ...int) (*Tensor, error) {
	if volume(shape) != len(data) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShape, len(data), shape)
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}, nil
}

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.Data) }

// Batch returns the size of the leading dimension.
func (t *Tensor) Batch() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Shape: append([]int(nil), t.Shape...),
		Data:  append([]float32(nil), t.Data...),
	}
}

func volume(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}
