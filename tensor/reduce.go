package tensor

import (
	"fmt"
)

// ReductionMode selects how a per-element result collapses to a single
// value. ReduceNone keeps the tensor as-is.
type ReductionMode int

const (
	ReduceMean ReductionMode = iota
	ReduceSum
	ReduceNone
)

func (r ReductionMode) String() string {
	switch r {
	case ReduceMean:
		return "mean"
	case ReduceSum:
		return "sum"
	case ReduceNone:
		return "none"
	default:
		return "unknown"
	}
}

// ParseReductionMode converts a configuration string into a ReductionMode.
func ParseReductionMode(s string) (ReductionMode, error) {
	switch s {
	case "mean":
		return ReduceMean, nil
	case "sum":
		return ReduceSum, nil
	case "none":
		return ReduceNone, nil
	default:
		return ReduceMean, fmt.Errorf("unknown reduction mode %q", s)
	}
}

// Sum collapses all elements to a zero-dimensional scalar tensor.
func Sum(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("sum requires a Float32 tensor, got %s", t.DType)
	}
	var total float32
	for _, v := range t.Data.([]float32) {
		total += v
	}
	return FromScalar(total), nil
}

// Mean collapses all elements to their arithmetic mean as a
// zero-dimensional scalar tensor.
func Mean(t *Tensor) (*Tensor, error) {
	s, err := Sum(t)
	if err != nil {
		return nil, err
	}
	s.Data.([]float32)[0] /= float32(t.NumElems)
	return s, nil
}

// Reduce applies the given reduction mode. ReduceNone returns the input
// unchanged.
func Reduce(t *Tensor, mode ReductionMode) (*Tensor, error) {
	switch mode {
	case ReduceMean:
		return Mean(t)
	case ReduceSum:
		return Sum(t)
	case ReduceNone:
		return t, nil
	default:
		return nil, fmt.Errorf("unknown reduction mode %d", mode)
	}
}

// SumDim sums a rank-2 tensor along the given dimension. Summing over dim 0
// collapses rows and yields a (cols,) tensor; dim 1 collapses columns and
// yields a (rows,) tensor.
func SumDim(t *Tensor, dim int) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("sum_dim requires a Float32 tensor, got %s", t.DType)
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("sum_dim requires a rank-2 tensor, got shape %v", t.Shape)
	}
	if dim != 0 && dim != 1 {
		return nil, fmt.Errorf("sum_dim: dimension %d out of range for rank-2 tensor", dim)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	td := t.Data.([]float32)

	if dim == 0 {
		out, err := NewTensor([]int{cols}, Float32, t.Device)
		if err != nil {
			return nil, err
		}
		od := out.Data.([]float32)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				od[j] += td[i*cols+j]
			}
		}
		return out, nil
	}

	out, err := NewTensor([]int{rows}, Float32, t.Device)
	if err != nil {
		return nil, err
	}
	od := out.Data.([]float32)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			od[i] += td[i*cols+j]
		}
	}
	return out, nil
}

// MeanDim averages a rank-2 tensor along the given dimension.
func MeanDim(t *Tensor, dim int) (*Tensor, error) {
	out, err := SumDim(t, dim)
	if err != nil {
		return nil, err
	}
	n := float32(t.Shape[dim])
	od := out.Data.([]float32)
	for i := range od {
		od[i] /= n
	}
	return out, nil
}
