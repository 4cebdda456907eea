// Package dataset serves training samples as tensors.
package dataset

import (
	"fmt"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// Dataset is the contract batch loaders consume.
type Dataset interface {
	Len() int
	Sample(index int) (*tensor.Tensor, int32, error)
}

// TensorDataset serves samples from an in-memory (N, ...) tensor with an
// optional Int32 label vector of shape (N,). Unlabeled datasets report
// label zero for every sample.
type TensorDataset struct {
	samples *tensor.Tensor
	labels  *tensor.Tensor
}

// NewTensorDataset wraps preloaded tensors as a dataset.
func NewTensorDataset(samples, labels *tensor.Tensor) (*TensorDataset, error) {
	if samples == nil || len(samples.Shape) < 2 {
		return nil, fmt.Errorf("dataset: samples must be a batched tensor of rank 2 or higher")
	}
	if samples.DType != tensor.Float32 {
		return nil, fmt.Errorf("dataset: samples must be Float32, got %s", samples.DType)
	}
	n := samples.Shape[0]
	if n == 0 {
		return nil, fmt.Errorf("dataset: samples tensor is empty")
	}
	if labels != nil {
		if labels.DType != tensor.Int32 {
			return nil, fmt.Errorf("dataset: labels must be Int32, got %s", labels.DType)
		}
		if len(labels.Shape) != 1 || labels.Shape[0] != n {
			return nil, fmt.Errorf("dataset: labels shape %v does not match %d samples", labels.Shape, n)
		}
	}
	return &TensorDataset{samples: samples, labels: labels}, nil
}

func (d *TensorDataset) Len() int {
	return d.samples.Shape[0]
}

func (d *TensorDataset) Sample(index int) (*tensor.Tensor, int32, error) {
	n := d.samples.Shape[0]
	if index < 0 || index >= n {
		return nil, 0, fmt.Errorf("dataset: index %d out of range [0, %d)", index, n)
	}

	sampleShape := make([]int, len(d.samples.Shape)-1)
	copy(sampleShape, d.samples.Shape[1:])
	size := d.samples.NumElems / n

	out, err := tensor.NewTensor(sampleShape, tensor.Float32, d.samples.Device)
	if err != nil {
		return nil, 0, err
	}
	copy(out.Data.([]float32), d.samples.Data.([]float32)[index*size:(index+1)*size])

	var label int32
	if d.labels != nil {
		label = d.labels.Data.([]int32)[index]
	}
	return out, label, nil
}
