package tensor

import (
	"fmt"
)

type DType int

const (
	Float32 DType = iota
	Int32
)

func (d DType) String() string {
	switch d {
	case Float32:
		return "Float32"
	case Int32:
		return "Int32"
	default:
		return "Unknown"
	}
}

// DeviceType records intended placement. All arithmetic in this package runs
// on the host; the tag exists so callers that wrap accelerators can track
// where a tensor is meant to live and move data explicitly.
type DeviceType int

const (
	CPU DeviceType = iota
	GPU
)

func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// Operation is a differentiable node in the computation graph. Forward
// records the inputs it consumed so Backward can route gradients to them.
type Operation interface {
	Forward(inputs ...*Tensor) (*Tensor, error)
	Backward(gradOut *Tensor) []*Tensor
	Inputs() []*Tensor
}

type Tensor struct {
	Shape        []int
	Strides      []int
	DType        DType
	Device       DeviceType
	Data         interface{}
	NumElems     int
	requiresGrad bool
	grad         *Tensor
	creator      Operation
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, dtype=%s, device=%s, elements=%d)",
		t.Shape, t.DType, t.Device, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// Creator returns the operation that produced this tensor, or nil for leaf
// tensors.
func (t *Tensor) Creator() Operation {
	return t.creator
}

func (t *Tensor) SetCreator(op Operation) {
	t.creator = op
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

// calculateNumElements treats the empty shape as a zero-dimensional scalar
// holding exactly one element.
func calculateNumElements(shape []int) int {
	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func shapesEqual(a, b []int) bool {
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
