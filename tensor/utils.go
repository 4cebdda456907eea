package tensor

import (
	"fmt"
)

// Item extracts the value of a single-element Float32 tensor.
func (t *Tensor) Item() (float32, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("item requires a single-element tensor, got shape %v", t.Shape)
	}
	if t.DType != Float32 {
		return 0, fmt.Errorf("item requires a Float32 tensor, got %s", t.DType)
	}
	return t.Data.([]float32)[0], nil
}

// IntItem extracts the value of a single-element Int32 tensor.
func (t *Tensor) IntItem() (int32, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("int item requires a single-element tensor, got shape %v", t.Shape)
	}
	if t.DType != Int32 {
		return 0, fmt.Errorf("int item requires an Int32 tensor, got %s", t.DType)
	}
	return t.Data.([]int32)[0], nil
}

// Float32s returns the backing data of a Float32 tensor.
func (t *Tensor) Float32s() ([]float32, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("tensor holds %s data, not Float32", t.DType)
	}
	return t.Data.([]float32), nil
}

// Int32s returns the backing data of an Int32 tensor.
func (t *Tensor) Int32s() ([]int32, error) {
	if t.DType != Int32 {
		return nil, fmt.Errorf("tensor holds %s data, not Int32", t.DType)
	}
	return t.Data.([]int32), nil
}

// Clone returns a deep copy of the tensor data. The copy keeps the
// requires-grad flag but is detached from any computation graph.
func (t *Tensor) Clone() *Tensor {
	shapeCopy := make([]int, len(t.Shape))
	copy(shapeCopy, t.Shape)

	var dataCopy interface{}
	switch d := t.Data.(type) {
	case []float32:
		c := make([]float32, len(d))
		copy(c, d)
		dataCopy = c
	case []int32:
		c := make([]int32, len(d))
		copy(c, d)
		dataCopy = c
	}

	return &Tensor{
		Shape:        shapeCopy,
		Strides:      calculateStrides(shapeCopy),
		DType:        t.DType,
		Device:       t.Device,
		Data:         dataCopy,
		NumElems:     t.NumElems,
		requiresGrad: t.requiresGrad,
	}
}

// Reshape returns a tensor with a new shape over the same data. The element
// count must be preserved.
func (t *Tensor) Reshape(shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	if calculateNumElements(shape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape %d elements into shape %v", t.NumElems, shape)
	}

	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)
	return &Tensor{
		Shape:        shapeCopy,
		Strides:      calculateStrides(shapeCopy),
		DType:        t.DType,
		Device:       t.Device,
		Data:         t.Data,
		NumElems:     t.NumElems,
		requiresGrad: t.requiresGrad,
	}, nil
}

// Unsqueeze inserts a size-1 dimension at the given position, turning for
// example a (C,) tensor into a (1, C) batch of one.
func (t *Tensor) Unsqueeze(dim int) (*Tensor, error) {
	if dim < 0 || dim > len(t.Shape) {
		return nil, fmt.Errorf("unsqueeze dimension %d out of range for shape %v", dim, t.Shape)
	}
	shape := make([]int, 0, len(t.Shape)+1)
	shape = append(shape, t.Shape[:dim]...)
	shape = append(shape, 1)
	shape = append(shape, t.Shape[dim:]...)
	return t.Reshape(shape)
}

// Squeeze removes a size-1 dimension at the given position.
func (t *Tensor) Squeeze(dim int) (*Tensor, error) {
	if dim < 0 || dim >= len(t.Shape) {
		return nil, fmt.Errorf("squeeze dimension %d out of range for shape %v", dim, t.Shape)
	}
	if t.Shape[dim] != 1 {
		return nil, fmt.Errorf("squeeze dimension %d has size %d, expected 1", dim, t.Shape[dim])
	}
	shape := make([]int, 0, len(t.Shape)-1)
	shape = append(shape, t.Shape[:dim]...)
	shape = append(shape, t.Shape[dim+1:]...)
	return t.Reshape(shape)
}

// At reads a single Float32 element by multi-dimensional index.
func (t *Tensor) At(indices ...int) (float32, error) {
	offset, err := t.offsetOf(indices)
	if err != nil {
		return 0, err
	}
	if t.DType != Float32 {
		return 0, fmt.Errorf("at requires a Float32 tensor, got %s", t.DType)
	}
	return t.Data.([]float32)[offset], nil
}

// SetAt writes a single Float32 element by multi-dimensional index.
func (t *Tensor) SetAt(value float32, indices ...int) error {
	offset, err := t.offsetOf(indices)
	if err != nil {
		return err
	}
	if t.DType != Float32 {
		return fmt.Errorf("set at requires a Float32 tensor, got %s", t.DType)
	}
	t.Data.([]float32)[offset] = value
	return nil
}

func (t *Tensor) offsetOf(indices []int) (int, error) {
	if len(indices) != len(t.Shape) {
		return 0, fmt.Errorf("expected %d indices for shape %v, got %d", len(t.Shape), t.Shape, len(indices))
	}
	offset := 0
	for i, idx := range indices {
		if idx < 0 || idx >= t.Shape[i] {
			return 0, fmt.Errorf("index %d out of range for dimension %d of shape %v", idx, i, t.Shape)
		}
		offset += idx * t.Strides[i]
	}
	return offset, nil
}

// SetData overwrites the tensor's values in place. The replacement must
// match the tensor's dtype and element count.
func (t *Tensor) SetData(data interface{}) error {
	switch d := data.(type) {
	case []float32:
		if t.DType != Float32 {
			return fmt.Errorf("cannot set Float32 data on %s tensor", t.DType)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match %d elements", len(d), t.NumElems)
		}
		copy(t.Data.([]float32), d)
	case []int32:
		if t.DType != Int32 {
			return fmt.Errorf("cannot set Int32 data on %s tensor", t.DType)
		}
		if len(d) != t.NumElems {
			return fmt.Errorf("data length %d does not match %d elements", len(d), t.NumElems)
		}
		copy(t.Data.([]int32), d)
	default:
		return fmt.Errorf("unsupported data type %T", data)
	}
	return nil
}

// ToDevice retags the tensor for the given device. Data stays on the host;
// the tag records placement intent for callers that bridge to accelerators.
func (t *Tensor) ToDevice(device DeviceType) *Tensor {
	t.Device = device
	return t
}

// ToCPU retags the tensor for host placement.
func (t *Tensor) ToCPU() *Tensor {
	return t.ToDevice(CPU)
}

// Equal reports whether two tensors hold the same shape, dtype and data.
func Equal(a, b *Tensor) bool {
	if a.DType != b.DType || !shapesEqual(a.Shape, b.Shape) {
		return false
	}
	switch ad := a.Data.(type) {
	case []float32:
		bd := b.Data.([]float32)
		for i := range ad {
			if ad[i] != bd[i] {
				return false
			}
		}
	case []int32:
		bd := b.Data.([]int32)
		for i := range ad {
			if ad[i] != bd[i] {
				return false
			}
		}
	}
	return true
}
