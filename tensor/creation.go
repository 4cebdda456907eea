package tensor

import (
	"fmt"
	"math/rand"
	"time"
)

// globalRng drives all random tensor creation. Reseed with SetRandomSeed for
// reproducible runs. Not safe for concurrent use; seed once before spawning
// goroutines that sample.
var globalRng = rand.New(rand.NewSource(time.Now().UnixNano()))

// SetRandomSeed reseeds the package random source so that noise and label
// sampling become deterministic.
func SetRandomSeed(seed int64) {
	globalRng = rand.New(rand.NewSource(seed))
}

// NewTensor creates a zero-filled tensor with the given shape, dtype and
// device placement. An empty shape produces a zero-dimensional scalar.
func NewTensor(shape []int, dtype DType, device DeviceType) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)

	var data interface{}
	switch dtype {
	case Float32:
		data = make([]float32, numElems)
	case Int32:
		data = make([]int32, numElems)
	default:
		return nil, fmt.Errorf("unsupported dtype: %v", dtype)
	}

	shapeCopy := make([]int, len(shape))
	copy(shapeCopy, shape)

	return &Tensor{
		Shape:    shapeCopy,
		Strides:  calculateStrides(shapeCopy),
		DType:    dtype,
		Device:   device,
		Data:     data,
		NumElems: numElems,
	}, nil
}

// Zeros creates a Float32 tensor filled with zeros.
func Zeros(shape []int) (*Tensor, error) {
	return NewTensor(shape, Float32, CPU)
}

// Ones creates a Float32 tensor filled with ones.
func Ones(shape []int) (*Tensor, error) {
	return Full(shape, 1.0)
}

// Full creates a Float32 tensor filled with the given value.
func Full(shape []int, value float32) (*Tensor, error) {
	t, err := NewTensor(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	data := t.Data.([]float32)
	for i := range data {
		data[i] = value
	}
	return t, nil
}

// FromSlice creates a Float32 tensor from existing data. The slice is copied,
// so later writes to data do not alias the tensor.
func FromSlice(data []float32, shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	numElems := calculateNumElements(shape)
	if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, numElems)
	}

	t, err := NewTensor(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	copy(t.Data.([]float32), data)
	return t, nil
}

// FromScalar creates a zero-dimensional tensor holding a single value.
func FromScalar(value float32) *Tensor {
	return &Tensor{
		Shape:    []int{},
		Strides:  []int{},
		DType:    Float32,
		Device:   CPU,
		Data:     []float32{value},
		NumElems: 1,
	}
}

// FromIntSlice creates an Int32 tensor from existing data.
func FromIntSlice(data []int32, shape []int) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}
	numElems := calculateNumElements(shape)
	if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match shape %v (%d elements)",
			len(data), shape, numElems)
	}

	t, err := NewTensor(shape, Int32, CPU)
	if err != nil {
		return nil, err
	}
	copy(t.Data.([]int32), data)
	return t, nil
}

// RandomNormal creates a Float32 tensor with values drawn from a normal
// distribution with the given mean and standard deviation.
func RandomNormal(shape []int, mean, std float32) (*Tensor, error) {
	t, err := NewTensor(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	data := t.Data.([]float32)
	for i := range data {
		data[i] = float32(globalRng.NormFloat64())*std + mean
	}
	return t, nil
}

// RandomUniform creates a Float32 tensor with values drawn uniformly from
// [low, high).
func RandomUniform(shape []int, low, high float32) (*Tensor, error) {
	if high <= low {
		return nil, fmt.Errorf("invalid range [%v, %v): high must exceed low", low, high)
	}
	t, err := NewTensor(shape, Float32, CPU)
	if err != nil {
		return nil, err
	}
	data := t.Data.([]float32)
	for i := range data {
		data[i] = low + globalRng.Float32()*(high-low)
	}
	return t, nil
}

// RandomInt creates an Int32 tensor with values drawn uniformly from
// [low, high). Used for sampling class labels.
func RandomInt(shape []int, low, high int32) (*Tensor, error) {
	if high <= low {
		return nil, fmt.Errorf("invalid range [%d, %d): high must exceed low", low, high)
	}
	t, err := NewTensor(shape, Int32, CPU)
	if err != nil {
		return nil, err
	}
	data := t.Data.([]int32)
	span := high - low
	for i := range data {
		data[i] = low + globalRng.Int31n(span)
	}
	return t, nil
}
