package tensor

import (
	"fmt"
	"math"
)

// Binary operations support three shape combinations: identical shapes,
// one zero-dimensional (scalar) operand, and a trailing-dimension row
// vector broadcast against a higher-rank operand. Anything else errors.

func elementwiseBinary(a, b *Tensor, name string, fn func(x, y float32) float32) (*Tensor, error) {
	if a.DType != Float32 || b.DType != Float32 {
		return nil, fmt.Errorf("%s requires Float32 tensors, got %s and %s", name, a.DType, b.DType)
	}

	switch {
	case shapesEqual(a.Shape, b.Shape):
		out, err := NewTensor(a.Shape, Float32, a.Device)
		if err != nil {
			return nil, err
		}
		ad, bd, od := a.Data.([]float32), b.Data.([]float32), out.Data.([]float32)
		for i := range od {
			od[i] = fn(ad[i], bd[i])
		}
		return out, nil

	case b.NumElems == 1:
		out, err := NewTensor(a.Shape, Float32, a.Device)
		if err != nil {
			return nil, err
		}
		ad, od := a.Data.([]float32), out.Data.([]float32)
		s := b.Data.([]float32)[0]
		for i := range od {
			od[i] = fn(ad[i], s)
		}
		return out, nil

	case a.NumElems == 1:
		out, err := NewTensor(b.Shape, Float32, b.Device)
		if err != nil {
			return nil, err
		}
		bd, od := b.Data.([]float32), out.Data.([]float32)
		s := a.Data.([]float32)[0]
		for i := range od {
			od[i] = fn(s, bd[i])
		}
		return out, nil

	case len(b.Shape) == 1 && len(a.Shape) >= 2 && b.Shape[0] == a.Shape[len(a.Shape)-1]:
		// Row broadcast: b spans the trailing dimension of a.
		out, err := NewTensor(a.Shape, Float32, a.Device)
		if err != nil {
			return nil, err
		}
		ad, bd, od := a.Data.([]float32), b.Data.([]float32), out.Data.([]float32)
		cols := b.Shape[0]
		for i := range od {
			od[i] = fn(ad[i], bd[i%cols])
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%s: incompatible shapes %v and %v", name, a.Shape, b.Shape)
	}
}

// Add returns a + b element-wise.
func Add(a, b *Tensor) (*Tensor, error) {
	return elementwiseBinary(a, b, "add", func(x, y float32) float32 { return x + y })
}

// Sub returns a - b element-wise.
func Sub(a, b *Tensor) (*Tensor, error) {
	return elementwiseBinary(a, b, "sub", func(x, y float32) float32 { return x - y })
}

// Mul returns a * b element-wise.
func Mul(a, b *Tensor) (*Tensor, error) {
	return elementwiseBinary(a, b, "mul", func(x, y float32) float32 { return x * y })
}

// Div returns a / b element-wise. Division by zero follows IEEE semantics
// and produces infinities or NaN rather than an error.
func Div(a, b *Tensor) (*Tensor, error) {
	return elementwiseBinary(a, b, "div", func(x, y float32) float32 { return x / y })
}

func unaryOp(t *Tensor, name string, fn func(x float32) float32) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("%s requires a Float32 tensor, got %s", name, t.DType)
	}
	out, err := NewTensor(t.Shape, Float32, t.Device)
	if err != nil {
		return nil, err
	}
	td, od := t.Data.([]float32), out.Data.([]float32)
	for i := range od {
		od[i] = fn(td[i])
	}
	return out, nil
}

// Exp returns e^x element-wise.
func Exp(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "exp", func(x float32) float32 { return float32(math.Exp(float64(x))) })
}

// Log returns the natural logarithm element-wise. IEEE semantics apply:
// Log(0) yields -Inf and Log of a negative value yields NaN, without error.
// Non-finite values propagate into downstream results.
func Log(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "log", func(x float32) float32 { return float32(math.Log(float64(x))) })
}

// Abs returns |x| element-wise.
func Abs(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "abs", func(x float32) float32 {
		if x < 0 {
			return -x
		}
		return x
	})
}

// Neg returns -x element-wise.
func Neg(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "neg", func(x float32) float32 { return -x })
}

// Sqrt returns the square root element-wise.
func Sqrt(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "sqrt", func(x float32) float32 { return float32(math.Sqrt(float64(x))) })
}

// ReLU returns max(0, x) element-wise.
func ReLU(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "relu", func(x float32) float32 {
		if x > 0 {
			return x
		}
		return 0
	})
}

// Sigmoid returns 1/(1+e^-x) element-wise.
func Sigmoid(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "sigmoid", func(x float32) float32 {
		return float32(1.0 / (1.0 + math.Exp(-float64(x))))
	})
}

// Tanh returns tanh(x) element-wise.
func Tanh(t *Tensor) (*Tensor, error) {
	return unaryOp(t, "tanh", func(x float32) float32 { return float32(math.Tanh(float64(x))) })
}

// LeakyReLU returns x for x > 0 and alpha*x otherwise.
func LeakyReLU(t *Tensor, alpha float32) (*Tensor, error) {
	return unaryOp(t, "leaky_relu", func(x float32) float32 {
		if x > 0 {
			return x
		}
		return alpha * x
	})
}

// AddScalar returns t + s element-wise.
func AddScalar(t *Tensor, s float32) (*Tensor, error) {
	return unaryOp(t, "add_scalar", func(x float32) float32 { return x + s })
}

// MulScalar returns t * s element-wise.
func MulScalar(t *Tensor, s float32) (*Tensor, error) {
	return unaryOp(t, "mul_scalar", func(x float32) float32 { return x * s })
}

// DivScalar returns t / s element-wise.
func DivScalar(t *Tensor, s float32) (*Tensor, error) {
	return unaryOp(t, "div_scalar", func(x float32) float32 { return x / s })
}

// Clamp limits every element to the range [min, max].
func Clamp(t *Tensor, min, max float32) (*Tensor, error) {
	return unaryOp(t, "clamp", func(x float32) float32 {
		if x < min {
			return min
		}
		if x > max {
			return max
		}
		return x
	})
}

// Softmax computes row-wise softmax over the class dimension of a
// rank-2 (batch, classes) tensor. Rows are shifted by their maximum for
// numerical stability.
func Softmax(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("softmax requires a Float32 tensor, got %s", t.DType)
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("softmax requires a rank-2 tensor, got shape %v", t.Shape)
	}

	out, err := NewTensor(t.Shape, Float32, t.Device)
	if err != nil {
		return nil, err
	}

	rows, cols := t.Shape[0], t.Shape[1]
	td, od := t.Data.([]float32), out.Data.([]float32)

	for i := 0; i < rows; i++ {
		row := td[i*cols : (i+1)*cols]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float32
		for j, v := range row {
			e := float32(math.Exp(float64(v - maxVal)))
			od[i*cols+j] = e
			sum += e
		}
		for j := 0; j < cols; j++ {
			od[i*cols+j] /= sum
		}
	}
	return out, nil
}

// LogSoftmax computes row-wise log-softmax over the class dimension of a
// rank-2 (batch, classes) tensor.
func LogSoftmax(t *Tensor) (*Tensor, error) {
	if t.DType != Float32 {
		return nil, fmt.Errorf("log_softmax requires a Float32 tensor, got %s", t.DType)
	}
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("log_softmax requires a rank-2 tensor, got shape %v", t.Shape)
	}

	out, err := NewTensor(t.Shape, Float32, t.Device)
	if err != nil {
		return nil, err
	}

	rows, cols := t.Shape[0], t.Shape[1]
	td, od := t.Data.([]float32), out.Data.([]float32)

	for i := 0; i < rows; i++ {
		row := td[i*cols : (i+1)*cols]

		maxVal := row[0]
		for _, v := range row[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for _, v := range row {
			sum += math.Exp(float64(v - maxVal))
		}
		logSum := float32(math.Log(sum))

		for j, v := range row {
			od[i*cols+j] = v - maxVal - logSum
		}
	}
	return out, nil
}
