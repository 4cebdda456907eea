package models

import (
	"fmt"
	"math"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// Module defines the methods every network layer implements.
type Module interface {
	Forward(input *tensor.Tensor) (*tensor.Tensor, error)
	Parameters() []*tensor.Tensor // trainable tensors with requiresGrad=true
	Train()                       // sets module to training mode
	Eval()                        // sets module to evaluation mode
	IsTraining() bool
}

// Linear implements a fully connected layer: y = xW + b
type Linear struct {
	weight   *tensor.Tensor
	bias     *tensor.Tensor
	training bool
}

// NewLinear creates a Linear layer with Xavier/Glorot uniform initialized
// weights, W ~ U(-sqrt(6/(fan_in+fan_out)), sqrt(6/(fan_in+fan_out))), and a
// zero bias when bias is true.
func NewLinear(inputSize, outputSize int, bias bool) (*Linear, error) {
	if inputSize <= 0 || outputSize <= 0 {
		return nil, fmt.Errorf("linear layer sizes must be positive, got %d and %d", inputSize, outputSize)
	}

	bound := float32(math.Sqrt(6.0 / float64(inputSize+outputSize)))
	weight, err := tensor.RandomUniform([]int{inputSize, outputSize}, -bound, bound)
	if err != nil {
		return nil, fmt.Errorf("failed to create weight tensor: %v", err)
	}
	weight.SetRequiresGrad(true)

	linear := &Linear{
		weight:   weight,
		training: true,
	}

	if bias {
		biasT, err := tensor.Zeros([]int{outputSize})
		if err != nil {
			return nil, fmt.Errorf("failed to create bias tensor: %v", err)
		}
		biasT.SetRequiresGrad(true)
		linear.bias = biasT
	}

	return linear, nil
}

// Forward computes y = xW + b over a [batch, features] input.
func (l *Linear) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 {
		return nil, fmt.Errorf("linear layer expects 2D input [batch_size, input_size], got shape %v", input.Shape)
	}
	if input.Shape[1] != l.weight.Shape[0] {
		return nil, fmt.Errorf("input size mismatch: expected %d, got %d", l.weight.Shape[0], input.Shape[1])
	}

	output, err := tensor.MatMulAutograd(input, l.weight)
	if err != nil {
		return nil, err
	}
	if l.bias != nil {
		output, err = tensor.AddAutograd(output, l.bias)
		if err != nil {
			return nil, err
		}
	}
	return output, nil
}

func (l *Linear) Parameters() []*tensor.Tensor {
	if l.bias != nil {
		return []*tensor.Tensor{l.weight, l.bias}
	}
	return []*tensor.Tensor{l.weight}
}

func (l *Linear) Train() { l.training = true }

func (l *Linear) Eval() { l.training = false }

func (l *Linear) IsTraining() bool { return l.training }

// Weight exposes the weight tensor for checkpointing.
func (l *Linear) Weight() *tensor.Tensor { return l.weight }

// Bias exposes the bias tensor for checkpointing, nil when absent.
func (l *Linear) Bias() *tensor.Tensor { return l.bias }

// ReLU applies the rectified linear activation.
type ReLU struct {
	training bool
}

func NewReLU() *ReLU {
	return &ReLU{training: true}
}

func (r *ReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReLUAutograd(input)
}

func (r *ReLU) Parameters() []*tensor.Tensor { return nil }

func (r *ReLU) Train() { r.training = true }

func (r *ReLU) Eval() { r.training = false }

func (r *ReLU) IsTraining() bool { return r.training }

// LeakyReLU applies the leaky rectified linear activation with a fixed
// negative slope.
type LeakyReLU struct {
	alpha    float32
	training bool
}

func NewLeakyReLU(alpha float32) *LeakyReLU {
	return &LeakyReLU{alpha: alpha, training: true}
}

func (l *LeakyReLU) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.LeakyReLUAutograd(input, l.alpha)
}

func (l *LeakyReLU) Parameters() []*tensor.Tensor { return nil }

func (l *LeakyReLU) Train() { l.training = true }

func (l *LeakyReLU) Eval() { l.training = false }

func (l *LeakyReLU) IsTraining() bool { return l.training }

// Sigmoid applies the logistic activation.
type Sigmoid struct {
	training bool
}

func NewSigmoid() *Sigmoid {
	return &Sigmoid{training: true}
}

func (s *Sigmoid) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.SigmoidAutograd(input)
}

func (s *Sigmoid) Parameters() []*tensor.Tensor { return nil }

func (s *Sigmoid) Train() { s.training = true }

func (s *Sigmoid) Eval() { s.training = false }

func (s *Sigmoid) IsTraining() bool { return s.training }

// Tanh applies the hyperbolic tangent activation.
type Tanh struct {
	training bool
}

func NewTanh() *Tanh {
	return &Tanh{training: true}
}

func (t *Tanh) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.TanhAutograd(input)
}

func (t *Tanh) Parameters() []*tensor.Tensor { return nil }

func (t *Tanh) Train() { t.training = true }

func (t *Tanh) Eval() { t.training = false }

func (t *Tanh) IsTraining() bool { return t.training }

// Sequential chains modules, feeding each output into the next.
type Sequential struct {
	modules  []Module
	training bool
}

func NewSequential(modules ...Module) *Sequential {
	return &Sequential{
		modules:  modules,
		training: true,
	}
}

func (s *Sequential) Forward(input *tensor.Tensor) (*tensor.Tensor, error) {
	current := input
	for i, module := range s.modules {
		output, err := module.Forward(current)
		if err != nil {
			return nil, fmt.Errorf("module %d forward failed: %v", i, err)
		}
		current = output
	}
	return current, nil
}

func (s *Sequential) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, module := range s.modules {
		params = append(params, module.Parameters()...)
	}
	return params
}

func (s *Sequential) Train() {
	s.training = true
	for _, module := range s.modules {
		module.Train()
	}
}

func (s *Sequential) Eval() {
	s.training = false
	for _, module := range s.modules {
		module.Eval()
	}
}

func (s *Sequential) IsTraining() bool { return s.training }
