package tensor

import (
	"fmt"
)

// applyOp runs an operation's forward pass and attaches the graph node to
// the result when any input participates in gradient tracking. Inputs that
// neither require gradients nor descend from tracked tensors produce plain
// results, so inference paths stay graph-free.
func applyOp(op Operation, inputs ...*Tensor) (*Tensor, error) {
	out, err := op.Forward(inputs...)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if in.requiresGrad || in.creator != nil {
			out.requiresGrad = true
			out.creator = op
			break
		}
	}
	return out, nil
}

func mustT(t *Tensor, err error) *Tensor {
	if err != nil {
		panic(fmt.Sprintf("autograd backward: %v", err))
	}
	return t
}

// reduceGradientToShape collapses a broadcast gradient back to the shape of
// the operand it belongs to. Identical shapes pass through, scalar operands
// receive the total sum, and trailing-dimension row vectors receive
// column sums.
func reduceGradientToShape(grad *Tensor, shape []int) *Tensor {
	if shapesEqual(grad.Shape, shape) {
		return grad
	}

	if calculateNumElements(shape) == 1 {
		total := mustT(Sum(grad))
		if len(shape) == 0 {
			return total
		}
		out := mustT(Full(shape, total.Data.([]float32)[0]))
		return out
	}

	if len(shape) == 1 && len(grad.Shape) == 2 && shape[0] == grad.Shape[1] {
		return mustT(SumDim(grad, 0))
	}

	panic(fmt.Sprintf("autograd backward: cannot reduce gradient of shape %v to %v", grad.Shape, shape))
}

type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return Add(inputs[0], inputs[1])
}

func (op *AddOp) Backward(gradOut *Tensor) []*Tensor {
	return []*Tensor{
		reduceGradientToShape(gradOut, op.inputs[0].Shape),
		reduceGradientToShape(gradOut, op.inputs[1].Shape),
	}
}

func (op *AddOp) Inputs() []*Tensor { return op.inputs }

type SubOp struct {
	inputs []*Tensor
}

func (op *SubOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return Sub(inputs[0], inputs[1])
}

func (op *SubOp) Backward(gradOut *Tensor) []*Tensor {
	negGrad := mustT(Neg(gradOut))
	return []*Tensor{
		reduceGradientToShape(gradOut, op.inputs[0].Shape),
		reduceGradientToShape(negGrad, op.inputs[1].Shape),
	}
}

func (op *SubOp) Inputs() []*Tensor { return op.inputs }

type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return Mul(inputs[0], inputs[1])
}

func (op *MulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := mustT(Mul(gradOut, b))
	gradB := mustT(Mul(gradOut, a))
	return []*Tensor{
		reduceGradientToShape(gradA, a.Shape),
		reduceGradientToShape(gradB, b.Shape),
	}
}

func (op *MulOp) Inputs() []*Tensor { return op.inputs }

type DivOp struct {
	inputs []*Tensor
}

func (op *DivOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return Div(inputs[0], inputs[1])
}

func (op *DivOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	// d/da = 1/b, d/db = -a/b^2
	gradA := mustT(Div(gradOut, b))
	bSquared := mustT(Mul(b, b))
	ratio := mustT(Div(a, bSquared))
	gradB := mustT(Neg(mustT(Mul(gradOut, ratio))))
	return []*Tensor{
		reduceGradientToShape(gradA, a.Shape),
		reduceGradientToShape(gradB, b.Shape),
	}
}

func (op *DivOp) Inputs() []*Tensor { return op.inputs }

type MatMulOp struct {
	inputs []*Tensor
}

func (op *MatMulOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return MatMul(inputs[0], inputs[1])
}

func (op *MatMulOp) Backward(gradOut *Tensor) []*Tensor {
	a, b := op.inputs[0], op.inputs[1]
	gradA := mustT(MatMul(gradOut, mustT(Transpose(b))))
	gradB := mustT(MatMul(mustT(Transpose(a)), gradOut))
	return []*Tensor{gradA, gradB}
}

func (op *MatMulOp) Inputs() []*Tensor { return op.inputs }

type NegOp struct {
	inputs []*Tensor
}

func (op *NegOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return Neg(inputs[0])
}

func (op *NegOp) Backward(gradOut *Tensor) []*Tensor {
	return []*Tensor{mustT(Neg(gradOut))}
}

func (op *NegOp) Inputs() []*Tensor { return op.inputs }

type ExpOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *ExpOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	out, err := Exp(inputs[0])
	if err != nil {
		return nil, err
	}
	op.output = out
	return out, nil
}

func (op *ExpOp) Backward(gradOut *Tensor) []*Tensor {
	return []*Tensor{mustT(Mul(gradOut, op.output))}
}

func (op *ExpOp) Inputs() []*Tensor { return op.inputs }

type LogOp struct {
	inputs []*Tensor
}

func (op *LogOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return Log(inputs[0])
}

func (op *LogOp) Backward(gradOut *Tensor) []*Tensor {
	return []*Tensor{mustT(Div(gradOut, op.inputs[0]))}
}

func (op *LogOp) Inputs() []*Tensor { return op.inputs }

type AbsOp struct {
	inputs []*Tensor
}

func (op *AbsOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return Abs(inputs[0])
}

func (op *AbsOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0].Data.([]float32)
	grad := mustT(Zeros(op.inputs[0].Shape))
	gd, gOut := grad.Data.([]float32), gradOut.Data.([]float32)
	for i := range gd {
		switch {
		case in[i] > 0:
			gd[i] = gOut[i]
		case in[i] < 0:
			gd[i] = -gOut[i]
		}
	}
	return []*Tensor{grad}
}

func (op *AbsOp) Inputs() []*Tensor { return op.inputs }

type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return ReLU(inputs[0])
}

func (op *ReLUOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0].Data.([]float32)
	grad := mustT(Zeros(op.inputs[0].Shape))
	gd, gOut := grad.Data.([]float32), gradOut.Data.([]float32)
	for i := range gd {
		if in[i] > 0 {
			gd[i] = gOut[i]
		}
	}
	return []*Tensor{grad}
}

func (op *ReLUOp) Inputs() []*Tensor { return op.inputs }

type LeakyReLUOp struct {
	inputs []*Tensor
	alpha  float32
}

func (op *LeakyReLUOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return LeakyReLU(inputs[0], op.alpha)
}

func (op *LeakyReLUOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0].Data.([]float32)
	grad := mustT(Zeros(op.inputs[0].Shape))
	gd, gOut := grad.Data.([]float32), gradOut.Data.([]float32)
	for i := range gd {
		if in[i] > 0 {
			gd[i] = gOut[i]
		} else {
			gd[i] = op.alpha * gOut[i]
		}
	}
	return []*Tensor{grad}
}

func (op *LeakyReLUOp) Inputs() []*Tensor { return op.inputs }

type SigmoidOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *SigmoidOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	out, err := Sigmoid(inputs[0])
	if err != nil {
		return nil, err
	}
	op.output = out
	return out, nil
}

func (op *SigmoidOp) Backward(gradOut *Tensor) []*Tensor {
	// dy/dx = y * (1 - y)
	y := op.output.Data.([]float32)
	grad := mustT(Zeros(op.output.Shape))
	gd, gOut := grad.Data.([]float32), gradOut.Data.([]float32)
	for i := range gd {
		gd[i] = gOut[i] * y[i] * (1 - y[i])
	}
	return []*Tensor{grad}
}

func (op *SigmoidOp) Inputs() []*Tensor { return op.inputs }

type TanhOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *TanhOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	out, err := Tanh(inputs[0])
	if err != nil {
		return nil, err
	}
	op.output = out
	return out, nil
}

func (op *TanhOp) Backward(gradOut *Tensor) []*Tensor {
	// dy/dx = 1 - y^2
	y := op.output.Data.([]float32)
	grad := mustT(Zeros(op.output.Shape))
	gd, gOut := grad.Data.([]float32), gradOut.Data.([]float32)
	for i := range gd {
		gd[i] = gOut[i] * (1 - y[i]*y[i])
	}
	return []*Tensor{grad}
}

func (op *TanhOp) Inputs() []*Tensor { return op.inputs }

type ReduceOp struct {
	inputs []*Tensor
	mode   ReductionMode
}

func (op *ReduceOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	if op.mode == ReduceNone {
		// Alias the data through a fresh node so the graph stays acyclic.
		return inputs[0].Detach(), nil
	}
	return Reduce(inputs[0], op.mode)
}

func (op *ReduceOp) Backward(gradOut *Tensor) []*Tensor {
	in := op.inputs[0]
	switch op.mode {
	case ReduceNone:
		return []*Tensor{gradOut}
	case ReduceSum:
		return []*Tensor{mustT(Full(in.Shape, gradOut.Data.([]float32)[0]))}
	case ReduceMean:
		return []*Tensor{mustT(Full(in.Shape, gradOut.Data.([]float32)[0]/float32(in.NumElems)))}
	default:
		panic(fmt.Sprintf("autograd backward: unknown reduction mode %d", op.mode))
	}
}

func (op *ReduceOp) Inputs() []*Tensor { return op.inputs }

// AddAutograd performs element-wise addition with gradient tracking.
func AddAutograd(a, b *Tensor) (*Tensor, error) {
	return applyOp(&AddOp{}, a, b)
}

// SubAutograd performs element-wise subtraction with gradient tracking.
func SubAutograd(a, b *Tensor) (*Tensor, error) {
	return applyOp(&SubOp{}, a, b)
}

// MulAutograd performs element-wise multiplication with gradient tracking.
func MulAutograd(a, b *Tensor) (*Tensor, error) {
	return applyOp(&MulOp{}, a, b)
}

// DivAutograd performs element-wise division with gradient tracking.
func DivAutograd(a, b *Tensor) (*Tensor, error) {
	return applyOp(&DivOp{}, a, b)
}

// MatMulAutograd performs matrix multiplication with gradient tracking.
func MatMulAutograd(a, b *Tensor) (*Tensor, error) {
	return applyOp(&MatMulOp{}, a, b)
}

// NegAutograd negates with gradient tracking.
func NegAutograd(t *Tensor) (*Tensor, error) {
	return applyOp(&NegOp{}, t)
}

// ExpAutograd exponentiates with gradient tracking.
func ExpAutograd(t *Tensor) (*Tensor, error) {
	return applyOp(&ExpOp{}, t)
}

// LogAutograd takes the natural logarithm with gradient tracking.
func LogAutograd(t *Tensor) (*Tensor, error) {
	return applyOp(&LogOp{}, t)
}

// AbsAutograd takes the absolute value with gradient tracking.
func AbsAutograd(t *Tensor) (*Tensor, error) {
	return applyOp(&AbsOp{}, t)
}

// ReLUAutograd applies ReLU with gradient tracking.
func ReLUAutograd(t *Tensor) (*Tensor, error) {
	return applyOp(&ReLUOp{}, t)
}

// LeakyReLUAutograd applies LeakyReLU with gradient tracking.
func LeakyReLUAutograd(t *Tensor, alpha float32) (*Tensor, error) {
	return applyOp(&LeakyReLUOp{alpha: alpha}, t)
}

// SigmoidAutograd applies the logistic sigmoid with gradient tracking.
func SigmoidAutograd(t *Tensor) (*Tensor, error) {
	return applyOp(&SigmoidOp{}, t)
}

// TanhAutograd applies tanh with gradient tracking.
func TanhAutograd(t *Tensor) (*Tensor, error) {
	return applyOp(&TanhOp{}, t)
}

// ReduceAutograd collapses a tensor with the given reduction mode, tracking
// gradients so that a reduced loss can drive backpropagation.
func ReduceAutograd(t *Tensor, mode ReductionMode) (*Tensor, error) {
	return applyOp(&ReduceOp{mode: mode}, t)
}

// MeanAutograd reduces to the arithmetic mean with gradient tracking.
func MeanAutograd(t *Tensor) (*Tensor, error) {
	return ReduceAutograd(t, ReduceMean)
}

// SumAutograd reduces to the sum with gradient tracking.
func SumAutograd(t *Tensor) (*Tensor, error) {
	return ReduceAutograd(t, ReduceSum)
}

// Backward runs reverse-mode differentiation from t through the recorded
// graph, accumulating gradients into every tensor that requires them. The
// starting tensor must hold a single element; it is seeded with gradient 1.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("backward requires a single-element tensor, got shape %v", t.Shape)
	}
	if t.creator == nil {
		return fmt.Errorf("backward requires a tensor produced by a tracked operation")
	}

	// Topological order over the graph reachable from t.
	visited := make(map[*Tensor]bool)
	var order []*Tensor
	var visit func(node *Tensor)
	visit = func(node *Tensor) {
		if visited[node] {
			return
		}
		visited[node] = true
		if node.creator != nil {
			for _, in := range node.creator.Inputs() {
				visit(in)
			}
		}
		order = append(order, node)
	}
	visit(t)

	// Interior nodes start fresh each call; leaf gradients accumulate
	// across calls until ZeroGrad.
	for _, node := range order {
		if node.creator != nil {
			node.grad = nil
		}
	}

	seed, err := Ones(t.Shape)
	if err != nil {
		return err
	}
	t.grad = seed

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		if node.creator == nil || node.grad == nil {
			continue
		}
		grads := node.creator.Backward(node.grad)
		inputs := node.creator.Inputs()
		if len(grads) != len(inputs) {
			return fmt.Errorf("backward produced %d gradients for %d inputs", len(grads), len(inputs))
		}
		for j, in := range inputs {
			if grads[j] == nil {
				continue
			}
			if !in.requiresGrad && in.creator == nil {
				continue
			}
			if err := accumulateGrad(in, grads[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func accumulateGrad(t *Tensor, g *Tensor) error {
	if t.grad == nil {
		t.grad = g.Clone()
		return nil
	}
	if !shapesEqual(t.grad.Shape, g.Shape) {
		return fmt.Errorf("gradient shape %v does not match accumulated shape %v", g.Shape, t.grad.Shape)
	}
	dst, src := t.grad.Data.([]float32), g.Data.([]float32)
	for i := range dst {
		dst[i] += src[i]
	}
	return nil
}

// Detach returns a view of t outside the computation graph. The returned
// tensor shares the underlying data but carries no creator and does not
// require gradients, so operations on it are never tracked.
func (t *Tensor) Detach() *Tensor {
	shapeCopy := make([]int, len(t.Shape))
	copy(shapeCopy, t.Shape)
	return &Tensor{
		Shape:    shapeCopy,
		Strides:  calculateStrides(shapeCopy),
		DType:    t.DType,
		Device:   t.Device,
		Data:     t.Data,
		NumElems: t.NumElems,
	}
}

// ZeroGrad clears the accumulated gradient.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

// ZeroGrad clears the accumulated gradients of every tensor in the slice.
func ZeroGrad(tensors []*Tensor) {
	for _, t := range tensors {
		t.ZeroGrad()
	}
}
