package models

import (
	"fmt"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// oneHot expands an Int32 label tensor of shape (N,) into a Float32
// indicator matrix of shape (N, numClasses).
func oneHot(label *tensor.Tensor, numClasses int) (*tensor.Tensor, error) {
	if label.DType != tensor.Int32 {
		return nil, fmt.Errorf("labels must be Int32, got %s", label.DType)
	}
	if len(label.Shape) != 1 {
		return nil, fmt.Errorf("labels must have shape (N,), got %v", label.Shape)
	}

	n := label.Shape[0]
	out, err := tensor.Zeros([]int{n, numClasses})
	if err != nil {
		return nil, err
	}
	data := out.Data.([]float32)
	for i, class := range label.Data.([]int32) {
		if class < 0 || int(class) >= numClasses {
			return nil, fmt.Errorf("label %d out of range [0, %d)", class, numClasses)
		}
		data[i*numClasses+int(class)] = 1.0
	}
	return out, nil
}

// DenseGenerator is a fully connected generator mapping noise vectors to
// flat sample vectors, optionally conditioned on class labels through a
// learned one-hot projection.
type DenseGenerator struct {
	input     *Linear
	labelProj *Linear
	output    *Linear

	encodingDims int
	numClasses   int
	labelType    LabelCapability
	training     bool
}

// NewDenseGenerator builds a two-layer generator. numClasses must be
// positive when labelType conditions on labels.
func NewDenseGenerator(encodingDims, hiddenSize, outFeatures, numClasses int, labelType LabelCapability) (*DenseGenerator, error) {
	if labelType != LabelNone && numClasses <= 0 {
		return nil, fmt.Errorf("label capability %s requires a positive class count, got %d", labelType, numClasses)
	}

	input, err := NewLinear(encodingDims, hiddenSize, true)
	if err != nil {
		return nil, err
	}
	output, err := NewLinear(hiddenSize, outFeatures, true)
	if err != nil {
		return nil, err
	}

	g := &DenseGenerator{
		input:        input,
		output:       output,
		encodingDims: encodingDims,
		numClasses:   numClasses,
		labelType:    labelType,
		training:     true,
	}

	if labelType != LabelNone {
		g.labelProj, err = NewLinear(numClasses, hiddenSize, false)
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Forward maps noise of shape (N, encodingDims) to samples. Conditioned
// generators fail when label is nil.
func (g *DenseGenerator) Forward(noise, label *tensor.Tensor) (*tensor.Tensor, error) {
	if len(noise.Shape) != 2 || noise.Shape[1] != g.encodingDims {
		return nil, fmt.Errorf("expected noise of shape (N, %d), got %v", g.encodingDims, noise.Shape)
	}

	hidden, err := g.input.Forward(noise)
	if err != nil {
		return nil, err
	}

	if g.labelType != LabelNone {
		if label == nil {
			return nil, fmt.Errorf("generator with %s label capability needs a label tensor", g.labelType)
		}
		encoded, err := oneHot(label, g.numClasses)
		if err != nil {
			return nil, err
		}
		projected, err := g.labelProj.Forward(encoded)
		if err != nil {
			return nil, err
		}
		hidden, err = tensor.AddAutograd(hidden, projected)
		if err != nil {
			return nil, err
		}
	}

	activated, err := tensor.ReLUAutograd(hidden)
	if err != nil {
		return nil, err
	}
	out, err := g.output.Forward(activated)
	if err != nil {
		return nil, err
	}
	return tensor.TanhAutograd(out)
}

func (g *DenseGenerator) EncodingDims() int { return g.encodingDims }

func (g *DenseGenerator) NumClasses() int { return g.numClasses }

func (g *DenseGenerator) LabelType() LabelCapability { return g.labelType }

func (g *DenseGenerator) Parameters() []*tensor.Tensor {
	params := append(g.input.Parameters(), g.output.Parameters()...)
	if g.labelProj != nil {
		params = append(params, g.labelProj.Parameters()...)
	}
	return params
}

func (g *DenseGenerator) Train() { g.training = true }

func (g *DenseGenerator) Eval() { g.training = false }

func (g *DenseGenerator) IsTraining() bool { return g.training }

// DenseDiscriminator is a fully connected discriminator mapping flat sample
// vectors to one response per sample.
type DenseDiscriminator struct {
	input     *Linear
	labelProj *Linear
	output    *Linear

	inFeatures int
	numClasses int
	labelType  LabelCapability
	training   bool
}

// NewDenseDiscriminator builds a two-layer discriminator producing (N, 1)
// responses. numClasses must be positive when labelType conditions on
// labels.
func NewDenseDiscriminator(inFeatures, hiddenSize, numClasses int, labelType LabelCapability) (*DenseDiscriminator, error) {
	if labelType != LabelNone && numClasses <= 0 {
		return nil, fmt.Errorf("label capability %s requires a positive class count, got %d", labelType, numClasses)
	}

	input, err := NewLinear(inFeatures, hiddenSize, true)
	if err != nil {
		return nil, err
	}
	output, err := NewLinear(hiddenSize, 1, true)
	if err != nil {
		return nil, err
	}

	d := &DenseDiscriminator{
		input:      input,
		output:     output,
		inFeatures: inFeatures,
		numClasses: numClasses,
		labelType:  labelType,
		training:   true,
	}

	if labelType != LabelNone {
		d.labelProj, err = NewLinear(numClasses, hiddenSize, false)
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Forward maps samples of shape (N, inFeatures) to responses of shape
// (N, 1). Conditioned discriminators fail when label is nil.
func (d *DenseDiscriminator) Forward(input, label *tensor.Tensor) (*tensor.Tensor, error) {
	if len(input.Shape) != 2 || input.Shape[1] != d.inFeatures {
		return nil, fmt.Errorf("expected input of shape (N, %d), got %v", d.inFeatures, input.Shape)
	}

	hidden, err := d.input.Forward(input)
	if err != nil {
		return nil, err
	}

	if d.labelType != LabelNone {
		if label == nil {
			return nil, fmt.Errorf("discriminator with %s label capability needs a label tensor", d.labelType)
		}
		encoded, err := oneHot(label, d.numClasses)
		if err != nil {
			return nil, err
		}
		projected, err := d.labelProj.Forward(encoded)
		if err != nil {
			return nil, err
		}
		hidden, err = tensor.AddAutograd(hidden, projected)
		if err != nil {
			return nil, err
		}
	}

	activated, err := tensor.LeakyReLUAutograd(hidden, 0.2)
	if err != nil {
		return nil, err
	}
	return d.output.Forward(activated)
}

func (d *DenseDiscriminator) LabelType() LabelCapability { return d.labelType }

func (d *DenseDiscriminator) Parameters() []*tensor.Tensor {
	params := append(d.input.Parameters(), d.output.Parameters()...)
	if d.labelProj != nil {
		params = append(params, d.labelProj.Parameters()...)
	}
	return params
}

func (d *DenseDiscriminator) Train() { d.training = true }

func (d *DenseDiscriminator) Eval() { d.training = false }

func (d *DenseDiscriminator) IsTraining() bool { return d.training }
