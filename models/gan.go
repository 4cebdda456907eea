package models

import (
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// Generator produces a batch of samples from a batch of noise vectors. A nil
// label means no label was supplied; models with LabelNone capability ignore
// the argument, the other capabilities condition on an Int32 label tensor of
// shape (N,).
type Generator interface {
	Forward(noise, label *tensor.Tensor) (*tensor.Tensor, error)

	// EncodingDims is the width of the noise vectors the generator consumes.
	EncodingDims() int

	// NumClasses is the number of label classes the generator can condition
	// on. Meaningful only when LabelType is not LabelNone.
	NumClasses() int

	LabelType() LabelCapability
}

// Discriminator maps a batch of samples to a batch of responses, one per
// sample. The label convention matches Generator.
type Discriminator interface {
	Forward(input, label *tensor.Tensor) (*tensor.Tensor, error)

	LabelType() LabelCapability
}
