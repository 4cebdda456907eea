// Package losses implements adversarial loss functions and the per-step
// training logic that drives them. Each loss owns one optimization step:
// sampling noise, dispatching labels according to the capabilities the
// models declare, differentiating the loss and stepping the optimizer.
package losses

import (
	"errors"

	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/optimizer"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

var (
	// ErrLabelsRequired reports that a model declared required label
	// capability but the caller supplied no labels. The step fails before
	// any model call, optimizer mutation or state update.
	ErrLabelsRequired = errors.New("losses: model requires labels for training but none were provided")
)

// GeneratorLoss drives one generator optimization step per call.
type GeneratorLoss interface {
	TrainOps(generator models.Generator, discriminator models.Discriminator,
		optimizerGenerator optimizer.Optimizer, device tensor.DeviceType,
		batchSize int, labels *tensor.Tensor) (float64, error)
}

// DiscriminatorLoss drives one discriminator optimization step per call.
type DiscriminatorLoss interface {
	TrainOps(generator models.Generator, discriminator models.Discriminator,
		optimizerDiscriminator optimizer.Optimizer, realInputs *tensor.Tensor,
		batchSize int, device tensor.DeviceType, labels *tensor.Tensor) (float64, error)
}

// GeneratorTrainOps replaces the default generator training step when
// supplied at construction. It receives the loss instance plus the same
// arguments the default algorithm receives.
type GeneratorTrainOps func(loss *BoundaryEquilibriumGeneratorLoss,
	generator models.Generator, discriminator models.Discriminator,
	optimizerGenerator optimizer.Optimizer, device tensor.DeviceType,
	batchSize int, labels *tensor.Tensor) (float64, error)

// DiscriminatorTrainOps replaces the default discriminator training step
// when supplied at construction.
type DiscriminatorTrainOps func(loss *BoundaryEquilibriumDiscriminatorLoss,
	generator models.Generator, discriminator models.Discriminator,
	optimizerDiscriminator optimizer.Optimizer, realInputs *tensor.Tensor,
	batchSize int, device tensor.DeviceType, labels *tensor.Tensor) (float64, error)
