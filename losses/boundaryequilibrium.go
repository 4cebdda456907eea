package losses

import (
	"fmt"
	"math"

	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/optimizer"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// BalanceState holds the adaptive coefficient that balances generator and
// discriminator competition under the boundary equilibrium scheme, together
// with its fixed update hyperparameters. One instance belongs to one
// discriminator loss and is mutated exactly once per discriminator step.
type BalanceState struct {
	k      float64
	lambda float64
	gamma  float64

	convergence    float64
	hasConvergence bool
}

// NewBalanceState creates balance state with the given initial coefficient,
// update rate lambda and target ratio gamma.
func NewBalanceState(initK, lambda, gamma float64) *BalanceState {
	return &BalanceState{
		k:      initK,
		lambda: lambda,
		gamma:  gamma,
	}
}

// K returns the current balance coefficient.
func (s *BalanceState) K() float64 { return s.k }

// Lambda returns the fixed update rate.
func (s *BalanceState) Lambda() float64 { return s.lambda }

// Gamma returns the fixed target balance ratio.
func (s *BalanceState) Gamma() float64 { return s.gamma }

// ConvergenceMetric returns the last computed convergence diagnostic. The
// second result is false until the first update has run.
func (s *BalanceState) ConvergenceMetric() (float64, bool) {
	return s.convergence, s.hasConvergence
}

// BoundaryEquilibriumGeneratorLoss implements the BEGAN generator loss
// ("BEGAN: Boundary Equilibrium Generative Adversarial Networks",
// Berthelot et al., https://arxiv.org/abs/1703.10717):
//
//	L(G) = D(G(z))
type BoundaryEquilibriumGeneratorLoss struct {
	reduction        tensor.ReductionMode
	overrideTrainOps GeneratorTrainOps
}

// NewBoundaryEquilibriumGeneratorLoss creates the generator loss. A non-nil
// override replaces the default training step wholesale.
func NewBoundaryEquilibriumGeneratorLoss(reduction tensor.ReductionMode, override GeneratorTrainOps) *BoundaryEquilibriumGeneratorLoss {
	return &BoundaryEquilibriumGeneratorLoss{
		reduction:        reduction,
		overrideTrainOps: override,
	}
}

// NewBoundaryEquilibriumGeneratorLossDefault creates the generator loss
// with mean reduction and the default training step.
func NewBoundaryEquilibriumGeneratorLossDefault() *BoundaryEquilibriumGeneratorLoss {
	return NewBoundaryEquilibriumGeneratorLoss(tensor.ReduceMean, nil)
}

// Reduction returns the configured reduction mode.
func (l *BoundaryEquilibriumGeneratorLoss) Reduction() tensor.ReductionMode {
	return l.reduction
}

// Forward reduces the discriminator responses to generated samples into the
// generator's loss. No state is touched.
func (l *BoundaryEquilibriumGeneratorLoss) Forward(dgz *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.ReduceAutograd(dgz, l.reduction)
}

// TrainOps runs one generator optimization step: sample noise, generate a
// fake batch, score it with the discriminator, differentiate the loss and
// step the generator optimizer. Returns the scalar loss for logging.
func (l *BoundaryEquilibriumGeneratorLoss) TrainOps(generator models.Generator, discriminator models.Discriminator,
	optimizerGenerator optimizer.Optimizer, device tensor.DeviceType,
	batchSize int, labels *tensor.Tensor) (float64, error) {

	if l.overrideTrainOps != nil {
		return l.overrideTrainOps(l, generator, discriminator, optimizerGenerator, device, batchSize, labels)
	}

	if labels == nil && (generator.LabelType() == models.LabelRequired || discriminator.LabelType() == models.LabelRequired) {
		return 0, ErrLabelsRequired
	}

	noise, err := tensor.RandomNormal([]int{batchSize, generator.EncodingDims()}, 0.0, 1.0)
	if err != nil {
		return 0, fmt.Errorf("noise sampling failed: %v", err)
	}
	noise.ToDevice(device)

	var labelGen *tensor.Tensor
	if generator.LabelType() == models.LabelGenerated {
		labelGen, err = tensor.RandomInt([]int{batchSize}, 0, int32(generator.NumClasses()))
		if err != nil {
			return 0, fmt.Errorf("label sampling failed: %v", err)
		}
		labelGen.ToDevice(device)
	}

	optimizerGenerator.ZeroGrad()

	var fake *tensor.Tensor
	switch generator.LabelType() {
	case models.LabelNone:
		fake, err = generator.Forward(noise, nil)
	case models.LabelRequired:
		fake, err = generator.Forward(noise, labels)
	default:
		fake, err = generator.Forward(noise, labelGen)
	}
	if err != nil {
		return 0, err
	}

	var dgz *tensor.Tensor
	switch discriminator.LabelType() {
	case models.LabelNone:
		dgz, err = discriminator.Forward(fake, nil)
	case models.LabelRequired:
		dgz, err = discriminator.Forward(fake, labels)
	default:
		dgz, err = discriminator.Forward(fake, labelGen)
	}
	if err != nil {
		return 0, err
	}

	loss, err := l.Forward(dgz)
	if err != nil {
		return 0, err
	}
	if err := loss.Backward(); err != nil {
		return 0, err
	}
	if err := optimizerGenerator.Step(); err != nil {
		return 0, err
	}

	value, err := loss.Item()
	if err != nil {
		return 0, err
	}
	return float64(value), nil
}

// BoundaryEquilibriumDiscriminatorLoss implements the BEGAN discriminator
// loss and the running balance coefficient:
//
//	L(D)    = D(x) - k_t * D(G(z))
//	k_{t+1} = k_t + lambda * (gamma * D(x) - D(G(z))), clamped to [0, 1]
type BoundaryEquilibriumDiscriminatorLoss struct {
	reduction        tensor.ReductionMode
	overrideTrainOps DiscriminatorTrainOps
	state            *BalanceState
}

// NewBoundaryEquilibriumDiscriminatorLoss creates the discriminator loss. A
// non-nil override replaces the default training step wholesale. initK is
// the starting balance coefficient, lambda its update rate and gamma the
// target ratio between real and fake responses.
func NewBoundaryEquilibriumDiscriminatorLoss(reduction tensor.ReductionMode, override DiscriminatorTrainOps,
	initK, lambda, gamma float64) *BoundaryEquilibriumDiscriminatorLoss {
	return &BoundaryEquilibriumDiscriminatorLoss{
		reduction:        reduction,
		overrideTrainOps: override,
		state:            NewBalanceState(initK, lambda, gamma),
	}
}

// NewBoundaryEquilibriumDiscriminatorLossDefault creates the discriminator
// loss with mean reduction, k=0, lambda=0.001 and gamma=0.75.
func NewBoundaryEquilibriumDiscriminatorLossDefault() *BoundaryEquilibriumDiscriminatorLoss {
	return NewBoundaryEquilibriumDiscriminatorLoss(tensor.ReduceMean, nil, 0.0, 0.001, 0.75)
}

// Reduction returns the configured reduction mode.
func (l *BoundaryEquilibriumDiscriminatorLoss) Reduction() tensor.ReductionMode {
	return l.reduction
}

// State exposes the balance state for inspection and checkpointing.
func (l *BoundaryEquilibriumDiscriminatorLoss) State() *BalanceState {
	return l.state
}

// K returns the current balance coefficient.
func (l *BoundaryEquilibriumDiscriminatorLoss) K() float64 {
	return l.state.k
}

// SetK unconditionally overwrites the balance coefficient. This is an
// administrative reset: unlike UpdateK, no clamping is applied.
func (l *BoundaryEquilibriumDiscriminatorLoss) SetK(k float64) {
	l.state.k = k
}

// UpdateK folds one step's detached loss values into the balance
// coefficient and refreshes the convergence diagnostic. Called exactly once
// per discriminator step, after the optimizer has consumed the total loss.
func (l *BoundaryEquilibriumDiscriminatorLoss) UpdateK(lossReal, lossFake float64) {
	diff := l.state.gamma*lossReal - lossFake
	l.state.k += l.state.lambda * diff
	l.state.convergence = lossReal + math.Abs(diff)
	l.state.hasConvergence = true
	if l.state.k < 0.0 {
		l.state.k = 0.0
	} else if l.state.k > 1.0 {
		l.state.k = 1.0
	}
}

// Forward computes the discriminator's loss triple from responses to real
// and generated samples, each of shape (N, *):
//
//	loss_real  = reduce(dx)
//	loss_fake  = reduce(dgz)
//	loss_total = loss_real - k * loss_fake
//
// The total is the value to differentiate; the constituents feed UpdateK.
// Pure given the current coefficient, no state is touched.
func (l *BoundaryEquilibriumDiscriminatorLoss) Forward(dx, dgz *tensor.Tensor) (lossTotal, lossReal, lossFake *tensor.Tensor, err error) {
	lossReal, err = tensor.ReduceAutograd(dx, l.reduction)
	if err != nil {
		return nil, nil, nil, err
	}
	lossFake, err = tensor.ReduceAutograd(dgz, l.reduction)
	if err != nil {
		return nil, nil, nil, err
	}

	scaledFake, err := tensor.MulAutograd(tensor.FromScalar(float32(l.state.k)), lossFake)
	if err != nil {
		return nil, nil, nil, err
	}
	lossTotal, err = tensor.SubAutograd(lossReal, scaledFake)
	if err != nil {
		return nil, nil, nil, err
	}
	return lossTotal, lossReal, lossFake, nil
}

// TrainOps runs one discriminator optimization step against a batch of real
// inputs: sample noise, dispatch labels by declared capability, score real
// and (detached) fake batches, differentiate the total loss, step the
// optimizer and fold the detached constituent losses into the balance
// coefficient. Returns the scalar total loss for logging.
//
// When labels are nil and either model declares required capability the
// step fails with ErrLabelsRequired before any model or optimizer call.
func (l *BoundaryEquilibriumDiscriminatorLoss) TrainOps(generator models.Generator, discriminator models.Discriminator,
	optimizerDiscriminator optimizer.Optimizer, realInputs *tensor.Tensor,
	batchSize int, device tensor.DeviceType, labels *tensor.Tensor) (float64, error) {

	if l.overrideTrainOps != nil {
		return l.overrideTrainOps(l, generator, discriminator, optimizerDiscriminator, realInputs, batchSize, device, labels)
	}

	if labels == nil && (generator.LabelType() == models.LabelRequired || discriminator.LabelType() == models.LabelRequired) {
		return 0, ErrLabelsRequired
	}

	// The noise batch follows the real batch's leading dimension.
	n := realInputs.Shape[0]
	noise, err := tensor.RandomNormal([]int{n, generator.EncodingDims()}, 0.0, 1.0)
	if err != nil {
		return 0, fmt.Errorf("noise sampling failed: %v", err)
	}
	noise.ToDevice(device)

	var labelGen *tensor.Tensor
	if generator.LabelType() == models.LabelGenerated {
		labelGen, err = tensor.RandomInt([]int{n}, 0, int32(generator.NumClasses()))
		if err != nil {
			return 0, fmt.Errorf("label sampling failed: %v", err)
		}
		labelGen.ToDevice(device)
	}

	optimizerDiscriminator.ZeroGrad()

	var dx *tensor.Tensor
	switch discriminator.LabelType() {
	case models.LabelNone:
		dx, err = discriminator.Forward(realInputs, nil)
	case models.LabelRequired:
		dx, err = discriminator.Forward(realInputs, labels)
	default:
		dx, err = discriminator.Forward(realInputs, labelGen)
	}
	if err != nil {
		return 0, err
	}

	var fake *tensor.Tensor
	switch generator.LabelType() {
	case models.LabelNone:
		fake, err = generator.Forward(noise, nil)
	case models.LabelRequired:
		fake, err = generator.Forward(noise, labels)
	default:
		fake, err = generator.Forward(noise, labelGen)
	}
	if err != nil {
		return 0, err
	}

	// The fake batch is detached so no gradient reaches the generator
	// during the discriminator's step.
	var dgz *tensor.Tensor
	if discriminator.LabelType() == models.LabelNone {
		dgz, err = discriminator.Forward(fake.Detach(), nil)
	} else if generator.LabelType() == models.LabelGenerated {
		// The generator's sampled label is reused for the fake pass even
		// when the discriminator declares required labels.
		dgz, err = discriminator.Forward(fake.Detach(), labelGen)
	} else {
		dgz, err = discriminator.Forward(fake.Detach(), labels)
	}
	if err != nil {
		return 0, err
	}

	lossTotal, lossReal, lossFake, err := l.Forward(dx, dgz)
	if err != nil {
		return 0, err
	}
	if err := lossTotal.Backward(); err != nil {
		return 0, err
	}
	if err := optimizerDiscriminator.Step(); err != nil {
		return 0, err
	}

	realValue, err := lossReal.Item()
	if err != nil {
		return 0, err
	}
	fakeValue, err := lossFake.Item()
	if err != nil {
		return 0, err
	}
	l.UpdateK(float64(realValue), float64(fakeValue))

	totalValue, err := lossTotal.Item()
	if err != nil {
		return 0, err
	}
	return float64(totalValue), nil
}
