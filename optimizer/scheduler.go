package optimizer

import (
	"math"
)

// LRScheduler computes the learning rate for a given epoch as a pure
// function of the base rate. Callers apply the result with SetLR.
type LRScheduler interface {
	GetLR(epoch int, baseLR float64) float64

	// GetName returns the scheduler name for logging.
	GetName() string
}

// StepLRScheduler reduces the learning rate by a factor every stepSize
// epochs.
type StepLRScheduler struct {
	StepSize int     // epochs between reductions
	Gamma    float64 // multiplicative decay factor
}

func NewStepLRScheduler(stepSize int, gamma float64) *StepLRScheduler {
	if stepSize <= 0 {
		stepSize = 30
	}
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.1
	}
	return &StepLRScheduler{
		StepSize: stepSize,
		Gamma:    gamma,
	}
}

func (s *StepLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	times := epoch / s.StepSize
	return baseLR * math.Pow(s.Gamma, float64(times))
}

func (s *StepLRScheduler) GetName() string {
	return "StepLR"
}

// ExponentialLRScheduler decays the learning rate exponentially per epoch.
type ExponentialLRScheduler struct {
	Gamma float64
}

func NewExponentialLRScheduler(gamma float64) *ExponentialLRScheduler {
	if gamma <= 0 || gamma >= 1 {
		gamma = 0.95
	}
	return &ExponentialLRScheduler{
		Gamma: gamma,
	}
}

func (s *ExponentialLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR * math.Pow(s.Gamma, float64(epoch))
}

func (s *ExponentialLRScheduler) GetName() string {
	return "ExponentialLR"
}

// CosineAnnealingLRScheduler anneals the learning rate along a half cosine
// from the base rate down to EtaMin over TMax epochs.
type CosineAnnealingLRScheduler struct {
	TMax   int
	EtaMin float64
}

func NewCosineAnnealingLRScheduler(tMax int, etaMin float64) *CosineAnnealingLRScheduler {
	if tMax <= 0 {
		tMax = 100
	}
	if etaMin < 0 {
		etaMin = 0
	}
	return &CosineAnnealingLRScheduler{
		TMax:   tMax,
		EtaMin: etaMin,
	}
}

func (s *CosineAnnealingLRScheduler) GetLR(epoch int, baseLR float64) float64 {
	if epoch >= s.TMax {
		return s.EtaMin
	}
	return s.EtaMin + (baseLR-s.EtaMin)*(1+math.Cos(math.Pi*float64(epoch)/float64(s.TMax)))/2
}

func (s *CosineAnnealingLRScheduler) GetName() string {
	return "CosineAnnealingLR"
}

// NoOpScheduler keeps the learning rate constant.
type NoOpScheduler struct{}

func (s *NoOpScheduler) GetLR(epoch int, baseLR float64) float64 {
	return baseLR
}

func (s *NoOpScheduler) GetName() string {
	return "ConstantLR"
}
