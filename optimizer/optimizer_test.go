package optimizer

import (
	"math"
	"testing"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// buildParamWithGrad returns a single-element parameter whose gradient has
// been populated through a backward pass: loss = sum(param * factor), so
// d loss / d param = factor.
func buildParamWithGrad(t *testing.T, value, factor float32) *tensor.Tensor {
	t.Helper()

	param, err := tensor.FromSlice([]float32{value}, []int{1})
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	param.SetRequiresGrad(true)

	scale, _ := tensor.FromSlice([]float32{factor}, []int{1})
	prod, err := tensor.MulAutograd(param, scale)
	if err != nil {
		t.Fatalf("MulAutograd failed: %v", err)
	}
	loss, err := tensor.SumAutograd(prod)
	if err != nil {
		t.Fatalf("SumAutograd failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}
	return param
}

func TestSGDStep(t *testing.T) {
	t.Run("Vanilla update", func(t *testing.T) {
		param := buildParamWithGrad(t, 1.0, 2.0)
		sgd := NewSGD([]*tensor.Tensor{param}, 0.1, 0.0, 0.0, 0.0, false)

		if err := sgd.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}

		// param = 1.0 - 0.1 * 2.0 = 0.8
		got := param.Data.([]float32)[0]
		if math.Abs(float64(got)-0.8) > 1e-6 {
			t.Errorf("Parameter = %v, expected 0.8", got)
		}
	})

	t.Run("Momentum accumulates", func(t *testing.T) {
		param := buildParamWithGrad(t, 1.0, 1.0)
		sgd := NewSGD([]*tensor.Tensor{param}, 0.1, 0.9, 0.0, 0.0, false)

		// First step: velocity = 1.0, param = 1.0 - 0.1 = 0.9
		if err := sgd.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		// Second step with the same gradient: velocity = 0.9 + 1.0 = 1.9,
		// param = 0.9 - 0.19 = 0.71
		if err := sgd.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}

		got := param.Data.([]float32)[0]
		if math.Abs(float64(got)-0.71) > 1e-5 {
			t.Errorf("Parameter = %v, expected 0.71", got)
		}
	})

	t.Run("Weight decay shifts gradient", func(t *testing.T) {
		param := buildParamWithGrad(t, 1.0, 0.0)
		// Zero base gradient: only the decay term 0.5 * param acts.
		sgd := NewSGD([]*tensor.Tensor{param}, 0.1, 0.0, 0.5, 0.0, false)

		if err := sgd.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}

		// param = 1.0 - 0.1 * (0 + 0.5*1.0) = 0.95
		got := param.Data.([]float32)[0]
		if math.Abs(float64(got)-0.95) > 1e-6 {
			t.Errorf("Parameter = %v, expected 0.95", got)
		}
	})

	t.Run("Skips parameters without gradients", func(t *testing.T) {
		param, _ := tensor.FromSlice([]float32{1.0}, []int{1})
		param.SetRequiresGrad(true)
		sgd := NewSGD([]*tensor.Tensor{param}, 0.1, 0.0, 0.0, 0.0, false)

		if err := sgd.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if got := param.Data.([]float32)[0]; got != 1.0 {
			t.Errorf("Parameter moved to %v without a gradient", got)
		}
	})

	t.Run("ZeroGrad clears gradients", func(t *testing.T) {
		param := buildParamWithGrad(t, 1.0, 2.0)
		sgd := NewSGD([]*tensor.Tensor{param}, 0.1, 0.0, 0.0, 0.0, false)

		sgd.ZeroGrad()
		if param.Grad() != nil {
			t.Error("Gradient should be cleared after ZeroGrad")
		}
	})

	t.Run("Learning rate accessors", func(t *testing.T) {
		sgd := NewSGD(nil, 0.1, 0.0, 0.0, 0.0, false)
		if sgd.GetLR() != 0.1 {
			t.Errorf("GetLR = %v, expected 0.1", sgd.GetLR())
		}
		sgd.SetLR(0.01)
		if sgd.GetLR() != 0.01 {
			t.Errorf("GetLR after SetLR = %v, expected 0.01", sgd.GetLR())
		}
	})
}

func TestAdamStep(t *testing.T) {
	t.Run("First step approximates lr", func(t *testing.T) {
		param := buildParamWithGrad(t, 1.0, 2.0)
		adam := NewAdamDefault([]*tensor.Tensor{param}, 0.01)

		if err := adam.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}

		// With bias correction the first Adam update is close to
		// lr * sign(grad): param = 1.0 - 0.01.
		got := param.Data.([]float32)[0]
		if math.Abs(float64(got)-0.99) > 1e-4 {
			t.Errorf("Parameter = %v, expected about 0.99", got)
		}
	})

	t.Run("Repeated steps keep descending", func(t *testing.T) {
		param := buildParamWithGrad(t, 1.0, 2.0)
		adam := NewAdamDefault([]*tensor.Tensor{param}, 0.01)

		previous := param.Data.([]float32)[0]
		for i := 0; i < 3; i++ {
			if err := adam.Step(); err != nil {
				t.Fatalf("Step %d failed: %v", i, err)
			}
			current := param.Data.([]float32)[0]
			if current >= previous {
				t.Errorf("Step %d: parameter %v did not decrease from %v", i, current, previous)
			}
			previous = current
		}
	})

	t.Run("Implements Optimizer", func(t *testing.T) {
		var _ Optimizer = NewAdamDefault(nil, 0.01)
		var _ Optimizer = NewSGD(nil, 0.1, 0.0, 0.0, 0.0, false)
	})
}

func TestSchedulers(t *testing.T) {
	t.Run("StepLR", func(t *testing.T) {
		s := NewStepLRScheduler(30, 0.1)
		if got := s.GetLR(0, 1.0); got != 1.0 {
			t.Errorf("Epoch 0 LR = %v, expected 1.0", got)
		}
		if got := s.GetLR(30, 1.0); math.Abs(got-0.1) > 1e-9 {
			t.Errorf("Epoch 30 LR = %v, expected 0.1", got)
		}
		if got := s.GetLR(60, 1.0); math.Abs(got-0.01) > 1e-9 {
			t.Errorf("Epoch 60 LR = %v, expected 0.01", got)
		}
	})

	t.Run("ExponentialLR", func(t *testing.T) {
		s := NewExponentialLRScheduler(0.9)
		if got := s.GetLR(2, 1.0); math.Abs(got-0.81) > 1e-9 {
			t.Errorf("Epoch 2 LR = %v, expected 0.81", got)
		}
	})

	t.Run("CosineAnnealingLR", func(t *testing.T) {
		s := NewCosineAnnealingLRScheduler(100, 0.0)
		if got := s.GetLR(0, 1.0); math.Abs(got-1.0) > 1e-9 {
			t.Errorf("Epoch 0 LR = %v, expected 1.0", got)
		}
		if got := s.GetLR(100, 1.0); got != 0.0 {
			t.Errorf("Epoch 100 LR = %v, expected 0", got)
		}
		if got := s.GetLR(50, 1.0); math.Abs(got-0.5) > 1e-9 {
			t.Errorf("Epoch 50 LR = %v, expected 0.5", got)
		}
	})

	t.Run("Defaults clamp invalid configuration", func(t *testing.T) {
		s := NewStepLRScheduler(-1, 2.0)
		if s.StepSize != 30 || s.Gamma != 0.1 {
			t.Errorf("Expected defaults 30/0.1, got %d/%v", s.StepSize, s.Gamma)
		}
	})
}
