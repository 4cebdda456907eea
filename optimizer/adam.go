package optimizer

import (
	"fmt"
	"math"
	"sync"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// Adam implements the Adam optimizer with bias-corrected first and second
// moment estimates.
type Adam struct {
	parameters  []*tensor.Tensor
	lr          float64
	beta1       float64
	beta2       float64
	eps         float64
	weightDecay float64
	step        int64
	m           map[*tensor.Tensor]*tensor.Tensor // first moment estimates
	v           map[*tensor.Tensor]*tensor.Tensor // second moment estimates
	mutex       sync.RWMutex
}

// NewAdam creates an Adam optimizer over the given parameters.
func NewAdam(parameters []*tensor.Tensor, lr, beta1, beta2, eps, weightDecay float64) *Adam {
	adam := &Adam{
		parameters:  parameters,
		lr:          lr,
		beta1:       beta1,
		beta2:       beta2,
		eps:         eps,
		weightDecay: weightDecay,
		m:           make(map[*tensor.Tensor]*tensor.Tensor),
		v:           make(map[*tensor.Tensor]*tensor.Tensor),
	}

	for _, param := range parameters {
		if param.RequiresGrad() {
			m, _ := tensor.Zeros(param.Shape)
			v, _ := tensor.Zeros(param.Shape)
			adam.m[param] = m
			adam.v[param] = v
		}
	}

	return adam
}

// NewAdamDefault creates an Adam optimizer with the customary
// beta1=0.9, beta2=0.999, eps=1e-8 and no weight decay.
func NewAdamDefault(parameters []*tensor.Tensor, lr float64) *Adam {
	return NewAdam(parameters, lr, 0.9, 0.999, 1e-8, 0.0)
}

// Step performs a single optimization step.
func (adam *Adam) Step() error {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()

	adam.step++

	bias1 := 1.0 - math.Pow(adam.beta1, float64(adam.step))
	bias2 := 1.0 - math.Pow(adam.beta2, float64(adam.step))

	for _, param := range adam.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		grad := param.Grad()

		if adam.weightDecay > 0 {
			// grad = grad + weight_decay * param
			decayTerm, err := tensor.MulScalar(param, float32(adam.weightDecay))
			if err != nil {
				return fmt.Errorf("weight decay multiplication failed: %v", err)
			}
			grad, err = tensor.Add(grad, decayTerm)
			if err != nil {
				return fmt.Errorf("weight decay addition failed: %v", err)
			}
		}

		m := adam.m[param]
		v := adam.v[param]
		if m == nil || v == nil {
			mNew, err := tensor.Zeros(param.Shape)
			if err != nil {
				return fmt.Errorf("first moment initialization failed: %v", err)
			}
			vNew, err := tensor.Zeros(param.Shape)
			if err != nil {
				return fmt.Errorf("second moment initialization failed: %v", err)
			}
			m, v = mNew, vNew
			adam.m[param] = m
			adam.v[param] = v
		}

		// m = beta1 * m + (1 - beta1) * grad
		beta1Term, err := tensor.MulScalar(m, float32(adam.beta1))
		if err != nil {
			return fmt.Errorf("first moment beta1 term failed: %v", err)
		}
		gradTerm, err := tensor.MulScalar(grad, float32(1.0-adam.beta1))
		if err != nil {
			return fmt.Errorf("first moment grad term failed: %v", err)
		}
		newM, err := tensor.Add(beta1Term, gradTerm)
		if err != nil {
			return fmt.Errorf("first moment update failed: %v", err)
		}

		// v = beta2 * v + (1 - beta2) * grad^2
		beta2Term, err := tensor.MulScalar(v, float32(adam.beta2))
		if err != nil {
			return fmt.Errorf("second moment beta2 term failed: %v", err)
		}
		gradSquared, err := tensor.Mul(grad, grad)
		if err != nil {
			return fmt.Errorf("gradient squaring failed: %v", err)
		}
		gradSquaredTerm, err := tensor.MulScalar(gradSquared, float32(1.0-adam.beta2))
		if err != nil {
			return fmt.Errorf("second moment grad squared term failed: %v", err)
		}
		newV, err := tensor.Add(beta2Term, gradSquaredTerm)
		if err != nil {
			return fmt.Errorf("second moment update failed: %v", err)
		}

		if err := m.SetData(newM.Data); err != nil {
			return fmt.Errorf("first moment data update failed: %v", err)
		}
		if err := v.SetData(newV.Data); err != nil {
			return fmt.Errorf("second moment data update failed: %v", err)
		}

		// update = lr * (m / bias1) / (sqrt(v / bias2) + eps)
		mHat, err := tensor.MulScalar(newM, float32(1.0/bias1))
		if err != nil {
			return fmt.Errorf("first moment bias correction failed: %v", err)
		}
		vHat, err := tensor.MulScalar(newV, float32(1.0/bias2))
		if err != nil {
			return fmt.Errorf("second moment bias correction failed: %v", err)
		}
		vHatSqrt, err := tensor.Sqrt(vHat)
		if err != nil {
			return fmt.Errorf("second moment sqrt failed: %v", err)
		}
		denominator, err := tensor.AddScalar(vHatSqrt, float32(adam.eps))
		if err != nil {
			return fmt.Errorf("denominator computation failed: %v", err)
		}
		update, err := tensor.Div(mHat, denominator)
		if err != nil {
			return fmt.Errorf("update division failed: %v", err)
		}
		scaled, err := tensor.MulScalar(update, float32(adam.lr))
		if err != nil {
			return fmt.Errorf("learning rate scaling failed: %v", err)
		}

		updated, err := tensor.Sub(param, scaled)
		if err != nil {
			return fmt.Errorf("parameter update failed: %v", err)
		}
		if err := param.SetData(updated.Data); err != nil {
			return fmt.Errorf("parameter data update failed: %v", err)
		}
	}

	return nil
}

// ZeroGrad resets gradients for all parameters.
func (adam *Adam) ZeroGrad() {
	tensor.ZeroGrad(adam.parameters)
}

// GetLR returns the current learning rate.
func (adam *Adam) GetLR() float64 {
	adam.mutex.RLock()
	defer adam.mutex.RUnlock()
	return adam.lr
}

// SetLR sets the learning rate.
func (adam *Adam) SetLR(lr float64) {
	adam.mutex.Lock()
	defer adam.mutex.Unlock()
	adam.lr = lr
}
