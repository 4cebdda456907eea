package optimizer

import (
	"fmt"
	"sync"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// SGD implements stochastic gradient descent with optional momentum,
// dampening, Nesterov acceleration and weight decay.
type SGD struct {
	parameters   []*tensor.Tensor
	learningRate float64
	momentum     float64
	weightDecay  float64
	dampening    float64
	nesterov     bool
	velocities   map[*tensor.Tensor]*tensor.Tensor
	mutex        sync.RWMutex
}

// NewSGD creates an SGD optimizer over the given parameters.
func NewSGD(parameters []*tensor.Tensor, lr, momentum, weightDecay, dampening float64, nesterov bool) *SGD {
	sgd := &SGD{
		parameters:   parameters,
		learningRate: lr,
		momentum:     momentum,
		weightDecay:  weightDecay,
		dampening:    dampening,
		nesterov:     nesterov,
		velocities:   make(map[*tensor.Tensor]*tensor.Tensor),
	}

	if momentum > 0 {
		for _, param := range parameters {
			if param.RequiresGrad() {
				velocity, _ := tensor.Zeros(param.Shape)
				sgd.velocities[param] = velocity
			}
		}
	}

	return sgd
}

// Step performs a single optimization step.
func (sgd *SGD) Step() error {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()

	for _, param := range sgd.parameters {
		if !param.RequiresGrad() || param.Grad() == nil {
			continue
		}

		grad := param.Grad()

		if sgd.weightDecay > 0 {
			// grad = grad + weight_decay * param
			decayTerm, err := tensor.MulScalar(param, float32(sgd.weightDecay))
			if err != nil {
				return fmt.Errorf("weight decay multiplication failed: %v", err)
			}
			grad, err = tensor.Add(grad, decayTerm)
			if err != nil {
				return fmt.Errorf("weight decay addition failed: %v", err)
			}
		}

		if sgd.momentum > 0 {
			velocity := sgd.velocities[param]
			if velocity == nil {
				v, err := tensor.Zeros(param.Shape)
				if err != nil {
					return fmt.Errorf("velocity initialization failed: %v", err)
				}
				velocity = v
				sgd.velocities[param] = velocity
			}

			// velocity = momentum * velocity + (1 - dampening) * grad
			momentumTerm, err := tensor.MulScalar(velocity, float32(sgd.momentum))
			if err != nil {
				return fmt.Errorf("momentum term calculation failed: %v", err)
			}
			gradTerm, err := tensor.MulScalar(grad, float32(1.0-sgd.dampening))
			if err != nil {
				return fmt.Errorf("gradient term calculation failed: %v", err)
			}
			newVelocity, err := tensor.Add(momentumTerm, gradTerm)
			if err != nil {
				return fmt.Errorf("velocity update failed: %v", err)
			}
			if err := velocity.SetData(newVelocity.Data); err != nil {
				return fmt.Errorf("velocity data update failed: %v", err)
			}

			if sgd.nesterov {
				// grad = grad + momentum * velocity
				nesterovTerm, err := tensor.MulScalar(newVelocity, float32(sgd.momentum))
				if err != nil {
					return fmt.Errorf("nesterov term calculation failed: %v", err)
				}
				grad, err = tensor.Add(grad, nesterovTerm)
				if err != nil {
					return fmt.Errorf("nesterov update failed: %v", err)
				}
			} else {
				grad = newVelocity
			}
		}

		// param = param - lr * grad
		scaled, err := tensor.MulScalar(grad, float32(sgd.learningRate))
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
func (sgd *SGD) ZeroGrad() {
	tensor.ZeroGrad(sgd.parameters)
}

// GetLR returns the current learning rate.
func (sgd *SGD) GetLR() float64 {
	sgd.mutex.RLock()
	defer sgd.mutex.RUnlock()
	return sgd.learningRate
}

// SetLR sets the learning rate.
func (sgd *SGD) SetLR(lr float64) {
	sgd.mutex.Lock()
	defer sgd.mutex.Unlock()
	sgd.learningRate = lr
}
