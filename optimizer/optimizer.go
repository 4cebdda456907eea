package optimizer

// Optimizer defines the methods every optimizer implements. A training step
// differentiates a loss, calls Step to fold the accumulated gradients into
// the parameters, and ZeroGrad before the next pass.
type Optimizer interface {
	Step() error      // updates parameters from their accumulated gradients
	ZeroGrad()        // clears accumulated gradients on all parameters
	GetLR() float64   // current learning rate
	SetLR(lr float64) // replaces the learning rate
}
