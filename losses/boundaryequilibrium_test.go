package losses

import (
	"errors"
	"math"
	"testing"

	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/optimizer"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// spyGenerator records the label tensor passed to each forward call and
// returns a fixed-width batch of zeros.
type spyGenerator struct {
	encodingDims int
	numClasses   int
	labelType    models.LabelCapability
	outFeatures  int

	calls  int
	labels []*tensor.Tensor
}

func (g *spyGenerator) Forward(noise, label *tensor.Tensor) (*tensor.Tensor, error) {
	g.calls++
	g.labels = append(g.labels, label)
	return tensor.Zeros([]int{noise.Shape[0], g.outFeatures})
}

func (g *spyGenerator) EncodingDims() int { return g.encodingDims }

func (g *spyGenerator) NumClasses() int { return g.numClasses }

func (g *spyGenerator) LabelType() models.LabelCapability { return g.labelType }

// spyDiscriminator records labels per call and produces responses through a
// tracked multiplication so the loss can backpropagate into its weight.
type spyDiscriminator struct {
	labelType models.LabelCapability
	weight    *tensor.Tensor

	calls  int
	labels []*tensor.Tensor
}

func newSpyDiscriminator(labelType models.LabelCapability, response float32) *spyDiscriminator {
	w, _ := tensor.FromSlice([]float32{response}, []int{1})
	w.SetRequiresGrad(true)
	return &spyDiscriminator{labelType: labelType, weight: w}
}

func (d *spyDiscriminator) Forward(input, label *tensor.Tensor) (*tensor.Tensor, error) {
	d.calls++
	d.labels = append(d.labels, label)
	ones, err := tensor.Ones([]int{input.Shape[0], 1})
	if err != nil {
		return nil, err
	}
	return tensor.MulAutograd(ones, d.weight)
}

func (d *spyDiscriminator) LabelType() models.LabelCapability { return d.labelType }

// spyOptimizer counts invocations without touching any tensors.
type spyOptimizer struct {
	zeroCalls int
	stepCalls int
}

func (o *spyOptimizer) Step() error { o.stepCalls++; return nil }

func (o *spyOptimizer) ZeroGrad() { o.zeroCalls++ }

func (o *spyOptimizer) GetLR() float64 { return 0 }

func (o *spyOptimizer) SetLR(lr float64) {}

func TestDiscriminatorLossForward(t *testing.T) {
	t.Run("Worked example with mean reduction", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLossDefault()

		dx, _ := tensor.FromSlice([]float32{0.8, 0.6}, []int{2})
		dgz, _ := tensor.FromSlice([]float32{0.3, 0.5}, []int{2})

		total, real, fake, err := loss.Forward(dx, dgz)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}

		realV, _ := real.Item()
		fakeV, _ := fake.Item()
		totalV, _ := total.Item()

		// loss_real = (0.8+0.6)/2 = 0.7, loss_fake = (0.3+0.5)/2 = 0.4
		// loss_total = 0.7 - 0*0.4 = 0.7
		if math.Abs(float64(realV)-0.7) > 1e-6 {
			t.Errorf("loss_real = %v, expected 0.7", realV)
		}
		if math.Abs(float64(fakeV)-0.4) > 1e-6 {
			t.Errorf("loss_fake = %v, expected 0.4", fakeV)
		}
		if math.Abs(float64(totalV)-0.7) > 1e-6 {
			t.Errorf("loss_total = %v, expected 0.7", totalV)
		}
	})

	t.Run("Nonzero coefficient scales the fake branch", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLossDefault()
		loss.SetK(0.5)

		dx, _ := tensor.FromSlice([]float32{1.0}, []int{1})
		dgz, _ := tensor.FromSlice([]float32{0.6}, []int{1})

		total, _, _, err := loss.Forward(dx, dgz)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		totalV, _ := total.Item()
		// 1.0 - 0.5*0.6 = 0.7
		if math.Abs(float64(totalV)-0.7) > 1e-6 {
			t.Errorf("loss_total = %v, expected 0.7", totalV)
		}
	})

	t.Run("Pure given the coefficient", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLossDefault()
		loss.SetK(0.3)

		dx, _ := tensor.FromSlice([]float32{0.9, 0.1, 0.4}, []int{3})
		dgz, _ := tensor.FromSlice([]float32{0.2, 0.7, 0.6}, []int{3})

		t1, r1, f1, err := loss.Forward(dx, dgz)
		if err != nil {
			t.Fatalf("First forward failed: %v", err)
		}
		t2, r2, f2, err := loss.Forward(dx, dgz)
		if err != nil {
			t.Fatalf("Second forward failed: %v", err)
		}

		for _, pair := range [][2]*tensor.Tensor{{t1, t2}, {r1, r2}, {f1, f2}} {
			a, _ := pair[0].Item()
			b, _ := pair[1].Item()
			if a != b {
				t.Errorf("Repeated forward produced %v then %v", a, b)
			}
		}

		if k := loss.K(); k != 0.3 {
			t.Errorf("Forward mutated the coefficient to %v", k)
		}
	})

	t.Run("Sum reduction", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLoss(tensor.ReduceSum, nil, 0.0, 0.001, 0.75)

		dx, _ := tensor.FromSlice([]float32{0.8, 0.6}, []int{2})
		dgz, _ := tensor.FromSlice([]float32{0.3, 0.5}, []int{2})

		_, real, fake, err := loss.Forward(dx, dgz)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		realV, _ := real.Item()
		fakeV, _ := fake.Item()
		if math.Abs(float64(realV)-1.4) > 1e-6 {
			t.Errorf("loss_real = %v, expected 1.4", realV)
		}
		if math.Abs(float64(fakeV)-0.8) > 1e-6 {
			t.Errorf("loss_fake = %v, expected 0.8", fakeV)
		}
	})
}

func TestGeneratorLossForward(t *testing.T) {
	t.Run("Mean of constant batch is the constant", func(t *testing.T) {
		loss := NewBoundaryEquilibriumGeneratorLossDefault()

		for _, n := range []int{1, 3, 7} {
			dgz, _ := tensor.Full([]int{n}, 0.42)
			out, err := loss.Forward(dgz)
			if err != nil {
				t.Fatalf("Forward failed: %v", err)
			}
			v, _ := out.Item()
			if math.Abs(float64(v)-0.42) > 1e-6 {
				t.Errorf("N=%d: loss = %v, expected 0.42", n, v)
			}
		}
	})

	t.Run("Sum reduction scales with batch", func(t *testing.T) {
		loss := NewBoundaryEquilibriumGeneratorLoss(tensor.ReduceSum, nil)
		dgz, _ := tensor.Full([]int{4}, 0.5)
		out, err := loss.Forward(dgz)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		v, _ := out.Item()
		if math.Abs(float64(v)-2.0) > 1e-6 {
			t.Errorf("loss = %v, expected 2.0", v)
		}
	})

	t.Run("None reduction keeps the batch", func(t *testing.T) {
		loss := NewBoundaryEquilibriumGeneratorLoss(tensor.ReduceNone, nil)
		dgz, _ := tensor.Full([]int{4}, 0.5)
		out, err := loss.Forward(dgz)
		if err != nil {
			t.Fatalf("Forward failed: %v", err)
		}
		if out.NumElems != 4 {
			t.Errorf("Expected unreduced tensor of 4 elements, got %v", out.Shape)
		}
	})
}

func TestUpdateK(t *testing.T) {
	t.Run("Worked example", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLossDefault()

		loss.UpdateK(0.7, 0.4)

		// diff = 0.75*0.7 - 0.4 = 0.125
		// k    = 0 + 0.001*0.125 = 0.000125
		// convergence = 0.7 + 0.125 = 0.825
		if k := loss.K(); math.Abs(k-0.000125) > 1e-9 {
			t.Errorf("k = %v, expected 0.000125", k)
		}
		convergence, ok := loss.State().ConvergenceMetric()
		if !ok {
			t.Fatal("Convergence metric missing after update")
		}
		if math.Abs(convergence-0.825) > 1e-9 {
			t.Errorf("convergence = %v, expected 0.825", convergence)
		}
	})

	t.Run("Convergence metric absent before first update", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLossDefault()
		if _, ok := loss.State().ConvergenceMetric(); ok {
			t.Error("Convergence metric should be absent before any update")
		}
	})

	t.Run("Clamps to exactly one", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLoss(tensor.ReduceMean, nil, 0.99, 0.1, 0.75)

		// diff = 0.75*2 - 0 = 1.5; unclamped k = 0.99 + 0.15 = 1.14
		loss.UpdateK(2.0, 0.0)
		if k := loss.K(); k != 1.0 {
			t.Errorf("k = %v, expected exactly 1.0", k)
		}
	})

	t.Run("Clamps to exactly zero", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLoss(tensor.ReduceMean, nil, 0.01, 0.1, 0.75)

		// diff = 0 - 1 = -1; unclamped k = 0.01 - 0.1 = -0.09
		loss.UpdateK(0.0, 1.0)
		if k := loss.K(); k != 0.0 {
			t.Errorf("k = %v, expected exactly 0.0", k)
		}
	})

	t.Run("Invariant holds across arbitrary updates", func(t *testing.T) {
		loss := NewBoundaryEquilibriumDiscriminatorLoss(tensor.ReduceMean, nil, 0.5, 0.05, 0.75)

		pairs := [][2]float64{
			{10.0, -10.0}, {-10.0, 10.0}, {0.3, 0.2}, {1e6, 0}, {0, 1e6},
			{0.0001, 0.0002}, {-5.5, -2.5},
		}
		for _, pair := range pairs {
			loss.UpdateK(pair[0], pair[1])
			if k := loss.K(); k < 0.0 || k > 1.0 {
				t.Fatalf("k = %v escaped [0, 1] after update(%v, %v)", k, pair[0], pair[1])
			}
		}
	})
}

func TestSetK(t *testing.T) {
	loss := NewBoundaryEquilibriumDiscriminatorLossDefault()

	// The direct override applies no clamping.
	for _, v := range []float64{0.5, 1.5, -0.3, 0.0, 1.0} {
		loss.SetK(v)
		if k := loss.K(); k != v {
			t.Errorf("SetK(%v) then K() = %v", v, k)
		}
	}
}

func TestDiscriminatorTrainOpsLabelPrecondition(t *testing.T) {
	cases := []struct {
		name      string
		genLabels models.LabelCapability
		dscLabels models.LabelCapability
	}{
		{"Generator requires labels", models.LabelRequired, models.LabelNone},
		{"Discriminator requires labels", models.LabelNone, models.LabelRequired},
		{"Both require labels", models.LabelRequired, models.LabelRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			loss := NewBoundaryEquilibriumDiscriminatorLossDefault()
			loss.SetK(0.25)

			gen := &spyGenerator{encodingDims: 4, numClasses: 10, labelType: tc.genLabels, outFeatures: 3}
			dsc := newSpyDiscriminator(tc.dscLabels, 0.5)
			opt := &spyOptimizer{}
			real, _ := tensor.Zeros([]int{2, 3})

			_, err := loss.TrainOps(gen, dsc, opt, real, 2, tensor.CPU, nil)
			if !errors.Is(err, ErrLabelsRequired) {
				t.Fatalf("Expected ErrLabelsRequired, got %v", err)
			}

			if opt.zeroCalls != 0 || opt.stepCalls != 0 {
				t.Error("Optimizer must not be touched when the precondition fails")
			}
			if gen.calls != 0 || dsc.calls != 0 {
				t.Error("Models must not be invoked when the precondition fails")
			}
			if k := loss.K(); k != 0.25 {
				t.Errorf("k mutated to %v by a failed step", k)
			}
			if _, ok := loss.State().ConvergenceMetric(); ok {
				t.Error("Convergence metric must stay absent after a failed step")
			}
		})
	}
}

func TestDiscriminatorTrainOpsLabelDispatch(t *testing.T) {
	run := func(t *testing.T, genType, dscType models.LabelCapability, labels *tensor.Tensor) (*spyGenerator, *spyDiscriminator) {
		t.Helper()
		loss := NewBoundaryEquilibriumDiscriminatorLossDefault()
		gen := &spyGenerator{encodingDims: 4, numClasses: 10, labelType: genType, outFeatures: 3}
		dsc := newSpyDiscriminator(dscType, 0.5)
		opt := optimizer.NewSGD([]*tensor.Tensor{dsc.weight}, 0.01, 0.0, 0.0, 0.0, false)
		real, _ := tensor.Zeros([]int{2, 3})

		if _, err := loss.TrainOps(gen, dsc, opt, real, 2, tensor.CPU, labels); err != nil {
			t.Fatalf("TrainOps failed: %v", err)
		}
		if dsc.calls != 2 {
			t.Fatalf("Expected 2 discriminator calls, got %d", dsc.calls)
		}
		return gen, dsc
	}

	groundTruth, _ := tensor.FromIntSlice([]int32{1, 2}, []int{2})

	t.Run("None none", func(t *testing.T) {
		gen, dsc := run(t, models.LabelNone, models.LabelNone, groundTruth)
		if gen.labels[0] != nil {
			t.Error("Generator with none capability should receive no label")
		}
		if dsc.labels[0] != nil || dsc.labels[1] != nil {
			t.Error("Discriminator with none capability should receive no labels")
		}
	})

	t.Run("Required discriminator uses ground truth", func(t *testing.T) {
		_, dsc := run(t, models.LabelNone, models.LabelRequired, groundTruth)
		if dsc.labels[0] != groundTruth {
			t.Error("Real pass should receive the ground-truth labels")
		}
		if dsc.labels[1] != groundTruth {
			t.Error("Fake pass should receive the ground-truth labels")
		}
	})

	t.Run("Required generator uses ground truth", func(t *testing.T) {
		gen, _ := run(t, models.LabelRequired, models.LabelNone, groundTruth)
		if gen.labels[0] != groundTruth {
			t.Error("Generator should receive the ground-truth labels")
		}
	})

	t.Run("Generated generator samples fresh labels", func(t *testing.T) {
		gen, _ := run(t, models.LabelGenerated, models.LabelNone, groundTruth)
		sampled := gen.labels[0]
		if sampled == nil || sampled == groundTruth {
			t.Fatal("Generator should receive an independently sampled label tensor")
		}
		if sampled.DType != tensor.Int32 || sampled.Shape[0] != 2 {
			t.Errorf("Sampled labels should be Int32 of shape (N,), got %v %v", sampled.DType, sampled.Shape)
		}
		for _, v := range sampled.Data.([]int32) {
			if v < 0 || v >= 10 {
				t.Errorf("Sampled label %d out of range [0, 10)", v)
			}
		}
	})

	t.Run("Generated generator label reused by required discriminator", func(t *testing.T) {
		gen, dsc := run(t, models.LabelGenerated, models.LabelRequired, groundTruth)
		sampled := gen.labels[0]
		if dsc.labels[0] != groundTruth {
			t.Error("Real pass should still receive the ground-truth labels")
		}
		// The fake pass reuses the generator's sampled labels instead of
		// the ground truth.
		if dsc.labels[1] != sampled {
			t.Error("Fake pass should reuse the generator's sampled label tensor")
		}
	})

	t.Run("Generated on both sides shares one sample", func(t *testing.T) {
		gen, dsc := run(t, models.LabelGenerated, models.LabelGenerated, groundTruth)
		sampled := gen.labels[0]
		if dsc.labels[0] != sampled || dsc.labels[1] != sampled {
			t.Error("Both discriminator passes should share the generator's sampled labels")
		}
	})

	t.Run("Generated discriminator without generated generator gets no label", func(t *testing.T) {
		// No label is ever sampled when the generator does not declare
		// generated capability, so the discriminator receives nil.
		_, dsc := run(t, models.LabelNone, models.LabelGenerated, groundTruth)
		if dsc.labels[0] != nil {
			t.Error("Real pass received a label that was never sampled")
		}
	})
}

func TestDiscriminatorTrainOpsEndToEnd(t *testing.T) {
	tensor.SetRandomSeed(99)

	gen, err := models.NewDenseGenerator(8, 16, 4, 0, models.LabelNone)
	if err != nil {
		t.Fatalf("NewDenseGenerator failed: %v", err)
	}
	dsc, err := models.NewDenseDiscriminator(4, 16, 0, models.LabelNone)
	if err != nil {
		t.Fatalf("NewDenseDiscriminator failed: %v", err)
	}
	opt := optimizer.NewSGD(dsc.Parameters(), 0.05, 0.0, 0.0, 0.0, false)
	loss := NewBoundaryEquilibriumDiscriminatorLossDefault()

	real, _ := tensor.RandomNormal([]int{4, 4}, 0.0, 1.0)

	value, err := loss.TrainOps(gen, dsc, opt, real, 4, tensor.CPU, nil)
	if err != nil {
		t.Fatalf("TrainOps failed: %v", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		t.Fatalf("Loss value %v is not finite", value)
	}

	if _, ok := loss.State().ConvergenceMetric(); !ok {
		t.Error("Convergence metric should be present after one step")
	}

	for i, param := range dsc.Parameters() {
		if param.Grad() == nil {
			t.Errorf("Discriminator parameter %d has no gradient after the step", i)
		}
	}

	// The fake batch is detached, so the generator must stay untouched.
	for i, param := range gen.Parameters() {
		if param.Grad() != nil {
			t.Errorf("Generator parameter %d received a gradient through a detached batch", i)
		}
	}
}

func TestGeneratorTrainOpsEndToEnd(t *testing.T) {
	tensor.SetRandomSeed(101)

	gen, err := models.NewDenseGenerator(8, 16, 4, 0, models.LabelNone)
	if err != nil {
		t.Fatalf("NewDenseGenerator failed: %v", err)
	}
	dsc, err := models.NewDenseDiscriminator(4, 16, 0, models.LabelNone)
	if err != nil {
		t.Fatalf("NewDenseDiscriminator failed: %v", err)
	}
	opt := optimizer.NewSGD(gen.Parameters(), 0.05, 0.0, 0.0, 0.0, false)
	loss := NewBoundaryEquilibriumGeneratorLossDefault()

	// Snapshot one discriminator weight; the generator step must not move it.
	dWeight := dsc.Parameters()[0]
	before := dWeight.Clone()

	value, err := loss.TrainOps(gen, dsc, opt, tensor.CPU, 4, nil)
	if err != nil {
		t.Fatalf("TrainOps failed: %v", err)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		t.Fatalf("Loss value %v is not finite", value)
	}

	for i, param := range gen.Parameters() {
		if param.Grad() == nil {
			t.Errorf("Generator parameter %d has no gradient after the step", i)
		}
	}
	if !tensor.Equal(before, dWeight) {
		t.Error("Generator step must not move discriminator weights")
	}
}

func TestGeneratorTrainOpsLabelPrecondition(t *testing.T) {
	loss := NewBoundaryEquilibriumGeneratorLossDefault()
	gen := &spyGenerator{encodingDims: 4, numClasses: 10, labelType: models.LabelRequired, outFeatures: 3}
	dsc := newSpyDiscriminator(models.LabelNone, 0.5)
	opt := &spyOptimizer{}

	_, err := loss.TrainOps(gen, dsc, opt, tensor.CPU, 2, nil)
	if !errors.Is(err, ErrLabelsRequired) {
		t.Fatalf("Expected ErrLabelsRequired, got %v", err)
	}
	if opt.zeroCalls != 0 || opt.stepCalls != 0 || gen.calls != 0 || dsc.calls != 0 {
		t.Error("Nothing should run when the precondition fails")
	}
}

func TestOverrideTrainOps(t *testing.T) {
	t.Run("Discriminator override replaces the algorithm", func(t *testing.T) {
		var loss *BoundaryEquilibriumDiscriminatorLoss
		invoked := false

		override := func(l *BoundaryEquilibriumDiscriminatorLoss, generator models.Generator,
			discriminator models.Discriminator, opt optimizer.Optimizer, realInputs *tensor.Tensor,
			batchSize int, device tensor.DeviceType, labels *tensor.Tensor) (float64, error) {
			invoked = true
			if l != loss {
				t.Error("Override should receive the loss instance itself")
			}
			if batchSize != 7 {
				t.Errorf("batchSize = %d, expected 7", batchSize)
			}
			return 42.0, nil
		}

		loss = NewBoundaryEquilibriumDiscriminatorLoss(tensor.ReduceMean, override, 0.0, 0.001, 0.75)
		gen := &spyGenerator{encodingDims: 4, numClasses: 10, labelType: models.LabelRequired, outFeatures: 3}
		dsc := newSpyDiscriminator(models.LabelRequired, 0.5)
		real, _ := tensor.Zeros([]int{2, 3})

		// Labels are nil and both models require them; the override still
		// runs because it replaces the whole step, precondition included.
		value, err := loss.TrainOps(gen, dsc, &spyOptimizer{}, real, 7, tensor.CPU, nil)
		if err != nil {
			t.Fatalf("TrainOps failed: %v", err)
		}
		if !invoked {
			t.Fatal("Override was not invoked")
		}
		if value != 42.0 {
			t.Errorf("Value = %v, expected 42", value)
		}
		if gen.calls != 0 || dsc.calls != 0 {
			t.Error("Default algorithm ran despite the override")
		}
	})

	t.Run("Generator override replaces the algorithm", func(t *testing.T) {
		invoked := false
		override := func(l *BoundaryEquilibriumGeneratorLoss, generator models.Generator,
			discriminator models.Discriminator, opt optimizer.Optimizer, device tensor.DeviceType,
			batchSize int, labels *tensor.Tensor) (float64, error) {
			invoked = true
			return 7.0, nil
		}

		loss := NewBoundaryEquilibriumGeneratorLoss(tensor.ReduceMean, override)
		gen := &spyGenerator{encodingDims: 4, numClasses: 10, labelType: models.LabelNone, outFeatures: 3}
		dsc := newSpyDiscriminator(models.LabelNone, 0.5)

		value, err := loss.TrainOps(gen, dsc, &spyOptimizer{}, tensor.CPU, 2, nil)
		if err != nil {
			t.Fatalf("TrainOps failed: %v", err)
		}
		if !invoked || value != 7.0 {
			t.Errorf("Override not honored: invoked=%v value=%v", invoked, value)
		}
	})
}

func TestTrainOpsUpdatesCoefficient(t *testing.T) {
	// With a constant discriminator response w for both branches:
	// loss_real = loss_fake = w, diff = gamma*w - w = -0.25*w.
	// For w = 0.8: k = 0.5 + 0.1*(-0.2) = 0.48.
	loss := NewBoundaryEquilibriumDiscriminatorLoss(tensor.ReduceMean, nil, 0.5, 0.1, 0.75)
	gen := &spyGenerator{encodingDims: 4, numClasses: 10, labelType: models.LabelNone, outFeatures: 3}
	dsc := newSpyDiscriminator(models.LabelNone, 0.8)
	opt := optimizer.NewSGD([]*tensor.Tensor{dsc.weight}, 0.0, 0.0, 0.0, 0.0, false)
	real, _ := tensor.Zeros([]int{2, 3})

	value, err := loss.TrainOps(gen, dsc, opt, real, 2, tensor.CPU, nil)
	if err != nil {
		t.Fatalf("TrainOps failed: %v", err)
	}

	// loss_total = 0.8 - 0.5*0.8 = 0.4
	if math.Abs(value-0.4) > 1e-6 {
		t.Errorf("Returned loss = %v, expected 0.4", value)
	}
	if k := loss.K(); math.Abs(k-0.48) > 1e-6 {
		t.Errorf("k = %v, expected 0.48", k)
	}
	convergence, ok := loss.State().ConvergenceMetric()
	if !ok {
		t.Fatal("Convergence metric missing")
	}
	// 0.8 + |diff| = 0.8 + 0.2 = 1.0
	if math.Abs(convergence-1.0) > 1e-6 {
		t.Errorf("convergence = %v, expected 1.0", convergence)
	}
}
