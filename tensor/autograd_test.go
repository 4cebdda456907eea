package tensor

import (
	"math"
	"reflect"
	"testing"
)

func TestBackwardThroughLinearChain(t *testing.T) {
	// y = mean(x W + b) for x = [[1 2]], W = [[3] [4]], b = [5]
	// y = 1*3 + 2*4 + 5 = 16
	// dy/dW = x^T = [[1] [2]], dy/db = [1], dy/dx = W^T = [[3 4]]
	x, _ := FromSlice([]float32{1.0, 2.0}, []int{1, 2})
	w, _ := FromSlice([]float32{3.0, 4.0}, []int{2, 1})
	b, _ := FromSlice([]float32{5.0}, []int{1})
	x.SetRequiresGrad(true)
	w.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	xw, err := MatMulAutograd(x, w)
	if err != nil {
		t.Fatalf("MatMulAutograd failed: %v", err)
	}
	out, err := AddAutograd(xw, b)
	if err != nil {
		t.Fatalf("AddAutograd failed: %v", err)
	}
	loss, err := MeanAutograd(out)
	if err != nil {
		t.Fatalf("MeanAutograd failed: %v", err)
	}

	if v, _ := loss.Item(); v != 16.0 {
		t.Fatalf("Forward value = %v, expected 16", v)
	}

	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	if w.Grad() == nil {
		t.Fatal("Weight gradient not populated")
	}
	if !reflect.DeepEqual(w.Grad().Data.([]float32), []float32{1.0, 2.0}) {
		t.Errorf("dW = %v, expected [1 2]", w.Grad().Data)
	}
	if !reflect.DeepEqual(b.Grad().Data.([]float32), []float32{1.0}) {
		t.Errorf("db = %v, expected [1]", b.Grad().Data)
	}
	if !reflect.DeepEqual(x.Grad().Data.([]float32), []float32{3.0, 4.0}) {
		t.Errorf("dx = %v, expected [3 4]", x.Grad().Data)
	}
}

func TestBackwardMeanSpreadsGradient(t *testing.T) {
	// loss = mean(x) over 4 elements: each element receives gradient 1/4.
	x, _ := FromSlice([]float32{1.0, 2.0, 3.0, 4.0}, []int{4})
	x.SetRequiresGrad(true)

	loss, err := MeanAutograd(x)
	if err != nil {
		t.Fatalf("MeanAutograd failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	for i, g := range x.Grad().Data.([]float32) {
		if math.Abs(float64(g)-0.25) > 1e-6 {
			t.Errorf("Gradient[%d] = %v, expected 0.25", i, g)
		}
	}
}

func TestBackwardSumFillsOnes(t *testing.T) {
	x, _ := FromSlice([]float32{1.0, 2.0, 3.0}, []int{3})
	x.SetRequiresGrad(true)

	loss, err := SumAutograd(x)
	if err != nil {
		t.Fatalf("SumAutograd failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	for i, g := range x.Grad().Data.([]float32) {
		if g != 1.0 {
			t.Errorf("Gradient[%d] = %v, expected 1", i, g)
		}
	}
}

func TestBackwardSubAndScalarMul(t *testing.T) {
	// loss = mean(a) - k * mean(b) with k = 0.5
	// d loss / d a_i = 1/2, d loss / d b_i = -0.25
	a, _ := FromSlice([]float32{0.8, 0.6}, []int{2})
	b, _ := FromSlice([]float32{0.3, 0.5}, []int{2})
	a.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	lossReal, err := MeanAutograd(a)
	if err != nil {
		t.Fatalf("MeanAutograd failed: %v", err)
	}
	lossFake, err := MeanAutograd(b)
	if err != nil {
		t.Fatalf("MeanAutograd failed: %v", err)
	}
	scaled, err := MulAutograd(FromScalar(0.5), lossFake)
	if err != nil {
		t.Fatalf("MulAutograd failed: %v", err)
	}
	total, err := SubAutograd(lossReal, scaled)
	if err != nil {
		t.Fatalf("SubAutograd failed: %v", err)
	}

	if v, _ := total.Item(); math.Abs(float64(v)-0.5) > 1e-6 {
		t.Fatalf("Forward value = %v, expected 0.5", v)
	}

	if err := total.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	for i, g := range a.Grad().Data.([]float32) {
		if math.Abs(float64(g)-0.5) > 1e-6 {
			t.Errorf("da[%d] = %v, expected 0.5", i, g)
		}
	}
	for i, g := range b.Grad().Data.([]float32) {
		if math.Abs(float64(g)+0.25) > 1e-6 {
			t.Errorf("db[%d] = %v, expected -0.25", i, g)
		}
	}
}

func TestBackwardReLUMask(t *testing.T) {
	x, _ := FromSlice([]float32{-1.0, 2.0, -3.0, 4.0}, []int{4})
	x.SetRequiresGrad(true)

	activated, err := ReLUAutograd(x)
	if err != nil {
		t.Fatalf("ReLUAutograd failed: %v", err)
	}
	loss, err := SumAutograd(activated)
	if err != nil {
		t.Fatalf("SumAutograd failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	expected := []float32{0.0, 1.0, 0.0, 1.0}
	if !reflect.DeepEqual(x.Grad().Data.([]float32), expected) {
		t.Errorf("dx = %v, expected %v", x.Grad().Data, expected)
	}
}

func TestBackwardSigmoidDerivative(t *testing.T) {
	// d sigmoid(0) / dx = 0.5 * (1 - 0.5) = 0.25
	x, _ := FromSlice([]float32{0.0}, []int{1})
	x.SetRequiresGrad(true)

	y, err := SigmoidAutograd(x)
	if err != nil {
		t.Fatalf("SigmoidAutograd failed: %v", err)
	}
	loss, err := SumAutograd(y)
	if err != nil {
		t.Fatalf("SumAutograd failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	if g := x.Grad().Data.([]float32)[0]; math.Abs(float64(g)-0.25) > 1e-6 {
		t.Errorf("dx = %v, expected 0.25", g)
	}
}

func TestGradientsAccumulateAcrossBackwardCalls(t *testing.T) {
	x, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
	x.SetRequiresGrad(true)

	for i := 0; i < 2; i++ {
		loss, err := SumAutograd(x)
		if err != nil {
			t.Fatalf("SumAutograd failed: %v", err)
		}
		if err := loss.Backward(); err != nil {
			t.Fatalf("Backward failed: %v", err)
		}
	}

	for i, g := range x.Grad().Data.([]float32) {
		if g != 2.0 {
			t.Errorf("Gradient[%d] = %v, expected 2 after two backward passes", i, g)
		}
	}

	x.ZeroGrad()
	if x.Grad() != nil {
		t.Error("ZeroGrad should clear the gradient")
	}
}

func TestDetachStopsGradient(t *testing.T) {
	x, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
	x.SetRequiresGrad(true)

	doubled, err := MulAutograd(x, FromScalar(2.0))
	if err != nil {
		t.Fatalf("MulAutograd failed: %v", err)
	}

	detached := doubled.Detach()
	if detached.RequiresGrad() {
		t.Error("Detached tensor should not require gradients")
	}
	if detached.Creator() != nil {
		t.Error("Detached tensor should have no creator")
	}
	if !reflect.DeepEqual(detached.Data.([]float32), doubled.Data.([]float32)) {
		t.Error("Detached tensor should share the same values")
	}

	// Operations on the detached tensor stay untracked.
	loss, err := SumAutograd(detached)
	if err != nil {
		t.Fatalf("SumAutograd failed: %v", err)
	}
	if loss.Creator() != nil {
		t.Error("Graph should not extend through a detached tensor")
	}
	if x.Grad() != nil {
		t.Error("Original input should have no gradient")
	}
}

func TestPlainOpsDoNotBuildGraph(t *testing.T) {
	x, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
	x.SetRequiresGrad(true)

	sum, err := Sum(x)
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	if sum.Creator() != nil {
		t.Error("Plain Sum should not record a graph node")
	}
	if sum.RequiresGrad() {
		t.Error("Plain Sum result should not require gradients")
	}
}

func TestBackwardErrors(t *testing.T) {
	t.Run("Non-scalar start", func(t *testing.T) {
		x, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
		x.SetRequiresGrad(true)
		y, err := MulAutograd(x, FromScalar(3.0))
		if err != nil {
			t.Fatalf("MulAutograd failed: %v", err)
		}
		if err := y.Backward(); err == nil {
			t.Error("Expected error for backward from non-scalar tensor")
		}
	})

	t.Run("Leaf tensor", func(t *testing.T) {
		x := FromScalar(1.0)
		x.SetRequiresGrad(true)
		if err := x.Backward(); err == nil {
			t.Error("Expected error for backward from a leaf tensor")
		}
	})
}

func TestBackwardDiamondGraph(t *testing.T) {
	// loss = sum(x * x): gradient accumulates from both mul operands, 2x.
	x, _ := FromSlice([]float32{1.0, 3.0}, []int{2})
	x.SetRequiresGrad(true)

	squared, err := MulAutograd(x, x)
	if err != nil {
		t.Fatalf("MulAutograd failed: %v", err)
	}
	loss, err := SumAutograd(squared)
	if err != nil {
		t.Fatalf("SumAutograd failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	expected := []float32{2.0, 6.0}
	if !reflect.DeepEqual(x.Grad().Data.([]float32), expected) {
		t.Errorf("dx = %v, expected %v", x.Grad().Data, expected)
	}
}

func TestBackwardRowBroadcastBias(t *testing.T) {
	// Bias vector receives column sums of the upstream gradient.
	x, _ := FromSlice([]float32{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}, []int{2, 3})
	bias, _ := FromSlice([]float32{0.1, 0.2, 0.3}, []int{3})
	x.SetRequiresGrad(true)
	bias.SetRequiresGrad(true)

	shifted, err := AddAutograd(x, bias)
	if err != nil {
		t.Fatalf("AddAutograd failed: %v", err)
	}
	loss, err := SumAutograd(shifted)
	if err != nil {
		t.Fatalf("SumAutograd failed: %v", err)
	}
	if err := loss.Backward(); err != nil {
		t.Fatalf("Backward failed: %v", err)
	}

	expected := []float32{2.0, 2.0, 2.0}
	if !reflect.DeepEqual(bias.Grad().Data.([]float32), expected) {
		t.Errorf("db = %v, expected %v", bias.Grad().Data, expected)
	}
}
