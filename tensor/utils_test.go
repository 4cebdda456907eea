package tensor

import (
	"reflect"
	"testing"
)

func TestItem(t *testing.T) {
	t.Run("Scalar tensor", func(t *testing.T) {
		s := FromScalar(2.5)
		v, err := s.Item()
		if err != nil {
			t.Fatalf("Item failed: %v", err)
		}
		if v != 2.5 {
			t.Errorf("Item = %v, expected 2.5", v)
		}
	})

	t.Run("Single element vector", func(t *testing.T) {
		s, _ := FromSlice([]float32{7.0}, []int{1})
		v, err := s.Item()
		if err != nil {
			t.Fatalf("Item failed: %v", err)
		}
		if v != 7.0 {
			t.Errorf("Item = %v, expected 7", v)
		}
	})

	t.Run("Multi element rejected", func(t *testing.T) {
		s, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
		if _, err := s.Item(); err == nil {
			t.Error("Expected error for multi-element tensor")
		}
	})
}

func TestClone(t *testing.T) {
	original, _ := FromSlice([]float32{1.0, 2.0, 3.0}, []int{3})
	original.SetRequiresGrad(true)

	clone := original.Clone()
	clone.Data.([]float32)[0] = 99.0

	if original.Data.([]float32)[0] != 1.0 {
		t.Error("Clone should not share data with the original")
	}
	if !clone.RequiresGrad() {
		t.Error("Clone should keep the requires-grad flag")
	}
	if clone.Creator() != nil {
		t.Error("Clone should not carry the computation graph")
	}
}

func TestReshape(t *testing.T) {
	t.Run("Valid reshape shares data", func(t *testing.T) {
		x, _ := FromSlice([]float32{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}, []int{2, 3})
		r, err := x.Reshape([]int{3, 2})
		if err != nil {
			t.Fatalf("Reshape failed: %v", err)
		}
		if !reflect.DeepEqual(r.Shape, []int{3, 2}) {
			t.Errorf("Shape = %v, expected [3 2]", r.Shape)
		}
		r.Data.([]float32)[0] = 42.0
		if x.Data.([]float32)[0] != 42.0 {
			t.Error("Reshape should share the underlying data")
		}
	})

	t.Run("Element count mismatch", func(t *testing.T) {
		x, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
		if _, err := x.Reshape([]int{3}); err == nil {
			t.Error("Expected error for element count mismatch")
		}
	})
}

func TestUnsqueezeSqueeze(t *testing.T) {
	x, _ := FromSlice([]float32{1.0, 2.0, 3.0}, []int{3})

	batched, err := x.Unsqueeze(0)
	if err != nil {
		t.Fatalf("Unsqueeze failed: %v", err)
	}
	if !reflect.DeepEqual(batched.Shape, []int{1, 3}) {
		t.Errorf("Shape after unsqueeze = %v, expected [1 3]", batched.Shape)
	}

	restored, err := batched.Squeeze(0)
	if err != nil {
		t.Fatalf("Squeeze failed: %v", err)
	}
	if !reflect.DeepEqual(restored.Shape, []int{3}) {
		t.Errorf("Shape after squeeze = %v, expected [3]", restored.Shape)
	}

	t.Run("Squeeze non-unit dimension", func(t *testing.T) {
		y, _ := FromSlice([]float32{1.0, 2.0, 3.0, 4.0}, []int{2, 2})
		if _, err := y.Squeeze(0); err == nil {
			t.Error("Expected error squeezing a dimension of size 2")
		}
	})
}

func TestAtSetAt(t *testing.T) {
	x, _ := FromSlice([]float32{1.0, 2.0, 3.0, 4.0, 5.0, 6.0}, []int{2, 3})

	v, err := x.At(1, 2)
	if err != nil {
		t.Fatalf("At failed: %v", err)
	}
	if v != 6.0 {
		t.Errorf("At(1,2) = %v, expected 6", v)
	}

	if err := x.SetAt(-1.0, 0, 1); err != nil {
		t.Fatalf("SetAt failed: %v", err)
	}
	if x.Data.([]float32)[1] != -1.0 {
		t.Errorf("SetAt did not update the element")
	}

	t.Run("Out of range", func(t *testing.T) {
		if _, err := x.At(2, 0); err == nil {
			t.Error("Expected error for row index out of range")
		}
	})

	t.Run("Wrong arity", func(t *testing.T) {
		if _, err := x.At(1); err == nil {
			t.Error("Expected error for wrong index count")
		}
	})
}

func TestDevicePlacement(t *testing.T) {
	x, _ := FromSlice([]float32{1.0}, []int{1})
	if x.Device != CPU {
		t.Fatalf("New tensors should default to CPU placement")
	}

	x.ToDevice(GPU)
	if x.Device != GPU {
		t.Errorf("Device = %v, expected GPU", x.Device)
	}

	x.ToCPU()
	if x.Device != CPU {
		t.Errorf("Device = %v, expected CPU", x.Device)
	}
}

func TestEqual(t *testing.T) {
	a, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
	b, _ := FromSlice([]float32{1.0, 2.0}, []int{2})
	c, _ := FromSlice([]float32{1.0, 3.0}, []int{2})
	d, _ := FromSlice([]float32{1.0, 2.0}, []int{2, 1})

	if !Equal(a, b) {
		t.Error("Identical tensors should compare equal")
	}
	if Equal(a, c) {
		t.Error("Different data should not compare equal")
	}
	if Equal(a, d) {
		t.Error("Different shapes should not compare equal")
	}
}
