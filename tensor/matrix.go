package tensor

import (
	"fmt"
)

// MatMul computes the matrix product of two rank-2 tensors with shapes
// (m, k) and (k, n), producing an (m, n) result.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if a.DType != Float32 || b.DType != Float32 {
		return nil, fmt.Errorf("matmul requires Float32 tensors, got %s and %s", a.DType, b.DType)
	}
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires rank-2 tensors, got shapes %v and %v", a.Shape, b.Shape)
	}
	if a.Shape[1] != b.Shape[0] {
		return nil, fmt.Errorf("matmul dimension mismatch: %v x %v", a.Shape, b.Shape)
	}

	m, k, n := a.Shape[0], a.Shape[1], b.Shape[1]
	out, err := NewTensor([]int{m, n}, Float32, a.Device)
	if err != nil {
		return nil, err
	}

	ad, bd, od := a.Data.([]float32), b.Data.([]float32), out.Data.([]float32)
	for i := 0; i < m; i++ {
		for p := 0; p < k; p++ {
			av := ad[i*k+p]
			if av == 0 {
				continue
			}
			for j := 0; j < n; j++ {
				od[i*n+j] += av * bd[p*n+j]
			}
		}
	}
	return out, nil
}

// Transpose swaps the two dimensions of a rank-2 tensor.
func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose requires a rank-2 tensor, got shape %v", t.Shape)
	}
	if t.DType != Float32 {
		return nil, fmt.Errorf("transpose requires a Float32 tensor, got %s", t.DType)
	}

	rows, cols := t.Shape[0], t.Shape[1]
	out, err := NewTensor([]int{cols, rows}, Float32, t.Device)
	if err != nil {
		return nil, err
	}

	td, od := t.Data.([]float32), out.Data.([]float32)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			od[j*rows+i] = td[i*cols+j]
		}
	}
	return out, nil
}
