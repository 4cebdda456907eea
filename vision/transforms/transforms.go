// Package transforms provides tensor rewrites applied to samples before
// scoring or display.
package transforms

import (
	"fmt"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// Transform rewrites a sample tensor. The alias keeps constructors
// assignable to any consumer declaring the same signature.
type Transform = func(*tensor.Tensor) (*tensor.Tensor, error)

// Normalize shifts and scales every element: (x - mean) / std.
func Normalize(mean, std float32) Transform {
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		if std == 0 {
			return nil, fmt.Errorf("normalize requires a nonzero std")
		}
		shifted, err := tensor.AddScalar(t, -mean)
		if err != nil {
			return nil, err
		}
		return tensor.DivScalar(shifted, std)
	}
}

// Denormalize reverses Normalize: x * std + mean.
func Denormalize(mean, std float32) Transform {
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		scaled, err := tensor.MulScalar(t, std)
		if err != nil {
			return nil, err
		}
		return tensor.AddScalar(scaled, mean)
	}
}

// Scale maps values linearly from [fromLow, fromHigh] to [toLow, toHigh].
func Scale(fromLow, fromHigh, toLow, toHigh float32) Transform {
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		if fromHigh <= fromLow {
			return nil, fmt.Errorf("scale requires fromHigh > fromLow, got [%v, %v]", fromLow, fromHigh)
		}
		ratio := (toHigh - toLow) / (fromHigh - fromLow)
		shifted, err := tensor.AddScalar(t, -fromLow)
		if err != nil {
			return nil, err
		}
		scaled, err := tensor.MulScalar(shifted, ratio)
		if err != nil {
			return nil, err
		}
		return tensor.AddScalar(scaled, toLow)
	}
}

// TanhRescale maps tanh-range output from [-1, 1] to pixel range [0, 1].
func TanhRescale() Transform {
	return Scale(-1, 1, 0, 1)
}

// Clamp limits every element to [min, max].
func Clamp(min, max float32) Transform {
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		return tensor.Clamp(t, min, max)
	}
}

// Flatten reshapes a sample to rank one, preserving element order.
func Flatten() Transform {
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		return t.Reshape([]int{t.NumElems})
	}
}

// NormalizeChannels normalizes a (channels, height, width) tensor with
// per-channel statistics.
func NormalizeChannels(means, stds []float32) Transform {
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		if len(t.Shape) != 3 {
			return nil, fmt.Errorf("channel normalize requires a rank-3 tensor, got shape %v", t.Shape)
		}
		channels := t.Shape[0]
		if len(means) != channels || len(stds) != channels {
			return nil, fmt.Errorf("channel normalize: %d channels but %d means and %d stds",
				channels, len(means), len(stds))
		}
		for c, std := range stds {
			if std == 0 {
				return nil, fmt.Errorf("channel normalize: zero std for channel %d", c)
			}
		}

		data, err := t.Float32s()
		if err != nil {
			return nil, err
		}
		out, err := tensor.NewTensor(t.Shape, t.DType, t.Device)
		if err != nil {
			return nil, err
		}
		od := out.Data.([]float32)

		planeSize := t.Shape[1] * t.Shape[2]
		for c := 0; c < channels; c++ {
			offset := c * planeSize
			for i := 0; i < planeSize; i++ {
				od[offset+i] = (data[offset+i] - means[c]) / stds[c]
			}
		}
		return out, nil
	}
}

// Compose chains transforms left to right.
func Compose(transforms ...Transform) Transform {
	return func(t *tensor.Tensor) (*tensor.Tensor, error) {
		var err error
		for i, transform := range transforms {
			t, err = transform(t)
			if err != nil {
				return nil, fmt.Errorf("transform %d failed: %v", i, err)
			}
		}
		return t, nil
	}
}
