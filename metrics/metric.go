// Package metrics provides evaluation metrics for generative models.
package metrics

import (
	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// EvaluationMetric scores the quality of generated samples. Implementations
// turn raw samples into classifier inputs and reduce them to a scalar.
type EvaluationMetric interface {
	// Name identifies the metric in logs and summaries.
	Name() string

	// Preprocess converts a raw sample into the representation expected
	// by CalculateScore.
	Preprocess(x *tensor.Tensor) (*tensor.Tensor, error)

	// CalculateScore reduces preprocessed data to a single score.
	CalculateScore(x *tensor.Tensor) (float64, error)

	// MetricOps draws a fresh sample from the generator and scores it.
	MetricOps(generator models.Generator, device tensor.DeviceType) (float64, error)
}

// Score runs a metric end to end on a raw sample.
func Score(metric EvaluationMetric, x *tensor.Tensor) (float64, error) {
	processed, err := metric.Preprocess(x)
	if err != nil {
		return 0, err
	}
	return metric.CalculateScore(processed)
}
