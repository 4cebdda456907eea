package metrics

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// Summary aggregates repeated metric evaluations.
type Summary struct {
	Name   string
	Rounds int
	Mean   float64
	StdDev float64
	Min    float64
	Max    float64
	Scores []float64
}

// Evaluator runs a metric repeatedly against freshly generated samples and
// reports aggregate statistics over the individual scores.
type Evaluator struct {
	metric EvaluationMetric
	rounds int
}

// NewEvaluator wraps a metric for repeated evaluation. Rounds below one
// fall back to a single round.
func NewEvaluator(metric EvaluationMetric, rounds int) *Evaluator {
	if rounds < 1 {
		rounds = 1
	}
	return &Evaluator{metric: metric, rounds: rounds}
}

// Evaluate scores the generator once per round and summarizes the results.
func (e *Evaluator) Evaluate(generator models.Generator, device tensor.DeviceType) (Summary, error) {
	scores := make([]float64, 0, e.rounds)
	for i := 0; i < e.rounds; i++ {
		score, err := e.metric.MetricOps(generator, device)
		if err != nil {
			return Summary{}, fmt.Errorf("metric round %d failed: %v", i, err)
		}
		scores = append(scores, score)
	}

	summary := Summary{
		Name:   e.metric.Name(),
		Rounds: len(scores),
		Mean:   stat.Mean(scores, nil),
		Min:    floats.Min(scores),
		Max:    floats.Max(scores),
		Scores: scores,
	}
	if len(scores) > 1 {
		summary.StdDev = stat.StdDev(scores, nil)
	}
	return summary, nil
}
