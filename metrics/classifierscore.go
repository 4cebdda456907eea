package metrics

import (
	"errors"
	"fmt"

	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// Classifier maps a batch of samples to per-class logits of shape
// (batch, classes).
type Classifier interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

// Transform rewrites a sample before it reaches the classifier, for
// example to rescale pixel ranges.
type Transform func(x *tensor.Tensor) (*tensor.Tensor, error)

// ClassifierScore measures how confidently a fixed classifier labels
// generated samples and how diverse those labels are across the batch.
// The score is exp(E[KL(p(y|x) || p(y))]) over the classifier's predictive
// distributions; it ranges from 1 for an uninformative generator up to the
// number of classes for a perfect one.
//
// Scoring runs on detached tensors only, so no gradient state is recorded.
type ClassifierScore struct {
	classifier Classifier
	transform  Transform
	argMap     map[string]string
}

// NewClassifierScore builds the metric around a trained classifier. The
// transform is optional and may be nil.
func NewClassifierScore(classifier Classifier, transform Transform) (*ClassifierScore, error) {
	if classifier == nil {
		return nil, errors.New("metrics: classifier must not be nil")
	}
	return &ClassifierScore{
		classifier: classifier,
		transform:  transform,
		argMap:     make(map[string]string),
	}, nil
}

// Name identifies the metric.
func (m *ClassifierScore) Name() string {
	return "ClassifierScore"
}

// SetArgMap merges the given overrides into the metric's argument map.
// Existing keys are replaced, other entries are kept.
func (m *ClassifierScore) SetArgMap(overrides map[string]string) {
	for k, v := range overrides {
		m.argMap[k] = v
	}
}

// ArgMap returns the current argument name mapping.
func (m *ClassifierScore) ArgMap() map[string]string {
	return m.argMap
}

// Preprocess applies the optional transform, prepends a batch dimension and
// runs the classifier, returning its logits.
func (m *ClassifierScore) Preprocess(x *tensor.Tensor) (*tensor.Tensor, error) {
	if m.transform != nil {
		var err error
		x, err = m.transform(x)
		if err != nil {
			return nil, fmt.Errorf("transform failed: %v", err)
		}
	}
	batched, err := x.Unsqueeze(0)
	if err != nil {
		return nil, fmt.Errorf("batching sample failed: %v", err)
	}
	logits, err := m.classifier.Forward(batched)
	if err != nil {
		return nil, fmt.Errorf("classifier forward failed: %v", err)
	}
	return logits, nil
}

// CalculateScore computes exp(mean(KL(p || q))) from a (batch, classes)
// logit tensor, where p holds the per-sample class probabilities and q
// their marginal over the batch.
//
// Degenerate logits follow IEEE semantics: infinities and NaNs propagate
// into the returned score without an error.
func (m *ClassifierScore) CalculateScore(x *tensor.Tensor) (float64, error) {
	if len(x.Shape) != 2 {
		return 0, fmt.Errorf("metrics: expected logits of shape (batch, classes), got %v", x.Shape)
	}

	p, err := tensor.Softmax(x)
	if err != nil {
		return 0, fmt.Errorf("softmax failed: %v", err)
	}
	q, err := tensor.MeanDim(p, 0)
	if err != nil {
		return 0, fmt.Errorf("marginal failed: %v", err)
	}

	logP, err := tensor.LogSoftmax(x)
	if err != nil {
		return 0, fmt.Errorf("log_softmax failed: %v", err)
	}
	logQ, err := tensor.Log(q)
	if err != nil {
		return 0, fmt.Errorf("log marginal failed: %v", err)
	}

	// kl[i] = sum_c p[i,c] * (log p[i,c] - log q[c])
	diff, err := tensor.Sub(logP, logQ)
	if err != nil {
		return 0, fmt.Errorf("log ratio failed: %v", err)
	}
	weighted, err := tensor.Mul(p, diff)
	if err != nil {
		return 0, fmt.Errorf("weighting failed: %v", err)
	}
	kl, err := tensor.SumDim(weighted, 1)
	if err != nil {
		return 0, fmt.Errorf("divergence sum failed: %v", err)
	}
	meanKL, err := tensor.Mean(kl)
	if err != nil {
		return 0, fmt.Errorf("divergence mean failed: %v", err)
	}
	score, err := tensor.Exp(meanKL)
	if err != nil {
		return 0, fmt.Errorf("exponentiation failed: %v", err)
	}

	v, err := score.Item()
	if err != nil {
		return 0, fmt.Errorf("score extraction failed: %v", err)
	}
	return float64(v), nil
}

// MetricOps draws one sample from the generator, moves it off the compute
// graph and onto the CPU, and scores it through the full pipeline.
func (m *ClassifierScore) MetricOps(generator models.Generator, device tensor.DeviceType) (float64, error) {
	noise, err := tensor.RandomNormal([]int{1, generator.EncodingDims()}, 0.0, 1.0)
	if err != nil {
		return 0, fmt.Errorf("noise sampling failed: %v", err)
	}
	noise.ToDevice(device)

	sample, err := generator.Forward(noise, nil)
	if err != nil {
		return 0, fmt.Errorf("generator forward failed: %v", err)
	}
	detached := sample.Detach().ToCPU()
	squeezed, err := detached.Squeeze(0)
	if err != nil {
		return 0, fmt.Errorf("unbatching sample failed: %v", err)
	}

	return Score(m, squeezed)
}
