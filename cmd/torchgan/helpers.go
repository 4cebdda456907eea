package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaunstanislauslau/torchgan/checkpoints"
	"github.com/shaunstanislauslau/torchgan/models"
	"github.com/shaunstanislauslau/torchgan/optimizer"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// newLogger builds the CLI logger. Verbose enables debug-level output.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// formatForPath picks the checkpoint format from the file extension:
// .json selects JSON, everything else the compact binary format.
func formatForPath(path string) checkpoints.CheckpointFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return checkpoints.FormatJSON
	}
	return checkpoints.FormatBinary
}

// restoreDenseGenerator rebuilds an unconditioned dense generator from a
// checkpoint and loads its weights. The dense layout stores input weight,
// input bias, output weight and output bias in that order, so the
// architecture is recovered from the saved shapes.
func restoreDenseGenerator(checkpoint *checkpoints.Checkpoint) (*models.DenseGenerator, error) {
	weights := checkpoint.GeneratorWeights
	if len(weights) != 4 {
		return nil, fmt.Errorf("expected 4 generator weight tensors for the dense layout, got %d", len(weights))
	}
	if len(weights[0].Shape) != 2 || len(weights[2].Shape) != 2 {
		return nil, fmt.Errorf("unexpected generator weight shapes %v and %v", weights[0].Shape, weights[2].Shape)
	}

	encodingDims := weights[0].Shape[0]
	hiddenSize := weights[0].Shape[1]
	features := weights[2].Shape[1]

	generator, err := models.NewDenseGenerator(encodingDims, hiddenSize, features, 0, models.LabelNone)
	if err != nil {
		return nil, err
	}
	if err := checkpoints.RestoreParameters(weights, generator.Parameters()); err != nil {
		return nil, fmt.Errorf("restore generator: %w", err)
	}
	return generator, nil
}

// trainToyClassifier fits a small dense classifier on synthetic class blobs
// so the classifier score has a reference label distribution. Each class
// center sits one unit out along its own coordinate axis, which keeps the
// blobs separable as long as the feature count covers the class count.
func trainToyClassifier(features, classes, epochs int, log *slog.Logger) (*models.Sequential, error) {
	if classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", classes)
	}
	if features < classes {
		return nil, fmt.Errorf("need at least %d features for %d class centers, got %d", classes, classes, features)
	}
	if epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", epochs)
	}

	const samplesPerClass = 64
	n := classes * samplesPerClass

	inputs, err := tensor.RandomNormal([]int{n, features}, 0, 0.15)
	if err != nil {
		return nil, err
	}
	targets, err := tensor.Zeros([]int{n, classes})
	if err != nil {
		return nil, err
	}

	inputData, err := inputs.Float32s()
	if err != nil {
		return nil, err
	}
	targetData, err := targets.Float32s()
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		class := i / samplesPerClass
		inputData[i*features+class] += 1.0
		targetData[i*classes+class] = 1.0
	}

	input, err := models.NewLinear(features, 32, true)
	if err != nil {
		return nil, err
	}
	output, err := models.NewLinear(32, classes, true)
	if err != nil {
		return nil, err
	}
	model := models.NewSequential(input, models.NewReLU(), output)

	opt := optimizer.NewAdamDefault(model.Parameters(), 0.01)

	var mse float32
	for epoch := 0; epoch < epochs; epoch++ {
		opt.ZeroGrad()

		logits, err := model.Forward(inputs)
		if err != nil {
			return nil, err
		}
		diff, err := tensor.SubAutograd(logits, targets)
		if err != nil {
			return nil, err
		}
		squared, err := tensor.MulAutograd(diff, diff)
		if err != nil {
			return nil, err
		}
		loss, err := tensor.MeanAutograd(squared)
		if err != nil {
			return nil, err
		}

		if err := loss.Backward(); err != nil {
			return nil, err
		}
		if err := opt.Step(); err != nil {
			return nil, err
		}

		mse, err = loss.Item()
		if err != nil {
			return nil, err
		}
	}

	log.Debug("toy classifier fitted",
		slog.Int("classes", classes),
		slog.Int("epochs", epochs),
		slog.Float64("mse", float64(mse)))

	model.Eval()
	return model, nil
}

// shortID trims a UUID down to its first group for compact listings.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}
