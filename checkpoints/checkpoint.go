// Package checkpoints persists GAN training state, including both model
// weight sets and the adversarial balance controller.
package checkpoints

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/shaunstanislauslau/torchgan/losses"
	"github.com/shaunstanislauslau/torchgan/tensor"
)

// CheckpointFormat defines the serialization format
type CheckpointFormat int

const (
	FormatJSON CheckpointFormat = iota
	FormatBinary
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Checkpoint represents a complete training state: generator and
// discriminator weights, the balance controller and training metadata.
type Checkpoint struct {
	GeneratorWeights     []WeightTensor `json:"generator_weights"`
	DiscriminatorWeights []WeightTensor `json:"discriminator_weights"`

	// Balance controller state
	Balance BalanceSnapshot `json:"balance"`

	// Training progress
	TrainingState TrainingState `json:"training_state"`

	// Metadata
	Metadata CheckpointMetadata `json:"metadata"`
}

// WeightTensor represents a model parameter tensor with its data
type WeightTensor struct {
	Name  string    `json:"name"`
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
	Role  string    `json:"role"` // "weight" or "bias"
}

// BalanceSnapshot captures the adversarial balance controller at a point
// in time.
type BalanceSnapshot struct {
	K              float64 `json:"k"`
	Lambda         float64 `json:"lambda"`
	Gamma          float64 `json:"gamma"`
	Convergence    float64 `json:"convergence,omitempty"`
	HasConvergence bool    `json:"has_convergence"`
}

// TrainingState captures the current training progress
type TrainingState struct {
	Epoch           int     `json:"epoch"`
	Step            int     `json:"step"`
	GeneratorLR     float64 `json:"generator_lr"`
	DiscriminatorLR float64 `json:"discriminator_lr"`
	BestConvergence float64 `json:"best_convergence"`
	TotalSteps      int     `json:"total_steps"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	Version     string    `json:"version"`
	Framework   string    `json:"framework"`
	RunID       string    `json:"run_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// CheckpointSaver handles saving checkpoints in various formats
type CheckpointSaver struct {
	format CheckpointFormat
}

// NewCheckpointSaver creates a new checkpoint saver for the specified format
func NewCheckpointSaver(format CheckpointFormat) *CheckpointSaver {
	return &CheckpointSaver{
		format: format,
	}
}

// SaveCheckpoint saves a complete training checkpoint
func (cs *CheckpointSaver) SaveCheckpoint(checkpoint *Checkpoint, path string) error {
	switch cs.format {
	case FormatJSON:
		return cs.saveJSON(checkpoint, path)
	case FormatBinary:
		return cs.saveBinary(checkpoint, path)
	default:
		return fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

// LoadCheckpoint loads a training checkpoint
func (cs *CheckpointSaver) LoadCheckpoint(path string) (*Checkpoint, error) {
	switch cs.format {
	case FormatJSON:
		return cs.loadJSON(path)
	case FormatBinary:
		return cs.loadBinary(path)
	default:
		return nil, fmt.Errorf("unsupported checkpoint format: %s", cs.format.String())
	}
}

// saveJSON saves checkpoint in JSON format
func (cs *CheckpointSaver) saveJSON(checkpoint *Checkpoint, path string) error {
	fillMetadata(checkpoint)

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint file: %v", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(checkpoint); err != nil {
		return fmt.Errorf("failed to encode checkpoint: %v", err)
	}

	return nil
}

// loadJSON loads checkpoint from JSON format
func (cs *CheckpointSaver) loadJSON(path string) (*Checkpoint, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %v", err)
	}
	defer file.Close()

	var checkpoint Checkpoint
	decoder := json.NewDecoder(file)

	if err := decoder.Decode(&checkpoint); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}

	return &checkpoint, nil
}

// saveBinary saves checkpoint in the compact wire format
func (cs *CheckpointSaver) saveBinary(checkpoint *Checkpoint, path string) error {
	fillMetadata(checkpoint)

	data := marshalCheckpoint(checkpoint)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %v", err)
	}
	return nil
}

// loadBinary loads checkpoint from the compact wire format
func (cs *CheckpointSaver) loadBinary(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint file: %v", err)
	}
	checkpoint, err := unmarshalCheckpoint(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %v", err)
	}
	return checkpoint, nil
}

func fillMetadata(checkpoint *Checkpoint) {
	if checkpoint.Metadata.Framework == "" {
		checkpoint.Metadata.Framework = "torchgan"
		checkpoint.Metadata.Version = "1.0.0"
		checkpoint.Metadata.CreatedAt = time.Now()
	}
}

// CaptureParameters snapshots parameter tensors in order under the given
// prefix. Rank-2 tensors are tagged as weights and rank-1 tensors as
// biases, following the dense layer parameter layout.
func CaptureParameters(prefix string, params []*tensor.Tensor) ([]WeightTensor, error) {
	weights := make([]WeightTensor, 0, len(params))
	for i, param := range params {
		data, err := param.Float32s()
		if err != nil {
			return nil, fmt.Errorf("failed to read parameter %d: %v", i, err)
		}
		copied := make([]float32, len(data))
		copy(copied, data)
		shape := make([]int, len(param.Shape))
		copy(shape, param.Shape)

		role := "weight"
		if len(param.Shape) == 1 {
			role = "bias"
		}
		weights = append(weights, WeightTensor{
			Name:  fmt.Sprintf("%s.%d.%s", prefix, i, role),
			Shape: shape,
			Data:  copied,
			Role:  role,
		})
	}
	return weights, nil
}

// RestoreParameters copies saved weights back into live parameter tensors.
// Parameters must arrive in the same order they were captured.
func RestoreParameters(weights []WeightTensor, params []*tensor.Tensor) error {
	if len(weights) != len(params) {
		return fmt.Errorf("weight count mismatch: %d saved, %d live", len(weights), len(params))
	}

	for i, param := range params {
		weight := weights[i]

		if len(param.Shape) != len(weight.Shape) {
			return fmt.Errorf("shape mismatch for weight %s: tensor %v vs saved %v",
				weight.Name, param.Shape, weight.Shape)
		}
		for j, dim := range param.Shape {
			if dim != weight.Shape[j] {
				return fmt.Errorf("dimension mismatch for weight %s at index %d: tensor %d vs saved %d",
					weight.Name, j, dim, weight.Shape[j])
			}
		}

		if err := param.SetData(weight.Data); err != nil {
			return fmt.Errorf("failed to copy weight data for %s: %v", weight.Name, err)
		}
	}

	return nil
}

// ParameterSource is any model whose trainable tensors can be captured
// and restored. Both generator and discriminator variants satisfy it.
type ParameterSource interface {
	Parameters() []*tensor.Tensor
}

// CaptureGAN builds a checkpoint from both models and the balance
// controller driving their training.
func CaptureGAN(generator, discriminator ParameterSource, loss *losses.BoundaryEquilibriumDiscriminatorLoss) (*Checkpoint, error) {
	genWeights, err := CaptureParameters("generator", generator.Parameters())
	if err != nil {
		return nil, fmt.Errorf("failed to capture generator: %v", err)
	}
	dscWeights, err := CaptureParameters("discriminator", discriminator.Parameters())
	if err != nil {
		return nil, fmt.Errorf("failed to capture discriminator: %v", err)
	}

	return &Checkpoint{
		GeneratorWeights:     genWeights,
		DiscriminatorWeights: dscWeights,
		Balance:              SnapshotBalance(loss),
	}, nil
}

// RestoreGAN loads checkpoint weights back into both models.
func RestoreGAN(checkpoint *Checkpoint, generator, discriminator ParameterSource) error {
	if err := RestoreParameters(checkpoint.GeneratorWeights, generator.Parameters()); err != nil {
		return fmt.Errorf("failed to restore generator: %v", err)
	}
	if err := RestoreParameters(checkpoint.DiscriminatorWeights, discriminator.Parameters()); err != nil {
		return fmt.Errorf("failed to restore discriminator: %v", err)
	}
	return nil
}

// SnapshotBalance copies the live balance controller state.
func SnapshotBalance(loss *losses.BoundaryEquilibriumDiscriminatorLoss) BalanceSnapshot {
	state := loss.State()
	snapshot := BalanceSnapshot{
		K:      state.K(),
		Lambda: state.Lambda(),
		Gamma:  state.Gamma(),
	}
	if convergence, ok := state.ConvergenceMetric(); ok {
		snapshot.Convergence = convergence
		snapshot.HasConvergence = true
	}
	return snapshot
}

// RestoreDiscriminatorLoss rebuilds the balance controller from a
// snapshot. The convergence metric is derived telemetry and repopulates
// on the first update after resuming.
func RestoreDiscriminatorLoss(reduction tensor.ReductionMode, snapshot BalanceSnapshot) *losses.BoundaryEquilibriumDiscriminatorLoss {
	return losses.NewBoundaryEquilibriumDiscriminatorLoss(reduction, nil, snapshot.K, snapshot.Lambda, snapshot.Gamma)
}
