// Package dataloader batches dataset samples into training tensors.
package dataloader

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/shaunstanislauslau/torchgan/tensor"
	"github.com/shaunstanislauslau/torchgan/vision/dataset"
)

// Config holds configuration for DataLoader
type Config struct {
	BatchSize int
	Shuffle   bool
	Seed      int64
	DropLast  bool // Drop a trailing batch smaller than BatchSize
}

// DataLoader iterates a dataset in batches, optionally reshuffling
// between epochs.
type DataLoader struct {
	dataset   dataset.Dataset
	batchSize int
	shuffle   bool
	dropLast  bool
	rng       *rand.Rand
	indices   []int
	position  int
	mu        sync.Mutex
}

// NewDataLoader creates a new data loader
func NewDataLoader(ds dataset.Dataset, config Config) (*DataLoader, error) {
	if config.BatchSize < 1 {
		return nil, fmt.Errorf("dataloader: batch size must be positive, got %d", config.BatchSize)
	}

	indices := make([]int, ds.Len())
	for i := range indices {
		indices[i] = i
	}

	dl := &DataLoader{
		dataset:   ds,
		batchSize: config.BatchSize,
		shuffle:   config.Shuffle,
		dropLast:  config.DropLast,
		rng:       rand.New(rand.NewSource(config.Seed)),
		indices:   indices,
	}
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
	return dl, nil
}

// Reset rewinds the loader to the beginning of a fresh epoch.
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.rng.Shuffle(len(dl.indices), func(i, j int) {
			dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
		})
	}
}

// Batches reports how many batches one epoch yields.
func (dl *DataLoader) Batches() int {
	n := len(dl.indices)
	if dl.dropLast {
		return n / dl.batchSize
	}
	return (n + dl.batchSize - 1) / dl.batchSize
}

// Progress returns the current position within the epoch.
func (dl *DataLoader) Progress() (current, total int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.position, len(dl.indices)
}

// NextBatch stacks the next batch of samples into a (batch, ...) tensor
// with an Int32 label vector. It returns nil tensors once the epoch is
// exhausted.
func (dl *DataLoader) NextBatch() (*tensor.Tensor, *tensor.Tensor, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil, nil
	}

	batchSize := dl.batchSize
	if remaining < batchSize {
		if dl.dropLast {
			dl.position = len(dl.indices)
			return nil, nil, nil
		}
		batchSize = remaining
	}

	var samples *tensor.Tensor
	var sampleData []float32
	var sampleSize int
	labels := make([]int32, batchSize)

	for i := 0; i < batchSize; i++ {
		idx := dl.indices[dl.position]
		sample, label, err := dl.dataset.Sample(idx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load sample %d: %v", idx, err)
		}

		if samples == nil {
			shape := append([]int{batchSize}, sample.Shape...)
			samples, err = tensor.NewTensor(shape, tensor.Float32, sample.Device)
			if err != nil {
				return nil, nil, err
			}
			sampleData = samples.Data.([]float32)
			sampleSize = sample.NumElems
		} else if sample.NumElems != sampleSize {
			return nil, nil, fmt.Errorf("sample %d has %d elements, expected %d", idx, sample.NumElems, sampleSize)
		}

		copy(sampleData[i*sampleSize:(i+1)*sampleSize], sample.Data.([]float32))
		labels[i] = label
		dl.position++
	}

	labelTensor, err := tensor.FromIntSlice(labels, []int{batchSize})
	if err != nil {
		return nil, nil, err
	}
	return samples, labelTensor, nil
}
