package dataloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// PrefetchBatch is one batch delivered by a Prefetcher, tagged with the
// epoch it was drawn from.
type PrefetchBatch struct {
	Samples *tensor.Tensor
	Labels  *tensor.Tensor
	Epoch   int
}

// PrefetcherConfig holds configuration for a Prefetcher.
type PrefetcherConfig struct {
	// Depth is the number of batches buffered ahead of the consumer.
	// Defaults to 3.
	Depth int
}

// Prefetcher loads batches in the background so a training step never
// waits on sample assembly. The underlying loader resets automatically at
// epoch boundaries, so batches flow until Stop. A single producer
// goroutine keeps the loader's shuffle order and epoch counting intact.
type Prefetcher struct {
	loader *DataLoader

	batches chan PrefetchBatch
	errs    chan error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	running  bool
	produced uint64
}

// PrefetcherStats describes a running Prefetcher.
type PrefetcherStats struct {
	Running         bool
	BatchesProduced uint64
	QueuedBatches   int
	QueueCapacity   int
}

func NewPrefetcher(loader *DataLoader, config PrefetcherConfig) (*Prefetcher, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader cannot be nil")
	}
	if config.Depth <= 0 {
		config.Depth = 3
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Prefetcher{
		loader:  loader,
		batches: make(chan PrefetchBatch, config.Depth),
		errs:    make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start launches the producer goroutine.
func (p *Prefetcher) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("prefetcher is already running")
	}

	p.wg.Add(1)
	go p.produce()

	p.running = true
	return nil
}

// Stop cancels the producer and drains any buffered batches. Safe to call
// more than once.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return
	}

	p.cancel()
	p.wg.Wait()

	close(p.batches)
	for range p.batches {
	}

	p.running = false
}

// Next blocks until a batch is ready. It fails once the prefetcher is
// stopped or the loader reported an error.
func (p *Prefetcher) Next() (PrefetchBatch, error) {
	select {
	case batch, ok := <-p.batches:
		if !ok {
			return PrefetchBatch{}, fmt.Errorf("prefetcher has been stopped")
		}
		return batch, nil
	case err := <-p.errs:
		return PrefetchBatch{}, fmt.Errorf("prefetch failed: %v", err)
	case <-p.ctx.Done():
		return PrefetchBatch{}, fmt.Errorf("prefetcher has been stopped")
	}
}

// Stats reports the current pipeline state.
func (p *Prefetcher) Stats() PrefetcherStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return PrefetcherStats{
		Running:         p.running,
		BatchesProduced: p.produced,
		QueuedBatches:   len(p.batches),
		QueueCapacity:   cap(p.batches),
	}
}

func (p *Prefetcher) produce() {
	defer p.wg.Done()

	epoch := 0
	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		samples, labels, err := p.loader.NextBatch()
		if err != nil {
			select {
			case p.errs <- err:
			case <-p.ctx.Done():
			}
			return
		}
		if samples == nil {
			epoch++
			p.loader.Reset()
			continue
		}

		select {
		case p.batches <- PrefetchBatch{Samples: samples, Labels: labels, Epoch: epoch}:
			p.mu.Lock()
			p.produced++
			p.mu.Unlock()
		case <-p.ctx.Done():
			return
		}
	}
}
