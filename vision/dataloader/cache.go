package dataloader

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/shaunstanislauslau/torchgan/tensor"
	"github.com/shaunstanislauslau/torchgan/vision/dataset"
)

// CachedDataset memoizes decoded samples around a slow dataset, evicting
// the least recently used entries beyond its capacity. Cached tensors are
// shared between calls, so callers must treat samples as read-only.
type CachedDataset struct {
	inner    dataset.Dataset
	capacity int

	mu     sync.Mutex
	cache  map[int]cachedSample
	lru    *list.List
	lruMap map[int]*list.Element

	hits   int64
	misses int64
}

type cachedSample struct {
	sample *tensor.Tensor
	label  int32
}

// NewCachedDataset wraps a dataset with an LRU sample cache.
func NewCachedDataset(inner dataset.Dataset, capacity int) *CachedDataset {
	if capacity < 1 {
		capacity = 1000
	}
	return &CachedDataset{
		inner:    inner,
		capacity: capacity,
		cache:    make(map[int]cachedSample),
		lru:      list.New(),
		lruMap:   make(map[int]*list.Element),
	}
}

func (c *CachedDataset) Len() int {
	return c.inner.Len()
}

func (c *CachedDataset) Sample(index int) (*tensor.Tensor, int32, error) {
	c.mu.Lock()
	if entry, exists := c.cache[index]; exists {
		if elem, ok := c.lruMap[index]; ok {
			c.lru.MoveToFront(elem)
		}
		c.hits++
		c.mu.Unlock()
		return entry.sample, entry.label, nil
	}
	c.misses++
	c.mu.Unlock()

	sample, label, err := c.inner.Sample(index)
	if err != nil {
		return nil, 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[index]; !exists {
		elem := c.lru.PushFront(index)
		c.lruMap[index] = elem
		c.cache[index] = cachedSample{sample: sample, label: label}

		for len(c.cache) > c.capacity && c.lru.Len() > 0 {
			oldest := c.lru.Back()
			if oldest != nil {
				c.removeElement(oldest)
			}
		}
	}
	return sample, label, nil
}

func (c *CachedDataset) removeElement(elem *list.Element) {
	key := elem.Value.(int)
	c.lru.Remove(elem)
	delete(c.lruMap, key)
	delete(c.cache, key)
}

// Stats returns cache statistics
func (c *CachedDataset) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:    len(c.cache),
		MaxSize: c.capacity,
		Hits:    c.hits,
		Misses:  c.misses,
		HitRate: c.hitRate(),
	}
}

func (c *CachedDataset) hitRate() float64 {
	total := c.hits + c.misses
	if total == 0 {
		return 0
	}
	return float64(c.hits) / float64(total) * 100
}

// Clear drops every cached sample. Statistics stay cumulative.
func (c *CachedDataset) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[int]cachedSample)
	c.lru = list.New()
	c.lruMap = make(map[int]*list.Element)
}

// CacheStats holds cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	Hits    int64
	Misses  int64
	HitRate float64
}

// String returns a string representation of cache stats
func (cs CacheStats) String() string {
	return fmt.Sprintf("Cache: %d/%d items, Hits: %d, Misses: %d, Hit Rate: %.1f%%",
		cs.Size, cs.MaxSize, cs.Hits, cs.Misses, cs.HitRate)
}
