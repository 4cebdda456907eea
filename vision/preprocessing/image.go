// Package preprocessing decodes images into normalized tensors.
package preprocessing

import (
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	_ "image/jpeg"
	_ "image/png"

	"github.com/shaunstanislauslau/torchgan/tensor"
)

// ImageProcessor decodes and resizes images into (3, size, size) tensors
// with values in [0, 1]. The scratch image buffer is reused across calls.
type ImageProcessor struct {
	mu         sync.Mutex
	rgbaBuffer *image.RGBA
	targetSize int
}

// NewImageProcessor creates an image processor with the given output size.
func NewImageProcessor(targetSize int) *ImageProcessor {
	return &ImageProcessor{
		targetSize: targetSize,
	}
}

// DecodeToTensor decodes a JPEG or PNG stream, resizes it and returns the
// pixels in CHW order.
func (p *ImageProcessor) DecodeToTensor(reader io.Reader) (*tensor.Tensor, error) {
	img, _, err := image.Decode(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("image has empty bounds %dx%d", width, height)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.rgbaBuffer == nil || p.rgbaBuffer.Bounds().Dx() != p.targetSize || p.rgbaBuffer.Bounds().Dy() != p.targetSize {
		p.rgbaBuffer = image.NewRGBA(image.Rect(0, 0, p.targetSize, p.targetSize))
	}
	resized := p.rgbaBuffer

	// Nearest neighbor resize.
	scaleX := float64(width) / float64(p.targetSize)
	scaleY := float64(height) / float64(p.targetSize)

	for y := 0; y < p.targetSize; y++ {
		for x := 0; x < p.targetSize; x++ {
			srcX := int(float64(x) * scaleX)
			srcY := int(float64(y) * scaleY)

			if srcX >= width {
				srcX = width - 1
			}
			if srcY >= height {
				srcY = height - 1
			}

			resized.Set(x, y, img.At(bounds.Min.X+srcX, bounds.Min.Y+srcY))
		}
	}

	out, err := tensor.NewTensor([]int{3, p.targetSize, p.targetSize}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, err
	}
	data := out.Data.([]float32)
	plane := p.targetSize * p.targetSize

	for y := 0; y < p.targetSize; y++ {
		for x := 0; x < p.targetSize; x++ {
			r, g, b, _ := resized.At(x, y).RGBA()

			idx := y*p.targetSize + x
			data[idx] = float32(r) / 65535.0
			data[plane+idx] = float32(g) / 65535.0
			data[2*plane+idx] = float32(b) / 65535.0
		}
	}

	return out, nil
}

// DecodeFile decodes a single image file.
func (p *ImageProcessor) DecodeFile(path string) (*tensor.Tensor, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return p.DecodeToTensor(file)
}

// PreprocessBatch decodes multiple images concurrently and stacks them
// into a (batch, 3, size, size) tensor. Output order follows the input
// paths.
func PreprocessBatch(imagePaths []string, targetSize int, maxWorkers int) (*tensor.Tensor, error) {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	results := make([]*tensor.Tensor, len(imagePaths))
	errs := make([]error, len(imagePaths))

	type job struct {
		index int
		path  string
	}

	jobs := make(chan job, len(imagePaths))
	var wg sync.WaitGroup

	for w := 0; w < maxWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processor := NewImageProcessor(targetSize)

			for j := range jobs {
				results[j.index], errs[j.index] = processor.DecodeFile(j.path)
			}
		}()
	}

	for i, path := range imagePaths {
		jobs <- job{index: i, path: path}
	}
	close(jobs)

	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("failed to process image %d: %v", i, err)
		}
	}

	out, err := tensor.NewTensor([]int{len(results), 3, targetSize, targetSize}, tensor.Float32, tensor.CPU)
	if err != nil {
		return nil, err
	}
	data := out.Data.([]float32)
	sampleSize := 3 * targetSize * targetSize
	for i, sample := range results {
		copy(data[i*sampleSize:(i+1)*sampleSize], sample.Data.([]float32))
	}
	return out, nil
}
