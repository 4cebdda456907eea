package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaunstanislauslau/torchgan/tensor"
	"github.com/shaunstanislauslau/torchgan/vision/preprocessing"
)

// ImageFolder reads samples from a directory tree where every class owns
// a subdirectory of image files:
//
//	root/cats/001.jpg
//	root/dogs/001.jpg
//
// Class labels follow the lexical order of the subdirectory names.
type ImageFolder struct {
	root      string
	imageSize int
	classes   []string
	entries   []folderEntry
	processor *preprocessing.ImageProcessor
}

type folderEntry struct {
	path  string
	label int32
}

// NewImageFolder scans the directory tree and indexes every image file.
func NewImageFolder(root string, imageSize int) (*ImageFolder, error) {
	dirEntries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset root: %v", err)
	}

	folder := &ImageFolder{
		root:      root,
		imageSize: imageSize,
		processor: preprocessing.NewImageProcessor(imageSize),
	}

	for _, dirEntry := range dirEntries {
		if !dirEntry.IsDir() {
			continue
		}
		className := dirEntry.Name()
		label := int32(len(folder.classes))

		files, err := os.ReadDir(filepath.Join(root, className))
		if err != nil {
			return nil, fmt.Errorf("failed to read class %s: %v", className, err)
		}

		found := false
		for _, file := range files {
			if file.IsDir() || !isImageFile(file.Name()) {
				continue
			}
			folder.entries = append(folder.entries, folderEntry{
				path:  filepath.Join(root, className, file.Name()),
				label: label,
			})
			found = true
		}
		if found {
			folder.classes = append(folder.classes, className)
		}
	}

	if len(folder.entries) == 0 {
		return nil, fmt.Errorf("no image files found under %s", root)
	}
	return folder, nil
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func (f *ImageFolder) Len() int {
	return len(f.entries)
}

// Classes lists the class names in label order.
func (f *ImageFolder) Classes() []string {
	return f.classes
}

func (f *ImageFolder) Sample(index int) (*tensor.Tensor, int32, error) {
	if index < 0 || index >= len(f.entries) {
		return nil, 0, fmt.Errorf("dataset: index %d out of range [0, %d)", index, len(f.entries))
	}
	entry := f.entries[index]
	img, err := f.processor.DecodeFile(entry.path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load %s: %v", entry.path, err)
	}
	return img, entry.label, nil
}
