package emoji

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gocv.io/x/gocv"

	"github.com/dudu/emojicam/internal/emotion"
)

var (
	// ErrAssetMissing means no file is mapped or present for a label
	ErrAssetMissing = errors.New("emoji asset missing")
	// ErrAssetLoad means the file exists but could not be decoded
	ErrAssetLoad = errors.New("emoji asset could not be loaded")
)

// DefaultFiles returns the default asset file name for every label
func DefaultFiles() map[emotion.Label]string {
	files := make(map[emotion.Label]string, emotion.NumLabels)
	for _, l := range emotion.Labels() {
		files[l] = strings.ToLower(l.String()) + ".png"
	}
	return files
}

// Resolver maps labels to emoji images on disk
type Resolver struct {
	paths map[emotion.Label]string

	mu    sync.Mutex
	cache map[emotion.Label]gocv.Mat
}

// NewResolver creates a resolver rooted at dir. Entries in overrides
// replace the default file name for their label; relative names are
// resolved against dir.
func NewResolver(dir string, overrides map[emotion.Label]string) *Resolver {
	files := DefaultFiles()
	for l, name := range overrides {
		files[l] = name
	}

	paths := make(map[emotion.Label]string, len(files))
	for l, name := range files {
		if name == "" {
			continue
		}
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		paths[l] = name
	}

	return &Resolver{
		paths: paths,
		cache: make(map[emotion.Label]gocv.Mat),
	}
}

// Resolve returns the asset path for label
func (r *Resolver) Resolve(label emotion.Label) (string, error) {
	path, ok := r.paths[label]
	if !ok {
		return "", fmt.Errorf("%w: no asset mapped for %v", ErrAssetMissing, label)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrAssetMissing, path, err)
	}
	return path, nil
}

// Load returns the decoded asset for label. The returned Mat is owned by
// the resolver and must not be closed by the caller.
func (r *Resolver) Load(label emotion.Label) (gocv.Mat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if img, ok := r.cache[label]; ok {
		return img, nil
	}

	path, err := r.Resolve(label)
	if err != nil {
		return gocv.Mat{}, err
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("%w: %s", ErrAssetLoad, path)
	}

	r.cache[label] = img
	return img, nil
}

// Missing lists labels whose asset cannot be resolved
func (r *Resolver) Missing() []emotion.Label {
	var missing []emotion.Label
	for _, l := range emotion.Labels() {
		if _, err := r.Resolve(l); err != nil {
			missing = append(missing, l)
		}
	}
	return missing
}

// Close releases cached images
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for l, img := range r.cache {
		img.Close()
		delete(r.cache, l)
	}
	return nil
}
