package detector

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// CascadeConfig holds Haar cascade detection parameters
type CascadeConfig struct {
	ModelPath    string
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int // smallest face side in pixels, 0 for no limit
}

// Cascade implements face detection with an OpenCV Haar cascade
type Cascade struct {
	classifier gocv.CascadeClassifier
	cfg        CascadeConfig
}

// NewCascade loads a cascade model from disk
func NewCascade(cfg CascadeConfig) (*Cascade, error) {
	if cfg.ScaleFactor <= 1 {
		return nil, fmt.Errorf("scale factor must be > 1, got %v", cfg.ScaleFactor)
	}
	if cfg.MinNeighbors < 0 {
		return nil, fmt.Errorf("min neighbors must be >= 0, got %d", cfg.MinNeighbors)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.ModelPath) {
		classifier.Close()
		return nil, fmt.Errorf("failed to load cascade: %s", cfg.ModelPath)
	}

	return &Cascade{classifier: classifier, cfg: cfg}, nil
}

// Detect finds faces in a grayscale image. Boxes come back in the
// cascade's scan order, clamped to the image.
func (c *Cascade) Detect(gray gocv.Mat) ([]FaceBox, error) {
	if gray.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	minSize := image.Pt(c.cfg.MinSize, c.cfg.MinSize)
	rects := c.classifier.DetectMultiScaleWithParams(gray,
		c.cfg.ScaleFactor, c.cfg.MinNeighbors, 0, minSize, image.Point{})

	return toBoxes(rects, image.Rect(0, 0, gray.Cols(), gray.Rows())), nil
}

// Close releases detector resources
func (c *Cascade) Close() error {
	return c.classifier.Close()
}

func toBoxes(rects []image.Rectangle, bounds image.Rectangle) []FaceBox {
	boxes := make([]FaceBox, 0, len(rects))
	for _, r := range rects {
		box := FromRect(r).ClampTo(bounds)
		if box.Empty() {
			continue
		}
		boxes = append(boxes, box)
	}
	return boxes
}
