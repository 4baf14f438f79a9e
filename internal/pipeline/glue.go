package pipeline

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dudu/emojicam/internal/detector"
	"github.com/dudu/emojicam/internal/emotion"
)

// Face outline padding, in pixels above and below the detected box
const (
	outlineTop    = 50
	outlineBottom = 10
)

var outlineColor = color.RGBA{R: 0, G: 0, B: 255, A: 255}

// normalizeCrop cuts the face out of a grayscale frame, resizes it to
// size x size and scales pixel values into [0,1]
func normalizeCrop(gray gocv.Mat, box detector.FaceBox, size int) (emotion.Crop, error) {
	bounds := image.Rect(0, 0, gray.Cols(), gray.Rows())
	box = box.ClampTo(bounds)
	if box.Empty() {
		return emotion.Crop{}, fmt.Errorf("face box outside frame")
	}

	roi := gray.Region(box.Rect())
	defer roi.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(roi, &resized, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)

	scaled := gocv.NewMat()
	defer scaled.Close()
	resized.ConvertToWithParams(&scaled, gocv.MatTypeCV32F, 1.0/255.0, 0)

	data, err := scaled.DataPtrFloat32()
	if err != nil {
		return emotion.Crop{}, fmt.Errorf("failed to read crop: %w", err)
	}
	if len(data) != size*size {
		return emotion.Crop{}, fmt.Errorf("crop has %d values, want %d", len(data), size*size)
	}

	// data aliases scaled, which is closed on return
	out := make([]float32, len(data))
	copy(out, data)

	return emotion.Crop{Data: out, Size: size}, nil
}

// toGray converts a BGR frame to single channel
func toGray(frame gocv.Mat, gray *gocv.Mat) {
	if frame.Channels() == 1 {
		frame.CopyTo(gray)
		return
	}
	gocv.CvtColor(frame, gray, gocv.ColorBGRToGray)
}

// outlineFace draws the padded face outline on the frame
func outlineFace(frame *gocv.Mat, box detector.FaceBox) {
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	r := box.Padded(outlineTop, outlineBottom, 0, 0, bounds)
	gocv.Rectangle(frame, r.Rect(), outlineColor, 2)
}
