package pipeline

import (
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/emojicam/internal/detector"
	"github.com/dudu/emojicam/internal/emotion"
)

// FrameSource produces camera frames
type FrameSource interface {
	Read(frame *gocv.Mat) error
	IsOpened() bool
	Close() error
}

// SourceOpener acquires the frame source at pipeline start
type SourceOpener func() (FrameSource, error)

// FaceLocator finds faces in a grayscale frame, in detector scan order
type FaceLocator interface {
	Detect(gray gocv.Mat) ([]detector.FaceBox, error)
	Close() error
}

// EmotionClassifier scores a normalized face crop
type EmotionClassifier interface {
	Classify(crop emotion.Crop) (emotion.Prediction, error)
	Close() error
}

// TimelineLogger appends throttled records to the emotion log
type TimelineLogger interface {
	Append(ts time.Time, label emotion.Label, p emotion.Prediction) (bool, error)
}

// AssetLoader returns the emoji image for a label. The Mat stays owned by
// the loader.
type AssetLoader interface {
	Load(label emotion.Label) (gocv.Mat, error)
	Close() error
}

// FrameSink displays an image with an optional caption
type FrameSink interface {
	Render(img gocv.Mat, caption string)
	Close() error
}

// Poller is implemented by sinks that can report a user close request
type Poller interface {
	Poll() bool
}

// Publisher forwards logged records to an external consumer
type Publisher interface {
	Publish(rec emotion.Record) error
	Close() error
}
