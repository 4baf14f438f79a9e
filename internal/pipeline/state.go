package pipeline

import (
	"sync/atomic"

	"github.com/dudu/emojicam/internal/emotion"
)

// DisplayState is the label cell shared by the two loops. The sample tick
// is the only writer and the display tick the only reader.
type DisplayState struct {
	label atomic.Int32
}

// Load returns the current label. Zero before any face was classified.
func (s *DisplayState) Load() emotion.Label {
	return emotion.Label(s.label.Load())
}

// Store replaces the current label
func (s *DisplayState) Store(l emotion.Label) {
	s.label.Store(int32(l))
}

// Phase is the driver lifecycle state
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseClosing
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseClosing:
		return "closing"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// Outcome classifies what a tick did
type Outcome int

const (
	OutcomeSkipped Outcome = iota // driver no longer running
	OutcomeNoFrame
	OutcomeDeviceLost
	OutcomeDetectFailure
	OutcomeNoFace
	OutcomeClassifierFailure
	OutcomeClassified
	OutcomeRendered
	OutcomeAssetFailure
	OutcomeFailure // unexpected panic inside the tick
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoFrame:
		return "no_frame"
	case OutcomeDeviceLost:
		return "device_lost"
	case OutcomeDetectFailure:
		return "detect_failure"
	case OutcomeNoFace:
		return "no_face"
	case OutcomeClassifierFailure:
		return "classifier_failure"
	case OutcomeClassified:
		return "classified"
	case OutcomeRendered:
		return "rendered"
	case OutcomeAssetFailure:
		return "asset_failure"
	case OutcomeFailure:
		return "failure"
	}
	return "unknown"
}

// SampleResult is the typed result of one sample tick
type SampleResult struct {
	Outcome Outcome
	Faces   int
	Label   emotion.Label
	Logged  bool
	LogErr  error // set when classification succeeded but the append failed
	Err     error
}

// DisplayResult is the typed result of one display tick
type DisplayResult struct {
	Outcome Outcome
	Label   emotion.Label
	Err     error
}
