package emotion

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Label is an index into the fixed emotion table
type Label int

// Canonical label table. The order matches the classifier's output vector
// (FER-2013 class directories, alphabetical).
const (
	Angry Label = iota
	Disgusted
	Fearful
	Happy
	Neutral
	Sad
	Surprised
)

// NumLabels is the length of every prediction vector
const NumLabels = 7

var names = [NumLabels]string{
	"Angry",
	"Disgusted",
	"Fearful",
	"Happy",
	"Neutral",
	"Sad",
	"Surprised",
}

// ErrMalformedPrediction is returned when classifier output does not fit the label table
var ErrMalformedPrediction = errors.New("malformed prediction")

// Valid reports whether l is inside the label table
func (l Label) Valid() bool {
	return l >= 0 && l < NumLabels
}

// String returns the display name, or "Unknown(n)" for out-of-range labels
func (l Label) String() string {
	if !l.Valid() {
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
	return names[l]
}

// Labels returns all labels in table order
func Labels() []Label {
	out := make([]Label, NumLabels)
	for i := range out {
		out[i] = Label(i)
	}
	return out
}

// Names returns the display names in table order
func Names() []string {
	out := make([]string, NumLabels)
	copy(out, names[:])
	return out
}

// Prediction is a validated classifier output, one score per label
type Prediction struct {
	Scores [NumLabels]float32
}

// NewPrediction validates raw classifier scores
func NewPrediction(scores []float32) (Prediction, error) {
	var p Prediction
	if len(scores) != NumLabels {
		return p, fmt.Errorf("%w: got %d scores, want %d", ErrMalformedPrediction, len(scores), NumLabels)
	}
	for i, s := range scores {
		f := float64(s)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return p, fmt.Errorf("%w: score %d is %v", ErrMalformedPrediction, i, s)
		}
		p.Scores[i] = s
	}
	return p, nil
}

// Label returns the argmax. Ties resolve to the lowest index.
func (p Prediction) Label() Label {
	best := 0
	for i := 1; i < NumLabels; i++ {
		if p.Scores[i] > p.Scores[best] {
			best = i
		}
	}
	return Label(best)
}

// Confidence returns the score of the winning label
func (p Prediction) Confidence() float32 {
	return p.Scores[p.Label()]
}

// Crop is a normalized grayscale face crop ready for the classifier.
// Data is row-major, Size x Size, values in [0,1].
type Crop struct {
	Data []float32
	Size int
}

// Shape returns the classifier input shape: batch, height, width, channel
func (c Crop) Shape() []int64 {
	return []int64{1, int64(c.Size), int64(c.Size), 1}
}

// Record is one entry of the emotion timeline
type Record struct {
	Time       time.Time
	Label      Label
	Prediction Prediction
}
