package ui

import (
	"log/slog"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// Headless is a frame sink that only counts frames. Used when no display
// is available.
type Headless struct {
	name     string
	log      *slog.Logger
	frames   atomic.Uint64
	lastText atomic.Value
}

// NewHeadless creates a headless sink
func NewHeadless(name string, log *slog.Logger) *Headless {
	if log == nil {
		log = slog.Default()
	}
	return &Headless{name: name, log: log}
}

// Render records the caption and counts the frame
func (h *Headless) Render(img gocv.Mat, caption string) {
	n := h.frames.Add(1)
	if prev, _ := h.lastText.Load().(string); caption != "" && caption != prev {
		h.lastText.Store(caption)
		h.log.Debug("sink caption changed", "sink", h.name, "caption", caption, "frame", n)
	}
}

// Frames returns the number of rendered frames
func (h *Headless) Frames() uint64 {
	return h.frames.Load()
}

// Caption returns the last non-empty caption
func (h *Headless) Caption() string {
	s, _ := h.lastText.Load().(string)
	return s
}

// Close implements the sink interface
func (h *Headless) Close() error {
	return nil
}
