package ui

import (
	"testing"

	"gocv.io/x/gocv"
)

func TestHeadlessCountsFrames(t *testing.T) {
	h := NewHeadless("emoji", nil)
	img := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer img.Close()

	h.Render(img, "Happy")
	h.Render(img, "")
	h.Render(img, "Sad")

	if got := h.Frames(); got != 3 {
		t.Errorf("Frames = %d, want 3", got)
	}
	if got := h.Caption(); got != "Sad" {
		t.Errorf("Caption = %q, want Sad", got)
	}
	if err := h.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
