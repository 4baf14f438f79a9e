package ui

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"
)

var (
	green = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	gray  = color.RGBA{R: 205, G: 205, B: 205, A: 255}
)

// Window is a HighGUI frame sink
type Window struct {
	window     *gocv.Window
	name       string
	showFPS    bool
	lastFrame  time.Time
	frameCount int
	fps        float64
	closed     bool
}

// NewWindow creates a window at the given position. Must be called from
// the OS thread that runs the event loop.
func NewWindow(name string, x, y int, showFPS bool) *Window {
	window := gocv.NewWindow(name)
	window.MoveWindow(x, y)
	return &Window{
		window:    window,
		name:      name,
		showFPS:   showFPS,
		lastFrame: time.Now(),
	}
}

// Render displays img with an optional caption. img is not modified.
func (w *Window) Render(img gocv.Mat, caption string) {
	if w.closed || img.Empty() {
		return
	}

	canvas := img.Clone()
	defer canvas.Close()

	if caption != "" {
		gocv.PutText(&canvas, caption, image.Pt(10, canvas.Rows()-15),
			gocv.FontHersheySimplex, 1.2, gray, 2)
	}

	if w.showFPS {
		w.frameCount++
		now := time.Now()
		// Recompute every second
		if elapsed := now.Sub(w.lastFrame); elapsed >= time.Second {
			w.fps = float64(w.frameCount) / elapsed.Seconds()
			w.frameCount = 0
			w.lastFrame = now
		}
		gocv.PutText(&canvas, fmt.Sprintf("FPS: %.1f", w.fps), image.Pt(10, 30),
			gocv.FontHersheyPlain, 2, green, 2)
	}

	w.window.IMShow(canvas)
}

// Poll pumps window events. It returns false once the window was closed
// or the user pressed q or Esc.
func (w *Window) Poll() bool {
	if w.closed {
		return false
	}
	// WaitKey must be called to process window events
	key := w.window.WaitKey(1)
	if key == 'q' || key == 27 {
		return false
	}
	return w.window.GetWindowProperty(gocv.WindowPropertyVisible) >= 1
}

// FPS returns current frames per second
func (w *Window) FPS() float64 {
	return w.fps
}

// Close closes the window
func (w *Window) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.window.Close()
}
