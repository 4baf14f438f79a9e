package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

var (
	// ErrDeviceUnavailable means the camera could not be opened
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	// ErrNoFrame means the device produced nothing this read
	ErrNoFrame = errors.New("no frame available")
)

// Config holds capture settings. Zero values leave the driver defaults.
type Config struct {
	DeviceID int
	Width    int
	Height   int
	FPS      int
}

// Capture owns a webcam device
type Capture struct {
	webcam   *gocv.VideoCapture
	deviceID int
	width    int
	height   int
	mu       sync.Mutex
}

// Open acquires the camera device
func Open(cfg Config) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("%w: camera %d: %v", ErrDeviceUnavailable, cfg.DeviceID, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return nil, fmt.Errorf("%w: camera %d did not open", ErrDeviceUnavailable, cfg.DeviceID)
	}

	if cfg.Width > 0 && cfg.Height > 0 {
		webcam.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		webcam.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	}
	if cfg.FPS > 0 {
		webcam.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))
	}

	// Camera may not support the requested resolution
	return &Capture{
		webcam:   webcam,
		deviceID: cfg.DeviceID,
		width:    int(webcam.Get(gocv.VideoCaptureFrameWidth)),
		height:   int(webcam.Get(gocv.VideoCaptureFrameHeight)),
	}, nil
}

// Read captures the next frame into frame
func (c *Capture) Read(frame *gocv.Mat) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return fmt.Errorf("%w: camera %d released", ErrNoFrame, c.deviceID)
	}
	if !c.webcam.Read(frame) || frame.Empty() {
		return ErrNoFrame
	}
	return nil
}

// IsOpened reports whether the device is still usable
func (c *Capture) IsOpened() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.webcam != nil && c.webcam.IsOpened()
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.webcam = nil
		return err
	}
	return nil
}
