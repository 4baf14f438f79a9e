package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/emojicam/internal/camera"
	"github.com/dudu/emojicam/internal/detector"
	"github.com/dudu/emojicam/internal/emotion"
)

var (
	// ErrDeviceUnavailable is returned by Run when the camera cannot be opened
	ErrDeviceUnavailable = camera.ErrDeviceUnavailable
	// ErrNoFrame marks a transient read miss
	ErrNoFrame = camera.ErrNoFrame
	// ErrDeviceLost is returned by Run when the camera stops mid-run
	ErrDeviceLost = errors.New("camera device lost")
	// ErrClassifierFailure wraps any classifier error or panic
	ErrClassifierFailure = errors.New("classifier failure")
)

// Config holds driver configuration
type Config struct {
	SamplePeriod  time.Duration
	DisplayPeriod time.Duration
	FrameWidth    int // frames are resized before detection when both are set
	FrameHeight   int
	CropSize      int
}

// Components are the collaborators the driver orchestrates. Run takes
// ownership and closes all of them on shutdown.
type Components struct {
	Open       SourceOpener
	Locator    FaceLocator
	Classifier EmotionClassifier
	Timeline   TimelineLogger
	Assets     AssetLoader
	Video      FrameSink
	Emoji      FrameSink
	Publisher  Publisher        // optional, fed from a background queue
	Clock      func() time.Time // optional, defaults to time.Now
	Logger     *slog.Logger     // optional
}

// Pipeline drives the sample and display loops
type Pipeline struct {
	cfg Config
	c   Components
	log *slog.Logger

	source FrameSource
	pub    *publishQueue
	state  DisplayState
	phase  atomic.Int32

	stop      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	closeErr  error

	frame   gocv.Mat
	resized gocv.Mat
	gray    gocv.Mat

	assetFailed    bool
	lastAssetLabel emotion.Label
}

// New creates a pipeline driver
func New(cfg Config, c Components) (*Pipeline, error) {
	switch {
	case c.Open == nil:
		return nil, fmt.Errorf("frame source opener is required")
	case c.Locator == nil:
		return nil, fmt.Errorf("face locator is required")
	case c.Classifier == nil:
		return nil, fmt.Errorf("emotion classifier is required")
	case c.Timeline == nil:
		return nil, fmt.Errorf("timeline logger is required")
	case c.Assets == nil:
		return nil, fmt.Errorf("emoji assets are required")
	case c.Video == nil || c.Emoji == nil:
		return nil, fmt.Errorf("video and emoji sinks are required")
	}

	if cfg.SamplePeriod <= 0 {
		cfg.SamplePeriod = 100 * time.Millisecond
	}
	if cfg.DisplayPeriod <= 0 {
		cfg.DisplayPeriod = cfg.SamplePeriod
	}
	if cfg.CropSize <= 0 {
		cfg.CropSize = 48
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	p := &Pipeline{
		cfg:     cfg,
		c:       c,
		log:     c.Logger,
		stop:    make(chan struct{}),
		frame:   gocv.NewMat(),
		resized: gocv.NewMat(),
		gray:    gocv.NewMat(),
	}
	if c.Publisher != nil {
		p.pub = newPublishQueue(c.Publisher, c.Logger, publishQueueSize)
	}
	return p, nil
}

// Phase returns the current lifecycle phase
func (p *Pipeline) Phase() Phase {
	return Phase(p.phase.Load())
}

// State returns the shared display state
func (p *Pipeline) State() *DisplayState {
	return &p.state
}

// Run opens the frame source and runs both loops until shutdown. It
// returns nil on a requested shutdown, ErrDeviceUnavailable if the camera
// could not be opened and ErrDeviceLost if it stopped mid-run.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.phase.CompareAndSwap(int32(PhaseIdle), int32(PhaseRunning)) {
		return fmt.Errorf("pipeline already started")
	}

	source, err := p.c.Open()
	if err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		p.log.Error("camera unavailable, pipeline not started", "error", err)
		return errors.Join(err, p.Close())
	}
	p.source = source

	p.log.Info("pipeline running",
		"sample_period", p.cfg.SamplePeriod,
		"display_period", p.cfg.DisplayPeriod)

	sampleTimer := time.NewTimer(p.cfg.SamplePeriod)
	defer sampleTimer.Stop()
	displayTimer := time.NewTimer(p.cfg.DisplayPeriod)
	defer displayTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("shutdown requested", "reason", ctx.Err())
			return p.Close()

		case <-p.stop:
			return p.Close()

		case <-sampleTimer.C:
			res := p.sampleTick()
			if res.Outcome == OutcomeDeviceLost {
				p.log.Error("camera lost, closing pipeline", "error", res.Err)
				return errors.Join(fmt.Errorf("%w: %v", ErrDeviceLost, res.Err), p.Close())
			}
			p.pollSink(p.c.Video)
			// Fixed delay: re-armed after the tick completes
			sampleTimer.Reset(p.cfg.SamplePeriod)

		case <-displayTimer.C:
			p.displayTick()
			p.pollSink(p.c.Emoji)
			displayTimer.Reset(p.cfg.DisplayPeriod)
		}
	}
}

// Shutdown requests the Closing transition. Safe to call from any
// goroutine; an in-flight tick completes and no further tick starts.
func (p *Pipeline) Shutdown() {
	p.stopOnce.Do(func() {
		p.phase.CompareAndSwap(int32(PhaseRunning), int32(PhaseClosing))
		close(p.stop)
	})
}

// Close releases the camera, sinks and models. Run calls it on every exit
// path; outside of Run it must not race with a running loop.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		p.phase.Store(int32(PhaseClosing))

		var errs []error
		closeAll := func(name string, c interface{ Close() error }) {
			if c == nil {
				return
			}
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", name, err))
			}
		}

		if p.source != nil {
			closeAll("camera", p.source)
		}
		closeAll("video sink", p.c.Video)
		closeAll("emoji sink", p.c.Emoji)
		closeAll("emoji assets", p.c.Assets)
		closeAll("face locator", p.c.Locator)
		closeAll("classifier", p.c.Classifier)
		if p.pub != nil {
			closeAll("publisher", p.pub)
		}

		p.frame.Close()
		p.resized.Close()
		p.gray.Close()

		p.closeErr = errors.Join(errs...)
		p.phase.Store(int32(PhaseClosed))
		p.log.Info("pipeline closed")
	})
	return p.closeErr
}

func (p *Pipeline) running() bool {
	if p.Phase() != PhaseRunning {
		return false
	}
	select {
	case <-p.stop:
		return false
	default:
		return true
	}
}

func (p *Pipeline) pollSink(sink FrameSink) {
	poller, ok := sink.(Poller)
	if !ok || !p.running() {
		return
	}
	if !poller.Poll() {
		p.log.Info("window closed by user")
		p.Shutdown()
	}
}

// sampleTick reads a frame, classifies the first face and logs it
func (p *Pipeline) sampleTick() (res SampleResult) {
	if !p.running() {
		return SampleResult{Outcome: OutcomeSkipped}
	}

	defer func() {
		if r := recover(); r != nil {
			res = SampleResult{Outcome: OutcomeFailure, Err: fmt.Errorf("sample tick panic: %v", r)}
			p.log.Error("sample tick failed", "error", res.Err)
		}
	}()

	if err := p.source.Read(&p.frame); err != nil {
		if !p.source.IsOpened() {
			return SampleResult{Outcome: OutcomeDeviceLost, Err: err}
		}
		p.log.Debug("no frame this tick", "error", err)
		return SampleResult{Outcome: OutcomeNoFrame, Err: err}
	}

	view := p.frame
	if p.cfg.FrameWidth > 0 && p.cfg.FrameHeight > 0 {
		gocv.Resize(p.frame, &p.resized, image.Pt(p.cfg.FrameWidth, p.cfg.FrameHeight), 0, 0, gocv.InterpolationLinear)
		view = p.resized
	}
	toGray(view, &p.gray)

	boxes, err := p.c.Locator.Detect(p.gray)
	if err != nil {
		p.log.Warn("face detection failed", "error", err)
		p.c.Video.Render(view, "")
		return SampleResult{Outcome: OutcomeDetectFailure, Err: err}
	}
	if len(boxes) == 0 {
		p.c.Video.Render(view, "")
		return SampleResult{Outcome: OutcomeNoFace}
	}

	// Only the first face in scan order is classified
	box := boxes[0]
	res = SampleResult{Faces: len(boxes)}

	pred, err := p.classify(box)
	if err != nil {
		p.log.Warn("classification failed, keeping previous state", "error", err)
		outlineFace(&view, box)
		p.c.Video.Render(view, "")
		res.Outcome = OutcomeClassifierFailure
		res.Err = err
		return res
	}

	label := pred.Label()
	p.state.Store(label)
	res.Outcome = OutcomeClassified
	res.Label = label

	ts := p.c.Clock()
	logged, err := p.c.Timeline.Append(ts, label, pred)
	if err != nil {
		p.log.Error("timeline append failed", "error", err)
		res.LogErr = err
	}
	res.Logged = logged
	if logged {
		p.logPrediction(label, pred)
		p.publish(emotion.Record{Time: ts, Label: label, Prediction: pred})
	}

	outlineFace(&view, box)
	p.c.Video.Render(view, "")
	return res
}

// classify turns any classifier error, panic or malformed output into
// ErrClassifierFailure
func (p *Pipeline) classify(box detector.FaceBox) (pred emotion.Prediction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrClassifierFailure, r)
		}
	}()

	crop, err := normalizeCrop(p.gray, box, p.cfg.CropSize)
	if err != nil {
		return pred, fmt.Errorf("%w: %v", ErrClassifierFailure, err)
	}

	pred, err = p.c.Classifier.Classify(crop)
	if err != nil {
		return pred, fmt.Errorf("%w: %v", ErrClassifierFailure, err)
	}
	if _, err := emotion.NewPrediction(pred.Scores[:]); err != nil {
		return pred, fmt.Errorf("%w: %v", ErrClassifierFailure, err)
	}
	return pred, nil
}

func (p *Pipeline) logPrediction(label emotion.Label, pred emotion.Prediction) {
	if !p.log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	attrs := make([]any, 0, 2*emotion.NumLabels+2)
	attrs = append(attrs, "predicted", label.String())
	for _, l := range emotion.Labels() {
		attrs = append(attrs, l.String(), fmt.Sprintf("%.4f", pred.Scores[l]))
	}
	p.log.Debug("prediction logged", attrs...)
}

func (p *Pipeline) publish(rec emotion.Record) {
	if p.pub != nil {
		p.pub.Enqueue(rec)
	}
}

// displayTick renders the emoji for the current label. On asset failure
// the previous rendering stays on screen.
func (p *Pipeline) displayTick() (res DisplayResult) {
	if !p.running() {
		return DisplayResult{Outcome: OutcomeSkipped}
	}

	defer func() {
		if r := recover(); r != nil {
			res = DisplayResult{Outcome: OutcomeFailure, Err: fmt.Errorf("display tick panic: %v", r)}
			p.log.Error("display tick failed", "error", res.Err)
		}
	}()

	label := p.state.Load()
	img, err := p.c.Assets.Load(label)
	if err != nil {
		// Log once per failing label, not every tick
		if !p.assetFailed || p.lastAssetLabel != label {
			p.log.Warn("emoji asset unavailable", "emotion", label, "error", err)
		}
		p.assetFailed = true
		p.lastAssetLabel = label
		return DisplayResult{Outcome: OutcomeAssetFailure, Label: label, Err: err}
	}
	p.assetFailed = false

	p.c.Emoji.Render(img, label.String())
	return DisplayResult{Outcome: OutcomeRendered, Label: label}
}
