package pipeline

import (
	"errors"
	"image"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"gocv.io/x/gocv"

	"github.com/dudu/emojicam/internal/detector"
	"github.com/dudu/emojicam/internal/emotion"
)

var quietLog = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeClock advances only when told to
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// fakeSource produces 640x480 frames. The left half is white, the right
// half black, so crops reveal which face box was used.
type fakeSource struct {
	mu      sync.Mutex
	reads   int
	closes  int
	opened  bool
	failing bool // Read returns ErrNoFrame
	onRead  func(n int)
}

func newFakeSource() *fakeSource {
	return &fakeSource{opened: true}
}

func (s *fakeSource) Read(frame *gocv.Mat) error {
	s.mu.Lock()
	s.reads++
	n := s.reads
	failing := s.failing
	hook := s.onRead
	s.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if failing {
		return ErrNoFrame
	}

	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 480, 640, gocv.MatTypeCV8UC3)
	defer img.Close()
	left := img.Region(image.Rect(0, 0, 320, 480))
	left.SetTo(gocv.NewScalar(255, 255, 255, 0))
	left.Close()
	img.CopyTo(frame)
	return nil
}

func (s *fakeSource) IsOpened() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	s.opened = false
	return nil
}

func (s *fakeSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *fakeSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

// fakeLocator returns a fixed list of boxes in a known order
type fakeLocator struct {
	mu       sync.Mutex
	boxes    []detector.FaceBox
	err      error
	calls    int
	onDetect func(n int)
	closed   bool
}

func (l *fakeLocator) Detect(gray gocv.Mat) ([]detector.FaceBox, error) {
	l.mu.Lock()
	l.calls++
	n := l.calls
	hook := l.onDetect
	boxes, err := l.boxes, l.err
	l.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	return boxes, err
}

func (l *fakeLocator) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

func (l *fakeLocator) Close() error {
	l.closed = true
	return nil
}

// fakeClassifier returns fixed scores and remembers the crops it saw
type fakeClassifier struct {
	mu     sync.Mutex
	scores []float32
	err    error
	panic  bool
	crops  []emotion.Crop
}

func (c *fakeClassifier) Classify(crop emotion.Crop) (emotion.Prediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.crops = append(c.crops, crop)
	if c.panic {
		panic("model exploded")
	}
	if c.err != nil {
		return emotion.Prediction{}, c.err
	}
	var p emotion.Prediction
	copy(p.Scores[:], c.scores)
	return p, nil
}

func (c *fakeClassifier) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.crops)
}

func (c *fakeClassifier) Close() error { return nil }

// memTimeline records appended rows with the real throttle rule
type memTimeline struct {
	interval time.Duration
	records  []emotion.Record
	err      error
}

func (m *memTimeline) Append(ts time.Time, label emotion.Label, p emotion.Prediction) (bool, error) {
	if n := len(m.records); n > 0 && ts.Sub(m.records[n-1].Time) < m.interval {
		return false, nil
	}
	if m.err != nil {
		return false, m.err
	}
	m.records = append(m.records, emotion.Record{Time: ts, Label: label, Prediction: p})
	return true, nil
}

// fakeAssets serves a small image for labels in ok
type fakeAssets struct {
	ok    map[emotion.Label]bool
	img   gocv.Mat
	loads int
}

func newFakeAssets(labels ...emotion.Label) *fakeAssets {
	ok := make(map[emotion.Label]bool)
	for _, l := range labels {
		ok[l] = true
	}
	return &fakeAssets{ok: ok, img: gocv.NewMatWithSize(8, 8, gocv.MatTypeCV8UC3)}
}

func (a *fakeAssets) Load(label emotion.Label) (gocv.Mat, error) {
	a.loads++
	if !a.ok[label] {
		return gocv.Mat{}, errors.New("no such emoji")
	}
	return a.img, nil
}

func (a *fakeAssets) Close() error {
	return a.img.Close()
}

// recordingSink remembers captions and counts closes
type recordingSink struct {
	mu       sync.Mutex
	captions []string
	closes   int
}

func (s *recordingSink) Render(img gocv.Mat, caption string) {
	s.mu.Lock()
	s.captions = append(s.captions, caption)
	s.mu.Unlock()
}

func (s *recordingSink) Renders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captions)
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	s.closes++
	s.mu.Unlock()
	return nil
}

// blockingPublisher holds every Publish until released, like a broker
// that stopped acknowledging
type blockingPublisher struct {
	mu          sync.Mutex
	release     chan struct{}
	releaseOnce sync.Once
	entered     chan struct{}
	published   []emotion.Record
	closes      int
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{
		release: make(chan struct{}),
		entered: make(chan struct{}, 64),
	}
}

func (b *blockingPublisher) Publish(rec emotion.Record) error {
	select {
	case b.entered <- struct{}{}:
	default:
	}
	<-b.release

	b.mu.Lock()
	b.published = append(b.published, rec)
	b.mu.Unlock()
	return nil
}

func (b *blockingPublisher) Release() {
	b.releaseOnce.Do(func() { close(b.release) })
}

func (b *blockingPublisher) Published() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func (b *blockingPublisher) Close() error {
	b.Release()
	b.mu.Lock()
	b.closes++
	b.mu.Unlock()
	return nil
}

// harness wires fakes into a pipeline
type harness struct {
	clock      *fakeClock
	source     *fakeSource
	locator    *fakeLocator
	classifier *fakeClassifier
	timeline   *memTimeline
	assets     *fakeAssets
	video      *recordingSink
	emoji      *recordingSink
	publisher  *blockingPublisher // optional
	openErr    error
}

func newHarness() *harness {
	return &harness{
		clock:   newFakeClock(),
		source:  newFakeSource(),
		locator: &fakeLocator{boxes: []detector.FaceBox{{X: 100, Y: 100, Width: 96, Height: 96}}},
		classifier: &fakeClassifier{
			scores: []float32{0, 0, 0, 1, 0, 0, 0},
		},
		timeline: &memTimeline{interval: time.Second},
		assets:   newFakeAssets(emotion.Labels()...),
		video:    &recordingSink{},
		emoji:    &recordingSink{},
	}
}

func (h *harness) components() Components {
	c := Components{
		Open: func() (FrameSource, error) {
			if h.openErr != nil {
				return nil, h.openErr
			}
			return h.source, nil
		},
		Locator:    h.locator,
		Classifier: h.classifier,
		Timeline:   h.timeline,
		Assets:     h.assets,
		Video:      h.video,
		Emoji:      h.emoji,
		Clock:      h.clock.Now,
		Logger:     quietLog,
	}
	if h.publisher != nil {
		c.Publisher = h.publisher
	}
	return c
}

// started returns a pipeline already in the running phase, for driving
// ticks by hand
func (h *harness) started(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, h.components())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.source = h.source
	p.phase.Store(int32(PhaseRunning))
	t.Cleanup(func() { p.Close() })
	return p
}
