package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudu/emojicam/internal/emotion"
)

const (
	publishQueueSize    = 16
	publishDrainTimeout = 3 * time.Second
)

// publishQueue hands records to a Publisher on its own goroutine so a slow
// or stalled broker never holds up a tick. Records are dropped when the
// queue is full.
type publishQueue struct {
	pub Publisher
	log *slog.Logger

	records chan emotion.Record
	quit    chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
	dropped   atomic.Uint64
}

func newPublishQueue(pub Publisher, log *slog.Logger, size int) *publishQueue {
	q := &publishQueue{
		pub:     pub,
		log:     log,
		records: make(chan emotion.Record, size),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go q.loop()
	return q
}

// Enqueue never blocks. It reports false when the record was dropped.
func (q *publishQueue) Enqueue(rec emotion.Record) bool {
	select {
	case <-q.quit:
		return false
	default:
	}

	select {
	case q.records <- rec:
		return true
	default:
		if n := q.dropped.Add(1); n == 1 || n%100 == 0 {
			q.log.Warn("publish queue full, dropping record", "dropped", n)
		}
		return false
	}
}

// Dropped returns the number of records discarded on a full queue
func (q *publishQueue) Dropped() uint64 {
	return q.dropped.Load()
}

func (q *publishQueue) loop() {
	defer close(q.done)
	for {
		select {
		case <-q.quit:
			return
		case rec := <-q.records:
			if err := q.pub.Publish(rec); err != nil {
				q.log.Warn("failed to publish record", "error", err)
			}
		}
	}
}

// Close stops the queue, discarding pending records, and closes the
// publisher. A publish still in flight gets publishDrainTimeout to return.
func (q *publishQueue) Close() error {
	q.closeOnce.Do(func() {
		close(q.quit)
		q.closeErr = q.pub.Close()

		select {
		case <-q.done:
		case <-time.After(publishDrainTimeout):
			q.log.Warn("publisher did not return before close timeout")
		}
	})
	return q.closeErr
}
