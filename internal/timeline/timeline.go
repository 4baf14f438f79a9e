package timeline

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/dudu/emojicam/internal/emotion"
)

// TimeLayout is the timestamp format of the first column
const TimeLayout = "2006-01-02 15:04:05"

// ErrLogWrite wraps any failure to create or append to the log file
var ErrLogWrite = errors.New("timeline write failed")

// Config holds logger configuration
type Config struct {
	Path      string
	Interval  time.Duration  // minimum spacing between records
	Location  *time.Location // zone used to format timestamps
	ZoneLabel string         // shown in the header, e.g. "IST"
}

// Logger appends at most one record per interval to a CSV timeline.
// The file is opened and closed for every record.
type Logger struct {
	cfg Config

	mu         sync.Mutex
	lastLogged time.Time
	hasLogged  bool
}

// New creates a throttled timeline logger. The file is not touched until
// the first record is appended.
func New(cfg Config) *Logger {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ZoneLabel == "" {
		cfg.ZoneLabel = cfg.Location.String()
	}
	return &Logger{cfg: cfg}
}

// Path returns the log file path
func (l *Logger) Path() string {
	return l.cfg.Path
}

// Header returns the header row
func (l *Logger) Header() []string {
	return append([]string{"Timestamp (" + l.cfg.ZoneLabel + ")", "Emotion"}, emotion.Names()...)
}

// Append records a prediction unless the previous record is less than one
// interval old. It reports whether a row was written.
func (l *Logger) Append(ts time.Time, label emotion.Label, p emotion.Prediction) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hasLogged && ts.Sub(l.lastLogged) < l.cfg.Interval {
		return false, nil
	}

	if err := l.ensureHeader(); err != nil {
		return false, err
	}
	if err := l.writeRow(l.row(ts, label, p)); err != nil {
		return false, err
	}

	l.lastLogged = ts
	l.hasLogged = true
	return true, nil
}

// LastLogged returns the timestamp of the last appended record
func (l *Logger) LastLogged() (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastLogged, l.hasLogged
}

func (l *Logger) row(ts time.Time, label emotion.Label, p emotion.Prediction) []string {
	row := make([]string, 0, 2+emotion.NumLabels)
	row = append(row, ts.In(l.cfg.Location).Format(TimeLayout), label.String())
	for _, s := range p.Scores {
		row = append(row, strconv.FormatFloat(float64(s), 'f', 4, 32))
	}
	return row
}

// ensureHeader writes the header row into a new or empty file. A file
// that already has content is left alone.
func (l *Logger) ensureHeader() error {
	f, err := os.OpenFile(l.cfg.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrLogWrite, l.cfg.Path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: stat %s: %v", ErrLogWrite, l.cfg.Path, err)
	}
	if info.Size() > 0 {
		return f.Close()
	}

	w := csv.NewWriter(f)
	w.Write(l.Header())
	w.Flush()
	werr := w.Error()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("%w: write header: %v", ErrLogWrite, werr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: close %s: %v", ErrLogWrite, l.cfg.Path, cerr)
	}
	return nil
}

func (l *Logger) writeRow(row []string) error {
	f, err := os.OpenFile(l.cfg.Path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("%w: open %s: %v", ErrLogWrite, l.cfg.Path, err)
	}

	w := csv.NewWriter(f)
	w.Write(row)
	w.Flush()
	werr := w.Error()
	cerr := f.Close()
	if werr != nil {
		return fmt.Errorf("%w: append: %v", ErrLogWrite, werr)
	}
	if cerr != nil {
		return fmt.Errorf("%w: close %s: %v", ErrLogWrite, l.cfg.Path, cerr)
	}
	return nil
}

// ReadRecords parses a timeline file. Timestamps are interpreted in loc.
func ReadRecords(path string, loc *time.Location) ([]emotion.Record, error) {
	if loc == nil {
		loc = time.Local
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 2 + emotion.NumLabels

	if _, err := r.Read(); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	byName := make(map[string]emotion.Label, emotion.NumLabels)
	for _, l := range emotion.Labels() {
		byName[l.String()] = l
	}

	var records []emotion.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return records, fmt.Errorf("line %d: %w", line, err)
		}

		ts, err := time.ParseInLocation(TimeLayout, row[0], loc)
		if err != nil {
			return records, fmt.Errorf("line %d: bad timestamp: %w", line, err)
		}
		label, ok := byName[row[1]]
		if !ok {
			return records, fmt.Errorf("line %d: unknown emotion %q", line, row[1])
		}

		scores := make([]float32, emotion.NumLabels)
		for i := range scores {
			v, err := strconv.ParseFloat(row[2+i], 32)
			if err != nil {
				return records, fmt.Errorf("line %d: bad score: %w", line, err)
			}
			scores[i] = float32(v)
		}
		p, err := emotion.NewPrediction(scores)
		if err != nil {
			return records, fmt.Errorf("line %d: %w", line, err)
		}

		records = append(records, emotion.Record{Time: ts, Label: label, Prediction: p})
	}

	return records, nil
}
