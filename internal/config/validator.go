package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dudu/emojicam/internal/emotion"
)

// Validate checks the configuration and fills defaults for unset values
func Validate(cfg *Config) error {
	if cfg.Camera.Index < 0 {
		return fmt.Errorf("camera.index must be >= 0")
	}

	if (cfg.Frame.Width == 0) != (cfg.Frame.Height == 0) {
		return fmt.Errorf("frame.width and frame.height must be set together")
	}
	if cfg.Frame.Width < 0 || cfg.Frame.Height < 0 {
		return fmt.Errorf("frame size must be positive")
	}

	if cfg.Schedule.SamplePeriod <= 0 {
		return fmt.Errorf("schedule.sample_period must be > 0")
	}
	if cfg.Schedule.DisplayPeriod <= 0 {
		cfg.Schedule.DisplayPeriod = cfg.Schedule.SamplePeriod
	}

	if cfg.Log.Path == "" {
		return fmt.Errorf("log.path is required")
	}
	if cfg.Log.Interval <= 0 {
		cfg.Log.Interval = time.Second
	}
	if cfg.Log.Timezone == "" {
		cfg.Log.Timezone = "Local"
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	if cfg.Log.ZoneLabel == "" {
		cfg.Log.ZoneLabel = zoneLabel(loc)
	}

	if cfg.Detector.ScaleFactor <= 1 {
		return fmt.Errorf("detector.scale_factor must be > 1")
	}
	if cfg.Detector.MinNeighbors < 0 {
		return fmt.Errorf("detector.min_neighbors must be >= 0")
	}

	if cfg.Classifier.CropSize <= 0 {
		return fmt.Errorf("classifier.crop_size must be > 0")
	}

	if _, err := cfg.EmojiOverrides(); err != nil {
		return err
	}

	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "emojicam"
	}

	return nil
}

// zoneLabel returns the current abbreviation of loc, e.g. IST for
// Asia/Kolkata
func zoneLabel(loc *time.Location) string {
	if abbr, _ := time.Now().In(loc).Zone(); abbr != "" {
		return abbr
	}
	return loc.String()
}

// ValidatePaths checks that every model and asset location exists.
// Called once at startup; a failure is fatal.
func ValidatePaths(cfg *Config) error {
	required := []struct {
		key, path string
		dir       bool
	}{
		{"detector.cascade_path", cfg.Detector.CascadePath, false},
		{"classifier.model_path", cfg.Classifier.ModelPath, false},
		{"emoji.dir", cfg.Emoji.Dir, true},
	}

	for _, r := range required {
		if r.path == "" {
			return fmt.Errorf("%s is required", r.key)
		}
		info, err := os.Stat(r.path)
		if err != nil {
			return fmt.Errorf("%s: %w", r.key, err)
		}
		if info.IsDir() != r.dir {
			if r.dir {
				return fmt.Errorf("%s: %s is not a directory", r.key, r.path)
			}
			return fmt.Errorf("%s: %s is a directory", r.key, r.path)
		}
	}

	if lib := cfg.Classifier.RuntimeLib; lib != "" {
		if _, err := os.Stat(lib); err != nil {
			return fmt.Errorf("classifier.runtime_lib: %w", err)
		}
	}

	return nil
}

// EmojiOverrides converts emoji.files keys (emotion names, any case) to labels
func (c *Config) EmojiOverrides() (map[emotion.Label]string, error) {
	byName := make(map[string]emotion.Label, emotion.NumLabels)
	for _, l := range emotion.Labels() {
		byName[strings.ToLower(l.String())] = l
	}

	out := make(map[emotion.Label]string, len(c.Emoji.Files))
	for name, file := range c.Emoji.Files {
		l, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("emoji.files: unknown emotion %q", name)
		}
		out[l] = file
	}
	return out, nil
}
