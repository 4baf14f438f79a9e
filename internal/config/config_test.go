package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dudu/emojicam/internal/emotion"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "emojicam.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := Validate(&cfg); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Schedule.SamplePeriod != 100*time.Millisecond {
		t.Errorf("sample period = %v", cfg.Schedule.SamplePeriod)
	}
	if cfg.Detector.ScaleFactor != 1.3 || cfg.Detector.MinNeighbors != 5 {
		t.Errorf("detector params = %v/%d", cfg.Detector.ScaleFactor, cfg.Detector.MinNeighbors)
	}
	if cfg.Classifier.CropSize != 48 {
		t.Errorf("crop size = %d", cfg.Classifier.CropSize)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
camera:
  index: 2
schedule:
  sample_period: 50ms
log:
  path: /tmp/day-1.csv
  interval: 2s
emoji:
  dir: assets
  files:
    Happy: grin.png
mqtt:
  broker: localhost:1883
  qos: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Camera.Index != 2 {
		t.Errorf("camera.index = %d", cfg.Camera.Index)
	}
	if cfg.Schedule.SamplePeriod != 50*time.Millisecond {
		t.Errorf("sample_period = %v", cfg.Schedule.SamplePeriod)
	}
	if cfg.Schedule.DisplayPeriod != 100*time.Millisecond {
		t.Errorf("display_period = %v, default should survive", cfg.Schedule.DisplayPeriod)
	}
	if cfg.Log.Interval != 2*time.Second {
		t.Errorf("log.interval = %v", cfg.Log.Interval)
	}
	if cfg.Log.Timezone != "Asia/Kolkata" {
		t.Errorf("log.timezone = %q", cfg.Log.Timezone)
	}
	if cfg.MQTT.Broker != "localhost:1883" || cfg.MQTT.QoS != 1 {
		t.Errorf("mqtt = %+v", cfg.MQTT)
	}

	overrides, err := cfg.EmojiOverrides()
	if err != nil {
		t.Fatal(err)
	}
	if overrides[emotion.Happy] != "grin.png" {
		t.Errorf("happy override = %q", overrides[emotion.Happy])
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"negative camera", func(c *Config) { c.Camera.Index = -1 }, "camera.index"},
		{"half frame size", func(c *Config) { c.Frame.Height = 0 }, "frame.width"},
		{"zero period", func(c *Config) { c.Schedule.SamplePeriod = 0 }, "sample_period"},
		{"empty log path", func(c *Config) { c.Log.Path = "" }, "log.path"},
		{"bad timezone", func(c *Config) { c.Log.Timezone = "Mars/Olympus" }, "log.timezone"},
		{"scale factor", func(c *Config) { c.Detector.ScaleFactor = 1 }, "scale_factor"},
		{"crop size", func(c *Config) { c.Classifier.CropSize = 0 }, "crop_size"},
		{"unknown emoji", func(c *Config) { c.Emoji.Files = map[string]string{"bored": "x.png"} }, "unknown emotion"},
		{"qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := Validate(&cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestZoneLabelFollowsTimezone(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"default", "camera:\n  index: 0\n", []string{"IST"}},
		{"timezone only", "log:\n  timezone: Europe/Berlin\n", []string{"CET", "CEST"}},
		{"utc", "log:\n  timezone: UTC\n", []string{"UTC"}},
		{"explicit label", "log:\n  timezone: Europe/Berlin\n  zone_label: Berlin\n", []string{"Berlin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.body))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			for _, want := range tt.want {
				if cfg.Log.ZoneLabel == want {
					return
				}
			}
			t.Errorf("log.zone_label = %q, want one of %v", cfg.Log.ZoneLabel, tt.want)
		})
	}
}

func TestLoadRejectsBadYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "camera: [")); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected read error")
	}
}

func TestValidatePaths(t *testing.T) {
	dir := t.TempDir()
	cascade := filepath.Join(dir, "cascade.xml")
	model := filepath.Join(dir, "emotion.onnx")
	emojis := filepath.Join(dir, "emojis")
	for _, f := range []string{cascade, model} {
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(emojis, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg := Default()
	cfg.Detector.CascadePath = cascade
	cfg.Classifier.ModelPath = model
	cfg.Emoji.Dir = emojis
	if err := ValidatePaths(&cfg); err != nil {
		t.Fatalf("ValidatePaths: %v", err)
	}

	cfg.Classifier.ModelPath = filepath.Join(dir, "missing.onnx")
	if err := ValidatePaths(&cfg); err == nil || !strings.Contains(err.Error(), "classifier.model_path") {
		t.Errorf("missing model: %v", err)
	}

	cfg.Classifier.ModelPath = model
	cfg.Emoji.Dir = model
	if err := ValidatePaths(&cfg); err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Errorf("emoji dir as file: %v", err)
	}
}
