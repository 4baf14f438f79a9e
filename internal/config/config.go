package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // log.timezone must resolve without system zoneinfo

	"gopkg.in/yaml.v3"
)

// Config represents the complete emojicam configuration
type Config struct {
	Camera     CameraConfig     `yaml:"camera"`
	Frame      FrameConfig      `yaml:"frame"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Log        LogConfig        `yaml:"log"`
	Detector   DetectorConfig   `yaml:"detector"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Emoji      EmojiConfig      `yaml:"emoji"`
	UI         UIConfig         `yaml:"ui"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
}

// CameraConfig contains capture device settings
type CameraConfig struct {
	Index  int `yaml:"index"`
	Width  int `yaml:"width"`  // requested capture width, 0 for driver default
	Height int `yaml:"height"` // requested capture height, 0 for driver default
	FPS    int `yaml:"fps"`
}

// FrameConfig is the size frames are resized to before detection
type FrameConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ScheduleConfig holds loop periods
type ScheduleConfig struct {
	SamplePeriod  time.Duration `yaml:"sample_period"`
	DisplayPeriod time.Duration `yaml:"display_period"`
}

// LogConfig holds timeline settings
type LogConfig struct {
	Path      string        `yaml:"path"`
	Interval  time.Duration `yaml:"interval"`
	Timezone  string        `yaml:"timezone"`   // IANA name
	ZoneLabel string        `yaml:"zone_label"` // shown in the CSV header, derived from the timezone when empty
}

// DetectorConfig holds face detection settings
type DetectorConfig struct {
	CascadePath  string  `yaml:"cascade_path"`
	ScaleFactor  float64 `yaml:"scale_factor"`
	MinNeighbors int     `yaml:"min_neighbors"`
	MinSize      int     `yaml:"min_size"`
}

// ClassifierConfig holds emotion model settings
type ClassifierConfig struct {
	ModelPath  string `yaml:"model_path"`
	RuntimeLib string `yaml:"runtime_lib"` // onnxruntime shared library
	InputName  string `yaml:"input_name"`
	OutputName string `yaml:"output_name"`
	CropSize   int    `yaml:"crop_size"`
}

// EmojiConfig holds emoji asset settings
type EmojiConfig struct {
	Dir   string            `yaml:"dir"`
	Files map[string]string `yaml:"files"` // emotion name -> file, overrides <name>.png
}

// UIConfig holds display settings
type UIConfig struct {
	Headless bool `yaml:"headless"`
}

// MQTTConfig contains optional event publishing settings
type MQTTConfig struct {
	Broker      string `yaml:"broker"` // host:port, empty disables publishing
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Camera: CameraConfig{Index: 0, FPS: 30},
		Frame:  FrameConfig{Width: 600, Height: 500},
		Schedule: ScheduleConfig{
			SamplePeriod:  100 * time.Millisecond,
			DisplayPeriod: 100 * time.Millisecond,
		},
		Log: LogConfig{
			Path:     "emotions.csv",
			Interval: time.Second,
			Timezone: "Asia/Kolkata",
		},
		Detector: DetectorConfig{
			CascadePath:  "data/haarcascade_frontalface_default.xml",
			ScaleFactor:  1.3,
			MinNeighbors: 5,
		},
		Classifier: ClassifierConfig{
			ModelPath: "models/emotion.onnx",
			CropSize:  48,
		},
		Emoji: EmojiConfig{Dir: "emojis"},
		MQTT:  MQTTConfig{TopicPrefix: "emojicam"},
	}
}

// Load reads a YAML configuration file over the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Location loads the configured log timezone
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Log.Timezone)
	if err != nil {
		return nil, fmt.Errorf("log.timezone %q: %w", c.Log.Timezone, err)
	}
	return loc, nil
}
