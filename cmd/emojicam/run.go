package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dudu/emojicam/internal/camera"
	"github.com/dudu/emojicam/internal/classifier"
	"github.com/dudu/emojicam/internal/config"
	"github.com/dudu/emojicam/internal/detector"
	"github.com/dudu/emojicam/internal/emitter"
	"github.com/dudu/emojicam/internal/emoji"
	"github.com/dudu/emojicam/internal/inference"
	"github.com/dudu/emojicam/internal/pipeline"
	"github.com/dudu/emojicam/internal/timeline"
	"github.com/dudu/emojicam/internal/ui"
)

type runOptions struct {
	ConfigPath string
	Camera     int
	LogPath    string
	Headless   bool
	Broker     string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the camera, classify faces and show the matching emoji",
	Example: `  emojicam run
  emojicam run --camera 1 --log session.csv
  emojicam run --config emojicam.yaml --headless --debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runPipeline(cmd, cfg)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.ConfigPath, "config", "", "YAML configuration file")
	f.IntVarP(&runOpts.Camera, "camera", "c", 0, "Camera device index")
	f.StringVar(&runOpts.LogPath, "log", "", "Emotion timeline CSV path")
	f.BoolVar(&runOpts.Headless, "headless", false, "Run without display windows")
	f.StringVar(&runOpts.Broker, "mqtt", "", "MQTT broker host:port for publishing records")
	rootCmd.AddCommand(runCmd)
}

// loadConfig reads the config file if given and applies flag overrides
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	if runOpts.ConfigPath != "" {
		loaded, err := config.Load(runOpts.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		def := config.Default()
		cfg = &def
	}

	flags := cmd.Flags()
	if flags.Changed("camera") {
		cfg.Camera.Index = runOpts.Camera
	}
	if flags.Changed("log") {
		cfg.Log.Path = runOpts.LogPath
	}
	if flags.Changed("headless") {
		cfg.UI.Headless = runOpts.Headless
	}
	if flags.Changed("mqtt") {
		cfg.MQTT.Broker = runOpts.Broker
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runPipeline(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()
	session := uuid.NewString()
	log := slog.Default().With("session", session)

	if err := config.ValidatePaths(cfg); err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	overrides, err := cfg.EmojiOverrides()
	if err != nil {
		return err
	}

	log.Info("initializing ONNX Runtime")
	if err := inference.Initialize(cfg.Classifier.RuntimeLib); err != nil {
		return err
	}
	defer func() {
		if shutdownErr := inference.Shutdown(); shutdownErr != nil {
			log.Warn("ONNX Runtime shutdown failed", "error", shutdownErr)
		}
	}()

	log.Info("loading face detector", "cascade", cfg.Detector.CascadePath)
	locator, err := detector.NewCascade(detector.CascadeConfig{
		ModelPath:    cfg.Detector.CascadePath,
		ScaleFactor:  cfg.Detector.ScaleFactor,
		MinNeighbors: cfg.Detector.MinNeighbors,
		MinSize:      cfg.Detector.MinSize,
	})
	if err != nil {
		return fmt.Errorf("failed to load face detector: %w", err)
	}

	log.Info("loading emotion model", "model", cfg.Classifier.ModelPath)
	model, err := classifier.NewONNX(classifier.Config{
		ModelPath:  cfg.Classifier.ModelPath,
		InputName:  cfg.Classifier.InputName,
		OutputName: cfg.Classifier.OutputName,
		CropSize:   cfg.Classifier.CropSize,
	})
	if err != nil {
		locator.Close()
		return fmt.Errorf("failed to load emotion model: %w", err)
	}

	assets := emoji.NewResolver(cfg.Emoji.Dir, overrides)
	if missing := assets.Missing(); len(missing) > 0 {
		log.Warn("emoji assets missing, those emotions will not be displayed", "emotions", missing)
	}

	components := pipeline.Components{
		Open: func() (pipeline.FrameSource, error) {
			capture, err := camera.Open(camera.Config{
				DeviceID: cfg.Camera.Index,
				Width:    cfg.Camera.Width,
				Height:   cfg.Camera.Height,
				FPS:      cfg.Camera.FPS,
			})
			if err != nil {
				return nil, err
			}
			return capture, nil
		},
		Locator:    locator,
		Classifier: model,
		Timeline: timeline.New(timeline.Config{
			Path:      cfg.Log.Path,
			Interval:  cfg.Log.Interval,
			Location:  loc,
			ZoneLabel: cfg.Log.ZoneLabel,
		}),
		Assets: assets,
		Logger: log,
	}

	if cfg.UI.Headless {
		components.Video = ui.NewHeadless("video", log)
		components.Emoji = ui.NewHeadless("emoji", log)
	} else {
		components.Video = ui.NewWindow("emojicam - camera", 0, 0, true)
		components.Emoji = ui.NewWindow("emojicam - emoji", cfg.Frame.Width+20, 0, false)
	}

	if cfg.MQTT.Broker != "" {
		pub := emitter.NewMQTTEmitter(emitter.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    "emojicam-" + session[:8],
			Session:     session,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         cfg.MQTT.QoS,
		})
		if err := pub.Connect(ctx); err != nil {
			// Publishing is optional; the timeline is still written
			log.Warn("mqtt unavailable, continuing without publishing", "broker", cfg.MQTT.Broker, "error", err)
		} else {
			log.Info("publishing records", "topic", pub.Topic())
			components.Publisher = pub
		}
	}

	p, err := pipeline.New(pipeline.Config{
		SamplePeriod:  cfg.Schedule.SamplePeriod,
		DisplayPeriod: cfg.Schedule.DisplayPeriod,
		FrameWidth:    cfg.Frame.Width,
		FrameHeight:   cfg.Frame.Height,
		CropSize:      cfg.Classifier.CropSize,
	}, components)
	if err != nil {
		return errors.Join(err, closeComponents(components))
	}

	log.Info("emojicam started",
		"camera", cfg.Camera.Index,
		"log", cfg.Log.Path,
		"headless", cfg.UI.Headless)

	if err := p.Run(ctx); err != nil {
		return err
	}
	log.Info("emojicam stopped", "log", cfg.Log.Path)
	return nil
}

// closeComponents releases everything built for a pipeline that never
// took ownership of it
func closeComponents(c pipeline.Components) error {
	closers := []interface{ Close() error }{c.Locator, c.Classifier, c.Assets, c.Video, c.Emoji}
	if c.Publisher != nil {
		closers = append(closers, c.Publisher)
	}

	var errs []error
	for _, closer := range closers {
		if closer == nil {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
