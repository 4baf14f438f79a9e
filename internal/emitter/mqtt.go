package emitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dudu/emojicam/internal/emotion"
)

// ErrNotConnected is returned when publishing without a live broker connection
var ErrNotConnected = errors.New("mqtt not connected")

// Config holds broker settings
type Config struct {
	Broker      string // host:port
	ClientID    string
	Session     string
	TopicPrefix string
	QoS         byte
}

// Event is the JSON body published for every logged record
type Event struct {
	Session   string             `json:"session"`
	Timestamp time.Time          `json:"timestamp"`
	Emotion   string             `json:"emotion"`
	Label     int                `json:"label"`
	Scores    map[string]float32 `json:"scores"`
}

// NewEvent builds the published body for a record
func NewEvent(session string, rec emotion.Record) Event {
	scores := make(map[string]float32, emotion.NumLabels)
	for _, l := range emotion.Labels() {
		scores[l.String()] = rec.Prediction.Scores[l]
	}
	return Event{
		Session:   session,
		Timestamp: rec.Time,
		Emotion:   rec.Label.String(),
		Label:     int(rec.Label),
		Scores:    scores,
	}
}

// MQTTEmitter publishes timeline records to an MQTT broker
type MQTTEmitter struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	published uint64
	errors    uint64
	connected bool
}

// NewMQTTEmitter creates an emitter. Call Connect before Publish.
func NewMQTTEmitter(cfg Config) *MQTTEmitter {
	return &MQTTEmitter{cfg: cfg}
}

// Topic returns the topic records are published to
func (e *MQTTEmitter) Topic() string {
	return fmt.Sprintf("%s/%s/emotion", e.cfg.TopicPrefix, e.cfg.Session)
}

// Connect establishes the broker connection
func (e *MQTTEmitter) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", e.cfg.Broker))
	opts.SetClientID(e.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		e.setConnected(true)
		slog.Info("mqtt connection established", "broker", e.cfg.Broker, "client_id", e.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		e.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "error", err, "broker", e.cfg.Broker)
	}

	e.client = mqtt.NewClient(opts)

	slog.Info("connecting to mqtt broker", "broker", e.cfg.Broker)

	token := e.client.Connect()
	select {
	case <-token.Done():
	case <-time.After(5 * time.Second):
		return fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}

	e.setConnected(true)
	return nil
}

// Publish sends one record. Records are dropped, not queued, while the
// broker is unreachable.
func (e *MQTTEmitter) Publish(rec emotion.Record) error {
	if !e.isConnected() {
		e.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(NewEvent(e.cfg.Session, rec))
	if err != nil {
		e.countError()
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	token := e.client.Publish(e.Topic(), e.cfg.QoS, false, payload)
	if !token.WaitTimeout(2 * time.Second) {
		e.countError()
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		e.countError()
		return fmt.Errorf("publish failed: %w", err)
	}

	e.mu.Lock()
	e.published++
	e.mu.Unlock()

	slog.Debug("emotion published", "topic", e.Topic(), "emotion", rec.Label, "size", len(payload))
	return nil
}

// Stats returns published and failed counts
func (e *MQTTEmitter) Stats() (published, failed uint64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.published, e.errors
}

// Close disconnects from the broker
func (e *MQTTEmitter) Close() error {
	if e.client != nil && e.client.IsConnected() {
		e.client.Disconnect(250)
	}
	e.setConnected(false)
	return nil
}

func (e *MQTTEmitter) isConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.connected
}

func (e *MQTTEmitter) setConnected(v bool) {
	e.mu.Lock()
	e.connected = v
	e.mu.Unlock()
}

func (e *MQTTEmitter) countError() {
	e.mu.Lock()
	e.errors++
	e.mu.Unlock()
}
