// Package publish emits the companion's reactions over MQTT so avatar
// bridges and overlays can animate them, and accepts remote commands.
//
// Topics, relative to the configured prefix:
//
//	<prefix>/decision   every reaction (JSON Reaction)
//	<prefix>/emotion    the current emotion (JSON EmotionEvent, retained)
//	<prefix>/command    incoming commands (JSON Command)
//	<prefix>/response   command acknowledgements (JSON Response)
package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

// Reaction is the payload published on the decision topic.
type Reaction struct {
	TaskID      string        `json:"task_id,omitempty"`
	Kind        string        `json:"kind"`
	Speech      string        `json:"speech"`
	Reasoning   string        `json:"reasoning,omitempty"`
	Emotion     string        `json:"emotion"`
	Action      string        `json:"action"`
	Target      string        `json:"target,omitempty"`
	Coordinates *screen.Point `json:"coordinates,omitempty"`
	Scene       string        `json:"scene,omitempty"`
	Time        time.Time     `json:"time"`
}

// EmotionEvent is the payload published on the emotion topic.
type EmotionEvent struct {
	Emotion string    `json:"emotion"`
	Time    time.Time `json:"time"`
}

// Stats contains publisher statistics.
type Stats struct {
	Enabled   bool              `json:"enabled"`
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
	Commands  uint64            `json:"commands"`
}

// Publisher publishes reactions to an MQTT broker. A Publisher without a
// broker is valid and drops everything silently.
type Publisher struct {
	cfg    Config
	client mqtt.Client
	logger *slog.Logger

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	commands  uint64
	connected bool
	control   *controller
}

// New creates a publisher. Call Connect before publishing.
func New(cfg Config) *Publisher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Publisher{
		cfg:       cfg,
		logger:    cfg.Logger.With("component", "publish"),
		published: make(map[string]uint64),
	}
}

// NewWithClient creates a publisher over an existing client, which is
// assumed connected.
func NewWithClient(client mqtt.Client, cfg Config) *Publisher {
	p := New(cfg)
	p.client = client
	p.connected = client.IsConnected()
	return p
}

// Enabled reports whether a broker is configured.
func (p *Publisher) Enabled() bool {
	return p.cfg.Enabled() || p.client != nil
}

// Connect establishes the broker connection with automatic reconnects.
// It is a no-op when no broker is configured.
func (p *Publisher) Connect() error {
	if !p.cfg.Enabled() || p.client != nil {
		return nil
	}

	broker := p.cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(p.cfg.ClientID)
	opts.SetUsername(p.cfg.Username)
	opts.SetPassword(p.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		p.setConnected(true)
		p.logger.Info("mqtt connection established", "broker", broker, "client_id", p.cfg.ClientID)
		p.resubscribe()
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		p.setConnected(false)
		p.logger.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}

	p.client = mqtt.NewClient(opts)
	p.logger.Info("connecting to mqtt broker", "broker", broker)

	token := p.client.Connect()
	if !token.WaitTimeout(p.cfg.ConnectTimeout) {
		return fmt.Errorf("connect %s: %w", broker, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("connect %s: %w", broker, err)
	}
	p.setConnected(true)
	return nil
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

// PublishReaction publishes r on the decision topic and its emotion on the
// emotion topic.
func (p *Publisher) PublishReaction(r Reaction) error {
	if !p.Enabled() {
		return nil
	}
	if r.Time.IsZero() {
		r.Time = time.Now()
	}
	if err := p.publish(p.cfg.Topic("decision"), false, r); err != nil {
		return err
	}
	return p.PublishEmotion(r.Emotion)
}

// PublishEmotion publishes the current emotion.
func (p *Publisher) PublishEmotion(emotion string) error {
	if !p.Enabled() {
		return nil
	}
	return p.publish(p.cfg.Topic("emotion"), p.cfg.RetainEmotion, EmotionEvent{Emotion: emotion, Time: time.Now()})
}

func (p *Publisher) publish(topic string, retain bool, v any) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	payload, err := json.Marshal(v)
	if err != nil {
		p.countError()
		return fmt.Errorf("marshal %s: %w", topic, err)
	}

	token := p.client.Publish(topic, p.cfg.QoS, retain, payload)
	if !token.WaitTimeout(p.cfg.PublishTimeout) {
		p.countError()
		return fmt.Errorf("publish %s: %w", topic, ErrTimeout)
	}
	if err := token.Error(); err != nil {
		p.countError()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()

	p.logger.Debug("published", "topic", topic, "size", len(payload))
	return nil
}

func (p *Publisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}

// Stats returns publisher statistics.
func (p *Publisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{
		Enabled:   p.Enabled(),
		Connected: p.connected,
		Published: published,
		Errors:    p.errors,
		Commands:  p.commands,
	}
}

// Close stops command handling and disconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	ctl := p.control
	p.control = nil
	p.mu.Unlock()
	if ctl != nil {
		ctl.stop(p.client, p.cfg.Topic("command"))
	}

	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		p.logger.Info("mqtt disconnected")
	}
	p.setConnected(false)
	return nil
}
