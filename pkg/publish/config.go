package publish

import (
	"log/slog"
	"time"
)

// Config holds MQTT publisher settings.
type Config struct {
	// Broker is host:port or a full URL. Empty disables publishing.
	Broker string `yaml:"broker"`

	// ClientID identifies this companion to the broker.
	// Default: "go-mimi"
	ClientID string `yaml:"client_id"`

	// Prefix is prepended to every topic.
	// Default: "mimi"
	Prefix string `yaml:"prefix"`

	// QoS for published messages.
	QoS byte `yaml:"qos"`

	// RetainEmotion keeps the last emotion on the broker for late joiners.
	// Default: true
	RetainEmotion bool `yaml:"retain_emotion"`

	// Username and Password authenticate to the broker.
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	PublishTimeout time.Duration `yaml:"publish_timeout"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultConfig returns a disabled publisher configuration.
func DefaultConfig() Config {
	return Config{
		ClientID:       "go-mimi",
		Prefix:         "mimi",
		RetainEmotion:  true,
		ConnectTimeout: 5 * time.Second,
		PublishTimeout: 2 * time.Second,
		Logger:         slog.Default(),
	}
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool {
	return c.Broker != ""
}

// Topic joins the prefix and name.
func (c Config) Topic(name string) string {
	if c.Prefix == "" {
		return name
	}
	return c.Prefix + "/" + name
}
