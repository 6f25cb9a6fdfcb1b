package decision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-mimi/pkg/inference"
)

// Generator produces decisions and conversational replies.
type Generator interface {
	// Generate asks for a structured decision about the screen.
	Generate(ctx context.Context, summary, task string) (*Decision, error)

	// React asks for a short spoken reaction to the screen.
	React(ctx context.Context, summary string, history []string) (string, error)

	// Chat replies to a user message.
	Chat(ctx context.Context, screenContext, message string, history []string) (string, error)
}

// Config configures an LLMGenerator.
type Config struct {
	Name        string
	Personality Personality

	MaxTokens      int // decisions
	ReplyMaxTokens int // reactions and chat
	Temperature    float64
	TopP           float64

	Logger *slog.Logger
}

// DefaultConfig returns the default persona and sampling.
func DefaultConfig() Config {
	return Config{
		Name:           "Mimi",
		Personality:    PersonalityCheerful,
		MaxTokens:      300,
		ReplyMaxTokens: 100,
		Temperature:    0.8,
		TopP:           0.9,
		Logger:         slog.Default(),
	}
}

// LLMGenerator implements Generator on an inference.Provider.
type LLMGenerator struct {
	provider inference.Provider
	config   Config
	system   string
	logger   *slog.Logger
}

// NewLLMGenerator creates a generator. Zero config fields take defaults.
func NewLLMGenerator(provider inference.Provider, cfg Config) *LLMGenerator {
	d := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = d.Name
	}
	if cfg.Personality == "" {
		cfg.Personality = d.Personality
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = d.MaxTokens
	}
	if cfg.ReplyMaxTokens <= 0 {
		cfg.ReplyMaxTokens = d.ReplyMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = d.Temperature
	}
	if cfg.TopP <= 0 {
		cfg.TopP = d.TopP
	}
	if cfg.Logger == nil {
		cfg.Logger = d.Logger
	}
	return &LLMGenerator{
		provider: provider,
		config:   cfg,
		system:   SystemPrompt(cfg.Name, cfg.Personality),
		logger:   cfg.Logger.With("component", "decision"),
	}
}

// Name returns the companion's name.
func (g *LLMGenerator) Name() string { return g.config.Name }

// SystemPrompt returns the persona prompt in use.
func (g *LLMGenerator) SystemPrompt() string { return g.system }

// Generate implements Generator. Provider errors are returned; an
// unparseable reply yields default fields.
func (g *LLMGenerator) Generate(ctx context.Context, summary, task string) (*Decision, error) {
	start := time.Now()
	reply, err := g.complete(ctx, DecisionPrompt(g.config.Name, summary, task), g.config.MaxTokens)
	if err != nil {
		return nil, err
	}
	d := Parse(reply, summary)
	g.logger.Debug("decision generated",
		"action", d.Action,
		"emotion", d.Emotion,
		"target", d.Target,
		"latency_ms", time.Since(start).Milliseconds())
	return d, nil
}

// React implements Generator.
func (g *LLMGenerator) React(ctx context.Context, summary string, history []string) (string, error) {
	reply, err := g.complete(ctx, ReactionPrompt(g.config.Name, summary, history), g.config.ReplyMaxTokens)
	if err != nil {
		return "", err
	}
	return CleanReply(g.config.Name, reply), nil
}

// Chat implements Generator.
func (g *LLMGenerator) Chat(ctx context.Context, screenContext, message string, history []string) (string, error) {
	reply, err := g.complete(ctx, ChatPrompt(g.config.Name, screenContext, message, history), g.config.ReplyMaxTokens)
	if err != nil {
		return "", err
	}
	return CleanReply(g.config.Name, reply), nil
}

func (g *LLMGenerator) complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	resp, err := g.provider.Chat(ctx, &inference.ChatRequest{
		Messages: []inference.Message{
			inference.NewSystemMessage(g.system),
			inference.NewUserMessage(prompt),
		},
		MaxTokens:   maxTokens,
		Temperature: g.config.Temperature,
		TopP:        g.config.TopP,
	})
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return resp.Message.Content, nil
}

var _ Generator = (*LLMGenerator)(nil)
