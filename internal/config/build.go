package config

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-mimi/pkg/automation"
	"github.com/teslashibe/go-mimi/pkg/change"
	"github.com/teslashibe/go-mimi/pkg/companion"
	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/inference"
	"github.com/teslashibe/go-mimi/pkg/publish"
	"github.com/teslashibe/go-mimi/pkg/reaction"
	"github.com/teslashibe/go-mimi/pkg/tts"
	"github.com/teslashibe/go-mimi/pkg/web"
)

// CompanionConfig maps the companion and reaction sections.
func (c *Config) CompanionConfig(logger *slog.Logger) companion.Config {
	cc := companion.DefaultConfig()
	cc.Name = c.Companion.Name
	cc.FPS = c.Capture.FPS
	cc.Duration = c.Companion.Duration
	cc.Style = companion.ParseStyle(c.Companion.Style)
	cc.Greeting = c.Companion.Greeting
	cc.CommentMinInterval = c.Companion.CommentMinInterval
	cc.CommentMaxInterval = c.Companion.CommentMaxInterval
	cc.CommentChance = c.Companion.CommentChance
	cc.QuestionInterval = c.Companion.QuestionInterval
	cc.Scheduler = c.ReactionConfig(logger)
	cc.Logger = logger
	return cc
}

// ReactionConfig maps the reaction section.
func (c *Config) ReactionConfig(logger *slog.Logger) reaction.Config {
	rc := reaction.DefaultConfig()
	rc.Capacity = c.Reaction.Capacity
	rc.Strategy = reaction.ParseStrategy(c.Reaction.Strategy)
	rc.Mode = reaction.ParseMode(c.Reaction.Mode)
	rc.TaskTimeout = c.Reaction.TaskTimeout
	rc.Logger = logger
	return rc
}

// DecisionConfig maps the persona and LLM sampling settings.
func (c *Config) DecisionConfig(logger *slog.Logger) decision.Config {
	dc := decision.DefaultConfig()
	dc.Name = c.Companion.Name
	dc.Personality = decision.ParsePersonality(c.Companion.Personality)
	dc.MaxTokens = c.LLM.MaxTokens
	dc.ReplyMaxTokens = c.LLM.ReplyMaxTokens
	dc.Temperature = c.LLM.Temperature
	dc.TopP = c.LLM.TopP
	dc.Logger = logger
	return dc
}

// InferenceOptions maps the llm section.
func (c *Config) InferenceOptions(logger *slog.Logger) []inference.Option {
	return []inference.Option{
		inference.WithBaseURL(c.LLM.BaseURL),
		inference.WithAPIKey(c.LLM.APIKey),
		inference.WithModel(c.LLM.Model),
		inference.WithVisionModel(c.LLM.VisionModel),
		inference.WithMaxTokens(c.LLM.MaxTokens),
		inference.WithSampling(c.LLM.Temperature, c.LLM.TopP),
		inference.WithTimeout(c.LLM.Timeout),
		inference.WithRetry(c.LLM.MaxRetries, 250*time.Millisecond),
		inference.WithLogger(logger),
	}
}

// OpenAITTSOptions maps the remote voice settings.
func (c *Config) OpenAITTSOptions(logger *slog.Logger) []tts.Option {
	return []tts.Option{
		tts.WithBaseURL(c.TTS.BaseURL),
		tts.WithAPIKey(c.TTS.APIKey),
		tts.WithModel(c.TTS.Model),
		tts.WithVoice(c.TTS.Voice),
		tts.WithSpeed(c.TTS.Speed),
		tts.WithTimeout(c.TTS.Timeout),
		tts.WithLogger(logger),
	}
}

// EspeakTTSOptions maps the local fallback settings.
func (c *Config) EspeakTTSOptions(logger *slog.Logger) []tts.Option {
	return []tts.Option{
		tts.WithBinary(c.TTS.EspeakBinary),
		tts.WithVoice(c.TTS.EspeakVoice),
		tts.WithRate(c.TTS.EspeakRate),
		tts.WithTimeout(c.TTS.Timeout),
		tts.WithLogger(logger),
	}
}

// AutomationOptions maps the automation section. The confirmer is supplied
// by the caller since it owns the terminal.
func (c *Config) AutomationOptions(confirmer automation.Confirmer, logger *slog.Logger) []automation.Option {
	opts := []automation.Option{
		automation.WithDetectionSize(c.Capture.AnalysisSize),
		automation.WithSafetyMode(c.Automation.SafetyMode),
		automation.WithMinActionDelay(c.Automation.MinActionDelay),
		automation.WithTypeInterval(c.Automation.TypeInterval),
		automation.WithMotion(c.Automation.MoveDuration, c.Automation.ClickSettle),
		automation.WithLogger(logger),
	}
	if confirmer != nil {
		opts = append(opts, automation.WithConfirmer(confirmer))
	}
	if len(c.Automation.Blocked) > 0 {
		opts = append(opts, automation.WithGuard(automation.NewGuard(c.Automation.Blocked...)))
	}
	return opts
}

// ChangeDetector builds the screen-change detector.
func (c *Config) ChangeDetector() *change.Detector {
	return change.NewDetector(c.Change.Bucket, change.WithMode(change.ParseMode(c.Change.Mode)))
}

// PublishConfig returns the mqtt section with a logger attached.
func (c *Config) PublishConfig(logger *slog.Logger) publish.Config {
	pc := c.Publish
	pc.Logger = logger
	return pc
}

// WebConfig maps the web section.
func (c *Config) WebConfig(logger *slog.Logger) web.Config {
	wc := web.DefaultConfig()
	wc.Addr = c.Web.Addr
	wc.StaticDir = c.Web.StaticDir
	wc.Logger = logger
	return wc
}
