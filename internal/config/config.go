// Package config loads go-mimi settings.
//
// Settings come from three layers, later ones winning: built-in defaults,
// an optional YAML file, and environment variables (optionally seeded from a
// .env file). Command-line flags in cmd/mimi are applied last.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/teslashibe/go-mimi/pkg/audioio"
	"github.com/teslashibe/go-mimi/pkg/caption"
	"github.com/teslashibe/go-mimi/pkg/detection"
	"github.com/teslashibe/go-mimi/pkg/publish"
	"github.com/teslashibe/go-mimi/pkg/screen"
)

// ErrInvalid is returned when a loaded configuration fails validation.
var ErrInvalid = errors.New("config: invalid")

// Caption backends.
const (
	CaptionCLIP   = "clip"
	CaptionVision = "vision"
	CaptionNone   = "none"
)

// TTS providers.
const (
	TTSChain  = "chain" // openai first, espeak fallback
	TTSOpenAI = "openai"
	TTSEspeak = "espeak"
	TTSNone   = "none"
)

// Config is the complete go-mimi configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Companion  CompanionConfig      `yaml:"companion"`
	Capture    CaptureConfig        `yaml:"capture"`
	Detection  detection.YOLOConfig `yaml:"detection"`
	Caption    CaptionConfig        `yaml:"caption"`
	LLM        LLMConfig            `yaml:"llm"`
	TTS        TTSConfig            `yaml:"tts"`
	Audio      audioio.Config       `yaml:"audio"`
	Voice      VoiceConfig          `yaml:"voice"`
	Automation AutomationConfig     `yaml:"automation"`
	Reaction   ReactionConfig       `yaml:"reaction"`
	Change     ChangeConfig         `yaml:"change"`
	Transcript TranscriptConfig     `yaml:"transcript"`
	Publish    publish.Config       `yaml:"mqtt"`
	Web        WebConfig            `yaml:"web"`
}

// CompanionConfig holds persona and pacing settings.
type CompanionConfig struct {
	Name        string `yaml:"name"`
	Personality string `yaml:"personality"`
	Style       string `yaml:"style"` // decision or reaction
	Greeting    bool   `yaml:"greeting"`

	// Duration bounds a session. Zero runs until interrupted.
	Duration time.Duration `yaml:"duration"`

	CommentMinInterval time.Duration `yaml:"comment_min_interval"`
	CommentMaxInterval time.Duration `yaml:"comment_max_interval"`
	CommentChance      float64       `yaml:"comment_chance"`
	QuestionInterval   time.Duration `yaml:"question_interval"`
}

// CaptureConfig selects the display and capture pacing.
type CaptureConfig struct {
	Display      int         `yaml:"display"`
	FPS          float64     `yaml:"fps"`
	AnalysisSize screen.Size `yaml:"analysis_size"`

	// Images, when set, replays these files instead of the display.
	Images []string `yaml:"images"`
}

// CaptionConfig selects the scene captioner.
type CaptionConfig struct {
	Backend string             `yaml:"backend"` // clip, vision or none
	TopK    int                `yaml:"top_k"`
	CLIP    caption.CLIPConfig `yaml:"clip"`
}

// LLMConfig points at an OpenAI-compatible chat completion server.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	VisionModel    string        `yaml:"vision_model"`
	MaxTokens      int           `yaml:"max_tokens"`
	ReplyMaxTokens int           `yaml:"reply_max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	TopP           float64       `yaml:"top_p"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// TTSConfig selects and configures speech synthesis.
type TTSConfig struct {
	Provider string        `yaml:"provider"` // chain, openai, espeak or none
	BaseURL  string        `yaml:"base_url"`
	APIKey   string        `yaml:"api_key"`
	Model    string        `yaml:"model"`
	Voice    string        `yaml:"voice"`
	Speed    float64       `yaml:"speed"`
	Timeout  time.Duration `yaml:"timeout"`

	// Espeak fallback.
	EspeakBinary string `yaml:"espeak_binary"`
	EspeakVoice  string `yaml:"espeak_voice"`
	EspeakRate   int    `yaml:"espeak_rate"`
}

// VoiceConfig controls playback.
type VoiceConfig struct {
	Enabled bool    `yaml:"enabled"`
	Volume  float64 `yaml:"volume"`
}

// AutomationConfig controls mouse and keyboard actions.
type AutomationConfig struct {
	// Enabled lets decisions drive the pointer and keyboard.
	Enabled bool `yaml:"enabled"`

	// SafetyMode asks on the terminal before clicks and typing.
	SafetyMode bool `yaml:"safety_mode"`

	MinActionDelay time.Duration `yaml:"min_action_delay"`
	TypeInterval   time.Duration `yaml:"type_interval"`
	MoveDuration   time.Duration `yaml:"move_duration"`
	ClickSettle    time.Duration `yaml:"click_settle"`

	// Blocked replaces the typed-text guard keywords when non-empty.
	Blocked []string `yaml:"blocked"`
}

// ReactionConfig configures the reaction scheduler.
type ReactionConfig struct {
	Capacity    int           `yaml:"capacity"`
	Strategy    string        `yaml:"strategy"` // generation or admission
	Mode        string        `yaml:"mode"`     // async or sequential
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// ChangeConfig configures the screen-change detector.
type ChangeConfig struct {
	Bucket int    `yaml:"bucket"`
	Mode   string `yaml:"mode"` // objects+scene or objects
}

// TranscriptConfig controls the session log.
type TranscriptConfig struct {
	// Path is a JSON Lines file. Empty keeps history in memory only.
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

// WebConfig controls the dashboard.
type WebConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// Default returns the built-in configuration: a local Ollama server, espeak
// fallback speech, automation off and the dashboard on :8080.
func Default() *Config {
	pub := publish.DefaultConfig()
	pub.Logger = nil

	return &Config{
		LogLevel: "info",
		Companion: CompanionConfig{
			Name:               "Mimi",
			Personality:        "cheerful",
			Style:              "decision",
			Greeting:           true,
			CommentMinInterval: 45 * time.Second,
			CommentMaxInterval: 90 * time.Second,
			CommentChance:      0.4,
			QuestionInterval:   60 * time.Second,
		},
		Capture: CaptureConfig{
			FPS:          2,
			AnalysisSize: screen.DefaultAnalysisSize,
		},
		Detection: detection.DefaultYOLOConfig(),
		Caption: CaptionConfig{
			Backend: CaptionCLIP,
			TopK:    3,
			CLIP:    caption.DefaultCLIPConfig(),
		},
		LLM: LLMConfig{
			BaseURL:        "http://localhost:11434/v1",
			Model:          "llama3.2:3b",
			VisionModel:    "llava:7b",
			MaxTokens:      300,
			ReplyMaxTokens: 100,
			Temperature:    0.8,
			TopP:           0.9,
			Timeout:        90 * time.Second,
			MaxRetries:     2,
		},
		TTS: TTSConfig{
			Provider:     TTSChain,
			BaseURL:      "http://localhost:8880/v1",
			Model:        "tts-1",
			Voice:        "shimmer",
			Speed:        1.0,
			Timeout:      30 * time.Second,
			EspeakBinary: "espeak-ng",
			EspeakVoice:  "en+f3",
			EspeakRate:   170,
		},
		Audio: audioio.DefaultConfig(),
		Voice: VoiceConfig{Enabled: true, Volume: 1.0},
		Automation: AutomationConfig{
			SafetyMode:     true,
			MinActionDelay: 500 * time.Millisecond,
			TypeInterval:   50 * time.Millisecond,
			MoveDuration:   500 * time.Millisecond,
			ClickSettle:    100 * time.Millisecond,
		},
		Reaction: ReactionConfig{
			Capacity:    5,
			Strategy:    "generation",
			Mode:        "async",
			TaskTimeout: 60 * time.Second,
		},
		Change:     ChangeConfig{Bucket: 50, Mode: "objects+scene"},
		Transcript: TranscriptConfig{Capacity: 100},
		Publish:    pub,
		Web:        WebConfig{Enabled: true, Addr: ":8080"},
	}
}

// Validate checks cross-field constraints. Package constructors validate
// the rest.
func (c *Config) Validate() error {
	if c.Companion.Name == "" {
		return fmt.Errorf("%w: companion.name is required", ErrInvalid)
	}
	if c.Capture.FPS <= 0 {
		return fmt.Errorf("%w: capture.fps must be positive, got %v", ErrInvalid, c.Capture.FPS)
	}
	if !c.Capture.AnalysisSize.Valid() {
		return fmt.Errorf("%w: capture.analysis_size %s", ErrInvalid, c.Capture.AnalysisSize)
	}
	if c.Companion.CommentChance < 0 || c.Companion.CommentChance > 1 {
		return fmt.Errorf("%w: companion.comment_chance must be between 0 and 1", ErrInvalid)
	}
	if c.Companion.CommentMaxInterval < c.Companion.CommentMinInterval {
		return fmt.Errorf("%w: companion.comment_max_interval is below the minimum", ErrInvalid)
	}
	switch c.Caption.Backend {
	case CaptionCLIP, CaptionVision, CaptionNone:
	default:
		return fmt.Errorf("%w: unknown caption.backend %q", ErrInvalid, c.Caption.Backend)
	}
	switch c.TTS.Provider {
	case TTSChain, TTSOpenAI, TTSEspeak, TTSNone:
	default:
		return fmt.Errorf("%w: unknown tts.provider %q", ErrInvalid, c.TTS.Provider)
	}
	if c.LLM.BaseURL == "" || c.LLM.Model == "" {
		return fmt.Errorf("%w: llm.base_url and llm.model are required", ErrInvalid)
	}
	if c.Voice.Volume < 0 || c.Voice.Volume > 4 {
		return fmt.Errorf("%w: voice.volume must be between 0 and 4", ErrInvalid)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("%w: audio: %v", ErrInvalid, err)
	}
	if c.Web.Enabled && c.Web.Addr == "" {
		return fmt.Errorf("%w: web.addr is required", ErrInvalid)
	}
	return nil
}
