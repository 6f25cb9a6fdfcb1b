package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimi/pkg/automation"
	"github.com/teslashibe/go-mimi/pkg/change"
	"github.com/teslashibe/go-mimi/pkg/companion"
	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/reaction"
	"github.com/teslashibe/go-mimi/pkg/screen"
)

const sampleYAML = `
log_level: debug
companion:
  name: Hana
  personality: shy
  style: reaction
  duration: 10m
  comment_chance: 0.25
capture:
  display: 1
  fps: 4
  analysis_size: {w: 320, h: 320}
detection:
  model_path: models/custom.onnx
  clickable: [button, link]
caption:
  backend: vision
llm:
  base_url: http://gpu:8000/v1
  model: qwen2.5:7b
  timeout: 30s
tts:
  provider: espeak
  espeak_rate: 150
automation:
  enabled: true
  safety_mode: false
  blocked: [shutdown]
reaction:
  capacity: 2
  strategy: admission
  mode: sequential
  task_timeout: 15s
change:
  bucket: 25
  mode: objects
transcript:
  path: sessions/today.jsonl
mqtt:
  broker: localhost:1883
  prefix: desk
web:
  addr: 127.0.0.1:9090
`

func writeFile(t *testing.T, fsys afero.Fs, path, data string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, path, []byte(data), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "Mimi", cfg.Companion.Name)
	assert.Equal(t, screen.DefaultAnalysisSize, cfg.Capture.AnalysisSize)
	assert.False(t, cfg.Automation.Enabled)
	assert.True(t, cfg.Automation.SafetyMode)
	assert.False(t, cfg.Publish.Enabled())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load(afero.NewMemMapFs(), "")
	require.NoError(t, err)
	assert.Equal(t, Default().LLM.BaseURL, cfg.LLM.BaseURL)
	assert.Equal(t, Default().Caption, cfg.Caption)
}

func TestLoadYAML(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "mimi.yaml", sampleYAML)

	cfg, err := Load(fsys, "mimi.yaml")
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "Hana", cfg.Companion.Name)
	assert.Equal(t, 10*time.Minute, cfg.Companion.Duration)
	assert.InDelta(t, 0.25, cfg.Companion.CommentChance, 1e-9)
	assert.Equal(t, 1, cfg.Capture.Display)
	assert.Equal(t, screen.Size{W: 320, H: 320}, cfg.Capture.AnalysisSize)
	assert.Equal(t, "models/custom.onnx", cfg.Detection.ModelPath)
	assert.Equal(t, []string{"button", "link"}, cfg.Detection.Clickable)
	assert.Equal(t, CaptionVision, cfg.Caption.Backend)
	assert.Equal(t, 30*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, TTSEspeak, cfg.TTS.Provider)
	assert.Equal(t, 150, cfg.TTS.EspeakRate)
	assert.True(t, cfg.Automation.Enabled)
	assert.Equal(t, "localhost:1883", cfg.Publish.Broker)
	assert.Equal(t, "desk/command", cfg.Publish.Topic("command"))
	assert.Equal(t, "127.0.0.1:9090", cfg.Web.Addr)

	// Untouched sections keep their defaults.
	assert.Equal(t, Default().Audio, cfg.Audio)
	assert.Equal(t, 45*time.Second, cfg.Companion.CommentMinInterval)
	assert.True(t, cfg.Publish.RetainEmotion)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "bad.yaml", "companion:\n  nmae: typo\n")

	_, err := Load(fsys, "bad.yaml")
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "nope.yaml")
	assert.Error(t, err)
}

func TestLoadValidates(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "bad.yaml", "caption:\n  backend: blip\n")

	_, err := Load(fsys, "bad.yaml")
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestEnvOverridesFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "mimi.yaml", sampleYAML)
	t.Setenv("MIMI_NAME", "Yuki")
	t.Setenv("MIMI_FPS", "1.5")
	t.Setenv("MIMI_AUTOMATION", "false")
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	t.Setenv("MIMI_TTS_API_KEY", "sk-voice")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")

	cfg, err := Load(fsys, "mimi.yaml")
	require.NoError(t, err)

	assert.Equal(t, "Yuki", cfg.Companion.Name)
	assert.InDelta(t, 1.5, cfg.Capture.FPS, 1e-9)
	assert.False(t, cfg.Automation.Enabled)
	assert.Equal(t, "sk-shared", cfg.LLM.APIKey)
	assert.Equal(t, "sk-voice", cfg.TTS.APIKey)
	assert.Equal(t, "tcp://broker:1883", cfg.Publish.Broker)
}

func TestApplyEnvBadValue(t *testing.T) {
	env := map[string]string{"MIMI_FPS": "fast", "MIMI_VOICE": "maybe"}
	cfg := Default()

	err := cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "MIMI_FPS")
	assert.InDelta(t, 2.0, cfg.Capture.FPS, 1e-9)
}

func TestApplyEnvIgnoresBlank(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(func(string) (string, bool) { return "  ", true }))
	assert.Equal(t, "Mimi", cfg.Companion.Name)
}

func TestLoadEnvFile(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, ".env", "MIMI_TEST_FROM_FILE=hello\nMIMI_TEST_PRESET=file\n")
	t.Setenv("MIMI_TEST_PRESET", "shell")
	t.Setenv("MIMI_TEST_FROM_FILE", "")
	os.Unsetenv("MIMI_TEST_FROM_FILE")

	require.NoError(t, LoadEnvFile(fsys, ".env"))
	assert.Equal(t, "hello", os.Getenv("MIMI_TEST_FROM_FILE"))
	assert.Equal(t, "shell", os.Getenv("MIMI_TEST_PRESET"))

	assert.NoError(t, LoadEnvFile(fsys, "missing.env"))
}

func TestBuilders(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeFile(t, fsys, "mimi.yaml", sampleYAML)
	cfg, err := Load(fsys, "mimi.yaml")
	require.NoError(t, err)

	cc := cfg.CompanionConfig(nil)
	assert.Equal(t, "Hana", cc.Name)
	assert.Equal(t, companion.StyleReaction, cc.Style)
	assert.InDelta(t, 4.0, cc.FPS, 1e-9)
	assert.Equal(t, 2, cc.Scheduler.Capacity)
	assert.Equal(t, reaction.CoalesceAtAdmission, cc.Scheduler.Strategy)
	assert.Equal(t, reaction.ModeSequential, cc.Scheduler.Mode)
	assert.Equal(t, 15*time.Second, cc.Scheduler.TaskTimeout)

	dc := cfg.DecisionConfig(nil)
	assert.Equal(t, decision.PersonalityShy, dc.Personality)
	assert.Equal(t, "Hana", dc.Name)

	assert.Equal(t, change.ModeObjectsOnly, cfg.ChangeDetector().Mode())

	ac := automation.DefaultConfig()
	for _, opt := range cfg.AutomationOptions(nil, nil) {
		opt(&ac)
	}
	assert.False(t, ac.SafetyMode)
	assert.Equal(t, screen.Size{W: 320, H: 320}, ac.DetectionSize)
	assert.Equal(t, []string{"shutdown"}, ac.Guard.Keywords())

	assert.Equal(t, "127.0.0.1:9090", cfg.WebConfig(nil).Addr)
	assert.Equal(t, "desk", cfg.PublishConfig(nil).Prefix)
}
