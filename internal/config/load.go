package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Load builds a configuration from defaults, the YAML file at path (skipped
// when path is empty) and the environment, then validates it.
func Load(fsys afero.Fs, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := afero.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := cfg.decode(data); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays YAML onto c. Unknown keys are rejected so typos surface.
func (c *Config) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadEnvFile exports the variables in a .env file that are not already
// set. A missing file is not an error.
func LoadEnvFile(fsys afero.Fs, path string) error {
	f, err := fsys.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for k, v := range vars {
		if _, ok := os.LookupEnv(k); ok {
			continue
		}
		if err := os.Setenv(k, v); err != nil {
			return err
		}
	}
	return nil
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides fields from environment variables:
//
//	MIMI_NAME, MIMI_PERSONALITY, MIMI_STYLE, MIMI_LOG_LEVEL, MIMI_DURATION
//	MIMI_DISPLAY, MIMI_FPS
//	MIMI_LLM_URL, MIMI_LLM_MODEL, MIMI_VISION_MODEL, MIMI_LLM_API_KEY
//	MIMI_TTS, MIMI_TTS_URL, MIMI_TTS_VOICE, MIMI_TTS_API_KEY
//	OPENAI_API_KEY (fallback for both API keys)
//	MIMI_VOICE, MIMI_AUTOMATION, MIMI_SAFETY_MODE
//	MIMI_TRANSCRIPT, MIMI_WEB_ADDR
//	MQTT_BROKER, MQTT_USERNAME, MQTT_PASSWORD, MQTT_PREFIX
func (c *Config) ApplyEnv(lookup LookupFunc) error {
	e := envReader{lookup: lookup}

	e.str("MIMI_NAME", &c.Companion.Name)
	e.str("MIMI_PERSONALITY", &c.Companion.Personality)
	e.str("MIMI_STYLE", &c.Companion.Style)
	e.str("MIMI_LOG_LEVEL", &c.LogLevel)
	e.duration("MIMI_DURATION", &c.Companion.Duration)

	e.integer("MIMI_DISPLAY", &c.Capture.Display)
	e.number("MIMI_FPS", &c.Capture.FPS)

	e.str("MIMI_LLM_URL", &c.LLM.BaseURL)
	e.str("MIMI_LLM_MODEL", &c.LLM.Model)
	e.str("MIMI_VISION_MODEL", &c.LLM.VisionModel)
	e.str("OPENAI_API_KEY", &c.LLM.APIKey)
	e.str("MIMI_LLM_API_KEY", &c.LLM.APIKey)

	e.str("MIMI_TTS", &c.TTS.Provider)
	e.str("MIMI_TTS_URL", &c.TTS.BaseURL)
	e.str("MIMI_TTS_VOICE", &c.TTS.Voice)
	e.str("OPENAI_API_KEY", &c.TTS.APIKey)
	e.str("MIMI_TTS_API_KEY", &c.TTS.APIKey)

	e.boolean("MIMI_VOICE", &c.Voice.Enabled)
	e.boolean("MIMI_AUTOMATION", &c.Automation.Enabled)
	e.boolean("MIMI_SAFETY_MODE", &c.Automation.SafetyMode)

	e.str("MIMI_TRANSCRIPT", &c.Transcript.Path)
	e.str("MIMI_WEB_ADDR", &c.Web.Addr)

	e.str("MQTT_BROKER", &c.Publish.Broker)
	e.str("MQTT_USERNAME", &c.Publish.Username)
	e.str("MQTT_PASSWORD", &c.Publish.Password)
	e.str("MQTT_PREFIX", &c.Publish.Prefix)

	return e.err
}

// envReader collects the first parse error so ApplyEnv reads flat.
type envReader struct {
	lookup LookupFunc
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *envReader) fail(key, v string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, v, err)
	}
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) number(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = b
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.get(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
