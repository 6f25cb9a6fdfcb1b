// Mimi - AI VTuber desktop companion
// Watches the screen, reacts out loud and can click or type when asked.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/teslashibe/go-mimi/internal/config"
	"github.com/teslashibe/go-mimi/internal/log"
	"github.com/teslashibe/go-mimi/pkg/mimi"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := log.Init(cfg.LogLevel)

	app, err := mimi.New(cfg, mimi.WithLogger(logger))
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	if err := app.Init(); err != nil {
		app.Shutdown()
		logger.Error("initialization failed", "error", err)
		os.Exit(1)
	}
	defer app.Shutdown()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app.Run(ctx); err != nil {
		logger.Error("runtime error", "error", err)
	}
}

// loadConfig reads .env, the config file and the environment, then applies
// command line flags on top.
func loadConfig() (*config.Config, error) {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the environment is read")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	name := flag.String("name", "", "Companion name")
	personality := flag.String("personality", "", "Personality: cheerful, shy, energetic, calm")
	style := flag.String("style", "", "Screen reactions: decision or reaction")
	duration := flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	fps := flag.Float64("fps", 0, "Capture rate")
	display := flag.Int("display", -1, "Display index")
	automation := flag.Bool("automation", false, "Let the companion move the mouse and type")
	noConfirm := flag.Bool("no-confirm", false, "Skip confirmation prompts before actions")
	noVoice := flag.Bool("no-voice", false, "Start with speech muted")
	noWeb := flag.Bool("no-web", false, "Disable the dashboard")
	addr := flag.String("addr", "", "Dashboard listen address")
	flag.Parse()

	fsys := afero.NewOsFs()
	if err := config.LoadEnvFile(fsys, *envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(fsys, *configPath)
	if err != nil {
		return nil, err
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *name != "" {
		cfg.Companion.Name = *name
	}
	if *personality != "" {
		cfg.Companion.Personality = *personality
	}
	if *style != "" {
		cfg.Companion.Style = *style
	}
	if set["duration"] {
		cfg.Companion.Duration = *duration
	}
	if *fps > 0 {
		cfg.Capture.FPS = *fps
	}
	if *display >= 0 {
		cfg.Capture.Display = *display
	}
	if set["automation"] {
		cfg.Automation.Enabled = *automation
	}
	if *noConfirm {
		cfg.Automation.SafetyMode = false
	}
	if *noVoice {
		cfg.Voice.Enabled = false
	}
	if *noWeb {
		cfg.Web.Enabled = false
	}
	if *addr != "" {
		cfg.Web.Addr = *addr
	}
	return cfg, cfg.Validate()
}
