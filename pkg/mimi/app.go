// Package mimi assembles the desktop companion from configuration and owns
// its lifecycle: New, Init, Run, Shutdown.
package mimi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/teslashibe/go-mimi/internal/config"
	"github.com/teslashibe/go-mimi/pkg/audioio"
	"github.com/teslashibe/go-mimi/pkg/automation"
	"github.com/teslashibe/go-mimi/pkg/companion"
	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/inference"
	"github.com/teslashibe/go-mimi/pkg/publish"
	"github.com/teslashibe/go-mimi/pkg/screen"
	"github.com/teslashibe/go-mimi/pkg/transcript"
	"github.com/teslashibe/go-mimi/pkg/understanding"
	"github.com/teslashibe/go-mimi/pkg/voice"
	"github.com/teslashibe/go-mimi/pkg/web"
)

// App wires every component of the companion.
type App struct {
	config *config.Config
	fs     afero.Fs
	logger *slog.Logger

	// driver overrides the OS automation driver; nil uses robotgo.
	driver automation.Driver

	// Perception
	source   screen.Source
	analyzer *understanding.Analyzer

	// Language and speech
	llm   *inference.Client
	voice *voice.Output

	// Actions
	actions  *automation.Controller
	launcher *automation.Launcher

	// History and outputs
	transcript *transcript.Transcript
	publisher  *publish.Publisher
	server     *web.Server

	companion *companion.Companion
}

// Option configures an App.
type Option func(*App)

// WithFs sets the filesystem models, images and the transcript are read
// from. Default: the OS filesystem.
func WithFs(fsys afero.Fs) Option {
	return func(a *App) { a.fs = fsys }
}

// WithLogger sets the root logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) { a.logger = logger }
}

// WithDriver replaces the OS automation driver.
func WithDriver(d automation.Driver) Option {
	return func(a *App) { a.driver = d }
}

// New validates cfg. Call Init before Run.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("mimi: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		config: cfg,
		fs:     afero.NewOsFs(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Companion returns the assembled companion. Nil before Init.
func (a *App) Companion() *companion.Companion { return a.companion }

// Server returns the dashboard, or nil when it is disabled.
func (a *App) Server() *web.Server { return a.server }

// Init builds every component. Optional outputs that fail to start (voice,
// MQTT) are logged and left out; perception and the language model are
// required.
func (a *App) Init() error {
	fmt.Printf("✨ %s - AI desktop companion\n", a.config.Companion.Name)
	fmt.Println("================================")

	if err := a.initLanguage(); err != nil {
		return fmt.Errorf("language model: %w", err)
	}
	if err := a.initPerception(); err != nil {
		return fmt.Errorf("perception: %w", err)
	}
	if err := a.initVoice(); err != nil {
		a.logger.Warn("voice disabled", "error", err)
		fmt.Printf("⚠️  Voice: %v\n", err)
	}
	a.initActions()
	if err := a.initTranscript(); err != nil {
		return fmt.Errorf("transcript: %w", err)
	}
	a.initPublisher()

	if err := a.initCompanion(); err != nil {
		return fmt.Errorf("companion: %w", err)
	}
	a.initControl()
	a.initDashboard()
	return nil
}

func (a *App) component(name string) *slog.Logger {
	return a.logger.With("component", name)
}

func (a *App) initPerception() error {
	src, err := NewSource(a.config, a.fs, a.logger)
	if err != nil {
		return err
	}
	a.source = src
	if n := len(a.config.Capture.Images); n > 0 {
		fmt.Printf("🖼️  Replaying %d images\n", n)
	} else {
		fmt.Printf("🖥️  Capturing display %d at %.1f fps\n", a.config.Capture.Display, a.config.Capture.FPS)
	}

	an, err := NewAnalyzer(a.config, a.fs, a.llm, a.logger)
	if err != nil {
		return err
	}
	a.analyzer = an
	fmt.Printf("👁️  Scene captions: %s\n", a.config.Caption.Backend)
	return nil
}

func (a *App) initLanguage() error {
	llm, err := inference.NewClient(a.config.InferenceOptions(a.logger)...)
	if err != nil {
		return err
	}
	a.llm = llm
	fmt.Printf("🧠 Language model %s at %s\n", a.config.LLM.Model, a.config.LLM.BaseURL)
	return nil
}

func (a *App) initVoice() error {
	provider, err := NewSpeech(a.config, a.logger)
	if err != nil || provider == nil {
		return err
	}

	sink, err := audioio.NewSink(a.config.Audio, a.fs, a.logger)
	if err != nil {
		provider.Close()
		return err
	}

	out, err := voice.New(provider, sink,
		voice.WithEnabled(a.config.Voice.Enabled),
		voice.WithVolume(a.config.Voice.Volume),
		voice.WithLogger(a.logger),
	)
	if err != nil {
		sink.Close()
		provider.Close()
		return err
	}
	a.voice = out
	fmt.Printf("🔊 Voice: %s via %s\n", a.config.TTS.Provider, a.config.Audio.Backend)
	return nil
}

func (a *App) initActions() {
	a.launcher = automation.NewLauncher(a.logger)
	if !a.config.Automation.Enabled {
		fmt.Println("🖱️  Automation off")
		return
	}

	driver := a.driver
	if driver == nil {
		driver = automation.NewRobotDriver()
	}
	var confirmer automation.Confirmer
	if a.config.Automation.SafetyMode {
		confirmer = automation.NewStdinConfirmer(os.Stdin, os.Stdout)
	}
	a.actions = automation.NewController(driver, a.config.AutomationOptions(confirmer, a.logger)...)
	fmt.Printf("🖱️  Automation on (safety mode: %v)\n", a.config.Automation.SafetyMode)
}

func (a *App) initTranscript() error {
	if a.config.Transcript.Path == "" {
		return nil
	}
	t, err := transcript.NewWithFile(a.fs, a.config.Transcript.Path, a.config.Transcript.Capacity, a.logger)
	if err != nil {
		return err
	}
	a.transcript = t
	fmt.Printf("📝 Transcript: %s (%d earlier entries)\n", a.config.Transcript.Path, t.Len())
	return nil
}

func (a *App) initPublisher() {
	pc := a.config.PublishConfig(a.logger)
	if !pc.Enabled() {
		return
	}
	pub := publish.New(pc)
	if err := pub.Connect(); err != nil {
		a.logger.Warn("mqtt disabled", "broker", pc.Broker, "error", err)
		fmt.Printf("⚠️  MQTT: %v\n", err)
		return
	}
	a.publisher = pub
	fmt.Printf("📡 MQTT: %s (prefix %s)\n", pc.Broker, pc.Prefix)
}

func (a *App) initCompanion() error {
	deps := companion.Deps{
		Source:     a.source,
		Analyzer:   a.analyzer,
		Changes:    a.config.ChangeDetector(),
		Generator:  decision.NewLLMGenerator(a.llm, a.config.DecisionConfig(a.logger)),
		Launcher:   a.launcher,
		Transcript: a.transcript,
	}
	// Optional dependencies stay untyped nil when absent.
	if a.voice != nil {
		deps.Voice = a.voice
	}
	if a.actions != nil {
		deps.Actions = a.actions
	}
	if a.publisher != nil {
		deps.Publisher = a.publisher
	}

	comp, err := companion.New(deps, a.config.CompanionConfig(a.logger))
	if err != nil {
		return err
	}
	a.companion = comp
	return nil
}

// initControl subscribes to MQTT commands.
func (a *App) initControl() {
	if a.publisher == nil {
		return
	}
	comp := a.companion
	err := a.publisher.Listen(publish.Handlers{
		OnPause: func(paused bool) error {
			comp.SetPaused(paused)
			return nil
		},
		OnVoice: func(enabled bool) error {
			comp.SetVoice(enabled)
			return nil
		},
		OnSay: func(text string) error {
			_, err := comp.Say(text)
			return err
		},
		OnStop: func() error {
			comp.StopSpeaking()
			return nil
		},
		OnStatus: func() any { return comp.Snapshot() },
	})
	if err != nil {
		a.logger.Warn("mqtt control disabled", "error", err)
	}
}

func (a *App) initDashboard() {
	if !a.config.Web.Enabled {
		return
	}
	a.server = web.NewServer(a.companion, a.config.WebConfig(a.logger))
	a.companion.OnUpdate(a.server.BroadcastStatus)
	a.companion.OnEntry(a.server.BroadcastEntry)
}

// Run starts the dashboard and watches the screen until ctx is done or the
// configured duration passes.
func (a *App) Run(ctx context.Context) error {
	if a.companion == nil {
		return errors.New("mimi: Init must be called before Run")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.server != nil {
		go func() {
			if err := a.server.Start(ctx); err != nil {
				a.component("mimi").Error("dashboard stopped", "error", err)
			}
		}()
		fmt.Printf("🌐 Dashboard: http://localhost%s\n", a.config.Web.Addr)
	}

	fmt.Printf("\n👀 %s is watching your screen!\n", a.config.Companion.Name)
	fmt.Println("   (Ctrl+C to exit)")
	return a.companion.Run(ctx)
}

// Shutdown releases every component. Safe to call after a failed Init.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Bye bye~")
	log := a.component("mimi")

	if a.server != nil {
		if err := a.server.Shutdown(); err != nil {
			log.Warn("dashboard shutdown", "error", err)
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			log.Warn("mqtt close", "error", err)
		}
	}
	if a.voice != nil {
		if err := a.voice.Close(); err != nil {
			log.Warn("voice close", "error", err)
		}
	}
	if a.transcript != nil {
		if err := a.transcript.Close(); err != nil {
			log.Warn("transcript close", "error", err)
		}
	}
	if a.analyzer != nil {
		if err := a.analyzer.Close(); err != nil {
			log.Warn("analyzer close", "error", err)
		}
	}
	if a.llm != nil {
		a.llm.Close()
	}
}
