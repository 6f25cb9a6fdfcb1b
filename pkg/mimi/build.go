package mimi

import (
	"log/slog"

	"github.com/spf13/afero"

	"github.com/teslashibe/go-mimi/internal/config"
	"github.com/teslashibe/go-mimi/pkg/caption"
	"github.com/teslashibe/go-mimi/pkg/detection"
	"github.com/teslashibe/go-mimi/pkg/inference"
	"github.com/teslashibe/go-mimi/pkg/screen"
	"github.com/teslashibe/go-mimi/pkg/tts"
	"github.com/teslashibe/go-mimi/pkg/understanding"
)

// NewSource returns an image replay when capture.images is set, otherwise a
// display capturer.
func NewSource(cfg *config.Config, fsys afero.Fs, logger *slog.Logger) (screen.Source, error) {
	if len(cfg.Capture.Images) > 0 {
		return screen.LoadStatic(fsys, cfg.Capture.AnalysisSize, cfg.Capture.Images...)
	}
	return screen.NewCapturer(
		screen.WithDisplay(cfg.Capture.Display),
		screen.WithAnalysisSize(cfg.Capture.AnalysisSize),
		screen.WithLogger(logger),
	)
}

// NewAnalyzer builds the detector and captioner. An empty detection model
// path detects nothing; the vision captioner needs llm.
func NewAnalyzer(cfg *config.Config, fsys afero.Fs, llm inference.Provider, logger *slog.Logger) (*understanding.Analyzer, error) {
	var det detection.Detector = &detection.Static{}
	if cfg.Detection.ModelPath != "" {
		yolo, err := detection.NewYOLO(fsys, cfg.Detection, logger)
		if err != nil {
			return nil, err
		}
		det = yolo
	}

	var capt caption.Captioner
	switch cfg.Caption.Backend {
	case config.CaptionCLIP:
		clip, err := caption.NewCLIP(fsys, cfg.Caption.CLIP, logger)
		if err != nil {
			det.Close()
			return nil, err
		}
		capt = clip
	case config.CaptionVision:
		capt = caption.NewVision(llm, nil, logger)
	default:
		capt = &caption.Static{Labels: []caption.Label{{Text: "a computer screen", Confidence: 1}}}
	}

	return understanding.NewAnalyzer(det, capt, cfg.Caption.TopK, logger), nil
}

// NewSpeech builds the configured TTS provider. It returns nil, nil when
// speech is turned off.
func NewSpeech(cfg *config.Config, logger *slog.Logger) (tts.Provider, error) {
	switch cfg.TTS.Provider {
	case config.TTSNone:
		return nil, nil
	case config.TTSOpenAI:
		return tts.NewOpenAI(cfg.OpenAITTSOptions(logger)...)
	case config.TTSEspeak:
		return tts.NewEspeak(cfg.EspeakTTSOptions(logger)...)
	}

	remote, err := tts.NewOpenAI(cfg.OpenAITTSOptions(logger)...)
	if err != nil {
		return nil, err
	}
	local, err := tts.NewEspeak(cfg.EspeakTTSOptions(logger)...)
	if err != nil {
		remote.Close()
		return nil, err
	}
	return tts.NewChainWithLogger(logger, remote, local)
}
