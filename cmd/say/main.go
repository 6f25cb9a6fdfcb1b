// Command say speaks lines through the configured voice to tune TTS and
// audio output without running the companion.
//
// Usage:
//
//	go run ./cmd/say "Hello Master!"
//	go run ./cmd/say --loops 3 --tts espeak "Testing one two"
//	go run ./cmd/say --audio wavfile "Saved to recordings/"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"

	"github.com/teslashibe/go-mimi/internal/config"
	"github.com/teslashibe/go-mimi/internal/log"
	"github.com/teslashibe/go-mimi/pkg/audioio"
	"github.com/teslashibe/go-mimi/pkg/mimi"
	"github.com/teslashibe/go-mimi/pkg/tts"
	"github.com/teslashibe/go-mimi/pkg/voice"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	provider := flag.String("tts", "", "TTS provider: chain, openai, espeak")
	backend := flag.String("audio", "", "Audio backend: auto, portaudio, wavfile, mock")
	loops := flag.Int("loops", 1, "Times to repeat each line")
	flag.Parse()

	lines := flag.Args()
	if len(lines) == 0 {
		lines = []string{"Hello Master! I'm ready to watch your screen~"}
	}

	fsys := afero.NewOsFs()
	if err := config.LoadEnvFile(fsys, ".env"); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(fsys, *configPath)
	if err != nil {
		fmt.Printf("❌ Config error: %v\n", err)
		os.Exit(1)
	}
	if *provider != "" {
		cfg.TTS.Provider = *provider
	}
	if *backend != "" {
		cfg.Audio.Backend = audioio.Backend(*backend)
	}
	logger := log.Init(cfg.LogLevel)

	fmt.Println("🎤 Voice Output Test")
	fmt.Println("====================")
	fmt.Printf("TTS: %s\n", cfg.TTS.Provider)
	fmt.Printf("Audio: %s\n", cfg.Audio.Backend)
	fmt.Println()

	tp, err := mimi.NewSpeech(cfg, logger)
	if err != nil || tp == nil {
		fmt.Printf("❌ TTS unavailable: %v\n", err)
		os.Exit(1)
	}
	sink, err := audioio.NewSink(cfg.Audio, fsys, logger)
	if err != nil {
		tp.Close()
		fmt.Printf("❌ Audio: %v\n", err)
		os.Exit(1)
	}
	out, err := voice.New(tp, sink, voice.WithVolume(cfg.Voice.Volume), voice.WithLogger(logger))
	if err != nil {
		sink.Close()
		tp.Close()
		fmt.Printf("❌ Voice: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := tp.Health(ctx); err != nil {
		fmt.Printf("⚠️  Health check: %v\n", err)
	}

	for i := 1; i <= *loops; i++ {
		for _, line := range lines {
			if ctx.Err() != nil {
				return
			}
			fmt.Printf("🔊 [%d/%d] %s\n", i, *loops, line)
			if err := out.Speak(ctx, line, true); err != nil {
				fmt.Printf("   ❌ %v\n", err)
				continue
			}
			m := out.Metrics().Last()
			fmt.Printf("   %s\n", m.FormatLatency())
		}
	}

	totals := out.Metrics().Totals()
	avg := out.Metrics().Average()
	fmt.Println()
	fmt.Println(strings.Repeat("─", 40))
	fmt.Printf("Utterances: %d (failed %d)\n", totals.Utterances, totals.Failed)
	fmt.Printf("Audio: %s\n", totals.AudioTotal)
	fmt.Printf("Average: %s\n", avg.FormatLatency())
	if ws, ok := sink.(audioio.SinkWithStats); ok {
		st := ws.Stats()
		fmt.Printf("Sink %s: %d chunks, %d samples, %d underruns\n",
			st.Backend, st.ChunksWritten, st.SamplesWritten, st.Underruns)
	}
	if chain, ok := tp.(*tts.Chain); ok {
		for _, st := range chain.Stats() {
			fmt.Printf("Voice #%d: %d ok, %d failed\n", st.Index, st.Successes, st.Failures)
		}
	}
}
