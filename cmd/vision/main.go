// Screen vision check - runs the detector and captioner on the live screen
//
// Prints what the companion would see each interval, and optionally asks the
// vision model to describe the frame.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/spf13/afero"

	"github.com/teslashibe/go-mimi/internal/config"
	"github.com/teslashibe/go-mimi/internal/log"
	"github.com/teslashibe/go-mimi/pkg/inference"
	"github.com/teslashibe/go-mimi/pkg/mimi"
	"github.com/teslashibe/go-mimi/pkg/screen"
	"github.com/teslashibe/go-mimi/pkg/understanding"
)

const describePrompt = "Describe what is on this computer screen in one short sentence (max 20 words)."

func main() {
	configPath := flag.String("config", "", "YAML config file")
	interval := flag.Duration("interval", 3*time.Second, "Time between captures")
	describe := flag.Bool("describe", false, "Also ask the vision model to describe each frame")
	once := flag.Bool("once", false, "Analyze a single frame and exit")
	save := flag.String("save", "", "Write the annotated frame to this JPEG file after each capture")
	flag.Parse()

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
	logger := log.Init(cfg.LogLevel)

	fmt.Println("👁️  Screen Vision Check")
	fmt.Println("======================")

	llm, err := inference.NewClient(cfg.InferenceOptions(logger)...)
	if err != nil {
		fmt.Printf("❌ Language model: %v\n", err)
		os.Exit(1)
	}
	defer llm.Close()

	source, err := mimi.NewSource(cfg, fsys, logger)
	if err != nil {
		fmt.Printf("❌ Capture: %v\n", err)
		os.Exit(1)
	}
	analyzer, err := mimi.NewAnalyzer(cfg, fsys, llm, logger)
	if err != nil {
		fmt.Printf("❌ Analyzer: %v\n", err)
		os.Exit(1)
	}
	defer analyzer.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("🔄 Starting vision loop (Ctrl+C to stop)")
	fmt.Println()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		frame, err := source.Capture(ctx)
		if err != nil {
			fmt.Printf("❌ Capture: %v\n", err)
		} else if a, err := analyzer.Analyze(ctx, frame); err != nil {
			fmt.Printf("❌ Analyze: %v\n", err)
		} else {
			printAnalysis(a)
			if *save != "" {
				if err := saveAnnotated(fsys, *save, frame, a); err != nil {
					fmt.Printf("│ ❌ Save: %v\n", err)
				} else {
					fmt.Printf("│ 💾 Saved %s\n", *save)
				}
			}
			if *describe {
				jpeg, err := frame.JPEG(80)
				if err == nil {
					var resp *inference.VisionResponse
					resp, err = llm.Vision(ctx, &inference.VisionRequest{JPEG: jpeg, Prompt: describePrompt})
					if err == nil {
						fmt.Printf("│ 💬 %s (%dms)\n", resp.Content, resp.LatencyMs)
					}
				}
				if err != nil {
					fmt.Printf("│ ❌ Describe: %v\n", err)
				}
			}
			fmt.Println("╰───────────────────────────────────────────")
		}

		if *once {
			return
		}
		select {
		case <-ctx.Done():
			fmt.Println("\n👋 Goodbye!")
			return
		case <-ticker.C:
		}
	}
}

func saveAnnotated(fsys afero.Fs, path string, frame *screen.Frame, a *understanding.ScreenAnalysis) error {
	annotated, err := understanding.Annotate(frame, a)
	if err != nil {
		return err
	}
	data, err := annotated.JPEG(90)
	if err != nil {
		return err
	}
	return afero.WriteFile(fsys, path, data, 0o644)
}

func printAnalysis(a *understanding.ScreenAnalysis) {
	fmt.Println("╭───────────────────────────────────────────")
	fmt.Printf("│ 🖥️  Scene: %s (%.0f%%) in %dms\n", a.SceneLabel, a.SceneConfidence*100, a.Elapsed.Milliseconds())

	counts := a.ObjectCounts()
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Printf("│    %-16s x%d\n", label, counts[label])
	}
	fmt.Printf("│ 🖱️  Clickable: %d of %d\n", len(a.Clickable), len(a.Objects))
}
