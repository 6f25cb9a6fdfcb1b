package automation

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"runtime"
	"slices"
	"strings"
)

// YouTubeURL is opened by OpenYouTube.
const YouTubeURL = "https://www.youtube.com"

// DefaultApps maps spoken application names to launch commands per OS.
var DefaultApps = map[string]map[string][]string{
	"linux": {
		"chrome":     {"google-chrome"},
		"browser":    {"x-www-browser"},
		"notepad":    {"gedit"},
		"calculator": {"gnome-calculator"},
		"explorer":   {"xdg-open", "."},
		"discord":    {"discord"},
		"spotify":    {"spotify"},
	},
	"darwin": {
		"chrome":     {"open", "-a", "Google Chrome"},
		"browser":    {"open", "-a", "Safari"},
		"notepad":    {"open", "-a", "TextEdit"},
		"calculator": {"open", "-a", "Calculator"},
		"explorer":   {"open", "."},
		"discord":    {"open", "-a", "Discord"},
		"spotify":    {"open", "-a", "Spotify"},
	},
	"windows": {
		"chrome":     {"cmd", "/c", "start", "", "chrome.exe"},
		"browser":    {"cmd", "/c", "start", "", "chrome.exe"},
		"notepad":    {"notepad.exe"},
		"calculator": {"calc.exe"},
		"paint":      {"mspaint.exe"},
		"explorer":   {"explorer.exe"},
		"discord":    {"cmd", "/c", "start", "", "discord.exe"},
		"spotify":    {"cmd", "/c", "start", "", "spotify.exe"},
	},
}

// Launcher opens URLs and applications for chat commands.
type Launcher struct {
	goos   string
	apps   map[string][]string
	guard  *Guard
	logger *slog.Logger

	// start launches a detached process; replaced in tests.
	start func(ctx context.Context, name string, args ...string) error
}

// NewLauncher creates a launcher for the running OS.
func NewLauncher(logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		goos:   runtime.GOOS,
		apps:   DefaultApps[runtime.GOOS],
		guard:  DefaultGuard(),
		logger: logger.With("component", "launcher"),
		start:  startDetached,
	}
}

func startDetached(ctx context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// OpenURL opens u in the default browser.
func (l *Launcher) OpenURL(ctx context.Context, u string) error {
	var name string
	var args []string
	switch l.goos {
	case "darwin":
		name, args = "open", []string{u}
	case "windows":
		name, args = "rundll32", []string{"url.dll,FileProtocolHandler", u}
	default:
		name, args = "xdg-open", []string{u}
	}
	l.logger.Info("opening url", "url", u)
	if err := l.start(ctx, name, args...); err != nil {
		return fmt.Errorf("open %s: %w", u, err)
	}
	return nil
}

// OpenYouTube opens the YouTube home page.
func (l *Launcher) OpenYouTube(ctx context.Context) error {
	return l.OpenURL(ctx, YouTubeURL)
}

// SearchURL returns the YouTube results page for query.
func SearchURL(query string) string {
	return YouTubeURL + "/results?search_query=" + url.QueryEscape(strings.TrimSpace(query))
}

// SearchYouTube opens YouTube search results for query.
func (l *Launcher) SearchYouTube(ctx context.Context, query string) error {
	return l.OpenURL(ctx, SearchURL(query))
}

// OpenApp launches the first known application whose key appears in name.
func (l *Launcher) OpenApp(ctx context.Context, name string) error {
	if err := l.guard.CheckName(name); err != nil {
		return err
	}
	lower := strings.ToLower(name)
	for _, key := range sortedKeys(l.apps) {
		if !strings.Contains(lower, key) {
			continue
		}
		cmd := l.apps[key]
		l.logger.Info("opening application", "name", name, "command", cmd[0])
		if err := l.start(ctx, cmd[0], cmd[1:]...); err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnknownApp, name)
}

// Apps returns the application names the launcher knows.
func (l *Launcher) Apps() []string {
	return sortedKeys(l.apps)
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
