package decision

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/teslashibe/go-mimi/pkg/screen"
)

type section int

const (
	sectionThinking section = iota
	sectionSpeech
	sectionAction
	sectionEmotion
)

var sectionNames = map[string]section{
	"THINKING": sectionThinking,
	"SPEECH":   sectionSpeech,
	"ACTION":   sectionAction,
	"EMOTION":  sectionEmotion,
}

// A section header is a keyword at a line start or right after a section
// emoji, optionally decorated with markdown, followed by an optional colon.
var (
	headerRe = regexp.MustCompile(`(?i)(?:^|[\n💭💬🎯😊])[ \t*#>-]*(?:[💭💬🎯😊][ \t*]*)?(THINKING|SPEECH|ACTION|EMOTION)\b[ \t*]*:?[ \t*]*`)

	markerRe    = regexp.MustCompile(`[💭💬🎯😊]`)
	clickRe     = regexp.MustCompile(`(?i)click\s+(?:on\s+)?(?:the\s+)?([^,.!\n]+)`)
	typeRe      = regexp.MustCompile(`(?i)type\s+["']?([^"'\n]+)["']?`)
	positionRe  = regexp.MustCompile(`\[(\d+),\s*(\d+)\]`)
	targetStrip = strings.NewReplacer("[", "", "]", "", `"`, "", "'", "", "`", "")
)

// Parse extracts a Decision from a model reply. It never fails: missing or
// malformed sections fall back to defaults. summary is the screen summary
// the reply was generated from; click coordinates are looked up in it.
func Parse(reply, summary string) *Decision {
	d := Default()
	d.Raw = reply

	sections := splitSections(reply)

	if s, ok := sections[sectionThinking]; ok && s != "" {
		d.Reasoning = truncate(s, maxReasoningRunes)
	}

	if s, ok := sections[sectionSpeech]; ok && s != "" {
		d.Speech = truncate(s, maxSpeechRunes)
	} else if line := fallbackSpeech(reply); line != "" {
		d.Speech = truncate(line, maxSpeechRunes)
	}

	if s, ok := sections[sectionEmotion]; ok {
		d.Emotion = parseEmotion(s, d.Emotion)
	}

	if s, ok := sections[sectionAction]; ok {
		parseAction(d, s, summary)
	}
	return d
}

// splitSections returns the text of the first occurrence of each section,
// running up to the next header.
func splitSections(reply string) map[section]string {
	out := make(map[section]string, 4)
	locs := headerRe.FindAllStringSubmatchIndex(reply, -1)
	for i, loc := range locs {
		sec := sectionNames[strings.ToUpper(reply[loc[2]:loc[3]])]
		if _, seen := out[sec]; seen {
			continue
		}
		end := len(reply)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out[sec] = cleanSection(reply[loc[1]:end])
	}
	return out
}

func cleanSection(s string) string {
	s = markerRe.ReplaceAllString(s, "")
	return strings.Trim(strings.TrimSpace(s), "*")
}

// fallbackSpeech picks the first substantial line that is not a header.
func fallbackSpeech(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		if len(strings.TrimSpace(line)) <= 10 {
			continue
		}
		clean := markerRe.ReplaceAllString(line, "")
		upper := strings.ToUpper(clean)
		if strings.Contains(upper, "THINKING") || strings.Contains(upper, "ACTION") ||
			strings.Contains(upper, "EMOTION") || strings.Contains(upper, "SPEECH") {
			continue
		}
		return strings.TrimSpace(clean)
	}
	return ""
}

func parseEmotion(s string, def Emotion) Emotion {
	s = strings.ToLower(s)
	for _, e := range emotionOrder {
		if strings.Contains(s, string(e)) {
			return e
		}
	}
	return def
}

func parseAction(d *Decision, s, summary string) {
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "click"):
		d.Action = ActionClick
		if m := clickRe.FindStringSubmatch(s); m != nil {
			d.Target = strings.TrimSpace(targetStrip.Replace(m[1]))
			d.Coordinates = FindCoordinates(d.Target, summary)
		}
	case strings.Contains(lower, "type"):
		d.Action = ActionType
		if m := typeRe.FindStringSubmatch(s); m != nil {
			d.KeyboardInput = strings.TrimSpace(m[1])
		}
	case strings.Contains(lower, "wait") || strings.Contains(lower, "nothing"):
		d.Action = ActionWait
	case strings.Contains(lower, "talk") || strings.Contains(lower, "chat"):
		d.Action = ActionTalk
	}
}

// FindCoordinates looks target up in a screen summary, returning the
// position of the first "... <target> at position [x, y]" line. When the
// full target is not found, trailing words are dropped one at a time so
// "search box to start" still finds "Search box".
func FindCoordinates(target, summary string) *screen.Point {
	words := strings.Fields(strings.ToLower(target))
	lines := strings.Split(strings.ToLower(summary), "\n")
	for n := len(words); n > 0; n-- {
		needle := strings.Join(words[:n], " ")
		for _, line := range lines {
			if !strings.Contains(line, needle) || !strings.Contains(line, "position") {
				continue
			}
			if m := positionRe.FindStringSubmatch(line); m != nil {
				x, _ := strconv.Atoi(m[1])
				y, _ := strconv.Atoi(m[2])
				return &screen.Point{X: x, Y: y}
			}
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
