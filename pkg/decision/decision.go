// Package decision turns screen summaries into a companion's reply: a line
// to say, an emotion, and an optional mouse or keyboard action.
package decision

import (
	"github.com/teslashibe/go-mimi/pkg/screen"
)

// Emotion is the companion's mood tag.
type Emotion string

const (
	EmotionHappy    Emotion = "happy"
	EmotionExcited  Emotion = "excited"
	EmotionThinking Emotion = "thinking"
	EmotionConfused Emotion = "confused"
	EmotionProud    Emotion = "proud"
	EmotionWorried  Emotion = "worried"
)

// emotionOrder is the match order when an emotion line mentions several.
var emotionOrder = []Emotion{
	EmotionHappy, EmotionExcited, EmotionConfused, EmotionThinking, EmotionProud, EmotionWorried,
}

// Emotions returns every known emotion.
func Emotions() []Emotion {
	return append([]Emotion(nil), emotionOrder...)
}

// ActionKind is what the companion wants to do.
type ActionKind string

const (
	ActionClick ActionKind = "click"
	ActionType  ActionKind = "type"
	ActionWait  ActionKind = "wait"
	ActionTalk  ActionKind = "talk"
)

// Defaults used when a reply is missing a section.
const (
	DefaultSpeech    = "Hmm... let me think~ ♡"
	DefaultReasoning = "Processing..."

	maxSpeechRunes    = 300
	maxReasoningRunes = 200
)

// Decision is a parsed reply. Immutable once returned.
type Decision struct {
	Speech    string     `json:"speech"`
	Reasoning string     `json:"reasoning"`
	Emotion   Emotion    `json:"emotion"`
	Action    ActionKind `json:"action"`

	// Target is the object named by a click action.
	Target string `json:"target,omitempty"`

	// Coordinates are in analysis-image space, looked up from the summary.
	Coordinates *screen.Point `json:"coordinates,omitempty"`

	// KeyboardInput is the text of a type action.
	KeyboardInput string `json:"keyboard_input,omitempty"`

	// Raw is the unparsed model reply.
	Raw string `json:"raw,omitempty"`
}

// Default returns the decision used when nothing could be parsed.
func Default() *Decision {
	return &Decision{
		Speech:    DefaultSpeech,
		Reasoning: DefaultReasoning,
		Emotion:   EmotionThinking,
		Action:    ActionWait,
	}
}

// Say returns a talk-only decision for canned lines.
func Say(speech string, emotion Emotion) *Decision {
	return &Decision{
		Speech:    speech,
		Reasoning: DefaultReasoning,
		Emotion:   emotion,
		Action:    ActionTalk,
	}
}

// HasAction reports whether executing d touches the mouse or keyboard.
func (d *Decision) HasAction() bool {
	return d.Action == ActionClick || d.Action == ActionType
}
