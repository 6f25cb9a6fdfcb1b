package decision

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimi/pkg/inference"
	"github.com/teslashibe/go-mimi/pkg/screen"
)

const summary = `SCREEN ANALYSIS:

Scene: a screenshot of a web browser with search bar
Confidence: 87.3%

Detected Objects (2):
  1. Search box at position [320, 100] (confidence: 0.91)
  2. Search button at position [500, 100] (confidence: 0.88)

Clickable Elements (2):
  1. Search box at position [320, 100]
  2. Search button at position [500, 100]`

func TestParseFullReply(t *testing.T) {
	reply := `💭 THINKING: Master opened a browser, the search box is right there.
💬 SPEECH: Ooh! Want me to search something for you? ✨
🎯 ACTION: click the Search box.
😊 EMOTION: excited`

	d := Parse(reply, summary)
	assert.Equal(t, "Master opened a browser, the search box is right there.", d.Reasoning)
	assert.Equal(t, "Ooh! Want me to search something for you? ✨", d.Speech)
	assert.Equal(t, ActionClick, d.Action)
	assert.Equal(t, "Search box", d.Target)
	require.NotNil(t, d.Coordinates)
	assert.Equal(t, screen.Point{X: 320, Y: 100}, *d.Coordinates)
	assert.Equal(t, EmotionExcited, d.Emotion)
	assert.Equal(t, reply, d.Raw)
}

func TestParseWithoutEmojisAnyOrder(t *testing.T) {
	reply := "EMOTION: proud\nACTION: type \"cute cat videos\"\nSPEECH: Let me type that for you~\nTHINKING: easy"
	d := Parse(reply, summary)
	assert.Equal(t, EmotionProud, d.Emotion)
	assert.Equal(t, ActionType, d.Action)
	assert.Equal(t, "cute cat videos", d.KeyboardInput)
	assert.Equal(t, "Let me type that for you~", d.Speech)
	assert.Equal(t, "easy", d.Reasoning)
}

func TestParseSingleLine(t *testing.T) {
	reply := "💭 THINKING: hmm 💬 SPEECH: Hi Master! 🎯 ACTION: just talk 😊 EMOTION: happy"
	d := Parse(reply, "")
	assert.Equal(t, "hmm", d.Reasoning)
	assert.Equal(t, "Hi Master!", d.Speech)
	assert.Equal(t, ActionTalk, d.Action)
	assert.Equal(t, EmotionHappy, d.Emotion)
}

func TestParseMarkdownHeaders(t *testing.T) {
	reply := "**SPEECH:** Hello there, Master!\n**ACTION:** wait\n**EMOTION:** worried"
	d := Parse(reply, "")
	assert.Equal(t, "Hello there, Master!", d.Speech)
	assert.Equal(t, ActionWait, d.Action)
	assert.Equal(t, EmotionWorried, d.Emotion)
}

func TestParseDefaults(t *testing.T) {
	for _, reply := range []string{"", "ok", "   \n\n"} {
		d := Parse(reply, summary)
		assert.Equal(t, DefaultSpeech, d.Speech)
		assert.Equal(t, DefaultReasoning, d.Reasoning)
		assert.Equal(t, ActionWait, d.Action)
		assert.Equal(t, EmotionThinking, d.Emotion)
		assert.Nil(t, d.Coordinates)
	}
}

func TestParseFallbackSpeech(t *testing.T) {
	reply := "Sure!\nI see a browser, how exciting for us!\nACTION: wait"
	d := Parse(reply, "")
	assert.Equal(t, "I see a browser, how exciting for us!", d.Speech)
}

func TestParseTruncates(t *testing.T) {
	long := strings.Repeat("♡", 400)
	d := Parse("THINKING: "+long+"\nSPEECH: "+long, "")
	assert.Equal(t, 300, len([]rune(d.Speech)))
	assert.Equal(t, 200, len([]rune(d.Reasoning)))
}

func TestParseUnknownEmotionKeepsDefault(t *testing.T) {
	d := Parse("EMOTION: sleepy", "")
	assert.Equal(t, EmotionThinking, d.Emotion)
}

func TestParseClickUnknownTarget(t *testing.T) {
	d := Parse("ACTION: click on the send button", summary)
	assert.Equal(t, ActionClick, d.Action)
	assert.Equal(t, "send button", d.Target)
	assert.Nil(t, d.Coordinates)
}

func TestFindCoordinates(t *testing.T) {
	p := FindCoordinates("search button", summary)
	require.NotNil(t, p)
	assert.Equal(t, screen.Point{X: 500, Y: 100}, *p)

	p = FindCoordinates("search box to start searching", summary)
	require.NotNil(t, p)
	assert.Equal(t, screen.Point{X: 320, Y: 100}, *p)

	assert.Nil(t, FindCoordinates("", summary))
	assert.Nil(t, FindCoordinates("wallpaper", summary))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"open youtube", Command{Kind: CommandOpenYouTube}},
		{"Search YouTube for lofi beats", Command{Kind: CommandSearchYouTube, Arg: "lofi beats"}},
		{"can you find on youtube cat videos", Command{Kind: CommandSearchYouTube, Arg: "cat videos"}},
		{"please open spotify", Command{Kind: CommandOpenApp, Arg: "spotify"}},
		{"click on the Search box", Command{Kind: CommandClick, Arg: "Search box"}},
		{"click send", Command{Kind: CommandClick, Arg: "send"}},
		{"type Hello World", Command{Kind: CommandType, Arg: "Hello World"}},
		{"how are you today?", Command{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommand(tt.in), tt.in)
	}
}

func TestParsePersonality(t *testing.T) {
	assert.Equal(t, PersonalityShy, ParsePersonality(" Shy "))
	assert.Equal(t, PersonalityCheerful, ParsePersonality("grumpy"))
	assert.Contains(t, SystemPrompt("Mimi", PersonalityCalm), "You are Mimi, a calm and wise")
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "Hi!", CleanReply("Mimi", "\n  Mimi: Hi!\nmore"))
	assert.Equal(t, "Hello", CleanReply("Mimi", "Hello"))
}

func TestLLMGeneratorGenerate(t *testing.T) {
	mock := inference.NewMock("💬 SPEECH: I found the search box!\n🎯 ACTION: click Search box\n😊 EMOTION: proud")
	g := NewLLMGenerator(mock, Config{Name: "Mimi", Personality: PersonalityShy})

	d, err := g.Generate(context.Background(), summary, "help me search")
	require.NoError(t, err)
	assert.Equal(t, "I found the search box!", d.Speech)
	assert.Equal(t, EmotionProud, d.Emotion)
	require.NotNil(t, d.Coordinates)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "👤 USER TASK: help me search")
	assert.Contains(t, calls[0].Prompt, "Search box at position [320, 100]")
	assert.Contains(t, g.SystemPrompt(), "shy")
}

func TestLLMGeneratorSampling(t *testing.T) {
	var got *inference.ChatRequest
	mock := &inference.Mock{ChatFunc: func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		got = req
		return &inference.ChatResponse{Message: inference.NewAssistantMessage("Mimi: Hello Master~")}, nil
	}}
	g := NewLLMGenerator(mock, Config{})

	reply, err := g.Chat(context.Background(), "Screen shows: a desktop. 2 objects.", "hi", []string{"User: yo"})
	require.NoError(t, err)
	assert.Equal(t, "Hello Master~", reply)
	require.NotNil(t, got)
	assert.Equal(t, 100, got.MaxTokens)
	assert.Equal(t, 0.8, got.Temperature)
	assert.Equal(t, 0.9, got.TopP)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, inference.RoleSystem, got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, "User: yo\nUser: hi")
}

func TestLLMGeneratorError(t *testing.T) {
	boom := errors.New("connection refused")
	mock := &inference.Mock{ChatFunc: func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		return nil, boom
	}}
	g := NewLLMGenerator(mock, DefaultConfig())

	_, err := g.Generate(context.Background(), summary, "x")
	assert.ErrorIs(t, err, boom)
	_, err = g.React(context.Background(), summary, nil)
	assert.ErrorIs(t, err, boom)
}
