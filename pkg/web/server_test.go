package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimi/pkg/companion"
	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/reaction"
	"github.com/teslashibe/go-mimi/pkg/transcript"
)

type fakeBackend struct {
	mu        sync.Mutex
	snap      companion.Snapshot
	entries   []transcript.Entry
	historyN  int
	stops     int
	frame     []byte
	annotated []byte
	frameErr  error
	sched     *reaction.Scheduler
	sayErr    error
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{snap: companion.Snapshot{Name: "Mimi", VoiceEnabled: true, State: reaction.StateIdle}}
	b.entries = []transcript.Entry{
		{Speaker: transcript.SpeakerUser, Text: "hi"},
		{Speaker: transcript.SpeakerCompanion, Name: "Mimi", Text: "Hello Master!"},
	}
	b.sched = reaction.New(reaction.Config{Mode: reaction.ModeSequential}, func(ctx context.Context, t *reaction.Task) error {
		if t.Prompt == "fail" {
			return errors.New("model offline")
		}
		t.SetResult(decision.Say("You said "+t.Prompt, decision.EmotionHappy))
		return nil
	})
	return b
}

func (b *fakeBackend) Snapshot() companion.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snap
}

func (b *fakeBackend) History(n int) []transcript.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.historyN = n
	if n > 0 && n < len(b.entries) {
		return b.entries[len(b.entries)-n:]
	}
	return b.entries
}

func (b *fakeBackend) SetPaused(paused bool) {
	b.mu.Lock()
	b.snap.Paused = paused
	b.mu.Unlock()
}

func (b *fakeBackend) SetVoice(enabled bool) {
	b.mu.Lock()
	b.snap.VoiceEnabled = enabled
	b.mu.Unlock()
}

func (b *fakeBackend) StopSpeaking() {
	b.mu.Lock()
	b.stops++
	b.mu.Unlock()
}

func (b *fakeBackend) Say(text string) (*reaction.Task, error) {
	if strings.TrimSpace(text) == "" {
		return nil, companion.ErrEmptyMessage
	}
	if b.sayErr != nil {
		return nil, b.sayErr
	}
	task := reaction.NewTask(reaction.KindChat, text, nil)
	b.sched.Enqueue(task)
	return task, nil
}

func (b *fakeBackend) FrameJPEG(quality int) ([]byte, error) {
	return b.frame, b.frameErr
}

func (b *fakeBackend) AnnotatedFrameJPEG(quality int) ([]byte, error) {
	return b.annotated, b.frameErr
}

func newTestServer(b *fakeBackend) *Server {
	cfg := DefaultConfig()
	cfg.SayTimeout = 100 * time.Millisecond
	return NewServer(b, cfg)
}

func do(t *testing.T, s *Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, data
}

func TestStatusAndHistory(t *testing.T) {
	b := newFakeBackend()
	s := newTestServer(b)

	resp, body := do(t, s, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap companion.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, "Mimi", snap.Name)

	resp, body = do(t, s, http.MethodGet, "/api/history?n=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []transcript.Entry
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Hello Master!", entries[0].Text)
	assert.Equal(t, 1, b.historyN)

	do(t, s, http.MethodGet, "/api/history", "")
	assert.Equal(t, 50, b.historyN)
}

func TestPauseAndVoice(t *testing.T) {
	b := newFakeBackend()
	s := newTestServer(b)

	resp, body := do(t, s, http.MethodPost, "/api/pause", `{"paused":true}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"paused":true}`, string(body))
	assert.True(t, b.Snapshot().Paused)

	_, body = do(t, s, http.MethodPost, "/api/pause", "")
	assert.JSONEq(t, `{"paused":false}`, string(body), "empty body toggles")

	_, body = do(t, s, http.MethodPost, "/api/voice", `{"enabled":false}`)
	assert.JSONEq(t, `{"voice_enabled":false}`, string(body))
	assert.False(t, b.Snapshot().VoiceEnabled)

	resp, _ = do(t, s, http.MethodPost, "/api/pause", `{"paused":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, s, http.MethodPost, "/api/stop", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 1, b.stops)
}

func TestSay(t *testing.T) {
	b := newFakeBackend()
	s := newTestServer(b)

	resp, body := do(t, s, http.MethodPost, "/api/say", `{"text":"hello"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out SayResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, reaction.StatusDone, out.Status)
	require.NotNil(t, out.Reply)
	assert.Equal(t, "You said hello", out.Reply.Speech)
	assert.NotEmpty(t, out.TaskID)

	resp, body = do(t, s, http.MethodPost, "/api/say", `{"text":"fail"}`)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, reaction.StatusFailed, out.Status)
	assert.Contains(t, out.Error, "model offline")

	resp, _ = do(t, s, http.MethodPost, "/api/say", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	b.sayErr = reaction.ErrQueueFull
	resp, _ = do(t, s, http.MethodPost, "/api/say", `{"text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSayTimesOutWithAccepted(t *testing.T) {
	b := newFakeBackend()
	// An unstarted async scheduler never runs the task.
	b.sched = reaction.New(reaction.DefaultConfig(), func(context.Context, *reaction.Task) error { return nil })
	s := newTestServer(b)

	resp, body := do(t, s, http.MethodPost, "/api/say", `{"text":"hello"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	var out SayResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, reaction.StatusPending, out.Status)
}

func TestFrame(t *testing.T) {
	b := newFakeBackend()
	s := newTestServer(b)

	b.frameErr = companion.ErrNoFrame
	resp, _ := do(t, s, http.MethodGet, "/api/frame.jpg", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	b.frameErr = nil
	b.frame = []byte{0xff, 0xd8, 0xff}
	resp, body := do(t, s, http.MethodGet, "/api/frame.jpg", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, b.frame, body)

	b.annotated = []byte{0xff, 0xd8, 0xff, 0xe0}
	resp, body = do(t, s, http.MethodGet, "/api/frame.jpg?annotated=1", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, b.annotated, body)

	resp, body = do(t, s, http.MethodGet, "/api/frame.jpg?annotated=false", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, b.frame, body)
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s := newTestServer(newFakeBackend())
	resp, _ := do(t, s, http.MethodGet, "/ws/status", "")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestWebsocketStreams(t *testing.T) {
	b := newFakeBackend()
	s := newTestServer(b)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Serve(ctx, ln)

	base := "ws://" + ln.Addr().String()

	status, _, err := websocket.DefaultDialer.Dial(base+"/ws/status", nil)
	require.NoError(t, err)
	defer status.Close()
	status.SetReadDeadline(time.Now().Add(5 * time.Second))

	var snap companion.Snapshot
	require.NoError(t, status.ReadJSON(&snap))
	assert.Equal(t, "Mimi", snap.Name)

	require.Eventually(t, func() bool { return s.statusHub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	s.BroadcastStatus(companion.Snapshot{Name: "Mimi", Responses: 3})
	require.NoError(t, status.ReadJSON(&snap))
	assert.Equal(t, uint64(3), snap.Responses)

	tr, _, err := websocket.DefaultDialer.Dial(base+"/ws/transcript", nil)
	require.NoError(t, err)
	defer tr.Close()
	tr.SetReadDeadline(time.Now().Add(5 * time.Second))

	var e transcript.Entry
	require.NoError(t, tr.ReadJSON(&e))
	assert.Equal(t, "hi", e.Text)
	require.NoError(t, tr.ReadJSON(&e))
	assert.Equal(t, "Hello Master!", e.Text)

	require.Eventually(t, func() bool { return s.transcriptHub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	s.BroadcastEntry(transcript.Entry{Speaker: transcript.SpeakerCompanion, Text: "new line"})
	require.NoError(t, tr.ReadJSON(&e))
	assert.Equal(t, "new line", e.Text)
}
