package companion

import (
	"time"

	"github.com/teslashibe/go-mimi/pkg/decision"
	"github.com/teslashibe/go-mimi/pkg/reaction"
	"github.com/teslashibe/go-mimi/pkg/transcript"
)

// Snapshot is the companion state shown on the dashboard.
type Snapshot struct {
	Name           string             `json:"name"`
	Running        bool               `json:"running"`
	Paused         bool               `json:"paused"`
	VoiceEnabled   bool               `json:"voice_enabled"`
	Speaking       bool               `json:"speaking"`
	Automation     bool               `json:"automation"`
	State          reaction.State     `json:"state"`
	Frames         uint64             `json:"frames"`
	Analyzed       uint64             `json:"analyzed"`
	AnalysisErrors uint64             `json:"analysis_errors"`
	Changes        uint64             `json:"changes"`
	Responses      uint64             `json:"responses"`
	Scene          string             `json:"scene"`
	SceneScore     float64            `json:"scene_confidence"`
	Objects        map[string]int     `json:"objects"`
	Clickable      int                `json:"clickable"`
	LastDecision   *decision.Decision `json:"last_decision,omitempty"`
	LastSpeech     string             `json:"last_speech,omitempty"`
	Scheduler      reaction.Stats     `json:"scheduler"`
	StartedAt      time.Time          `json:"started_at"`
	Uptime         time.Duration      `json:"uptime"`
}

// Snapshot returns the current state.
func (c *Companion) Snapshot() Snapshot {
	stats := c.sched.Stats()

	c.mu.Lock()
	s := Snapshot{
		Name:           c.config.Name,
		Running:        c.running,
		Paused:         c.paused,
		Automation:     c.deps.Actions != nil,
		Frames:         c.frames,
		Analyzed:       c.analyzed,
		AnalysisErrors: c.analysisErrors,
		Changes:        c.changes,
		Responses:      c.responses,
		LastDecision:   c.lastDecision,
		LastSpeech:     c.lastSpeech,
		StartedAt:      c.startedAt,
	}
	a := c.analysis
	if c.running {
		s.Uptime = c.now().Sub(c.startedAt)
	}
	c.mu.Unlock()

	s.State = c.sched.State()
	s.Scheduler = stats
	if a != nil {
		s.Scene = a.SceneLabel
		s.SceneScore = a.SceneConfidence
		s.Objects = a.ObjectCounts()
		s.Clickable = len(a.Clickable)
	}
	if c.deps.Voice != nil {
		s.VoiceEnabled = c.deps.Voice.Enabled()
		s.Speaking = c.deps.Voice.IsBusy()
	}
	return s
}

// History returns up to n recent transcript entries, oldest first.
func (c *Companion) History(n int) []transcript.Entry {
	return c.deps.Transcript.Recent(n)
}
