package voice

import (
	"sync"
	"time"
)

// Metrics describes one utterance.
type Metrics struct {
	// Timestamps for key events
	QueuedTime      time.Time // When Speak was called
	StartTime       time.Time // When the utterance acquired the output
	SynthesizedTime time.Time // When TTS returned audio
	DoneTime        time.Time // When playback finished or was cut

	// Computed latencies
	WaitLatency  time.Duration // Time spent behind other utterances
	SynthLatency time.Duration // Time to synthesize
	PlayLatency  time.Duration // Time to play

	AudioDuration time.Duration // Length of the synthesized audio
	Chars         int           // Characters after cleaning
	Interrupted   bool
	Failed        bool
}

// Totals aggregates utterance outcomes.
type Totals struct {
	Utterances  int64         `json:"utterances"`
	Interrupted int64         `json:"interrupted"`
	Failed      int64         `json:"failed"`
	AudioTotal  time.Duration `json:"audio_total"`
}

// MetricsCollector records utterance metrics.
// It is goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	totals  Totals
	last    Metrics
	history []Metrics // Recent utterances for averaging

	onUpdate func(Metrics)
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		history: make([]Metrics, 0, 100),
	}
}

// OnUpdate sets a callback that fires after each utterance.
func (m *MetricsCollector) OnUpdate(fn func(Metrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

// Record archives a finished utterance.
func (m *MetricsCollector) Record(u Metrics) {
	if !u.StartTime.IsZero() {
		u.WaitLatency = u.StartTime.Sub(u.QueuedTime)
	}
	if !u.SynthesizedTime.IsZero() {
		u.SynthLatency = u.SynthesizedTime.Sub(u.StartTime)
		u.PlayLatency = u.DoneTime.Sub(u.SynthesizedTime)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case u.Failed:
		m.totals.Failed++
	case u.Interrupted:
		m.totals.Interrupted++
	default:
		m.totals.Utterances++
		m.totals.AudioTotal += u.AudioDuration
	}

	m.last = u
	m.history = append(m.history, u)
	if len(m.history) > 100 {
		m.history = m.history[1:]
	}
	if m.onUpdate != nil {
		go m.onUpdate(u)
	}
}

// Last returns the most recent utterance.
func (m *MetricsCollector) Last() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Totals returns aggregate counts.
func (m *MetricsCollector) Totals() Totals {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals
}

// Average returns average latencies over recent synthesized utterances.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	var avg Metrics
	var n time.Duration
	for _, h := range m.history {
		if h.SynthesizedTime.IsZero() {
			continue
		}
		avg.WaitLatency += h.WaitLatency
		avg.SynthLatency += h.SynthLatency
		avg.PlayLatency += h.PlayLatency
		n++
	}
	if n == 0 {
		return Metrics{}
	}

	avg.WaitLatency /= n
	avg.SynthLatency /= n
	avg.PlayLatency /= n
	return avg
}

// FormatLatency returns a formatted string of the utterance latencies.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.WaitLatency) + " WAIT | " +
		formatDuration(m.SynthLatency) + " TTS | " +
		formatDuration(m.PlayLatency) + " PLAY"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}
