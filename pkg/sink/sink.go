// Package sink collects the engine's trace feed on a single writer
// goroutine: it appends JSONL entries to an optional writer, keeps rolling
// per-stage latency aggregates, and republishes entries to websocket
// subscribers. Entries from one run arrive in the order the run emitted
// them because the engine feeds the sink inline from the run goroutine.
package sink

import (
	"encoding/json"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/snapbuy/snapbuy/pkg/api/events"
	"github.com/snapbuy/snapbuy/pkg/logger"
	"github.com/snapbuy/snapbuy/pkg/saga"
)

// Entry types.
const (
	TypeEvent   = "event"
	TypeMessage = "message"
	TypeRun     = "run"
)

// Entry is one JSONL trace record.
type Entry struct {
	RunID      string    `json:"run_id"`
	Type       string    `json:"type"`
	Stage      string    `json:"stage_id,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Outcome    string    `json:"outcome,omitempty"`
	Content    string    `json:"content,omitempty"`
	Sender     string    `json:"sender,omitempty"`
	Recipient  string    `json:"recipient,omitempty"`
	DurationMS float64   `json:"duration_ms,omitempty"`
}

// StageStats is the aggregate view for one stage.
type StageStats struct {
	OK    int     `json:"ok"`
	Err   int     `json:"err"`
	AvgMS float64 `json:"avg_ms"`
	P95MS float64 `json:"p95_ms"`
}

// Option customizes Sink initialization.
type Option func(*Sink)

// WithWriter appends every entry as one JSON line to w.
func WithWriter(w io.Writer) Option {
	return func(s *Sink) { s.writer = w }
}

// WithBroadcaster republishes entries to websocket subscribers.
func WithBroadcaster(b *events.Broadcaster) Option {
	return func(s *Sink) { s.broadcaster = b }
}

// WithBufferSize sets the intake channel capacity.
func WithBufferSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// WithMaxSamples bounds the per-stage latency window.
func WithMaxSamples(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.maxSamples = n
		}
	}
}

// WithSinkLogger sets the sink logger.
func WithSinkLogger(log logger.Logger) Option {
	return func(s *Sink) {
		if log != nil {
			s.logger = log
		}
	}
}

// Sink implements saga.TraceSink.
type Sink struct {
	writer      io.Writer
	broadcaster *events.Broadcaster
	logger      logger.Logger
	buffer      int
	maxSamples  int

	intake chan Entry
	done   chan struct{}
	once   sync.Once

	mu      sync.RWMutex
	stages  map[string]*stageWindow
	dropped int
}

type stageWindow struct {
	ok      int
	err     int
	samples []float64
	next    int
	full    bool
}

// New creates and starts a sink.
func New(options ...Option) *Sink {
	s := &Sink{
		logger:     logger.Global(),
		buffer:     1024,
		maxSamples: 500,
		stages:     make(map[string]*stageWindow),
	}
	for _, option := range options {
		if option != nil {
			option(s)
		}
	}
	s.intake = make(chan Entry, s.buffer)
	s.done = make(chan struct{})
	go s.loop()
	return s
}

// Event records one stage attempt.
func (s *Sink) Event(runID string, ev saga.Event) {
	s.submit(Entry{
		RunID:      runID,
		Type:       TypeEvent,
		Stage:      string(ev.Stage),
		Timestamp:  ev.Timestamp,
		Outcome:    ev.Outcome,
		Content:    ev.Detail,
		DurationMS: float64(ev.Duration) / float64(time.Millisecond),
	})
}

// Message records one inter-stage message.
func (s *Sink) Message(runID string, msg saga.Message) {
	s.submit(Entry{
		RunID:     runID,
		Type:      TypeMessage,
		Timestamp: msg.Timestamp,
		Sender:    string(msg.Sender),
		Recipient: string(msg.Recipient),
		Content:   msg.Content,
	})
}

// RunFinished records the terminal snapshot of a run.
func (s *Sink) RunFinished(state *saga.RunState) {
	entry := Entry{
		RunID:     state.RunID,
		Type:      TypeRun,
		Timestamp: state.UpdatedAt,
		Outcome:   state.Phase.String(),
	}
	if state.AbortReason != "" {
		entry.Content = state.AbortReason
	}
	s.submit(entry)
}

// Stats returns a snapshot of per-stage aggregates.
func (s *Sink) Stats() map[string]StageStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]StageStats, len(s.stages))
	for stage, w := range s.stages {
		out[stage] = StageStats{
			OK:    w.ok,
			Err:   w.err,
			AvgMS: w.avg(),
			P95MS: w.p95(),
		}
	}
	return out
}

// Dropped reports entries discarded because the intake buffer was full.
func (s *Sink) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}

// Close stops the sink after draining buffered entries.
func (s *Sink) Close() {
	s.once.Do(func() {
		close(s.intake)
		<-s.done
	})
}

// submit never blocks the run goroutine; overflow drops the entry.
func (s *Sink) submit(entry Entry) {
	select {
	case s.intake <- entry:
	default:
		s.mu.Lock()
		s.dropped++
		s.mu.Unlock()
	}
}

func (s *Sink) loop() {
	defer close(s.done)
	for entry := range s.intake {
		if entry.Type == TypeEvent {
			s.aggregate(entry)
		}
		if s.writer != nil {
			line, err := json.Marshal(entry)
			if err == nil {
				line = append(line, '\n')
				if _, err = s.writer.Write(line); err != nil {
					s.logger.Error("trace write failed", "error", err)
				}
			}
		}
		if s.broadcaster != nil {
			s.broadcaster.Broadcast(events.Event{
				Type:      "trace." + entry.Type,
				Timestamp: entry.Timestamp,
				Payload:   entry,
			})
		}
	}
}

func (s *Sink) aggregate(entry Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.stages[entry.Stage]
	if !ok {
		w = &stageWindow{samples: make([]float64, s.maxSamples)}
		s.stages[entry.Stage] = w
	}
	switch entry.Outcome {
	case saga.EventTimeout, saga.EventFailure:
		w.err++
	default:
		w.ok++
	}
	w.samples[w.next] = entry.DurationMS
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

func (w *stageWindow) window() []float64 {
	if w.full {
		return w.samples
	}
	return w.samples[:w.next]
}

func (w *stageWindow) avg() float64 {
	window := w.window()
	if len(window) == 0 {
		return 0
	}
	var sum float64
	for _, v := range window {
		sum += v
	}
	return sum / float64(len(window))
}

func (w *stageWindow) p95() float64 {
	window := w.window()
	if len(window) == 0 {
		return 0
	}
	sorted := append([]float64(nil), window...)
	sort.Float64s(sorted)
	return sorted[int(0.95*float64(len(sorted)-1))]
}
