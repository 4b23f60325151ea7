// Package events implements models.EventSink: the pipeline's side-channel for cache
// hits/misses, routing decisions, provider calls, and failures, kept separate from the
// Response a caller gets back so instrumentation never sits on the critical path.
package events

import (
	"sync"

	fiberlog "github.com/gofiber/fiber/v2/log"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

// LogSink emits every event as a structured log line through the teacher's logger,
// bracketing each line with the request ID the way the rest of the codebase does.
type LogSink struct{}

// NewLogSink constructs a LogSink.
func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Emit(e models.Event) {
	switch e.Category {
	case models.EventCategoryError:
		fiberlog.Warnf("[%s] %s: %v", e.RequestID, e.Name, e.Fields)
	default:
		fiberlog.Infof("[%s] %s: %v", e.RequestID, e.Name, e.Fields)
	}
}

// ChannelSink fans events out onto a buffered channel for an external consumer (a
// metrics exporter, a WebSocket feed) to drain. Emit never blocks: a full channel
// drops the event rather than stalling the caller that triggered it.
type ChannelSink struct {
	ch chan models.Event
}

// NewChannelSink creates a ChannelSink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan models.Event, buffer)}
}

func (s *ChannelSink) Emit(e models.Event) {
	select {
	case s.ch <- e:
	default:
		fiberlog.Warnf("event sink: dropping event %s (channel full)", e.Name)
	}
}

// Events exposes the read side of the channel for a consumer to range over.
func (s *ChannelSink) Events() <-chan models.Event { return s.ch }

// Close releases the channel. Callers must stop calling Emit before closing.
func (s *ChannelSink) Close() { close(s.ch) }

// MultiSink fans one event out to several sinks, so the same pipeline can log and
// export metrics and push to a live feed without the executor knowing about any of
// them individually.
type MultiSink struct {
	sinks []models.EventSink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...models.EventSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (s *MultiSink) Emit(e models.Event) {
	for _, sink := range s.sinks {
		sink.Emit(e)
	}
}

// RecordingSink retains every event it has seen, for tests that assert on emitted
// events without standing up a real transport.
type RecordingSink struct {
	mu     sync.Mutex
	events []models.Event
}

// NewRecordingSink constructs an empty RecordingSink.
func NewRecordingSink() *RecordingSink { return &RecordingSink{} }

func (s *RecordingSink) Emit(e models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// Events returns a snapshot copy of everything recorded so far.
func (s *RecordingSink) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Event, len(s.events))
	copy(out, s.events)
	return out
}

// NoopSink discards every event. Useful as a safe default when no sink is configured.
type NoopSink struct{}

func (NoopSink) Emit(models.Event) {}
