package events

import (
	"testing"
	"time"

	"github.com/adaptive-mcp/adaptive-mcp/internal/models"
)

func TestRecordingSinkAccumulates(t *testing.T) {
	s := NewRecordingSink()
	s.Emit(models.Event{Category: models.EventCategoryMCP, Name: models.EventCacheHit, RequestID: "r1", Timestamp: time.Unix(0, 0)})
	s.Emit(models.Event{Category: models.EventCategoryError, Name: models.EventRequestFailed, RequestID: "r2", Timestamp: time.Unix(1, 0)})

	got := s.Events()
	if len(got) != 2 {
		t.Fatalf("want 2 recorded events, got %d", len(got))
	}
	if got[0].Name != models.EventCacheHit || got[1].Name != models.EventRequestFailed {
		t.Fatalf("want events preserved in emit order, got %+v", got)
	}
}

func TestRecordingSinkEventsReturnsSnapshotCopy(t *testing.T) {
	s := NewRecordingSink()
	s.Emit(models.Event{Name: models.EventCacheHit})

	snapshot := s.Events()
	snapshot[0].Name = "mutated"

	if s.Events()[0].Name != models.EventCacheHit {
		t.Fatalf("want internal state unaffected by mutating a returned snapshot")
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	s := NewChannelSink(1)
	defer s.Close()

	s.Emit(models.Event{Name: "first"})
	s.Emit(models.Event{Name: "second"}) // channel full, must not block

	got := <-s.Events()
	if got.Name != "first" {
		t.Fatalf("want the first event to have been buffered, got %q", got.Name)
	}
	select {
	case e := <-s.Events():
		t.Fatalf("want the second event dropped, got %+v", e)
	default:
	}
}

func TestMultiSinkFansOutToEverySink(t *testing.T) {
	a, b := NewRecordingSink(), NewRecordingSink()
	m := NewMultiSink(a, b)

	m.Emit(models.Event{Name: models.EventCacheMiss})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("want both sinks to receive the event, got a=%d b=%d", len(a.Events()), len(b.Events()))
	}
}

func TestNoopSinkDiscardsWithoutPanicking(t *testing.T) {
	var s NoopSink
	s.Emit(models.Event{Name: models.EventCacheHit})
}
