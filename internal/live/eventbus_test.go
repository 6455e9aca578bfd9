package live

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/attune-labs/attune-engine/internal/api"
)

// ── EventBus Publish/Subscribe ────────────────────────────────────────

func TestEventBusPublishSubscribe(t *testing.T) {
	t.Run("subscriber_receives_published_event", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{})
		defer cancel()

		eb.Publish(TypeTranscript, "line", map[string]string{"text": "hello"})

		select {
		case evt := <-ch:
			if evt.Type != TypeTranscript {
				t.Errorf("Type = %q, want %q", evt.Type, TypeTranscript)
			}
			if evt.SubType != "line" {
				t.Errorf("SubType = %q, want line", evt.SubType)
			}
			if evt.ID == "" {
				t.Error("expected non-empty event ID")
			}
			var payload map[string]string
			if err := json.Unmarshal(evt.Data, &payload); err != nil {
				t.Fatalf("Data is not valid JSON: %v", err)
			}
			if payload["text"] != "hello" {
				t.Errorf("payload text = %q, want hello", payload["text"])
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("filtered_subscriber_misses_non_matching", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{Types: []string{TypeBehavior}})
		defer cancel()

		eb.Publish(TypeTranscript, "line", "x")

		select {
		case evt := <-ch:
			t.Fatalf("should not receive event, got %+v", evt)
		case <-time.After(50 * time.Millisecond):
			// expected
		}
	})

	t.Run("cancel_stops_delivery", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{})
		cancel()

		eb.Publish(TypeTranscript, "line", "x")

		select {
		case _, ok := <-ch:
			if ok {
				t.Fatal("should not receive event after cancel")
			}
		case <-time.After(50 * time.Millisecond):
			// expected: channel not closed, just removed from map
		}
	})

	t.Run("multiple_subscribers", func(t *testing.T) {
		eb := NewEventBus(64)
		ch1, cancel1 := eb.Subscribe(api.EventFilter{})
		defer cancel1()
		ch2, cancel2 := eb.Subscribe(api.EventFilter{})
		defer cancel2()

		eb.Publish(TypeRecording, "started", "x")

		for i, ch := range []<-chan api.SSEEvent{ch1, ch2} {
			select {
			case evt := <-ch:
				if evt.Type != TypeRecording {
					t.Errorf("subscriber %d: Type = %q, want %q", i, evt.Type, TypeRecording)
				}
			case <-time.After(time.Second):
				t.Fatalf("subscriber %d: timed out", i)
			}
		}
	})

	t.Run("subscriber_count", func(t *testing.T) {
		eb := NewEventBus(64)
		if n := eb.SubscriberCount(); n != 0 {
			t.Fatalf("SubscriberCount = %d, want 0", n)
		}
		_, cancel := eb.Subscribe(api.EventFilter{})
		if n := eb.SubscriberCount(); n != 1 {
			t.Fatalf("SubscriberCount = %d, want 1", n)
		}
		cancel()
		if n := eb.SubscriberCount(); n != 0 {
			t.Fatalf("SubscriberCount = %d after cancel, want 0", n)
		}
	})
}

// ── EventBus ReplaySince ─────────────────────────────────────────────

func TestEventBusReplaySince(t *testing.T) {
	t.Run("replay_all_when_empty_lastID", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(TypeRecording, "started", "a")
		eb.Publish(TypeTranscript, "line", "b")

		events := eb.ReplaySince("", api.EventFilter{})
		if len(events) != 2 {
			t.Fatalf("got %d events, want 2", len(events))
		}
	})

	t.Run("replay_after_specific_id", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(TypeRecording, "started", "a")

		allEvents := eb.ReplaySince("", api.EventFilter{})
		if len(allEvents) != 1 {
			t.Fatalf("expected 1 event, got %d", len(allEvents))
		}
		firstID := allEvents[0].ID

		eb.Publish(TypeTranscript, "line", "b")

		events := eb.ReplaySince(firstID, api.EventFilter{})
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1 (after first)", len(events))
		}
		if events[0].Type != TypeTranscript {
			t.Errorf("Type = %q, want %q", events[0].Type, TypeTranscript)
		}
	})

	t.Run("replay_with_filter", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(TypeEngagement, "attention", "a")
		eb.Publish(TypeEngagement, "understanding", "b")

		events := eb.ReplaySince("", api.EventFilter{Types: []string{"engagement:understanding"}})
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1 (filtered)", len(events))
		}
		if events[0].SubType != "understanding" {
			t.Errorf("SubType = %q, want understanding", events[0].SubType)
		}
	})

	t.Run("unknown_lastID_replays_all", func(t *testing.T) {
		eb := NewEventBus(64)
		eb.Publish(TypeRecording, "started", "a")

		// When lastEventID is not found (overwritten by ring wrap), all
		// available events are returned so the client doesn't silently
		// miss everything.
		events := eb.ReplaySince("nonexistent-id", api.EventFilter{})
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1 (fallback replay all)", len(events))
		}
	})
}

func TestMatchesFilter(t *testing.T) {
	tests := []struct {
		name   string
		event  api.SSEEvent
		filter api.EventFilter
		want   bool
	}{
		{
			name:   "empty_filter_matches_all",
			event:  api.SSEEvent{Type: TypeTranscript, SubType: "line"},
			filter: api.EventFilter{},
			want:   true,
		},
		{
			name:   "type_match",
			event:  api.SSEEvent{Type: TypeTranscript},
			filter: api.EventFilter{Types: []string{TypeTranscript}},
			want:   true,
		},
		{
			name:   "type_no_match",
			event:  api.SSEEvent{Type: TypeTranscript},
			filter: api.EventFilter{Types: []string{TypeBehavior}},
			want:   false,
		},
		{
			name:   "type_multiple_one_matches",
			event:  api.SSEEvent{Type: TypeBehavior},
			filter: api.EventFilter{Types: []string{TypeTranscript, TypeBehavior}},
			want:   true,
		},
		{
			name:   "compound_type_exact_match",
			event:  api.SSEEvent{Type: TypeEngagement, SubType: "attention"},
			filter: api.EventFilter{Types: []string{"engagement:attention"}},
			want:   true,
		},
		{
			name:   "compound_type_wrong_subtype",
			event:  api.SSEEvent{Type: TypeEngagement, SubType: "understanding"},
			filter: api.EventFilter{Types: []string{"engagement:attention"}},
			want:   false,
		},
		{
			name:   "plain_type_matches_any_subtype",
			event:  api.SSEEvent{Type: TypeEngagement, SubType: "attention"},
			filter: api.EventFilter{Types: []string{TypeEngagement}},
			want:   true,
		},
		{
			name:   "mixed_compound_and_plain",
			event:  api.SSEEvent{Type: TypeRecording, SubType: "saved"},
			filter: api.EventFilter{Types: []string{"engagement:attention", TypeRecording}},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchesFilter(tt.event, tt.filter)
			if got != tt.want {
				t.Errorf("matchesFilter(%+v, %+v) = %v, want %v", tt.event, tt.filter, got, tt.want)
			}
		})
	}
}
