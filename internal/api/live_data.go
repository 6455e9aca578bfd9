package api

// LiveDataSource feeds real-time events from the recording pipeline to the
// API layer. The event bus implements this interface; api owning it keeps
// the import graph acyclic.
type LiveDataSource interface {
	// Subscribe returns a channel that receives SSE events matching the
	// filter, and a cancel function to unsubscribe.
	Subscribe(filter EventFilter) (<-chan SSEEvent, func())

	// ReplaySince returns buffered events since the given event ID (for
	// Last-Event-ID recovery).
	ReplaySince(lastEventID string, filter EventFilter) []SSEEvent
}

// EventFilter specifies which events an SSE subscriber wants to receive.
// Types may be plain ("transcript") or compound ("engagement:attention").
type EventFilter struct {
	Types []string
}

// SSEEvent represents a server-sent event ready for transmission.
type SSEEvent struct {
	ID        string `json:"event_id"`
	Type      string `json:"event_type"`
	SubType   string `json:"sub_type,omitempty"`
	Timestamp string `json:"timestamp"`
	Data      []byte `json:"-"` // pre-serialized JSON payload
}
