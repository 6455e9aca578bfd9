package database

import (
	"context"
	"time"
)

// Session event kinds. A row is exactly one of these.
const (
	EventTranscript    = "transcript"
	EventAttention     = "attention"
	EventUnderstanding = "understanding"
)

// SessionEventAPI is the timeline row representation for API responses.
type SessionEventAPI struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	Content   *string   `json:"content,omitempty"`
	Value     *float64  `json:"value,omitempty"`
}

// ListEvents returns all timeline events for a session, oldest first.
// An unknown session yields an empty slice, not an error.
func (db *DB) ListEvents(ctx context.Context, sessionID string) ([]SessionEventAPI, error) {
	if !ValidSessionID(sessionID) {
		return []SessionEventAPI{}, nil
	}
	return db.queryEvents(ctx, `
		SELECT id, session_id::text, timestamp, event_type, content, value
		FROM session_events
		WHERE session_id = $1
		ORDER BY timestamp ASC, id ASC
	`, sessionID)
}

// ListEventsByType returns timeline events of one kind, oldest first.
func (db *DB) ListEventsByType(ctx context.Context, sessionID, eventType string) ([]SessionEventAPI, error) {
	if !ValidSessionID(sessionID) {
		return []SessionEventAPI{}, nil
	}
	return db.queryEvents(ctx, `
		SELECT id, session_id::text, timestamp, event_type, content, value
		FROM session_events
		WHERE session_id = $1 AND event_type = $2
		ORDER BY timestamp ASC, id ASC
	`, sessionID, eventType)
}

// ListUnderstandingBelow returns the lowest understanding samples under the
// threshold, worst first, capped at limit. The insight generator uses this
// to locate review points.
func (db *DB) ListUnderstandingBelow(ctx context.Context, sessionID string, threshold float64, limit int) ([]SessionEventAPI, error) {
	return db.queryEvents(ctx, `
		SELECT id, session_id::text, timestamp, event_type, content, value
		FROM session_events
		WHERE session_id = $1 AND event_type = 'understanding' AND value < $2
		ORDER BY value ASC
		LIMIT $3
	`, sessionID, threshold, limit)
}

// TranscriptsNear returns transcript events within the window around t,
// newest first, so callers can take the first entry as the most recent
// line spoken near the moment.
func (db *DB) TranscriptsNear(ctx context.Context, sessionID string, t time.Time, window time.Duration) ([]SessionEventAPI, error) {
	return db.queryEvents(ctx, `
		SELECT id, session_id::text, timestamp, event_type, content, value
		FROM session_events
		WHERE session_id = $1 AND event_type = 'transcript'
			AND timestamp >= $2 AND timestamp <= $3
		ORDER BY timestamp DESC
	`, sessionID, t.Add(-window), t.Add(window))
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...any) ([]SessionEventAPI, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SessionEventAPI
	for rows.Next() {
		var e SessionEventAPI
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Timestamp, &e.EventType, &e.Content, &e.Value); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if result == nil {
		result = []SessionEventAPI{}
	}
	return result, rows.Err()
}
