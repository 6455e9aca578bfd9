package database

import (
	"context"
	"time"
)

// The closed set of behavior labels a teacher can apply.
const (
	TagVisiblyConfused   = "Visibly Confused"
	TagVerbalOutburst    = "Verbal Outburst"
	TagDistractingOthers = "Distracting Others"
)

// ValidTag reports whether label is in the closed behavior tag set.
func ValidTag(label string) bool {
	switch label {
	case TagVisiblyConfused, TagVerbalOutburst, TagDistractingOthers:
		return true
	}
	return false
}

// BehaviorTagAPI is the behavior tag representation for API responses.
type BehaviorTagAPI struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Tag       string    `json:"tag"`
	Timestamp time.Time `json:"timestamp"`
}

// ListTags returns all behavior tags for a session, oldest first.
// An unknown session yields an empty slice, not an error.
func (db *DB) ListTags(ctx context.Context, sessionID string) ([]BehaviorTagAPI, error) {
	if !ValidSessionID(sessionID) {
		return []BehaviorTagAPI{}, nil
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, session_id::text, tag, timestamp
		FROM behavior_tags
		WHERE session_id = $1
		ORDER BY timestamp ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []BehaviorTagAPI
	for rows.Next() {
		var t BehaviorTagAPI
		if err := rows.Scan(&t.ID, &t.SessionID, &t.Tag, &t.Timestamp); err != nil {
			return nil, err
		}
		result = append(result, t)
	}
	if result == nil {
		result = []BehaviorTagAPI{}
	}
	return result, rows.Err()
}
