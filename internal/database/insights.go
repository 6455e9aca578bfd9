package database

import (
	"context"
	"encoding/json"
	"time"
)

// AI insight kinds.
const (
	InsightSummary     = "summary"
	InsightReviewPoint = "review_point"
	InsightSuggestion  = "suggestion"
)

// InsightRow is the input for inserting an AI insight.
type InsightRow struct {
	SessionID string
	Type      string
	Content   string
	Metadata  json.RawMessage
}

// InsightAPI is the AI insight representation for API responses.
type InsightAPI struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"type"`
	Content   string          `json:"content"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// InsertInsight inserts a new AI insight and returns its id.
func (db *DB) InsertInsight(ctx context.Context, row *InsightRow) (int64, error) {
	metadata := row.Metadata
	if metadata == nil {
		metadata = json.RawMessage(`{}`)
	}
	var id int64
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO ai_insights (session_id, type, content, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, row.SessionID, row.Type, row.Content, metadata).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// HasSummaryInsight reports whether a summary insight already exists for the
// session. The insight generator uses this for idempotence.
func (db *DB) HasSummaryInsight(ctx context.Context, sessionID string) (bool, error) {
	var exists bool
	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM ai_insights WHERE session_id = $1 AND type = 'summary'
		)
	`, sessionID).Scan(&exists)
	return exists, err
}

// ListInsights returns all AI insights for a session, oldest first.
// An unknown session yields an empty slice, not an error.
func (db *DB) ListInsights(ctx context.Context, sessionID string) ([]InsightAPI, error) {
	if !ValidSessionID(sessionID) {
		return []InsightAPI{}, nil
	}
	rows, err := db.Pool.Query(ctx, `
		SELECT id, session_id::text, type, content, metadata, created_at
		FROM ai_insights
		WHERE session_id = $1
		ORDER BY created_at ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []InsightAPI
	for rows.Next() {
		var i InsightAPI
		if err := rows.Scan(&i.ID, &i.SessionID, &i.Type, &i.Content, &i.Metadata, &i.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, i)
	}
	if result == nil {
		result = []InsightAPI{}
	}
	return result, rows.Err()
}
