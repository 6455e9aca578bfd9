package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// PersistenceError wraps any failure on the session save path. The save is
// all-or-nothing: every row is written inside one transaction, so a failed
// save leaves no orphaned session.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// transcriptSpacing is the interval used to interpolate timestamps for
// transcript segments that carry none, counting backward from the save time.
const transcriptSpacing = 10 * time.Second

// Segment is one transcript line captured during a recording.
// A zero At means the capture time is unknown and will be interpolated.
type Segment struct {
	Text string
	At   time.Time
}

// Sample is one metric data point (attention or understanding, 0-100).
type Sample struct {
	Value float64
	At    time.Time
}

// Tag is one behavior label applied during a recording.
type Tag struct {
	Label string
	At    time.Time
}

// SaveSessionInput carries everything accumulated during a live recording.
type SaveSessionInput struct {
	Title         string
	StartedAt     time.Time
	EndedAt       time.Time
	Transcript    []Segment
	Attention     []Sample
	Understanding []Sample
	Tags          []Tag
}

// SessionAPI is the session representation for API responses, including the
// derived display fields the analytics list view needs.
type SessionAPI struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	CreatedAt        time.Time  `json:"created_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	AttentionAvg     *float64   `json:"attention_avg,omitempty"`
	UnderstandingAvg *float64   `json:"understanding_avg,omitempty"`
	Summary          *string    `json:"summary,omitempty"`

	// Derived display fields.
	Date                 string `json:"date"`
	UnderstandingPercent int    `json:"understanding_percent"`
	ConfusedPercent      int    `json:"confused_percent"`
	KeyMoments           int    `json:"key_moments"`
}

// mean returns the arithmetic mean of the sample values, or nil for an
// empty series.
func mean(samples []Sample) *float64 {
	if len(samples) == 0 {
		return nil
	}
	var sum float64
	for _, s := range samples {
		sum += s.Value
	}
	m := sum / float64(len(samples))
	return &m
}

// interpolateSegments fills zero timestamps on transcript segments, spacing
// them transcriptSpacing apart counting backward from now so the last
// segment lands at now.
func interpolateSegments(segments []Segment, now time.Time) []Segment {
	out := make([]Segment, len(segments))
	n := len(segments)
	for i, s := range segments {
		if s.At.IsZero() {
			s.At = now.Add(-time.Duration(n-1-i) * transcriptSpacing)
		}
		out[i] = s
	}
	return out
}

// SaveSession persists a finished recording: one session row, one
// session_events row per transcript segment and metric sample, and one
// behavior_tags row per tag, all in a single transaction.
func (db *DB) SaveSession(ctx context.Context, in SaveSessionInput) (*SessionAPI, error) {
	if in.Title == "" {
		return nil, &PersistenceError{Op: "save", Err: errors.New("title is required")}
	}

	now := in.EndedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	segments := interpolateSegments(in.Transcript, now)
	attentionAvg := mean(in.Attention)
	understandingAvg := mean(in.Understanding)

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, &PersistenceError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var (
		id        string
		createdAt time.Time
	)
	err = tx.QueryRow(ctx, `
		INSERT INTO sessions (title, created_at, ended_at, attention_avg, understanding_avg)
		VALUES ($1, COALESCE($2, now()), $3, $4, $5)
		RETURNING id::text, created_at
	`, in.Title, nullTime(in.StartedAt), now, attentionAvg, understandingAvg).Scan(&id, &createdAt)
	if err != nil {
		return nil, &PersistenceError{Op: "insert session", Err: err}
	}

	if err := insertEvents(ctx, tx, id, segments, in.Attention, in.Understanding); err != nil {
		return nil, &PersistenceError{Op: "insert events", Err: err}
	}

	for _, tag := range in.Tags {
		if !ValidTag(tag.Label) {
			return nil, &PersistenceError{Op: "insert tags", Err: fmt.Errorf("unknown behavior tag %q", tag.Label)}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO behavior_tags (session_id, tag, timestamp) VALUES ($1, $2, $3)
		`, id, tag.Label, tag.At)
		if err != nil {
			return nil, &PersistenceError{Op: "insert tags", Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &PersistenceError{Op: "commit", Err: err}
	}

	s := &SessionAPI{
		ID:               id,
		Title:            in.Title,
		CreatedAt:        createdAt,
		EndedAt:          &now,
		AttentionAvg:     attentionAvg,
		UnderstandingAvg: understandingAvg,
	}
	s.fillDerived(len(in.Tags))
	db.log.Info().
		Str("session_id", id).
		Int("transcript_segments", len(segments)).
		Int("attention_samples", len(in.Attention)).
		Int("understanding_samples", len(in.Understanding)).
		Int("tags", len(in.Tags)).
		Msg("session saved")
	return s, nil
}

func insertEvents(ctx context.Context, tx pgx.Tx, sessionID string, segments []Segment, attention, understanding []Sample) error {
	const q = `
		INSERT INTO session_events (session_id, timestamp, event_type, content, value)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, s := range segments {
		if _, err := tx.Exec(ctx, q, sessionID, s.At, EventTranscript, s.Text, nil); err != nil {
			return err
		}
	}
	for _, s := range attention {
		if _, err := tx.Exec(ctx, q, sessionID, s.At, EventAttention, nil, s.Value); err != nil {
			return err
		}
	}
	for _, s := range understanding {
		if _, err := tx.Exec(ctx, q, sessionID, s.At, EventUnderstanding, nil, s.Value); err != nil {
			return err
		}
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// fillDerived computes the display fields the analytics list view shows.
func (s *SessionAPI) fillDerived(keyMoments int) {
	s.Date = s.CreatedAt.Format("Jan 2, 2006")
	if s.UnderstandingAvg != nil {
		s.UnderstandingPercent = int(*s.UnderstandingAvg + 0.5)
		s.ConfusedPercent = 100 - s.UnderstandingPercent
	}
	s.KeyMoments = keyMoments
}

// ListSessions returns a page of sessions newest-first with derived
// display fields.
func (db *DB) ListSessions(ctx context.Context, limit, offset int) ([]SessionAPI, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT s.id::text, s.title, s.created_at, s.ended_at,
			s.attention_avg, s.understanding_avg, s.summary,
			(SELECT count(*) FROM behavior_tags bt WHERE bt.session_id = s.id) AS key_moments
		FROM sessions s
		ORDER BY s.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []SessionAPI
	for rows.Next() {
		var (
			s          SessionAPI
			keyMoments int
		)
		if err := rows.Scan(
			&s.ID, &s.Title, &s.CreatedAt, &s.EndedAt,
			&s.AttentionAvg, &s.UnderstandingAvg, &s.Summary,
			&keyMoments,
		); err != nil {
			return nil, err
		}
		s.fillDerived(keyMoments)
		result = append(result, s)
	}
	if result == nil {
		result = []SessionAPI{}
	}
	return result, rows.Err()
}

// ValidSessionID reports whether id has the canonical UUID shape. Session
// ids arrive from URL paths, and a malformed one would otherwise surface
// as a Postgres uuid syntax error instead of a missing session.
func ValidSessionID(id string) bool {
	if len(id) != 36 {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isHex {
				return false
			}
		}
	}
	return true
}

// GetSession returns one session by id, or nil if it does not exist.
func (db *DB) GetSession(ctx context.Context, sessionID string) (*SessionAPI, error) {
	if !ValidSessionID(sessionID) {
		return nil, nil
	}
	var (
		s          SessionAPI
		keyMoments int
	)
	err := db.Pool.QueryRow(ctx, `
		SELECT s.id::text, s.title, s.created_at, s.ended_at,
			s.attention_avg, s.understanding_avg, s.summary,
			(SELECT count(*) FROM behavior_tags bt WHERE bt.session_id = s.id) AS key_moments
		FROM sessions s
		WHERE s.id = $1
	`, sessionID).Scan(
		&s.ID, &s.Title, &s.CreatedAt, &s.EndedAt,
		&s.AttentionAvg, &s.UnderstandingAvg, &s.Summary,
		&keyMoments,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.fillDerived(keyMoments)
	return &s, nil
}

// SetSessionSummary updates the summary text on a session. This is the only
// mutation allowed on a session after creation.
func (db *DB) SetSessionSummary(ctx context.Context, sessionID, summary string) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE sessions SET summary = $2 WHERE id = $1
	`, sessionID, summary)
	return err
}
