package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/attune-labs/attune-engine/internal/database"
	"github.com/attune-labs/attune-engine/internal/storage"
)

// sessionQuerier is the database surface the sessions handler needs.
type sessionQuerier interface {
	ListSessions(ctx context.Context, limit, offset int) ([]database.SessionAPI, error)
	GetSession(ctx context.Context, sessionID string) (*database.SessionAPI, error)
	ListEvents(ctx context.Context, sessionID string) ([]database.SessionEventAPI, error)
	ListEventsByType(ctx context.Context, sessionID, eventType string) ([]database.SessionEventAPI, error)
	ListTags(ctx context.Context, sessionID string) ([]database.BehaviorTagAPI, error)
	ListInsights(ctx context.Context, sessionID string) ([]database.InsightAPI, error)
}

// InsightTrigger runs insight generation on demand. Implemented by
// insight.Generator.
type InsightTrigger interface {
	Generate(ctx context.Context, sessionID string) bool
}

type SessionsHandler struct {
	db       sessionQuerier
	audio    storage.AudioStore
	insights InsightTrigger
}

func NewSessionsHandler(db sessionQuerier, audio storage.AudioStore, insights InsightTrigger) *SessionsHandler {
	return &SessionsHandler{db: db, audio: audio, insights: insights}
}

func (h *SessionsHandler) Routes(r chi.Router) {
	r.Get("/sessions", h.List)
	r.Get("/sessions/{id}", h.Get)
	r.Get("/sessions/{id}/events", h.ListEvents)
	r.Get("/sessions/{id}/tags", h.ListTags)
	r.Get("/sessions/{id}/insights", h.ListInsights)
	r.Post("/sessions/{id}/insights", h.GenerateInsights)
	r.Get("/sessions/{id}/audio", h.GetAudio)
}

// List returns a page of saved sessions, newest first.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := h.db.ListSessions(r.Context(), page.Limit, page.Offset)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"total":    len(sessions),
		"limit":    page.Limit,
		"offset":   page.Offset,
	})
}

// Get returns one session by ID.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.db.GetSession(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	WriteJSON(w, http.StatusOK, session)
}

// ListEvents returns a page of a session's timeline, optionally filtered
// by type and by a from/to time window. An unknown session yields an empty
// timeline.
func (h *SessionsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	page, err := ParsePagination(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var events []database.SessionEventAPI
	if eventType, ok := QueryString(r, "type"); ok {
		switch eventType {
		case database.EventTranscript, database.EventAttention, database.EventUnderstanding:
		default:
			WriteError(w, http.StatusBadRequest, "unknown event type")
			return
		}
		events, err = h.db.ListEventsByType(r.Context(), id, eventType)
	} else {
		events, err = h.db.ListEvents(r.Context(), id)
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	events = windowEvents(r, events)
	events = pageEvents(events, page)
	WriteJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"total":  len(events),
		"limit":  page.Limit,
		"offset": page.Offset,
	})
}

// windowEvents applies optional from/to RFC 3339 bounds to the timeline.
func windowEvents(r *http.Request, events []database.SessionEventAPI) []database.SessionEventAPI {
	from, hasFrom := QueryTime(r, "from")
	to, hasTo := QueryTime(r, "to")
	if !hasFrom && !hasTo {
		return events
	}
	kept := events[:0]
	for _, e := range events {
		if hasFrom && e.Timestamp.Before(from) {
			continue
		}
		if hasTo && e.Timestamp.After(to) {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}

func pageEvents(events []database.SessionEventAPI, page Pagination) []database.SessionEventAPI {
	if page.Offset >= len(events) {
		return []database.SessionEventAPI{}
	}
	end := page.Offset + page.Limit
	if end > len(events) {
		end = len(events)
	}
	return events[page.Offset:end]
}

// ListTags returns a session's behavior tags.
func (h *SessionsHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tags, err := h.db.ListTags(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list tags")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"tags":  tags,
		"total": len(tags),
	})
}

// ListInsights returns a session's AI insights.
func (h *SessionsHandler) ListInsights(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	insights, err := h.db.ListInsights(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list insights")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"insights": insights,
		"total":    len(insights),
	})
}

// GenerateInsights triggers insight generation for a saved session.
// Generation is idempotent; re-posting an analyzed session succeeds without
// duplicating insights.
func (h *SessionsHandler) GenerateInsights(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.db.GetSession(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if h.insights == nil {
		WriteError(w, http.StatusServiceUnavailable, "insight generation not configured")
		return
	}

	if !h.insights.Generate(r.Context(), id) {
		WriteError(w, http.StatusBadGateway, "insight generation failed")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": id,
		"status":     "generated",
	})
}

// GetAudio serves the session's archived audio, redirecting to a presigned
// URL when the backend provides one.
func (h *SessionsHandler) GetAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	session, err := h.db.GetSession(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		WriteError(w, http.StatusNotFound, "session not found")
		return
	}
	if h.audio == nil {
		WriteError(w, http.StatusNotFound, "audio archive not configured")
		return
	}

	key := storage.SessionKey(session.ID, session.CreatedAt)
	if !h.audio.Exists(r.Context(), key) {
		WriteError(w, http.StatusNotFound, "no audio for session")
		return
	}

	if url, err := h.audio.URL(r.Context(), key); err == nil && url != "" {
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	if path := h.audio.LocalPath(key); path != "" {
		w.Header().Set("Content-Type", "audio/webm")
		http.ServeFile(w, r, path)
		return
	}

	rc, err := h.audio.Open(r.Context(), key)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to open audio")
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "audio/webm")
	io.Copy(w, rc)
}
