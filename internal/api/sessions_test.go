package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/attune-labs/attune-engine/internal/database"
)

// mockSessionQuerier implements sessionQuerier for testing.
type mockSessionQuerier struct {
	sessions []database.SessionAPI
	session  *database.SessionAPI
	events   []database.SessionEventAPI
	tags     []database.BehaviorTagAPI
	insights []database.InsightAPI
	err      error

	lastEventType string
	lastLimit     int
	lastOffset    int
}

func (m *mockSessionQuerier) ListSessions(_ context.Context, limit, offset int) ([]database.SessionAPI, error) {
	m.lastLimit, m.lastOffset = limit, offset
	return m.sessions, m.err
}
func (m *mockSessionQuerier) GetSession(_ context.Context, id string) (*database.SessionAPI, error) {
	return m.session, m.err
}
func (m *mockSessionQuerier) ListEvents(_ context.Context, id string) ([]database.SessionEventAPI, error) {
	m.lastEventType = ""
	return m.events, m.err
}
func (m *mockSessionQuerier) ListEventsByType(_ context.Context, id, eventType string) ([]database.SessionEventAPI, error) {
	m.lastEventType = eventType
	return m.events, m.err
}
func (m *mockSessionQuerier) ListTags(_ context.Context, id string) ([]database.BehaviorTagAPI, error) {
	return m.tags, m.err
}
func (m *mockSessionQuerier) ListInsights(_ context.Context, id string) ([]database.InsightAPI, error) {
	return m.insights, m.err
}

type mockInsightTrigger struct {
	ok     bool
	called []string
}

func (m *mockInsightTrigger) Generate(_ context.Context, sessionID string) bool {
	m.called = append(m.called, sessionID)
	return m.ok
}

func serveSessions(db sessionQuerier, insights InsightTrigger, method, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewSessionsHandler(db, nil, insights).Routes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestListSessions(t *testing.T) {
	t.Run("default_page", func(t *testing.T) {
		mock := &mockSessionQuerier{sessions: []database.SessionAPI{
			{ID: "a", Title: "Math"},
			{ID: "b", Title: "Science"},
		}}
		rec := serveSessions(mock, nil, "GET", "/sessions")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body struct {
			Sessions []database.SessionAPI `json:"sessions"`
			Total    int                   `json:"total"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Total != 2 || len(body.Sessions) != 2 {
			t.Errorf("total = %d, sessions = %d, want 2/2", body.Total, len(body.Sessions))
		}
		if mock.lastLimit != 50 || mock.lastOffset != 0 {
			t.Errorf("limit/offset = %d/%d, want defaults 50/0", mock.lastLimit, mock.lastOffset)
		}
	})

	t.Run("pagination_passed_through", func(t *testing.T) {
		mock := &mockSessionQuerier{}
		rec := serveSessions(mock, nil, "GET", "/sessions?limit=10&offset=20")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if mock.lastLimit != 10 || mock.lastOffset != 20 {
			t.Errorf("limit/offset = %d/%d, want 10/20", mock.lastLimit, mock.lastOffset)
		}
	})

	t.Run("invalid_limit_rejected", func(t *testing.T) {
		rec := serveSessions(&mockSessionQuerier{}, nil, "GET", "/sessions?limit=zero")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestGetSession(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		mock := &mockSessionQuerier{session: &database.SessionAPI{ID: "a", Title: "Math"}}
		rec := serveSessions(mock, nil, "GET", "/sessions/a")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		mock := &mockSessionQuerier{}
		rec := serveSessions(mock, nil, "GET", "/sessions/missing")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}

func TestListSessionEvents(t *testing.T) {
	value := 42.0
	mock := &mockSessionQuerier{events: []database.SessionEventAPI{
		{EventType: database.EventAttention, Value: &value, Timestamp: time.Now()},
	}}

	t.Run("all_events", func(t *testing.T) {
		rec := serveSessions(mock, nil, "GET", "/sessions/a/events")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if mock.lastEventType != "" {
			t.Errorf("type filter = %q, want none", mock.lastEventType)
		}
	})

	t.Run("filtered_by_type", func(t *testing.T) {
		rec := serveSessions(mock, nil, "GET", "/sessions/a/events?type=transcript")
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if mock.lastEventType != database.EventTranscript {
			t.Errorf("type filter = %q, want transcript", mock.lastEventType)
		}
	})

	t.Run("unknown_type_rejected", func(t *testing.T) {
		rec := serveSessions(mock, nil, "GET", "/sessions/a/events?type=mood")
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("time_window_and_pagination", func(t *testing.T) {
		base := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
		var series []database.SessionEventAPI
		for i := 0; i < 5; i++ {
			series = append(series, database.SessionEventAPI{
				ID:        int64(i),
				EventType: database.EventAttention,
				Timestamp: base.Add(time.Duration(i) * time.Minute),
			})
		}
		windowed := &mockSessionQuerier{events: series}

		// Window keeps minutes 1..3, pagination takes one event after the
		// first.
		path := "/sessions/a/events?from=" + base.Add(time.Minute).Format(time.RFC3339) +
			"&to=" + base.Add(3*time.Minute).Format(time.RFC3339) +
			"&limit=1&offset=1"
		rec := serveSessions(windowed, nil, "GET", path)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}

		var body struct {
			Events []database.SessionEventAPI `json:"events"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if len(body.Events) != 1 || body.Events[0].ID != 2 {
			t.Fatalf("events = %+v, want the single event at minute 2", body.Events)
		}
	})
}

func TestGenerateInsights(t *testing.T) {
	t.Run("generates", func(t *testing.T) {
		mock := &mockSessionQuerier{session: &database.SessionAPI{ID: "a"}}
		trigger := &mockInsightTrigger{ok: true}
		rec := serveSessions(mock, trigger, "POST", "/sessions/a/insights")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
		}
		if len(trigger.called) != 1 || trigger.called[0] != "a" {
			t.Errorf("trigger called with %v, want [a]", trigger.called)
		}
	})

	t.Run("unknown_session_404", func(t *testing.T) {
		trigger := &mockInsightTrigger{ok: true}
		rec := serveSessions(&mockSessionQuerier{}, trigger, "POST", "/sessions/a/insights")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if len(trigger.called) != 0 {
			t.Error("trigger should not run for unknown session")
		}
	})

	t.Run("generation_failure_502", func(t *testing.T) {
		mock := &mockSessionQuerier{session: &database.SessionAPI{ID: "a"}}
		rec := serveSessions(mock, &mockInsightTrigger{ok: false}, "POST", "/sessions/a/insights")
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("status = %d, want 502", rec.Code)
		}
	})

	t.Run("not_configured_503", func(t *testing.T) {
		mock := &mockSessionQuerier{session: &database.SessionAPI{ID: "a"}}
		rec := serveSessions(mock, nil, "POST", "/sessions/a/insights")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})
}

type stubAudioStore struct {
	exists bool
	url    string
	body   string
}

func (s *stubAudioStore) Save(context.Context, string, []byte, string) error { return nil }
func (s *stubAudioStore) LocalPath(string) string                            { return "" }
func (s *stubAudioStore) URL(context.Context, string) (string, error)        { return s.url, nil }
func (s *stubAudioStore) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(s.body)), nil
}
func (s *stubAudioStore) Exists(context.Context, string) bool { return s.exists }
func (s *stubAudioStore) Type() string                        { return "stub" }

func TestGetAudio(t *testing.T) {
	session := &database.SessionAPI{ID: "a", CreatedAt: time.Now()}

	serve := func(db sessionQuerier, audio *stubAudioStore) *httptest.ResponseRecorder {
		r := chi.NewRouter()
		NewSessionsHandler(db, audio, nil).Routes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest("GET", "/sessions/a/audio", nil))
		return rec
	}

	t.Run("presigned_redirect", func(t *testing.T) {
		rec := serve(&mockSessionQuerier{session: session}, &stubAudioStore{exists: true, url: "https://s3/thing"})
		if rec.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", rec.Code)
		}
		if got := rec.Header().Get("Location"); got != "https://s3/thing" {
			t.Errorf("Location = %q", got)
		}
	})

	t.Run("streams_when_no_url", func(t *testing.T) {
		rec := serve(&mockSessionQuerier{session: session}, &stubAudioStore{exists: true, body: "audio"})
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != "audio" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("missing_audio_404", func(t *testing.T) {
		rec := serve(&mockSessionQuerier{session: session}, &stubAudioStore{exists: false})
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
	})
}
