package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/attune-labs/attune-engine/internal/capture"
	"github.com/attune-labs/attune-engine/internal/database"
	"github.com/attune-labs/attune-engine/internal/recording"
)

// mockRecorder implements RecordingController for testing.
type mockRecorder struct {
	startErr error
	stopSess *database.SessionAPI
	stopErr  error
	tagErr   error
	status   recording.Status

	startedWith string
	taggedWith  string
}

func (m *mockRecorder) Start(_ context.Context, title string) error {
	m.startedWith = title
	return m.startErr
}
func (m *mockRecorder) Stop(context.Context) (*database.SessionAPI, error) {
	return m.stopSess, m.stopErr
}
func (m *mockRecorder) Tag(label string) error {
	m.taggedWith = label
	return m.tagErr
}
func (m *mockRecorder) Status() recording.Status { return m.status }

func serveRecording(ctrl RecordingController, method, path, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	NewRecordingHandler(ctrl).Routes(r)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	r.ServeHTTP(rec, req)
	return rec
}

func TestStartRecording(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mock := &mockRecorder{status: recording.Status{State: recording.StateRecording, Title: "Math"}}
		rec := serveRecording(mock, "POST", "/recording/start", `{"title":"Math"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		if mock.startedWith != "Math" {
			t.Errorf("started with %q, want Math", mock.startedWith)
		}
		var status recording.Status
		json.Unmarshal(rec.Body.Bytes(), &status)
		if status.State != recording.StateRecording {
			t.Errorf("state = %q, want recording", status.State)
		}
	})

	t.Run("empty_title", func(t *testing.T) {
		mock := &mockRecorder{startErr: recording.ErrEmptyTitle}
		rec := serveRecording(mock, "POST", "/recording/start", `{"title":""}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("already_recording", func(t *testing.T) {
		mock := &mockRecorder{startErr: recording.ErrAlreadyRecording}
		rec := serveRecording(mock, "POST", "/recording/start", `{"title":"Math"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("capture_unavailable", func(t *testing.T) {
		for _, err := range []error{capture.ErrPermissionDenied, capture.ErrDeviceUnavailable} {
			mock := &mockRecorder{startErr: err}
			rec := serveRecording(mock, "POST", "/recording/start", `{"title":"Math"}`)
			if rec.Code != http.StatusServiceUnavailable {
				t.Errorf("%v: status = %d, want 503", err, rec.Code)
			}
		}
	})

	t.Run("bad_body", func(t *testing.T) {
		rec := serveRecording(&mockRecorder{}, "POST", "/recording/start", `{not json`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestStopRecording(t *testing.T) {
	t.Run("idle_is_noop", func(t *testing.T) {
		rec := serveRecording(&mockRecorder{}, "POST", "/recording/stop", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body map[string]any
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["status"] != "idle" {
			t.Errorf("status = %v, want idle", body["status"])
		}
	})

	t.Run("saved", func(t *testing.T) {
		mock := &mockRecorder{stopSess: &database.SessionAPI{ID: "s1", Title: "Math"}}
		rec := serveRecording(mock, "POST", "/recording/stop", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var body struct {
			Status  string              `json:"status"`
			Session database.SessionAPI `json:"session"`
		}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body.Status != "saved" || body.Session.ID != "s1" {
			t.Errorf("got status=%q session=%q, want saved/s1", body.Status, body.Session.ID)
		}
	})

	t.Run("save_failure", func(t *testing.T) {
		mock := &mockRecorder{stopErr: context.DeadlineExceeded}
		rec := serveRecording(mock, "POST", "/recording/stop", "")
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
	})
}

func TestTagRecording(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		mock := &mockRecorder{}
		rec := serveRecording(mock, "POST", "/recording/tags", `{"tag":"Visibly Confused"}`)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
		if mock.taggedWith != "Visibly Confused" {
			t.Errorf("tagged with %q", mock.taggedWith)
		}
	})

	t.Run("unknown_tag", func(t *testing.T) {
		mock := &mockRecorder{tagErr: recording.ErrInvalidTag}
		rec := serveRecording(mock, "POST", "/recording/tags", `{"tag":"Daydreaming"}`)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("not_recording", func(t *testing.T) {
		mock := &mockRecorder{tagErr: recording.ErrNotRecording}
		rec := serveRecording(mock, "POST", "/recording/tags", `{"tag":"Verbal Outburst"}`)
		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})
}

func TestRecordingStatus(t *testing.T) {
	mock := &mockRecorder{status: recording.Status{State: recording.StateIdle}}
	rec := serveRecording(mock, "GET", "/recording/status", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status recording.Status
	json.Unmarshal(rec.Body.Bytes(), &status)
	if status.State != recording.StateIdle {
		t.Errorf("state = %q, want idle", status.State)
	}
}
