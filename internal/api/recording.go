package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/attune-labs/attune-engine/internal/capture"
	"github.com/attune-labs/attune-engine/internal/database"
	"github.com/attune-labs/attune-engine/internal/recording"
)

// RecordingController is the slice of the recording controller the API
// needs. Implemented by recording.Controller.
type RecordingController interface {
	Start(ctx context.Context, title string) error
	Stop(ctx context.Context) (*database.SessionAPI, error)
	Tag(label string) error
	Status() recording.Status
}

type RecordingHandler struct {
	ctrl RecordingController
}

func NewRecordingHandler(ctrl RecordingController) *RecordingHandler {
	return &RecordingHandler{ctrl: ctrl}
}

func (h *RecordingHandler) Routes(r chi.Router) {
	r.Post("/recording/start", h.Start)
	r.Post("/recording/stop", h.Stop)
	r.Post("/recording/tags", h.Tag)
	r.Get("/recording/status", h.Status)
}

// Start begins a new recording session.
func (h *RecordingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.ctrl.Start(r.Context(), body.Title)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusCreated, h.ctrl.Status())
	case errors.Is(err, recording.ErrEmptyTitle):
		WriteError(w, http.StatusBadRequest, "title is required")
	case errors.Is(err, recording.ErrAlreadyRecording):
		WriteError(w, http.StatusConflict, "a recording is already in progress")
	case errors.Is(err, capture.ErrPermissionDenied):
		WriteError(w, http.StatusServiceUnavailable, "microphone access denied")
	case errors.Is(err, capture.ErrDeviceUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "audio device unavailable")
	default:
		WriteErrorDetail(w, http.StatusInternalServerError, "failed to start recording", err.Error())
	}
}

// Stop ends the active session and returns the saved record. Stopping while
// idle succeeds with no session.
func (h *RecordingHandler) Stop(w http.ResponseWriter, r *http.Request) {
	session, err := h.ctrl.Stop(r.Context())
	if err != nil {
		WriteErrorDetail(w, http.StatusInternalServerError, "failed to save session", err.Error())
		return
	}
	if session == nil {
		WriteJSON(w, http.StatusOK, map[string]any{"status": "idle"})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "saved",
		"session": session,
	})
}

// Tag applies a behavior label to the active session.
func (h *RecordingHandler) Tag(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Tag string `json:"tag"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.ctrl.Tag(body.Tag)
	switch {
	case err == nil:
		WriteJSON(w, http.StatusCreated, map[string]any{"tag": body.Tag})
	case errors.Is(err, recording.ErrInvalidTag):
		WriteError(w, http.StatusBadRequest, "unknown behavior tag")
	case errors.Is(err, recording.ErrNotRecording):
		WriteError(w, http.StatusConflict, "no recording in progress")
	default:
		WriteError(w, http.StatusInternalServerError, "failed to add tag")
	}
}

// Status returns the controller snapshot.
func (h *RecordingHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.ctrl.Status())
}
