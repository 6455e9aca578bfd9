package api

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker reports database liveness. Implemented by database.DB.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// BrokerStatus reports MQTT connectivity. Implemented by mqttclient.Client.
type BrokerStatus interface {
	IsConnected() bool
}

type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Checks        map[string]string `json:"checks"`
}

type HealthHandler struct {
	db        HealthChecker
	mqtt      BrokerStatus
	ctrl      RecordingController
	version   string
	startTime time.Time
}

func NewHealthHandler(db HealthChecker, mqtt BrokerStatus, ctrl RecordingController, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		db:        db,
		mqtt:      mqtt,
		ctrl:      ctrl,
		version:   version,
		startTime: startTime,
	}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	status := "healthy"
	httpStatus := http.StatusOK

	// Database check
	if err := h.db.HealthCheck(r.Context()); err != nil {
		checks["database"] = "error"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["database"] = "ok"
	}

	// MQTT check
	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			checks["mqtt"] = "ok"
		} else {
			checks["mqtt"] = "disconnected"
			if status == "healthy" {
				status = "degraded"
			}
		}
	} else {
		checks["mqtt"] = "not_configured"
	}

	// Transcription check: a degraded queue means the recording continues
	// without transcription.
	if h.ctrl != nil {
		rs := h.ctrl.Status()
		checks["recording"] = string(rs.State)
		switch {
		case rs.Queue == nil:
			checks["transcription"] = "idle"
		case rs.Queue.Degraded:
			checks["transcription"] = "degraded"
			if status == "healthy" {
				status = "degraded"
			}
		default:
			checks["transcription"] = "ok"
		}
	}

	WriteJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        checks,
	})
}
