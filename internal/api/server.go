package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/attune-labs/attune-engine/internal/config"
	"github.com/attune-labs/attune-engine/internal/metrics"
	"github.com/attune-labs/attune-engine/internal/storage"
)

// Deps carries everything the server routes need.
type Deps struct {
	DB        HealthChecker
	Sessions  sessionQuerier
	Recorder  RecordingController
	Live      LiveDataSource
	Audio     storage.AudioStore
	Insights  InsightTrigger
	MQTT      BrokerStatus
	Version   string
	StartTime time.Time
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(cfg *config.Config, deps Deps, log zerolog.Logger) *Server {
	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Use(Logger(log))
	r.Use(CORS)
	r.Use(metrics.InstrumentHandler)

	// Unauthenticated surface
	health := NewHealthHandler(deps.DB, deps.MQTT, deps.Recorder, deps.Version, deps.StartTime)
	r.Get("/api/v1/health", health.ServeHTTP)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Authenticated routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))

		NewSessionsHandler(deps.Sessions, deps.Audio, deps.Insights).Routes(r)
		NewRecordingHandler(deps.Recorder).Routes(r)
		NewEventsHandler(deps.Live).Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
