package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/attune-labs/attune-engine/internal/api"
	"github.com/attune-labs/attune-engine/internal/capture"
	"github.com/attune-labs/attune-engine/internal/config"
	"github.com/attune-labs/attune-engine/internal/database"
	"github.com/attune-labs/attune-engine/internal/engagement"
	"github.com/attune-labs/attune-engine/internal/insight"
	"github.com/attune-labs/attune-engine/internal/live"
	"github.com/attune-labs/attune-engine/internal/metrics"
	"github.com/attune-labs/attune-engine/internal/mqttclient"
	"github.com/attune-labs/attune-engine/internal/recording"
	"github.com/attune-labs/attune-engine/internal/storage"
	"github.com/attune-labs/attune-engine/internal/transcribe"
)

var version = "dev"

// recorderStats joins the controller and the event bus into the single
// stats surface the metrics collector scrapes.
type recorderStats struct {
	ctrl *recording.Controller
	bus  *live.EventBus
}

func (s recorderStats) Recording() bool         { return s.ctrl.Recording() }
func (s recorderStats) PendingChunks() int      { return s.ctrl.PendingChunks() }
func (s recorderStats) SSESubscriberCount() int { return s.bus.SubscriberCount() }

func main() {
	startTime := time.Now()

	var overrides config.Overrides
	flag.StringVar(&overrides.EnvFile, "env", "", "path to .env file")
	flag.StringVar(&overrides.HTTPAddr, "addr", "", "HTTP listen address")
	flag.StringVar(&overrides.LogLevel, "log-level", "", "log level (trace..error)")
	flag.StringVar(&overrides.DatabaseURL, "db", "", "postgres connection URL")
	flag.StringVar(&overrides.AudioDir, "audio-dir", "", "local audio archive directory")
	flag.Parse()

	cfg, err := config.Load(overrides)
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
	log.Info().Str("version", version).Msg("attune-engine starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	dbLog := log.With().Str("component", "database").Logger()
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbLog)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	if err := db.InitSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to initialize schema")
	}

	// Audio archive
	audio, err := storage.New(cfg.S3, cfg.AudioDir, log.With().Str("component", "storage").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize audio storage")
	}
	log.Info().Str("backend", audio.Type()).Msg("audio archive ready")

	// Optional MQTT engagement feed. A broker failure falls back to the
	// simulator rather than blocking startup.
	var mqtt *mqttclient.Client
	if cfg.MQTTBrokerURL != "" {
		mqtt, err = mqttclient.Connect(mqttclient.Options{
			BrokerURL: cfg.MQTTBrokerURL,
			ClientID:  cfg.MQTTClientID,
			Topics:    cfg.MQTTTopics,
			Username:  cfg.MQTTUsername,
			Password:  cfg.MQTTPassword,
			Log:       log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("mqtt broker unreachable, using simulated engagement")
			mqtt = nil
		} else {
			defer mqtt.Close()
		}
	}

	bus := live.NewEventBus(256)

	transcriber := transcribe.NewLemonFoxClient(
		cfg.TranscribeURL, cfg.TranscribeAPIKey, cfg.TranscribeModel, cfg.TranscribeTimeout)

	var insights *insight.Generator
	if cfg.InsightURL != "" {
		provider := insight.NewClient(cfg.InsightURL, cfg.InsightAPIKey, cfg.InsightTimeout)
		insights = insight.NewGenerator(db, provider, log.With().Str("component", "insight").Logger())
	} else {
		log.Warn().Msg("INSIGHT_URL not set, insight generation disabled")
	}

	captureLog := log.With().Str("component", "capture").Logger()
	newChunkSource := func() (recording.ChunkSource, error) {
		var src capture.Source
		switch {
		case cfg.AudioWatchDir != "":
			src = capture.NewWatchSource(cfg.AudioWatchDir, captureLog)
		case cfg.AudioDevice != "":
			src = capture.NewDeviceSource(cfg.AudioDevice)
		default:
			return nil, capture.ErrDeviceUnavailable
		}
		return capture.New(src, capture.Options{
			Interval: cfg.ChunkInterval,
			Log:      captureLog,
		}), nil
	}

	poolLog := log.With().Str("component", "transcribe").Logger()
	newTranscriber := func() recording.Transcriber {
		return transcribe.NewWorkerPool(transcribe.WorkerPoolOptions{
			Provider:  transcriber,
			Workers:   cfg.TranscribeWorkers,
			QueueSize: cfg.TranscribeQueueSize,
			Timeout:   cfg.TranscribeTimeout,
			Log:       poolLog,
		})
	}

	engLog := log.With().Str("component", "engagement").Logger()
	newEngagement := func() engagement.Source {
		if mqtt != nil {
			return engagement.NewMQTTSource(mqtt, engLog)
		}
		return engagement.NewSimulator(time.Now().UnixNano())
	}

	ctrlOpts := recording.Options{
		NewChunkSource: newChunkSource,
		NewTranscriber: newTranscriber,
		NewEngagement:  newEngagement,
		Store:          db,
		Audio:          audio,
		Bus:            bus,
		Log:            log.With().Str("component", "recording").Logger(),
	}
	if insights != nil {
		ctrlOpts.Insights = insights
	}
	ctrl := recording.NewController(ctrlOpts)

	prometheus.MustRegister(metrics.NewCollector(db.Pool, recorderStats{ctrl: ctrl, bus: bus}))

	// HTTP server
	deps := api.Deps{
		DB:        db,
		Sessions:  db,
		Recorder:  ctrl,
		Live:      bus,
		Audio:     audio,
		Version:   version,
		StartTime: startTime,
	}
	if insights != nil {
		deps.Insights = insights
	}
	if mqtt != nil {
		deps.MQTT = mqtt
	}
	srv := api.NewServer(cfg, deps, log.With().Str("component", "http").Logger())

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	// Save any in-flight recording before the process exits.
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if _, err := ctrl.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("failed to save session during shutdown")
	}
	cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("attune-engine stopped")
}
