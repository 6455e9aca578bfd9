package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	// Speech-to-text provider (OpenAI-compatible /v1/audio/transcriptions).
	TranscribeURL       string        `env:"TRANSCRIBE_URL" envDefault:"https://api.lemonfox.ai/v1/audio/transcriptions"`
	TranscribeAPIKey    string        `env:"TRANSCRIBE_API_KEY"`
	TranscribeModel     string        `env:"TRANSCRIBE_MODEL" envDefault:"whisper-1"`
	TranscribeTimeout   time.Duration `env:"TRANSCRIBE_TIMEOUT" envDefault:"30s"`
	TranscribeWorkers   int           `env:"TRANSCRIBE_WORKERS" envDefault:"2"`
	TranscribeQueueSize int           `env:"TRANSCRIBE_QUEUE_SIZE" envDefault:"64"`

	// Audio capture. Chunks are cut every ChunkInterval; observed call
	// sites range from 3s to 10s.
	ChunkInterval time.Duration `env:"CHUNK_INTERVAL" envDefault:"5s"`
	AudioDevice   string        `env:"AUDIO_DEVICE"`
	AudioWatchDir string        `env:"AUDIO_WATCH_DIR"`
	AudioDir      string        `env:"AUDIO_DIR" envDefault:"./audio"`

	// Insight generation (LLM endpoint).
	InsightURL     string        `env:"INSIGHT_URL"`
	InsightAPIKey  string        `env:"INSIGHT_API_KEY"`
	InsightTimeout time.Duration `env:"INSIGHT_TIMEOUT" envDefault:"30s"`

	// Optional MQTT engagement feed. When unset the simulator supplies
	// attention/understanding samples.
	MQTTBrokerURL string `env:"MQTT_BROKER_URL"`
	MQTTTopics    string `env:"MQTT_TOPICS" envDefault:"classroom/+/engagement"`
	MQTTClientID  string `env:"MQTT_CLIENT_ID" envDefault:"attune-engine"`
	MQTTUsername  string `env:"MQTT_USERNAME"`
	MQTTPassword  string `env:"MQTT_PASSWORD"`

	S3 S3Config
}

// S3Config configures the optional S3 audio archive backend.
type S3Config struct {
	Endpoint  string `env:"S3_ENDPOINT"`
	Region    string `env:"S3_REGION" envDefault:"us-east-1"`
	Bucket    string `env:"S3_BUCKET"`
	Prefix    string `env:"S3_PREFIX"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`

	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"15m"`
}

// Enabled reports whether the S3 backend is configured.
func (s S3Config) Enabled() bool { return s.Bucket != "" }

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	AudioDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	// Parse environment variables into config struct
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Apply CLI overrides (non-empty values win)
	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}

	return cfg, nil
}
