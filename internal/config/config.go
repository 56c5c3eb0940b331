package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// S3Config holds object-store settings shared by the cache and output buckets.
// With no endpoint configured, stores fall back to local directories under
// DataDir (dev mode).
type S3Config struct {
	Endpoint      string        `env:"S3_ENDPOINT"`
	Region        string        `env:"S3_REGION" envDefault:"auto"`
	AccessKey     string        `env:"S3_ACCESS_KEY"`
	SecretKey     string        `env:"S3_SECRET_KEY"`
	PresignExpiry time.Duration `env:"S3_PRESIGN_EXPIRY" envDefault:"1h"`
	DataDir       string        `env:"DATA_DIR" envDefault:"./data"`
}

// Enabled reports whether a real S3 endpoint is configured.
func (c S3Config) Enabled() bool { return c.Endpoint != "" }

// LocalDir returns the local fallback directory for a bucket.
func (c S3Config) LocalDir(bucket string) string {
	return filepath.Join(c.DataDir, bucket)
}

// TTSConfig selects and parameterizes the speech synthesis provider.
type TTSConfig struct {
	Provider string        `env:"TTS_PROVIDER" envDefault:"elevenlabs"`
	Timeout  time.Duration `env:"TTS_TIMEOUT" envDefault:"60s"`

	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
	ElevenLabsModel  string `env:"ELEVENLABS_MODEL" envDefault:"eleven_turbo_v2_5"`

	DeepInfraAPIKey string `env:"DEEPINFRA_API_KEY"`
	DeepInfraModel  string `env:"DEEPINFRA_MODEL" envDefault:"hexgrad/Kokoro-82M"`

	// Voice assignments per speaker label. Defaults are the production
	// ElevenLabs voices for the two hosts.
	VoiceEric string `env:"VOICE_ERIC" envDefault:"gP8LZQ3GGokV0MP5JYjg"`
	VoiceMaya string `env:"VOICE_MAYA" envDefault:"21m00Tcm4TlvDq8ikWAM"`

	// Fixed per-speaker seeds keep prosody stable across independently
	// synthesized segments of the same episode.
	SeedEric int `env:"SEED_ERIC" envDefault:"4001"`
	SeedMaya int `env:"SEED_MAYA" envDefault:"4002"`
}

// ConcatConfig parameterizes the concatenation worker.
type ConcatConfig struct {
	// HeartbeatURL is the host-provided endpoint that extends the worker's
	// idle timer. Empty disables heartbeats (local runs).
	HeartbeatURL      string        `env:"HEARTBEAT_URL"`
	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" envDefault:"2m"`

	// JobDeadline is the hard wall-clock ceiling for one concat job.
	JobDeadline time.Duration `env:"JOB_DEADLINE" envDefault:"60m"`

	FetchWorkers int    `env:"FETCH_WORKERS" envDefault:"4"`
	FFmpegPath   string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath  string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
}

type Config struct {
	CacheBucket  string `env:"CACHE_BUCKET" envDefault:"strollcast-cache"`
	OutputBucket string `env:"OUTPUT_BUCKET" envDefault:"strollcast-output"`

	// ConcatURL is where the director reaches the concatenation worker.
	ConcatURL string `env:"CONCAT_URL" envDefault:"http://localhost:8080"`

	// Timeline pacing.
	PauseDuration time.Duration `env:"PAUSE_DURATION" envDefault:"800ms"`
	SegmentGap    time.Duration `env:"SEGMENT_GAP" envDefault:"0"`

	// Episode tag defaults.
	TagArtist string `env:"TAG_ARTIST" envDefault:"Strollcast"`
	TagAlbum  string `env:"TAG_ALBUM" envDefault:"Strollcast"`
	TagGenre  string `env:"TAG_GENRE" envDefault:"Podcast"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"90m"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	AuthToken string `env:"AUTH_TOKEN"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	S3     S3Config
	TTS    TTSConfig
	Concat ConcatConfig
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile  string
	HTTPAddr string
	LogLevel string
	DataDir  string
}

// Load reads configuration from .env file, environment variables, and CLI
// overrides. Priority: CLI flags > environment variables > .env file >
// struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DataDir != "" {
		cfg.S3.DataDir = overrides.DataDir
	}

	return cfg, nil
}
