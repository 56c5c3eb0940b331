package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/audio"
	"github.com/strollcast/director/internal/cache"
	"github.com/strollcast/director/internal/config"
	"github.com/strollcast/director/internal/episode"
	"github.com/strollcast/director/internal/storage"
	"github.com/strollcast/director/internal/tts"
)

var version = "dev"

func main() {
	envFile := flag.String("env", "", "path to .env file")
	logLevel := flag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	dataDir := flag.String("data-dir", "", "local storage dir (overrides DATA_DIR)")
	scriptsDir := flag.String("scripts", "./public", "root directory of episode scripts")
	name := flag.String("episode", "", "episode name, author-year-shortname (required)")
	title := flag.String("title", "", "episode title for ID3 tags and the record store")
	flag.Parse()

	cfg, err := config.Load(config.Overrides{
		EnvFile:  *envFile,
		LogLevel: *logLevel,
		DataDir:  *dataDir,
	})
	if err != nil {
		early := zerolog.New(os.Stderr).With().Timestamp().Logger()
		early.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)

	if *name == "" {
		log.Fatal().Msg("-episode is required")
	}
	log.Info().Str("version", version).Str("episode", *name).Msg("director starting")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cacheStore, err := storage.New(ctx, cfg.S3, cfg.CacheBucket, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache bucket")
	}
	outputStore, err := storage.New(ctx, cfg.S3, cfg.OutputBucket, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open output bucket")
	}

	provider, err := tts.New(cfg.TTS, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure TTS provider")
	}

	tools := audio.NewToolset(cfg.Concat.FFmpegPath, cfg.Concat.FFprobePath)
	if err := tools.Check(); err != nil {
		log.Fatal().Err(err).Msg("audio tools unavailable")
	}

	// The concat request blocks for the life of the job; give the client
	// headroom beyond the worker's own deadline.
	concatClient := episode.NewHTTPConcatClient(cfg.ConcatURL, cfg.AuthToken, cfg.Concat.JobDeadline+5*time.Minute)

	gen := episode.NewGenerator(
		cache.New(cacheStore, log),
		outputStore,
		provider,
		tools,
		concatClient,
		episode.GeneratorConfig{
			PauseDuration: cfg.PauseDuration,
			SegmentGap:    cfg.SegmentGap,
			TagArtist:     cfg.TagArtist,
			TagAlbum:      cfg.TagAlbum,
			TagGenre:      cfg.TagGenre,
			Seeds: map[string]int{
				"ERIC": cfg.TTS.SeedEric,
				"MAYA": cfg.TTS.SeedMaya,
			},
		},
		log,
	)

	scripts := episode.NewFSScriptStore(*scriptsDir)
	orch := episode.NewOrchestrator(scripts, nil, nil, gen, outputStore, log)

	outcome, err := orch.Run(ctx, episode.Metadata{Name: *name, Title: *title})
	if err != nil {
		log.Fatal().Err(err).Msg("episode pipeline failed")
	}

	log.Info().
		Str("audio_url", outcome.AudioURL).
		Str("transcript_url", outcome.TranscriptURL).
		Float64("duration_seconds", outcome.DurationSeconds).
		Int("segments", outcome.SegmentCount).
		Int("cache_hits", outcome.Stats.CacheHits).
		Int("provider_calls", outcome.Stats.ProviderCalls).
		Msg("episode ready")
}
