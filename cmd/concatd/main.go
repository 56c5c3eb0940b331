package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/api"
	"github.com/strollcast/director/internal/audio"
	"github.com/strollcast/director/internal/concat"
	"github.com/strollcast/director/internal/config"
)

var version = "dev"

func main() {
	startTime := time.Now()

	envFile := flag.String("env", "", "path to .env file")
	addr := flag.String("addr", "", "listen address (overrides HTTP_ADDR)")
	logLevel := flag.String("log-level", "", "log level (overrides LOG_LEVEL)")
	flag.Parse()

	cfg, err := config.Load(config.Overrides{
		EnvFile:  *envFile,
		HTTPAddr: *addr,
		LogLevel: *logLevel,
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
	log.Info().Str("version", version).Msg("concatd starting")

	// Context for graceful shutdown; in-flight jobs run under it, so a
	// SIGTERM cancels the ffmpeg subprocess itself.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tools := audio.NewToolset(cfg.Concat.FFmpegPath, cfg.Concat.FFprobePath)
	if err := tools.Check(); err != nil {
		log.Fatal().Err(err).Msg("audio tools unavailable")
	}

	var notifier concat.Notifier
	if cfg.Concat.HeartbeatURL != "" {
		notifier = concat.NewHTTPNotifier(cfg.Concat.HeartbeatURL)
		log.Info().Str("url", cfg.Concat.HeartbeatURL).Dur("interval", cfg.Concat.HeartbeatInterval).Msg("heartbeats enabled")
	} else {
		log.Info().Msg("no heartbeat URL configured, heartbeats disabled")
	}

	svc := concat.NewService(cfg.Concat, tools, notifier, log)

	httpLog := log.With().Str("component", "http").Logger()
	srv := api.NewServer(cfg, svc, tools, ctx, version, startTime, httpLog)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("http server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("concatd stopped")
}
