package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/config"
)

// ErrNoTiming is returned when a provider response carries no usable timing
// metadata. Durations must come from the provider's own alignment data,
// never estimated from compressed-file size, so this is a hard failure for
// the segment.
var ErrNoTiming = errors.New("provider response missing timing metadata")

// Continuity carries adjacent-segment context into a synthesis call to
// stabilize prosody across independently generated, later-concatenated
// segments. Seed is fixed per speaker for the same reason. Providers without
// an equivalent API knob may ignore individual fields.
type Continuity struct {
	PreviousText string
	NextText     string
	Seed         int
}

// Request is one segment synthesis call.
type Request struct {
	Text       string
	Voice      string
	Continuity Continuity
}

// Result is the common synthesis result from any provider. Duration is
// measured from the provider's timing metadata, in seconds.
type Result struct {
	Audio    []byte
	Duration float64
}

// Provider is the interface for text-to-speech backends.
type Provider interface {
	Synthesize(ctx context.Context, req Request) (*Result, error)
	VoiceFor(speaker string) string
	Name() string  // "elevenlabs", "deepinfra"
	Model() string // model identifier for cache keys and logs
}

// New creates the configured provider.
func New(cfg config.TTSConfig, log zerolog.Logger) (Provider, error) {
	voices := map[string]string{
		"ERIC": cfg.VoiceEric,
		"MAYA": cfg.VoiceMaya,
	}
	switch cfg.Provider {
	case "elevenlabs":
		if cfg.ElevenLabsAPIKey == "" {
			return nil, errors.New("ELEVENLABS_API_KEY not set")
		}
		return NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsModel, voices, cfg.Timeout, log), nil
	case "deepinfra":
		if cfg.DeepInfraAPIKey == "" {
			return nil, errors.New("DEEPINFRA_API_KEY not set")
		}
		return NewDeepInfraClient(cfg.DeepInfraAPIKey, cfg.DeepInfraModel, voices, cfg.Timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown TTS provider %q", cfg.Provider)
	}
}
