package tts

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/strollcast/director/internal/config"
)

func testTTSConfig() config.TTSConfig {
	return config.TTSConfig{
		Provider:         "elevenlabs",
		Timeout:          time.Second,
		ElevenLabsAPIKey: "el-key",
		ElevenLabsModel:  "eleven_turbo_v2_5",
		DeepInfraAPIKey:  "di-key",
		DeepInfraModel:   "hexgrad/Kokoro-82M",
		VoiceEric:        "voice-e",
		VoiceMaya:        "voice-m",
	}
}

func TestNewProviderDispatch(t *testing.T) {
	t.Run("elevenlabs", func(t *testing.T) {
		cfg := testTTSConfig()
		p, err := New(cfg, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		if p.Name() != "elevenlabs" || p.Model() != "eleven_turbo_v2_5" {
			t.Errorf("provider = %s/%s", p.Name(), p.Model())
		}
		if p.VoiceFor("MAYA") != "voice-m" {
			t.Errorf("VoiceFor(MAYA) = %q", p.VoiceFor("MAYA"))
		}
	})

	t.Run("deepinfra", func(t *testing.T) {
		cfg := testTTSConfig()
		cfg.Provider = "deepinfra"
		p, err := New(cfg, zerolog.Nop())
		if err != nil {
			t.Fatal(err)
		}
		if p.Name() != "deepinfra" || p.Model() != "hexgrad/Kokoro-82M" {
			t.Errorf("provider = %s/%s", p.Name(), p.Model())
		}
	})

	t.Run("missing_api_key", func(t *testing.T) {
		cfg := testTTSConfig()
		cfg.ElevenLabsAPIKey = ""
		if _, err := New(cfg, zerolog.Nop()); err == nil {
			t.Error("expected error without API key")
		}
	})

	t.Run("unknown_provider", func(t *testing.T) {
		cfg := testTTSConfig()
		cfg.Provider = "espeak"
		if _, err := New(cfg, zerolog.Nop()); err == nil {
			t.Error("expected error for unknown provider")
		}
	})
}
