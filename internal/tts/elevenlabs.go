package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const elevenLabsTTSEndpoint = "https://api.elevenlabs.io/v1/text-to-speech"

// Fixed synthesis settings for both hosts. These shape the delivered voice
// and therefore belong to the cache key's model identity: change them and
// bump cache.SchemaVersion together.
var elevenLabsVoiceSettings = map[string]any{
	"stability":         0.5,
	"similarity_boost":  0.75,
	"style":             0.0,
	"use_speaker_boost": true,
}

// ElevenLabsClient calls the ElevenLabs text-to-speech API.
// Implements the Provider interface.
type ElevenLabsClient struct {
	apiKey  string
	model   string // e.g. "eleven_turbo_v2_5"
	voices  map[string]string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// elevenLabsRequest is the JSON request body for the with-timestamps endpoint.
type elevenLabsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings map[string]any `json:"voice_settings"`
	PreviousText  string         `json:"previous_text,omitempty"`
	NextText      string         `json:"next_text,omitempty"`
	Seed          int            `json:"seed,omitempty"`
}

// elevenLabsResponse is the JSON response from the with-timestamps endpoint.
// The alignment block carries character-level end times; the last end time is
// the audio duration.
type elevenLabsResponse struct {
	AudioBase64 string `json:"audio_base64"`
	Alignment   struct {
		Characters          []string  `json:"characters"`
		CharacterStartTimes []float64 `json:"character_start_times_seconds"`
		CharacterEndTimes   []float64 `json:"character_end_times_seconds"`
	} `json:"alignment"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client.
func NewElevenLabsClient(apiKey, model string, voices map[string]string, timeout time.Duration, log zerolog.Logger) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:  apiKey,
		model:   model,
		voices:  voices,
		baseURL: elevenLabsTTSEndpoint,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "elevenlabs").Logger(),
	}
}

// Name returns the provider name.
func (el *ElevenLabsClient) Name() string { return "elevenlabs" }

// Model returns the configured model identifier.
func (el *ElevenLabsClient) Model() string { return el.model }

// VoiceFor returns the configured voice id for a speaker label.
func (el *ElevenLabsClient) VoiceFor(speaker string) string { return el.voices[speaker] }

// Synthesize generates speech for one segment via the with-timestamps
// endpoint, which returns the audio together with character-level alignment.
// The continuity hints map directly onto the API's previous_text/next_text
// and seed parameters.
func (el *ElevenLabsClient) Synthesize(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(elevenLabsRequest{
		Text:          req.Text,
		ModelID:       el.model,
		VoiceSettings: elevenLabsVoiceSettings,
		PreviousText:  req.Continuity.PreviousText,
		NextText:      req.Continuity.NextText,
		Seed:          req.Continuity.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/with-timestamps", el.baseURL, req.Voice)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", el.apiKey)

	resp, err := el.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result elevenLabsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	audio, err := base64.StdEncoding.DecodeString(result.AudioBase64)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned empty audio")
	}

	ends := result.Alignment.CharacterEndTimes
	if len(ends) == 0 {
		return nil, fmt.Errorf("elevenlabs: %w", ErrNoTiming)
	}
	duration := ends[len(ends)-1]
	if duration <= 0 {
		return nil, fmt.Errorf("elevenlabs: %w", ErrNoTiming)
	}

	return &Result{Audio: audio, Duration: duration}, nil
}
