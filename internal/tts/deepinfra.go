package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const deepInfraInferenceEndpoint = "https://api.deepinfra.com/v1/inference"

// DeepInfraClient calls DeepInfra-hosted TTS models (Kokoro by default).
// Implements the Provider interface. The inference API has no
// previous/next-text conditioning, so continuity hints are accepted and
// ignored; the fixed per-speaker seed still keeps repeated runs stable.
type DeepInfraClient struct {
	apiKey  string
	model   string // e.g. "hexgrad/Kokoro-82M"
	voices  map[string]string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

type deepInfraRequest struct {
	Text             string `json:"text"`
	PresetVoice      string `json:"preset_voice"`
	OutputFormat     string `json:"output_format"`
	ReturnTimestamps bool   `json:"return_timestamps"`
	Seed             int    `json:"seed,omitempty"`
}

// deepInfraResponse carries the audio as a base64 data URL plus word-level
// timestamps. The last word's end time is the audio duration.
type deepInfraResponse struct {
	Audio string `json:"audio"`
	Words []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
}

// NewDeepInfraClient creates a new DeepInfra TTS client.
func NewDeepInfraClient(apiKey, model string, voices map[string]string, timeout time.Duration, log zerolog.Logger) *DeepInfraClient {
	return &DeepInfraClient{
		apiKey:  apiKey,
		model:   model,
		voices:  voices,
		baseURL: deepInfraInferenceEndpoint,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("component", "deepinfra").Logger(),
	}
}

// Name returns the provider name.
func (di *DeepInfraClient) Name() string { return "deepinfra" }

// Model returns the configured model identifier.
func (di *DeepInfraClient) Model() string { return di.model }

// VoiceFor returns the configured voice id for a speaker label.
func (di *DeepInfraClient) VoiceFor(speaker string) string { return di.voices[speaker] }

// Synthesize generates speech for one segment with word timestamps enabled.
func (di *DeepInfraClient) Synthesize(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(deepInfraRequest{
		Text:             req.Text,
		PresetVoice:      req.Voice,
		OutputFormat:     "mp3",
		ReturnTimestamps: true,
		Seed:             req.Continuity.Seed,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", di.baseURL, di.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+di.apiKey)

	resp, err := di.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("deepinfra request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("deepinfra API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result deepInfraResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	audio, err := decodeAudioField(result.Audio)
	if err != nil {
		return nil, fmt.Errorf("decode audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("deepinfra returned empty audio")
	}

	if len(result.Words) == 0 {
		return nil, fmt.Errorf("deepinfra: %w", ErrNoTiming)
	}
	duration := result.Words[len(result.Words)-1].End
	if duration <= 0 {
		return nil, fmt.Errorf("deepinfra: %w", ErrNoTiming)
	}

	return &Result{Audio: audio, Duration: duration}, nil
}

// decodeAudioField accepts either a bare base64 payload or a data URL of the
// form "data:audio/mp3;base64,...".
func decodeAudioField(field string) ([]byte, error) {
	if i := strings.Index(field, "base64,"); i >= 0 {
		field = field[i+len("base64,"):]
	}
	return base64.StdEncoding.DecodeString(field)
}
