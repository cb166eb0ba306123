package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ElevenLabs defaults.
const (
	DefaultBaseURL      = "https://api.elevenlabs.io/v1"
	DefaultModelID      = "eleven_flash_v2_5"
	DefaultOutputFormat = "mp3_44100_128"

	defaultStability  = 0.5
	defaultSimilarity = 0.75
)

// ElevenLabsClient implements Synthesizer and VoiceLister using ElevenLabs' API.
type ElevenLabsClient struct {
	apiKey       string
	baseURL      string
	modelID      string
	outputFormat string
	stability    float64
	similarity   float64
	httpClient   *http.Client
}

// ElevenLabsConfig holds configuration for the ElevenLabs client.
type ElevenLabsConfig struct {
	APIKey       string
	BaseURL      string // defaults to DefaultBaseURL
	ModelID      string // e.g. "eleven_flash_v2_5" for low latency
	OutputFormat string // e.g. "mp3_44100_128"
	Stability    float64 // negative selects the default 0.5
	Similarity   float64 // negative selects the default 0.75
	Timeout      time.Duration
}

// NewElevenLabsClient creates a new ElevenLabs client.
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = DefaultModelID
	}
	format := cfg.OutputFormat
	if format == "" {
		format = DefaultOutputFormat
	}
	stability := cfg.Stability
	if stability < 0 {
		stability = defaultStability
	}
	similarity := cfg.Similarity
	if similarity < 0 {
		similarity = defaultSimilarity
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &ElevenLabsClient{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		modelID:      modelID,
		outputFormat: format,
		stability:    stability,
		similarity:   similarity,
		httpClient:   &http.Client{Timeout: timeout},
	}
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type voicesResponse struct {
	Voices []Voice `json:"voices"`
}

// Synthesize converts text to speech and returns the audio stream in the
// configured output format.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) (io.ReadCloser, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if voiceID == "" {
		return nil, fmt.Errorf("voice id is required")
	}

	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		c.baseURL, url.PathEscape(voiceID), url.QueryEscape(c.outputFormat))

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: c.modelID,
		VoiceSettings: voiceSettings{
			Stability:       c.stability,
			SimilarityBoost: c.similarity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, string(respBody))
	}

	return resp.Body, nil
}

// ListVoices returns the voices available to the account, in API order.
func (c *ElevenLabsClient) ListVoices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ElevenLabs API error: %s - %s", resp.Status, string(respBody))
	}

	var out voicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode voices: %w", err)
	}

	return out.Voices, nil
}
