// Package tts provides the HTTP client for the external text-to-speech
// service that voices the ad scripts.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// API endpoints.
const (
	apiSynthesize = "/v1/synthesize"
	apiHealth     = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypeMPEG   = "audio/mpeg"
)

// Defaults for optional request fields.
const (
	defaultTemperature = 0.75
	defaultVoice       = "narrator"
)

// Static errors.
var (
	// ErrTextEmpty indicates that the synthesis text is empty.
	ErrTextEmpty = errors.New("text cannot be empty")
	// ErrEmptyAudio indicates that the service returned zero audio bytes.
	ErrEmptyAudio = errors.New("received empty audio data")
	// ErrUnexpectedContentType indicates a response that is not audio.
	ErrUnexpectedContentType = errors.New("unexpected content type")
)

// Client is a client for the standalone TTS HTTP service. It encapsulates
// the HTTP configuration and provides methods for speech synthesis and
// health monitoring.
type Client struct {
	httpClient *http.Client
	baseURL    string
	voice      string
	temp       float64
}

// synthesizeRequest is the JSON payload for synthesis requests.
type synthesizeRequest struct {
	Text        string  `json:"text"`
	Voice       string  `json:"voice"`
	Temperature float64 `json:"temperature"`
}

// errorResponse is the structured error body returned by the TTS service.
type errorResponse struct {
	Detail    string `json:"detail"`
	ErrorCode string `json:"error_code,omitempty"`
}

// NewClient creates and configures an HTTP client for the TTS service. The
// baseURL should include the protocol and port (e.g. "http://localhost:8000").
// The timeout bounds every request made by this client; a timeout surfaces
// as a synthesis failure.
func NewClient(baseURL, voice string, temperature float64, timeout time.Duration) *Client {
	if voice == "" {
		voice = defaultVoice
	}

	if temperature == 0 {
		temperature = defaultTemperature
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		voice:   voice,
		temp:    temperature,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Synthesize sends a synthesis request and returns the raw audio bytes.
// The returned audio is MP3 as specified by the service contract; callers
// decide where it is stored.
func (c *Client) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	requestBody, err := json.Marshal(synthesizeRequest{
		Text:        text,
		Voice:       c.voice,
		Temperature: c.temp,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiSynthesize,
		bytes.NewBuffer(requestBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypeMPEG)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request to TTS service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseErrorResponse(resp)
	}

	contentType := resp.Header.Get(headerContentType)
	if !strings.HasPrefix(contentType, "audio/") {
		return nil, fmt.Errorf("%w: expected audio, got %s", ErrUnexpectedContentType, contentType)
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio data: %w", err)
	}

	if len(audioData) == 0 {
		return nil, ErrEmptyAudio
	}

	return audioData, nil
}

// HealthCheck verifies that the TTS service is running and operational.
// It should be performed before batch runs to fail fast when the service
// is unavailable.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+apiHealth, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed for service at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TTS service reported unhealthy status: %s", resp.Status)
	}

	return nil
}

// parseErrorResponse extracts actionable diagnostics from a non-OK response,
// preserving both the status and the service's own message.
func (c *Client) parseErrorResponse(resp *http.Response) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Errorf("TTS service returned %s and the body could not be read: %w",
			resp.Status, readErr)
	}

	var structured errorResponse

	if err := json.Unmarshal(body, &structured); err == nil && structured.Detail != "" {
		if structured.ErrorCode != "" {
			return fmt.Errorf("TTS service error (%s): %s (code: %s)",
				resp.Status, structured.Detail, structured.ErrorCode)
		}

		return fmt.Errorf("TTS service error (%s): %s", resp.Status, structured.Detail)
	}

	return fmt.Errorf("TTS service returned non-OK status: %s, body: %s",
		resp.Status, string(body))
}
