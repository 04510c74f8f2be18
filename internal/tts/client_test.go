// Package tts_test tests the TTS service HTTP client.
package tts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/audiopanel/adstudy/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTimeout = 10 * time.Second

func TestSynthesize_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, http.MethodPost, request.Method)
			assert.Equal(t, "/v1/synthesize", request.URL.Path)
			assert.Equal(t, "application/json", request.Header.Get("Content-Type"))
			assert.Equal(t, "audio/mpeg", request.Header.Get("Accept"))

			var payload map[string]any

			err := json.NewDecoder(request.Body).Decode(&payload)
			require.NoError(t, err)
			assert.Equal(t, "Introducing the new Verde sneaker.", payload["text"])
			assert.Equal(t, "narrator", payload["voice"])

			responseWriter.Header().Set("Content-Type", "audio/mpeg")
			responseWriter.WriteHeader(http.StatusOK)
			_, _ = responseWriter.Write([]byte("ID3fake-mp3-bytes"))
		},
	))
	defer server.Close()

	client := tts.NewClient(server.URL, "narrator", 0.7, testTimeout)

	audio, err := client.Synthesize(context.Background(), "Introducing the new Verde sneaker.")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3fake-mp3-bytes"), audio)
}

func TestSynthesize_EmptyText(t *testing.T) {
	t.Parallel()

	client := tts.NewClient("http://localhost:1", "", 0, testTimeout)

	_, err := client.Synthesize(context.Background(), "")
	require.ErrorIs(t, err, tts.ErrTextEmpty)
}

func TestSynthesize_StructuredError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "application/json")
			responseWriter.WriteHeader(http.StatusTooManyRequests)
			_, _ = responseWriter.Write([]byte(`{"detail":"rate limited","error_code":"RATE_LIMIT"}`))
		},
	))
	defer server.Close()

	client := tts.NewClient(server.URL, "", 0, testTimeout)

	_, err := client.Synthesize(context.Background(), "some text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Contains(t, err.Error(), "RATE_LIMIT")
	assert.Contains(t, err.Error(), "429")
}

func TestSynthesize_WrongContentType(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "text/html")
			responseWriter.WriteHeader(http.StatusOK)
			_, _ = responseWriter.Write([]byte("<html>not audio</html>"))
		},
	))
	defer server.Close()

	client := tts.NewClient(server.URL, "", 0, testTimeout)

	_, err := client.Synthesize(context.Background(), "some text")
	require.ErrorIs(t, err, tts.ErrUnexpectedContentType)
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.Header().Set("Content-Type", "audio/mpeg")
			responseWriter.WriteHeader(http.StatusOK)
		},
	))
	defer server.Close()

	client := tts.NewClient(server.URL, "", 0, testTimeout)

	_, err := client.Synthesize(context.Background(), "some text")
	require.ErrorIs(t, err, tts.ErrEmptyAudio)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "/health", request.URL.Path)
			responseWriter.WriteHeader(http.StatusOK)
		},
	))
	defer healthy.Close()

	client := tts.NewClient(healthy.URL, "", 0, testTimeout)
	require.NoError(t, client.HealthCheck(context.Background()))

	unhealthy := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, _ *http.Request) {
			responseWriter.WriteHeader(http.StatusServiceUnavailable)
		},
	))
	defer unhealthy.Close()

	client = tts.NewClient(unhealthy.URL, "", 0, testTimeout)
	require.Error(t, client.HealthCheck(context.Background()))
}

func TestSynthesize_Timeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(responseWriter http.ResponseWriter, request *http.Request) {
			select {
			case <-time.After(2 * time.Second):
			case <-request.Context().Done():
			}
			responseWriter.WriteHeader(http.StatusOK)
		},
	))
	defer server.Close()

	client := tts.NewClient(server.URL, "", 0, 50*time.Millisecond)

	_, err := client.Synthesize(context.Background(), "slow request")
	require.Error(t, err)
}
