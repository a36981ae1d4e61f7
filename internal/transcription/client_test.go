package transcription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{
		BaseURL:     baseURL,
		BearerToken: "test-token",
		Timeout:     5 * time.Second,
		MinSpeakers: 2,
		MaxSpeakers: 3,
	})
	require.NoError(t, err)
	return client
}

func TestSubmitSuccess(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/asr/transcribe/async", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"sessions": []map[string]any{
				{"sessionUrl": "https://api.example.com/session/abc"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Submit(context.Background(), "https://blobs.example.com/call001.wav?sig=x")

	require.NoError(t, err)
	assert.False(t, result.RateLimited)
	assert.Equal(t, "https://api.example.com/session/abc", result.SessionURL)

	// The fixed transcription configuration must ride along.
	settings := captured["settings"].(map[string]any)
	diarization := settings["asr"].(map[string]any)["diarization"].(map[string]any)
	assert.Equal(t, float64(2), diarization["minSpeakers"])
	assert.Equal(t, float64(3), diarization["maxSpeakers"])

	formatters := settings["formatters"].([]any)
	var kinds []string
	for _, f := range formatters {
		kinds = append(kinds, f.(map[string]any)["type"].(string))
	}
	assert.Equal(t, []string{"digits", "basic", "enhanced", "profanity", "spelling", "redact", "regex", "regex"}, kinds)

	audio := captured["audio"].(map[string]any)["source"].(map[string]any)["fromUrl"].(map[string]any)
	assert.Equal(t, "https://blobs.example.com/call001.wav?sig=x", audio["url"])
}

func TestSubmitRateLimitedIsNotAnError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Submit(context.Background(), "https://blobs.example.com/a.wav")

	require.NoError(t, err)
	assert.True(t, result.RateLimited)
	assert.Empty(t, result.SessionURL)
	assert.Equal(t, int64(1), calls.Load(), "429 must not be retried")
}

func TestSubmitOtherFailureCarriesStatusAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"bad audio url"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.Submit(context.Background(), "not-a-url")

	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad audio url")
}

func TestSubmitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"sessions": []map[string]any{{"sessionUrl": "https://api.example.com/session/retry"}},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	result, err := client.Submit(context.Background(), "https://blobs.example.com/a.wav")

	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com/session/retry", result.SessionURL)
	assert.Equal(t, int64(2), calls.Load())
}

func TestFetchStatusExtractsPhase(t *testing.T) {
	tests := []struct {
		name string
		body string
		want Phase
	}{
		{"done", `{"progress":{"phase":"DONE"}}`, PhaseDone},
		{"transcribing", `{"progress":{"phase":"TRANSCRIBING"}}`, PhaseTranscribing},
		{"error", `{"progress":{"phase":"ERROR"}}`, PhaseError},
		{"missing progress", `{}`, PhaseUnknown},
		{"null progress", `{"progress":null}`, PhaseUnknown},
		{"empty phase", `{"progress":{"phase":""}}`, PhaseUnknown},
		{"unparseable body", `not json`, PhaseUnknown},
		{"lowercase phase", `{"progress":{"phase":"done"}}`, PhaseDone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			status, err := client.FetchStatus(context.Background(), server.URL+"/session/1")

			require.NoError(t, err)
			assert.Equal(t, tt.want, status.Phase)
		})
	}
}

func TestFetchTranscript(t *testing.T) {
	transcriptJSON := `{
		"utterances": [
			{"speakerId": "1", "transcript": "Hello", "start": 0},
			{"speakerId": 2, "transcript": "Hi there", "start": 3000}
		]
	}`

	t.Run("object body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/session/1/transcript", r.URL.Path)
			w.Write([]byte(transcriptJSON))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		payload, err := client.FetchTranscript(context.Background(), server.URL+"/session/1")

		require.NoError(t, err)
		require.Len(t, payload.Utterances, 2)
		assert.Equal(t, SpeakerID("1"), payload.Utterances[0].SpeakerID)
		assert.Equal(t, SpeakerID("2"), payload.Utterances[1].SpeakerID, "numeric speaker IDs must be accepted")
		assert.Equal(t, int64(3000), payload.Utterances[1].Start)
		assert.NotEmpty(t, payload.Raw)
	})

	t.Run("list-wrapped body uses first element", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("[" + transcriptJSON + `, {"utterances": []}]`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		payload, err := client.FetchTranscript(context.Background(), server.URL+"/session/1")

		require.NoError(t, err)
		assert.Len(t, payload.Utterances, 2)
	})

	t.Run("empty list", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`[]`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		payload, err := client.FetchTranscript(context.Background(), server.URL+"/session/1")

		require.NoError(t, err)
		assert.Empty(t, payload.Utterances)
		assert.Empty(t, payload.Words)
	})
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(ClientConfig{BearerToken: "x"})
	require.Error(t, err)

	_, err = NewClient(ClientConfig{BaseURL: "https://api.example.com"})
	require.Error(t, err)

	client, err := NewClient(ClientConfig{BaseURL: "https://api.example.com/", BearerToken: "x"})
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", client.config.BaseURL)
	assert.Equal(t, "VoiceGain-Omega:2", client.config.ModelName)
	assert.Equal(t, 2, client.config.MinSpeakers)
	assert.Equal(t, 3, client.config.MaxSpeakers)
}

func TestDoRequestCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchStatus(ctx, server.URL+"/session/1")
	require.Error(t, err)
}
