package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"autoqa-transcripts/internal/logger"
)

// ClientConfig contains transcription API client configuration.
type ClientConfig struct {
	BaseURL     string
	BearerToken string
	Timeout     time.Duration
	ModelName   string
	MinSpeakers int
	MaxSpeakers int
}

// Client is a stateless request wrapper for the async transcription API:
// submit a job, fetch session status, fetch the final transcript.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	log        *logrus.Entry
}

// NewClient creates a transcription API client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	if config.BearerToken == "" {
		return nil, fmt.Errorf("bearer token cannot be empty")
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ModelName == "" {
		config.ModelName = "VoiceGain-Omega:2"
	}
	if config.MinSpeakers <= 0 {
		config.MinSpeakers = 2
	}
	if config.MaxSpeakers < config.MinSpeakers {
		config.MaxSpeakers = config.MinSpeakers + 1
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		log:        logger.New().WithField("component", "transcription"),
	}, nil
}

// submitPayload builds the fixed transcription configuration: diarization
// speaker bounds plus the formatter chain (digit formatting, basic,
// enhanced CC/EMAIL, partial-mask profanity, spelling normalization,
// full-mask PII redaction, custom regex masks).
func (c *Client) submitPayload(audioURL string) map[string]any {
	redactEntities := map[string]any{}
	for _, entity := range []string{
		"ADDRESS", "CARDINAL", "CC", "DATE", "EMAIL", "EVENT", "FAC",
		"GPE", "LANGUAGE", "LAW", "NORP", "MONEY", "ORDINAL", "ORG",
		"PERCENT", "PERSON", "PHONE", "PRODUCT", "QUANTITY", "SSN",
		"TIME", "WORK_OF_ART", "ZIP",
	} {
		redactEntities[entity] = "full"
	}

	return map[string]any{
		"modelName": c.config.ModelName,
		"audio": map[string]any{
			"source": map[string]any{
				"fromUrl": map[string]any{"url": audioURL},
			},
		},
		"settings": map[string]any{
			"asr": map[string]any{
				"diarization": map[string]any{
					"minSpeakers": c.config.MinSpeakers,
					"maxSpeakers": c.config.MaxSpeakers,
				},
			},
			"formatters": []map[string]any{
				{"type": "digits"},
				{"type": "basic", "parameters": map[string]any{"enabled": "true"}},
				{"type": "enhanced", "parameters": map[string]any{"CC": true, "EMAIL": "true"}},
				{"type": "profanity", "parameters": map[string]any{"mask": "partial"}},
				{"type": "spelling", "parameters": map[string]any{"lang": "en-US"}},
				{"type": "redact", "parameters": redactEntities},
				{"type": "regex", "parameters": map[string]any{
					"mask":    "full",
					"options": "IA",
					"pattern": "[1-9][0-9]{3}[ ]?[a-zA-Z]{2}",
				}},
				{"type": "regex", "parameters": map[string]any{
					"mask":    "full",
					"options": "IA",
					"pattern": `\d+\.`,
				}},
			},
			"preemptible": false,
		},
		"sessions": []map[string]any{
			{
				"asyncMode": "OFF-LINE",
				"poll":      map[string]any{"persist": 600000},
				"content": map[string]any{
					"incremental": []string{"progress"},
					"full":        []string{"transcript", "words"},
				},
			},
		},
	}
}

type submitResponse struct {
	Sessions []struct {
		SessionURL string `json:"sessionUrl"`
	} `json:"sessions"`
}

// Submit POSTs the audio URL for asynchronous transcription and returns
// the session URL. HTTP 429 yields SubmitResult{RateLimited: true} with
// a nil error; other non-2xx responses are returned as errors carrying
// the status code and body.
func (c *Client) Submit(ctx context.Context, audioURL string) (SubmitResult, error) {
	body, err := json.Marshal(c.submitPayload(audioURL))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("marshal submit payload: %w", err)
	}

	status, respBody, err := c.doRequest(ctx, http.MethodPost, c.config.BaseURL+"/asr/transcribe/async", body)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit request: %w", err)
	}

	if status == http.StatusTooManyRequests {
		c.log.WithField("audio_url", audioURL).Warn("rate limited by transcription API on submit")
		return SubmitResult{RateLimited: true}, nil
	}
	if status < 200 || status >= 300 {
		return SubmitResult{}, &APIError{StatusCode: status, Body: truncate(respBody, 512)}
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return SubmitResult{}, fmt.Errorf("decode submit response: %w", err)
	}
	if len(parsed.Sessions) == 0 || parsed.Sessions[0].SessionURL == "" {
		return SubmitResult{}, fmt.Errorf("submit response missing session URL")
	}

	return SubmitResult{SessionURL: parsed.Sessions[0].SessionURL}, nil
}

// FetchStatus GETs session progress. A response without a recognizable
// progress.phase yields PhaseUnknown rather than an error.
func (c *Client) FetchStatus(ctx context.Context, sessionURL string) (Status, error) {
	status, respBody, err := c.doRequest(ctx, http.MethodGet, sessionURL, nil)
	if err != nil {
		return Status{}, fmt.Errorf("status request: %w", err)
	}
	if status < 200 || status >= 300 {
		return Status{}, fmt.Errorf("status fetch failed with status %d: %s", status, truncate(respBody, 512))
	}

	var parsed progressResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		// Unparseable progress is treated like a missing phase.
		return Status{Phase: PhaseUnknown, Raw: respBody}, nil
	}

	phase := ""
	if parsed.Progress != nil {
		phase = parsed.Progress.Phase
	}
	return Status{Phase: parsePhase(phase), Raw: respBody}, nil
}

// FetchTranscript GETs the final transcript for a completed session.
// Callers must not call this before the session reaches DONE. A
// list-wrapped body is unwrapped to its first element.
func (c *Client) FetchTranscript(ctx context.Context, sessionURL string) (Payload, error) {
	status, respBody, err := c.doRequest(ctx, http.MethodGet, strings.TrimRight(sessionURL, "/")+"/transcript", nil)
	if err != nil {
		return Payload{}, fmt.Errorf("transcript request: %w", err)
	}
	if status < 200 || status >= 300 {
		return Payload{}, fmt.Errorf("transcript fetch failed with status %d: %s", status, truncate(respBody, 512))
	}

	body := bytes.TrimSpace(respBody)
	if len(body) > 0 && body[0] == '[' {
		var wrapped []json.RawMessage
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return Payload{}, fmt.Errorf("decode transcript list: %w", err)
		}
		if len(wrapped) == 0 {
			return Payload{Raw: respBody}, nil
		}
		body = wrapped[0]
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return Payload{}, fmt.Errorf("decode transcript: %w", err)
	}
	payload.Raw = body
	return payload, nil
}

// doRequest performs one HTTP exchange with retry on transient failures.
// Network errors and 5xx responses are retried with exponential backoff;
// every other response, including 429, is returned as-is.
func (c *Client) doRequest(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * c.config.Timeout

	var statusCode int
	var respBody []byte

	operation := func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.config.BearerToken)
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.log.WithError(err).WithField("url", url).Warn("transcription API request failed, retrying")
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			c.log.WithFields(logrus.Fields{
				"url":    url,
				"status": resp.StatusCode,
			}).Warn("transcription API server error, retrying")
			return fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(data, 256))
		}

		statusCode = resp.StatusCode
		respBody = data
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return 0, nil, err
	}
	return statusCode, respBody, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
