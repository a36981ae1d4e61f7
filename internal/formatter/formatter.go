package formatter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"autoqa-transcripts/internal/logger"
	"autoqa-transcripts/internal/transcription"
)

// NoContentText is returned when a payload carries neither utterances
// nor words, or only empty ones.
const NoContentText = "No transcript available - audio may be silent or transcription failed."

// Formatter turns a raw transcript payload into line-oriented text. A
// remote formatting service is preferred when configured; any remote
// failure falls back to the local deterministic formatter.
type Formatter struct {
	remoteURL  string
	httpClient *http.Client
	log        *logrus.Entry
}

// New creates a formatter. An empty remoteURL selects local-only
// formatting.
func New(remoteURL string, timeout time.Duration) *Formatter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Formatter{
		remoteURL:  remoteURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.New().WithField("component", "formatter"),
	}
}

// Format renders the payload as readable text. The remote response body
// is used verbatim on HTTP 200; non-200, network errors and an
// unconfigured remote all fall through to FormatLocal.
func (f *Formatter) Format(ctx context.Context, payload transcription.Payload) string {
	if f.remoteURL != "" {
		text, err := f.formatRemote(ctx, payload)
		if err == nil {
			return text
		}
		f.log.WithError(err).Warn("remote formatter failed, falling back to local formatter")
	}
	return FormatLocal(payload)
}

func (f *Formatter) formatRemote(ctx context.Context, payload transcription.Payload) (string, error) {
	body := payload.Raw
	if len(body) == 0 {
		body = []byte("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.remoteURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("formatter returned status %d", resp.StatusCode)
	}
	return string(data), nil
}

// FormatLocal is the deterministic local formatter. Utterances produce
// one line each in input order; without utterances, consecutive words by
// the same speaker are grouped into one line. Pure given identical
// input.
func FormatLocal(payload transcription.Payload) string {
	var lines []string

	switch {
	case len(payload.Utterances) > 0:
		for _, u := range payload.Utterances {
			text := strings.TrimSpace(u.Transcript)
			if text == "" {
				continue
			}
			startSeconds := float64(u.Start) / 1000
			lines = append(lines, fmt.Sprintf("[%.2fs] Speaker %s: %s", startSeconds, speakerLabel(u.SpeakerID), text))
		}

	case len(payload.Words) > 0:
		var current transcription.SpeakerID
		var words []string
		flush := func() {
			if len(words) > 0 {
				lines = append(lines, fmt.Sprintf("Speaker %s: %s", speakerLabel(current), strings.Join(words, " ")))
			}
		}
		for i, w := range payload.Words {
			text := strings.TrimSpace(w.Text)
			if text == "" {
				continue
			}
			if i > 0 && w.SpeakerID != current {
				flush()
				words = nil
			}
			current = w.SpeakerID
			words = append(words, text)
		}
		flush()
	}

	if len(lines) == 0 {
		return NoContentText
	}
	return strings.Join(lines, "\n")
}

func speakerLabel(id transcription.SpeakerID) string {
	if id == "" {
		return "Unknown"
	}
	return string(id)
}
