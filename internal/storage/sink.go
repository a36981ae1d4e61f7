package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"autoqa-transcripts/internal/logger"
)

// TranscriptFolder is the prefix all transcript objects live under.
const TranscriptFolder = "transcriptFiles"

var audioExtensions = []string{".wav", ".mp3", ".m4a"}

// TranscriptSink writes formatted transcripts to a content-addressed
// path derived from the source path and the UTC date at write time.
// Re-running on the same UTC day reproduces the same path and
// overwrites rather than duplicating.
type TranscriptSink struct {
	store   Store
	saveRaw bool
	now     func() time.Time
	log     *logrus.Entry
}

// NewTranscriptSink creates a sink over the store. saveRaw also writes
// the raw transcript JSON next to the formatted text.
func NewTranscriptSink(store Store, saveRaw bool) *TranscriptSink {
	return &TranscriptSink{
		store:   store,
		saveRaw: saveRaw,
		now:     time.Now,
		log:     logger.New().WithField("component", "sink"),
	}
}

// SanitizeSourcePath flattens a source path into a single file name:
// every path separator becomes an underscore and a known audio
// extension is stripped.
func SanitizeSourcePath(sourcePath string) string {
	name := strings.ReplaceAll(sourcePath, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	lower := strings.ToLower(name)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// TranscriptPath builds the deterministic storage path for a transcript
// written on the given UTC date.
func TranscriptPath(sourcePath string, date time.Time) string {
	return fmt.Sprintf("%s/%s/%s.txt", TranscriptFolder, date.UTC().Format("2006-01-02"), SanitizeSourcePath(sourcePath))
}

// Write persists the formatted transcript and, when enabled, the raw
// payload. It returns the transcript path within the store.
func (s *TranscriptSink) Write(ctx context.Context, text, sourcePath string, raw []byte) (string, error) {
	today := s.now().UTC()
	path := TranscriptPath(sourcePath, today)

	if err := s.store.Put(ctx, path, []byte(normalizeForReading(text))); err != nil {
		return "", fmt.Errorf("save transcript for %s: %w", sourcePath, err)
	}
	s.log.WithField("path", path).Info("transcript saved")

	if s.saveRaw && len(raw) > 0 {
		rawPath := fmt.Sprintf("%s/%s/raw/%s.json", TranscriptFolder, today.Format("2006-01-02"), SanitizeSourcePath(sourcePath))
		if err := s.store.Put(ctx, rawPath, raw); err != nil {
			// Raw payload is best effort; the formatted transcript is
			// already durable.
			s.log.WithError(err).WithField("path", rawPath).Warn("failed to save raw transcript")
		}
	}

	return path, nil
}

// normalizeForReading normalizes newlines and double-spaces lines so
// transcripts read well in blob viewers.
func normalizeForReading(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.ReplaceAll(text, "\n", "\n\n")
}
