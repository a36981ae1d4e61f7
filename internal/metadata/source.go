package metadata

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"autoqa-transcripts/internal/logger"
	"autoqa-transcripts/internal/storage"
	"autoqa-transcripts/internal/types"
)

// Source yields a finite, ordered sequence of work items. Sources carry
// no retry logic of their own; ordering from the underlying listing is
// preserved.
type Source interface {
	Items(ctx context.Context) ([]types.WorkItem, error)
}

// StaticSource serves a fixed slice of work items.
type StaticSource []types.WorkItem

// Items returns the items in declaration order.
func (s StaticSource) Items(context.Context) ([]types.WorkItem, error) {
	return []types.WorkItem(s), nil
}

var audioExtensions = []string{".wav", ".mp3", ".m4a"}

// Folders whose contents have already been handled and must not be
// re-submitted.
var excludedPrefixes = []string{"Archive/", "Processed/", storage.TranscriptFolder + "/"}

// StoreSource discovers audio objects in the transcript store itself,
// skipping archived, processed and transcript folders.
type StoreSource struct {
	store        storage.Store
	prefix       string
	audioBaseURL string
	sasToken     string
	maxFiles     int
	log          *logrus.Entry
}

// NewStoreSource creates a store-backed source. maxFiles of 0 means no
// limit; audioBaseURL plus the optional SAS token turn object paths
// into externally fetchable URLs.
func NewStoreSource(store storage.Store, prefix, audioBaseURL, sasToken string, maxFiles int) *StoreSource {
	return &StoreSource{
		store:        store,
		prefix:       prefix,
		audioBaseURL: strings.TrimRight(audioBaseURL, "/"),
		sasToken:     sasToken,
		maxFiles:     maxFiles,
		log:          logger.New().WithField("component", "metadata"),
	}
}

// Items lists candidate audio objects in path order.
func (s *StoreSource) Items(ctx context.Context) ([]types.WorkItem, error) {
	objects, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, err
	}

	var items []types.WorkItem
	for _, obj := range objects {
		if excluded(obj.Path) || !isAudio(obj.Path) {
			continue
		}
		items = append(items, types.WorkItem{
			SourcePath: obj.Path,
			AudioURL:   s.audioURL(obj.Path),
		})
		if s.maxFiles > 0 && len(items) >= s.maxFiles {
			s.log.WithField("max_files", s.maxFiles).Info("reached max files limit, stopping scan early")
			break
		}
	}

	s.log.WithFields(logrus.Fields{
		"scanned": len(objects),
		"found":   len(items),
	}).Info("discovered audio work items")
	return items, nil
}

func (s *StoreSource) audioURL(path string) string {
	if s.audioBaseURL == "" {
		return ""
	}
	url := s.audioBaseURL + "/" + strings.TrimLeft(path, "/")
	if s.sasToken != "" {
		separator := "?"
		if strings.Contains(url, "?") {
			separator = "&"
		}
		url += separator + s.sasToken
	}
	return url
}

func excluded(path string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isAudio(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range audioExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// ResolveAudioURL fills in a missing AudioURL from a base URL and
// appends the SAS token when provided. Items that already carry a URL
// only get the token appended.
func ResolveAudioURL(item types.WorkItem, baseURL, sasToken string) types.WorkItem {
	if item.AudioURL == "" && baseURL != "" {
		item.AudioURL = strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(item.SourcePath, "/")
	}
	if item.AudioURL != "" && sasToken != "" && !strings.Contains(item.AudioURL, sasToken) {
		separator := "?"
		if strings.Contains(item.AudioURL, "?") {
			separator = "&"
		}
		item.AudioURL += separator + sasToken
	}
	return item
}
