package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"autoqa-transcripts/internal/logger"
	"autoqa-transcripts/internal/storage"
)

// Statistics summarizes pipeline progress as visible in storage.
type Statistics struct {
	TotalAudioFiles   int     `json:"total_audio_files"`
	TranscribedFiles  int     `json:"transcribed_files"`
	PendingFiles      int     `json:"pending_files"`
	CompletionPercent float64 `json:"completion_percent"`
}

// Handler serves the read-only progress API over the transcript store.
type Handler struct {
	store storage.Store
	log   *logger.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(store storage.Store) *Handler {
	return &Handler{store: store, log: logger.New()}
}

// Register installs the API routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", h.handleHealth)
	mux.HandleFunc("/api/statistics", h.handleStatistics)
	mux.HandleFunc("/api/files/pending", h.handlePendingFiles)
	mux.HandleFunc("/api/files/transcripts", h.handleTranscripts)
	mux.HandleFunc("/api/recent-activity", h.handleRecentActivity)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) handleStatistics(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "statistics")

	audio, transcripts, err := h.scan(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("failed to scan store")
		http.Error(w, "failed to read storage", http.StatusInternalServerError)
		return
	}

	stats := Statistics{
		TotalAudioFiles:  len(audio) + len(transcripts),
		TranscribedFiles: len(transcripts),
		PendingFiles:     len(audio),
	}
	if stats.TotalAudioFiles > 0 {
		stats.CompletionPercent = float64(stats.TranscribedFiles) / float64(stats.TotalAudioFiles) * 100
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) handlePendingFiles(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "pending_files")

	audio, _, err := h.scan(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("failed to scan store")
		http.Error(w, "failed to read storage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(audio),
		"files": limitObjects(audio, 100),
	})
}

func (h *Handler) handleTranscripts(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "transcripts")

	_, transcripts, err := h.scan(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("failed to scan store")
		http.Error(w, "failed to read storage", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(transcripts),
		"files": limitObjects(transcripts, 100),
	})
}

func (h *Handler) handleRecentActivity(w http.ResponseWriter, r *http.Request) {
	reqLog := h.log.WithRequest(r).WithField("handler", "recent_activity")

	_, transcripts, err := h.scan(r.Context())
	if err != nil {
		reqLog.WithError(err).Error("failed to scan store")
		http.Error(w, "failed to read storage", http.StatusInternalServerError)
		return
	}

	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].Modified.After(transcripts[j].Modified)
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"recent": limitObjects(transcripts, 20),
	})
}

// scan splits store contents into pending audio objects and completed
// formatted transcripts.
func (h *Handler) scan(ctx context.Context) (audio, transcripts []storage.ObjectInfo, err error) {
	objects, err := h.store.List(ctx, "")
	if err != nil {
		return nil, nil, err
	}

	for _, obj := range objects {
		lower := strings.ToLower(obj.Path)
		switch {
		case strings.HasPrefix(obj.Path, storage.TranscriptFolder+"/"):
			if strings.HasSuffix(lower, ".txt") {
				transcripts = append(transcripts, obj)
			}
		case strings.HasPrefix(obj.Path, "Archive/") || strings.HasPrefix(obj.Path, "Processed/"):
		case strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".mp3") || strings.HasSuffix(lower, ".m4a"):
			audio = append(audio, obj)
		}
	}
	return audio, transcripts, nil
}

func limitObjects(objects []storage.ObjectInfo, n int) []storage.ObjectInfo {
	if len(objects) > n {
		return objects[:n]
	}
	return objects
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		logger.New().WithError(err).WithField("component", "dashboard").Error("failed to write response")
	}
}
