package types

// WorkItem is one audio recording to transcribe. Identity is SourcePath;
// items are immutable once read from a metadata source.
type WorkItem struct {
	SourcePath     string `json:"source_path"`
	AudioURL       string `json:"audio_url,omitempty"`
	Direction      string `json:"direction,omitempty"`
	EvaluationDate string `json:"evaluation_date,omitempty"`
}

// FailureReason classifies why an item failed to produce a transcript.
type FailureReason string

const (
	ReasonRateLimited        FailureReason = "rate_limited"
	ReasonSubmissionFailed   FailureReason = "submission_failed"
	ReasonTranscriptionError FailureReason = "transcription_error"
	ReasonTimeout            FailureReason = "timeout"
	ReasonFormatFailed       FailureReason = "format_failed"
	ReasonStorageWriteFailed FailureReason = "storage_write_failed"
	ReasonException          FailureReason = "exception"
)

// ProcessingOutcome is the per-item result of one workflow pass.
type ProcessingOutcome struct {
	SourcePath     string        `json:"source_path"`
	AudioURL       string        `json:"audio_url,omitempty"`
	Success        bool          `json:"success"`
	Reason         FailureReason `json:"reason,omitempty"`
	Error          string        `json:"error,omitempty"`
	TranscriptPath string        `json:"transcript_path,omitempty"`
}

// RunSummary aggregates outcomes for one sequential run.
type RunSummary struct {
	RunID     string              `json:"run_id"`
	Total     int                 `json:"total"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Outcomes  []ProcessingOutcome `json:"outcomes"`
}
