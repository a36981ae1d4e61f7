package transcription

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Phase is the upstream service's coarse status for a session.
type Phase string

const (
	PhaseQueued       Phase = "QUEUED"
	PhaseTranscribing Phase = "TRANSCRIBING"
	PhaseDone         Phase = "DONE"
	PhaseError        Phase = "ERROR"
	PhaseTimeout      Phase = "TIMEOUT"
	PhaseUnknown      Phase = "UNKNOWN"
)

// Terminal reports whether the phase ends a polling cycle.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseError || p == PhaseTimeout
}

// APIError is a non-2xx response from the transcription API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return "transcription API returned status " + strconv.Itoa(e.StatusCode) + ": " + e.Body
}

// SubmitResult is the outcome of submitting one transcription request.
// RateLimited is a distinguished non-error result: the caller must skip
// the item, not retry immediately.
type SubmitResult struct {
	SessionURL  string
	RateLimited bool
}

// Status is one progress snapshot for a session.
type Status struct {
	Phase Phase
	Raw   json.RawMessage
}

// SpeakerID tolerates both string and numeric speaker identifiers in
// transcript payloads.
type SpeakerID string

func (s *SpeakerID) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = SpeakerID(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = SpeakerID(num.String())
	return nil
}

// Utterance is one contiguous speech segment for a single speaker.
// Start is in milliseconds.
type Utterance struct {
	SpeakerID  SpeakerID `json:"speakerId"`
	Transcript string    `json:"transcript"`
	Start      int64     `json:"start"`
}

// Word is one recognized word in the fallback payload shape.
type Word struct {
	SpeakerID SpeakerID `json:"speakerId"`
	Text      string    `json:"text"`
	Start     int64     `json:"start"`
}

// Payload is the raw transcript returned for a completed session.
// Either Utterances or Words may be present; both may be empty for
// silent audio.
type Payload struct {
	Utterances []Utterance `json:"utterances"`
	Words      []Word      `json:"words"`
	Raw        []byte      `json:"-"`
}

type progressResponse struct {
	Progress *struct {
		Phase string `json:"phase"`
	} `json:"progress"`
}

// parsePhase maps a raw phase value onto the Phase enum. Missing or
// empty values are UNKNOWN, never an error: transient null-phase
// responses are expected mid-transcription.
func parsePhase(raw string) Phase {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "":
		return PhaseUnknown
	case "QUEUED":
		return PhaseQueued
	case "TRANSCRIBING":
		return PhaseTranscribing
	case "DONE":
		return PhaseDone
	case "ERROR":
		return PhaseError
	default:
		return Phase(strings.ToUpper(strings.TrimSpace(raw)))
	}
}
