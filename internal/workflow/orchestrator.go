package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"autoqa-transcripts/internal/logger"
	"autoqa-transcripts/internal/metrics"
	"autoqa-transcripts/internal/transcription"
	"autoqa-transcripts/internal/types"
)

// Submitter covers the transcription API operations the orchestrator
// drives directly.
type Submitter interface {
	Submit(ctx context.Context, audioURL string) (transcription.SubmitResult, error)
	FetchTranscript(ctx context.Context, sessionURL string) (transcription.Payload, error)
}

// SessionWaiter owns the bounded polling cycle for one session.
type SessionWaiter interface {
	Wait(ctx context.Context, sessionURL string) (transcription.PollResult, error)
}

// TranscriptFormatter renders a payload as readable text.
type TranscriptFormatter interface {
	Format(ctx context.Context, payload transcription.Payload) string
}

// TranscriptWriter persists formatted text and returns the storage path.
type TranscriptWriter interface {
	Write(ctx context.Context, text, sourcePath string, raw []byte) (string, error)
}

// Options tune run-level behavior.
type Options struct {
	// AudioBaseURL constructs audio URLs for items that carry only a
	// source path. SASToken is appended to every audio URL when set.
	AudioBaseURL string
	SASToken     string
	// SubmissionsPerHour bounds the upstream submission rate.
	// 0 disables the limiter.
	SubmissionsPerHour int
}

// Orchestrator sequences the per-item transcription state machine:
// submit, poll, fetch, format, write. Strictly one session in flight at
// a time.
type Orchestrator struct {
	client    Submitter
	poller    SessionWaiter
	formatter TranscriptFormatter
	sink      TranscriptWriter
	limiter   *submissionLimiter
	metrics   *metrics.Metrics
	opts      Options
	log       *logrus.Entry
}

// NewOrchestrator wires the workflow. metrics may be nil.
func NewOrchestrator(client Submitter, poller SessionWaiter, formatter TranscriptFormatter, sink TranscriptWriter, m *metrics.Metrics, opts Options) *Orchestrator {
	var limiter *submissionLimiter
	if opts.SubmissionsPerHour > 0 {
		limiter = newSubmissionLimiter(opts.SubmissionsPerHour)
	}
	return &Orchestrator{
		client:    client,
		poller:    poller,
		formatter: formatter,
		sink:      sink,
		limiter:   limiter,
		metrics:   m,
		opts:      opts,
		log:       logger.New().WithField("component", "workflow"),
	}
}

// ProcessItem runs the full state machine for one item. It never panics
// and never surfaces an error to the run loop: every failure along the
// chain is classified into a tagged FAILURE outcome.
func (o *Orchestrator) ProcessItem(ctx context.Context, item types.WorkItem) (outcome types.ProcessingOutcome) {
	outcome = types.ProcessingOutcome{SourcePath: item.SourcePath, AudioURL: item.AudioURL}

	defer func() {
		if r := recover(); r != nil {
			outcome.Success = false
			outcome.Reason = types.ReasonException
			outcome.Error = fmt.Sprintf("panic: %v", r)
			o.log.WithField("source_path", item.SourcePath).Errorf("recovered from panic: %v", r)
		}
	}()

	log := o.log.WithField("source_path", item.SourcePath)

	audioURL, err := o.resolveAudioURL(item)
	if err != nil {
		return o.fail(outcome, types.ReasonException, err)
	}
	outcome.AudioURL = audioURL

	if o.limiter != nil {
		if err := o.limiter.Wait(ctx); err != nil {
			return o.fail(outcome, types.ReasonException, err)
		}
	}

	if o.metrics != nil {
		o.metrics.Submissions.Inc()
	}
	submitted, err := o.client.Submit(ctx, audioURL)
	if err != nil {
		var apiErr *transcription.APIError
		if errors.As(err, &apiErr) {
			return o.fail(outcome, types.ReasonSubmissionFailed, err)
		}
		return o.fail(outcome, types.ReasonException, err)
	}
	if submitted.RateLimited {
		if o.metrics != nil {
			o.metrics.RateLimitRejects.Inc()
		}
		log.Warn("submission rate limited, skipping item")
		return o.fail(outcome, types.ReasonRateLimited, errors.New("rate limited by transcription API"))
	}

	result, err := o.poller.Wait(ctx, submitted.SessionURL)
	if o.metrics != nil {
		o.metrics.PollIterations.Add(float64(result.Iterations))
	}
	switch {
	case result.Phase == transcription.PhaseError:
		if err == nil {
			err = errors.New("transcription session reported ERROR phase")
		}
		return o.fail(outcome, types.ReasonTranscriptionError, err)
	case result.Phase == transcription.PhaseTimeout:
		return o.fail(outcome, types.ReasonTimeout, errors.New("polling iteration budget exhausted"))
	case err != nil:
		return o.fail(outcome, types.ReasonException, err)
	}

	payload, err := o.client.FetchTranscript(ctx, submitted.SessionURL)
	if err != nil {
		return o.fail(outcome, types.ReasonException, err)
	}

	text := o.formatter.Format(ctx, payload)
	if strings.TrimSpace(text) == "" {
		return o.fail(outcome, types.ReasonFormatFailed, errors.New("formatting produced no usable text"))
	}

	path, err := o.sink.Write(ctx, text, item.SourcePath, payload.Raw)
	if err != nil {
		return o.fail(outcome, types.ReasonStorageWriteFailed, err)
	}

	outcome.Success = true
	outcome.TranscriptPath = path
	log.WithField("transcript_path", path).Info("item processed successfully")
	return outcome
}

// Run processes items strictly in the supplied order, one at a time,
// and accumulates success/failure counters. Individual item failures
// never abort the run; only context cancellation stops it early.
func (o *Orchestrator) Run(ctx context.Context, items []types.WorkItem) types.RunSummary {
	summary := types.RunSummary{
		RunID: uuid.New().String(),
		Total: len(items),
	}
	log := o.log.WithField("run_id", summary.RunID)
	log.WithField("total", len(items)).Info("starting transcription run")

	start := time.Now()
	for idx, item := range items {
		if ctx.Err() != nil {
			log.WithField("processed", idx).Warn("run cancelled, stopping")
			summary.Total = idx
			break
		}

		log.WithFields(logrus.Fields{
			"item":        idx + 1,
			"total":       len(items),
			"source_path": item.SourcePath,
		}).Info("processing item")

		if o.metrics != nil {
			o.metrics.ItemsInFlight.Set(1)
		}
		itemStart := time.Now()
		outcome := o.ProcessItem(ctx, item)
		if o.metrics != nil {
			o.metrics.ItemsInFlight.Set(0)
			o.metrics.ItemsProcessed.Inc()
			o.metrics.ProcessingDuration.Observe(time.Since(itemStart).Seconds())
		}

		if outcome.Success {
			summary.Succeeded++
			if o.metrics != nil {
				o.metrics.ItemsSucceeded.Inc()
			}
		} else {
			summary.Failed++
			if o.metrics != nil {
				o.metrics.ItemsFailed.WithLabelValues(string(outcome.Reason)).Inc()
			}
			log.WithFields(logrus.Fields{
				"source_path": item.SourcePath,
				"reason":      outcome.Reason,
				"error":       outcome.Error,
			}).Error("item failed")
		}
		summary.Outcomes = append(summary.Outcomes, outcome)

		if (idx+1)%10 == 0 {
			elapsed := time.Since(start)
			rate := float64(idx+1) / elapsed.Seconds()
			remaining := time.Duration(0)
			if rate > 0 {
				remaining = time.Duration(float64(len(items)-idx-1)/rate) * time.Second
			}
			log.WithFields(logrus.Fields{
				"processed": idx + 1,
				"total":     len(items),
				"succeeded": summary.Succeeded,
				"failed":    summary.Failed,
				"eta":       remaining.Round(time.Minute).String(),
			}).Info("progress")
		}
	}

	log.WithFields(logrus.Fields{
		"total":     summary.Total,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
		"elapsed":   time.Since(start).Round(time.Second).String(),
	}).Info("transcription run complete")
	return summary
}

func (o *Orchestrator) resolveAudioURL(item types.WorkItem) (string, error) {
	audioURL := item.AudioURL
	if audioURL == "" {
		if item.SourcePath == "" {
			return "", errors.New("work item has neither source path nor audio URL")
		}
		if o.opts.AudioBaseURL == "" {
			return "", errors.New("audio base URL not configured for item without audio URL")
		}
		audioURL = strings.TrimRight(o.opts.AudioBaseURL, "/") + "/" + strings.TrimLeft(item.SourcePath, "/")
	}
	if o.opts.SASToken != "" && !strings.Contains(audioURL, o.opts.SASToken) {
		separator := "?"
		if strings.Contains(audioURL, "?") {
			separator = "&"
		}
		audioURL += separator + o.opts.SASToken
	}
	return audioURL, nil
}

func (o *Orchestrator) fail(outcome types.ProcessingOutcome, reason types.FailureReason, err error) types.ProcessingOutcome {
	outcome.Success = false
	outcome.Reason = reason
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}
