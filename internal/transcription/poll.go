package transcription

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"autoqa-transcripts/internal/logger"
)

// PollOptions bound a polling cycle.
type PollOptions struct {
	Delay         time.Duration
	MaxIterations int
	// MaxUnknownPhases caps consecutive UNKNOWN phases before the loop
	// gives up with an ERROR result. 0 keeps the reference behavior of
	// waiting out the full iteration budget.
	MaxUnknownPhases int
}

// PollResult is the terminal outcome of a polling cycle. Phase is one of
// DONE, ERROR or TIMEOUT; LastStatus holds the final raw snapshot. No
// partial results accompany ERROR or TIMEOUT.
type PollResult struct {
	Phase      Phase
	LastStatus Status
	Iterations int
}

// PollUntil runs a bounded wait/query/decide cycle: sleep for the delay,
// query, stop on DONE or ERROR, otherwise keep waiting until the
// iteration cap trips into TIMEOUT. The sleep is the single suspension
// point and honors context cancellation before and during each wait.
func PollUntil(ctx context.Context, opts PollOptions, query func(context.Context) (Status, error)) (PollResult, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 60
	}
	if opts.Delay <= 0 {
		opts.Delay = 20 * time.Second
	}

	var last Status
	unknownStreak := 0

	for iteration := 0; iteration < opts.MaxIterations; iteration++ {
		if err := sleepCtx(ctx, opts.Delay); err != nil {
			return PollResult{Phase: PhaseError, LastStatus: last, Iterations: iteration}, err
		}

		status, err := query(ctx)
		if err != nil {
			return PollResult{Phase: PhaseError, LastStatus: last, Iterations: iteration + 1}, err
		}
		last = status

		switch status.Phase {
		case PhaseDone:
			return PollResult{Phase: PhaseDone, LastStatus: last, Iterations: iteration + 1}, nil
		case PhaseError:
			return PollResult{Phase: PhaseError, LastStatus: last, Iterations: iteration + 1}, nil
		case PhaseUnknown:
			unknownStreak++
			if opts.MaxUnknownPhases > 0 && unknownStreak >= opts.MaxUnknownPhases {
				return PollResult{Phase: PhaseError, LastStatus: last, Iterations: iteration + 1},
					fmt.Errorf("session reported no recognizable phase for %d consecutive polls", unknownStreak)
			}
		default:
			unknownStreak = 0
		}
	}

	return PollResult{Phase: PhaseTimeout, LastStatus: last, Iterations: opts.MaxIterations}, nil
}

// Poller drives the bounded polling state machine for one session.
type Poller struct {
	client  *Client
	options PollOptions
	log     *logrus.Entry
}

// NewPoller creates a poller over the given client.
func NewPoller(client *Client, options PollOptions) *Poller {
	return &Poller{
		client:  client,
		options: options,
		log:     logger.New().WithField("component", "poller"),
	}
}

// Wait polls the session until it reaches a terminal phase or the
// iteration budget runs out.
func (p *Poller) Wait(ctx context.Context, sessionURL string) (PollResult, error) {
	iteration := 0
	result, err := PollUntil(ctx, p.options, func(ctx context.Context) (Status, error) {
		status, err := p.client.FetchStatus(ctx, sessionURL)
		iteration++
		if err == nil {
			p.log.WithFields(logrus.Fields{
				"session_url": sessionURL,
				"iteration":   iteration,
				"max":         p.options.MaxIterations,
				"phase":       status.Phase,
			}).Info("polling transcription session")
		}
		return status, err
	})

	switch result.Phase {
	case PhaseTimeout:
		p.log.WithField("session_url", sessionURL).Error("polling timeout reached")
	case PhaseError:
		p.log.WithField("session_url", sessionURL).Error("transcription session reported error")
	}
	return result, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
