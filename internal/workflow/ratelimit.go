package workflow

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"autoqa-transcripts/internal/logger"
)

// submissionLimiter spaces submissions below an hourly cap using a
// sliding window, with a minimum delay between consecutive submissions
// to smooth out the rate. All waits honor context cancellation.
type submissionLimiter struct {
	maxPerHour int
	minDelay   time.Duration
	window     []time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
	log   *logrus.Entry
}

func newSubmissionLimiter(maxPerHour int) *submissionLimiter {
	minDelay := time.Second
	if maxPerHour > 0 {
		perSubmission := time.Hour / time.Duration(maxPerHour)
		if perSubmission > minDelay {
			minDelay = perSubmission
		}
	}
	return &submissionLimiter{
		maxPerHour: maxPerHour,
		minDelay:   minDelay,
		now:        time.Now,
		sleep:      sleepCtx,
		log:        logger.New().WithField("component", "rate_limiter"),
	}
}

// Wait blocks until the next submission is allowed and records it.
func (l *submissionLimiter) Wait(ctx context.Context) error {
	if l.maxPerHour <= 0 {
		return nil
	}

	now := l.now()
	l.prune(now)

	if len(l.window) >= l.maxPerHour {
		oldest := l.window[0]
		wait := time.Hour - now.Sub(oldest) + time.Second
		if wait > 0 {
			l.log.WithFields(logrus.Fields{
				"in_window":    len(l.window),
				"max_per_hour": l.maxPerHour,
				"wait":         wait.Round(time.Second).String(),
			}).Info("hourly submission limit reached, waiting")
			if err := l.sleep(ctx, wait); err != nil {
				return err
			}
			l.prune(l.now())
		}
	}

	l.window = append(l.window, l.now())
	return l.sleep(ctx, l.minDelay)
}

func (l *submissionLimiter) prune(now time.Time) {
	keep := l.window[:0]
	for _, t := range l.window {
		if now.Sub(t) < time.Hour {
			keep = append(keep, t)
		}
	}
	l.window = keep
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
