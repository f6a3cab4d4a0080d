package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Policy configures exponential backoff for a storage call.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Logger    *zap.Logger
	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is invoked before each backoff wait.
	OnRetry func(attempt int, err error)
}

// Classifier reports whether an error is worth retrying.
type Classifier func(error) bool

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Minute
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Sleep == nil {
		p.Sleep = sleep
	}
	return p
}

// Delay returns the wait before the retry following the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	return p.normalized().BaseDelay << uint(attempt)
}

// Budget is the longest total backoff Do can wait before giving up.
func (p Policy) Budget() time.Duration {
	p = p.normalized()
	var total time.Duration
	for attempt := 0; attempt < p.Attempts-1; attempt++ {
		total += p.BaseDelay << uint(attempt)
	}
	return total
}

// Do runs fn until it succeeds, returns a terminal error, or the attempts run out.
// The last error is returned unchanged so callers can classify it.
func Do(ctx context.Context, policy Policy, retryable Classifier, fn func(context.Context) error) error {
	policy = policy.normalized()

	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if retryable == nil || !retryable(err) || attempt == policy.Attempts-1 {
			return err
		}

		delay := policy.BaseDelay << uint(attempt)
		policy.Logger.Sugar().Warnw("storage call rate limited, retrying", "attempt", attempt+1, "delay", delay.String(), "error", err)
		if policy.OnRetry != nil {
			policy.OnRetry(attempt+1, err)
		}
		if serr := policy.Sleep(ctx, delay); serr != nil {
			return fmt.Errorf("retry aborted: %w", serr)
		}
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
