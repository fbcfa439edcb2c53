// Package retry runs store operations with exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/fastygo/taskboard/domain"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Attempts is the total number of calls, including the first one.
	Attempts   int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	// JitterFactor spreads each delay by up to +/- this fraction.
	JitterFactor float64
	// RetryIf narrows which errors are retried. Nil means Retryable.
	RetryIf func(err error) bool
}

// Default is three attempts starting at one second.
func Default() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  time.Second,
		Multiplier: 2,
		MaxDelay:   30 * time.Second,
	}
}

// Subtask is used for concurrent subtask toggles. An aborted transaction is
// retried twice more starting at 500ms; only concurrency aborts are retried.
func Subtask() Policy {
	return Policy{
		Attempts:   3,
		BaseDelay:  500 * time.Millisecond,
		Multiplier: 2,
		MaxDelay:   5 * time.Second,
		RetryIf:    IsConcurrency,
	}
}

// Retryable rejects permission and validation failures; everything else is
// worth another try.
func Retryable(err error) bool {
	switch domain.KindOf(err) {
	case domain.KindPermission, domain.KindValidation:
		return false
	default:
		return true
	}
}

func IsConcurrency(err error) bool {
	return domain.KindOf(err) == domain.KindConcurrency
}

func IsNetwork(err error) bool {
	return domain.KindOf(err) == domain.KindNetwork
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	multiplier := p.Multiplier
	if multiplier <= 0 {
		multiplier = 2
	}
	delay := float64(p.BaseDelay) * math.Pow(multiplier, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		//nolint:gosec // jitter only
		delay += delay * p.JitterFactor * (2*rand.Float64() - 1)
		if delay < 0 {
			delay = float64(p.BaseDelay)
		}
	}
	return time.Duration(delay)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = Retryable
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if !retryIf(err) || attempt == attempts-1 {
			return err
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}
