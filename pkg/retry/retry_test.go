package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
)

func fast(attempts int) Policy {
	return Policy{Attempts: attempts, BaseDelay: time.Millisecond, Multiplier: 2}
}

func TestDoRetriesNetworkErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(3), func(context.Context) error {
		calls++
		if calls < 3 {
			return domain.ErrStoreUnavailable
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoFailsFastOnPermissionAndValidation(t *testing.T) {
	for _, want := range []error{domain.ErrNotOwner, domain.ErrInvalidPayload} {
		calls := 0
		err := Do(context.Background(), fast(3), func(context.Context) error {
			calls++
			return want
		})
		assert.ErrorIs(t, err, want)
		assert.Equal(t, 1, calls)
	}
}

func TestDoReturnsLastError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fast(2), func(context.Context) error {
		calls++
		return domain.ErrTxAborted
	})
	assert.ErrorIs(t, err, domain.ErrTxAborted)
	assert.Equal(t, 2, calls)
}

func TestRetryIfNarrowsToConcurrency(t *testing.T) {
	p := fast(2)
	p.RetryIf = IsConcurrency

	calls := 0
	err := Do(context.Background(), p, func(context.Context) error {
		calls++
		return domain.ErrStoreUnavailable
	})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, Policy{Attempts: 5, BaseDelay: time.Hour}, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDelayIsExponentialAndCapped(t *testing.T) {
	p := Policy{BaseDelay: 500 * time.Millisecond, Multiplier: 2, MaxDelay: time.Second}
	assert.Equal(t, 500*time.Millisecond, p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, time.Second, p.Delay(4))
}

func TestPresets(t *testing.T) {
	d := Default()
	assert.Equal(t, 3, d.Attempts)
	assert.Equal(t, time.Second, d.BaseDelay)

	s := Subtask()
	assert.Equal(t, 3, s.Attempts)
	assert.Equal(t, 500*time.Millisecond, s.BaseDelay)
	assert.True(t, s.RetryIf(domain.ErrTxAborted))
	assert.False(t, s.RetryIf(domain.ErrStoreUnavailable))
}
