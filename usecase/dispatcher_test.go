package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
)

func TestExecuteRevertsOnRemoteFailure(t *testing.T) {
	exec := NewExecutor()
	state := "open"

	err := exec.Execute(context.Background(), Command{
		Apply:  func() { state = "finalized" },
		Revert: func() { state = "open" },
		Remote: func(context.Context) error { return errors.New("offline") },
	})
	require.Error(t, err)
	assert.Equal(t, "open", state)
}

func TestExecuteKeepsLocalChangeOnSuccess(t *testing.T) {
	exec := NewExecutor()
	state := "open"

	err := exec.Execute(context.Background(), Command{
		Apply:  func() { state = "finalized" },
		Revert: func() { state = "open" },
		Remote: func(context.Context) error { return nil },
	})
	require.NoError(t, err)
	assert.Equal(t, "finalized", state)
}

func TestExecuteRejectsDuplicateInFlight(t *testing.T) {
	exec := NewExecutor()
	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error)

	go func() {
		done <- exec.Execute(context.Background(), Command{
			Key: "u1:t1",
			Remote: func(context.Context) error {
				close(entered)
				<-release
				return nil
			},
		})
	}()
	<-entered

	assert.True(t, exec.InFlight("u1:t1"))
	err := exec.Execute(context.Background(), Command{Key: "u1:t1", Remote: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, domain.ErrInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, exec.InFlight("u1:t1"))
}
