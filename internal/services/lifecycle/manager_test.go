package lifecycle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownRunsHooksInReverse(t *testing.T) {
	m := New(0, nil)
	var order []string
	m.Register("db", func(context.Context) error { order = append(order, "db"); return nil })
	m.Register("http", func(context.Context) error { order = append(order, "http"); return nil })

	require.NoError(t, m.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "db"}, order)
}

func TestReleaseOnlyTouchesGroup(t *testing.T) {
	m := New(0, nil)
	var stopped []string
	m.RegisterIn("alice", "shared", func(context.Context) error { stopped = append(stopped, "alice/shared"); return nil })
	m.RegisterIn("alice", "own", func(context.Context) error { stopped = append(stopped, "alice/own"); return nil })
	m.RegisterIn("bob", "own", func(context.Context) error { stopped = append(stopped, "bob/own"); return nil })

	require.NoError(t, m.Release(context.Background(), "alice"))
	assert.Equal(t, []string{"alice/own", "alice/shared"}, stopped)
	assert.Zero(t, m.Size("alice"))
	assert.Equal(t, 1, m.Size("bob"))

	require.NoError(t, m.Release(context.Background(), "alice"))
	assert.Len(t, stopped, 2)
}

func TestShutdownReleasesGroupsAndJoinsErrors(t *testing.T) {
	m := New(0, nil)
	boom := errors.New("boom")
	released := false
	m.RegisterIn("bob", "own", func(context.Context) error { released = true; return nil })
	m.Register("broken", func(context.Context) error { return boom })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, released)
	assert.Zero(t, m.Size("bob"))
}
