package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fixedSize int

func (f fixedSize) Size() (int, error) { return int(f), nil }

func TestRefreshFiresReconnectOnlyOnTransition(t *testing.T) {
	var down bool
	store := Check{Name: "store", Ping: func(context.Context) error {
		if down {
			return errors.New("dial tcp: refused")
		}
		return nil
	}}
	m := New([]Check{store}, fixedSize(4), 0, nil)

	reconnects := 0
	m.OnReconnect(func() { reconnects++ })

	status := m.Refresh()
	assert.True(t, status.Online)
	assert.Equal(t, 4, status.BufferSize)
	assert.Zero(t, reconnects)

	down = true
	assert.False(t, m.Refresh().Online)
	assert.False(t, m.IsOnline())
	assert.False(t, m.GetStatus().Services["store"])

	down = false
	m.Refresh()
	m.Refresh()
	assert.Equal(t, 1, reconnects)
	assert.True(t, m.IsOnline())
}

func TestAllChecksMustPass(t *testing.T) {
	m := New([]Check{
		{Name: "a", Ping: func(context.Context) error { return nil }},
		{Name: "b"},
	}, nil, 0, nil)

	status := m.Refresh()
	assert.False(t, status.Online)
	assert.True(t, status.Services["a"])
	assert.False(t, status.Buffer)
	m.Stop()
	m.Stop()
}
