package realtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
)

func TestHubDeliversPerTopic(t *testing.T) {
	hub := NewHub(nil)
	var alice, bob []domain.TaskChange
	stopAlice := hub.Subscribe("alice", func(c domain.TaskChange) { alice = append(alice, c) })
	hub.Subscribe("bob", func(c domain.TaskChange) { bob = append(bob, c) })

	require.NoError(t, hub.Publish(context.Background(), domain.TaskChange{Type: domain.ChangeAdded, OwnerID: "alice"}))
	assert.Len(t, alice, 1)
	assert.Empty(t, bob)

	stopAlice()
	stopAlice()
	assert.Zero(t, hub.Subscribers("alice"))
	require.NoError(t, hub.Publish(context.Background(), domain.TaskChange{OwnerID: "alice"}))
	assert.Len(t, alice, 1)
	assert.Equal(t, 1, hub.Subscribers("bob"))
}

func TestHubSurvivesPanickingHandler(t *testing.T) {
	hub := NewHub(nil)
	delivered := 0
	hub.Subscribe("alice", func(domain.TaskChange) { panic("boom") })
	hub.Subscribe("alice", func(domain.TaskChange) { delivered++ })

	require.NoError(t, hub.Publish(context.Background(), domain.TaskChange{OwnerID: "alice"}))
	assert.Equal(t, 1, delivered)
}

func TestHandlersMayUnsubscribeDuringPublish(t *testing.T) {
	hub := NewHub(nil)
	var stop func()
	calls := 0
	stop = hub.Subscribe("alice", func(domain.TaskChange) {
		calls++
		stop()
	})

	require.NoError(t, hub.Publish(context.Background(), domain.TaskChange{OwnerID: "alice"}))
	require.NoError(t, hub.Publish(context.Background(), domain.TaskChange{OwnerID: "alice"}))
	assert.Equal(t, 1, calls)
}
