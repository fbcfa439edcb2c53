package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
)

func TestOpenIsIdempotentAndCloseTearsDown(t *testing.T) {
	m := NewManager(nil, nil)

	s, created := m.Open("alice")
	require.True(t, created)
	again, created := m.Open("alice")
	assert.False(t, created)
	assert.Same(t, s, again)

	stopped := 0
	s.Track("own-tasks", func() { stopped++ })
	s.Track("shared-tasks", func() { stopped++ })
	assert.Equal(t, 2, s.Listeners())

	require.NoError(t, m.Close(context.Background(), "alice"))
	assert.Equal(t, 2, stopped)
	assert.Zero(t, s.Listeners())

	_, ok := m.Get("alice")
	assert.False(t, ok)
	require.NoError(t, m.Close(context.Background(), "alice"))
}

func TestActiveAndCloseAll(t *testing.T) {
	m := NewManager(nil, nil)
	m.Open("bob")
	m.Open("alice")
	assert.Equal(t, []string{"alice", "bob"}, m.Active())

	require.NoError(t, m.CloseAll(context.Background()))
	assert.Empty(t, m.Active())
}

func task(owner, id string, created time.Time) domain.Task {
	return domain.Task{ID: id, OwnerID: owner, CreatedAt: created}
}

func TestViewReplaceSharedDropsUnsharedTasks(t *testing.T) {
	v := NewView()
	base := time.Now()
	v.ReplaceOwned("alice", []domain.Task{task("alice", "a1", base)})
	v.ReplaceShared("alice", []domain.Task{task("bob", "b1", base), task("carol", "c1", base.Add(time.Second))})
	assert.Equal(t, 3, v.Len())

	v.ReplaceShared("alice", []domain.Task{task("carol", "c1", base.Add(time.Second))})
	shared := v.Shared("alice")
	require.Len(t, shared, 1)
	assert.Equal(t, "c1", shared[0].ID)
	assert.Len(t, v.Owned("alice"), 1)
}

func TestViewPatchRevert(t *testing.T) {
	v := NewView()
	v.Put(task("alice", "a1", time.Now()))

	revert, ok := v.Patch("alice", "a1", func(tk *domain.Task) { tk.Finalized = true })
	require.True(t, ok)
	got, _ := v.Get("alice", "a1")
	assert.True(t, got.Finalized)

	revert()
	got, _ = v.Get("alice", "a1")
	assert.False(t, got.Finalized)

	_, ok = v.Patch("alice", "missing", func(*domain.Task) {})
	assert.False(t, ok)
}
