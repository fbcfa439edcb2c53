package services

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/internal/testutil"
	"github.com/fastygo/taskboard/usecase"
	"github.com/fastygo/taskboard/usecase/achievement"
)

type switchableHealth struct{ online atomic.Bool }

func (h *switchableHealth) IsOnline() bool { return h.online.Load() }

type processorFixture struct {
	stores    *testutil.Stores
	tasks     *testutil.FlakyTasks
	health    *switchableHealth
	processor *BufferProcessor
	bridge    *BufferBridge
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	stores := testutil.NewStores(t)
	store, err := buffer.Open(filepath.Join(t.TempDir(), "buffer.db"), "operations", 100)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	tasks := &testutil.FlakyTasks{TaskRepository: stores.Tasks}
	health := &switchableHealth{}
	processor := NewBufferProcessor(store, health, stores.Users, tasks,
		achievement.New(stores.Users, stores.Ledger, nil, nil), nil,
		ProcessorConfig{Interval: time.Second, MaxRetries: 3})

	return &processorFixture{
		stores:    stores,
		tasks:     tasks,
		health:    health,
		processor: processor,
		bridge:    NewBufferBridge(processor),
	}
}

func TestDrainReplaysTaskWritesInOrder(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")

	task := &domain.Task{
		OwnerID:  "alice",
		Name:     "draft",
		Subtasks: []domain.Subtask{{Text: "write"}, {Text: "ship"}},
	}
	require.NoError(t, f.bridge.BufferTask(ctx, usecase.OperationCreate, task))
	require.NotEmpty(t, task.ID)

	tick := domain.TaskEdit{OwnerID: "alice", TaskID: task.ID, ActorID: "alice", Kind: domain.EditSubtask, Index: 1, Completed: true}
	require.NoError(t, f.bridge.BufferTaskEdit(ctx, tick))
	assert.Equal(t, 2, f.processor.Size())

	require.NoError(t, f.processor.Drain(ctx))
	assert.Equal(t, 2, f.processor.Size(), "offline drain is a no-op")

	f.health.online.Store(true)
	require.NoError(t, f.processor.Drain(ctx))
	assert.Zero(t, f.processor.Size())
	stored := f.stores.MustTask(t, "alice", task.ID)
	assert.False(t, stored.Subtasks[0].Completed)
	assert.True(t, stored.Subtasks[1].Completed)
	assert.Equal(t, "alice", stored.LastModifiedBy)
}

func TestReplayedEditKeepsConcurrentChanges(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")
	seeded := f.stores.SeedTask(t, "alice", testutil.SharedWith("bob", "carol"))

	// alice ticks a subtask while the store is away
	require.NoError(t, f.bridge.BufferTaskEdit(ctx, domain.TaskEdit{
		OwnerID: "alice", TaskID: seeded.ID, ActorID: "alice",
		Kind: domain.EditSubtask, Index: 0, Completed: true,
	}))

	// meanwhile bob comments and alice unshares carol from another device
	_, err := f.stores.Tasks.Update(ctx, "alice", seeded.ID, func(task *domain.Task) error {
		task.Comments = append(task.Comments, domain.Comment{ID: "c1", UID: "bob", Text: "on it"})
		return nil
	})
	require.NoError(t, err)
	_, err = f.stores.Tasks.Update(ctx, "alice", seeded.ID, func(task *domain.Task) error {
		task.SharedWith = []string{"bob"}
		task.RecomputeVisibility()
		return nil
	})
	require.NoError(t, err)

	f.health.online.Store(true)
	require.NoError(t, f.processor.Drain(ctx))
	assert.Zero(t, f.processor.Size())

	stored := f.stores.MustTask(t, "alice", seeded.ID)
	assert.True(t, stored.Subtasks[0].Completed)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "on it", stored.Comments[0].Text)
	assert.Equal(t, []string{"bob"}, stored.SharedWith)
}

func TestReplayingAnEditTwiceIsHarmless(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")
	seeded := f.stores.SeedTask(t, "alice")

	edit := domain.TaskEdit{OwnerID: "alice", TaskID: seeded.ID, ActorID: "alice", Kind: domain.EditSubtask, Index: 0, Completed: true}
	item := buffer.Item{Entity: buffer.EntityTask, Operation: buffer.OperationUpdate, Key: edit.Key()}
	payload, err := json.Marshal(edit)
	require.NoError(t, err)
	item.Data = payload

	require.NoError(t, f.processor.processItem(ctx, item))
	require.NoError(t, f.processor.processItem(ctx, item))
	assert.True(t, f.stores.MustTask(t, "alice", seeded.ID).Subtasks[0].Completed)
}

func TestReplayedEditByFormerCollaboratorIsDropped(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")
	seeded := f.stores.SeedTask(t, "alice")

	require.NoError(t, f.bridge.BufferTaskEdit(ctx, domain.TaskEdit{
		OwnerID: "alice", TaskID: seeded.ID, ActorID: "carol",
		Kind: domain.EditSubtask, Index: 0, Completed: true,
	}))
	f.health.online.Store(true)
	require.NoError(t, f.processor.Drain(ctx))

	assert.Zero(t, f.processor.Size())
	assert.False(t, f.stores.MustTask(t, "alice", seeded.ID).Subtasks[0].Completed)
}

func TestBufferOperationWritesThroughWhenOnline(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")
	f.health.online.Store(true)

	user := &domain.User{ID: "alice", DisplayName: "Alice A."}
	require.NoError(t, f.bridge.BufferProfile(ctx, usecase.OperationUpdate, user))

	assert.Zero(t, f.processor.Size())
	assert.Equal(t, "Alice A.", f.stores.MustUser(t, "alice").DisplayName)
}

func TestDrainRequeuesOnOutage(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")

	task := &domain.Task{OwnerID: "alice", Name: "offline", StoryPoint: 1}
	require.NoError(t, f.bridge.BufferTask(ctx, usecase.OperationCreate, task))

	f.health.online.Store(true)
	f.tasks.Outages = 1
	require.NoError(t, f.processor.Drain(ctx))

	items, err := f.processor.store.GetBatch(10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Retries)

	require.NoError(t, f.processor.Drain(ctx))
	assert.Zero(t, f.processor.Size())
	f.stores.MustTask(t, "alice", task.ID)
}

func TestDrainDropsItemAfterMaxRetries(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")

	require.NoError(t, f.bridge.BufferTask(ctx, usecase.OperationCreate, &domain.Task{OwnerID: "alice", Name: "doomed"}))

	f.health.online.Store(true)
	f.tasks.Outages = 3
	for i := 0; i < 3; i++ {
		require.NoError(t, f.processor.Drain(ctx))
	}
	assert.Zero(t, f.processor.Size())
}

func TestReplayedEditSkipsFinalizedTask(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "alice")
	seeded := f.stores.SeedTask(t, "alice", testutil.Completed(), func(task *domain.Task) {
		now := time.Now().UTC()
		task.Finalized = true
		task.FinalizedAt = &now
	})

	require.NoError(t, f.bridge.BufferTaskEdit(ctx, domain.TaskEdit{
		OwnerID: "alice", TaskID: seeded.ID, ActorID: "alice",
		Kind: domain.EditSubtask, Index: 0, Completed: false,
	}))

	f.health.online.Store(true)
	require.NoError(t, f.processor.Drain(ctx))

	assert.Zero(t, f.processor.Size())
	stored := f.stores.MustTask(t, "alice", seeded.ID)
	assert.True(t, stored.Subtasks[0].Completed)
	assert.True(t, stored.Completed)
}

func TestReplayedDeleteOfMissingTaskSucceeds(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	require.NoError(t, f.bridge.BufferTask(ctx, usecase.OperationDelete, &domain.Task{ID: "gone", OwnerID: "alice"}))
	f.health.online.Store(true)
	require.NoError(t, f.processor.Drain(ctx))
	assert.Zero(t, f.processor.Size())
}

func TestAwardReplayIsIdempotent(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	f.stores.SeedUser(t, "bob")

	award := domain.Award{Key: "alice/t1", UserID: "bob", Points: 5, Reason: "Collaborated on task", Collaborator: true}
	require.NoError(t, f.bridge.BufferAward(ctx, award))
	require.NoError(t, f.bridge.BufferAward(ctx, award))
	assert.Equal(t, 2, f.processor.Size())

	f.health.online.Store(true)
	require.NoError(t, f.processor.Drain(ctx))
	assert.Zero(t, f.processor.Size())

	bob := f.stores.MustUser(t, "bob")
	assert.Equal(t, 5, bob.Points)
	assert.Equal(t, 1, bob.Stats.HelpedFriends)
	assert.Equal(t, []string{"alice/t1"}, bob.AwardedTasks)
}

func TestBridgeRejectsIncompletePayloads(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.bridge.BufferTask(ctx, usecase.OperationCreate, &domain.Task{}), domain.ErrInvalidPayload)
	assert.ErrorIs(t, f.bridge.BufferTask(ctx, usecase.OperationUpdate, &domain.Task{OwnerID: "alice", ID: "t1"}), domain.ErrInvalidPayload)
	assert.ErrorIs(t, f.bridge.BufferTaskEdit(ctx, domain.TaskEdit{OwnerID: "alice", TaskID: "t1"}), domain.ErrInvalidPayload)
	assert.ErrorIs(t, f.bridge.BufferAward(ctx, domain.Award{UserID: "bob"}), domain.ErrInvalidPayload)
	assert.ErrorIs(t, f.bridge.BufferProfile(ctx, usecase.OperationUpdate, nil), domain.ErrInvalidPayload)
}
