package sqlite_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/testutil"
	"github.com/fastygo/taskboard/repository"
)

func TestUpdateAbortsOnConcurrentWrite(t *testing.T) {
	stores := testutil.NewStores(t)
	task := stores.SeedTask(t, "alice")
	ctx := context.Background()

	_, err := stores.Tasks.Update(ctx, "alice", task.ID, func(outer *domain.Task) error {
		_, err := stores.Tasks.Update(ctx, "alice", task.ID, func(inner *domain.Task) error {
			inner.Subtasks[1].Completed = true
			return nil
		})
		require.NoError(t, err)
		outer.Subtasks[0].Completed = true
		return nil
	})
	assert.ErrorIs(t, err, domain.ErrTxAborted)
	assert.Equal(t, domain.KindConcurrency, domain.KindOf(err))

	stored := stores.MustTask(t, "alice", task.ID)
	assert.False(t, stored.Subtasks[0].Completed)
	assert.True(t, stored.Subtasks[1].Completed)
	assert.Equal(t, int64(2), stored.Version)
}

func TestUpdateMutationErrorLeavesTaskUntouched(t *testing.T) {
	stores := testutil.NewStores(t)
	task := stores.SeedTask(t, "alice")

	_, err := stores.Tasks.Update(context.Background(), "alice", task.ID, func(tk *domain.Task) error {
		tk.Name = "changed"
		return domain.ErrNotCollaborator
	})
	assert.ErrorIs(t, err, domain.ErrNotCollaborator)
	assert.Equal(t, "story", stores.MustTask(t, "alice", task.ID).Name)

	_, err = stores.Tasks.Update(context.Background(), "alice", "missing", func(*domain.Task) error { return nil })
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestReadsHealCorruptFinalizedFlag(t *testing.T) {
	stores := testutil.NewStores(t)
	task := stores.SeedTask(t, "alice", func(tk *domain.Task) { tk.Finalized = true })
	ctx := context.Background()

	listed, err := stores.Tasks.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.False(t, listed[0].Finalized)

	var version int64
	require.NoError(t, stores.DB.Raw("SELECT version FROM tasks WHERE id = ?", task.ID).Scan(&version).Error)
	assert.Equal(t, int64(2), version)
	assert.False(t, stores.MustTask(t, "alice", task.ID).Finalized)
}

func TestListSharedWithMatchesWholeIDs(t *testing.T) {
	stores := testutil.NewStores(t)
	stores.SeedTask(t, "alice", testutil.SharedWith("bob"))
	stores.SeedTask(t, "alice", testutil.SharedWith("bobby", "carol"))
	stores.SeedTask(t, "alice")
	stores.SeedTask(t, "dave", testutil.SharedWith("bob"))

	shared, err := stores.Tasks.ListSharedWith(context.Background(), "alice", "bob")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, []string{"bob"}, shared[0].SharedWith)

	shared, err = stores.Tasks.ListSharedWith(context.Background(), "alice", "carol")
	require.NoError(t, err)
	assert.Len(t, shared, 1)

	for _, id := range []string{"b_b", "%", "_", "bo%", `b\`} {
		shared, err = stores.Tasks.ListSharedWith(context.Background(), "alice", id)
		require.NoError(t, err)
		assert.Empty(t, shared, id)
	}

	stores.SeedTask(t, "alice", testutil.SharedWith("b_b"))
	shared, err = stores.Tasks.ListSharedWith(context.Background(), "alice", "b_b")
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, []string{"b_b"}, shared[0].SharedWith)
}

func TestDeleteTask(t *testing.T) {
	stores := testutil.NewStores(t)
	task := stores.SeedTask(t, "alice")
	ctx := context.Background()

	assert.ErrorIs(t, stores.Tasks.Delete(ctx, "bob", task.ID), domain.ErrTaskNotFound)
	require.NoError(t, stores.Tasks.Delete(ctx, "alice", task.ID))
	_, err := stores.Tasks.Get(ctx, "alice", task.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestNotificationsKeepNewestTen(t *testing.T) {
	stores := testutil.NewStores(t)
	ctx := context.Background()
	for i := 0; i < 13; i++ {
		require.NoError(t, stores.Notifications.Create(ctx, &domain.Notification{
			UserID: "alice",
			Type:   domain.NotificationAchievement,
			Title:  fmt.Sprintf("n%d", i),
		}))
	}
	require.NoError(t, stores.Notifications.Create(ctx, &domain.Notification{UserID: "bob", Title: "other"}))

	notes, err := stores.Notifications.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, notes, domain.MaxNotificationsPerUser)
	assert.Equal(t, "n12", notes[0].Title)
	assert.Equal(t, "n3", notes[len(notes)-1].Title)

	bob, err := stores.Notifications.List(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bob, 1)
}

func TestFriendRequestFilters(t *testing.T) {
	stores := testutil.NewStores(t)
	ctx := context.Background()
	require.NoError(t, stores.Requests.Create(ctx, &domain.FriendRequest{From: "alice", To: "bob"}))
	require.NoError(t, stores.Requests.Create(ctx, &domain.FriendRequest{From: "carol", To: "alice"}))
	require.NoError(t, stores.Requests.Create(ctx, &domain.FriendRequest{From: "bob", To: "carol"}))

	party, err := stores.Requests.Find(ctx, repository.FriendRequestFilter{Party: "alice"})
	require.NoError(t, err)
	assert.Len(t, party, 2)

	to, err := stores.Requests.Find(ctx, repository.FriendRequestFilter{To: "carol"})
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, domain.RequestPending, to[0].Status)
}

func TestUserUpdateKeepsLevelInStep(t *testing.T) {
	stores := testutil.NewStores(t)
	stores.SeedUser(t, "alice")
	ctx := context.Background()

	updated, err := stores.Users.Update(ctx, "alice", func(u *domain.User) error {
		u.Points = 400
		u.Level = domain.CalculateLevel(u.Points)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Level)

	byEmail, err := stores.Users.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, 400, byEmail.Points)
	assert.Greater(t, byEmail.Version, int64(1))
}
