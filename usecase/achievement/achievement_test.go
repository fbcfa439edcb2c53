package achievement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/testutil"
)

func setup(t *testing.T) (*UseCase, *testutil.Stores, *testutil.RecordingNotifier) {
	t.Helper()
	stores := testutil.NewStores(t)
	notifier := &testutil.RecordingNotifier{}
	return New(stores.Users, stores.Ledger, notifier, nil), stores, notifier
}

func TestAddPointsUpdatesLevelAndLedger(t *testing.T) {
	uc, stores, _ := setup(t)
	stores.SeedUser(t, "alice")
	ctx := context.Background()

	user, err := uc.AddPoints(ctx, "alice", 150, "bonus")
	require.NoError(t, err)
	assert.Equal(t, 150, user.Points)
	assert.Equal(t, 1, user.Level)

	history, err := uc.History(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "bonus", history[0].Reason)

	_, err = uc.AddPoints(ctx, "alice", -1, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidPoints)
}

func TestApplyAwardIsIdempotent(t *testing.T) {
	uc, stores, _ := setup(t)
	stores.SeedUser(t, "bob")
	ctx := context.Background()

	award := domain.Award{Key: "alice/t1", UserID: "bob", Points: 5, Collaborator: true, BeforeDueDate: true}
	applied, err := uc.ApplyAward(ctx, award)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = uc.ApplyAward(ctx, award)
	require.NoError(t, err)
	assert.False(t, applied)

	bob := stores.MustUser(t, "bob")
	assert.Equal(t, 5, bob.Points)
	assert.Equal(t, domain.Stats{TasksCompleted: 1, TasksBeforeDeadline: 1, HelpedFriends: 1}, bob.Stats)
	assert.Equal(t, []string{"alice/t1"}, bob.AwardedTasks)
}

func TestUnlockOnceAndNotify(t *testing.T) {
	uc, stores, notifier := setup(t)
	stores.SeedUser(t, "alice")
	ctx := context.Background()

	_, err := uc.UpdateStats(ctx, "alice", domain.RequireTasksCompleted, 1, true)
	require.NoError(t, err)

	unlocked, err := uc.CheckAndUnlockAchievements(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"first-task"}, unlocked)

	unlocked, err = uc.CheckAndUnlockAchievements(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, unlocked)

	alice := stores.MustUser(t, "alice")
	assert.Equal(t, []string{"first-task"}, alice.Achievements)
	assert.Len(t, notifier.To("alice"), 1)
}

func TestUnnotifiedAchievements(t *testing.T) {
	uc, stores, _ := setup(t)
	stores.SeedUser(t, "alice")
	ctx := context.Background()

	_, err := uc.AddPoints(ctx, "alice", 100, "seed")
	require.NoError(t, err)
	_, err = uc.CheckAndUnlockAchievements(ctx, "alice")
	require.NoError(t, err)

	pending, err := uc.GetUnnotifiedAchievements(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "story-master", pending[0].ID)

	require.NoError(t, uc.MarkAchievementAsNotified(ctx, "alice", "story-master"))
	require.NoError(t, uc.MarkAchievementAsNotified(ctx, "alice", "story-master"))

	pending, err = uc.GetUnnotifiedAchievements(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, pending)

	status := stores.MustUser(t, "alice").AchievementNotifications["story-master"]
	assert.True(t, status.Notified)
	assert.NotNil(t, status.NotifiedAt)
}

func TestUpdateStatsSetAndUnknown(t *testing.T) {
	uc, stores, _ := setup(t)
	stores.SeedUser(t, "alice")
	ctx := context.Background()

	user, err := uc.UpdateStats(ctx, "alice", domain.RequireHelpedFriends, 7, false)
	require.NoError(t, err)
	assert.Equal(t, 7, user.Stats.HelpedFriends)

	_, err = uc.UpdateStats(ctx, "alice", domain.RequirePoints, 1, true)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestProgressAndCatalog(t *testing.T) {
	uc, stores, _ := setup(t)
	stores.SeedUser(t, "alice")
	ctx := context.Background()

	_, err := uc.AddPoints(ctx, "alice", 250, "seed")
	require.NoError(t, err)

	progress, err := uc.GetProgress(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, progress.Level)
	assert.Equal(t, 400, progress.PointsForNextLevel)
	assert.Equal(t, 150, progress.PointsToNextLevel)

	_, err = uc.CheckAndUnlockAchievements(ctx, "alice")
	require.NoError(t, err)
	catalog, err := uc.ListAchievements(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, catalog, len(domain.Achievements))
	for _, s := range catalog {
		assert.Equal(t, s.ID == "story-master", s.Unlocked, s.ID)
	}
}
