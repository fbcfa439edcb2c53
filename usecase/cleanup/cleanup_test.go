package cleanup

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/testutil"
	"github.com/fastygo/taskboard/repository"
)

type observer struct{ calls []string }

func (o *observer) FriendsChanged(_ context.Context, userID string) {
	o.calls = append(o.calls, userID)
}

// failingLookups fails Exists for the listed ids.
type failingLookups struct {
	repository.UserRepository
	fail []string
}

func (f *failingLookups) Exists(ctx context.Context, id string) (bool, error) {
	if slices.Contains(f.fail, id) {
		return false, domain.ErrStoreUnavailable
	}
	return f.UserRepository.Exists(ctx, id)
}

func deleteUser(t *testing.T, stores *testutil.Stores, id string) {
	t.Helper()
	require.NoError(t, stores.DB.Exec("DELETE FROM users WHERE id = ?", id).Error)
}

func seedWorld(t *testing.T) (*testutil.Stores, *domain.Task, *domain.Task) {
	t.Helper()
	stores := testutil.NewStores(t)
	for _, id := range []string{"alice", "bob", "carol", "dave", "eve", "frank"} {
		stores.SeedUser(t, id)
	}
	stores.MakeFriends(t, "alice", "bob")
	stores.MakeFriends(t, "alice", "carol")

	first := stores.SeedTask(t, "alice", testutil.SharedWith("bob", "dave"))
	second := stores.SeedTask(t, "alice", testutil.SharedWith("carol"))

	ctx := context.Background()
	require.NoError(t, stores.Requests.Create(ctx, &domain.FriendRequest{From: "eve", To: "alice"}))
	require.NoError(t, stores.Requests.Create(ctx, &domain.FriendRequest{From: "frank", To: "alice"}))

	deleteUser(t, stores, "bob")
	deleteUser(t, stores, "eve")
	return stores, first, second
}

func TestCleanupUserDataRemovesDanglingReferences(t *testing.T) {
	stores, first, second := seedWorld(t)
	obs := &observer{}
	uc := New(stores.Users, stores.Tasks, stores.Requests, stores.Notifications, obs, nil)
	ctx := context.Background()

	report, err := uc.CleanupUserData(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, Report{
		InvalidFriendsRemoved:       1,
		InvalidCollaboratorsRemoved: 2,
		OrphanedRequestsRemoved:     1,
		TasksUpdated:                1,
	}, report)
	assert.Equal(t, []string{"alice"}, obs.calls)

	assert.Equal(t, []string{"carol"}, stores.MustUser(t, "alice").Friends)

	cleaned := stores.MustTask(t, "alice", first.ID)
	assert.Empty(t, cleaned.SharedWith)
	assert.Equal(t, domain.VisibilityPrivate, cleaned.Visibility)
	assert.Equal(t, []string{"carol"}, stores.MustTask(t, "alice", second.ID).SharedWith)

	pending, err := stores.Requests.Find(ctx, repository.FriendRequestFilter{Party: "alice"})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "frank", pending[0].From)

	again, err := uc.CleanupUserData(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again.Changed())
	assert.Len(t, obs.calls, 1)
}

func TestCleanupSweepsCollaboratorsWhenFriendLookupFails(t *testing.T) {
	stores := testutil.NewStores(t)
	for _, id := range []string{"alice", "carol", "dave"} {
		stores.SeedUser(t, id)
	}
	stores.MakeFriends(t, "alice", "carol")
	strangers := stores.SeedTask(t, "alice", testutil.SharedWith("dave"))
	friendly := stores.SeedTask(t, "alice", testutil.SharedWith("carol"))

	users := &failingLookups{UserRepository: stores.Users, fail: []string{"carol"}}
	uc := New(users, stores.Tasks, stores.Requests, stores.Notifications, nil, nil)

	report, err := uc.CleanupUserData(context.Background(), "alice")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, report.InvalidCollaboratorsRemoved)
	assert.Equal(t, 1, report.TasksUpdated)

	assert.Empty(t, stores.MustTask(t, "alice", strangers.ID).SharedWith)
	assert.Equal(t, []string{"carol"}, stores.MustTask(t, "alice", friendly.ID).SharedWith)
	assert.Equal(t, []string{"carol"}, stores.MustUser(t, "alice").Friends)
}

func TestCleanupKeepsFinalizedCollaborators(t *testing.T) {
	stores := testutil.NewStores(t)
	stores.SeedUser(t, "alice")
	stores.SeedUser(t, "bob")
	task := stores.SeedTask(t, "alice", testutil.SharedWith("bob"), testutil.Completed(), func(tk *domain.Task) {
		at := tk.CreatedAt
		tk.Finalized = true
		tk.FinalizedAt = &at
	})
	uc := New(stores.Users, stores.Tasks, stores.Requests, stores.Notifications, nil, nil)

	report, err := uc.CleanupUserData(context.Background(), "alice")
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Equal(t, []string{"bob"}, stores.MustTask(t, "alice", task.ID).SharedWith)
}

func TestRunOnLoginDropsNotificationsFromFormerFriends(t *testing.T) {
	stores, _, _ := seedWorld(t)
	ctx := context.Background()
	for _, n := range []*domain.Notification{
		{UserID: "alice", Type: domain.NotificationTaskShared, Data: map[string]string{domain.DataFromUserID: "bob"}},
		{UserID: "alice", Type: domain.NotificationTaskShared, Data: map[string]string{domain.DataFromUserID: "carol"}},
		{UserID: "alice", Type: domain.NotificationFriendRequest, Data: map[string]string{domain.DataFromUserID: "frank"}},
		{UserID: "alice", Type: domain.NotificationAchievement},
	} {
		require.NoError(t, stores.Notifications.Create(ctx, n))
	}
	uc := New(stores.Users, stores.Tasks, stores.Requests, stores.Notifications, nil, nil)

	report, err := uc.RunOnLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, report.StaleNotificationsRemoved)

	notes, err := stores.Notifications.List(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, notes, 3)
	for _, n := range notes {
		assert.NotEqual(t, "bob", n.FromUser())
	}

	again, err := uc.RunOnLogin(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, again.Changed())
}

func TestCleanupUserDataMissingUser(t *testing.T) {
	stores := testutil.NewStores(t)
	uc := New(stores.Users, stores.Tasks, stores.Requests, stores.Notifications, nil, nil)

	_, err := uc.CleanupUserData(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = uc.CleanupUserData(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
