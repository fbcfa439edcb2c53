package friend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/testutil"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/usecase/notify"
)

type observer struct{ calls []string }

func (o *observer) FriendsChanged(_ context.Context, userID string) {
	o.calls = append(o.calls, userID)
}

type fixture struct {
	uc       *UseCase
	stores   *testutil.Stores
	observer *observer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := testutil.NewStores(t)
	for _, id := range []string{"alice", "bob", "carol"} {
		stores.SeedUser(t, id)
	}
	obs := &observer{}
	notifier := notify.New(stores.Notifications, nil)
	uc := New(stores.Users, stores.Requests, stores.Notifications, notifier, obs, nil)
	return &fixture{uc: uc, stores: stores, observer: obs}
}

func (f *fixture) notes(t *testing.T, userID string) []domain.Notification {
	t.Helper()
	notes, err := f.stores.Notifications.List(context.Background(), userID)
	require.NoError(t, err)
	return notes
}

func TestSendAndAcceptFriendRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	outcome, err := f.uc.SendFriendRequest(ctx, "alice", " BOB@example.com ")
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, outcome)

	pending, err := f.uc.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].From)

	incoming := f.notes(t, "bob")
	require.Len(t, incoming, 1)
	assert.Equal(t, domain.NotificationFriendRequest, incoming[0].Type)
	assert.Equal(t, pending[0].ID, incoming[0].Data[domain.DataRequestID])

	assert.ErrorIs(t, f.uc.AcceptFriendRequest(ctx, "carol", pending[0].ID), domain.ErrNotRequestRecipient)
	require.NoError(t, f.uc.AcceptFriendRequest(ctx, "bob", pending[0].ID))

	assert.True(t, f.stores.MustUser(t, "alice").HasFriend("bob"))
	assert.True(t, f.stores.MustUser(t, "bob").HasFriend("alice"))
	assert.ElementsMatch(t, []string{"bob", "alice"}, f.observer.calls)

	_, err = f.stores.Requests.Get(ctx, pending[0].ID)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
	require.Len(t, f.notes(t, "alice"), 1)
	assert.Equal(t, domain.NotificationFriendAccepted, f.notes(t, "alice")[0].Type)
}

func TestSendFriendRequestValidation(t *testing.T) {
	f := newFixture(t)
	f.stores.MakeFriends(t, "alice", "carol")
	ctx := context.Background()

	_, err := f.uc.SendFriendRequest(ctx, "alice", "not-an-email")
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	_, err = f.uc.SendFriendRequest(ctx, "alice", "nobody@example.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
	_, err = f.uc.SendFriendRequest(ctx, "alice", "alice@example.com")
	assert.ErrorIs(t, err, domain.ErrSelfRequest)
	_, err = f.uc.SendFriendRequest(ctx, "alice", "carol@example.com")
	assert.ErrorIs(t, err, domain.ErrAlreadyFriends)

	_, err = f.uc.SendFriendRequestByID(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = f.uc.SendFriendRequestByID(ctx, "alice", "bob")
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	_, err = f.uc.SendFriendRequest(ctx, "", "bob@example.com")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestMutualRequestIsAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.SendFriendRequestByID(ctx, "bob", "alice")
	require.NoError(t, err)
	outcome, err := f.uc.SendFriendRequestByID(ctx, "alice", "bob")
	require.NoError(t, err)
	assert.Equal(t, OutcomeAccepted, outcome)

	assert.True(t, f.stores.MustUser(t, "alice").HasFriend("bob"))
	assert.True(t, f.stores.MustUser(t, "bob").HasFriend("alice"))
	pending, err := f.uc.ListPendingRequests(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRejectFriendRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.uc.SendFriendRequestByID(ctx, "alice", "bob")
	require.NoError(t, err)
	pending, err := f.uc.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, f.uc.RejectFriendRequest(ctx, "bob", pending[0].ID))
	assert.ErrorIs(t, f.uc.RejectFriendRequest(ctx, "bob", pending[0].ID), domain.ErrRequestNotFound)
	assert.False(t, f.stores.MustUser(t, "bob").HasFriend("alice"))
	assert.Empty(t, f.observer.calls)
}

func TestRemoveFriendIsBidirectional(t *testing.T) {
	f := newFixture(t)
	f.stores.MakeFriends(t, "alice", "bob")
	f.stores.MakeFriends(t, "alice", "carol")
	ctx := context.Background()
	require.NoError(t, f.stores.Notifications.Create(ctx, &domain.Notification{
		UserID: "alice", Type: domain.NotificationTaskShared,
		Data: map[string]string{domain.DataFromUserID: "bob"},
	}))
	require.NoError(t, f.stores.Notifications.Create(ctx, &domain.Notification{
		UserID: "alice", Type: domain.NotificationTaskShared,
		Data: map[string]string{domain.DataFromUserID: "carol"},
	}))

	require.NoError(t, f.uc.RemoveFriend(ctx, "alice", "bob"))

	assert.False(t, f.stores.MustUser(t, "alice").HasFriend("bob"))
	assert.False(t, f.stores.MustUser(t, "bob").HasFriend("alice"))
	notes := f.notes(t, "alice")
	require.Len(t, notes, 1)
	assert.Equal(t, "carol", notes[0].FromUser())

	friends, err := f.uc.ListFriends(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, "carol", friends[0].ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, f.observer.calls)
}

func newFlakyFixture(t *testing.T) (*UseCase, *testutil.Stores, *testutil.FlakyUsers) {
	t.Helper()
	stores := testutil.NewStores(t)
	for _, id := range []string{"alice", "bob"} {
		stores.SeedUser(t, id)
	}
	users := &testutil.FlakyUsers{UserRepository: stores.Users}
	uc := New(users, stores.Requests, stores.Notifications, nil, nil, nil,
		WithRetryPolicy(retry.Policy{Attempts: 3, BaseDelay: time.Millisecond, RetryIf: retry.IsConcurrency}))
	return uc, stores, users
}

func TestAcceptRetriesAbortedFriendWrite(t *testing.T) {
	uc, stores, users := newFlakyFixture(t)
	ctx := context.Background()

	_, err := uc.SendFriendRequestByID(ctx, "alice", "bob")
	require.NoError(t, err)
	pending, err := uc.ListPendingRequests(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	users.Aborts = 1
	require.NoError(t, uc.AcceptFriendRequest(ctx, "bob", pending[0].ID))
	assert.Equal(t, 3, users.Updates)
	assert.True(t, stores.MustUser(t, "alice").HasFriend("bob"))
	assert.True(t, stores.MustUser(t, "bob").HasFriend("alice"))
}

func TestRemoveFriendRetriesAbortedWrite(t *testing.T) {
	uc, stores, users := newFlakyFixture(t)
	stores.MakeFriends(t, "alice", "bob")
	users.Aborts = 2

	require.NoError(t, uc.RemoveFriend(context.Background(), "alice", "bob"))
	assert.Equal(t, 4, users.Updates)
	assert.False(t, stores.MustUser(t, "alice").HasFriend("bob"))
	assert.False(t, stores.MustUser(t, "bob").HasFriend("alice"))
}

func TestFriendWriteDoesNotRetryOutage(t *testing.T) {
	uc, stores, users := newFlakyFixture(t)
	stores.MakeFriends(t, "alice", "bob")
	users.Outages = 1

	err := uc.RemoveFriend(context.Background(), "alice", "bob")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Equal(t, 1, users.Updates)
	assert.True(t, stores.MustUser(t, "alice").HasFriend("bob"))
}
