package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/testutil"
)

func TestNotifyKeepsNewestTen(t *testing.T) {
	stores := testutil.NewStores(t)
	uc := New(stores.Notifications, nil)
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		require.NoError(t, uc.Notify(ctx, &domain.Notification{
			UserID:  "bob",
			Type:    domain.NotificationTaskShared,
			Message: fmt.Sprintf("n%d", i),
		}))
	}

	list, err := uc.List(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, domain.MaxNotificationsPerUser)
	assert.Equal(t, "n11", list[0].Message)
	assert.Equal(t, "n2", list[len(list)-1].Message)
}

func TestMarkReadAndDelete(t *testing.T) {
	stores := testutil.NewStores(t)
	uc := New(stores.Notifications, nil)
	ctx := context.Background()

	n := &domain.Notification{UserID: "bob", Type: domain.NotificationFriendRequest}
	require.NoError(t, uc.Notify(ctx, n))

	unread, err := uc.Unread(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	require.NoError(t, uc.MarkRead(ctx, "bob", n.ID))
	unread, err = uc.Unread(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, unread)

	assert.ErrorIs(t, uc.Delete(ctx, "alice", n.ID), domain.ErrNotificationNotFound)
	require.NoError(t, uc.Delete(ctx, "bob", n.ID))
}

func TestNotifyRejectsMissingRecipient(t *testing.T) {
	uc := New(testutil.NewStores(t).Notifications, nil)
	err := uc.Notify(context.Background(), &domain.Notification{Type: domain.NotificationAchievement})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}
