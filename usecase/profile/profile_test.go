package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/testutil"
)

func TestUpdateProfileKeepsOtherFields(t *testing.T) {
	stores := testutil.NewStores(t)
	stores.SeedUser(t, "alice", "bob")
	uc := New(stores.Users, nil, nil)

	user, err := uc.UpdateProfile(context.Background(), "alice", Update{DisplayName: " Alice "})
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.DisplayName)

	stored := stores.MustUser(t, "alice")
	assert.Equal(t, "Alice", stored.DisplayName)
	assert.Equal(t, "alice@example.com", stored.Email)
	assert.Equal(t, []string{"bob"}, stored.Friends)
}

func TestUpdateProfileValidation(t *testing.T) {
	stores := testutil.NewStores(t)
	stores.SeedUser(t, "alice")
	uc := New(stores.Users, nil, nil)
	ctx := context.Background()

	_, err := uc.UpdateProfile(ctx, "alice", Update{Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrInvalidEmail)
	_, err = uc.UpdateProfile(ctx, "alice", Update{})
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
	_, err = uc.UpdateProfile(ctx, "", Update{DisplayName: "x"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUpdateProfileBuffersOnOutage(t *testing.T) {
	stores := testutil.NewStores(t)
	stores.SeedUser(t, "alice")
	users := &testutil.FlakyUsers{UserRepository: stores.Users, Outages: 1}
	buffer := &testutil.RecordingBuffer{}
	uc := New(users, buffer, nil)

	user, err := uc.UpdateProfile(context.Background(), "alice", Update{DisplayName: "Offline Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Offline Alice", user.DisplayName)
	assert.Equal(t, []string{"update"}, buffer.Profiles)
	assert.Equal(t, "alice", stores.MustUser(t, "alice").DisplayName)
}
