package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/config"
)

func TestOpenSQLiteStores(t *testing.T) {
	cfg := &config.Config{
		Store:  config.StoreConfig{Driver: config.DriverSQLite},
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "board.db")},
	}
	require.NoError(t, Migrate(cfg, nil))

	stores, err := OpenStores(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { assert.NoError(t, stores.Close()) }()

	require.Len(t, stores.Checks, 1)
	assert.NoError(t, stores.Checks[0].Ping(context.Background()))

	ctx := context.Background()
	require.NoError(t, stores.Users.Upsert(ctx, &domain.User{ID: "alice", Email: "alice@example.com"}))
	exists, err := stores.Users.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpenStoresRejectsUnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), &config.Config{Store: config.StoreConfig{Driver: "mongo"}}, nil)
	assert.Error(t, err)
}
