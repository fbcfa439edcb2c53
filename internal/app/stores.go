package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskboard/internal/infrastructure/postgres"
	sqliteInfra "github.com/fastygo/taskboard/internal/infrastructure/sqlite"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/repository/postgres"
	sqliteRepo "github.com/fastygo/taskboard/repository/sqlite"
)

// Stores holds the repositories of the configured document store driver.
type Stores struct {
	Driver        string
	Users         repository.UserRepository
	Tasks         repository.TaskRepository
	Requests      repository.FriendRequestRepository
	Notifications repository.NotificationRepository
	Ledger        repository.LedgerRepository
	// Checks ping the store for the connection monitor.
	Checks []monitor.Check

	closers []func() error
}

// Migrate brings the schema of the configured driver up to date. The sqlite
// driver migrates when it is opened.
func Migrate(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Store.Driver == config.DriverPostgres {
		return pgInfra.RunMigrations(cfg, logger)
	}
	return nil
}

// OpenStores connects the driver named by cfg.Store.Driver.
func OpenStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Stores, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Store.Driver {
	case config.DriverPostgres:
		pool, err := pgInfra.NewPool(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("postgres connection failed: %w", err)
		}
		return &Stores{
			Driver:        config.DriverPostgres,
			Users:         postgres.NewUserRepository(pool),
			Tasks:         postgres.NewTaskRepository(pool),
			Requests:      postgres.NewFriendRequestRepository(pool),
			Notifications: postgres.NewNotificationRepository(pool),
			Ledger:        postgres.NewLedgerRepository(pool),
			Checks:        []monitor.Check{{Name: "postgresql", Ping: pool.Ping}},
			closers: []func() error{func() error {
				pgInfra.Close(pool, logger)
				return nil
			}},
		}, nil

	case config.DriverSQLite:
		db, err := sqliteInfra.Open(cfg.SQLite, logger)
		if err != nil {
			return nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		return &Stores{
			Driver:        config.DriverSQLite,
			Users:         sqliteRepo.NewUserRepository(db),
			Tasks:         sqliteRepo.NewTaskRepository(db),
			Requests:      sqliteRepo.NewFriendRequestRepository(db),
			Notifications: sqliteRepo.NewNotificationRepository(db),
			Ledger:        sqliteRepo.NewLedgerRepository(db),
			Checks:        []monitor.Check{{Name: "sqlite", Ping: sqlDB.PingContext}},
			closers: []func() error{func() error {
				return sqliteInfra.Close(db, logger)
			}},
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func (s *Stores) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		errs = append(errs, closeFn())
	}
	return errors.Join(errs...)
}
