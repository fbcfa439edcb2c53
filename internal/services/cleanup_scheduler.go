package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/usecase/cleanup"
)

// Cleaner repairs one user's friend, collaborator and request references.
type Cleaner interface {
	CleanupUserData(ctx context.Context, userID string) (cleanup.Report, error)
}

// ActiveUsers lists the users with an open session.
type ActiveUsers interface {
	Active() []string
}

// CleanupScheduler runs the consistency sweep for every logged-in user on a
// cron schedule.
type CleanupScheduler struct {
	cleaner Cleaner
	users   ActiveUsers
	logger  *zap.Logger
	cron    *cron.Cron
	timeout time.Duration
}

func NewCleanupScheduler(cleaner Cleaner, users ActiveUsers, schedule string, logger *zap.Logger) (*CleanupScheduler, error) {
	if schedule == "" {
		schedule = "@every 24h"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cs := &CleanupScheduler{
		cleaner: cleaner,
		users:   users,
		logger:  logger,
		cron:    cron.New(),
		timeout: 30 * time.Second,
	}
	if _, err := cs.cron.AddFunc(schedule, func() { cs.Sweep(context.Background()) }); err != nil {
		return nil, err
	}
	return cs, nil
}

func (cs *CleanupScheduler) Start() {
	cs.cron.Start()
	cs.logger.Info("cleanup scheduler started")
}

func (cs *CleanupScheduler) Stop(ctx context.Context) {
	stopCtx := cs.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
}

// Sweep cleans every active user and returns how many reports had changes.
// A failure for one user does not stop the sweep.
func (cs *CleanupScheduler) Sweep(ctx context.Context) int {
	changed := 0
	for _, userID := range cs.users.Active() {
		userCtx, cancel := context.WithTimeout(ctx, cs.timeout)
		report, err := cs.cleaner.CleanupUserData(userCtx, userID)
		cancel()
		if err != nil {
			cs.logger.Warn("scheduled cleanup failed", zap.String("user_id", userID), zap.Error(err))
		}
		if report.Changed() {
			changed++
		}
	}
	return changed
}
