package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/repository"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// Awarder credits a finalization award; see achievement.UseCase.ApplyAward.
type Awarder interface {
	ApplyAward(ctx context.Context, award domain.Award) (bool, error)
}

// ProcessorConfig controls how frequently the buffer is drained.
type ProcessorConfig struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
	// Retention bounds how long task and profile writes wait for replay.
	// Awards are kept until they land.
	Retention time.Duration
}

// BufferProcessor replays operations that were queued while the primary
// store was unreachable.
type BufferProcessor struct {
	store    *buffer.Store
	monitor  ConnectionHealth
	userRepo repository.UserRepository
	taskRepo repository.TaskRepository
	awarder  Awarder
	logger   *zap.Logger
	cron     *cron.Cron
	cfg      ProcessorConfig
}

func NewBufferProcessor(
	store *buffer.Store,
	monitor ConnectionHealth,
	userRepo repository.UserRepository,
	taskRepo repository.TaskRepository,
	awarder Awarder,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *BufferProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bp := &BufferProcessor{
		store:    store,
		monitor:  monitor,
		userRepo: userRepo,
		taskRepo: taskRepo,
		awarder:  awarder,
		logger:   logger,
		cfg:      cfg,
		cron:     cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = bp.cron.AddFunc(schedule, bp.DrainNow)

	return bp
}

// Start launches the cron scheduler.
func (bp *BufferProcessor) Start() {
	if bp == nil || bp.cron == nil {
		return
	}
	bp.cron.Start()
	bp.logger.Info("buffer processor started", zap.Duration("interval", bp.cfg.Interval))
}

// Stop gracefully stops the scheduler.
func (bp *BufferProcessor) Stop(ctx context.Context) {
	if bp == nil || bp.cron == nil {
		return
	}
	stopCtx := bp.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	bp.logger.Info("buffer processor stopped")
}

// DrainNow runs one bounded drain. It is the cron job and the monitor's
// reconnect hook.
func (bp *BufferProcessor) DrainNow() {
	ctx, cancel := context.WithTimeout(context.Background(), bp.cfg.Interval)
	defer cancel()
	if err := bp.Drain(ctx); err != nil {
		bp.logger.Error("buffer drain failed", zap.Error(err))
	}
}

// Drain replays one batch in queue order. Items failing with a permanent
// error are dropped; the rest go back with their retry count raised until
// MaxRetries.
func (bp *BufferProcessor) Drain(ctx context.Context) error {
	if bp == nil || bp.store == nil {
		return nil
	}
	if bp.monitor != nil && !bp.monitor.IsOnline() {
		bp.logger.Debug("skipping buffer drain (offline)")
		return nil
	}

	if removed, err := bp.store.Cleanup(time.Now().Add(-bp.cfg.Retention)); err != nil {
		bp.logger.Warn("buffer cleanup failed", zap.Error(err))
	} else if removed > 0 {
		bp.logger.Warn("expired buffered operations dropped", zap.Int("count", removed))
	}

	items, err := bp.store.GetBatch(bp.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		err := bp.processItem(ctx, item)
		if err == nil {
			if err := bp.store.Remove(item); err != nil {
				bp.logger.Warn("failed to purge processed buffer item", zap.Error(err))
			}
			continue
		}

		fields := []zap.Field{
			zap.String("item_id", item.ID),
			zap.String("entity", item.Entity),
			zap.String("operation", item.Operation),
			zap.String("key", item.Key),
			zap.Error(err),
		}
		if !retry.Retryable(err) {
			bp.logger.Warn("dropping buffer item (permanent failure)", fields...)
			_ = bp.store.Remove(item)
			continue
		}

		item.Retries++
		if item.Retries >= bp.cfg.MaxRetries {
			bp.logger.Error("dropping buffer item (max retries reached)", fields...)
			_ = bp.store.Remove(item)
			continue
		}
		bp.logger.Warn("buffer item replay failed", fields...)
		if err := bp.store.Requeue(item); err != nil {
			bp.logger.Error("failed to requeue buffer item", zap.Error(err))
		}
		if retry.IsNetwork(err) {
			// the store went away again; later items would fail the same way
			break
		}
	}
	return nil
}

// BufferOperation attempts to run the operation immediately and falls back to persisting it.
func (bp *BufferProcessor) BufferOperation(ctx context.Context, item buffer.Item) error {
	if bp == nil || bp.store == nil {
		return fmt.Errorf("buffer processor not configured")
	}

	if bp.monitor == nil || bp.monitor.IsOnline() {
		err := bp.processItem(ctx, item)
		if err == nil {
			return nil
		}
		if !retry.Retryable(err) {
			return err
		}
		bp.logger.Warn("immediate processing failed, buffering", zap.String("entity", item.Entity), zap.Error(err))
	}
	return bp.store.Enqueue(item)
}

// Size returns the number of buffered items.
func (bp *BufferProcessor) Size() int {
	if bp == nil || bp.store == nil {
		return 0
	}
	size, err := bp.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (bp *BufferProcessor) processItem(ctx context.Context, item buffer.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Entity {
	case buffer.EntityProfile:
		var user domain.User
		if err := json.Unmarshal(item.Data, &user); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "decode buffered profile", err)
		}
		return bp.replayProfile(ctx, &user)

	case buffer.EntityTask:
		if item.Operation == buffer.OperationUpdate {
			var edit domain.TaskEdit
			if err := json.Unmarshal(item.Data, &edit); err != nil {
				return domain.WrapError(domain.ErrCodeInvalid, "decode buffered task edit", err)
			}
			_, err := bp.taskRepo.Update(ctx, edit.OwnerID, edit.TaskID, edit.Apply)
			return err
		}
		var task domain.Task
		if err := json.Unmarshal(item.Data, &task); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "decode buffered task", err)
		}
		return bp.replayTask(ctx, item.Operation, &task)

	case buffer.EntityAward:
		if bp.awarder == nil {
			return fmt.Errorf("award replay not configured")
		}
		var award domain.Award
		if err := json.Unmarshal(item.Data, &award); err != nil {
			return domain.WrapError(domain.ErrCodeInvalid, "decode buffered award", err)
		}
		applied, err := bp.awarder.ApplyAward(ctx, award)
		if err == nil && applied {
			bp.logger.Info("buffered award applied",
				zap.String("user_id", award.UserID),
				zap.String("task", award.Key),
				zap.Int("points", award.Points))
		}
		return err

	default:
		return domain.NewError(domain.ErrCodeInvalid, "unsupported buffer entity "+item.Entity)
	}
}

func (bp *BufferProcessor) replayProfile(ctx context.Context, user *domain.User) error {
	_, err := bp.userRepo.Update(ctx, user.ID, func(stored *domain.User) error {
		if user.DisplayName != "" {
			stored.DisplayName = user.DisplayName
		}
		if user.Email != "" {
			stored.Email = user.Email
		}
		return nil
	})
	return err
}

func (bp *BufferProcessor) replayTask(ctx context.Context, operation string, task *domain.Task) error {
	switch operation {
	case buffer.OperationCreate:
		if _, err := bp.taskRepo.Get(ctx, task.OwnerID, task.ID); err == nil {
			return nil
		}
		_, err := bp.taskRepo.Create(ctx, task)
		return err

	case buffer.OperationDelete:
		err := bp.taskRepo.Delete(ctx, task.OwnerID, task.ID)
		if errors.Is(err, domain.ErrTaskNotFound) {
			return nil
		}
		return err

	default:
		return domain.NewError(domain.ErrCodeInvalid, "unsupported task operation "+operation)
	}
}
