// Package finalize locks completed tasks and distributes their points.
package finalize

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
	"github.com/fastygo/taskboard/usecase/session"
)

// Awarder credits one recipient's share. It must be idempotent per award key.
type Awarder interface {
	ApplyAward(ctx context.Context, award domain.Award) (bool, error)
}

// Sessions resolves the open session of a user, if any.
type Sessions interface {
	Get(userID string) (*session.Session, bool)
}

// Result describes what a finalization committed and paid out.
type Result struct {
	Task *domain.Task
	// Paid were applied now; Skipped had already been applied earlier.
	Paid    []domain.Award
	Skipped []domain.Award
	// Deferred failed and were queued for replay.
	Deferred []domain.Award
}

type Option func(*UseCase)

func WithRetryPolicy(p retry.Policy) Option {
	return func(uc *UseCase) { uc.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

type UseCase struct {
	tasks    repository.TaskRepository
	awarder  Awarder
	notifier usecase.Notifier
	buffer   usecase.OperationBuffer
	sessions Sessions
	executor *usecase.Executor
	policy   retry.Policy
	logger   *zap.Logger
	now      func() time.Time
}

func New(
	tasks repository.TaskRepository,
	awarder Awarder,
	notifier usecase.Notifier,
	buffer usecase.OperationBuffer,
	sessions Sessions,
	logger *zap.Logger,
	opts ...Option,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		tasks:    tasks,
		awarder:  awarder,
		notifier: notifier,
		buffer:   buffer,
		sessions: sessions,
		executor: usecase.NewExecutor(),
		policy: retry.Policy{
			Attempts:   3,
			BaseDelay:  100 * time.Millisecond,
			Multiplier: 2,
			RetryIf:    retry.IsConcurrency,
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// FinalizeTask locks a completed task of callerID and pays the owner and
// every collaborator. The task commit is the only step that can fail the
// call; award failures are logged and queued for replay.
//
// While the call runs the caller's session view already shows the task as
// finalized, and a second call for the same task returns ErrInFlight.
func (uc *UseCase) FinalizeTask(ctx context.Context, callerID, taskID string) (*Result, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthorized
	}

	executor := uc.executor
	var view *session.View
	if uc.sessions != nil {
		if s, ok := uc.sessions.Get(callerID); ok {
			executor = s.Executor
			view = s.View
		}
	}

	var (
		result *Result
		revert func()
	)
	err := executor.Execute(ctx, usecase.Command{
		Key: "finalize:" + domain.TaskKey(callerID, taskID),
		Apply: func() {
			if view != nil {
				revert, _ = view.Patch(callerID, taskID, func(task *domain.Task) { task.Finalized = true })
			}
		},
		Revert: func() {
			if revert != nil {
				revert()
			}
		},
		Remote: func(ctx context.Context) error {
			task, err := uc.commit(ctx, callerID, taskID)
			if err != nil {
				return err
			}
			result = uc.distribute(ctx, task)
			if view != nil {
				view.Put(task.Clone())
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// commit writes the terminal state after re-checking every precondition
// inside the transaction.
func (uc *UseCase) commit(ctx context.Context, callerID, taskID string) (*domain.Task, error) {
	var committed *domain.Task
	err := retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		task, err := uc.tasks.Update(ctx, callerID, taskID, func(task *domain.Task) error {
			if !task.CanDelete(callerID) {
				return domain.ErrNotOwner
			}
			if task.IsLocked() {
				return domain.ErrAlreadyFinalized
			}
			if !task.Completed {
				return domain.ErrTaskNotCompleted
			}

			at := uc.now()
			award := &domain.PointsAward{Owner: domain.OwnerPoints(task, at)}
			if len(task.SharedWith) > 0 {
				award.Collaborators = make(map[string]int, len(task.SharedWith))
				for _, id := range task.SharedWith {
					award.Collaborators[id] = domain.CollaboratorPoints(task)
				}
			}
			task.Finalized = true
			task.FinalizedAt = &at
			task.FinalizedBy = callerID
			task.PointsAwarded = award
			task.Touch(callerID, at)
			return nil
		})
		if err != nil {
			return err
		}
		committed = task
		return nil
	})
	if err != nil {
		return nil, err
	}
	uc.logger.Info("task finalized",
		zap.String("owner_id", callerID),
		zap.String("task_id", taskID),
		zap.Int("owner_points", committed.PointsAwarded.Owner),
		zap.Int("collaborators", len(committed.PointsAwarded.Collaborators)))
	return committed, nil
}

// Awards lists the per-recipient shares of a finalized task, owner first.
func Awards(task *domain.Task) []domain.Award {
	if task == nil || task.PointsAwarded == nil || task.FinalizedAt == nil {
		return nil
	}
	early := domain.FinishedEarly(task, *task.FinalizedAt)
	out := []domain.Award{{
		Key:           task.Key(),
		UserID:        task.OwnerID,
		Points:        task.PointsAwarded.Owner,
		Reason:        fmt.Sprintf("Finalized %q", task.Name),
		BeforeDueDate: early,
	}}
	for _, id := range task.SharedWith {
		points, ok := task.PointsAwarded.Collaborators[id]
		if !ok {
			continue
		}
		out = append(out, domain.Award{
			Key:           task.Key(),
			UserID:        id,
			Points:        points,
			Reason:        fmt.Sprintf("Helped finish %q", task.Name),
			Collaborator:  true,
			BeforeDueDate: early,
		})
	}
	return out
}

func (uc *UseCase) distribute(ctx context.Context, task *domain.Task) *Result {
	result := &Result{Task: task}
	for _, award := range Awards(task) {
		applied, err := uc.awarder.ApplyAward(ctx, award)
		switch {
		case err != nil:
			uc.logger.Error("failed to apply award",
				zap.String("task", award.Key),
				zap.String("user_id", award.UserID),
				zap.Int("points", award.Points),
				zap.Error(err))
			uc.queue(ctx, award)
			result.Deferred = append(result.Deferred, award)
		case applied:
			result.Paid = append(result.Paid, award)
		default:
			result.Skipped = append(result.Skipped, award)
		}

		if award.Collaborator {
			uc.notifyCollaborator(ctx, task, award)
		}
	}
	return result
}

func (uc *UseCase) queue(ctx context.Context, award domain.Award) {
	if uc.buffer == nil {
		return
	}
	if err := uc.buffer.BufferAward(ctx, award); err != nil {
		uc.logger.Error("failed to queue award for replay",
			zap.String("task", award.Key),
			zap.String("user_id", award.UserID),
			zap.Error(err))
	}
}

func (uc *UseCase) notifyCollaborator(ctx context.Context, task *domain.Task, award domain.Award) {
	if uc.notifier == nil {
		return
	}
	n := &domain.Notification{
		UserID:  award.UserID,
		Type:    domain.NotificationTaskFinalized,
		Title:   "Task Finalized",
		Message: fmt.Sprintf("Task %q is complete! You earned %d points", task.Name, award.Points),
		Data: map[string]string{
			domain.DataFromUserID: task.OwnerID,
			domain.DataTaskID:     task.ID,
			domain.DataTaskName:   task.Name,
			domain.DataPoints:     strconv.Itoa(award.Points),
		},
	}
	if err := uc.notifier.Notify(ctx, n); err != nil {
		uc.logger.Warn("failed to notify collaborator",
			zap.String("user_id", award.UserID),
			zap.String("task_id", task.ID),
			zap.Error(err))
	}
}
