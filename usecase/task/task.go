package task

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/cache"
	"github.com/fastygo/taskboard/internal/realtime"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// Subscriber registers change handlers per owner id.
type Subscriber interface {
	Subscribe(topic string, fn realtime.Handler) func()
}

// Draft is the input for CreateTask.
type Draft struct {
	Name        string
	Description string
	Difficulty  int
	Workload    int
	Risk        int
	DueDate     *time.Time
	Subtasks    []string
}

type UseCase struct {
	tasks     repository.TaskRepository
	buffer    usecase.OperationBuffer
	hub       Subscriber
	snapshots *cache.Snapshots[string, []domain.Task]
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	watches map[string]map[*SharedWatch]struct{}
}

func New(
	tasks repository.TaskRepository,
	buffer usecase.OperationBuffer,
	hub Subscriber,
	snapshots *cache.Snapshots[string, []domain.Task],
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if snapshots == nil {
		snapshots = cache.New[string, []domain.Task](30 * time.Second)
	}
	return &UseCase{
		tasks:     tasks,
		buffer:    buffer,
		hub:       hub,
		snapshots: snapshots,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		watches:   make(map[string]map[*SharedWatch]struct{}),
	}
}

// CreateTask validates the draft and stores a private task for ownerID.
func (uc *UseCase) CreateTask(ctx context.Context, ownerID string, draft Draft) (*domain.Task, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	name := strings.TrimSpace(draft.Name)
	if name == "" || draft.DueDate == nil || draft.Difficulty < 0 || draft.Workload < 0 || draft.Risk < 0 {
		return nil, domain.ErrInvalidPayload
	}
	subtasks := make([]domain.Subtask, 0, len(draft.Subtasks))
	for _, text := range draft.Subtasks {
		if text = strings.TrimSpace(text); text != "" {
			subtasks = append(subtasks, domain.Subtask{Text: text})
		}
	}
	if len(subtasks) == 0 {
		return nil, domain.ErrInvalidPayload
	}

	now := uc.now()
	task := &domain.Task{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		Description: strings.TrimSpace(draft.Description),
		Difficulty:  draft.Difficulty,
		Workload:    draft.Workload,
		Risk:        draft.Risk,
		StoryPoint:  domain.CalculateStoryPoint(draft.Difficulty, draft.Workload, draft.Risk, len(subtasks)),
		DueDate:     draft.DueDate,
		Visibility:  domain.VisibilityPrivate,
		SharedWith:  []string{},
		Subtasks:    subtasks,
		Comments:    []domain.Comment{},
		CreatedAt:   now,
	}
	task.Touch(ownerID, now)

	created, err := uc.tasks.Create(ctx, task)
	if err != nil {
		if retry.IsNetwork(err) && uc.shouldBuffer(ctx, usecase.OperationCreate, task) {
			return task, nil
		}
		return nil, err
	}
	uc.snapshots.Delete(ownerID)
	return created, nil
}

// GetTask returns a task visible to viewerID. Tasks the viewer may not see
// are reported as missing.
func (uc *UseCase) GetTask(ctx context.Context, viewerID, ownerID, taskID string) (*domain.Task, error) {
	task, err := uc.tasks.Get(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if !task.CanEdit(viewerID) {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// ListOwnTasks lists the user's tasks. While the store is unreachable the
// last successful listing is served instead.
func (uc *UseCase) ListOwnTasks(ctx context.Context, userID string) ([]domain.Task, error) {
	tasks, err := uc.tasks.ListByOwner(ctx, userID)
	if err == nil {
		uc.snapshots.Put(userID, tasks)
		return tasks, nil
	}
	if !retry.IsNetwork(err) {
		return nil, err
	}
	cached, storedAt, ok := uc.snapshots.Last(userID)
	if !ok {
		return nil, err
	}
	uc.logger.Warn("serving cached tasks while store is unavailable",
		zap.String("user_id", userID),
		zap.Time("cached_at", storedAt),
		zap.Error(err))
	return cached, nil
}

// ListSharedTasks merges the tasks each friend shared with userID.
func (uc *UseCase) ListSharedTasks(ctx context.Context, userID string, friendIDs []string) ([]domain.Task, error) {
	var out []domain.Task
	for _, friendID := range friendIDs {
		if friendID == userID {
			continue
		}
		tasks, err := uc.tasks.ListSharedWith(ctx, friendID, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, tasks...)
	}
	return out, nil
}

// ToggleSubtask flips one subtask. Unchecking a subtask reopens the task.
func (uc *UseCase) ToggleSubtask(ctx context.Context, actorID, ownerID, taskID string, index int) (*domain.Task, error) {
	return uc.edit(ctx, actorID, ownerID, taskID, func(task *domain.Task) domain.TaskEdit {
		edit := domain.TaskEdit{Kind: domain.EditSubtask, Index: index}
		if index >= 0 && index < len(task.Subtasks) {
			edit.Completed = !task.Subtasks[index].Completed
		}
		return edit
	})
}

// ToggleTaskComplete flips completion. Completing requires every subtask done.
func (uc *UseCase) ToggleTaskComplete(ctx context.Context, actorID, ownerID, taskID string) (*domain.Task, error) {
	return uc.edit(ctx, actorID, ownerID, taskID, func(task *domain.Task) domain.TaskEdit {
		return domain.TaskEdit{Kind: domain.EditCompletion, Completed: !task.Completed}
	})
}

// DeleteTask removes a task. Only the owner may delete; finalized tasks
// can still be deleted.
func (uc *UseCase) DeleteTask(ctx context.Context, actorID, ownerID, taskID string) error {
	task, err := uc.tasks.Get(ctx, ownerID, taskID)
	switch {
	case err == nil:
		if !task.CanDelete(actorID) {
			return domain.ErrNotOwner
		}
		err = uc.tasks.Delete(ctx, ownerID, taskID)
	case retry.IsNetwork(err):
		if actorID != ownerID {
			return domain.ErrNotOwner
		}
	default:
		return err
	}

	if err != nil {
		if retry.IsNetwork(err) && uc.shouldBuffer(ctx, usecase.OperationDelete, &domain.Task{ID: taskID, OwnerID: ownerID}) {
			return nil
		}
		return err
	}
	uc.snapshots.Delete(ownerID)
	return nil
}

// edit derives a TaskEdit from the current task with build and applies it
// in one store transaction. While the store is unreachable the edit is
// derived from the last known copy and queued, so replay only sets the
// edited field on whatever the store holds by then.
func (uc *UseCase) edit(ctx context.Context, actorID, ownerID, taskID string, build func(*domain.Task) domain.TaskEdit) (*domain.Task, error) {
	if actorID == "" {
		return nil, domain.ErrUnauthorized
	}
	apply := func(task *domain.Task) (domain.TaskEdit, error) {
		edit := build(task)
		edit.OwnerID = ownerID
		edit.TaskID = taskID
		edit.ActorID = actorID
		edit.At = uc.now()
		return edit, edit.Apply(task)
	}

	updated, err := uc.tasks.Update(ctx, ownerID, taskID, func(task *domain.Task) error {
		_, err := apply(task)
		return err
	})
	if err == nil {
		uc.snapshots.Delete(ownerID)
		return updated, nil
	}
	if !retry.IsNetwork(err) {
		return nil, err
	}

	cached, ok := uc.cachedTask(ownerID, taskID)
	if !ok || uc.buffer == nil {
		return nil, err
	}
	edit, applyErr := apply(cached)
	if applyErr != nil {
		return nil, applyErr
	}
	if bufErr := uc.buffer.BufferTaskEdit(ctx, edit); bufErr != nil {
		uc.logger.Error("failed to buffer task edit", zap.String("key", edit.Key()), zap.Error(bufErr))
		return nil, err
	}
	uc.logger.Warn("task edit buffered", zap.String("key", edit.Key()))
	return cached, nil
}

func (uc *UseCase) cachedTask(ownerID, taskID string) (*domain.Task, bool) {
	tasks, _, ok := uc.snapshots.Last(ownerID)
	if !ok {
		return nil, false
	}
	for _, task := range tasks {
		if task.ID == taskID {
			clone := task.Clone()
			return &clone, true
		}
	}
	return nil, false
}

func (uc *UseCase) shouldBuffer(ctx context.Context, operation string, task *domain.Task) bool {
	if uc.buffer == nil {
		return false
	}
	if err := uc.buffer.BufferTask(ctx, operation, task); err != nil {
		uc.logger.Error("failed to buffer task operation", zap.String("operation", operation), zap.Error(err))
		return false
	}
	uc.logger.Warn("task operation buffered",
		zap.String("operation", operation),
		zap.String("owner_id", task.OwnerID),
		zap.String("task_id", task.ID))
	return true
}

var errNoHub = errors.New("task change hub not configured")
