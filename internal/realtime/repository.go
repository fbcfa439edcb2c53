package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type publishingTaskRepository struct {
	repository.TaskRepository
	publisher Publisher
	logger    *zap.Logger
}

// NewTaskRepository wraps tasks so every committed write is published,
// including corrections a store commits while serving a read.
// Publish failures are logged; the write itself already succeeded.
func NewTaskRepository(tasks repository.TaskRepository, publisher Publisher, logger *zap.Logger) repository.TaskRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &publishingTaskRepository{
		TaskRepository: tasks,
		publisher:      publisher,
		logger:         logger,
	}
	if healer, ok := tasks.(repository.Healer); ok {
		healer.OnHeal(func(ctx context.Context, task *domain.Task) {
			r.publish(ctx, domain.ChangeModified, task)
		})
	}
	return r
}

func (r *publishingTaskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	created, err := r.TaskRepository.Create(ctx, task)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, domain.ChangeAdded, created)
	return created, nil
}

func (r *publishingTaskRepository) Update(ctx context.Context, ownerID, taskID string, fn repository.TaskMutation) (*domain.Task, error) {
	updated, err := r.TaskRepository.Update(ctx, ownerID, taskID, fn)
	if err != nil {
		return nil, err
	}
	r.publish(ctx, domain.ChangeModified, updated)
	return updated, nil
}

func (r *publishingTaskRepository) Delete(ctx context.Context, ownerID, taskID string) error {
	if err := r.TaskRepository.Delete(ctx, ownerID, taskID); err != nil {
		return err
	}
	r.publish(ctx, domain.ChangeRemoved, &domain.Task{ID: taskID, OwnerID: ownerID})
	return nil
}

func (r *publishingTaskRepository) publish(ctx context.Context, kind domain.ChangeType, task *domain.Task) {
	if r.publisher == nil || task == nil {
		return
	}
	change := domain.TaskChange{Type: kind, OwnerID: task.OwnerID, Task: task.Clone()}
	if err := r.publisher.Publish(ctx, change); err != nil {
		r.logger.Warn("failed to publish task change",
			zap.String("owner_id", task.OwnerID),
			zap.String("task_id", task.ID),
			zap.String("type", string(kind)),
			zap.Error(err))
	}
}
