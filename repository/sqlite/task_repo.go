package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type taskRepository struct {
	repository.HealHooks
	db *gorm.DB
}

// NewTaskRepository returns a gorm-backed TaskRepository for the embedded store.
func NewTaskRepository(db *gorm.DB) repository.TaskRepository {
	return &taskRepository{db: db}
}

func (r *taskRepository) Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	rec, err := r.load(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	task, err := decodeTask(rec)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode task", err)
	}
	r.heal(ctx, task)
	return task, nil
}

func (r *taskRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	var recs []taskRecord
	if err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at ASC").
		Find(&recs).Error; err != nil {
		return nil, storeError("list tasks", err)
	}
	return r.decodeAll(ctx, recs)
}

func (r *taskRepository) ListSharedWith(ctx context.Context, ownerID, userID string) ([]domain.Task, error) {
	var recs []taskRecord
	if err := r.db.WithContext(ctx).
		Where(`owner_id = ? AND shared_with LIKE ? ESCAPE '\'`, ownerID, memberPattern(userID)).
		Order("created_at ASC").
		Find(&recs).Error; err != nil {
		return nil, storeError("list shared tasks", err)
	}
	return r.decodeAll(ctx, recs)
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.OwnerID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.Version = 1

	doc, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}
	rec := taskRecord{
		OwnerID:    task.OwnerID,
		ID:         task.ID,
		Doc:        doc,
		SharedWith: encodeMembers(task.SharedWith),
		Version:    1,
		CreatedAt:  task.CreatedAt,
		UpdatedAt:  now,
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, storeError("create task", err)
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, ownerID, taskID string, fn repository.TaskMutation) (*domain.Task, error) {
	rec, err := r.load(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	task, err := decodeTask(rec)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode task", err)
	}
	task.Heal()
	if err := fn(task); err != nil {
		return nil, err
	}
	if err := r.commit(ctx, task, rec.Version); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Delete(ctx context.Context, ownerID, taskID string) error {
	res := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, taskID).
		Delete(&taskRecord{})
	if res.Error != nil {
		return storeError("delete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) load(ctx context.Context, ownerID, taskID string) (*taskRecord, error) {
	var rec taskRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, taskID).
		Take(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, storeError("get task", err)
	}
	return &rec, nil
}

// commit writes task only if the stored version still equals expected.
func (r *taskRepository) commit(ctx context.Context, task *domain.Task, expected int64) error {
	task.Version = expected + 1
	doc, err := json.Marshal(task)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Model(&taskRecord{}).
		Where("owner_id = ? AND id = ? AND version = ?", task.OwnerID, task.ID, expected).
		Updates(map[string]interface{}{
			"doc":         doc,
			"shared_with": encodeMembers(task.SharedWith),
			"version":     expected + 1,
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		task.Version = expected
		return storeError("update task", res.Error)
	}
	if res.RowsAffected == 0 {
		task.Version = expected
		return domain.ErrTxAborted
	}
	return nil
}

// heal persists the correction of a finalized flag without timestamp and
// reports the commit to the heal hooks. A lost race is fine: the next read
// heals again.
func (r *taskRepository) heal(ctx context.Context, task *domain.Task) {
	if !task.Heal() {
		return
	}
	if err := r.commit(ctx, task, task.Version); err == nil {
		r.Healed(ctx, task)
	}
}

func (r *taskRepository) decodeAll(ctx context.Context, recs []taskRecord) ([]domain.Task, error) {
	tasks := make([]domain.Task, 0, len(recs))
	for i := range recs {
		task, err := decodeTask(&recs[i])
		if err != nil {
			return nil, domain.WrapError(domain.ErrCodeInternal, "decode task", err)
		}
		r.heal(ctx, task)
		tasks = append(tasks, *task)
	}
	return tasks, nil
}
