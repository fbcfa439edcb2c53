package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type taskRepository struct {
	repository.HealHooks
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error) {
	const query = `
	SELECT doc, version
	FROM tasks
	WHERE owner_id = $1 AND id = $2
	`
	task, err := scanTask(r.pool.QueryRow(ctx, query, ownerID, taskID))
	if err != nil {
		return nil, err
	}
	r.heal(ctx, task)
	return task, nil
}

func (r *taskRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	const query = `
	SELECT doc, version
	FROM tasks
	WHERE owner_id = $1
	ORDER BY created_at ASC
	`
	return r.list(ctx, query, ownerID)
}

func (r *taskRepository) ListSharedWith(ctx context.Context, ownerID, userID string) ([]domain.Task, error) {
	const query = `
	SELECT doc, version
	FROM tasks
	WHERE owner_id = $1 AND $2 = ANY(shared_with)
	ORDER BY created_at ASC
	`
	return r.list(ctx, query, ownerID, userID)
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	if task == nil || task.OwnerID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	task.Version = 1

	doc, err := json.Marshal(task)
	if err != nil {
		return nil, err
	}

	const query = `
	INSERT INTO tasks (owner_id, id, doc, shared_with, version, created_at)
	VALUES ($1, $2, $3, $4, 1, $5)
	`
	if _, err := r.pool.Exec(ctx, query,
		task.OwnerID,
		task.ID,
		doc,
		members(task.SharedWith),
		task.CreatedAt,
	); err != nil {
		return nil, storeError("create task", err, nil)
	}
	return task, nil
}

func (r *taskRepository) Update(ctx context.Context, ownerID, taskID string, fn repository.TaskMutation) (*domain.Task, error) {
	const query = `
	SELECT doc, version
	FROM tasks
	WHERE owner_id = $1 AND id = $2
	`
	task, err := scanTask(r.pool.QueryRow(ctx, query, ownerID, taskID))
	if err != nil {
		return nil, err
	}
	expected := task.Version
	task.Heal()
	if err := fn(task); err != nil {
		return nil, err
	}
	if err := r.commit(ctx, task, expected); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) Delete(ctx context.Context, ownerID, taskID string) error {
	const query = `DELETE FROM tasks WHERE owner_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, ownerID, taskID)
	if err != nil {
		return storeError("delete task", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) commit(ctx context.Context, task *domain.Task, expected int64) error {
	task.Version = expected + 1
	doc, err := json.Marshal(task)
	if err != nil {
		return err
	}

	const query = `
	UPDATE tasks
	SET doc = $4,
		shared_with = $5,
		version = version + 1,
		updated_at = NOW()
	WHERE owner_id = $1 AND id = $2 AND version = $3
	`
	tag, err := r.pool.Exec(ctx, query,
		task.OwnerID,
		task.ID,
		expected,
		doc,
		members(task.SharedWith),
	)
	if err != nil {
		task.Version = expected
		return storeError("update task", err, nil)
	}
	if tag.RowsAffected() == 0 {
		task.Version = expected
		return domain.ErrTxAborted
	}
	return nil
}

func (r *taskRepository) heal(ctx context.Context, task *domain.Task) {
	if !task.Heal() {
		return
	}
	if err := r.commit(ctx, task, task.Version); err == nil {
		r.Healed(ctx, task)
	}
}

func (r *taskRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list tasks", err, nil)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list tasks", err, nil)
	}
	for i := range tasks {
		r.heal(ctx, &tasks[i])
	}
	return tasks, nil
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		return nil, storeError("scan task", err, domain.ErrTaskNotFound)
	}
	var task domain.Task
	if err := json.Unmarshal(doc, &task); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode task", err)
	}
	task.Version = version
	return &task, nil
}
