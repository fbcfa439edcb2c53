package repository

import (
	"context"
	"sync"

	"github.com/fastygo/taskboard/domain"
)

// TaskMutation mutates a freshly read task inside a transaction. Returning an
// error aborts the write and is passed through to the caller.
type TaskMutation func(task *domain.Task) error

type TaskRepository interface {
	Get(ctx context.Context, ownerID, taskID string) (*domain.Task, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error)
	// ListSharedWith returns ownerID's tasks whose collaborator set contains userID.
	ListSharedWith(ctx context.Context, ownerID, userID string) ([]domain.Task, error)
	Create(ctx context.Context, task *domain.Task) (*domain.Task, error)
	// Update runs a single-document read-modify-write. A concurrent write
	// between the read and the commit yields domain.ErrTxAborted.
	Update(ctx context.Context, ownerID, taskID string, fn TaskMutation) (*domain.Task, error)
	Delete(ctx context.Context, ownerID, taskID string) error
}

// HealHook is called after a store commits a correction it made while
// serving a read.
type HealHook func(ctx context.Context, task *domain.Task)

// Healer is implemented by task stores that repair documents on read.
type Healer interface {
	OnHeal(hook HealHook)
}

// HealHooks implements Healer for embedding in a store.
type HealHooks struct {
	mu    sync.RWMutex
	hooks []HealHook
}

func (h *HealHooks) OnHeal(hook HealHook) {
	if hook == nil {
		return
	}
	h.mu.Lock()
	h.hooks = append(h.hooks, hook)
	h.mu.Unlock()
}

// Healed runs the registered hooks for task.
func (h *HealHooks) Healed(ctx context.Context, task *domain.Task) {
	h.mu.RLock()
	hooks := h.hooks
	h.mu.RUnlock()
	for _, hook := range hooks {
		hook(ctx, task)
	}
}
