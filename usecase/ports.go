package usecase

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

const (
	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
)

// OperationBuffer abstracts the buffer processor so use cases stay storage-agnostic.
type OperationBuffer interface {
	BufferProfile(ctx context.Context, operation string, user *domain.User) error
	// BufferTask queues a whole-document create or delete.
	BufferTask(ctx context.Context, operation string, task *domain.Task) error
	// BufferTaskEdit queues a field edit made while the store was away.
	BufferTaskEdit(ctx context.Context, edit domain.TaskEdit) error
	// BufferAward queues a finalization award for replay. Awards are
	// idempotent by key, so replaying one that did land is harmless.
	BufferAward(ctx context.Context, award domain.Award) error
}

// Notifier delivers an in-app notification to n.UserID. Callers treat
// failures as best-effort.
type Notifier interface {
	Notify(ctx context.Context, n *domain.Notification) error
}

// FriendSource resolves the current friend list of a user.
type FriendSource interface {
	Friends(ctx context.Context, userID string) ([]string, error)
}

// FriendsObserver is told when a user's friend set changed so that
// per-friend listeners can be reconciled.
type FriendsObserver interface {
	FriendsChanged(ctx context.Context, userID string)
}
