package repository

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

// FriendRequestFilter matches on any non-empty field.
type FriendRequestFilter struct {
	From string
	To   string
	// Party matches requests where the user is either sender or recipient.
	Party string
}

type FriendRequestRepository interface {
	Create(ctx context.Context, req *domain.FriendRequest) error
	Get(ctx context.Context, id string) (*domain.FriendRequest, error)
	Find(ctx context.Context, filter FriendRequestFilter) ([]domain.FriendRequest, error)
	Delete(ctx context.Context, id string) error
}

type NotificationRepository interface {
	// Create inserts n and trims the recipient's list to the newest
	// domain.MaxNotificationsPerUser entries.
	Create(ctx context.Context, n *domain.Notification) error
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID, id string) error
	Delete(ctx context.Context, userID, id string) error
}

type LedgerRepository interface {
	Append(ctx context.Context, entry *domain.PointsEntry) error
	List(ctx context.Context, userID string, limit int) ([]domain.PointsEntry, error)
}
