package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

type UseCase struct {
	notifications repository.NotificationRepository
	logger        *zap.Logger
}

func New(notifications repository.NotificationRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		notifications: notifications,
		logger:        logger,
	}
}

var _ usecase.Notifier = (*UseCase)(nil)

// Notify stores n for n.UserID. The repository keeps only the newest
// domain.MaxNotificationsPerUser entries.
func (uc *UseCase) Notify(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == "" || n.Type == "" {
		return domain.ErrInvalidPayload
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := uc.notifications.Create(ctx, n); err != nil {
		uc.logger.Warn("failed to store notification",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return err
	}
	return nil
}

func (uc *UseCase) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	return uc.notifications.List(ctx, userID)
}

func (uc *UseCase) MarkRead(ctx context.Context, userID, id string) error {
	return uc.notifications.MarkRead(ctx, userID, id)
}

func (uc *UseCase) Delete(ctx context.Context, userID, id string) error {
	return uc.notifications.Delete(ctx, userID, id)
}

// Unread counts notifications not yet read.
func (uc *UseCase) Unread(ctx context.Context, userID string) (int, error) {
	list, err := uc.notifications.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, n := range list {
		if !n.Read {
			count++
		}
	}
	return count, nil
}
