package repository

import (
	"context"
	"time"

	"github.com/fastygo/taskboard/domain"
)

// SessionRepository stores login sessions. Get reports unknown or expired
// ids as domain.ErrSessionNotFound.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*domain.Session, error)
	Save(ctx context.Context, session *domain.Session) error
	Delete(ctx context.Context, id string) error
	Extend(ctx context.Context, id string, ttl time.Duration) error
}
