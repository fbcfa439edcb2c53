package repository

import (
	"context"

	"github.com/fastygo/taskboard/domain"
)

type UserMutation func(user *domain.User) error

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Exists(ctx context.Context, id string) (bool, error)
	Upsert(ctx context.Context, user *domain.User) error
	// Update is transactional; see TaskRepository.Update.
	Update(ctx context.Context, id string, fn UserMutation) (*domain.User, error)
}
