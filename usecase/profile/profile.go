package profile

import (
	"context"
	"net/mail"
	"strings"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// Update lists the editable profile fields. Empty fields are left alone.
type Update struct {
	DisplayName string
	Email       string
}

type UseCase struct {
	users  repository.UserRepository
	buffer usecase.OperationBuffer
	logger *zap.Logger
}

func New(users repository.UserRepository, buffer usecase.OperationBuffer, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:  users,
		buffer: buffer,
		logger: logger,
	}
}

func (uc *UseCase) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.users.GetByID(ctx, userID)
}

// UpdateProfile writes the changed fields. When the store is unreachable the
// change is buffered and the caller gets the optimistic result.
func (uc *UseCase) UpdateProfile(ctx context.Context, userID string, in Update) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return nil, domain.ErrInvalidEmail
		}
	}
	if in.DisplayName == "" && in.Email == "" {
		return nil, domain.ErrInvalidPayload
	}

	user, err := uc.users.Update(ctx, userID, func(u *domain.User) error {
		if in.DisplayName != "" {
			u.DisplayName = in.DisplayName
		}
		if in.Email != "" {
			u.Email = in.Email
		}
		return nil
	})
	if err == nil {
		return user, nil
	}
	if !retry.IsNetwork(err) || uc.buffer == nil {
		return nil, err
	}

	pending := &domain.User{ID: userID, DisplayName: in.DisplayName, Email: in.Email}
	if bufErr := uc.buffer.BufferProfile(ctx, usecase.OperationUpdate, pending); bufErr != nil {
		uc.logger.Error("failed to buffer profile update", zap.Error(bufErr))
		return nil, err
	}
	uc.logger.Warn("profile update buffered due to repository error", zap.String("user_id", userID), zap.Error(err))
	return pending, nil
}
