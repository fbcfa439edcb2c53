package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository instantiates a gorm-backed user repository.
func NewUserRepository(db *gorm.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	rec, err := r.load(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	return r.decode(rec)
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	rec, err := r.load(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	return r.decode(rec)
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&userRecord{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, storeError("check user", err)
	}
	return count > 0, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Level = domain.CalculateLevel(user.Points)

	var current userRecord
	err := r.db.WithContext(ctx).Where("id = ?", user.ID).Take(&current).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user.Version = 1
	case err != nil:
		return storeError("get user", err)
	default:
		user.Version = current.Version + 1
	}

	doc, err := json.Marshal(user)
	if err != nil {
		return err
	}
	rec := userRecord{
		ID:        user.ID,
		Email:     user.Email,
		Doc:       doc,
		Version:   user.Version,
		CreatedAt: user.CreatedAt,
		UpdatedAt: now,
	}
	return storeError("upsert user", r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"email", "doc", "version", "updated_at"}),
	}).Create(&rec).Error)
}

func (r *userRepository) Update(ctx context.Context, id string, fn repository.UserMutation) (*domain.User, error) {
	rec, err := r.load(ctx, "id = ?", id)
	if err != nil {
		return nil, err
	}
	user, err := r.decode(rec)
	if err != nil {
		return nil, err
	}
	if err := fn(user); err != nil {
		return nil, err
	}

	expected := rec.Version
	user.Version = expected + 1
	user.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}
	res := r.db.WithContext(ctx).
		Model(&userRecord{}).
		Where("id = ? AND version = ?", id, expected).
		Updates(map[string]interface{}{
			"email":      user.Email,
			"doc":        doc,
			"version":    expected + 1,
			"updated_at": user.UpdatedAt,
		})
	if res.Error != nil {
		return nil, storeError("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrTxAborted
	}
	return user, nil
}

func (r *userRepository) load(ctx context.Context, query string, arg string) (*userRecord, error) {
	var rec userRecord
	if err := r.db.WithContext(ctx).Where(query, arg).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, storeError("get user", err)
	}
	return &rec, nil
}

func (r *userRepository) decode(rec *userRecord) (*domain.User, error) {
	user, err := decodeUser(rec)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode user", err)
	}
	return user, nil
}
