package postgres

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT doc, version
		FROM users
		WHERE id = $1
	`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
		SELECT doc, version
		FROM users
		WHERE email = $1
		LIMIT 1
	`
	return scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))))
}

func (r *userRepository) Exists(ctx context.Context, id string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`
	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, storeError("check user", err, nil)
	}
	return exists, nil
}

func (r *userRepository) Upsert(ctx context.Context, user *domain.User) error {
	if user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}

	const query = `
	INSERT INTO users (id, email, doc, version, created_at, updated_at)
	VALUES ($1, $2, $3, 1, COALESCE($4, NOW()), NOW())
	ON CONFLICT (id) DO UPDATE
	SET email = EXCLUDED.email,
		doc = EXCLUDED.doc,
		version = users.version + 1,
		updated_at = NOW()
	RETURNING version, created_at, updated_at;
	`

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.Level = domain.CalculateLevel(user.Points)
	doc, err := json.Marshal(user)
	if err != nil {
		return err
	}

	var (
		version              int64
		createdAt, updatedAt time.Time
	)
	if err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		doc,
		nullTime(user.CreatedAt),
	).Scan(&version, &createdAt, &updatedAt); err != nil {
		return storeError("upsert user", err, nil)
	}

	user.Version = version
	user.CreatedAt = createdAt
	user.UpdatedAt = updatedAt
	return nil
}

func (r *userRepository) Update(ctx context.Context, id string, fn repository.UserMutation) (*domain.User, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := user.Version
	if err := fn(user); err != nil {
		return nil, err
	}
	user.Version = expected + 1
	user.UpdatedAt = time.Now().UTC()
	doc, err := json.Marshal(user)
	if err != nil {
		return nil, err
	}

	const query = `
	UPDATE users
	SET email = $3,
		doc = $4,
		version = version + 1,
		updated_at = NOW()
	WHERE id = $1 AND version = $2
	`
	tag, err := r.pool.Exec(ctx, query, id, expected, user.Email, doc)
	if err != nil {
		return nil, storeError("update user", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return nil, domain.ErrTxAborted
	}
	return user, nil
}

func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*domain.User, error) {
	var (
		doc     []byte
		version int64
	)
	if err := row.Scan(&doc, &version); err != nil {
		return nil, storeError("get user", err, domain.ErrUserNotFound)
	}
	var user domain.User
	if err := json.Unmarshal(doc, &user); err != nil {
		return nil, domain.WrapError(domain.ErrCodeInternal, "decode user", err)
	}
	user.Version = version
	return &user, nil
}
