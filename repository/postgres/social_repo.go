package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type friendRequestRepository struct {
	pool *pgxpool.Pool
}

func NewFriendRequestRepository(pool *pgxpool.Pool) repository.FriendRequestRepository {
	return &friendRequestRepository{pool: pool}
}

func (r *friendRequestRepository) Create(ctx context.Context, req *domain.FriendRequest) error {
	if req == nil || req.From == "" || req.To == "" {
		return domain.ErrInvalidPayload
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = domain.RequestPending
	}

	const query = `
	INSERT INTO friend_requests (id, from_uid, to_uid, status, created_at)
	VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
	RETURNING created_at
	`
	if err := r.pool.QueryRow(ctx, query,
		req.ID,
		req.From,
		req.To,
		string(req.Status),
		nullTime(req.CreatedAt),
	).Scan(&req.CreatedAt); err != nil {
		return storeError("create friend request", err, nil)
	}
	return nil
}

func (r *friendRequestRepository) Get(ctx context.Context, id string) (*domain.FriendRequest, error) {
	const query = `
	SELECT id, from_uid, to_uid, status, created_at
	FROM friend_requests
	WHERE id = $1
	`
	return scanFriendRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *friendRequestRepository) Find(ctx context.Context, filter repository.FriendRequestFilter) ([]domain.FriendRequest, error) {
	const query = `
	SELECT id, from_uid, to_uid, status, created_at
	FROM friend_requests
	WHERE ($1 = '' OR from_uid = $1)
	  AND ($2 = '' OR to_uid = $2)
	  AND ($3 = '' OR from_uid = $3 OR to_uid = $3)
	ORDER BY created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, filter.From, filter.To, filter.Party)
	if err != nil {
		return nil, storeError("find friend requests", err, nil)
	}
	defer rows.Close()

	var out []domain.FriendRequest
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, storeError("find friend requests", rows.Err(), nil)
}

func (r *friendRequestRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM friend_requests WHERE id = $1`, id)
	if err != nil {
		return storeError("delete friend request", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func scanFriendRequest(row interface {
	Scan(dest ...interface{}) error
}) (*domain.FriendRequest, error) {
	var (
		req    domain.FriendRequest
		status string
	)
	if err := row.Scan(&req.ID, &req.From, &req.To, &status, &req.CreatedAt); err != nil {
		return nil, storeError("scan friend request", err, domain.ErrRequestNotFound)
	}
	req.Status = domain.RequestStatus(status)
	return &req, nil
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(pool *pgxpool.Pool) repository.NotificationRepository {
	return &notificationRepository{pool: pool}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	const insert = `
	INSERT INTO notifications (id, user_id, type, title, message, data, read, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
	RETURNING created_at
	`
	const trim = `
	DELETE FROM notifications
	WHERE user_id = $1
	  AND seq NOT IN (
		SELECT seq FROM notifications WHERE user_id = $1 ORDER BY seq DESC LIMIT $2
	  )
	`

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insert,
			n.ID,
			n.UserID,
			string(n.Type),
			n.Title,
			n.Message,
			marshalMap(n.Data),
			n.Read,
			nullTime(n.CreatedAt),
		).Scan(&n.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, trim, n.UserID, domain.MaxNotificationsPerUser)
		return err
	})
	return storeError("create notification", err, nil)
}

func (r *notificationRepository) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	const query = `
	SELECT id, user_id, type, title, message, data, read, created_at
	FROM notifications
	WHERE user_id = $1
	ORDER BY seq DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, storeError("list notifications", err, nil)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		var (
			n    domain.Notification
			kind string
			data []byte
		)
		if err := rows.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Message, &data, &n.Read, &n.CreatedAt); err != nil {
			return nil, storeError("scan notification", err, nil)
		}
		n.Type = domain.NotificationType(kind)
		if len(data) > 0 {
			_ = json.Unmarshal(data, &n.Data)
		}
		out = append(out, n)
	}
	return out, storeError("list notifications", rows.Err(), nil)
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return storeError("mark notification read", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return storeError("delete notification", err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

type ledgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) repository.LedgerRepository {
	return &ledgerRepository{pool: pool}
}

func (r *ledgerRepository) Append(ctx context.Context, entry *domain.PointsEntry) error {
	if entry == nil || entry.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	const query = `
	INSERT INTO points_ledger (id, user_id, points, reason, task_key, created_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.Points,
		entry.Reason,
		entry.TaskKey,
		entry.CreatedAt,
	)
	return storeError("append ledger entry", err, nil)
}

func (r *ledgerRepository) List(ctx context.Context, userID string, limit int) ([]domain.PointsEntry, error) {
	const query = `
	SELECT id, user_id, points, reason, task_key, created_at
	FROM points_ledger
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, clampLimit(limit))
	if err != nil {
		return nil, storeError("list ledger", err, nil)
	}
	defer rows.Close()

	var out []domain.PointsEntry
	for rows.Next() {
		var e domain.PointsEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Points, &e.Reason, &e.TaskKey, &e.CreatedAt); err != nil {
			return nil, storeError("scan ledger entry", err, nil)
		}
		out = append(out, e)
	}
	return out, storeError("list ledger", rows.Err(), nil)
}
