package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

type friendRequestRepository struct {
	db *gorm.DB
}

func NewFriendRequestRepository(db *gorm.DB) repository.FriendRequestRepository {
	return &friendRequestRepository{db: db}
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
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	rec := friendRequestRecord{
		ID:        req.ID,
		FromUID:   req.From,
		ToUID:     req.To,
		Status:    string(req.Status),
		CreatedAt: req.CreatedAt,
	}
	return storeError("create friend request", r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *friendRequestRepository) Get(ctx context.Context, id string) (*domain.FriendRequest, error) {
	var rec friendRequestRecord
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, storeError("get friend request", err)
	}
	req := toFriendRequest(rec)
	return &req, nil
}

func (r *friendRequestRepository) Find(ctx context.Context, filter repository.FriendRequestFilter) ([]domain.FriendRequest, error) {
	query := r.db.WithContext(ctx).Model(&friendRequestRecord{})
	if filter.From != "" {
		query = query.Where("from_uid = ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("to_uid = ?", filter.To)
	}
	if filter.Party != "" {
		query = query.Where("from_uid = ? OR to_uid = ?", filter.Party, filter.Party)
	}

	var recs []friendRequestRecord
	if err := query.Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, storeError("find friend requests", err)
	}
	out := make([]domain.FriendRequest, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toFriendRequest(rec))
	}
	return out, nil
}

func (r *friendRequestRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&friendRequestRecord{})
	if res.Error != nil {
		return storeError("delete friend request", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrRequestNotFound
	}
	return nil
}

func toFriendRequest(rec friendRequestRecord) domain.FriendRequest {
	return domain.FriendRequest{
		ID:        rec.ID,
		From:      rec.FromUID,
		To:        rec.ToUID,
		Status:    domain.RequestStatus(rec.Status),
		CreatedAt: rec.CreatedAt,
	}
}

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if n == nil || n.UserID == "" {
		return domain.ErrInvalidPayload
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(n.Data)
	if err != nil {
		return err
	}
	rec := notificationRecord{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Data:      data,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		var seqs []uint64
		if err := tx.Model(&notificationRecord{}).
			Where("user_id = ?", n.UserID).
			Order("seq DESC").
			Pluck("seq", &seqs).Error; err != nil {
			return err
		}
		if len(seqs) <= domain.MaxNotificationsPerUser {
			return nil
		}
		return tx.Where("seq IN ?", seqs[domain.MaxNotificationsPerUser:]).Delete(&notificationRecord{}).Error
	})
	return storeError("create notification", err)
}

func (r *notificationRepository) List(ctx context.Context, userID string) ([]domain.Notification, error) {
	var recs []notificationRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("seq DESC").
		Find(&recs).Error; err != nil {
		return nil, storeError("list notifications", err)
	}
	out := make([]domain.Notification, 0, len(recs))
	for _, rec := range recs {
		n := domain.Notification{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Type:      domain.NotificationType(rec.Type),
			Title:     rec.Title,
			Message:   rec.Message,
			Read:      rec.Read,
			CreatedAt: rec.CreatedAt,
		}
		if len(rec.Data) > 0 {
			_ = json.Unmarshal(rec.Data, &n.Data)
		}
		out = append(out, n)
	}
	return out, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).
		Model(&notificationRecord{}).
		Where("user_id = ? AND id = ?", userID, id).
		Update("read", true)
	if res.Error != nil {
		return storeError("mark notification read", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (r *notificationRepository) Delete(ctx context.Context, userID, id string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).Delete(&notificationRecord{})
	if res.Error != nil {
		return storeError("delete notification", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotificationNotFound
	}
	return nil
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) repository.LedgerRepository {
	return &ledgerRepository{db: db}
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
	rec := ledgerRecord{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Points:    entry.Points,
		Reason:    entry.Reason,
		TaskKey:   entry.TaskKey,
		CreatedAt: entry.CreatedAt,
	}
	return storeError("append ledger entry", r.db.WithContext(ctx).Create(&rec).Error)
}

func (r *ledgerRepository) List(ctx context.Context, userID string, limit int) ([]domain.PointsEntry, error) {
	var recs []ledgerRecord
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(clampLimit(limit)).
		Find(&recs).Error; err != nil {
		return nil, storeError("list ledger", err)
	}
	out := make([]domain.PointsEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, domain.PointsEntry{
			ID:        rec.ID,
			UserID:    rec.UserID,
			Points:    rec.Points,
			Reason:    rec.Reason,
			TaskKey:   rec.TaskKey,
			CreatedAt: rec.CreatedAt,
		})
	}
	return out, nil
}
