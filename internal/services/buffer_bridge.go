package services

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/internal/infrastructure/buffer"
	"github.com/fastygo/taskboard/usecase"
)

type BufferBridge struct {
	processor *BufferProcessor
}

func NewBufferBridge(processor *BufferProcessor) *BufferBridge {
	return &BufferBridge{processor: processor}
}

func (b *BufferBridge) BufferProfile(ctx context.Context, operation string, user *domain.User) error {
	if b.processor == nil || user == nil || user.ID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    user.ID,
		Entity:    buffer.EntityProfile,
		Operation: operation,
		Key:       user.ID,
		Data:      payload,
	})
}

// BufferTask accepts creates and deletes only. Updates go through
// BufferTaskEdit so a replay cannot overwrite fields written by others.
func (b *BufferBridge) BufferTask(ctx context.Context, operation string, task *domain.Task) error {
	if b.processor == nil || task == nil || task.OwnerID == "" {
		return domain.ErrInvalidPayload
	}
	if operation != buffer.OperationCreate && operation != buffer.OperationDelete {
		return domain.ErrInvalidPayload
	}
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    task.OwnerID,
		Entity:    buffer.EntityTask,
		Operation: operation,
		Key:       task.Key(),
		Data:      payload,
	})
}

func (b *BufferBridge) BufferTaskEdit(ctx context.Context, edit domain.TaskEdit) error {
	if b.processor == nil || edit.OwnerID == "" || edit.TaskID == "" || edit.ActorID == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(edit)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    edit.ActorID,
		Entity:    buffer.EntityTask,
		Operation: buffer.OperationUpdate,
		Key:       edit.Key(),
		Data:      payload,
	})
}

func (b *BufferBridge) BufferAward(ctx context.Context, award domain.Award) error {
	if b.processor == nil || award.UserID == "" || award.Key == "" {
		return domain.ErrInvalidPayload
	}
	payload, err := json.Marshal(award)
	if err != nil {
		return err
	}
	return b.processor.BufferOperation(ctx, buffer.Item{
		UserID:    award.UserID,
		Entity:    buffer.EntityAward,
		Operation: buffer.OperationApply,
		Key:       award.Key + "#" + award.UserID,
		Data:      payload,
	})
}

var _ usecase.OperationBuffer = (*BufferBridge)(nil)
