// Package collab implements sharing, shared subtask edits and comments.
package collab

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// CommentRef locates a comment by id, or by position when ID is empty.
type CommentRef struct {
	ID    string
	Index int
}

type Option func(*UseCase)

// WithRetryPolicy replaces the policy used for transactional task edits.
func WithRetryPolicy(p retry.Policy) Option {
	return func(uc *UseCase) { uc.policy = p }
}

type UseCase struct {
	tasks    repository.TaskRepository
	users    repository.UserRepository
	notifier usecase.Notifier
	logger   *zap.Logger
	policy   retry.Policy
	now      func() time.Time
}

func New(
	tasks repository.TaskRepository,
	users repository.UserRepository,
	notifier usecase.Notifier,
	logger *zap.Logger,
	opts ...Option,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		tasks:    tasks,
		users:    users,
		notifier: notifier,
		logger:   logger,
		policy:   retry.Subtask(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ShareTask adds friendIDs to the collaborators of the caller's task. Every
// id must be a current friend of the caller; ids already shared with are
// skipped, and a selection with nothing new fails with ErrAlreadyShared.
func (uc *UseCase) ShareTask(ctx context.Context, callerID, taskID string, friendIDs []string) (*domain.Task, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthorized
	}
	if len(friendIDs) == 0 {
		return nil, domain.ErrEmptySelection
	}

	// The friend set is read fresh on every call.
	caller, err := uc.users.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	for _, id := range friendIDs {
		if !caller.HasFriend(id) {
			return nil, domain.ErrNotInFriendList
		}
	}

	var added []string
	task, err := uc.tasks.Update(ctx, callerID, taskID, func(task *domain.Task) error {
		if !task.CanDelete(callerID) {
			return domain.ErrNotOwner
		}
		if task.IsLocked() {
			return domain.ErrTaskFinalized
		}
		added = added[:0]
		for _, id := range friendIDs {
			if !task.IsSharedWith(id) && !slices.Contains(added, id) {
				added = append(added, id)
			}
		}
		if len(added) == 0 {
			return domain.ErrAlreadyShared
		}
		task.SharedWith = append(task.SharedWith, added...)
		task.RecomputeVisibility()
		task.Touch(callerID, uc.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, id := range added {
		uc.notify(ctx, &domain.Notification{
			UserID:  id,
			Type:    domain.NotificationTaskShared,
			Title:   "Task Shared",
			Message: fmt.Sprintf("%s shared a task with you", caller.Name()),
			Data: map[string]string{
				domain.DataFromUserID: callerID,
				domain.DataTaskID:     task.ID,
				domain.DataTaskName:   task.Name,
				domain.DataOwnerName:  caller.Name(),
			},
		})
	}
	uc.logger.Info("task shared",
		zap.String("owner_id", callerID),
		zap.String("task_id", taskID),
		zap.Strings("added", added))
	return task, nil
}

// UnshareTask removes one collaborator. Visibility drops back to private
// with the last collaborator. The committed write reaches the removed
// collaborator's shared-task listener, which drops the task.
func (uc *UseCase) UnshareTask(ctx context.Context, callerID, taskID, friendID string) (*domain.Task, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthorized
	}
	task, err := uc.tasks.Update(ctx, callerID, taskID, func(task *domain.Task) error {
		if !task.CanDelete(callerID) {
			return domain.ErrNotOwner
		}
		if task.IsLocked() {
			return domain.ErrTaskFinalized
		}
		if !task.IsSharedWith(friendID) {
			return domain.ErrNotShared
		}
		task.SharedWith = slices.DeleteFunc(task.SharedWith, func(id string) bool { return id == friendID })
		task.RecomputeVisibility()
		task.Touch(callerID, uc.now())
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.notify(ctx, &domain.Notification{
		UserID:  friendID,
		Type:    domain.NotificationTaskUnshared,
		Title:   "Task Unshared",
		Message: fmt.Sprintf("Task %q is no longer shared with you", task.Name),
		Data: map[string]string{
			domain.DataFromUserID: callerID,
			domain.DataTaskID:     task.ID,
			domain.DataTaskName:   task.Name,
		},
	})
	return task, nil
}

// UpdateSharedSubtask sets one subtask inside a transaction. Aborted
// transactions are retried by the configured policy before the caller sees
// ErrConcurrentUpdate.
func (uc *UseCase) UpdateSharedSubtask(ctx context.Context, callerID, ownerID, taskID string, index int, completed bool) (*domain.Task, error) {
	return uc.edit(ctx, callerID, ownerID, taskID, func(task *domain.Task) error {
		if index < 0 || index >= len(task.Subtasks) {
			return domain.ErrSubtaskIndex
		}
		task.Subtasks[index].Completed = completed
		if !completed {
			task.Completed = false
		}
		return nil
	})
}

// AddComment appends a comment with a generated id.
func (uc *UseCase) AddComment(ctx context.Context, callerID, ownerID, taskID, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyComment
	}
	var comment domain.Comment
	_, err := uc.edit(ctx, callerID, ownerID, taskID, func(task *domain.Task) error {
		comment = domain.Comment{
			ID:        uuid.NewString(),
			UID:       callerID,
			Text:      text,
			CreatedAt: uc.now(),
		}
		task.Comments = append(task.Comments, comment)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// EditComment replaces the text of a comment. Only its author may edit it.
func (uc *UseCase) EditComment(ctx context.Context, callerID, ownerID, taskID string, ref CommentRef, text string) (*domain.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.ErrEmptyComment
	}
	var edited domain.Comment
	_, err := uc.edit(ctx, callerID, ownerID, taskID, func(task *domain.Task) error {
		i := task.CommentIndex(ref.ID, ref.Index)
		if i < 0 {
			return domain.ErrCommentNotFound
		}
		if task.Comments[i].UID != callerID {
			return domain.ErrNotCommentAuthor
		}
		at := uc.now()
		task.Comments[i].Text = text
		task.Comments[i].EditedAt = &at
		edited = task.Comments[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &edited, nil
}

// DeleteComment removes a comment. The author and the task owner may delete.
func (uc *UseCase) DeleteComment(ctx context.Context, callerID, ownerID, taskID string, ref CommentRef) error {
	_, err := uc.edit(ctx, callerID, ownerID, taskID, func(task *domain.Task) error {
		i := task.CommentIndex(ref.ID, ref.Index)
		if i < 0 {
			return domain.ErrCommentNotFound
		}
		if task.Comments[i].UID != callerID && task.OwnerID != callerID {
			return domain.ErrCommentDeleteDenied
		}
		task.Comments = slices.Delete(task.Comments, i, i+1)
		return nil
	})
	return err
}

func CanUserEditTask(task *domain.Task, userID string) bool {
	return task.CanEdit(userID)
}

func CanDeleteTask(task *domain.Task, userID string) bool {
	return task.CanDelete(userID)
}

// edit runs fn in a task transaction for an owner or collaborator, retrying
// aborted transactions. The array fn sees is always re-read from the store.
func (uc *UseCase) edit(ctx context.Context, callerID, ownerID, taskID string, fn repository.TaskMutation) (*domain.Task, error) {
	if callerID == "" {
		return nil, domain.ErrUnauthorized
	}
	var updated *domain.Task
	err := retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		task, err := uc.tasks.Update(ctx, ownerID, taskID, func(task *domain.Task) error {
			if !task.CanEdit(callerID) {
				return domain.ErrNotCollaborator
			}
			if task.IsLocked() {
				return domain.ErrTaskFinalized
			}
			if err := fn(task); err != nil {
				return err
			}
			task.Touch(callerID, uc.now())
			return nil
		})
		if err != nil {
			return err
		}
		updated = task
		return nil
	})
	if err != nil {
		if retry.IsConcurrency(err) {
			uc.logger.Warn("task edit kept conflicting",
				zap.String("owner_id", ownerID),
				zap.String("task_id", taskID),
				zap.String("actor", callerID),
				zap.Error(err))
			return nil, domain.ErrConcurrentUpdate
		}
		return nil, err
	}
	return updated, nil
}

func (uc *UseCase) notify(ctx context.Context, n *domain.Notification) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, n); err != nil {
		uc.logger.Warn("failed to send notification",
			zap.String("user_id", n.UserID),
			zap.String("type", string(n.Type)),
			zap.Error(err))
	}
}
