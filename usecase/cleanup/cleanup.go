// Package cleanup removes references that outlived the users or
// friendships they point to.
package cleanup

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// Report counts what one run changed. A run over consistent data reports zero.
type Report struct {
	InvalidFriendsRemoved       int `json:"invalidFriendsRemoved"`
	InvalidCollaboratorsRemoved int `json:"invalidCollaboratorsRemoved"`
	OrphanedRequestsRemoved     int `json:"orphanedRequestsRemoved"`
	TasksUpdated                int `json:"tasksUpdated"`
	StaleNotificationsRemoved   int `json:"staleNotificationsRemoved"`
}

// Changed reports whether anything was removed.
func (r Report) Changed() bool {
	return r != Report{}
}

type UseCase struct {
	users         repository.UserRepository
	tasks         repository.TaskRepository
	requests      repository.FriendRequestRepository
	notifications repository.NotificationRepository
	observer      usecase.FriendsObserver
	logger        *zap.Logger
}

func New(
	users repository.UserRepository,
	tasks repository.TaskRepository,
	requests repository.FriendRequestRepository,
	notifications repository.NotificationRepository,
	observer usecase.FriendsObserver,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:         users,
		tasks:         tasks,
		requests:      requests,
		notifications: notifications,
		observer:      observer,
		logger:        logger,
	}
}

// CleanupUserData sweeps three independent categories for userID: friends
// that no longer exist, collaborators on owned tasks that are gone or no
// longer friends, and friend requests whose counterparty is gone. A failing
// category is logged and does not stop the others; the failures are joined
// into the returned error.
func (uc *UseCase) CleanupUserData(ctx context.Context, userID string) (Report, error) {
	var report Report
	if userID == "" {
		return report, domain.ErrUnauthorized
	}
	exists := uc.existence()

	friends, friendsErr := uc.cleanFriends(ctx, userID, exists, &report)
	var tasksErr error
	sweep := friendsErr == nil
	if !sweep {
		// The friend sweep failed part way; judge collaborators against
		// the stored friend list instead.
		if user, err := uc.users.GetByID(ctx, userID); err == nil {
			friends, sweep = user.Friends, true
		} else {
			uc.logger.Warn("collaborator sweep skipped",
				zap.String("user_id", userID),
				zap.Error(err))
		}
	}
	if sweep {
		tasksErr = uc.cleanCollaborators(ctx, userID, friends, exists, &report)
	}
	requestsErr := uc.cleanRequests(ctx, userID, exists, &report)

	if report.InvalidFriendsRemoved > 0 && uc.observer != nil {
		uc.observer.FriendsChanged(ctx, userID)
	}
	err := errors.Join(friendsErr, tasksErr, requestsErr)
	uc.logResult("cleanup finished", userID, report, err)
	return report, err
}

// RunOnLogin runs CleanupUserData and then deletes notifications sent by
// users who are no longer friends. Pending friend requests keep their
// notification. Listing the owned tasks during the sweep also heals any
// corrupt finalized flag.
func (uc *UseCase) RunOnLogin(ctx context.Context, userID string) (Report, error) {
	report, err := uc.CleanupUserData(ctx, userID)
	if staleErr := uc.cleanNotifications(ctx, userID, &report); staleErr != nil {
		err = errors.Join(err, staleErr)
	}
	return report, err
}

func (uc *UseCase) cleanFriends(ctx context.Context, userID string, exists func(context.Context, string) (bool, error), report *Report) ([]string, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var gone []string
	for _, id := range user.Friends {
		ok, err := exists(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return user.Friends, nil
	}

	removed := 0
	updated, err := uc.users.Update(ctx, userID, func(u *domain.User) error {
		removed = 0
		for _, id := range gone {
			if u.RemoveFriend(id) {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	report.InvalidFriendsRemoved += removed
	return updated.Friends, nil
}

func (uc *UseCase) cleanCollaborators(ctx context.Context, userID string, friends []string, exists func(context.Context, string) (bool, error), report *Report) error {
	tasks, err := uc.tasks.ListByOwner(ctx, userID)
	if err != nil {
		return err
	}

	var errs []error
	for _, task := range tasks {
		// Finalized tasks keep their collaborators as the record of who was paid.
		if len(task.SharedWith) == 0 || task.IsLocked() {
			continue
		}
		var invalid []string
		for _, id := range task.SharedWith {
			if !slices.Contains(friends, id) {
				invalid = append(invalid, id)
				continue
			}
			ok, err := exists(ctx, id)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				invalid = append(invalid, id)
			}
		}
		if len(invalid) == 0 {
			continue
		}

		removed := 0
		_, err := uc.tasks.Update(ctx, userID, task.ID, func(t *domain.Task) error {
			before := len(t.SharedWith)
			t.SharedWith = slices.DeleteFunc(t.SharedWith, func(id string) bool {
				return slices.Contains(invalid, id)
			})
			t.RecomputeVisibility()
			removed = before - len(t.SharedWith)
			return nil
		})
		if err != nil {
			uc.logger.Warn("failed to remove invalid collaborators",
				zap.String("owner_id", userID),
				zap.String("task_id", task.ID),
				zap.Error(err))
			errs = append(errs, err)
			continue
		}
		report.InvalidCollaboratorsRemoved += removed
		report.TasksUpdated++
	}
	return errors.Join(errs...)
}

func (uc *UseCase) cleanRequests(ctx context.Context, userID string, exists func(context.Context, string) (bool, error), report *Report) error {
	requests, err := uc.requests.Find(ctx, repository.FriendRequestFilter{Party: userID})
	if err != nil {
		return err
	}

	var errs []error
	for _, req := range requests {
		ok, err := exists(ctx, req.Counterparty(userID))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			continue
		}
		if err := uc.requests.Delete(ctx, req.ID); err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
			errs = append(errs, err)
			continue
		}
		report.OrphanedRequestsRemoved++
	}
	return errors.Join(errs...)
}

func (uc *UseCase) cleanNotifications(ctx context.Context, userID string, report *Report) error {
	if uc.notifications == nil {
		return nil
	}
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	notes, err := uc.notifications.List(ctx, userID)
	if err != nil {
		return err
	}

	var errs []error
	for _, n := range notes {
		from := n.FromUser()
		if from == "" || n.Type == domain.NotificationFriendRequest || user.HasFriend(from) {
			continue
		}
		if err := uc.notifications.Delete(ctx, userID, n.ID); err != nil && !errors.Is(err, domain.ErrNotificationNotFound) {
			errs = append(errs, err)
			continue
		}
		report.StaleNotificationsRemoved++
	}
	return errors.Join(errs...)
}

// existence memoises user lookups for the duration of one run.
func (uc *UseCase) existence() func(context.Context, string) (bool, error) {
	seen := make(map[string]bool)
	return func(ctx context.Context, id string) (bool, error) {
		if ok, cached := seen[id]; cached {
			return ok, nil
		}
		ok, err := uc.users.Exists(ctx, id)
		if err != nil {
			return false, err
		}
		seen[id] = ok
		return ok, nil
	}
}

func (uc *UseCase) logResult(msg, userID string, report Report, err error) {
	fields := []zap.Field{
		zap.String("user_id", userID),
		zap.Int("friends_removed", report.InvalidFriendsRemoved),
		zap.Int("collaborators_removed", report.InvalidCollaboratorsRemoved),
		zap.Int("requests_removed", report.OrphanedRequestsRemoved),
		zap.Int("tasks_updated", report.TasksUpdated),
	}
	if err != nil {
		uc.logger.Warn(msg, append(fields, zap.Error(err))...)
		return
	}
	if report.Changed() {
		uc.logger.Info(msg, fields...)
		return
	}
	uc.logger.Debug(msg, fields...)
}
