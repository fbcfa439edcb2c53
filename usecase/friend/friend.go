// Package friend manages friend requests and the symmetric friend set.
package friend

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// Outcome tells a sender what their request turned into.
type Outcome string

const (
	OutcomeSent     Outcome = "sent"
	OutcomeAccepted Outcome = "mutual-accepted"
)

type Option func(*UseCase)

// WithRetryPolicy replaces the policy used when a friend-set write loses a
// race with another writer.
func WithRetryPolicy(p retry.Policy) Option {
	return func(uc *UseCase) { uc.policy = p }
}

type UseCase struct {
	users         repository.UserRepository
	requests      repository.FriendRequestRepository
	notifications repository.NotificationRepository
	notifier      usecase.Notifier
	observer      usecase.FriendsObserver
	policy        retry.Policy
	logger        *zap.Logger
}

func New(
	users repository.UserRepository,
	requests repository.FriendRequestRepository,
	notifications repository.NotificationRepository,
	notifier usecase.Notifier,
	observer usecase.FriendsObserver,
	logger *zap.Logger,
	opts ...Option,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		users:         users,
		requests:      requests,
		notifications: notifications,
		notifier:      notifier,
		observer:      observer,
		policy: retry.Policy{
			Attempts:   3,
			BaseDelay:  100 * time.Millisecond,
			Multiplier: 2,
			MaxDelay:   time.Second,
			RetryIf:    retry.IsConcurrency,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// SendFriendRequest looks the target up by email and sends a request.
func (uc *UseCase) SendFriendRequest(ctx context.Context, fromID, email string) (Outcome, error) {
	if fromID == "" {
		return "", domain.ErrUnauthorized
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", domain.ErrInvalidEmail
	}
	target, err := uc.users.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	return uc.send(ctx, fromID, target)
}

// SendFriendRequestByID sends a request to a known user id.
func (uc *UseCase) SendFriendRequestByID(ctx context.Context, fromID, targetID string) (Outcome, error) {
	if fromID == "" {
		return "", domain.ErrUnauthorized
	}
	if strings.TrimSpace(targetID) == "" {
		return "", domain.ErrInvalidPayload
	}
	target, err := uc.users.GetByID(ctx, targetID)
	if err != nil {
		return "", err
	}
	return uc.send(ctx, fromID, target)
}

// send checks, in order: self, already friends, a pending request from the
// target (accepted on the spot), a duplicate request from the sender.
func (uc *UseCase) send(ctx context.Context, fromID string, target *domain.User) (Outcome, error) {
	if target.ID == fromID {
		return "", domain.ErrSelfRequest
	}
	sender, err := uc.users.GetByID(ctx, fromID)
	if err != nil {
		return "", err
	}
	if sender.HasFriend(target.ID) {
		return "", domain.ErrAlreadyFriends
	}

	mutual, err := uc.requests.Find(ctx, repository.FriendRequestFilter{From: target.ID, To: fromID})
	if err != nil {
		return "", err
	}
	if len(mutual) > 0 {
		if err := uc.link(ctx, sender.ID, target.ID); err != nil {
			return "", err
		}
		for _, req := range mutual {
			uc.dropRequest(ctx, req.ID)
		}
		uc.notify(ctx, target.ID, domain.NotificationFriendAccepted, "Friend Request Accepted",
			fmt.Sprintf("%s accepted your friend request", sender.Name()), sender.ID)
		uc.notify(ctx, sender.ID, domain.NotificationFriendAccepted, "Friend Request Accepted",
			fmt.Sprintf("%s is now your friend", target.Name()), target.ID)
		return OutcomeAccepted, nil
	}

	existing, err := uc.requests.Find(ctx, repository.FriendRequestFilter{From: fromID, To: target.ID})
	if err != nil {
		return "", err
	}
	if len(existing) > 0 {
		return "", domain.ErrDuplicateRequest
	}

	req := &domain.FriendRequest{From: fromID, To: target.ID, Status: domain.RequestPending}
	if err := uc.requests.Create(ctx, req); err != nil {
		return "", err
	}
	uc.notify(ctx, target.ID, domain.NotificationFriendRequest, "New Friend Request",
		fmt.Sprintf("%s sent you a friend request", sender.Name()), sender.ID,
		domain.DataRequestID, req.ID)
	return OutcomeSent, nil
}

// AcceptFriendRequest links both users and deletes the request. Only the
// recipient may accept.
func (uc *UseCase) AcceptFriendRequest(ctx context.Context, userID, requestID string) error {
	req, err := uc.pending(ctx, userID, requestID)
	if err != nil {
		return err
	}
	if err := uc.link(ctx, req.To, req.From); err != nil {
		return err
	}
	uc.dropRequest(ctx, req.ID)

	accepter, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		accepter = &domain.User{ID: userID}
	}
	uc.notify(ctx, req.From, domain.NotificationFriendAccepted, "Friend Request Accepted",
		fmt.Sprintf("%s accepted your friend request", accepter.Name()), userID)
	return nil
}

// RejectFriendRequest deletes the request without side effects.
func (uc *UseCase) RejectFriendRequest(ctx context.Context, userID, requestID string) error {
	req, err := uc.pending(ctx, userID, requestID)
	if err != nil {
		return err
	}
	return uc.requests.Delete(ctx, req.ID)
}

// ListPendingRequests returns requests addressed to userID.
func (uc *UseCase) ListPendingRequests(ctx context.Context, userID string) ([]domain.FriendRequest, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return uc.requests.Find(ctx, repository.FriendRequestFilter{To: userID})
}

// ListFriends resolves the friend documents of userID. Friends that no
// longer exist are skipped; cleanup removes them.
func (uc *UseCase) ListFriends(ctx context.Context, userID string) ([]domain.User, error) {
	ids, err := uc.Friends(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.User, 0, len(ids))
	for _, id := range ids {
		friend, err := uc.users.GetByID(ctx, id)
		if errors.Is(err, domain.ErrUserNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *friend)
	}
	return out, nil
}

// Friends implements usecase.FriendSource with a fresh read.
func (uc *UseCase) Friends(ctx context.Context, userID string) ([]string, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), user.Friends...), nil
}

// RemoveFriend unlinks both users and deletes the notifications they sent
// each other. Tasks still shared between them are left to cleanup.
func (uc *UseCase) RemoveFriend(ctx context.Context, userID, friendID string) error {
	if userID == "" {
		return domain.ErrUnauthorized
	}
	if friendID == "" || friendID == userID {
		return domain.ErrInvalidPayload
	}
	if err := uc.updateUser(ctx, userID, func(u *domain.User) error {
		u.RemoveFriend(friendID)
		return nil
	}); err != nil {
		return err
	}
	if err := uc.updateUser(ctx, friendID, func(u *domain.User) error {
		u.RemoveFriend(userID)
		return nil
	}); err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return err
	}

	uc.purgeNotifications(ctx, userID, friendID)
	uc.purgeNotifications(ctx, friendID, userID)
	uc.changed(ctx, userID, friendID)
	return nil
}

func (uc *UseCase) pending(ctx context.Context, userID, requestID string) (*domain.FriendRequest, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	req, err := uc.requests.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.To != userID {
		return nil, domain.ErrNotRequestRecipient
	}
	if req.Status != domain.RequestPending {
		return nil, domain.ErrRequestNotPending
	}
	return req, nil
}

// link adds each user to the other's friend set.
func (uc *UseCase) link(ctx context.Context, a, b string) error {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		other := pair[1]
		if err := uc.updateUser(ctx, pair[0], func(u *domain.User) error {
			u.AddFriend(other)
			return nil
		}); err != nil {
			return err
		}
	}
	uc.changed(ctx, a, b)
	return nil
}

// updateUser commits fn, retrying when a concurrent write aborts it.
func (uc *UseCase) updateUser(ctx context.Context, id string, fn repository.UserMutation) error {
	return retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		_, err := uc.users.Update(ctx, id, fn)
		return err
	})
}

func (uc *UseCase) changed(ctx context.Context, ids ...string) {
	if uc.observer == nil {
		return
	}
	for _, id := range ids {
		uc.observer.FriendsChanged(ctx, id)
	}
}

func (uc *UseCase) dropRequest(ctx context.Context, id string) {
	if err := uc.requests.Delete(ctx, id); err != nil && !errors.Is(err, domain.ErrRequestNotFound) {
		uc.logger.Warn("failed to delete friend request", zap.String("request_id", id), zap.Error(err))
	}
}

func (uc *UseCase) purgeNotifications(ctx context.Context, recipientID, fromID string) {
	if uc.notifications == nil {
		return
	}
	notes, err := uc.notifications.List(ctx, recipientID)
	if err != nil {
		uc.logger.Warn("could not list notifications", zap.String("user_id", recipientID), zap.Error(err))
		return
	}
	for _, n := range notes {
		if n.FromUser() != fromID {
			continue
		}
		if err := uc.notifications.Delete(ctx, recipientID, n.ID); err != nil {
			uc.logger.Warn("could not delete notification",
				zap.String("user_id", recipientID),
				zap.String("notification_id", n.ID),
				zap.Error(err))
		}
	}
}

// notify sends a best-effort notification. extra holds key/value pairs for
// the data map.
func (uc *UseCase) notify(ctx context.Context, to string, kind domain.NotificationType, title, message, fromID string, extra ...string) {
	if uc.notifier == nil {
		return
	}
	data := map[string]string{domain.DataFromUserID: fromID}
	for i := 0; i+1 < len(extra); i += 2 {
		data[extra[i]] = extra[i+1]
	}
	n := &domain.Notification{UserID: to, Type: kind, Title: title, Message: message, Data: data}
	if err := uc.notifier.Notify(ctx, n); err != nil {
		uc.logger.Warn("failed to send notification",
			zap.String("user_id", to),
			zap.String("type", string(kind)),
			zap.Error(err))
	}
}
