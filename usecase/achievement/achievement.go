package achievement

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/pkg/retry"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
)

// errUnchanged short-circuits a user transaction that has nothing to write.
var errUnchanged = errors.New("unchanged")

type UseCase struct {
	users    repository.UserRepository
	ledger   repository.LedgerRepository
	notifier usecase.Notifier
	logger   *zap.Logger
	policy   retry.Policy
	now      func() time.Time
}

func New(users repository.UserRepository, ledger repository.LedgerRepository, notifier usecase.Notifier, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		users:    users,
		ledger:   ledger,
		notifier: notifier,
		logger:   logger,
		policy: retry.Policy{
			Attempts:   3,
			BaseDelay:  50 * time.Millisecond,
			Multiplier: 2,
			RetryIf:    retry.IsConcurrency,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Progress summarises a user's position on the level curve.
type Progress struct {
	Points             int          `json:"points"`
	Level              int          `json:"level"`
	PointsForNextLevel int          `json:"pointsForNextLevel"`
	PointsToNextLevel  int          `json:"pointsToNextLevel"`
	Stats              domain.Stats `json:"stats"`
}

// Status is a catalog entry annotated for one user.
type Status struct {
	domain.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
}

// AddPoints adds points and recomputes the level in one transaction, then
// records the change in the ledger.
func (uc *UseCase) AddPoints(ctx context.Context, userID string, points int, reason string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPayload
	}
	if points < 0 {
		return nil, domain.ErrInvalidPoints
	}

	var user *domain.User
	err := retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		var err error
		user, err = uc.users.Update(ctx, userID, func(u *domain.User) error {
			u.Points += points
			u.Level = domain.CalculateLevel(u.Points)
			return nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.record(ctx, &domain.PointsEntry{UserID: userID, Points: points, Reason: reason})
	uc.logger.Info("points added",
		zap.String("user_id", userID),
		zap.Int("points", points),
		zap.Int("total", user.Points),
		zap.String("reason", reason))
	return user, nil
}

// UpdateStats sets or increments one stats counter.
func (uc *UseCase) UpdateStats(ctx context.Context, userID string, stat domain.RequirementType, value int, increment bool) (*domain.User, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPayload
	}
	var scratch domain.Stats
	if !scratch.Adjust(stat, 0, true) {
		return nil, domain.ErrInvalidPayload
	}

	var user *domain.User
	err := retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		var err error
		user, err = uc.users.Update(ctx, userID, func(u *domain.User) error {
			u.Stats.Adjust(stat, value, increment)
			return nil
		})
		return err
	})
	return user, err
}

// ApplyAward credits a finalization award. Points, level, stats and the
// award key are written in one transaction; an award whose key is already
// recorded is skipped. It reports whether the award was applied now.
func (uc *UseCase) ApplyAward(ctx context.Context, award domain.Award) (bool, error) {
	if award.UserID == "" || award.Key == "" || award.Points < 0 {
		return false, domain.ErrInvalidPayload
	}

	err := retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		_, err := uc.users.Update(ctx, award.UserID, func(u *domain.User) error {
			if slices.Contains(u.AwardedTasks, award.Key) {
				return errUnchanged
			}
			u.Points += award.Points
			u.Level = domain.CalculateLevel(u.Points)
			u.Stats.TasksCompleted++
			if award.Collaborator {
				u.Stats.HelpedFriends++
			}
			if award.BeforeDueDate {
				u.Stats.TasksBeforeDeadline++
			}
			u.AwardedTasks = append(u.AwardedTasks, award.Key)
			return nil
		})
		return err
	})
	if errors.Is(err, errUnchanged) {
		uc.logger.Debug("award already applied", zap.String("user_id", award.UserID), zap.String("key", award.Key))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	uc.record(ctx, &domain.PointsEntry{
		UserID:  award.UserID,
		Points:  award.Points,
		Reason:  award.Reason,
		TaskKey: award.Key,
	})
	if _, err := uc.CheckAndUnlockAchievements(ctx, award.UserID); err != nil {
		uc.logger.Warn("achievement check failed", zap.String("user_id", award.UserID), zap.Error(err))
	}
	return true, nil
}

// CheckAndUnlockAchievements unlocks every catalog entry whose requirement
// is met and returns the newly unlocked ids. Running it again is a no-op.
func (uc *UseCase) CheckAndUnlockAchievements(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, domain.ErrInvalidPayload
	}

	var unlocked []string
	err := retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		unlocked = nil
		_, err := uc.users.Update(ctx, userID, func(u *domain.User) error {
			at := uc.now()
			for _, a := range domain.Achievements {
				if u.HasAchievement(a.ID) || !a.Met(u.Stats, u.Points) {
					continue
				}
				u.Achievements = append(u.Achievements, a.ID)
				if u.AchievementNotifications == nil {
					u.AchievementNotifications = make(map[string]domain.AchievementStatus)
				}
				u.AchievementNotifications[a.ID] = domain.AchievementStatus{Unlocked: true, UnlockedAt: &at}
				unlocked = append(unlocked, a.ID)
			}
			if len(unlocked) == 0 {
				return errUnchanged
			}
			return nil
		})
		return err
	})
	if errors.Is(err, errUnchanged) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	for _, id := range unlocked {
		uc.announce(ctx, userID, id)
	}
	return unlocked, nil
}

// GetUnnotifiedAchievements lists unlocked achievements not yet shown.
func (uc *UseCase) GetUnnotifiedAchievements(ctx context.Context, userID string) ([]domain.Achievement, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	var out []domain.Achievement
	for _, a := range domain.Achievements {
		status, ok := user.AchievementNotifications[a.ID]
		if ok && status.Unlocked && !status.Notified {
			out = append(out, a)
		}
	}
	return out, nil
}

func (uc *UseCase) MarkAchievementAsNotified(ctx context.Context, userID, achievementID string) error {
	if _, ok := domain.FindAchievement(achievementID); !ok {
		return domain.ErrInvalidPayload
	}
	return retry.Do(ctx, uc.policy, func(ctx context.Context) error {
		_, err := uc.users.Update(ctx, userID, func(u *domain.User) error {
			status, ok := u.AchievementNotifications[achievementID]
			if !ok || status.Notified {
				return errUnchanged
			}
			at := uc.now()
			status.Notified = true
			status.NotifiedAt = &at
			u.AchievementNotifications[achievementID] = status
			return nil
		})
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	})
}

// ListAchievements returns the catalog with the user's unlock state.
func (uc *UseCase) ListAchievements(ctx context.Context, userID string) ([]Status, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]Status, 0, len(domain.Achievements))
	for _, a := range domain.Achievements {
		s := Status{Achievement: a, Unlocked: user.HasAchievement(a.ID)}
		if status, ok := user.AchievementNotifications[a.ID]; ok {
			s.UnlockedAt = status.UnlockedAt
		}
		out = append(out, s)
	}
	return out, nil
}

func (uc *UseCase) GetProgress(ctx context.Context, userID string) (*Progress, error) {
	user, err := uc.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	level := domain.CalculateLevel(user.Points)
	next := domain.PointsForNextLevel(level)
	return &Progress{
		Points:             user.Points,
		Level:              level,
		PointsForNextLevel: next,
		PointsToNextLevel:  next - user.Points,
		Stats:              user.Stats,
	}, nil
}

// History returns the newest ledger entries.
func (uc *UseCase) History(ctx context.Context, userID string, limit int) ([]domain.PointsEntry, error) {
	return uc.ledger.List(ctx, userID, limit)
}

func (uc *UseCase) record(ctx context.Context, entry *domain.PointsEntry) {
	if uc.ledger == nil {
		return
	}
	if err := uc.ledger.Append(ctx, entry); err != nil {
		uc.logger.Warn("failed to append ledger entry", zap.String("user_id", entry.UserID), zap.Error(err))
	}
}

func (uc *UseCase) announce(ctx context.Context, userID, achievementID string) {
	if uc.notifier == nil {
		return
	}
	a, _ := domain.FindAchievement(achievementID)
	err := uc.notifier.Notify(ctx, &domain.Notification{
		UserID:  userID,
		Type:    domain.NotificationAchievement,
		Title:   "Achievement unlocked",
		Message: "You unlocked " + a.Name + "!",
		Data: map[string]string{
			domain.DataAchievementID: a.ID,
			domain.DataPoints:        strconv.Itoa(a.Points),
		},
	})
	if err != nil {
		uc.logger.Warn("failed to send achievement notification",
			zap.String("user_id", userID),
			zap.String("achievement_id", achievementID),
			zap.Error(err))
	}
}
