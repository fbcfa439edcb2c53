package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	"github.com/fastygo/taskboard/usecase"
	"github.com/fastygo/taskboard/usecase/cleanup"
	"github.com/fastygo/taskboard/usecase/session"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

// LoginCleaner runs the consistency pass that follows a login.
type LoginCleaner interface {
	RunOnLogin(ctx context.Context, userID string) (cleanup.Report, error)
}

// Options tune token issuing and the login side effects.
type Options struct {
	Secret         string
	Issuer         string
	CleanupOnLogin bool
}

// Login is the result of a successful login.
type Login struct {
	Session *domain.Session `json:"session"`
	Token   string          `json:"token"`
	Cleanup *cleanup.Report `json:"cleanup,omitempty"`
}

type UseCase struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	boards   *session.Manager
	tasks    *taskUC.UseCase
	friends  usecase.FriendSource
	cleaner  LoginCleaner
	opts     Options
	logger   *zap.Logger
}

func New(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	boards *session.Manager,
	tasks *taskUC.UseCase,
	friends usecase.FriendSource,
	cleaner LoginCleaner,
	opts Options,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Issuer == "" {
		opts.Issuer = "taskboard"
	}
	return &UseCase{
		users:    users,
		sessions: sessions,
		boards:   boards,
		tasks:    tasks,
		friends:  friends,
		cleaner:  cleaner,
		opts:     opts,
		logger:   logger,
	}
}

// Login stores a session, issues a token and opens the user's board
// session with its task listeners. Cleanup runs after the listeners are in
// place so its repairs reach them.
func (uc *UseCase) Login(ctx context.Context, userID string, ttl time.Duration) (*Login, error) {
	sess, err := uc.CreateSession(ctx, userID, ttl)
	if err != nil {
		return nil, err
	}
	token, err := uc.IssueToken(sess)
	if err != nil {
		_ = uc.sessions.Delete(ctx, sess.ID)
		return nil, err
	}

	if err := uc.openBoard(ctx, userID); err != nil {
		uc.logger.Warn("task listeners not attached", zap.String("user_id", userID), zap.Error(err))
	}

	out := &Login{Session: sess, Token: token}
	if uc.opts.CleanupOnLogin && uc.cleaner != nil {
		report, err := uc.cleaner.RunOnLogin(ctx, userID)
		if err != nil {
			uc.logger.Warn("login cleanup failed", zap.String("user_id", userID), zap.Error(err))
		} else {
			now := time.Now().UTC()
			sess.LastCleanupAt = &now
			if err := uc.sessions.Save(ctx, sess); err != nil {
				uc.logger.Debug("failed to stamp cleanup time", zap.Error(err))
			}
		}
		out.Cleanup = &report
	}
	return out, nil
}

// Logout revokes the stored session and closes the board session of its
// user, stopping every listener it owned.
func (uc *UseCase) Logout(ctx context.Context, sessionID string) error {
	sess, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if err := uc.sessions.Delete(ctx, sessionID); err != nil {
		return domain.WrapError(domain.ErrCodeUnavailable, "delete session", err)
	}
	if uc.boards == nil {
		return nil
	}
	return uc.boards.Close(ctx, sess.UserID)
}

func (uc *UseCase) CreateSession(ctx context.Context, userID string, ttl time.Duration) (*domain.Session, error) {
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	if _, err := uc.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sess := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	if err := uc.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (uc *UseCase) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	sess, err := uc.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.IsExpired(time.Now()) {
		_ = uc.sessions.Delete(ctx, sessionID)
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (uc *UseCase) RefreshSession(ctx context.Context, sessionID string, ttl time.Duration) (*domain.Session, error) {
	sess, err := uc.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := uc.sessions.Extend(ctx, sessionID, ttl); err != nil {
		return nil, err
	}
	sess.ExpiresAt = time.Now().UTC().Add(ttl)
	return sess, nil
}

// IssueToken signs an HS256 token carrying the user and session ids.
func (uc *UseCase) IssueToken(sess *domain.Session) (string, error) {
	if uc.opts.Secret == "" {
		return "", domain.NewError(domain.ErrCodeInternal, "token secret not configured")
	}
	claims := jwt.MapClaims{
		"user_id": sess.UserID,
		"sid":     sess.ID,
		"iss":     uc.opts.Issuer,
		"iat":     sess.IssuedAt.Unix(),
		"exp":     sess.ExpiresAt.Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(uc.opts.Secret))
}

func (uc *UseCase) openBoard(ctx context.Context, userID string) error {
	if uc.boards == nil || uc.tasks == nil {
		return nil
	}
	sess, created := uc.boards.Open(userID)
	if !created {
		return nil
	}

	stopOwn, err := uc.tasks.WatchOwnTasks(ctx, userID, func(tasks []domain.Task) {
		sess.View.ReplaceOwned(userID, tasks)
	})
	if err != nil {
		return err
	}
	sess.Track("own-tasks", stopOwn)

	shared, err := uc.tasks.WatchSharedTasks(ctx, userID, uc.friends, func(tasks []domain.Task) {
		sess.View.ReplaceShared(userID, tasks)
	})
	if err != nil {
		return err
	}
	sess.Track("shared-tasks", shared.Unsubscribe)
	return nil
}
