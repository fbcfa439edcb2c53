package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
	sqliteRepo "github.com/fastygo/taskboard/repository/sqlite"
)

// Stores bundles the embedded repositories over one in-memory database.
type Stores struct {
	DB            *gorm.DB
	Tasks         repository.TaskRepository
	Users         repository.UserRepository
	Requests      repository.FriendRequestRepository
	Notifications repository.NotificationRepository
	Ledger        repository.LedgerRepository
}

func NewStores(t testing.TB) *Stores {
	t.Helper()
	db := NewInMemoryDB(t)
	return &Stores{
		DB:            db,
		Tasks:         sqliteRepo.NewTaskRepository(db),
		Users:         sqliteRepo.NewUserRepository(db),
		Requests:      sqliteRepo.NewFriendRequestRepository(db),
		Notifications: sqliteRepo.NewNotificationRepository(db),
		Ledger:        sqliteRepo.NewLedgerRepository(db),
	}
}

// SeedUser stores a user with the email "<id>@example.com".
func (s *Stores) SeedUser(t testing.TB, id string, friends ...string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id),
		DisplayName: id,
		Friends:     append([]string{}, friends...),
	}
	require.NoError(t, s.Users.Upsert(context.Background(), user))
	return user
}

// MakeFriends links a and b in both directions.
func (s *Stores) MakeFriends(t testing.TB, a, b string) {
	t.Helper()
	ctx := context.Background()
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		_, err := s.Users.Update(ctx, pair[0], func(u *domain.User) error {
			u.AddFriend(pair[1])
			return nil
		})
		require.NoError(t, err)
	}
}

// SeedTask stores a task for owner with two open subtasks, due in a week.
func (s *Stores) SeedTask(t testing.TB, ownerID string, opts ...func(*domain.Task)) *domain.Task {
	t.Helper()
	due := time.Now().UTC().Add(7 * 24 * time.Hour)
	task := &domain.Task{
		OwnerID:    ownerID,
		Name:       "story",
		Difficulty: 3,
		Workload:   3,
		Risk:       3,
		DueDate:    &due,
		Visibility: domain.VisibilityPrivate,
		SharedWith: []string{},
		Subtasks: []domain.Subtask{
			{Text: "design"},
			{Text: "build"},
		},
		Comments: []domain.Comment{},
	}
	task.StoryPoint = domain.CalculateStoryPoint(task.Difficulty, task.Workload, task.Risk, len(task.Subtasks))
	for _, opt := range opts {
		opt(task)
	}
	task.RecomputeVisibility()

	created, err := s.Tasks.Create(context.Background(), task)
	require.NoError(t, err)
	return created
}

// SharedWith is a SeedTask option.
func SharedWith(ids ...string) func(*domain.Task) {
	return func(task *domain.Task) {
		task.SharedWith = append([]string{}, ids...)
	}
}

// Completed is a SeedTask option marking every subtask and the task done.
func Completed() func(*domain.Task) {
	return func(task *domain.Task) {
		for i := range task.Subtasks {
			task.Subtasks[i].Completed = true
		}
		task.Completed = true
	}
}

// MustUser reloads a user.
func (s *Stores) MustUser(t testing.TB, id string) *domain.User {
	t.Helper()
	user, err := s.Users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return user
}

// MustTask reloads a task.
func (s *Stores) MustTask(t testing.TB, ownerID, taskID string) *domain.Task {
	t.Helper()
	task, err := s.Tasks.Get(context.Background(), ownerID, taskID)
	require.NoError(t, err)
	return task
}
