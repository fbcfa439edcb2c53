package testutil

import (
	"context"
	"sync"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// FlakyTasks fails the next Aborts updates with domain.ErrTxAborted and the
// next Outages calls of any write with domain.ErrStoreUnavailable.
type FlakyTasks struct {
	repository.TaskRepository

	mu      sync.Mutex
	Aborts  int
	Outages int
	Updates int
}

func (f *FlakyTasks) Update(ctx context.Context, ownerID, taskID string, fn repository.TaskMutation) (*domain.Task, error) {
	f.mu.Lock()
	f.Updates++
	if err := f.failLocked(true); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	f.mu.Unlock()
	return f.TaskRepository.Update(ctx, ownerID, taskID, fn)
}

func (f *FlakyTasks) Create(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	f.mu.Lock()
	err := f.failLocked(false)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.TaskRepository.Create(ctx, task)
}

func (f *FlakyTasks) ListByOwner(ctx context.Context, ownerID string) ([]domain.Task, error) {
	f.mu.Lock()
	err := f.failLocked(false)
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.TaskRepository.ListByOwner(ctx, ownerID)
}

// OnHeal forwards to the wrapped store when it heals on read.
func (f *FlakyTasks) OnHeal(hook repository.HealHook) {
	if healer, ok := f.TaskRepository.(repository.Healer); ok {
		healer.OnHeal(hook)
	}
}

func (f *FlakyTasks) failLocked(update bool) error {
	if f.Outages > 0 {
		f.Outages--
		return domain.ErrStoreUnavailable
	}
	if update && f.Aborts > 0 {
		f.Aborts--
		return domain.ErrTxAborted
	}
	return nil
}

// FlakyUsers fails the next Outages user updates with
// domain.ErrStoreUnavailable, then the next Aborts with domain.ErrTxAborted.
type FlakyUsers struct {
	repository.UserRepository

	mu      sync.Mutex
	Outages int
	Aborts  int
	Updates int
}

func (f *FlakyUsers) Update(ctx context.Context, id string, fn repository.UserMutation) (*domain.User, error) {
	f.mu.Lock()
	f.Updates++
	if f.Outages > 0 {
		f.Outages--
		f.mu.Unlock()
		return nil, domain.ErrStoreUnavailable
	}
	if f.Aborts > 0 {
		f.Aborts--
		f.mu.Unlock()
		return nil, domain.ErrTxAborted
	}
	f.mu.Unlock()
	return f.UserRepository.Update(ctx, id, fn)
}

// RecordingNotifier collects notifications instead of storing them.
type RecordingNotifier struct {
	mu   sync.Mutex
	Sent []domain.Notification
	Err  error
}

func (r *RecordingNotifier) Notify(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, *n)
	return nil
}

// To returns the notifications sent to userID.
func (r *RecordingNotifier) To(userID string) []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for _, n := range r.Sent {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

// RecordingBuffer collects buffered operations.
type RecordingBuffer struct {
	mu       sync.Mutex
	Tasks    []string
	Edits    []domain.TaskEdit
	Profiles []string
	Awards   []domain.Award
}

func (b *RecordingBuffer) BufferTask(_ context.Context, operation string, _ *domain.Task) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Tasks = append(b.Tasks, operation)
	return nil
}

func (b *RecordingBuffer) BufferTaskEdit(_ context.Context, edit domain.TaskEdit) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Edits = append(b.Edits, edit)
	return nil
}

func (b *RecordingBuffer) BufferProfile(_ context.Context, operation string, _ *domain.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Profiles = append(b.Profiles, operation)
	return nil
}

func (b *RecordingBuffer) BufferAward(_ context.Context, award domain.Award) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Awards = append(b.Awards, award)
	return nil
}
