package task

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/usecase"
)

// Listener receives the full task payload after every change.
type Listener func(tasks []domain.Task)

// WatchOwnTasks delivers the user's own tasks now and after every change.
// The returned func stops the subscription.
func (uc *UseCase) WatchOwnTasks(ctx context.Context, userID string, fn Listener) (func(), error) {
	if uc.hub == nil {
		return nil, errNoHub
	}
	w := &snapshotWatch{tasks: make(map[string]domain.Task), fn: fn}

	unsubscribe := uc.hub.Subscribe(userID, func(change domain.TaskChange) {
		w.apply(change, true)
	})
	initial, err := uc.tasks.ListByOwner(ctx, userID)
	if err != nil {
		unsubscribe()
		return nil, err
	}
	w.seed(initial)
	return unsubscribe, nil
}

// SharedWatch keeps one listener per friend on the tasks that friend shared
// with the user and re-emits the merged payload whenever any of them changes.
type SharedWatch struct {
	uc      *UseCase
	userID  string
	source  usecase.FriendSource
	friends map[string]func()
	snap    *snapshotWatch

	mu     sync.Mutex
	closed bool
}

// WatchSharedTasks starts a listener for every current friend of userID.
// Tasks owned by userID never appear in the payload.
func (uc *UseCase) WatchSharedTasks(ctx context.Context, userID string, source usecase.FriendSource, fn Listener) (*SharedWatch, error) {
	if uc.hub == nil {
		return nil, errNoHub
	}
	w := &SharedWatch{
		uc:      uc,
		userID:  userID,
		source:  source,
		friends: make(map[string]func()),
		snap:    &snapshotWatch{tasks: make(map[string]domain.Task), fn: fn},
	}
	if err := w.Refresh(ctx); err != nil {
		w.Unsubscribe()
		return nil, err
	}
	if len(w.friends) == 0 {
		w.snap.emit()
	}

	uc.mu.Lock()
	if uc.watches[userID] == nil {
		uc.watches[userID] = make(map[*SharedWatch]struct{})
	}
	uc.watches[userID][w] = struct{}{}
	uc.mu.Unlock()
	return w, nil
}

// Refresh re-reads the friend list and reconciles the listeners.
func (w *SharedWatch) Refresh(ctx context.Context) error {
	if w.source == nil {
		return nil
	}
	friends, err := w.source.Friends(ctx, w.userID)
	if err != nil {
		return err
	}
	return w.SetFriends(ctx, friends)
}

// SetFriends adds listeners for new friends and removes those of former
// friends together with their tasks.
func (w *SharedWatch) SetFriends(ctx context.Context, friendIDs []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}

	wanted := make(map[string]struct{}, len(friendIDs))
	for _, id := range friendIDs {
		if id != "" && id != w.userID {
			wanted[id] = struct{}{}
		}
	}

	changed := false
	for id, stop := range w.friends {
		if _, ok := wanted[id]; ok {
			continue
		}
		stop()
		delete(w.friends, id)
		w.snap.dropOwner(id)
		changed = true
	}

	var firstErr error
	for id := range wanted {
		if _, ok := w.friends[id]; ok {
			continue
		}
		friendID := id
		stop := w.uc.hub.Subscribe(friendID, func(change domain.TaskChange) {
			w.snap.applyShared(change, w.userID)
		})
		tasks, err := w.uc.tasks.ListSharedWith(ctx, friendID, w.userID)
		if err != nil {
			stop()
			if firstErr == nil {
				firstErr = err
			}
			w.uc.logger.Warn("failed to attach shared task listener",
				zap.String("user_id", w.userID),
				zap.String("friend_id", friendID),
				zap.Error(err))
			continue
		}
		w.friends[friendID] = stop
		w.snap.merge(tasks)
		changed = true
	}

	if changed {
		w.snap.emit()
	}
	return firstErr
}

// Friends lists the friends currently listened to.
func (w *SharedWatch) Friends() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.friends))
	for id := range w.friends {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Unsubscribe tears down every per-friend listener.
func (w *SharedWatch) Unsubscribe() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	for id, stop := range w.friends {
		stop()
		delete(w.friends, id)
	}
	w.mu.Unlock()

	w.uc.mu.Lock()
	delete(w.uc.watches[w.userID], w)
	if len(w.uc.watches[w.userID]) == 0 {
		delete(w.uc.watches, w.userID)
	}
	w.uc.mu.Unlock()
}

// FriendsChanged refreshes every shared watch of userID.
func (uc *UseCase) FriendsChanged(ctx context.Context, userID string) {
	uc.mu.Lock()
	watches := make([]*SharedWatch, 0, len(uc.watches[userID]))
	for w := range uc.watches[userID] {
		watches = append(watches, w)
	}
	uc.mu.Unlock()

	for _, w := range watches {
		if err := w.Refresh(ctx); err != nil {
			uc.logger.Warn("failed to refresh shared task listeners", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// snapshotWatch holds the merged task set behind one listener callback.
type snapshotWatch struct {
	mu    sync.Mutex
	tasks map[string]domain.Task
	fn    Listener
}

func (s *snapshotWatch) seed(tasks []domain.Task) {
	s.merge(tasks)
	s.emit()
}

func (s *snapshotWatch) merge(tasks []domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, task := range tasks {
		s.tasks[task.Key()] = task
	}
}

func (s *snapshotWatch) dropOwner(ownerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, task := range s.tasks {
		if task.OwnerID == ownerID {
			delete(s.tasks, key)
		}
	}
}

func (s *snapshotWatch) apply(change domain.TaskChange, keep bool) {
	s.mu.Lock()
	key := domain.TaskKey(change.OwnerID, change.Task.ID)
	if change.Type == domain.ChangeRemoved || !keep {
		delete(s.tasks, key)
	} else {
		s.tasks[key] = change.Task
	}
	s.mu.Unlock()
	s.emit()
}

// applyShared keeps a friend's task only while it is still shared with userID.
func (s *snapshotWatch) applyShared(change domain.TaskChange, userID string) {
	if change.OwnerID == userID {
		return
	}
	s.apply(change, change.Task.IsSharedWith(userID))
}

// emit calls the listener with the merged payload, oldest task first.
// Emissions are serialised so listeners observe them in order.
func (s *snapshotWatch) emit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, task.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key() < out[j].Key()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if s.fn != nil {
		s.fn(out)
	}
}
