package session

import (
	"sort"
	"sync"

	"github.com/fastygo/taskboard/domain"
)

// View is the session's local copy of the tasks it can see, keyed by
// owner/task. Listeners overwrite it; commands patch it optimistically.
type View struct {
	mu    sync.RWMutex
	tasks map[string]domain.Task
}

func NewView() *View {
	return &View{tasks: make(map[string]domain.Task)}
}

func (v *View) Get(ownerID, taskID string) (domain.Task, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	task, ok := v.tasks[domain.TaskKey(ownerID, taskID)]
	if !ok {
		return domain.Task{}, false
	}
	return task.Clone(), true
}

func (v *View) Put(task domain.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tasks[task.Key()] = task.Clone()
}

func (v *View) Remove(ownerID, taskID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.tasks, domain.TaskKey(ownerID, taskID))
}

// Patch applies fn to the cached task and returns a func restoring the
// previous state. ok is false when the task is not in the view.
func (v *View) Patch(ownerID, taskID string, fn func(task *domain.Task)) (revert func(), ok bool) {
	key := domain.TaskKey(ownerID, taskID)

	v.mu.Lock()
	defer v.mu.Unlock()
	before, ok := v.tasks[key]
	if !ok {
		return func() {}, false
	}
	after := before.Clone()
	fn(&after)
	v.tasks[key] = after

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.tasks[key] = before
	}, true
}

// ReplaceOwned swaps every task owned by userID for tasks.
func (v *View) ReplaceOwned(userID string, tasks []domain.Task) {
	v.replace(func(t domain.Task) bool { return t.OwnerID == userID }, tasks)
}

// ReplaceShared swaps every task not owned by userID for tasks. A task that
// was unshared simply disappears from the next payload.
func (v *View) ReplaceShared(userID string, tasks []domain.Task) {
	v.replace(func(t domain.Task) bool { return t.OwnerID != userID }, tasks)
}

func (v *View) replace(match func(domain.Task) bool, tasks []domain.Task) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for key, task := range v.tasks {
		if match(task) {
			delete(v.tasks, key)
		}
	}
	for _, task := range tasks {
		if match(task) {
			v.tasks[task.Key()] = task.Clone()
		}
	}
}

// Owned lists the tasks owned by userID, oldest first.
func (v *View) Owned(userID string) []domain.Task {
	return v.list(func(t domain.Task) bool { return t.OwnerID == userID })
}

// Shared lists the tasks other users shared with userID, oldest first.
func (v *View) Shared(userID string) []domain.Task {
	return v.list(func(t domain.Task) bool { return t.OwnerID != userID })
}

func (v *View) list(match func(domain.Task) bool) []domain.Task {
	v.mu.RLock()
	out := make([]domain.Task, 0, len(v.tasks))
	for _, task := range v.tasks {
		if match(task) {
			out = append(out, task.Clone())
		}
	}
	v.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key() < out[j].Key()
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (v *View) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.tasks)
}
