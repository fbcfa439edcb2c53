package domain

import (
	"slices"
	"time"
)

// Visibility controls whether a task is visible to collaborators.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityShared  Visibility = "shared"
)

type Subtask struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// Comment is a collaborator note on a task. ID is stable across concurrent
// appends and deletes; the position in Task.Comments is not.
type Comment struct {
	ID        string     `json:"id"`
	UID       string     `json:"uid"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	EditedAt  *time.Time `json:"editedAt,omitempty"`
}

// PointsAward records what finalization distributed.
type PointsAward struct {
	Owner         int            `json:"owner"`
	Collaborators map[string]int `json:"collaborators,omitempty"`
}

// Task is a story owned by a single user and optionally shared with friends.
type Task struct {
	ID             string       `json:"id"`
	OwnerID        string       `json:"owner"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Difficulty     int          `json:"difficulty"`
	Workload       int          `json:"workload"`
	Risk           int          `json:"risk"`
	StoryPoint     int          `json:"storyPoint"`
	DueDate        *time.Time   `json:"dueDate,omitempty"`
	Visibility     Visibility   `json:"visibility"`
	SharedWith     []string     `json:"sharedWith"`
	Subtasks       []Subtask    `json:"subtasks"`
	Completed      bool         `json:"completed"`
	Finalized      bool         `json:"finalized"`
	FinalizedAt    *time.Time   `json:"finalizedAt,omitempty"`
	FinalizedBy    string       `json:"finalizedBy,omitempty"`
	PointsAwarded  *PointsAward `json:"pointsAwarded,omitempty"`
	Comments       []Comment    `json:"comments"`
	LastModifiedBy string       `json:"lastModifiedBy,omitempty"`
	LastModifiedAt time.Time    `json:"lastModifiedAt"`
	CreatedAt      time.Time    `json:"createdAt"`
	Version        int64        `json:"version"`
}

// IsLocked reports whether the task reached its terminal finalized state.
// Only a finalized flag paired with a timestamp counts.
func (t *Task) IsLocked() bool {
	return t != nil && t.Finalized && t.FinalizedAt != nil
}

// Heal resets a finalized flag that has no timestamp. It returns true when
// the task was changed.
func (t *Task) Heal() bool {
	if t == nil || !t.Finalized || t.FinalizedAt != nil {
		return false
	}
	t.Finalized = false
	return true
}

func (t *Task) AllSubtasksCompleted() bool {
	if t == nil {
		return false
	}
	for _, st := range t.Subtasks {
		if !st.Completed {
			return false
		}
	}
	return true
}

func (t *Task) IsSharedWith(userID string) bool {
	return t != nil && slices.Contains(t.SharedWith, userID)
}

// RecomputeVisibility derives visibility from the collaborator set.
func (t *Task) RecomputeVisibility() {
	if len(t.SharedWith) > 0 {
		t.Visibility = VisibilityShared
		return
	}
	t.Visibility = VisibilityPrivate
}

// Touch stamps the last modification.
func (t *Task) Touch(by string, at time.Time) {
	t.LastModifiedBy = by
	t.LastModifiedAt = at
}

// CommentIndex locates a comment by id, falling back to a positional index
// when id is empty. It returns -1 when nothing matches.
func (t *Task) CommentIndex(id string, position int) int {
	if id != "" {
		return slices.IndexFunc(t.Comments, func(c Comment) bool { return c.ID == id })
	}
	if position < 0 || position >= len(t.Comments) {
		return -1
	}
	return position
}

// Clone returns a deep copy safe to mutate independently.
func (t Task) Clone() Task {
	out := t
	out.SharedWith = slices.Clone(t.SharedWith)
	out.Subtasks = slices.Clone(t.Subtasks)
	out.Comments = slices.Clone(t.Comments)
	if t.PointsAwarded != nil {
		award := *t.PointsAwarded
		if t.PointsAwarded.Collaborators != nil {
			award.Collaborators = make(map[string]int, len(t.PointsAwarded.Collaborators))
			for k, v := range t.PointsAwarded.Collaborators {
				award.Collaborators[k] = v
			}
		}
		out.PointsAwarded = &award
	}
	return out
}

// Key identifies a task across owners.
func (t *Task) Key() string {
	return TaskKey(t.OwnerID, t.ID)
}

func TaskKey(ownerID, taskID string) string {
	return ownerID + "/" + taskID
}

// ChangeType mirrors the added/modified/removed metadata of a store snapshot.
type ChangeType string

const (
	ChangeAdded    ChangeType = "added"
	ChangeModified ChangeType = "modified"
	ChangeRemoved  ChangeType = "removed"
)

// TaskChange is published after a task write commits.
type TaskChange struct {
	Type    ChangeType `json:"type"`
	OwnerID string     `json:"ownerId"`
	Task    Task       `json:"task"`
}

// CanEdit reports whether userID may change subtasks, completion or comments:
// the owner or a collaborator.
func (t *Task) CanEdit(userID string) bool {
	if t == nil || userID == "" {
		return false
	}
	return t.OwnerID == userID || t.IsSharedWith(userID)
}

// CanDelete reports whether userID may delete the task. Only the owner can.
func (t *Task) CanDelete(userID string) bool {
	return t != nil && userID != "" && t.OwnerID == userID
}
