package domain

import (
	"fmt"
	"time"
)

type EditKind string

const (
	EditSubtask    EditKind = "subtask"
	EditCompletion EditKind = "completion"
)

// TaskEdit is one field change on a task. It records the state it sets
// rather than a toggle, so applying it twice leaves the task as applying it
// once does. Edits made offline are queued in this form and replayed
// against the stored document.
type TaskEdit struct {
	OwnerID   string    `json:"ownerId"`
	TaskID    string    `json:"taskId"`
	ActorID   string    `json:"actorId"`
	Kind      EditKind  `json:"kind"`
	Index     int       `json:"index,omitempty"`
	Completed bool      `json:"completed"`
	At        time.Time `json:"at"`
}

// Key names the field the edit targets. A newer edit of the same field
// replaces an older one.
func (e TaskEdit) Key() string {
	if e.Kind == EditSubtask {
		return fmt.Sprintf("%s#%s:%d", TaskKey(e.OwnerID, e.TaskID), e.Kind, e.Index)
	}
	return fmt.Sprintf("%s#%s", TaskKey(e.OwnerID, e.TaskID), e.Kind)
}

// Apply checks the edit rules against task and sets the field.
func (e TaskEdit) Apply(task *Task) error {
	if !task.CanEdit(e.ActorID) {
		return ErrNotCollaborator
	}
	if task.IsLocked() {
		return ErrTaskFinalized
	}

	switch e.Kind {
	case EditSubtask:
		if e.Index < 0 || e.Index >= len(task.Subtasks) {
			return ErrSubtaskIndex
		}
		task.Subtasks[e.Index].Completed = e.Completed
		if !e.Completed {
			task.Completed = false
		}
	case EditCompletion:
		if e.Completed && !task.AllSubtasksCompleted() {
			return ErrSubtasksIncomplete
		}
		task.Completed = e.Completed
	default:
		return NewError(ErrCodeInvalid, "unknown task edit "+string(e.Kind))
	}

	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	task.Touch(e.ActorID, at)
	return nil
}
