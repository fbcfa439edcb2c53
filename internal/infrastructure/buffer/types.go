package buffer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	EntityProfile = "profile"
	EntityTask    = "task"
	EntityAward   = "award"

	OperationCreate = "create"
	OperationUpdate = "update"
	OperationDelete = "delete"
	OperationApply  = "apply"
)

// Lower priorities drain first. Every task operation shares one priority so
// a create, its updates and its delete replay in the order they were queued.
const (
	PriorityAward   = 1
	PriorityTask    = 2
	PriorityProfile = 3
)

// Item is an operation waiting for the primary store to come back.
type Item struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Entity    string `json:"entity"`
	Operation string `json:"operation"`
	// Key names the target document, e.g. "owner/task".
	Key       string          `json:"key,omitempty"`
	Data      json.RawMessage `json:"data"`
	Priority  int             `json:"priority"`
	Retries   int             `json:"retries"`
	Timestamp time.Time       `json:"timestamp"`

	bucketKey []byte
}

// PriorityFor returns the drain priority of an entity.
func PriorityFor(entity string) int {
	switch entity {
	case EntityAward:
		return PriorityAward
	case EntityTask:
		return PriorityTask
	default:
		return PriorityProfile
	}
}

func (i *Item) normalize() {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Priority <= 0 {
		i.Priority = PriorityFor(i.Entity)
	}
	if i.Timestamp.IsZero() {
		i.Timestamp = time.Now()
	}
}

// supersedes reports whether queuing i makes the queued item old pointless:
// a delete replaces anything pending for the same document, and a newer
// update or profile write replaces the older one.
func (i Item) supersedes(old Item) bool {
	if i.Key == "" || i.Key != old.Key || i.Entity != old.Entity {
		return false
	}
	switch {
	case i.Operation == OperationDelete:
		return true
	case i.Operation == OperationUpdate && old.Operation == OperationUpdate:
		return true
	case i.Entity == EntityProfile:
		return true
	default:
		return false
	}
}
