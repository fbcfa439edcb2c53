package domain

import "time"

// PointsEntry is one line of a user's points history.
type PointsEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	TaskKey   string    `json:"taskKey,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Award is the per-recipient share of a finalization. Key makes replays
// idempotent: a user document that already lists Key is left untouched.
type Award struct {
	Key           string `json:"key"`
	UserID        string `json:"userId"`
	Points        int    `json:"points"`
	Reason        string `json:"reason"`
	Collaborator  bool   `json:"collaborator"`
	BeforeDueDate bool   `json:"beforeDueDate"`
}
