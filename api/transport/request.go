package transport

type ProfileUpdateRequest struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

type TaskRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Difficulty  int      `json:"difficulty"`
	Workload    int      `json:"workload"`
	Risk        int      `json:"risk"`
	DueDate     string   `json:"due_date"`
	Subtasks    []string `json:"subtasks"`
}

type ShareRequest struct {
	FriendIDs []string `json:"friend_ids"`
}

type SubtaskRequest struct {
	Completed bool `json:"completed"`
}

// CommentRequest addresses a comment by id; Index is the positional
// fallback for comments stored without an id.
type CommentRequest struct {
	Text  string `json:"text"`
	Index *int   `json:"index,omitempty"`
}

// FriendRequest targets a user by email or by id.
type FriendRequest struct {
	Email  string `json:"email"`
	UserID string `json:"user_id"`
}

type AuthLoginRequest struct {
	UserID string `json:"user_id"`
	TTL    int    `json:"ttl_seconds"`
}

type RefreshRequest struct {
	SessionID string `json:"session_id"`
	TTL       int    `json:"ttl_seconds"`
}
