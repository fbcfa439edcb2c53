package domain

import "time"

// Session represents an authenticated login cached in Redis.
type Session struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	IssuedAt      time.Time  `json:"issued_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastCleanupAt *time.Time `json:"last_cleanup_at,omitempty"`
}

func (s *Session) IsExpired(reference time.Time) bool {
	if s == nil {
		return true
	}
	if reference.IsZero() {
		reference = time.Now()
	}
	return !s.ExpiresAt.After(reference)
}
