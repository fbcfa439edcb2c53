package monitor

import "time"

// Status is the last reachability snapshot.
type Status struct {
	Online     bool            `json:"online"`
	Services   map[string]bool `json:"services"`
	Buffer     bool            `json:"buffer"`
	BufferSize int             `json:"buffer_size"`
	LastCheck  time.Time       `json:"last_check"`
}
