package domain

import (
	"slices"
	"time"
)

// Stats are counters feeding achievement requirements.
type Stats struct {
	TasksCompleted      int `json:"tasksCompleted"`
	TasksBeforeDeadline int `json:"tasksBeforeDeadline"`
	HelpedFriends       int `json:"helpedFriends"`
}

// AchievementStatus tracks whether an unlock has been shown to the user.
type AchievementStatus struct {
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlockedAt,omitempty"`
	Notified   bool       `json:"notified"`
	NotifiedAt *time.Time `json:"notifiedAt,omitempty"`
}

// User is the per-user document: friends, points and achievements.
type User struct {
	ID                       string                       `json:"uid"`
	Email                    string                       `json:"email,omitempty"`
	DisplayName              string                       `json:"displayName,omitempty"`
	Friends                  []string                     `json:"friends"`
	Points                   int                          `json:"points"`
	Level                    int                          `json:"level"`
	Achievements             []string                     `json:"achievements"`
	AchievementNotifications map[string]AchievementStatus `json:"achievementNotifications,omitempty"`
	Stats                    Stats                        `json:"stats"`
	AwardedTasks             []string                     `json:"awardedTasks,omitempty"`
	CreatedAt                time.Time                    `json:"createdAt"`
	UpdatedAt                time.Time                    `json:"updatedAt"`
	Version                  int64                        `json:"version"`
}

func (u *User) HasFriend(id string) bool {
	return u != nil && slices.Contains(u.Friends, id)
}

func (u *User) HasAchievement(id string) bool {
	return u != nil && slices.Contains(u.Achievements, id)
}

// AddFriend inserts id unless present and reports whether it changed the set.
func (u *User) AddFriend(id string) bool {
	if u.HasFriend(id) {
		return false
	}
	u.Friends = append(u.Friends, id)
	return true
}

// RemoveFriend drops id and reports whether it was present.
func (u *User) RemoveFriend(id string) bool {
	before := len(u.Friends)
	u.Friends = slices.DeleteFunc(u.Friends, func(f string) bool { return f == id })
	return len(u.Friends) != before
}

// Name returns the best display label for notifications.
func (u *User) Name() string {
	if u == nil {
		return "A user"
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	if u.Email != "" {
		return u.Email
	}
	return "A user"
}

// Adjust sets or increments the counter named by stat. It reports false for
// names that are not stored counters.
func (s *Stats) Adjust(stat RequirementType, value int, increment bool) bool {
	var field *int
	switch stat {
	case RequireTasksCompleted:
		field = &s.TasksCompleted
	case RequireTasksBeforeDeadline:
		field = &s.TasksBeforeDeadline
	case RequireHelpedFriends:
		field = &s.HelpedFriends
	default:
		return false
	}
	if increment {
		*field += value
	} else {
		*field = value
	}
	return true
}
