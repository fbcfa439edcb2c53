package domain

import "time"

type RequestStatus string

const RequestPending RequestStatus = "pending"

// FriendRequest lives only while pending; resolution deletes it.
type FriendRequest struct {
	ID        string        `json:"id"`
	From      string        `json:"from"`
	To        string        `json:"to"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Involves reports whether userID is either party of the request.
func (r *FriendRequest) Involves(userID string) bool {
	return r != nil && (r.From == userID || r.To == userID)
}

// Counterparty returns the other side of the request for userID.
func (r *FriendRequest) Counterparty(userID string) string {
	if r.From == userID {
		return r.To
	}
	return r.From
}

type NotificationType string

const (
	NotificationFriendRequest  NotificationType = "friendRequest"
	NotificationFriendAccepted NotificationType = "friendAccepted"
	NotificationTaskShared     NotificationType = "taskShared"
	NotificationTaskUnshared   NotificationType = "taskUnshared"
	NotificationTaskFinalized  NotificationType = "taskFinalized"
	NotificationAchievement    NotificationType = "achievement"
)

// MaxNotificationsPerUser bounds retention; older entries are deleted on insert.
const MaxNotificationsPerUser = 10

// Data keys used in Notification.Data.
const (
	DataFromUserID    = "fromUserId"
	DataRequestID     = "requestId"
	DataTaskID        = "taskId"
	DataTaskName      = "taskName"
	DataOwnerName     = "ownerName"
	DataPoints        = "points"
	DataAchievementID = "achievementId"
)

type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"userId"`
	Type      NotificationType  `json:"type"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data,omitempty"`
	Read      bool              `json:"read"`
	CreatedAt time.Time         `json:"createdAt"`
}

// FromUser returns the originating user id, if any.
func (n *Notification) FromUser() string {
	if n == nil || n.Data == nil {
		return ""
	}
	return n.Data[DataFromUserID]
}
