package sqlite

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/fastygo/taskboard/domain"
)

// taskRecord stores the task document as JSON. shared_with duplicates the
// collaborator set as ",a,b," so "array contains" becomes a LIKE match.
type taskRecord struct {
	OwnerID    string `gorm:"primaryKey;column:owner_id"`
	ID         string `gorm:"primaryKey;column:id"`
	Doc        []byte `gorm:"column:doc;not null"`
	SharedWith string `gorm:"column:shared_with;index"`
	Version    int64  `gorm:"column:version;not null;default:1"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (taskRecord) TableName() string { return "tasks" }

type userRecord struct {
	ID        string `gorm:"primaryKey;column:id"`
	Email     string `gorm:"column:email;index"`
	Doc       []byte `gorm:"column:doc;not null"`
	Version   int64  `gorm:"column:version;not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRecord) TableName() string { return "users" }

type friendRequestRecord struct {
	ID        string `gorm:"primaryKey;column:id"`
	FromUID   string `gorm:"column:from_uid;index"`
	ToUID     string `gorm:"column:to_uid;index"`
	Status    string `gorm:"column:status"`
	CreatedAt time.Time
}

func (friendRequestRecord) TableName() string { return "friend_requests" }

type notificationRecord struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement;column:seq"`
	ID        string `gorm:"uniqueIndex;column:id"`
	UserID    string `gorm:"index;column:user_id"`
	Type      string `gorm:"column:type"`
	Title     string `gorm:"column:title"`
	Message   string `gorm:"column:message"`
	Data      []byte `gorm:"column:data"`
	Read      bool   `gorm:"column:read"`
	CreatedAt time.Time
}

func (notificationRecord) TableName() string { return "notifications" }

type ledgerRecord struct {
	ID        string `gorm:"primaryKey;column:id"`
	UserID    string `gorm:"index;column:user_id"`
	Points    int    `gorm:"column:points"`
	Reason    string `gorm:"column:reason"`
	TaskKey   string `gorm:"column:task_key"`
	CreatedAt time.Time
}

func (ledgerRecord) TableName() string { return "points_ledger" }

// Migrate creates or updates the embedded schema.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&taskRecord{},
		&userRecord{},
		&friendRequestRecord{},
		&notificationRecord{},
		&ledgerRecord{},
	)
}

func encodeMembers(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return "," + strings.Join(ids, ",") + ","
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// memberPattern matches id as a whole entry of an encoded member list. It
// pairs with ESCAPE '\' so ids holding LIKE wildcards match literally.
func memberPattern(id string) string {
	return "%," + likeEscaper.Replace(id) + ",%"
}

func decodeTask(rec *taskRecord) (*domain.Task, error) {
	var task domain.Task
	if err := json.Unmarshal(rec.Doc, &task); err != nil {
		return nil, err
	}
	task.ID = rec.ID
	task.OwnerID = rec.OwnerID
	task.Version = rec.Version
	return &task, nil
}

func decodeUser(rec *userRecord) (*domain.User, error) {
	var user domain.User
	if err := json.Unmarshal(rec.Doc, &user); err != nil {
		return nil, err
	}
	user.ID = rec.ID
	user.Version = rec.Version
	return &user, nil
}
