package models

import (
	"time"
)

type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Username  string    `json:"username" gorm:"size:50;uniqueIndex;not null"`
	Email     string    `json:"email" gorm:"size:255;uniqueIndex;not null"`
	Password  string    `json:"-" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AssistantInteraction is one prompt/answer exchange with the assistant.
type AssistantInteraction struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	Request   string    `json:"request" gorm:"not null"`
	Response  string    `json:"response"`
	Cached    bool      `json:"cached"`
	CreatedAt time.Time `json:"created_at"`
}

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&User{},
		&Task{},
		&Event{},
		&TaskSyncMetadata{},
		&EventSyncMetadata{},
		&CalendarTask{},
		&CalendarEvent{},
		&CalendarSync{},
		&ProviderToken{},
		&Notification{},
		&AssistantInteraction{},
	}
}
