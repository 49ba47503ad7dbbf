package models

import (
	"time"
)

type NotificationKind string

const (
	NotificationTask  NotificationKind = "task"
	NotificationEvent NotificationKind = "event"
)

type NotificationStatus string

const (
	NotificationUnread    NotificationStatus = "unread"
	NotificationRead      NotificationStatus = "read"
	NotificationDismissed NotificationStatus = "dismissed"
)

type Notification struct {
	ID       uint               `json:"id" gorm:"primaryKey"`
	UserID   uint               `json:"user_id" gorm:"not null;index"`
	Kind     NotificationKind   `json:"kind" gorm:"size:10;not null"`
	TaskID   *uint              `json:"task_id,omitempty" gorm:"index"`
	Task     *Task              `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	EventID  *uint              `json:"event_id,omitempty" gorm:"index"`
	Event    *Event             `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Title    string             `json:"title" gorm:"size:255;not null"`
	Message  string             `json:"message"`
	Priority Priority           `json:"priority" gorm:"size:10;not null"`
	Status   NotificationStatus `json:"status" gorm:"size:10;not null;default:'unread';index"`
	IsActive bool               `json:"is_active" gorm:"not null;default:true"`
	// RemainingTime is the lead time captured when the reminder was materialized.
	RemainingTime time.Duration `json:"remaining_time"`
	ScheduledFor  time.Time     `json:"scheduled_for"`
	CreatedAt     time.Time     `json:"created_at"`
}
