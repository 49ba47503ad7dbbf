package models

import (
	"time"

	"gorm.io/gorm"
)

// TaskSyncMetadata links a local task to its copy at one provider.
type TaskSyncMetadata struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	TaskID     uint      `json:"task_id" gorm:"not null;uniqueIndex:idx_task_sync_provider"`
	Task       *Task     `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Provider   Provider  `json:"provider" gorm:"size:10;not null;uniqueIndex:idx_task_sync_provider;index:idx_task_sync_external"`
	ExternalID string    `json:"external_id" gorm:"size:255;not null;index:idx_task_sync_external"`
	LastSynced time.Time `json:"last_synced"`
}

func (TaskSyncMetadata) TableName() string { return "task_sync_metadata" }

type EventSyncMetadata struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	EventID    uint      `json:"event_id" gorm:"not null;uniqueIndex:idx_event_sync_provider"`
	Event      *Event    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Provider   Provider  `json:"provider" gorm:"size:10;not null;uniqueIndex:idx_event_sync_provider;index:idx_event_sync_external"`
	ExternalID string    `json:"external_id" gorm:"size:255;not null;index:idx_event_sync_external"`
	LastSynced time.Time `json:"last_synced"`
}

func (EventSyncMetadata) TableName() string { return "event_sync_metadata" }

// CalendarTask mirrors a remote task that has no local counterpart.
type CalendarTask struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	UserID           uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_calendar_task_remote"`
	Title            string     `json:"title" gorm:"size:255"`
	Description      string     `json:"description"`
	DueDate          *time.Time `json:"due_date"`
	Status           string     `json:"status" gorm:"size:20"`
	ExternalID       string     `json:"external_id" gorm:"size:255;not null;uniqueIndex:idx_calendar_task_remote"`
	ExternalProvider Provider   `json:"external_provider" gorm:"size:10;not null;uniqueIndex:idx_calendar_task_remote"`
	LastSyncedAt     time.Time  `json:"last_synced_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (c *CalendarTask) BeforeSave(*gorm.DB) error {
	if c.DueDate != nil {
		due := c.DueDate.UTC()
		c.DueDate = &due
	}
	return nil
}

// CalendarEvent mirrors a remote event that has no local counterpart.
type CalendarEvent struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	UserID           uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_calendar_event_remote"`
	Title            string    `json:"title" gorm:"size:255"`
	Description      string    `json:"description"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	Location         string    `json:"location" gorm:"size:255"`
	ExternalID       string    `json:"external_id" gorm:"size:255;not null;uniqueIndex:idx_calendar_event_remote"`
	ExternalProvider Provider  `json:"external_provider" gorm:"size:10;not null;uniqueIndex:idx_calendar_event_remote"`
	LastSyncedAt     time.Time `json:"last_synced_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (c *CalendarEvent) BeforeSave(*gorm.DB) error {
	c.StartTime = c.StartTime.UTC()
	c.EndTime = c.EndTime.UTC()
	return nil
}

type SyncState string

const (
	SyncNotSynced SyncState = "not_synced"
	SyncSyncing   SyncState = "syncing"
	SyncSynced    SyncState = "synced"
	SyncError     SyncState = "error"
)

// CalendarSync tracks the last full sync per user and provider.
type CalendarSync struct {
	ID         uint       `json:"id" gorm:"primaryKey"`
	UserID     uint       `json:"user_id" gorm:"not null;uniqueIndex:idx_calendar_sync_user_provider"`
	Provider   Provider   `json:"provider" gorm:"size:10;not null;uniqueIndex:idx_calendar_sync_user_provider"`
	Status     SyncState  `json:"sync_status" gorm:"size:20;not null;default:'not_synced'"`
	LastSynced *time.Time `json:"last_synced"`
	SyncError  string     `json:"sync_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// ProviderToken is an OAuth token obtained elsewhere and handed to us.
type ProviderToken struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	UserID       uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_provider_token_user"`
	Provider     Provider  `json:"provider" gorm:"size:10;not null;uniqueIndex:idx_provider_token_user"`
	AccessToken  string    `json:"-" gorm:"not null"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type" gorm:"size:20"`
	Expiry       time.Time `json:"expiry"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
