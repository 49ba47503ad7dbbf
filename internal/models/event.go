package models

import (
	"time"

	"planner/backend/internal/apperrors"

	"gorm.io/gorm"
)

type Event struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"not null;index"`
	Title       *string   `json:"title" gorm:"size:255"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority" gorm:"size:10;not null;default:'medium'"`
	StartTime   time.Time `json:"start_time" gorm:"not null;index"`
	EndTime     time.Time `json:"end_time" gorm:"not null;index"`
	Location    string    `json:"location" gorm:"size:255"`
	IsConflict  bool      `json:"is_conflict" gorm:"not null;default:false"`
	// ExternalID and ExternalProvider hold the first provider an event was pushed to.
	ExternalID       *string   `json:"external_id" gorm:"size:255;index"`
	ExternalProvider *Provider `json:"external_provider" gorm:"size:10"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (e *Event) BeforeSave(*gorm.DB) error {
	e.StartTime = e.StartTime.UTC()
	e.EndTime = e.EndTime.UTC()
	if e.Priority == "" {
		e.Priority = PriorityMedium
	}
	return nil
}

// DisplayTitle never returns an empty string.
func (e *Event) DisplayTitle() string {
	if e.Title == nil || *e.Title == "" {
		return "Untitled event"
	}
	return *e.Title
}

func (e *Event) Validate() error {
	verr := apperrors.NewValidationError()
	if !e.Priority.Valid() {
		verr.Add("priority", "priority must be one of high, medium, low")
	}
	if e.StartTime.IsZero() {
		verr.Add("start_time", "start time is required")
	}
	if e.EndTime.IsZero() {
		verr.Add("end_time", "end time is required")
	} else if !e.StartTime.IsZero() && !e.EndTime.After(e.StartTime) {
		verr.Add("end_time", "end time must be after start time")
	}
	return verr.OrNil()
}
