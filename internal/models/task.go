package models

import (
	"strings"
	"time"

	"planner/backend/internal/apperrors"

	"gorm.io/gorm"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
	StatusCancelled  TaskStatus = "cancelled"
)

// ActiveStatuses are the task states that take part in conflict detection.
var ActiveStatuses = []TaskStatus{StatusPending, StatusInProgress}

func (s TaskStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Provider names an external calendar service.
type Provider string

const (
	ProviderNone    Provider = "none"
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

var Providers = []Provider{ProviderGoogle, ProviderOutlook}

func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.ToLower(name))
	switch p {
	case ProviderGoogle, ProviderOutlook:
		return p, true
	}
	return "", false
}

type Task struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	UserID      uint       `json:"user_id" gorm:"not null;index"`
	Name        string     `json:"name" gorm:"size:255;not null"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority" gorm:"size:10;not null;default:'medium'"`
	StartTime   time.Time  `json:"start_time" gorm:"not null;index"`
	EndTime     time.Time  `json:"end_time" gorm:"not null;index"`
	Status      TaskStatus `json:"status" gorm:"size:20;not null;default:'pending';index"`
	IsConflict  bool       `json:"is_conflict" gorm:"not null;default:false"`
	// LinkedTo and ExternalID record the first provider a task was pushed to.
	LinkedTo   Provider  `json:"linked_to" gorm:"size:10;not null;default:'none'"`
	ExternalID *string   `json:"external_id" gorm:"size:255;index"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (t *Task) BeforeSave(*gorm.DB) error {
	t.StartTime = t.StartTime.UTC()
	t.EndTime = t.EndTime.UTC()
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusPending
	}
	if t.LinkedTo == "" {
		t.LinkedTo = ProviderNone
	}
	return nil
}

// Validate checks the structural invariants of a task.
func (t *Task) Validate() error {
	verr := apperrors.NewValidationError()
	if strings.TrimSpace(t.Name) == "" {
		verr.Add("name", "task name cannot be empty")
	}
	if !t.Priority.Valid() {
		verr.Add("priority", "priority must be one of high, medium, low")
	}
	if !t.Status.Valid() {
		verr.Add("status", "status must be one of pending, in_progress, completed, cancelled")
	}
	if t.StartTime.IsZero() {
		verr.Add("start_time", "start time is required")
	}
	if t.EndTime.IsZero() {
		verr.Add("end_time", "end time is required")
	} else if !t.StartTime.IsZero() && !t.EndTime.After(t.StartTime) {
		verr.Add("end_time", "end time must be after start time")
	}
	return verr.OrNil()
}

// IsActive reports whether the task still occupies its time slot.
func (t *Task) IsActive() bool {
	return t.Status == StatusPending || t.Status == StatusInProgress
}
