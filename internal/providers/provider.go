// Package providers defines the contract every external calendar service
// implements, plus the registry that builds authenticated clients per user.
package providers

import (
	"context"
	"time"

	"planner/backend/internal/models"
)

// Remote task status values shared by all adapters.
const (
	TaskStatusOpen      = "open"
	TaskStatusCompleted = "completed"
)

type TaskList struct {
	ID    string
	Title string
}

// RemoteTask is the provider-neutral view of a to-do item. Due is the raw
// provider timestamp; adapters fill it and the reconciler parses it.
type RemoteTask struct {
	ID       string
	Title    string
	Notes    string
	Due      string
	Status   string
	Priority models.Priority
}

func (t RemoteTask) Completed() bool { return t.Status == TaskStatusCompleted }

// RemoteEvent is the provider-neutral view of a calendar entry. Start and End
// hold raw provider timestamps (RFC 3339 or date-only for all-day entries).
type RemoteEvent struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       string
	End         string
}

type TimeWindow struct {
	Start time.Time
	End   time.Time
}

// Provider is implemented once per external service. Errors for a missing
// remote item must satisfy errors.Is(err, apperrors.ErrRemoteNotFound).
type Provider interface {
	Name() models.Provider
	ListTaskLists(ctx context.Context) ([]TaskList, error)
	ListTasks(ctx context.Context, listID string) ([]RemoteTask, error)
	CreateTask(ctx context.Context, listID string, task RemoteTask) (RemoteTask, error)
	UpdateTask(ctx context.Context, listID, taskID string, task RemoteTask) (RemoteTask, error)
	ListEvents(ctx context.Context, window TimeWindow) ([]RemoteEvent, error)
	CreateEvent(ctx context.Context, event RemoteEvent) (RemoteEvent, error)
	UpdateEvent(ctx context.Context, eventID string, event RemoteEvent) (RemoteEvent, error)
}

// FormatTime renders a timestamp the way every adapter sends it.
func FormatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
