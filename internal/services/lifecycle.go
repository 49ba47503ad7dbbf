package services

import (
	"context"

	"planner/backend/internal/models"
)

// Lifecycle runs the follow-up work owed after a task or event is created or
// changed, whether the change came from the API or from a sync pull: conflict
// flags first, then a fresh reminder schedule.
type Lifecycle struct {
	conflicts     *ConflictDetector
	notifications NotificationService
}

func NewLifecycle(conflicts *ConflictDetector, notifications NotificationService) *Lifecycle {
	return &Lifecycle{conflicts: conflicts, notifications: notifications}
}

func (l *Lifecycle) TaskChanged(ctx context.Context, task *models.Task) error {
	if _, err := l.conflicts.CheckTask(ctx, task); err != nil {
		return err
	}
	_, err := l.notifications.ScheduleTask(ctx, task)
	return err
}

func (l *Lifecycle) EventChanged(ctx context.Context, event *models.Event) error {
	if _, err := l.conflicts.CheckEvent(ctx, event); err != nil {
		return err
	}
	_, err := l.notifications.ScheduleEvent(ctx, event)
	return err
}
