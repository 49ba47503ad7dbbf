package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"planner/backend/internal/models"
	"planner/backend/internal/repositories"
)

// Overlaps reports whether the half-open windows [aStart, aEnd) and
// [bStart, bEnd) intersect. Windows that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// ConflictDetector flags double-booked tasks and events. Tasks are compared
// with tasks and events with events.
type ConflictDetector struct {
	tasks  *repositories.TaskRepository
	events *repositories.EventRepository
	logger *slog.Logger
}

func NewConflictDetector(tasks *repositories.TaskRepository, events *repositories.EventRepository, logger *slog.Logger) *ConflictDetector {
	return &ConflictDetector{tasks: tasks, events: events, logger: logger.With("component", "conflicts")}
}

// CheckTask sets task.IsConflict and persists the flag on the task and on
// every active task it overlaps. Completed and cancelled tasks never conflict.
func (d *ConflictDetector) CheckTask(ctx context.Context, task *models.Task) (bool, error) {
	var ids []uint
	if task.IsActive() {
		overlapping, err := d.tasks.ListOverlapping(ctx, task.UserID, task.ID, task.StartTime, task.EndTime, models.ActiveStatuses)
		if err != nil {
			return false, fmt.Errorf("find overlapping tasks: %w", err)
		}
		for _, other := range overlapping {
			ids = append(ids, other.ID)
		}
	}

	conflict := len(ids) > 0
	if conflict {
		ids = append(ids, task.ID)
		d.logger.Debug("task conflict detected", "task_id", task.ID, "overlaps", len(ids)-1)
	} else {
		ids = []uint{task.ID}
	}
	if err := d.tasks.SetConflict(ctx, ids, conflict); err != nil {
		return false, fmt.Errorf("flag task conflicts: %w", err)
	}
	task.IsConflict = conflict
	return conflict, nil
}

// CheckEvent is CheckTask for events; every event takes part regardless of state.
func (d *ConflictDetector) CheckEvent(ctx context.Context, event *models.Event) (bool, error) {
	overlapping, err := d.events.ListOverlapping(ctx, event.UserID, event.ID, event.StartTime, event.EndTime)
	if err != nil {
		return false, fmt.Errorf("find overlapping events: %w", err)
	}

	ids := []uint{event.ID}
	for _, other := range overlapping {
		ids = append(ids, other.ID)
	}
	conflict := len(overlapping) > 0
	if conflict {
		d.logger.Debug("event conflict detected", "event_id", event.ID, "overlaps", len(overlapping))
	}
	if err := d.events.SetConflict(ctx, ids, conflict); err != nil {
		return false, fmt.Errorf("flag event conflicts: %w", err)
	}
	event.IsConflict = conflict
	return conflict, nil
}
