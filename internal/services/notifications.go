package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"planner/backend/internal/models"
	"planner/backend/internal/repositories"
)

// reminderLeads are the offsets before the due time at which reminders are
// materialized, per priority.
var reminderLeads = map[models.Priority][]time.Duration{
	models.PriorityHigh:   {48 * time.Hour, 24 * time.Hour, 3 * time.Hour},
	models.PriorityMedium: {24 * time.Hour, 3 * time.Hour},
	models.PriorityLow:    {3 * time.Hour},
}

// NotificationView is one entry of the notification listing.
type NotificationView struct {
	NotificationID uint                      `json:"notification_id"`
	Status         models.NotificationStatus `json:"status"`
	Title          string                    `json:"title"`
	Message        string                    `json:"message"`
	Priority       models.Priority           `json:"priority"`
}

type NotificationService interface {
	ScheduleTask(ctx context.Context, task *models.Task) ([]models.Notification, error)
	ScheduleEvent(ctx context.Context, event *models.Event) ([]models.Notification, error)
	List(ctx context.Context, userID uint) ([]NotificationView, error)
	MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error)
	Dismiss(ctx context.Context, userID, id uint) (*models.Notification, error)
	MarkAllRead(ctx context.Context, userID uint) (int64, error)
}

type NotificationScheduler struct {
	repo   *repositories.NotificationRepository
	logger *slog.Logger
	now    func() time.Time
}

var _ NotificationService = (*NotificationScheduler)(nil)

func NewNotificationScheduler(repo *repositories.NotificationRepository, logger *slog.Logger) *NotificationScheduler {
	return &NotificationScheduler{repo: repo, logger: logger.With("component", "notifications"), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *NotificationScheduler) WithClock(now func() time.Time) *NotificationScheduler {
	s.now = now
	return s
}

// ScheduleTask replaces the task's reminders with a fresh set keyed off its
// end time. Completed and cancelled tasks end up with none.
func (s *NotificationScheduler) ScheduleTask(ctx context.Context, task *models.Task) ([]models.Notification, error) {
	var notifications []models.Notification
	if task.IsActive() {
		taskID := task.ID
		for _, lead := range reminderLeads[task.Priority] {
			notifications = append(notifications, models.Notification{
				UserID:        task.UserID,
				Kind:          models.NotificationTask,
				TaskID:        &taskID,
				Title:         reminderTitle(task.Priority, "Task", task.Name),
				Message:       fmt.Sprintf("Your %stask '%s' is due %s", priorityAdjective(task.Priority), task.Name, leadPhrase(lead)),
				Priority:      task.Priority,
				Status:        models.NotificationUnread,
				IsActive:      true,
				RemainingTime: task.EndTime.Sub(s.now()),
				ScheduledFor:  task.EndTime.Add(-lead),
			})
		}
	}
	if err := s.repo.ReplaceForTask(ctx, task.ID, notifications); err != nil {
		return nil, fmt.Errorf("schedule task %d reminders: %w", task.ID, err)
	}
	s.logger.Debug("task reminders scheduled", "task_id", task.ID, "count", len(notifications))
	return notifications, nil
}

// ScheduleEvent replaces the event's reminders, keyed off its start time.
func (s *NotificationScheduler) ScheduleEvent(ctx context.Context, event *models.Event) ([]models.Notification, error) {
	eventID := event.ID
	title := event.DisplayTitle()
	var notifications []models.Notification
	for _, lead := range reminderLeads[event.Priority] {
		notifications = append(notifications, models.Notification{
			UserID:        event.UserID,
			Kind:          models.NotificationEvent,
			EventID:       &eventID,
			Title:         reminderTitle(event.Priority, "Event", title),
			Message:       fmt.Sprintf("Your %sevent '%s' is %s", priorityAdjective(event.Priority), title, leadPhrase(lead)),
			Priority:      event.Priority,
			Status:        models.NotificationUnread,
			IsActive:      true,
			RemainingTime: event.StartTime.Sub(s.now()),
			ScheduledFor:  event.StartTime.Add(-lead),
		})
	}
	if err := s.repo.ReplaceForEvent(ctx, event.ID, notifications); err != nil {
		return nil, fmt.Errorf("schedule event %d reminders: %w", event.ID, err)
	}
	s.logger.Debug("event reminders scheduled", "event_id", event.ID, "count", len(notifications))
	return notifications, nil
}

// List renders the user's unread reminders against the current time. A
// reminder whose parent is outside every band for its priority is left out
// of the listing but kept in the store.
func (s *NotificationScheduler) List(ctx context.Context, userID uint) ([]NotificationView, error) {
	pending, err := s.repo.ListPending(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	now := s.now()
	views := make([]NotificationView, 0, len(pending))
	for _, n := range pending {
		var (
			noun, title string
			end         time.Time
		)
		switch {
		case n.Task != nil:
			noun, title, end = "task", n.Task.Name, n.Task.EndTime
		case n.Event != nil:
			noun, title, end = "event", n.Event.DisplayTitle(), n.Event.EndTime
		default:
			continue
		}

		phrase, ok := Band(n.Priority, end.Sub(now))
		if !ok {
			continue
		}
		views = append(views, NotificationView{
			NotificationID: n.ID,
			Status:         n.Status,
			Title:          title,
			Message:        fmt.Sprintf("Your %s '%s' is due %s", noun, title, phrase),
			Priority:       n.Priority,
		})
	}
	return views, nil
}

// Band maps the time left before a due time to the phrase shown for the
// given priority. It reports false when the reminder should not be shown.
//
//	high:   (1d, 2d] "in 2 days"; (5h, 1d] "tomorrow"; (1h, 5h] hours; (0, 1h] minutes
//	medium: (5h, 1d] "tomorrow"; (1h, 5h] hours; (0, 1h] minutes
//	low:    (1h, 5h] hours; (0, 1h] minutes
//
// Below two hours the hour count is given in minutes.
func Band(priority models.Priority, remaining time.Duration) (string, bool) {
	switch {
	case remaining <= 0:
		// Overdue items are not reminded about.
		return "", false
	case remaining < 2*time.Hour:
		return "in " + plural(int(remaining/time.Minute), "minute"), true
	case remaining <= 5*time.Hour:
		return "in " + plural(int(remaining/time.Hour), "hour"), true
	case remaining <= 24*time.Hour:
		if priority == models.PriorityHigh || priority == models.PriorityMedium {
			return "tomorrow", true
		}
	case remaining <= 48*time.Hour:
		if priority == models.PriorityHigh {
			return "in 2 days", true
		}
	}
	return "", false
}

func (s *NotificationScheduler) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.Status != models.NotificationUnread {
		return n, nil
	}
	n.Status = models.NotificationRead
	if err := s.repo.Save(ctx, n); err != nil {
		return nil, fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return n, nil
}

// Dismiss hides an unread notification for good. Read and dismissed
// notifications are left untouched.
func (s *NotificationScheduler) Dismiss(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := s.repo.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if n.Status != models.NotificationUnread {
		return n, nil
	}
	n.Status = models.NotificationDismissed
	n.IsActive = false
	if err := s.repo.Save(ctx, n); err != nil {
		return nil, fmt.Errorf("dismiss notification %d: %w", id, err)
	}
	return n, nil
}

func (s *NotificationScheduler) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func reminderTitle(priority models.Priority, noun, name string) string {
	switch priority {
	case models.PriorityHigh:
		return fmt.Sprintf("High Priority %s: %s", noun, name)
	case models.PriorityMedium:
		return fmt.Sprintf("Medium Priority %s: %s", noun, name)
	}
	return fmt.Sprintf("%s: %s", noun, name)
}

func priorityAdjective(priority models.Priority) string {
	if priority == models.PriorityLow {
		return ""
	}
	return string(priority) + " priority "
}

func leadPhrase(lead time.Duration) string {
	switch lead {
	case 48 * time.Hour:
		return "in 2 days"
	case 24 * time.Hour:
		return "tomorrow"
	}
	return "in " + plural(int(lead/time.Hour), "hour")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
