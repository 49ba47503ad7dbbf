package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"
	"planner/backend/internal/repositories"
)

// ChangeHook is told about every task or event that was created or updated.
type ChangeHook interface {
	TaskChanged(ctx context.Context, task *models.Task) error
	EventChanged(ctx context.Context, event *models.Event) error
}

// TaskInput carries client-supplied task fields. Nil fields are left as they
// are on update.
type TaskInput struct {
	Name        *string            `json:"name"`
	Description *string            `json:"description"`
	Priority    *models.Priority   `json:"priority"`
	StartTime   *time.Time         `json:"start_time"`
	EndTime     *time.Time         `json:"end_time"`
	Status      *models.TaskStatus `json:"status"`
}

const (
	ViewAll        = ""
	ViewUpcoming   = "upcoming"
	ViewCompleted  = "completed"
	ViewCancelled  = "cancelled"
	ViewConflicted = "conflicted"
)

type TaskService interface {
	CreateTask(ctx context.Context, userID uint, in TaskInput) (*models.Task, error)
	GetTask(ctx context.Context, userID, id uint) (*models.Task, error)
	ListTasks(ctx context.Context, userID uint, view string) ([]models.Task, error)
	UpdateTask(ctx context.Context, userID, id uint, in TaskInput) (*models.Task, error)
	DeleteTask(ctx context.Context, userID, id uint) error
	CompleteTask(ctx context.Context, userID, id uint) (*models.Task, error)
	CancelTask(ctx context.Context, userID, id uint) (*models.Task, error)
}

type TaskServiceImpl struct {
	tasks  *repositories.TaskRepository
	hook   ChangeHook
	logger *slog.Logger
	now    func() time.Time
}

var _ TaskService = (*TaskServiceImpl)(nil)

func NewTaskService(tasks *repositories.TaskRepository, hook ChangeHook, logger *slog.Logger) *TaskServiceImpl {
	return &TaskServiceImpl{tasks: tasks, hook: hook, logger: logger.With("component", "tasks"), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *TaskServiceImpl) WithClock(now func() time.Time) *TaskServiceImpl {
	s.now = now
	return s
}

func (s *TaskServiceImpl) CreateTask(ctx context.Context, userID uint, in TaskInput) (*models.Task, error) {
	task := &models.Task{
		UserID:   userID,
		Priority: models.PriorityMedium,
		Status:   models.StatusPending,
		LinkedTo: models.ProviderNone,
	}
	applyTaskInput(task, in)
	if err := s.validate(task); err != nil {
		return nil, err
	}
	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	if err := s.hook.TaskChanged(ctx, task); err != nil {
		return nil, err
	}
	s.logger.Info("task created", "task_id", task.ID, "user_id", userID, "conflict", task.IsConflict)
	return task, nil
}

func (s *TaskServiceImpl) GetTask(ctx context.Context, userID, id uint) (*models.Task, error) {
	return s.tasks.GetForUser(ctx, userID, id)
}

func (s *TaskServiceImpl) ListTasks(ctx context.Context, userID uint, view string) ([]models.Task, error) {
	var filter repositories.TaskFilter
	switch view {
	case ViewAll:
	case ViewUpcoming:
		now := s.now()
		filter.StartsAfter = &now
		filter.Statuses = []models.TaskStatus{models.StatusPending}
	case ViewCompleted:
		filter.Statuses = []models.TaskStatus{models.StatusCompleted}
	case ViewCancelled:
		filter.Statuses = []models.TaskStatus{models.StatusCancelled}
	case ViewConflicted:
		filter.ConflictOnly = true
	default:
		verr := apperrors.NewValidationError()
		verr.Add("view", "view must be one of upcoming, completed, cancelled, conflicted")
		return nil, verr
	}
	return s.tasks.ListByUser(ctx, userID, filter)
}

func (s *TaskServiceImpl) UpdateTask(ctx context.Context, userID, id uint, in TaskInput) (*models.Task, error) {
	task, err := s.tasks.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	applyTaskInput(task, in)
	if err := s.validate(task); err != nil {
		return nil, err
	}
	return s.save(ctx, task)
}

func (s *TaskServiceImpl) DeleteTask(ctx context.Context, userID, id uint) error {
	if err := s.tasks.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", "task_id", id, "user_id", userID)
	return nil
}

func (s *TaskServiceImpl) CompleteTask(ctx context.Context, userID, id uint) (*models.Task, error) {
	return s.setStatus(ctx, userID, id, models.StatusCompleted)
}

func (s *TaskServiceImpl) CancelTask(ctx context.Context, userID, id uint) (*models.Task, error) {
	return s.setStatus(ctx, userID, id, models.StatusCancelled)
}

func (s *TaskServiceImpl) setStatus(ctx context.Context, userID, id uint, status models.TaskStatus) (*models.Task, error) {
	task, err := s.tasks.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	task.Status = status
	return s.save(ctx, task)
}

func (s *TaskServiceImpl) save(ctx context.Context, task *models.Task) (*models.Task, error) {
	if err := s.tasks.Save(ctx, task); err != nil {
		return nil, fmt.Errorf("update task %d: %w", task.ID, err)
	}
	if err := s.hook.TaskChanged(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// validate adds the request-level rule on top of the model invariants: an
// open task cannot end in the past.
func (s *TaskServiceImpl) validate(task *models.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	if task.Status != models.StatusCompleted && task.EndTime.Before(s.now()) {
		verr := apperrors.NewValidationError()
		verr.Add("end_time", "end time cannot be in the past unless status is completed")
		return verr
	}
	return nil
}

func applyTaskInput(task *models.Task, in TaskInput) {
	if in.Name != nil {
		task.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.StartTime != nil {
		task.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		task.EndTime = in.EndTime.UTC()
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
}
