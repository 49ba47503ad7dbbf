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

type EventInput struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *models.Priority `json:"priority"`
	StartTime   *time.Time       `json:"start_time"`
	EndTime     *time.Time       `json:"end_time"`
	Location    *string          `json:"location"`
}

type EventService interface {
	CreateEvent(ctx context.Context, userID uint, in EventInput) (*models.Event, error)
	GetEvent(ctx context.Context, userID, id uint) (*models.Event, error)
	ListEvents(ctx context.Context, userID uint, view string) ([]models.Event, error)
	UpdateEvent(ctx context.Context, userID, id uint, in EventInput) (*models.Event, error)
	DeleteEvent(ctx context.Context, userID, id uint) error
}

type EventServiceImpl struct {
	events *repositories.EventRepository
	hook   ChangeHook
	logger *slog.Logger
	now    func() time.Time
}

var _ EventService = (*EventServiceImpl)(nil)

func NewEventService(events *repositories.EventRepository, hook ChangeHook, logger *slog.Logger) *EventServiceImpl {
	return &EventServiceImpl{events: events, hook: hook, logger: logger.With("component", "events"), now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *EventServiceImpl) WithClock(now func() time.Time) *EventServiceImpl {
	s.now = now
	return s
}

func (s *EventServiceImpl) CreateEvent(ctx context.Context, userID uint, in EventInput) (*models.Event, error) {
	event := &models.Event{UserID: userID, Priority: models.PriorityMedium}
	applyEventInput(event, in)
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	if err := s.hook.EventChanged(ctx, event); err != nil {
		return nil, err
	}
	s.logger.Info("event created", "event_id", event.ID, "user_id", userID, "conflict", event.IsConflict)
	return event, nil
}

func (s *EventServiceImpl) GetEvent(ctx context.Context, userID, id uint) (*models.Event, error) {
	return s.events.GetForUser(ctx, userID, id)
}

func (s *EventServiceImpl) ListEvents(ctx context.Context, userID uint, view string) ([]models.Event, error) {
	var filter repositories.EventFilter
	switch view {
	case ViewAll:
	case ViewUpcoming:
		now := s.now()
		filter.StartsAfter = &now
	case ViewConflicted:
		filter.ConflictOnly = true
	default:
		verr := apperrors.NewValidationError()
		verr.Add("view", "view must be one of upcoming, conflicted")
		return nil, verr
	}
	return s.events.ListByUser(ctx, userID, filter)
}

func (s *EventServiceImpl) UpdateEvent(ctx context.Context, userID, id uint, in EventInput) (*models.Event, error) {
	event, err := s.events.GetForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	applyEventInput(event, in)
	if err := event.Validate(); err != nil {
		return nil, err
	}
	if err := s.events.Save(ctx, event); err != nil {
		return nil, fmt.Errorf("update event %d: %w", id, err)
	}
	if err := s.hook.EventChanged(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *EventServiceImpl) DeleteEvent(ctx context.Context, userID, id uint) error {
	if err := s.events.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("event deleted", "event_id", id, "user_id", userID)
	return nil
}

func applyEventInput(event *models.Event, in EventInput) {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			event.Title = nil
		} else {
			event.Title = &title
		}
	}
	if in.Description != nil {
		event.Description = *in.Description
	}
	if in.Priority != nil {
		event.Priority = *in.Priority
	}
	if in.StartTime != nil {
		event.StartTime = in.StartTime.UTC()
	}
	if in.EndTime != nil {
		event.EndTime = in.EndTime.UTC()
	}
	if in.Location != nil {
		event.Location = *in.Location
	}
}
