package assistant

import (
	"context"
	"fmt"
	"time"

	"planner/backend/internal/models"
	"planner/backend/internal/repositories"
)

const dateLayout = "2006-01-02"

type TaskSummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Conflict    bool   `json:"conflict,omitempty"`
}

type EventSummary struct {
	ID        uint   `json:"id"`
	Title     string `json:"title"`
	Location  string `json:"location,omitempty"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Conflict  bool   `json:"conflict,omitempty"`
}

type Day struct {
	Tasks  []TaskSummary  `json:"tasks"`
	Events []EventSummary `json:"events"`
}

type DateLabels struct {
	Today     string `json:"today"`
	Yesterday string `json:"yesterday"`
	Tomorrow  string `json:"tomorrow"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// Schedule is what the model sees about the user: every day in the window
// with the tasks and events touching it, plus every flagged conflict.
type Schedule struct {
	Labels           DateLabels     `json:"date_labels"`
	Days             map[string]Day `json:"days"`
	ConflictedTasks  []TaskSummary  `json:"conflicted_tasks"`
	ConflictedEvents []EventSummary `json:"conflicted_events"`
}

type ContextBuilder struct {
	tasks  *repositories.TaskRepository
	events *repositories.EventRepository
	days   int
}

func NewContextBuilder(tasks *repositories.TaskRepository, events *repositories.EventRepository, days int) *ContextBuilder {
	if days <= 0 {
		days = 3
	}
	return &ContextBuilder{tasks: tasks, events: events, days: days}
}

// Build collects the schedule of userID for the days around now, in UTC.
func (b *ContextBuilder) Build(ctx context.Context, userID uint, now time.Time) (*Schedule, error) {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	first := today.AddDate(0, 0, -b.days)
	last := today.AddDate(0, 0, b.days)

	tasks, err := b.tasks.ListInRange(ctx, userID, first, last.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load tasks for assistant: %w", err)
	}
	events, err := b.events.ListInRange(ctx, userID, first, last.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("load events for assistant: %w", err)
	}

	s := &Schedule{
		Labels: DateLabels{
			Today:     today.Format(dateLayout),
			Yesterday: today.AddDate(0, 0, -1).Format(dateLayout),
			Tomorrow:  today.AddDate(0, 0, 1).Format(dateLayout),
			StartDate: first.Format(dateLayout),
			EndDate:   last.Format(dateLayout),
		},
		Days:             make(map[string]Day),
		ConflictedTasks:  []TaskSummary{},
		ConflictedEvents: []EventSummary{},
	}

	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		next := day.AddDate(0, 0, 1)
		d := Day{Tasks: []TaskSummary{}, Events: []EventSummary{}}
		for i := range tasks {
			if touchesDay(tasks[i].StartTime, tasks[i].EndTime, day, next) {
				d.Tasks = append(d.Tasks, summarizeTask(&tasks[i]))
			}
		}
		for i := range events {
			if touchesDay(events[i].StartTime, events[i].EndTime, day, next) {
				d.Events = append(d.Events, summarizeEvent(&events[i]))
			}
		}
		s.Days[day.Format(dateLayout)] = d
	}

	conflictedTasks, err := b.tasks.ListByUser(ctx, userID, repositories.TaskFilter{ConflictOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load conflicted tasks: %w", err)
	}
	for i := range conflictedTasks {
		s.ConflictedTasks = append(s.ConflictedTasks, summarizeTask(&conflictedTasks[i]))
	}
	conflictedEvents, err := b.events.ListByUser(ctx, userID, repositories.EventFilter{ConflictOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load conflicted events: %w", err)
	}
	for i := range conflictedEvents {
		s.ConflictedEvents = append(s.ConflictedEvents, summarizeEvent(&conflictedEvents[i]))
	}
	return s, nil
}

// touchesDay reports whether [start, end] shares any instant with [day, next).
func touchesDay(start, end, day, next time.Time) bool {
	return start.Before(next) && !end.Before(day)
}

func summarizeTask(t *models.Task) TaskSummary {
	return TaskSummary{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		StartTime:   t.StartTime.UTC().Format(time.RFC3339),
		EndTime:     t.EndTime.UTC().Format(time.RFC3339),
		Conflict:    t.IsConflict,
	}
}

func summarizeEvent(e *models.Event) EventSummary {
	return EventSummary{
		ID:        e.ID,
		Title:     e.DisplayTitle(),
		Location:  e.Location,
		StartTime: e.StartTime.UTC().Format(time.RFC3339),
		EndTime:   e.EndTime.UTC().Format(time.RFC3339),
		Conflict:  e.IsConflict,
	}
}
