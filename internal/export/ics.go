// Package export renders a user's schedule as an iCalendar feed.
package export

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"planner/backend/internal/models"
	"planner/backend/internal/repositories"

	"github.com/emersion/go-ical"
	"github.com/gofrs/uuid"
)

const productID = "-//planner//backend//EN"

// uidNamespace keeps exported UIDs stable across downloads.
var uidNamespace = uuid.NewV5(uuid.NamespaceURL, "https://planner.local/ics")

type Exporter struct {
	tasks   *repositories.TaskRepository
	events  *repositories.EventRepository
	shadows *repositories.CalendarRepository
	now     func() time.Time
}

func NewExporter(tasks *repositories.TaskRepository, events *repositories.EventRepository, shadows *repositories.CalendarRepository) *Exporter {
	return &Exporter{tasks: tasks, events: events, shadows: shadows, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (e *Exporter) WithClock(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// Write encodes the user's events, pulled provider events and tasks.
func (e *Exporter) Write(ctx context.Context, userID uint, w io.Writer) error {
	cal, err := e.Calendar(ctx, userID)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}

func (e *Exporter) Calendar(ctx context.Context, userID uint) (*ical.Calendar, error) {
	events, err := e.events.ListByUser(ctx, userID, repositories.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	shadows, err := e.shadows.ListEvents(ctx, userID, "")
	if err != nil {
		return nil, fmt.Errorf("load provider events: %w", err)
	}
	tasks, err := e.tasks.ListByUser(ctx, userID, repositories.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	stamp := e.now().UTC()
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	for i := range events {
		cal.Children = append(cal.Children, eventComponent(&events[i], stamp))
	}
	for i := range shadows {
		cal.Children = append(cal.Children, shadowComponent(&shadows[i], stamp))
	}
	for i := range tasks {
		cal.Children = append(cal.Children, taskComponent(&tasks[i], stamp))
	}
	return cal, nil
}

func eventComponent(event *models.Event, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid("event", strconv.FormatUint(uint64(event.ID), 10)))
	ve.Props.SetText(ical.PropSummary, event.DisplayTitle())
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime.UTC())
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	setPriority(ve, event.Priority)
	return ve
}

func shadowComponent(event *models.CalendarEvent, stamp time.Time) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, uid(string(event.ExternalProvider), event.ExternalID))
	ve.Props.SetText(ical.PropSummary, event.Title)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	ve.Props.SetDateTime(ical.PropDateTimeStart, event.StartTime.UTC())
	ve.Props.SetDateTime(ical.PropDateTimeEnd, event.EndTime.UTC())
	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	ve.Props.SetText("X-PLANNER-PROVIDER", string(event.ExternalProvider))
	return ve
}

func taskComponent(task *models.Task, stamp time.Time) *ical.Component {
	vt := ical.NewComponent(ical.CompToDo)
	vt.Props.SetText(ical.PropUID, uid("task", strconv.FormatUint(uint64(task.ID), 10)))
	vt.Props.SetText(ical.PropSummary, task.Name)
	vt.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
	vt.Props.SetDateTime(ical.PropDateTimeStart, task.StartTime.UTC())
	vt.Props.SetDateTime(ical.PropDue, task.EndTime.UTC())
	if task.Description != "" {
		vt.Props.SetText(ical.PropDescription, task.Description)
	}
	vt.Props.SetText(ical.PropStatus, todoStatus(task.Status))
	setPriority(vt, task.Priority)
	return vt
}

func todoStatus(status models.TaskStatus) string {
	switch status {
	case models.StatusInProgress:
		return "IN-PROCESS"
	case models.StatusCompleted:
		return "COMPLETED"
	case models.StatusCancelled:
		return "CANCELLED"
	default:
		return "NEEDS-ACTION"
	}
}

// setPriority maps onto the RFC 5545 scale, where 1 is highest.
func setPriority(comp *ical.Component, priority models.Priority) {
	value := "5"
	switch priority {
	case models.PriorityHigh:
		value = "1"
	case models.PriorityLow:
		value = "9"
	}
	prop := ical.NewProp(ical.PropPriority)
	prop.Value = value
	comp.Props.Set(prop)
}

func uid(kind, id string) string {
	return uuid.NewV5(uidNamespace, kind+":"+id).String() + "@planner"
}
