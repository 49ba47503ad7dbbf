// Package syncer reconciles local tasks and events with external calendar
// providers. Pushes send local items out and record the remote ids; pulls
// bring remote items in, updating linked local items or shadow copies.
//
// Pushes collect per-item failures and keep going. Pulls stop at the first
// remote or store failure, since a partial listing cannot be told apart from
// remote deletions.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"
	"planner/backend/internal/providers"
	"planner/backend/internal/repositories"
)

type Direction string

const (
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
)

type Kind string

const (
	KindTasks  Kind = "tasks"
	KindEvents Kind = "events"
)

// ErrNoTaskList is returned when a provider account has no task list to push into.
var ErrNoTaskList = errors.New("provider has no task list")

// ChangeHook is notified after a pull rewrites a locally authored item.
type ChangeHook interface {
	TaskChanged(ctx context.Context, task *models.Task) error
	EventChanged(ctx context.Context, event *models.Event) error
}

// Result summarises one pass over one kind of item.
type Result struct {
	Provider  models.Provider `json:"provider"`
	Direction Direction       `json:"direction"`
	Kind      Kind            `json:"kind"`
	Items     int             `json:"items"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Skipped   int             `json:"skipped"`
	Stale     int             `json:"stale"`
	Errors    []string        `json:"errors"`
}

func newResult(provider models.Provider, direction Direction, kind Kind) *Result {
	return &Result{Provider: provider, Direction: direction, Kind: kind, Errors: []string{}}
}

func (r *Result) fail(err error) {
	r.Failed++
	r.Errors = append(r.Errors, err.Error())
}

// Report is the outcome of a full Sync.
type Report struct {
	Provider models.Provider  `json:"provider"`
	Status   models.SyncState `json:"sync_status"`
	Results  []*Result        `json:"results"`
}

// Stores groups the repositories the reconciler reads and writes.
type Stores struct {
	Tasks   *repositories.TaskRepository
	Events  *repositories.EventRepository
	Links   *repositories.SyncLinkRepository
	Shadows *repositories.CalendarRepository
	Status  *repositories.SyncStatusRepository
}

type Reconciler struct {
	connector providers.Connector
	stores    Stores
	hook      ChangeHook
	logger    *slog.Logger
	window    time.Duration
	now       func() time.Time
}

// New builds a Reconciler. eventWindow bounds event pulls to now ± eventWindow.
func New(connector providers.Connector, stores Stores, hook ChangeHook, logger *slog.Logger, eventWindow time.Duration) *Reconciler {
	return &Reconciler{
		connector: connector,
		stores:    stores,
		hook:      hook,
		logger:    logger.With("component", "syncer"),
		window:    eventWindow,
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (r *Reconciler) WithClock(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// Sync pushes then pulls both kinds and records the outcome in the user's
// sync status row for the provider.
func (r *Reconciler) Sync(ctx context.Context, userID uint, provider models.Provider) (*Report, error) {
	report := &Report{Provider: provider, Status: models.SyncSyncing}
	if err := r.stores.Status.Set(ctx, userID, provider, models.SyncSyncing, "", nil); err != nil {
		return nil, fmt.Errorf("mark sync started: %w", err)
	}

	steps := []func(context.Context, uint, models.Provider) (*Result, error){
		r.PushTasks, r.PushEvents, r.PullTasks, r.PullEvents,
	}
	for _, step := range steps {
		res, err := step(ctx, userID, provider)
		if res != nil {
			report.Results = append(report.Results, res)
		}
		if err != nil {
			report.Status = models.SyncError
			if serr := r.stores.Status.Set(ctx, userID, provider, models.SyncError, err.Error(), nil); serr != nil {
				r.logger.Error("failed to record sync error", "user_id", userID, "provider", provider, "error", serr)
			}
			return report, err
		}
	}

	now := r.now().UTC()
	report.Status = models.SyncSynced
	if err := r.stores.Status.Set(ctx, userID, provider, models.SyncSynced, "", &now); err != nil {
		return report, fmt.Errorf("mark sync finished: %w", err)
	}
	r.logger.Info("sync finished", "user_id", userID, "provider", provider)
	return report, nil
}

// PullTasks reads every remote task list and reconciles each item.
func (r *Reconciler) PullTasks(ctx context.Context, userID uint, provider models.Provider) (*Result, error) {
	client, err := r.connector.Connect(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	lists, err := client.ListTaskLists(ctx)
	if err != nil {
		return nil, err
	}

	res := newResult(provider, DirectionPull, KindTasks)
	seen := make(map[string]struct{})
	for _, list := range lists {
		items, err := client.ListTasks(ctx, list.ID)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.ID == "" {
				res.Skipped++
				continue
			}
			if _, dup := seen[item.ID]; dup {
				res.Skipped++
				continue
			}
			seen[item.ID] = struct{}{}
			res.Items++

			if err := r.pullTask(ctx, userID, provider, item, res); err != nil {
				return nil, err
			}
		}
	}

	r.logger.Info("pulled tasks", "user_id", userID, "provider", provider,
		"items", res.Items, "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

func (r *Reconciler) pullTask(ctx context.Context, userID uint, provider models.Provider, item providers.RemoteTask, res *Result) error {
	due, err := providers.ParseTimestamp(item.Due)
	if err != nil {
		r.logger.Warn("skipping remote task", "provider", provider, "external_id", item.ID, "error", err)
		res.Skipped++
		return nil
	}

	local, err := r.localTask(ctx, userID, provider, item.ID)
	if err != nil {
		return err
	}
	if local != nil {
		if err := r.stores.Links.LinkTask(ctx, local.ID, provider, item.ID, r.now()); err != nil {
			return err
		}
		res.Succeeded++
		if !applyRemoteTask(local, item, due) {
			return nil
		}
		if err := r.stores.Tasks.Save(ctx, local); err != nil {
			return fmt.Errorf("update task %d from %s: %w", local.ID, provider, err)
		}
		if err := r.hook.TaskChanged(ctx, local); err != nil {
			return err
		}
		res.Updated++
		return nil
	}

	shadow, err := r.stores.Shadows.FindTask(ctx, userID, provider, item.ID)
	if err != nil {
		return err
	}
	if shadow == nil {
		shadow = &models.CalendarTask{UserID: userID, ExternalID: item.ID, ExternalProvider: provider}
		res.Created++
	} else {
		res.Updated++
	}
	shadow.Title = item.Title
	shadow.Description = item.Notes
	shadow.DueDate = due
	shadow.Status = item.Status
	shadow.LastSyncedAt = r.now().UTC()
	if err := r.stores.Shadows.SaveTask(ctx, shadow); err != nil {
		return fmt.Errorf("save %s task %s: %w", provider, item.ID, err)
	}
	res.Succeeded++
	return nil
}

// localTask finds the locally authored task behind a remote id: sync
// metadata first, then the legacy linked_to/external_id columns, whose hit is
// backfilled into metadata.
func (r *Reconciler) localTask(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.Task, error) {
	task, err := r.stores.Links.TaskByExternalID(ctx, userID, provider, externalID)
	if err != nil || task != nil {
		return task, err
	}
	task, err = r.stores.Tasks.FindByLegacyLink(ctx, userID, provider, externalID)
	if err != nil || task == nil {
		return task, err
	}
	if err := r.stores.Links.LinkTask(ctx, task.ID, provider, externalID, r.now()); err != nil {
		return nil, err
	}
	return task, nil
}

// taskFields is the part of a task a pull can overwrite. Times compare at
// second precision since provider timestamps carry no more.
type taskFields struct {
	name        string
	description string
	start, end  time.Time
	status      models.TaskStatus
	priority    models.Priority
}

func taskFieldsOf(task *models.Task) taskFields {
	return taskFields{
		name:        task.Name,
		description: task.Description,
		start:       task.StartTime.Truncate(time.Second),
		end:         task.EndTime.Truncate(time.Second),
		status:      task.Status,
		priority:    task.Priority,
	}
}

func (f taskFields) equal(other taskFields) bool {
	return f.name == other.name && f.description == other.description &&
		f.start.Equal(other.start) && f.end.Equal(other.end) &&
		f.status == other.status && f.priority == other.priority
}

// applyRemoteTask copies remote fields onto a local task and reports whether
// anything changed. A missing due date keeps the local end; a due date at or
// before the start moves the start so the task keeps its length. A remote
// priority is taken only when the provider reports one.
func applyRemoteTask(task *models.Task, item providers.RemoteTask, due *time.Time) bool {
	before := taskFieldsOf(task)
	if due != nil && due.Truncate(time.Second).Equal(before.end) {
		due = nil
	}
	if title := strings.TrimSpace(item.Title); title != "" {
		task.Name = title
	}
	task.Description = item.Notes
	if due != nil {
		length := task.EndTime.Sub(task.StartTime)
		task.EndTime = *due
		if !task.EndTime.After(task.StartTime) {
			if length <= 0 {
				length = time.Hour
			}
			task.StartTime = task.EndTime.Add(-length)
		}
	}
	switch {
	case item.Completed():
		task.Status = models.StatusCompleted
	case task.Status == models.StatusCompleted:
		task.Status = models.StatusPending
	}
	if item.Priority != "" {
		task.Priority = item.Priority
	}
	return !taskFieldsOf(task).equal(before)
}

// PullEvents reads remote events within the configured window around now.
func (r *Reconciler) PullEvents(ctx context.Context, userID uint, provider models.Provider) (*Result, error) {
	client, err := r.connector.Connect(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	now := r.now()
	items, err := client.ListEvents(ctx, providers.TimeWindow{Start: now.Add(-r.window), End: now.Add(r.window)})
	if err != nil {
		return nil, err
	}

	res := newResult(provider, DirectionPull, KindEvents)
	seen := make(map[string]struct{})
	for _, item := range items {
		if item.ID == "" {
			res.Skipped++
			continue
		}
		if _, dup := seen[item.ID]; dup {
			res.Skipped++
			continue
		}
		seen[item.ID] = struct{}{}
		res.Items++

		if err := r.pullEvent(ctx, userID, provider, item, res); err != nil {
			return nil, err
		}
	}

	r.logger.Info("pulled events", "user_id", userID, "provider", provider,
		"items", res.Items, "created", res.Created, "updated", res.Updated, "skipped", res.Skipped)
	return res, nil
}

func (r *Reconciler) pullEvent(ctx context.Context, userID uint, provider models.Provider, item providers.RemoteEvent, res *Result) error {
	start, startErr := providers.ParseTimestamp(item.Start)
	end, endErr := providers.ParseTimestamp(item.End)
	if startErr != nil || endErr != nil || start == nil || end == nil || !end.After(*start) {
		r.logger.Warn("skipping remote event without a usable time window",
			"provider", provider, "external_id", item.ID, "start", item.Start, "end", item.End)
		res.Skipped++
		return nil
	}

	local, err := r.localEvent(ctx, userID, provider, item.ID)
	if err != nil {
		return err
	}
	if local != nil {
		if err := r.stores.Links.LinkEvent(ctx, local.ID, provider, item.ID, r.now()); err != nil {
			return err
		}
		res.Succeeded++
		if !applyRemoteEvent(local, item, *start, *end) {
			return nil
		}
		if err := r.stores.Events.Save(ctx, local); err != nil {
			return fmt.Errorf("update event %d from %s: %w", local.ID, provider, err)
		}
		if err := r.hook.EventChanged(ctx, local); err != nil {
			return err
		}
		res.Updated++
		return nil
	}

	shadow, err := r.stores.Shadows.FindEvent(ctx, userID, provider, item.ID)
	if err != nil {
		return err
	}
	if shadow == nil {
		shadow = &models.CalendarEvent{UserID: userID, ExternalID: item.ID, ExternalProvider: provider}
		res.Created++
	} else {
		res.Updated++
	}
	shadow.Title = item.Title
	shadow.Description = item.Description
	shadow.Location = item.Location
	shadow.StartTime = *start
	shadow.EndTime = *end
	shadow.LastSyncedAt = r.now().UTC()
	if err := r.stores.Shadows.SaveEvent(ctx, shadow); err != nil {
		return fmt.Errorf("save %s event %s: %w", provider, item.ID, err)
	}
	res.Succeeded++
	return nil
}

// applyRemoteEvent copies remote fields onto a local event and reports
// whether anything changed.
func applyRemoteEvent(event *models.Event, item providers.RemoteEvent, start, end time.Time) bool {
	changed := false
	if title := strings.TrimSpace(item.Title); title != "" && (event.Title == nil || *event.Title != title) {
		event.Title = &title
		changed = true
	}
	if event.Description != item.Description {
		event.Description = item.Description
		changed = true
	}
	if event.Location != item.Location {
		event.Location = item.Location
		changed = true
	}
	if !event.StartTime.Truncate(time.Second).Equal(start.Truncate(time.Second)) {
		event.StartTime = start
		changed = true
	}
	if !event.EndTime.Truncate(time.Second).Equal(end.Truncate(time.Second)) {
		event.EndTime = end
		changed = true
	}
	return changed
}

func (r *Reconciler) localEvent(ctx context.Context, userID uint, provider models.Provider, externalID string) (*models.Event, error) {
	event, err := r.stores.Links.EventByExternalID(ctx, userID, provider, externalID)
	if err != nil || event != nil {
		return event, err
	}
	event, err = r.stores.Events.FindByLegacyLink(ctx, userID, provider, externalID)
	if err != nil || event == nil {
		return event, err
	}
	if err := r.stores.Links.LinkEvent(ctx, event.ID, provider, externalID, r.now()); err != nil {
		return nil, err
	}
	return event, nil
}

// PushTasks sends every task of the user to the provider's first task list.
func (r *Reconciler) PushTasks(ctx context.Context, userID uint, provider models.Provider) (*Result, error) {
	client, err := r.connector.Connect(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	lists, err := client.ListTaskLists(ctx)
	if err != nil {
		return nil, err
	}
	if len(lists) == 0 {
		return nil, ErrNoTaskList
	}
	listID := lists[0].ID

	tasks, err := r.stores.Tasks.ListByUser(ctx, userID, repositories.TaskFilter{Order: "id ASC"})
	if err != nil {
		return nil, err
	}

	res := newResult(provider, DirectionPush, KindTasks)
	for i := range tasks {
		res.Items++
		if err := r.pushTask(ctx, client, listID, &tasks[i], res); err != nil {
			r.logger.Warn("task push failed", "task_id", tasks[i].ID, "provider", provider, "error", err)
			res.fail(err)
		}
	}

	r.logger.Info("pushed tasks", "user_id", userID, "provider", provider,
		"succeeded", res.Succeeded, "failed", res.Failed, "stale", res.Stale)
	return res, nil
}

func (r *Reconciler) pushTask(ctx context.Context, client providers.Provider, listID string, task *models.Task, res *Result) error {
	provider := client.Name()
	if strings.TrimSpace(task.Name) == "" {
		verr := apperrors.NewValidationError()
		verr.Add("name", fmt.Sprintf("task %d has no name", task.ID))
		return verr
	}

	externalID, err := r.taskExternalID(ctx, task, provider)
	if err != nil {
		return err
	}
	body := remoteTaskBody(task)

	if externalID == "" {
		created, err := client.CreateTask(ctx, listID, body)
		if err != nil {
			return err
		}
		if err := r.stores.Links.LinkTask(ctx, task.ID, provider, created.ID, r.now()); err != nil {
			return err
		}
		if task.LinkedTo == models.ProviderNone || task.LinkedTo == "" {
			id := created.ID
			task.LinkedTo = provider
			task.ExternalID = &id
			if err := r.stores.Tasks.Save(ctx, task); err != nil {
				return err
			}
		}
		res.Created++
		res.Succeeded++
		return nil
	}

	if _, err := client.UpdateTask(ctx, listID, externalID, body); err != nil {
		if apperrors.IsRemoteNotFound(err) {
			return r.unlinkStaleTask(ctx, task, provider, externalID, res)
		}
		return err
	}
	if err := r.stores.Links.LinkTask(ctx, task.ID, provider, externalID, r.now()); err != nil {
		return err
	}
	res.Updated++
	res.Succeeded++
	return nil
}

func (r *Reconciler) taskExternalID(ctx context.Context, task *models.Task, provider models.Provider) (string, error) {
	link, err := r.stores.Links.TaskLink(ctx, task.ID, provider)
	if err != nil {
		return "", err
	}
	if link != nil {
		return link.ExternalID, nil
	}
	if task.LinkedTo == provider && task.ExternalID != nil {
		return *task.ExternalID, nil
	}
	return "", nil
}

// unlinkStaleTask drops a linkage the provider no longer recognises, so the
// next push creates the item again.
func (r *Reconciler) unlinkStaleTask(ctx context.Context, task *models.Task, provider models.Provider, externalID string, res *Result) error {
	if err := r.stores.Links.UnlinkTask(ctx, task.ID, provider); err != nil {
		return err
	}
	if task.LinkedTo == provider && task.ExternalID != nil && *task.ExternalID == externalID {
		task.LinkedTo = models.ProviderNone
		task.ExternalID = nil
		if err := r.stores.Tasks.Save(ctx, task); err != nil {
			return err
		}
	}
	stale := &apperrors.LinkageStaleError{Entity: "task", EntityID: task.ID, Provider: string(provider), ExternalID: externalID}
	r.logger.Info("cleared stale task linkage", "task_id", task.ID, "provider", provider, "external_id", externalID)
	res.Stale++
	res.Errors = append(res.Errors, stale.Error())
	return nil
}

func remoteTaskBody(task *models.Task) providers.RemoteTask {
	status := providers.TaskStatusOpen
	if task.Status == models.StatusCompleted {
		status = providers.TaskStatusCompleted
	}
	return providers.RemoteTask{
		Title:    task.Name,
		Notes:    task.Description,
		Due:      providers.FormatTime(task.EndTime),
		Status:   status,
		Priority: task.Priority,
	}
}

// PushEvents sends every event of the user to the provider's calendar.
func (r *Reconciler) PushEvents(ctx context.Context, userID uint, provider models.Provider) (*Result, error) {
	client, err := r.connector.Connect(ctx, userID, provider)
	if err != nil {
		return nil, err
	}
	events, err := r.stores.Events.ListByUser(ctx, userID, repositories.EventFilter{})
	if err != nil {
		return nil, err
	}

	res := newResult(provider, DirectionPush, KindEvents)
	for i := range events {
		res.Items++
		if err := r.pushEvent(ctx, client, &events[i], res); err != nil {
			r.logger.Warn("event push failed", "event_id", events[i].ID, "provider", provider, "error", err)
			res.fail(err)
		}
	}

	r.logger.Info("pushed events", "user_id", userID, "provider", provider,
		"succeeded", res.Succeeded, "failed", res.Failed, "stale", res.Stale)
	return res, nil
}

func (r *Reconciler) pushEvent(ctx context.Context, client providers.Provider, event *models.Event, res *Result) error {
	provider := client.Name()
	if event.Title == nil || strings.TrimSpace(*event.Title) == "" {
		verr := apperrors.NewValidationError()
		verr.Add("title", fmt.Sprintf("event %d has no title", event.ID))
		return verr
	}

	externalID, err := r.eventExternalID(ctx, event, provider)
	if err != nil {
		return err
	}
	body := providers.RemoteEvent{
		Title:       *event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       providers.FormatTime(event.StartTime),
		End:         providers.FormatTime(event.EndTime),
	}

	if externalID == "" {
		created, err := client.CreateEvent(ctx, body)
		if err != nil {
			return err
		}
		if err := r.stores.Links.LinkEvent(ctx, event.ID, provider, created.ID, r.now()); err != nil {
			return err
		}
		if event.ExternalProvider == nil {
			id, p := created.ID, provider
			event.ExternalID = &id
			event.ExternalProvider = &p
			if err := r.stores.Events.Save(ctx, event); err != nil {
				return err
			}
		}
		res.Created++
		res.Succeeded++
		return nil
	}

	if _, err := client.UpdateEvent(ctx, externalID, body); err != nil {
		if apperrors.IsRemoteNotFound(err) {
			return r.unlinkStaleEvent(ctx, event, provider, externalID, res)
		}
		return err
	}
	if err := r.stores.Links.LinkEvent(ctx, event.ID, provider, externalID, r.now()); err != nil {
		return err
	}
	res.Updated++
	res.Succeeded++
	return nil
}

func (r *Reconciler) eventExternalID(ctx context.Context, event *models.Event, provider models.Provider) (string, error) {
	link, err := r.stores.Links.EventLink(ctx, event.ID, provider)
	if err != nil {
		return "", err
	}
	if link != nil {
		return link.ExternalID, nil
	}
	if event.ExternalProvider != nil && *event.ExternalProvider == provider && event.ExternalID != nil {
		return *event.ExternalID, nil
	}
	return "", nil
}

func (r *Reconciler) unlinkStaleEvent(ctx context.Context, event *models.Event, provider models.Provider, externalID string, res *Result) error {
	if err := r.stores.Links.UnlinkEvent(ctx, event.ID, provider); err != nil {
		return err
	}
	if event.ExternalProvider != nil && *event.ExternalProvider == provider &&
		event.ExternalID != nil && *event.ExternalID == externalID {
		event.ExternalProvider = nil
		event.ExternalID = nil
		if err := r.stores.Events.Save(ctx, event); err != nil {
			return err
		}
	}
	stale := &apperrors.LinkageStaleError{Entity: "event", EntityID: event.ID, Provider: string(provider), ExternalID: externalID}
	r.logger.Info("cleared stale event linkage", "event_id", event.ID, "provider", provider, "external_id", externalID)
	res.Stale++
	res.Errors = append(res.Errors, stale.Error())
	return nil
}
