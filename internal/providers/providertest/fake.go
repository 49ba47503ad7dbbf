// Package providertest provides an in-memory providers.Provider for tests.
package providertest

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"
	"planner/backend/internal/providers"

	"golang.org/x/oauth2"
)

// Fake keeps remote task lists and events in memory. Updates to unknown ids
// fail with a 404 RemoteError, like the real services.
type Fake struct {
	mu     sync.Mutex
	name   models.Provider
	lists  []providers.TaskList
	tasks  map[string][]providers.RemoteTask
	events []providers.RemoteEvent
	nextID int

	// ListErr, when set, is returned by every List call.
	ListErr error
	// CreateErr, when set, is returned by every Create call.
	CreateErr error
	Calls     []string
}

var _ providers.Provider = (*Fake)(nil)

// New returns a fake with a single task list named "L1".
func New(name models.Provider) *Fake {
	return &Fake{
		name:  name,
		lists: []providers.TaskList{{ID: "L1", Title: "Tasks"}},
		tasks: map[string][]providers.RemoteTask{},
	}
}

func (f *Fake) Name() models.Provider { return f.name }

func (f *Fake) SetLists(lists ...providers.TaskList) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists = lists
}

func (f *Fake) AddTask(listID string, task providers.RemoteTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[listID] = append(f.tasks[listID], task)
}

func (f *Fake) AddEvent(event providers.RemoteEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// Forget deletes a remote task or event so later updates see a 404.
func (f *Fake) Forget(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for listID, items := range f.tasks {
		kept := items[:0]
		for _, t := range items {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		f.tasks[listID] = kept
	}
	kept := f.events[:0]
	for _, e := range f.events {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	f.events = kept
}

func (f *Fake) Tasks(listID string) []providers.RemoteTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providers.RemoteTask(nil), f.tasks[listID]...)
}

func (f *Fake) Events() []providers.RemoteEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]providers.RemoteEvent(nil), f.events...)
}

// CallCount counts recorded calls with the given name, e.g. "CreateTask".
func (f *Fake) CallCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == name {
			n++
		}
	}
	return n
}

func (f *Fake) record(name string) {
	f.Calls = append(f.Calls, name)
}

func (f *Fake) ListTaskLists(ctx context.Context) ([]providers.TaskList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTaskLists")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]providers.TaskList(nil), f.lists...), nil
}

func (f *Fake) ListTasks(ctx context.Context, listID string) ([]providers.RemoteTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListTasks")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]providers.RemoteTask(nil), f.tasks[listID]...), nil
}

func (f *Fake) CreateTask(ctx context.Context, listID string, task providers.RemoteTask) (providers.RemoteTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateTask")
	if f.CreateErr != nil {
		return providers.RemoteTask{}, f.CreateErr
	}
	f.nextID++
	task.ID = fmt.Sprintf("%s-task-%d", f.name, f.nextID)
	f.tasks[listID] = append(f.tasks[listID], task)
	return task, nil
}

func (f *Fake) UpdateTask(ctx context.Context, listID, taskID string, task providers.RemoteTask) (providers.RemoteTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateTask")
	for i, existing := range f.tasks[listID] {
		if existing.ID == taskID {
			task.ID = taskID
			f.tasks[listID][i] = task
			return task, nil
		}
	}
	return providers.RemoteTask{}, f.notFound("update task")
}

func (f *Fake) ListEvents(ctx context.Context, window providers.TimeWindow) ([]providers.RemoteEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ListEvents")
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	return append([]providers.RemoteEvent(nil), f.events...), nil
}

func (f *Fake) CreateEvent(ctx context.Context, event providers.RemoteEvent) (providers.RemoteEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("CreateEvent")
	if f.CreateErr != nil {
		return providers.RemoteEvent{}, f.CreateErr
	}
	f.nextID++
	event.ID = fmt.Sprintf("%s-event-%d", f.name, f.nextID)
	f.events = append(f.events, event)
	return event, nil
}

func (f *Fake) UpdateEvent(ctx context.Context, eventID string, event providers.RemoteEvent) (providers.RemoteEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("UpdateEvent")
	for i, existing := range f.events {
		if existing.ID == eventID {
			event.ID = eventID
			f.events[i] = event
			return event, nil
		}
	}
	return providers.RemoteEvent{}, f.notFound("update event")
}

func (f *Fake) notFound(op string) error {
	return &apperrors.RemoteError{
		Provider:   string(f.name),
		Op:         op,
		StatusCode: http.StatusNotFound,
		Err:        fmt.Errorf("not found"),
	}
}

// Builder returns a providers.Builder that always hands out p.
func Builder(p providers.Provider) providers.Builder {
	return func(context.Context, *oauth2.Token) (providers.Provider, error) {
		return p, nil
	}
}

// Connector maps provider names straight to fakes, skipping token storage.
type Connector map[models.Provider]providers.Provider

func (c Connector) Connect(ctx context.Context, userID uint, provider models.Provider) (providers.Provider, error) {
	p, ok := c[provider]
	if !ok {
		return nil, apperrors.ErrNotConnected
	}
	return p, nil
}
