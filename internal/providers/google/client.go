// Package google adapts Google Calendar and Google Tasks to providers.Provider.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/config"
	"planner/backend/internal/models"
	"planner/backend/internal/providers"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/tasks/v1"
)

type Options struct {
	CalendarID string
	// Endpoint replaces the API root for both services; used against fakes.
	Endpoint string
}

type Client struct {
	calendar   *calendar.Service
	tasks      *tasks.Service
	calendarID string
}

var _ providers.Provider = (*Client)(nil)

func New(ctx context.Context, httpClient *http.Client, opts Options) (*Client, error) {
	clientOpts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if opts.Endpoint != "" {
		endpoint := opts.Endpoint
		if !strings.HasSuffix(endpoint, "/") {
			endpoint += "/"
		}
		clientOpts = append(clientOpts, option.WithEndpoint(endpoint))
	}

	calendarSvc, err := calendar.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	tasksSvc, err := tasks.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}

	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Client{calendar: calendarSvc, tasks: tasksSvc, calendarID: calendarID}, nil
}

func OAuthConfig(cfg config.GoogleConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{calendar.CalendarScope, tasks.TasksScope},
		Endpoint:     googleoauth.Endpoint,
	}
}

// Builder creates clients from stored user tokens.
func Builder(cfg config.GoogleConfig) providers.Builder {
	oauthCfg := OAuthConfig(cfg)
	return func(ctx context.Context, token *oauth2.Token) (providers.Provider, error) {
		return New(ctx, oauthCfg.Client(ctx, token), Options{CalendarID: cfg.CalendarID, Endpoint: cfg.Endpoint})
	}
}

func (c *Client) Name() models.Provider { return models.ProviderGoogle }

func (c *Client) ListTaskLists(ctx context.Context) ([]providers.TaskList, error) {
	var lists []providers.TaskList
	err := c.tasks.Tasklists.List().MaxResults(100).Pages(ctx, func(page *tasks.TaskLists) error {
		for _, item := range page.Items {
			lists = append(lists, providers.TaskList{ID: item.Id, Title: item.Title})
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list task lists", err)
	}
	return lists, nil
}

func (c *Client) ListTasks(ctx context.Context, listID string) ([]providers.RemoteTask, error) {
	var out []providers.RemoteTask
	err := c.tasks.Tasks.List(listID).ShowCompleted(true).ShowHidden(true).MaxResults(100).
		Pages(ctx, func(page *tasks.Tasks) error {
			for _, item := range page.Items {
				if item.Deleted {
					continue
				}
				out = append(out, fromGoogleTask(item))
			}
			return nil
		})
	if err != nil {
		return nil, wrap("list tasks", err)
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, listID string, task providers.RemoteTask) (providers.RemoteTask, error) {
	created, err := c.tasks.Tasks.Insert(listID, toGoogleTask(task)).Context(ctx).Do()
	if err != nil {
		return providers.RemoteTask{}, wrap("create task", err)
	}
	return fromGoogleTask(created), nil
}

func (c *Client) UpdateTask(ctx context.Context, listID, taskID string, task providers.RemoteTask) (providers.RemoteTask, error) {
	body := toGoogleTask(task)
	body.ForceSendFields = []string{"Notes"}
	updated, err := c.tasks.Tasks.Patch(listID, taskID, body).Context(ctx).Do()
	if err != nil {
		return providers.RemoteTask{}, wrap("update task", err)
	}
	return fromGoogleTask(updated), nil
}

func (c *Client) ListEvents(ctx context.Context, window providers.TimeWindow) ([]providers.RemoteEvent, error) {
	call := c.calendar.Events.List(c.calendarID).
		ShowDeleted(false).
		SingleEvents(true).
		OrderBy("startTime").
		MaxResults(250)
	if !window.Start.IsZero() {
		call = call.TimeMin(providers.FormatTime(window.Start))
	}
	if !window.End.IsZero() {
		call = call.TimeMax(providers.FormatTime(window.End))
	}

	var out []providers.RemoteEvent
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, item := range page.Items {
			out = append(out, fromGoogleEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, wrap("list events", err)
	}
	return out, nil
}

func (c *Client) CreateEvent(ctx context.Context, event providers.RemoteEvent) (providers.RemoteEvent, error) {
	created, err := c.calendar.Events.Insert(c.calendarID, toGoogleEvent(event)).Context(ctx).Do()
	if err != nil {
		return providers.RemoteEvent{}, wrap("create event", err)
	}
	return fromGoogleEvent(created), nil
}

func (c *Client) UpdateEvent(ctx context.Context, eventID string, event providers.RemoteEvent) (providers.RemoteEvent, error) {
	body := toGoogleEvent(event)
	body.ForceSendFields = []string{"Description", "Location"}
	updated, err := c.calendar.Events.Patch(c.calendarID, eventID, body).Context(ctx).Do()
	if err != nil {
		return providers.RemoteEvent{}, wrap("update event", err)
	}
	return fromGoogleEvent(updated), nil
}

func fromGoogleTask(item *tasks.Task) providers.RemoteTask {
	status := providers.TaskStatusOpen
	if item.Status == "completed" {
		status = providers.TaskStatusCompleted
	}
	return providers.RemoteTask{
		ID:     item.Id,
		Title:  item.Title,
		Notes:  item.Notes,
		Due:    item.Due,
		Status: status,
	}
}

func toGoogleTask(task providers.RemoteTask) *tasks.Task {
	status := "needsAction"
	if task.Completed() {
		status = "completed"
	}
	return &tasks.Task{
		Title:  task.Title,
		Notes:  task.Notes,
		Due:    task.Due,
		Status: status,
	}
}

func fromGoogleEvent(item *calendar.Event) providers.RemoteEvent {
	return providers.RemoteEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       eventTime(item.Start),
		End:         eventTime(item.End),
	}
}

// eventTime prefers the timed value and falls back to the all-day date.
func eventTime(t *calendar.EventDateTime) string {
	if t == nil {
		return ""
	}
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

func toGoogleEvent(event providers.RemoteEvent) *calendar.Event {
	return &calendar.Event{
		Summary:     event.Title,
		Description: event.Description,
		Location:    event.Location,
		Start:       &calendar.EventDateTime{DateTime: event.Start, TimeZone: "UTC"},
		End:         &calendar.EventDateTime{DateTime: event.End, TimeZone: "UTC"},
	}
}

func wrap(op string, err error) error {
	remote := &apperrors.RemoteError{Provider: string(models.ProviderGoogle), Op: op, Err: err}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		remote.StatusCode = gerr.Code
	}
	return remote
}
