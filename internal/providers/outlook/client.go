// Package outlook adapts Microsoft Graph (Outlook calendar and To Do) to
// providers.Provider.
package outlook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/config"
	"planner/backend/internal/models"
	"planner/backend/internal/providers"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

type Client struct {
	http    *http.Client
	baseURL string
}

var _ providers.Provider = (*Client)(nil)

func New(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	return &Client{http: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func OAuthConfig(cfg config.OutlookConfig) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{"offline_access", "Calendars.ReadWrite", "Tasks.ReadWrite"},
		Endpoint:     microsoft.AzureADEndpoint(cfg.TenantID),
	}
}

func Builder(cfg config.OutlookConfig) providers.Builder {
	oauthCfg := OAuthConfig(cfg)
	return func(ctx context.Context, token *oauth2.Token) (providers.Provider, error) {
		return New(oauthCfg.Client(ctx, token), cfg.GraphURL), nil
	}
}

func (c *Client) Name() models.Provider { return models.ProviderOutlook }

type dateTimeTimeZone struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type itemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type todoList struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type todoTask struct {
	ID          string            `json:"id,omitempty"`
	Title       string            `json:"title"`
	Status      string            `json:"status,omitempty"`
	Importance  string            `json:"importance,omitempty"`
	Body        *itemBody         `json:"body,omitempty"`
	DueDateTime *dateTimeTimeZone `json:"dueDateTime,omitempty"`
}

type location struct {
	DisplayName string `json:"displayName"`
}

type graphEvent struct {
	ID          string            `json:"id,omitempty"`
	Subject     string            `json:"subject"`
	Body        *itemBody         `json:"body,omitempty"`
	BodyPreview string            `json:"bodyPreview,omitempty"`
	Start       *dateTimeTimeZone `json:"start,omitempty"`
	End         *dateTimeTimeZone `json:"end,omitempty"`
	Location    *location         `json:"location,omitempty"`
}

type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

type graphError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) ListTaskLists(ctx context.Context) ([]providers.TaskList, error) {
	lists, err := listAll[todoList](ctx, c, "list task lists", c.baseURL+"/me/todo/lists")
	if err != nil {
		return nil, err
	}
	out := make([]providers.TaskList, 0, len(lists))
	for _, l := range lists {
		out = append(out, providers.TaskList{ID: l.ID, Title: l.DisplayName})
	}
	return out, nil
}

func (c *Client) ListTasks(ctx context.Context, listID string) ([]providers.RemoteTask, error) {
	endpoint := fmt.Sprintf("%s/me/todo/lists/%s/tasks", c.baseURL, url.PathEscape(listID))
	items, err := listAll[todoTask](ctx, c, "list tasks", endpoint)
	if err != nil {
		return nil, err
	}
	out := make([]providers.RemoteTask, 0, len(items))
	for _, item := range items {
		out = append(out, fromTodoTask(item))
	}
	return out, nil
}

func (c *Client) CreateTask(ctx context.Context, listID string, task providers.RemoteTask) (providers.RemoteTask, error) {
	endpoint := fmt.Sprintf("%s/me/todo/lists/%s/tasks", c.baseURL, url.PathEscape(listID))
	var created todoTask
	if err := c.do(ctx, "create task", http.MethodPost, endpoint, toTodoTask(task), &created); err != nil {
		return providers.RemoteTask{}, err
	}
	return fromTodoTask(created), nil
}

func (c *Client) UpdateTask(ctx context.Context, listID, taskID string, task providers.RemoteTask) (providers.RemoteTask, error) {
	endpoint := fmt.Sprintf("%s/me/todo/lists/%s/tasks/%s", c.baseURL, url.PathEscape(listID), url.PathEscape(taskID))
	var updated todoTask
	if err := c.do(ctx, "update task", http.MethodPatch, endpoint, toTodoTask(task), &updated); err != nil {
		return providers.RemoteTask{}, err
	}
	return fromTodoTask(updated), nil
}

// ListEvents reads the calendar view, which expands recurring series.
func (c *Client) ListEvents(ctx context.Context, window providers.TimeWindow) ([]providers.RemoteEvent, error) {
	q := url.Values{}
	q.Set("startDateTime", providers.FormatTime(window.Start))
	q.Set("endDateTime", providers.FormatTime(window.End))
	q.Set("$top", "100")
	items, err := listAll[graphEvent](ctx, c, "list events", c.baseURL+"/me/calendarView?"+q.Encode())
	if err != nil {
		return nil, err
	}
	out := make([]providers.RemoteEvent, 0, len(items))
	for _, item := range items {
		out = append(out, fromGraphEvent(item))
	}
	return out, nil
}

func (c *Client) CreateEvent(ctx context.Context, event providers.RemoteEvent) (providers.RemoteEvent, error) {
	var created graphEvent
	if err := c.do(ctx, "create event", http.MethodPost, c.baseURL+"/me/events", toGraphEvent(event), &created); err != nil {
		return providers.RemoteEvent{}, err
	}
	return fromGraphEvent(created), nil
}

func (c *Client) UpdateEvent(ctx context.Context, eventID string, event providers.RemoteEvent) (providers.RemoteEvent, error) {
	endpoint := fmt.Sprintf("%s/me/events/%s", c.baseURL, url.PathEscape(eventID))
	var updated graphEvent
	if err := c.do(ctx, "update event", http.MethodPatch, endpoint, toGraphEvent(event), &updated); err != nil {
		return providers.RemoteEvent{}, err
	}
	return fromGraphEvent(updated), nil
}

func listAll[T any](ctx context.Context, c *Client, op, endpoint string) ([]T, error) {
	var all []T
	for endpoint != "" {
		var p page[T]
		if err := c.do(ctx, op, http.MethodGet, endpoint, nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Value...)
		endpoint = p.NextLink
	}
	return all, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &apperrors.RemoteError{Provider: string(models.ProviderOutlook), Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var gerr graphError
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &gerr) == nil && gerr.Error.Message != "" {
			msg = gerr.Error.Code + ": " + gerr.Error.Message
		}
		return &apperrors.RemoteError{
			Provider:   string(models.ProviderOutlook),
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", msg),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &apperrors.RemoteError{Provider: string(models.ProviderOutlook), Op: op, StatusCode: resp.StatusCode,
			Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func fromTodoTask(item todoTask) providers.RemoteTask {
	task := providers.RemoteTask{
		ID:       item.ID,
		Title:    item.Title,
		Status:   providers.TaskStatusOpen,
		Priority: models.PriorityMedium,
	}
	if item.Status == "completed" {
		task.Status = providers.TaskStatusCompleted
	}
	if item.Importance == "high" {
		task.Priority = models.PriorityHigh
	} else if item.Importance == "low" {
		task.Priority = models.PriorityLow
	}
	if item.Body != nil {
		task.Notes = item.Body.Content
	}
	if item.DueDateTime != nil {
		task.Due = graphTime(*item.DueDateTime)
	}
	return task
}

func toTodoTask(task providers.RemoteTask) todoTask {
	out := todoTask{
		Title:      task.Title,
		Status:     "notStarted",
		Importance: "normal",
		Body:       &itemBody{ContentType: "text", Content: task.Notes},
	}
	if task.Completed() {
		out.Status = "completed"
	}
	switch task.Priority {
	case models.PriorityHigh:
		out.Importance = "high"
	case models.PriorityLow:
		out.Importance = "low"
	}
	if task.Due != "" {
		out.DueDateTime = &dateTimeTimeZone{DateTime: task.Due, TimeZone: "UTC"}
	}
	return out
}

func fromGraphEvent(item graphEvent) providers.RemoteEvent {
	event := providers.RemoteEvent{ID: item.ID, Title: item.Subject, Description: item.BodyPreview}
	if item.Body != nil && item.Body.ContentType == "text" && item.Body.Content != "" {
		event.Description = item.Body.Content
	}
	if item.Start != nil {
		event.Start = graphTime(*item.Start)
	}
	if item.End != nil {
		event.End = graphTime(*item.End)
	}
	if item.Location != nil {
		event.Location = item.Location.DisplayName
	}
	return event
}

func toGraphEvent(event providers.RemoteEvent) graphEvent {
	return graphEvent{
		Subject:  event.Title,
		Body:     &itemBody{ContentType: "text", Content: event.Description},
		Start:    &dateTimeTimeZone{DateTime: event.Start, TimeZone: "UTC"},
		End:      &dateTimeTimeZone{DateTime: event.End, TimeZone: "UTC"},
		Location: &location{DisplayName: event.Location},
	}
}

// graphTime attaches the zone Graph reports separately. Zones Go cannot load
// (Windows names) are passed through and read as UTC.
func graphTime(v dateTimeTimeZone) string {
	if v.DateTime == "" || v.TimeZone == "" || strings.EqualFold(v.TimeZone, "UTC") {
		return v.DateTime
	}
	loc, err := time.LoadLocation(v.TimeZone)
	if err != nil {
		return v.DateTime
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", v.DateTime, loc)
	if err != nil {
		return v.DateTime
	}
	return t.Format(time.RFC3339)
}
