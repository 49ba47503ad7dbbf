package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/models"
	"planner/backend/internal/providers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGoogle struct {
	created map[string]any
	patched map[string]any
	query   map[string]string
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/tasks/v1/users/@me/lists":
		writeJSON(w, map[string]any{"items": []map[string]any{{"id": "L1", "title": "My Tasks"}, {"id": "L2", "title": "Work"}}})
	case r.Method == http.MethodGet && r.URL.Path == "/tasks/v1/lists/L1/tasks":
		writeJSON(w, map[string]any{"items": []map[string]any{
			{"id": "t1", "title": "Buy milk", "notes": "2%", "due": "2030-03-10T00:00:00.000Z", "status": "needsAction"},
			{"id": "t2", "title": "Done thing", "status": "completed"},
			{"id": "t3", "title": "Gone", "deleted": true},
		}})
	case r.Method == http.MethodPost && r.URL.Path == "/tasks/v1/lists/L1/tasks":
		_ = json.NewDecoder(r.Body).Decode(&f.created)
		writeJSON(w, map[string]any{"id": "new-task", "title": f.created["title"], "status": f.created["status"]})
	case r.Method == http.MethodPatch && r.URL.Path == "/tasks/v1/lists/L1/tasks/missing":
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 404, "message": "Not Found"}})
	case r.Method == http.MethodGet && r.URL.Path == "/calendars/primary/events":
		f.query = map[string]string{
			"timeMin":      r.URL.Query().Get("timeMin"),
			"singleEvents": r.URL.Query().Get("singleEvents"),
		}
		writeJSON(w, map[string]any{"items": []map[string]any{
			{"id": "e1", "summary": "Standup", "location": "Room 1",
				"start": map[string]any{"dateTime": "2030-03-10T09:00:00Z"},
				"end":   map[string]any{"dateTime": "2030-03-10T09:15:00Z"}},
			{"id": "e2", "summary": "Holiday",
				"start": map[string]any{"date": "2030-03-11"},
				"end":   map[string]any{"date": "2030-03-12"}},
		}})
	case r.Method == http.MethodPatch && r.URL.Path == "/calendars/primary/events/e1":
		_ = json.NewDecoder(r.Body).Decode(&f.patched)
		writeJSON(w, map[string]any{"id": "e1", "summary": f.patched["summary"]})
	default:
		w.WriteHeader(http.StatusInternalServerError)
		writeJSON(w, map[string]any{"error": map[string]any{"code": 500, "message": "unexpected " + r.Method + " " + r.URL.Path}})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T) (*Client, *fakeGoogle) {
	t.Helper()
	fake := &fakeGoogle{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := New(context.Background(), srv.Client(), Options{Endpoint: srv.URL})
	require.NoError(t, err)
	return client, fake
}

func TestClient_Name(t *testing.T) {
	client, _ := newTestClient(t)
	assert.Equal(t, models.ProviderGoogle, client.Name())
}

func TestClient_ListTaskListsAndTasks(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	lists, err := client.ListTaskLists(ctx)
	require.NoError(t, err)
	require.Len(t, lists, 2)
	assert.Equal(t, "L1", lists[0].ID)

	items, err := client.ListTasks(ctx, "L1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Buy milk", items[0].Title)
	assert.Equal(t, "2030-03-10T00:00:00.000Z", items[0].Due)
	assert.False(t, items[0].Completed())
	assert.True(t, items[1].Completed())
}

func TestClient_CreateTaskSendsGoogleStatus(t *testing.T) {
	client, fake := newTestClient(t)

	created, err := client.CreateTask(context.Background(), "L1", providers.RemoteTask{
		Title:  "Ship it",
		Due:    "2030-03-10T15:00:00Z",
		Status: providers.TaskStatusCompleted,
	})

	require.NoError(t, err)
	assert.Equal(t, "new-task", created.ID)
	assert.Equal(t, "completed", fake.created["status"])
	assert.Equal(t, "2030-03-10T15:00:00Z", fake.created["due"])
}

func TestClient_UpdateMissingTaskIsRemoteNotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.UpdateTask(context.Background(), "L1", "missing", providers.RemoteTask{Title: "x"})

	require.Error(t, err)
	assert.True(t, apperrors.IsRemoteNotFound(err))
	var remote *apperrors.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, 404, remote.StatusCode)
	assert.Equal(t, "google", remote.Provider)
}

func TestClient_ListEventsHandlesAllDay(t *testing.T) {
	client, fake := newTestClient(t)
	start := time.Date(2029, 3, 10, 0, 0, 0, 0, time.UTC)

	events, err := client.ListEvents(context.Background(), providers.TimeWindow{Start: start, End: start.AddDate(2, 0, 0)})

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2030-03-10T09:00:00Z", events[0].Start)
	assert.Equal(t, "Room 1", events[0].Location)
	assert.Equal(t, "2030-03-11", events[1].Start)
	assert.Equal(t, "2029-03-10T00:00:00Z", fake.query["timeMin"])
	assert.Equal(t, "true", fake.query["singleEvents"])
}

func TestClient_UpdateEvent(t *testing.T) {
	client, fake := newTestClient(t)

	updated, err := client.UpdateEvent(context.Background(), "e1", providers.RemoteEvent{
		Title: "Renamed",
		Start: "2030-03-10T10:00:00Z",
		End:   "2030-03-10T11:00:00Z",
	})

	require.NoError(t, err)
	assert.Equal(t, "e1", updated.ID)
	assert.Equal(t, "Renamed", fake.patched["summary"])
	start, ok := fake.patched["start"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "UTC", start["timeZone"])
}
