package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/database"
	"planner/backend/internal/handlers"
	"planner/backend/internal/models"
	"planner/backend/internal/providers"
	"planner/backend/internal/repositories"
	"planner/backend/internal/syncer"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/suite"
)

type fakeConnections struct {
	tokens map[models.Provider]*models.ProviderToken
}

func (f *fakeConnections) Check(ctx context.Context, userID uint, provider models.Provider) (providers.Connection, error) {
	_, ok := f.tokens[provider]
	return providers.Connection{Provider: provider, Connected: ok}, nil
}

func (f *fakeConnections) Store(ctx context.Context, token *models.ProviderToken) error {
	f.tokens[token.Provider] = token
	return nil
}

func (f *fakeConnections) Disconnect(ctx context.Context, userID uint, provider models.Provider) (bool, error) {
	_, ok := f.tokens[provider]
	delete(f.tokens, provider)
	return ok, nil
}

type fakeRunner struct {
	calls   []string
	pullErr error
}

func (f *fakeRunner) pass(name string, provider models.Provider, direction syncer.Direction, kind syncer.Kind) *syncer.Result {
	f.calls = append(f.calls, name+":"+string(provider))
	return &syncer.Result{Provider: provider, Direction: direction, Kind: kind, Items: 1, Succeeded: 1, Errors: []string{}}
}

func (f *fakeRunner) Sync(ctx context.Context, userID uint, provider models.Provider) (*syncer.Report, error) {
	f.calls = append(f.calls, "sync:"+string(provider))
	return &syncer.Report{Provider: provider, Status: models.SyncSynced}, nil
}

func (f *fakeRunner) PushTasks(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error) {
	return f.pass("push-tasks", provider, syncer.DirectionPush, syncer.KindTasks), nil
}

func (f *fakeRunner) PullTasks(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error) {
	if f.pullErr != nil {
		return nil, f.pullErr
	}
	return f.pass("pull-tasks", provider, syncer.DirectionPull, syncer.KindTasks), nil
}

func (f *fakeRunner) PushEvents(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error) {
	return f.pass("push-events", provider, syncer.DirectionPush, syncer.KindEvents), nil
}

func (f *fakeRunner) PullEvents(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error) {
	return f.pass("pull-events", provider, syncer.DirectionPull, syncer.KindEvents), nil
}

type CalendarSyncHandlerTestSuite struct {
	suite.Suite
	pool        *database.DatabasePool
	status      *repositories.SyncStatusRepository
	shadows     *repositories.CalendarRepository
	connections *fakeConnections
	runner      *fakeRunner
	router      *gin.Engine
}

func (s *CalendarSyncHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)
	pool, err := database.NewDatabasePool(database.SQLiteMemoryConfig())
	s.Require().NoError(err)
	s.Require().NoError(pool.Migrate())
	s.pool = pool
	s.status = repositories.NewSyncStatusRepository(pool.DB)
	s.shadows = repositories.NewCalendarRepository(pool.DB)
	s.connections = &fakeConnections{tokens: map[models.Provider]*models.ProviderToken{}}
	s.runner = &fakeRunner{}

	s.router = gin.New()
	s.router.Use(withUser(1))
	handlers.NewCalendarSyncHandler(s.connections, s.runner, s.status, s.shadows).Register(s.router.Group("/api/calendarsync"))
}

func (s *CalendarSyncHandlerTestSuite) TearDownTest() {
	s.NoError(s.pool.Close())
}

func (s *CalendarSyncHandlerTestSuite) TestUnknownProvider() {
	w := do(s.router, "POST", "/api/calendarsync/icloud/sync", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Empty(s.runner.calls)
}

func (s *CalendarSyncHandlerTestSuite) TestStoreCheckAndDisconnect() {
	w := do(s.router, "GET", "/api/calendarsync/google/connection", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"provider":"google","connected":false,"expired":false}`, w.Body.String())

	w = do(s.router, "PUT", "/api/calendarsync/google/token", map[string]any{})
	s.Equal(http.StatusBadRequest, w.Code, "access_token is required")

	w = do(s.router, "PUT", "/api/calendarsync/Google/token", map[string]any{
		"access_token": "ya29", "refresh_token": "1//r", "expiry": time.Now().Add(time.Hour),
	})
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("ya29", s.connections.tokens[models.ProviderGoogle].AccessToken)
	s.Equal(uint(1), s.connections.tokens[models.ProviderGoogle].UserID)

	synced := time.Date(2030, 3, 8, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.status.Set(context.Background(), 1, models.ProviderGoogle, models.SyncSynced, "", &synced))

	w = do(s.router, "DELETE", "/api/calendarsync/google/token", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"provider":"google","disconnected":true}`, w.Body.String())

	rows, err := s.status.List(context.Background(), 1)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(models.SyncNotSynced, rows[0].Status)
}

func (s *CalendarSyncHandlerTestSuite) TestPassesAndSync() {
	for _, path := range []string{"tasks/push", "tasks/pull", "events/push", "events/pull", "sync"} {
		w := do(s.router, "POST", "/api/calendarsync/outlook/"+path, nil)
		s.Equal(http.StatusOK, w.Code, path)
	}
	s.Equal([]string{
		"push-tasks:outlook", "pull-tasks:outlook", "push-events:outlook", "pull-events:outlook", "sync:outlook",
	}, s.runner.calls)
}

func (s *CalendarSyncHandlerTestSuite) TestPullErrorsMapToStatus() {
	tests := []struct {
		err  error
		code int
	}{
		{apperrors.ErrNotConnected, http.StatusBadRequest},
		{&apperrors.RemoteError{Provider: "google", Op: "list tasks", StatusCode: 500, Err: fmt.Errorf("boom")}, http.StatusBadGateway},
		{syncer.ErrNoTaskList, http.StatusBadRequest},
	}
	for _, tt := range tests {
		s.runner.pullErr = tt.err
		w := do(s.router, "POST", "/api/calendarsync/google/tasks/pull", nil)
		s.Equal(tt.code, w.Code, tt.err.Error())
	}
}

func (s *CalendarSyncHandlerTestSuite) TestItemsAndStatusListing() {
	ctx := context.Background()
	start := time.Date(2030, 3, 8, 9, 0, 0, 0, time.UTC)
	s.Require().NoError(s.shadows.SaveEvent(ctx, &models.CalendarEvent{
		UserID: 1, Title: "Remote", ExternalID: "g-1", ExternalProvider: models.ProviderGoogle,
		StartTime: start, EndTime: start.Add(time.Hour),
	}))
	s.Require().NoError(s.shadows.SaveEvent(ctx, &models.CalendarEvent{
		UserID: 1, Title: "Other", ExternalID: "o-1", ExternalProvider: models.ProviderOutlook,
		StartTime: start, EndTime: start.Add(time.Hour),
	}))
	s.Require().NoError(s.status.Set(ctx, 1, models.ProviderGoogle, models.SyncError, "remote down", nil))

	w := do(s.router, "GET", "/api/calendarsync/google/items", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var items handlers.ItemsResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &items))
	s.Require().Len(items.Events, 1)
	s.Equal("g-1", items.Events[0].ExternalID)
	s.Empty(items.Tasks)

	w = do(s.router, "GET", "/api/calendarsync", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var rows []models.CalendarSync
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &rows))
	s.Require().Len(rows, 1)
	s.Equal("remote down", rows[0].SyncError)
}

func TestCalendarSyncHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(CalendarSyncHandlerTestSuite))
}
