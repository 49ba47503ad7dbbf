package repositories_test

import (
	"context"
	"testing"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/database"
	"planner/backend/internal/models"
	"planner/backend/internal/repositories"

	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type RepositoryTestSuite struct {
	suite.Suite
	pool          *database.DatabasePool
	db            *gorm.DB
	ctx           context.Context
	tasks         *repositories.TaskRepository
	events        *repositories.EventRepository
	links         *repositories.SyncLinkRepository
	shadows       *repositories.CalendarRepository
	notifications *repositories.NotificationRepository
	tokens        *repositories.TokenRepository
	status        *repositories.SyncStatusRepository
	base          time.Time
}

func (s *RepositoryTestSuite) SetupTest() {
	pool, err := database.NewDatabasePool(database.SQLiteMemoryConfig())
	s.Require().NoError(err)
	s.Require().NoError(pool.Migrate())

	s.pool = pool
	s.db = pool.DB
	s.ctx = context.Background()
	s.tasks = repositories.NewTaskRepository(s.db)
	s.events = repositories.NewEventRepository(s.db)
	s.links = repositories.NewSyncLinkRepository(s.db)
	s.shadows = repositories.NewCalendarRepository(s.db)
	s.notifications = repositories.NewNotificationRepository(s.db)
	s.tokens = repositories.NewTokenRepository(s.db)
	s.status = repositories.NewSyncStatusRepository(s.db)
	s.base = time.Date(2030, 3, 10, 9, 0, 0, 0, time.UTC)
}

func (s *RepositoryTestSuite) TearDownTest() {
	s.NoError(s.pool.Close())
}

func (s *RepositoryTestSuite) newTask(userID uint, name string, start time.Time, d time.Duration, status models.TaskStatus) *models.Task {
	task := &models.Task{UserID: userID, Name: name, Priority: models.PriorityMedium, Status: status, StartTime: start, EndTime: start.Add(d)}
	s.Require().NoError(s.tasks.Create(s.ctx, task))
	return task
}

func (s *RepositoryTestSuite) TestTaskDefaultsAndLookup() {
	task := s.newTask(1, "Plan", s.base, time.Hour, "")

	got, err := s.tasks.GetForUser(s.ctx, 1, task.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	s.Equal(models.ProviderNone, got.LinkedTo)
	s.True(got.StartTime.Equal(s.base))

	_, err = s.tasks.GetForUser(s.ctx, 2, task.ID)
	s.True(apperrors.IsNotFound(err))
}

func (s *RepositoryTestSuite) TestTaskListOverlapping() {
	anchor := s.newTask(1, "anchor", s.base, 2*time.Hour, models.StatusPending)
	overlapping := s.newTask(1, "overlap", s.base.Add(time.Hour), 2*time.Hour, models.StatusInProgress)
	s.newTask(1, "adjacent", s.base.Add(2*time.Hour), time.Hour, models.StatusPending)
	s.newTask(1, "done", s.base, time.Hour, models.StatusCompleted)
	s.newTask(2, "other user", s.base, time.Hour, models.StatusPending)

	got, err := s.tasks.ListOverlapping(s.ctx, 1, anchor.ID, anchor.StartTime, anchor.EndTime, models.ActiveStatuses)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(overlapping.ID, got[0].ID)

	all, err := s.tasks.ListOverlapping(s.ctx, 1, anchor.ID, anchor.StartTime, anchor.EndTime, nil)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *RepositoryTestSuite) TestTaskListByUserFilters() {
	s.newTask(1, "past", s.base.Add(-48*time.Hour), time.Hour, models.StatusCompleted)
	future := s.newTask(1, "future", s.base.Add(48*time.Hour), time.Hour, models.StatusPending)
	s.Require().NoError(s.tasks.SetConflict(s.ctx, []uint{future.ID}, true))

	upcoming, err := s.tasks.ListByUser(s.ctx, 1, repositories.TaskFilter{StartsAfter: &s.base})
	s.Require().NoError(err)
	s.Len(upcoming, 1)

	completed, err := s.tasks.ListByUser(s.ctx, 1, repositories.TaskFilter{Statuses: []models.TaskStatus{models.StatusCompleted}})
	s.Require().NoError(err)
	s.Require().Len(completed, 1)
	s.Equal("past", completed[0].Name)

	conflicted, err := s.tasks.ListByUser(s.ctx, 1, repositories.TaskFilter{ConflictOnly: true})
	s.Require().NoError(err)
	s.Require().Len(conflicted, 1)
	s.Equal(future.ID, conflicted[0].ID)
}

func (s *RepositoryTestSuite) TestTaskDeleteCascades() {
	task := s.newTask(1, "cascade", s.base, time.Hour, models.StatusPending)
	s.Require().NoError(s.links.LinkTask(s.ctx, task.ID, models.ProviderOutlook, "remote-1", s.base))
	s.Require().NoError(s.notifications.ReplaceForTask(s.ctx, task.ID, []models.Notification{
		{UserID: 1, Kind: models.NotificationTask, TaskID: &task.ID, Title: "t", Priority: models.PriorityLow, IsActive: true},
	}))

	s.Require().NoError(s.tasks.Delete(s.ctx, 1, task.ID))

	var count int64
	s.db.Model(&models.Notification{}).Where("task_id = ?", task.ID).Count(&count)
	s.Zero(count)
	link, err := s.links.TaskLink(s.ctx, task.ID, models.ProviderOutlook)
	s.Require().NoError(err)
	s.Nil(link)

	s.True(apperrors.IsNotFound(s.tasks.Delete(s.ctx, 1, task.ID)))
}

func (s *RepositoryTestSuite) TestSyncLinksUpsertAndResolve() {
	task := s.newTask(1, "linked", s.base, time.Hour, models.StatusPending)

	s.Require().NoError(s.links.LinkTask(s.ctx, task.ID, models.ProviderGoogle, "g-1", s.base))
	s.Require().NoError(s.links.LinkTask(s.ctx, task.ID, models.ProviderGoogle, "g-2", s.base.Add(time.Minute)))
	s.Require().NoError(s.links.LinkTask(s.ctx, task.ID, models.ProviderOutlook, "o-1", s.base))

	link, err := s.links.TaskLink(s.ctx, task.ID, models.ProviderGoogle)
	s.Require().NoError(err)
	s.Equal("g-2", link.ExternalID)

	found, err := s.links.TaskByExternalID(s.ctx, 1, models.ProviderOutlook, "o-1")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(task.ID, found.ID)

	missing, err := s.links.TaskByExternalID(s.ctx, 2, models.ProviderOutlook, "o-1")
	s.Require().NoError(err)
	s.Nil(missing)

	links, err := s.links.TaskLinks(s.ctx, 1, models.ProviderGoogle)
	s.Require().NoError(err)
	s.Len(links, 1)

	s.Require().NoError(s.links.UnlinkTask(s.ctx, task.ID, models.ProviderGoogle))
	link, err = s.links.TaskLink(s.ctx, task.ID, models.ProviderGoogle)
	s.Require().NoError(err)
	s.Nil(link)
}

func (s *RepositoryTestSuite) TestEventLinksAndLegacyLookup() {
	title := "Review"
	provider := models.ProviderGoogle
	legacyID := "legacy-7"
	event := &models.Event{UserID: 1, Title: &title, StartTime: s.base, EndTime: s.base.Add(time.Hour),
		ExternalID: &legacyID, ExternalProvider: &provider}
	s.Require().NoError(s.events.Create(s.ctx, event))

	legacy, err := s.events.FindByLegacyLink(s.ctx, 1, models.ProviderGoogle, "legacy-7")
	s.Require().NoError(err)
	s.Require().NotNil(legacy)
	s.Equal(event.ID, legacy.ID)

	s.Require().NoError(s.links.LinkEvent(s.ctx, event.ID, models.ProviderOutlook, "o-evt", s.base))
	found, err := s.links.EventByExternalID(s.ctx, 1, models.ProviderOutlook, "o-evt")
	s.Require().NoError(err)
	s.Require().NotNil(found)
	s.Equal(event.ID, found.ID)

	s.Require().NoError(s.events.Delete(s.ctx, 1, event.ID))
	links, err := s.links.EventLinks(s.ctx, 1, models.ProviderOutlook)
	s.Require().NoError(err)
	s.Empty(links)
}

func (s *RepositoryTestSuite) TestShadowUniqueness() {
	due := s.base
	shadow := &models.CalendarTask{UserID: 1, Title: "remote", DueDate: &due, ExternalID: "r-1", ExternalProvider: models.ProviderGoogle}
	s.Require().NoError(s.shadows.SaveTask(s.ctx, shadow))

	dup := &models.CalendarTask{UserID: 1, Title: "dup", ExternalID: "r-1", ExternalProvider: models.ProviderGoogle}
	s.Error(s.shadows.SaveTask(s.ctx, dup))

	other := &models.CalendarTask{UserID: 1, Title: "other provider", ExternalID: "r-1", ExternalProvider: models.ProviderOutlook}
	s.NoError(s.shadows.SaveTask(s.ctx, other))

	found, err := s.shadows.FindTask(s.ctx, 1, models.ProviderGoogle, "r-1")
	s.Require().NoError(err)
	s.Equal("remote", found.Title)
}

func (s *RepositoryTestSuite) TestNotificationsListPendingAndMarkAll() {
	task := s.newTask(1, "notify", s.base, time.Hour, models.StatusPending)
	s.Require().NoError(s.notifications.ReplaceForTask(s.ctx, task.ID, []models.Notification{
		{UserID: 1, Kind: models.NotificationTask, TaskID: &task.ID, Title: "a", Priority: models.PriorityHigh, IsActive: true, ScheduledFor: s.base},
		{UserID: 1, Kind: models.NotificationTask, TaskID: &task.ID, Title: "b", Priority: models.PriorityHigh, IsActive: true, ScheduledFor: s.base.Add(time.Minute)},
	}))

	pending, err := s.notifications.ListPending(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Require().NotNil(pending[0].Task)
	s.Equal("notify", pending[0].Task.Name)

	n, err := s.notifications.MarkAllRead(s.ctx, 1)
	s.Require().NoError(err)
	s.EqualValues(2, n)

	pending, err = s.notifications.ListPending(s.ctx, 1)
	s.Require().NoError(err)
	s.Empty(pending)
}

func (s *RepositoryTestSuite) TestTokensAndSyncStatus() {
	_, err := s.tokens.Get(s.ctx, 1, models.ProviderGoogle)
	s.ErrorIs(err, apperrors.ErrNotConnected)

	s.Require().NoError(s.tokens.Upsert(s.ctx, &models.ProviderToken{UserID: 1, Provider: models.ProviderGoogle, AccessToken: "a1"}))
	s.Require().NoError(s.tokens.Upsert(s.ctx, &models.ProviderToken{UserID: 1, Provider: models.ProviderGoogle, AccessToken: "a2"}))
	token, err := s.tokens.Get(s.ctx, 1, models.ProviderGoogle)
	s.Require().NoError(err)
	s.Equal("a2", token.AccessToken)

	deleted, err := s.tokens.Delete(s.ctx, 1, models.ProviderGoogle)
	s.Require().NoError(err)
	s.True(deleted)

	s.Require().NoError(s.status.Set(s.ctx, 1, models.ProviderOutlook, models.SyncSyncing, "", nil))
	now := s.base
	s.Require().NoError(s.status.Set(s.ctx, 1, models.ProviderOutlook, models.SyncSynced, "", &now))
	rows, err := s.status.List(s.ctx, 1)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(models.SyncSynced, rows[0].Status)
	s.Require().NotNil(rows[0].LastSynced)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
