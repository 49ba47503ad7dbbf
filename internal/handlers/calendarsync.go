package handlers

import (
	"context"
	"net/http"
	"time"

	"planner/backend/internal/models"
	"planner/backend/internal/providers"
	"planner/backend/internal/repositories"
	"planner/backend/internal/syncer"
	"planner/backend/internal/worker"

	"github.com/gin-gonic/gin"
)

// Connections manages the provider tokens a user has handed us.
type Connections interface {
	Check(ctx context.Context, userID uint, provider models.Provider) (providers.Connection, error)
	Store(ctx context.Context, token *models.ProviderToken) error
	Disconnect(ctx context.Context, userID uint, provider models.Provider) (bool, error)
}

// SyncRunner runs reconciliation passes against one provider.
type SyncRunner interface {
	Sync(ctx context.Context, userID uint, provider models.Provider) (*syncer.Report, error)
	PushTasks(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error)
	PullTasks(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error)
	PushEvents(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error)
	PullEvents(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error)
}

// SyncQueue schedules a full sync to run in the background.
type SyncQueue interface {
	EnqueueSync(ctx context.Context, userID uint, provider models.Provider) (*worker.Job, error)
}

type CalendarSyncHandler struct {
	connections Connections
	runner      SyncRunner
	queue       SyncQueue
	status      *repositories.SyncStatusRepository
	shadows     *repositories.CalendarRepository
}

func NewCalendarSyncHandler(connections Connections, runner SyncRunner, status *repositories.SyncStatusRepository, shadows *repositories.CalendarRepository) *CalendarSyncHandler {
	return &CalendarSyncHandler{connections: connections, runner: runner, status: status, shadows: shadows}
}

// WithQueue enables ?async=true on the sync endpoint.
func (h *CalendarSyncHandler) WithQueue(queue SyncQueue) *CalendarSyncHandler {
	h.queue = queue
	return h
}

func (h *CalendarSyncHandler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.ListStatus)
	rg.GET("/:provider/connection", h.CheckConnection)
	rg.PUT("/:provider/token", h.StoreToken)
	rg.DELETE("/:provider/token", h.Disconnect)
	rg.GET("/:provider/items", h.ListItems)
	rg.POST("/:provider/tasks/push", h.run(func(r SyncRunner) passFunc { return r.PushTasks }))
	rg.POST("/:provider/tasks/pull", h.run(func(r SyncRunner) passFunc { return r.PullTasks }))
	rg.POST("/:provider/events/push", h.run(func(r SyncRunner) passFunc { return r.PushEvents }))
	rg.POST("/:provider/events/pull", h.run(func(r SyncRunner) passFunc { return r.PullEvents }))
	rg.POST("/:provider/sync", h.Sync)
}

type passFunc func(ctx context.Context, userID uint, provider models.Provider) (*syncer.Result, error)

type TokenRequest struct {
	AccessToken  string    `json:"access_token" binding:"required"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
}

type ItemsResponse struct {
	Provider models.Provider        `json:"provider"`
	Tasks    []models.CalendarTask  `json:"tasks"`
	Events   []models.CalendarEvent `json:"events"`
}

func (h *CalendarSyncHandler) provider(c *gin.Context) (models.Provider, bool) {
	provider, ok := models.ParseProvider(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_provider", "message": "provider must be google or outlook"})
		return "", false
	}
	return provider, true
}

func (h *CalendarSyncHandler) ListStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	rows, err := h.status.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *CalendarSyncHandler) CheckConnection(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	conn, err := h.connections.Check(c.Request.Context(), userID, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (h *CalendarSyncHandler) StoreToken(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	token := &models.ProviderToken{
		UserID:       userID,
		Provider:     provider,
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		Expiry:       req.Expiry,
	}
	if err := h.connections.Store(c.Request.Context(), token); err != nil {
		respondError(c, err)
		return
	}
	conn, err := h.connections.Check(c.Request.Context(), userID, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

// Disconnect forgets the token and resets the provider's sync status.
func (h *CalendarSyncHandler) Disconnect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	removed, err := h.connections.Disconnect(ctx, userID, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	if removed {
		if err := h.status.Set(ctx, userID, provider, models.SyncNotSynced, "", nil); err != nil {
			respondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"provider": provider, "disconnected": removed})
}

func (h *CalendarSyncHandler) ListItems(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	tasks, err := h.shadows.ListTasks(ctx, userID, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	events, err := h.shadows.ListEvents(ctx, userID, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ItemsResponse{Provider: provider, Tasks: tasks, Events: events})
}

func (h *CalendarSyncHandler) run(pick func(SyncRunner) passFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUserID(c)
		if !ok {
			return
		}
		provider, ok := h.provider(c)
		if !ok {
			return
		}
		res, err := pick(h.runner)(c.Request.Context(), userID, provider)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func (h *CalendarSyncHandler) Sync(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	provider, ok := h.provider(c)
	if !ok {
		return
	}
	if c.Query("async") == "true" && h.queue != nil {
		job, err := h.queue.EnqueueSync(c.Request.Context(), userID, provider)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "provider": provider})
		return
	}

	report, err := h.runner.Sync(c.Request.Context(), userID, provider)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
