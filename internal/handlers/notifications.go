package handlers

import (
	"context"
	"net/http"

	"planner/backend/internal/models"
	"planner/backend/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	notifications services.NotificationService
}

func NewNotificationHandler(notifications services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.PATCH("", h.MarkAllRead)
	rg.POST("/:id/read", h.MarkRead)
	rg.POST("/:id/dismiss", h.Dismiss)
}

// List returns the user's pending reminders, banded against the current time.
func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	views, err := h.notifications.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	h.apply(c, h.notifications.MarkRead)
}

func (h *NotificationHandler) Dismiss(c *gin.Context) {
	h.apply(c, h.notifications.Dismiss)
}

func (h *NotificationHandler) apply(c *gin.Context, fn func(ctx context.Context, userID, id uint) (*models.Notification, error)) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	notification, err := fn(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, notification)
}
