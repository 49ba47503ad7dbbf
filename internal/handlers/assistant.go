package handlers

import (
	"context"
	"net/http"

	"planner/backend/internal/models"

	"github.com/gin-gonic/gin"
)

// Assistant answers schedule questions and keeps the history.
type Assistant interface {
	Ask(ctx context.Context, userID uint, prompt string) (*models.AssistantInteraction, error)
	List(ctx context.Context, userID uint) ([]models.AssistantInteraction, error)
	Get(ctx context.Context, userID, id uint) (*models.AssistantInteraction, error)
	Delete(ctx context.Context, userID, id uint) error
}

type AssistantHandler struct {
	assistant Assistant
}

func NewAssistantHandler(assistant Assistant) *AssistantHandler {
	return &AssistantHandler{assistant: assistant}
}

func (h *AssistantHandler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Ask)
	rg.GET("/:id", h.Get)
	rg.DELETE("/:id", h.Delete)
}

type AskRequest struct {
	RequestData string `json:"request_data"`
}

func (h *AssistantHandler) Ask(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var req AskRequest
	if !bindJSON(c, &req) {
		return
	}
	interaction, err := h.assistant.Ask(c.Request.Context(), userID, req.RequestData)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, interaction)
}

func (h *AssistantHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	interactions, err := h.assistant.List(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, interactions)
}

func (h *AssistantHandler) Get(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	interaction, err := h.assistant.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, interaction)
}

func (h *AssistantHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.assistant.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
