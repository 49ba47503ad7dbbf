package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/assistant"
	"planner/backend/internal/cache"
	"planner/backend/internal/handlers"
	"planner/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type stubAssistant struct {
	err     error
	prompts []string
}

func (s *stubAssistant) Ask(ctx context.Context, userID uint, prompt string) (*models.AssistantInteraction, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return nil, s.err
	}
	return &models.AssistantInteraction{ID: 1, UserID: userID, Request: prompt, Response: "All clear."}, nil
}

func (s *stubAssistant) List(ctx context.Context, userID uint) ([]models.AssistantInteraction, error) {
	return []models.AssistantInteraction{{ID: 1, UserID: userID}}, nil
}

func (s *stubAssistant) Get(ctx context.Context, userID, id uint) (*models.AssistantInteraction, error) {
	if id != 1 {
		return nil, apperrors.NotFound("assistant interaction", id)
	}
	return &models.AssistantInteraction{ID: id, UserID: userID}, nil
}

func (s *stubAssistant) Delete(ctx context.Context, userID, id uint) error {
	_, err := s.Get(ctx, userID, id)
	return err
}

func setupAssistantRouter(stub *stubAssistant) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withUser(4))
	handlers.NewAssistantHandler(stub).Register(router.Group("/api/assistant"))
	return router
}

func TestAssistantAsk(t *testing.T) {
	stub := &stubAssistant{}
	router := setupAssistantRouter(stub)

	w := do(router, "POST", "/api/assistant", map[string]string{"request_data": "what clashes today?"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"what clashes today?"}, stub.prompts)
	assert.Contains(t, w.Body.String(), "All clear.")
}

func TestAssistantErrorStatuses(t *testing.T) {
	empty := apperrors.NewValidationError()
	empty.Add("request_data", "request data is required")

	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", empty, http.StatusBadRequest},
		{"rate limited", &assistant.RateLimitError{RetryAfter: 42 * time.Second}, http.StatusTooManyRequests},
		{"breaker open", assistant.ErrUnavailable, http.StatusServiceUnavailable},
		{"redis down", fmt.Errorf("%w: dial tcp", cache.ErrCacheDown), http.StatusServiceUnavailable},
		{"model failed", &apperrors.RemoteError{Provider: "assistant", Op: "create message", StatusCode: 500, Err: errors.New("overloaded")}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupAssistantRouter(&stubAssistant{err: tt.err})
			w := do(router, "POST", "/api/assistant", map[string]string{"request_data": "hi"})
			assert.Equal(t, tt.code, w.Code)
			if tt.code == http.StatusTooManyRequests {
				assert.Equal(t, "42", w.Header().Get("Retry-After"))
			}
		})
	}
}

func TestAssistantHistory(t *testing.T) {
	router := setupAssistantRouter(&stubAssistant{})

	assert.Equal(t, http.StatusOK, do(router, "GET", "/api/assistant", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, "GET", "/api/assistant/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, "GET", "/api/assistant/2", nil).Code)
	assert.Equal(t, http.StatusNoContent, do(router, "DELETE", "/api/assistant/1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(router, "DELETE", "/api/assistant/9", nil).Code)
}

type stubCalendar struct{ err error }

func (s stubCalendar) Write(ctx context.Context, userID uint, w io.Writer) error {
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	return err
}

func TestExportCalendar(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withUser(4))
	handlers.NewExportHandler(stubCalendar{}).Register(router.Group("/api/export"))

	w := do(router, "GET", "/api/export/calendar.ics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "BEGIN:VCALENDAR")

	router = gin.New()
	router.Use(withUser(4))
	handlers.NewExportHandler(stubCalendar{err: errors.New("db gone")}).Register(router.Group("/api/export"))
	w = do(router, "GET", "/api/export/calendar.ics", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"db gone"}`, w.Body.String())
}
