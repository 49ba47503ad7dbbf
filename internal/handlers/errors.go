package handlers

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/assistant"
	"planner/backend/internal/cache"
	"planner/backend/internal/middleware"
	"planner/backend/internal/syncer"

	"github.com/gin-gonic/gin"
)

// respondError renders err with the status that matches its kind.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *apperrors.ValidationError
	var remote *apperrors.RemoteError
	var limited *assistant.RateLimitError

	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation_failed", "fields": verr.Fields})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})
	case errors.Is(err, apperrors.ErrNotConnected):
		c.JSON(http.StatusBadRequest, gin.H{"error": "not_connected", "message": err.Error()})
	case errors.Is(err, syncer.ErrNoTaskList):
		c.JSON(http.StatusBadRequest, gin.H{"error": "no_task_list", "message": err.Error()})
	case errors.As(err, &limited):
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(limited.RetryAfter.Seconds()))))
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": err.Error()})
	case errors.Is(err, apperrors.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited", "message": err.Error()})
	case errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": err.Error()})
	case errors.Is(err, assistant.ErrUnavailable), errors.Is(err, cache.ErrCacheDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "unavailable", "message": err.Error()})
	case errors.As(err, &remote):
		c.JSON(http.StatusBadGateway, gin.H{"error": "remote_error", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func currentUserID(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return 0, false
	}
	return id, true
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id", "message": name + " must be a positive integer"})
		return 0, false
	}
	return uint(id), true
}

func bindJSON(c *gin.Context, dest any) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return false
	}
	return true
}
