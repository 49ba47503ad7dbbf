package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// CalendarWriter encodes a user's schedule as iCalendar.
type CalendarWriter interface {
	Write(ctx context.Context, userID uint, w io.Writer) error
}

type ExportHandler struct {
	calendar CalendarWriter
}

func NewExportHandler(calendar CalendarWriter) *ExportHandler {
	return &ExportHandler{calendar: calendar}
}

func (h *ExportHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/calendar.ics", h.Calendar)
}

// Calendar buffers the feed so a failed load still gets a JSON error.
func (h *ExportHandler) Calendar(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.calendar.Write(c.Request.Context(), userID, &buf); err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="calendar.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}
