package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"github.com/tanmiacare/go-notification-engine/internal/realtime"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

// StreamHandler serves the live notification stream over server-sent events
type StreamHandler struct {
	notifier *realtime.Notifier
	log      *logger.Logger
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(n *realtime.Notifier, log *logger.Logger) *StreamHandler {
	return &StreamHandler{notifier: n, log: log}
}

// Stream handles GET /api/v1/users/:user_id/notifications/stream. Each
// delivery state change is written as one SSE event until the client
// disconnects.
func (h *StreamHandler) Stream(c *gin.Context) {
	userID := c.Param("user_id")

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	ch, cancel := h.notifier.Subscribe(userID)
	defer cancel()

	h.log.Info("Realtime stream opened", "user_id", userID)
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(event.Kind), event)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	h.log.Info("Realtime stream closed", "user_id", userID)
}
