package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tanmiacare/go-notification-engine/internal/analytics"
	"github.com/tanmiacare/go-notification-engine/internal/dispatcher"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"

	apperrors "github.com/tanmiacare/go-notification-engine/internal/shared/errors"
)

// HealthHandler exposes liveness, dispatcher load and delivery analytics
type HealthHandler struct {
	dispatcher *dispatcher.Dispatcher
	analytics  *analytics.Aggregator
	log        *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(d *dispatcher.Dispatcher, a *analytics.Aggregator, log *logger.Logger) *HealthHandler {
	return &HealthHandler{dispatcher: d, analytics: a, log: log}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// System handles GET /health/system
func (h *HealthHandler) System(c *gin.Context) {
	c.JSON(http.StatusOK, h.dispatcher.Stats())
}

// Report handles GET /api/v1/analytics/report?from=2026-03-01&to=2026-03-31
func (h *HealthHandler) Report(c *gin.Context) {
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("invalid from date", err))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("invalid to date", err))
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("to is before from", nil))
		return
	}

	report, err := h.analytics.Report(c.Request.Context(), from, to)
	if err != nil {
		respondError(c, h.log, "Failed to build analytics report", err)
		return
	}
	c.JSON(http.StatusOK, report)
}
