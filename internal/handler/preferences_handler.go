package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/repository"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"

	apperrors "github.com/tanmiacare/go-notification-engine/internal/shared/errors"
)

// PreferencesHandler handles HTTP requests for user delivery preferences
type PreferencesHandler struct {
	preferences *repository.PreferencesRepository
	log         *logger.Logger
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(p *repository.PreferencesRepository, log *logger.Logger) *PreferencesHandler {
	return &PreferencesHandler{preferences: p, log: log}
}

// List handles GET /api/v1/users/:user_id/preferences
func (h *PreferencesHandler) List(c *gin.Context) {
	prefs, err := h.preferences.ListByUser(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.log, "Failed to load preferences", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// Upsert handles PUT /api/v1/users/:user_id/preferences
func (h *PreferencesHandler) Upsert(c *gin.Context) {
	var pref domain.UserPreference
	if err := c.ShouldBindJSON(&pref); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}
	pref.UserID = c.Param("user_id")

	if pref.Type == "" {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("notification_type is required", nil))
		return
	}
	for _, ch := range pref.Channels {
		if !validChannel(ch) {
			c.JSON(http.StatusBadRequest, apperrors.NewValidationError("unknown channel "+string(ch), nil))
			return
		}
	}

	if err := h.preferences.Upsert(c.Request.Context(), &pref); err != nil {
		respondError(c, h.log, "Failed to store preference", err)
		return
	}
	c.JSON(http.StatusOK, pref)
}

func validChannel(ch domain.Channel) bool {
	for _, known := range domain.SupportedChannels() {
		if ch == known {
			return true
		}
	}
	return false
}
