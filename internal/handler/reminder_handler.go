package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/scheduler"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"

	apperrors "github.com/tanmiacare/go-notification-engine/internal/shared/errors"
)

// ReminderHandler handles HTTP requests for entity reminder schedules
type ReminderHandler struct {
	scheduler *scheduler.Scheduler
	log       *logger.Logger
}

// NewReminderHandler creates a new reminder handler
func NewReminderHandler(s *scheduler.Scheduler, log *logger.Logger) *ReminderHandler {
	return &ReminderHandler{scheduler: s, log: log}
}

// Schedule handles POST /api/v1/entities/:entity_id/reminders
func (h *ReminderHandler) Schedule(c *gin.Context) {
	var req domain.ScheduleRemindersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	jobs, err := h.scheduler.ScheduleEntityReminders(c.Request.Context(), entityType(req.EntityType), c.Param("entity_id"), req)
	if err != nil {
		var conflict *scheduler.SchedulingConflictError
		if errors.As(err, &conflict) {
			c.JSON(http.StatusConflict, apperrors.NewConflictError(conflict.Error(), nil))
			return
		}
		respondError(c, h.log, "Failed to schedule reminders", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"jobs": jobs})
}

// Reschedule handles PUT /api/v1/entities/:entity_id/reminders
func (h *ReminderHandler) Reschedule(c *gin.Context) {
	var req domain.ScheduleRemindersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	jobs, err := h.scheduler.Reschedule(c.Request.Context(), entityType(req.EntityType), c.Param("entity_id"), req)
	if err != nil {
		respondError(c, h.log, "Failed to reschedule reminders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// Cancel handles DELETE /api/v1/entities/:entity_id/reminders
func (h *ReminderHandler) Cancel(c *gin.Context) {
	cancelled, err := h.scheduler.Cancel(c.Request.Context(), c.Param("entity_id"))
	if err != nil {
		var notFound *scheduler.EntityNotFoundError
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, apperrors.NewNotFoundError(notFound.Error(), nil))
			return
		}
		respondError(c, h.log, "Failed to cancel reminders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled})
}

// SendManual handles POST /api/v1/entities/:entity_id/reminders/send
func (h *ReminderHandler) SendManual(c *gin.Context) {
	var req domain.ManualReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	if err := h.scheduler.SendManualReminder(c.Request.Context(), "session", c.Param("entity_id"), req); err != nil {
		respondError(c, h.log, "Failed to send manual reminder", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reminder sent"})
}

func entityType(t string) string {
	if t == "" {
		return "session"
	}
	return t
}
