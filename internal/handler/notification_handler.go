package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/service"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"

	apperrors "github.com/tanmiacare/go-notification-engine/internal/shared/errors"
)

// NotificationHandler handles HTTP requests for notifications
type NotificationHandler struct {
	service *service.NotificationService
	log     *logger.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(service *service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{service: service, log: log}
}

// Create handles POST /api/v1/notifications
func (h *NotificationHandler) Create(c *gin.Context) {
	var req domain.CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	n, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, h.log, "Failed to create notification", err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// Get handles GET /api/v1/notifications/:id
func (h *NotificationHandler) Get(c *gin.Context) {
	n, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to load notification", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// List handles GET /api/v1/users/:user_id/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	var req domain.GetNotificationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid query", err))
		return
	}

	notifications, total, err := h.service.List(c.Request.Context(), c.Param("user_id"), req)
	if err != nil {
		respondError(c, h.log, "Failed to list notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"total":         total,
	})
}

// UnreadCount handles GET /api/v1/users/:user_id/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.service.UnreadCount(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.log, "Failed to count unread notifications", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread_count": count})
}

// MarkRead handles POST /api/v1/users/:user_id/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	n, err := h.service.MarkRead(c.Request.Context(), c.Param("id"), c.Param("user_id"))
	if err != nil {
		respondError(c, h.log, "Failed to mark notification read", err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// BulkMarkRead handles POST /api/v1/users/:user_id/notifications/read
func (h *NotificationHandler) BulkMarkRead(c *gin.Context) {
	var req domain.BulkMarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, apperrors.NewValidationError("Invalid request", err))
		return
	}

	modified, err := h.service.BulkMarkRead(c.Request.Context(), c.Param("user_id"), req)
	if err != nil {
		respondError(c, h.log, "Failed to bulk mark read", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked_read": modified})
}

// Cancel handles POST /api/v1/notifications/:id/cancel
func (h *NotificationHandler) Cancel(c *gin.Context) {
	if err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, h.log, "Failed to cancel notification", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification cancelled"})
}

// Attempts handles GET /api/v1/notifications/:id/attempts
func (h *NotificationHandler) Attempts(c *gin.Context) {
	attempts, err := h.service.Attempts(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.log, "Failed to load delivery attempts", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts})
}

// respondError maps application errors to HTTP status codes
func respondError(c *gin.Context, log *logger.Logger, msg string, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case apperrors.CodeValidation:
			c.JSON(http.StatusBadRequest, appErr)
			return
		case apperrors.CodeNotFound:
			c.JSON(http.StatusNotFound, appErr)
			return
		case apperrors.CodeConflict:
			c.JSON(http.StatusConflict, appErr)
			return
		}
	}
	log.Error(msg, "error", err)
	c.JSON(http.StatusInternalServerError, apperrors.NewInternalError(msg, nil))
}
