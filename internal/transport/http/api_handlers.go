package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/roomrelay/internal/notify"
)

// NotificationHandlers provides HTTP handlers for device registration and push dispatch.
type NotificationHandlers struct {
	service *notify.Service
	log     *zerolog.Logger
}

// NewNotificationHandlers creates a new notification handlers instance.
func NewNotificationHandlers(service *notify.Service, logger *zerolog.Logger) *NotificationHandlers {
	return &NotificationHandlers{
		service: service,
		log:     logger,
	}
}

// RegisterDeviceRequest represents the device registration request body.
type RegisterDeviceRequest struct {
	Token  string `json:"token" binding:"required"`
	UserID string `json:"userId" binding:"required"`
}

// SendNotificationRequest represents the notification dispatch request body.
type SendNotificationRequest struct {
	UserID  string          `json:"userId" binding:"required"`
	Message *notify.Message `json:"message" binding:"required"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SuccessResponse acknowledges a completed request.
type SuccessResponse struct {
	Success bool `json:"success"`
	Sent    *int `json:"sent,omitempty"`
}

// RegisterDevice binds a push token to a user.
// POST /api/register-device
func (h *NotificationHandlers) RegisterDevice(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register device request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields"})
		return
	}

	if err := h.service.RegisterDevice(c.Request.Context(), req.UserID, req.Token); err != nil {
		if errors.Is(err, notify.ErrMissingFields) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields"})
			return
		}
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to register device")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true})
}

// SendNotification pushes a message to every device of a user.
// POST /api/notifications
func (h *NotificationHandlers) SendNotification(c *gin.Context) {
	var req SendNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid notification request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields"})
		return
	}

	sent, err := h.service.SendNotification(c.Request.Context(), req.UserID, *req.Message)
	if err != nil {
		if errors.Is(err, notify.ErrMissingFields) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing required fields"})
			return
		}
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("failed to send notification")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Success: true, Sent: &sent})
}
