package notification

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"staybook/internal/pkg/response"
	"staybook/internal/pkg/validator"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// GetNotifications returns one page of the caller's notifications.
// Query: limit (default 20, max 100), offset, filter (all|unread|read).
func (h *Handler) GetNotifications(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	limit := defaultPageSize
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}

	offset := 0
	if s := c.Query("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	filter := Filter(c.DefaultQuery("filter", string(FilterAll)))

	page, err := h.service.List(c.Request.Context(), userID, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidFilter) {
			response.CustomError(c, http.StatusBadRequest, "INVALID_FILTER", "filter must be one of: all, unread, read")
			return
		}
		response.CustomError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get notifications")
		return
	}

	response.Success(c, http.StatusOK, page)
}

func (h *Handler) GetUnreadCount(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	unread, err := h.service.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		response.CustomError(c, http.StatusInternalServerError, "FETCH_FAILED", "Failed to get unread count")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unread_count": unread})
}

func (h *Handler) MarkAsRead(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid notification ID")
		return
	}

	if err := h.service.MarkAsRead(c.Request.Context(), id, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.CustomError(c, http.StatusNotFound, "NOT_FOUND", "Notification not found")
			return
		}
		response.CustomError(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to mark as read")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "read"})
}

func (h *Handler) MarkAllAsRead(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated")
		return
	}

	updated, err := h.service.MarkAllAsRead(c.Request.Context(), userID)
	if err != nil {
		response.CustomError(c, http.StatusInternalServerError, "UPDATE_FAILED", "Failed to mark as read")
		return
	}

	response.Success(c, http.StatusOK, gin.H{"status": "all_read", "updated": updated})
}

type sendRequest struct {
	UserID      int64  `json:"user_id" validate:"required,gt=0"`
	Role        string `json:"role" validate:"required,oneof=guest host admin"`
	Type        string `json:"type" validate:"required"`
	RelatedType string `json:"related_type" validate:"omitempty,oneof=booking property payout payment user dispute system"`
	RelatedID   *int64 `json:"related_id"`
	Title       string `json:"title" validate:"required,max=200"`
	Message     string `json:"message" validate:"max=2000"`
}

// Send lets an admin deliver an ad-hoc notification (announcements, dispute
// updates) to one user.
func (h *Handler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body", errs)
		return
	}

	n, err := h.service.Create(c.Request.Context(), CreateInput{
		UserID:      req.UserID,
		Role:        Role(req.Role),
		Type:        Type(req.Type),
		RelatedType: RelatedType(req.RelatedType),
		RelatedID:   req.RelatedID,
		Title:       req.Title,
		Message:     req.Message,
	})
	if err != nil {
		if errors.Is(err, ErrUnknownType) || errors.Is(err, ErrMissingUser) {
			response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		response.CustomError(c, http.StatusInternalServerError, "CREATE_FAILED", "Failed to send notification")
		return
	}

	response.Success(c, http.StatusCreated, n)
}
