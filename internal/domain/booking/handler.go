package booking

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

func (h *Handler) CreateBooking(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking request", errs)
		return
	}

	b, err := h.service.CreateRequest(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{"booking": b})
}

// ListBookings returns the caller's bookings.
// Query: as=guest|host, status, limit, offset.
func (h *Handler) ListBookings(c *gin.Context) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter := ListFilter{
		UserID: userID,
		AsHost: c.Query("as") == "host",
		Status: Status(c.Query("status")),
		Limit:  limit,
		Offset: offset,
	}

	res, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, res)
}

func (h *Handler) GetBooking(c *gin.Context) {
	userID, bookingID, ok := bookingTarget(c)
	if !ok {
		return
	}

	b, err := h.service.Get(c.Request.Context(), userID, bookingID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) ApproveBooking(c *gin.Context) {
	userID, bookingID, ok := bookingTarget(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid decision", errs)
		return
	}

	b, err := h.service.Approve(c.Request.Context(), userID, bookingID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) DeclineBooking(c *gin.Context) {
	userID, bookingID, ok := bookingTarget(c)
	if !ok {
		return
	}

	var req DeclineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if errs := validator.Validate(req); errs != nil {
		response.ErrorWithDetails(c, http.StatusBadRequest, "VALIDATION_ERROR", "Decline reason is required", errs)
		return
	}

	b, err := h.service.Decline(c.Request.Context(), userID, bookingID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) CancelBooking(c *gin.Context) {
	userID, bookingID, ok := bookingTarget(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}
	}

	b, err := h.service.Cancel(c.Request.Context(), userID, bookingID, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"booking": b})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		response.CustomError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid booking request")
	case errors.Is(err, ErrNotFound):
		response.CustomError(c, http.StatusNotFound, "NOT_FOUND", "Booking not found")
	case errors.Is(err, ErrPropertyNotFound):
		response.CustomError(c, http.StatusNotFound, "PROPERTY_NOT_FOUND", "Property not found")
	case errors.Is(err, ErrForbidden):
		response.CustomError(c, http.StatusForbidden, "FORBIDDEN", "Access denied")
	case errors.Is(err, ErrNotAvailable), errors.Is(err, ErrOverbooking):
		response.CustomError(c, http.StatusConflict, "BOOKING_CONFLICT", "Property is not available for the selected dates")
	case errors.Is(err, ErrDuplicateRequest):
		response.CustomError(c, http.StatusConflict, "DUPLICATE_REQUEST", "Booking request already submitted")
	case errors.Is(err, ErrInvalidStatusTransition):
		response.CustomError(c, http.StatusConflict, "INVALID_STATUS_TRANSITION", "Booking can no longer change to this status")
	default:
		response.CustomError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}

func bookingTarget(c *gin.Context) (int64, int64, bool) {
	userID := c.GetInt64("user_id")
	if userID == 0 {
		response.CustomError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
		return 0, 0, false
	}
	bookingID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || bookingID <= 0 {
		response.CustomError(c, http.StatusBadRequest, "INVALID_ID", "Invalid booking id")
		return 0, 0, false
	}
	return userID, bookingID, true
}
