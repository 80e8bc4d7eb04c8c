package booking

import "github.com/gin-gonic/gin"

// RegisterRoutes wires booking routes onto an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("", h.ListBookings)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/approve", h.ApproveBooking)
		bookings.POST("/:id/decline", h.DeclineBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
	}
}
