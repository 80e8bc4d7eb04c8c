package notification

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the caller-scoped notification routes.
func RegisterRoutes(protected *gin.RouterGroup, handler *Handler) {
	notifGroup := protected.Group("/notifications")
	{
		notifGroup.GET("", handler.GetNotifications)
		notifGroup.GET("/unread-count", handler.GetUnreadCount)
		notifGroup.PATCH("/:id/read", handler.MarkAsRead)
		notifGroup.POST("/read-all", handler.MarkAllAsRead)
	}
}

// RegisterAdminRoutes registers admin-only delivery routes.
func RegisterAdminRoutes(admin *gin.RouterGroup, handler *Handler) {
	admin.POST("/notifications", handler.Send)
}
