package property

import "github.com/gin-gonic/gin"

// RegisterRoutes wires the public search route and the caller-scoped like
// and view routes.
func RegisterRoutes(public, protected *gin.RouterGroup, handler *Handler) {
	public.GET("/properties/search", handler.Search)

	props := protected.Group("/properties")
	{
		props.POST("/:id/like", handler.Like)
		props.DELETE("/:id/like", handler.Unlike)
		props.POST("/:id/view", handler.RecordView)
	}
}
