package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the probe, metrics, chat and download endpoints.
func RegisterRoutes(r *gin.Engine, apiPrefix string, chat *ChatHandler, exports *ExportHandler, metrics *MetricsHandler) {
	r.GET("/health", metrics.Health)
	r.GET("/ready", metrics.Ready)
	r.GET("/metrics", metrics.Prometheus)

	api := r.Group(apiPrefix)
	api.POST("/chats/:chatId/messages", chat.PostMessage)
	api.GET("/exports/:token", exports.Download)
}
