package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1.
// Все маршруты, кроме health-check, защищены API-ключом.
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	protected := api.Group("", APIKeyAuthMiddleware(h.cfg, h.logger))

	// Маршруты для управления оповещениями
	alerts := protected.Group("/alerts")
	{
		alerts.POST("", h.createAlert)
		alerts.GET("", h.listAlerts)
		alerts.GET("/:id", h.getAlert)
		alerts.DELETE("/:id", h.deactivateAlert)
	}

	// Маршрут для выборки оповещений по координатам
	protected.POST("/location/alerts", h.alertsForLocation)

	// Маршрут для чтения сессии сопровождения
	protected.GET("/escorts/:id", h.getEscortSession)

	// Маршрут для статистики
	protected.GET("/stats", h.getStats)

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
