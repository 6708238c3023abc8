package routes

import (
	"github.com/gin-gonic/gin"

	"repricer/config"
	"repricer/controllers"
	"repricer/middleware"
)

// SetupRoutes wires the ops endpoints onto the router
func SetupRoutes(router *gin.Engine, cfg *config.Config, status *controllers.StatusController) {
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())

	router.GET("/health", status.Health)

	auth := middleware.RequireToken(cfg.StatusAuthToken)

	// API v1 group
	api := router.Group("/api/v1", auth)
	{
		api.GET("/status", status.GetStatus)
		api.GET("/runs", status.GetRuns)
		api.GET("/cache", status.GetCache)
	}

	// Live run-event feed
	router.GET("/ws", auth, status.StreamEvents)
}
