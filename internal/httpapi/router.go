package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tidyhost/engage/internal/logger"
)

// NewRouter wires the admin-session routes.
func NewRouter(h *Handler, allowedOrigin string, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(corsMiddleware(allowedOrigin))

	router.GET("/health", h.HealthCheck)
	router.GET("/ws", h.DisplayFeed)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/status", h.Status)

		notifications := api.Group("/notifications")
		{
			notifications.GET("", h.ListNotifications)
			notifications.DELETE("/:id", h.DismissNotification)
			notifications.POST("/:id/hover", h.HoverStart)
			notifications.DELETE("/:id/hover", h.HoverEnd)
		}

		onboarding := api.Group("/onboarding")
		{
			onboarding.POST("/session", h.StartSession)
			onboarding.POST("/install/captured", h.InstallCaptured)
			onboarding.POST("/install/prompt", h.InstallPrompt)
			onboarding.POST("/install/dismiss", h.InstallDismiss)
			onboarding.POST("/installed", h.AppInstalled)
			onboarding.POST("/push/accept", h.PushAccept)
			onboarding.POST("/push/dismiss", h.PushDismiss)
		}

		api.POST("/debug/alert", h.DebugAlert)
	}

	return router
}

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowedOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Header("X-Request-ID", requestID)
		ctx := logger.WithRequestID(c.Request.Context(), requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
