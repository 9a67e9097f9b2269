package handlers

import (
	"weather_station/internal/logger"
	"weather_station/internal/metrics"
	"weather_station/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	hub      *Hub
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies. hub may be nil
// when no realtime clients are served.
func NewHandler(services *service.Service, hub *Hub, log *logger.Logger) *Handler {
	return &Handler{services: services, hub: hub, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", h.health)

	h.registerAuthRoutes(router)
	h.registerDeviceRoutes(router)
	h.registerAPIRoutes(router)

	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

// registerDeviceRoutes holds the station-facing endpoints. They use device
// credentials instead of operator JWTs.
func (h *Handler) registerDeviceRoutes(r *gin.Engine) {
	r.POST("/device/handshake", h.handshake)
	r.POST("/api/sensor-data", h.deviceAuthMiddleware, h.ingestReading)
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerReadingRoutes(api)
		h.registerAIRoutes(api)
		h.registerLogRoutes(api)
		h.registerBackupRoutes(api)
		h.registerDeviceAdminRoutes(api)
		api.GET("/status", h.getStatus)
	}
}

func (h *Handler) registerReadingRoutes(api *gin.RouterGroup) {
	api.GET("/readings", h.getReadings)
	api.GET("/readings/latest", h.getLatestReading)
	api.GET("/predictions", h.getPredictions)
	api.GET("/forecast", h.getForecast)
}

func (h *Handler) registerAIRoutes(api *gin.RouterGroup) {
	ai := api.Group("/ai")
	{
		// Body example: {"force":true}
		ai.POST("/train", h.trainModel)
		ai.GET("/status", h.getAIStatus)
		ai.GET("/readiness", h.getReadiness)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}

func (h *Handler) registerBackupRoutes(api *gin.RouterGroup) {
	api.POST("/backup", h.createBackup)
	api.POST("/restore", h.restoreBackup)
	api.GET("/backups", h.listBackups)
}

func (h *Handler) registerDeviceAdminRoutes(api *gin.RouterGroup) {
	devices := api.Group("/devices")
	{
		devices.POST("", h.registerDevice)
		devices.GET("", h.listDevices)
	}
}
