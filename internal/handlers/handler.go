package handlers

import (
	"net/http"

	"stove_coordination/internal/logger"
	"stove_coordination/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
	metrics  http.Handler
}

// NewHandler constructs a new HTTP handler with dependencies. metrics may be
// nil, in which case /metrics is not mounted.
func NewHandler(services *service.Service, log *logger.Logger, metrics http.Handler) *Handler {
	return &Handler{services: services, log: log, metrics: metrics}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerCoordinationRoutes(api)
		h.registerPreferenceRoutes(api)
		h.registerLimitRoutes(api)
		h.registerLogRoutes(api)
		// State stream (HTTP upgrade) on the same port
		api.GET("/ws", h.wsConnect)
	}
}

func (h *Handler) registerCoordinationRoutes(api *gin.RouterGroup) {
	coord := api.Group("/coordination")
	{
		// Body example: {"homeId":"5f1e...","status":"WORK","errorCode":0}
		coord.POST("/cycle", h.runCycle)
		coord.GET("/state", h.getState)
		coord.GET("/debounce", h.getDebounce)
		coord.DELETE("/debounce", h.cancelDebounce)
		coord.DELETE("/pause", h.resumeAutomation)
	}
}

func (h *Handler) registerPreferenceRoutes(api *gin.RouterGroup) {
	api.GET("/preferences", h.getPreferences)
	api.PUT("/preferences", h.updatePreferences)
}

func (h *Handler) registerLimitRoutes(api *gin.RouterGroup) {
	limits := api.Group("/limits")
	{
		limits.GET("", h.getLimits)
		limits.DELETE("/throttle", h.clearThrottle)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
