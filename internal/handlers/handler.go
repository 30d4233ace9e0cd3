package handlers

import (
	"net/http"
	"time"

	"envmon_dashboard/internal/logger"
	"envmon_dashboard/internal/notify"
	"envmon_dashboard/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services       *service.Service
	notes          *notify.Broadcaster
	metrics        http.Handler
	streamInterval time.Duration
	log            *logger.Logger
}

// Option customizes a Handler.
type Option func(*Handler)

// WithNotifications streams toasts from b to panel WebSocket sessions.
func WithNotifications(b *notify.Broadcaster) Option {
	return func(h *Handler) { h.notes = b }
}

// WithMetrics exposes m on /metrics.
func WithMetrics(m http.Handler) Option {
	return func(h *Handler) { h.metrics = m }
}

// WithStreamInterval sets the default view push interval of panel streams.
func WithStreamInterval(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 && d <= maxInterval {
			h.streamInterval = d
		}
	}
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger, opts ...Option) *Handler {
	h := &Handler{
		services:       services,
		streamInterval: defaultInterval,
		log:            log.Named("http"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/health", h.health)
	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	h.registerAPIRoutes(router)

	// Per-panel live stream (HTTP upgrade) on the same port
	router.GET("/ws/panels/:kind", h.kindMiddleware, h.wsPanel)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerDeviceRoutes(api)
		h.registerPanelRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	api.GET("/devices", h.listDevices)

	ctx := api.Group("/context")
	{
		ctx.GET("", h.getContext)
		// Body example: {"device_id":"D02"}
		ctx.PUT("", h.selectDevice)
	}
}

func (h *Handler) registerPanelRoutes(api *gin.RouterGroup) {
	api.GET("/panels", h.listPanels)

	panel := api.Group("/panels/:kind", h.kindMiddleware)
	{
		panel.GET("", h.getPanel)
		panel.POST("/open", h.openPanel)
		panel.POST("/close", h.closePanel)
		panel.POST("/refresh", h.refreshPanel)
		// Body example: {"mode":"balance"}
		panel.POST("/mode", h.controlSecretMiddleware, h.setMode)
		// Body example: {"action":"on"}
		panel.POST("/switch", h.controlSecretMiddleware, h.setSwitch)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
