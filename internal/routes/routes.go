// internal/routes/routes.go
package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerfiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"haptic-service/internal/config"
	"haptic-service/internal/database"
	"haptic-service/internal/discovery"
	"haptic-service/internal/handler"
	"haptic-service/internal/middleware"
	"haptic-service/internal/portal"
	"haptic-service/internal/service"
	"haptic-service/internal/utils"
)

// Router holds all dependencies for routing
type Router struct {
	config         *config.Config
	logger         *zap.Logger
	db             *database.DB
	sessionService *service.SessionService
	scanners       *discovery.ScannerManager
	procedure      *portal.Procedure

	wsHandler *handler.WebSocketHandler
}

// NewRouter creates a new router instance. db and procedure may be nil.
func NewRouter(
	config *config.Config,
	logger *zap.Logger,
	db *database.DB,
	sessionService *service.SessionService,
	scanners *discovery.ScannerManager,
	procedure *portal.Procedure,
) *Router {
	return &Router{
		config:         config,
		logger:         logger,
		db:             db,
		sessionService: sessionService,
		scanners:       scanners,
		procedure:      procedure,
	}
}

// SetupRouter creates and configures the Gin router
func (r *Router) SetupRouter() *gin.Engine {
	if r.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	r.addMiddleware(router)
	r.addRoutes(router)

	return router
}

// Close stops the WebSocket broadcasters
func (r *Router) Close() {
	if r.wsHandler != nil {
		r.wsHandler.Close()
	}
}

// addMiddleware adds middleware to the router
func (r *Router) addMiddleware(router *gin.Engine) {
	router.Use(middleware.RecoveryMiddleware(r.logger))
	router.Use(middleware.RequestIDMiddleware())

	serviceLogger := utils.NewServiceLogger(r.logger, "http-server")
	router.Use(middleware.LoggingMiddleware(serviceLogger, "/live", "/ready"))

	router.Use(middleware.CORSMiddleware(&r.config.Security))

	r.logger.Info("Middleware configured")
}

// addRoutes sets up all application routes
func (r *Router) addRoutes(router *gin.Engine) {
	healthHandler := handler.NewHealthHandler(r.db, r.sessionService, r.config, r.logger)
	hapticHandler := handler.NewHapticHandler(r.sessionService, r.logger)
	sessionHandler := handler.NewSessionHandler(r.sessionService, r.logger)
	portalHandler := handler.NewPortalHandler(r.procedure)
	discoveryHandler := handler.NewDiscoveryHandler(r.scanners, r.logger)
	r.wsHandler = handler.NewWebSocketHandler(
		r.sessionService,
		r.config.Server.TelemetryPeriod,
		r.config.Security.AllowedOrigins,
		r.logger,
	)

	healthHandler.RegisterRoutes(router.Group(""))

	apiV1 := router.Group("/api/v1")
	hapticHandler.RegisterRoutes(apiV1)
	sessionHandler.RegisterRoutes(apiV1)
	portalHandler.RegisterRoutes(apiV1)
	discoveryHandler.RegisterRoutes(apiV1)

	r.wsHandler.RegisterRoutes(router.Group("/ws"))

	r.addDocumentationRoutes(router)

	r.logger.Info("All routes configured successfully")
}

// addDocumentationRoutes sets up documentation routes
func (r *Router) addDocumentationRoutes(router *gin.Engine) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerfiles.Handler))

	router.GET("/docs", func(c *gin.Context) {
		c.Redirect(http.StatusMovedPermanently, "/swagger/index.html")
	})
}
