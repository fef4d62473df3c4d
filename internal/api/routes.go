// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/csv-chat/backend/internal/chat"
	"github.com/csv-chat/backend/internal/config"
	"github.com/csv-chat/backend/internal/session"
	"github.com/csv-chat/backend/internal/upload"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Sessions *session.Manager
	Chat     *chat.Service
	Limits   upload.Limits
	Version  string
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	Session SessionHandler
	File    FileHandler
	Ask     AskHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Sessions),
		Session: NewSessionHandler(deps.Sessions),
		File:    NewFileHandler(deps.Sessions, deps.Limits),
		Ask:     NewAskHandler(deps.Chat),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Session routes
	sessionGroup := apiGroup.Group("/sessions")
	sessionGroup.POST("", handlers.Session.HandleCreateSession)
	sessionGroup.GET("/:id", handlers.Session.HandleGetSession)
	sessionGroup.DELETE("/:id", handlers.Session.HandleDeleteSession)
	sessionGroup.PUT("/:id/credential", handlers.Session.HandleSetCredential)
	sessionGroup.DELETE("/:id/credential", handlers.Session.HandleClearCredential)

	// Files and tables
	sessionGroup.POST("/:id/files", handlers.File.HandleUploadFiles)
	sessionGroup.DELETE("/:id/files", handlers.File.HandleResetFiles)
	sessionGroup.GET("/:id/tables", handlers.File.HandleGetTables)
	sessionGroup.GET("/:id/tables/:tableId/preview", handlers.File.HandleGetPreview)
	sessionGroup.GET("/:id/tables/:tableId/preview/msgpack", handlers.File.HandleGetPreviewMsgpack)

	// Questions
	sessionGroup.GET("/:id/summary", handlers.Ask.HandleGetSummary)
	sessionGroup.POST("/:id/ask", handlers.Ask.HandleAsk)
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg *config.AppConfig, logger *zap.Logger) {
	e.HTTPErrorHandler = ErrorHandler
	exposeErrorDetails = cfg.Log.Development

	if cfg.Server.EnableRequestLogging {
		e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
			Skipper: func(c echo.Context) bool {
				return c.Request().URL.Path == "/api/health"
			},
			LogMethod:   true,
			LogURI:      true,
			LogStatus:   true,
			LogLatency:  true,
			LogError:    true,
			HandleError: true,
			LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
				fields := []zap.Field{
					zap.String("method", v.Method),
					zap.String("uri", v.URI),
					zap.Int("status", v.Status),
					zap.Duration("latency", v.Latency),
				}
				if v.Error != nil {
					logger.Warn("Request failed", append(fields, zap.Error(v.Error))...)
					return nil
				}
				logger.Info("Request", fields...)
				return nil
			},
		}))
	}

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("Handler panic", zap.Error(err), zap.ByteString("stack", stack))
			return err
		},
	}))

	if cfg.Server.EnableCompression {
		e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
			Level: cfg.Server.CompressionLevel,
			Skipper: func(c echo.Context) bool {
				return strings.HasSuffix(c.Request().URL.Path, "/msgpack")
			},
		}))
	}

	e.Use(middleware.BodyLimit(cfg.GetBodyLimit()))

	if cfg.Server.EnableCORS {
		origins := strings.Split(cfg.Server.AllowOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		if len(origins) == 0 || (len(origins) == 1 && origins[0] == "") {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
