// interfaces.go - Handler interface definitions for clean separation of concerns
package api

import (
	"github.com/labstack/echo/v4"
)

// HealthHandler handles health check operations
type HealthHandler interface {
	HandleHealth(c echo.Context) error
}

// SessionHandler handles session lifecycle and credential operations
type SessionHandler interface {
	HandleCreateSession(c echo.Context) error
	HandleGetSession(c echo.Context) error
	HandleDeleteSession(c echo.Context) error
	HandleSetCredential(c echo.Context) error
	HandleClearCredential(c echo.Context) error
}

// FileHandler handles CSV upload and table preview operations
type FileHandler interface {
	HandleUploadFiles(c echo.Context) error
	HandleResetFiles(c echo.Context) error
	HandleGetTables(c echo.Context) error
	HandleGetPreview(c echo.Context) error
	HandleGetPreviewMsgpack(c echo.Context) error
}

// AskHandler handles questions about the loaded tables
type AskHandler interface {
	HandleAsk(c echo.Context) error
	HandleGetSummary(c echo.Context) error
}
