// handlers_files.go - CSV upload and preview handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/csv-chat/backend/internal/session"
	"github.com/csv-chat/backend/internal/upload"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	sessions *session.Manager
	limits   upload.Limits
}

// NewFileHandler creates a new file handler
func NewFileHandler(sessions *session.Manager, limits upload.Limits) FileHandler {
	return &FileHandlerImpl{sessions: sessions, limits: limits}
}

// HandleUploadFiles parses the multipart "files" field and replaces the
// session's tables. One result per file is returned in upload order.
func (h *FileHandlerImpl) HandleUploadFiles(c echo.Context) error {
	id := c.Param("id")
	if !h.sessions.Touch(id) {
		return NewNotFoundError("session", id)
	}

	form, err := c.MultipartForm()
	if err != nil {
		return NewBadRequestError("expected a multipart form with a files field", err)
	}

	files, err := upload.ReadMultipart(form.File["files"], h.limits)
	if err != nil {
		return domainError("failed to read upload", err)
	}

	results, err := h.sessions.LoadFiles(c.Request().Context(), id, files)
	if err != nil {
		return domainError("failed to load tables", err)
	}
	return c.JSON(http.StatusOK, results)
}

// HandleResetFiles drops every loaded table
func (h *FileHandlerImpl) HandleResetFiles(c echo.Context) error {
	if err := h.sessions.Reset(c.Request().Context(), c.Param("id")); err != nil {
		return domainError("failed to reset tables", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleGetTables lists the loaded tables
func (h *FileHandlerImpl) HandleGetTables(c echo.Context) error {
	tables, err := h.sessions.Tables(c.Param("id"))
	if err != nil {
		return domainError("failed to list tables", err)
	}
	return c.JSON(http.StatusOK, tables)
}

// HandleGetPreview returns the first rows of a table as JSON
func (h *FileHandlerImpl) HandleGetPreview(c echo.Context) error {
	tableID := c.Param("tableId")
	if tableID == "" {
		return NewValidationError("tableId")
	}
	preview, err := h.sessions.Preview(c.Param("id"), tableID)
	if err != nil {
		return domainError("failed to read preview", err)
	}
	return c.JSON(http.StatusOK, preview)
}

// HandleGetPreviewMsgpack returns the same preview MessagePack encoded
func (h *FileHandlerImpl) HandleGetPreviewMsgpack(c echo.Context) error {
	tableID := c.Param("tableId")
	if tableID == "" {
		return NewValidationError("tableId")
	}
	preview, err := h.sessions.Preview(c.Param("id"), tableID)
	if err != nil {
		return domainError("failed to read preview", err)
	}

	data, err := msgpack.Marshal(preview)
	if err != nil {
		return NewInternalError("failed to encode msgpack", err)
	}
	return c.Blob(http.StatusOK, "application/msgpack", data)
}
