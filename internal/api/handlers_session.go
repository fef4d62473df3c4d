// handlers_session.go - Session and credential handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/csv-chat/backend/internal/session"
)

// SessionHandlerImpl implements the SessionHandler interface
type SessionHandlerImpl struct {
	sessions *session.Manager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *session.Manager) SessionHandler {
	return &SessionHandlerImpl{sessions: sessions}
}

type credentialRequest struct {
	APIKey string `json:"apiKey"`
}

// HandleCreateSession starts an empty session
func (h *SessionHandlerImpl) HandleCreateSession(c echo.Context) error {
	state := h.sessions.Create()
	view, err := h.sessions.View(state.ID)
	if err != nil {
		return domainError("failed to create session", err)
	}
	return c.JSON(http.StatusCreated, view)
}

// HandleGetSession returns the session view
func (h *SessionHandlerImpl) HandleGetSession(c echo.Context) error {
	view, err := h.sessions.View(c.Param("id"))
	if err != nil {
		return domainError("failed to read session", err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleDeleteSession drops a session with its tables and credential
func (h *SessionHandlerImpl) HandleDeleteSession(c echo.Context) error {
	if err := h.sessions.Delete(c.Param("id")); err != nil {
		return domainError("failed to delete session", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleSetCredential stores the user's API key for this session
func (h *SessionHandlerImpl) HandleSetCredential(c echo.Context) error {
	var req credentialRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	id := c.Param("id")
	if err := h.sessions.SetCredential(id, req.APIKey); err != nil {
		return domainError("failed to set API key", err)
	}
	view, err := h.sessions.View(id)
	if err != nil {
		return domainError("failed to read session", err)
	}
	return c.JSON(http.StatusOK, view)
}

// HandleClearCredential forgets the session's API key
func (h *SessionHandlerImpl) HandleClearCredential(c echo.Context) error {
	if err := h.sessions.ClearCredential(c.Param("id")); err != nil {
		return domainError("failed to clear API key", err)
	}
	return c.NoContent(http.StatusNoContent)
}
