// handlers_ask.go - Question answering handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/csv-chat/backend/internal/chat"
)

// AskHandlerImpl implements the AskHandler interface
type AskHandlerImpl struct {
	chat *chat.Service
}

// NewAskHandler creates a new ask handler
func NewAskHandler(svc *chat.Service) AskHandler {
	return &AskHandlerImpl{chat: svc}
}

type askRequest struct {
	Question string `json:"question"`
}

// HandleAsk answers a question from the session's tables. Agent failures
// still return 200 with the answer in error state; only missing input is
// rejected with 400.
func (h *AskHandlerImpl) HandleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}

	answer, err := h.chat.Ask(c.Request().Context(), c.Param("id"), req.Question)
	if err != nil {
		return domainError("failed to answer question", err)
	}
	return c.JSON(http.StatusOK, answer)
}

// HandleGetSummary returns the schema summary sent to the agent
func (h *AskHandlerImpl) HandleGetSummary(c echo.Context) error {
	summary, err := h.chat.Summary(c.Param("id"))
	if err != nil {
		return domainError("failed to build summary", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"summary": summary})
}
