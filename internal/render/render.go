// Package render turns agent answers into safe HTML for the browser.
package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/csv-chat/backend/internal/models"
)

var (
	md     = goldmark.New(goldmark.WithExtensions(extension.GFM))
	policy = bluemonday.UGCPolicy()
)

// Markdown renders model output as sanitized HTML. The text comes from a
// language model that has read user data, so it is treated as untrusted.
func Markdown(text string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return policy.Sanitize(buf.String()), nil
}

var errorMessages = map[string]string{
	models.ErrorCodeAgentInit:   "Error initializing the AI agent. Check your API key and try again.",
	models.ErrorCodeAuth:        "Error while answering: the API key was rejected by the provider.",
	models.ErrorCodeRateLimited: "Error while answering: the provider is rate limiting requests. Wait a moment and try again.",
	models.ErrorCodeUnavailable: "Error while answering: the provider could not be reached.",
	models.ErrorCodeTimeout:     "Error while answering: the agent took too long to respond.",
	models.ErrorCodeAgentFailed: "Error while answering: the agent could not produce an answer from the data.",
}

// ErrorMessage returns the user-facing message for an answer error code.
func ErrorMessage(code string) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}
	return errorMessages[models.ErrorCodeAgentFailed]
}
