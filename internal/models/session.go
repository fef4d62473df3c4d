package models

import "time"

// AnswerStatus is the outcome of a question.
type AnswerStatus string

const (
	AnswerStatusOK    AnswerStatus = "ok"
	AnswerStatusError AnswerStatus = "error"
)

// Error codes carried by an Answer in error state.
const (
	ErrorCodeAgentInit   = "AGENT_INIT_FAILED"
	ErrorCodeAuth        = "PROVIDER_AUTH_FAILED"
	ErrorCodeRateLimited = "PROVIDER_RATE_LIMITED"
	ErrorCodeUnavailable = "PROVIDER_UNAVAILABLE"
	ErrorCodeTimeout     = "AGENT_TIMEOUT"
	ErrorCodeAgentFailed = "AGENT_FAILED"
)

// Answer is the result of asking a question against the loaded tables.
type Answer struct {
	Question   string       `json:"question"`
	Status     AnswerStatus `json:"status"`
	Text       string       `json:"text,omitempty"`
	HTML       string       `json:"html,omitempty"`
	ErrorCode  string       `json:"errorCode,omitempty"`
	Error      string       `json:"error,omitempty"`
	DurationMs int64        `json:"durationMs"`
	AnsweredAt time.Time    `json:"answeredAt"`
}

// SessionView is the client-facing snapshot of a chat session.
// The credential itself is never part of it.
type SessionView struct {
	ID             string       `json:"id"`
	HasCredential  bool         `json:"hasCredential"`
	CredentialHint string       `json:"credentialHint,omitempty"`
	Tables         []TableInfo  `json:"tables"`
	FileErrors     []FileResult `json:"fileErrors,omitempty"`
	LastAnswer     *Answer      `json:"lastAnswer,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
	LastAccessed   time.Time    `json:"lastAccessed"`
}
