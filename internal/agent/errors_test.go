package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/csv-chat/backend/internal/models"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), ErrTimeout},
		{"net timeout", timeoutErr{}, ErrTimeout},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, ErrUnavailable},
		{"401", errors.New("error, status code: 401, status: 401 Unauthorized, message: Incorrect API key provided"), ErrUnauthorized},
		{"429", errors.New("error, status code: 429, status: 429 Too Many Requests, message: Rate limit reached"), ErrRateLimited},
		{"503", errors.New("error, status code: 503, status: 503 Service Unavailable"), ErrUnavailable},
		{"other", errors.New("exceeds max steps"), ErrAgentFailed},
		{"already classified", fmt.Errorf("wrapped: %w", ErrRateLimited), ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			assert.ErrorIs(t, got, tt.err, "original error should stay in the chain")
		})
	}

	assert.NoError(t, Classify(nil))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, models.ErrorCodeAgentInit, ErrorCode(ErrMissingCredential))
	assert.Equal(t, models.ErrorCodeAuth, ErrorCode(errors.New("status code: 401")))
	assert.Equal(t, models.ErrorCodeRateLimited, ErrorCode(ErrRateLimited))
	assert.Equal(t, models.ErrorCodeUnavailable, ErrorCode(ErrUnavailable))
	assert.Equal(t, models.ErrorCodeTimeout, ErrorCode(context.DeadlineExceeded))
	assert.Equal(t, models.ErrorCodeAgentFailed, ErrorCode(errors.New("boom")))
}
