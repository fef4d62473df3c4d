package agent

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/csv-chat/backend/internal/models"
)

var (
	ErrMissingCredential = errors.New("missing API key")
	ErrUnsupportedMode   = errors.New("unsupported agent mode")
	ErrUnauthorized      = errors.New("provider rejected the API key")
	ErrRateLimited       = errors.New("provider rate limited")
	ErrUnavailable       = errors.New("provider unavailable")
	ErrTimeout           = errors.New("agent timed out")
	ErrAgentFailed       = errors.New("agent failed")
)

var classified = []error{ErrMissingCredential, ErrUnsupportedMode, ErrUnauthorized, ErrRateLimited, ErrUnavailable, ErrTimeout, ErrAgentFailed}

// Classify maps an agent or provider failure onto one of the package
// sentinels. The original error stays in the chain.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range classified {
		if errors.Is(err, known) {
			return err
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	// The OpenAI client reports HTTP failures as "status code: NNN".
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "status code: 401", "status code: 403", "incorrect api key", "invalid api key"):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	case containsAny(msg, "status code: 429", "rate limit"):
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	case containsAny(msg, "status code: 500", "status code: 502", "status code: 503", "status code: 504",
		"connection refused", "no such host"):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return fmt.Errorf("%w: %w", ErrAgentFailed, err)
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ErrorCode returns the Answer error code for a failed invocation.
func ErrorCode(err error) string {
	err = Classify(err)
	switch {
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrUnsupportedMode):
		return models.ErrorCodeAgentInit
	case errors.Is(err, ErrUnauthorized):
		return models.ErrorCodeAuth
	case errors.Is(err, ErrRateLimited):
		return models.ErrorCodeRateLimited
	case errors.Is(err, ErrUnavailable):
		return models.ErrorCodeUnavailable
	case errors.Is(err, ErrTimeout):
		return models.ErrorCodeTimeout
	default:
		return models.ErrorCodeAgentFailed
	}
}
