package ai

import (
	"errors"
	"fmt"
	"net/http"
)

// External calls fail in three ways that callers treat differently:
// transient failures are safe to retry, quota failures need backoff, and
// invalid input will fail the same way every time.
var (
	ErrTransient    = errors.New("transient service error")
	ErrQuota        = errors.New("quota exceeded")
	ErrInvalidInput = errors.New("invalid input")
)

// classifyStatus wraps a non-200 API response in the matching sentinel.
func classifyStatus(api string, status int, body []byte) error {
	var kind error
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusPaymentRequired:
		kind = ErrQuota
	case status >= 500:
		kind = ErrTransient
	default:
		kind = ErrInvalidInput
	}
	return fmt.Errorf("%s error (status %d): %s: %w", api, status, truncate(body, 512), kind)
}

// requestFailed wraps a transport-level failure. Network errors are treated
// as transient since the request may never have reached the service.
func requestFailed(api string, err error) error {
	return fmt.Errorf("%s request: %v: %w", api, err, ErrTransient)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
