package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// HTTPStatusError carries a non-2xx upstream response.
type HTTPStatusError struct {
	Service    string
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "upstream status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s %s status: %s", e.Service, e.Operation, e.Status)
	}
	return fmt.Sprintf("%s %s status: %s: %s", e.Service, e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// CountsAsFailure is the default classifier. Caller cancellation and 4xx
// answers other than 408/429 are not the upstream's fault; everything else,
// including deadline expiry, is.
func CountsAsFailure(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return IsUpstreamFailureStatus(statusErr.StatusCode)
	}
	return true
}

func IsUpstreamFailureStatus(statusCode int) bool {
	switch {
	case statusCode == http.StatusRequestTimeout, statusCode == http.StatusTooManyRequests:
		return true
	case statusCode >= 500:
		return true
	default:
		return false
	}
}
