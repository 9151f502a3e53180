package execution

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"council/internal/gateway/broker"
)

var terminalPatterns = []string{
	"insufficient",
	"buying power",
	"invalid symbol",
	"not tradable",
	"non-tradable",
	"not tradeable",
	"asset not found",
	"suspended",
	"forbidden",
	"unauthorized",
}

var transientPatterns = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"connection reset",
	"connection refused",
	"rate limit",
	"too many requests",
	"temporar",
	"transient",
	"internal server error",
	"bad gateway",
	"service unavailable",
	"try again",
}

// IsRetryable reports whether a failed order placement may be tried again.
// Terminal patterns win over transient ones and unrecognized errors are
// terminal. Status codes are only read from *broker.APIError, never from
// message text.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *panicError
	if errors.As(err, &pe) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range terminalPatterns {
		if strings.Contains(msg, p) {
			return false
		}
	}
	var apiErr *broker.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return false
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
