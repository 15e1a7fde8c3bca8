package gateerr

import (
	"context"
	"errors"
	"net"
	"strings"
)

// wire error codes observed across the platform endpoints. Some endpoints
// report snake_case codes, older ones report free-form strings; both funnel
// through FromHTTP so callers only ever see a Kind.
var wireCodes = map[string]Kind{
	"unauthorized":      KindUnauthorized,
	"session_expired":   KindUnauthorized,
	"no_access":         KindNoAccess,
	"not_entitled":      KindNoAccess,
	"forbidden":         KindNoAccess,
	"not_found":         KindNotFound,
	"purchase_unknown":  KindNotFound,
	"rate_limited":      KindRateLimited,
	"too_many_requests": KindRateLimited,
	"invalid_quote":     KindInvalidQuote,
	"quote_expired":     KindInvalidQuote,
}

// FromHTTP normalizes an upstream HTTP response into a Kind. The wire code
// wins when recognized; otherwise the status code decides.
func FromHTTP(status int, code string) Kind {
	if kind, ok := wireCodes[strings.ToLower(strings.TrimSpace(code))]; ok {
		return kind
	}
	switch {
	case status == 401:
		return KindUnauthorized
	case status == 403:
		return KindNoAccess
	case status == 404:
		return KindNotFound
	case status == 429:
		return KindRateLimited
	case status >= 500:
		return KindServerError
	default:
		return KindServerError
	}
}

// Classify normalizes an arbitrary error into a Kind. Classified errors
// keep their kind; transport-level failures become KindNetworkError;
// anything else is a server error.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetworkError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetworkError
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "no such host"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "network"):
		return KindNetworkError
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many requests"):
		return KindRateLimited
	default:
		return KindServerError
	}
}
