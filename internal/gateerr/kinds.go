// Package gateerr defines the error taxonomy shared by the purchase and
// access orchestration layer. Every upstream failure - HTTP status, wire
// error code, or transport-level failure - is normalized into one Kind so
// callers never branch on raw upstream shapes.
package gateerr

// Kind is a machine-readable classification of an orchestration failure.
type Kind string

const (
	// KindUnauthorized means the caller has no session or an expired one.
	KindUnauthorized Kind = "unauthorized"
	// KindNoAccess means the caller is authenticated but lacks entitlement
	// for the item. During the window right after payment this is usually
	// transient and absorbed by the access broker's retry loop.
	KindNoAccess Kind = "no_access"
	// KindNotFound means the item or purchase is unknown upstream.
	KindNotFound Kind = "not_found"
	// KindRateLimited means per-user or per-item throttling kicked in.
	KindRateLimited Kind = "rate_limited"
	// KindInvalidQuote means a purchase quote failed shape or expiry checks.
	KindInvalidQuote Kind = "invalid_quote"
	// KindUnsupportedChain means no adapter exists for the contract's chain.
	KindUnsupportedChain Kind = "unsupported_chain"
	// KindChainMismatch means the execution client is bound to a different
	// chain than the quote's contract after a switch was requested.
	KindChainMismatch Kind = "chain_mismatch"
	// KindServerError is the catch-all for upstream 5xx failures.
	KindServerError Kind = "server_error"
	// KindNetworkError means no response was received at all.
	KindNetworkError Kind = "network_error"
)

// Retryable reports whether a failure of this kind is safe and useful to
// retry on the read path. Write-path callers must never consult this; a
// submission is surfaced immediately regardless of kind.
func (k Kind) Retryable() bool {
	switch k {
	case KindRateLimited, KindServerError, KindNetworkError:
		return true
	default:
		return false
	}
}

// HTTPStatus maps the kind to the status code the facade reports.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return 401
	case KindNoAccess:
		return 403
	case KindNotFound:
		return 404
	case KindRateLimited:
		return 429
	case KindInvalidQuote, KindUnsupportedChain, KindChainMismatch:
		return 422
	case KindNetworkError:
		return 502
	default:
		return 500
	}
}
