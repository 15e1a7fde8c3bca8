package httputil

import (
	"net/http"
	"time"
)

// NewClient builds the HTTP client used for upstream calls. Status polling
// and token brokering hit the same hosts every few seconds, so the
// transport keeps idle connections warm to avoid re-handshaking.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
