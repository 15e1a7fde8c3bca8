// Package platform is the HTTP client for the backend that owns purchases,
// quotes, access facts, and the relayer. It implements the collaborator
// interfaces the orchestration packages declare (purchase.StatusSource,
// access.Issuer, quote.Source, quote.Relayer, chain.MetadataSource) and
// normalizes the platform's heterogeneous payload shapes into the
// canonical internal types.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/GateStream/orchestrator/internal/circuitbreaker"
	"github.com/GateStream/orchestrator/internal/config"
	"github.com/GateStream/orchestrator/internal/gateerr"
	"github.com/GateStream/orchestrator/internal/httputil"
)

// Client talks to the platform API. All calls go through the platform
// circuit breaker and come back with classified errors.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuitbreaker.Manager
	log     zerolog.Logger

	// Metrics hook; nil-safe.
	onCall func(operation string, duration time.Duration, err error)
}

// ClientOption configures Client construction.
type ClientOption func(*Client)

// WithCallHook observes every upstream call's coarse operation, latency,
// and outcome, for metrics. The operation is the method plus the first
// path segment, so ids never become label values.
func WithCallHook(fn func(operation string, duration time.Duration, err error)) ClientOption {
	return func(c *Client) {
		c.onCall = fn
	}
}

// NewClient builds a platform client from config.
func NewClient(cfg config.PlatformConfig, breaker *circuitbreaker.Manager, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httputil.NewClient(cfg.Timeout.Duration),
		breaker: breaker,
		log:     log.With().Str("component", "platform").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type response struct {
	status int
	body   []byte
}

// do runs one request through the breaker and returns the raw response.
// Transport failures come back as classified network errors; HTTP error
// statuses are left for the caller, which may treat 404 as a non-error.
func (c *Client) do(ctx context.Context, method, path string, body any, headers map[string]string) (response, error) {
	var payload io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		payload = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return response{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	started := time.Now()
	result, err := c.breaker.Execute(circuitbreaker.ServicePlatform, func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, gateerr.Wrap(gateerr.KindNetworkError, method+" "+path, err)
		}
		defer resp.Body.Close()

		buf, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, gateerr.Wrap(gateerr.KindNetworkError, "read response body", err)
		}
		return response{status: resp.StatusCode, body: buf}, nil
	})
	if c.onCall != nil {
		hookErr := err
		if hookErr == nil {
			if resp := result.(response); !resp.ok() {
				hookErr = resp.asError(method, path)
			}
		}
		c.onCall(operation(method, path), time.Since(started), hookErr)
	}
	if err != nil {
		kind := gateerr.Classify(err)
		return response{}, gateerr.Wrap(kind, method+" "+path, err)
	}
	return result.(response), nil
}

// operation reduces a request to "METHOD /first-segment" so per-purchase
// paths collapse into a bounded set.
func operation(method, path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	if i := strings.IndexAny(trimmed, "/?"); i >= 0 {
		trimmed = trimmed[:i]
	}
	return method + " /" + trimmed
}

// wireError is the platform's error envelope. Newer endpoints nest it
// under "error", older ones put code and message at the top level.
type wireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// asError converts a non-2xx response into a classified error.
func (r response) asError(method, path string) error {
	var we wireError
	_ = json.Unmarshal(r.body, &we)

	code, message := we.Code, we.Message
	if we.Error != nil {
		code, message = we.Error.Code, we.Error.Message
	}
	if message == "" {
		message = fmt.Sprintf("%s %s returned %d", method, path, r.status)
	}
	return gateerr.New(gateerr.FromHTTP(r.status, code), message)
}

func (r response) ok() bool {
	return r.status >= 200 && r.status < 300
}

// call runs a request and decodes a 2xx JSON body into out.
func (c *Client) call(ctx context.Context, method, path string, body, out any, headers map[string]string) error {
	resp, err := c.do(ctx, method, path, body, headers)
	if err != nil {
		return err
	}
	if !resp.ok() {
		return resp.asError(method, path)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.body, out); err != nil {
		return gateerr.Wrap(gateerr.KindServerError, "decode "+path+" response", err)
	}
	return nil
}
