// Package backend talks to the hosted auth and data APIs. Every error that
// leaves this package is a *domain.AuthError.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ErlanBelekov/backup-desk/internal/domain"
)

const (
	authPrefix = "/auth/v1"
	restPrefix = "/rest/v1"

	defaultTimeout = 15 * time.Second
)

type Client struct {
	baseURL string
	anonKey string
	http    *http.Client
	logger  *slog.Logger
}

type Options struct {
	BaseURL string
	AnonKey string
	Timeout time.Duration
	// HTTPClient overrides the default client; tests pass httptest clients.
	HTTPClient *http.Client
}

func NewClient(opts Options, logger *slog.Logger) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		anonKey: opts.AnonKey,
		http:    hc,
		logger:  logger.With("component", "backend"),
	}
}

type request struct {
	method      string
	path        string
	query       url.Values
	body        any
	accessToken string
	header      http.Header
}

// do sends req and decodes a 2xx JSON body into out (when out is non-nil).
// Non-2xx responses and transport failures come back classified.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var bodyReader io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return &domain.AuthError{Kind: domain.KindUnclassified, Err: fmt.Errorf("encode body: %w", err)}
		}
		bodyReader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, bodyReader)
	if err != nil {
		return &domain.AuthError{Kind: domain.KindUnclassified, Err: fmt.Errorf("build request: %w", err)}
	}

	token := req.accessToken
	if token == "" {
		token = c.anonKey
	}
	httpReq.Header.Set("apikey", c.anonKey)
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.WarnContext(ctx, "backend request failed", "method", req.method, "path", req.path, "error", err)
		return networkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(fmt.Errorf("read body: %w", err))
	}

	c.logger.DebugContext(ctx, "backend request",
		"method", req.method, "path", req.path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return classify(resp.StatusCode, payload)
	}

	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return &domain.AuthError{
			Kind:   domain.KindUnclassified,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// Ping checks that the auth API answers. Used by readiness checks.
func (c *Client) Ping(ctx context.Context) error {
	err := c.do(ctx, request{method: http.MethodGet, path: authPrefix + "/health"}, nil)
	if err != nil {
		return fmt.Errorf("auth health: %w", err)
	}
	return nil
}

func networkError(err error) *domain.AuthError {
	msg := "Failed to reach the authentication service"
	if errors.Is(err, context.DeadlineExceeded) {
		msg = "The authentication service timed out"
	}
	return &domain.AuthError{Kind: domain.KindNetwork, Message: msg, Err: err}
}
