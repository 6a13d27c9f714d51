package coyoteapi

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
	"time"

	"coyote/cmd/identity/ids"
	"coyote/cmd/internal/session"
	"coyote/cmd/security/token"
)

// authMode declares, per endpoint, how the bearer token is used.
type authMode int

const (
	// authNone never sends a token.
	authNone authMode = iota
	// authOptional sends the token when one is stored.
	authOptional
	// authRequired fails fast with ErrMissingCredential when no token is stored.
	authRequired
)

// Client calls the CoyoteApp backend. It is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	tokens  session.TokenStore
	log     *slog.Logger
	metrics *Metrics
	now     func() time.Time

	onUnauthorized func()
}

// Option configures optional client dependencies.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client. Its transport is wrapped for logging.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records request and token metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithUnauthorizedHook registers fn to run after the token was deleted because
// the backend answered 401/403. The session store's Clear goes here.
func WithUnauthorizedHook(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithClock overrides the clock used for request ids.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs a Client over the given token store.
func NewClient(cfg Config, tokens session.TokenStore, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if tokens == nil {
		return nil, fmt.Errorf("%w: nil token store", ErrConfig)
	}

	c := &Client{
		cfg:    cfg.withDefaults(),
		http:   &http.Client{},
		tokens: tokens,
		log:    slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}

	hc := *c.http
	hc.Transport = newLoggingTransport(hc.Transport, c.log)
	c.http = &hc
	return c, nil
}

// request describes one backend call.
type request struct {
	op     string
	method string
	// path is appended to the base URL; dynamic segments must already be escaped.
	path  string
	query url.Values
	auth  authMode

	json any

	body        io.Reader
	contentType string
}

// do executes req and returns the 2xx body. Every failure is an *Error.
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	tok, err := c.bearer(ctx, req)
	if err != nil {
		return nil, err
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	ctx = withOp(ctx, req.op)

	httpReq, err := c.newHTTPRequest(ctx, req, tok)
	if err != nil {
		return nil, &Error{Op: req.op, Kind: ErrInvalidInput, Message: "could not build request", Err: err}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.observeRequest(req.op, statusClass(0), time.Since(start))
		return nil, &Error{Op: req.op, Kind: ErrTransport, Message: "could not reach the server", Err: err}
	}
	body, readErr := readBody(resp.Body, c.cfg.MaxResponseBytes)
	_ = resp.Body.Close()
	c.metrics.observeRequest(req.op, statusClass(resp.StatusCode), time.Since(start))

	status := resp.StatusCode
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		c.invalidate(ctx, InvalidationUnauthorized, tok)
		msg, ok := failureMessage(status, body)
		return nil, &Error{Op: req.op, Kind: ErrUnauthorized, Status: status, Message: msg, enveloped: ok}
	}
	if status < 200 || status > 299 {
		// An unreadable or oversized error body still fails on its status.
		if readErr != nil {
			body = nil
		}
		msg, ok := failureMessage(status, body)
		return nil, &Error{Op: req.op, Kind: ErrRequestFailed, Status: status, Message: msg, enveloped: ok}
	}
	if readErr != nil {
		if errors.Is(readErr, errBodyTooLarge) {
			return nil, malformed(req.op, status, readErr)
		}
		return nil, &Error{Op: req.op, Kind: ErrTransport, Status: status, Message: "could not read the server response", Err: readErr}
	}
	return body, nil
}

// doJSON executes req and decodes the 2xx body into dst.
func (c *Client) doJSON(ctx context.Context, req request, dst any) error {
	body, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	if err := decodeJSON(body, dst); err != nil {
		return malformed(req.op, http.StatusOK, err)
	}
	return nil
}

func (c *Client) bearer(ctx context.Context, req request) (string, error) {
	if req.auth == authNone {
		return "", nil
	}
	tok, ok, err := c.tokens.Load(ctx)
	if err != nil {
		if req.auth == authRequired {
			return "", &Error{Op: req.op, Kind: ErrMissingCredential, Message: "could not read the session token", Err: err}
		}
		c.log.Warn("api.token.load.fail", "op", req.op, "err", err)
		return "", nil
	}
	if !ok && req.auth == authRequired {
		return "", newError(req.op, ErrMissingCredential, "not signed in")
	}
	return tok, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req request, tok string) (*http.Request, error) {
	target := c.cfg.BaseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	body := req.body
	contentType := req.contentType
	if req.json != nil {
		b, err := json.Marshal(req.json)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	httpReq.Header.Set("X-Request-ID", ids.NewRequestID(c.now()))
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if tok != "" {
		httpReq.Header.Set("Authorization", token.BearerHeader(tok))
	}
	return httpReq, nil
}

// invalidate deletes the persisted token and notifies the session store.
func (c *Client) invalidate(ctx context.Context, reason, tok string) {
	// The token must go even when the caller's context is already done.
	ctx = context.WithoutCancel(ctx)
	if err := c.tokens.Delete(ctx); err != nil {
		c.log.Error("api.token.clear.fail", "reason", reason, "err", err)
	} else {
		c.metrics.tokenInvalidated(reason)
		c.log.Info("api.token.cleared", "reason", reason, "token_fp", token.Fingerprint(tok))
	}
	if reason == InvalidationUnauthorized && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}
