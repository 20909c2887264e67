package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/skincare-storefront/internal/catalog"
	"github.com/vasiliy-maslov/skincare-storefront/internal/metrics"
	"github.com/vasiliy-maslov/skincare-storefront/internal/user"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 10 * time.Second
	maxBodySize    = 4 << 20
)

type Config struct {
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// TokenStore holds the access/refresh pair. A missing pair is returned as
// empty tokens, not an error.
type TokenStore interface {
	Tokens(ctx context.Context) (user.Tokens, error)
	SetTokens(ctx context.Context, t user.Tokens) error
	ClearTokens(ctx context.Context) error
}

// Envelope is the shape shared by every backend response.
type Envelope struct {
	Status     string              `json:"status"`
	Message    string              `json:"message,omitempty"`
	Data       json.RawMessage     `json:"data,omitempty"`
	Pagination *catalog.Pagination `json:"pagination,omitempty"`
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// Client talks to the storefront REST backend. A 401 on the first attempt of
// a request triggers one shared token refresh and a single retry.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenStore

	refreshGroup singleflight.Group

	mu        sync.RWMutex
	onExpired []func(ctx context.Context)
}

func New(cfg Config, tokens TokenStore, opts ...Option) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		tokens:  tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSessionExpired registers fn to run after tokens are cleared because the
// session could not be renewed.
func (c *Client) OnSessionExpired(fn func(ctx context.Context)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onExpired = append(c.onExpired, fn)
}

type request struct {
	method string
	path   string
	// route is the path template used as a metrics label.
	route       string
	query       url.Values
	body        any
	header      http.Header
	skipRefresh bool
}

func (c *Client) do(ctx context.Context, req request, out any) (*catalog.Pagination, error) {
	env, used, err := c.send(ctx, req)
	if req.skipRefresh || !IsStatus(err, http.StatusUnauthorized) {
		if err != nil {
			return nil, err
		}
		return decode(env, req, out)
	}

	if err := c.refreshAfter(ctx, used); err != nil {
		log.Warn().Err(err).Str("route", req.route).Msg("api: token refresh failed, ending session")
		c.expireSession(ctx)
		return nil, &sessionExpiredError{cause: err}
	}

	env, _, err = c.send(ctx, req)
	if IsStatus(err, http.StatusUnauthorized) {
		log.Warn().Str("route", req.route).Msg("api: request still unauthorized after refresh, ending session")
		c.expireSession(ctx)
		return nil, &sessionExpiredError{cause: err}
	}
	if err != nil {
		return nil, err
	}
	return decode(env, req, out)
}

// refreshAfter renews the tokens unless another caller already replaced the
// access token that was rejected. Concurrent callers share one refresh.
func (c *Client) refreshAfter(ctx context.Context, rejected string) error {
	_, err, shared := c.refreshGroup.Do("refresh", func() (any, error) {
		current, err := c.tokens.Tokens(ctx)
		if err == nil && current.AccessToken != "" && current.AccessToken != rejected {
			return nil, nil
		}
		return c.Refresh(context.WithoutCancel(ctx))
	})
	if shared {
		log.Debug().Msg("api: joined in-flight token refresh")
	}
	return err
}

func (c *Client) expireSession(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if err := c.tokens.ClearTokens(ctx); err != nil {
		log.Error().Err(err).Msg("api: failed to clear tokens")
	}

	c.mu.RLock()
	hooks := append([]func(context.Context){}, c.onExpired...)
	c.mu.RUnlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

// send performs one round trip and returns the access token it used.
func (c *Client) send(ctx context.Context, req request) (*Envelope, string, error) {
	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, "", fmt.Errorf("api: encode %s %s: %w", req.method, req.route, err)
		}
		body = bytes.NewReader(b)
	}

	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, "", fmt.Errorf("api: build %s %s: %w", req.method, req.route, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	requestID := ""
	if id, err := uuid.NewV4(); err == nil {
		requestID = id.String()
		httpReq.Header.Set("X-Request-Id", requestID)
	}
	for k, vs := range req.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	tokens, err := c.tokens.Tokens(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("api: could not read access token, sending unauthenticated")
	}
	if tokens.AccessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.ObserveAPI(req.method, req.route, 0, time.Since(start))
		return nil, tokens.AccessToken, fmt.Errorf("api: %s %s: %w", req.method, req.route, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	metrics.ObserveAPI(req.method, req.route, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, tokens.AccessToken, fmt.Errorf("api: read %s %s: %w", req.method, req.route, err)
	}

	log.Debug().
		Str("method", req.method).
		Str("route", req.route).
		Int("status", resp.StatusCode).
		Str("request_id", requestID).
		Dur("elapsed", time.Since(start)).
		Msg("api: response")

	var env Envelope
	var decodeErr error
	if len(bytes.TrimSpace(raw)) > 0 {
		decodeErr = json.Unmarshal(raw, &env)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || env.Status == "error" {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = fallbackMessage
		}
		return nil, tokens.AccessToken, &APIError{StatusCode: resp.StatusCode, Message: msg, RequestID: requestID}
	}
	if decodeErr != nil {
		return nil, tokens.AccessToken, fmt.Errorf("api: decode %s %s: %w", req.method, req.route, decodeErr)
	}
	return &env, tokens.AccessToken, nil
}

func decode(env *Envelope, req request, out any) (*catalog.Pagination, error) {
	if out != nil {
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return nil, fmt.Errorf("api: %s %s: %w", req.method, req.route, errEmptyData)
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("api: decode data %s %s: %w", req.method, req.route, err)
		}
	}
	return env.Pagination, nil
}

var errEmptyData = errors.New("response has no data")
