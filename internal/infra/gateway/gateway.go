// Package gateway is the single path to the remote backend: it caches GET
// responses with a per-resource TTL, coalesces identical in-flight requests,
// retries transient failures with exponential backoff, and invalidates
// dependent cache entries after successful writes.
package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

const (
	// DefaultTTL applies to cacheable requests that do not set one.
	DefaultTTL = 5 * time.Minute

	// DefaultMaxRetries bounds retry attempts beyond the first try.
	DefaultMaxRetries = 3

	// DefaultBaseDelay is the first backoff delay; it doubles per attempt.
	DefaultBaseDelay = 200 * time.Millisecond

	// DefaultMaxDelay caps the backoff.
	DefaultMaxDelay = 5 * time.Second

	// DefaultTimeout for a single HTTP attempt.
	DefaultTimeout = 30 * time.Second

	// MaxBodySize bounds response bodies read into memory (10MB).
	MaxBodySize = 10 * 1024 * 1024
)

// Request describes one backend call.
type Request struct {
	Method string
	Path   string // joined to the gateway base URL
	Body   []byte

	// Key names the cached resource for GETs (e.g. "songs-all",
	// "song-42"). When empty a composite method+path+body key is used.
	Key string

	// TTL overrides the default cache lifetime for this resource.
	TTL time.Duration

	// Invalidates lists resource-key prefixes evicted after a
	// successful write.
	Invalidates []string
}

// Response is a settled backend reply.
type Response struct {
	Status int
	Body   []byte
}

// StatusError is a non-2xx reply. 4xx are terminal; 5xx are retried and
// surface as the last-seen error once retries are exhausted.
type StatusError struct {
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d", e.Status)
}

// IsTransient reports whether the status is worth retrying.
func (e *StatusError) IsTransient() bool {
	return e.Status >= 500 && e.Status <= 599
}

// Gateway is safe for concurrent use.
type Gateway struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	cache      *ttlCache
	group      singleflight.Group
	limiter    *rate.Limiter

	defaultTTL time.Duration
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option is a functional option for configuring the gateway.
type Option func(*Gateway)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) { g.httpClient = client }
}

// WithAPIKey sets a bearer token attached to every request.
func WithAPIKey(key string) Option {
	return func(g *Gateway) { g.apiKey = key }
}

// WithDefaultTTL sets the cache lifetime used when a request has none.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(g *Gateway) { g.defaultTTL = ttl }
}

// WithMaxRetries bounds retries beyond the first attempt.
func WithMaxRetries(n int) Option {
	return func(g *Gateway) { g.maxRetries = n }
}

// WithRetryBaseDelay sets the first backoff delay.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(g *Gateway) { g.baseDelay = d }
}

// WithRateLimit paces outgoing requests in requests per second.
func WithRateLimit(rps int) Option {
	return func(g *Gateway) {
		g.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	}
}

// New creates a gateway for the given backend base URL.
func New(baseURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		cache:      newTTLCache(),
		defaultTTL: DefaultTTL,
		maxRetries: DefaultMaxRetries,
		baseDelay:  DefaultBaseDelay,
		maxDelay:   DefaultMaxDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Do performs the request. GETs are served from cache when fresh and
// coalesced with identical in-flight calls; successful writes evict the
// declared dependent cache entries. Write failures are never swallowed.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	if req.Method == "" || req.Method == http.MethodGet {
		return g.doGet(ctx, req)
	}
	return g.doWrite(ctx, req)
}

// Invalidate evicts the given resource-key prefixes from the cache.
func (g *Gateway) Invalidate(keys ...string) {
	for _, key := range keys {
		if n := g.cache.invalidate(key); n > 0 {
			log.Debug().Str("key", key).Int("evicted", n).Msg("Cache invalidated")
		}
	}
}

// CacheSize returns the number of live cache entries.
func (g *Gateway) CacheSize() int {
	return g.cache.len()
}

// StartSweeper periodically drops expired cache entries until the context
// is cancelled.
func (g *Gateway) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := g.cache.sweep(); n > 0 {
					log.Debug().Int("evicted", n).Msg("Cache sweep")
				}
			}
		}
	}()
}

func (g *Gateway) doGet(ctx context.Context, req Request) (*Response, error) {
	key := g.cacheKey(req)
	if resp, ok := g.cache.get(key); ok {
		return resp, nil
	}

	v, err, _ := g.group.Do(key, func() (interface{}, error) {
		// A coalesced waiter may arrive just after the leader stored
		// the result.
		if resp, ok := g.cache.get(key); ok {
			return resp, nil
		}
		resp, err := g.doWithRetry(ctx, req)
		if err != nil {
			return nil, err
		}
		ttl := req.TTL
		if ttl == 0 {
			ttl = g.defaultTTL
		}
		g.cache.set(key, resp, ttl)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Response), nil
}

func (g *Gateway) doWrite(ctx context.Context, req Request) (*Response, error) {
	resp, err := g.doWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}
	g.Invalidate(req.Invalidates...)
	return resp, nil
}

// doWithRetry issues the request up to 1+maxRetries times. Only network
// failures and 5xx statuses are retried; 4xx are terminal immediately.
// After exhaustion the last-seen error propagates unmodified.
func (g *Gateway) doWithRetry(ctx context.Context, req Request) (*Response, error) {
	reqID := uuid.NewString()[:8]
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.backoff(attempt)
			log.Debug().
				Str("req", reqID).
				Int("attempt", attempt).
				Dur("backoff", delay).
				Msg("Retrying backend request")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := g.doOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if serr, ok := err.(*StatusError); ok && !serr.IsTransient() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, lastErr
		}
		log.Warn().
			Err(err).
			Str("req", reqID).
			Str("method", req.Method).
			Str("path", req.Path).
			Int("attempt", attempt+1).
			Msg("Backend request failed")
	}

	return nil, lastErr
}

func (g *Gateway) doOnce(ctx context.Context, req Request) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, g.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if len(req.Body) > 0 {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	httpResp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, &StatusError{Status: httpResp.StatusCode, Body: data}
	}

	return &Response{Status: httpResp.StatusCode, Body: data}, nil
}

// backoff doubles the base delay per attempt, capped at maxDelay.
func (g *Gateway) backoff(attempt int) time.Duration {
	delay := g.baseDelay * time.Duration(1<<(attempt-1))
	if delay > g.maxDelay {
		delay = g.maxDelay
	}
	return delay
}

func (g *Gateway) cacheKey(req Request) string {
	if req.Key != "" {
		return req.Key
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + g.baseURL + req.Path + " " + string(req.Body)
}
