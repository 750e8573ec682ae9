package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/observability"
)

const defaultTimeout = 10 * time.Second

// Options configures a Client. Store and Cookies are required.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// Jar must be the jar the cookie bridge writes to.
	Jar     http.CookieJar
	Store   TokenStore
	Cookies CookieBridge
	Logger  *zap.Logger
	Metrics *observability.ClientMetrics
	// Transport overrides the default round tripper, mainly for tests.
	Transport http.RoundTripper
}

// Client is the authenticated backend client.
type Client struct {
	baseURL  string
	defaults *headerSet
	exec     Executor
	logger   *zap.Logger
}

// New wires the middleware chain.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("apiclient: base url is required")
	}
	if opts.Store == nil || opts.Cookies == nil {
		return nil, errors.New("apiclient: token store and cookie bridge are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("apiclient")

	defaults := &headerSet{h: make(http.Header)}
	base := &transport{
		http: &http.Client{
			Jar:       opts.Jar,
			Timeout:   opts.Timeout,
			Transport: opts.Transport,
		},
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		defaults:  defaults,
	}

	refresher := NewRefresher(opts.Store, opts.Cookies, logger, opts.Metrics)
	exec := Chain(base,
		refresher.Middleware,
		CookieAttach(opts.Store, opts.Cookies, logger),
		Logging(logger),
		Metrics(opts.Metrics),
	)

	return &Client{
		baseURL:  base.baseURL,
		defaults: defaults,
		exec:     exec,
		logger:   logger,
	}, nil
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Execute sends req through the full chain.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	return c.exec.Execute(ctx, req)
}

// Get issues GET path.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodGet, Path: path})
}

// Post issues POST path with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues PUT path with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodPut, Path: path, Body: body})
}

// Delete issues DELETE path.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Execute(ctx, &Request{Method: http.MethodDelete, Path: path})
}

// SetDefaultHeader adds a header to every subsequent request.
func (c *Client) SetDefaultHeader(key, value string) { c.defaults.set(key, value) }

// DelDefaultHeader removes a default header. Removing an unset header is a no-op.
func (c *Client) DelDefaultHeader(key string) { c.defaults.del(key) }

// DefaultHeader returns a default header value.
func (c *Client) DefaultHeader(key string) string { return c.defaults.get(key) }
