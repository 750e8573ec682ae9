// Package apiclient is the HTTP client for the E-Health backend. Requests pass
// through a chain of middleware around a transport: refresh-and-retry, cookie
// attach, logging, metrics.
package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// Request is one call against the backend, relative to the base URL.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	// Body is encoded as JSON when non-nil.
	Body any

	retried bool
}

// MarkRetried sets the retry marker. A marked request never triggers a refresh.
func (r *Request) MarkRetried() { r.retried = true }

// Retried reports whether the retry marker is set.
func (r *Request) Retried() bool { return r.retried }

func (r *Request) endpoint() string {
	p := strings.TrimRight(r.Path, "/")
	if p == "" {
		return "/"
	}
	return p
}

// Response is a fully read backend reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Cookies are the cookies this response set.
	Cookies []*http.Cookie
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Executor sends a request. A non-2xx reply is returned as an error; the
// response may still be non-nil in that case.
type Executor interface {
	Execute(ctx context.Context, req *Request) (*Response, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req *Request) (*Response, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Middleware wraps an Executor.
type Middleware func(Executor) Executor

// Chain applies mws around base in the order listed: the first is outermost.
func Chain(base Executor, mws ...Middleware) Executor {
	for i := len(mws) - 1; i >= 0; i-- {
		base = mws[i](base)
	}
	return base
}
