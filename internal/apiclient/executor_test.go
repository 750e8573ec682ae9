package apiclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

func TestChain_FirstMiddlewareIsOutermost(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next Executor) Executor {
			return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
				order = append(order, name+">")
				resp, err := next.Execute(ctx, req)
				order = append(order, "<"+name)
				return resp, err
			})
		}
	}
	base := ExecutorFunc(func(context.Context, *Request) (*Response, error) {
		order = append(order, "send")
		return &Response{StatusCode: 204}, nil
	})

	resp, err := Chain(base, tag("a"), tag("b")).Execute(context.Background(), &Request{})
	require.NoError(t, err)
	assert.Equal(t, 204, resp.StatusCode)
	assert.Equal(t, []string{"a>", "b>", "send", "<b", "<a"}, order)
}

func TestRequest_RetryMarker(t *testing.T) {
	req := &Request{Path: "/session/"}
	assert.False(t, req.Retried())
	req.MarkRetried()
	assert.True(t, req.Retried())
	assert.Equal(t, "/session", req.endpoint())
	assert.Equal(t, "/", (&Request{}).endpoint())
}

func TestShouldRefresh(t *testing.T) {
	r := NewRefresher(nil, nil, nil, nil)
	tests := []struct {
		name    string
		path    string
		retried bool
		status  int
		want    bool
	}{
		{"expired session", "/session/", false, 401, true},
		{"already retried", "/session/", true, 401, false},
		{"refresh endpoint", "/auth/refresh", false, 401, false},
		{"login credentials", "/auth/login", false, 401, false},
		{"mfa code", "/mfa/verify-login/", false, 401, false},
		{"forbidden", "/ha/toggle-availability", false, 403, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &Request{Path: tt.path}
			if tt.retried {
				req.MarkRetried()
			}
			err := errorutil.FromResponse(tt.status, nil)
			assert.Equal(t, tt.want, r.shouldRefresh(req, err))
		})
	}
}
