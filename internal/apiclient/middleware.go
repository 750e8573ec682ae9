package apiclient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/observability"
	"github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// RequestIDHeader carries the client-generated correlation id.
const RequestIDHeader = "X-Request-ID"

// TokenReader is the read side of the token store.
type TokenReader interface {
	GetTokens(ctx context.Context) domain.CredentialPair
}

// AccessCookieSyncer writes the access token cookie.
type AccessCookieSyncer interface {
	SyncAccessCookie(token string) error
}

// CookieAttach mirrors the stored access token into the cookie jar before every
// request. A failed sync is logged and the request goes out anyway.
func CookieAttach(store TokenReader, cookies AccessCookieSyncer, logger *zap.Logger) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
			if access := store.GetTokens(ctx).AccessToken; access != "" {
				if err := cookies.SyncAccessCookie(access); err != nil {
					logger.Warn("failed to set access cookie", zap.String("path", req.Path), zap.Error(err))
				}
			}
			return next.Execute(ctx, req)
		})
	}
}

// Logging logs every request once it completes and stamps a request id.
func Logging(logger *zap.Logger) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
			if req.Header == nil {
				req.Header = make(map[string][]string)
			}
			reqID := req.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
				req.Header.Set(RequestIDHeader, reqID)
			}

			start := time.Now()
			resp, err := next.Execute(ctx, req)

			fields := []zap.Field{
				zap.String("request_id", reqID),
				zap.String("method", req.Method),
				zap.String("path", req.Path),
				zap.Bool("retried", req.Retried()),
				zap.Duration("latency", time.Since(start)),
			}
			if resp != nil {
				fields = append(fields, zap.Int("status", resp.StatusCode))
			}
			if err != nil {
				fields = append(fields, zap.Error(err))
				if errorutil.StatusCode(err) == 0 {
					logger.Error("api request failed", fields...)
				} else {
					logger.Warn("api request rejected", fields...)
				}
				return resp, err
			}
			logger.Debug("api request", fields...)
			return resp, nil
		})
	}
}

// Metrics records request counts and latency.
func Metrics(m *observability.ClientMetrics) Middleware {
	return func(next Executor) Executor {
		return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
			start := time.Now()
			resp, err := next.Execute(ctx, req)
			status := 0
			if resp != nil {
				status = resp.StatusCode
			}
			m.RecordRequest(req.Method, status, time.Since(start))
			return resp, err
		})
	}
}
