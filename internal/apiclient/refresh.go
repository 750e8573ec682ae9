package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/observability"
	"github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// Backend endpoints the client treats specially.
const (
	RefreshEndpoint   = "/auth/refresh"
	LoginEndpoint     = "/auth/login"
	LogoutEndpoint    = "/auth/logout"
	MFALoginEndpoint  = "/mfa/verify-login"
	SessionEndpoint   = "/session/"
	refreshFlightName = "refresh"
)

// ErrRefreshFailed is matched by every error the refresh sequence returns.
// Tokens and cookies have already been cleared when it is observed.
var ErrRefreshFailed = errors.New("session refresh failed")

var (
	errNoRefreshToken = errors.New("no refresh token stored")
	errNoAccessToken  = errors.New("refresh response carried no access token")
)

// credentialEndpoints answer 401 for wrong credentials, not for an expired session.
var credentialEndpoints = map[string]struct{}{
	LoginEndpoint:    {},
	MFALoginEndpoint: {},
}

// TokenStore is what the refresh sequence needs from the token store.
type TokenStore interface {
	TokenReader
	Epoch() uint64
	SetTokensAt(ctx context.Context, epoch uint64, access, refresh string) error
	RemoveTokens(ctx context.Context)
}

// CookieBridge is what the client needs from the cookie bridge.
type CookieBridge interface {
	AccessCookieSyncer
	SyncRefreshCookie(token string) error
	ClearCookies()
	TokensFromResponse(set []*http.Cookie) domain.CredentialPair
}

// Refresher recovers from an expired access token: on a 401 it exchanges the
// refresh token for a new pair and replays the failed request once.
type Refresher struct {
	store   TokenStore
	cookies CookieBridge
	logger  *zap.Logger
	metrics *observability.ClientMetrics
	group   singleflight.Group
}

// NewRefresher builds the refresh-and-retry layer.
func NewRefresher(store TokenStore, cookies CookieBridge, logger *zap.Logger, metrics *observability.ClientMetrics) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{store: store, cookies: cookies, logger: logger, metrics: metrics}
}

// Middleware returns the layer. The refresh call and the replay go through next.
func (r *Refresher) Middleware(next Executor) Executor {
	return ExecutorFunc(func(ctx context.Context, req *Request) (*Response, error) {
		resp, err := next.Execute(ctx, req)
		if err == nil || !r.shouldRefresh(req, err) {
			return resp, err
		}

		req.MarkRetried()
		if rerr := r.refresh(ctx, next); rerr != nil {
			return nil, rerr
		}
		r.logger.Debug("replaying request after refresh", zap.String("method", req.Method), zap.String("path", req.Path))
		return next.Execute(ctx, req)
	})
}

func (r *Refresher) shouldRefresh(req *Request, err error) bool {
	if errorutil.StatusCode(err) != http.StatusUnauthorized || req.Retried() {
		return false
	}
	endpoint := req.endpoint()
	if endpoint == RefreshEndpoint {
		return false
	}
	_, isCredential := credentialEndpoints[endpoint]
	return !isCredential
}

// refresh joins the in-flight refresh or starts one. The sequence itself is not
// bound to ctx so one caller giving up cannot log every other caller out.
func (r *Refresher) refresh(ctx context.Context, next Executor) error {
	ch := r.group.DoChan(refreshFlightName, func() (any, error) {
		return nil, r.run(context.WithoutCancel(ctx), next)
	})
	select {
	case res := <-ch:
		if res.Shared {
			r.metrics.RecordRefresh(observability.RefreshShared)
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Refresher) run(ctx context.Context, next Executor) error {
	epoch := r.store.Epoch()

	pair := r.store.GetTokens(ctx)
	if !pair.HasRefresh() {
		return r.fail(ctx, errNoRefreshToken)
	}

	if err := r.cookies.SyncRefreshCookie(pair.RefreshToken); err != nil {
		r.logger.Warn("failed to set refresh cookie, calling refresh anyway", zap.Error(err))
	}

	resp, err := next.Execute(ctx, &Request{Method: http.MethodGet, Path: RefreshEndpoint})
	if err != nil {
		return r.fail(ctx, fmt.Errorf("refresh call: %w", err))
	}

	fresh := r.cookies.TokensFromResponse(resp.Cookies)
	if !fresh.HasAccess() {
		return r.fail(ctx, errNoAccessToken)
	}
	if err := r.store.SetTokensAt(ctx, epoch, fresh.AccessToken, fresh.RefreshToken); err != nil {
		return r.fail(ctx, fmt.Errorf("persist refreshed tokens: %w", err))
	}

	r.metrics.RecordRefresh(observability.RefreshSucceeded)
	r.logger.Info("session refreshed", zap.Bool("refresh_rotated", fresh.HasRefresh()))
	return nil
}

// fail tears the local session down and wraps cause in ErrRefreshFailed.
func (r *Refresher) fail(ctx context.Context, cause error) error {
	r.logger.Warn("token refresh failed, clearing session", zap.Error(cause))
	r.store.RemoveTokens(ctx)
	r.cookies.ClearCookies()
	r.metrics.RecordRefresh(observability.RefreshFailed)
	return fmt.Errorf("%w: %w", ErrRefreshFailed, cause)
}
