// Package session owns the client's authentication state: login, MFA
// verification, logout and the "who am I" query that decides whether a
// session is valid.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/ehealth-cst/ehealth-client/internal/apiclient"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/events"
	"github.com/ehealth-cst/ehealth-client/internal/querycache"
)

// UserQueryKey caches the session user.
const UserQueryKey = "authUser"

// Logout reasons carried by events.LoggedOutPayload.
const (
	ReasonUser          = "user"
	ReasonEmptySession  = "empty_session"
	ReasonRefreshFailed = "refresh_failed"
)

var (
	errNoAccessToken = errors.New("no access token in response")
	errNoSessionUser = errors.New("session endpoint returned no user")
)

// API is the backend client.
type API interface {
	Execute(ctx context.Context, req *apiclient.Request) (*apiclient.Response, error)
	DelDefaultHeader(key string)
}

// TokenStore persists the credential pair.
type TokenStore interface {
	SetTokens(ctx context.Context, access, refresh string) error
	GetTokens(ctx context.Context) domain.CredentialPair
	RemoveTokens(ctx context.Context)
}

// Cookies reads and clears the token cookies.
type Cookies interface {
	ClearCookies()
	TokensFromResponse(set []*http.Cookie) domain.CredentialPair
}

// Deps are the controller's collaborators. Cache and Dispatcher default to
// fresh instances.
type Deps struct {
	API        API
	Store      TokenStore
	Cookies    Cookies
	Cache      *querycache.Cache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// Controller is the single source of truth for the session. Construct one per
// process; it is safe for concurrent use.
type Controller struct {
	api        API
	store      TokenStore
	cookies    Cookies
	cache      *querycache.Cache
	dispatcher events.Dispatcher
	logger     *zap.Logger

	mu           sync.Mutex
	state        State
	user         *domain.SessionUser
	localLoading bool
	queryLoading bool
	queryEnabled bool
	err          error
}

// New builds a controller in StateUnknown.
func New(deps Deps) *Controller {
	if deps.Cache == nil {
		deps.Cache = querycache.New()
	}
	if deps.Dispatcher == nil {
		deps.Dispatcher = events.NewInMemoryDispatcher()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Controller{
		api:          deps.API,
		store:        deps.Store,
		cookies:      deps.Cookies,
		cache:        deps.Cache,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger.Named("session"),
		state:        StateUnknown,
		localLoading: true,
	}
}

// Dispatcher returns the dispatcher session events are published on.
func (c *Controller) Dispatcher() events.Dispatcher { return c.dispatcher }

// Cache returns the query cache the controller clears on logout.
func (c *Controller) Cache() *querycache.Cache { return c.cache }

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:           c.state,
		User:            c.user,
		IsAuthenticated: c.user != nil,
		IsLoading:       c.localLoading || c.queryLoading,
		Err:             c.err,
	}
}

// Subscribe calls fn with every snapshot published after a transition.
func (c *Controller) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return c.dispatcher.Subscribe(events.EventSessionChanged, func(_ context.Context, e events.Event) error {
		if snap, ok := e.Payload.(Snapshot); ok {
			fn(snap)
		}
		return nil
	})
}

// update applies mutate under the lock and publishes the resulting snapshot.
func (c *Controller) update(ctx context.Context, mutate func()) Snapshot {
	c.mu.Lock()
	prev := c.state
	mutate()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if prev != snap.State {
		c.logger.Debug("session state changed", zap.Stringer("from", prev), zap.Stringer("to", snap.State))
	}
	c.publish(ctx, events.EventSessionChanged, userID(snap.User), snap)
	return snap
}

func (c *Controller) publish(ctx context.Context, eventType events.EventType, uid string, payload any) {
	if err := c.dispatcher.Publish(ctx, events.New(eventType, uid, payload)); err != nil {
		c.logger.Warn("session event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

// Mount finishes the local storage check and enables the session query, which
// then decides. Local storage is never trusted either way: a stored token may
// be dead, and a cleared store may sit beside a live backend session.
func (c *Controller) Mount(ctx context.Context) Snapshot {
	hasAccess := c.store.GetTokens(ctx).HasAccess()

	c.update(ctx, func() {
		c.user = nil
		c.state = StateUnauthenticated
		c.localLoading = false
		c.queryEnabled = true
	})
	if _, err := c.RefreshUser(ctx); err != nil && !hasAccess {
		// Nothing was stored, so a rejected query is the ordinary signed-out case.
		c.update(ctx, func() { c.err = nil })
	}
	return c.Snapshot()
}

// RefreshUser runs the "who am I" query. A response without a user is an
// implicit logout. Failures are not retried and leave the controller
// unauthenticated.
func (c *Controller) RefreshUser(ctx context.Context) (*domain.SessionUser, error) {
	c.update(ctx, func() { c.queryLoading = true })

	user, err := querycache.Fetch(ctx, c.cache, UserQueryKey, c.fetchUser)
	if err != nil {
		if errors.Is(err, apiclient.ErrRefreshFailed) {
			c.onRefreshFailed(ctx, err)
			return nil, err
		}
		c.logger.Warn("session query failed", zap.Error(err))
		c.update(ctx, func() {
			c.user = nil
			c.state = StateUnauthenticated
			c.queryLoading = false
			c.err = err
		})
		return nil, err
	}

	if user == nil {
		c.logger.Warn("session endpoint returned no user, logging out")
		c.update(ctx, func() { c.queryLoading = false })
		c.logout(ctx, ReasonEmptySession)
		return nil, nil
	}

	c.update(ctx, func() {
		c.user = user
		c.state = StateAuthenticated
		c.queryLoading = false
		c.err = nil
	})
	return user, nil
}

func (c *Controller) fetchUser(ctx context.Context) (*domain.SessionUser, error) {
	resp, err := c.api.Execute(ctx, &apiclient.Request{Method: http.MethodGet, Path: apiclient.SessionEndpoint})
	if err != nil {
		return nil, err
	}
	var body struct {
		User *domain.SessionUser `json:"user"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if body.User == nil || (body.User.ID == "" && body.User.Email == "") {
		return nil, nil
	}
	return body.User, nil
}

// InvalidateUser marks the cached user stale and refetches it when the query
// is enabled.
func (c *Controller) InvalidateUser(ctx context.Context) error {
	c.cache.Invalidate(UserQueryKey)

	c.mu.Lock()
	enabled := c.queryEnabled
	c.mu.Unlock()
	if !enabled {
		return nil
	}
	_, err := c.RefreshUser(ctx)
	return err
}

// Login submits credentials. When the backend asks for a second factor no
// session is established and a *MFARequiredError is returned.
func (c *Controller) Login(ctx context.Context, creds domain.LoginCredentials) error {
	c.begin(ctx)

	resp, err := c.api.Execute(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.LoginEndpoint,
		Body:   creds,
	})
	if err != nil {
		return c.failLogin(ctx, StateUnauthenticated, err)
	}

	var body struct {
		MFARequired bool `json:"mfaRequired"`
	}
	if err := resp.Decode(&body); err != nil {
		return c.failLogin(ctx, StateUnauthenticated, fmt.Errorf("decode login response: %w", err))
	}

	if body.MFARequired {
		c.store.RemoveTokens(ctx)
		c.cookies.ClearCookies()
		c.cache.Remove(UserQueryKey)
		c.update(ctx, func() {
			c.user = nil
			c.state = StateAwaitingMFA
			c.localLoading = false
		})
		c.publish(ctx, events.EventSessionMFARequired, "", events.MFARequiredPayload{Email: creds.Email})
		return &MFARequiredError{Email: creds.Email}
	}

	return c.establish(ctx, resp, StateUnauthenticated)
}

// VerifyMFA submits the second factor for email. On success the session is
// established the same way as a plain login.
func (c *Controller) VerifyMFA(ctx context.Context, email, code string) error {
	c.begin(ctx)

	resp, err := c.api.Execute(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.MFALoginEndpoint,
		Body:   domain.MFALogin{Email: email, Code: code},
	})
	if err != nil {
		return c.failLogin(ctx, StateAwaitingMFA, err)
	}
	return c.establish(ctx, resp, StateAwaitingMFA)
}

func (c *Controller) begin(ctx context.Context) {
	c.update(ctx, func() {
		c.state = StateAuthenticating
		c.localLoading = true
		c.err = nil
	})
}

// establish persists the pair the response set and loads the session user.
func (c *Controller) establish(ctx context.Context, resp *apiclient.Response, onFailure State) error {
	pair := c.cookies.TokensFromResponse(resp.Cookies)
	if !pair.HasAccess() {
		return c.failLogin(ctx, onFailure, errNoAccessToken)
	}
	if err := c.store.SetTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return c.failLogin(ctx, onFailure, fmt.Errorf("persist tokens: %w", err))
	}

	c.update(ctx, func() {
		c.localLoading = false
		c.queryEnabled = true
	})
	c.cache.Invalidate(UserQueryKey)
	user, err := c.RefreshUser(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if user == nil {
		// RefreshUser already ran the implicit logout.
		err := fmt.Errorf("%w: %w", ErrLoginFailed, errNoSessionUser)
		c.update(ctx, func() { c.err = err })
		return err
	}
	return nil
}

// failLogin clears whatever partial credentials exist and records err.
func (c *Controller) failLogin(ctx context.Context, next State, cause error) error {
	c.store.RemoveTokens(ctx)
	c.cookies.ClearCookies()

	err := fmt.Errorf("%w: %w", ErrLoginFailed, cause)
	c.update(ctx, func() {
		c.user = nil
		c.state = next
		c.localLoading = false
		c.err = err
	})
	return err
}

// Logout ends the session. The backend call is best effort; local cleanup
// always happens.
func (c *Controller) Logout(ctx context.Context) {
	c.logout(ctx, ReasonUser)
}

func (c *Controller) logout(ctx context.Context, reason string) {
	uid := userID(c.Snapshot().User)
	c.update(ctx, func() { c.localLoading = true })

	payload := events.LoggedOutPayload{Reason: reason}
	if _, err := c.api.Execute(ctx, &apiclient.Request{Method: http.MethodPost, Path: apiclient.LogoutEndpoint}); err != nil {
		c.logger.Info("backend logout failed, clearing local session anyway", zap.Error(err))
		payload.BackendError = err.Error()
	}

	c.clearLocal(ctx, nil)
	c.publish(ctx, events.EventSessionLoggedOut, uid, payload)
}

// clearLocal drops every piece of client-side session state.
func (c *Controller) clearLocal(ctx context.Context, cause error) {
	c.store.RemoveTokens(ctx)
	c.cookies.ClearCookies()
	c.cache.RemoveAll()
	c.api.DelDefaultHeader("Authorization")

	c.update(ctx, func() {
		c.user = nil
		c.state = StateUnauthenticated
		c.localLoading = false
		c.queryLoading = false
		c.queryEnabled = false
		c.err = cause
	})
}

// Do sends req through the client. A refresh failure logs the session out.
func (c *Controller) Do(ctx context.Context, req *apiclient.Request) (*apiclient.Response, error) {
	resp, err := c.api.Execute(ctx, req)
	if errors.Is(err, apiclient.ErrRefreshFailed) {
		c.onRefreshFailed(ctx, err)
	}
	return resp, err
}

func (c *Controller) onRefreshFailed(ctx context.Context, err error) {
	uid := userID(c.Snapshot().User)
	c.logger.Warn("session expired", zap.Error(err))

	c.publish(ctx, events.EventSessionRefreshFailed, uid, events.RefreshFailedPayload{Error: err.Error()})
	c.clearLocal(ctx, err)
	c.publish(ctx, events.EventSessionLoggedOut, uid, events.LoggedOutPayload{Reason: ReasonRefreshFailed})
}

func userID(u *domain.SessionUser) string {
	if u == nil {
		return ""
	}
	if u.UserID != "" {
		return u.UserID
	}
	return u.ID
}
