package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehealth-cst/ehealth-client/internal/apiclient"
	"github.com/ehealth-cst/ehealth-client/internal/cookies"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/events"
	"github.com/ehealth-cst/ehealth-client/internal/querycache"
	"github.com/ehealth-cst/ehealth-client/internal/tokenstore"
	"github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

const (
	studentEmail = "02230001.cst@rub.edu.bt"
	mfaEmail     = "02230002.cst@rub.edu.bt"
	noCookie     = "02230003.cst@rub.edu.bt"
	password     = "secret-pass"
	mfaCode      = "123456"
)

type backend struct {
	mu          sync.Mutex
	valid       map[string]bool
	emptyUser   bool
	logoutFails bool

	logoutCalls  atomic.Int32
	refreshCalls atomic.Int32
}

func newBackend() *backend {
	return &backend{valid: map[string]bool{}}
}

func (b *backend) issue(w http.ResponseWriter, access, refresh string) {
	b.mu.Lock()
	b.valid[access] = true
	b.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: domain.AccessTokenCookie, Value: access, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: domain.RefreshTokenCookie, Value: refresh, Path: "/api/v1/auth/refresh", HttpOnly: true})
}

func (b *backend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var creds domain.LoginCredentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		switch {
		case creds.Password != password:
			reply(w, http.StatusUnauthorized, map[string]any{"message": "Invalid email or password"})
		case creds.Email == mfaEmail:
			reply(w, http.StatusOK, map[string]any{"message": "Verify MFA authentication", "mfaRequired": true})
		case creds.Email == noCookie:
			reply(w, http.StatusOK, map[string]any{"message": "User login successfully"})
		default:
			b.issue(w, "acc-1", "ref-1")
			reply(w, http.StatusOK, map[string]any{"message": "User login successfully", "mfaRequired": false})
		}
	})
	mux.HandleFunc("POST /api/v1/mfa/verify-login", func(w http.ResponseWriter, r *http.Request) {
		var body domain.MFALogin
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Code != mfaCode || body.Email != mfaEmail {
			reply(w, http.StatusBadRequest, map[string]any{"message": "Invalid code provided"})
			return
		}
		b.issue(w, "acc-mfa", "ref-mfa")
		reply(w, http.StatusOK, map[string]any{"message": "Verified and login successfully"})
	})
	mux.HandleFunc("GET /api/v1/session/", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(domain.AccessTokenCookie)
		b.mu.Lock()
		ok := err == nil && b.valid[c.Value]
		empty := b.emptyUser
		b.mu.Unlock()
		if !ok {
			reply(w, http.StatusUnauthorized, map[string]any{"message": "Not authorized"})
			return
		}
		if empty {
			reply(w, http.StatusOK, map[string]any{"message": "Session", "user": nil})
			return
		}
		reply(w, http.StatusOK, map[string]any{"message": "Session", "user": map[string]any{
			"id": "user-1", "name": "Sonam", "email": studentEmail, "userType": "STUDENT",
		}})
	})
	mux.HandleFunc("GET /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshCalls.Add(1)
		reply(w, http.StatusUnauthorized, map[string]any{"message": "Invalid refresh token"})
	})
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.logoutCalls.Add(1)
		b.mu.Lock()
		fails := b.logoutFails
		b.mu.Unlock()
		if fails {
			reply(w, http.StatusInternalServerError, map[string]any{"message": "Internal Server Error"})
			return
		}
		reply(w, http.StatusOK, map[string]any{"message": "User logout successfully"})
	})
	return mux
}

func reply(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type fixture struct {
	backend    *backend
	controller *Controller
	client     *apiclient.Client
	store      *tokenstore.Store
	bridge     *cookies.Bridge
	cache      *querycache.Cache
	dispatcher events.Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := newBackend()
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	baseURL := srv.URL + "/api/v1"
	jar, err := cookies.NewJar()
	require.NoError(t, err)
	bridge, err := cookies.NewBridge(jar, baseURL, nil)
	require.NoError(t, err)
	store := tokenstore.New(tokenstore.NewMemoryBackend(), nil)
	client, err := apiclient.New(apiclient.Options{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Jar:     jar,
		Store:   store,
		Cookies: bridge,
	})
	require.NoError(t, err)

	cache := querycache.New()
	dispatcher := events.NewInMemoryDispatcher()
	c := New(Deps{
		API:        client,
		Store:      store,
		Cookies:    bridge,
		Cache:      cache,
		Dispatcher: dispatcher,
	})
	return &fixture{backend: b, controller: c, client: client, store: store, bridge: bridge, cache: cache, dispatcher: dispatcher}
}

func (f *fixture) record(eventType events.EventType) *[]events.Event {
	var got []events.Event
	f.dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
		got = append(got, e)
		return nil
	})
	return &got
}

func TestController_InitialState(t *testing.T) {
	f := newFixture(t)
	snap := f.controller.Snapshot()
	assert.Equal(t, StateUnknown, snap.State)
	assert.True(t, snap.IsLoading)
	assert.False(t, snap.IsAuthenticated)
}

func TestController_MountWithoutTokens(t *testing.T) {
	f := newFixture(t)
	snap := f.controller.Mount(context.Background())

	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.User)
	assert.NoError(t, snap.Err)
	// The query still ran; without a refresh token it never reaches the refresh endpoint.
	assert.Zero(t, f.backend.refreshCalls.Load())
	assert.Zero(t, f.backend.logoutCalls.Load())
}

func TestController_MountAfterStoreClearedAsksBackend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))

	// The keychain is reset externally; the backend session and jar cookie live on.
	f.store.RemoveTokens(ctx)

	restarted := New(Deps{API: f.client, Store: f.store, Cookies: f.bridge})
	snap := restarted.Mount(ctx)
	assert.Equal(t, StateAuthenticated, snap.State)
	require.NotNil(t, snap.User)
	assert.Equal(t, studentEmail, snap.User.Email)
}

func TestController_MountAfterStoreClearedWithDeadSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))
	f.store.RemoveTokens(ctx)

	f.backend.mu.Lock()
	f.backend.emptyUser = true
	f.backend.mu.Unlock()

	restarted := New(Deps{API: f.client, Store: f.store, Cookies: f.bridge})
	snap := restarted.Mount(ctx)
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.EqualValues(t, 1, f.backend.logoutCalls.Load())
	assert.Equal(t, domain.CredentialPair{}, f.bridge.Tokens())
}

func TestController_LoginEstablishesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.controller.Mount(ctx)

	var seen []Snapshot
	f.controller.Subscribe(func(s Snapshot) { seen = append(seen, s) })

	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))

	snap := f.controller.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.NoError(t, snap.Err)
	require.NotNil(t, snap.User)
	assert.Equal(t, studentEmail, snap.User.Email)
	assert.Equal(t, domain.UserTypeStudent, snap.User.UserType)

	assert.Equal(t, domain.CredentialPair{AccessToken: "acc-1", RefreshToken: "ref-1"}, f.store.GetTokens(ctx))

	require.NotEmpty(t, seen)
	assert.Equal(t, StateAuthenticating, seen[0].State)
	assert.True(t, seen[0].IsLoading)
	assert.Equal(t, StateAuthenticated, seen[len(seen)-1].State)
}

func TestController_MountRestoresStoredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))

	// A second controller over the same store, as after a restart.
	restarted := New(Deps{API: f.client, Store: f.store, Cookies: f.bridge})
	snap := restarted.Mount(ctx)
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.Equal(t, studentEmail, snap.User.Email)
}

func TestController_MFARequiredNeverEstablishesSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mfaEvents := f.record(events.EventSessionMFARequired)
	require.NoError(t, f.store.SetTokens(ctx, "leftover-access", "leftover-refresh"))

	err := f.controller.Login(ctx, domain.LoginCredentials{Email: mfaEmail, Password: password})
	require.Error(t, err)
	assert.True(t, IsMFARequired(err))
	assert.NotErrorIs(t, err, ErrLoginFailed)
	email, ok := MFAEmail(err)
	require.True(t, ok)
	assert.Equal(t, mfaEmail, email)

	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
	assert.Equal(t, domain.CredentialPair{}, f.bridge.Tokens())
	_, cached := querycache.Get[*domain.SessionUser](f.cache, UserQueryKey)
	assert.False(t, cached)

	snap := f.controller.Snapshot()
	assert.Equal(t, StateAwaitingMFA, snap.State)
	assert.Nil(t, snap.User)
	assert.False(t, snap.IsLoading)
	assert.NoError(t, snap.Err)
	require.Len(t, *mfaEvents, 1)
	assert.Equal(t, events.MFARequiredPayload{Email: mfaEmail}, (*mfaEvents)[0].Payload)
}

func TestController_VerifyMFA(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.controller.Login(ctx, domain.LoginCredentials{Email: mfaEmail, Password: password})
	require.True(t, IsMFARequired(err))

	err = f.controller.VerifyMFA(ctx, mfaEmail, "000000")
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.Equal(t, "Invalid code provided", errorutil.UserMessage(err))
	assert.Equal(t, StateAwaitingMFA, f.controller.Snapshot().State)
	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))

	require.NoError(t, f.controller.VerifyMFA(ctx, mfaEmail, mfaCode))
	snap := f.controller.Snapshot()
	assert.Equal(t, StateAuthenticated, snap.State)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, domain.CredentialPair{AccessToken: "acc-mfa", RefreshToken: "ref-mfa"}, f.store.GetTokens(ctx))
}

func TestController_LoginFailureClearsTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.SetTokens(ctx, "stale-access", "stale-refresh"))

	err := f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: "wrong"})
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.False(t, IsMFARequired(err))
	assert.Equal(t, "Invalid email or password", errorutil.UserMessage(err))
	assert.Zero(t, f.backend.refreshCalls.Load())

	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
	snap := f.controller.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.ErrorIs(t, snap.Err, ErrLoginFailed)
	assert.False(t, snap.IsLoading)
}

func TestController_LoginWithoutCookiesFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.controller.Login(ctx, domain.LoginCredentials{Email: noCookie, Password: password})
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.ErrorIs(t, err, errNoAccessToken)
	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
	assert.False(t, f.controller.Snapshot().IsAuthenticated)
}

func TestController_LogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logouts := f.record(events.EventSessionLoggedOut)
	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))
	f.client.SetDefaultHeader("Authorization", "Bearer legacy")
	f.cache.Set("feeds", []string{"a"})

	for i := 0; i < 2; i++ {
		f.controller.Logout(ctx)

		assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
		assert.Equal(t, domain.CredentialPair{}, f.bridge.Tokens())
		assert.Zero(t, f.cache.Len())
		assert.Empty(t, f.client.DefaultHeader("Authorization"))

		snap := f.controller.Snapshot()
		assert.Equal(t, StateUnauthenticated, snap.State)
		assert.Nil(t, snap.User)
		assert.False(t, snap.IsLoading)
	}
	assert.EqualValues(t, 2, f.backend.logoutCalls.Load())
	require.Len(t, *logouts, 2)
	assert.Equal(t, "user-1", (*logouts)[0].UserID)
}

func TestController_LogoutSurvivesBackendFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logouts := f.record(events.EventSessionLoggedOut)
	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))

	f.backend.mu.Lock()
	f.backend.logoutFails = true
	f.backend.mu.Unlock()

	f.controller.Logout(ctx)

	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
	assert.False(t, f.controller.Snapshot().IsAuthenticated)
	require.Len(t, *logouts, 1)
	payload := (*logouts)[0].Payload.(events.LoggedOutPayload)
	assert.Equal(t, ReasonUser, payload.Reason)
	assert.NotEmpty(t, payload.BackendError)
}

func TestController_EmptySessionIsImplicitLogout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logouts := f.record(events.EventSessionLoggedOut)
	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))

	f.backend.mu.Lock()
	f.backend.emptyUser = true
	f.backend.mu.Unlock()

	require.NoError(t, f.controller.InvalidateUser(ctx))

	assert.Nil(t, f.controller.Snapshot().User)
	assert.Equal(t, StateUnauthenticated, f.controller.Snapshot().State)
	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
	assert.EqualValues(t, 1, f.backend.logoutCalls.Load())
	require.Len(t, *logouts, 1)
	assert.Equal(t, ReasonEmptySession, (*logouts)[0].Payload.(events.LoggedOutPayload).Reason)
}

func TestController_LoginWithEmptySessionFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	logouts := f.record(events.EventSessionLoggedOut)

	f.backend.mu.Lock()
	f.backend.emptyUser = true
	f.backend.mu.Unlock()

	err := f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password})
	require.ErrorIs(t, err, ErrLoginFailed)
	assert.ErrorIs(t, err, errNoSessionUser)

	snap := f.controller.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.False(t, snap.IsAuthenticated)
	assert.ErrorIs(t, snap.Err, ErrLoginFailed)
	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
	require.Len(t, *logouts, 1)
	assert.Equal(t, ReasonEmptySession, (*logouts)[0].Payload.(events.LoggedOutPayload).Reason)
}

func TestController_RefreshFailureLogsOut(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	failures := f.record(events.EventSessionRefreshFailed)
	require.NoError(t, f.store.SetTokens(ctx, "expired-access", "revoked-refresh"))

	snap := f.controller.Mount(ctx)

	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.False(t, snap.IsAuthenticated)
	assert.False(t, snap.IsLoading)
	assert.ErrorIs(t, snap.Err, apiclient.ErrRefreshFailed)
	assert.EqualValues(t, 1, f.backend.refreshCalls.Load())
	assert.Zero(t, f.backend.logoutCalls.Load())
	assert.Equal(t, domain.CredentialPair{}, f.store.GetTokens(ctx))
	assert.Len(t, *failures, 1)
}

func TestController_DoObservesRefreshFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.controller.Login(ctx, domain.LoginCredentials{Email: studentEmail, Password: password}))

	// The backend forgets the access token; the refresh endpoint refuses too.
	f.backend.mu.Lock()
	f.backend.valid = map[string]bool{}
	f.backend.mu.Unlock()

	_, err := f.controller.Do(ctx, &apiclient.Request{Method: http.MethodGet, Path: apiclient.SessionEndpoint})
	require.ErrorIs(t, err, apiclient.ErrRefreshFailed)

	snap := f.controller.Snapshot()
	assert.Equal(t, StateUnauthenticated, snap.State)
	assert.Nil(t, snap.User)
	assert.Zero(t, f.cache.Len())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "awaiting_mfa", StateAwaitingMFA.String())
	assert.Equal(t, "unknown", State(42).String())
}
