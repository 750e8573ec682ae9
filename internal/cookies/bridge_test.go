package cookies

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

const testBase = "https://api.ehealth.test/api/v1"

func newBridge(t *testing.T) (*Bridge, http.CookieJar) {
	t.Helper()
	jar, err := NewJar()
	require.NoError(t, err)
	b, err := NewBridge(jar, testBase, nil)
	require.NoError(t, err)
	return b, jar
}

func cookieMap(jar http.CookieJar, raw string) map[string]string {
	u, _ := url.Parse(raw)
	out := map[string]string{}
	for _, c := range jar.Cookies(u) {
		out[c.Name] = c.Value
	}
	return out
}

func TestDomainFromURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/api/v1", "example.com"},
		{"example.com:8443/path", "example.com"},
		{"", ""},
		{"http://localhost:3000", "localhost"},
		{"https://e-health-backend.onrender.com/api/v1", "e-health-backend.onrender.com"},
		{"://", ""},
		{"   ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DomainFromURL(tt.in), "input %q", tt.in)
	}
}

func TestBridge_RefreshPath(t *testing.T) {
	b, _ := newBridge(t)
	assert.Equal(t, "/api/v1/auth/refresh", b.RefreshPath())
	assert.Equal(t, "api.ehealth.test", b.Domain())
}

func TestBridge_AccessCookieSentEverywhere(t *testing.T) {
	b, jar := newBridge(t)
	require.NoError(t, b.SyncAccessCookie("acc"))

	assert.Equal(t, "acc", cookieMap(jar, testBase+"/session/")[domain.AccessTokenCookie])
	assert.Equal(t, "acc", cookieMap(jar, "https://api.ehealth.test/")[domain.AccessTokenCookie])
}

func TestBridge_RefreshCookieScopedToRefreshPath(t *testing.T) {
	b, jar := newBridge(t)
	require.NoError(t, b.SyncRefreshCookie("ref"))

	assert.NotContains(t, cookieMap(jar, testBase+"/session/"), domain.RefreshTokenCookie)
	assert.Equal(t, "ref", cookieMap(jar, testBase+"/auth/refresh")[domain.RefreshTokenCookie])
}

func TestBridge_SyncRejectsEmptyToken(t *testing.T) {
	b, _ := newBridge(t)
	require.Error(t, b.SyncAccessCookie(""))
	require.Error(t, b.SyncRefreshCookie(""))
}

func TestBridge_ClearCookiesIsIdempotent(t *testing.T) {
	b, jar := newBridge(t)

	assert.NotPanics(t, b.ClearCookies)

	require.NoError(t, b.SyncAccessCookie("acc"))
	require.NoError(t, b.SyncRefreshCookie("ref"))
	assert.Equal(t, domain.CredentialPair{AccessToken: "acc", RefreshToken: "ref"}, b.Tokens())

	b.ClearCookies()
	b.ClearCookies()

	assert.Empty(t, cookieMap(jar, testBase+"/auth/refresh"))
	assert.Equal(t, domain.CredentialPair{}, b.Tokens())
}

func TestBridge_TokensFromResponse(t *testing.T) {
	b, _ := newBridge(t)
	past := time.Now().Add(-time.Hour)

	got := b.TokensFromResponse([]*http.Cookie{
		{Name: domain.AccessTokenCookie, Value: "new-acc", Path: "/"},
		{Name: domain.RefreshTokenCookie, Value: "new-ref", Path: "/api/v1/auth/refresh"},
		{Name: "other", Value: "x"},
	})
	assert.Equal(t, domain.CredentialPair{AccessToken: "new-acc", RefreshToken: "new-ref"}, got)

	expired := b.TokensFromResponse([]*http.Cookie{
		{Name: domain.AccessTokenCookie, Value: "", Expires: past},
		{Name: domain.RefreshTokenCookie, Value: "stale", MaxAge: -1},
	})
	assert.Equal(t, domain.CredentialPair{}, expired)
}

func TestBridge_EmptyDomainSkipsWrites(t *testing.T) {
	jar, err := NewJar()
	require.NoError(t, err)
	b, err := NewBridge(jar, "", nil)
	require.NoError(t, err)

	require.Error(t, b.SyncAccessCookie("acc"))
	assert.NotPanics(t, b.ClearCookies)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "plain", Normalize(PlainValue("plain")))
	assert.Equal(t, "structured", Normalize(StructuredValue{Value: "structured", Path: "/"}))
	assert.Equal(t, "", Normalize(nil))
}
