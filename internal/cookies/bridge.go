// Package cookies mirrors the stored credential pair into the HTTP cookie jar
// in the shape the backend's cookie-session protocol expects.
package cookies

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
)

// RefreshEndpoint is the refresh path relative to the API base URL.
const RefreshEndpoint = "/auth/refresh"

// NewJar returns a cookie jar using the public suffix list for domain checks.
func NewJar() (http.CookieJar, error) {
	return cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
}

// Bridge writes and clears the token cookies for one backend.
type Bridge struct {
	jar         http.CookieJar
	base        *url.URL
	domain      string
	refreshPath string
	logger      *zap.Logger
	now         func() time.Time
}

// NewBridge builds a bridge for the backend at baseURL.
func NewBridge(jar http.CookieJar, baseURL string, logger *zap.Logger) (*Bridge, error) {
	if jar == nil {
		return nil, errors.New("cookie jar is required")
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		jar:         jar,
		base:        base,
		domain:      DomainFromURL(baseURL),
		refreshPath: base.Path + RefreshEndpoint,
		logger:      logger.Named("cookies"),
		now:         time.Now,
	}, nil
}

// Domain returns the cookie domain derived from the base URL.
func (b *Bridge) Domain() string { return b.domain }

// RefreshPath returns the absolute path the refresh cookie is scoped to.
func (b *Bridge) RefreshPath() string { return b.refreshPath }

// SyncAccessCookie writes the access token cookie at path "/".
func (b *Bridge) SyncAccessCookie(token string) error {
	return b.set(&http.Cookie{
		Name:   domain.AccessTokenCookie,
		Value:  token,
		Path:   "/",
		Domain: b.domain,
	})
}

// SyncRefreshCookie writes the refresh token cookie scoped to the refresh
// endpoint only, so ordinary requests never carry it.
func (b *Bridge) SyncRefreshCookie(token string) error {
	return b.set(&http.Cookie{
		Name:   domain.RefreshTokenCookie,
		Value:  token,
		Path:   b.refreshPath,
		Domain: b.domain,
	})
}

func (b *Bridge) set(c *http.Cookie) error {
	if c.Value == "" {
		return fmt.Errorf("empty %s", c.Name)
	}
	if b.domain == "" {
		return fmt.Errorf("no cookie domain for %s", b.base)
	}
	b.jar.SetCookies(b.base, []*http.Cookie{c})
	return nil
}

// ClearCookies expires both token cookies for the root path and the refresh
// path. Safe to call when nothing is set.
func (b *Bridge) ClearCookies() {
	if b.domain == "" {
		b.logger.Warn("could not determine cookie domain; skipping clear", zap.String("base_url", b.base.String()))
		return
	}
	expired := b.now().AddDate(0, 0, -1)

	var stale []*http.Cookie
	for _, path := range []string{"/", b.refreshPath} {
		for _, name := range []string{domain.AccessTokenCookie, domain.RefreshTokenCookie} {
			stale = append(stale, &http.Cookie{
				Name:    name,
				Value:   "",
				Path:    path,
				Domain:  b.domain,
				Expires: expired,
			})
		}
	}
	b.jar.SetCookies(b.base, stale)
	b.logger.Debug("cookies cleared", zap.String("domain", b.domain))
}

// Tokens reads the pair currently held by the jar: the access token as sent to
// the API root, the refresh token as sent to the refresh endpoint.
func (b *Bridge) Tokens() domain.CredentialPair {
	refreshURL := *b.base
	refreshURL.Path = b.refreshPath

	return domain.CredentialPair{
		AccessToken:  lookup(fromJar(b.jar.Cookies(b.base)), domain.AccessTokenCookie),
		RefreshToken: lookup(fromJar(b.jar.Cookies(&refreshURL)), domain.RefreshTokenCookie),
	}
}

// TokensFromResponse extracts the pair a backend response set. Expired or
// empty cookies count as absent.
func (b *Bridge) TokensFromResponse(set []*http.Cookie) domain.CredentialPair {
	values := make(map[string]CookieValue, len(set))
	now := b.now()
	for _, c := range set {
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			continue
		}
		values[c.Name] = StructuredValue{Value: c.Value, Path: c.Path, Domain: c.Domain, Expires: c.Expires}
	}
	return domain.CredentialPair{
		AccessToken:  lookup(values, domain.AccessTokenCookie),
		RefreshToken: lookup(values, domain.RefreshTokenCookie),
	}
}

func fromJar(cs []*http.Cookie) map[string]CookieValue {
	out := make(map[string]CookieValue, len(cs))
	for _, c := range cs {
		// The jar only exposes name and value.
		out[c.Name] = PlainValue(c.Value)
	}
	return out
}

func lookup(values map[string]CookieValue, name string) string {
	return Normalize(values[name])
}

// DomainFromURL strips the scheme, everything after the first "/" and any port.
// Malformed or empty input yields "".
func DomainFromURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	if i := strings.IndexByte(s, ':'); i >= 0 {
		s = s[:i]
	}
	return s
}
