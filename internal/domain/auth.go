package domain

import "time"

// Cookie names used by the backend's cookie-session protocol.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CredentialPair holds the bearer credentials. An empty string means absent.
type CredentialPair struct {
	AccessToken  string
	RefreshToken string
}

// HasAccess reports whether an access token is present.
func (p CredentialPair) HasAccess() bool { return p.AccessToken != "" }

// HasRefresh reports whether a refresh token is present.
func (p CredentialPair) HasRefresh() bool { return p.RefreshToken != "" }

// LoginCredentials is the payload of POST /auth/login.
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MFALogin is the payload of POST /mfa/verify-login.
type MFALogin struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

// Session is one login of a user on the devserver.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	UserAgent string    `json:"userAgent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IsCurrent bool      `json:"isCurrent"`
}
