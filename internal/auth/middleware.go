package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/repository"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

const principalKey = "auth_principal"

// Principal represents the authenticated caller and the session it uses.
type Principal struct {
	User    *domain.User
	Session *domain.Session
}

// AuthMiddleware validates the access token cookie and loads principals.
type AuthMiddleware struct {
	tokens   *TokenManager
	users    repository.UserRepository
	sessions repository.SessionRepository
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, users repository.UserRepository, sessions repository.SessionRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users, sessions: sessions}
}

// Handle enforces authentication for protected routes. A token whose session
// was revoked is rejected even before it expires.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw := c.Cookies(domain.AccessTokenCookie)
	if raw == "" {
		return apperrors.NewUnauthorized("missing access token")
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	ctx := c.UserContext()
	session, err := m.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("session expired")
		}
		return apperrors.NewInternalError(err)
	}
	if session.UserID != claims.Subject {
		return apperrors.NewUnauthorized("invalid token")
	}

	user, err := m.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewUnauthorized("user not found")
		}
		return apperrors.NewInternalError(err)
	}

	c.Locals(principalKey, &Principal{User: user, Session: session})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
