package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/api/dto"
	"github.com/ehealth-cst/ehealth-client/internal/auth"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/service"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// CookieSettings controls the attributes of the token cookies.
type CookieSettings struct {
	Secure bool
	// RefreshPath scopes the refresh cookie, e.g. /api/v1/auth/refresh.
	RefreshPath string
}

// AuthHandler exposes login, MFA, refresh and logout.
type AuthHandler struct {
	auth    *service.AuthService
	cookies CookieSettings
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService, cookies CookieSettings) *AuthHandler {
	return &AuthHandler{auth: authService, cookies: cookies}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.Login(c.UserContext(), req.Email, req.Password, c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return err
	}
	if res.MFARequired {
		return c.JSON(dto.LoginResponse{Message: "MFA code required", MFARequired: true})
	}

	h.setTokenCookies(c, res.Tokens)
	return c.JSON(dto.LoginResponse{
		Message: "Login successful",
		User:    dto.SessionUserFrom(res.User, res.Tokens.Session),
	})
}

// VerifyMFA handles POST /mfa/verify-login.
func (h *AuthHandler) VerifyMFA(c *fiber.Ctx) error {
	var req dto.VerifyMFARequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	res, err := h.auth.VerifyMFALogin(c.UserContext(), req.Email, req.Code, c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return err
	}

	h.setTokenCookies(c, res.Tokens)
	return c.JSON(dto.LoginResponse{
		Message: "Login successful",
		User:    dto.SessionUserFrom(res.User, res.Tokens.Session),
	})
}

// Refresh handles GET /auth/refresh. The refresh cookie is only sent on this path.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	tokens, err := h.auth.Refresh(c.UserContext(), c.Cookies(domain.RefreshTokenCookie))
	if err != nil {
		h.expireTokenCookies(c)
		return err
	}

	h.setTokenCookies(c, tokens)
	return c.JSON(dto.MessageResponse{Message: "Token refreshed"})
}

// Logout handles POST /auth/logout.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	if err := h.auth.Logout(c.UserContext(), principal.Session.ID); err != nil {
		return err
	}

	h.expireTokenCookies(c)
	return c.JSON(dto.MessageResponse{Message: "Logged out"})
}

func (h *AuthHandler) setTokenCookies(c *fiber.Ctx, tokens *service.IssuedTokens) {
	c.Cookie(&fiber.Cookie{
		Name:     domain.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpires,
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     domain.RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		Path:     h.cookies.RefreshPath,
		Expires:  tokens.RefreshExpires,
		Secure:   h.cookies.Secure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (h *AuthHandler) expireTokenCookies(c *fiber.Ctx) {
	past := time.Now().Add(-24 * time.Hour)
	for name, path := range map[string]string{
		domain.AccessTokenCookie:  "/",
		domain.RefreshTokenCookie: h.cookies.RefreshPath,
	} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Path:     path,
			Expires:  past,
			Secure:   h.cookies.Secure,
			HTTPOnly: true,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
}
