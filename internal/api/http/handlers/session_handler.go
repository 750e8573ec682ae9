package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/api/dto"
	"github.com/ehealth-cst/ehealth-client/internal/auth"
	"github.com/ehealth-cst/ehealth-client/internal/service"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// SessionHandler serves the current session and session management.
type SessionHandler struct {
	auth   *service.AuthService
	leaves *service.LeaveService
}

// NewSessionHandler constructs handler. leaves may be nil.
func NewSessionHandler(authService *service.AuthService, leaves *service.LeaveService) *SessionHandler {
	return &SessionHandler{auth: authService, leaves: leaves}
}

func principal(c *fiber.Ctx) (*auth.Principal, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p.User == nil || p.Session == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return p, nil
}

// Current handles GET /session/.
func (h *SessionHandler) Current(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	user := dto.SessionUserFrom(p.User, p.Session)
	if h.leaves != nil {
		h.leaves.Annotate(c.UserContext(), user)
	}
	return c.JSON(dto.SessionResponse{User: user})
}

// List handles GET /session/all.
func (h *SessionHandler) List(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	sessions, err := h.auth.ListSessions(c.UserContext(), p.User.ID, p.Session.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.SessionsResponse{Message: "Sessions retrieved", Sessions: sessions})
}

// Delete handles DELETE /session/:id.
func (h *SessionHandler) Delete(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.auth.DeleteSession(c.UserContext(), p.User.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(dto.DeleteSessionsResponse{Message: "Session deleted", Deleted: 1})
}

// DeleteAll handles DELETE /session/delete/all. The caller's own session survives.
func (h *SessionHandler) DeleteAll(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	n, err := h.auth.DeleteOtherSessions(c.UserContext(), p.User.ID, p.Session.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.DeleteSessionsResponse{Message: "Other sessions deleted", Deleted: n})
}
