package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/api/dto"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/service"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// UserHandler serves the caller's profile.
type UserHandler struct {
	profiles *service.ProfileService
}

// NewUserHandler constructs handler.
func NewUserHandler(profiles *service.ProfileService) *UserHandler {
	return &UserHandler{profiles: profiles}
}

// UpdateProfile handles PUT /user/update.
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req domain.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	user, err := h.profiles.Update(c.UserContext(), p.User.ID, req)
	if err != nil {
		return err
	}
	return c.JSON(dto.ProfileResponse{Message: "Profile updated", User: dto.SessionUserFrom(user, p.Session)})
}

// Programmes handles GET /user/programmes.
func (h *UserHandler) Programmes(c *fiber.Ctx) error {
	list, err := h.profiles.Programmes(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.ProgrammesResponse{Message: "Programmes retrieved", Departments: list})
}
