package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/api/dto"
	"github.com/ehealth-cst/ehealth-client/internal/domain"
	"github.com/ehealth-cst/ehealth-client/internal/service"
	apperrors "github.com/ehealth-cst/ehealth-client/pkg/util/errorutil"
)

// HAHandler serves health-assistant actions.
type HAHandler struct {
	auth   *service.AuthService
	leaves *service.LeaveService
}

// NewHAHandler constructs handler.
func NewHAHandler(authService *service.AuthService, leaves *service.LeaveService) *HAHandler {
	return &HAHandler{auth: authService, leaves: leaves}
}

// ToggleAvailability handles PUT /ha/toggle-availability.
func (h *HAHandler) ToggleAvailability(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	available, err := h.auth.ToggleAvailability(c.UserContext(), p.User.ID)
	if err != nil {
		return err
	}
	msg := "You are now unavailable"
	if available {
		msg = "You are now available"
	}
	return c.JSON(dto.AvailabilityResponse{Message: msg, IsAvailable: available})
}

// SetLeave handles POST /ha/set-leave.
func (h *HAHandler) SetLeave(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req domain.LeaveRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	leave, err := h.leaves.Set(c.UserContext(), p.User.ID, req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.LeaveResponse{Message: "Leave set", Leave: leave})
}

// GetLeave handles GET /ha/get-leave.
func (h *HAHandler) GetLeave(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	leave, err := h.leaves.Current(c.UserContext(), p.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.LeaveResponse{Message: "Leave retrieved", Leave: leave})
}

// CancelLeave handles PUT /ha/cancel-leave.
func (h *HAHandler) CancelLeave(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	leave, err := h.leaves.Cancel(c.UserContext(), p.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(dto.LeaveResponse{Message: "Leave cancelled", Leave: leave})
}
