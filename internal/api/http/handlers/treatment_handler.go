package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/api/dto"
	"github.com/ehealth-cst/ehealth-client/internal/service"
)

// TreatmentHandler serves treatment history.
type TreatmentHandler struct {
	treatments *service.TreatmentService
}

// NewTreatmentHandler constructs handler.
func NewTreatmentHandler(treatments *service.TreatmentService) *TreatmentHandler {
	return &TreatmentHandler{treatments: treatments}
}

// ForPatient handles GET /treatment/patient/:id.
func (h *TreatmentHandler) ForPatient(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	list, err := h.treatments.ForPatient(c.UserContext(), p.User, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.TreatmentsResponse{Message: "Treatments retrieved", Treatments: list})
}
