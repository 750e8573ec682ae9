package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ehealth-cst/ehealth-client/internal/api/dto"
	"github.com/ehealth-cst/ehealth-client/internal/service"
)

// FeedHandler serves announcements.
type FeedHandler struct {
	feeds *service.FeedService
}

// NewFeedHandler constructs handler.
func NewFeedHandler(feeds *service.FeedService) *FeedHandler {
	return &FeedHandler{feeds: feeds}
}

// List handles GET /feed/.
func (h *FeedHandler) List(c *fiber.Ctx) error {
	feeds, err := h.feeds.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.FeedsResponse{Message: "Feeds retrieved", Feeds: feeds})
}
