package circulation

import (
	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/request"
)

// Handler exposes the circulation counter.
type Handler struct {
	service *Service
}

// NewHandler builds a circulation HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type adjustRequest struct {
	Delta  int64  `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=280"`
}

// Get handles GET /circulation.
func (h *Handler) Get(c *fiber.Ctx) error {
	status, err := h.service.Status(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(status)
}

// Adjust handles POST /circulation.
func (h *Handler) Adjust(c *fiber.Ctx) error {
	var req adjustRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	status, err := h.service.Adjust(c.UserContext(), req.Delta, req.Reason)
	if err != nil {
		return err
	}
	return c.JSON(status)
}
