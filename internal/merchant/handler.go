package merchant

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/request"
)

// Handler exposes merchant session endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a merchant HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createSessionRequest struct {
	Reference string `json:"reference" validate:"required,max=128"`
	currency.Input
}

// Create handles POST /merchant/sessions. The authenticated account is the
// merchant being paid.
func (h *Handler) Create(c *fiber.Ctx) error {
	merchant, err := request.AccountID(c)
	if err != nil {
		return err
	}
	var req createSessionRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	amount, err := req.Resolve()
	if err != nil {
		return err
	}
	session, err := h.service.CreateSession(c.UserContext(), merchant, amount, req.Reference)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(sessionView(session))
}

// Pay handles POST /merchant/sessions/:id/pay.
func (h *Handler) Pay(c *fiber.Ctx) error {
	payer, err := request.AccountID(c)
	if err != nil {
		return err
	}
	session, err := h.service.PaySession(c.UserContext(), c.Params("id"), payer)
	if err != nil {
		return err
	}
	return c.JSON(sessionView(session))
}

// Validate handles GET /merchant/sessions/:id.
func (h *Handler) Validate(c *fiber.Ctx) error {
	merchant, err := request.AccountID(c)
	if err != nil {
		return err
	}
	session, err := h.service.ValidateSession(c.UserContext(), c.Params("id"), merchant)
	if err != nil {
		return err
	}
	return c.JSON(sessionView(session))
}

func sessionView(s Session) fiber.Map {
	return fiber.Map{
		"id":             s.ID,
		"merchant":       s.Merchant,
		"amount":         s.Amount.View(),
		"reference":      s.Reference,
		"status":         s.Status,
		"paid_by":        s.PaidBy,
		"transaction_id": s.TransactionID,
		"expires_at":     s.ExpiresAt,
	}
}
