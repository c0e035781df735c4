package payments

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/request"
)

// Handler exposes payment endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type transferRequest struct {
	Recipient string `json:"recipient" validate:"required,max=128"`
	Notes     string `json:"notes" validate:"max=280"`
	currency.Input
}

// Transfer sends coins from the authenticated account. The amount may be the
// integer pair, a "12.34f€" string or free-form numeric text such as "12.5".
func (h *Handler) Transfer(c *fiber.Ctx) error {
	from, err := request.AccountID(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	amount, err := req.Input.ResolveLoose()
	if err != nil {
		return err
	}

	res, err := h.service.Transfer(c.UserContext(), TransferInput{
		From:   from,
		To:     req.Recipient,
		Amount: amount,
		Notes:  req.Notes,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"amount":         res.Amount.View(),
		"tax":            res.Tax.View(),
		"from_balance":   res.SenderBalance.View(),
		"to_balance":     res.RecipientBalance.View(),
		"completed_at":   res.CompletedAt,
	})
}
