package accounts

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/apperr"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/request"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Open registers the authenticated account.
func (h *Handler) Open(c *fiber.Ctx) error {
	id, err := request.AccountID(c)
	if err != nil {
		return err
	}
	acc, err := h.service.Open(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":         acc.ID,
		"balance":    acc.Balance.View(),
		"created_at": acc.CreatedAt,
	})
}

// Balance returns the authenticated account's balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	id, err := request.AccountID(c)
	if err != nil {
		return err
	}
	balance, err := h.service.Balance(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": balance.AccountID,
		"balance":    balance.Amount.View(),
		"timestamp":  balance.AsOf,
	})
}

// Transactions lists the authenticated account's history.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	id, err := request.AccountID(c)
	if err != nil {
		return err
	}
	records, err := h.service.History(c.UserContext(), id, c.QueryInt("limit"))
	if err != nil {
		return err
	}
	if records == nil {
		records = []ledger.Transaction{}
	}
	return c.JSON(fiber.Map{"account_id": id, "transactions": records})
}

type restrictRequest struct {
	Kind     string `json:"kind" validate:"omitempty,oneof=banking_disabled"`
	Reason   string `json:"reason" validate:"required,max=280"`
	Duration string `json:"duration"`
}

// Restrict places a restriction on the account in the path.
func (h *Handler) Restrict(c *fiber.Ctx) error {
	var req restrictRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	var d time.Duration
	if req.Duration != "" {
		var err error
		if d, err = time.ParseDuration(req.Duration); err != nil || d < 0 {
			return apperr.Validation("duration must be a positive Go duration such as 72h", err)
		}
	}
	r, err := h.service.Restrict(c.UserContext(), RestrictInput{
		AccountID: c.Params("id"),
		Kind:      req.Kind,
		Reason:    req.Reason,
		Duration:  d,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(r)
}
