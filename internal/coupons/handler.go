package coupons

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/request"
)

// Handler exposes coupon endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a coupon HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	currency.Input
}

type redeemRequest struct {
	Code string `json:"code" validate:"required,max=32"`
}

// Create handles POST /coupons.
func (h *Handler) Create(c *fiber.Ctx) error {
	creator, err := request.AccountID(c)
	if err != nil {
		return err
	}
	var req createRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	amount, err := req.Resolve()
	if err != nil {
		return err
	}
	coupon, err := h.service.Create(c.UserContext(), creator, amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(couponView(coupon))
}

// Redeem handles POST /coupons/redeem.
func (h *Handler) Redeem(c *fiber.Ctx) error {
	redeemer, err := request.AccountID(c)
	if err != nil {
		return err
	}
	var req redeemRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	res, err := h.service.Redeem(c.UserContext(), redeemer, req.Code)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"amount":         res.Coupon.Amount.View(),
		"balance":        res.Balance.View(),
		"coupon":         couponView(res.Coupon),
	})
}

// Get handles GET /coupons/:code.
func (h *Handler) Get(c *fiber.Ctx) error {
	requester, err := request.AccountID(c)
	if err != nil {
		return err
	}
	coupon, err := h.service.Lookup(c.UserContext(), requester, c.Params("code"))
	if err != nil {
		return err
	}
	return c.JSON(couponView(coupon))
}

func couponView(coupon ledger.Coupon) fiber.Map {
	return fiber.Map{
		"code":        coupon.Code,
		"amount":      coupon.Amount.View(),
		"created_by":  coupon.CreatedBy,
		"is_redeemed": coupon.IsRedeemed,
		"redeemed_by": coupon.RedeemedBy,
		"created_at":  coupon.CreatedAt,
		"redeemed_at": coupon.RedeemedAt,
	}
}
