package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/accounts"
	"github.com/friendcoin/friendcoin/internal/circulation"
	"github.com/friendcoin/friendcoin/internal/coupons"
	"github.com/friendcoin/friendcoin/internal/loans"
	"github.com/friendcoin/friendcoin/internal/market"
	"github.com/friendcoin/friendcoin/internal/merchant"
	"github.com/friendcoin/friendcoin/internal/payments"
)

// RegisterAccountRoutes wires account endpoints.
func RegisterAccountRoutes(r fiber.Router, h *accounts.Handler, admin fiber.Handler) {
	r.Post("/accounts", h.Open)
	r.Get("/accounts/me/balance", h.Balance)
	r.Get("/accounts/me/transactions", h.Transactions)
	r.Post("/accounts/:id/restrictions", admin, h.Restrict)
}

// RegisterPaymentRoutes wires peer transfer endpoints.
func RegisterPaymentRoutes(r fiber.Router, h *payments.Handler) {
	r.Post("/transfers", h.Transfer)
}

// RegisterLoanRoutes wires loan endpoints.
func RegisterLoanRoutes(r fiber.Router, h *loans.Handler) {
	r.Post("/loans", h.Issue)
	r.Get("/loans", h.List)
	r.Post("/loans/:loanId/payments", h.Repay)
}

// RegisterCouponRoutes wires coupon endpoints.
func RegisterCouponRoutes(r fiber.Router, h *coupons.Handler) {
	r.Post("/coupons", h.Create)
	r.Post("/coupons/redeem", h.Redeem)
	r.Get("/coupons/:code", h.Get)
}

// RegisterMarketRoutes wires marketplace endpoints.
func RegisterMarketRoutes(r fiber.Router, h *market.Handler, admin fiber.Handler) {
	r.Get("/products", h.List)
	r.Post("/products/:productId/purchase", h.Purchase)
	r.Put("/products/:productId", admin, h.Upsert)
}

// RegisterMerchantRoutes wires merchant payment session endpoints.
func RegisterMerchantRoutes(r fiber.Router, h *merchant.Handler) {
	r.Post("/merchant/sessions", h.Create)
	r.Post("/merchant/sessions/:id/pay", h.Pay)
	r.Get("/merchant/sessions/:id", h.Validate)
}

// RegisterCirculationRoutes wires the circulation counter endpoints.
func RegisterCirculationRoutes(r fiber.Router, h *circulation.Handler, admin fiber.Handler) {
	r.Get("/circulation", h.Get)
	r.Post("/circulation", admin, h.Adjust)
}
