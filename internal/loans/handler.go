package loans

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/request"
)

// Handler exposes loan HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a loan HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type amountRequest struct {
	currency.Input
}

// Issue handles POST /loans.
func (h *Handler) Issue(c *fiber.Ctx) error {
	borrower, err := request.AccountID(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	amount, err := req.Resolve()
	if err != nil {
		return err
	}

	loan, err := h.service.Issue(c.UserContext(), borrower, amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(loanView(loan))
}

// List handles GET /loans.
func (h *Handler) List(c *fiber.Ctx) error {
	borrower, err := request.AccountID(c)
	if err != nil {
		return err
	}
	loans, err := h.service.List(c.UserContext(), borrower)
	if err != nil {
		return err
	}
	out := make([]fiber.Map, 0, len(loans))
	for _, loan := range loans {
		out = append(out, loanView(loan))
	}
	return c.JSON(fiber.Map{"loans": out})
}

// Repay handles POST /loans/:loanId/payments.
func (h *Handler) Repay(c *fiber.Ctx) error {
	borrower, err := request.AccountID(c)
	if err != nil {
		return err
	}
	var req amountRequest
	if err := request.Bind(c, &req); err != nil {
		return err
	}
	amount, err := req.Resolve()
	if err != nil {
		return err
	}

	res, err := h.service.Repay(c.UserContext(), borrower, c.Params("loanId"), amount)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"paid":           res.Paid.View(),
		"balance":        res.Balance.View(),
		"loan":           loanView(res.Loan),
	})
}

func loanView(loan ledger.Loan) fiber.Map {
	return fiber.Map{
		"id":          loan.ID,
		"borrower":    loan.Borrower,
		"principal":   loan.Principal.View(),
		"amount_paid": loan.AmountPaid.View(),
		"remaining":   loan.Remaining().View(),
		"status":      loan.Status,
		"due_date":    loan.DueDate,
		"created_at":  loan.CreatedAt,
	}
}
