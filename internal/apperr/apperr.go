// Package apperr maps domain failures to HTTP statuses and stable error codes.
package apperr

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/currency"
	"github.com/friendcoin/friendcoin/internal/ledger"
)

// Error codes returned to API clients.
const (
	CodeInvalidFormat            = "INVALID_FORMAT"
	CodeInvalidAmount            = "INVALID_AMOUNT"
	CodeInsufficientFunds        = "INSUFFICIENT_FUNDS"
	CodeAccountNotFound          = "ACCOUNT_NOT_FOUND"
	CodeRecipientNotFound        = "RECIPIENT_NOT_FOUND"
	CodeSameAccount              = "SAME_ACCOUNT"
	CodeActiveLoanExists         = "ACTIVE_LOAN_EXISTS"
	CodeAccountRestricted        = "ACCOUNT_RESTRICTED"
	CodeCirculationLimitExceeded = "CIRCULATION_LIMIT_EXCEEDED"
	CodeCirculationNegative      = "CIRCULATION_NEGATIVE"
	CodeLoanNotFound             = "LOAN_NOT_FOUND"
	CodeCouponNotFound           = "COUPON_NOT_FOUND"
	CodeProductNotFound          = "PRODUCT_NOT_FOUND"
	CodeInsufficientStock        = "INSUFFICIENT_STOCK"
	CodeConflict                 = "CONFLICT"
	CodeValidation               = "VALIDATION_FAILED"
	CodeUnauthorized             = "UNAUTHORIZED"
	CodeInternal                 = "INTERNAL"
)

// Error is a failure the API reports to its caller.
type Error struct {
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an API error.
func New(status int, code, message string, err error) *Error {
	return &Error{Status: status, Code: code, Message: message, Err: err}
}

// Validation reports a malformed request body.
func Validation(message string, err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, message, err)
}

type mapping struct {
	target error
	status int
	code   string
}

var known = []mapping{
	{currency.ErrFormat, http.StatusBadRequest, CodeInvalidFormat},
	{ledger.ErrInvalidAmount, http.StatusBadRequest, CodeInvalidAmount},
	{ledger.ErrInsufficientFunds, http.StatusBadRequest, CodeInsufficientFunds},
	{ledger.ErrSameAccount, http.StatusBadRequest, CodeSameAccount},
	{ledger.ErrAccountNotFound, http.StatusNotFound, CodeAccountNotFound},
	{ledger.ErrRecipientNotFound, http.StatusNotFound, CodeRecipientNotFound},
	{ledger.ErrLoanNotFound, http.StatusNotFound, CodeLoanNotFound},
	{ledger.ErrCouponNotFound, http.StatusNotFound, CodeCouponNotFound},
	{ledger.ErrProductNotFound, http.StatusNotFound, CodeProductNotFound},
	{ledger.ErrAccountRestricted, http.StatusForbidden, CodeAccountRestricted},
	{ledger.ErrActiveLoanExists, http.StatusConflict, CodeActiveLoanExists},
	{ledger.ErrCirculationLimitExceeded, http.StatusConflict, CodeCirculationLimitExceeded},
	{ledger.ErrCirculationNegative, http.StatusConflict, CodeCirculationNegative},
	{ledger.ErrInsufficientStock, http.StatusConflict, CodeInsufficientStock},
	{ledger.ErrConflict, http.StatusConflict, CodeConflict},
	{ledger.ErrDuplicateCoupon, http.StatusConflict, CodeConflict},
}

// From classifies err. Anything that is not a known domain failure becomes a
// generic 500 whose message does not leak the cause.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, m := range known {
		if errors.Is(err, m.target) {
			return New(m.status, m.code, m.target.Error(), err)
		}
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return New(fe.Code, codeForStatus(fe.Code), fe.Message, err)
	}
	return New(http.StatusInternalServerError, CodeInternal, "internal error", err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusInternalServerError:
		return CodeInternal
	}
	text := http.StatusText(status)
	if text == "" {
		return CodeInternal
	}
	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// Handler renders every error returned by a route as
// {"error": code, "message": message}.
func Handler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		e := From(err)
		if e.Status >= http.StatusInternalServerError && logger != nil {
			logger.Error("request failed", slog.String("path", c.Path()), slog.Any("error", err))
		}
		return c.Status(e.Status).JSON(fiber.Map{
			"error":   e.Code,
			"message": e.Message,
		})
	}
}
