// Package request decodes and validates HTTP request bodies and identifies the
// acting account.
package request

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/friendcoin/friendcoin/internal/apperr"
)

// AccountKey is the fiber.Locals key holding the authenticated account id.
const AccountKey = "account_id"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Bind parses the JSON body into dst and runs its `validate` struct tags.
func Bind(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return apperr.Validation("invalid request body", err)
	}
	if err := validate.Struct(dst); err != nil {
		return apperr.Validation(describe(err), err)
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// AccountID returns the authenticated account id or a 401.
func AccountID(c *fiber.Ctx) (string, error) {
	id, _ := c.Locals(AccountKey).(string)
	if id == "" {
		return "", fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	return id, nil
}
