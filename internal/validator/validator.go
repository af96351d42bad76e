// Package validator configures go-playground/validator for request DTOs.
package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"ledger/internal/core"
)

var hexColorRegex = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// New returns a validator with the ledger's custom tags registered and
// field names reported by their json tag.
func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("hex_color", validateHexColor)
	_ = v.RegisterValidation("amount", validateAmount)
	_ = v.RegisterValidation("rate", validateRate)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
	_ = v.RegisterValidation("investment_category", validateInvestmentCategory)
	return v
}

func validateHexColor(fl validator.FieldLevel) bool {
	return hexColorRegex.MatchString(fl.Field().String())
}

func validateAmount(fl validator.FieldLevel) bool {
	_, err := core.ParseAmount(fl.Field().String())
	return err == nil
}

func validateRate(fl validator.FieldLevel) bool {
	_, err := core.ParseRate(fl.Field().String())
	return err == nil
}

func validateTransactionType(fl validator.FieldLevel) bool {
	return core.TransactionType(fl.Field().String()).Valid()
}

func validateInvestmentCategory(fl validator.FieldLevel) bool {
	return core.InvestmentCategory(fl.Field().String()).Valid()
}

// FieldErrors flattens validation failures into field -> rule messages.
// It returns nil when err is not a validation error.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		msg := fe.Tag()
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s=%s", fe.Tag(), fe.Param())
		}
		out[fe.Field()] = msg
	}
	return out
}

// Number is a JSON number that also accepts a quoted decimal with a comma
// separator, as typed into a form.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*n = Number(num.String())
	return nil
}
