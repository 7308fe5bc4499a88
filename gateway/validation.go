package gateway

import (
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/validate"
)

// ValidationError lists every malformed field of a charge request.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid charge request: " + strings.Join(e.Errors, "; ")
}

var fieldMessages = map[string]map[string]string{
	"FullName": {
		"required":   "full name is required",
		"twowords":   "enter your full name (first and last name)",
		"holdername": "name must contain only letters and spaces",
	},
	"TaxID": {
		"required": "tax ID (RFC) is required",
		"taxid":    "invalid tax ID (RFC); it must have 12 or 13 characters in the official format",
	},
	"CardNumber": {
		"required": "card number is required",
		"min":      "card number must have between 13 and 19 digits",
		"max":      "card number must have between 13 and 19 digits",
		"number":   "card number must contain digits only",
		"luhn":     "invalid card number",
	},
	"Expiry": {
		"required":   "expiry date is required",
		"cardexpiry": "invalid expiry date or card expired",
	},
	"CVV": {
		"required": "CVV is required",
		"cvv":      "invalid CVV",
	},
	"Amount": {
		"chargeamount": "invalid amount; it must be greater than 0 and at most $10,000",
	},
}

// newChargeValidator binds the field checks of internal/validate to validator tags.
func newChargeValidator(now func() time.Time) *validator.Validate {
	v := validator.New()
	// decimal.Decimal is a struct, so the amount is checked at struct level
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		req := sl.Current().Interface().(models.ChargeRequest)
		if req.AmountText != "" || !validate.AmountValue(req.Amount) {
			sl.ReportError(req.AmountText, "amount", "Amount", "chargeamount", "")
		}
	}, models.ChargeRequest{})

	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("twowords", func(fl validator.FieldLevel) bool {
		return len(strings.Fields(fl.Field().String())) >= 2
	})
	must("holdername", func(fl validator.FieldLevel) bool {
		return validate.Name(fl.Field().String())
	})
	must("taxid", func(fl validator.FieldLevel) bool {
		return validate.TaxID(fl.Field().String())
	})
	must("luhn", func(fl validator.FieldLevel) bool {
		return validate.CardNumber(fl.Field().String())
	})
	must("cardexpiry", func(fl validator.FieldLevel) bool {
		return validate.ExpiryAt(fl.Field().String(), now())
	})
	must("cvv", func(fl validator.FieldLevel) bool {
		number := fl.Parent().FieldByName("CardNumber").String()
		return validate.CVV(fl.Field().String(), number)
	})
	return v
}

// normalizeCharge applies the same cleanup the payment form expects.
func normalizeCharge(req models.ChargeRequest) models.ChargeRequest {
	req.FullName = strings.TrimSpace(req.FullName)
	req.TaxID = strings.ToUpper(strings.TrimSpace(req.TaxID))
	req.CardNumber = strings.ReplaceAll(strings.TrimSpace(req.CardNumber), " ", "")
	req.Expiry = strings.TrimSpace(req.Expiry)
	req.CVV = strings.TrimSpace(req.CVV)
	return req
}

// chargeErrors validates req and returns one message per failing field.
func chargeErrors(v *validator.Validate, req models.ChargeRequest) []string {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.StructField() == "Amount" && req.Amount.IsZero() && req.AmountText == "" {
			out = append(out, "amount is required")
			continue
		}
		msg, ok := fieldMessages[fe.StructField()][fe.Tag()]
		if !ok {
			msg = fe.Error()
		}
		out = append(out, msg)
	}
	return out
}
