package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// ChargeRequest is the payment submission; it lives for one authorization decision.
type ChargeRequest struct {
	FullName   string          `json:"full_name" validate:"required,twowords,holdername"`
	TaxID      string          `json:"rfc" validate:"required,taxid"`
	CardNumber string          `json:"card_number" validate:"required,min=13,max=19,number,luhn"`
	Expiry     string          `json:"expiry_date" validate:"required,cardexpiry"`
	CVV        string          `json:"cvv" validate:"required,cvv"`
	Amount     decimal.Decimal `json:"amount" validate:"-"`

	// AmountText is the amount as submitted when it could not be parsed.
	AmountText string `json:"-" validate:"-"`
}

// UnmarshalJSON accepts the amount as a JSON number or string. An amount that
// does not parse is kept in AmountText and reported by validation with the
// other field errors instead of failing the whole body.
func (r *ChargeRequest) UnmarshalJSON(data []byte) error {
	type plain ChargeRequest
	var body struct {
		plain
		Amount json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}
	*r = ChargeRequest(body.plain)

	raw := bytes.TrimSpace(body.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	text := strings.TrimSpace(strings.Trim(string(raw), `"`))
	if text == "" {
		return nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		r.AmountText = text
		return nil
	}
	r.Amount = d
	return nil
}

// PaymentResult is returned for every charge that reached the engine.
type PaymentResult struct {
	Authorized    bool   `json:"authorized"`
	Reason        string `json:"reason,omitempty"`
	TransactionID string `json:"transaction_id"`
	InvoiceNumber string `json:"invoice_number,omitempty"`
}
