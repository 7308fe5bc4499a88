package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Card is a provisioned card as read from the card store. Number holds the
// masked PAN; the clear PAN is never read back from storage.
type Card struct {
	ID             string          `json:"id"`
	Number         string          `json:"number"`
	CardholderName string          `json:"cardholder_name"`
	ExpirationDate string          `json:"expiration_date"` // MM/YY
	CVV            string          `json:"-"`
	Balance        decimal.Decimal `json:"balance"`
	Verified       bool            `json:"verified"`
	Blocked        bool            `json:"blocked"`
	Attempts       int             `json:"attempts"`
	LastAttempt    *time.Time      `json:"last_attempt,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// NewCard is the provisioning input; PAN is accepted in clear and hashed by the store.
type NewCard struct {
	PAN            string          `yaml:"card_number" json:"card_number"`
	CardholderName string          `yaml:"cardholder_name" json:"cardholder_name"`
	ExpirationDate string          `yaml:"expiry_date" json:"expiry_date"`
	CVV            string          `yaml:"cvv" json:"cvv"`
	Balance        decimal.Decimal `yaml:"balance" json:"balance"`
	Verified       bool            `yaml:"is_verified" json:"is_verified"`
	Blocked        bool            `yaml:"is_blocked" json:"is_blocked"`
	Attempts       int             `yaml:"attempts_count" json:"attempts_count"`
}

// CardCheck is the outcome of a card number pre-check shown to the payer.
type CardCheck struct {
	Valid  bool   `json:"valid"`
	Brand  string `json:"card_type"`
	Masked string `json:"masked"`
}

// IssueCard is the provisioning request for a freshly generated card.
type IssueCard struct {
	CardholderName string          `json:"cardholder_name"`
	Balance        decimal.Decimal `json:"balance"`
	Product        string          `json:"product,omitempty"`
}

// IssuedCard carries the clear PAN and CVV. They are returned once, at issuance.
type IssuedCard struct {
	*Card
	PAN      string `json:"card_number"`
	CVV      string `json:"cvv"`
	CardFace string `json:"card_face"`
}
