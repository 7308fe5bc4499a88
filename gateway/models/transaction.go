package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type TransactionStatus string

const (
	TransactionStatusAuthorized TransactionStatus = "authorized"
	TransactionStatusRejected   TransactionStatus = "rejected"
)

var ErrInvalidTransaction = errors.New("invalid transaction")

// Payer identifies who is paying, independently of the card.
type Payer struct {
	Name  string `json:"name"`
	TaxID string `json:"tax_id"`
}

// Transaction is an immutable ledger entry, one per charge attempt.
// CardID is nil when the charge ran against a card unknown to the store.
type Transaction struct {
	ID              string            `json:"id"`
	Amount          decimal.Decimal   `json:"amount"`
	Status          TransactionStatus `json:"status"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	CardID          *string           `json:"card_id,omitempty"`
	Payer           Payer             `json:"payer"`
	InvoiceNumber   string            `json:"invoice_number,omitempty"`
}

// Validate enforces authorized ⇔ invoice number present ⇔ no rejection reason.
func (t *Transaction) Validate() error {
	switch t.Status {
	case TransactionStatusAuthorized:
		if t.InvoiceNumber == "" || t.RejectionReason != "" {
			return fmt.Errorf("%w: authorized transaction needs an invoice number and no reason", ErrInvalidTransaction)
		}
	case TransactionStatusRejected:
		if t.InvoiceNumber != "" || t.RejectionReason == "" {
			return fmt.Errorf("%w: rejected transaction needs a reason and no invoice number", ErrInvalidTransaction)
		}
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, t.Status)
	}
	return nil
}

// TransactionFilter narrows ListTransactions; zero values match everything.
type TransactionFilter struct {
	CardID string
	Status TransactionStatus
	Limit  int
}

// Summary aggregates ledger outcomes since a point in time.
type Summary struct {
	Since           time.Time       `json:"since"`
	Authorized      int             `json:"authorized"`
	Rejected        int             `json:"rejected"`
	AuthorizedTotal decimal.Decimal `json:"authorized_total"`
}
