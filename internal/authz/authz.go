// Package authz decides whether a charge against a stored card is approved.
//
// The engine resolves the card, runs a fixed ordered list of rules and stops
// at the first failing one. It never writes to the card store or ledger;
// applying the outcome (attempt counters, debits, ledger entries) is the
// caller's job.
package authz

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonanatree/paygate/gateway/models"
)

// ErrStoreUnavailable marks card store or ledger failures. Callers must not
// record such failures as denials.
var ErrStoreUnavailable = errors.New("store unavailable")

// CardFinder resolves a presented card number into a stored card. Unknown
// numbers are reported with models.ErrNotFound.
type CardFinder interface {
	FindCardByNumber(ctx context.Context, number string) (*models.Card, error)
}

// AuthorizedCounter answers the velocity question for a card.
type AuthorizedCounter interface {
	CountAuthorizedSince(ctx context.Context, cardID string, since time.Time) (int, error)
}

// Request is the charge as seen by the engine.
type Request struct {
	CardNumber string
	Expiry     string
	CVV        string
	Amount     decimal.Decimal
	TaxID      string
}

// Decision is the engine outcome. Reason is set iff Authorized is false.
// Card is nil when the card number is unknown to the store.
type Decision struct {
	Authorized bool
	Reason     string
	Rule       string
	Card       *models.Card
}

// Sandbox reports whether the decision approved a card unknown to the store.
func (d Decision) Sandbox() bool {
	return d.Authorized && d.Card == nil
}

func approve(card *models.Card) Decision {
	return Decision{Authorized: true, Card: card}
}

func deny(card *models.Card, rule, reason string) Decision {
	return Decision{Reason: reason, Rule: rule, Card: card}
}
