package authz

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/validate"
)

const (
	MaxAttempts    = 3
	VelocityLimit  = 5
	VelocityWindow = time.Hour
)

// TransactionCeiling is the largest amount a single charge may carry.
var TransactionCeiling = decimal.NewFromInt(10_000)

// Denial reasons. Each rule reports exactly one of these.
const (
	ReasonUnknownCard      = "card is not verified or not registered"
	ReasonNotVerified      = "card is not verified"
	ReasonExpired          = "invalid expiry date or card expired"
	ReasonCVV              = "incorrect security code (CVV)"
	ReasonAttempts         = "attempt limit exceeded; card temporarily blocked"
	ReasonTransactionLimit = "amount exceeds the maximum transaction limit ($10,000)"
	ReasonVelocity         = "hourly transaction limit exceeded (maximum 5)"
)

// InsufficientFundsReason renders the balance denial with the available balance.
func InsufficientFundsReason(balance decimal.Decimal) string {
	return fmt.Sprintf("insufficient funds; available balance: $%s", balance.StringFixed(2))
}

// Evaluation is the state shared by every rule of one authorization.
type Evaluation struct {
	Card    *models.Card
	Request Request
	Now     time.Time
	ledger  AuthorizedCounter
}

// AuthorizedInWindow counts authorized charges against the card in the trailing window.
func (e *Evaluation) AuthorizedInWindow(ctx context.Context, window time.Duration) (int, error) {
	return e.ledger.CountAuthorizedSince(ctx, e.Card.ID, e.Now.Add(-window))
}

// Verdict is a single rule outcome; an empty Reason means the rule passed.
type Verdict struct {
	Reason string
}

func pass() Verdict { return Verdict{} }

func fail(reason string) Verdict { return Verdict{Reason: reason} }

func (v Verdict) Passed() bool { return v.Reason == "" }

// Rule is one predicate of the pipeline. Errors are infrastructure failures only.
type Rule interface {
	Name() string
	Check(ctx context.Context, ev *Evaluation) (Verdict, error)
}

type ruleFunc struct {
	name  string
	check func(ctx context.Context, ev *Evaluation) (Verdict, error)
}

func (r ruleFunc) Name() string { return r.name }

func (r ruleFunc) Check(ctx context.Context, ev *Evaluation) (Verdict, error) {
	return r.check(ctx, ev)
}

func pure(name string, check func(ev *Evaluation) Verdict) Rule {
	return ruleFunc{name: name, check: func(_ context.Context, ev *Evaluation) (Verdict, error) {
		return check(ev), nil
	}}
}

// DefaultRules returns the pipeline in evaluation order. Order decides which
// reason is reported when several rules would fail.
func DefaultRules() []Rule {
	return []Rule{
		pure("verified", checkVerified),
		pure("expiry", checkExpiry),
		pure("cvv", checkCVV),
		pure("attempts", checkAttempts),
		pure("balance", checkBalance),
		pure("transaction_limit", checkTransactionLimit),
		ruleFunc{name: "velocity", check: checkVelocity},
	}
}

func checkVerified(ev *Evaluation) Verdict {
	if !ev.Card.Verified {
		return fail(ReasonNotVerified)
	}
	return pass()
}

func checkExpiry(ev *Evaluation) Verdict {
	if !validate.ExpiryAt(ev.Request.Expiry, ev.Now) {
		return fail(ReasonExpired)
	}
	return pass()
}

func checkCVV(ev *Evaluation) Verdict {
	if ev.Request.CVV != ev.Card.CVV || !validate.CVV(ev.Request.CVV, ev.Request.CardNumber) {
		return fail(ReasonCVV)
	}
	return pass()
}

func checkAttempts(ev *Evaluation) Verdict {
	if ev.Card.Attempts >= MaxAttempts {
		return fail(ReasonAttempts)
	}
	return pass()
}

func checkBalance(ev *Evaluation) Verdict {
	if ev.Card.Balance.LessThan(ev.Request.Amount) {
		return fail(InsufficientFundsReason(ev.Card.Balance))
	}
	return pass()
}

func checkTransactionLimit(ev *Evaluation) Verdict {
	if ev.Request.Amount.GreaterThan(TransactionCeiling) {
		return fail(ReasonTransactionLimit)
	}
	return pass()
}

func checkVelocity(ctx context.Context, ev *Evaluation) (Verdict, error) {
	n, err := ev.AuthorizedInWindow(ctx, VelocityWindow)
	if err != nil {
		return Verdict{}, err
	}
	if n >= VelocityLimit {
		return fail(ReasonVelocity), nil
	}
	return pass(), nil
}
