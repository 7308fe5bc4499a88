package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonanatree/paygate/gateway/models"
)

type Engine struct {
	cards   CardFinder
	ledger  AuthorizedCounter
	rules   []Rule
	sandbox bool
	now     func() time.Time
}

type Option func(*Engine)

// WithSandbox approves card numbers unknown to the store instead of denying them.
func WithSandbox(enabled bool) Option {
	return func(e *Engine) { e.sandbox = enabled }
}

// WithClock replaces time.Now for expiry and velocity evaluation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRules replaces the default pipeline.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) { e.rules = rules }
}

func NewEngine(cards CardFinder, ledger AuthorizedCounter, opts ...Option) *Engine {
	e := &Engine{
		cards:  cards,
		ledger: ledger,
		rules:  DefaultRules(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize runs the rule pipeline for req. A returned error always wraps
// ErrStoreUnavailable; denials are reported through the Decision.
func (e *Engine) Authorize(ctx context.Context, req Request) (Decision, error) {
	card, err := e.cards.FindCardByNumber(ctx, req.CardNumber)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return Decision{}, fmt.Errorf("%w: finding card: %v", ErrStoreUnavailable, err)
		}
		if e.sandbox {
			return approve(nil), nil
		}
		return deny(nil, "card_lookup", ReasonUnknownCard), nil
	}

	ev := &Evaluation{
		Card:    card,
		Request: req,
		Now:     e.now(),
		ledger:  e.ledger,
	}
	for _, rule := range e.rules {
		verdict, err := rule.Check(ctx, ev)
		if err != nil {
			return Decision{}, fmt.Errorf("%w: rule %s: %v", ErrStoreUnavailable, rule.Name(), err)
		}
		if !verdict.Passed() {
			return deny(card, rule.Name(), verdict.Reason), nil
		}
	}
	return approve(card), nil
}
