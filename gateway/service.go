package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/authz"
	"github.com/jonanatree/paygate/internal/cardgen"
)

type Service struct {
	repo     *Repository
	cfg      *Config
	engine   *authz.Engine
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

type ServiceOption func(*Service)

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// WithClock replaces time.Now for validation, rules, timestamps and invoice numbers.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(repo *Repository, cfg *Config, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Service{
		repo:   repo,
		cfg:    cfg,
		logger: slog.New(slog.NewTextHandler(io.Discard)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = authz.NewEngine(repo, repo, authz.WithSandbox(cfg.Sandbox), authz.WithClock(s.now))
	s.validate = newChargeValidator(s.now)
	return s
}

// Pay validates the charge, asks the engine for a decision and records the
// outcome. Malformed input yields *ValidationError; storage failures wrap
// authz.ErrStoreUnavailable and leave no transaction behind.
func (s *Service) Pay(ctx context.Context, req models.ChargeRequest) (*models.PaymentResult, error) {
	req = normalizeCharge(req)
	if errs := chargeErrors(s.validate, req); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	decision, err := s.engine.Authorize(ctx, authz.Request{
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
		Amount:     req.Amount,
		TaxID:      req.TaxID,
	})
	if err != nil {
		s.logger.Error("authorizing charge", slog.String("card", cardgen.MaskPAN(req.CardNumber)), slog.Any("err", err))
		return nil, err
	}

	now := s.now()
	payer := models.Payer{Name: req.FullName, TaxID: req.TaxID}
	var result *models.PaymentResult
	if decision.Authorized {
		result, err = s.settle(ctx, decision, req, payer, now)
	} else {
		result, err = s.reject(ctx, decision.Card, decision.Reason, req, payer, now)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("charge decided",
		slog.String("card", cardgen.MaskPAN(req.CardNumber)),
		slog.String("amount", req.Amount.StringFixed(2)),
		slog.Bool("authorized", result.Authorized),
		slog.Bool("sandbox", decision.Sandbox()),
		slog.String("rule", decision.Rule),
		slog.String("reason", result.Reason),
		slog.String("transaction_id", result.TransactionID),
	)
	return result, nil
}

func (s *Service) settle(ctx context.Context, d authz.Decision, req models.ChargeRequest, payer models.Payer, now time.Time) (*models.PaymentResult, error) {
	t := &models.Transaction{
		Amount:        req.Amount,
		Status:        models.TransactionStatusAuthorized,
		CreatedAt:     now,
		Payer:         payer,
		InvoiceNumber: invoiceNumber(now),
	}

	var id string
	var err error
	if d.Card == nil {
		id, err = s.repo.AppendTransaction(ctx, t)
	} else {
		cardID := d.Card.ID
		t.CardID = &cardID
		id, err = s.repo.SettleAuthorization(ctx, cardID, req.Amount, t)
	}
	if errors.Is(err, models.ErrInsufficientFunds) {
		// the balance moved between the decision and the debit
		balance := d.Card.Balance
		if fresh, ferr := s.repo.GetCard(ctx, d.Card.ID); ferr == nil {
			balance = fresh.Balance
		}
		return s.reject(ctx, d.Card, authz.InsufficientFundsReason(balance), req, payer, now)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: recording authorization: %v", authz.ErrStoreUnavailable, err)
	}
	return &models.PaymentResult{Authorized: true, TransactionID: id, InvoiceNumber: t.InvoiceNumber}, nil
}

func (s *Service) reject(ctx context.Context, card *models.Card, reason string, req models.ChargeRequest, payer models.Payer, now time.Time) (*models.PaymentResult, error) {
	t := &models.Transaction{
		Amount:          req.Amount,
		Status:          models.TransactionStatusRejected,
		RejectionReason: reason,
		CreatedAt:       now,
		Payer:           payer,
	}
	if card != nil {
		if err := s.repo.IncrementAttempts(ctx, card.ID, now); err != nil {
			return nil, fmt.Errorf("%w: incrementing attempts: %v", authz.ErrStoreUnavailable, err)
		}
		cardID := card.ID
		t.CardID = &cardID
	}
	id, err := s.repo.AppendTransaction(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("%w: recording rejection: %v", authz.ErrStoreUnavailable, err)
	}
	return &models.PaymentResult{Reason: reason, TransactionID: id}, nil
}

// ValidateCard is the pre-check shown while the payer types the card number.
func (s *Service) ValidateCard(number string) models.CardCheck {
	number = strings.ReplaceAll(strings.TrimSpace(number), " ", "")
	masked := number
	if len(number) >= 4 {
		masked = "**** **** **** " + cardgen.LastN(number, 4)
	}
	return models.CardCheck{
		Valid:  cardgen.Luhn(number),
		Brand:  cardgen.Brand(number),
		Masked: masked,
	}
}

func (s *Service) SearchCards(ctx context.Context, query string, limit int) ([]*models.Card, error) {
	cards, err := s.repo.SearchCards(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("searching cards: %w", err)
	}
	return cards, nil
}

func (s *Service) Transaction(ctx context.Context, id string) (*models.Transaction, error) {
	t, err := s.repo.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding transaction: %w", err)
	}
	return t, nil
}

// Transactions returns ledger entries matching the filter, newest first.
func (s *Service) Transactions(ctx context.Context, f models.TransactionFilter) ([]*models.Transaction, error) {
	transactions, err := s.repo.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return transactions, nil
}

// Summary reports ledger outcomes over the trailing window.
func (s *Service) Summary(ctx context.Context, window time.Duration) (*models.Summary, error) {
	summary, err := s.repo.Summary(ctx, s.now().Add(-window))
	if err != nil {
		return nil, fmt.Errorf("summarizing ledger: %w", err)
	}
	return summary, nil
}

func invoiceNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return "F" + now.Format("20060102150405") + suffix
}
