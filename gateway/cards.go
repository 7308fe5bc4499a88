package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/exp/slog"

	"github.com/jonanatree/paygate/gateway/models"
	"github.com/jonanatree/paygate/internal/cardgen"
	"github.com/jonanatree/paygate/internal/expiry"
	"github.com/jonanatree/paygate/internal/validate"
)

const defaultBIN = "421234"

// IssueCard provisions a verified card with a generated Luhn-valid PAN, an
// expiry derived from the product validity and a random CVV.
func (s *Service) IssueCard(ctx context.Context, req models.IssueCard) (*models.IssuedCard, error) {
	name := strings.TrimSpace(req.CardholderName)
	if !validate.Name(name) {
		return nil, &ValidationError{Errors: []string{"name must contain only letters and spaces"}}
	}
	if req.Balance.IsNegative() {
		return nil, &ValidationError{Errors: []string{"balance must not be negative"}}
	}

	product := req.Product
	if product == "" {
		product = s.cfg.CardProduct
	}
	face := expiry.CardFace(s.now(), expiry.YearsForProduct(product, 0))

	bin := s.cfg.BINPrefix
	if err := cardgen.ValidateBIN(bin); err != nil {
		bin = defaultBIN
	}
	exists := func(pan string) (bool, error) { return s.repo.ExistsCardNumber(ctx, pan) }

	for attempt := 0; attempt < 5; attempt++ {
		pan, err := cardgen.GenerateUniquePAN(bin, 16, 10, exists)
		if err != nil {
			return nil, fmt.Errorf("generating pan: %w", err)
		}
		cvv, err := cardgen.RandomDigits(cardgen.CVVLength(pan))
		if err != nil {
			return nil, fmt.Errorf("generating cvv: %w", err)
		}
		card, err := s.repo.CreateCard(ctx, models.NewCard{
			PAN:            pan,
			CardholderName: name,
			ExpirationDate: face,
			CVV:            cvv,
			Balance:        req.Balance,
			Verified:       true,
		})
		if errors.Is(err, ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("creating card: %w", err)
		}
		s.logger.Info("card issued", slog.String("card", card.Number), slog.String("product", product))
		return &models.IssuedCard{Card: card, PAN: pan, CVV: cvv, CardFace: face + " " + strings.ToUpper(name)}, nil
	}
	return nil, fmt.Errorf("could not create unique card after retries")
}

// Seed provisions fixture cards. Numbers already present are skipped.
func (s *Service) Seed(ctx context.Context, cards []models.NewCard) (created, skipped int, err error) {
	for _, c := range cards {
		_, err := s.repo.CreateCard(ctx, c)
		if errors.Is(err, ErrConflict) {
			skipped++
			continue
		}
		if err != nil {
			return created, skipped, fmt.Errorf("seeding card %s: %w", cardgen.MaskPAN(c.PAN), err)
		}
		created++
	}
	s.logger.Info("cards seeded", slog.Int("created", created), slog.Int("skipped", skipped))
	return created, skipped, nil
}
