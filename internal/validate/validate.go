// Package validate holds the stateless field checks applied to a charge
// request before any card lookup. Every check returns false for malformed
// input; none of them returns an error or panics.
package validate

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/jonanatree/paygate/internal/cardgen"
	"github.com/jonanatree/paygate/internal/expiry"
)

// MaxAmount is the per-transaction ceiling in currency units.
var MaxAmount = decimal.NewFromInt(10_000)

// AmountScale is the number of fractional digits a charge may carry.
const AmountScale = 2

// maxAmountDigits bounds the fractional digits looked at, so trailing zeros
// are accepted without rescaling arbitrarily small exponents.
const maxAmountDigits = 20

var (
	taxIDPersonal     = regexp.MustCompile(`^[A-Z]{4}[0-9]{6}[A-Z0-9]{3}$`)
	taxIDOrganization = regexp.MustCompile(`^[A-Z]{3}[0-9]{6}[A-Z0-9]{3}$`)
	emailPattern      = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	namePattern       = regexp.MustCompile(`^[a-zA-ZáéíóúÁÉÍÓÚñÑüÜ\s-]+$`)
)

// CardNumber applies the mod-10 checksum to a digit string.
func CardNumber(number string) bool {
	return cardgen.Luhn(number)
}

// Expiry checks an MM/YY expiry against the current month.
func Expiry(face string) bool {
	return ExpiryAt(face, time.Now())
}

// ExpiryAt checks an MM/YY expiry against the month containing now.
func ExpiryAt(face string, now time.Time) bool {
	return expiry.ValidFace(face, now)
}

// CVV checks the CVV shape expected for the card's issuer prefix.
func CVV(cvv, cardNumber string) bool {
	if cvv == "" || !cardgen.IsDigits(cvv) {
		return false
	}
	return len(cvv) == cardgen.CVVLength(cardNumber)
}

// Amount parses s as a decimal and checks 0 < amount <= MaxAmount.
func Amount(s string) bool {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	return AmountValue(d)
}

// AmountValue checks 0 < d <= MaxAmount with at most AmountScale fractional digits.
func AmountValue(d decimal.Decimal) bool {
	if !d.IsPositive() {
		return false
	}
	exp := d.Exponent()
	// a positive coefficient at 10^5 or above is past MaxAmount
	if exp > 4 || exp < -maxAmountDigits {
		return false
	}
	if exp < -AmountScale && !d.Equal(d.Truncate(AmountScale)) {
		return false
	}
	return d.LessThanOrEqual(MaxAmount)
}

// TaxID accepts the 13-character personal and the 12-character organizational RFC layouts.
func TaxID(s string) bool {
	s = strings.ToUpper(strings.TrimSpace(s))
	return taxIDPersonal.MatchString(s) || taxIDOrganization.MatchString(s)
}

func Email(s string) bool {
	return emailPattern.MatchString(strings.TrimSpace(s))
}

// Name requires at least 3 characters of letters, spaces and hyphens.
func Name(s string) bool {
	s = strings.TrimSpace(s)
	return utf8.RuneCountInString(s) >= 3 && namePattern.MatchString(s)
}
