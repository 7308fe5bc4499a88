package cardgen

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const panLen = 16

// Brand names reported by Brand.
const (
	BrandVisa       = "visa"
	BrandMastercard = "mastercard"
	BrandAmex       = "amex"
	BrandDiscover   = "discover"
	BrandUnknown    = "unknown"
)

// GeneratePAN generates a 16-digit PAN whose last digit is the Luhn check digit.
func GeneratePAN(bin string) (string, error) {
	return GeneratePANWithLength(bin, panLen)
}

// GeneratePANWithLength generates a PAN of totalLen (13..19) digits for bin.
func GeneratePANWithLength(bin string, totalLen int) (string, error) {
	if err := ValidateBIN(bin); err != nil {
		return "", err
	}
	if totalLen < 13 || totalLen > 19 {
		return "", fmt.Errorf("total length must be 13..19")
	}
	fill := totalLen - 1 - len(bin)
	if fill <= 0 {
		return "", fmt.Errorf("bin too long: %s", bin)
	}
	digitsPart, err := RandomDigits(fill)
	if err != nil {
		return "", fmt.Errorf("rand: %w", err)
	}
	body := bin + digitsPart
	return body + luhnCheckDigit(body), nil
}

// RandomDigits returns count uniformly distributed decimal digits.
// Bytes >= 250 are rejected so that b%10 carries no modulo bias.
func RandomDigits(count int) (string, error) {
	if count <= 0 {
		return "", nil
	}
	const threshold = 250
	var sb strings.Builder
	sb.Grow(count)
	buf := make([]byte, 64)
	for sb.Len() < count {
		n, err := rand.Read(buf)
		if err != nil {
			return "", err
		}
		for i := 0; i < n && sb.Len() < count; i++ {
			b := buf[i]
			if b < threshold {
				sb.WriteByte('0' + (b % 10))
			}
		}
	}
	return sb.String(), nil
}

func luhnCheckDigit(body string) string {
	sum, dbl := 0, true
	for i := len(body) - 1; i >= 0; i-- {
		d := int(body[i] - '0')
		if dbl {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		dbl = !dbl
	}
	cd := (10 - (sum % 10)) % 10
	return string('0' + byte(cd))
}

// Luhn reports whether number is a non-empty digit string with a valid mod-10 check digit.
func Luhn(number string) bool {
	if number == "" || !IsDigits(number) {
		return false
	}
	last := len(number) - 1
	return luhnCheckDigit(number[:last])[0] == number[last]
}

// ValidatePAN checks PAN length (13..19), digits and the Luhn check digit.
func ValidatePAN(pan string) error {
	if pan == "" {
		return fmt.Errorf("pan is required")
	}
	if !IsDigits(pan) {
		return fmt.Errorf("pan must contain digits only")
	}
	if l := len(pan); l < 13 || l > 19 {
		return fmt.Errorf("pan length must be 13..19 digits (got %d)", l)
	}
	if !Luhn(pan) {
		return fmt.Errorf("invalid luhn check digit")
	}
	return nil
}

func ValidateBIN(bin string) error {
	if bin == "" {
		return fmt.Errorf("bin is required")
	}
	if !IsDigits(bin) {
		return fmt.Errorf("bin must contain digits only")
	}
	switch len(bin) {
	case 6, 8, 9:
		return nil
	default:
		return fmt.Errorf("bin must be 6, 8, or 9 digits")
	}
}

func IsDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// CVVLength returns the CVV length for a PAN: 4 for the 34/37 issuer prefixes, 3 otherwise.
func CVVLength(pan string) int {
	if strings.HasPrefix(pan, "34") || strings.HasPrefix(pan, "37") {
		return 4
	}
	return 3
}

// Brand guesses the card network from the first digit.
func Brand(pan string) string {
	if pan == "" {
		return BrandUnknown
	}
	switch pan[0] {
	case '4':
		return BrandVisa
	case '5':
		return BrandMastercard
	case '3':
		return BrandAmex
	case '6':
		return BrandDiscover
	default:
		return BrandUnknown
	}
}

func LastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// BIN returns the leading issuer digits kept alongside the PAN hash (at most 6).
func BIN(pan string) string {
	if len(pan) > 6 {
		return pan[:6]
	}
	return pan
}

func MaskPAN(pan string) string {
	cleaned := NormalizePAN(pan)
	n := len(cleaned)
	if n == 0 {
		return ""
	}
	if n <= 4 {
		return strings.Repeat("*", n)
	}
	if n < 10 {
		return strings.Repeat("*", n-4) + cleaned[n-4:]
	}
	return cleaned[:6] + strings.Repeat("*", n-10) + cleaned[n-4:]
}

// NormalizePAN strips spaces, tabs and dashes.
func NormalizePAN(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-':
			return -1
		default:
			return r
		}
	}, s)
}

// GenerateUniquePAN retries generation until exists reports the PAN as unused.
func GenerateUniquePAN(bin string, totalLen, maxRetries int, exists func(string) (bool, error)) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	for i := 0; i <= maxRetries; i++ {
		pan, err := GeneratePANWithLength(bin, totalLen)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return pan, nil
		}
		used, err := exists(pan)
		if err != nil {
			return "", fmt.Errorf("exists callback: %w", err)
		}
		if !used {
			return pan, nil
		}
	}
	return "", fmt.Errorf("failed to generate unique PAN after %d retries", maxRetries)
}
