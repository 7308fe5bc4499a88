package expiry

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	defaultLoc   = time.UTC
	productYears = map[string]int{"credit": 3, "debit": 5}
)

// SetDefaultExpiryLocation sets the default time location for expiry calculations (fallback UTC).
func SetDefaultExpiryLocation(loc *time.Location) {
	if loc != nil {
		defaultLoc = loc
	}
}

// Location returns the location used when none is passed explicitly.
func Location() *time.Location {
	return defaultLoc
}

// SetProductYears replaces default product→years mapping used by YearsForProduct.
func SetProductYears(m map[string]int) {
	if m == nil {
		return
	}
	productYears = m
}

// YearsForProduct returns validity years for product unless override>0.
func YearsForProduct(product string, override int) int {
	if override > 0 {
		return override
	}
	if y, ok := productYears[strings.ToLower(product)]; ok {
		return y
	}
	return 5
}

// YYMM returns expiry in YYMM for an issue date + years.
func YYMM(issue time.Time, years int) string {
	t := issue.In(defaultLoc)
	y := (t.Year() + years) % 100
	m := int(t.Month())
	return fmt.Sprintf("%02d%02d", y, m)
}

// CardFace returns expiry as MM/YY for card imprint.
func CardFace(issue time.Time, years int) string {
	t := issue.In(defaultLoc)
	y := (t.Year() + years) % 100
	m := int(t.Month())
	return fmt.Sprintf("%02d/%02d", m, y)
}

// ParseCardFace parses a strict "MM/YY" face into YYMM.
func ParseCardFace(face string) (string, error) {
	if len(face) != 5 || face[2] != '/' {
		return "", fmt.Errorf("card face must be MM/YY")
	}
	yymm := face[3:] + face[:2]
	if err := ValidateYYMM(yymm); err != nil {
		return "", err
	}
	return yymm, nil
}

// FaceFromYYMM converts YYMM (ISO 8583 field format) into the MM/YY card face.
func FaceFromYYMM(yymm string) (string, error) {
	if err := ValidateYYMM(yymm); err != nil {
		return "", err
	}
	return yymm[2:] + "/" + yymm[:2], nil
}

// ParseYYMMEndOfMonth parses YYMM into the last instant of that month in loc.
func ParseYYMMEndOfMonth(yymm string, loc *time.Location) (time.Time, error) {
	if err := ValidateYYMM(yymm); err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = defaultLoc
	}
	yy, _ := strconv.Atoi(yymm[:2])
	mm, _ := strconv.Atoi(yymm[2:])
	firstNext := time.Date(2000+yy, time.Month(mm), 1, 0, 0, 0, 0, loc).AddDate(0, 1, 0)
	return firstNext.Add(-time.Nanosecond), nil
}

// IsExpired reports whether time 'at' is strictly after the end of YYMM month in loc.
func IsExpired(yymm string, at time.Time, loc *time.Location) (bool, error) {
	end, err := ParseYYMMEndOfMonth(yymm, loc)
	if err != nil {
		return false, err
	}
	return at.In(end.Location()).After(end), nil
}

// ValidFace reports whether an MM/YY card face is well formed and its month
// has not ended at 'now' in the default location. Malformed input is invalid.
func ValidFace(face string, now time.Time) bool {
	yymm, err := ParseCardFace(face)
	if err != nil {
		return false
	}
	expired, err := IsExpired(yymm, now, defaultLoc)
	return err == nil && !expired
}

// ValidateYYMM checks the YYMM format with month 01..12.
func ValidateYYMM(yymm string) error {
	if len(yymm) != 4 {
		return fmt.Errorf("expiry must be YYMM (4 digits)")
	}
	for i := 0; i < 4; i++ {
		if yymm[i] < '0' || yymm[i] > '9' {
			return fmt.Errorf("expiry must be digits: YYMM")
		}
	}
	mm := (int(yymm[2]-'0')*10 + int(yymm[3]-'0'))
	if mm < 1 || mm > 12 {
		return fmt.Errorf("expiry month must be 01..12")
	}
	return nil
}
