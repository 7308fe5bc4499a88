package expiry

import (
	"testing"
	"time"
)

func TestFormats_Rollover(t *testing.T) {
	issue := time.Date(2029, time.December, 15, 0, 0, 0, 0, time.UTC)
	if got := YYMM(issue, 1); got != "3012" {
		t.Fatalf("YYMM got %s want %s", got, "3012")
	}
	if got := CardFace(issue, 1); got != "12/30" {
		t.Fatalf("CardFace got %s want %s", got, "12/30")
	}
}

func TestParseYYMMEndOfMonth(t *testing.T) {
	ts, err := ParseYYMMEndOfMonth("3002", time.UTC)
	if err != nil { t.Fatalf("err: %v", err) }
	want := time.Date(2030, time.February, 28, 23, 59, 59, 999999999, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("got %v want %v", ts, want)
	}

	ts, err = ParseYYMMEndOfMonth("2802", time.UTC)
	if err != nil { t.Fatalf("err: %v", err) }
	want = time.Date(2028, time.February, 29, 23, 59, 59, 999999999, time.UTC)
	if !ts.Equal(want) {
		t.Fatalf("got %v want %v", ts, want)
	}
}

func TestValidateYYMM(t *testing.T) {
	cases := []struct{ in string; ok bool }{
		{"3002", true}, {"9912", true}, {"0001", true},
		{"123", false}, {"12a4", false}, {"3013", false}, {"0000", false},
	}
	for _, c := range cases {
		err := ValidateYYMM(c.in)
		if (err == nil) != c.ok {
			t.Fatalf("ValidateYYMM(%s) ok=%v got err=%v", c.in, c.ok, err)
		}
	}
}

func TestIsExpired(t *testing.T) {
	yymm := "3002"
	end, _ := ParseYYMMEndOfMonth(yymm, time.UTC)
	expired, err := IsExpired(yymm, end, time.UTC)
	if err != nil || expired {
		t.Fatalf("expected not expired at end, got expired=%v err=%v", expired, err)
	}
	expired, err = IsExpired(yymm, end.Add(time.Nanosecond), time.UTC)
	if err != nil || !expired {
		t.Fatalf("expected expired after %v, got expired=%v err=%v", end, expired, err)
	}
}

func TestParseCardFace(t *testing.T) {
	yymm, err := ParseCardFace("10/30")
	if err != nil || yymm != "3010" {
		t.Fatalf("ParseCardFace 10/30 got %s err=%v", yymm, err)
	}
	for _, in := range []string{"1030", "13/30", "1/30", "ab/cd", "", "10/300"} {
		if _, err := ParseCardFace(in); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestFaceFromYYMM(t *testing.T) {
	face, err := FaceFromYYMM("2712")
	if err != nil || face != "12/27" {
		t.Fatalf("FaceFromYYMM 2712 got %s err=%v", face, err)
	}
	if _, err := FaceFromYYMM("2713"); err == nil {
		t.Fatalf("expected error for month 13")
	}
}

func TestValidFace(t *testing.T) {
	now := time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)
	cases := []struct{ in string; ok bool }{
		{"10/26", true},  // current month still valid
		{"12/26", true},
		{"09/26", false}, // earlier month of current year
		{"01/20", false},
		{"01/27", true},
		{"13/99", false},
		{"abc", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidFace(c.in, now); got != c.ok {
			t.Fatalf("ValidFace(%q) = %v want %v", c.in, got, c.ok)
		}
	}
}

func TestYearsForProduct(t *testing.T) {
	if got := YearsForProduct("credit", 0); got != 3 {
		t.Fatalf("credit years got %d want %d", got, 3)
	}
	if got := YearsForProduct("debit", 0); got != 5 {
		t.Fatalf("debit years got %d want %d", got, 5)
	}
	if got := YearsForProduct("anything", 7); got != 7 {
		t.Fatalf("override years got %d want %d", got, 7)
	}
}
