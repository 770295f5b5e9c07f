package shelflife

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestParseDate_BothLayouts(t *testing.T) {
	dmy := mustDate(t, "15-03-2024")
	iso := mustDate(t, "2024-03-15")

	if !dmy.Equal(iso) {
		t.Errorf("expected %v and %v to be equal", dmy, iso)
	}
	if dmy.Year() != 2024 || dmy.Month() != time.March || dmy.Day() != 15 {
		t.Errorf("unexpected date %v", dmy)
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, s := range []string{"2024/13/40", "15/03/2024", "31-02-2024", "", "yesterday"} {
		_, err := ParseDate(s)
		if !errors.Is(err, ErrInvalidDateFormat) {
			t.Errorf("%q: expected ErrInvalidDateFormat, got %v", s, err)
			continue
		}

		var fe *DateFormatError
		if !errors.As(err, &fe) || fe.Value != s {
			t.Errorf("%q: expected error naming the input, got %v", s, err)
		}
	}
}

func TestFormatDate_RoundTrip(t *testing.T) {
	d := time.Date(2024, time.February, 29, 0, 0, 0, 0, time.UTC)

	got, err := ParseDate(FormatDate(d))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(d) {
		t.Errorf("expected %v, got %v", d, got)
	}
	if FormatDate(d) != "29-02-2024" {
		t.Errorf("expected 29-02-2024, got %s", FormatDate(d))
	}
}

func TestAgeingDays(t *testing.T) {
	tests := []struct {
		mfg, asOf string
		want      int
	}{
		{"2024-01-01", "2024-06-01", 152},
		{"2024-01-01", "2024-01-31", 30},
		{"2023-02-01", "2023-03-01", 28},
		{"2024-02-01", "2024-03-01", 29},
		{"2023-12-31", "2024-01-01", 1},
		{"2024-01-10", "2024-01-01", -9},
	}

	for _, tc := range tests {
		got := AgeingDays(mustDate(t, tc.mfg), mustDate(t, tc.asOf))
		if got != tc.want {
			t.Errorf("AgeingDays(%s, %s) = %d, want %d", tc.mfg, tc.asOf, got, tc.want)
		}
	}
}

func TestAgeingDays_IgnoresTimeOfDay(t *testing.T) {
	mfg := time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC)
	asOf := time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC)

	if got := AgeingDays(mfg, asOf); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestDaysToExpiry(t *testing.T) {
	if got := DaysToExpiry(mustDate(t, "2024-01-01"), mustDate(t, "2024-01-31")); got != -30 {
		t.Errorf("expected -30, got %d", got)
	}
	if got := DaysToExpiry(mustDate(t, "2024-12-31"), mustDate(t, "2024-12-01")); got != 30 {
		t.Errorf("expected 30, got %d", got)
	}
}

func TestDayCounts_FarApartDates(t *testing.T) {
	asOf := mustDate(t, "2024-01-01")

	if got := DaysToExpiry(mustDate(t, "31-12-9999"), asOf); got != 2913173 {
		t.Errorf("DaysToExpiry to 31-12-9999 = %d, want 2913173", got)
	}
	if got := AgeingDays(mustDate(t, "0001-01-01"), asOf); got != 738885 {
		t.Errorf("AgeingDays from 0001-01-01 = %d, want 738885", got)
	}
	if got := DaysToExpiry(mustDate(t, "0001-01-01"), asOf); got != -738885 {
		t.Errorf("DaysToExpiry to 0001-01-01 = %d, want -738885", got)
	}
}

func TestBucketFor_Boundaries(t *testing.T) {
	tests := []struct {
		days int
		want AgeingBucket
	}{
		{-5, BucketFresh},
		{0, BucketFresh},
		{30, BucketFresh},
		{31, BucketAgeing},
		{60, BucketAgeing},
		{61, BucketStale},
		{365, BucketStale},
	}

	for _, tc := range tests {
		if got := BucketFor(tc.days); got != tc.want {
			t.Errorf("BucketFor(%d) = %s, want %s", tc.days, got, tc.want)
		}
	}
}

func TestRiskFor_Boundaries(t *testing.T) {
	tests := []struct {
		days int
		want ExpiryRisk
	}{
		{-10, RiskHigh},
		{29, RiskHigh},
		{30, RiskMedium},
		{90, RiskMedium},
		{91, RiskLow},
	}

	for _, tc := range tests {
		if got := RiskFor(tc.days); got != tc.want {
			t.Errorf("RiskFor(%d) = %s, want %s", tc.days, got, tc.want)
		}
	}

	if !IsNearExpiry(29) || IsNearExpiry(30) {
		t.Error("near expiry must match the high risk class")
	}
}

func TestCompute(t *testing.T) {
	m := Compute(mustDate(t, "01-01-2024"), mustDate(t, "01-04-2024"), mustDate(t, "2024-02-15"))

	if m.AgeingDays != 45 {
		t.Errorf("expected ageing 45, got %d", m.AgeingDays)
	}
	if m.DaysToExpiry != 46 {
		t.Errorf("expected 46 days to expiry, got %d", m.DaysToExpiry)
	}
	if m.AgeingBucket != BucketAgeing {
		t.Errorf("expected bucket 30-60, got %s", m.AgeingBucket)
	}
	if m.ExpiryRisk != RiskMedium {
		t.Errorf("expected medium risk, got %s", m.ExpiryRisk)
	}
}

func TestParseRange(t *testing.T) {
	t.Run("both absent", func(t *testing.T) {
		r, err := ParseRange("", "")
		if err != nil || r != nil {
			t.Errorf("expected no range and no error, got %v, %v", r, err)
		}
	})

	t.Run("one side absent", func(t *testing.T) {
		r, err := ParseRange("2024-01-01", "")
		if err != nil || r != nil {
			t.Errorf("expected no range and no error, got %v, %v", r, err)
		}
		r, err = ParseRange("", "2024-01-01")
		if err != nil || r != nil {
			t.Errorf("expected no range and no error, got %v, %v", r, err)
		}
	})

	t.Run("valid", func(t *testing.T) {
		r, err := ParseRange("01-01-2024", "2024-01-01")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !r.Start.Equal(r.End) {
			t.Errorf("expected single-day range, got %v", r)
		}
	})

	t.Run("start after end", func(t *testing.T) {
		_, err := ParseRange("2024-02-01", "2024-01-01")
		if !errors.Is(err, ErrInvalidDateRange) {
			t.Errorf("expected ErrInvalidDateRange, got %v", err)
		}
	})

	t.Run("bad format", func(t *testing.T) {
		_, err := ParseRange("2024/01/01", "2024-01-02")
		if !errors.Is(err, ErrInvalidDateFormat) {
			t.Errorf("expected ErrInvalidDateFormat, got %v", err)
		}
	})
}
