// Package shelflife holds the date arithmetic shared by every place that
// classifies a lot by age or by distance to expiry. Per-item views, the CSV
// importer and the dashboard all go through these functions so the thresholds
// are defined exactly once.
package shelflife

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DisplayLayout is the default DD-MM-YYYY layout used for rendering dates.
	DisplayLayout = "02-01-2006"
	// ISOLayout is the YYYY-MM-DD layout, also accepted on input.
	ISOLayout = "2006-01-02"

	secondsPerDay = 24 * 60 * 60
)

var (
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidDateRange  = errors.New("invalid date range")
)

// DateFormatError names the string that could not be parsed.
type DateFormatError struct {
	Value string
}

func (e *DateFormatError) Error() string {
	return fmt.Sprintf("invalid date format: %q, expected DD-MM-YYYY or YYYY-MM-DD", e.Value)
}

func (e *DateFormatError) Unwrap() error {
	return ErrInvalidDateFormat
}

type AgeingBucket string

const (
	BucketFresh  AgeingBucket = "0-30"
	BucketAgeing AgeingBucket = "30-60"
	BucketStale  AgeingBucket = "60+"
)

// AgeingBuckets lists the buckets in display order.
var AgeingBuckets = []AgeingBucket{BucketFresh, BucketAgeing, BucketStale}

type ExpiryRisk string

const (
	RiskHigh   ExpiryRisk = "high"
	RiskMedium ExpiryRisk = "medium"
	RiskLow    ExpiryRisk = "low"
)

// ExpiryRisks lists the risk classes in display order.
var ExpiryRisks = []ExpiryRisk{RiskHigh, RiskMedium, RiskLow}

// NearExpiryDays is the days-to-expiry threshold under which a lot counts as
// near expiry. It is the lower bound of RiskMedium.
const NearExpiryDays = 30

// Metrics is a point-in-time projection of a lot's dates.
type Metrics struct {
	AgeingDays   int
	DaysToExpiry int
	AgeingBucket AgeingBucket
	ExpiryRisk   ExpiryRisk
}

// Date truncates t to its calendar date at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today returns the current calendar date at midnight UTC.
func Today() time.Time {
	return Date(time.Now())
}

// ParseDate accepts DD-MM-YYYY first and falls back to YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DisplayLayout, ISOLayout} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateFormatError{Value: s}
}

// FormatDate renders t as DD-MM-YYYY.
func FormatDate(t time.Time) string {
	return Date(t).Format(DisplayLayout)
}

// daysBetween counts whole calendar days from a to b. It is negative when b
// is before a. It must not go through time.Duration, which saturates at
// about 292 years.
func daysBetween(a, b time.Time) int {
	return int((Date(b).Unix() - Date(a).Unix()) / secondsPerDay)
}

// AgeingDays is the number of whole days from mfg to asOf. A manufacturing
// date in the future yields a negative value.
func AgeingDays(mfg, asOf time.Time) int {
	return daysBetween(mfg, asOf)
}

// DaysToExpiry is the number of whole days from asOf to exp; negative once
// the lot has expired.
func DaysToExpiry(exp, asOf time.Time) int {
	return daysBetween(asOf, exp)
}

func BucketFor(ageingDays int) AgeingBucket {
	switch {
	case ageingDays <= 30:
		return BucketFresh
	case ageingDays <= 60:
		return BucketAgeing
	default:
		return BucketStale
	}
}

func RiskFor(daysToExpiry int) ExpiryRisk {
	switch {
	case daysToExpiry < NearExpiryDays:
		return RiskHigh
	case daysToExpiry <= 90:
		return RiskMedium
	default:
		return RiskLow
	}
}

// IsNearExpiry reports whether a lot with the given days to expiry is in the
// high risk class.
func IsNearExpiry(daysToExpiry int) bool {
	return RiskFor(daysToExpiry) == RiskHigh
}

// Compute projects both dates as of asOf.
func Compute(mfg, exp, asOf time.Time) Metrics {
	ageing := AgeingDays(mfg, asOf)
	toExpiry := DaysToExpiry(exp, asOf)
	return Metrics{
		AgeingDays:   ageing,
		DaysToExpiry: toExpiry,
		AgeingBucket: BucketFor(ageing),
		ExpiryRisk:   RiskFor(toExpiry),
	}
}

// Range is an inclusive date interval.
type Range struct {
	Start time.Time
	End   time.Time
}

// ParseRange builds a Range from two optional strings. When either side is
// empty no range is returned and no error is reported.
func ParseRange(start, end string) (*Range, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return nil, nil
	}

	s, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	e, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if s.After(e) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidDateRange, FormatDate(s), FormatDate(e))
	}

	return &Range{Start: s, End: e}, nil
}
