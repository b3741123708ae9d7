package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Domain errors shared across the ledger
var (
	// ErrInconsistentLedger reports a computed invariant violation, e.g. a
	// negative partner payout. It should never fire in correct operation
	// and must be surfaced rather than clamped away.
	ErrInconsistentLedger = errors.New("ledger invariant violated")
)

// Granularity is the bucket size used by trend queries
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// IsValid reports whether g is a supported bucket granularity
func (g Granularity) IsValid() bool {
	switch g {
	case GranularityHour, GranularityDay, GranularityMonth:
		return true
	}
	return false
}

// BucketStart truncates t to the start of its bucket in loc
func (g Granularity) BucketStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	switch g {
	case GranularityHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	}
}

// Next returns the start of the bucket following start
func (g Granularity) Next(start time.Time) time.Time {
	switch g {
	case GranularityHour:
		return start.Add(time.Hour)
	case GranularityMonth:
		return start.AddDate(0, 1, 0)
	default:
		return start.AddDate(0, 0, 1)
	}
}

// RoundPercent applies the 2-decimal percentage rounding rule. It is
// applied exactly once at the end of a computation, never compounded.
func RoundPercent(p decimal.Decimal) decimal.Decimal {
	return p.Round(2)
}

// Ratio returns part/whole as a rounded percentage, 0 when whole is 0
func Ratio(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return RoundPercent(part.Div(whole).Mul(decimal.NewFromInt(100)))
}

// DayStart returns midnight of t's calendar date in loc
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
