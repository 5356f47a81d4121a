package settlement

import (
	"time"

	"github.com/shopspring/decimal"
)

// HoursUntil returns the fractional hours from now until event. It is negative
// once the event has started.
func HoursUntil(event, now time.Time) float64 {
	return event.Sub(now).Hours()
}

// WithinDeadline reports whether there are at least deadlineHours left before event.
func WithinDeadline(event, now time.Time, deadlineHours int) bool {
	return HoursUntil(event, now) >= float64(deadlineHours)
}

// WithinReturnWindow reports whether no more than deadlineDays have passed
// since deliveredAt.
func WithinReturnWindow(deliveredAt time.Time, deadlineDays int, now time.Time) bool {
	if now.Before(deliveredAt) {
		return true
	}
	return now.Sub(deliveredAt) <= time.Duration(deadlineDays)*24*time.Hour
}

// RefundAmount returns percent of total, rounded. Percent is clamped to [0, 100].
func RefundAmount(total, percent decimal.Decimal) decimal.Decimal {
	if percent.IsNegative() {
		return decimal.Zero
	}
	if percent.GreaterThan(hundred) {
		percent = hundred
	}
	return Round(total.Mul(percent).Div(hundred))
}
