package model

import "time"

// Billing date arithmetic. All functions are pure, operate on date-only UTC
// times, and are total for any valid BillingCycle; callers validate the cycle
// with Valid() before invoking.

// DateOnly normalizes t to UTC midnight. Billing comparisons ignore
// time-of-day entirely.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a billing date as an ISO YYYY-MM-DD string.
func FormatDate(t time.Time) string { return t.Format("2006-01-02") }

func daysInMonth(year int, month time.Month) int {
	// day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonthsClamped advances t by n months, clamping the day-of-month to the
// target month's length. Jan 31 + 1 month is Feb 28 (29 in leap years), never
// Mar 2/3 as time.AddDate would normalize it.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	total := int(m) - 1 + n
	ty := y + total/12
	tm := time.Month(total%12 + 1)
	if dim := daysInMonth(ty, tm); d > dim {
		d = dim
	}
	return time.Date(ty, tm, d, 0, 0, 0, 0, time.UTC)
}

// advance returns start moved forward by exactly k cycles. Month-based cycles
// are always computed as a multiple from the original start so the billing
// day-of-month survives clamped months (Jan 31 -> Feb 28 -> Mar 31).
func advance(start time.Time, cycle BillingCycle, k int) time.Time {
	switch cycle {
	case BillingCycleWeekly:
		return start.AddDate(0, 0, 7*k)
	case BillingCycleQuarterly:
		return addMonthsClamped(start, 3*k)
	case BillingCycleYearly:
		return addMonthsClamped(start, 12*k)
	default: // monthly
		return addMonthsClamped(start, k)
	}
}

// NextBillingDateForNew returns the first charge date of a brand new
// subscription: the start date advanced by exactly one cycle.
func NextBillingDateForNew(start time.Time, cycle BillingCycle) time.Time {
	return advance(DateOnly(start), cycle, 1)
}

// NextBillingDateFromStart returns the smallest start + k*cycle (k >= 1) that
// is strictly after ref. The walk is anchored to the original start date, not
// to ref, so the billing day-of-month is preserved across renewals. The lower
// bound estimate keeps the forward walk to a couple of steps regardless of how
// long ago the subscription started.
func NextBillingDateFromStart(start, ref time.Time, cycle BillingCycle) time.Time {
	start = DateOnly(start)
	ref = DateOnly(ref)

	k := lowerBoundCycles(start, ref, cycle)
	if k < 1 {
		k = 1
	}
	d := advance(start, cycle, k)
	for !d.After(ref) {
		k++
		d = advance(start, cycle, k)
	}
	return d
}

// lowerBoundCycles returns a k such that start + k*cycle is guaranteed to be
// at or before the first boundary strictly after ref.
func lowerBoundCycles(start, ref time.Time, cycle BillingCycle) int {
	if !ref.After(start) {
		return 1
	}
	switch cycle {
	case BillingCycleWeekly:
		return int(ref.Sub(start).Hours()) / (24 * 7)
	case BillingCycleQuarterly:
		return monthsBetween(start, ref)/3 - 1
	case BillingCycleYearly:
		return ref.Year() - start.Year() - 1
	default:
		return monthsBetween(start, ref) - 1
	}
}

func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// IsDue reports whether a subscription whose next charge is billingDate is
// due as of today: due when billingDate <= today, date-only comparison. The
// renewal batch uses exactly this predicate to select candidates.
func IsDue(billingDate, today time.Time) bool {
	return !DateOnly(billingDate).After(DateOnly(today))
}
