package engine

import "time"

// RetentionDays is the fixed trash window: soft-deleted pins stay
// restorable this long, then the sweep removes them for good.
const RetentionDays = 30

// RetentionWindow is RetentionDays as a duration.
const RetentionWindow = RetentionDays * 24 * time.Hour

// Both purge eligibility and the days-remaining display are derived from
// the same elapsed duration, so the two can never disagree at the
// boundary: a pin is purgeable exactly when the display reads 0 and the
// elapsed time has passed the full window.

// PurgeEligible reports whether a pin deleted at the given instant has
// outlived the retention window. Exactly 30 days elapsed is NOT eligible;
// anything beyond is.
func PurgeEligible(deletedAt, now time.Time) bool {
	return now.Sub(deletedAt) > RetentionWindow
}

// purgeCutoff is PurgeEligible rephrased for the store's sweep query: a
// pin is eligible at now exactly when deleted_at (unix ms) < cutoff.
func purgeCutoff(now time.Time) int64 {
	return now.Add(-RetentionWindow).UnixMilli()
}

// DaysRemaining returns how many whole days of retention are left,
// clamped to [0, RetentionDays]. Used for display only.
func DaysRemaining(deletedAt, now time.Time) int {
	elapsed := now.Sub(deletedAt)
	if elapsed < 0 {
		return RetentionDays
	}
	days := int(elapsed / (24 * time.Hour))
	remaining := RetentionDays - days
	if remaining < 0 {
		return 0
	}
	return remaining
}
