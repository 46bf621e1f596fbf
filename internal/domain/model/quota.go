package model

import "time"

// QuotaType enumerates the usage counters a plan can cap.
type QuotaType string

const (
	QuotaSubscriptionCount QuotaType = "subscription_count"
	QuotaAPICallsPerHour   QuotaType = "api_calls_per_hour"
	QuotaExportCount       QuotaType = "export_count"
)

func (q QuotaType) Valid() bool {
	switch q {
	case QuotaSubscriptionCount, QuotaAPICallsPerHour, QuotaExportCount:
		return true
	}
	return false
}

// nearLimitThreshold is the percentage at which a quota starts warning.
const nearLimitThreshold = 80.0

// QuotaUsage is a snapshot of one counter against its plan limit.
// Limit <= 0 means unlimited.
type QuotaUsage struct {
	Type      QuotaType
	Used      int
	Limit     int
	ResetDate *time.Time
}

func (u QuotaUsage) IsUnlimited() bool { return u.Limit <= 0 }

// Percentage is Used/Limit as a percentage; 0 for unlimited quotas.
func (u QuotaUsage) Percentage() float64 {
	if u.IsUnlimited() {
		return 0
	}
	return float64(u.Used) / float64(u.Limit) * 100
}

// IsAtLimit reports the counter has reached or passed its ceiling.
// Unlimited quotas are never at limit.
func (u QuotaUsage) IsAtLimit() bool {
	return u.Limit > 0 && u.Used >= u.Limit
}

// IsNearLimit reports usage at or above the warning band but not yet at the
// ceiling. Unlimited quotas never warn.
func (u QuotaUsage) IsNearLimit() bool {
	return !u.IsUnlimited() && !u.IsAtLimit() && u.Percentage() >= nearLimitThreshold
}
