package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		quotaChecksTotal,
		quotaRecordsTotal,
		permissionDecisionsTotal,
	)
}

var (
	quotaChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_checks_total",
			Help: "Quota checks by type and band.",
		},
		[]string{"quota", "band"}, // 'ok', 'warning', 'at_limit', 'unlimited'
	)

	quotaRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_records_total",
			Help: "recordUsage commands forwarded to the store, by outcome.",
		},
		[]string{"quota", "result"}, // 'ok', 'failed'
	)

	permissionDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_decisions_total",
			Help: "Permission evaluations by capability and decision.",
		},
		[]string{"capability", "decision"}, // 'allowed', 'denied'
	)
)

func IncQuotaCheck(quota, band string) {
	quotaChecksTotal.WithLabelValues(norm(quota), norm(band)).Inc()
}

func IncQuotaRecord(quota, result string) {
	quotaRecordsTotal.WithLabelValues(norm(quota), norm(result)).Inc()
}

func IncPermissionDecision(capability string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	permissionDecisionsTotal.WithLabelValues(norm(capability), decision).Inc()
}
