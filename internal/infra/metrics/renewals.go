package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		renewalsProcessedTotal,
		renewalsFailedTotal,
		renewalBatchDuration,
	)
}

var (
	renewalsProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "renewals_processed_total",
			Help: "Subscriptions advanced by the renewal worker.",
		},
	)

	renewalsFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "renewals_failed_total",
			Help: "Renewal attempts that failed and were left due.",
		},
	)

	renewalBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "renewal_batch_duration_seconds",
			Help:    "Wall time of one renewal batch.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func AddRenewalsProcessed(n int) { renewalsProcessedTotal.Add(float64(n)) }
func AddRenewalsFailed(n int)    { renewalsFailedTotal.Add(float64(n)) }
func ObserveRenewalBatch(sec float64) {
	renewalBatchDuration.Observe(sec)
}
