package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(cacheRequestsTotal, cacheEntries) }

var cacheRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cache_requests_total",
		Help: "Entitlement cache requests by outcome.",
	},
	[]string{"cache", "result"}, // e.g., cache="plan", result="hit" | "miss" | "coalesced"
)

var cacheEntries = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cache_entries",
		Help: "Resident entries per entitlement cache.",
	},
	[]string{"cache"},
)

func IncCacheRequest(cacheName, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

func SetCacheEntries(cacheName string, n int) {
	cacheEntries.WithLabelValues(norm(cacheName)).Set(float64(n))
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
