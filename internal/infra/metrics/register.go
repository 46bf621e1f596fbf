package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	regOnce sync.Once
	pending []prometheus.Collector
)

// register queues a collector at init time; nothing reaches the default
// registry until MustRegister runs.
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister installs every queued collector, exactly once per process.
func MustRegister() {
	regOnce.Do(func() {
		prometheus.MustRegister(pending...)
		pending = nil
	})
}
