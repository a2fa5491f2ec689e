package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	storeOperationDuration *prometheus.HistogramVec
	storeConnectsTotal     *prometheus.CounterVec

	storeOnce sync.Once
)

// initializeStoreMetrics registers store metrics once
func initializeStoreMetrics() {
	storeOnce.Do(func() {
		storeOperationDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_operation_duration_seconds",
				Help:    "Time spent in store operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend", "operation", "result"},
		)

		storeConnectsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_connect_attempts_total",
				Help: "Store connection attempts by backend and result",
			},
			[]string{"backend", "result"},
		)

		registry.MustRegister(
			storeOperationDuration,
			storeConnectsTotal,
		)
	})
}

// StoreResult labels an operation outcome. Not-found and conflict answers are
// normal results, not errors.
func StoreResult(err error, expected ...error) string {
	if err == nil {
		return "ok"
	}
	for _, e := range expected {
		if errors.Is(err, e) {
			return "miss"
		}
	}
	return "error"
}

// RecordStoreOperation records the duration of one store call
func RecordStoreOperation(backend, operation string, startTime time.Time, result string) {
	initializeStoreMetrics()
	storeOperationDuration.WithLabelValues(backend, operation, result).Observe(time.Since(startTime).Seconds())
}

// RecordStoreConnect counts a connection attempt
func RecordStoreConnect(backend string, err error) {
	initializeStoreMetrics()
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeConnectsTotal.WithLabelValues(backend, result).Inc()
}
