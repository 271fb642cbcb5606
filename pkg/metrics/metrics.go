package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleximart", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleximart", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
	CatalogOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "fleximart", Subsystem: "catalog", Name: "operations_total", Help: "Catalog store operations by outcome (ok, not_found, connection_error, query_error)."},
		[]string{"operation", "outcome"},
	)
	CatalogOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "fleximart", Subsystem: "catalog", Name: "operation_duration_seconds", Help: "Time until the store answered a catalog operation.", Buckets: prometheus.DefBuckets},
		[]string{"operation"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
	reg.MustRegister(CatalogOperations)
	reg.MustRegister(CatalogOperationDuration)
}
