package db

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "barview",
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Time spent running dashboard queries.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"query", "driver"},
	)
	queryErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "barview",
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Dashboard queries that returned an error.",
		},
		[]string{"query", "driver"},
	)
)

// Collectors returns the query metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{queryDuration, queryErrors}
}

func observe(label, driver string, start time.Time, err error) {
	queryDuration.WithLabelValues(label, driver).
		Observe(time.Since(start).Seconds())
	if err != nil {
		queryErrors.WithLabelValues(label, driver).Inc()
	}
}
