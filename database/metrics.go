package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	sessionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opecstate",
		Name:      "sessions_total",
		Help:      "Sessions opened, and transactions committed or rolled back.",
	}, []string{"outcome"})

	initTablesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opecstate",
		Name:      "initdb_tables_total",
		Help:      "Tables created or verified by InitDB.",
	}, []string{"action"})

	initDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "opecstate",
		Name:      "initdb_duration_seconds",
		Help:      "Duration of successful InitDB runs.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Collectors returns the metrics of this package for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{sessionsTotal, initTablesTotal, initDuration}
}
