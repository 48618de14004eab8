package metrics

import "github.com/prometheus/client_golang/prometheus"

// Service holds all the Prometheus metrics for the application.
// By defining them all in one place, we ensure consistency in naming and labeling.
type Service struct {
	LedgerEntries      *prometheus.CounterVec
	Reservations       *prometheus.CounterVec
	HoldsExpired       prometheus.Counter
	Challenges         *prometheus.CounterVec
	TournamentJoins    prometheus.Counter
	Conflicts          prometheus.Counter
	NotifSent          *prometheus.CounterVec
	NotifFailed        *prometheus.CounterVec
	SweepDuration      *prometheus.HistogramVec
	StartupTimeSeconds prometheus.Gauge
}
