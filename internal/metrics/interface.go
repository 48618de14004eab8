package metrics

// Metrics defines the interface for collecting application metrics.
// This decouples the application from the specific metrics implementation (e.g., Prometheus).
type Metrics interface {
	IncLedgerEntries(kind, status string)
	IncReservations(outcome string)
	AddHoldsExpired(n int)
	IncChallenges(outcome string)
	IncTournamentJoins()
	IncConflicts()
	IncNotifSent(channel string)
	IncNotifFailed(channel string)
	ObserveSweepDuration(job string, duration float64)
	SetStartupTime(duration float64)
}

// MetricsStore keeps counters that must survive restarts.
type MetricsStore interface {
	Increment(key string)
	Add(key string, n int)
	GetAll() (map[string]int, error)
}
