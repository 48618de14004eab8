package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Metrics = (*Service)(nil)

// NewMetricsHandler returns an http.Handler for the given Gatherer.
// If no gatherer is provided, it uses the default one.
func NewMetricsHandler(gatherer ...prometheus.Gatherer) http.Handler {
	gath := prometheus.DefaultGatherer
	if len(gatherer) > 0 {
		gath = gatherer[0]
	}
	return promhttp.HandlerFor(gath, promhttp.HandlerOpts{})
}

// NewService creates and registers the Prometheus metrics.
// If no registerer is provided, it uses the default Prometheus registerer.
func NewService(registerer ...prometheus.Registerer) *Service {
	reg := prometheus.DefaultRegisterer
	if len(registerer) > 0 {
		reg = registerer[0]
	}

	s := &Service{
		LedgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "club_ledger_entries_total",
			Help: "Ledger entries written, by kind and status.",
		}, []string{"kind", "status"}),
		Reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "club_reservations_total",
			Help: "Reservation state changes, by outcome.",
		}, []string{"outcome"}),
		HoldsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "club_holds_expired_total",
			Help: "Holds cancelled because the hold window elapsed.",
		}),
		Challenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "club_challenges_total",
			Help: "Challenge state changes, by outcome.",
		}, []string{"outcome"}),
		TournamentJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "club_tournament_joins_total",
			Help: "Paid tournament entries.",
		}),
		Conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "club_tx_conflicts_total",
			Help: "Transactions that gave up on lock contention.",
		}),
		NotifSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "club_notifications_sent_total",
			Help: "Notifications delivered, by channel.",
		}, []string{"channel"}),
		NotifFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "club_notifications_failed_total",
			Help: "Notifications that failed to deliver, by channel.",
		}, []string{"channel"}),
		SweepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "club_sweep_duration_seconds",
			Help:    "The duration of background sweep runs.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"job"}),
		StartupTimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "club_startup_duration_seconds",
			Help: "The duration of the application startup in seconds.",
		}),
	}

	reg.MustRegister(
		s.LedgerEntries,
		s.Reservations,
		s.HoldsExpired,
		s.Challenges,
		s.TournamentJoins,
		s.Conflicts,
		s.NotifSent,
		s.NotifFailed,
		s.SweepDuration,
		s.StartupTimeSeconds,
	)

	return s
}

func (s *Service) IncLedgerEntries(kind, status string) {
	s.LedgerEntries.WithLabelValues(kind, status).Inc()
}

func (s *Service) IncReservations(outcome string) {
	s.Reservations.WithLabelValues(outcome).Inc()
}

func (s *Service) AddHoldsExpired(n int) {
	s.HoldsExpired.Add(float64(n))
}

func (s *Service) IncChallenges(outcome string) {
	s.Challenges.WithLabelValues(outcome).Inc()
}

func (s *Service) IncTournamentJoins() {
	s.TournamentJoins.Inc()
}

func (s *Service) IncConflicts() {
	s.Conflicts.Inc()
}

func (s *Service) IncNotifSent(channel string) {
	s.NotifSent.WithLabelValues(channel).Inc()
}

func (s *Service) IncNotifFailed(channel string) {
	s.NotifFailed.WithLabelValues(channel).Inc()
}

func (s *Service) ObserveSweepDuration(job string, duration float64) {
	s.SweepDuration.WithLabelValues(job).Observe(duration)
}

func (s *Service) SetStartupTime(duration float64) {
	s.StartupTimeSeconds.Set(duration)
}
