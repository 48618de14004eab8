// Package sweeper runs the periodic background jobs. Every job goes through
// the same service operations interactive callers use, so a sweep and a user
// racing for the same row resolve through the same conditional update.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-co-op/gocron/v2"
	"github.com/mauv0809/clubledger/internal/booking"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/tournament"
)

type Job string

const (
	JobHoldExpiry       Job = "hold-expiry"
	JobCompletion       Job = "reservation-completion"
	JobTournamentStatus Job = "tournament-status"
	JobReminders        Job = "reminders"
	JobReconcile        Job = "reconcile"
)

// ErrUnknownJob is returned by RunOnce for a job name it does not know.
var ErrUnknownJob = errors.New("unknown sweeper job")

type Config struct {
	HoldExpiryInterval       time.Duration
	TournamentStatusInterval time.Duration
	RemindersInterval        time.Duration
	ReconcileInterval        time.Duration
	// ReminderLead is how far ahead of a start time a reminder goes out.
	ReminderLead time.Duration
}

func DefaultConfig() Config {
	return Config{
		HoldExpiryInterval:       time.Minute,
		TournamentStatusInterval: time.Minute,
		RemindersInterval:        5 * time.Minute,
		ReconcileInterval:        15 * time.Minute,
		ReminderLead:             time.Hour,
	}
}

type Sweeper struct {
	bookings    booking.Service
	tournaments tournament.Service
	ledger      ledger.Ledger
	publisher   events.Publisher
	metrics     metrics.Metrics
	store       metrics.MetricsStore
	cfg         Config
	now         func() time.Time

	mu        sync.Mutex
	scheduler gocron.Scheduler
}

func New(
	bookings booking.Service,
	tournaments tournament.Service,
	l ledger.Ledger,
	publisher events.Publisher,
	metricsSvc metrics.Metrics,
	store metrics.MetricsStore,
	cfg Config,
) *Sweeper {
	return &Sweeper{
		bookings:    bookings,
		tournaments: tournaments,
		ledger:      l,
		publisher:   publisher,
		metrics:     metricsSvc,
		store:       store,
		cfg:         cfg,
		now:         time.Now,
	}
}

func (s *Sweeper) intervals() map[Job]time.Duration {
	return map[Job]time.Duration{
		JobHoldExpiry:       s.cfg.HoldExpiryInterval,
		JobCompletion:       s.cfg.HoldExpiryInterval,
		JobTournamentStatus: s.cfg.TournamentStatusInterval,
		JobReminders:        s.cfg.RemindersInterval,
		JobReconcile:        s.cfg.ReconcileInterval,
	}
}

// Start schedules every job with a positive interval. Jobs run until ctx is
// done or Shutdown is called. A job never overlaps with its own previous run.
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	for job, every := range s.intervals() {
		if every <= 0 {
			log.Info("Sweeper job disabled", "job", job)
			continue
		}
		_, err := sched.NewJob(
			gocron.DurationJob(every),
			gocron.NewTask(func() { s.run(ctx, job) }),
			gocron.WithName(string(job)),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return fmt.Errorf("failed to schedule %s: %w", job, err)
		}
		log.Info("Sweeper job scheduled", "job", job, "every", every)
	}
	sched.Start()

	s.mu.Lock()
	s.scheduler = sched
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		if err := s.Shutdown(); err != nil {
			log.Error("Failed to stop sweeper", "error", err)
		}
	}()
	return nil
}

// Shutdown stops the scheduler and waits for running jobs.
func (s *Sweeper) Shutdown() error {
	s.mu.Lock()
	sched := s.scheduler
	s.scheduler = nil
	s.mu.Unlock()
	if sched == nil {
		return nil
	}
	return sched.Shutdown()
}

// RunOnce runs job immediately and returns its error.
func (s *Sweeper) RunOnce(ctx context.Context, job Job) error {
	fn, ok := s.jobs()[job]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, job)
	}
	return s.observe(ctx, job, fn)
}

func (s *Sweeper) jobs() map[Job]func(context.Context) error {
	return map[Job]func(context.Context) error{
		JobHoldExpiry:       s.expireHolds,
		JobCompletion:       s.completeReservations,
		JobTournamentStatus: s.advanceTournaments,
		JobReminders:        s.sendReminders,
		JobReconcile:        s.reconcile,
	}
}

// run is the scheduled entry point. Failures are logged and counted; the
// schedule keeps going.
func (s *Sweeper) run(ctx context.Context, job Job) {
	if err := s.RunOnce(ctx, job); err != nil {
		log.Error("Sweeper job failed", "job", job, "error", err)
	}
}

func (s *Sweeper) observe(ctx context.Context, job Job, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	s.metrics.ObserveSweepDuration(string(job), time.Since(start).Seconds())
	s.store.Increment("sweep_runs_" + string(job))
	if err != nil {
		s.store.Increment("sweep_failures_" + string(job))
	}
	return err
}

func (s *Sweeper) expireHolds(ctx context.Context) error {
	expired, err := s.bookings.ExpireHolds(ctx, s.now())
	s.store.Add("holds_expired", len(expired))
	return err
}

func (s *Sweeper) completeReservations(ctx context.Context) error {
	n, err := s.bookings.CompleteFinished(ctx, s.now())
	s.store.Add("reservations_completed", n)
	return err
}

func (s *Sweeper) advanceTournaments(ctx context.Context) error {
	changed, err := s.tournaments.AdvanceStatuses(ctx, s.now())
	s.store.Add("tournament_transitions", len(changed))
	return err
}

func (s *Sweeper) sendReminders(ctx context.Context) error {
	now := s.now()
	var errs []error

	due, err := s.bookings.DueReminders(ctx, now, s.cfg.ReminderLead)
	if err != nil {
		errs = append(errs, err)
	}
	for _, r := range due {
		events.Emit(ctx, s.publisher, events.Event{
			Type:       events.Reminder,
			Recipients: []string{r.MemberID},
			Text:       fmt.Sprintf("Your court booking starts at %s.", r.Start.Format("15:04 Mon 2 Jan")),
			Link:       "/bookings/" + r.ID,
		})
		if err := s.bookings.MarkReminded(ctx, r.ID, now); err != nil {
			errs = append(errs, err)
		}
	}

	matches, err := s.tournaments.DueMatchReminders(ctx, now, s.cfg.ReminderLead)
	if err != nil {
		errs = append(errs, err)
	}
	for _, m := range matches {
		events.Emit(ctx, s.publisher, events.Event{
			Type:       events.Reminder,
			Recipients: m.Players(),
			Text:       fmt.Sprintf("Your %s match starts at %s.", m.RoundName, m.ScheduledAt.Format("15:04 Mon 2 Jan")),
			Link:       "/matches/" + m.ID,
		})
		if err := s.tournaments.MarkMatchReminded(ctx, m.ID, now); err != nil {
			errs = append(errs, err)
		}
	}

	if sent := len(due) + len(matches); sent > 0 {
		s.store.Add("reminders_sent", sent)
		log.Info("Sent reminders", "reservations", len(due), "matches", len(matches))
	}
	return errors.Join(errs...)
}

// reconcile compares every cached balance with its ledger. Drift is logged
// for an operator and never corrected automatically.
func (s *Sweeper) reconcile(ctx context.Context) error {
	recs, err := s.ledger.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	drifted := 0
	for _, rec := range recs {
		if rec.InSync() {
			continue
		}
		drifted++
		log.Error("Balance drift detected", "memberID", rec.MemberID, "cached", rec.Cached, "computed", rec.Computed)
	}
	s.store.Add("balance_drift", drifted)
	log.Debug("Reconciled balances", "members", len(recs), "drifted", drifted)
	return nil
}
