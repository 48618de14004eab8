package sweeper

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/mauv0809/clubledger/internal/booking"
	"github.com/mauv0809/clubledger/internal/catalog"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/identity"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/tournament"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin = identity.Principal{MemberID: "admin", Roles: []identity.Role{identity.RoleAdmin}}
	t0    = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
)

type fixture struct {
	sweeper     *Sweeper
	db          *sql.DB
	ledger      ledger.Ledger
	bookings    booking.Service
	tournaments tournament.Service
	court       *catalog.Court
	publisher   *events.Mock
	metrics     *metrics.Mock
	store       metrics.MetricsStore
	now         time.Time
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)

	f := &fixture{db: db, publisher: events.NewMock(), metrics: metrics.NewMock(), now: t0}
	clock := func() time.Time { return f.now }
	f.ledger = ledger.New(db, f.metrics)
	cat := catalog.New(db)
	f.bookings = booking.New(db, f.ledger, cat, f.publisher, f.metrics, booking.WithClock(clock))
	f.tournaments = tournament.New(db, f.ledger, f.publisher, f.metrics, tournament.WithClock(clock))
	f.store = metrics.New(db)
	f.sweeper = New(f.bookings, f.tournaments, f.ledger, f.publisher, f.metrics, f.store, DefaultConfig())
	f.sweeper.now = clock

	f.court, err = cat.Upsert(context.Background(), catalog.Court{Name: "Centre", PricePerHour: decimal.NewFromInt(10), IsActive: true})
	require.NoError(t, err)
	return f
}

func (f *fixture) member(t *testing.T, name string) string {
	t.Helper()
	ctx := context.Background()
	m, err := f.ledger.CreateMember(ctx, name, "", 0)
	require.NoError(t, err)
	e, err := f.ledger.RequestDeposit(ctx, m.ID, decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = f.ledger.Approve(ctx, admin, e.ID)
	require.NoError(t, err)
	return m.ID
}

func (f *fixture) counter(t *testing.T, key string) int {
	t.Helper()
	all, err := f.store.GetAll()
	require.NoError(t, err)
	return all[key]
}

func TestHoldExpiryJob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice")

	r, err := f.bookings.Hold(ctx, f.court.ID, a, t0.Add(2*time.Hour), t0.Add(3*time.Hour))
	require.NoError(t, err)

	f.now = t0.Add(4 * time.Minute)
	require.NoError(t, f.sweeper.RunOnce(ctx, JobHoldExpiry))
	got, err := f.bookings.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusHolding, got.Status)

	f.now = t0.Add(5*time.Minute + time.Second)
	require.NoError(t, f.sweeper.RunOnce(ctx, JobHoldExpiry))
	got, err = f.bookings.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status)

	assert.Equal(t, 1, f.counter(t, "holds_expired"))
	assert.Equal(t, 2, f.counter(t, "sweep_runs_hold-expiry"))
	assert.Equal(t, 2, f.metrics.SweepRuns(string(JobHoldExpiry)))
	assert.Contains(t, f.publisher.Types(), events.SlotFreed)
}

func TestCompletionJob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice")

	res, err := f.bookings.CreateDirect(ctx, f.court.ID, a, t0.Add(time.Hour), t0.Add(2*time.Hour))
	require.NoError(t, err)

	f.now = t0.Add(2 * time.Hour)
	require.NoError(t, f.sweeper.RunOnce(ctx, JobCompletion))
	got, err := f.bookings.Get(ctx, res.Reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCompleted, got.Status)
	assert.Equal(t, 1, f.counter(t, "reservations_completed"))
}

func TestTournamentStatusJob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tour, err := f.tournaments.Create(ctx, admin, tournament.Tournament{
		Name:      "Summer Cup",
		StartDate: t0.Add(time.Hour),
		EndDate:   t0.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	f.now = t0.Add(2 * time.Hour)
	require.NoError(t, f.sweeper.RunOnce(ctx, JobTournamentStatus))
	got, err := f.tournaments.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.StatusOngoing, got.Status)

	f.now = t0.Add(25 * time.Hour)
	require.NoError(t, f.sweeper.RunOnce(ctx, JobTournamentStatus))
	got, err = f.tournaments.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.StatusFinished, got.Status)
	assert.Equal(t, 2, f.counter(t, "tournament_transitions"))
}

func TestRemindersJob(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice")

	_, err := f.bookings.CreateDirect(ctx, f.court.ID, a, t0.Add(30*time.Minute), t0.Add(90*time.Minute))
	require.NoError(t, err)
	_, err = f.bookings.CreateDirect(ctx, f.court.ID, a, t0.Add(3*time.Hour), t0.Add(4*time.Hour))
	require.NoError(t, err)

	f.publisher.Reset()
	require.NoError(t, f.sweeper.RunOnce(ctx, JobReminders))
	require.NoError(t, f.sweeper.RunOnce(ctx, JobReminders))

	var reminders []events.Event
	for _, e := range f.publisher.Events() {
		if e.Type == events.Reminder {
			reminders = append(reminders, e)
		}
	}
	require.Len(t, reminders, 1, "each reservation is reminded once")
	assert.Equal(t, []string{a}, reminders[0].Recipients)
	assert.Equal(t, 1, f.counter(t, "reminders_sent"))
}

func TestReconcileJobReportsDrift(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice")
	f.member(t, "Bob")

	require.NoError(t, f.sweeper.RunOnce(ctx, JobReconcile))
	assert.Equal(t, 0, f.counter(t, "balance_drift"))

	_, err := f.db.Exec(`UPDATE members SET balance = '5' WHERE id = ?`, a)
	require.NoError(t, err)

	require.NoError(t, f.sweeper.RunOnce(ctx, JobReconcile))
	assert.Equal(t, 1, f.counter(t, "balance_drift"))

	m, err := f.ledger.GetMember(ctx, a)
	require.NoError(t, err)
	assert.True(t, m.Balance.Equal(decimal.NewFromInt(5)), "drift is reported, not repaired")
}

func TestRunOnceUnknownJob(t *testing.T) {
	f := setup(t)
	assert.ErrorIs(t, f.sweeper.RunOnce(context.Background(), Job("nope")), ErrUnknownJob)
}

func TestStartRunsScheduledJobs(t *testing.T) {
	f := setup(t)
	f.sweeper.cfg = Config{HoldExpiryInterval: 20 * time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, f.sweeper.Start(ctx))

	require.Eventually(t, func() bool {
		return f.metrics.SweepRuns(string(JobHoldExpiry)) > 0 && f.metrics.SweepRuns(string(JobCompletion)) > 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, f.metrics.SweepRuns(string(JobReconcile)), "zero interval disables a job")

	require.NoError(t, f.sweeper.Shutdown())
	assert.NoError(t, f.sweeper.Shutdown(), "second shutdown is a no-op")
}
