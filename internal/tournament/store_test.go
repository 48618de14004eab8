package tournament_test

import (
	"context"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/mauv0809/clubledger/internal/apperr"
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
	admin   = identity.Principal{MemberID: "admin", Roles: []identity.Role{identity.RoleAdmin}}
	referee = identity.Principal{MemberID: "ref", Roles: []identity.Role{identity.RoleReferee}}
	player  = identity.Principal{MemberID: "someone", Roles: []identity.Role{identity.RoleMember}}
)

var now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc       tournament.Service
	ledger    ledger.Ledger
	publisher *events.Mock
	metrics   *metrics.Mock
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, teardown, err := database.InitDB(":memory:", "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)

	f := &fixture{publisher: events.NewMock(), metrics: metrics.NewMock()}
	f.ledger = ledger.New(db, f.metrics)
	f.svc = tournament.New(db, f.ledger, f.publisher, f.metrics,
		tournament.WithClock(func() time.Time { return now }),
		tournament.WithRand(rand.New(rand.NewPCG(7, 7))),
	)
	return f
}

func (f *fixture) member(t *testing.T, name string, deposit int64) string {
	t.Helper()
	ctx := context.Background()
	m, err := f.ledger.CreateMember(ctx, name, "", 0)
	require.NoError(t, err)
	if deposit > 0 {
		e, err := f.ledger.RequestDeposit(ctx, m.ID, decimal.NewFromInt(deposit))
		require.NoError(t, err)
		_, err = f.ledger.Approve(ctx, admin, e.ID)
		require.NoError(t, err)
	}
	return m.ID
}

func (f *fixture) tournament(t *testing.T, format tournament.Format, fee int64) *tournament.Tournament {
	t.Helper()
	tour, err := f.svc.Create(context.Background(), admin, tournament.Tournament{
		Name:     "Spring Open",
		Format:   format,
		EntryFee: decimal.NewFromInt(fee),
	})
	require.NoError(t, err)
	return tour
}

func TestCreate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, player, tournament.Tournament{Name: "Nope"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = f.svc.Create(ctx, admin, tournament.Tournament{})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.Create(ctx, admin, tournament.Tournament{Name: "Bad", StartDate: now, EndDate: now})
	assert.ErrorIs(t, err, apperr.ErrInvalidInterval)

	tour := f.tournament(t, "", 0)
	assert.Equal(t, tournament.FormatRoundRobin, tour.Format)
	assert.Equal(t, tournament.StatusOpen, tour.Status)
	assert.Equal(t, now.Add(7*24*time.Hour), tour.StartDate)
	assert.Equal(t, now.Add(14*24*time.Hour), tour.EndDate)

	got, err := f.svc.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tour.Name, got.Name)
	assert.Contains(t, f.publisher.Types(), events.TournamentCreated)
}

func TestJoin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tour := f.tournament(t, tournament.FormatRoundRobin, 200)
	a := f.member(t, "Alice", 500)
	poor := f.member(t, "Pat", 100)

	part, err := f.svc.Join(ctx, tour.ID, a, "Smash Bros")
	require.NoError(t, err)
	assert.True(t, part.PaymentStatus)
	assert.NotEmpty(t, part.LedgerEntryID)

	m, err := f.ledger.GetMember(ctx, a)
	require.NoError(t, err)
	assert.True(t, m.Balance.Equal(decimal.NewFromInt(300)))
	assert.True(t, m.TotalSpent.Equal(decimal.NewFromInt(200)))

	_, err = f.svc.Join(ctx, tour.ID, a, "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyJoined)

	_, err = f.svc.Join(ctx, tour.ID, poor, "")
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	_, err = f.svc.Join(ctx, "missing", a, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	parts, err := f.svc.Participants(ctx, tour.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "Smash Bros", parts[0].TeamName)
	assert.Equal(t, 1, f.metrics.TournamentJoins())

	rec, err := f.ledger.Reconcile(ctx, a)
	require.NoError(t, err)
	assert.True(t, rec.InSync())
}

func TestJoinClosedAfterDraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tour := f.tournament(t, tournament.FormatRoundRobin, 0)
	for _, name := range []string{"A", "B"} {
		_, err := f.svc.Join(ctx, tour.ID, f.member(t, name, 0), "")
		require.NoError(t, err)
	}
	_, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	require.NoError(t, err)

	_, err = f.svc.Join(ctx, tour.ID, f.member(t, "Late", 0), "")
	assert.ErrorIs(t, err, apperr.ErrRegistrationClosed)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestGenerateRoundRobin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tour := f.tournament(t, tournament.FormatRoundRobin, 0)

	_, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	assert.ErrorIs(t, err, apperr.ErrNotEnoughParticipants)

	for _, name := range []string{"A", "B", "C", "D"} {
		_, err := f.svc.Join(ctx, tour.ID, f.member(t, name, 0), "")
		require.NoError(t, err)
	}

	_, err = f.svc.GenerateSchedule(ctx, player, tour.ID)
	assert.ErrorIs(t, err, apperr.ErrForbiddenRole)

	sched, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	require.NoError(t, err)
	require.Len(t, sched.Matches, 6)
	assert.Empty(t, sched.Unpaired)

	seen := map[[2]string]bool{}
	for _, m := range sched.Matches {
		assert.Equal(t, tournament.MatchScheduled, m.Status)
		assert.True(t, m.IsRanked)
		k := [2]string{min(m.Team1Player1, m.Team2Player1), max(m.Team1Player1, m.Team2Player1)}
		assert.False(t, seen[k])
		seen[k] = true
	}

	start := tour.StartDate
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	assert.Equal(t, day.Add(9*time.Hour), sched.Matches[0].ScheduledAt)
	assert.Equal(t, day.Add(12*time.Hour), sched.Matches[3].ScheduledAt)
	assert.Equal(t, day.AddDate(0, 0, 1).Add(9*time.Hour), sched.Matches[4].ScheduledAt)

	got, err := f.svc.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.StatusDrawCompleted, got.Status)

	_, err = f.svc.GenerateSchedule(ctx, admin, tour.ID)
	assert.ErrorIs(t, err, apperr.ErrScheduleExists)

	stored, err := f.svc.Matches(ctx, tour.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 6)
}

func TestGenerateKnockoutOdd(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tour := f.tournament(t, tournament.FormatKnockout, 0)
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		_, err := f.svc.Join(ctx, tour.ID, f.member(t, name, 0), "")
		require.NoError(t, err)
	}

	sched, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	require.NoError(t, err)
	assert.Len(t, sched.Matches, 2)
	assert.NotEmpty(t, sched.Unpaired)
	for _, m := range sched.Matches {
		assert.Equal(t, "Round 1", m.RoundName)
		assert.NotEqual(t, sched.Unpaired, m.Team1Player1)
		assert.NotEqual(t, sched.Unpaired, m.Team2Player1)
	}
}

func TestRecordMatchResult(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tour := f.tournament(t, tournament.FormatRoundRobin, 0)

	a := f.member(t, "A", 0)
	b := f.member(t, "B", 0)
	for _, id := range []string{a, b} {
		_, err := f.svc.Join(ctx, tour.ID, id, "")
		require.NoError(t, err)
	}
	sched, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	require.NoError(t, err)
	match := sched.Matches[0]
	require.Equal(t, a, match.Team1Player1)

	_, err = f.svc.RecordMatchResult(ctx, player, match.ID, tournament.Result{Score1: 6, Score2: 3, Side: tournament.SideTeam1})
	assert.ErrorIs(t, err, apperr.ErrForbiddenRole)

	_, err = f.svc.RecordMatchResult(ctx, referee, match.ID, tournament.Result{Side: "NOBODY"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	res, err := f.svc.RecordMatchResult(ctx, referee, match.ID, tournament.Result{Score1: 6, Score2: 3, Details: "6-3", Side: tournament.SideTeam1})
	require.NoError(t, err)
	assert.Equal(t, tournament.MatchFinished, res.Match.Status)
	assert.InDelta(t, 3.05, res.Ranks[a], 1e-9)
	assert.InDelta(t, 2.95, res.Ranks[b], 1e-9)

	ma, err := f.ledger.GetMember(ctx, a)
	require.NoError(t, err)
	assert.InDelta(t, 3.05, ma.RankLevel, 1e-9)

	_, err = f.svc.RecordMatchResult(ctx, admin, match.ID, tournament.Result{Score1: 0, Score2: 6, Side: tournament.SideTeam2})
	assert.ErrorIs(t, err, apperr.ErrMatchAlreadyFinished)

	var scored events.Event
	for _, e := range f.publisher.Events() {
		if e.Type == events.MatchScored {
			scored = e
		}
	}
	assert.Equal(t, "match:"+match.ID, scored.Room)
	assert.ElementsMatch(t, []string{a, b}, scored.Recipients)

	_, err = f.svc.RecordMatchResult(ctx, admin, "missing", tournament.Result{Side: tournament.SideDraw})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRankClampAndDraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tour := f.tournament(t, tournament.FormatRoundRobin, 0)

	top, err := f.ledger.CreateMember(ctx, "Top", "", ledger.MaxRank)
	require.NoError(t, err)
	bottom, err := f.ledger.CreateMember(ctx, "Bottom", "", ledger.MinRank)
	require.NoError(t, err)
	mid := f.member(t, "Mid", 0)
	for _, id := range []string{top.ID, bottom.ID, mid} {
		_, err := f.svc.Join(ctx, tour.ID, id, "")
		require.NoError(t, err)
	}
	sched, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	require.NoError(t, err)
	require.Len(t, sched.Matches, 3)

	// Top vs Bottom: the favourite wins, neither can move further.
	res, err := f.svc.RecordMatchResult(ctx, admin, sched.Matches[0].ID, tournament.Result{Score1: 6, Score2: 0, Side: tournament.SideTeam1})
	require.NoError(t, err)
	assert.Equal(t, ledger.MaxRank, res.Ranks[top.ID])
	assert.Equal(t, ledger.MinRank, res.Ranks[bottom.ID])

	// Top vs Mid drawn: nobody moves.
	res, err = f.svc.RecordMatchResult(ctx, admin, sched.Matches[1].ID, tournament.Result{Score1: 3, Score2: 3, Side: tournament.SideDraw})
	require.NoError(t, err)
	assert.Empty(t, res.Ranks)
	m, err := f.ledger.GetMember(ctx, mid)
	require.NoError(t, err)
	assert.Equal(t, ledger.DefaultRank, m.RankLevel)
}

func TestAdvanceStatuses(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	upcoming, err := f.svc.Create(ctx, admin, tournament.Tournament{Name: "Upcoming", StartDate: now.Add(time.Hour), EndDate: now.Add(48 * time.Hour)})
	require.NoError(t, err)
	started, err := f.svc.Create(ctx, admin, tournament.Tournament{Name: "Started", StartDate: now.Add(-time.Hour), EndDate: now.Add(48 * time.Hour)})
	require.NoError(t, err)
	ended, err := f.svc.Create(ctx, admin, tournament.Tournament{Name: "Ended", StartDate: now.Add(-72 * time.Hour), EndDate: now.Add(-time.Hour)})
	require.NoError(t, err)

	changed, err := f.svc.AdvanceStatuses(ctx, now)
	require.NoError(t, err)
	require.Len(t, changed, 2)

	status := func(id string) tournament.Status {
		got, err := f.svc.Get(ctx, id)
		require.NoError(t, err)
		return got.Status
	}
	assert.Equal(t, tournament.StatusOpen, status(upcoming.ID))
	assert.Equal(t, tournament.StatusOngoing, status(started.ID))
	assert.Equal(t, tournament.StatusFinished, status(ended.ID))

	again, err := f.svc.AdvanceStatuses(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again)

	later, err := f.svc.AdvanceStatuses(ctx, now.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Len(t, later, 2)
	assert.Equal(t, tournament.StatusFinished, status(started.ID))

	finished, err := f.svc.List(ctx, tournament.StatusFinished)
	require.NoError(t, err)
	assert.Len(t, finished, 3)
}

func TestGenerateScheduleAfterStart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tour, err := f.svc.Create(ctx, admin, tournament.Tournament{
		Name:      "Late Draw",
		Format:    tournament.FormatRoundRobin,
		StartDate: now.Add(time.Hour),
		EndDate:   now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	for _, name := range []string{"A", "B", "C"} {
		_, err := f.svc.Join(ctx, tour.ID, f.member(t, name, 0), "")
		require.NoError(t, err)
	}

	changed, err := f.svc.AdvanceStatuses(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, tournament.StatusOngoing, changed[0].Status)

	sched, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	require.NoError(t, err)
	assert.Len(t, sched.Matches, 3)

	got, err := f.svc.Get(ctx, tour.ID)
	require.NoError(t, err)
	assert.Equal(t, tournament.StatusOngoing, got.Status)

	_, err = f.svc.GenerateSchedule(ctx, admin, tour.ID)
	assert.ErrorIs(t, err, apperr.ErrScheduleExists)
}

func TestGenerateScheduleRefusesFinished(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tour, err := f.svc.Create(ctx, admin, tournament.Tournament{
		Name:      "Abandoned",
		StartDate: now.Add(-72 * time.Hour),
		EndDate:   now.Add(-time.Hour),
	})
	require.NoError(t, err)
	for _, name := range []string{"A", "B"} {
		_, err := f.svc.Join(ctx, tour.ID, f.member(t, name, 0), "")
		require.NoError(t, err)
	}
	_, err = f.svc.AdvanceStatuses(ctx, now)
	require.NoError(t, err)

	_, err = f.svc.GenerateSchedule(ctx, admin, tour.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
	assert.NotErrorIs(t, err, apperr.ErrScheduleExists)
}

func TestRegistrationClosesAtStart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	tour, err := f.svc.Create(ctx, admin, tournament.Tournament{
		Name:      "Ladder",
		Status:    tournament.StatusRegistering,
		StartDate: now.Add(time.Hour),
		EndDate:   now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, tour.ID, f.member(t, "Early", 0), "")
	require.NoError(t, err)

	changed, err := f.svc.AdvanceStatuses(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, changed, 1)
	assert.Equal(t, tournament.StatusOngoing, changed[0].Status)

	_, err = f.svc.Join(ctx, tour.ID, f.member(t, "Late", 100), "")
	assert.ErrorIs(t, err, apperr.ErrRegistrationClosed)
}

func TestMatchReminders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	tour, err := f.svc.Create(ctx, admin, tournament.Tournament{
		Name:      "Tonight",
		StartDate: now.Add(-3 * time.Hour),
		EndDate:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	for _, name := range []string{"A", "B"} {
		_, err := f.svc.Join(ctx, tour.ID, f.member(t, name, 0), "")
		require.NoError(t, err)
	}
	sched, err := f.svc.GenerateSchedule(ctx, admin, tour.ID)
	require.NoError(t, err)
	// The only match sits at 09:00 on the start day, i.e. 09:00 today.
	at := sched.Matches[0].ScheduledAt

	due, err := f.svc.DueMatchReminders(ctx, at.Add(-30*time.Minute), time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)

	require.NoError(t, f.svc.MarkMatchReminded(ctx, due[0].ID, at.Add(-30*time.Minute)))
	due, err = f.svc.DueMatchReminders(ctx, at.Add(-30*time.Minute), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)
}
