package booking_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/booking"
	"github.com/mauv0809/clubledger/internal/catalog"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/identity"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var admin = identity.Principal{MemberID: "admin", Roles: []identity.Role{identity.RoleAdmin}}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	svc       booking.Service
	ledger    ledger.Ledger
	catalog   catalog.Catalog
	publisher *events.Mock
	metrics   *metrics.Mock
	clock     *clock
	db        *sql.DB
	court     *catalog.Court
}

var base = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // a Monday

func setup(t *testing.T, opts ...booking.Option) *fixture {
	t.Helper()
	return setupDB(t, ":memory:", opts...)
}

// setupFile runs against an on-disk database where every connection is a
// separate writer.
func setupFile(t *testing.T, opts ...booking.Option) *fixture {
	t.Helper()
	return setupDB(t, filepath.Join(t.TempDir(), "club.db"), opts...)
}

func setupDB(t *testing.T, path string, opts ...booking.Option) *fixture {
	t.Helper()
	db, teardown, err := database.InitDB(path, "", "", "../../migrations")
	require.NoError(t, err)
	t.Cleanup(teardown)

	f := &fixture{
		publisher: events.NewMock(),
		metrics:   metrics.NewMock(),
		clock:     &clock{now: base},
		db:        db,
	}
	f.ledger = ledger.New(db, f.metrics)
	f.catalog = catalog.New(db)
	opts = append([]booking.Option{booking.WithClock(f.clock.Now)}, opts...)
	f.svc = booking.New(db, f.ledger, f.catalog, f.publisher, f.metrics, opts...)

	f.court, err = f.catalog.Upsert(context.Background(), catalog.Court{
		Name:         "Court 1",
		PricePerHour: decimal.NewFromInt(100),
		IsActive:     true,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) member(t *testing.T, name string, deposit int64) *ledger.Member {
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
	m, err = f.ledger.GetMember(ctx, m.ID)
	require.NoError(t, err)
	return m
}

func (f *fixture) balance(t *testing.T, memberID string) decimal.Decimal {
	t.Helper()
	m, err := f.ledger.GetMember(context.Background(), memberID)
	require.NoError(t, err)
	return m.Balance
}

func (f *fixture) assertInSync(t *testing.T, memberID string) {
	t.Helper()
	rec, err := f.ledger.Reconcile(context.Background(), memberID)
	require.NoError(t, err)
	assert.True(t, rec.InSync(), "cached %s != computed %s", rec.Cached, rec.Computed)
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func TestPrice(t *testing.T) {
	pph := decimal.NewFromInt(100)
	assert.Equal(t, "100", booking.Price(at(10, 0), at(11, 0), pph).String())
	assert.Equal(t, "150", booking.Price(at(10, 0), at(11, 30), pph).String())
	assert.Equal(t, "33.33", booking.Price(at(10, 0), at(10, 20), pph).String())
}

func TestHoldOverlap(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 1000)
	b := f.member(t, "Bob", 1000)

	_, err := f.svc.CreateDirect(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	_, err = f.svc.Hold(ctx, f.court.ID, b.ID, at(10, 30), at(11, 30))
	assert.ErrorIs(t, err, apperr.ErrResourceUnavailable)

	_, err = f.svc.Hold(ctx, f.court.ID, b.ID, at(9, 0), at(12, 0))
	assert.ErrorIs(t, err, apperr.ErrResourceUnavailable, "containing range overlaps")

	_, err = f.svc.Hold(ctx, f.court.ID, b.ID, at(10, 15), at(10, 45))
	assert.ErrorIs(t, err, apperr.ErrResourceUnavailable, "contained range overlaps")

	r, err := f.svc.Hold(ctx, f.court.ID, b.ID, at(11, 0), at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusHolding, r.Status)
	assert.Empty(t, r.LedgerEntryID)
	assert.True(t, f.balance(t, b.ID).Equal(decimal.NewFromInt(1000)), "hold moves no funds")

	_, err = f.svc.Hold(ctx, f.court.ID, a.ID, at(9, 0), at(10, 0))
	assert.NoError(t, err, "adjacent range ending at start is free")
}

func TestHoldValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 0)

	_, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(11, 0), at(10, 0))
	assert.ErrorIs(t, err, apperr.ErrInvalidInterval)

	_, err = f.svc.Hold(ctx, "missing", a.ID, at(10, 0), at(11, 0))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.svc.Hold(ctx, f.court.ID, "missing", at(10, 0), at(11, 0))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	closed, err := f.catalog.Upsert(ctx, catalog.Court{Name: "Closed", PricePerHour: decimal.NewFromInt(50)})
	require.NoError(t, err)
	_, err = f.svc.Hold(ctx, closed.ID, a.ID, at(10, 0), at(11, 0))
	assert.ErrorIs(t, err, apperr.ErrCourtInactive)
}

func TestConfirm(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)
	b := f.member(t, "Bob", 500)

	r, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 30))
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, r.ID, b.ID)
	assert.ErrorIs(t, err, apperr.ErrNotOwner)

	f.clock.Set(base.Add(4 * time.Minute))
	res, err := f.svc.Confirm(ctx, r.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, res.Reservation.Status)
	assert.True(t, res.NewBalance.Equal(decimal.NewFromInt(350)))
	assert.NotEmpty(t, res.Reservation.LedgerEntryID)

	entry, err := f.ledger.Entry(ctx, res.Reservation.LedgerEntryID)
	require.NoError(t, err)
	assert.Equal(t, ledger.KindPayment, entry.Kind)
	assert.True(t, entry.Amount.Equal(decimal.NewFromInt(-150)))
	assert.Equal(t, r.ID, entry.CorrelationID)

	_, err = f.svc.Confirm(ctx, r.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	f.assertInSync(t, a.ID)
	assert.Contains(t, f.publisher.Types(), events.ReservationConfirmed)
}

func TestConfirmInsufficientFundsKeepsHold(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 50)

	r, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	_, err = f.svc.Confirm(ctx, r.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusHolding, got.Status)
	assert.True(t, f.balance(t, a.ID).Equal(decimal.NewFromInt(50)))
	f.assertInSync(t, a.ID)
}

func TestConfirmAfterHoldWindowExpires(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)

	r, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	f.clock.Set(base.Add(5*time.Minute + time.Second))
	_, err = f.svc.Confirm(ctx, r.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrExpired)

	got, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusCancelled, got.Status, "expiry is committed even though confirm fails")
	assert.True(t, f.balance(t, a.ID).Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 1, f.metrics.HoldsExpired())
	assert.Contains(t, f.publisher.Types(), events.HoldExpired)
	assert.Contains(t, f.publisher.Types(), events.SlotFreed)

	_, err = f.svc.Confirm(ctx, r.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestConfirmExactlyAtWindowSucceeds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)

	r, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	f.clock.Set(base.Add(5 * time.Minute))
	_, err = f.svc.Confirm(ctx, r.ID, a.ID)
	assert.NoError(t, err)
}

func TestHoldWindowKeepsSubsecondPrecision(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)

	heldAt := base.Add(900 * time.Millisecond)
	f.clock.Set(heldAt)
	r, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, heldAt, r.CreatedAt)

	stored, err := f.svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, heldAt, stored.CreatedAt)

	expired, err := f.svc.ExpireHolds(ctx, heldAt.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, expired, "a hold is live until the full window has passed")

	f.clock.Set(heldAt.Add(5*time.Minute - 500*time.Millisecond))
	_, err = f.svc.Confirm(ctx, r.ID, a.ID)
	require.NoError(t, err)

	late, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(12, 0), at(13, 0))
	require.NoError(t, err)
	expired, err = f.svc.ExpireHolds(ctx, late.CreatedAt.Add(5*time.Minute+time.Millisecond))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, late.ID, expired[0].ID)
}

func TestCustomHoldWindow(t *testing.T) {
	f := setup(t, booking.WithHoldWindow(time.Minute))
	ctx := context.Background()
	a := f.member(t, "Alice", 500)

	r, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	f.clock.Set(base.Add(2 * time.Minute))
	_, err = f.svc.Confirm(ctx, r.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrExpired)
}

func TestCreateDirect(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 120)

	res, err := f.svc.CreateDirect(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, booking.StatusConfirmed, res.Reservation.Status)
	assert.True(t, res.NewBalance.Equal(decimal.NewFromInt(20)))

	_, err = f.svc.CreateDirect(ctx, f.court.ID, a.ID, at(12, 0), at(13, 0))
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	cal, err := f.svc.Calendar(ctx, f.court.ID, at(0, 0), at(23, 0))
	require.NoError(t, err)
	assert.Len(t, cal, 1, "failed booking leaves no reservation behind")
	f.assertInSync(t, a.ID)
}

func TestCancel(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)
	b := f.member(t, "Bob", 500)

	t.Run("confirmed reservation is refunded", func(t *testing.T) {
		res, err := f.svc.CreateDirect(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, res.Reservation.ID, b.ID)
		assert.ErrorIs(t, err, apperr.ErrNotOwner)

		out, err := f.svc.Cancel(ctx, res.Reservation.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, out.Refund.Equal(decimal.NewFromInt(100)))
		assert.True(t, f.balance(t, a.ID).Equal(decimal.NewFromInt(500)))

		_, err = f.svc.Cancel(ctx, res.Reservation.ID, a.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
		_, err = f.svc.Confirm(ctx, res.Reservation.ID, a.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)
		f.assertInSync(t, a.ID)
	})

	t.Run("hold cancel has no ledger effect", func(t *testing.T) {
		before, err := f.ledger.Entries(ctx, b.ID)
		require.NoError(t, err)

		r, err := f.svc.Hold(ctx, f.court.ID, b.ID, at(14, 0), at(15, 0))
		require.NoError(t, err)
		out, err := f.svc.Cancel(ctx, r.ID, b.ID)
		require.NoError(t, err)
		assert.True(t, out.Refund.IsZero())

		after, err := f.ledger.Entries(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, after, len(before))

		_, err = f.svc.Hold(ctx, f.court.ID, a.ID, at(14, 0), at(15, 0))
		assert.NoError(t, err, "cancelled slot is free again")
	})

	t.Run("completed reservation is terminal", func(t *testing.T) {
		res, err := f.svc.CreateDirect(ctx, f.court.ID, b.ID, at(16, 0), at(17, 0))
		require.NoError(t, err)

		n, err := f.svc.CompleteFinished(ctx, at(17, 0))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 1)

		_, err = f.svc.Cancel(ctx, res.Reservation.ID, b.ID)
		assert.ErrorIs(t, err, apperr.ErrInvalidState)

		_, err = f.svc.Hold(ctx, f.court.ID, a.ID, at(16, 0), at(17, 0))
		assert.ErrorIs(t, err, apperr.ErrSlotTaken, "completed reservations still occupy the slot")
	})
}

type halfRefund struct{}

func (halfRefund) Refund(r booking.Reservation, _ time.Time) decimal.Decimal {
	return r.Price.Div(decimal.NewFromInt(2))
}

func TestCancelWithRefundPolicy(t *testing.T) {
	f := setup(t, booking.WithRefundPolicy(halfRefund{}))
	ctx := context.Background()
	a := f.member(t, "Alice", 500)

	res, err := f.svc.CreateDirect(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)
	out, err := f.svc.Cancel(ctx, res.Reservation.ID, a.ID)
	require.NoError(t, err)
	assert.True(t, out.Refund.Equal(decimal.NewFromInt(50)))
	assert.True(t, f.balance(t, a.ID).Equal(decimal.NewFromInt(450)))
	f.assertInSync(t, a.ID)
}

func TestCreateRecurring(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	gold := f.member(t, "Gina", 5_000_000)
	standard := f.member(t, "Sam", 999_999)

	req := booking.RecurringRequest{
		CourtID:    f.court.ID,
		MemberID:   gold.ID,
		From:       time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		To:         time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		StartOfDay: 18 * time.Hour,
		EndOfDay:   19 * time.Hour,
		Weekdays:   []time.Weekday{time.Monday, time.Wednesday},
	}

	t.Run("tier gate", func(t *testing.T) {
		low := req
		low.MemberID = standard.ID
		_, err := f.svc.CreateRecurring(ctx, low)
		assert.ErrorIs(t, err, apperr.ErrTierRequired)
		assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	})

	t.Run("skips conflicts and debits once", func(t *testing.T) {
		// Wednesday 4 March is already taken.
		_, err := f.svc.Hold(ctx, f.court.ID, standard.ID,
			time.Date(2026, 3, 4, 18, 30, 0, 0, time.UTC), time.Date(2026, 3, 4, 19, 30, 0, 0, time.UTC))
		require.NoError(t, err)

		before, err := f.ledger.Entries(ctx, gold.ID)
		require.NoError(t, err)

		res, err := f.svc.CreateRecurring(ctx, req)
		require.NoError(t, err)
		assert.Len(t, res.Created, 3)
		assert.Len(t, res.Skipped, 1)
		assert.True(t, res.TotalCost.Equal(decimal.NewFromInt(300)))

		for _, r := range res.Created {
			assert.Equal(t, booking.StatusConfirmed, r.Status)
			assert.Equal(t, res.LedgerEntryID, r.LedgerEntryID)
			assert.Equal(t, 18, r.Start.Hour())
		}

		after, err := f.ledger.Entries(ctx, gold.ID)
		require.NoError(t, err)
		assert.Len(t, after, len(before)+1, "one entry for the whole series")
		assert.True(t, f.balance(t, gold.ID).Equal(decimal.NewFromInt(5_000_000-300)))
		f.assertInSync(t, gold.ID)
	})

	t.Run("no free slots", func(t *testing.T) {
		_, err := f.svc.CreateRecurring(ctx, req)
		assert.ErrorIs(t, err, apperr.ErrNoSlotsAvailable)
	})

	t.Run("insufficient funds for the series", func(t *testing.T) {
		poor := f.member(t, "Pat", 5_000_000)
		_, err := f.ledger.Record(ctx, ledger.NewEntry{
			MemberID: poor.ID,
			Amount:   decimal.NewFromInt(-4_999_900),
			Kind:     ledger.KindWithdraw,
			Status:   ledger.StatusCompleted,
		})
		require.NoError(t, err)

		other := req
		other.MemberID = poor.ID
		other.StartOfDay, other.EndOfDay = 7*time.Hour, 8*time.Hour
		other.From = time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
		other.To = time.Date(2026, 3, 29, 0, 0, 0, 0, time.UTC)
		_, err = f.svc.CreateRecurring(ctx, other)
		assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
	})

	t.Run("validation", func(t *testing.T) {
		bad := req
		bad.Weekdays = nil
		_, err := f.svc.CreateRecurring(ctx, bad)
		assert.ErrorIs(t, err, apperr.ErrValidation)

		bad = req
		bad.EndOfDay = bad.StartOfDay
		_, err = f.svc.CreateRecurring(ctx, bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidInterval)
	})
}

func TestExpireHolds(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)

	stale, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)

	f.clock.Set(base.Add(3 * time.Minute))
	fresh, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(12, 0), at(13, 0))
	require.NoError(t, err)

	expired, err := f.svc.ExpireHolds(ctx, base.Add(6*time.Minute))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.ID, expired[0].ID)

	got, err := f.svc.Get(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatusHolding, got.Status)

	f.clock.Set(base.Add(6 * time.Minute))
	_, err = f.svc.Confirm(ctx, stale.ID, a.ID)
	assert.ErrorIs(t, err, apperr.ErrInvalidState, "confirm loses to the sweeper")

	again, err := f.svc.ExpireHolds(ctx, base.Add(6*time.Minute))
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestConcurrentHoldsOnSameSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const n = 8
	members := make([]*ledger.Member, n)
	for i := range members {
		members[i] = f.member(t, string(rune('A'+i)), 0)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.Hold(ctx, f.court.ID, members[i].ID, at(10, 0), at(11, 0))
		}()
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, apperr.ErrResourceUnavailable)
	}
	assert.Equal(t, 1, won)
}

func TestConcurrentConfirmsNeverOverdraw(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 250)

	holds := make([]*booking.Reservation, 4)
	for i := range holds {
		r, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(9+i, 0), at(10+i, 0))
		require.NoError(t, err)
		holds[i] = r
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	confirmed := 0
	for _, r := range holds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Confirm(ctx, r.ID, a.ID)
			if err == nil {
				mu.Lock()
				confirmed++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, confirmed)
	assert.True(t, f.balance(t, a.ID).Equal(decimal.NewFromInt(50)))
	f.assertInSync(t, a.ID)
}

func TestConcurrentBookingsOnFileDatabase(t *testing.T) {
	f := setupFile(t)
	ctx := context.Background()

	t.Run("each contested slot has one winner", func(t *testing.T) {
		a := f.member(t, "Alice", 1000)

		const slots = 10
		var wg sync.WaitGroup
		errs := make([]error, 2*slots)
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				h := 8 + i%slots
				_, errs[i] = f.svc.CreateDirect(ctx, f.court.ID, a.ID, at(h, 0), at(h+1, 0))
			}()
		}
		wg.Wait()

		won := 0
		for _, err := range errs {
			if err == nil {
				won++
				continue
			}
			assert.ErrorIs(t, err, apperr.ErrSlotTaken)
		}
		assert.Equal(t, slots, won)

		rows, err := f.db.Query(`SELECT start_time, COUNT(*) FROM reservations WHERE status = ? GROUP BY start_time`, string(booking.StatusConfirmed))
		require.NoError(t, err)
		defer rows.Close()
		seen := 0
		for rows.Next() {
			var start int64
			var n int
			require.NoError(t, rows.Scan(&start, &n))
			assert.Equal(t, 1, n, "slot at %s", time.Unix(start, 0).UTC())
			seen++
		}
		require.NoError(t, rows.Err())
		assert.Equal(t, slots, seen)

		assert.True(t, f.balance(t, a.ID).IsZero())
		f.assertInSync(t, a.ID)
	})

	t.Run("disjoint confirms never overdraw", func(t *testing.T) {
		b := f.member(t, "Bob", 250)

		holds := make([]*booking.Reservation, 4)
		for i := range holds {
			r, err := f.svc.Hold(ctx, f.court.ID, b.ID, at(18+i, 0), at(19+i, 0))
			require.NoError(t, err)
			holds[i] = r
		}

		var wg sync.WaitGroup
		errs := make([]error, 2*len(holds))
		for i := range errs {
			wg.Add(1)
			go func() {
				defer wg.Done()
				r := holds[i%len(holds)]
				_, errs[i] = f.svc.Confirm(ctx, r.ID, b.ID)
			}()
		}
		wg.Wait()

		confirmed := 0
		for _, err := range errs {
			if err == nil {
				confirmed++
				continue
			}
			assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds) || errors.Is(err, apperr.ErrInvalidState), "unexpected error: %v", err)
		}
		assert.Equal(t, 2, confirmed)
		balance := f.balance(t, b.ID)
		assert.False(t, balance.IsNegative())
		assert.True(t, balance.Equal(decimal.NewFromInt(50)))
		f.assertInSync(t, b.ID)
	})
}

func TestReminders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)

	soon, err := f.svc.CreateDirect(ctx, f.court.ID, a.ID, base.Add(30*time.Minute), base.Add(90*time.Minute))
	require.NoError(t, err)
	_, err = f.svc.CreateDirect(ctx, f.court.ID, a.ID, base.Add(5*time.Hour), base.Add(6*time.Hour))
	require.NoError(t, err)

	due, err := f.svc.DueReminders(ctx, base, time.Hour)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, soon.Reservation.ID, due[0].ID)

	require.NoError(t, f.svc.MarkReminded(ctx, soon.Reservation.ID, base))
	due, err = f.svc.DueReminders(ctx, base, time.Hour)
	require.NoError(t, err)
	assert.Empty(t, due)

	assert.ErrorIs(t, f.svc.MarkReminded(ctx, "missing", base), apperr.ErrNotFound)
}

func TestListByMember(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	a := f.member(t, "Alice", 500)
	b := f.member(t, "Bob", 500)

	_, err := f.svc.Hold(ctx, f.court.ID, a.ID, at(10, 0), at(11, 0))
	require.NoError(t, err)
	_, err = f.svc.Hold(ctx, f.court.ID, b.ID, at(11, 0), at(12, 0))
	require.NoError(t, err)

	mine, err := f.svc.ListByMember(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].MemberID)
}
