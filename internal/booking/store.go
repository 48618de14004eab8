package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/catalog"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
	"github.com/shopspring/decimal"
)

// maxRecurringDays bounds the date range of a recurring booking.
const maxRecurringDays = 366

const reservationColumns = `id, court_id, member_id, start_time, end_time, price, status, COALESCE(ledger_entry_id, ''), created_at, updated_at, reminded_at`

type store struct {
	db         *sql.DB
	ledger     ledger.Ledger
	catalog    catalog.Catalog
	publisher  events.Publisher
	metrics    metrics.Metrics
	holdWindow time.Duration
	refunds    RefundPolicy
	now        func() time.Time
}

type Option func(*store)

// WithHoldWindow overrides DefaultHoldWindow.
func WithHoldWindow(d time.Duration) Option {
	return func(s *store) {
		if d > 0 {
			s.holdWindow = d
		}
	}
}

func WithRefundPolicy(p RefundPolicy) Option {
	return func(s *store) { s.refunds = p }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *store) { s.now = now }
}

func New(db *sql.DB, l ledger.Ledger, c catalog.Catalog, publisher events.Publisher, metricsSvc metrics.Metrics, opts ...Option) Service {
	s := &store{
		db:         db,
		ledger:     l,
		catalog:    c,
		publisher:  publisher,
		metrics:    metricsSvc,
		holdWindow: DefaultHoldWindow,
		refunds:    FullRefund{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func scanReservation(row interface{ Scan(...any) error }) (*Reservation, error) {
	var r Reservation
	var start, end, createdAt, updatedAt int64
	var remindedAt sql.NullInt64
	if err := row.Scan(&r.ID, &r.CourtID, &r.MemberID, &start, &end, &r.Price, &r.Status, &r.LedgerEntryID, &createdAt, &updatedAt, &remindedAt); err != nil {
		return nil, err
	}
	r.Start = time.Unix(start, 0).UTC()
	r.End = time.Unix(end, 0).UTC()
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if remindedAt.Valid {
		t := time.Unix(remindedAt.Int64, 0).UTC()
		r.RemindedAt = &t
	}
	return &r, nil
}

func getReservationTx(ctx context.Context, tx *sql.Tx, id string) (*Reservation, error) {
	r, err := scanReservation(tx.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("reservation %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

// overlapsTx reports whether [start, end) intersects an active reservation on the court.
func overlapsTx(ctx context.Context, tx *sql.Tx, courtID string, start, end time.Time) (bool, error) {
	var n int
	err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM reservations
		WHERE court_id = ? AND status IN (?, ?, ?) AND start_time < ? AND end_time > ?`,
		courtID, string(StatusHolding), string(StatusConfirmed), string(StatusCompleted), end.Unix(), start.Unix(),
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check overlap: %w", err)
	}
	return n > 0, nil
}

func insertReservationTx(ctx context.Context, tx *sql.Tx, r *Reservation) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO reservations (id, court_id, member_id, start_time, end_time, price, status, ledger_entry_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?, ?)`,
		r.ID, r.CourtID, r.MemberID, r.Start.Unix(), r.End.Unix(), r.Price, string(r.Status), r.LedgerEntryID,
		r.CreatedAt.UnixNano(), r.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}
	return nil
}

// slotTx checks the court and the slot and prices it. It is the shared
// precondition of every way to create a reservation.
func (s *store) slotTx(ctx context.Context, tx *sql.Tx, courtID, memberID string, start, end time.Time) (decimal.Decimal, error) {
	if !end.After(start) {
		return decimal.Zero, apperr.ErrInvalidInterval
	}
	court, err := s.catalog.CourtTx(ctx, tx, courtID)
	if err != nil {
		return decimal.Zero, err
	}
	if !court.IsActive {
		return decimal.Zero, apperr.ErrCourtInactive
	}
	if _, err := s.ledger.MemberTx(ctx, tx, memberID); err != nil {
		return decimal.Zero, err
	}
	taken, err := overlapsTx(ctx, tx, courtID, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	if taken {
		return decimal.Zero, apperr.ErrSlotTaken
	}
	return Price(start, end, court.PricePerHour), nil
}

func (s *store) Hold(ctx context.Context, courtID, memberID string, start, end time.Time) (*Reservation, error) {
	var res *Reservation
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		price, err := s.slotTx(ctx, tx, courtID, memberID, start, end)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		res = &Reservation{
			ID:        uuid.New().String(),
			CourtID:   courtID,
			MemberID:  memberID,
			Start:     start.UTC(),
			End:       end.UTC(),
			Price:     price,
			Status:    StatusHolding,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return insertReservationTx(ctx, tx, res)
	})
	if err != nil {
		s.reject("hold", err)
		return nil, err
	}
	s.metrics.IncReservations("held")
	log.Info("Slot held", "reservationID", res.ID, "courtID", courtID, "memberID", memberID, "start", res.Start)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.SlotHeld,
		Recipients: []string{memberID},
		Text:       fmt.Sprintf("Slot held from %s until %s. Confirm within %s.", res.Start.Format(time.RFC3339), res.End.Format(time.RFC3339), s.holdWindow),
		Link:       "/bookings/" + res.ID,
	})
	return res, nil
}

// cancelHoldTx moves a reservation from HOLDING to CANCELLED. It reports
// false when another caller changed the status first.
func cancelHoldTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE reservations SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(StatusCancelled), now.Unix(), id, string(StatusHolding),
	)
	if err != nil {
		return false, fmt.Errorf("failed to cancel hold: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to cancel hold: %w", err)
	}
	return n == 1, nil
}

func (s *store) expired(r *Reservation, now time.Time) bool {
	return now.After(r.CreatedAt.Add(s.holdWindow))
}

func (s *store) Confirm(ctx context.Context, reservationID, memberID string) (*ConfirmResult, error) {
	var result *ConfirmResult
	var expired *Reservation
	var entry *ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		result, expired, entry = nil, nil, nil
		r, err := getReservationTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if r.MemberID != memberID {
			return apperr.ErrNotOwner
		}
		if r.Status != StatusHolding {
			return apperr.InvalidStatef("reservation %s is %s", r.ID, r.Status)
		}
		now := s.now().UTC()
		if s.expired(r, now) {
			won, err := cancelHoldTx(ctx, tx, r.ID, now)
			if err != nil {
				return err
			}
			if !won {
				return apperr.InvalidStatef("reservation %s changed concurrently", r.ID)
			}
			r.Status, r.UpdatedAt = StatusCancelled, now
			expired = r
			return nil
		}
		if r.Price.IsPositive() {
			entry, err = s.ledger.DebitTx(ctx, tx, memberID, r.Price, r.ID, "Court reservation")
			if err != nil {
				return err
			}
			r.LedgerEntryID = entry.ID
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reservations SET status = ?, ledger_entry_id = NULLIF(?, ''), updated_at = ?
			WHERE id = ? AND status = ?`,
			string(StatusConfirmed), r.LedgerEntryID, now.Unix(), r.ID, string(StatusHolding),
		)
		if err != nil {
			return fmt.Errorf("failed to confirm reservation: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return apperr.InvalidStatef("reservation %s changed concurrently", r.ID)
		}
		m, err := s.ledger.MemberTx(ctx, tx, memberID)
		if err != nil {
			return err
		}
		r.Status, r.UpdatedAt = StatusConfirmed, now
		result = &ConfirmResult{Reservation: *r, NewBalance: m.Balance}
		return nil
	})
	if err != nil {
		s.reject("confirm", err)
		return nil, err
	}
	if expired != nil {
		s.metrics.IncReservations("expired")
		s.metrics.AddHoldsExpired(1)
		log.Info("Hold expired on confirm", "reservationID", expired.ID, "memberID", memberID)
		s.emitFreed(ctx, expired, events.HoldExpired, "Your hold expired before it was confirmed.")
		return nil, apperr.ErrExpired
	}
	s.recordEntry(entry)
	s.metrics.IncReservations("confirmed")
	log.Info("Reservation confirmed", "reservationID", reservationID, "memberID", memberID, "price", result.Reservation.Price)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.ReservationConfirmed,
		Recipients: []string{memberID},
		Text:       fmt.Sprintf("Reservation confirmed. %s was charged, new balance %s.", result.Reservation.Price, result.NewBalance),
		Level:      notifier.LevelSuccess,
		Link:       "/bookings/" + reservationID,
	})
	return result, nil
}

func (s *store) CreateDirect(ctx context.Context, courtID, memberID string, start, end time.Time) (*ConfirmResult, error) {
	var result *ConfirmResult
	var entry *ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		entry = nil
		price, err := s.slotTx(ctx, tx, courtID, memberID, start, end)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		r := &Reservation{
			ID:        uuid.New().String(),
			CourtID:   courtID,
			MemberID:  memberID,
			Start:     start.UTC(),
			End:       end.UTC(),
			Price:     price,
			Status:    StatusConfirmed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if price.IsPositive() {
			entry, err = s.ledger.DebitTx(ctx, tx, memberID, price, r.ID, "Court reservation")
			if err != nil {
				return err
			}
			r.LedgerEntryID = entry.ID
		}
		if err := insertReservationTx(ctx, tx, r); err != nil {
			return err
		}
		m, err := s.ledger.MemberTx(ctx, tx, memberID)
		if err != nil {
			return err
		}
		result = &ConfirmResult{Reservation: *r, NewBalance: m.Balance}
		return nil
	})
	if err != nil {
		s.reject("direct", err)
		return nil, err
	}
	s.recordEntry(entry)
	s.metrics.IncReservations("direct")
	log.Info("Reservation created", "reservationID", result.Reservation.ID, "courtID", courtID, "memberID", memberID)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.ReservationConfirmed,
		Recipients: []string{memberID},
		Text:       fmt.Sprintf("Court booked. %s was charged, new balance %s.", result.Reservation.Price, result.NewBalance),
		Level:      notifier.LevelSuccess,
		Link:       "/bookings/" + result.Reservation.ID,
	})
	return result, nil
}

func (s *store) Cancel(ctx context.Context, reservationID, memberID string) (*CancelResult, error) {
	var result *CancelResult
	var entry *ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		entry = nil
		r, err := getReservationTx(ctx, tx, reservationID)
		if err != nil {
			return err
		}
		if r.Status.Terminal() {
			return apperr.InvalidStatef("reservation %s is already %s", r.ID, r.Status)
		}
		if r.MemberID != memberID {
			return apperr.ErrNotOwner
		}
		now := s.now().UTC()
		refund := decimal.Zero
		if r.Status == StatusConfirmed && r.LedgerEntryID != "" {
			refund = decimal.Min(s.refunds.Refund(*r, now), r.Price)
			if refund.IsPositive() {
				entry, err = s.ledger.CreditTx(ctx, tx, memberID, refund, ledger.KindRefund, r.ID, "Reservation refund")
				if err != nil {
					return err
				}
			} else {
				refund = decimal.Zero
			}
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE reservations SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(StatusCancelled), now.Unix(), r.ID, string(r.Status),
		)
		if err != nil {
			return fmt.Errorf("failed to cancel reservation: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return apperr.InvalidStatef("reservation %s changed concurrently", r.ID)
		}
		r.Status, r.UpdatedAt = StatusCancelled, now
		result = &CancelResult{Reservation: *r, Refund: refund}
		return nil
	})
	if err != nil {
		s.reject("cancel", err)
		return nil, err
	}
	s.recordEntry(entry)
	s.metrics.IncReservations("cancelled")
	log.Info("Reservation cancelled", "reservationID", reservationID, "memberID", memberID, "refund", result.Refund)
	text := "Reservation cancelled."
	if result.Refund.IsPositive() {
		text = fmt.Sprintf("Reservation cancelled. %s was refunded.", result.Refund)
	}
	s.emitFreed(ctx, &result.Reservation, events.ReservationCancelled, text)
	return result, nil
}

// recurringSlot is one candidate occurrence of a recurring booking.
type recurringSlot struct {
	start, end time.Time
}

func (req RecurringRequest) validate() error {
	if req.CourtID == "" || req.MemberID == "" {
		return apperr.Validationf("court and member are required")
	}
	if len(req.Weekdays) == 0 {
		return apperr.Validationf("at least one weekday is required")
	}
	if req.StartOfDay < 0 || req.EndOfDay > 24*time.Hour || req.EndOfDay <= req.StartOfDay {
		return apperr.ErrInvalidInterval
	}
	if req.To.Before(req.From) {
		return apperr.Validationf("date range ends before it starts")
	}
	if req.To.Sub(req.From) > maxRecurringDays*24*time.Hour {
		return apperr.Validationf("date range cannot exceed %d days", maxRecurringDays)
	}
	return nil
}

// candidates lists the occurrences of req in date order.
func (req RecurringRequest) candidates() []recurringSlot {
	loc := req.Location
	if loc == nil {
		loc = time.UTC
	}
	from := req.From.In(loc)
	to := req.To.In(loc)
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	last := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc)

	var slots []recurringSlot
	for ; !day.After(last); day = day.AddDate(0, 0, 1) {
		if !slices.Contains(req.Weekdays, day.Weekday()) {
			continue
		}
		slots = append(slots, recurringSlot{
			start: day.Add(req.StartOfDay),
			end:   day.Add(req.EndOfDay),
		})
	}
	return slots
}

func (s *store) CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	var result *RecurringResult
	var entry *ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		entry = nil
		m, err := s.ledger.MemberTx(ctx, tx, req.MemberID)
		if err != nil {
			return err
		}
		if !m.Tier.AtLeast(ledger.TierGold) {
			return fmt.Errorf("%w: recurring bookings need %s, member is %s", apperr.ErrTierRequired, ledger.TierGold, m.Tier)
		}
		court, err := s.catalog.CourtTx(ctx, tx, req.CourtID)
		if err != nil {
			return err
		}
		if !court.IsActive {
			return apperr.ErrCourtInactive
		}

		now := s.now().UTC()
		result = &RecurringResult{TotalCost: decimal.Zero}
		for _, slot := range req.candidates() {
			taken, err := overlapsTx(ctx, tx, req.CourtID, slot.start, slot.end)
			if err != nil {
				return err
			}
			if taken {
				result.Skipped = append(result.Skipped, slot.start.UTC())
				continue
			}
			price := Price(slot.start, slot.end, court.PricePerHour)
			result.Created = append(result.Created, Reservation{
				ID:        uuid.New().String(),
				CourtID:   req.CourtID,
				MemberID:  req.MemberID,
				Start:     slot.start.UTC(),
				End:       slot.end.UTC(),
				Price:     price,
				Status:    StatusConfirmed,
				CreatedAt: now,
				UpdatedAt: now,
			})
			result.TotalCost = result.TotalCost.Add(price)
		}
		if len(result.Created) == 0 {
			return apperr.ErrNoSlotsAvailable
		}

		if result.TotalCost.IsPositive() {
			seriesID := uuid.New().String()
			desc := fmt.Sprintf("Recurring reservation (%d slots)", len(result.Created))
			entry, err = s.ledger.DebitTx(ctx, tx, req.MemberID, result.TotalCost, seriesID, desc)
			if err != nil {
				return err
			}
			result.LedgerEntryID = entry.ID
		}
		for i := range result.Created {
			result.Created[i].LedgerEntryID = result.LedgerEntryID
			if err := insertReservationTx(ctx, tx, &result.Created[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		s.reject("recurring", err)
		return nil, err
	}
	s.recordEntry(entry)
	s.metrics.IncReservations("recurring")
	log.Info("Recurring reservation created", "memberID", req.MemberID, "courtID", req.CourtID,
		"created", len(result.Created), "skipped", len(result.Skipped), "total", result.TotalCost)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.RecurringBooked,
		Recipients: []string{req.MemberID},
		Text:       fmt.Sprintf("Booked %d recurring slots for %s (%d skipped).", len(result.Created), result.TotalCost, len(result.Skipped)),
		Level:      notifier.LevelSuccess,
	})
	return result, nil
}

func (s *store) Get(ctx context.Context, reservationID string) (*Reservation, error) {
	r, err := scanReservation(s.db.QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, reservationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("reservation %s", reservationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	return r, nil
}

func (s *store) ListByMember(ctx context.Context, memberID string) ([]Reservation, error) {
	return s.query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE member_id = ? ORDER BY start_time DESC`, memberID)
}

// Calendar lists non-cancelled reservations intersecting [from, to). An
// empty courtID covers every court.
func (s *store) Calendar(ctx context.Context, courtID string, from, to time.Time) ([]Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE status != ? AND start_time < ? AND end_time > ?`
	args := []any{string(StatusCancelled), to.Unix(), from.Unix()}
	if courtID != "" {
		query += ` AND court_id = ?`
		args = append(args, courtID)
	}
	return s.query(ctx, query+` ORDER BY start_time, court_id`, args...)
}

func (s *store) query(ctx context.Context, query string, args ...any) ([]Reservation, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}
	defer rows.Close()

	reservations := []Reservation{}
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reservation: %w", err)
		}
		reservations = append(reservations, *r)
	}
	return reservations, rows.Err()
}

func (s *store) ExpireHolds(ctx context.Context, now time.Time) ([]Reservation, error) {
	cutoff := now.Add(-s.holdWindow)
	stale, err := s.query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE status = ? AND created_at < ? ORDER BY created_at`,
		string(StatusHolding), cutoff.UnixNano())
	if err != nil {
		return nil, err
	}

	var expired []Reservation
	var errs []error
	for _, r := range stale {
		if !s.expired(&r, now) {
			continue
		}
		var won bool
		err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			var err error
			won, err = cancelHoldTx(ctx, tx, r.ID, now)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("reservation %s: %w", r.ID, err))
			continue
		}
		if !won {
			log.Debug("Hold already resolved", "reservationID", r.ID)
			continue
		}
		r.Status, r.UpdatedAt = StatusCancelled, now.UTC()
		expired = append(expired, r)
		s.emitFreed(ctx, &r, events.HoldExpired, "Your hold expired and the slot was released.")
	}
	if len(expired) > 0 {
		s.metrics.AddHoldsExpired(len(expired))
		log.Info("Expired holds", "count", len(expired))
	}
	return expired, errors.Join(errs...)
}

func (s *store) CompleteFinished(ctx context.Context, now time.Time) (int, error) {
	var n int64
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE reservations SET status = ?, updated_at = ?
			WHERE status = ? AND end_time <= ?`,
			string(StatusCompleted), now.Unix(), string(StatusConfirmed), now.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to complete reservations: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info("Completed reservations", "count", n)
	}
	return int(n), nil
}

// DueReminders lists confirmed reservations starting within lead of now
// that have not been reminded yet.
func (s *store) DueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Reservation, error) {
	return s.query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status = ? AND reminded_at IS NULL AND start_time > ? AND start_time <= ?
		ORDER BY start_time`,
		string(StatusConfirmed), now.Unix(), now.Add(lead).Unix())
}

func (s *store) MarkReminded(ctx context.Context, reservationID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE reservations SET reminded_at = ? WHERE id = ?`, at.Unix(), reservationID)
	if err != nil {
		return fmt.Errorf("failed to mark reservation reminded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("reservation %s", reservationID)
	}
	return nil
}

// emitFreed tells the member what happened and everyone else that the slot is open.
func (s *store) emitFreed(ctx context.Context, r *Reservation, typ events.Type, text string) {
	events.Emit(ctx, s.publisher, events.Event{
		Type:       typ,
		Recipients: []string{r.MemberID},
		Text:       text,
		Level:      notifier.LevelWarning,
		Link:       "/bookings/" + r.ID,
	})
	events.Emit(ctx, s.publisher, events.Event{
		Type:      events.SlotFreed,
		Broadcast: true,
		Text:      fmt.Sprintf("Court slot %s to %s is available again.", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339)),
		Link:      "/courts/" + r.CourtID,
	})
}

func (s *store) recordEntry(e *ledger.Entry) {
	if e != nil {
		s.metrics.IncLedgerEntries(string(e.Kind), string(e.Status))
	}
}

func (s *store) reject(op string, err error) {
	if errors.Is(err, apperr.ErrConflict) {
		s.metrics.IncConflicts()
	}
	log.Debug("Reservation operation rejected", "op", op, "kind", apperr.KindOf(err), "error", err)
}
