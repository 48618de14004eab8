package challenge

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
	"github.com/shopspring/decimal"
)

const challengeColumns = `id, challenger_id, COALESCE(opponent_id, ''), stake, COALESCE(message, ''), status, COALESCE(winner_id, ''),
	COALESCE(challenger_entry_id, ''), COALESCE(opponent_entry_id, ''), COALESCE(reward_entry_id, ''),
	created_at, accepted_at, finished_at`

type store struct {
	db        *sql.DB
	ledger    ledger.Ledger
	publisher events.Publisher
	metrics   metrics.Metrics
	now       func() time.Time
}

func New(db *sql.DB, l ledger.Ledger, publisher events.Publisher, metricsSvc metrics.Metrics) Service {
	return &store{
		db:        db,
		ledger:    l,
		publisher: publisher,
		metrics:   metricsSvc,
		now:       time.Now,
	}
}

func scanChallenge(row interface{ Scan(...any) error }) (*Challenge, error) {
	var c Challenge
	var createdAt int64
	var acceptedAt, finishedAt sql.NullInt64
	err := row.Scan(&c.ID, &c.ChallengerID, &c.OpponentID, &c.Stake, &c.Message, &c.Status, &c.WinnerID,
		&c.ChallengerEntryID, &c.OpponentEntryID, &c.RewardEntryID, &createdAt, &acceptedAt, &finishedAt)
	if err != nil {
		return nil, err
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.AcceptedAt = unixPtr(acceptedAt)
	c.FinishedAt = unixPtr(finishedAt)
	return &c, nil
}

func unixPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0).UTC()
	return &t
}

func getTx(ctx context.Context, tx *sql.Tx, id string) (*Challenge, error) {
	c, err := scanChallenge(tx.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("challenge %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// setStatusTx moves c from its loaded status to next. Anything else that
// changed the row first makes it fail with ErrInvalidState.
func setStatusTx(ctx context.Context, tx *sql.Tx, c *Challenge, next Status, set string, args ...any) error {
	query := `UPDATE challenges SET status = ?`
	if set != "" {
		query += `, ` + set
	}
	query += ` WHERE id = ? AND status = ?`
	params := append([]any{string(next)}, args...)
	params = append(params, c.ID, string(c.Status))
	res, err := tx.ExecContext(ctx, query, params...)
	if err != nil {
		return fmt.Errorf("failed to update challenge: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return apperr.InvalidStatef("challenge %s changed concurrently", c.ID)
	}
	c.Status = next
	return nil
}

func (s *store) Create(ctx context.Context, challengerID, opponentID string, stake decimal.Decimal, message string) (*Challenge, error) {
	if !stake.IsPositive() {
		return nil, apperr.ErrInvalidStake
	}
	if opponentID == challengerID {
		return nil, apperr.ErrSelfAccept
	}
	var c *Challenge
	var entry *ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if opponentID != "" {
			if _, err := s.ledger.MemberTx(ctx, tx, opponentID); err != nil {
				return err
			}
		}
		c = &Challenge{
			ID:           uuid.New().String(),
			ChallengerID: challengerID,
			OpponentID:   opponentID,
			Stake:        stake,
			Message:      message,
			Status:       StatusPending,
			CreatedAt:    s.now().UTC(),
		}
		var err error
		entry, err = s.ledger.DebitTx(ctx, tx, challengerID, stake, c.ID, "Challenge stake")
		if err != nil {
			return err
		}
		c.ChallengerEntryID = entry.ID
		_, err = tx.ExecContext(ctx, `
			INSERT INTO challenges (id, challenger_id, opponent_id, stake, message, status, challenger_entry_id, created_at)
			VALUES (?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?, ?, ?)`,
			c.ID, c.ChallengerID, c.OpponentID, c.Stake, c.Message, string(c.Status), c.ChallengerEntryID, c.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert challenge: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("create", err)
	}
	s.done("created", entry)
	log.Info("Challenge created", "challengeID", c.ID, "challengerID", challengerID, "opponentID", opponentID, "stake", stake)

	e := events.Event{
		Type: events.ChallengeReceived,
		Text: fmt.Sprintf("You have been challenged for a stake of %s.", stake),
		Link: "/challenges/" + c.ID,
	}
	if c.Open() {
		e.Type = events.ChallengeOpened
		e.Broadcast = true
		e.Text = fmt.Sprintf("A new open challenge for %s is waiting for an opponent.", stake)
	} else {
		e.Recipients = []string{opponentID}
	}
	events.Emit(ctx, s.publisher, e)
	return c, nil
}

func (s *store) Accept(ctx context.Context, challengeID, memberID string) (*Challenge, error) {
	var c *Challenge
	var entry *ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = getTx(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		if c.Status != StatusPending {
			return apperr.InvalidStatef("challenge %s is %s", c.ID, c.Status)
		}
		if memberID == c.ChallengerID {
			return apperr.ErrSelfAccept
		}
		if !c.Open() && c.OpponentID != memberID {
			return apperr.ErrTargetMismatch
		}
		entry, err = s.ledger.DebitTx(ctx, tx, memberID, c.Stake, c.ID, "Challenge stake")
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := setStatusTx(ctx, tx, c, StatusAccepted,
			`opponent_id = ?, opponent_entry_id = ?, accepted_at = ?`, memberID, entry.ID, now.Unix()); err != nil {
			return err
		}
		c.OpponentID, c.OpponentEntryID, c.AcceptedAt = memberID, entry.ID, &now
		return nil
	})
	if err != nil {
		return nil, s.fail("accept", err)
	}
	s.done("accepted", entry)
	log.Info("Challenge accepted", "challengeID", c.ID, "opponentID", memberID)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.ChallengeAccepted,
		Recipients: []string{c.ChallengerID},
		Text:       fmt.Sprintf("Your challenge for %s was accepted.", c.Stake),
		Level:      notifier.LevelSuccess,
		Link:       "/challenges/" + c.ID,
	})
	return c, nil
}

func (s *store) SetResult(ctx context.Context, challengeID, memberID, winnerID string) (*Challenge, error) {
	var c *Challenge
	var entry *ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		c, err = getTx(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		if c.Status != StatusAccepted {
			return apperr.InvalidStatef("challenge %s is %s", c.ID, c.Status)
		}
		if !c.isParticipant(memberID) {
			return apperr.ErrNotParticipant
		}
		if !c.isParticipant(winnerID) {
			return apperr.ErrInvalidWinner
		}
		prize := c.Stake.Mul(decimal.NewFromInt(2))
		entry, err = s.ledger.CreditTx(ctx, tx, winnerID, prize, ledger.KindReward, c.ID, "Challenge won")
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := setStatusTx(ctx, tx, c, StatusFinished,
			`winner_id = ?, reward_entry_id = ?, finished_at = ?`, winnerID, entry.ID, now.Unix()); err != nil {
			return err
		}
		c.WinnerID, c.RewardEntryID, c.FinishedAt = winnerID, entry.ID, &now
		return nil
	})
	if err != nil {
		return nil, s.fail("result", err)
	}
	s.done("finished", entry)
	log.Info("Challenge finished", "challengeID", c.ID, "winnerID", winnerID)
	for _, id := range []string{c.ChallengerID, c.OpponentID} {
		text, level := "You lost the challenge.", notifier.LevelInfo
		if id == winnerID {
			text, level = fmt.Sprintf("You won the challenge and received %s.", c.Stake.Mul(decimal.NewFromInt(2))), notifier.LevelSuccess
		}
		events.Emit(ctx, s.publisher, events.Event{
			Type:       events.ChallengeResult,
			Recipients: []string{id},
			Text:       text,
			Level:      level,
			Link:       "/challenges/" + c.ID,
		})
	}
	return c, nil
}

// Cancel refunds every party whose stake was actually taken.
func (s *store) Cancel(ctx context.Context, challengeID, memberID string) (*Challenge, error) {
	var c *Challenge
	var refunds []*ledger.Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		refunds = nil
		var err error
		c, err = getTx(ctx, tx, challengeID)
		if err != nil {
			return err
		}
		if c.Status.Terminal() {
			return apperr.InvalidStatef("challenge %s is already %s", c.ID, c.Status)
		}
		if !c.isParticipant(memberID) {
			return apperr.ErrNotParticipant
		}
		stakes := []struct{ memberID, entryID string }{
			{c.ChallengerID, c.ChallengerEntryID},
			{c.OpponentID, c.OpponentEntryID},
		}
		for _, st := range stakes {
			if st.memberID == "" || st.entryID == "" {
				continue
			}
			entry, err := s.ledger.CreditTx(ctx, tx, st.memberID, c.Stake, ledger.KindRefund, c.ID, "Challenge cancelled")
			if err != nil {
				return err
			}
			refunds = append(refunds, entry)
		}
		return setStatusTx(ctx, tx, c, StatusCancelled, `finished_at = ?`, s.now().UTC().Unix())
	})
	if err != nil {
		return nil, s.fail("cancel", err)
	}
	s.done("cancelled", refunds...)
	log.Info("Challenge cancelled", "challengeID", c.ID, "by", memberID, "refunds", len(refunds))

	var recipients []string
	for _, id := range []string{c.ChallengerID, c.OpponentID} {
		if id != "" && id != memberID {
			recipients = append(recipients, id)
		}
	}
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.ChallengeCancelled,
		Recipients: recipients,
		Text:       "A challenge you were part of was cancelled and stakes were refunded.",
		Level:      notifier.LevelWarning,
		Link:       "/challenges/" + c.ID,
	})
	return c, nil
}

func (s *store) Get(ctx context.Context, challengeID string) (*Challenge, error) {
	c, err := scanChallenge(s.db.QueryRowContext(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id = ?`, challengeID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("challenge %s", challengeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get challenge: %w", err)
	}
	return c, nil
}

// List returns challenges newest first. FilterMine needs memberID; the
// other filters ignore it.
func (s *store) List(ctx context.Context, memberID string, filter Filter) ([]Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges`
	var args []any
	switch filter {
	case FilterAll:
	case FilterMine:
		query += ` WHERE challenger_id = ? OR opponent_id = ?`
		args = append(args, memberID, memberID)
	case FilterOpen:
		query += ` WHERE status = ?`
		args = append(args, string(StatusPending))
	case FilterFinished:
		query += ` WHERE status IN (?, ?)`
		args = append(args, string(StatusFinished), string(StatusCancelled))
	default:
		return nil, apperr.Validationf("unknown challenge filter %q", filter)
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY created_at DESC, rowid DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	challenges := []Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

func (s *store) done(outcome string, entries ...*ledger.Entry) {
	s.metrics.IncChallenges(outcome)
	for _, e := range entries {
		if e != nil {
			s.metrics.IncLedgerEntries(string(e.Kind), string(e.Status))
		}
	}
}

func (s *store) fail(op string, err error) error {
	if errors.Is(err, apperr.ErrConflict) {
		s.metrics.IncConflicts()
	}
	log.Debug("Challenge operation rejected", "op", op, "kind", apperr.KindOf(err), "error", err)
	return err
}
