package tournament

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/bracket"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/identity"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
)

// RankStep is how far a ranked result moves each side's first player.
const RankStep = 0.05

const (
	defaultStartOffset = 7 * 24 * time.Hour
	defaultEndOffset   = 14 * 24 * time.Hour
)

const tournamentColumns = `id, name, start_date, end_date, format, entry_fee, prize_pool, status, COALESCE(settings, ''), created_at`
const participantColumns = `id, tournament_id, member_id, COALESCE(team_name, ''), payment_status, COALESCE(ledger_entry_id, ''), joined_at`
const matchColumns = `id, COALESCE(tournament_id, ''), round_name, scheduled_at, team1_player1, COALESCE(team1_player2, ''),
	team2_player1, COALESCE(team2_player2, ''), score1, score2, COALESCE(details, ''), COALESCE(winning_side, ''),
	is_ranked, status, reminded_at`

type store struct {
	db        *sql.DB
	ledger    ledger.Ledger
	publisher events.Publisher
	metrics   metrics.Metrics
	now       func() time.Time
	rng       *rand.Rand
	slots     []time.Duration
}

type Option func(*store)

// WithRand makes knockout draws reproducible. The source must not be shared.
func WithRand(rng *rand.Rand) Option {
	return func(s *store) { s.rng = rng }
}

func WithClock(now func() time.Time) Option {
	return func(s *store) { s.now = now }
}

// WithDailySlots overrides bracket.DailySlots.
func WithDailySlots(slots []time.Duration) Option {
	return func(s *store) {
		if len(slots) > 0 {
			s.slots = slots
		}
	}
}

func New(db *sql.DB, l ledger.Ledger, publisher events.Publisher, metricsSvc metrics.Metrics, opts ...Option) Service {
	s := &store{
		db:        db,
		ledger:    l,
		publisher: publisher,
		metrics:   metricsSvc,
		now:       time.Now,
		slots:     bracket.DailySlots,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTournament(row rowScanner) (*Tournament, error) {
	var t Tournament
	var start, end, createdAt int64
	if err := row.Scan(&t.ID, &t.Name, &start, &end, &t.Format, &t.EntryFee, &t.PrizePool, &t.Status, &t.Settings, &createdAt); err != nil {
		return nil, err
	}
	t.StartDate = time.Unix(start, 0).UTC()
	t.EndDate = time.Unix(end, 0).UTC()
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &t, nil
}

func scanParticipant(row rowScanner) (*Participant, error) {
	var p Participant
	var joinedAt int64
	if err := row.Scan(&p.ID, &p.TournamentID, &p.MemberID, &p.TeamName, &p.PaymentStatus, &p.LedgerEntryID, &joinedAt); err != nil {
		return nil, err
	}
	p.JoinedAt = time.Unix(joinedAt, 0).UTC()
	return &p, nil
}

func scanMatch(row rowScanner) (*Match, error) {
	var m Match
	var scheduledAt int64
	var remindedAt sql.NullInt64
	err := row.Scan(&m.ID, &m.TournamentID, &m.RoundName, &scheduledAt, &m.Team1Player1, &m.Team1Player2,
		&m.Team2Player1, &m.Team2Player2, &m.Score1, &m.Score2, &m.Details, &m.WinningSide,
		&m.IsRanked, &m.Status, &remindedAt)
	if err != nil {
		return nil, err
	}
	m.ScheduledAt = time.Unix(scheduledAt, 0).UTC()
	if remindedAt.Valid {
		t := time.Unix(remindedAt.Int64, 0).UTC()
		m.RemindedAt = &t
	}
	return &m, nil
}

func getTx(ctx context.Context, tx *sql.Tx, id string) (*Tournament, error) {
	t, err := scanTournament(tx.QueryRowContext(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("tournament %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

func (s *store) Create(ctx context.Context, p identity.Principal, t Tournament) (*Tournament, error) {
	if err := p.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	if t.Name == "" {
		return nil, apperr.Validationf("tournament name is required")
	}
	if t.Format == "" {
		t.Format = FormatRoundRobin
	}
	if !t.Format.valid() {
		return nil, apperr.Validationf("unknown tournament format %q", t.Format)
	}
	if t.EntryFee.IsNegative() || t.PrizePool.IsNegative() {
		return nil, apperr.Validationf("entry fee and prize pool cannot be negative")
	}
	now := s.now().UTC()
	if t.StartDate.IsZero() {
		t.StartDate = now.Add(defaultStartOffset)
	}
	if t.EndDate.IsZero() {
		t.EndDate = now.Add(defaultEndOffset)
	}
	if !t.EndDate.After(t.StartDate) {
		return nil, apperr.ErrInvalidInterval
	}
	if t.Status == "" {
		t.Status = StatusOpen
	}
	if !t.Status.acceptsEntries() {
		return nil, apperr.Validationf("a new tournament must be %s or %s", StatusOpen, StatusRegistering)
	}
	t.ID = uuid.New().String()
	t.CreatedAt = now
	t.StartDate, t.EndDate = t.StartDate.UTC(), t.EndDate.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tournaments (id, name, start_date, end_date, format, entry_fee, prize_pool, status, settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULLIF(?, ''), ?)`,
		t.ID, t.Name, t.StartDate.Unix(), t.EndDate.Unix(), string(t.Format), t.EntryFee, t.PrizePool,
		string(t.Status), t.Settings, t.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}
	log.Info("Tournament created", "tournamentID", t.ID, "name", t.Name, "format", t.Format)
	events.Emit(ctx, s.publisher, events.Event{
		Type:      events.TournamentCreated,
		Broadcast: true,
		Text:      fmt.Sprintf("New tournament %q opens for entries. Entry fee %s.", t.Name, t.EntryFee),
		Link:      "/tournaments/" + t.ID,
	})
	return &t, nil
}

func (s *store) Get(ctx context.Context, tournamentID string) (*Tournament, error) {
	t, err := scanTournament(s.db.QueryRowContext(ctx, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = ?`, tournamentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("tournament %s", tournamentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tournament: %w", err)
	}
	return t, nil
}

func (s *store) List(ctx context.Context, status Status) ([]Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	rows, err := s.db.QueryContext(ctx, query+` ORDER BY start_date, name`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := []Tournament{}
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament: %w", err)
		}
		tournaments = append(tournaments, *t)
	}
	return tournaments, rows.Err()
}

func (s *store) Join(ctx context.Context, tournamentID, memberID, teamName string) (*Participant, error) {
	var part *Participant
	var entry *ledger.Entry
	var name string
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		entry = nil
		t, err := getTx(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		name = t.Name
		if !t.Status.acceptsEntries() {
			return fmt.Errorf("%w: tournament is %s", apperr.ErrRegistrationClosed, t.Status)
		}
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tournament_participants WHERE tournament_id = ? AND member_id = ?`,
			tournamentID, memberID).Scan(&n); err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		if n > 0 {
			return apperr.ErrAlreadyJoined
		}
		part = &Participant{
			ID:            uuid.New().String(),
			TournamentID:  tournamentID,
			MemberID:      memberID,
			TeamName:      teamName,
			PaymentStatus: true,
			JoinedAt:      s.now().UTC(),
		}
		if t.EntryFee.IsPositive() {
			entry, err = s.ledger.DebitTx(ctx, tx, memberID, t.EntryFee, tournamentID, "Tournament entry: "+t.Name)
			if err != nil {
				return err
			}
			part.LedgerEntryID = entry.ID
		} else if _, err := s.ledger.MemberTx(ctx, tx, memberID); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO tournament_participants (id, tournament_id, member_id, team_name, payment_status, ledger_entry_id, joined_at)
			VALUES (?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), ?)`,
			part.ID, part.TournamentID, part.MemberID, part.TeamName, part.PaymentStatus, part.LedgerEntryID, part.JoinedAt.Unix(),
		)
		if err != nil {
			if database.IsUniqueViolation(err) {
				return apperr.ErrAlreadyJoined
			}
			return fmt.Errorf("failed to insert participant: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("join", err)
	}
	if entry != nil {
		s.metrics.IncLedgerEntries(string(entry.Kind), string(entry.Status))
	}
	s.metrics.IncTournamentJoins()
	log.Info("Member joined tournament", "tournamentID", tournamentID, "memberID", memberID)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.TournamentJoined,
		Recipients: []string{memberID},
		Text:       fmt.Sprintf("You are registered for %s.", name),
		Level:      notifier.LevelSuccess,
		Link:       "/tournaments/" + tournamentID,
	})
	return part, nil
}

func (s *store) Participants(ctx context.Context, tournamentID string) ([]Participant, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+participantColumns+` FROM tournament_participants WHERE tournament_id = ? ORDER BY joined_at, rowid`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanParticipant)
}

func participantsTx(ctx context.Context, tx *sql.Tx, tournamentID string) ([]Participant, error) {
	rows, err := tx.QueryContext(ctx, `SELECT `+participantColumns+` FROM tournament_participants WHERE tournament_id = ? ORDER BY joined_at, rowid`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanParticipant)
}

func collect[T any](rows *sql.Rows, scan func(rowScanner) (*T, error)) ([]T, error) {
	items := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *store) GenerateSchedule(ctx context.Context, p identity.Principal, tournamentID string) (*Schedule, error) {
	if err := p.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	var sched *Schedule
	var players []string
	var name string
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := getTx(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		name = t.Name
		var existing int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE tournament_id = ?`, tournamentID).Scan(&existing); err != nil {
			return fmt.Errorf("failed to count matches: %w", err)
		}
		if existing > 0 || t.Status == StatusDrawCompleted {
			return fmt.Errorf("%w: tournament is %s", apperr.ErrScheduleExists, t.Status)
		}
		if t.Status == StatusFinished {
			return apperr.InvalidStatef("tournament %s is %s", tournamentID, t.Status)
		}
		parts, err := participantsTx(ctx, tx, tournamentID)
		if err != nil {
			return err
		}
		if len(parts) < 2 {
			return apperr.ErrNotEnoughParticipants
		}
		players = make([]string, len(parts))
		for i, part := range parts {
			players[i] = part.MemberID
		}

		sched = &Schedule{TournamentID: tournamentID}
		var pairs []bracket.Pair
		round := "Round Robin"
		if t.Format == FormatKnockout {
			pairs, sched.Unpaired = bracket.Knockout(players, s.rng)
			round = "Round 1"
		} else {
			pairs = bracket.RoundRobin(players)
		}
		times := bracket.AssignSlots(t.StartDate, len(pairs), s.slots)
		for i, pair := range pairs {
			m := Match{
				ID:           uuid.New().String(),
				TournamentID: tournamentID,
				RoundName:    round,
				ScheduledAt:  times[i].UTC(),
				Team1Player1: pair.A,
				Team2Player1: pair.B,
				IsRanked:     true,
				Status:       MatchScheduled,
			}
			if err := insertMatchTx(ctx, tx, &m); err != nil {
				return err
			}
			sched.Matches = append(sched.Matches, m)
		}
		// A tournament that already started stays ONGOING.
		_, err = tx.ExecContext(ctx, `UPDATE tournaments SET status = ? WHERE id = ? AND status IN (?, ?)`,
			string(StatusDrawCompleted), tournamentID, string(StatusOpen), string(StatusRegistering))
		if err != nil {
			return fmt.Errorf("failed to update tournament status: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("schedule", err)
	}
	log.Info("Schedule generated", "tournamentID", tournamentID, "matches", len(sched.Matches), "unpaired", sched.Unpaired)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.ScheduleGenerated,
		Recipients: players,
		Broadcast:  true,
		Text:       fmt.Sprintf("The draw for %s is out: %d matches.", name, len(sched.Matches)),
		Link:       "/tournaments/" + tournamentID,
	})
	return sched, nil
}

func insertMatchTx(ctx context.Context, tx *sql.Tx, m *Match) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO matches (id, tournament_id, round_name, scheduled_at, team1_player1, team1_player2, team2_player1, team2_player2,
			score1, score2, is_ranked, status)
		VALUES (?, NULLIF(?, ''), ?, ?, ?, NULLIF(?, ''), ?, NULLIF(?, ''), 0, 0, ?, ?)`,
		m.ID, m.TournamentID, m.RoundName, m.ScheduledAt.Unix(), m.Team1Player1, m.Team1Player2,
		m.Team2Player1, m.Team2Player2, m.IsRanked, string(m.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (s *store) Matches(ctx context.Context, tournamentID string) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE tournament_id = ? ORDER BY scheduled_at, rowid`, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanMatch)
}

func (s *store) Match(ctx context.Context, matchID string) (*Match, error) {
	m, err := scanMatch(s.db.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("match %s", matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// RecordMatchResult finishes a match. On a ranked decisive result the first
// player of the winning side gains RankStep and the first player of the
// losing side drops by it, each clamped to the rank bounds.
func (s *store) RecordMatchResult(ctx context.Context, p identity.Principal, matchID string, r Result) (*MatchResult, error) {
	if err := p.Require(identity.RoleAdmin, identity.RoleReferee); err != nil {
		return nil, err
	}
	switch r.Side {
	case SideTeam1, SideTeam2, SideDraw:
	default:
		return nil, apperr.Validationf("unknown winning side %q", r.Side)
	}
	if r.Score1 < 0 || r.Score2 < 0 {
		return nil, apperr.Validationf("scores cannot be negative")
	}

	var result *MatchResult
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		m, err := scanMatch(tx.QueryRowContext(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = ?`, matchID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFoundf("match %s", matchID)
		}
		if err != nil {
			return fmt.Errorf("failed to get match: %w", err)
		}
		if m.Status == MatchFinished {
			return apperr.ErrMatchAlreadyFinished
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE matches SET score1 = ?, score2 = ?, details = NULLIF(?, ''), winning_side = ?, status = ?
			WHERE id = ? AND status != ?`,
			r.Score1, r.Score2, r.Details, string(r.Side), string(MatchFinished), matchID, string(MatchFinished),
		)
		if err != nil {
			return fmt.Errorf("failed to record match result: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return apperr.ErrMatchAlreadyFinished
		}
		m.Score1, m.Score2, m.Details, m.WinningSide, m.Status = r.Score1, r.Score2, r.Details, r.Side, MatchFinished
		result = &MatchResult{Match: *m}

		if !m.IsRanked || r.Side == SideDraw {
			return nil
		}
		winner, loser := m.Team1Player1, m.Team2Player1
		if r.Side == SideTeam2 {
			winner, loser = loser, winner
		}
		result.Ranks = make(map[string]float64, 2)
		if result.Ranks[winner], err = s.ledger.AdjustRankTx(ctx, tx, winner, RankStep); err != nil {
			return err
		}
		if result.Ranks[loser], err = s.ledger.AdjustRankTx(ctx, tx, loser, -RankStep); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("result", err)
	}
	m := result.Match
	log.Info("Match result recorded", "matchID", matchID, "score", fmt.Sprintf("%d-%d", m.Score1, m.Score2), "side", m.WinningSide)
	events.Emit(ctx, s.publisher, events.Event{
		Type:       events.MatchScored,
		Recipients: m.Players(),
		Broadcast:  true,
		Room:       m.Room(),
		Text:       fmt.Sprintf("Final score %d-%d (%s).", m.Score1, m.Score2, m.WinningSide),
		Level:      notifier.LevelSuccess,
		Link:       "/matches/" + matchID,
	})
	return result, nil
}

func (s *store) AdvanceStatuses(ctx context.Context, now time.Time) ([]Tournament, error) {
	candidates, err := s.queryTournaments(ctx, `
		SELECT `+tournamentColumns+` FROM tournaments
		WHERE (status != ? AND end_date < ?) OR (status IN (?, ?, ?) AND start_date <= ?)
		ORDER BY start_date`,
		string(StatusFinished), now.Unix(), string(StatusOpen), string(StatusRegistering), string(StatusDrawCompleted), now.Unix())
	if err != nil {
		return nil, err
	}

	var changed []Tournament
	var errs []error
	for _, t := range candidates {
		next := StatusOngoing
		if t.EndDate.Before(now) {
			next = StatusFinished
		}
		var moved bool
		err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx, `UPDATE tournaments SET status = ? WHERE id = ? AND status = ?`,
				string(next), t.ID, string(t.Status))
			if err != nil {
				return fmt.Errorf("failed to advance tournament: %w", err)
			}
			n, err := res.RowsAffected()
			moved = n == 1
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("tournament %s: %w", t.ID, err))
			continue
		}
		if !moved {
			continue
		}
		log.Info("Tournament status advanced", "tournamentID", t.ID, "from", t.Status, "to", next)
		t.Status = next
		changed = append(changed, t)
		events.Emit(ctx, s.publisher, events.Event{
			Type:      events.TournamentStatus,
			Broadcast: true,
			Text:      fmt.Sprintf("%s is now %s.", t.Name, next),
			Link:      "/tournaments/" + t.ID,
		})
	}
	return changed, errors.Join(errs...)
}

func (s *store) queryTournaments(ctx context.Context, query string, args ...any) ([]Tournament, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanTournament)
}

func (s *store) DueMatchReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+matchColumns+` FROM matches
		WHERE status = ? AND reminded_at IS NULL AND scheduled_at > ? AND scheduled_at <= ?
		ORDER BY scheduled_at`,
		string(MatchScheduled), now.Unix(), now.Add(lead).Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query due matches: %w", err)
	}
	defer rows.Close()
	return collect(rows, scanMatch)
}

func (s *store) MarkMatchReminded(ctx context.Context, matchID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE matches SET reminded_at = ? WHERE id = ?`, at.Unix(), matchID)
	if err != nil {
		return fmt.Errorf("failed to mark match reminded: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFoundf("match %s", matchID)
	}
	return nil
}

func (s *store) fail(op string, err error) error {
	if errors.Is(err, apperr.ErrConflict) {
		s.metrics.IncConflicts()
	}
	log.Debug("Tournament operation rejected", "op", op, "kind", apperr.KindOf(err), "error", err)
	return err
}
