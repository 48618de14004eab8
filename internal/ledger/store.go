package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/identity"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/shopspring/decimal"
)

const (
	MinRank     = 1.0
	MaxRank     = 6.0
	DefaultRank = 3.0

	defaultPageSize = 20
	maxPageSize     = 100
	maxLeaderboard  = 50
)

const memberColumns = `id, name, COALESCE(slack_user_id, ''), balance, total_deposit, total_spent, tier, rank_level, created_at`
const entryColumns = `id, member_id, amount, kind, status, COALESCE(correlation_id, ''), COALESCE(description, ''), created_at`

// store implements Ledger on top of database/sql.
type store struct {
	db      *sql.DB
	metrics metrics.Metrics
	now     func() time.Time
}

// New creates a Ledger backed by db.
func New(db *sql.DB, metricsSvc metrics.Metrics) Ledger {
	return &store{
		db:      db,
		metrics: metricsSvc,
		now:     time.Now,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*Member, error) {
	var m Member
	var createdAt int64
	if err := row.Scan(&m.ID, &m.Name, &m.SlackUserID, &m.Balance, &m.TotalDeposit, &m.TotalSpent, &m.Tier, &m.RankLevel, &createdAt); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &m, nil
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var createdAt int64
	if err := row.Scan(&e.ID, &e.MemberID, &e.Amount, &e.Kind, &e.Status, &e.CorrelationID, &e.Description, &createdAt); err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &e, nil
}

func (s *store) CreateMember(ctx context.Context, name, slackUserID string, rankLevel float64) (*Member, error) {
	if name == "" {
		return nil, apperr.Validationf("member name is required")
	}
	if rankLevel == 0 {
		rankLevel = DefaultRank
	}
	m := &Member{
		ID:           uuid.New().String(),
		Name:         name,
		SlackUserID:  slackUserID,
		Balance:      decimal.Zero,
		TotalDeposit: decimal.Zero,
		TotalSpent:   decimal.Zero,
		Tier:         TierStandard,
		RankLevel:    clampRank(rankLevel),
		CreatedAt:    s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, name, slack_user_id, balance, total_deposit, total_spent, tier, rank_level, created_at)
		VALUES (?, ?, NULLIF(?, ''), ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Name, m.SlackUserID, m.Balance, m.TotalDeposit, m.TotalSpent, string(m.Tier), m.RankLevel, m.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}
	log.Info("Created member", "memberID", m.ID, "name", m.Name)
	return m, nil
}

func (s *store) GetMember(ctx context.Context, memberID string) (*Member, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("member %s", memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

// MemberBySlackID resolves the member linked to a Slack user.
func (s *store) MemberBySlackID(ctx context.Context, slackUserID string) (*Member, error) {
	if slackUserID == "" {
		return nil, apperr.NotFoundf("no member linked to an empty slack user")
	}
	m, err := scanMember(s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE slack_user_id = ?`, slackUserID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("no member linked to slack user %s", slackUserID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by slack id: %w", err)
	}
	return m, nil
}

func (s *store) MemberTx(ctx context.Context, tx *sql.Tx, memberID string) (*Member, error) {
	m, err := scanMember(tx.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("member %s", memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return m, nil
}

func (s *store) ListMembers(ctx context.Context, search string, page, pageSize int) (*MemberPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	pattern := "%" + search + "%"

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members WHERE name LIKE ?`, pattern).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count members: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+` FROM members
		WHERE name LIKE ?
		ORDER BY name
		LIMIT ? OFFSET ?`, pattern, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	result := &MemberPage{Total: total, Page: page, PageSize: pageSize, Items: []Member{}}
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		result.Items = append(result.Items, *m)
	}
	return result, rows.Err()
}

// Leaderboard returns members ordered by lifetime deposits. top is clamped to 1..50.
func (s *store) Leaderboard(ctx context.Context, top int) ([]Member, error) {
	top = max(1, min(top, maxLeaderboard))
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+memberColumns+` FROM members
		ORDER BY CAST(total_deposit AS REAL) DESC, name
		LIMIT ?`, top)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *store) Record(ctx context.Context, e NewEntry) (*Entry, error) {
	var entry *Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		entry, err = s.RecordTx(ctx, tx, e)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncLedgerEntries(string(entry.Kind), string(entry.Status))
	return entry, nil
}

// RecordTx inserts an entry. A completed entry moves the balance in the same tx;
// a debit that would take the balance below zero fails with ErrInsufficientFunds.
func (s *store) RecordTx(ctx context.Context, tx *sql.Tx, e NewEntry) (*Entry, error) {
	if err := validate(e); err != nil {
		return nil, err
	}
	m, err := s.MemberTx(ctx, tx, e.MemberID)
	if err != nil {
		return nil, err
	}
	entry := &Entry{
		ID:            uuid.New().String(),
		MemberID:      e.MemberID,
		Amount:        e.Amount,
		Kind:          e.Kind,
		Status:        e.Status,
		CorrelationID: e.CorrelationID,
		Description:   e.Description,
		CreatedAt:     s.now().UTC(),
	}
	if entry.Status == StatusCompleted {
		if err := applyTx(ctx, tx, m, entry); err != nil {
			return nil, err
		}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, member_id, amount, kind, status, correlation_id, description, created_at)
		VALUES (?, ?, ?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?)`,
		entry.ID, entry.MemberID, entry.Amount, string(entry.Kind), string(entry.Status),
		entry.CorrelationID, entry.Description, entry.CreatedAt.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert ledger entry: %w", err)
	}
	log.Debug("Recorded ledger entry", "entryID", entry.ID, "memberID", entry.MemberID, "kind", entry.Kind, "status", entry.Status, "amount", entry.Amount)
	return entry, nil
}

func (s *store) DebitTx(ctx context.Context, tx *sql.Tx, memberID string, amount decimal.Decimal, correlationID, description string) (*Entry, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validationf("debit amount must be positive, got %s", amount)
	}
	return s.RecordTx(ctx, tx, NewEntry{
		MemberID:      memberID,
		Amount:        amount.Neg(),
		Kind:          KindPayment,
		Status:        StatusCompleted,
		CorrelationID: correlationID,
		Description:   description,
	})
}

func (s *store) CreditTx(ctx context.Context, tx *sql.Tx, memberID string, amount decimal.Decimal, kind Kind, correlationID, description string) (*Entry, error) {
	if !kind.credit() {
		return nil, apperr.Validationf("%s is not a credit kind", kind)
	}
	return s.RecordTx(ctx, tx, NewEntry{
		MemberID:      memberID,
		Amount:        amount,
		Kind:          kind,
		Status:        StatusCompleted,
		CorrelationID: correlationID,
		Description:   description,
	})
}

// AdjustRankTx moves a member's rank by delta, clamped to [MinRank, MaxRank].
func (s *store) AdjustRankTx(ctx context.Context, tx *sql.Tx, memberID string, delta float64) (float64, error) {
	m, err := s.MemberTx(ctx, tx, memberID)
	if err != nil {
		return 0, err
	}
	rank := clampRank(m.RankLevel + delta)
	if _, err := tx.ExecContext(ctx, `UPDATE members SET rank_level = ? WHERE id = ?`, rank, memberID); err != nil {
		return 0, fmt.Errorf("failed to update rank: %w", err)
	}
	return rank, nil
}

func (s *store) Transition(ctx context.Context, entryID string, status Status) (*Entry, error) {
	return s.transition(ctx, entryID, status, "")
}

func (s *store) transition(ctx context.Context, entryID string, status Status, wantKind Kind) (*Entry, error) {
	if status != StatusCompleted && status != StatusRejected && status != StatusFailed {
		return nil, apperr.Validationf("cannot transition to %s", status)
	}
	var entry *Entry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		e, err := scanEntry(tx.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, entryID))
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFoundf("ledger entry %s", entryID)
		}
		if err != nil {
			return fmt.Errorf("failed to get ledger entry: %w", err)
		}
		if wantKind != "" && e.Kind != wantKind {
			return apperr.Validationf("entry %s is a %s, not a %s", entryID, e.Kind, wantKind)
		}
		if e.Status != StatusPending {
			return apperr.ErrAlreadyProcessed
		}
		if status == StatusCompleted {
			m, err := s.MemberTx(ctx, tx, e.MemberID)
			if err != nil {
				return err
			}
			if err := applyTx(ctx, tx, m, e); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE ledger_entries SET status = ? WHERE id = ? AND status = ?`, string(status), entryID, string(StatusPending)); err != nil {
			return fmt.Errorf("failed to update ledger entry: %w", err)
		}
		e.Status = status
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncLedgerEntries(string(entry.Kind), string(entry.Status))
	log.Info("Transitioned ledger entry", "entryID", entry.ID, "status", entry.Status)
	return entry, nil
}

func (s *store) Entry(ctx context.Context, entryID string) (*Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = ?`, entryID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFoundf("ledger entry %s", entryID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}
	return e, nil
}

func (s *store) Entries(ctx context.Context, memberID string) ([]Entry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE member_id = ? ORDER BY created_at DESC, rowid DESC`, memberID)
}

func (s *store) queryEntries(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *store) RequestDeposit(ctx context.Context, memberID string, amount decimal.Decimal) (*Entry, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validationf("deposit amount must be positive, got %s", amount)
	}
	return s.Record(ctx, NewEntry{
		MemberID:    memberID,
		Amount:      amount,
		Kind:        KindDeposit,
		Status:      StatusPending,
		Description: "Deposit request",
	})
}

func (s *store) Approve(ctx context.Context, p identity.Principal, entryID string) (*Entry, error) {
	if err := p.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	return s.transition(ctx, entryID, StatusCompleted, KindDeposit)
}

func (s *store) Reject(ctx context.Context, p identity.Principal, entryID string) (*Entry, error) {
	if err := p.Require(identity.RoleAdmin); err != nil {
		return nil, err
	}
	return s.transition(ctx, entryID, StatusRejected, KindDeposit)
}

func (s *store) PendingDeposits(ctx context.Context) ([]Entry, error) {
	return s.queryEntries(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE kind = ? AND status = ? ORDER BY created_at, rowid`,
		string(KindDeposit), string(StatusPending))
}

func (s *store) Reconcile(ctx context.Context, memberID string) (*Reconciliation, error) {
	var rec *Reconciliation
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		m, err := s.MemberTx(ctx, tx, memberID)
		if err != nil {
			return err
		}
		sums, err := completedSums(ctx, tx, memberID)
		if err != nil {
			return err
		}
		rec = &Reconciliation{MemberID: m.ID, Cached: m.Balance, Computed: sums[m.ID]}
		return nil
	})
	return rec, err
}

func (s *store) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	var recs []Reconciliation
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		recs = nil
		sums, err := completedSums(ctx, tx, "")
		if err != nil {
			return err
		}
		rows, err := tx.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id`)
		if err != nil {
			return fmt.Errorf("failed to list members: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMember(rows)
			if err != nil {
				return fmt.Errorf("failed to scan member: %w", err)
			}
			recs = append(recs, Reconciliation{MemberID: m.ID, Cached: m.Balance, Computed: sums[m.ID]})
		}
		return rows.Err()
	})
	return recs, err
}

// completedSums adds up completed entries per member in decimal arithmetic.
// An empty memberID sums every member.
func completedSums(ctx context.Context, tx *sql.Tx, memberID string) (map[string]decimal.Decimal, error) {
	query := `SELECT member_id, amount FROM ledger_entries WHERE status = ?`
	args := []any{string(StatusCompleted)}
	if memberID != "" {
		query += ` AND member_id = ?`
		args = append(args, memberID)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}
	defer rows.Close()

	sums := make(map[string]decimal.Decimal)
	for rows.Next() {
		var id string
		var amount decimal.Decimal
		if err := rows.Scan(&id, &amount); err != nil {
			return nil, fmt.Errorf("failed to scan ledger amount: %w", err)
		}
		sums[id] = sums[id].Add(amount)
	}
	return sums, rows.Err()
}

// applyTx writes the balance effect of a completed entry onto m.
func applyTx(ctx context.Context, tx *sql.Tx, m *Member, e *Entry) error {
	balance := m.Balance.Add(e.Amount)
	if e.Amount.IsNegative() && balance.IsNegative() {
		return fmt.Errorf("%w: balance %s, required %s", apperr.ErrInsufficientFunds, m.Balance, e.Amount.Neg())
	}
	totalDeposit, totalSpent, tier := m.TotalDeposit, m.TotalSpent, m.Tier
	switch e.Kind {
	case KindDeposit:
		totalDeposit = totalDeposit.Add(e.Amount)
		tier = TierFor(totalDeposit)
	case KindPayment:
		totalSpent = totalSpent.Add(e.Amount.Abs())
	case KindRefund:
		totalSpent = decimal.Max(decimal.Zero, totalSpent.Sub(e.Amount.Abs()))
	}
	_, err := tx.ExecContext(ctx, `
		UPDATE members SET balance = ?, total_deposit = ?, total_spent = ?, tier = ? WHERE id = ?`,
		balance, totalDeposit, totalSpent, string(tier), m.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update member balance: %w", err)
	}
	if tier != m.Tier {
		log.Info("Member tier changed", "memberID", m.ID, "from", m.Tier, "to", tier)
	}
	m.Balance, m.TotalDeposit, m.TotalSpent, m.Tier = balance, totalDeposit, totalSpent, tier
	return nil
}

func validate(e NewEntry) error {
	if e.MemberID == "" {
		return apperr.Validationf("member id is required")
	}
	if !e.Kind.valid() {
		return apperr.Validationf("unknown entry kind %q", e.Kind)
	}
	switch e.Status {
	case StatusPending, StatusCompleted, StatusRejected, StatusFailed:
	default:
		return apperr.Validationf("unknown entry status %q", e.Status)
	}
	if e.Amount.IsZero() {
		return apperr.Validationf("amount must be non-zero")
	}
	if e.Kind.credit() != e.Amount.IsPositive() {
		return apperr.Validationf("amount %s has the wrong sign for a %s entry", e.Amount, e.Kind)
	}
	return nil
}

func clampRank(rank float64) float64 {
	return math.Max(MinRank, math.Min(MaxRank, rank))
}
