package ledger

import (
	"context"
	"database/sql"

	"github.com/mauv0809/clubledger/internal/identity"
	"github.com/shopspring/decimal"
)

// Ledger owns member balances and the entries that explain them.
// The *Tx methods join a caller's transaction so a balance change and the
// entity change that caused it commit together.
type Ledger interface {
	CreateMember(ctx context.Context, name, slackUserID string, rankLevel float64) (*Member, error)
	GetMember(ctx context.Context, memberID string) (*Member, error)
	MemberBySlackID(ctx context.Context, slackUserID string) (*Member, error)
	ListMembers(ctx context.Context, search string, page, pageSize int) (*MemberPage, error)
	Leaderboard(ctx context.Context, top int) ([]Member, error)

	Record(ctx context.Context, e NewEntry) (*Entry, error)
	Transition(ctx context.Context, entryID string, status Status) (*Entry, error)
	Entries(ctx context.Context, memberID string) ([]Entry, error)
	Entry(ctx context.Context, entryID string) (*Entry, error)

	RequestDeposit(ctx context.Context, memberID string, amount decimal.Decimal) (*Entry, error)
	Approve(ctx context.Context, p identity.Principal, entryID string) (*Entry, error)
	Reject(ctx context.Context, p identity.Principal, entryID string) (*Entry, error)
	PendingDeposits(ctx context.Context) ([]Entry, error)

	Reconcile(ctx context.Context, memberID string) (*Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]Reconciliation, error)

	MemberTx(ctx context.Context, tx *sql.Tx, memberID string) (*Member, error)
	RecordTx(ctx context.Context, tx *sql.Tx, e NewEntry) (*Entry, error)
	DebitTx(ctx context.Context, tx *sql.Tx, memberID string, amount decimal.Decimal, correlationID, description string) (*Entry, error)
	CreditTx(ctx context.Context, tx *sql.Tx, memberID string, amount decimal.Decimal, kind Kind, correlationID, description string) (*Entry, error)
	AdjustRankTx(ctx context.Context, tx *sql.Tx, memberID string, delta float64) (float64, error)
}
