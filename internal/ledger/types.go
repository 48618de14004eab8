package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is derived from a member's lifetime deposits.
type Tier string

const (
	TierStandard Tier = "STANDARD"
	TierSilver   Tier = "SILVER"
	TierGold     Tier = "GOLD"
	TierDiamond  Tier = "DIAMOND"
)

var (
	silverThreshold  = decimal.NewFromInt(1_000_000)
	goldThreshold    = decimal.NewFromInt(5_000_000)
	diamondThreshold = decimal.NewFromInt(10_000_000)
)

// TierFor maps a lifetime deposit total to a tier.
func TierFor(totalDeposit decimal.Decimal) Tier {
	switch {
	case totalDeposit.GreaterThanOrEqual(diamondThreshold):
		return TierDiamond
	case totalDeposit.GreaterThanOrEqual(goldThreshold):
		return TierGold
	case totalDeposit.GreaterThanOrEqual(silverThreshold):
		return TierSilver
	default:
		return TierStandard
	}
}

// AtLeast reports whether t ranks at or above other.
func (t Tier) AtLeast(other Tier) bool {
	return t.rank() >= other.rank()
}

func (t Tier) rank() int {
	switch t {
	case TierSilver:
		return 1
	case TierGold:
		return 2
	case TierDiamond:
		return 3
	default:
		return 0
	}
}

// Kind is the type of balance movement an entry records.
type Kind string

const (
	KindDeposit  Kind = "DEPOSIT"
	KindWithdraw Kind = "WITHDRAW"
	KindPayment  Kind = "PAYMENT"
	KindRefund   Kind = "REFUND"
	KindReward   Kind = "REWARD"
)

// credit reports whether entries of this kind add to the balance.
func (k Kind) credit() bool {
	return k == KindDeposit || k == KindRefund || k == KindReward
}

func (k Kind) valid() bool {
	switch k {
	case KindDeposit, KindWithdraw, KindPayment, KindRefund, KindReward:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
	StatusFailed    Status = "FAILED"
)

type Member struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	SlackUserID  string          `json:"slackUserId,omitempty"`
	Balance      decimal.Decimal `json:"balance"`
	TotalDeposit decimal.Decimal `json:"totalDeposit"`
	TotalSpent   decimal.Decimal `json:"totalSpent"`
	Tier         Tier            `json:"tier"`
	RankLevel    float64         `json:"rankLevel"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Entry is one signed balance movement. Debits carry negative amounts.
type Entry struct {
	ID            string          `json:"id"`
	MemberID      string          `json:"memberId"`
	Amount        decimal.Decimal `json:"amount"`
	Kind          Kind            `json:"kind"`
	Status        Status          `json:"status"`
	CorrelationID string          `json:"correlationId,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// NewEntry describes an entry to record.
type NewEntry struct {
	MemberID      string
	Amount        decimal.Decimal
	Kind          Kind
	Status        Status
	CorrelationID string
	Description   string
}

// MemberPage is one page of a member search.
type MemberPage struct {
	Total    int      `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
	Items    []Member `json:"items"`
}

// Reconciliation compares the cached balance with the completed entries.
type Reconciliation struct {
	MemberID string          `json:"memberId"`
	Cached   decimal.Decimal `json:"cached"`
	Computed decimal.Decimal `json:"computed"`
}

func (r Reconciliation) InSync() bool {
	return r.Cached.Equal(r.Computed)
}
