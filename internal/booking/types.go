package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusHolding   Status = "HOLDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

// Terminal reports whether no operation can move a reservation out of s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// DefaultHoldWindow is how long a hold blocks a slot without payment.
const DefaultHoldWindow = 5 * time.Minute

type Reservation struct {
	ID            string          `json:"id"`
	CourtID       string          `json:"courtId"`
	MemberID      string          `json:"memberId"`
	Start         time.Time       `json:"start"`
	End           time.Time       `json:"end"`
	Price         decimal.Decimal `json:"price"`
	Status        Status          `json:"status"`
	LedgerEntryID string          `json:"ledgerEntryId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
	RemindedAt    *time.Time      `json:"remindedAt,omitempty"`
}

// ConfirmResult is returned by Confirm.
type ConfirmResult struct {
	Reservation Reservation     `json:"reservation"`
	NewBalance  decimal.Decimal `json:"newBalance"`
}

// CancelResult is returned by Cancel. Refund is zero when no funds were taken.
type CancelResult struct {
	Reservation Reservation     `json:"reservation"`
	Refund      decimal.Decimal `json:"refund"`
}

// RecurringRequest books the same time of day on every matching weekday of
// a date range. StartOfDay and EndOfDay are offsets from local midnight.
type RecurringRequest struct {
	CourtID    string
	MemberID   string
	From       time.Time
	To         time.Time
	StartOfDay time.Duration
	EndOfDay   time.Duration
	Weekdays   []time.Weekday
	Location   *time.Location
}

type RecurringResult struct {
	Created       []Reservation   `json:"created"`
	Skipped       []time.Time     `json:"skipped"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	LedgerEntryID string          `json:"ledgerEntryId,omitempty"`
}

// RefundPolicy decides how much of a confirmed reservation's price is
// returned on cancellation.
type RefundPolicy interface {
	Refund(r Reservation, now time.Time) decimal.Decimal
}

// FullRefund returns the whole price regardless of timing.
type FullRefund struct{}

func (FullRefund) Refund(r Reservation, _ time.Time) decimal.Decimal {
	return r.Price
}

// Price is the cost of [start, end) at pricePerHour, rounded to cents.
func Price(start, end time.Time, pricePerHour decimal.Decimal) decimal.Decimal {
	seconds := decimal.NewFromInt(int64(end.Sub(start) / time.Second))
	return seconds.Mul(pricePerHour).Div(decimal.NewFromInt(3600)).Round(2)
}
