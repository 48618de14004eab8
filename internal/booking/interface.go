package booking

import (
	"context"
	"time"
)

// Service reserves court time against member balances.
type Service interface {
	Hold(ctx context.Context, courtID, memberID string, start, end time.Time) (*Reservation, error)
	Confirm(ctx context.Context, reservationID, memberID string) (*ConfirmResult, error)
	CreateDirect(ctx context.Context, courtID, memberID string, start, end time.Time) (*ConfirmResult, error)
	Cancel(ctx context.Context, reservationID, memberID string) (*CancelResult, error)
	CreateRecurring(ctx context.Context, req RecurringRequest) (*RecurringResult, error)

	Get(ctx context.Context, reservationID string) (*Reservation, error)
	ListByMember(ctx context.Context, memberID string) ([]Reservation, error)
	Calendar(ctx context.Context, courtID string, from, to time.Time) ([]Reservation, error)

	// ExpireHolds cancels every hold older than the hold window.
	ExpireHolds(ctx context.Context, now time.Time) ([]Reservation, error)
	// CompleteFinished marks confirmed reservations that have ended as completed.
	CompleteFinished(ctx context.Context, now time.Time) (int, error)
	DueReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Reservation, error)
	MarkReminded(ctx context.Context, reservationID string, at time.Time) error
}
