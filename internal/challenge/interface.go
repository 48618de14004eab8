package challenge

import (
	"context"

	"github.com/shopspring/decimal"
)

// Service runs the wager escrow. Every operation moves only the acting
// member's own money, so an open challenge that nobody accepts never
// leaves a debit without its owner.
type Service interface {
	Create(ctx context.Context, challengerID, opponentID string, stake decimal.Decimal, message string) (*Challenge, error)
	Accept(ctx context.Context, challengeID, memberID string) (*Challenge, error)
	SetResult(ctx context.Context, challengeID, memberID, winnerID string) (*Challenge, error)
	Cancel(ctx context.Context, challengeID, memberID string) (*Challenge, error)
	Get(ctx context.Context, challengeID string) (*Challenge, error)
	List(ctx context.Context, memberID string, filter Filter) ([]Challenge, error)
}
