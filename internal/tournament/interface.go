package tournament

import (
	"context"
	"time"

	"github.com/mauv0809/clubledger/internal/identity"
)

type Service interface {
	Create(ctx context.Context, p identity.Principal, t Tournament) (*Tournament, error)
	Get(ctx context.Context, tournamentID string) (*Tournament, error)
	// List returns tournaments by start date. An empty status lists all.
	List(ctx context.Context, status Status) ([]Tournament, error)

	Join(ctx context.Context, tournamentID, memberID, teamName string) (*Participant, error)
	Participants(ctx context.Context, tournamentID string) ([]Participant, error)

	GenerateSchedule(ctx context.Context, p identity.Principal, tournamentID string) (*Schedule, error)
	Matches(ctx context.Context, tournamentID string) ([]Match, error)
	Match(ctx context.Context, matchID string) (*Match, error)
	RecordMatchResult(ctx context.Context, p identity.Principal, matchID string, r Result) (*MatchResult, error)

	// AdvanceStatuses finishes ended tournaments and starts those whose start date arrived.
	AdvanceStatuses(ctx context.Context, now time.Time) ([]Tournament, error)
	DueMatchReminders(ctx context.Context, now time.Time, lead time.Duration) ([]Match, error)
	MarkMatchReminded(ctx context.Context, matchID string, at time.Time) error
}
