package challenge

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusFinished  Status = "FINISHED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCancelled
}

// Filter narrows List.
type Filter string

const (
	FilterAll      Filter = ""
	FilterMine     Filter = "mine"
	FilterOpen     Filter = "open"
	FilterFinished Filter = "finished"
)

// Challenge is a wager between two members. Each party's stake is held by
// the club from the moment they commit until the result or a cancellation.
type Challenge struct {
	ID                string          `json:"id"`
	ChallengerID      string          `json:"challengerId"`
	OpponentID        string          `json:"opponentId,omitempty"`
	Stake             decimal.Decimal `json:"stake"`
	Message           string          `json:"message,omitempty"`
	Status            Status          `json:"status"`
	WinnerID          string          `json:"winnerId,omitempty"`
	ChallengerEntryID string          `json:"challengerEntryId,omitempty"`
	OpponentEntryID   string          `json:"opponentEntryId,omitempty"`
	RewardEntryID     string          `json:"rewardEntryId,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	AcceptedAt        *time.Time      `json:"acceptedAt,omitempty"`
	FinishedAt        *time.Time      `json:"finishedAt,omitempty"`
}

// Open reports whether any member may accept the challenge.
func (c *Challenge) Open() bool {
	return c.OpponentID == ""
}

func (c *Challenge) isParticipant(memberID string) bool {
	return memberID != "" && (memberID == c.ChallengerID || memberID == c.OpponentID)
}
