package tournament

import (
	"time"

	"github.com/shopspring/decimal"
)

type Format string

const (
	FormatRoundRobin Format = "ROUND_ROBIN"
	FormatKnockout   Format = "KNOCKOUT"
	FormatHybrid     Format = "HYBRID"
)

func (f Format) valid() bool {
	return f == FormatRoundRobin || f == FormatKnockout || f == FormatHybrid
}

type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusRegistering   Status = "REGISTERING"
	StatusDrawCompleted Status = "DRAW_COMPLETED"
	StatusOngoing       Status = "ONGOING"
	StatusFinished      Status = "FINISHED"
)

// acceptsEntries reports whether members may still join.
func (s Status) acceptsEntries() bool {
	return s == StatusOpen || s == StatusRegistering
}

type Tournament struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	StartDate time.Time       `json:"startDate"`
	EndDate   time.Time       `json:"endDate"`
	Format    Format          `json:"format"`
	EntryFee  decimal.Decimal `json:"entryFee"`
	PrizePool decimal.Decimal `json:"prizePool"`
	Status    Status          `json:"status"`
	Settings  string          `json:"settings,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Participant struct {
	ID            string    `json:"id"`
	TournamentID  string    `json:"tournamentId"`
	MemberID      string    `json:"memberId"`
	TeamName      string    `json:"teamName,omitempty"`
	PaymentStatus bool      `json:"paymentStatus"`
	LedgerEntryID string    `json:"ledgerEntryId,omitempty"`
	JoinedAt      time.Time `json:"joinedAt"`
}

type Side string

const (
	SideTeam1 Side = "TEAM1"
	SideTeam2 Side = "TEAM2"
	SideDraw  Side = "DRAW"
)

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "SCHEDULED"
	MatchInProgress MatchStatus = "IN_PROGRESS"
	MatchFinished   MatchStatus = "FINISHED"
)

type Match struct {
	ID           string      `json:"id"`
	TournamentID string      `json:"tournamentId,omitempty"`
	RoundName    string      `json:"roundName"`
	ScheduledAt  time.Time   `json:"scheduledAt"`
	Team1Player1 string      `json:"team1Player1"`
	Team1Player2 string      `json:"team1Player2,omitempty"`
	Team2Player1 string      `json:"team2Player1"`
	Team2Player2 string      `json:"team2Player2,omitempty"`
	Score1       int         `json:"score1"`
	Score2       int         `json:"score2"`
	Details      string      `json:"details,omitempty"`
	WinningSide  Side        `json:"winningSide,omitempty"`
	IsRanked     bool        `json:"isRanked"`
	Status       MatchStatus `json:"status"`
	RemindedAt   *time.Time  `json:"remindedAt,omitempty"`
}

// Players lists the named players of both sides.
func (m *Match) Players() []string {
	var ids []string
	for _, id := range []string{m.Team1Player1, m.Team1Player2, m.Team2Player1, m.Team2Player2} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// Room is the push channel for live updates about the match.
func (m *Match) Room() string {
	return "match:" + m.ID
}

// Schedule is the outcome of GenerateSchedule. Unpaired is set when a
// knockout draw had an odd participant count.
type Schedule struct {
	TournamentID string  `json:"tournamentId"`
	Matches      []Match `json:"matches"`
	Unpaired     string  `json:"unpaired,omitempty"`
}

type Result struct {
	Score1  int    `json:"score1"`
	Score2  int    `json:"score2"`
	Details string `json:"details,omitempty"`
	Side    Side   `json:"winningSide"`
}

// MatchResult reports the scored match and the new rank of every player
// whose rank moved.
type MatchResult struct {
	Match Match              `json:"match"`
	Ranks map[string]float64 `json:"ranks,omitempty"`
}
