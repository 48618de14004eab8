package events

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/clubledger/internal/notifier"
)

// Type names a domain event.
type Type string

const (
	SlotHeld             Type = "slot-held"
	ReservationConfirmed Type = "reservation-confirmed"
	ReservationCancelled Type = "reservation-cancelled"
	SlotFreed            Type = "slot-freed"
	HoldExpired          Type = "hold-expired"
	RecurringBooked      Type = "recurring-booked"
	ChallengeReceived    Type = "challenge-received"
	ChallengeOpened      Type = "challenge-opened"
	ChallengeAccepted    Type = "challenge-accepted"
	ChallengeResult      Type = "challenge-result"
	ChallengeCancelled   Type = "challenge-cancelled"
	DepositRequested     Type = "deposit-requested"
	DepositApproved      Type = "deposit-approved"
	DepositRejected      Type = "deposit-rejected"
	TournamentCreated    Type = "tournament-created"
	TournamentJoined     Type = "tournament-joined"
	ScheduleGenerated    Type = "schedule-generated"
	MatchScored          Type = "match-scored"
	TournamentStatus     Type = "tournament-status"
	Reminder             Type = "reminder"
	Announcement         Type = "announcement"
)

// Event is emitted after a state change commits. It is addressed to
// Recipients, broadcast, or both.
type Event struct {
	Type       Type           `msgpack:"type" json:"type"`
	Recipients []string       `msgpack:"recipients,omitempty" json:"recipients,omitempty"`
	Broadcast  bool           `msgpack:"broadcast" json:"broadcast"`
	Room       string         `msgpack:"room,omitempty" json:"room,omitempty"`
	Text       string         `msgpack:"text" json:"text"`
	Level      notifier.Level `msgpack:"level" json:"level"`
	Link       string         `msgpack:"link,omitempty" json:"link,omitempty"`
	OccurredAt time.Time      `msgpack:"occurred_at" json:"occurredAt"`
}

// Message renders the event for a notifier.
func (e Event) Message() notifier.Message {
	level := e.Level
	if level == "" {
		level = notifier.LevelInfo
	}
	return notifier.Message{
		Type:   string(e.Type),
		Text:   e.Text,
		Level:  level,
		Link:   e.Link,
		Room:   e.Room,
		SentAt: e.OccurredAt,
	}
}

// Publisher hands events to the delivery path. Publish must not block on delivery.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Emit publishes e and logs a failure. Delivery is at most once; a lost
// event never affects the committed state that produced it.
func Emit(ctx context.Context, p Publisher, e Event) {
	if p == nil {
		return
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("Failed to publish event", "type", e.Type, "error", err)
	}
}

// Deliver sends e to each distinct recipient and, if requested, broadcasts it.
func Deliver(ctx context.Context, n notifier.Notifier, e Event) error {
	msg := e.Message()
	var errs []error
	seen := make(map[string]bool, len(e.Recipients))
	for _, memberID := range e.Recipients {
		if memberID == "" || seen[memberID] {
			continue
		}
		seen[memberID] = true
		if err := n.Notify(ctx, memberID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if e.Broadcast {
		if err := n.Broadcast(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		log.Warn("Event delivery incomplete", "type", e.Type, "error", err)
		return err
	}
	return nil
}
