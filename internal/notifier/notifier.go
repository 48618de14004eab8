package notifier

import (
	"context"
	"errors"
	"time"
)

// Level is the severity shown to the recipient.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelSuccess Level = "SUCCESS"
	LevelWarning Level = "WARNING"
)

// Message is a push notification. A non-empty Room scopes a broadcast to the
// subscribers of that room, e.g. viewers of one match.
type Message struct {
	Type   string    `json:"type" msgpack:"type"`
	Text   string    `json:"text" msgpack:"text"`
	Level  Level     `json:"level" msgpack:"level"`
	Link   string    `json:"link,omitempty" msgpack:"link,omitempty"`
	Room   string    `json:"room,omitempty" msgpack:"room,omitempty"`
	SentAt time.Time `json:"sentAt" msgpack:"sent_at"`
}

// Notifier delivers messages to members. Delivery is best effort; callers
// log failures and never roll back state because of them.
type Notifier interface {
	Notify(ctx context.Context, memberID string, msg Message) error
	Broadcast(ctx context.Context, msg Message) error
}

// Multi fans every message out to all of its notifiers.
type Multi []Notifier

var _ Notifier = Multi(nil)

func (m Multi) Notify(ctx context.Context, memberID string, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, memberID, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Broadcast(ctx context.Context, msg Message) error {
	var errs []error
	for _, n := range m {
		if err := n.Broadcast(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
