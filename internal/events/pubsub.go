package events

import (
	"context"
	"fmt"

	"github.com/mauv0809/clubledger/internal/pubsub"
)

var _ Publisher = (*PubSubPublisher)(nil)

// PubSubPublisher publishes events to a Pub/Sub topic. A push subscription
// hands them back to the notification endpoint for delivery.
type PubSubPublisher struct {
	client pubsub.PubSubClient
	topic  string
}

func NewPubSubPublisher(client pubsub.PubSubClient, topic string) *PubSubPublisher {
	return &PubSubPublisher{client: client, topic: topic}
}

func (p *PubSubPublisher) Publish(ctx context.Context, e Event) error {
	if err := p.client.SendMessage(ctx, p.topic, e); err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.Type, err)
	}
	return nil
}

// FromPush decodes an event from a push subscription request body.
func FromPush(client pubsub.PubSubClient, body []byte) (Event, error) {
	var e Event
	data, err := pubsub.UnwrapPush(body)
	if err != nil {
		return e, err
	}
	if err := client.ProcessMessage(data, &e); err != nil {
		return e, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}
