package pubsub

import "cloud.google.com/go/pubsub"

type client struct {
	client *pubsub.Client
}

// TopicNotifications carries domain events to the notification consumer.
const TopicNotifications = "club-notifications"

// PushEnvelope is the JSON body Pub/Sub posts to a push subscription endpoint.
type PushEnvelope struct {
	Subscription string `json:"subscription"`
	Message      struct {
		ID   string `json:"messageId"`
		Data string `json:"data"`
	} `json:"message"`
}
