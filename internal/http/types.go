package http

import (
	"context"
	"net/http"

	"github.com/mauv0809/clubledger/internal/booking"
	"github.com/mauv0809/clubledger/internal/catalog"
	"github.com/mauv0809/clubledger/internal/challenge"
	"github.com/mauv0809/clubledger/internal/config"
	"github.com/mauv0809/clubledger/internal/events"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/notifier"
	"github.com/mauv0809/clubledger/internal/notifier/inbox"
	"github.com/mauv0809/clubledger/internal/pubsub"
	"github.com/mauv0809/clubledger/internal/sweeper"
	"github.com/mauv0809/clubledger/internal/tournament"
)

// SocketServer upgrades websocket connections for live notifications.
type SocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request, memberID string, rooms ...string)
}

// JobRunner runs a sweeper job on demand.
type JobRunner interface {
	RunOnce(ctx context.Context, job sweeper.Job) error
}

// Services groups the domain services the API exposes.
type Services struct {
	Ledger      ledger.Ledger
	Catalog     catalog.Catalog
	Bookings    booking.Service
	Challenges  challenge.Service
	Tournaments tournament.Service
	Inbox       *inbox.Inbox
	Notifier    notifier.Notifier
	Publisher   events.Publisher
	PubSub      pubsub.PubSubClient
	Sockets     SocketServer
	Sweeper     JobRunner
}

type Server struct {
	Services
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Cfg            config.Config
	Router         *http.ServeMux
}

// errorResponse is the JSON body of every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
