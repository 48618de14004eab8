package events

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/clubledger/internal/notifier"
)

// ErrQueueFull is returned when the dispatcher cannot accept more events.
var ErrQueueFull = errors.New("event queue is full")

const drainTimeout = 5 * time.Second

var _ Publisher = (*Dispatcher)(nil)

// Dispatcher delivers events in-process on its own goroutine so publishers
// never wait on a notifier.
type Dispatcher struct {
	queue    chan Event
	notifier notifier.Notifier
}

func NewDispatcher(n notifier.Notifier, buffer int) *Dispatcher {
	return &Dispatcher{
		queue:    make(chan Event, buffer),
		notifier: n,
	}
}

// Publish enqueues e, dropping it when the queue is full.
func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	select {
	case d.queue <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case e := <-d.queue:
			Deliver(ctx, d.notifier, e)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case e := <-d.queue:
			Deliver(ctx, d.notifier, e)
		default:
			log.Info("Event dispatcher stopped")
			return
		}
	}
}
