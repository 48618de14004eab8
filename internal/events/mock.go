package events

import (
	"context"
	"sync"
)

var _ Publisher = (*Mock)(nil)

// Mock records published events. It is safe for concurrent use.
type Mock struct {
	mu          sync.Mutex
	PublishFunc func(e Event) error
	events      []Event
}

func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) Publish(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	if m.PublishFunc != nil {
		return m.PublishFunc(e)
	}
	return nil
}

// Events returns a copy of the published events.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types returns the types of the published events in order.
func (m *Mock) Types() []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	types := make([]Type, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.Type)
	}
	return types
}

// Reset clears all recorded events.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
