package notifier

import (
	"context"
	"sync"
)

var _ Notifier = (*Mock)(nil)

// NotifyCall holds the arguments for a call to Notify.
type NotifyCall struct {
	MemberID string
	Message  Message
}

// Mock is a mock implementation of the Notifier interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu sync.Mutex

	// Spies
	NotifyFunc    func(memberID string, msg Message) error
	BroadcastFunc func(msg Message) error

	// Call records
	NotifyCalls    []NotifyCall
	BroadcastCalls []Message
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{}
}

// Reset clears all call records.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyCalls = nil
	m.BroadcastCalls = nil
}

func (m *Mock) Notify(ctx context.Context, memberID string, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.NotifyCalls = append(m.NotifyCalls, NotifyCall{MemberID: memberID, Message: msg})
	if m.NotifyFunc != nil {
		return m.NotifyFunc(memberID, msg)
	}
	return nil
}

func (m *Mock) Broadcast(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BroadcastCalls = append(m.BroadcastCalls, msg)
	if m.BroadcastFunc != nil {
		return m.BroadcastFunc(msg)
	}
	return nil
}

// Notified returns a copy of the recorded Notify calls.
func (m *Mock) Notified() []NotifyCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NotifyCall(nil), m.NotifyCalls...)
}

// Broadcasts returns a copy of the recorded Broadcast calls.
func (m *Mock) Broadcasts() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.BroadcastCalls...)
}
