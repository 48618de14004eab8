package metrics

import "sync"

var _ Metrics = (*Mock)(nil)

// Mock is a mock implementation of the Metrics interface for testing.
// It is safe for concurrent use.
type Mock struct {
	mu             sync.Mutex
	ledgerEntries  map[string]int
	reservations   map[string]int
	holdsExpired   int
	challenges     map[string]int
	tournamentJoin int
	conflicts      int
	notifSent      map[string]int
	notifFailed    map[string]int
	sweepDurations map[string][]float64
	startupTime    float64
}

// NewMock creates a new mock instance.
func NewMock() *Mock {
	return &Mock{
		ledgerEntries:  make(map[string]int),
		reservations:   make(map[string]int),
		challenges:     make(map[string]int),
		notifSent:      make(map[string]int),
		notifFailed:    make(map[string]int),
		sweepDurations: make(map[string][]float64),
	}
}

func (m *Mock) IncLedgerEntries(kind, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledgerEntries[kind+"/"+status]++
}

func (m *Mock) IncReservations(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservations[outcome]++
}

func (m *Mock) AddHoldsExpired(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holdsExpired += n
}

func (m *Mock) IncChallenges(outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[outcome]++
}

func (m *Mock) IncTournamentJoins() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tournamentJoin++
}

func (m *Mock) IncConflicts() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conflicts++
}

func (m *Mock) IncNotifSent(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifSent[channel]++
}

func (m *Mock) IncNotifFailed(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifFailed[channel]++
}

func (m *Mock) ObserveSweepDuration(job string, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepDurations[job] = append(m.sweepDurations[job], duration)
}

func (m *Mock) SetStartupTime(duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startupTime = duration
}

// LedgerEntries returns how many entries of kind/status were counted.
func (m *Mock) LedgerEntries(kind, status string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledgerEntries[kind+"/"+status]
}

// Reservations returns how many times outcome was counted.
func (m *Mock) Reservations(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reservations[outcome]
}

// HoldsExpired returns the total passed to AddHoldsExpired.
func (m *Mock) HoldsExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holdsExpired
}

// Challenges returns how many times outcome was counted.
func (m *Mock) Challenges(outcome string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.challenges[outcome]
}

// TournamentJoins returns the number of times IncTournamentJoins was called.
func (m *Mock) TournamentJoins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tournamentJoin
}

// Conflicts returns the number of times IncConflicts was called.
func (m *Mock) Conflicts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conflicts
}

// NotifSent returns the number of notifications sent on channel.
func (m *Mock) NotifSent(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifSent[channel]
}

// NotifFailed returns the number of failed notifications on channel.
func (m *Mock) NotifFailed(channel string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notifFailed[channel]
}

// SweepRuns returns how many durations were observed for job.
func (m *Mock) SweepRuns(job string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sweepDurations[job])
}
