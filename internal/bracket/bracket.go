// Package bracket pairs tournament participants and spreads the resulting
// matches over daily time slots. It has no storage or side effects.
package bracket

import (
	"math/rand/v2"
	"time"
)

// Pair is one scheduled meeting of two participants.
type Pair struct {
	A string
	B string
}

// DailySlots are the default match start times, as offsets from midnight.
var DailySlots = []time.Duration{9 * time.Hour, 10 * time.Hour, 11 * time.Hour, 12 * time.Hour}

// RoundRobin returns every unordered pair once, i before j in input order.
func RoundRobin(ids []string) []Pair {
	n := len(ids)
	pairs := make([]Pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, Pair{A: ids[i], B: ids[j]})
		}
	}
	return pairs
}

// Knockout shuffles ids and pairs them consecutively. With an odd count the
// last participant after shuffling gets no match this round and is returned
// as unpaired. A nil rng uses the global source.
func Knockout(ids []string, rng *rand.Rand) (pairs []Pair, unpaired string) {
	shuffled := append([]string(nil), ids...)
	swap := func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] }
	if rng != nil {
		rng.Shuffle(len(shuffled), swap)
	} else {
		rand.Shuffle(len(shuffled), swap)
	}
	for i := 0; i+1 < len(shuffled); i += 2 {
		pairs = append(pairs, Pair{A: shuffled[i], B: shuffled[i+1]})
	}
	if len(shuffled)%2 == 1 {
		unpaired = shuffled[len(shuffled)-1]
	}
	return pairs, unpaired
}

// AssignSlots returns n start times filling slots day by day, beginning on
// the calendar day of start in start's location.
func AssignSlots(start time.Time, n int, slots []time.Duration) []time.Time {
	if len(slots) == 0 {
		slots = DailySlots
	}
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())
	times := make([]time.Time, n)
	for i := range times {
		times[i] = day.AddDate(0, 0, i/len(slots)).Add(slots[i%len(slots)])
	}
	return times
}
