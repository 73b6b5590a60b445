package convert

import "sort"

// Tally counts outcomes.
type Tally map[Outcome]int

// Total returns the number of recorded outcomes.
func (t Tally) Total() int {
	n := 0
	for _, c := range t {
		n += c
	}
	return n
}

// Merge adds other's counts into t.
func (t Tally) Merge(other Tally) {
	for o, c := range other {
		t[o] += c
	}
}

// MissingSet is a set of legacy local identifiers without a table entry.
type MissingSet map[string]struct{}

func (s MissingSet) Add(id string) {
	s[id] = struct{}{}
}

func (s MissingSet) Contains(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the identifiers in lexical order.
func (s MissingSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s MissingSet) Merge(other MissingSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Tracker is the mutable state a batch accumulates: one tally entry per
// attempt plus the missing identifiers seen along the way.
//
// A Tracker is not safe for concurrent use. Concurrent batches give each
// worker its own Tracker and Merge them afterwards.
type Tracker struct {
	Tally            Tally
	MissingEntities  MissingSet
	MissingRelations MissingSet
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		Tally:            make(Tally),
		MissingEntities:  make(MissingSet),
		MissingRelations: make(MissingSet),
	}
}

// Record counts one outcome.
func (t *Tracker) Record(o Outcome) {
	t.Tally[o]++
}

// Merge folds other into t.
func (t *Tracker) Merge(other *Tracker) {
	if other == nil {
		return
	}
	t.Tally.Merge(other.Tally)
	t.MissingEntities.Merge(other.MissingEntities)
	t.MissingRelations.Merge(other.MissingRelations)
}
