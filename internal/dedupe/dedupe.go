// Package dedupe provides a bounded set of recently seen identifiers. The
// engine uses it to short-circuit idempotency-ledger lookups for events the
// process itself already applied; the ledger remains the source of truth.
package dedupe

import "sync"

// Set remembers up to capacity identifiers, evicting the oldest first.
type Set struct {
	mu       sync.Mutex
	capacity int
	members  map[string]struct{}
	order    []string
	head     int
}

func New(capacity int) *Set {
	if capacity <= 0 {
		capacity = 1
	}
	return &Set{
		capacity: capacity,
		members:  make(map[string]struct{}, capacity),
		order:    make([]string, 0, capacity),
	}
}

// Add inserts id, evicting the oldest member when full. Adding an existing
// id is a no-op (its age is unchanged).
func (s *Set) Add(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[id]; ok {
		return
	}
	if len(s.members) >= s.capacity {
		oldest := s.order[s.head]
		delete(s.members, oldest)
		s.order[s.head] = id
		s.head = (s.head + 1) % s.capacity
	} else {
		s.order = append(s.order, id)
	}
	s.members[id] = struct{}{}
}

func (s *Set) Has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.members[id]
	return ok
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// Reset drops every member. Called after reorg compensation, which removes
// ledger rows this set may still remember.
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = make(map[string]struct{}, s.capacity)
	s.order = s.order[:0]
	s.head = 0
}
