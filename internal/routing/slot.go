package routing

import "sync"

// Ticket identifies one request issued through a Slot.
type Ticket uint64

// Slot issues monotonically increasing tickets for one logical request slot
// (origin resolution, destination resolution, or the route query). Only the
// newest ticket may publish its completion; older completions are ignored.
type Slot struct {
	mu  sync.Mutex
	seq uint64
}

// Next issues a new ticket, superseding every earlier one.
func (s *Slot) Next() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return Ticket(s.seq)
}

// Invalidate supersedes every outstanding ticket without issuing a new one.
func (s *Slot) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
}

// Current reports whether t is still the newest ticket.
func (s *Slot) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ticket(s.seq) == t
}

// Commit runs apply if t is still the newest ticket. The check and apply are
// atomic with respect to Next and Invalidate.
func (s *Slot) Commit(t Ticket, apply func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if Ticket(s.seq) != t {
		return false
	}
	apply()
	return true
}
