package routing

import "sync"

// Snapshot is a point-in-time view of a RouteState.
type Snapshot struct {
	Query   *Query
	Result  *Result
	Err     error
	Pending bool
}

// RouteState holds the route currently on display. A route is shown only
// while it answers the newest query; failures and input changes clear it.
type RouteState struct {
	mu       sync.Mutex
	seq      uint64
	query    *Query
	result   *Result
	err      error
	pending  bool
	watchers []func(Snapshot)
}

// Watch registers fn to receive every state change. fn runs while the state
// is locked, in change order, and must not call back into the RouteState.
func (s *RouteState) Watch(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Begin registers q as the newest query and returns its ticket. The displayed
// route is cleared when q differs from the query it answered.
func (s *RouteState) Begin(q Query) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begin(q)
}

// BeginFrom builds the query with build and registers it, both under the
// state lock, so no Update or Clear can land between reading the inputs and
// registering the query. A build error leaves the state untouched. build
// must not call back into the RouteState.
func (s *RouteState) BeginFrom(build func() (Query, error)) (Ticket, Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, err := build()
	if err != nil {
		return 0, Query{}, err
	}
	return s.begin(q), q, nil
}

func (s *RouteState) begin(q Query) Ticket {
	s.seq++
	if s.query == nil || *s.query != q {
		s.result = nil
	}
	s.query = &q
	s.err = nil
	s.pending = true
	s.notify()
	return Ticket(s.seq)
}

// Apply publishes the outcome of ticket t. It returns false, and changes
// nothing, when a newer query has been issued or the state was cleared since.
func (s *RouteState) Apply(t Ticket, result *Result, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Ticket(s.seq) != t {
		return false
	}
	s.pending = false
	if err != nil {
		s.result = nil
		s.err = err
	} else {
		s.result = result
		s.err = nil
	}
	s.notify()
	return true
}

// Clear drops the displayed route and supersedes any in-flight query.
func (s *RouteState) Clear() {
	s.Update(func() bool { return true })
}

// Update runs change under the state lock and clears the route when it
// reports true. An input change made through Update is atomic with respect
// to BeginFrom: a query is built either entirely before or entirely after it.
// change must not call back into the RouteState.
func (s *RouteState) Update(change func() bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !change() {
		return
	}
	s.seq++
	s.query = nil
	s.result = nil
	s.err = nil
	s.pending = false
	s.notify()
}

// Snapshot returns the current state.
func (s *RouteState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Read calls fn with the current state while holding the lock, so fn sees
// the route together with any inputs changed through Update. fn must not call
// back into the RouteState.
func (s *RouteState) Read(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.snapshot())
}

func (s *RouteState) snapshot() Snapshot {
	snap := Snapshot{Result: s.result, Err: s.err, Pending: s.pending}
	if s.query != nil {
		q := *s.query
		snap.Query = &q
	}
	return snap
}

func (s *RouteState) notify() {
	if len(s.watchers) == 0 {
		return
	}
	snap := s.snapshot()
	for _, fn := range s.watchers {
		fn(snap)
	}
}
