package routing

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citymove/citymove/internal/geo"
)

func TestSlot_NewestTicketWins(t *testing.T) {
	var slot Slot

	first := slot.Next()
	second := slot.Next()

	assert.False(t, slot.Current(first))
	assert.True(t, slot.Current(second))

	applied := false
	assert.False(t, slot.Commit(first, func() { applied = true }))
	assert.False(t, applied)
	assert.True(t, slot.Commit(second, func() { applied = true }))
	assert.True(t, applied)

	slot.Invalidate()
	assert.False(t, slot.Current(second))
}

func TestSlot_ConcurrentTicketsAreUnique(t *testing.T) {
	var slot Slot
	var mu sync.Mutex
	seen := make(map[Ticket]bool)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tk := slot.Next()
			mu.Lock()
			seen[tk] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 50)
	assert.True(t, slot.Current(Ticket(50)))
}

func TestRouteState_BeginClearsOnlyForDifferentQuery(t *testing.T) {
	var state RouteState
	q := Query{Origin: plovdiv, Destination: sofia, Mode: ModeWalking}
	result := &Result{Path: []geo.Point{plovdivPoint, sofiaPoint}}

	tk := state.Begin(q)
	require.True(t, state.Apply(tk, result, nil))

	// Same query again keeps the route on display while pending.
	state.Begin(q)
	snap := state.Snapshot()
	assert.Same(t, result, snap.Result)
	assert.True(t, snap.Pending)

	// A mode change invalidates it immediately.
	changed := q
	changed.Mode = ModeCycling
	state.Begin(changed)
	snap = state.Snapshot()
	assert.Nil(t, snap.Result)
	assert.Equal(t, ModeCycling, snap.Query.Mode)
}

func TestRouteState_StaleApplyIgnored(t *testing.T) {
	var state RouteState
	q := Query{Origin: plovdiv, Destination: sofia}

	old := state.Begin(q)
	fresh := state.Begin(q)

	assert.False(t, state.Apply(old, &Result{}, nil))
	assert.False(t, state.Apply(old, nil, errors.New("late failure")))
	assert.True(t, state.Snapshot().Pending)

	assert.True(t, state.Apply(fresh, &Result{Path: []geo.Point{plovdivPoint}}, nil))
	snap := state.Snapshot()
	assert.False(t, snap.Pending)
	assert.Len(t, snap.Result.Path, 1)
	assert.NoError(t, snap.Err)
}

func TestRouteState_Clear(t *testing.T) {
	var state RouteState
	tk := state.Begin(Query{Origin: plovdiv, Destination: sofia})
	state.Clear()

	assert.False(t, state.Apply(tk, &Result{}, nil))
	snap := state.Snapshot()
	assert.Nil(t, snap.Query)
	assert.Nil(t, snap.Result)
	assert.False(t, snap.Pending)
}

func TestResult_DurationSeconds(t *testing.T) {
	var nilResult *Result
	_, ok := nilResult.DurationSeconds()
	assert.False(t, ok)

	d := 42.0
	got, ok := (&Result{Duration: &d}).DurationSeconds()
	assert.True(t, ok)
	assert.Equal(t, 42.0, got)
}

func TestRouteState_WatchSeesChangesInOrder(t *testing.T) {
	var state RouteState
	var seen []Snapshot
	state.Watch(func(s Snapshot) { seen = append(seen, s) })

	q := Query{Origin: plovdiv, Destination: sofia, Mode: ModeWalking}
	stale := state.Begin(q)
	fresh := state.Begin(q)
	state.Apply(stale, &Result{}, nil)
	state.Apply(fresh, nil, ErrRouteUnavailable)
	state.Clear()

	require.Len(t, seen, 4, "stale apply must not notify")
	assert.True(t, seen[0].Pending)
	assert.True(t, seen[1].Pending)
	assert.ErrorIs(t, seen[2].Err, ErrRouteUnavailable)
	assert.Nil(t, seen[2].Result)
	assert.Nil(t, seen[3].Query)
}

func TestRouteState_BeginFrom(t *testing.T) {
	var state RouteState
	var notified int
	state.Watch(func(Snapshot) { notified++ })

	_, _, err := state.BeginFrom(func() (Query, error) { return Query{}, ErrInvalidInput })
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, notified)
	assert.Nil(t, state.Snapshot().Query)

	q := Query{Origin: plovdiv, Destination: sofia, Mode: ModeWalking}
	tk, got, err := state.BeginFrom(func() (Query, error) { return q, nil })
	require.NoError(t, err)
	assert.Equal(t, q, got)
	assert.Equal(t, 1, notified)
	assert.True(t, state.Apply(tk, &Result{}, nil))
}

func TestRouteState_UpdateSupersedesInFlightQuery(t *testing.T) {
	var state RouteState
	q := Query{Origin: plovdiv, Destination: sofia}

	tk := state.Begin(q)
	state.Update(func() bool { return false })
	assert.True(t, state.Snapshot().Pending, "an unchanged input keeps the query")

	changed := false
	state.Update(func() bool {
		changed = true
		return true
	})
	assert.True(t, changed)
	assert.False(t, state.Apply(tk, &Result{}, nil))

	snap := state.Snapshot()
	assert.Nil(t, snap.Query)
	assert.Nil(t, snap.Result)
}

func TestRouteState_ReadIsAtomicWithUpdate(t *testing.T) {
	var state RouteState
	var mu sync.Mutex
	input := 0

	// Every route shown must have been built from the current input.
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			var built int
			tk, _, _ := state.BeginFrom(func() (Query, error) {
				mu.Lock()
				built = input
				mu.Unlock()
				return Query{Origin: plovdiv, Destination: sofia}, nil
			})
			state.Apply(tk, &Result{Path: make([]geo.Point, built)}, nil)
		}()
		go func() {
			defer wg.Done()
			state.Update(func() bool {
				mu.Lock()
				input++
				mu.Unlock()
				return true
			})
		}()
	}
	wg.Wait()

	state.Read(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.Result != nil {
			assert.Len(t, s.Result.Path, input)
		}
	})
}
