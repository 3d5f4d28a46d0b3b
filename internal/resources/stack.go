package resources

import (
	"prepdeck/internal/deck"
)

// StackedResources tracks a physical pile of identical plates or lids
// at one deck location, consumed one at a time in deterministic order.
//
// The stack is modeled as two monotonic cursors over a fixed list of
// pre-registered containers (index 0 is the top of the physical
// stack):
//
//   - fetchCursor advances from index 0 upward; FetchNext hands out
//     the next stocked resource.
//   - returnCursor advances from the far end; PutBack hands out the
//     next free park slot, used for spent lids and empties.
//
// An occupancy ledger tracks which slots currently hold a resource.
// Fetching marks a slot empty; putting back marks it occupied again.
// Checked Reset refuses while fetched items are still outstanding;
// ResetAll is the unconditional escape hatch matching the original
// deck scripts, for when the operator has physically restocked.
type StackedResources struct {
	trackerID   string
	resources   []*deck.Container
	occupied    []bool
	fetchCursor int
	retCursor   int
	outstanding int // fetched and not yet put back or discarded
}

// FromPrefix registers a stack from the layout: all containers of the
// given kind whose slot name starts with prefix, in ascending name
// order (the physical top-to-bottom stack order). count must match the
// number of registered slots; a mismatch means the layout and the
// protocol disagree about how tall the stack is.
func FromPrefix(trackerID, prefix string, count int, kind deck.Kind, layout *deck.Layout) (*StackedResources, error) {
	items := layout.ItemsWithPrefix(prefix, kind)
	if len(items) != count {
		return nil, deck.NewConfigurationError(deck.CodeSlotNotFound,
			"stack %s: layout has %d slots with prefix %q, protocol expects %d",
			trackerID, len(items), prefix, count)
	}
	occ := make([]bool, count)
	for i := range occ {
		occ[i] = true
	}
	return &StackedResources{
		trackerID: trackerID,
		resources: items,
		occupied:  occ,
	}, nil
}

// TrackerID returns the stack's identifier.
func (s *StackedResources) TrackerID() string {
	return s.trackerID
}

// Count returns the registered stack height.
func (s *StackedResources) Count() int {
	return len(s.resources)
}

// FetchNext returns the next not-yet-used resource in stack order.
// Fails with ResourceExhaustedError when the cursor reaches the
// registered count.
func (s *StackedResources) FetchNext() (*deck.Container, error) {
	if s.fetchCursor >= len(s.resources) {
		return nil, &ResourceExhaustedError{
			TrackerID: s.trackerID,
			Resource:  "stacked resource",
			Count:     len(s.resources),
		}
	}
	c := s.resources[s.fetchCursor]
	s.occupied[s.fetchCursor] = false
	s.fetchCursor++
	s.outstanding++
	return c, nil
}

// FetchNextUnoccupied returns the first slot, in stack order, that
// does not currently hold a resource. Protocols use it as a transport
// destination when parking a lid back onto its own stack position.
// The slot is marked occupied again.
func (s *StackedResources) FetchNextUnoccupied() (*deck.Container, error) {
	for i, occ := range s.occupied {
		if !occ {
			s.occupied[i] = true
			if s.outstanding > 0 {
				s.outstanding--
			}
			return s.resources[i], nil
		}
	}
	return nil, &ResourceExhaustedError{
		TrackerID: s.trackerID,
		Resource:  "unoccupied slot",
		Count:     len(s.resources),
	}
}

// PutBack returns the next available park slot from the far end of the
// registered list, marking it occupied. Fails with
// ResourceExhaustedError when the return region is full.
func (s *StackedResources) PutBack() (*deck.Container, error) {
	if s.retCursor >= len(s.resources) {
		return nil, &ResourceExhaustedError{
			TrackerID: s.trackerID,
			Resource:  "return slot",
			Count:     len(s.resources),
		}
	}
	idx := len(s.resources) - 1 - s.retCursor
	s.occupied[idx] = true
	s.retCursor++
	if s.outstanding > 0 {
		s.outstanding--
	}
	return s.resources[idx], nil
}

// Discard tells the ledger a previously fetched resource left the deck
// for good (e.g. a plate moved to waste). It does not change cursors;
// it only releases the outstanding claim so a checked Reset can
// succeed.
func (s *StackedResources) Discard() {
	if s.outstanding > 0 {
		s.outstanding--
	}
}

// Outstanding returns the number of fetched resources not yet put
// back or discarded.
func (s *StackedResources) Outstanding() int {
	return s.outstanding
}

// Remaining returns the number of stocked resources FetchNext can
// still return.
func (s *StackedResources) Remaining() int {
	return len(s.resources) - s.fetchCursor
}

// Reset reinitializes both cursors to the start, as if the stack were
// freshly stocked. It refuses while fetched resources are still marked
// outstanding: a logical reset over a half-empty physical stack would
// double-claim plates that are still in use elsewhere on deck.
func (s *StackedResources) Reset() error {
	if s.outstanding > 0 {
		return deck.NewConfigurationError(deck.CodeSlotNotFound,
			"stack %s: cannot reset with %d fetched resources still on deck", s.trackerID, s.outstanding)
	}
	s.resetCursors()
	return nil
}

// ResetAll unconditionally reinitializes the stack. Callers must
// ensure the physical stack actually matches - the tracker cannot
// verify deck state.
func (s *StackedResources) ResetAll() {
	s.resetCursors()
}

func (s *StackedResources) resetCursors() {
	s.fetchCursor = 0
	s.retCursor = 0
	s.outstanding = 0
	for i := range s.occupied {
		s.occupied[i] = true
	}
}
