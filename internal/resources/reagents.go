package resources

import (
	"sort"

	"prepdeck/internal/deck"
)

// ReagentTracked wraps a container whose wells are claimed by named
// reagents. Assignments are made once during deck setup and are
// immutable for the rest of the run.
//
// Invariant: well indices assigned to one reagent are disjoint from
// indices assigned to any other reagent on the same container.
// Overlapping claims are rejected as a configuration error rather than
// last-write-wins; a silent double claim would aspirate the wrong
// liquid.
type ReagentTracked struct {
	container *deck.Container
	maps      map[string][]deck.Position
	claimed   map[int]string // well index -> reagent name
	order     []string       // assignment order, for reporting
}

// NewReagentTracked wraps a container for reagent-map assignment.
func NewReagentTracked(c *deck.Container) *ReagentTracked {
	return &ReagentTracked{
		container: c,
		maps:      make(map[string][]deck.Position),
		claimed:   make(map[int]string),
	}
}

// Container returns the underlying container handle.
func (r *ReagentTracked) Container() *deck.Container {
	return r.container
}

// AssignReagentMap claims the given well indices for a reagent and
// returns the ordered positions, usable directly as a source argument
// to pipetting calls.
//
// Errors (all deck.ConfigurationError, detected before any device
// call):
//   - empty index list
//   - index outside the container's valid range
//   - index already claimed by another reagent, or reagent already
//     assigned
func (r *ReagentTracked) AssignReagentMap(name string, indices []int) ([]deck.Position, error) {
	if len(indices) == 0 {
		return nil, deck.NewConfigurationError(deck.CodeEmptyAssignment,
			"reagent %q on %s: no well indices given", name, r.container.Name)
	}
	if _, exists := r.maps[name]; exists {
		return nil, deck.NewConfigurationError(deck.CodeReagentOverlap,
			"reagent %q already assigned on %s", name, r.container.Name)
	}
	limit := r.container.Positions()
	for _, idx := range indices {
		if idx < 0 || idx >= limit {
			return nil, deck.NewConfigurationError(deck.CodeIndexOutOfRange,
				"reagent %q on %s: well index %d outside [0, %d)", name, r.container.Name, idx, limit)
		}
		if owner, taken := r.claimed[idx]; taken {
			return nil, deck.NewConfigurationError(deck.CodeReagentOverlap,
				"reagent %q on %s: well %d already claimed by %q", name, r.container.Name, idx, owner)
		}
	}

	positions := make([]deck.Position, len(indices))
	for i, idx := range indices {
		positions[i] = deck.Position{Container: r.container, Index: idx}
		r.claimed[idx] = name
	}
	r.maps[name] = positions
	r.order = append(r.order, name)
	return positions, nil
}

// Positions returns the assigned positions for a reagent, or nil if
// the reagent was never assigned.
func (r *ReagentTracked) Positions(name string) []deck.Position {
	return r.maps[name]
}

// ReagentAt returns the reagent claiming a well index, if any.
func (r *ReagentTracked) ReagentAt(index int) (string, bool) {
	name, ok := r.claimed[index]
	return name, ok
}

// Reagents returns assigned reagent names in assignment order.
func (r *ReagentTracked) Reagents() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ClaimedWells returns all claimed well indices in ascending order.
func (r *ReagentTracked) ClaimedWells() []int {
	wells := make([]int, 0, len(r.claimed))
	for idx := range r.claimed {
		wells = append(wells, idx)
	}
	sort.Ints(wells)
	return wells
}
