package deck

import (
	"fmt"
	"sort"
	"strings"

	"prepdeck/internal/trace"
)

// Container is a handle to one piece of labware resolved from a
// layout. Handles are comparable by pointer within one Layout; the
// pipetting layer only ever sees (container, index) pairs.
type Container struct {
	Name string
	Kind Kind
}

// Positions returns the container's valid well-index count.
func (c *Container) Positions() int {
	return c.Kind.Positions()
}

func (c *Container) String() string {
	return c.Name
}

// Position is one addressable well on a container - the position-tuple
// shape the pipetting primitives accept.
type Position struct {
	Container *Container
	Index     int
}

func (p Position) String() string {
	return fmt.Sprintf("%s[%d]", p.Container.Name, p.Index)
}

// Range builds the positions (c, 0) .. (c, n-1), the common "first n
// wells" argument to plate-wide pipetting calls.
func Range(c *Container, n int) []Position {
	out := make([]Position, n)
	for i := range out {
		out[i] = Position{Container: c, Index: i}
	}
	return out
}

// Layout is the resolved deck: slot names bound to container handles.
// A Layout is immutable after loading.
type Layout struct {
	name       string
	containers map[string]*Container
	order      []string // declaration order, for deterministic listing
}

// NewLayout builds a layout from explicit slot declarations. Used by
// tests and by the CUE loader; duplicate names are rejected.
func NewLayout(name string, slots map[string]Kind) (*Layout, error) {
	l := &Layout{
		name:       name,
		containers: make(map[string]*Container, len(slots)),
	}
	names := make([]string, 0, len(slots))
	for slot := range slots {
		names = append(names, slot)
	}
	sort.Strings(names)
	for _, slot := range names {
		kind := slots[slot]
		if !kind.Valid() {
			return nil, NewConfigurationError(CodeKindMismatch, "slot %q has unknown kind %q", slot, kind)
		}
		l.containers[slot] = &Container{Name: slot, Kind: kind}
		l.order = append(l.order, slot)
	}
	return l, nil
}

// Name returns the layout's declared name.
func (l *Layout) Name() string {
	return l.name
}

// Item resolves a named slot to its container handle, checking the
// expected kind. This is the layout-item lookup every deck setup runs
// through; a missing slot or kind mismatch is a configuration error
// caught before any device call.
func (l *Layout) Item(name string, kind Kind) (*Container, error) {
	c, ok := l.containers[name]
	if !ok {
		return nil, NewConfigurationError(CodeSlotNotFound, "layout %q has no slot %q", l.name, name)
	}
	if c.Kind != kind {
		return nil, NewConfigurationError(CodeKindMismatch, "slot %q is %s, requested %s", name, c.Kind, kind)
	}
	return c, nil
}

// ItemsWithPrefix returns all containers of the given kind whose slot
// name starts with prefix, in ascending name order. Stacked resources
// and tip racks are registered in the layout as numbered sequences
// sharing a prefix (e.g. "BioRadHardshell_Stack1_0001" ..), so the
// sort order is the physical stack order.
func (l *Layout) ItemsWithPrefix(prefix string, kind Kind) []*Container {
	var out []*Container
	for _, name := range l.order {
		c := l.containers[name]
		if c.Kind == kind && strings.HasPrefix(name, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Slot returns the container in the named slot without a kind check.
// Listing and reporting use this; deck setup goes through Item.
func (l *Layout) Slot(name string) (*Container, bool) {
	c, ok := l.containers[name]
	return c, ok
}

// Slots returns all slot names in declaration order.
func (l *Layout) Slots() []string {
	out := make([]string, len(l.order))
	copy(out, l.order)
	return out
}

// Hash computes the layout's content-addressed digest. Recorded with
// every run so a report can be tied back to the exact deck definition
// it ran against.
func (l *Layout) Hash() (string, error) {
	slots := make(map[string]any, len(l.containers))
	for name, c := range l.containers {
		slots[name] = string(c.Kind)
	}
	canonical, err := trace.MarshalCanonical(map[string]any{
		"name":  l.name,
		"slots": slots,
	})
	if err != nil {
		return "", fmt.Errorf("layout hash: %w", err)
	}
	return trace.HashWithDomain(trace.DomainLayout, canonical), nil
}
