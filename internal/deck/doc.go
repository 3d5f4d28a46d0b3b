// Package deck models the physical deck of a liquid-handling robot:
// named slots, the containers sitting in them, and the layout files
// that bind the two.
//
// A layout is a directory of CUE files declaring slots and container
// kinds. Loading resolves each named slot to a Container handle, the
// same way the vendor layout manager resolves a named sequence. The
// deck package owns no instrument behavior; it is pure bookkeeping
// consumed by the resource trackers and protocol deck setups.
//
// Positions are always (container, index) pairs. Index ranges are
// fixed per container kind: 0-95 for a 96-well plate, 0-31 for an
// Eppendorf carrier, 0-7 for a trough or reservoir.
package deck
