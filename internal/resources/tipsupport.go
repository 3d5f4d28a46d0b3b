package resources

import (
	"prepdeck/internal/deck"
)

// TipSupportTracker tracks the tip-support position, where a partial
// rack is parked so reduced-channel operations can reuse tips the
// 96-channel head already picked up.
//
// The support holds at most one rack at a time.
type TipSupportTracker struct {
	support    *deck.Container
	sourceRack *deck.Container // rack currently parked, nil when empty
}

// NewTipSupportTracker wraps the tip-support deck position.
func NewTipSupportTracker(support *deck.Container) *TipSupportTracker {
	return &TipSupportTracker{support: support}
}

// Support returns the support's deck container.
func (t *TipSupportTracker) Support() *deck.Container {
	return t.support
}

// Park records a rack placed on the support. Parking over an occupied
// support is a configuration error; the physical position can only
// hold one rack.
func (t *TipSupportTracker) Park(rack *deck.Container) error {
	if t.sourceRack != nil {
		return deck.NewConfigurationError(deck.CodeSlotNotFound,
			"tip support %s already holds %s", t.support.Name, t.sourceRack.Name)
	}
	t.sourceRack = rack
	return nil
}

// Retrieve clears the support and returns the parked rack.
func (t *TipSupportTracker) Retrieve() (*deck.Container, error) {
	if t.sourceRack == nil {
		return nil, deck.NewConfigurationError(deck.CodeSlotNotFound,
			"tip support %s is empty", t.support.Name)
	}
	rack := t.sourceRack
	t.sourceRack = nil
	return rack, nil
}

// SourceRack returns the parked rack, or nil when the support is
// empty.
func (t *TipSupportTracker) SourceRack() *deck.Container {
	return t.sourceRack
}
