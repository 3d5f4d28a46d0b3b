package resources

import (
	"prepdeck/internal/deck"
)

// ColumnsPerRack is the number of 8-tip channel-group columns in a
// 96-position tip rack.
const ColumnsPerRack = 12

// ChannelsPerColumn is the number of parallel pipetting channels
// served by one tip column.
const ChannelsPerColumn = 8

// TrackedTips tracks consumption of disposable pipette tips across a
// rotation of identically prefixed racks sharing one tip geometry and
// rated volume.
//
// Consumption is per 8-tip column (one channel group). When a rack
// runs out of columns the tracker advances to the next registered rack
// automatically; requesting tips past the last rack is a
// ResourceExhaustedError. ResetAll marks every rack full again - a
// logical reset only, used mid-protocol when a step needs a
// guaranteed-full tip supply after the operator restocks.
type TrackedTips struct {
	trackerID  string
	capacityUL float64
	racks      []*deck.Container
	rackIdx    int
	colIdx     int
}

// TipsFromPrefix constructs a tracker over the layout's tip racks
// whose slot names share prefix, associated with a fixed rated volume
// per tip.
func TipsFromPrefix(trackerID, prefix string, capacityUL float64, count int, layout *deck.Layout) (*TrackedTips, error) {
	if capacityUL <= 0 {
		return nil, deck.NewConfigurationError(deck.CodeVolumeExceeded,
			"tip tracker %s: capacity %.1f uL is not positive", trackerID, capacityUL)
	}
	racks := layout.ItemsWithPrefix(prefix, deck.KindTip96)
	if len(racks) != count {
		return nil, deck.NewConfigurationError(deck.CodeSlotNotFound,
			"tip tracker %s: layout has %d racks with prefix %q, protocol expects %d",
			trackerID, len(racks), prefix, count)
	}
	return &TrackedTips{
		trackerID:  trackerID,
		capacityUL: capacityUL,
		racks:      racks,
	}, nil
}

// TrackerID returns the tracker's identifier.
func (t *TrackedTips) TrackerID() string {
	return t.trackerID
}

// CapacityUL returns the rated volume per tip in microliters.
func (t *TrackedTips) CapacityUL() float64 {
	return t.capacityUL
}

// CheckVolume validates a requested per-tip volume against the rated
// capacity. A volume over capacity is a configuration error, detected
// before any device call is attempted.
func (t *TrackedTips) CheckVolume(volumeUL float64) error {
	if volumeUL > t.capacityUL {
		return deck.NewConfigurationError(deck.CodeVolumeExceeded,
			"tip tracker %s: requested %.1f uL exceeds tip capacity %.1f uL",
			t.trackerID, volumeUL, t.capacityUL)
	}
	return nil
}

// NextColumn consumes one 8-tip column for a transfer of the given
// per-tip volume and returns the position of the column's first tip.
// Advances to the next rack when the current one is spent.
func (t *TrackedTips) NextColumn(volumeUL float64) (deck.Position, error) {
	if err := t.CheckVolume(volumeUL); err != nil {
		return deck.Position{}, err
	}
	if t.rackIdx >= len(t.racks) {
		return deck.Position{}, &ResourceExhaustedError{
			TrackerID: t.trackerID,
			Resource:  "tip column",
			Count:     len(t.racks) * ColumnsPerRack,
		}
	}
	pos := deck.Position{
		Container: t.racks[t.rackIdx],
		Index:     t.colIdx * ChannelsPerColumn,
	}
	t.colIdx++
	if t.colIdx >= ColumnsPerRack {
		t.colIdx = 0
		t.rackIdx++
	}
	return pos, nil
}

// NextRack consumes a whole rack for a 96-channel pickup and returns
// its container. A partially consumed rack is skipped; 96-channel
// pickups need a full rack.
func (t *TrackedTips) NextRack(volumeUL float64) (*deck.Container, error) {
	if err := t.CheckVolume(volumeUL); err != nil {
		return nil, err
	}
	if t.colIdx != 0 {
		t.colIdx = 0
		t.rackIdx++
	}
	if t.rackIdx >= len(t.racks) {
		return nil, &ResourceExhaustedError{
			TrackerID: t.trackerID,
			Resource:  "full tip rack",
			Count:     len(t.racks),
		}
	}
	rack := t.racks[t.rackIdx]
	t.rackIdx++
	return rack, nil
}

// ColumnsRemaining returns the number of unconsumed columns across all
// racks.
func (t *TrackedTips) ColumnsRemaining() int {
	if t.rackIdx >= len(t.racks) {
		return 0
	}
	full := (len(t.racks) - t.rackIdx - 1) * ColumnsPerRack
	return full + (ColumnsPerRack - t.colIdx)
}

// ResetAll marks the tracker as if no tips have been consumed. Logical
// only: it does not verify that fresh racks are physically present.
func (t *TrackedTips) ResetAll() {
	t.rackIdx = 0
	t.colIdx = 0
}
