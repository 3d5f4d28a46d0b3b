package deck

import "fmt"

// Kind identifies a container geometry. The set mirrors the labware
// the protocols actually place on deck.
type Kind string

const (
	// KindPlate96 is a 96-well PCR or deep-well plate.
	KindPlate96 Kind = "plate96"

	// KindTip96 is a 96-position disposable tip rack (12 columns of 8).
	KindTip96 Kind = "tip96"

	// KindLid is a plate lid (single handle, no wells).
	KindLid Kind = "lid"

	// KindWaste96 is a 96-position waste block.
	KindWaste96 Kind = "waste96"

	// KindTrough8 is an 8-position reagent trough.
	KindTrough8 Kind = "trough8"

	// KindEppiCarrier32 is a 32-position Eppendorf tube carrier.
	KindEppiCarrier32 Kind = "eppi_carrier32"

	// KindFalconCarrier24 is a 24-position Falcon tube carrier.
	KindFalconCarrier24 Kind = "falcon_carrier24"

	// KindReservoir60 is a 60 mL reservoir with 8 access positions.
	KindReservoir60 Kind = "reservoir60"

	// KindBulkReservoir is a bulk reservoir (e.g. ethanol) with
	// 8-channel access.
	KindBulkReservoir Kind = "bulk_reservoir"
)

// positionCounts maps each kind to its valid well-index range [0, n).
var positionCounts = map[Kind]int{
	KindPlate96:         96,
	KindTip96:           96,
	KindLid:             1,
	KindWaste96:         96,
	KindTrough8:         8,
	KindEppiCarrier32:   32,
	KindFalconCarrier24: 24,
	KindReservoir60:     8,
	KindBulkReservoir:   8,
}

// Valid reports whether k is a known container kind.
func (k Kind) Valid() bool {
	_, ok := positionCounts[k]
	return ok
}

// Positions returns the number of addressable positions for the kind.
// Unknown kinds return 0.
func (k Kind) Positions() int {
	return positionCounts[k]
}

// ParseKind converts a layout-file string into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown container kind %q", s)
	}
	return k, nil
}
