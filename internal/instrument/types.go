package instrument

// GripDirection is the approach direction for a gripper transport.
type GripDirection string

const (
	GripLeft  GripDirection = "left"
	GripRight GripDirection = "right"
	GripFront GripDirection = "front"
	GripBack  GripDirection = "back"
)

// GrippedResource tells the transport layer what geometry it is
// holding, which selects grip force and height profiles.
type GrippedResource string

const (
	GripPCR     GrippedResource = "pcr"
	GripMIDI    GrippedResource = "midi"
	GripLid     GrippedResource = "lid"
	GripTipRack GrippedResource = "tip_rack"
)

// TransportOptions selects gripper and approach for one plate move.
type TransportOptions struct {
	Direction   GripDirection
	Resource    GrippedResource
	UseISWAP    bool // internal swivel arm; false selects the CO-RE gripper
	GripHeight  float64
}

// PipetteParams carries the per-call pipetting settings every liquid
// transfer needs.
type PipetteParams struct {
	LiquidClass      string
	AspirationHeight float64 // mm above well bottom
	DispenseHeight   float64 // mm above well bottom
}

// ODTCConfig is the connection configuration for the thermal cycler.
type ODTCConfig struct {
	LocalIP    string
	DeviceIP   string
	DevicePort string
	Simulation bool
}
