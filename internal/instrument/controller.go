package instrument

import (
	"context"
	"time"

	"prepdeck/internal/deck"
	"prepdeck/internal/resources"
)

// Timer is a blocking wall-clock wait with a skip flag wired to
// device-simulation mode. Wait either blocks for the full duration or
// returns immediately; it is never asynchronous.
type Timer interface {
	Wait(skip bool)
}

// Controller is the automation command surface a protocol step issues
// calls against. All calls block until the operation completes and
// return explicit errors; ctx cancels a call between (not within)
// device commands.
//
// Position arguments are (container, well-index) tuples produced by
// the deck and resource trackers. Tip arguments are the trackers
// themselves so the controller can consume columns and enforce rated
// volumes before touching hardware.
type Controller interface {
	// Initialize brings up the instrument connection.
	Initialize(ctx context.Context) error
	// Close releases the instrument connection.
	Close() error

	// PipTransfer moves per-position volumes from source positions to
	// dispense positions with single-column tip pickup per 8-channel
	// batch.
	PipTransfer(ctx context.Context, tips *resources.TrackedTips, src, dst []deck.Position, volumesUL []float64, p PipetteParams) error

	// MultiDispense aspirates once and dispenses into many positions.
	MultiDispense(ctx context.Context, tips *resources.TrackedTips, src []deck.Position, dst []deck.Position, volumesUL []float64, p PipetteParams) error

	// PipPool aspirates from many positions and pools into few (e.g.
	// library pooling into a Falcon tube).
	PipPool(ctx context.Context, tips *resources.TrackedTips, src, pool []deck.Position, volumesUL []float64, p PipetteParams) error

	// PipMix mixes liquid in place at the given positions (e.g.
	// resuspending settled beads in a reservoir).
	PipMix(ctx context.Context, tips *resources.TrackedTips, positions []deck.Position, mixVolumeUL float64, cycles int, p PipetteParams) error

	// Transfer96 stamps the first n wells plate-to-plate with the
	// 96-channel head, reusing a rack parked on the tip support when
	// one is available.
	Transfer96(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, src, dst *deck.Container, volumeUL float64, p PipetteParams) error

	// MixPlate mixes the first n wells of a plate in place.
	MixPlate(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, plate *deck.Container, mixVolumeUL float64, cycles int, p PipetteParams) error

	// DoubleAspirateSupernatant96 removes supernatant in two passes
	// (bulk then residual) from a plate on the magnet into waste.
	DoubleAspirateSupernatant96(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, magnet, waste *deck.Container, firstVolUL, secondVolUL float64, p PipetteParams, firstAspHeight float64) error

	// EthanolWash adds wash volume from the reservoir, then removes it
	// in two passes, for one wash cycle on the magnet.
	EthanolWash(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, reservoir, magnet, waste *deck.Container, washVolUL, firstRemovalUL, secondRemovalUL float64, p PipetteParams) error

	// TransportResource moves labware between deck positions with the
	// selected gripper.
	TransportResource(ctx context.Context, src, dst *deck.Container, opts TransportOptions) error

	// Heater-shaker control, addressed by node number.
	HHSCreateDevice(ctx context.Context, node int) error
	HHSStartShaker(ctx context.Context, node, rpm int) error
	HHSStopShaker(ctx context.Context, node int) error
	HHSStartTempCtrl(ctx context.Context, node int, tempC float64) error
	HHSStopTempCtrl(ctx context.Context, node int) error

	// Cooled reagent carrier (CPAC) control.
	CPACInitialize(ctx context.Context, controllerID int) error
	CPACSetTargetTemp(ctx context.Context, controllerID, deviceID int, tempC float64) error
	CPACStartTempControl(ctx context.Context, controllerID, deviceID int) error
	CPACTemperature(ctx context.Context, controllerID, deviceID int) (float64, error)

	// Thermal cycler (ODTC) control.
	ODTCConnect(ctx context.Context, cfg ODTCConfig) (deviceID int, err error)
	ODTCInitialize(ctx context.Context, deviceID int) error
	ODTCOpenDoor(ctx context.Context, deviceID int) error
	ODTCCloseDoor(ctx context.Context, deviceID int) error
	ODTCExecuteMethod(ctx context.Context, deviceID int, methodName string) error
	ODTCWaitForIdle(ctx context.Context, deviceID int) error

	// StartTimer begins a blocking wall-clock timer.
	StartTimer(d time.Duration) Timer
}

// VesselRegistrar is implemented by controllers that attribute
// aspirates to reagents, such as the simulator. Protocol setup
// registers its reagent-tracked containers through it when available.
type VesselRegistrar interface {
	RegisterVessel(v *resources.ReagentTracked)
}
