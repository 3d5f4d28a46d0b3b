package instrument

import (
	"context"
	"fmt"
	"strings"
	"time"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/resources"
	"prepdeck/internal/trace"
)

// Simulator is the dry-run controller. It performs the same argument
// validation and consumable accounting a live run would, records every
// call as a trace event, and touches no hardware.
//
// Not safe for concurrent use; a run has one logical thread of
// control.
type Simulator struct {
	recorder *trace.Recorder
	ledger   *consumables.Ledger
	vessels  map[string]*resources.ReagentTracked

	initialized bool
	cpacTarget  map[[2]int]float64 // (controller, device) -> target temp
	odtcNext    int                // next device id to hand out
	failHHS     map[int]bool       // nodes whose bring-up should fail
}

// NewSimulator creates a simulator recording into the given recorder
// and ledger.
func NewSimulator(rec *trace.Recorder, ledger *consumables.Ledger) *Simulator {
	return &Simulator{
		recorder:   rec,
		ledger:     ledger,
		vessels:    make(map[string]*resources.ReagentTracked),
		cpacTarget: make(map[[2]int]float64),
		failHHS:    make(map[int]bool),
	}
}

// RegisterVessel makes a reagent-tracked container known to the
// simulator so aspirates from it are attributed to the right reagent
// in the ledger.
func (s *Simulator) RegisterVessel(v *resources.ReagentTracked) {
	s.vessels[v.Container().Name] = v
}

// FailHHSNode makes bring-up of the given heater-shaker node fail.
// Test hook for exercising partial device availability.
func (s *Simulator) FailHHSNode(node int) {
	s.failHHS[node] = true
}

// Recorder exposes the trace recorder for snapshotting after a run.
func (s *Simulator) Recorder() *trace.Recorder {
	return s.recorder
}

func (s *Simulator) Initialize(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.initialized = true
	s.recorder.Record("initialize", "", nil)
	return nil
}

func (s *Simulator) Close() error {
	s.initialized = false
	return nil
}

// columnsFor returns the tip columns an 8-channel operation over n
// positions consumes.
func columnsFor(n int) int {
	return (n + resources.ChannelsPerColumn - 1) / resources.ChannelsPerColumn
}

// maxVolume returns the largest per-position volume, the figure
// checked against tip capacity.
func maxVolume(volumesUL []float64) float64 {
	var m float64
	for _, v := range volumesUL {
		if v > m {
			m = v
		}
	}
	return m
}

// cyclePositions spreads n draws over a container's addressable
// positions, wrapping when the container is smaller than the sample
// count (8-position reservoirs feeding 96 wells).
func cyclePositions(c *deck.Container, n int) []deck.Position {
	k := c.Kind.Positions()
	if k < 1 {
		k = 1
	}
	out := make([]deck.Position, n)
	for i := range out {
		out[i] = deck.Position{Container: c, Index: i % k}
	}
	return out
}

// recordAspirates attributes withdrawals to reagents via the
// registered vessels. Sources cycle when there are fewer source
// positions than dispense volumes (bulk 8-position reservoirs feeding
// 96 wells).
func (s *Simulator) recordAspirates(src []deck.Position, volumesUL []float64) {
	for i, vol := range volumesUL {
		pos := src[i%len(src)]
		if vessel, ok := s.vessels[pos.Container.Name]; ok {
			s.ledger.TrackedAspirate(vessel, []deck.Position{pos}, []float64{vol})
		}
	}
}

// consumeColumns draws tip columns for an 8-channel batch run,
// validating the requested volume first so a configuration error
// surfaces before any device call would be issued.
func consumeColumns(tips *resources.TrackedTips, n int, volumeUL float64) error {
	if err := tips.CheckVolume(volumeUL); err != nil {
		return err
	}
	for i := 0; i < columnsFor(n); i++ {
		if _, err := tips.NextColumn(volumeUL); err != nil {
			return err
		}
	}
	return nil
}

// supportRack reuses the rack parked on the tip support, drawing a
// fresh full rack from the tracker when the support is empty or holds
// a rack from a different tracker.
func supportRack(tips *resources.TrackedTips, support *resources.TipSupportTracker, volumeUL float64) (*deck.Container, error) {
	if rack := support.SourceRack(); rack != nil {
		if strings.HasPrefix(rack.Name, tips.TrackerID()) {
			if err := tips.CheckVolume(volumeUL); err != nil {
				return nil, err
			}
			return rack, nil
		}
		if _, err := support.Retrieve(); err != nil {
			return nil, err
		}
	}
	rack, err := tips.NextRack(volumeUL)
	if err != nil {
		return nil, err
	}
	if err := support.Park(rack); err != nil {
		return nil, err
	}
	return rack, nil
}

func (s *Simulator) PipTransfer(ctx context.Context, tips *resources.TrackedTips, src, dst []deck.Position, volumesUL []float64, p PipetteParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(src) == 0 || len(dst) == 0 {
		return deck.NewConfigurationError(deck.CodeEmptyAssignment, "pip_transfer: empty position list")
	}
	if len(volumesUL) != len(dst) {
		return deck.NewConfigurationError(deck.CodeIndexOutOfRange,
			"pip_transfer: %d volumes for %d dispense positions", len(volumesUL), len(dst))
	}
	if err := consumeColumns(tips, len(dst), maxVolume(volumesUL)); err != nil {
		return err
	}
	s.recordAspirates(src, volumesUL)
	s.recorder.Record("pip_transfer", dst[0].Container.Name, map[string]any{
		"source":       src[0].Container.Name,
		"count":        len(dst),
		"volume":       volumesUL[0],
		"liquid_class": p.LiquidClass,
	})
	return nil
}

func (s *Simulator) MultiDispense(ctx context.Context, tips *resources.TrackedTips, src, dst []deck.Position, volumesUL []float64, p PipetteParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(src) == 0 || len(dst) == 0 {
		return deck.NewConfigurationError(deck.CodeEmptyAssignment, "multi_dispense: empty position list")
	}
	if len(volumesUL) != len(dst) {
		return deck.NewConfigurationError(deck.CodeIndexOutOfRange,
			"multi_dispense: %d volumes for %d dispense positions", len(volumesUL), len(dst))
	}
	// One aspirate batch feeds all dispenses: a single column suffices.
	if err := consumeColumns(tips, resources.ChannelsPerColumn, maxVolume(volumesUL)); err != nil {
		return err
	}
	s.recordAspirates(src, volumesUL)
	s.recorder.Record("multi_dispense", dst[0].Container.Name, map[string]any{
		"source": src[0].Container.Name,
		"count":  len(dst),
		"volume": volumesUL[0],
	})
	return nil
}

func (s *Simulator) PipPool(ctx context.Context, tips *resources.TrackedTips, src, pool []deck.Position, volumesUL []float64, p PipetteParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(src) == 0 || len(pool) == 0 {
		return deck.NewConfigurationError(deck.CodeEmptyAssignment, "pip_pool: empty position list")
	}
	if len(volumesUL) != len(src) {
		return deck.NewConfigurationError(deck.CodeIndexOutOfRange,
			"pip_pool: %d volumes for %d source positions", len(volumesUL), len(src))
	}
	if err := consumeColumns(tips, len(src), maxVolume(volumesUL)); err != nil {
		return err
	}
	s.recordAspirates(src, volumesUL)
	s.recorder.Record("pip_pool", pool[0].Container.Name, map[string]any{
		"source": src[0].Container.Name,
		"count":  len(src),
	})
	return nil
}

func (s *Simulator) PipMix(ctx context.Context, tips *resources.TrackedTips, positions []deck.Position, mixVolumeUL float64, cycles int, p PipetteParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(positions) == 0 {
		return deck.NewConfigurationError(deck.CodeEmptyAssignment, "pip_mix: empty position list")
	}
	if err := consumeColumns(tips, len(positions), mixVolumeUL); err != nil {
		return err
	}
	s.recorder.Record("pip_mix", positions[0].Container.Name, map[string]any{
		"count":  len(positions),
		"volume": mixVolumeUL,
		"cycles": cycles,
	})
	return nil
}

func (s *Simulator) Transfer96(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, src, dst *deck.Container, volumeUL float64, p PipetteParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := supportRack(tips, support, volumeUL); err != nil {
		return err
	}
	if vessel, ok := s.vessels[src.Name]; ok {
		s.ledger.TrackedAspirate(vessel, cyclePositions(src, samples), fill(samples, volumeUL))
	}
	s.recorder.Record("transfer_96", dst.Name, map[string]any{
		"source":  src.Name,
		"samples": samples,
		"volume":  volumeUL,
	})
	return nil
}

func (s *Simulator) MixPlate(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, plate *deck.Container, mixVolumeUL float64, cycles int, p PipetteParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := supportRack(tips, support, mixVolumeUL); err != nil {
		return err
	}
	s.recorder.Record("mix_plate", plate.Name, map[string]any{
		"samples": samples,
		"volume":  mixVolumeUL,
		"cycles":  cycles,
	})
	return nil
}

func (s *Simulator) DoubleAspirateSupernatant96(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, magnet, waste *deck.Container, firstVolUL, secondVolUL float64, p PipetteParams, firstAspHeight float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := supportRack(tips, support, firstVolUL); err != nil {
		return err
	}
	s.recorder.Record("double_aspirate_supernatant_96", magnet.Name, map[string]any{
		"waste":         waste.Name,
		"samples":       samples,
		"first_volume":  firstVolUL,
		"second_volume": secondVolUL,
	})
	return nil
}

func (s *Simulator) EthanolWash(ctx context.Context, tips *resources.TrackedTips, support *resources.TipSupportTracker, samples int, reservoir, magnet, waste *deck.Container, washVolUL, firstRemovalUL, secondRemovalUL float64, p PipetteParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := supportRack(tips, support, washVolUL); err != nil {
		return err
	}
	if vessel, ok := s.vessels[reservoir.Name]; ok {
		s.ledger.TrackedAspirate(vessel, cyclePositions(reservoir, samples), fill(samples, washVolUL))
	}
	s.recorder.Record("ethanol_wash", magnet.Name, map[string]any{
		"reservoir":   reservoir.Name,
		"waste":       waste.Name,
		"samples":     samples,
		"wash_volume": washVolUL,
	})
	return nil
}

func (s *Simulator) TransportResource(ctx context.Context, src, dst *deck.Container, opts TransportOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	gripper := "core"
	if opts.UseISWAP {
		gripper = "iswap"
	}
	s.recorder.Record("transport", dst.Name, map[string]any{
		"source":   src.Name,
		"resource": string(opts.Resource),
		"gripper":  gripper,
	})
	return nil
}

func (s *Simulator) HHSCreateDevice(ctx context.Context, node int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.failHHS[node] {
		return fmt.Errorf("hhs node %d: no response on USB", node)
	}
	s.recorder.Record("hhs_create_device", "", map[string]any{"node": node})
	return nil
}

func (s *Simulator) HHSStartShaker(ctx context.Context, node, rpm int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("hhs_start_shaker", "", map[string]any{"node": node, "rpm": rpm})
	return nil
}

func (s *Simulator) HHSStopShaker(ctx context.Context, node int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("hhs_stop_shaker", "", map[string]any{"node": node})
	return nil
}

func (s *Simulator) HHSStartTempCtrl(ctx context.Context, node int, tempC float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("hhs_start_temp_ctrl", "", map[string]any{"node": node, "temp": tempC})
	return nil
}

func (s *Simulator) HHSStopTempCtrl(ctx context.Context, node int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("hhs_stop_temp_ctrl", "", map[string]any{"node": node})
	return nil
}

func (s *Simulator) CPACInitialize(ctx context.Context, controllerID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("cpac_initialize", "", map[string]any{"controller": controllerID})
	return nil
}

func (s *Simulator) CPACSetTargetTemp(ctx context.Context, controllerID, deviceID int, tempC float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cpacTarget[[2]int{controllerID, deviceID}] = tempC
	s.recorder.Record("cpac_set_target_temp", "", map[string]any{
		"controller": controllerID,
		"device":     deviceID,
		"temp":       tempC,
	})
	return nil
}

func (s *Simulator) CPACStartTempControl(ctx context.Context, controllerID, deviceID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("cpac_start_temp_control", "", map[string]any{
		"controller": controllerID,
		"device":     deviceID,
	})
	return nil
}

// CPACTemperature reports the target temperature as reached; the
// simulator has no thermal mass.
func (s *Simulator) CPACTemperature(ctx context.Context, controllerID, deviceID int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.cpacTarget[[2]int{controllerID, deviceID}], nil
}

func (s *Simulator) ODTCConnect(ctx context.Context, cfg ODTCConfig) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.odtcNext++
	s.recorder.Record("odtc_connect", "", map[string]any{"device": s.odtcNext})
	return s.odtcNext, nil
}

func (s *Simulator) ODTCInitialize(ctx context.Context, deviceID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("odtc_initialize", "", map[string]any{"device": deviceID})
	return nil
}

func (s *Simulator) ODTCOpenDoor(ctx context.Context, deviceID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("odtc_open_door", "", map[string]any{"device": deviceID})
	return nil
}

func (s *Simulator) ODTCCloseDoor(ctx context.Context, deviceID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("odtc_close_door", "", map[string]any{"device": deviceID})
	return nil
}

func (s *Simulator) ODTCExecuteMethod(ctx context.Context, deviceID int, methodName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("odtc_execute", "", map[string]any{
		"device": deviceID,
		"method": methodName,
	})
	return nil
}

func (s *Simulator) ODTCWaitForIdle(ctx context.Context, deviceID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.recorder.Record("odtc_wait_for_idle", "", map[string]any{"device": deviceID})
	return nil
}

// StartTimer returns a timer that records its wait instead of
// sleeping. Simulated runs never block on wall-clock time.
func (s *Simulator) StartTimer(d time.Duration) Timer {
	return &simTimer{sim: s, d: d}
}

type simTimer struct {
	sim *Simulator
	d   time.Duration
}

func (t *simTimer) Wait(skip bool) {
	t.sim.recorder.Record("timer_wait", "", map[string]any{
		"seconds": int(t.d / time.Second),
		"skip":    skip,
	})
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var _ Controller = (*Simulator)(nil)
