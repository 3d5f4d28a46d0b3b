// Package lsk109 implements Oxford Nanopore LSK109 library prep: end
// prep, bead cleanup, adapter ligation and a final cleanup, with the
// end-prep incubation on the thermal cycler.
package lsk109

import (
	"context"
	"fmt"
	"time"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/instrument"
	"prepdeck/internal/protocol"
	"prepdeck/internal/resources"
)

const (
	lcStandardVolume = "StandardVolumeFilter_Water_DispenseSurface_Empty"
	lc50ulFilter     = "Tip_50ulFilter_Water_DispenseSurface_Empty"

	endPrepMethodName = "LSK109_EndPrep"
)

// Per-sample reaction volumes in microliters.
const (
	endPrepMixUL     = 7.5
	ligationMixUL    = 20
	adapterMixUL     = 5
	ethanolWashUL    = 200
	fragmentBufferUL = 60
	elutionUL        = 15
)

// Protocol holds the deck trackers for one run. Setup populates them;
// a value serves one run at a time.
type Protocol struct {
	// reagent vessels
	cpacReagents   *resources.ReagentTracked
	vials          *resources.ReagentTracked
	beadReservoir  *resources.ReagentTracked
	fbReservoir    *resources.ReagentTracked
	waterReservoir *resources.ReagentTracked
	ethanol        *resources.ReagentTracked

	// claimed reagent positions
	endPrepMixPos    []deck.Position
	ligationMixPos   []deck.Position
	adapterMixPos    []deck.Position
	elutionBufferPos []deck.Position
	beadPos          []deck.Position
	waterPos         []deck.Position

	// stacks and tips
	hspStack  *resources.StackedResources
	midiStack *resources.StackedResources
	lidStack  *resources.StackedResources
	tips50    *resources.TrackedTips
	tips300   *resources.TrackedTips
	support   *resources.TipSupportTracker

	// working positions
	hspPipette   *deck.Container
	hspPipette2  *deck.Container
	hspWaste     *deck.Container
	hspODTC      *deck.Container
	odtcLid      *deck.Container
	midiPipette  *deck.Container
	midiOnMagnet *deck.Container
	midiWaste    *deck.Container

	odtcDevice int
}

func New() *Protocol { return &Protocol{} }

func init() {
	protocol.Default.Register(New())
}

func (p *Protocol) Name() string { return "lsk109" }

func (p *Protocol) Description() string {
	return "Oxford Nanopore LSK109 library preparation"
}

// DefaultLayout is the deck this protocol was validated on.
func (p *Protocol) DefaultLayout() (*deck.Layout, error) {
	slots := map[string]deck.Kind{
		"HSP_Pipette":         deck.KindPlate96,
		"HSP_Pipette2":        deck.KindPlate96,
		"HSP_Waste":           deck.KindWaste96,
		"HSP_ODTC":            deck.KindPlate96,
		"Ham_ComfortLid_ODTC": deck.KindLid,

		"MIDI_Pipette":  deck.KindPlate96,
		"MIDI_OnMagnet": deck.KindPlate96,
		"MIDI_Waste":    deck.KindWaste96,
		"HHS5_MIDI":     deck.KindPlate96,

		"CPAC_Adapter":      deck.KindPlate96,
		"CAR_VIALS_SMALL":   deck.KindEppiCarrier32,
		"RGT_01":            deck.KindReservoir60,
		"RGT_02":            deck.KindReservoir60,
		"RGT_03":            deck.KindReservoir60,
		"Ethanol_Reservoir": deck.KindBulkReservoir,

		"TipSupport_0001": deck.KindTip96,
	}
	addStack(slots, "BioRadHardshell_Stack1", deck.KindPlate96, 4)
	addStack(slots, "ABGENE_MIDI_Stack1", deck.KindPlate96, 3)
	addStack(slots, "Ham_ComfortLid_Stack_ParkPos", deck.KindLid, 4)
	addStack(slots, "TIP_50ulF_L", deck.KindTip96, 8)
	addStack(slots, "STF_L", deck.KindTip96, 8)
	return deck.NewLayout("LSK109_v0.9.2", slots)
}

func addStack(slots map[string]deck.Kind, prefix string, kind deck.Kind, count int) {
	for i := 1; i <= count; i++ {
		slots[fmt.Sprintf("%s_%04d", prefix, i)] = kind
	}
}

// Requirements lists consumables for the pre-flight summary. Beads
// and ethanol serve three cleanups, fragment buffer two washes.
func (p *Protocol) Requirements(params protocol.Params) []consumables.Requirement {
	s := params.Samples
	return []consumables.Requirement{
		{Reagent: "EndPrepMix", PerSampleUL: endPrepMixUL, Samples: s},
		{Reagent: "AdapterLigationMix", PerSampleUL: ligationMixUL, Samples: s},
		{Reagent: "AdapterMix", PerSampleUL: adapterMixUL, Samples: s},
		{Reagent: "AMPureBeads", PerSampleUL: params.SampleVolumeUL, Samples: s, Repeats: 3},
		{Reagent: "Ethanol80", PerSampleUL: ethanolWashUL, Samples: s, Repeats: 3},
		{Reagent: "FragmentBuffer", PerSampleUL: fragmentBufferUL, Samples: s, Repeats: 2},
		{Reagent: "NucleaseFreeWater", PerSampleUL: elutionUL, Samples: s},
		{Reagent: "ElutionBuffer", PerSampleUL: elutionUL, Samples: s},
	}
}

// Setup resolves working positions, claims reagent wells and builds
// the stack and tip trackers against the run's layout.
func (p *Protocol) Setup(r *protocol.Run) error {
	l := r.Layout
	var err error

	if p.hspPipette, err = l.Item("HSP_Pipette", deck.KindPlate96); err != nil {
		return err
	}
	if p.hspPipette2, err = l.Item("HSP_Pipette2", deck.KindPlate96); err != nil {
		return err
	}
	if p.hspWaste, err = l.Item("HSP_Waste", deck.KindWaste96); err != nil {
		return err
	}
	if p.hspODTC, err = l.Item("HSP_ODTC", deck.KindPlate96); err != nil {
		return err
	}
	if p.odtcLid, err = l.Item("Ham_ComfortLid_ODTC", deck.KindLid); err != nil {
		return err
	}
	if p.midiPipette, err = l.Item("MIDI_Pipette", deck.KindPlate96); err != nil {
		return err
	}
	if p.midiOnMagnet, err = l.Item("MIDI_OnMagnet", deck.KindPlate96); err != nil {
		return err
	}
	if p.midiWaste, err = l.Item("MIDI_Waste", deck.KindWaste96); err != nil {
		return err
	}

	cpac, err := l.Item("CPAC_Adapter", deck.KindPlate96)
	if err != nil {
		return err
	}
	p.cpacReagents = resources.NewReagentTracked(cpac)
	if p.endPrepMixPos, err = p.cpacReagents.AssignReagentMap("EndPrepMix", []int{0}); err != nil {
		return err
	}
	if p.ligationMixPos, err = p.cpacReagents.AssignReagentMap("AdapterLigationMix", []int{1}); err != nil {
		return err
	}

	vials, err := l.Item("CAR_VIALS_SMALL", deck.KindEppiCarrier32)
	if err != nil {
		return err
	}
	p.vials = resources.NewReagentTracked(vials)
	if p.adapterMixPos, err = p.vials.AssignReagentMap("AdapterMix", []int{0}); err != nil {
		return err
	}
	if p.elutionBufferPos, err = p.vials.AssignReagentMap("ElutionBuffer", []int{1}); err != nil {
		return err
	}

	if p.beadReservoir, p.beadPos, err = bulkReservoir(l, "RGT_01", "AMPureBeads"); err != nil {
		return err
	}
	if p.fbReservoir, _, err = bulkReservoir(l, "RGT_02", "FragmentBuffer"); err != nil {
		return err
	}
	if p.waterReservoir, p.waterPos, err = bulkReservoir(l, "RGT_03", "NucleaseFreeWater"); err != nil {
		return err
	}

	ethanol, err := l.Item("Ethanol_Reservoir", deck.KindBulkReservoir)
	if err != nil {
		return err
	}
	p.ethanol = resources.NewReagentTracked(ethanol)
	if _, err = p.ethanol.AssignReagentMap("Ethanol80", seq(deck.KindBulkReservoir.Positions())); err != nil {
		return err
	}

	if p.hspStack, err = resources.FromPrefix("BioRadHardshell_Stack1", "BioRadHardshell_Stack1", 4, deck.KindPlate96, l); err != nil {
		return err
	}
	if p.midiStack, err = resources.FromPrefix("ABGENE_MIDI_Stack1", "ABGENE_MIDI_Stack1", 3, deck.KindPlate96, l); err != nil {
		return err
	}
	if p.lidStack, err = resources.FromPrefix("Ham_ComfortLid_Stack_ParkPos", "Ham_ComfortLid_Stack_ParkPos", 4, deck.KindLid, l); err != nil {
		return err
	}
	if p.tips50, err = resources.TipsFromPrefix("TIP_50ulF_L", "TIP_50ulF_L", 50, 8, l); err != nil {
		return err
	}
	if p.tips300, err = resources.TipsFromPrefix("STF_L", "STF_L", 300, 8, l); err != nil {
		return err
	}
	supportItem, err := l.Item("TipSupport_0001", deck.KindTip96)
	if err != nil {
		return err
	}
	p.support = resources.NewTipSupportTracker(supportItem)

	if reg, ok := r.Ctrl.(instrument.VesselRegistrar); ok {
		for _, v := range p.vessels() {
			reg.RegisterVessel(v)
		}
	}
	return nil
}

func (p *Protocol) vessels() []*resources.ReagentTracked {
	return []*resources.ReagentTracked{
		p.cpacReagents, p.vials, p.beadReservoir, p.fbReservoir, p.waterReservoir, p.ethanol,
	}
}

func bulkReservoir(l *deck.Layout, slot, reagent string) (*resources.ReagentTracked, []deck.Position, error) {
	c, err := l.Item(slot, deck.KindReservoir60)
	if err != nil {
		return nil, nil, err
	}
	rt := resources.NewReagentTracked(c)
	pos, err := rt.AssignReagentMap(reagent, seq(8))
	if err != nil {
		return nil, nil, err
	}
	return rt, pos, nil
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func (p *Protocol) Steps() []protocol.Step {
	return []protocol.Step{
		{ID: "initialize", Title: "Initialize System", Run: p.initialize},
		{ID: "cdna_end_prep", Title: "cDNA End Prep", Run: p.cdnaEndPrep},
		{ID: "end_prep_cleanup", Title: "End Prep Cleanup", Run: p.endPrepCleanup},
		{ID: "adapter_ligation", Title: "Adapter Ligation", Run: p.adapterLigation},
		{ID: "adapter_ligation_cleanup", Title: "Adapter Ligation Cleanup", Run: p.adapterLigationCleanup},
	}
}

// initialize brings up the instrument and peripherals. Heater-shaker
// nodes come up best effort; the report is logged and the run
// continues with whatever responded.
func (p *Protocol) initialize(ctx context.Context, r *protocol.Run) error {
	if err := r.Ctrl.Initialize(ctx); err != nil {
		return err
	}

	report := instrument.BringUpHeaterShakers(ctx, r.Ctrl, []int{1, 2, 3, 4, 5})
	for _, res := range report.Failed() {
		r.Log.Warn("heater-shaker unavailable", "node", res.Node, "error", res.Err)
	}

	if err := r.Ctrl.CPACInitialize(ctx, 1); err != nil {
		return err
	}
	if err := r.Ctrl.CPACSetTargetTemp(ctx, 1, 1, 4.0); err != nil {
		return err
	}
	if err := r.Ctrl.CPACStartTempControl(ctx, 1, 1); err != nil {
		return err
	}

	device, err := r.Ctrl.ODTCConnect(ctx, instrument.ODTCConfig{
		LocalIP:    "1.2.3.4",
		DeviceIP:   "5.6.7.8",
		DevicePort: "COM4",
		Simulation: r.Params.DeviceSimulation,
	})
	if err != nil {
		return err
	}
	p.odtcDevice = device
	return r.Ctrl.ODTCInitialize(ctx, device)
}

// cdnaEndPrep adds end-prep master mix to the samples, mixes, and
// incubates the plate on the thermal cycler under a lid.
func (p *Protocol) cdnaEndPrep(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.PipTransfer(ctx, p.tips300, p.endPrepMixPos, deck.Range(p.hspPipette, n),
		volumes(n, endPrepMixUL), instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPipette, 25, 5,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	if err := ctrl.ODTCOpenDoor(ctx, p.odtcDevice); err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hspPipette, p.hspODTC, instrument.TransportOptions{
		Direction: instrument.GripRight, Resource: instrument.GripPCR, UseISWAP: true,
	})
	if err != nil {
		return err
	}
	lid, err := p.lidStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, lid, p.odtcLid, instrument.TransportOptions{
		Direction: instrument.GripRight, Resource: instrument.GripLid, UseISWAP: true,
	})
	if err != nil {
		return err
	}
	if err := ctrl.ODTCCloseDoor(ctx, p.odtcDevice); err != nil {
		return err
	}

	if err := ctrl.ODTCExecuteMethod(ctx, p.odtcDevice, endPrepMethodName); err != nil {
		return err
	}
	if err := ctrl.ODTCWaitForIdle(ctx, p.odtcDevice); err != nil {
		return err
	}
	if err := ctrl.ODTCOpenDoor(ctx, p.odtcDevice); err != nil {
		return err
	}

	park, err := p.lidStack.PutBack()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.odtcLid, park, instrument.TransportOptions{
		Direction: instrument.GripRight, Resource: instrument.GripLid, UseISWAP: true,
	})
	if err != nil {
		return err
	}
	return ctrl.TransportResource(ctx, p.hspODTC, p.hspPipette2, instrument.TransportOptions{
		Direction: instrument.GripRight, Resource: instrument.GripPCR, UseISWAP: true,
	})
}

// endPrepCleanup is the first bead cleanup: bind, wash twice with
// ethanol, dry, elute in water, and recover the eluate onto a fresh
// plate.
func (p *Protocol) endPrepCleanup(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	beadVolume := r.Params.SampleVolumeUL

	midi, err := p.midiStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, midi, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips50, p.beadPos, deck.Range(p.midiPipette, n),
		volumes(n, beadVolume), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPipette2, p.midiPipette,
		r.Params.SampleVolumeUL+endPrepMixUL, instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspPipette2, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.midiPipette, 50, 5,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(r.Params.DeviceSimulation)

	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(r.Params.DeviceSimulation)

	firstRemoval := r.Params.SampleVolumeUL + beadVolume
	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.midiOnMagnet, p.midiWaste, firstRemoval, 20,
		instrument.PipetteParams{LiquidClass: lcStandardVolume}, 0.5)
	if err != nil {
		return err
	}

	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.midiOnMagnet, p.midiWaste,
			ethanolWashUL, ethanolWashUL+20, 30,
			instrument.PipetteParams{LiquidClass: lcStandardVolume})
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(2 * time.Minute).Wait(r.Params.DeviceSimulation)

	hsp, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, hsp, p.hspPipette, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips50, p.waterPos, deck.Range(p.midiOnMagnet, n),
		volumes(n, elutionUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiOnMagnet, 12, 5,
		instrument.PipetteParams{LiquidClass: lcStandardVolume})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(r.Params.DeviceSimulation)

	// Leave 2 uL behind to avoid carrying beads.
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.hspPipette,
		elutionUL-2, instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 3,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	return ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiWaste, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
}

// adapterLigation adds ligation master mix and adapter mix, mixes,
// and incubates at room temperature.
func (p *Protocol) adapterLigation(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	hsp := deck.Range(p.hspPipette, n)

	err := ctrl.PipTransfer(ctx, p.tips300, p.ligationMixPos, hsp,
		volumes(n, ligationMixUL), instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips300, p.adapterMixPos, hsp,
		volumes(n, adapterMixUL), instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.hspPipette, 30, 5,
		instrument.PipetteParams{LiquidClass: lcStandardVolume})
	if err != nil {
		return err
	}

	ctrl.StartTimer(10 * time.Minute).Wait(r.Params.DeviceSimulation)
	return nil
}

// adapterLigationCleanup is the final cleanup: bind to beads, two
// fragment-buffer washes, dry, elute in elution buffer and collect
// the libraries on a fresh plate.
func (p *Protocol) adapterLigationCleanup(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	beadVolume := r.Params.SampleVolumeUL

	midi, err := p.midiStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, midi, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips300, p.beadPos, deck.Range(p.midiPipette, n),
		volumes(n, beadVolume), instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	ligationVolume := elutionUL - 2 + ligationMixUL + adapterMixUL
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPipette, p.midiPipette,
		float64(ligationVolume), instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspPipette, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 50, 5,
		instrument.PipetteParams{LiquidClass: lcStandardVolume})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(r.Params.DeviceSimulation)

	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(r.Params.DeviceSimulation)

	removal := r.Params.SampleVolumeUL + beadVolume + 10
	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.midiOnMagnet, p.midiWaste, removal, 30,
		instrument.PipetteParams{LiquidClass: lcStandardVolume}, 0.5)
	if err != nil {
		return err
	}

	// Fragment buffer replaces ethanol for the LSK109 washes.
	for wash := 0; wash < 2; wash++ {
		err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.fbReservoir.Container(),
			p.midiOnMagnet, fragmentBufferUL, instrument.PipetteParams{
				LiquidClass:      lcStandardVolume,
				AspirationHeight: 1,
				DispenseHeight:   1,
			})
		if err != nil {
			return err
		}
		err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiOnMagnet, 40, 5,
			instrument.PipetteParams{LiquidClass: lcStandardVolume})
		if err != nil {
			return err
		}
		ctrl.StartTimer(2 * time.Minute).Wait(r.Params.DeviceSimulation)

		err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
			p.midiOnMagnet, p.midiWaste, fragmentBufferUL+20, 30,
			instrument.PipetteParams{LiquidClass: lcStandardVolume}, 0.5)
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(2 * time.Minute).Wait(r.Params.DeviceSimulation)

	hsp, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, hsp, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips300, p.elutionBufferPos, deck.Range(p.midiOnMagnet, n),
		volumes(n, elutionUL), instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiOnMagnet, 12, 5,
		instrument.PipetteParams{LiquidClass: lcStandardVolume})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(r.Params.DeviceSimulation)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.hspPipette2,
		elutionUL-2, instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 0.5,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	return ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
}

func volumes(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var _ protocol.Protocol = (*Protocol)(nil)
