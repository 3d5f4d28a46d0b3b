// Package hyperplus implements KAPA HyperPlus library preparation:
// enzymatic fragmentation, end repair & A-tailing, adapter ligation,
// post-ligation bead cleanup, library amplification and a final
// size-selecting cleanup. All three thermal incubations run on the
// on-deck cycler; plates move with the CO-RE gripper.
package hyperplus

import (
	"context"
	"fmt"
	"time"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/instrument"
	"prepdeck/internal/odtc"
	"prepdeck/internal/protocol"
	"prepdeck/internal/resources"
)

const (
	lcStandardSurface = "StandardVolumeFilter_Water_DispenseSurface_Empty"
	lcStandardJet     = "StandardVolumeFilter_Water_DispenseJet_Empty"
	lc50ulFilter      = "Tip_50ulFilter_Water_DispenseSurface_Empty"
)

// Per-sample reaction volumes in microliters. Master mixes arrive
// pre-mixed (buffer plus enzyme combined before the run).
const (
	fragMasterMixUL  = 10.0
	endRepairMixUL   = 10.0
	ligationMixUL    = 20.0
	adapterUL        = 2.5
	pcrMixUL         = 25.0
	indexPrimerUL    = 5.0
	postLigBeadsUL   = 50.0 // 1.0x
	finalBeadsUL     = 45.0 // 0.9x, size selecting
	ethanolWashUL    = 200.0
	postLigElutionUL = 25.0
	finalElutionUL   = 22.0
)

// fragmentationTimeMin tunes the target insert size.
const fragmentationTimeMin = 15

// Protocol holds the deck trackers for one run. Setup populates them;
// a value serves one run at a time.
type Protocol struct {
	vials        *resources.ReagentTracked
	cpacReagents *resources.ReagentTracked
	ethanol      *resources.ReagentTracked
	beads        *resources.ReagentTracked

	fragMixPos   []deck.Position
	endRepairPos []deck.Position
	ligMixPos    []deck.Position
	adapterPos   []deck.Position
	waterPos     []deck.Position
	hifiMixPos   []deck.Position
	beadPos      []deck.Position

	lidStack *resources.StackedResources
	tips50   *resources.TrackedTips
	tips300  *resources.TrackedTips
	support  *resources.TipSupportTracker

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

func (p *Protocol) Name() string { return "hyperplus" }

func (p *Protocol) Description() string {
	return "KAPA HyperPlus library preparation"
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

		"SMP_CAR_24_15x75_A00_0001": deck.KindFalconCarrier24,
		"CPAC_HSP_0001":             deck.KindPlate96,
		"RGT_Ethanol":               deck.KindBulkReservoir,
		"rgt_cont_60ml_BC_A00_0002": deck.KindReservoir60,

		"TipSupport_0001": deck.KindTip96,
	}
	addStack(slots, "Ham_ComfortLid_Stack", deck.KindLid, 4)
	addStack(slots, "TIP_50uLF_L", deck.KindTip96, 8)
	addStack(slots, "STF_L", deck.KindTip96, 8)
	return deck.NewLayout("KAPA_HyperPlus_v1.1", slots)
}

func addStack(slots map[string]deck.Kind, prefix string, kind deck.Kind, count int) {
	for i := 1; i <= count; i++ {
		slots[fmt.Sprintf("%s_%04d", prefix, i)] = kind
	}
}

// Requirements lists consumables for the pre-flight summary. Water
// covers both elutions, beads both cleanups, ethanol four washes.
func (p *Protocol) Requirements(params protocol.Params) []consumables.Requirement {
	s := params.Samples
	return []consumables.Requirement{
		{Reagent: "FragmentationMasterMix", PerSampleUL: fragMasterMixUL, Samples: s},
		{Reagent: "EndRepairMasterMix", PerSampleUL: endRepairMixUL, Samples: s},
		{Reagent: "LigationMasterMix", PerSampleUL: ligationMixUL, Samples: s},
		{Reagent: "KAPA_Adapters", PerSampleUL: adapterUL, Samples: s},
		{Reagent: "NucleaseFreeWater", PerSampleUL: postLigElutionUL + finalElutionUL, Samples: s},
		{Reagent: "KAPA_HiFi_Mix", PerSampleUL: pcrMixUL, Samples: s},
		{Reagent: "KAPA_Pure_Beads", PerSampleUL: postLigBeadsUL + finalBeadsUL, Samples: s},
		{Reagent: "Ethanol80", PerSampleUL: 2 * ethanolWashUL, Samples: s, Repeats: 2},
	}
}

// Setup resolves working positions, claims reagent wells and builds
// the tip and lid trackers against the run's layout.
func (p *Protocol) Setup(r *protocol.Run) error {
	l := r.Layout

	for _, item := range []struct {
		name string
		kind deck.Kind
		dst  **deck.Container
	}{
		{"HSP_Pipette", deck.KindPlate96, &p.hspPipette},
		{"HSP_Pipette2", deck.KindPlate96, &p.hspPipette2},
		{"HSP_Waste", deck.KindWaste96, &p.hspWaste},
		{"HSP_ODTC", deck.KindPlate96, &p.hspODTC},
		{"Ham_ComfortLid_ODTC", deck.KindLid, &p.odtcLid},
		{"MIDI_Pipette", deck.KindPlate96, &p.midiPipette},
		{"MIDI_OnMagnet", deck.KindPlate96, &p.midiOnMagnet},
		{"MIDI_Waste", deck.KindWaste96, &p.midiWaste},
	} {
		c, err := l.Item(item.name, item.kind)
		if err != nil {
			return err
		}
		*item.dst = c
	}

	vials, err := l.Item("SMP_CAR_24_15x75_A00_0001", deck.KindFalconCarrier24)
	if err != nil {
		return err
	}
	p.vials = resources.NewReagentTracked(vials)
	for _, claim := range []struct {
		reagent string
		index   int
		dst     *[]deck.Position
	}{
		{"FragmentationMasterMix", 0, &p.fragMixPos},
		{"EndRepairMasterMix", 1, &p.endRepairPos},
		{"LigationMasterMix", 2, &p.ligMixPos},
		{"KAPA_Adapters", 3, &p.adapterPos},
		{"NucleaseFreeWater", 4, &p.waterPos},
	} {
		pos, err := p.vials.AssignReagentMap(claim.reagent, []int{claim.index})
		if err != nil {
			return err
		}
		*claim.dst = pos
	}

	cpac, err := l.Item("CPAC_HSP_0001", deck.KindPlate96)
	if err != nil {
		return err
	}
	p.cpacReagents = resources.NewReagentTracked(cpac)
	if p.hifiMixPos, err = p.cpacReagents.AssignReagentMap("KAPA_HiFi_Mix", []int{0}); err != nil {
		return err
	}

	ethanol, err := l.Item("RGT_Ethanol", deck.KindBulkReservoir)
	if err != nil {
		return err
	}
	p.ethanol = resources.NewReagentTracked(ethanol)
	if _, err = p.ethanol.AssignReagentMap("Ethanol80", seq(deck.KindBulkReservoir.Positions())); err != nil {
		return err
	}

	beadRes, err := l.Item("rgt_cont_60ml_BC_A00_0002", deck.KindReservoir60)
	if err != nil {
		return err
	}
	p.beads = resources.NewReagentTracked(beadRes)
	if p.beadPos, err = p.beads.AssignReagentMap("KAPA_Pure_Beads", seq(8)); err != nil {
		return err
	}

	if p.lidStack, err = resources.FromPrefix("Ham_ComfortLid_Stack", "Ham_ComfortLid_Stack", 4, deck.KindLid, l); err != nil {
		return err
	}
	if p.tips50, err = resources.TipsFromPrefix("TIP_50uLF_L", "TIP_50uLF_L", 50, 8, l); err != nil {
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
		for _, v := range []*resources.ReagentTracked{p.vials, p.cpacReagents, p.ethanol, p.beads} {
			reg.RegisterVessel(v)
		}
	}
	return nil
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
		{ID: "enzymatic_fragmentation", Title: "Enzymatic Fragmentation", Run: p.enzymaticFragmentation},
		{ID: "end_repair_a_tailing", Title: "End Repair & A-Tailing", Run: p.endRepairATailing},
		{ID: "adapter_ligation", Title: "Adapter Ligation", Run: p.adapterLigation},
		{ID: "post_ligation_cleanup", Title: "Post-Ligation Cleanup", Run: p.postLigationCleanup},
		{ID: "library_amplification", Title: "Library Amplification", Run: p.libraryAmplification},
		{ID: "final_cleanup_size_selection", Title: "Final Cleanup & Size Selection", Run: p.finalCleanup},
	}
}

func (p *Protocol) initialize(ctx context.Context, r *protocol.Run) error {
	if err := r.Ctrl.Initialize(ctx); err != nil {
		return err
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

// enzymaticFragmentation adds the fragmentation master mix and
// incubates on the cycler. Fragmentation time sets insert size, so
// the plateau comes straight off the door-to-door clock.
func (p *Protocol) enzymaticFragmentation(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.PipTransfer(ctx, p.tips50, p.fragMixPos, deck.Range(p.hspPipette, n),
		volumes(n, fragMasterMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPipette, 15, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	m, err := fragmentationMethod(fragmentationTimeMin)
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette, p.hspPipette, m)
}

// endRepairATailing moves the fragmented DNA to the second plate,
// adds the end-repair mix and incubates.
func (p *Protocol) endRepairATailing(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	currentUL := r.Params.SampleVolumeUL + fragMasterMixUL

	err := ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPipette, p.hspPipette2,
		currentUL, instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.endRepairPos, deck.Range(p.hspPipette2, n),
		volumes(n, endRepairMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPipette2, 25, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	m, err := endRepairMethod()
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette2, p.hspPipette2, m)
}

// adapterLigation adds adapters and ligation mix, then incubates at
// room temperature. The 50 uL tip inventory is reset first so the
// remaining racks cover the mix.
func (p *Protocol) adapterLigation(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	currentUL := r.Params.SampleVolumeUL + fragMasterMixUL + endRepairMixUL

	err := ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPipette2, p.hspPipette,
		currentUL, instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}

	hsp := deck.Range(p.hspPipette, n)
	err = ctrl.PipTransfer(ctx, p.tips50, p.adapterPos, hsp,
		volumes(n, adapterUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.ligMixPos, hsp,
		volumes(n, ligationMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	p.tips50.ResetAll()
	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPipette, 40, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	ctrl.StartTimer(15 * time.Minute).Wait(r.Params.DeviceSimulation)
	return nil
}

// postLigationCleanup binds the ligation reaction to beads at 1.0x,
// washes and elutes in water onto the PCR plate.
func (p *Protocol) postLigationCleanup(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation
	currentUL := r.Params.SampleVolumeUL + fragMasterMixUL + endRepairMixUL + adapterUL + ligationMixUL

	err := ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPipette, p.midiPipette,
		currentUL, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.MultiDispense(ctx, p.tips300, p.beadPos, deck.Range(p.midiPipette, n),
		volumes(n, postLigBeadsUL), instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 80, 15,
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.midiWaste,
		currentUL+postLigBeadsUL, instrument.PipetteParams{
			LiquidClass:      lcStandardJet,
			AspirationHeight: 0.3,
		})
	if err != nil {
		return err
	}

	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.midiOnMagnet, p.midiWaste,
			ethanolWashUL, ethanolWashUL, 30,
			instrument.PipetteParams{LiquidClass: lcStandardJet})
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips50, p.waterPos, deck.Range(p.midiPipette, n),
		volumes(n, postLigElutionUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.midiPipette, 20, 15,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	// Leave 2 uL behind to avoid carrying beads.
	return ctrl.Transfer96(ctx, p.tips50, p.support, n, p.midiOnMagnet, p.hspPipette2,
		postLigElutionUL-2, instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 0.3,
		})
}

// libraryAmplification adds HiFi mix and index primers, then runs the
// PCR program. The index plate sits on HSP_Pipette after the ligation
// reaction moved off it.
func (p *Protocol) libraryAmplification(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.PipTransfer(ctx, p.tips50, p.hifiMixPos, deck.Range(p.hspPipette2, n),
		volumes(n, pcrMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.Transfer96(ctx, p.tips50, p.support, n, p.hspPipette, p.hspPipette2,
		indexPrimerUL, instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPipette2, 40, 5,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	m, err := amplificationMethod(pcrCycles(r.Params))
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette2, p.hspPipette2, m)
}

// finalCleanup size-selects the amplified libraries at 0.9x and
// elutes them onto a fresh position. The 300 uL tip inventory is
// reset first; the cleanups before it run the racks low.
func (p *Protocol) finalCleanup(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation
	pcrUL := postLigElutionUL - 2 + pcrMixUL + indexPrimerUL

	p.tips300.ResetAll()
	err := ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPipette2, p.midiPipette,
		pcrUL, instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips300, p.beadPos, deck.Range(p.midiPipette, n),
		volumes(n, finalBeadsUL), instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 80, 15,
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.midiWaste,
		pcrUL+finalBeadsUL, instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 0.3,
		})
	if err != nil {
		return err
	}

	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.midiOnMagnet, p.midiWaste,
			ethanolWashUL, ethanolWashUL, 30,
			instrument.PipetteParams{LiquidClass: lcStandardJet})
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips50, p.waterPos, deck.Range(p.midiPipette, n),
		volumes(n, finalElutionUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.midiPipette, 18, 15,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	// Retire the index plate so the libraries get a clean position.
	err = ctrl.TransportResource(ctx, p.hspPipette, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	return ctrl.Transfer96(ctx, p.tips50, p.support, n, p.midiOnMagnet, p.hspPipette,
		finalElutionUL-2, instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 0.3,
		})
}

// cycle runs one thermal program: load the plate and a lid, execute,
// wait, unload. KAPA transports all use the CO-RE gripper.
func (p *Protocol) cycle(ctx context.Context, r *protocol.Run, src, dst *deck.Container, m *odtc.Method) error {
	ctrl := r.Ctrl
	if err := ctrl.ODTCOpenDoor(ctx, p.odtcDevice); err != nil {
		return err
	}
	err := ctrl.TransportResource(ctx, src, p.hspODTC, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	lid, err := p.lidStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, lid, p.odtcLid, instrument.TransportOptions{
		Resource: instrument.GripLid,
	})
	if err != nil {
		return err
	}
	if err := ctrl.ODTCCloseDoor(ctx, p.odtcDevice); err != nil {
		return err
	}

	if err := ctrl.ODTCExecuteMethod(ctx, p.odtcDevice, m.Name); err != nil {
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
		Resource: instrument.GripLid,
	})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hspODTC, dst, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	return ctrl.ODTCCloseDoor(ctx, p.odtcDevice)
}

func fragmentationMethod(minutes int) (*odtc.Method, error) {
	m := odtc.NewMethod("KAPA_Enzymatic_Fragmentation", "prepdeck", 60)
	if err := m.SetPreMethod(4, 50); err != nil {
		return nil, err
	}
	if err := m.AddStep(37, minutes*60, 50); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 50); err != nil {
		return nil, err
	}
	return m, nil
}

func endRepairMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("KAPA_End_Repair_A_Tailing", "prepdeck", 70)
	if err := m.SetPreMethod(20, 85); err != nil {
		return nil, err
	}
	if err := m.AddStep(20, 1800, 85); err != nil {
		return nil, err
	}
	if err := m.AddStep(65, 1800, 85); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 85); err != nil {
		return nil, err
	}
	return m, nil
}

func amplificationMethod(cycles int) (*odtc.Method, error) {
	m := odtc.NewMethod("KAPA_Library_Amplification", "prepdeck", 55)
	if err := m.SetPreLid(105); err != nil {
		return nil, err
	}
	if err := m.AddStep(98, 45, 105); err != nil {
		return nil, err
	}
	if err := m.AddPCRCycle(98, 15, 60, 30, 72, 30, cycles); err != nil {
		return nil, err
	}
	if err := m.AddFinalExtension(72, 60); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 105); err != nil {
		return nil, err
	}
	return m, nil
}

// pcrCycles resolves the amplification cycle count from the explicit
// override or the DNA input mass.
func pcrCycles(p protocol.Params) int {
	if p.PCRCycles > 0 {
		return p.PCRCycles
	}
	return odtc.CyclesForInput(p.InputMassNG)
}

func volumes(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var _ protocol.Protocol = (*Protocol)(nil)
