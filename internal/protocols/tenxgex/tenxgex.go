// Package tenxgex implements 10X Genomics GEX library construction:
// fragmentation with end repair and A-tailing, double-sided bead size
// selection, adapter ligation, sample index PCR and a final
// double-sided size selection. The thermal programs run on the
// on-deck cycler and the bead preparations overlap the incubations.
package tenxgex

import (
	"context"
	"fmt"
	"math"
	"time"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/instrument"
	"prepdeck/internal/protocol"
	"prepdeck/internal/resources"
)

const (
	lcStandardJet     = "StandardVolumeFilter_Water_DispenseJet_Empty"
	lcStandardSurface = "StandardVolumeFilter_Water_DispenseSurface_Empty"
	lc50ulFilter      = "Tip_50ulFilter_Water_DispenseSurface_Empty"
	lcHighVolume      = "HighVolumeFilter_Water_DispenseSurface_Empty"
)

// Per-sample reaction volumes in microliters.
const (
	ebFragMixUL  = 20.0
	fragBufferUL = 5.0
	fragEnzymeUL = 10.0
	fragMixUL    = ebFragMixUL + fragBufferUL + fragEnzymeUL

	ligMixPerRxnUL = 40.0
	ligasePerRxnUL = 10.0
	ligMasterMixUL = 50.0

	ampMixUL = 50.0
	indexUL  = 20.0

	// Double-sided selections: the first cut binds fragments above
	// the size window and is discarded with the beads, the second cut
	// binds the window itself.
	firstCutBeadsUL  = 21.0
	secondCutBeadsUL = 10.0
	postLigBeadsUL   = 80.0
	finalBeadsUL     = 60.0
	finalSecondUL    = 20.0

	postFragElutionUL = 32.0
	postLigElutionUL  = 30.5
	finalElutionUL    = 35.5

	postFragEthanolUL = 125.0
	postLigEthanolUL  = 180.0
	finalEthanolUL    = 200.0
)

// excessFactor pads master mix preparation for dead volume.
const excessFactor = 1.1

// bulkChunkUL is the largest single aspirate used when assembling a
// master mix with the 1000 uL tips.
const bulkChunkUL = 800.0

// Protocol holds the deck trackers for one run. Setup populates them;
// a value serves one run at a time.
type Protocol struct {
	// reagent vessels
	vials        *resources.ReagentTracked
	cpacReagents *resources.ReagentTracked
	ebReservoir  *resources.ReagentTracked
	spri         *resources.ReagentTracked
	ethanol      *resources.ReagentTracked

	// claimed reagent positions
	fragBufferPos []deck.Position
	ligMixPos     []deck.Position
	masterMixPos  []deck.Position
	fragEnzymePos []deck.Position
	dnaLigasePos  []deck.Position
	ampMixPos     []deck.Position
	ebPos         []deck.Position
	spriPos       []deck.Position

	// stacks and tips
	hspStack  *resources.StackedResources
	midiStack *resources.StackedResources
	lidStack  *resources.StackedResources
	tips50    *resources.TrackedTips
	tips300   *resources.TrackedTips
	tips1000  *resources.TrackedTips
	support   *resources.TipSupportTracker

	// working positions
	hspPipette  *deck.Container
	hspPipette2 *deck.Container
	hspWaste    *deck.Container
	hspOnMagnet *deck.Container
	hspODTC     *deck.Container
	odtcLid     *deck.Container
	hhs1        *deck.Container

	midiPipette  *deck.Container
	midiOnMagnet *deck.Container
	midiWaste    *deck.Container
	midiCPAC     *deck.Container
	hhs5         *deck.Container

	liquidWaste *deck.Container

	odtcDevice int
}

func New() *Protocol { return &Protocol{} }

func init() {
	protocol.Default.Register(New())
}

func (p *Protocol) Name() string { return "tenxgex" }

func (p *Protocol) Description() string {
	return "10X Genomics GEX library construction"
}

// DefaultLayout is the deck this protocol was validated on.
func (p *Protocol) DefaultLayout() (*deck.Layout, error) {
	slots := map[string]deck.Kind{
		"HSP_Pipette":         deck.KindPlate96,
		"HSP_Pipette2":        deck.KindPlate96,
		"HSP_Waste":           deck.KindWaste96,
		"HSP_OnMagnet":        deck.KindPlate96,
		"HSP_ODTC":            deck.KindPlate96,
		"Ham_ComfortLid_ODTC": deck.KindLid,
		"HHS1_HSP":            deck.KindPlate96,

		"MIDI_Pipette":  deck.KindPlate96,
		"MIDI_OnMagnet": deck.KindPlate96,
		"MIDI_Waste":    deck.KindWaste96,
		"MIDI_CPAC":     deck.KindPlate96,
		"HHS5_MIDI":     deck.KindPlate96,

		"CAR_VIALS_SMALL":           deck.KindEppiCarrier32,
		"CPAC_HSP_0001":             deck.KindPlate96,
		"rgt_cont_60ml_BC_A00_0001": deck.KindReservoir60,
		"rgt_cont_60ml_BC_A00_0002": deck.KindReservoir60,
		"RGT_Ethanol":               deck.KindBulkReservoir,

		"core96externalwaste_0001": deck.KindWaste96,
		"TipSupport_0001":          deck.KindTip96,
	}
	addStack(slots, "BioRadHardShell_Stack4", deck.KindPlate96, 5)
	addStack(slots, "AbgeneMIDI_Stack1", deck.KindPlate96, 3)
	addStack(slots, "Ham_ComfortLid_Stack", deck.KindLid, 3)
	addStack(slots, "TIP_50uLF_L", deck.KindTip96, 8)
	addStack(slots, "STF_L", deck.KindTip96, 8)
	addStack(slots, "HTF_L", deck.KindTip96, 2)
	return deck.NewLayout("10X_GEX_LibraryPrep_v1.0", slots)
}

func addStack(slots map[string]deck.Kind, prefix string, kind deck.Kind, count int) {
	for i := 1; i <= count; i++ {
		slots[fmt.Sprintf("%s_%04d", prefix, i)] = kind
	}
}

// Requirements lists consumables for the pre-flight summary. BufferEB
// serves the fragmentation mix and all three elutions; the bead
// figure covers both cuts of each double-sided selection.
func (p *Protocol) Requirements(params protocol.Params) []consumables.Requirement {
	s := params.Samples
	return []consumables.Requirement{
		{Reagent: "BufferEB", PerSampleUL: ebFragMixUL + postFragElutionUL + postLigElutionUL + finalElutionUL, Samples: s},
		{Reagent: "FragmentationBuffer", PerSampleUL: fragBufferUL, Samples: s},
		{Reagent: "FragmentationEnzyme", PerSampleUL: fragEnzymeUL, Samples: s},
		{Reagent: "LigationMix", PerSampleUL: ligMixPerRxnUL, Samples: s},
		{Reagent: "DNALigase", PerSampleUL: ligasePerRxnUL, Samples: s},
		{Reagent: "LibraryAmpMix", PerSampleUL: ampMixUL, Samples: s},
		{Reagent: "SPRIselect", PerSampleUL: firstCutBeadsUL + secondCutBeadsUL + postLigBeadsUL + finalBeadsUL + finalSecondUL, Samples: s},
		{Reagent: "Ethanol80", PerSampleUL: postFragEthanolUL + postLigEthanolUL + finalEthanolUL, Samples: s, Repeats: 2},
	}
}

// Setup resolves working positions, claims reagent wells and builds
// the stack and tip trackers against the run's layout.
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
		{"HSP_OnMagnet", deck.KindPlate96, &p.hspOnMagnet},
		{"HSP_ODTC", deck.KindPlate96, &p.hspODTC},
		{"Ham_ComfortLid_ODTC", deck.KindLid, &p.odtcLid},
		{"HHS1_HSP", deck.KindPlate96, &p.hhs1},
		{"MIDI_Pipette", deck.KindPlate96, &p.midiPipette},
		{"MIDI_OnMagnet", deck.KindPlate96, &p.midiOnMagnet},
		{"MIDI_Waste", deck.KindWaste96, &p.midiWaste},
		{"MIDI_CPAC", deck.KindPlate96, &p.midiCPAC},
		{"HHS5_MIDI", deck.KindPlate96, &p.hhs5},
		{"core96externalwaste_0001", deck.KindWaste96, &p.liquidWaste},
	} {
		c, err := l.Item(item.name, item.kind)
		if err != nil {
			return err
		}
		*item.dst = c
	}

	vials, err := l.Item("CAR_VIALS_SMALL", deck.KindEppiCarrier32)
	if err != nil {
		return err
	}
	p.vials = resources.NewReagentTracked(vials)
	if p.fragBufferPos, err = p.vials.AssignReagentMap("FragmentationBuffer", []int{0}); err != nil {
		return err
	}
	if p.ligMixPos, err = p.vials.AssignReagentMap("LigationMix", []int{1}); err != nil {
		return err
	}
	// Spare vial where the ligation master mix is assembled.
	if p.masterMixPos, err = p.vials.AssignReagentMap("LigationMasterMix", []int{4}); err != nil {
		return err
	}

	cpac, err := l.Item("CPAC_HSP_0001", deck.KindPlate96)
	if err != nil {
		return err
	}
	p.cpacReagents = resources.NewReagentTracked(cpac)
	if p.fragEnzymePos, err = p.cpacReagents.AssignReagentMap("FragmentationEnzyme", []int{0}); err != nil {
		return err
	}
	if p.dnaLigasePos, err = p.cpacReagents.AssignReagentMap("DNALigase", []int{1}); err != nil {
		return err
	}
	if p.ampMixPos, err = p.cpacReagents.AssignReagentMap("LibraryAmpMix", []int{2}); err != nil {
		return err
	}

	if p.ebReservoir, p.ebPos, err = reservoir(l, "rgt_cont_60ml_BC_A00_0001", "BufferEB"); err != nil {
		return err
	}
	if p.spri, p.spriPos, err = reservoir(l, "rgt_cont_60ml_BC_A00_0002", "SPRIselect"); err != nil {
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

	if p.hspStack, err = resources.FromPrefix("BioRadHardShell_Stack4", "BioRadHardShell_Stack4", 5, deck.KindPlate96, l); err != nil {
		return err
	}
	if p.midiStack, err = resources.FromPrefix("AbgeneMIDI_Stack1", "AbgeneMIDI_Stack1", 3, deck.KindPlate96, l); err != nil {
		return err
	}
	if p.lidStack, err = resources.FromPrefix("Ham_ComfortLid_Stack", "Ham_ComfortLid_Stack", 3, deck.KindLid, l); err != nil {
		return err
	}
	if p.tips50, err = resources.TipsFromPrefix("TIP_50uLF_L", "TIP_50uLF_L", 50, 8, l); err != nil {
		return err
	}
	if p.tips300, err = resources.TipsFromPrefix("STF_L", "STF_L", 300, 8, l); err != nil {
		return err
	}
	if p.tips1000, err = resources.TipsFromPrefix("HTF_L", "HTF_L", 1000, 2, l); err != nil {
		return err
	}
	supportItem, err := l.Item("TipSupport_0001", deck.KindTip96)
	if err != nil {
		return err
	}
	p.support = resources.NewTipSupportTracker(supportItem)

	if reg, ok := r.Ctrl.(instrument.VesselRegistrar); ok {
		for _, v := range []*resources.ReagentTracked{
			p.vials, p.cpacReagents, p.ebReservoir, p.spri, p.ethanol,
		} {
			reg.RegisterVessel(v)
		}
	}
	return nil
}

func reservoir(l *deck.Layout, slot, reagent string) (*resources.ReagentTracked, []deck.Position, error) {
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
		{ID: "fragmentation_end_repair_atailing", Title: "Fragmentation, End Repair & A-Tailing", Run: p.fragmentationEndRepair},
		{ID: "post_fragmentation_spriselect", Title: "Post Fragmentation SPRIselect", Run: p.postFragmentationSPRIselect},
		{ID: "adapter_ligation", Title: "Adapter Ligation", Run: p.adapterLigation},
		{ID: "post_ligation_cleanup", Title: "Post Ligation Cleanup", Run: p.postLigationCleanup},
		{ID: "sample_index_pcr", Title: "Sample Index PCR", Run: p.sampleIndexPCR},
		{ID: "final_size_selection", Title: "Final Size Selection", Run: p.finalSizeSelection},
	}
}

// initialize brings up the instrument, the cooled reagent carrier and
// the thermal cycler. No heater-shakers run in this protocol; HHS
// positions serve as plate parking only.
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
	temp, err := r.Ctrl.CPACTemperature(ctx, 1, 1)
	if err != nil {
		return err
	}
	r.Log.Info("CPAC temperature", "celsius", temp)

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

// fragmentationEndRepair assembles the fragmentation mix per well on
// the chilled MIDI plate, stamps it onto the samples, and starts the
// thermal program. The program keeps running into the next step so
// the bead preparation can overlap it.
func (p *Protocol) fragmentationEndRepair(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	// Resuspend the fragmentation buffer before the mix goes together.
	err := ctrl.PipMix(ctx, p.tips300, p.fragBufferPos, 200, 10,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}

	mix := deck.Range(p.midiCPAC, n)
	for _, component := range []struct {
		src []deck.Position
		vol float64
	}{
		{p.ebPos, ebFragMixUL},
		{p.fragBufferPos, fragBufferUL},
		{p.fragEnzymePos, fragEnzymeUL},
	} {
		err = ctrl.MultiDispense(ctx, p.tips300, component.src, mix,
			volumes(n, component.vol), instrument.PipetteParams{LiquidClass: lcStandardJet})
		if err != nil {
			return err
		}
	}
	err = ctrl.PipMix(ctx, p.tips300, mix, 25, 3,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.midiCPAC, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiPipette, p.hspPipette2,
		fragMixUL, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}

	if err := p.loadODTC(ctx, r, p.hspPipette2); err != nil {
		return err
	}
	m, err := fragmentationMethod()
	if err != nil {
		return err
	}
	r.Log.Info("thermal program started", "method", m.Name, "seconds", m.Duration())
	return ctrl.ODTCExecuteMethod(ctx, p.odtcDevice, m.Name)
}

// postFragmentationSPRIselect is the double-sided selection after
// fragmentation. Bead aliquots are staged on a chilled MIDI plate
// while the cycler finishes.
func (p *Protocol) postFragmentationSPRIselect(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation

	fresh, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, fresh, p.hspPipette, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	beadPlate, err := p.midiStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, beadPlate, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	// One aliquot covers both cuts.
	err = ctrl.MultiDispense(ctx, p.tips300, p.spriPos, deck.Range(p.midiPipette, n),
		volumes(n, firstCutBeadsUL+secondCutBeadsUL),
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiCPAC, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	if err := ctrl.ODTCWaitForIdle(ctx, p.odtcDevice); err != nil {
		return err
	}
	if err := p.unloadODTC(ctx, r, p.hspPipette2); err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.midiCPAC, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 75, 15,
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}

	// First cut: bind oversized fragments, keep the supernatant.
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiPipette, p.hspPipette2,
		firstCutBeadsUL, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.hspPipette2, 50, 15,
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspPipette2, p.hspOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(3 * time.Minute).Wait(skip)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspOnMagnet, p.hspPipette,
		70, instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hspOnMagnet, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	// Second cut: bind the target window in the kept supernatant.
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 75, 15,
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiPipette, p.hspPipette,
		secondCutBeadsUL, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.hspPipette, 30, 15,
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspPipette, p.hspOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.hspOnMagnet, p.liquidWaste, 70, 20,
		instrument.PipetteParams{LiquidClass: lcStandardSurface}, 0.5)
	if err != nil {
		return err
	}

	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.hspOnMagnet, p.liquidWaste,
			postFragEthanolUL, 100, 50,
			instrument.PipetteParams{LiquidClass: lcStandardJet})
		if err != nil {
			return err
		}
	}
	// Brief dry; over-drying the pellet hurts recovery.
	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspOnMagnet, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips300, p.ebPos, deck.Range(p.hspPipette2, n),
		volumes(n, postFragElutionUL), instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.hspPipette2, 25, 10,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspPipette2, p.hspOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	eluate, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, eluate, p.hspPipette, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(3 * time.Minute).Wait(skip)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspOnMagnet, p.hspPipette,
		30, instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 0.5,
		})
	if err != nil {
		return err
	}
	// The spent bead plate leaves the deck so the next cleanup can
	// stage a fresh one.
	return ctrl.TransportResource(ctx, p.midiPipette, p.midiWaste, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
}

// adapterLigation assembles the ligation master mix in a spare vial,
// adds it to the samples and runs the ligation program on the cycler.
func (p *Protocol) adapterLigation(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	reactions := float64(int(float64(n) * excessFactor))

	ligTotal := ligMixPerRxnUL * reactions
	ligaseTotal := ligasePerRxnUL * reactions
	if err := p.bulkTransfer(ctx, ctrl, p.ligMixPos[0], p.masterMixPos[0], ligTotal); err != nil {
		return err
	}
	if err := p.bulkTransfer(ctx, ctrl, p.dnaLigasePos[0], p.masterMixPos[0], ligaseTotal); err != nil {
		return err
	}
	err := ctrl.PipMix(ctx, p.tips1000, p.masterMixPos,
		math.Min(ligTotal+ligaseTotal, 1000), 15,
		instrument.PipetteParams{LiquidClass: lcHighVolume})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips50, p.masterMixPos, deck.Range(p.hspPipette, n),
		volumes(n, ligMasterMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.hspPipette, 90, 15,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}

	if err := p.loadODTC(ctx, r, p.hspPipette); err != nil {
		return err
	}
	m, err := ligationMethod()
	if err != nil {
		return err
	}
	if err := ctrl.ODTCExecuteMethod(ctx, p.odtcDevice, m.Name); err != nil {
		return err
	}
	if err := ctrl.ODTCWaitForIdle(ctx, p.odtcDevice); err != nil {
		return err
	}
	return p.unloadODTC(ctx, r, p.hspPipette2)
}

// postLigationCleanup is a single-sided bead cleanup of the ligation
// reaction. The MIDI stack is reset first: every plate fetched so far
// has left the deck, so the slots are restocked between steps.
func (p *Protocol) postLigationCleanup(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation

	p.midiStack.ResetAll()
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

	reactionUL := ligMasterMixUL + 30
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPipette2, p.midiPipette,
		reactionUL, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.MultiDispense(ctx, p.tips300, p.spriPos, deck.Range(p.midiPipette, n),
		volumes(n, postLigBeadsUL), instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 150, 15,
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
	ctrl.StartTimer(4 * time.Minute).Wait(skip)

	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.midiOnMagnet, p.midiWaste, 100, 60,
		instrument.PipetteParams{LiquidClass: lcStandardSurface}, 0.5)
	if err != nil {
		return err
	}

	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.midiOnMagnet, p.midiWaste,
			postLigEthanolUL, 150, 50,
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

	err = ctrl.PipTransfer(ctx, p.tips300, p.ebPos, deck.Range(p.midiPipette, n),
		volumes(n, postLigElutionUL), instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 25, 15,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
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

	fresh, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, fresh, p.hspPipette, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(4 * time.Minute).Wait(skip)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.hspPipette,
		30, instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 0.5,
		})
	if err != nil {
		return err
	}
	return ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiWaste, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
}

// sampleIndexPCR adds amplification mix and per-sample indexes, then
// starts the PCR program. The program runs into the next step; the
// final selection stages its beads while the cycler works.
func (p *Protocol) sampleIndexPCR(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.MultiDispense(ctx, p.tips300, p.ampMixPos, deck.Range(p.hspPipette, n),
		volumes(n, ampMixUL), instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}

	// Indexes come from the pre-plated index plate parked on HHS1.
	err = ctrl.PipTransfer(ctx, p.tips50, deck.Range(p.hhs1, n), deck.Range(p.hspPipette, n),
		volumes(n, indexUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	if err := p.loadODTC(ctx, r, p.hspPipette); err != nil {
		return err
	}
	cycles := pcrCycles(r.Params)
	m, err := sampleIndexMethod(cycles)
	if err != nil {
		return err
	}
	r.Log.Info("sample index PCR started", "cycles", cycles)
	return ctrl.ODTCExecuteMethod(ctx, p.odtcDevice, m.Name)
}

// finalSizeSelection is the double-sided selection after PCR. Beads
// are staged while the cycler finishes, then the libraries come out
// on a fresh plate.
func (p *Protocol) finalSizeSelection(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation

	beadPlate, err := p.midiStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, beadPlate, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	err = ctrl.MultiDispense(ctx, p.tips300, p.spriPos, deck.Range(p.midiPipette, n),
		volumes(n, finalBeadsUL+finalSecondUL),
		instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.midiPipette, p.midiCPAC, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	if err := ctrl.ODTCWaitForIdle(ctx, p.odtcDevice); err != nil {
		return err
	}
	if err := p.unloadODTC(ctx, r, p.hspPipette2); err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.midiCPAC, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiPipette, 150, 15,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}

	// First cut at 0.6x.
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiPipette, p.hspPipette2,
		finalBeadsUL, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspPipette2, p.hspOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(3 * time.Minute).Wait(skip)

	fresh, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, fresh, p.hspPipette, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspOnMagnet, p.hspPipette,
		150, instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hspOnMagnet, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	// Second cut at 0.2x on the kept supernatant.
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiPipette, p.hspPipette,
		finalSecondUL, instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.hspPipette, 30, 10,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspPipette, p.hspOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(3 * time.Minute).Wait(skip)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspOnMagnet, p.liquidWaste,
		150, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}

	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.hspOnMagnet, p.liquidWaste,
			finalEthanolUL, 150, 50,
			instrument.PipetteParams{LiquidClass: lcStandardSurface})
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspOnMagnet, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips300, p.ebPos, deck.Range(p.hspPipette2, n),
		volumes(n, finalElutionUL), instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.hspPipette2, 25, 15,
		instrument.PipetteParams{LiquidClass: lcStandardSurface})
	if err != nil {
		return err
	}
	ctrl.StartTimer(2 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspPipette2, p.hspOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	library, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, library, p.hspPipette, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(4 * time.Minute).Wait(skip)

	return ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspOnMagnet, p.hspPipette,
		33, instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 0.5,
		})
}

// loadODTC opens the cycler, moves the plate in, lids it and closes
// the door.
func (p *Protocol) loadODTC(ctx context.Context, r *protocol.Run, plate *deck.Container) error {
	ctrl := r.Ctrl
	if err := ctrl.ODTCOpenDoor(ctx, p.odtcDevice); err != nil {
		return err
	}
	err := ctrl.TransportResource(ctx, plate, p.hspODTC, instrument.TransportOptions{
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
	return ctrl.ODTCCloseDoor(ctx, p.odtcDevice)
}

// unloadODTC removes the lid and the plate and closes the door again.
func (p *Protocol) unloadODTC(ctx context.Context, r *protocol.Run, dst *deck.Container) error {
	ctrl := r.Ctrl
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
	err = ctrl.TransportResource(ctx, p.hspODTC, dst, instrument.TransportOptions{
		Direction: instrument.GripRight, Resource: instrument.GripPCR, UseISWAP: true,
	})
	if err != nil {
		return err
	}
	return ctrl.ODTCCloseDoor(ctx, p.odtcDevice)
}

// bulkTransfer moves totalUL from one vial to another in chunks the
// 1000 uL tips can carry.
func (p *Protocol) bulkTransfer(ctx context.Context, ctrl instrument.Controller, src, dst deck.Position, totalUL float64) error {
	var srcs, dsts []deck.Position
	var vols []float64
	for remaining := totalUL; remaining > 0; remaining -= bulkChunkUL {
		srcs = append(srcs, src)
		dsts = append(dsts, dst)
		vols = append(vols, math.Min(remaining, bulkChunkUL))
	}
	return ctrl.PipTransfer(ctx, p.tips1000, srcs, dsts, vols, instrument.PipetteParams{
		LiquidClass:      lcHighVolume,
		AspirationHeight: 1,
		DispenseHeight:   1,
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
