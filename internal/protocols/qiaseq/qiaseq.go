// Package qiaseq implements the QIAseq RNA Fusion XP library
// preparation: FastSelect rRNA depletion with first and second strand
// synthesis, end repair & A-tailing, adapter ligation, two bead
// cleanups around an SPE target enrichment, and a universal PCR.
// Reaction plates shuttle between the cold block and the cycler;
// binding and elution mixing happens on the heater shakers.
package qiaseq

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
	lcHighVolume      = "HighVolumeFilter_Water_DispenseSurface_Empty"
	lc50ulFilter      = "Tip_50ulFilter_Water_DispenseSurface_Empty"
)

// Per-sample reaction volumes in microliters.
const (
	fastSelectUL      = 5.0
	rpPrimerUL        = 5.0
	firstStrandMixUL  = 20.0
	secondStrandMixUL = 20.0
	eratMixUL         = 20.0
	adapterUL         = 5.0
	ligationMixUL     = 20.0
	speMixUL          = 20.0
	universalPCRMixUL = 25.0

	beadVolumeUL    = 50.0
	ethanolWashUL   = 200.0
	elutionBufferUL = 30.0
	elutionUL       = 25.5

	vialMixUL      = 40.0
	beadStockMixUL = 1000.0
)

// speCycles is fixed by the SPE primer panel, not by input mass.
const speCycles = 6

const shakerRPM = 1000

// Heater shaker nodes. Nodes 2 and 4 are installed but this workflow
// does not schedule plates on them.
const (
	hhsAdapters = 1
	hhsBind     = 3
	hhsElute    = 5
)

// Protocol holds the deck trackers for one run. Setup populates them;
// a value serves one run at a time.
type Protocol struct {
	vials   *resources.ReagentTracked
	beads   *resources.ReagentTracked
	water   *resources.ReagentTracked
	speMix  *resources.ReagentTracked
	ethanol *resources.ReagentTracked

	fastSelectPos   []deck.Position
	rpPrimerPos     []deck.Position
	firstStrandPos  []deck.Position
	secondStrandPos []deck.Position
	eratPos         []deck.Position
	ligMixPos       []deck.Position
	upcrPos         []deck.Position
	beadPos         []deck.Position
	waterPos        []deck.Position
	spePos          []deck.Position

	hspStack  *resources.StackedResources
	midiStack *resources.StackedResources
	lidStack  *resources.StackedResources
	tips50    *resources.TrackedTips
	tips300   *resources.TrackedTips
	tips1000  *resources.TrackedTips
	support   *resources.TipSupportTracker

	hspPipette   *deck.Container
	hspPipette2  *deck.Container
	hspCPAC      *deck.Container
	hspWaste     *deck.Container
	hspODTC      *deck.Container
	odtcLid      *deck.Container
	midiPipette  *deck.Container
	midiOnMagnet *deck.Container
	midiWaste    *deck.Container
	hhsAdapter   *deck.Container
	hhsBinding   *deck.Container
	hhsElution   *deck.Container

	odtcDevice int
}

func New() *Protocol { return &Protocol{} }

func init() {
	protocol.Default.Register(New())
}

func (p *Protocol) Name() string { return "qiaseq" }

func (p *Protocol) Description() string {
	return "QIAseq RNA Fusion XP library preparation"
}

// DefaultLayout is the deck this protocol was validated on.
func (p *Protocol) DefaultLayout() (*deck.Layout, error) {
	slots := map[string]deck.Kind{
		"HSP_Pipette":         deck.KindPlate96,
		"HSP_Pipette2":        deck.KindPlate96,
		"HSP_CPAC":            deck.KindPlate96,
		"HSP_Waste":           deck.KindWaste96,
		"HSP_ODTC":            deck.KindPlate96,
		"Ham_ComfortLid_ODTC": deck.KindLid,

		"MIDI_Pipette":  deck.KindPlate96,
		"MIDI_OnMagnet": deck.KindPlate96,
		"MIDI_Waste":    deck.KindWaste96,

		"HHS1_HSP":  deck.KindPlate96,
		"HHS2_HSP":  deck.KindPlate96,
		"HHS3_MIDI": deck.KindPlate96,
		"HHS4_MIDI": deck.KindPlate96,
		"HHS5_MIDI": deck.KindPlate96,

		"CAR_VIALS_SMALL": deck.KindEppiCarrier32,
		"RGT_01":          deck.KindReservoir60,
		"RGT_02":          deck.KindReservoir60,
		"RGT_03":          deck.KindReservoir60,
		"RGT_Ethanol":     deck.KindBulkReservoir,

		"TipSupport_0001": deck.KindTip96,
	}
	addStack(slots, "BioRadHardshell_Stack1", deck.KindPlate96, 4)
	addStack(slots, "ABGENE_MIDI_Stack1", deck.KindPlate96, 4)
	addStack(slots, "Ham_ComfortLid_ParkPos", deck.KindLid, 4)
	addStack(slots, "TIP_50uLF_L", deck.KindTip96, 8)
	addStack(slots, "STF_L", deck.KindTip96, 8)
	addStack(slots, "HTF_L", deck.KindTip96, 1)
	return deck.NewLayout("QIAseq_RNA_Fusion_XP_v1.0", slots)
}

func addStack(slots map[string]deck.Kind, prefix string, kind deck.Kind, count int) {
	for i := 1; i <= count; i++ {
		slots[fmt.Sprintf("%s_%04d", prefix, i)] = kind
	}
}

// Requirements lists consumables for the pre-flight summary. Beads
// cover three binding passes, water both cleanup elutions, ethanol
// two washes per binding pass.
func (p *Protocol) Requirements(params protocol.Params) []consumables.Requirement {
	s := params.Samples
	return []consumables.Requirement{
		{Reagent: "FastSelect", PerSampleUL: fastSelectUL, Samples: s},
		{Reagent: "RP_Primer_II", PerSampleUL: rpPrimerUL, Samples: s},
		{Reagent: "First_Strand_Mix", PerSampleUL: firstStrandMixUL, Samples: s},
		{Reagent: "Second_Strand_Mix", PerSampleUL: secondStrandMixUL, Samples: s},
		{Reagent: "ERAT_Mix", PerSampleUL: eratMixUL, Samples: s},
		{Reagent: "Ligation_Mix", PerSampleUL: ligationMixUL, Samples: s},
		{Reagent: "SPE_MasterMix", PerSampleUL: speMixUL, Samples: s},
		{Reagent: "UniversalPCR", PerSampleUL: universalPCRMixUL, Samples: s},
		{Reagent: "QIAseq_Beads", PerSampleUL: beadVolumeUL, Samples: s, Repeats: 3},
		{Reagent: "Nuclease_Free_Water", PerSampleUL: elutionBufferUL + elutionUL, Samples: s, Repeats: 2},
		{Reagent: "Ethanol80", PerSampleUL: 2 * ethanolWashUL, Samples: s, Repeats: 3},
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
		{"HSP_CPAC", deck.KindPlate96, &p.hspCPAC},
		{"HSP_Waste", deck.KindWaste96, &p.hspWaste},
		{"HSP_ODTC", deck.KindPlate96, &p.hspODTC},
		{"Ham_ComfortLid_ODTC", deck.KindLid, &p.odtcLid},
		{"MIDI_Pipette", deck.KindPlate96, &p.midiPipette},
		{"MIDI_OnMagnet", deck.KindPlate96, &p.midiOnMagnet},
		{"MIDI_Waste", deck.KindWaste96, &p.midiWaste},
		{"HHS1_HSP", deck.KindPlate96, &p.hhsAdapter},
		{"HHS3_MIDI", deck.KindPlate96, &p.hhsBinding},
		{"HHS5_MIDI", deck.KindPlate96, &p.hhsElution},
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
	for _, claim := range []struct {
		reagent string
		index   int
		dst     *[]deck.Position
	}{
		{"FastSelect", 11, &p.fastSelectPos},
		{"RP_Primer_II", 1, &p.rpPrimerPos},
		{"First_Strand_Mix", 2, &p.firstStrandPos},
		{"Second_Strand_Mix", 3, &p.secondStrandPos},
		{"ERAT_Mix", 4, &p.eratPos},
		{"Ligation_Mix", 6, &p.ligMixPos},
		{"UniversalPCR", 10, &p.upcrPos},
	} {
		pos, err := p.vials.AssignReagentMap(claim.reagent, []int{claim.index})
		if err != nil {
			return err
		}
		*claim.dst = pos
	}

	// Beads and water live in separate reservoirs so each claim owns
	// its full eight troughs.
	beadRes, err := l.Item("RGT_01", deck.KindReservoir60)
	if err != nil {
		return err
	}
	p.beads = resources.NewReagentTracked(beadRes)
	if p.beadPos, err = p.beads.AssignReagentMap("QIAseq_Beads", seq(8)); err != nil {
		return err
	}
	waterRes, err := l.Item("RGT_02", deck.KindReservoir60)
	if err != nil {
		return err
	}
	p.water = resources.NewReagentTracked(waterRes)
	if p.waterPos, err = p.water.AssignReagentMap("Nuclease_Free_Water", seq(8)); err != nil {
		return err
	}
	speRes, err := l.Item("RGT_03", deck.KindReservoir60)
	if err != nil {
		return err
	}
	p.speMix = resources.NewReagentTracked(speRes)
	if p.spePos, err = p.speMix.AssignReagentMap("SPE_MasterMix", seq(8)); err != nil {
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

	if p.hspStack, err = resources.FromPrefix("BioRadHardshell_Stack1", "BioRadHardshell_Stack1", 4, deck.KindPlate96, l); err != nil {
		return err
	}
	if p.midiStack, err = resources.FromPrefix("ABGENE_MIDI_Stack1", "ABGENE_MIDI_Stack1", 4, deck.KindPlate96, l); err != nil {
		return err
	}
	if p.lidStack, err = resources.FromPrefix("Ham_ComfortLid_ParkPos", "Ham_ComfortLid_ParkPos", 4, deck.KindLid, l); err != nil {
		return err
	}
	if p.tips50, err = resources.TipsFromPrefix("TIP_50uLF_L", "TIP_50uLF_L", 50, 8, l); err != nil {
		return err
	}
	if p.tips300, err = resources.TipsFromPrefix("STF_L", "STF_L", 300, 8, l); err != nil {
		return err
	}
	if p.tips1000, err = resources.TipsFromPrefix("HTF_L", "HTF_L", 1000, 1, l); err != nil {
		return err
	}
	supportItem, err := l.Item("TipSupport_0001", deck.KindTip96)
	if err != nil {
		return err
	}
	p.support = resources.NewTipSupportTracker(supportItem)

	if reg, ok := r.Ctrl.(instrument.VesselRegistrar); ok {
		for _, v := range []*resources.ReagentTracked{p.vials, p.beads, p.water, p.speMix, p.ethanol} {
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
		{ID: "first_strand_dna_synthesis", Title: "First Strand DNA Synthesis", Run: p.firstStrandSynthesis},
		{ID: "second_strand_dna_synthesis", Title: "Second Strand DNA Synthesis", Run: p.secondStrandSynthesis},
		{ID: "end_repair_a_tailing", Title: "End Repair & A-Tailing", Run: p.endRepairATailing},
		{ID: "adapter_ligation", Title: "Adapter Ligation", Run: p.adapterLigation},
		{ID: "sample_cleanup_1", Title: "Sample Cleanup 1", Run: p.sampleCleanup1},
		{ID: "spe_target_enrichment", Title: "SPE Target Enrichment", Run: p.speTargetEnrichment},
		{ID: "sample_cleanup_2", Title: "Sample Cleanup 2", Run: p.sampleCleanup2},
		{ID: "universal_pcr", Title: "Universal PCR", Run: p.universalPCR},
	}
}

// initialize brings up the heater shakers, the cold block and the
// cycler. A shaker node that does not answer is logged and skipped;
// the run only schedules nodes 1, 3 and 5.
func (p *Protocol) initialize(ctx context.Context, r *protocol.Run) error {
	if err := r.Ctrl.Initialize(ctx); err != nil {
		return err
	}

	for node := 1; node <= 5; node++ {
		if err := r.Ctrl.HHSCreateDevice(ctx, node); err != nil {
			r.Log.Warn("heater shaker unavailable", "node", node, "error", err)
		}
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

// firstStrandSynthesis depletes rRNA with FastSelect and reverse
// transcribes on the cycler. All additions happen on the cold block.
func (p *Protocol) firstStrandSynthesis(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.TransportResource(ctx, p.hspPipette2, p.hspCPAC, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	cold := deck.Range(p.hspCPAC, n)
	err = ctrl.PipTransfer(ctx, p.tips50, p.fastSelectPos, cold,
		volumes(n, fastSelectUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.rpPrimerPos, cold,
		volumes(n, rpPrimerUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.PipMix(ctx, p.tips50, p.firstStrandPos, vialMixUL, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter, AspirationHeight: 1})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.firstStrandPos, cold,
		volumes(n, firstStrandMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspCPAC, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	m, err := firstStrandMethod()
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette2, p.hspPipette2, m)
}

func (p *Protocol) secondStrandSynthesis(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.TransportResource(ctx, p.hspPipette2, p.hspCPAC, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipMix(ctx, p.tips50, p.secondStrandPos, vialMixUL, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter, AspirationHeight: 1})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.secondStrandPos, deck.Range(p.hspCPAC, n),
		volumes(n, secondStrandMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspCPAC, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	m, err := secondStrandMethod()
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette2, p.hspPipette2, m)
}

// endRepairATailing leaves the plate on the cold block afterwards;
// adapter ligation continues there.
func (p *Protocol) endRepairATailing(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.TransportResource(ctx, p.hspPipette2, p.hspCPAC, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipMix(ctx, p.tips300, p.eratPos, vialMixUL, 10,
		instrument.PipetteParams{LiquidClass: lcStandardSurface, AspirationHeight: 1})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips300, p.eratPos, deck.Range(p.hspCPAC, n),
		volumes(n, eratMixUL), instrument.PipetteParams{
			LiquidClass:      lcStandardJet,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspCPAC, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	m, err := endRepairMethod()
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette2, p.hspCPAC, m)
}

// adapterLigation picks indexed adapters off the plate parked on the
// first heater shaker and ligates on the cycler.
func (p *Protocol) adapterLigation(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.Transfer96(ctx, p.tips50, p.support, n, p.hhsAdapter, p.hspCPAC,
		adapterUL, instrument.PipetteParams{LiquidClass: lc50ulFilter, AspirationHeight: 1})
	if err != nil {
		return err
	}

	err = ctrl.PipMix(ctx, p.tips50, p.ligMixPos, vialMixUL, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter, AspirationHeight: 1})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.ligMixPos, deck.Range(p.hspCPAC, n),
		volumes(n, ligationMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspCPAC, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	m, err := ligationMethod()
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette2, p.hspCPAC, m)
}

// reactionUL is the well volume going into the first cleanup.
func reactionUL(params protocol.Params) float64 {
	return params.SampleVolumeUL + fastSelectUL + rpPrimerUL + firstStrandMixUL +
		secondStrandMixUL + eratMixUL + adapterUL + ligationMixUL
}

// sampleCleanup1 runs a double bead selection: bind the ligation
// reaction, wash and elute, then bind the eluate again before the
// final elution onto a fresh PCR plate.
func (p *Protocol) sampleCleanup1(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation

	plate, err := p.midiStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, plate, p.hhsBinding, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	bind := deck.Range(p.hhsBinding, n)
	err = ctrl.PipTransfer(ctx, p.tips300, p.beadPos, bind,
		volumes(n, beadVolumeUL), instrument.PipetteParams{
			LiquidClass:      lcStandardJet,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspCPAC, p.hhsBinding,
		reactionUL(r.Params), instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}

	if err := p.shake(ctx, ctrl, hhsBind, 10*time.Second, skip); err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hhsBinding, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.midiOnMagnet, p.midiWaste, reactionUL(r.Params)+beadVolumeUL, 30,
		instrument.PipetteParams{LiquidClass: lcStandardSurface}, 0)
	if err != nil {
		return err
	}
	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.midiOnMagnet, p.midiWaste,
			ethanolWashUL, ethanolWashUL, 50,
			instrument.PipetteParams{LiquidClass: lcStandardSurface})
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.PipTransfer(ctx, p.tips300, p.waterPos, deck.Range(p.midiOnMagnet, n),
		volumes(n, elutionBufferUL), instrument.PipetteParams{
			LiquidClass:      lcStandardJet,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.hhsBinding, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	if err := p.shake(ctx, ctrl, hhsBind, 30*time.Second, skip); err != nil {
		return err
	}

	// Second selection pass binds the eluate straight in the same
	// wells.
	err = ctrl.PipMix(ctx, p.tips300, p.beadPos, 100, 10,
		instrument.PipetteParams{LiquidClass: lcStandardSurface, AspirationHeight: 1})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips300, p.beadPos, bind,
		volumes(n, beadVolumeUL), instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	if err := p.shake(ctx, ctrl, hhsBind, 10*time.Second, skip); err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hhsBinding, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.midiOnMagnet, p.midiWaste, elutionBufferUL+beadVolumeUL, 20,
		instrument.PipetteParams{LiquidClass: lcStandardSurface}, 0)
	if err != nil {
		return err
	}
	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.midiOnMagnet, p.midiWaste,
			ethanolWashUL, ethanolWashUL, 50,
			instrument.PipetteParams{LiquidClass: lcStandardSurface})
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.PipTransfer(ctx, p.tips300, p.waterPos, deck.Range(p.midiOnMagnet, n),
		volumes(n, elutionUL), instrument.PipetteParams{
			LiquidClass:      lcStandardSurface,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.hhsElution, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	if err := p.shake(ctx, ctrl, hhsElute, 10*time.Second, skip); err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hhsElution, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

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
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.hspPipette2,
		elutionUL, instrument.PipetteParams{
			LiquidClass:      lcStandardJet,
			AspirationHeight: 0.3,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiWaste, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	return ctrl.TransportResource(ctx, p.hspCPAC, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
}

func (p *Protocol) speTargetEnrichment(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.TransportResource(ctx, p.hspPipette2, p.hspCPAC, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipMix(ctx, p.tips50, p.spePos, vialMixUL, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter, AspirationHeight: 1})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.spePos, deck.Range(p.hspCPAC, n),
		volumes(n, speMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspCPAC, p.hspPipette2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	m, err := speMethod()
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hspPipette2, p.hspCPAC, m)
}

// sampleCleanup2 binds the enrichment reaction on a fresh MIDI plate
// and elutes the washed libraries onto a fresh PCR plate parked on
// the adapter shaker. The MIDI stack was emptied into the first
// cleanup's double selection, so it is restocked and reset here; the
// 300 uL tips reset with it ahead of the high volume transfers.
func (p *Protocol) sampleCleanup2(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation
	currentUL := elutionUL + speMixUL

	p.midiStack.ResetAll()
	p.tips300.ResetAll()

	plate, err := p.midiStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, plate, p.midiPipette, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	// Resuspend the bead stock before drawing the third aliquot.
	err = ctrl.PipMix(ctx, p.tips1000, p.beadPos, beadStockMixUL, 10,
		instrument.PipetteParams{LiquidClass: lcHighVolume, AspirationHeight: 1})
	if err != nil {
		return err
	}
	midi := deck.Range(p.midiPipette, n)
	err = ctrl.MultiDispense(ctx, p.tips300, p.beadPos, midi,
		volumes(n, beadVolumeUL), instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.MultiDispense(ctx, p.tips300, p.waterPos, midi,
		volumes(n, elutionBufferUL), instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspCPAC, p.midiPipette,
		currentUL, instrument.PipetteParams{LiquidClass: lcStandardJet})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.midiPipette, p.hhsBinding, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	if err := p.shake(ctx, ctrl, hhsBind, 10*time.Second, skip); err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hhsBinding, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.midiOnMagnet, p.midiWaste, currentUL+beadVolumeUL+elutionBufferUL, 30,
		instrument.PipetteParams{LiquidClass: lcStandardSurface}, 0)
	if err != nil {
		return err
	}
	for wash := 0; wash < 2; wash++ {
		err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
			p.ethanol.Container(), p.midiOnMagnet, p.midiWaste,
			ethanolWashUL, ethanolWashUL, 50,
			instrument.PipetteParams{LiquidClass: lcStandardSurface})
		if err != nil {
			return err
		}
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.PipTransfer(ctx, p.tips300, p.waterPos, deck.Range(p.midiOnMagnet, n),
		volumes(n, elutionUL), instrument.PipetteParams{
			LiquidClass:      lcStandardJet,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.hhsElution, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	if err := p.shake(ctx, ctrl, hhsElute, 10*time.Second, skip); err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, p.hhsElution, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(time.Minute).Wait(skip)

	// The spent adapter plate makes room for the library plate on the
	// heated position the PCR setup uses.
	err = ctrl.TransportResource(ctx, p.hhsAdapter, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	hsp, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, hsp, p.hhsAdapter, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.hhsAdapter,
		elutionUL, instrument.PipetteParams{
			LiquidClass:      lcStandardJet,
			AspirationHeight: 0.3,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiWaste, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	return ctrl.TransportResource(ctx, p.hspCPAC, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
}

// universalPCR indexes the enriched libraries and amplifies them. The
// finished plate lands on HSP_Pipette.
func (p *Protocol) universalPCR(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl

	err := ctrl.PipMix(ctx, p.tips50, p.upcrPos, vialMixUL, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter, AspirationHeight: 1})
	if err != nil {
		return err
	}
	err = ctrl.PipTransfer(ctx, p.tips50, p.upcrPos, deck.Range(p.hhsAdapter, n),
		volumes(n, universalPCRMixUL), instrument.PipetteParams{
			LiquidClass:      lc50ulFilter,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hhsAdapter, vialMixUL, 10,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	m, err := universalPCRMethod(pcrCycles(r.Params))
	if err != nil {
		return err
	}
	return p.cycle(ctx, r, p.hhsAdapter, p.hspPipette, m)
}

// shake runs one spin-settle interval on a heater shaker node.
func (p *Protocol) shake(ctx context.Context, ctrl instrument.Controller, node int, d time.Duration, skip bool) error {
	if err := ctrl.HHSStartShaker(ctx, node, shakerRPM); err != nil {
		return err
	}
	ctrl.StartTimer(d).Wait(skip)
	return ctrl.HHSStopShaker(ctx, node)
}

// cycle runs one thermal program: load the plate and a lid through
// the cycler door with the ISWAP, execute, wait, unload to dst.
func (p *Protocol) cycle(ctx context.Context, r *protocol.Run, src, dst *deck.Container, m *odtc.Method) error {
	ctrl := r.Ctrl
	if err := ctrl.ODTCOpenDoor(ctx, p.odtcDevice); err != nil {
		return err
	}
	err := ctrl.TransportResource(ctx, src, p.hspODTC, instrument.TransportOptions{
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

func volumes(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var _ protocol.Protocol = (*Protocol)(nil)
