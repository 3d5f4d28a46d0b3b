// Package hifiplex implements PacBio HiFiPlex multiplexed library
// prep: shear, post-shear bead cleanup, repair and A-tailing on the
// heater-shakers, adapter ligation and final pooling into a Falcon
// tube.
package hifiplex

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
	lcStandardJet    = "StandardVolumeFilter_Water_DispenseJet_Empty"
	lc50ulFilter     = "Tip_50ulFilter_Water_DispenseSurface_Empty"
	lc50ulJet        = "Tip_50ulFilter_Water_DispenseJet_Empty"
	lcBeadMix        = "PacBio_HighVolume_PurificationBeadsMix_SurfaceEmptyV2"
	lcBeadTransfer   = "PacBio_SVF_ProNexPurificationBeads_SurfaceEmpty_v3"
	lcElutionJet     = "PacBio_SVF_EB_SingleDispense_JetEmpty"
)

// Per-sample volumes in microliters.
const (
	erMixUL         = 5.5
	ligMixUL        = 10.5
	edtaUL          = 5.0
	ethanolWashUL   = 200
	elutionBufferUL = 25.5
	poolUL          = 50
	beadMixUL       = 1000
)

// Heater-shaker node assignments on this deck.
const (
	hhsRepair37 = 1
	hhsRepair65 = 2
	hhsMIDI     = 3
)

type Protocol struct {
	beads         *resources.ReagentTracked
	elutionBuffer *resources.ReagentTracked
	edta          *resources.ReagentTracked
	cpacReagents  *resources.ReagentTracked
	ethanol       *resources.ReagentTracked
	poolingTubes  *resources.ReagentTracked

	beadPos   []deck.Position
	ebPos     []deck.Position
	edtaPos   []deck.Position
	erMixPos  []deck.Position
	ligMixPos []deck.Position
	poolPos   []deck.Position

	hspStack *resources.StackedResources
	tips50   *resources.TrackedTips
	tips300  *resources.TrackedTips
	tips1000 *resources.TrackedTips
	support  *resources.TipSupportTracker

	midiOnMagnet  *deck.Container
	midiOffMagnet *deck.Container
	liquidWaste   *deck.Container
	midiWaste     *deck.Container
	hspWaste      *deck.Container
	hspPlate      *deck.Container
	hspPlate2     *deck.Container
	hspPark       *deck.Container
	hhs1          *deck.Container
	hhs2          *deck.Container
	hhs3          *deck.Container
}

func New() *Protocol { return &Protocol{} }

func init() {
	protocol.Default.Register(New())
}

func (p *Protocol) Name() string { return "hifiplex" }

func (p *Protocol) Description() string {
	return "PacBio HiFiPlex multiplexed library preparation"
}

func (p *Protocol) DefaultLayout() (*deck.Layout, error) {
	slots := map[string]deck.Kind{
		"MIDI_OnMagnet":   deck.KindPlate96,
		"MIDI_Pipette":    deck.KindPlate96,
		"LiquidWaste_MPH": deck.KindWaste96,
		"MIDI_Waste":      deck.KindWaste96,
		"HSP_Waste":       deck.KindWaste96,
		"HSP_Pipette":     deck.KindPlate96,
		"HSP_Pipette2":    deck.KindPlate96,
		"Stack_03_0003":   deck.KindPlate96,

		"RGT_Ethanol":               deck.KindBulkReservoir,
		"rgt_cont_60ml_BC_A00_0001": deck.KindReservoir60,
		"rgt_cont_60ml_BC_A00_0002": deck.KindReservoir60,
		"rgt_cont_60ml_BC_A00_0003": deck.KindReservoir60,
		"CPAC_HSP_0001":             deck.KindPlate96,
		"SMP_CAR_24_15x75_A00_0001": deck.KindFalconCarrier24,

		"HHS1_HSP":  deck.KindPlate96,
		"HHS2_HSP":  deck.KindPlate96,
		"HHS3_MIDI": deck.KindPlate96,
		"HHS4_MIDI": deck.KindPlate96,
		"HHS5_MIDI": deck.KindPlate96,

		"TipSupport_0001": deck.KindTip96,
	}
	addStack(slots, "BioRadHardShell_Stack4", deck.KindPlate96, 5)
	addStack(slots, "TIP_50uLF_L", deck.KindTip96, 8)
	addStack(slots, "STF_L", deck.KindTip96, 8)
	addStack(slots, "HTF_L", deck.KindTip96, 2)
	return deck.NewLayout("PacBio_MultiPlexLibraryPrepDeck_v1.2", slots)
}

func addStack(slots map[string]deck.Kind, prefix string, kind deck.Kind, count int) {
	for i := 1; i <= count; i++ {
		slots[fmt.Sprintf("%s_%04d", prefix, i)] = kind
	}
}

func (p *Protocol) Requirements(params protocol.Params) []consumables.Requirement {
	s := params.Samples
	return []consumables.Requirement{
		{Reagent: "MagBeads", PerSampleUL: params.SampleVolumeUL, Samples: s},
		{Reagent: "ElutionBuffer", PerSampleUL: elutionBufferUL, Samples: s},
		{Reagent: "ER_Mix", PerSampleUL: erMixUL, Samples: s},
		{Reagent: "RGT_LigMix", PerSampleUL: ligMixUL, Samples: s},
		{Reagent: "EDTA", PerSampleUL: edtaUL, Samples: s},
		{Reagent: "Ethanol", PerSampleUL: ethanolWashUL, Samples: s},
	}
}

func (p *Protocol) Setup(r *protocol.Run) error {
	l := r.Layout
	var err error

	fixed := []struct {
		name string
		kind deck.Kind
		dst  **deck.Container
	}{
		{"MIDI_OnMagnet", deck.KindPlate96, &p.midiOnMagnet},
		{"MIDI_Pipette", deck.KindPlate96, &p.midiOffMagnet},
		{"LiquidWaste_MPH", deck.KindWaste96, &p.liquidWaste},
		{"MIDI_Waste", deck.KindWaste96, &p.midiWaste},
		{"HSP_Waste", deck.KindWaste96, &p.hspWaste},
		{"HSP_Pipette", deck.KindPlate96, &p.hspPlate},
		{"HSP_Pipette2", deck.KindPlate96, &p.hspPlate2},
		{"Stack_03_0003", deck.KindPlate96, &p.hspPark},
		{"HHS1_HSP", deck.KindPlate96, &p.hhs1},
		{"HHS2_HSP", deck.KindPlate96, &p.hhs2},
		{"HHS3_MIDI", deck.KindPlate96, &p.hhs3},
	}
	for _, f := range fixed {
		if *f.dst, err = l.Item(f.name, f.kind); err != nil {
			return err
		}
	}

	if p.beads, p.beadPos, err = reservoir(l, "rgt_cont_60ml_BC_A00_0001", "MagBeads"); err != nil {
		return err
	}
	if p.elutionBuffer, p.ebPos, err = reservoir(l, "rgt_cont_60ml_BC_A00_0002", "ElutionBuffer"); err != nil {
		return err
	}
	if p.edta, p.edtaPos, err = reservoir(l, "rgt_cont_60ml_BC_A00_0003", "EDTA"); err != nil {
		return err
	}

	cpac, err := l.Item("CPAC_HSP_0001", deck.KindPlate96)
	if err != nil {
		return err
	}
	p.cpacReagents = resources.NewReagentTracked(cpac)
	if p.erMixPos, err = p.cpacReagents.AssignReagentMap("ER_Mix", []int{0}); err != nil {
		return err
	}
	if p.ligMixPos, err = p.cpacReagents.AssignReagentMap("RGT_LigMix", []int{1}); err != nil {
		return err
	}

	ethanol, err := l.Item("RGT_Ethanol", deck.KindBulkReservoir)
	if err != nil {
		return err
	}
	p.ethanol = resources.NewReagentTracked(ethanol)
	if _, err = p.ethanol.AssignReagentMap("Ethanol", seq(deck.KindBulkReservoir.Positions())); err != nil {
		return err
	}

	tubes, err := l.Item("SMP_CAR_24_15x75_A00_0001", deck.KindFalconCarrier24)
	if err != nil {
		return err
	}
	p.poolingTubes = resources.NewReagentTracked(tubes)
	if p.poolPos, err = p.poolingTubes.AssignReagentMap("PooledLibrary", []int{1}); err != nil {
		return err
	}

	if p.hspStack, err = resources.FromPrefix("BioRadHardShell_Stack4", "BioRadHardShell_Stack4", 5, deck.KindPlate96, l); err != nil {
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
			p.beads, p.elutionBuffer, p.edta, p.cpacReagents, p.ethanol, p.poolingTubes,
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
		{ID: "shear_dna", Title: "DNA Shearing", Run: p.shearDNA},
		{ID: "post_shear_cleanup", Title: "Post-Shear Cleanup", Run: p.postShearCleanup},
		{ID: "repair_and_a_tailing", Title: "Repair and A-Tailing", Run: p.repairAndATailing},
		{ID: "adapter_ligation", Title: "Adapter Ligation", Run: p.adapterLigation},
		{ID: "pooling_ligation", Title: "Pooling Ligation", Run: p.poolingLigation},
	}
}

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
	return r.Ctrl.CPACStartTempControl(ctx, 1, 1)
}

func (p *Protocol) shearDNA(ctx context.Context, r *protocol.Run) error {
	return r.Ctrl.MixPlate(ctx, p.tips300, p.support, r.Params.Samples, p.midiOnMagnet,
		100, 5, instrument.PipetteParams{LiquidClass: lcStandardJet})
}

func (p *Protocol) postShearCleanup(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation
	m1MixVolume := min(r.Params.SampleVolumeUL*1.6, beadMixUL)

	// Resuspend the beads before drawing from the reservoir.
	err := ctrl.PipMix(ctx, p.tips1000, p.beadPos, beadMixUL, 20,
		instrument.PipetteParams{LiquidClass: lcBeadMix})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips300, p.beadPos, deck.Range(p.midiOffMagnet, n),
		volumes(n, r.Params.SampleVolumeUL), instrument.PipetteParams{
			LiquidClass:    lcBeadTransfer,
			DispenseHeight: 1,
		})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiOffMagnet, m1MixVolume, 20,
		instrument.PipetteParams{LiquidClass: lcBeadTransfer})
	if err != nil {
		return err
	}
	bindTimer := ctrl.StartTimer(10 * time.Minute)

	// Pre-stamp elution buffer onto the fresh plate while beads bind.
	err = ctrl.MultiDispense(ctx, p.tips300, p.ebPos, deck.Range(p.hspPlate, n),
		volumes(n, elutionBufferUL), instrument.PipetteParams{
			LiquidClass:      lcElutionJet,
			AspirationHeight: 1,
			DispenseHeight:   1,
		})
	if err != nil {
		return err
	}
	bindTimer.Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiOffMagnet, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)

	err = ctrl.MixPlate(ctx, p.tips300, p.support, n, p.midiOnMagnet, m1MixVolume, 6,
		instrument.PipetteParams{LiquidClass: lcStandardVolume})
	if err != nil {
		return err
	}
	ctrl.StartTimer(3 * time.Minute).Wait(skip)

	// Large sample volumes need a bulk removal pass before the
	// double aspirate.
	if r.Params.SampleVolumeUL > 130 {
		err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.liquidWaste,
			r.Params.SampleVolumeUL*2, instrument.PipetteParams{
				LiquidClass:    lcStandardVolume,
				DispenseHeight: 10,
			})
		if err != nil {
			return err
		}
	}

	err = ctrl.DoubleAspirateSupernatant96(ctx, p.tips300, p.support, n,
		p.midiOnMagnet, p.liquidWaste, 270, 30,
		instrument.PipetteParams{LiquidClass: lcStandardVolume}, 0)
	if err != nil {
		return err
	}

	err = ctrl.EthanolWash(ctx, p.tips300, p.support, n,
		p.ethanol.Container(), p.midiOnMagnet, p.liquidWaste,
		ethanolWashUL, 242, 58,
		instrument.PipetteParams{LiquidClass: lcStandardVolume})
	if err != nil {
		return err
	}

	// Fresh tip inventory was reloaded for the back half of the
	// cleanup.
	p.tips300.ResetAll()

	ctrl.StartTimer(time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiOffMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.hspPlate, p.midiOffMagnet,
		26.0, instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 0.2,
			DispenseHeight:   2.0,
		})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.midiOffMagnet, p.hhs3, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)

	err = ctrl.TransportResource(ctx, p.hspPlate, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	fresh, err := p.hspStack.FetchNext()
	if err != nil {
		return err
	}
	err = ctrl.TransportResource(ctx, fresh, p.hspPlate, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hhs3, p.midiOnMagnet, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(200 * time.Second).Wait(skip)

	err = ctrl.Transfer96(ctx, p.tips300, p.support, n, p.midiOnMagnet, p.hspPlate,
		30, instrument.PipetteParams{
			LiquidClass:      lcStandardVolume,
			AspirationHeight: 0.3,
			DispenseHeight:   2.0,
		})
	if err != nil {
		return err
	}

	return ctrl.TransportResource(ctx, p.midiOnMagnet, p.midiWaste, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
}

func (p *Protocol) repairAndATailing(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation

	temp, err := ctrl.CPACTemperature(ctx, 1, 1)
	if err != nil {
		return err
	}
	r.Log.Info("cpac temperature", "celsius", temp)

	err = ctrl.PipTransfer(ctx, p.tips50, p.erMixPos, deck.Range(p.hspPlate, n),
		volumes(n, erMixUL), instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPlate, 24, 30,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	if err := ctrl.HHSStartTempCtrl(ctx, hhsRepair37, 37); err != nil {
		return err
	}
	if err := ctrl.HHSStartTempCtrl(ctx, hhsRepair65, 65); err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspPlate, p.hhs1, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(30 * time.Minute).Wait(skip)
	if err := ctrl.HHSStopTempCtrl(ctx, hhsRepair37); err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hhs1, p.hhs2, instrument.TransportOptions{
		Resource: instrument.GripMIDI,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(5 * time.Minute).Wait(skip)
	if err := ctrl.HHSStopTempCtrl(ctx, hhsRepair65); err != nil {
		return err
	}

	return ctrl.TransportResource(ctx, p.hhs2, p.hspPlate, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
}

func (p *Protocol) adapterLigation(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	ctrl := r.Ctrl
	skip := r.Params.DeviceSimulation

	err := ctrl.TransportResource(ctx, p.hspPlate2, p.hspPark, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}

	err = ctrl.PipTransfer(ctx, p.tips50, p.ligMixPos, deck.Range(p.hspPlate, n),
		volumes(n, ligMixUL), instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPlate, 34, 20,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	err = ctrl.TransportResource(ctx, p.hspPlate, p.hspPlate2, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
	if err != nil {
		return err
	}
	ctrl.StartTimer(30 * time.Minute).Wait(skip)

	// Stop the ligation with EDTA before the stamp back.
	err = ctrl.MultiDispense(ctx, p.tips50, p.edtaPos, deck.Range(p.hspPlate2, n),
		volumes(n, edtaUL), instrument.PipetteParams{LiquidClass: lc50ulJet})
	if err != nil {
		return err
	}

	err = ctrl.Transfer96(ctx, p.tips50, p.support, n, p.hspPlate2, p.hspPlate,
		50, instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	err = ctrl.MixPlate(ctx, p.tips50, p.support, n, p.hspPlate, 34, 3,
		instrument.PipetteParams{LiquidClass: lc50ulFilter})
	if err != nil {
		return err
	}

	return ctrl.TransportResource(ctx, p.hspPlate2, p.hspWaste, instrument.TransportOptions{
		Resource: instrument.GripPCR,
	})
}

// poolingLigation collects every ligated sample into a single tube on
// the Falcon carrier.
func (p *Protocol) poolingLigation(ctx context.Context, r *protocol.Run) error {
	n := r.Params.Samples
	return r.Ctrl.PipPool(ctx, p.tips50, deck.Range(p.hspPlate, n), p.poolPos,
		volumes(n, poolUL), instrument.PipetteParams{LiquidClass: lc50ulFilter})
}

func volumes(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var _ protocol.Protocol = (*Protocol)(nil)
