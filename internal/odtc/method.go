package odtc

import (
	"prepdeck/internal/deck"
)

// Block and lid limits for the on-deck cycler.
const (
	MinBlockTempC = 4.0
	MaxBlockTempC = 99.0
	MaxLidTempC   = 110.0
)

// Configuration error codes for method construction.
const (
	CodeTempOutOfRange = "TEMP_OUT_OF_RANGE"
	CodeEmptyMethod    = "EMPTY_METHOD"
	CodeBadCycleCount  = "BAD_CYCLE_COUNT"
)

// Step holds the block at a plateau temperature for a fixed time.
type Step struct {
	PlateauTempC float64
	PlateauTimeS int
	LidTempC     float64
}

// Cycle repeats its inner steps count times.
type Cycle struct {
	Count int
	Steps []Step
}

type methodItem struct {
	step  *Step
	cycle *Cycle
}

// Method is an ordered thermal cycling program. Build one with
// SetPreMethod, AddStep and AddCycle, then marshal it to the vendor
// XML for upload.
type Method struct {
	Name            string
	Creator         string
	FluidQuantityUL int

	preBlockTempC float64
	preLidTempC   float64
	hasPre        bool
	items         []methodItem
	lastLidTempC  float64
}

// NewMethod creates an empty method. FluidQuantity selects the
// cycler's thermal model for the loaded volume.
func NewMethod(name, creator string, fluidQuantityUL int) *Method {
	return &Method{Name: name, Creator: creator, FluidQuantityUL: fluidQuantityUL}
}

func checkBlockTemp(tempC float64) error {
	if tempC < MinBlockTempC || tempC > MaxBlockTempC {
		return deck.NewConfigurationError(CodeTempOutOfRange,
			"block temperature %.1f outside %.0f..%.0f", tempC, MinBlockTempC, MaxBlockTempC)
	}
	return nil
}

func checkLidTemp(tempC float64) error {
	if tempC < MinBlockTempC || tempC > MaxLidTempC {
		return deck.NewConfigurationError(CodeTempOutOfRange,
			"lid temperature %.1f outside %.0f..%.0f", tempC, MinBlockTempC, MaxLidTempC)
	}
	return nil
}

// SetPreMethod conditions the block and lid before the first step,
// e.g. pre-cooling the block to 4 before samples are loaded.
func (m *Method) SetPreMethod(blockTempC, lidTempC float64) error {
	if err := checkBlockTemp(blockTempC); err != nil {
		return err
	}
	if err := checkLidTemp(lidTempC); err != nil {
		return err
	}
	m.preBlockTempC = blockTempC
	m.preLidTempC = lidTempC
	m.hasPre = true
	m.lastLidTempC = lidTempC
	return nil
}

// SetPreLid conditions only the lid, leaving the block at ambient.
func (m *Method) SetPreLid(lidTempC float64) error {
	if err := checkLidTemp(lidTempC); err != nil {
		return err
	}
	m.preLidTempC = lidTempC
	m.hasPre = true
	m.lastLidTempC = lidTempC
	return nil
}

// AddStep appends one plateau step.
func (m *Method) AddStep(plateauTempC float64, plateauTimeS int, lidTempC float64) error {
	if err := checkBlockTemp(plateauTempC); err != nil {
		return err
	}
	if err := checkLidTemp(lidTempC); err != nil {
		return err
	}
	m.items = append(m.items, methodItem{step: &Step{
		PlateauTempC: plateauTempC,
		PlateauTimeS: plateauTimeS,
		LidTempC:     lidTempC,
	}})
	m.lastLidTempC = lidTempC
	return nil
}

// AddPCRCycle appends a denature/anneal/extend group repeated count
// times, with the lid held at its current temperature.
func (m *Method) AddPCRCycle(denatTempC float64, denatTimeS int, annealTempC float64, annealTimeS int, extTempC float64, extTimeS int, count int) error {
	if count < 1 {
		return deck.NewConfigurationError(CodeBadCycleCount, "cycle count %d, want >= 1", count)
	}
	lid := m.lastLidTempC
	steps := []Step{
		{PlateauTempC: denatTempC, PlateauTimeS: denatTimeS, LidTempC: lid},
		{PlateauTempC: annealTempC, PlateauTimeS: annealTimeS, LidTempC: lid},
		{PlateauTempC: extTempC, PlateauTimeS: extTimeS, LidTempC: lid},
	}
	for _, s := range steps {
		if err := checkBlockTemp(s.PlateauTempC); err != nil {
			return err
		}
	}
	m.items = append(m.items, methodItem{cycle: &Cycle{Count: count, Steps: steps}})
	return nil
}

// AddFinalExtension appends a single extension step at the current
// lid temperature.
func (m *Method) AddFinalExtension(tempC float64, timeS int) error {
	return m.AddStep(tempC, timeS, m.lastLidTempC)
}

// StepCount returns the number of plateau steps after cycle
// expansion.
func (m *Method) StepCount() int {
	n := 0
	for _, it := range m.items {
		if it.step != nil {
			n++
		} else {
			n += it.cycle.Count * len(it.cycle.Steps)
		}
	}
	return n
}

// Duration returns the total programmed plateau time in seconds.
// Ramp times are cycler-dependent and not included.
func (m *Method) Duration() int {
	total := 0
	for _, it := range m.items {
		if it.step != nil {
			total += it.step.PlateauTimeS
			continue
		}
		per := 0
		for _, s := range it.cycle.Steps {
			per += s.PlateauTimeS
		}
		total += per * it.cycle.Count
	}
	return total
}

// cyclesByMass maps cDNA input mass to amplification cycle count, in
// ascending mass order.
var cyclesByMass = []struct {
	maxMassNG float64
	cycles    int
}{
	{50, 15},
	{250, 13},
	{600, 11},
	{1100, 9},
	{1500, 7},
}

// CyclesForInput returns the amplification cycle count for a cDNA
// input mass in nanograms.
func CyclesForInput(massNG float64) int {
	for _, r := range cyclesByMass {
		if massNG <= r.maxMassNG {
			return r.cycles
		}
	}
	return 5
}
