package tenxgex

import (
	"prepdeck/internal/odtc"
	"prepdeck/internal/protocol"
)

// Thermal programs for the three on-cycler incubations. Lid and block
// temperatures follow the 10X GEX user guide.

func fragmentationMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("10x_fragmentation", "prepdeck", 50)
	if err := m.SetPreMethod(4, 65); err != nil {
		return nil, err
	}
	if err := m.AddStep(32, 300, 65); err != nil {
		return nil, err
	}
	if err := m.AddStep(65, 1800, 65); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 65); err != nil {
		return nil, err
	}
	return m, nil
}

func ligationMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("10x_adapter_ligation", "prepdeck", 90)
	if err := m.SetPreMethod(20, 30); err != nil {
		return nil, err
	}
	if err := m.AddStep(20, 900, 30); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 30); err != nil {
		return nil, err
	}
	return m, nil
}

func sampleIndexMethod(cycles int) (*odtc.Method, error) {
	m := odtc.NewMethod("10x_sample_index_pcr", "prepdeck", 100)
	if err := m.SetPreLid(105); err != nil {
		return nil, err
	}
	if err := m.AddStep(98, 45, 105); err != nil {
		return nil, err
	}
	if err := m.AddPCRCycle(98, 20, 54, 30, 72, 20, cycles); err != nil {
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

// pcrCycles resolves the amplification cycle count: an explicit
// override wins, otherwise the count comes from the cDNA input mass.
func pcrCycles(p protocol.Params) int {
	if p.PCRCycles > 0 {
		return p.PCRCycles
	}
	return odtc.CyclesForInput(p.InputMassNG)
}
