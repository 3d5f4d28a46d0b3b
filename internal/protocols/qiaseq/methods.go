package qiaseq

import (
	"prepdeck/internal/odtc"
	"prepdeck/internal/protocol"
)

// firstStrandMethod covers the FastSelect rRNA depletion ramp and the
// reverse transcription in one program.
func firstStrandMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("QIAseq_First_Strand_Synthesis", "prepdeck", 100)
	if err := m.SetPreMethod(4, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(95, 180, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(25, 600, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(42, 1800, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(70, 900, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 103); err != nil {
		return nil, err
	}
	return m, nil
}

func secondStrandMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("QIAseq_Second_Strand_Synthesis", "prepdeck", 120)
	if err := m.SetPreMethod(20, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(37, 420, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(65, 600, 103); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 103); err != nil {
		return nil, err
	}
	return m, nil
}

func endRepairMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("QIAseq_End_Repair_A_Tailing", "prepdeck", 140)
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

func ligationMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("QIAseq_Adapter_Ligation", "prepdeck", 165)
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

// speMethod runs the fixed-count enrichment cycles with the long 68
// degree annealing plateau the SPE primers need.
func speMethod() (*odtc.Method, error) {
	m := odtc.NewMethod("QIAseq_SPE_Target_Enrichment", "prepdeck", 70)
	if err := m.SetPreLid(105); err != nil {
		return nil, err
	}
	if err := m.AddStep(95, 900, 105); err != nil {
		return nil, err
	}
	if err := m.AddPCRCycle(95, 15, 68, 600, 72, 30, speCycles); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 105); err != nil {
		return nil, err
	}
	return m, nil
}

func universalPCRMethod(cycles int) (*odtc.Method, error) {
	m := odtc.NewMethod("QIAseq_Universal_PCR", "prepdeck", 55)
	if err := m.SetPreLid(105); err != nil {
		return nil, err
	}
	if err := m.AddStep(95, 900, 105); err != nil {
		return nil, err
	}
	if err := m.AddPCRCycle(95, 15, 60, 120, 72, 30, cycles); err != nil {
		return nil, err
	}
	if err := m.AddFinalExtension(72, 300); err != nil {
		return nil, err
	}
	if err := m.AddStep(4, 600, 105); err != nil {
		return nil, err
	}
	return m, nil
}

// pcrCycles resolves the universal PCR cycle count from the explicit
// override or the input mass.
func pcrCycles(p protocol.Params) int {
	if p.PCRCycles > 0 {
		return p.PCRCycles
	}
	return odtc.CyclesForInput(p.InputMassNG)
}
