package consumables

// DefaultExcessFactor is the multiplier applied to computed reagent
// needs to cover pipetting dead volume and handling loss.
const DefaultExcessFactor = 1.1

// Requirement sizes one reagent for a run.
type Requirement struct {
	Reagent      string  // reagent name, matching its reagent map
	PerSampleUL  float64 // volume withdrawn per sample per use
	Samples      int     // sample count
	Repeats      int     // uses per run (e.g. 3 cleanup steps); 0 means 1
	ExcessFactor float64 // 0 means DefaultExcessFactor
}

// TotalUL returns the total volume required:
// per-sample x samples x repeats x excess.
// For 96 samples at 7.5 uL with excess 1.1 this is exactly 792.0.
func (r Requirement) TotalUL() float64 {
	repeats := r.Repeats
	if repeats == 0 {
		repeats = 1
	}
	excess := r.ExcessFactor
	if excess == 0 {
		excess = DefaultExcessFactor
	}
	return r.PerSampleUL * float64(r.Samples) * float64(repeats) * excess
}
