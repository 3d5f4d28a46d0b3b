package consumables

import (
	"sort"

	"prepdeck/internal/deck"
	"prepdeck/internal/resources"
)

// Ledger accumulates the volume withdrawn per (container, reagent)
// across all tracked aspirates in a run. Pure bookkeeping; it never
// blocks a pipetting call.
type Ledger struct {
	withdrawn map[ledgerKey]float64
}

type ledgerKey struct {
	container string
	reagent   string
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{withdrawn: make(map[ledgerKey]float64)}
}

// RecordAspirate adds a withdrawal of volumeUL against a reagent on a
// container.
func (l *Ledger) RecordAspirate(container *deck.Container, reagent string, volumeUL float64) {
	l.withdrawn[ledgerKey{container: container.Name, reagent: reagent}] += volumeUL
}

// TrackedAspirate resolves each source position to its claiming
// reagent on the vessel and records the per-position volumes. Unknown
// wells (positions never claimed by a reagent map) are recorded under
// the empty reagent name so the withdrawal is still visible in
// reports.
func (l *Ledger) TrackedAspirate(vessel *resources.ReagentTracked, positions []deck.Position, volumesUL []float64) {
	for i, pos := range positions {
		if i >= len(volumesUL) {
			break
		}
		reagent, _ := vessel.ReagentAt(pos.Index)
		l.RecordAspirate(pos.Container, reagent, volumesUL[i])
	}
}

// WithdrawnUL returns the cumulative withdrawal for a reagent on a
// container.
func (l *Ledger) WithdrawnUL(container, reagent string) float64 {
	return l.withdrawn[ledgerKey{container: container, reagent: reagent}]
}

// TotalWithdrawnUL returns the cumulative withdrawal for a reagent
// across all containers.
func (l *Ledger) TotalWithdrawnUL(reagent string) float64 {
	var total float64
	for k, v := range l.withdrawn {
		if k.reagent == reagent {
			total += v
		}
	}
	return total
}

// Entry is one (container, reagent) accumulation.
type Entry struct {
	Container   string
	Reagent     string
	WithdrawnUL float64
}

// Entries returns all accumulations sorted by container then reagent,
// for deterministic reporting.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, 0, len(l.withdrawn))
	for k, v := range l.withdrawn {
		out = append(out, Entry{Container: k.container, Reagent: k.reagent, WithdrawnUL: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Container != out[j].Container {
			return out[i].Container < out[j].Container
		}
		return out[i].Reagent < out[j].Reagent
	})
	return out
}
