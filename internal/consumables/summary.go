package consumables

import (
	"fmt"
	"strings"

	"prepdeck/internal/resources"
)

// ReagentSummary is one row of the pre-flight consumption report.
type ReagentSummary struct {
	Reagent     string  `json:"reagent"`
	Container   string  `json:"container"`
	Wells       int     `json:"wells"`        // assigned well count
	RequiredUL  float64 `json:"required_ul"`  // computed need, 0 if no requirement given
	WithdrawnUL float64 `json:"withdrawn_ul"` // actual, 0 before a run
}

// Summarize maps each requirement to the vessel carrying its reagent
// and produces the per-reagent report, in requirement order followed
// by any assigned reagents without a requirement. Pure computation, no
// side effects.
func Summarize(vessels []*resources.ReagentTracked, requirements []Requirement, ledger *Ledger) []ReagentSummary {
	vesselFor := make(map[string]*resources.ReagentTracked)
	for _, v := range vessels {
		for _, name := range v.Reagents() {
			vesselFor[name] = v
		}
	}

	var out []ReagentSummary
	seen := make(map[string]bool)
	for _, req := range requirements {
		row := ReagentSummary{
			Reagent:    req.Reagent,
			RequiredUL: req.TotalUL(),
		}
		if v, ok := vesselFor[req.Reagent]; ok {
			row.Container = v.Container().Name
			row.Wells = len(v.Positions(req.Reagent))
			if ledger != nil {
				row.WithdrawnUL = ledger.WithdrawnUL(row.Container, req.Reagent)
			}
		}
		out = append(out, row)
		seen[req.Reagent] = true
	}

	// Assigned but unsized reagents still show up so the operator can
	// spot a missing requirement.
	for _, v := range vessels {
		for _, name := range v.Reagents() {
			if seen[name] {
				continue
			}
			row := ReagentSummary{
				Reagent:   name,
				Container: v.Container().Name,
				Wells:     len(v.Positions(name)),
			}
			if ledger != nil {
				row.WithdrawnUL = ledger.WithdrawnUL(row.Container, name)
			}
			out = append(out, row)
			seen[name] = true
		}
	}
	return out
}

// FormatSummary renders the report as the operator-facing table
// printed before a run.
func FormatSummary(rows []ReagentSummary) string {
	var b strings.Builder
	b.WriteString("Reagent requirements:\n")
	for _, row := range rows {
		loc := row.Container
		if loc == "" {
			loc = "(unassigned)"
		}
		fmt.Fprintf(&b, "  %-24s %10.1f uL  %s", row.Reagent, row.RequiredUL, loc)
		if row.Wells > 0 {
			fmt.Fprintf(&b, " (%d wells)", row.Wells)
		}
		if row.WithdrawnUL > 0 {
			fmt.Fprintf(&b, "  withdrawn %.1f uL", row.WithdrawnUL)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
