package protocol

import (
	"context"
	"log/slog"

	"prepdeck/internal/consumables"
	"prepdeck/internal/deck"
	"prepdeck/internal/instrument"
)

// Step is one named stage of a protocol. Steps run in declaration
// order; the ID is stable across versions and keys the run log.
type Step struct {
	ID    string
	Title string
	Run   func(ctx context.Context, r *Run) error
}

// Protocol is a library prep workflow: a deck layout, a consumable
// requirement table, a setup hook and an ordered step list.
//
// Setup builds the protocol's resource trackers against r.Layout and
// registers reagent vessels with the controller; it runs once, before
// the first step. Steps must not assume any state beyond what Setup
// established and what earlier steps left behind.
type Protocol interface {
	Name() string
	Description() string
	DefaultLayout() (*deck.Layout, error)
	Requirements(p Params) []consumables.Requirement
	Setup(r *Run) error
	Steps() []Step
}

// Run carries the per-run state every step receives: the deck, the
// controller, the volume ledger and the resolved parameters. One Run
// per execution; never reused.
type Run struct {
	Token  string
	Layout *deck.Layout
	Ctrl   instrument.Controller
	Ledger *consumables.Ledger
	Params Params
	Log    *slog.Logger
}

// NewRun assembles a run context. A nil logger falls back to
// slog.Default.
func NewRun(token string, layout *deck.Layout, ctrl instrument.Controller, ledger *consumables.Ledger, params Params, log *slog.Logger) *Run {
	if log == nil {
		log = slog.Default()
	}
	return &Run{
		Token:  token,
		Layout: layout,
		Ctrl:   ctrl,
		Ledger: ledger,
		Params: params,
		Log:    log,
	}
}
