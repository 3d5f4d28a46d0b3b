package protocol

import (
	"context"
	"fmt"
	"time"
)

// RunRecorder persists run outcomes. Implemented by the SQLite store;
// tests use NopRecorder.
type RunRecorder interface {
	BeginRun(token, protocol, layoutHash string, samples int, startedAt time.Time) error
	RecordStep(token string, seq int, stepID, status, detail string) error
	FinishRun(token, status, errDetail string, finishedAt time.Time) error
	RecordConsumption(token, reagent, container string, requiredUL, withdrawnUL float64) error
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) BeginRun(string, string, string, int, time.Time) error { return nil }
func (NopRecorder) RecordStep(string, int, string, string, string) error  { return nil }
func (NopRecorder) FinishRun(string, string, string, time.Time) error     { return nil }
func (NopRecorder) RecordConsumption(string, string, string, float64, float64) error {
	return nil
}

// Step and run statuses as stored in the run log.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusSkipped = "skipped"
)

// Runner executes protocols step by step against a recorder.
type Runner struct {
	rec RunRecorder
	now func() time.Time
}

// NewRunner creates a runner persisting to rec. A nil recorder means
// outcomes are not persisted.
func NewRunner(rec RunRecorder) *Runner {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Runner{rec: rec, now: time.Now}
}

// Execute runs setup then every step in order. The first failure
// aborts the run; remaining steps are recorded as skipped. The run
// row is finished in all cases, including context cancellation.
func (rn *Runner) Execute(ctx context.Context, p Protocol, r *Run) error {
	layoutHash, err := r.Layout.Hash()
	if err != nil {
		return fmt.Errorf("hashing layout: %w", err)
	}
	if err := rn.rec.BeginRun(r.Token, p.Name(), layoutHash, r.Params.Samples, rn.now()); err != nil {
		return fmt.Errorf("recording run start: %w", err)
	}

	runErr := rn.execute(ctx, p, r)

	status := StatusOK
	detail := ""
	if runErr != nil {
		status = StatusError
		detail = runErr.Error()
	}
	if err := rn.rec.FinishRun(r.Token, status, detail, rn.now()); err != nil && runErr == nil {
		return fmt.Errorf("recording run finish: %w", err)
	}
	return runErr
}

func (rn *Runner) execute(ctx context.Context, p Protocol, r *Run) error {
	log := r.Log.With("protocol", p.Name(), "run", r.Token)

	if err := p.Setup(r); err != nil {
		log.Error("setup failed", "error", err)
		return fmt.Errorf("setup: %w", err)
	}
	log.Info("setup complete", "samples", r.Params.Samples)

	steps := p.Steps()
	failedAt := -1
	var stepErr error

	for i, step := range steps {
		if failedAt >= 0 {
			rn.rec.RecordStep(r.Token, i, step.ID, StatusSkipped, "")
			continue
		}
		if err := ctx.Err(); err != nil {
			failedAt = i
			stepErr = err
			rn.rec.RecordStep(r.Token, i, step.ID, StatusError, err.Error())
			continue
		}

		log.Info("step start", "step", step.ID, "title", step.Title)
		if err := step.Run(ctx, r); err != nil {
			log.Error("step failed", "step", step.ID, "error", err)
			rn.rec.RecordStep(r.Token, i, step.ID, StatusError, err.Error())
			failedAt = i
			stepErr = fmt.Errorf("step %s: %w", step.ID, err)
			continue
		}
		rn.rec.RecordStep(r.Token, i, step.ID, StatusOK, "")
	}

	if stepErr != nil {
		return stepErr
	}

	for _, e := range r.Ledger.Entries() {
		rn.rec.RecordConsumption(r.Token, e.Reagent, e.Container, 0, e.WithdrawnUL)
	}
	log.Info("run complete", "steps", len(steps))
	return nil
}
