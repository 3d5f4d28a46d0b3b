package harness

import (
	"time"

	"prepdeck/internal/consumables"
	"prepdeck/internal/trace"
)

// StepOutcome is one recorded step result.
type StepOutcome struct {
	Seq    int    `json:"seq"`
	StepID string `json:"step_id"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Result is the outcome of a scenario execution. The trace, ledger
// and step log are complete even when RunErr is set; a scenario can
// assert on the partial run of a failing protocol.
type Result struct {
	Protocol string
	Token    string
	Events   []trace.Event
	Ledger   *consumables.Ledger
	Steps    []StepOutcome
	RunErr   error
}

// stepLog is an in-memory RunRecorder capturing step outcomes for
// step_status assertions. Begin/finish bookkeeping is irrelevant to
// scenarios and dropped.
type stepLog struct {
	steps []StepOutcome
}

func (l *stepLog) BeginRun(string, string, string, int, time.Time) error { return nil }

func (l *stepLog) RecordStep(_ string, seq int, stepID, status, detail string) error {
	l.steps = append(l.steps, StepOutcome{Seq: seq, StepID: stepID, Status: status, Detail: detail})
	return nil
}

func (l *stepLog) FinishRun(string, string, string, time.Time) error { return nil }

func (l *stepLog) RecordConsumption(string, string, string, float64, float64) error {
	return nil
}
