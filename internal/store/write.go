package store

import (
	"fmt"
	"time"

	"prepdeck/internal/protocol"
)

// timeFormat keeps stored timestamps lexically sortable.
const timeFormat = time.RFC3339Nano

// BeginRun inserts the run row in 'running' state.
// Uses ON CONFLICT(token) DO NOTHING for idempotency - a retried begin
// for the same token is silently ignored.
func (s *Store) BeginRun(token, protocolName, layoutHash string, samples int, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (token, protocol, layout_hash, samples, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
	`,
		token,
		protocolName,
		layoutHash,
		samples,
		"running",
		startedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	return nil
}

// RecordStep appends one step outcome. The (run_token, seq) key makes
// a replayed step event idempotent.
func (s *Store) RecordStep(token string, seq int, stepID, status, detail string) error {
	_, err := s.db.Exec(`
		INSERT INTO step_events (run_token, seq, step_id, status, detail)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_token, seq) DO NOTHING
	`,
		token, seq, stepID, status, detail,
	)
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}

	return nil
}

// FinishRun closes the run row with its final status.
func (s *Store) FinishRun(token, status, errDetail string, finishedAt time.Time) error {
	_, err := s.db.Exec(`
		UPDATE runs
		SET status = ?, error = ?, finished_at = ?
		WHERE token = ?
	`,
		status, errDetail, finishedAt.UTC().Format(timeFormat), token,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	return nil
}

// RecordConsumption upserts the final tally for one reagent and
// container. A later write for the same key replaces the earlier one,
// so re-recording a ledger keeps the totals current.
func (s *Store) RecordConsumption(token, reagent, container string, requiredUL, withdrawnUL float64) error {
	_, err := s.db.Exec(`
		INSERT INTO consumption (run_token, reagent, container, required_ul, withdrawn_ul)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(run_token, reagent, container) DO UPDATE
		SET required_ul = excluded.required_ul, withdrawn_ul = excluded.withdrawn_ul
	`,
		token, reagent, container, requiredUL, withdrawnUL,
	)
	if err != nil {
		return fmt.Errorf("record consumption: %w", err)
	}

	return nil
}

var _ protocol.RunRecorder = (*Store)(nil)
