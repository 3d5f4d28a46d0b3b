package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// RunRecord is one row of the runs table.
type RunRecord struct {
	Token      string
	Protocol   string
	LayoutHash string
	Samples    int
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while the run is still open
	Error      string
}

// StepEvent is one recorded step outcome.
type StepEvent struct {
	Seq    int
	StepID string
	Status string
	Detail string
}

// ConsumptionRow is the final tally for one reagent in one container.
type ConsumptionRow struct {
	Reagent     string
	Container   string
	RequiredUL  float64
	WithdrawnUL float64
}

// ErrRunNotFound is returned by ReadRun for unknown tokens.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns the run row for a token.
func (s *Store) ReadRun(ctx context.Context, token string) (RunRecord, error) {
	var (
		rec      RunRecord
		started  string
		finished sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT token, protocol, layout_hash, samples, status, started_at, finished_at, error
		FROM runs
		WHERE token = ?
	`, token).Scan(
		&rec.Token, &rec.Protocol, &rec.LayoutHash, &rec.Samples,
		&rec.Status, &started, &finished, &rec.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("read run %q: %w", token, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run: %w", err)
	}

	if rec.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return RunRecord{}, fmt.Errorf("read run: parse started_at: %w", err)
	}
	if finished.Valid {
		if rec.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
			return RunRecord{}, fmt.Errorf("read run: parse finished_at: %w", err)
		}
	}
	return rec, nil
}

// ListRuns returns the most recent runs, newest first. A limit of 0
// means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
		SELECT token, protocol, layout_hash, samples, status, started_at, finished_at, error
		FROM runs
		ORDER BY started_at DESC, token ASC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var (
			rec      RunRecord
			started  string
			finished sql.NullString
		)
		err := rows.Scan(
			&rec.Token, &rec.Protocol, &rec.LayoutHash, &rec.Samples,
			&rec.Status, &started, &finished, &rec.Error,
		)
		if err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		if rec.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("list runs: parse started_at: %w", err)
		}
		if finished.Valid {
			if rec.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
				return nil, fmt.Errorf("list runs: parse finished_at: %w", err)
			}
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: iterate: %w", err)
	}
	return runs, nil
}

// ReadSteps returns the step events of a run in execution order.
// Returns an empty slice (not nil) if no events exist for the token.
func (s *Store) ReadSteps(ctx context.Context, token string) ([]StepEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, step_id, status, detail
		FROM step_events
		WHERE run_token = ?
		ORDER BY seq ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read steps: %w", err)
	}
	defer rows.Close()

	steps := []StepEvent{}
	for rows.Next() {
		var ev StepEvent
		if err := rows.Scan(&ev.Seq, &ev.StepID, &ev.Status, &ev.Detail); err != nil {
			return nil, fmt.Errorf("read steps: scan: %w", err)
		}
		steps = append(steps, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read steps: iterate: %w", err)
	}
	return steps, nil
}

// ReadConsumption returns the consumable tallies of a run ordered by
// reagent then container for stable report output.
func (s *Store) ReadConsumption(ctx context.Context, token string) ([]ConsumptionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reagent, container, required_ul, withdrawn_ul
		FROM consumption
		WHERE run_token = ?
		ORDER BY reagent ASC, container ASC
	`, token)
	if err != nil {
		return nil, fmt.Errorf("read consumption: %w", err)
	}
	defer rows.Close()

	out := []ConsumptionRow{}
	for rows.Next() {
		var row ConsumptionRow
		if err := rows.Scan(&row.Reagent, &row.Container, &row.RequiredUL, &row.WithdrawnUL); err != nil {
			return nil, fmt.Errorf("read consumption: scan: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read consumption: iterate: %w", err)
	}
	return out, nil
}
