package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Run records one execution of a compiled program.
type Run struct {
	ID          string            `json:"id"`           // UUIDv7, assigned by RecordRun when empty
	Seq         int64             `json:"seq"`          // logical clock, assigned by RecordRun
	ProgramHash string            `json:"program_hash"` // ir.Hash of the specialized program
	Source      string            `json:"source"`       // where the program was loaded from
	Result      int64             `json:"result"`       // 0, or the 1-based ordinal of the failing assert
	Inputs      map[string]string `json:"inputs"`       // input name -> formatted value
	Outputs     map[string]string `json:"outputs"`      // output name -> formatted value
}

// NewRunID returns a fresh time-ordered run identifier.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// RecordRun appends a run to the log and returns it with ID and Seq set.
func (s *Store) RecordRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	inputsJSON, err := marshalValues(run.Inputs)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	outputsJSON, err := marshalValues(run.Outputs)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	run.Seq, err = nextSeq(ctx, tx, "runs")
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, program_hash, source, result, inputs, outputs)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Seq, run.ProgramHash, run.Source, run.Result, inputsJSON, outputsJSON)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

// ListRuns returns logged runs ordered by seq ASC, id ASC COLLATE BINARY.
// An empty programHash lists every run; limit <= 0 means no limit, and a
// positive limit keeps the most recent runs.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, programHash string, limit int) ([]Run, error) {
	query := `
		SELECT id, seq, program_hash, source, result, inputs, outputs
		FROM runs
		WHERE (? = '' OR program_hash = ?)
		ORDER BY seq DESC, id COLLATE BINARY DESC
	`
	args := []any{programHash, programHash}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT * FROM (`+query+`) ORDER BY seq ASC, id COLLATE BINARY ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			run                     Run
			inputsJSON, outputsJSON string
		)
		if err := rows.Scan(&run.ID, &run.Seq, &run.ProgramHash, &run.Source, &run.Result, &inputsJSON, &outputsJSON); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.Inputs, err = unmarshalValues(inputsJSON); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		if run.Outputs, err = unmarshalValues(outputsJSON); err != nil {
			return nil, fmt.Errorf("run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
