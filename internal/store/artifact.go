package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/waveguide/internal/jit"
)

// ArtifactInfo summarizes a cached artifact without its code.
type ArtifactInfo struct {
	Hash     string `json:"hash"`
	Backend  string `json:"backend"`
	CodeSize int    `json:"code_size"`
	Seq      int64  `json:"seq"`
	Hits     int64  `json:"hits"`
}

// PutArtifact caches the assembled code for the program with the given
// hash. Uses ON CONFLICT(hash) DO NOTHING: the first artifact stored for a
// hash wins, since equal hashes assemble to equal code.
func (s *Store) PutArtifact(ctx context.Context, hash, backend string, a jit.Artifact) error {
	layoutJSON, err := marshalLayout(a)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	defer tx.Rollback()

	seq, err := nextSeq(ctx, tx, "artifacts")
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO artifacts (hash, backend, code, layout, seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, backend, a.Code, layoutJSON, seq)
	if err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put artifact: %w", err)
	}
	return nil
}

// GetArtifact returns the cached artifact for hash and counts the hit.
// The boolean is false when nothing is cached under hash.
func (s *Store) GetArtifact(ctx context.Context, hash string) (jit.Artifact, bool, error) {
	var (
		code       []byte
		layoutJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT code, layout FROM artifacts WHERE hash = ?
	`, hash).Scan(&code, &layoutJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return jit.Artifact{}, false, nil
	}
	if err != nil {
		return jit.Artifact{}, false, fmt.Errorf("get artifact: %w", err)
	}

	a, err := unmarshalLayout(code, layoutJSON)
	if err != nil {
		return jit.Artifact{}, false, fmt.Errorf("get artifact %s: %w", hash, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE artifacts SET hits = hits + 1 WHERE hash = ?`, hash); err != nil {
		return jit.Artifact{}, false, fmt.Errorf("get artifact: %w", err)
	}
	return a, true, nil
}

// ListArtifacts returns every cached artifact in insertion order.
// Returns an empty slice (not nil) when the cache is empty.
func (s *Store) ListArtifacts(ctx context.Context) ([]ArtifactInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash, backend, length(code), seq, hits
		FROM artifacts
		ORDER BY seq ASC, hash COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer rows.Close()

	infos := []ArtifactInfo{}
	for rows.Next() {
		var info ArtifactInfo
		if err := rows.Scan(&info.Hash, &info.Backend, &info.CodeSize, &info.Seq, &info.Hits); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate artifacts: %w", err)
	}
	return infos, nil
}

// ClearArtifacts deletes every cached artifact and returns how many were
// removed. The run log is left untouched.
func (s *Store) ClearArtifacts(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artifacts`)
	if err != nil {
		return 0, fmt.Errorf("clear artifacts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear artifacts: %w", err)
	}
	return n, nil
}
