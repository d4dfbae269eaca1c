package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/markout/internal/ir"
)

// Status is the outcome of one group.
type Status string

const (
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Run is one engine pass over an input.
type Run struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	ConfigDigest  string `json:"config_digest"`
	EngineVersion string `json:"engine_version"`
	SchemaVersion string `json:"schema_version"`
	Input         string `json:"input,omitempty"`
}

// GroupResult is the stored outcome of one group within a run.
type GroupResult struct {
	RunID       string   `json:"run_id"`
	GroupKey    string   `json:"group_key"`
	Seq         int      `json:"seq"`
	Status      Status   `json:"status"`
	InputCount  int      `json:"input_count"`
	InputDigest string   `json:"input_digest"`
	MatchDigest string   `json:"match_digest,omitempty"`
	MatchCount  int      `json:"match_count"`
	Error       string   `json:"error,omitempty"`
	Flags       []string `json:"flags,omitempty"`
}

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("not found")

// BeginRun records a new run and assigns its seq.
// If run.ID is empty, an id is taken from gen.
func (s *Store) BeginRun(ctx context.Context, run Run, gen IDGenerator) (Run, error) {
	if run.ID == "" {
		if gen == nil {
			gen = UUIDv7Generator{}
		}
		run.ID = gen.Generate()
	}
	if run.EngineVersion == "" {
		run.EngineVersion = ir.EngineVersion
	}
	if run.SchemaVersion == "" {
		run.SchemaVersion = ir.SchemaVersion
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return run, fmt.Errorf("begin run: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq); err != nil {
		return run, fmt.Errorf("begin run: next seq: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, seq, config_digest, engine_version, schema_version, input)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.Seq, run.ConfigDigest, run.EngineVersion, run.SchemaVersion, run.Input)
	if err != nil {
		return run, fmt.Errorf("begin run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("begin run: commit: %w", err)
	}
	return run, nil
}

// WriteGroup stores a group result and its matches atomically.
//
// Any earlier result for the same run and group is replaced, so retrying a
// group is idempotent. Matches are only stored for StatusOK; a failed group
// keeps its result row so the failure is visible.
func (s *Store) WriteGroup(ctx context.Context, g GroupResult, matches []ir.MatchRecord) error {
	if g.Status != StatusOK && g.Status != StatusFailed {
		return fmt.Errorf("write group %q: invalid status %q", g.GroupKey, g.Status)
	}
	if g.Status == StatusFailed {
		matches = nil
	}
	g.MatchCount = len(matches)

	flags, err := marshalFlags(g.Flags)
	if err != nil {
		return fmt.Errorf("write group %q: %w", g.GroupKey, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write group %q: begin: %w", g.GroupKey, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM matches WHERE run_id = ? AND group_key = ?`, g.RunID, g.GroupKey); err != nil {
		return fmt.Errorf("write group %q: clear matches: %w", g.GroupKey, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_results WHERE run_id = ? AND group_key = ?`, g.RunID, g.GroupKey); err != nil {
		return fmt.Errorf("write group %q: clear result: %w", g.GroupKey, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO group_results
		(run_id, group_key, seq, status, input_count, input_digest, match_digest, match_count, error, flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		g.RunID,
		g.GroupKey,
		g.Seq,
		string(g.Status),
		g.InputCount,
		g.InputDigest,
		g.MatchDigest,
		g.MatchCount,
		g.Error,
		flags,
	)
	if err != nil {
		return fmt.Errorf("write group %q: %w", g.GroupKey, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches
		(run_id, group_key, seq, episode_id, entry_side, entry_index, exit_index, entry_time, exit_time,
		 entry_price, exit_price, matched_quantity, holding_period, markout, is_closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("write group %q: prepare: %w", g.GroupKey, err)
	}
	defer stmt.Close()

	for i, m := range matches {
		_, err := stmt.ExecContext(ctx,
			g.RunID,
			g.GroupKey,
			i+1,
			m.EpisodeID,
			string(m.EntrySide),
			m.EntryIndex,
			nullInt(m.ExitIndex),
			m.EntryTime,
			nullInt64(m.ExitTime),
			m.EntryPrice.String(),
			nullDecimal(m.ExitPrice),
			m.MatchedQuantity,
			nullHolding(m.HoldingPeriod),
			m.Markout.String(),
			m.Closed,
		)
		if err != nil {
			return fmt.Errorf("write group %q: match %d: %w", g.GroupKey, i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write group %q: commit: %w", g.GroupKey, err)
	}
	return nil
}

// marshalFlags stores flag messages as a JSON array; nil becomes "[]".
func marshalFlags(flags []string) (string, error) {
	if flags == nil {
		flags = []string{}
	}
	data, err := json.Marshal(flags)
	if err != nil {
		return "", fmt.Errorf("marshal flags: %w", err)
	}
	return string(data), nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// nullHolding stores an infinite holding period as NULL.
func nullHolding(hp float64) sql.NullInt64 {
	if math.IsInf(hp, 1) {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(hp), Valid: true}
}
