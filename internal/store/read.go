package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/roach88/markout/internal/ir"
)

// ListRuns returns every run ordered by seq ASC.
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, config_digest, engine_version, schema_version, input
		FROM runs
		ORDER BY seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Seq, &r.ConfigDigest, &r.EngineVersion, &r.SchemaVersion, &r.Input); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run by id, or ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	r := Run{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seq, config_digest, engine_version, schema_version, input
		FROM runs
		WHERE id = ?
	`, id).Scan(&r.ID, &r.Seq, &r.ConfigDigest, &r.EngineVersion, &r.SchemaVersion, &r.Input)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("run %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("get run %q: %w", id, err)
	}
	return r, nil
}

// LatestRun returns the run with the highest seq, or ErrNotFound.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM runs ORDER BY seq DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return s.GetRun(ctx, id)
}

// ReadGroups returns the group results of a run ordered by seq ASC.
func (s *Store) ReadGroups(ctx context.Context, runID string) ([]GroupResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, group_key, seq, status, input_count, input_digest, match_digest, match_count, error, flags
		FROM group_results
		WHERE run_id = ?
		ORDER BY seq ASC, group_key COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query group results: %w", err)
	}
	defer rows.Close()

	groups := []GroupResult{}
	for rows.Next() {
		var (
			g      GroupResult
			status string
			flags  string
		)
		err := rows.Scan(&g.RunID, &g.GroupKey, &g.Seq, &status, &g.InputCount,
			&g.InputDigest, &g.MatchDigest, &g.MatchCount, &g.Error, &flags)
		if err != nil {
			return nil, fmt.Errorf("scan group result: %w", err)
		}
		g.Status = Status(status)
		if g.Flags, err = unmarshalFlags(flags); err != nil {
			return nil, fmt.Errorf("group %q: %w", g.GroupKey, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate group results: %w", err)
	}
	return groups, nil
}

// ReadMatches returns the stored matches of a run. An empty groupKey reads
// every group. Results are ordered by group seq, then match seq.
func (s *Store) ReadMatches(ctx context.Context, runID, groupKey string) ([]ir.MatchRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.group_key, m.episode_id, m.entry_side, m.entry_index, m.exit_index, m.entry_time,
		       m.exit_time, m.entry_price, m.exit_price, m.matched_quantity, m.holding_period,
		       m.markout, m.is_closed
		FROM matches m
		JOIN group_results g ON g.run_id = m.run_id AND g.group_key = m.group_key
		WHERE m.run_id = ? AND (? = '' OR m.group_key = ?)
		ORDER BY g.seq ASC, m.seq ASC
	`, runID, groupKey, groupKey)
	if err != nil {
		return nil, fmt.Errorf("query matches: %w", err)
	}
	defer rows.Close()

	matches := []ir.MatchRecord{}
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

func scanMatch(rows *sql.Rows) (ir.MatchRecord, error) {
	var (
		m          ir.MatchRecord
		entrySide  string
		exitIndex  sql.NullInt64
		exitTime   sql.NullInt64
		entryPrice string
		exitPrice  sql.NullString
		holding    sql.NullInt64
		markout    string
	)
	err := rows.Scan(&m.GroupKey, &m.EpisodeID, &entrySide, &m.EntryIndex, &exitIndex, &m.EntryTime,
		&exitTime, &entryPrice, &exitPrice, &m.MatchedQuantity, &holding, &markout, &m.Closed)
	if err != nil {
		return m, fmt.Errorf("scan match: %w", err)
	}

	m.EntrySide = ir.Side(entrySide)
	if exitIndex.Valid {
		idx := int(exitIndex.Int64)
		m.ExitIndex = &idx
	}
	if exitTime.Valid {
		t := exitTime.Int64
		m.ExitTime = &t
	}
	if m.EntryPrice, err = decimal.NewFromString(entryPrice); err != nil {
		return m, fmt.Errorf("scan match: entry_price: %w", err)
	}
	if exitPrice.Valid {
		p, err := decimal.NewFromString(exitPrice.String)
		if err != nil {
			return m, fmt.Errorf("scan match: exit_price: %w", err)
		}
		m.ExitPrice = &p
	}
	m.HoldingPeriod = math.Inf(1)
	if holding.Valid {
		m.HoldingPeriod = float64(holding.Int64)
	}
	if m.Markout, err = decimal.NewFromString(markout); err != nil {
		return m, fmt.Errorf("scan match: markout: %w", err)
	}
	return m, nil
}

func unmarshalFlags(data string) ([]string, error) {
	var flags []string
	if err := json.Unmarshal([]byte(data), &flags); err != nil {
		return nil, fmt.Errorf("unmarshal flags: %w", err)
	}
	if len(flags) == 0 {
		return nil, nil
	}
	return flags, nil
}

func nullDecimal(v *decimal.Decimal) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: v.String(), Valid: true}
}
