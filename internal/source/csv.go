// Package source loads fill records from CSV exports and writes enriched
// records back out.
//
// Raw columns go through the mapping in this order: the record-type column
// and any configured drops are removed, columns are renamed, then the core
// columns are parsed into the fixed event fields. Every other column is
// kept as a passthrough string.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/roach88/markout/internal/ir"
)

// integralTolerance is how far a quantity or time may be from an integer
// and still be cast to one (e.g. 1.00000002 -> 1).
var integralTolerance = decimal.New(1, -6)

// Mapping turns raw CSV columns into records.
type Mapping struct {
	Rename map[string]string
	Drop   []string
	Core   Core
	// Index names a column holding the original index. Empty means the
	// zero-based data row number.
	Index string
}

// FromPreset builds a mapping from a preset, with custom renames applied
// over the preset's.
func FromPreset(p Preset, rename map[string]string) Mapping {
	m := Mapping{Rename: maps.Clone(p.Rename), Core: p.Core}
	if m.Rename == nil {
		m.Rename = map[string]string{}
	}
	for k, v := range rename {
		m.Rename[k] = v
	}
	return m
}

// Validate checks that every core column is named and names are distinct.
func (m Mapping) Validate() error {
	named := map[string]string{
		"group_key": m.Core.GroupKey,
		"time":      m.Core.Time,
		"side":      m.Core.Side,
		"quantity":  m.Core.Quantity,
		"price":     m.Core.Price,
	}
	if m.Index != "" {
		named["index"] = m.Index
	}
	seen := map[string]string{}
	for _, field := range slices.Sorted(maps.Keys(named)) {
		col := named[field]
		if col == "" {
			return fmt.Errorf("columns.%s is required", field)
		}
		if prev, ok := seen[col]; ok {
			return fmt.Errorf("columns.%s and columns.%s both use column %q", prev, field, col)
		}
		seen[col] = field
	}
	return nil
}

func (m Mapping) isCore(col string) bool {
	return col == m.Core.GroupKey || col == m.Core.Time || col == m.Core.Side ||
		col == m.Core.Quantity || col == m.Core.Price || (m.Index != "" && col == m.Index)
}

// Table is the result of reading one file.
type Table struct {
	Records []ir.Record
	// Columns lists the passthrough column names, sorted.
	Columns []string
}

// ReadCSVFile reads a CSV file with the given mapping.
func ReadCSVFile(path string, m Mapping) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	return ReadCSV(f, m)
}

// ReadCSV decodes CSV rows into records. Row order is preserved; records
// are not sorted or grouped.
func ReadCSV(r io.Reader, m Mapping) (*Table, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	rows, err := gocsv.CSVToMaps(r)
	if err != nil {
		return nil, fmt.Errorf("decode csv: %w", err)
	}

	drop := map[string]bool{RecordTypeColumn: true}
	for _, c := range m.Drop {
		drop[c] = true
	}

	table := &Table{Records: make([]ir.Record, 0, len(rows))}
	passthrough := map[string]bool{}
	for i, raw := range rows {
		row := make(map[string]string, len(raw))
		for k, v := range raw {
			if drop[k] {
				continue
			}
			if renamed, ok := m.Rename[k]; ok {
				k = renamed
			}
			row[k] = v
		}

		ev, err := m.event(row, i)
		if err != nil {
			return nil, err
		}
		rec := ir.NewRecord(ev)
		for k, v := range row {
			if m.isCore(k) {
				continue
			}
			rec.Columns[k] = v
			passthrough[k] = true
		}
		table.Records = append(table.Records, rec)
	}
	table.Columns = slices.Sorted(maps.Keys(passthrough))
	return table, nil
}

func (m Mapping) event(row map[string]string, n int) (ir.Event, error) {
	get := func(col string) (string, error) {
		v, ok := row[col]
		if !ok {
			return "", fmt.Errorf("row %d: missing column %q", n, col)
		}
		return strings.TrimSpace(v), nil
	}

	var ev ir.Event
	var err error
	if ev.GroupKey, err = get(m.Core.GroupKey); err != nil {
		return ev, err
	}
	side, err := get(m.Core.Side)
	if err != nil {
		return ev, err
	}
	ev.Side = ir.Side(side)

	raw, err := get(m.Core.Time)
	if err != nil {
		return ev, err
	}
	if ev.Time, err = ParseIntegral(raw); err != nil {
		return ev, fmt.Errorf("row %d: column %q: %w", n, m.Core.Time, err)
	}

	if raw, err = get(m.Core.Quantity); err != nil {
		return ev, err
	}
	if ev.Quantity, err = ParseIntegral(raw); err != nil {
		return ev, fmt.Errorf("row %d: column %q: %w", n, m.Core.Quantity, err)
	}

	if raw, err = get(m.Core.Price); err != nil {
		return ev, err
	}
	if ev.Price, err = decimal.NewFromString(raw); err != nil {
		return ev, fmt.Errorf("row %d: column %q: %w", n, m.Core.Price, err)
	}

	ev.OriginalIndex = n
	if m.Index != "" {
		if raw, err = get(m.Index); err != nil {
			return ev, err
		}
		idx, err := strconv.Atoi(raw)
		if err != nil {
			return ev, fmt.Errorf("row %d: column %q: %w", n, m.Index, err)
		}
		ev.OriginalIndex = idx
	}
	return ev, nil
}

// ParseIntegral parses a number that must be an integer to within 1e-6.
func ParseIntegral(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	rounded := d.Round(0)
	if d.Sub(rounded).Abs().GreaterThan(integralTolerance) {
		return 0, fmt.Errorf("%s is not an integer", s)
	}
	return rounded.IntPart(), nil
}

// WriteCSV writes records with the base columns first, then columns in the
// given order. Missing values are written as empty cells.
func WriteCSV(w io.Writer, records []ir.Record, columns []string) error {
	cw := gocsv.NewSafeCSVWriter(csv.NewWriter(w))

	header := append(ir.BaseColumns(), columns...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	line := make([]string, len(header))
	for _, rec := range records {
		for i, col := range header {
			v, _ := rec.Get(col)
			line[i] = FormatValue(v)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write record %d: %w", rec.OriginalIndex, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FormatValue renders a column value as a CSV cell.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case ir.Side:
		return string(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if math.IsInf(val, 1) {
			return "inf"
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case decimal.Decimal:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
