package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/markout/internal/ir"
)

// GoldenDir is where golden snapshots live, relative to the test package.
const GoldenDir = "testdata/golden"

// Snapshot renders the per-group outcome of a run as canonical JSON.
// Digests are left out so snapshots stay readable; they are covered by the
// determinism checks instead.
func Snapshot(name string, result *Result) ([]byte, error) {
	groups := make(ir.IRArray, len(result.Groups))
	for i, g := range result.Groups {
		matches := make(ir.IRArray, len(g.Matches))
		for j, m := range g.Matches {
			matches[j] = m.IR()
		}
		obj := ir.IRObject{
			"group_key": ir.IRString(g.Key),
			"status":    ir.IRString(g.Status),
			"matches":   matches,
		}
		if g.ErrorCode != "" {
			obj["error_code"] = ir.IRString(g.ErrorCode)
		}
		if len(g.Oversell) > 0 {
			flags := make(ir.IRArray, len(g.Oversell))
			for j, f := range g.Oversell {
				flags[j] = ir.IRObject{
					"episode":    ir.IRInt(f.Episode),
					"exit_index": ir.IRInt(f.ExitIndex),
					"remaining":  ir.IRInt(f.Remaining),
				}
			}
			obj["oversell"] = flags
		}
		groups[i] = obj
	}

	data, err := ir.MarshalCanonical(ir.IRObject{
		"scenario_name": ir.IRString(name),
		"groups":        groups,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", name, err)
	}
	return data, nil
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden. Extra goldie options (for example
// a different fixture dir) are applied after the defaults.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := New().Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}

	g := goldie.New(t, append([]goldie.Option{
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	}, opts...)...)
	g.Assert(t, name, data)
	return nil
}

// ErrNoGolden is returned by CheckGolden when the golden file is missing.
var ErrNoGolden = errors.New("golden file missing")

// GoldenMismatchError reports a snapshot that differs from its golden file.
type GoldenMismatchError struct {
	Path     string
	Expected []byte
	Actual   []byte
}

func (e *GoldenMismatchError) Error() string {
	return fmt.Sprintf("snapshot differs from %s\nexpected: %s\nactual:   %s", e.Path, e.Expected, e.Actual)
}

// CheckGolden compares a result's snapshot with dir/{name}.golden outside of
// go test. With update set the file is (re)written instead.
func CheckGolden(dir, name string, result *Result, update bool) error {
	data, err := Snapshot(name, result)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden dir: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write golden: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, ErrNoGolden)
	}
	if err != nil {
		return fmt.Errorf("read golden: %w", err)
	}
	if !bytes.Equal(bytes.TrimRight(want, "\n"), data) {
		return &GoldenMismatchError{Path: path, Expected: want, Actual: data}
	}
	return nil
}
