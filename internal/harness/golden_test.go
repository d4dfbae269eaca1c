package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden_RoundTrip(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/round_trip.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestRunWithGolden_UnclosedEntry(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/unclosed_entry.yaml")
	require.NoError(t, err)

	result, err := RunWithGolden(t, s)
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

// Scenarios without a checked-in golden file are compared against a
// snapshot written to a temp dir, which pins Snapshot's stability across
// runs.
func TestRunWithGolden_CustomFixtureDir(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadScenario("testdata/scenarios/oversell_abort_group.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	data, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, s.Name+".golden"), data, 0o644))

	_, err = RunWithGolden(t, s, goldie.WithFixtureDir(dir))
	require.NoError(t, err)
}

func TestSnapshot_FailedGroupAndOversell(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/oversell_abort_group.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	data, err := Snapshot(s.Name, result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"error_code":"ERR_OVERSELL"`)
	assert.Contains(t, string(data), `"status":"failed"`)

	s, err = LoadScenario("testdata/scenarios/oversell_without_split.yaml")
	require.NoError(t, err)
	result, err = Run(s)
	require.NoError(t, err)

	data, err = Snapshot(s.Name, result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"oversell":[{"episode":1,"exit_index":1,"remaining":30}]`)
}

func TestCheckGolden(t *testing.T) {
	dir := t.TempDir()
	s, err := LoadScenario("testdata/scenarios/partial_exit.yaml")
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)

	err = CheckGolden(dir, s.Name, result, false)
	assert.ErrorIs(t, err, ErrNoGolden)

	require.NoError(t, CheckGolden(dir, s.Name, result, true))
	require.NoError(t, CheckGolden(dir, s.Name, result, false))

	path := filepath.Join(dir, s.Name+".golden")
	require.NoError(t, os.WriteFile(path, []byte(`{"groups":[]}`), 0o644))
	err = CheckGolden(dir, s.Name, result, false)
	var mismatch *GoldenMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, path, mismatch.Path)
}
