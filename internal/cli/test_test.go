package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../harness/testdata/scenarios"

func TestTestCommand_HarnessScenariosPass(t *testing.T) {
	res := runCLI(t, "test", scenarioDir)
	require.Equal(t, ExitSuccess, res.Code, res.Stdout)
	assert.Contains(t, res.Stdout, "✓ round_trip (golden: missing)")
	assert.Contains(t, res.Stdout, "8 passed, 0 failed")
}

func TestTestCommand_UpdateThenMatchGolden(t *testing.T) {
	golden := t.TempDir()

	res := runCLI(t, "test", "--golden", golden, "--update", "--filter", "reversal", scenarioDir)
	require.Equal(t, ExitSuccess, res.Code, res.Stdout)
	assert.Contains(t, res.Stdout, "(golden: updated)")
	assert.FileExists(t, filepath.Join(golden, "reversal_split.golden"))

	res = runCLI(t, "test", "--golden", golden, "--filter", "reversal", scenarioDir)
	require.Equal(t, ExitSuccess, res.Code, res.Stdout)
	assert.Contains(t, res.Stdout, "(golden: match)")
	assert.Contains(t, res.Stdout, "1 passed, 0 failed")
}

func TestTestCommand_GoldenMismatchFails(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "round_trip.golden"), []byte(`{"groups":[]}`), 0o644))

	res := runCLI(t, "test", "--format", "json", "--golden", golden, "--filter", "round_trip", scenarioDir)
	assert.Equal(t, ExitFailure, res.Code)

	_, data := decodeResponse(t, res.Stdout)
	assert.Equal(t, float64(1), data["failed"])
	scenarios := data["scenarios"].([]any)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "mismatch", scenarios[0].(map[string]any)["golden"])
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, dir, "wrong.yaml", `name: wrong_count
description: "Expects more matches than one open lot yields"
directions: {reference: Buy, opposite: Sell}
events:
  - {group: X, time: 0, side: Buy, quantity: 10, price: "1"}
assertions:
  - type: match_count
    count: 5
`)
	writeTestFile(t, dir, "broken.yaml", "name: [\n")

	res := runCLI(t, "test", dir)
	assert.Equal(t, ExitFailure, res.Code)
	assert.Contains(t, res.Stdout, "✗ wrong_count")
	assert.Contains(t, res.Stdout, "0 passed, 2 failed")
}

func TestTestCommand_MissingDir(t *testing.T) {
	res := runCLI(t, "test", filepath.Join(t.TempDir(), "nope"))
	assert.Equal(t, ExitCommandError, res.Code)
	assert.Contains(t, res.Stdout, "E_SCENARIO")
}
