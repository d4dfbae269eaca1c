package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/markout/internal/fifo"
	"github.com/roach88/markout/internal/ir"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalYAML = `
directions:
  reference: Buy
  opposite: Sell
`

func TestLoadAndValidate_YAMLDefaults(t *testing.T) {
	t.Setenv(EnvDatabase, "")
	cfg, err := LoadAndValidate(writeFile(t, "cfg.yaml", minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, ir.Directions{Reference: "Buy", Opposite: "Sell"}, cfg.Directions)
	assert.True(t, cfg.Split())
	assert.Equal(t, string(fifo.PolicyAbortEpisode), cfg.OversellPolicy)
	assert.GreaterOrEqual(t, cfg.Workers, 1)
	assert.Equal(t, DefaultDatabase, cfg.Database)
}

func TestLoad_YAMLRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeFile(t, "cfg.yaml", minimalYAML+"colour: blue\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("MARKOUT_TEST_SIDE", "B")
	cfg, err := Load(writeFile(t, "cfg.yaml", `
directions:
  reference: ${MARKOUT_TEST_SIDE}
  opposite: S
`))
	require.NoError(t, err)
	assert.Equal(t, ir.Side("B"), cfg.Directions.Reference)
}

func TestLoadAndValidate_DatabaseFromEnv(t *testing.T) {
	t.Setenv(EnvDatabase, "/tmp/override.db")
	cfg, err := LoadAndValidate(writeFile(t, "cfg.yaml", minimalYAML+"database: local.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database)
}

func TestLoadAndValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing directions", "workers: 2\n", "directions"},
		{"same directions", "directions: {reference: B, opposite: B}\n", "must differ"},
		{"bad policy", minimalYAML + "oversell_policy: ignore\n", "oversell_policy"},
		{"bad preset", minimalYAML + "columns: {preset: nope}\n", "unknown preset"},
		{"duplicate columns", minimalYAML + "columns: {time: px, price: px}\n", "both use column"},
		{"negative workers", minimalYAML + "workers: -1\n", "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadAndValidate(writeFile(t, "cfg.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_CUE(t *testing.T) {
	cfg, err := LoadAndValidate(writeFile(t, "cfg.cue", `
directions: {
	reference: "B"
	opposite:  "S"
}
columns: preset: "ylin_v20251204"
split_reversals: false
oversell_policy: "abort_group"
workers:         2
`))
	require.NoError(t, err)
	assert.False(t, cfg.Split())
	assert.Equal(t, "abort_group", cfg.OversellPolicy)
	assert.Equal(t, 2, cfg.Workers)

	m, err := cfg.Mapping()
	require.NoError(t, err)
	assert.Equal(t, "ukey", m.Core.GroupKey)
	assert.Equal(t, "fill_price", m.Core.Price)
}

func TestLoad_CUESchemaViolation(t *testing.T) {
	_, err := Load(writeFile(t, "cfg.cue", `
directions: {reference: "B", opposite: "S"}
oversell_policy: "ignore"
`))
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
	assert.True(t, ce.Pos.IsValid())
}

func TestLoad_CUEUnknownField(t *testing.T) {
	_, err := Load(writeFile(t, "cfg.cue", `
directions: {reference: "B", opposite: "S"}
colour: "blue"
`))
	assert.Error(t, err)
}

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(writeFile(t, "cfg.toml", ""))
	assert.Error(t, err)
}

func TestMapping_ExplicitColumnsOverridePreset(t *testing.T) {
	cfg := &Config{Columns: Columns{Preset: "ylin_v20251204", Price: "order_price", Drop: []string{"event_type"}}}
	m, err := cfg.Mapping()
	require.NoError(t, err)
	assert.Equal(t, "order_price", m.Core.Price)
	assert.Equal(t, "ukey", m.Core.GroupKey)
	assert.Equal(t, []string{"event_type"}, m.Drop)
}

func TestDigest(t *testing.T) {
	load := func(extra string) *Config {
		t.Helper()
		cfg, err := LoadAndValidate(writeFile(t, "cfg.yaml", minimalYAML+extra))
		require.NoError(t, err)
		return cfg
	}

	base, err := load("").Digest()
	require.NoError(t, err)

	same, err := load("workers: 7\ndatabase: other.db\n").Digest()
	require.NoError(t, err)
	assert.Equal(t, base, same, "workers and database do not affect results")

	changed, err := load("split_reversals: false\n").Digest()
	require.NoError(t, err)
	assert.NotEqual(t, base, changed)
}

func TestFIFOOptions(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	assert.Len(t, cfg.FIFOOptions(nil), 3)
}
