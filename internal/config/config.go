// Package config loads the pipeline configuration.
//
// A configuration file is YAML (.yaml, .yml) or CUE (.cue). YAML is decoded
// strictly, rejecting unknown fields; CUE is unified with the embedded
// schema and must be concrete. ${VAR} references are expanded from the
// environment in both. Defaults are applied after decoding, then the
// result is validated.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/markout/internal/ir"
	"github.com/roach88/markout/internal/source"
)

// Config is the pipeline configuration.
type Config struct {
	Directions     ir.Directions `yaml:"directions" json:"directions"`
	Columns        Columns       `yaml:"columns" json:"columns"`
	SplitReversals *bool         `yaml:"split_reversals" json:"split_reversals,omitempty"`
	OversellPolicy string        `yaml:"oversell_policy" json:"oversell_policy,omitempty"`
	Workers        int           `yaml:"workers" json:"workers,omitempty"`
	Database       string        `yaml:"database" json:"database,omitempty"`
	// ReplayDir is where per-run match CSVs are written, if set.
	ReplayDir string `yaml:"replay_dir" json:"replay_dir,omitempty"`
}

// Columns maps input columns to event fields.
type Columns struct {
	Preset   string            `yaml:"preset" json:"preset,omitempty"`
	Rename   map[string]string `yaml:"rename" json:"rename,omitempty"`
	Drop     []string          `yaml:"drop" json:"drop,omitempty"`
	GroupKey string            `yaml:"group_key" json:"group_key,omitempty"`
	Time     string            `yaml:"time" json:"time,omitempty"`
	Side     string            `yaml:"side" json:"side,omitempty"`
	Quantity string            `yaml:"quantity" json:"quantity,omitempty"`
	Price    string            `yaml:"price" json:"price,omitempty"`
	Index    string            `yaml:"index" json:"index,omitempty"`
}

// Load reads a config file without applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := []byte(os.ExpandEnv(string(data)))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cue":
		return decodeCUE(path, expanded)
	case ".yaml", ".yml", "":
		return decodeYAML(expanded)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", filepath.Ext(path))
	}
}

func decodeYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return &cfg, nil
}

// LoadWithDefaults loads config and applies default values.
func LoadWithDefaults(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadAndValidate loads config, applies defaults, and validates.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := LoadWithDefaults(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Split reports whether reversals are split. Defaults must have been applied.
func (c *Config) Split() bool {
	return c.SplitReversals == nil || *c.SplitReversals
}

// Mapping resolves the column settings, including any preset, into a
// source mapping. Explicit core column names win over the preset's.
func (c *Config) Mapping() (source.Mapping, error) {
	var m source.Mapping
	if c.Columns.Preset != "" {
		p, ok := source.LookupPreset(c.Columns.Preset)
		if !ok {
			return m, fmt.Errorf("columns.preset: unknown preset %q (known: %s)",
				c.Columns.Preset, strings.Join(source.PresetNames(), ", "))
		}
		m = source.FromPreset(p, c.Columns.Rename)
	} else {
		m = source.FromPreset(source.Preset{Core: source.DefaultCore}, c.Columns.Rename)
	}

	m.Drop = append(m.Drop, c.Columns.Drop...)
	m.Index = c.Columns.Index
	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&m.Core.GroupKey, c.Columns.GroupKey)
	override(&m.Core.Time, c.Columns.Time)
	override(&m.Core.Side, c.Columns.Side)
	override(&m.Core.Quantity, c.Columns.Quantity)
	override(&m.Core.Price, c.Columns.Price)
	return m, nil
}
