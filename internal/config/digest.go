package config

import (
	"log/slog"

	"github.com/roach88/markout/internal/fifo"
	"github.com/roach88/markout/internal/ir"
)

// Digest hashes the settings that affect match output. Workers, database
// and output paths are excluded: changing them never changes results.
func (c *Config) Digest() (string, error) {
	m, err := c.Mapping()
	if err != nil {
		return "", err
	}

	rename := ir.IRObject{}
	for k, v := range m.Rename {
		rename[k] = ir.IRString(v)
	}
	drop := make(ir.IRArray, len(m.Drop))
	for i, d := range m.Drop {
		drop[i] = ir.IRString(d)
	}

	obj := ir.IRObject{
		"schema_version": ir.IRString(ir.SchemaVersion),
		"directions": ir.IRObject{
			"reference": ir.IRString(c.Directions.Reference),
			"opposite":  ir.IRString(c.Directions.Opposite),
		},
		"columns": ir.IRObject{
			"group_key": ir.IRString(m.Core.GroupKey),
			"time":      ir.IRString(m.Core.Time),
			"side":      ir.IRString(m.Core.Side),
			"quantity":  ir.IRString(m.Core.Quantity),
			"price":     ir.IRString(m.Core.Price),
			"index":     ir.IRString(m.Index),
			"rename":    rename,
			"drop":      drop,
		},
		"split_reversals": ir.IRBool(c.Split()),
		"oversell_policy": ir.IRString(c.OversellPolicy),
	}
	return ir.ConfigDigest(obj)
}

// FIFOOptions returns the matcher options this config selects.
func (c *Config) FIFOOptions(logger *slog.Logger) []fifo.Option {
	return []fifo.Option{
		fifo.WithSplitReversals(c.Split()),
		fifo.WithPolicy(fifo.Policy(c.OversellPolicy)),
		fifo.WithLogger(logger),
	}
}
