package config

import (
	"os"
	"runtime"

	"github.com/roach88/markout/internal/fifo"
)

// Default values for optional configuration fields.
const (
	DefaultDatabase = "markout.db"
	DefaultPolicy   = string(fifo.DefaultPolicy)
)

// EnvDatabase overrides the database path when set.
const EnvDatabase = "MARKOUT_DB"

func (c *Config) applyDefaults() {
	if c.SplitReversals == nil {
		split := true
		c.SplitReversals = &split
	}
	if c.OversellPolicy == "" {
		c.OversellPolicy = DefaultPolicy
	}
	if c.Workers == 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}

	if db := os.Getenv(EnvDatabase); db != "" {
		c.Database = db
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
}
