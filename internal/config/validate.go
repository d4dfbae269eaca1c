package config

import (
	"errors"
	"fmt"

	"github.com/roach88/markout/internal/fifo"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Directions.Reference == "" || c.Directions.Opposite == "" {
		return errors.New("directions.reference and directions.opposite are required")
	}
	if err := c.Directions.Validate(); err != nil {
		return err
	}

	if _, err := fifo.ParsePolicy(c.OversellPolicy); err != nil {
		return fmt.Errorf("oversell_policy: %w", err)
	}

	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}

	m, err := c.Mapping()
	if err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}
	return nil
}
