// Package scheduler runs the periodic overdue sweep across all deals.
package scheduler

import "time"

// Config defines the sweeper configuration.
type Config struct {
	// Enabled turns the periodic loop on. SweepOnce works either way.
	Enabled bool `yaml:"enabled"`
	// Interval is the time between sweeps.
	Interval time.Duration `yaml:"interval"`
	// Workers bounds how many deals are evaluated concurrently.
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the default sweeper configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:  true,
		Interval: 15 * time.Minute,
		Workers:  4,
	}
}

func (c *Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}
