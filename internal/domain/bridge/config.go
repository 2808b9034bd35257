package bridge

import (
	"time"

	"golang.org/x/time/rate"
)

// Config tunes a Bridge.
type Config struct {
	// BufferSize is the per-instance scratch buffer and therefore the
	// largest single read.
	BufferSize int
	// Workers is the number of pump workers shared by all instances.
	Workers int
	// InhibitWindow is how long each transfer keeps the system awake.
	InhibitWindow time.Duration
	// KeepOpen parks every channel on last close, in addition to
	// descriptors flagged KeepOpen.
	KeepOpen bool
	// OpenFailures trips the per-channel open breaker.
	OpenFailures uint32
	// OpenCooldown is how long a tripped breaker fails opens fast.
	OpenCooldown time.Duration
	// FaultLogRate limits protocol-fault log lines per second.
	FaultLogRate rate.Limit
}

// DefaultConfig returns the stock bridge settings.
func DefaultConfig() Config {
	return Config{
		BufferSize:    16 * 1024,
		Workers:       1,
		InhibitWindow: 500 * time.Millisecond,
		OpenFailures:  5,
		OpenCooldown:  30 * time.Second,
		FaultLogRate:  1,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = def.BufferSize
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.InhibitWindow <= 0 {
		c.InhibitWindow = def.InhibitWindow
	}
	if c.OpenFailures == 0 {
		c.OpenFailures = def.OpenFailures
	}
	if c.OpenCooldown <= 0 {
		c.OpenCooldown = def.OpenCooldown
	}
	if c.FaultLogRate <= 0 {
		c.FaultLogRate = def.FaultLogRate
	}
	return c
}
