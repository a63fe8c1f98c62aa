package authflow

import (
	"fmt"
	"time"
)

// Config is the flow configuration. Instances are set up during
// initialization and treated as immutable afterwards.
type Config struct {
	Flow    FlowConfig
	Audit   AuditConfig
	Metrics MetricsConfig
}

/*
====================================
FLOW CONFIG
====================================
*/

// FlowConfig tunes the startup sequence. The authentication steps themselves
// impose no timeout on backend calls.
type FlowConfig struct {
	// SplashMinDelay is the minimum time Start takes, even when the session
	// check returns sooner.
	SplashMinDelay time.Duration
	// SessionCheckTimeout bounds the session lookup inside Start. A check that
	// exceeds it routes to Entry.
	SessionCheckTimeout time.Duration
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls asynchronous audit dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls in-process counters and the backend latency histogram.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the defaults used by [New].
func DefaultConfig() Config {
	return Config{
		Flow: FlowConfig{
			SplashMinDelay:      2 * time.Second,
			SessionCheckTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks every sub-config and returns the first violation wrapped
// with [ErrInvalidConfig].
func (c *Config) Validate() error {
	if c.Flow.SplashMinDelay < 0 {
		return invalidConfig("Flow SplashMinDelay must be >= 0")
	}
	if c.Flow.SessionCheckTimeout <= 0 {
		return invalidConfig("Flow SessionCheckTimeout must be > 0")
	}
	if c.Flow.SplashMinDelay > time.Minute {
		return invalidConfig("Flow SplashMinDelay must be <= 1m")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return invalidConfig("Audit BufferSize must be > 0 when Enabled is true")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return invalidConfig("Metrics EnableLatencyHistograms requires Enabled")
	}

	return nil
}

func invalidConfig(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
