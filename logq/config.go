// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied to zero Config fields.
const (
	DefaultCapacity      = 4096
	DefaultBatchSize     = 256
	DefaultFlushInterval = 100 * time.Millisecond
	DefaultDrainTimeout  = time.Second
)

// OverloadPolicy decides what Log does when the ring is full.
type OverloadPolicy uint8

const (
	// PolicyDrop discards the record and increments the drop counter.
	// The producer never waits.
	PolicyDrop OverloadPolicy = iota
	// PolicyBlock waits for the backend to free a slot. No record is
	// lost; the producer pays the latency.
	PolicyBlock
)

func (p OverloadPolicy) String() string {
	switch p {
	case PolicyDrop:
		return "drop"
	case PolicyBlock:
		return "block"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p OverloadPolicy) MarshalText() ([]byte, error) {
	switch p {
	case PolicyDrop, PolicyBlock:
		return []byte(p.String()), nil
	}
	return nil, fmt.Errorf("%w: overload policy %d", ErrInvalidConfig, uint8(p))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *OverloadPolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "drop", "":
		*p = PolicyDrop
	case "block":
		*p = PolicyBlock
	default:
		return fmt.Errorf("%w: overload policy %q", ErrInvalidConfig, text)
	}
	return nil
}

// Config configures a logger and its backend.
//
// Example YAML:
//
//	capacity: 8192
//	overload_policy: drop
//	batch_size: 512
//	flush_interval: 50ms
//	drain_timeout: 2s
//	shared: trading-log
//	breaker:
//	  enabled: true
//	  max_failures: 3
//	  open_timeout: 5s
type Config struct {
	Capacity          int            `yaml:"capacity"`           // Ring slots, rounded up to a power of 2
	Policy            OverloadPolicy `yaml:"overload_policy"`    // drop (default) or block
	BatchSize         int            `yaml:"batch_size"`         // Records per sink write
	FlushInterval     time.Duration  `yaml:"flush_interval"`     // Max age of a batch under sustained load
	DrainTimeout      time.Duration  `yaml:"drain_timeout"`      // Bound on Close
	DisableTimestamps bool           `yaml:"disable_timestamps"` // Skip the clock read on Log
	Shared            string         `yaml:"shared"`             // Shared segment name for cross-process logging
	Tap               bool           `yaml:"tap"`                // Publish every record to a latest-value tap
	Breaker           BreakerConfig  `yaml:"breaker"`
}

// BreakerConfig wraps the sink in a circuit breaker when enabled.
type BreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"` // Consecutive failures that open the breaker
	OpenTimeout time.Duration `yaml:"open_timeout"` // Time before a half-open probe
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("logq: read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates YAML configuration. Missing fields get
// their defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if errors.Is(err, ErrInvalidConfig) {
			return Config{}, err
		}
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.FlushInterval == 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	if c.DrainTimeout == 0 {
		c.DrainTimeout = DefaultDrainTimeout
	}
	if c.Breaker.Enabled {
		if c.Breaker.MaxFailures == 0 {
			c.Breaker.MaxFailures = 5
		}
		if c.Breaker.OpenTimeout == 0 {
			c.Breaker.OpenTimeout = 10 * time.Second
		}
	}
	return c
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Capacity < 2:
		return fmt.Errorf("%w: capacity %d < 2", ErrInvalidConfig, c.Capacity)
	case c.Policy != PolicyDrop && c.Policy != PolicyBlock:
		return fmt.Errorf("%w: overload policy %d", ErrInvalidConfig, uint8(c.Policy))
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size %d < 1", ErrInvalidConfig, c.BatchSize)
	case c.FlushInterval < 0:
		return fmt.Errorf("%w: negative flush interval", ErrInvalidConfig)
	case c.DrainTimeout < 0:
		return fmt.Errorf("%w: negative drain timeout", ErrInvalidConfig)
	}
	return nil
}
