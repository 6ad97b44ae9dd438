// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"code.hybscloud.com/shmq/logq"
)

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := logq.ParseConfig([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, logq.DefaultCapacity, cfg.Capacity)
	assert.Equal(t, logq.PolicyDrop, cfg.Policy)
	assert.Equal(t, logq.DefaultBatchSize, cfg.BatchSize)
	assert.Equal(t, logq.DefaultFlushInterval, cfg.FlushInterval)
	assert.Equal(t, logq.DefaultDrainTimeout, cfg.DrainTimeout)
	assert.False(t, cfg.Breaker.Enabled)
	assert.Zero(t, cfg.Breaker.MaxFailures)
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
capacity: 8192
overload_policy: block
batch_size: 512
flush_interval: 50ms
drain_timeout: 2s
disable_timestamps: true
shared: trading-log
tap: true
breaker:
  enabled: true
  open_timeout: 5s
`)
	cfg, err := logq.ParseConfig(data)
	require.NoError(t, err)
	assert.Equal(t, logq.Config{
		Capacity:          8192,
		Policy:            logq.PolicyBlock,
		BatchSize:         512,
		FlushInterval:     50 * time.Millisecond,
		DrainTimeout:      2 * time.Second,
		DisableTimestamps: true,
		Shared:            "trading-log",
		Tap:               true,
		Breaker:           logq.BreakerConfig{Enabled: true, MaxFailures: 5, OpenTimeout: 5 * time.Second},
	}, cfg)
}

func TestParseConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown policy", "overload_policy: spill"},
		{"capacity too small", "capacity: 1"},
		{"negative batch", "batch_size: -1"},
		{"negative drain timeout", "drain_timeout: -1s"},
		{"bad duration", "flush_interval: soon"},
		{"malformed", "capacity: [1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := logq.ParseConfig([]byte(tt.yaml))
			assert.ErrorIs(t, err, logq.ErrInvalidConfig)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logq.yaml")
	require.NoError(t, os.WriteFile(path, []byte("capacity: 64\noverload_policy: drop\n"), 0o644))

	cfg, err := logq.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Capacity)

	_, err = logq.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestOverloadPolicyText(t *testing.T) {
	for _, p := range []logq.OverloadPolicy{logq.PolicyDrop, logq.PolicyBlock} {
		text, err := p.MarshalText()
		require.NoError(t, err)
		var back logq.OverloadPolicy
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, p, back)
	}
	_, err := logq.OverloadPolicy(7).MarshalText()
	assert.ErrorIs(t, err, logq.ErrInvalidConfig)
	assert.Equal(t, "policy(7)", logq.OverloadPolicy(7).String())
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, logq.Config{Capacity: 2, BatchSize: 1}.Validate())
	assert.ErrorIs(t, logq.Config{Capacity: 2, BatchSize: 0}.Validate(), logq.ErrInvalidConfig)
	assert.ErrorIs(t, logq.Config{Capacity: 2, BatchSize: 1, Policy: 3}.Validate(), logq.ErrInvalidConfig)
	assert.ErrorIs(t, logq.Config{Capacity: 2, BatchSize: 1, FlushInterval: -1}.Validate(), logq.ErrInvalidConfig)
}
