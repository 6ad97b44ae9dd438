// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package logq

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"
)

// BreakerSink wraps a sink in a circuit breaker. After MaxFailures
// consecutive failed batches the breaker opens and batches are rejected
// with gobreaker.ErrOpenState without touching the wrapped sink, so a dead
// destination cannot stall the drain loop. After OpenTimeout one probe
// batch is let through.
func BreakerSink(next Sink, cfg BreakerConfig, logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "logq-sink",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("logq: sink breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &breakerSink{next: next, cb: cb}
}

type breakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker
}

func (s *breakerSink) WriteBatch(ctx context.Context, entries []Entry) error {
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.next.WriteBatch(ctx, entries)
	})
	return err
}

func (s *breakerSink) Sync() error {
	if s.cb.State() == gobreaker.StateOpen {
		return gobreaker.ErrOpenState
	}
	return s.next.Sync()
}
