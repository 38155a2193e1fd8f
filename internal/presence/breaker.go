// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package presence

import (
	"context"
	"errors"
	"fmt"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/workconnect/internal/config"
	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
	"github.com/tomtom215/workconnect/internal/models"
)

// BreakerName labels the presence breaker in logs and metrics.
const BreakerName = "presence-store"

// BreakerStore guards a Store with a circuit breaker so a failing backend
// stops receiving presence writes until it recovers. Presence is best effort,
// so while the circuit is open writes fail fast and are dropped by the Tracker.
type BreakerStore struct {
	next Store
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerStore wraps next with breaker settings from cfg.
func NewBreakerStore(next Store, cfg *config.PresenceConfig) *BreakerStore {
	metrics.CircuitBreakerState.WithLabelValues(BreakerName).Set(0)

	minRequests := cfg.BreakerMinRequests
	ratio := cfg.BreakerFailureRatio

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        BreakerName,
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < minRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= ratio {
				logging.Warn().
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening presence store circuit")
				return true
			}
			return false
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})

	return &BreakerStore{next: next, cb: cb}
}

// State returns the current breaker state.
func (b *BreakerStore) State() gobreaker.State {
	return b.cb.State()
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// IsRejected reports whether err came from an open or saturated breaker
// rather than from the backend.
func IsRejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func castResult[T any](result any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// GetOrCreatePresence implements Store.
func (b *BreakerStore) GetOrCreatePresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	return castResult[*models.PresenceRecord](b.cb.Execute(func() (any, error) {
		return b.next.GetOrCreatePresence(ctx, userID)
	}))
}

// SetPresence implements Store.
func (b *BreakerStore) SetPresence(ctx context.Context, userID string, online bool) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.SetPresence(ctx, userID, online)
	})
	return err
}

// ListOnlineUserIDs implements Store.
func (b *BreakerStore) ListOnlineUserIDs(ctx context.Context) ([]string, error) {
	return castResult[[]string](b.cb.Execute(func() (any, error) {
		return b.next.ListOnlineUserIDs(ctx)
	}))
}

// ResetOnlinePresence bypasses the breaker: it runs once at startup and its
// failure must be reported as is.
func (b *BreakerStore) ResetOnlinePresence(ctx context.Context) (int, error) {
	return b.next.ResetOnlinePresence(ctx)
}
