// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package services

import (
	"context"
	"time"

	"github.com/tomtom215/workconnect/internal/logging"
)

// ContextHub is satisfied by *websocket.Hub.
type ContextHub interface {
	RunWithContext(ctx context.Context) error
}

// HubService runs the hub's maintenance loop. When it stops, every open
// connection is closed.
type HubService struct {
	hub ContextHub
}

// NewHubService wraps hub.
func NewHubService(hub ContextHub) *HubService {
	return &HubService{hub: hub}
}

// Serve implements suture.Service.
func (s *HubService) Serve(ctx context.Context) error {
	return s.hub.RunWithContext(ctx)
}

func (s *HubService) String() string {
	return "realtime-hub"
}

// RelayRunner is satisfied by *relay.Relay.
type RelayRunner interface {
	Serve(ctx context.Context) error
}

// RelayService consumes remote broadcasts. A failed subscription returns
// an error and suture restarts it with backoff.
type RelayService struct {
	relay RelayRunner
}

// NewRelayService wraps r.
func NewRelayService(r RelayRunner) *RelayService {
	return &RelayService{relay: r}
}

// Serve implements suture.Service.
func (s *RelayService) Serve(ctx context.Context) error {
	return s.relay.Serve(ctx)
}

func (s *RelayService) String() string {
	return "relay-subscriber"
}

// Drainer is satisfied by *presence.Tracker.
type Drainer interface {
	Wait()
}

// PresenceDrainService idles until shutdown, then waits up to timeout for
// background presence writes so the last offline flags reach the store.
type PresenceDrainService struct {
	drainer Drainer
	timeout time.Duration
}

// NewPresenceDrainService wraps d. A non-positive timeout means 5s.
func NewPresenceDrainService(d Drainer, timeout time.Duration) *PresenceDrainService {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &PresenceDrainService{drainer: d, timeout: timeout}
}

// Serve implements suture.Service.
func (s *PresenceDrainService) Serve(ctx context.Context) error {
	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		s.drainer.Wait()
		close(done)
	}()
	select {
	case <-done:
		logging.Debug().Msg("presence writes drained")
	case <-time.After(s.timeout):
		logging.Warn().Dur("timeout", s.timeout).Msg("gave up waiting for presence writes")
	}
	return ctx.Err()
}

func (s *PresenceDrainService) String() string {
	return "presence-drain"
}
