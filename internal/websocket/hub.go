// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	// This is the normal graceful shutdown path (e.g., SIGTERM).
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

const defaultMetricsInterval = 15 * time.Second

// Publisher forwards locally originated events to other nodes.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Hub tracks live clients and which channels each subscriber has joined.
//
// All joins go through the hub so that Detach can remove a subscriber from
// every channel in one call. Lock order is hub.mu, then a registry shard.
type Hub struct {
	registry *Registry

	mu          sync.RWMutex
	clients     map[uint64]*Client
	memberships map[uint64]*membership

	relayMu sync.RWMutex
	relay   Publisher

	metricsInterval time.Duration
}

type membership struct {
	sub      Subscriber
	channels map[string]struct{}
}

// NewHub creates a hub whose registry has the given number of shards.
func NewHub(shards int) *Hub {
	return &Hub{
		registry:        NewRegistry(shards),
		clients:         make(map[uint64]*Client),
		memberships:     make(map[uint64]*membership),
		metricsInterval: defaultMetricsInterval,
	}
}

// SetMetricsInterval changes how often RunWithContext samples gauges.
func (h *Hub) SetMetricsInterval(d time.Duration) {
	if d > 0 {
		h.metricsInterval = d
	}
}

// SetRelay installs the cross-node publisher. A nil publisher disables relaying.
func (h *Hub) SetRelay(p Publisher) {
	h.relayMu.Lock()
	h.relay = p
	h.relayMu.Unlock()
}

// Registry exposes the underlying channel registry for read-only queries.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Register records a live client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WSActiveConnections.WithLabelValues(c.Endpoint()).Inc()
	logging.Debug().
		Str("conn_id", c.ConnectionID()).
		Str("user_id", c.UserID()).
		Str("endpoint", c.Endpoint()).
		Int("total_clients", total).
		Msg("websocket client connected")
}

// Unregister forgets a client. Unknown clients are ignored.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c.ID()]
	delete(h.clients, c.ID())
	total := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}
	metrics.WSActiveConnections.WithLabelValues(c.Endpoint()).Dec()
	logging.Debug().
		Str("conn_id", c.ConnectionID()).
		Str("user_id", c.UserID()).
		Int("total_clients", total).
		Msg("websocket client disconnected")
}

// Join adds s to channel. Joining twice is a no-op.
func (h *Hub) Join(channel string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.memberships[s.ID()]
	if !ok {
		m = &membership{sub: s, channels: make(map[string]struct{})}
		h.memberships[s.ID()] = m
	}
	m.channels[channel] = struct{}{}
	h.registry.Join(channel, s)
}

// Leave removes s from channel. Leaving a channel never joined is a no-op.
func (h *Hub) Leave(channel string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if m, ok := h.memberships[s.ID()]; ok {
		delete(m.channels, channel)
		if len(m.channels) == 0 {
			delete(h.memberships, s.ID())
		}
	}
	h.registry.Leave(channel, s)
}

// Detach removes s from every channel it joined and returns how many it left.
// When Detach returns no channel holds a reference to s.
func (h *Hub) Detach(s Subscriber) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, ok := h.memberships[s.ID()]
	if !ok {
		return 0
	}
	delete(h.memberships, s.ID())
	for channel := range m.channels {
		h.registry.Leave(channel, s)
	}
	return len(m.channels)
}

// Channels returns the channels s has joined, sorted.
func (h *Hub) Channels(s Subscriber) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, ok := h.memberships[s.ID()]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(m.channels))
	for channel := range m.channels {
		out = append(out, channel)
	}
	sort.Strings(out)
	return out
}

// Broadcast delivers ev to local members and, when a relay is installed,
// publishes it for other nodes. Relay failures are logged and never affect
// local delivery.
func (h *Hub) Broadcast(ctx context.Context, ev Event) DeliveryReport {
	report := h.DeliverLocal(ev)

	h.relayMu.RLock()
	relay := h.relay
	h.relayMu.RUnlock()
	if relay == nil {
		return report
	}

	if err := relay.Publish(ctx, ev); err != nil {
		metrics.RelayErrors.WithLabelValues("publish").Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("channel", ev.Channel).Msg("failed to relay broadcast")
	} else {
		metrics.RelayPublished.Inc()
	}
	return report
}

// DeliverLocal delivers ev to members connected to this node only.
func (h *Hub) DeliverLocal(ev Event) DeliveryReport {
	report := h.registry.Broadcast(ev)
	metrics.RecordDelivery(ChannelKind(ev.Channel), report.Delivered, report.Skipped, report.Failed)
	return report
}

// GetClientCount returns the number of connected clients.
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RunWithContext samples hub gauges until ctx is done, then closes every
// client. Designed for use with suture supervision.
func (h *Hub) RunWithContext(ctx context.Context) error {
	ticker := time.NewTicker(h.metricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case <-ticker.C:
			metrics.WSChannels.Set(float64(h.registry.ChannelCount()))
		}
	}
}

// logGracefulShutdown closes all clients and logs why the hub stopped.
// ctx.Err() is not logged as an error: cancellation is the expected path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.closeAllClients()
	reason := getShutdownReason(ctx)

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// closeAllClients closes clients in id order. Client.Close re-enters the
// hub, so the snapshot is taken before any client is closed.
func (h *Hub) closeAllClients() int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].ID() < clients[j].ID()
	})
	for _, c := range clients {
		c.Close()
	}
	return len(clients)
}
