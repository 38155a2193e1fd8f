// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package metrics declares the Prometheus collectors of the service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Realtime connections

	WSActiveConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Currently open realtime connections by endpoint",
		},
		[]string{"endpoint"}, // chat, presence, notifications
	)

	WSHandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_handshake_rejections_total",
			Help: "Connections rejected before upgrade",
		},
		[]string{"endpoint", "reason"}, // unauthenticated, not_participant, not_found, store_error
	)

	WSFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_received_total",
			Help: "Inbound frames by decoded type",
		},
		[]string{"type"},
	)

	WSFramesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_frames_rejected_total",
			Help: "Inbound frames answered with an error frame",
		},
		[]string{"reason"}, // invalid_json, validation, rate_limited, persistence
	)

	WSBroadcasts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcasts_total",
			Help: "Broadcasts issued by channel kind",
		},
		[]string{"channel_kind"},
	)

	WSDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_deliveries_total",
			Help: "Per-member delivery outcomes",
		},
		[]string{"outcome"}, // delivered, skipped_origin, failed
	)

	WSChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_channels",
			Help: "Channels with at least one member",
		},
	)

	// Messages

	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Messages durably stored",
		},
		[]string{"message_type"},
	)

	MessagesFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_failed_total",
			Help: "Messages that failed to persist and were not broadcast",
		},
	)

	MessagesMarkedRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_messages_marked_read_total",
			Help: "Messages flipped to read",
		},
	)

	NotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_notifications_sent_total",
			Help: "new_message_notification broadcasts (one per recipient)",
		},
	)

	// Presence

	PresenceOnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "presence_online_users",
			Help: "Users with at least one live connection on this node",
		},
	)

	PresenceTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_transitions_total",
			Help: "Online/offline transitions",
		},
		[]string{"to"}, // online, offline
	)

	PresenceStoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "presence_store_errors_total",
			Help: "Durable presence writes that failed",
		},
		[]string{"operation"},
	)

	// Circuit breaker

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Relay

	RelayPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Broadcasts published to other nodes",
		},
	)

	RelayReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_received_total",
			Help: "Broadcasts received from other nodes",
		},
	)

	RelayErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_errors_total",
			Help: "Relay failures",
		},
		[]string{"stage"}, // publish, decode
	)

	// HTTP API

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "In-flight HTTP requests",
		},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, route, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, status).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordDelivery counts the outcome of one broadcast.
func RecordDelivery(channelKind string, delivered, skipped, failed int) {
	WSBroadcasts.WithLabelValues(channelKind).Inc()
	if delivered > 0 {
		WSDeliveries.WithLabelValues("delivered").Add(float64(delivered))
	}
	if skipped > 0 {
		WSDeliveries.WithLabelValues("skipped_origin").Add(float64(skipped))
	}
	if failed > 0 {
		WSDeliveries.WithLabelValues("failed").Add(float64(failed))
	}
}

// RecordPresenceTransition counts a transition and moves the online gauge.
func RecordPresenceTransition(online bool) {
	if online {
		PresenceTransitions.WithLabelValues("online").Inc()
		PresenceOnlineUsers.Inc()
		return
	}
	PresenceTransitions.WithLabelValues("offline").Inc()
	PresenceOnlineUsers.Dec()
}
