// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

// Package relay carries broadcasts between nodes so that members connected
// to different processes share channels. Every node publishes each local
// broadcast once and delivers what other nodes publish to its own members.
// Delivery across nodes is best effort, like delivery within a node.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// DefaultTopic is used when no subject is configured.
const DefaultTopic = "workconnect.broadcast"

// Metadata keys of a relayed broadcast. The payload is the frame itself.
const (
	metaNode       = "node_id"
	metaChannel    = "channel"
	metaOriginUser = "origin_user_id"
	metaSkipOrigin = "skip_origin"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("relay closed")

// Relay publishes local broadcasts and applies remote ones.
type Relay struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	hub        *websocket.Hub
	topic      string
	nodeID     string

	mu     sync.RWMutex
	closed bool
}

// New creates a relay over an existing publisher and subscriber. An empty
// nodeID gets a random one.
func New(pub message.Publisher, sub message.Subscriber, hub *websocket.Hub, topic, nodeID string) *Relay {
	if topic == "" {
		topic = DefaultTopic
	}
	if nodeID == "" {
		nodeID = watermill.NewShortUUID()
	}
	return &Relay{
		publisher:  pub,
		subscriber: sub,
		hub:        hub,
		topic:      topic,
		nodeID:     nodeID,
	}
}

// NodeID identifies this process on the bus.
func (r *Relay) NodeID() string {
	return r.nodeID
}

// Publish implements websocket.Publisher.
func (r *Relay) Publish(_ context.Context, ev websocket.Event) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrClosed
	}

	msg := message.NewMessage(watermill.NewUUID(), ev.Frame)
	msg.Metadata.Set(metaNode, r.nodeID)
	msg.Metadata.Set(metaChannel, ev.Channel)
	msg.Metadata.Set(metaOriginUser, ev.OriginUserID)
	msg.Metadata.Set(metaSkipOrigin, strconv.FormatBool(ev.SkipOrigin))

	if err := r.publisher.Publish(r.topic, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", r.topic, err)
	}
	return nil
}

// Serve applies remote broadcasts to the local hub until ctx is canceled.
func (r *Relay) Serve(ctx context.Context) error {
	messages, err := r.subscriber.Subscribe(ctx, r.topic)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", r.topic, err)
	}
	logging.Info().Str("topic", r.topic).Str("node_id", r.nodeID).Msg("relay subscribed")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			r.apply(msg)
			msg.Ack()
		}
	}
}

func (r *Relay) apply(msg *message.Message) {
	if msg.Metadata.Get(metaNode) == r.nodeID {
		return
	}

	ev, err := decodeEvent(msg)
	if err != nil {
		metrics.RelayErrors.WithLabelValues("decode").Inc()
		logging.Warn().Err(err).Str("message_uuid", msg.UUID).Msg("dropping malformed relay message")
		return
	}
	metrics.RelayReceived.Inc()
	r.hub.DeliverLocal(ev)
}

func decodeEvent(msg *message.Message) (websocket.Event, error) {
	ev := websocket.Event{
		Channel:      msg.Metadata.Get(metaChannel),
		Frame:        msg.Payload,
		OriginUserID: msg.Metadata.Get(metaOriginUser),
	}
	if ev.Channel == "" {
		return ev, errors.New("missing channel")
	}
	if raw := msg.Metadata.Get(metaSkipOrigin); raw != "" {
		skip, err := strconv.ParseBool(raw)
		if err != nil {
			return ev, fmt.Errorf("skip_origin: %w", err)
		}
		ev.SkipOrigin = skip
	}
	return ev, nil
}

// Close releases the publisher and subscriber. It is idempotent.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	var errs []error
	if err := r.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	if sameTransport(r.publisher, r.subscriber) {
		return errors.Join(errs...)
	}
	if err := r.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}
	return errors.Join(errs...)
}

// sameTransport reports whether pub and sub are one object, as with an
// in-process pub/sub, so it is closed once.
func sameTransport(pub message.Publisher, sub message.Subscriber) bool {
	return any(pub) == any(sub)
}
