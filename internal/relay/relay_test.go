// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package relay

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/workconnect/internal/config"
	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
	"github.com/tomtom215/workconnect/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type member struct {
	id     uint64
	userID string

	mu     sync.Mutex
	frames []string
}

func newMember(userID string) *member {
	return &member{id: websocket.NextSubscriberID(), userID: userID}
}

func (m *member) ID() uint64     { return m.id }
func (m *member) UserID() string { return m.userID }

func (m *member) Deliver(frame []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, string(frame))
	return nil
}

func (m *member) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// pair wires two hubs through one in-process pub/sub.
func pair(t *testing.T) (hubA, hubB *websocket.Hub, relayA *Relay, ps *gochannel.GoChannel) {
	t.Helper()
	ps = gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64, Persistent: true}, logging.NewWatermillLogger())
	t.Cleanup(func() { _ = ps.Close() })

	hubA, hubB = websocket.NewHub(4), websocket.NewHub(4)
	relayA = New(ps, ps, hubA, "test.broadcast", "node-a")
	relayB := New(ps, ps, hubB, "test.broadcast", "node-b")
	hubA.SetRelay(relayA)
	hubB.SetRelay(relayB)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = relayA.Serve(ctx) }()
	go func() { _ = relayB.Serve(ctx) }()
	return hubA, hubB, relayA, ps
}

func TestRelay_CrossNodeDelivery(t *testing.T) {
	hubA, hubB, _, _ := pair(t)
	channel := websocket.ConversationChannel("c1")

	local := newMember("1")
	remote := newMember("2")
	hubA.Join(channel, local)
	hubB.Join(channel, remote)

	hubA.Broadcast(context.Background(), websocket.Event{Channel: channel, Frame: []byte(`{"type":"x"}`), OriginUserID: "1"})

	waitFor(t, "remote delivery", func() bool { return remote.count() == 1 })
	if remote.frames[0] != `{"type":"x"}` {
		t.Errorf("remote frame = %s", remote.frames[0])
	}

	// The publishing node ignores its own echo.
	time.Sleep(50 * time.Millisecond)
	if local.count() != 1 {
		t.Errorf("local member received %d frames, want 1", local.count())
	}
}

func TestRelay_SkipOriginAcrossNodes(t *testing.T) {
	hubA, hubB, _, _ := pair(t)

	typistOtherTab := newMember("1")
	peer := newMember("2")
	hubB.Join(websocket.PresenceChannel, typistOtherTab)
	hubB.Join(websocket.PresenceChannel, peer)

	hubA.Broadcast(context.Background(), websocket.Event{
		Channel:      websocket.PresenceChannel,
		Frame:        []byte(`{}`),
		OriginUserID: "1",
		SkipOrigin:   true,
	})

	waitFor(t, "peer delivery", func() bool { return peer.count() == 1 })
	if typistOtherTab.count() != 0 {
		t.Error("origin user's remote connection received a skip-origin event")
	}
}

func TestRelay_DropsMalformed(t *testing.T) {
	_, hubB, _, ps := pair(t)
	m := newMember("2")
	hubB.Join(websocket.PresenceChannel, m)

	before := testutil.ToFloat64(metrics.RelayErrors.WithLabelValues("decode"))

	bad := message.NewMessage("bad-1", []byte(`{}`))
	bad.Metadata.Set(metaNode, "node-x")
	if err := ps.Publish("test.broadcast", bad); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "decode error", func() bool {
		return testutil.ToFloat64(metrics.RelayErrors.WithLabelValues("decode")) > before
	})
	if m.count() != 0 {
		t.Error("malformed message was delivered")
	}
}

func TestDecodeEvent(t *testing.T) {
	msg := message.NewMessage("u", []byte("frame"))
	msg.Metadata.Set(metaChannel, "presence")
	msg.Metadata.Set(metaOriginUser, "7")
	msg.Metadata.Set(metaSkipOrigin, "true")

	ev, err := decodeEvent(msg)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Channel != "presence" || ev.OriginUserID != "7" || !ev.SkipOrigin || string(ev.Frame) != "frame" {
		t.Errorf("event = %+v", ev)
	}

	msg.Metadata.Set(metaSkipOrigin, "maybe")
	if _, err := decodeEvent(msg); err == nil {
		t.Error("invalid skip_origin accepted")
	}
}

func TestRelay_PublishAfterClose(t *testing.T) {
	ps := gochannel.NewGoChannel(gochannel.Config{}, logging.NewWatermillLogger())
	r := New(ps, ps, websocket.NewHub(1), "", "")
	if r.NodeID() == "" || r.topic != DefaultTopic {
		t.Errorf("defaults not applied: node=%q topic=%q", r.NodeID(), r.topic)
	}
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := r.Publish(context.Background(), websocket.Event{Channel: "presence"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Publish after Close err = %v, want ErrClosed", err)
	}
}

func TestRelay_OverEmbeddedBroker(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a NATS server")
	}

	broker, err := StartEmbeddedBroker("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("StartEmbeddedBroker: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = broker.Shutdown(ctx)
	})
	if !broker.IsRunning() {
		t.Fatal("broker not running")
	}

	cfg := &config.RelayConfig{Subject: "it.broadcast", MaxReconnects: 2, ReconnectWait: 100 * time.Millisecond}
	hubA, hubB := websocket.NewHub(2), websocket.NewHub(2)

	relayA, err := NewNATS(cfg, broker.ClientURL(), hubA, logging.NewWatermillLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = relayA.Close() })
	relayB, err := NewNATS(cfg, broker.ClientURL(), hubB, logging.NewWatermillLogger())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = relayB.Close() })
	hubA.SetRelay(relayA)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = relayB.Serve(ctx) }()

	remote := newMember("2")
	hubB.Join(websocket.NotificationChannel("2"), remote)

	// Core NATS drops messages published before the subscription exists.
	waitFor(t, "delivery over NATS", func() bool {
		hubA.Broadcast(ctx, websocket.Event{Channel: websocket.NotificationChannel("2"), Frame: []byte(`{}`), OriginUserID: "1"})
		time.Sleep(20 * time.Millisecond)
		return remote.count() > 0
	})
}
