// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedBroker is an in-process nats-server for deployments without an
// external broker. Other nodes may connect to it.
type EmbeddedBroker struct {
	server    *server.Server
	clientURL string
}

// StartEmbeddedBroker starts a core NATS server on host:port. Port -1 picks
// a random free port.
func StartEmbeddedBroker(host string, port int) (*EmbeddedBroker, error) {
	opts := &server.Options{
		ServerName: "workconnect-relay",
		Host:       host,
		Port:       port,
		NoSigs:     true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}
	ns.ConfigureLogger()

	go ns.Start()

	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, errors.New("NATS server not ready within timeout")
	}

	return &EmbeddedBroker{server: ns, clientURL: ns.ClientURL()}, nil
}

// ClientURL is the address relays connect to.
func (b *EmbeddedBroker) ClientURL() string {
	return b.clientURL
}

// IsRunning reports broker health.
func (b *EmbeddedBroker) IsRunning() bool {
	return b.server.Running()
}

// Shutdown stops the broker and waits for it unless ctx ends first.
func (b *EmbeddedBroker) Shutdown(ctx context.Context) error {
	b.server.Shutdown()

	done := make(chan struct{})
	go func() {
		b.server.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
