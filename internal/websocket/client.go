// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/workconnect/internal/logging"
)

// Errors returned by Deliver.
var (
	ErrClientClosed   = errors.New("client closed")
	ErrSendBufferFull = errors.New("client send buffer full")
)

// clientIDCounter hands out monotonically increasing ids so broadcasts
// iterate members in a stable order.
var clientIDCounter atomic.Uint64

// NextSubscriberID returns a fresh subscriber id. Non-client subscribers
// must take their ids from here so they never collide with clients.
func NextSubscriberID() uint64 {
	return clientIDCounter.Add(1)
}

// FrameHandler consumes the inbound frames of one client.
// HandleFrame is called sequentially in arrival order. Close is called once,
// after the client has left every channel.
type FrameHandler interface {
	HandleFrame(ctx context.Context, frame []byte)
	Close()
}

// ClientConfig holds the transport limits of a client.
type ClientConfig struct {
	SendBuffer     int
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

// DefaultClientConfig returns the limits used when none are configured.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SendBuffer:     256,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig()
	if c.SendBuffer <= 0 {
		c.SendBuffer = d.SendBuffer
	}
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

func (c ClientConfig) pingPeriod() time.Duration {
	return (c.PongWait * 9) / 10
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	id       uint64
	connID   string
	userID   string
	endpoint string

	hub     *Hub
	conn    *websocket.Conn
	cfg     ClientConfig
	handler FrameHandler

	mu        sync.Mutex
	send      chan []byte
	closed    bool
	closeCode int

	started   atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// NewClient wraps conn for the authenticated userID. endpoint labels the
// kind of connection in logs and metrics.
func NewClient(hub *Hub, conn *websocket.Conn, userID, endpoint string, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		id:        NextSubscriberID(),
		connID:    logging.NewConnectionID(),
		userID:    userID,
		endpoint:  endpoint,
		hub:       hub,
		conn:      conn,
		cfg:       cfg,
		send:      make(chan []byte, cfg.SendBuffer),
		closeCode: websocket.CloseNormalClosure,
		done:      make(chan struct{}),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 { return c.id }

// UserID returns the authenticated user behind the connection.
func (c *Client) UserID() string { return c.userID }

// ConnectionID returns the short correlation id used in logs.
func (c *Client) ConnectionID() string { return c.connID }

// Endpoint returns the endpoint label given at construction.
func (c *Client) Endpoint() string { return c.endpoint }

// Done is closed once the client has shut down.
func (c *Client) Done() <-chan struct{} { return c.done }

// SetHandler installs the frame handler. Must be called before Run.
func (c *Client) SetHandler(h FrameHandler) {
	c.handler = h
}

// Deliver queues frame for the write pump without blocking.
// A full queue marks the client as a slow consumer and closes it.
func (c *Client) Deliver(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.closed = true
		c.closeCode = websocket.CloseTryAgainLater
		close(c.send)
		logging.Warn().
			Str("conn_id", c.connID).
			Str("user_id", c.userID).
			Msg("send buffer full, closing slow client")
		return ErrSendBufferFull
	}
}

// Close shuts the client down. It is idempotent and safe from any goroutine.
// On return the client has left every channel and its handler has been closed.
func (c *Client) Close() {
	c.closeOnce.Do(c.shutdown)
}

func (c *Client) shutdown() {
	if c.hub != nil {
		c.hub.Detach(c)
	}
	if c.handler != nil {
		c.handler.Close()
	}
	if c.hub != nil {
		c.hub.Unregister(c)
	}
	c.closeSend()

	// Without a running write pump nobody else will close the socket.
	if !c.started.Load() && c.conn != nil {
		_ = c.conn.Close()
	}
	close(c.done)
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Run registers the client, starts the write pump and reads frames until
// the connection ends. It blocks for the lifetime of the connection.
func (c *Client) Run(ctx context.Context) {
	c.started.Store(true)
	if c.hub != nil {
		c.hub.Register(c)
	}
	go c.writePump()
	c.readPump(ctx)
}

// readPump pumps frames from the websocket connection to the handler.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.Close()
		_ = c.conn.Close() // best-effort, the write pump may already have closed it
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logging.Ctx(ctx).Warn().Err(err).Msg("unexpected websocket close error")
			}
			return
		}
		if c.handler != nil {
			c.handler.HandleFrame(ctx, frame)
		}
	}
}

// writePump pumps frames from the send queue to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				c.mu.Lock()
				code := c.closeCode
				c.mu.Unlock()
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				logging.Debug().Err(err).Str("conn_id", c.connID).Msg("failed to write frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
