// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package chat

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"

	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
	"github.com/tomtom215/workconnect/internal/models"
	"github.com/tomtom215/workconnect/internal/websocket"
)

// State is the lifecycle stage of a session.
type State int32

// Session states. CLOSED is terminal.
const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthorizing
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateAuthenticating:
		return "AUTHENTICATING"
	case StateAuthorizing:
		return "AUTHORIZING"
	case StateJoined:
		return "JOINED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// session holds what every endpoint shares: the identity, the state machine,
// the attached connection and presence accounting.
type session struct {
	gw       *Gateway
	endpoint string

	mu         sync.Mutex
	state      State
	authorized bool
	identity   models.Identity
	conn       websocket.Subscriber

	limiter   *rate.Limiter
	closeOnce sync.Once
}

func newSession(gw *Gateway, endpoint string) *session {
	return &session{
		gw:       gw,
		endpoint: endpoint,
		state:    StateConnecting,
		limiter:  rate.NewLimiter(rate.Limit(gw.opts.FrameRate), gw.opts.FrameBurst),
	}
}

// State returns the current state.
func (s *session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the authenticated identity. Empty before authentication.
func (s *session) Identity() models.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *session) transition(from, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != from {
		return ErrInvalidState
	}
	s.state = to
	return nil
}

func (s *session) reject(reason string, err error) error {
	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	metrics.WSHandshakeRejections.WithLabelValues(s.endpoint, reason).Inc()
	return err
}

// authenticate runs CONNECTING -> AUTHENTICATING -> AUTHORIZING.
func (s *session) authenticate(ctx context.Context, credential string) error {
	if err := s.transition(StateConnecting, StateAuthenticating); err != nil {
		return err
	}

	identity, err := s.gw.resolver.ResolveIdentity(ctx, credential)
	if err != nil {
		return s.reject("unauthenticated", err)
	}

	s.mu.Lock()
	s.identity = identity
	s.state = StateAuthorizing
	s.mu.Unlock()
	return nil
}

func (s *session) markAuthorized() {
	s.mu.Lock()
	s.authorized = true
	s.mu.Unlock()
}

// join runs AUTHORIZING -> JOINED: conn joins channels and the user is
// counted online. beforeJoin runs first, with conn already set.
func (s *session) join(ctx context.Context, conn websocket.Subscriber, channels []string, beforeJoin func()) error {
	s.mu.Lock()
	if s.state != StateAuthorizing || !s.authorized {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.conn = conn
	identity := s.identity
	s.mu.Unlock()

	if beforeJoin != nil {
		beforeJoin()
	}
	for _, ch := range channels {
		s.gw.hub.Join(ch, conn)
	}

	s.mu.Lock()
	s.state = StateJoined
	s.mu.Unlock()

	if s.gw.tracker.SetOnline(identity.UserID) {
		s.gw.broadcastStatus(ctx, identity, true)
	}
	logging.Ctx(ctx).Debug().Str("endpoint", s.endpoint).Strs("channels", channels).Msg("session joined")
	return nil
}

// Close leaves every channel and releases the presence count. It is
// idempotent. A session closed before JOINED holds nothing to release.
func (s *session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		prev := s.state
		s.state = StateClosed
		conn := s.conn
		identity := s.identity
		s.mu.Unlock()

		if prev != StateJoined {
			return
		}
		s.gw.hub.Detach(conn)
		if s.gw.tracker.SetOffline(identity.UserID) {
			s.gw.broadcastStatus(context.Background(), identity, false)
		}
	})
}

// reply delivers a frame to this connection only.
func (s *session) reply(ctx context.Context, frame []byte) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := conn.Deliver(frame); err != nil && !errors.Is(err, websocket.ErrClientClosed) {
		logging.Ctx(ctx).Debug().Err(err).Msg("failed to deliver reply")
	}
}

func (s *session) replyError(ctx context.Context, reason, message string) {
	metrics.WSFramesRejected.WithLabelValues(reason).Inc()
	s.reply(ctx, EncodeError(message))
}

// decode applies the rate limit and parses raw. ok is false when the frame
// was answered with an error or the session is not joined.
func (s *session) decode(ctx context.Context, raw []byte) (InboundFrame, bool) {
	if s.State() != StateJoined {
		return nil, false
	}
	if !s.limiter.Allow() {
		s.replyError(ctx, "rate_limited", MsgRateLimited)
		return nil, false
	}

	frame, err := DecodeFrame(raw)
	if err != nil {
		s.replyError(ctx, "invalid_json", MsgInvalidJSON)
		return nil, false
	}
	metrics.WSFramesReceived.WithLabelValues(string(frame.FrameType())).Inc()
	return frame, true
}

func (s *session) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.gw.opts.StoreTimeout)
}
