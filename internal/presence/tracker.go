// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/metrics"
)

const defaultWriteTimeout = 5 * time.Second

// Tracker holds a live-connection count per user. A user is online while
// the count is above zero, so a second device closing never hides the first.
//
// Durable writes happen in the background. Each write re-reads the in-memory
// state under a per-user lock, so the stored flag converges to the latest
// state however the goroutines are scheduled.
type Tracker struct {
	store        Store
	writeTimeout time.Duration

	mu     sync.RWMutex
	counts map[string]int

	userLocks sync.Map
	pending   sync.WaitGroup
}

// NewTracker creates a tracker writing through to store. A nil store keeps
// presence in memory only.
func NewTracker(store Store, writeTimeout time.Duration) *Tracker {
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &Tracker{
		store:        store,
		writeTimeout: writeTimeout,
		counts:       make(map[string]int),
	}
}

// SetOnline records one more live connection for userID. It reports true
// when the user went from offline to online.
func (t *Tracker) SetOnline(userID string) bool {
	t.mu.Lock()
	t.counts[userID]++
	became := t.counts[userID] == 1
	t.mu.Unlock()

	if became {
		metrics.RecordPresenceTransition(true)
	}
	t.persist(userID)
	return became
}

// SetOffline records one closed connection for userID. It reports true when
// the last connection closed. Calling it for a user with no connections is a
// no-op apart from refreshing last-seen.
func (t *Tracker) SetOffline(userID string) bool {
	t.mu.Lock()
	n, ok := t.counts[userID]
	went := false
	switch {
	case !ok:
	case n <= 1:
		delete(t.counts, userID)
		went = true
	default:
		t.counts[userID] = n - 1
	}
	t.mu.Unlock()

	if went {
		metrics.RecordPresenceTransition(false)
	}
	t.persist(userID)
	return went
}

// IsOnline reports whether userID has at least one live connection.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[userID] > 0
}

// Connections returns the live connection count of userID.
func (t *Tracker) Connections(userID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.counts[userID]
}

// ListOnline returns the online user ids, sorted.
func (t *Tracker) ListOnline() []string {
	t.mu.RLock()
	ids := make([]string, 0, len(t.counts))
	for id := range t.counts {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Reconcile clears durable online flags left behind by a previous process.
// Call it before accepting connections.
func (t *Tracker) Reconcile(ctx context.Context) (int, error) {
	if t.store == nil {
		return 0, nil
	}
	n, err := t.store.ResetOnlinePresence(ctx)
	if err != nil {
		return 0, err
	}
	logging.Info().Int("reset", n).Msg("reconciled stale presence records")
	return n, nil
}

// Wait blocks until every background write has finished.
func (t *Tracker) Wait() {
	t.pending.Wait()
}

func (t *Tracker) lockFor(userID string) *sync.Mutex {
	mu, _ := t.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (t *Tracker) persist(userID string) {
	if t.store == nil {
		return
	}

	t.pending.Add(1)
	go func() {
		defer t.pending.Done()

		mu := t.lockFor(userID)
		mu.Lock()
		defer mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
		defer cancel()

		online := t.IsOnline(userID)
		if online {
			if _, err := t.store.GetOrCreatePresence(ctx, userID); err != nil {
				t.logWriteError("get_or_create", userID, err)
				return
			}
		}
		if err := t.store.SetPresence(ctx, userID, online); err != nil {
			t.logWriteError("set", userID, err)
		}
	}()
}

func (t *Tracker) logWriteError(op, userID string, err error) {
	metrics.PresenceStoreErrors.WithLabelValues(op).Inc()
	event := logging.Warn()
	if IsRejected(err) {
		event = logging.Debug()
	}
	event.Err(err).Str("user_id", userID).Str("operation", op).Msg("presence write failed")
}
