// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package presence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/workconnect/internal/models"
)

const presenceKeyPrefix = "presence:"

// maxConflictRetries bounds retries of a transaction that lost a write race.
const maxConflictRetries = 3

// BadgerStore keeps presence records in BadgerDB, one JSON value per user.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
	now    func() time.Time
}

// NewBadgerStore wraps an already open database. The caller keeps ownership.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db, now: time.Now}
}

// OpenBadgerStore opens a database at path, or an in-memory one when path is
// empty. Close releases it.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open presence badger db: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true, now: time.Now}, nil
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}

func presenceKey(userID string) []byte {
	return []byte(presenceKeyPrefix + userID)
}

func readRecord(txn *badger.Txn, userID string) (*models.PresenceRecord, bool, error) {
	item, err := txn.Get(presenceKey(userID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get presence: %w", err)
	}
	var rec models.PresenceRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return nil, false, fmt.Errorf("decode presence: %w", err)
	}
	return &rec, true, nil
}

func writeRecord(txn *badger.Txn, rec *models.PresenceRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	return txn.Set(presenceKey(rec.UserID), data)
}

func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

// GetOrCreatePresence returns the record of userID, storing an offline one first if absent.
func (s *BadgerStore) GetOrCreatePresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	var out *models.PresenceRecord
	err := s.update(ctx, func(txn *badger.Txn) error {
		rec, found, err := readRecord(txn, userID)
		if err != nil {
			return err
		}
		if !found {
			rec = &models.PresenceRecord{UserID: userID, LastSeen: s.now().UTC()}
			if err := writeRecord(txn, rec); err != nil {
				return err
			}
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SetPresence stores the online flag and bumps last_seen.
func (s *BadgerStore) SetPresence(ctx context.Context, userID string, online bool) error {
	rec := &models.PresenceRecord{UserID: userID, IsOnline: online, LastSeen: s.now().UTC()}
	return s.update(ctx, func(txn *badger.Txn) error {
		return writeRecord(txn, rec)
	})
}

// ListOnlineUserIDs returns the users whose record is online, sorted.
func (s *BadgerStore) ListOnlineUserIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.scan(ctx, func(rec *models.PresenceRecord) {
		if rec.IsOnline {
			ids = append(ids, rec.UserID)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ResetOnlinePresence marks every online record offline.
func (s *BadgerStore) ResetOnlinePresence(ctx context.Context) (int, error) {
	var stale []*models.PresenceRecord
	if err := s.scan(ctx, func(rec *models.PresenceRecord) {
		if rec.IsOnline {
			stale = append(stale, rec)
		}
	}); err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	now := s.now().UTC()
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, rec := range stale {
		rec.IsOnline = false
		rec.LastSeen = now
		data, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("marshal presence: %w", err)
		}
		if err := wb.Set(presenceKey(rec.UserID), data); err != nil {
			return 0, fmt.Errorf("batch presence reset: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush presence reset: %w", err)
	}
	return len(stale), nil
}

func (s *BadgerStore) scan(ctx context.Context, fn func(rec *models.PresenceRecord)) error {
	prefix := []byte(presenceKeyPrefix)
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var rec models.PresenceRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode presence %s: %w", item.Key(), err)
			}
			fn(&rec)
		}
		return nil
	})
}
