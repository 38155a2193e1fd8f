// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package auth

import (
	"context"
	"time"

	"github.com/tomtom215/workconnect/internal/cache"
	"github.com/tomtom215/workconnect/internal/models"
)

// CachedDirectory keeps recently loaded users in memory so reconnect
// storms do not hit the store once per socket. Misses and store errors
// are never cached, and a deactivated user may keep resolving for at
// most one TTL.
type CachedDirectory struct {
	next  UserDirectory
	users *cache.LRU[models.User]
}

// NewCachedDirectory wraps next. A non-positive ttl returns next unchanged.
func NewCachedDirectory(next UserDirectory, size int, ttl time.Duration) UserDirectory {
	if ttl <= 0 {
		return next
	}
	return &CachedDirectory{next: next, users: cache.NewLRU[models.User](size, ttl)}
}

// GetUser implements UserDirectory.
func (d *CachedDirectory) GetUser(ctx context.Context, id string) (*models.User, bool, error) {
	if u, ok := d.users.Get(id); ok {
		return &u, true, nil
	}
	u, found, err := d.next.GetUser(ctx, id)
	if err != nil || !found {
		return u, found, err
	}
	d.users.Add(id, *u)
	return u, true, nil
}

// Forget evicts id, e.g. after the user was deactivated.
func (d *CachedDirectory) Forget(id string) {
	d.users.Remove(id)
}
