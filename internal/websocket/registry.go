// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package websocket

import (
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultShards is used when NewRegistry is given a non-positive count.
const DefaultShards = 32

// Subscriber is a channel member. Deliver must not block.
type Subscriber interface {
	ID() uint64
	UserID() string
	Deliver(frame []byte) error
}

// Event is one encoded frame addressed to a channel.
//
// When SkipOrigin is set the frame is not delivered to any member whose
// UserID equals OriginUserID. The check runs per member at delivery time, so
// every connection of the originating user is excluded.
type Event struct {
	Channel      string `json:"channel"`
	Frame        []byte `json:"frame"`
	OriginUserID string `json:"origin_user_id,omitempty"`
	SkipOrigin   bool   `json:"skip_origin,omitempty"`
}

// DeliveryReport counts the outcome of one broadcast.
type DeliveryReport struct {
	Delivered int
	Skipped   int
	Failed    int
}

type shard struct {
	mu       sync.RWMutex
	channels map[string]map[uint64]Subscriber
}

// Registry maps channel names to their live members.
//
// Channels are spread over a fixed number of shards by xxhash of the name;
// each shard has its own lock so unrelated conversations never contend.
// Empty channels are deleted as soon as their last member leaves.
type Registry struct {
	shards []*shard
	mask   uint64
}

// NewRegistry creates a registry with n shards, rounded up to a power of two.
func NewRegistry(n int) *Registry {
	if n <= 0 {
		n = DefaultShards
	}
	size := 1
	for size < n {
		size <<= 1
	}

	r := &Registry{
		shards: make([]*shard, size),
		mask:   uint64(size - 1),
	}
	for i := range r.shards {
		r.shards[i] = &shard{channels: make(map[string]map[uint64]Subscriber)}
	}
	return r
}

func (r *Registry) shardFor(channel string) *shard {
	return r.shards[xxhash.Sum64String(channel)&r.mask]
}

// Join adds s to channel. It reports false when s was already a member.
func (r *Registry) Join(channel string, s Subscriber) bool {
	sh := r.shardFor(channel)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	members, ok := sh.channels[channel]
	if !ok {
		members = make(map[uint64]Subscriber)
		sh.channels[channel] = members
	}
	if _, exists := members[s.ID()]; exists {
		return false
	}
	members[s.ID()] = s
	return true
}

// Leave removes s from channel. It reports false when s was not a member.
func (r *Registry) Leave(channel string, s Subscriber) bool {
	return r.leave(channel, s.ID())
}

func (r *Registry) leave(channel string, id uint64) bool {
	sh := r.shardFor(channel)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	members, ok := sh.channels[channel]
	if !ok {
		return false
	}
	if _, exists := members[id]; !exists {
		return false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(sh.channels, channel)
	}
	return true
}

// Members returns a snapshot of channel members ordered by subscriber id.
func (r *Registry) Members(channel string) []Subscriber {
	sh := r.shardFor(channel)
	sh.mu.RLock()
	members := make([]Subscriber, 0, len(sh.channels[channel]))
	for _, s := range sh.channels[channel] {
		members = append(members, s)
	}
	sh.mu.RUnlock()

	sort.Slice(members, func(i, j int) bool {
		return members[i].ID() < members[j].ID()
	})
	return members
}

// IsMember reports whether s currently belongs to channel.
func (r *Registry) IsMember(channel string, s Subscriber) bool {
	sh := r.shardFor(channel)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.channels[channel][s.ID()]
	return ok
}

// Broadcast delivers ev.Frame to the members of ev.Channel at call time.
//
// Delivery happens outside the shard lock in subscriber id order. A member
// whose Deliver fails is removed from the channel; the others are unaffected.
func (r *Registry) Broadcast(ev Event) DeliveryReport {
	var report DeliveryReport
	for _, s := range r.Members(ev.Channel) {
		if ev.SkipOrigin && s.UserID() == ev.OriginUserID {
			report.Skipped++
			continue
		}
		if err := s.Deliver(ev.Frame); err != nil {
			report.Failed++
			r.leave(ev.Channel, s.ID())
			continue
		}
		report.Delivered++
	}
	return report
}

// ChannelCount returns the number of non-empty channels.
func (r *Registry) ChannelCount() int {
	total := 0
	for _, sh := range r.shards {
		sh.mu.RLock()
		total += len(sh.channels)
		sh.mu.RUnlock()
	}
	return total
}
