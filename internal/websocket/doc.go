// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

/*
Package websocket owns the live connections of the service and the channel
registry used to fan events out to them.

Key Components:

  - Registry: channel name to member set, partitioned into xxhash shards
  - Hub: tracks clients and their channel memberships, delivers events locally
    and hands them to an optional relay for other nodes
  - Client: one gorilla/websocket connection with a read pump and a write pump

Each client has two goroutines:
  - readPump: reads frames and passes them, in order, to the client's FrameHandler
  - writePump: drains the bounded send queue and sends pings

A client whose send queue is full is closed. Closing a client, from either
side, removes it from every channel before the close returns.

Channels:

	conversation:<conversation_id>   members of one chat
	presence                         global online/offline feed
	notifications:<user_id>          personal new-message feed
*/
package websocket
