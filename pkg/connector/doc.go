// Copyright 2024-2026 Remi Philippe
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package connector implements a bidirectional IRC-Redis bridge.
//
// Lines received from the IRC server are numbered with the Redis counter
// irc-read-cnt, appended to the bounded list irc-read as "<seq> <line>",
// and announced by publishing the sequence number on the irc-read channel.
// Commands pushed by other processes onto the irc-write list are popped,
// validated as IRC messages, and written to the server.
//
// # Core Types
//
// [Bridge] owns the two loops. Each loop runs in its own goroutine with its
// own [Store] connection; the two share only the [ProtocolConn].
//
// [FloodGovernor] enforces a fixed pause after every popped command so a
// queue backlog cannot flood the IRC server.
//
// # Reconnection
//
// The inbound loop is the only place that notices a closed connection.
// When the event stream ends it waits for the reconnect cooldown, calls
// Reconnect and then Identify, and resumes reading whatever the outcome.
// Outbound send failures are logged and dropped; they do not trigger a
// reconnect.
//
// # Error Policy
//
// Store failures while recording an inbound line are logged and ignored:
// a failed increment records the line with sequence 0, and failed push,
// trim, or publish calls are skipped. Only failures to reach the store at
// loop startup are returned, wrapped with [ErrStoreUnavailable].
//
// # Sub-packages
//
//   - ircconn implements [ProtocolConn] on top of gopkg.in/irc.v4.
//   - redisstore implements [Store] on top of go-redis.
package connector
