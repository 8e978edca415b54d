/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package feed wires the parser and order-book engine from package market
// into the running pipeline: one connection task, one control router, and
// one writer task, coordinated through bounded channels and a shutdown
// broadcast.
package feed

import "context"

// Transport is the framed, full-duplex text-message connection the
// connection task reads from and writes to. The concrete implementation
// (internal/wsconn) wraps gorilla/websocket; this interface is the seam
// the spec treats as an assumed external primitive.
type Transport interface {
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteMessage(ctx context.Context, payload []byte) error
	Close() error
}

// Command is an outbound frame submitted to the connection task's mailbox.
// Done surfaces only a transport send error; the RPC reply itself arrives
// asynchronously through the control router.
type Command struct {
	Payload []byte
	Done    chan error
}

// commandMailboxCapacity is the bounded, blocking-send outbound mailbox.
const commandMailboxCapacity = 100

// fastChannelCapacity bounds the trade and book channels; producers use
// non-blocking try-send and drop on overflow rather than ever block the
// reader.
const fastChannelCapacity = 1000

// slowChannelCapacity is the capacity reserved for the parsed (slow) and
// control channels. The current pipeline has no such channels: the
// connection task hands decoded control messages straight to
// Router.Dispatch, which delivers them to one-shot waiter channels.
const slowChannelCapacity = 100
