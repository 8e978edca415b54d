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

// Package wsconn adapts a gorilla/websocket connection to the
// feed.Transport interface, keeping the transport library out of the
// connection task's package.
package wsconn

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

// dialTimeout bounds the initial handshake; the exchange connection
// itself enforces its own read deadlines once established.
const dialTimeout = 10 * time.Second

// Conn wraps a *websocket.Conn as a feed.Transport.
type Conn struct {
	ws *websocket.Conn
}

// Dial opens a websocket connection to url.
func Dial(ctx context.Context, url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws}, nil
}

// ReadMessage blocks until one text frame arrives. ctx is honored only
// insofar as the caller is expected to run this from a goroutine it can
// abandon on cancellation; gorilla/websocket has no native context-aware
// read, so a connection close is how cancellation actually unblocks it.
func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	_, payload, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// WriteMessage sends payload as a single text frame.
func (c *Conn) WriteMessage(ctx context.Context, payload []byte) error {
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.ws.Close()
}
