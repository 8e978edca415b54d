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

package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Alex-MGB/haiku-fh/internal/config"
	"github.com/Alex-MGB/haiku-fh/internal/metrics"
)

// fakeTransport is an in-memory Transport that answers the auth/subscribe
// handshake with scripted replies and otherwise blocks until closed.
type fakeTransport struct {
	inbound chan []byte
	closed  chan struct{}
	silent  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 10),
		closed:  make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-f.inbound:
		return msg, nil
	case <-f.closed:
		return nil, fmt.Errorf("transport closed")
	}
}

func (f *fakeTransport) WriteMessage(ctx context.Context, payload []byte) error {
	if f.silent {
		return nil
	}
	var decoded struct {
		ID     uint64 `json:"id"`
		Method string `json:"method"`
	}
	_ = json.Unmarshal(payload, &decoded)
	switch decoded.Method {
	case "public/auth":
		f.inbound <- []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":{"access_token":"tok","expires_in":3600,"token_type":"bearer","scope":"all"}}`, decoded.ID))
	case "public/subscribe":
		f.inbound <- []byte(fmt.Sprintf(`{"jsonrpc":"2.0","id":%d,"result":["trades.BTC-PERPETUAL.raw"]}`, decoded.ID))
	}
	return nil
}

func (f *fakeTransport) Close() error {
	select {
	case <-f.closed:
	default:
		close(f.closed)
	}
	return nil
}

func newTestShmMeta(instruments ...string) *config.ShmMetadata {
	return &config.ShmMetadata{
		OrderbookPath:  "/dev/null",
		TradeRingPath:  "/dev/null",
		TradeRingSlots: 1024,
		Instruments:    instruments,
	}
}

func TestSupervisor_HandshakeSucceedsThenShutsDownOnContextCancel(t *testing.T) {
	transport := newFakeTransport()
	feedCfg := &config.FeedConfig{
		URL:      "wss://example.test",
		Key:      "key",
		Secret:   "secret",
		Channels: []string{"trades.BTC-PERPETUAL.raw"},
	}
	shmMeta := newTestShmMeta("BTC-PERPETUAL")

	dial := func(ctx context.Context, url string) (Transport, error) {
		return transport, nil
	}

	sup := New(feedCfg, shmMeta, zap.NewNop(), metrics.New(), dial, &recordingShm{}, &recordingRing{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sup.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down after context cancellation")
	}
}

func TestSupervisor_HandshakeTimesOutWithoutReply(t *testing.T) {
	transport := newFakeTransport()
	transport.silent = true

	feedCfg := &config.FeedConfig{
		URL:      "wss://example.test",
		Key:      "key",
		Secret:   "secret",
		Channels: []string{"trades.BTC-PERPETUAL.raw"},
	}
	shmMeta := newTestShmMeta("BTC-PERPETUAL")

	dial := func(ctx context.Context, url string) (Transport, error) {
		return transport, nil
	}

	sup := New(feedCfg, shmMeta, zap.NewNop(), metrics.New(), dial, &recordingShm{}, &recordingRing{})

	// A short deadline on the outer context bounds authTimeout's derived
	// context to the same window, so the handshake times out quickly
	// instead of waiting the full 30s auth timeout.
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := sup.Run(ctx)
	require.Error(t, err)
}
