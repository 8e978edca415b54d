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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Alex-MGB/haiku-fh/internal/market"
	"github.com/Alex-MGB/haiku-fh/internal/metrics"
)

type recordingShm struct {
	writes []market.Top10View
}

func (r *recordingShm) WriteOrderbookUpdate(instrumentIdx uint8, view market.Top10View, timestampNs uint64, flags market.UpdateFlags) {
	r.writes = append(r.writes, view)
}

type recordingRing struct {
	trades []market.TradeEvent
}

func (r *recordingRing) PushTrade(ev market.TradeEvent) error {
	r.trades = append(r.trades, ev)
	return nil
}

func newTestWriter(t *testing.T) (*Writer, *recordingShm, *recordingRing, chan market.TradeEvent, chan market.OrderbookResult, chan struct{}) {
	t.Helper()
	shm := &recordingShm{}
	ring := &recordingRing{}
	tradeCh := make(chan market.TradeEvent, 10)
	bookCh := make(chan market.OrderbookResult, 10)
	shutdown := make(chan struct{})
	w := NewWriter(zap.NewNop(), shm, ring, metrics.New(), []string{"ETH-PERPETUAL"}, tradeCh, bookCh, shutdown)
	return w, shm, ring, tradeCh, bookCh, shutdown
}

func TestWriter_DrainsTradesIntoRing(t *testing.T) {
	w, _, ring, tradeCh, _, shutdown := newTestWriter(t)

	tradeCh <- market.TradeEvent{InstrumentIdx: 0, Price: 100, Size: 1}
	close(tradeCh)

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	require.Eventually(t, func() bool { return len(ring.trades) == 1 }, time.Second, time.Millisecond)
	close(shutdown)
	<-done
}

func TestWriter_AppliesSnapshotAndPublishes(t *testing.T) {
	w, shm, _, _, bookCh, shutdown := newTestWriter(t)

	var update market.OrderbookUpdateRaw
	update.IsSnapshot = true
	update.Bids.Append(market.OrderbookLevel{Action: market.LevelNew, Price: 100, Size: 5})
	bookCh <- market.OrderbookResult{InstrumentIdx: 0, ChangeID: 1, Update: update}
	close(bookCh)

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	require.Eventually(t, func() bool { return len(shm.writes) == 1 }, time.Second, time.Millisecond)
	require.Equal(t, uint8(1), shm.writes[0].BidCount)
	require.Equal(t, float32(100), shm.writes[0].BidPrices[0])

	close(shutdown)
	<-done
}

func TestWriter_SequenceGapLeavesShmUntouched(t *testing.T) {
	w, shm, _, _, bookCh, shutdown := newTestWriter(t)

	var change market.OrderbookUpdateRaw
	change.PrevChangeID = 999 // fresh book's lastChangeID is 0, so this is a gap
	change.Bids.Append(market.OrderbookLevel{Action: market.LevelNew, Price: 100, Size: 1})
	bookCh <- market.OrderbookResult{InstrumentIdx: 0, ChangeID: 1000, Update: change}
	close(bookCh)

	done := make(chan error, 1)
	go func() { done <- w.Run() }()

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, shm.writes)

	close(shutdown)
	<-done
}
