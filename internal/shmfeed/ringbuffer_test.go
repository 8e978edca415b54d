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

package shmfeed

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alex-MGB/haiku-fh/internal/market"
)

func TestNewTradeRingBuffer_RejectsNonPowerOfTwo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.shm")
	_, err := NewTradeRingBuffer(path, 100)
	require.ErrorIs(t, err, ErrNotPowerOfTwo)
}

func TestTradeRingBuffer_PushAndReadBackSlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.shm")
	rb, err := NewTradeRingBuffer(path, 4)
	require.NoError(t, err)
	defer rb.Close()

	ev := market.TradeEvent{
		TimestampNs:   999,
		TradeID:       42,
		Price:         100.25,
		Size:          0.5,
		InstrumentIdx: 3,
		Side:          market.SideBuy,
	}
	require.NoError(t, rb.PushTrade(ev))

	slot := rb.slotAt(0)
	require.Equal(t, uint32(2), slot.Seqlock)
	require.Equal(t, uint64(999), slot.TimestampNs)
	require.Equal(t, uint64(42), slot.TradeID)
	require.Equal(t, float32(100.25), slot.Price)
	require.Equal(t, float32(0.5), slot.Size)
	require.Equal(t, uint8(3), slot.InstrumentIdx)
	require.Equal(t, uint8(market.SideBuy), slot.Side)
}

func TestTradeRingBuffer_WrapsAroundSlotCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.shm")
	rb, err := NewTradeRingBuffer(path, 2)
	require.NoError(t, err)
	defer rb.Close()

	for i := uint64(0); i < 5; i++ {
		require.NoError(t, rb.PushTrade(market.TradeEvent{TradeID: i}))
	}

	// Five writes into a 2-slot ring: index 4 masks to slot 0, index 3
	// masks to slot 1, each slot holding its most recent write.
	require.Equal(t, uint64(4), rb.slotAt(0).TradeID)
	require.Equal(t, uint64(3), rb.slotAt(1).TradeID)
}
