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

package market

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func snapshotWithBids(n int) OrderbookUpdateRaw {
	var u OrderbookUpdateRaw
	u.IsSnapshot = true
	for i := 0; i < n; i++ {
		u.Bids.Append(OrderbookLevel{Action: LevelNew, Price: float32(3770 - i), Size: 100})
	}
	u.Asks.Append(OrderbookLevel{Action: LevelNew, Price: 3780, Size: 50})
	return u
}

func TestBook_SnapshotTwelveBidsPublishesTop10(t *testing.T) {
	b := NewBook()
	view, err := b.Apply(1, snapshotWithBids(12), 100)
	require.NoError(t, err)
	require.Equal(t, uint8(10), view.BidCount)
	require.Equal(t, float32(3770), view.BidPrices[0])
	require.Equal(t, float32(3761), view.BidPrices[9])
	require.Equal(t, uint64(100), b.LastChangeID())
}

func TestBook_ChangeMatchingPrevChangeIDUpdatesLevel(t *testing.T) {
	b := NewBook()
	_, err := b.Apply(1, snapshotWithBids(12), 100)
	require.NoError(t, err)

	var change OrderbookUpdateRaw
	change.PrevChangeID = 100
	change.Bids.Append(OrderbookLevel{Action: LevelChange, Price: 3770, Size: 999})

	view, err := b.Apply(1, change, 101)
	require.NoError(t, err)
	require.Equal(t, float32(999), view.BidSizes[0])
	require.Equal(t, uint64(101), b.LastChangeID())
}

func TestBook_SequenceGapLeavesStateUnchanged(t *testing.T) {
	b := NewBook()
	_, err := b.Apply(1, snapshotWithBids(3), 100)
	require.NoError(t, err)

	var change OrderbookUpdateRaw
	change.PrevChangeID = 99 // should have been 100
	change.Bids.Append(OrderbookLevel{Action: LevelNew, Price: 3800, Size: 1})

	_, err = b.Apply(1, change, 101)
	require.Error(t, err)
	var gapErr *SequenceGapError
	require.ErrorAs(t, err, &gapErr)
	require.Equal(t, uint64(100), gapErr.Expected)
	require.Equal(t, uint64(99), gapErr.Received)
	require.Equal(t, uint64(100), b.LastChangeID())

	// A subsequent snapshot recovers and accepts the next delta.
	_, err = b.Apply(1, snapshotWithBids(3), 200)
	require.NoError(t, err)
	var next OrderbookUpdateRaw
	next.PrevChangeID = 200
	next.Bids.Append(OrderbookLevel{Action: LevelNew, Price: 3800, Size: 1})
	_, err = b.Apply(1, next, 201)
	require.NoError(t, err)
}

func TestBook_DeleteOrZeroSizeChangeRemovesLevel(t *testing.T) {
	b := NewBook()
	_, err := b.Apply(1, snapshotWithBids(3), 100)
	require.NoError(t, err)

	var del OrderbookUpdateRaw
	del.PrevChangeID = 100
	del.Bids.Append(OrderbookLevel{Action: LevelDelete, Price: 3769})

	view, err := b.Apply(1, del, 101)
	require.NoError(t, err)
	require.Equal(t, uint8(2), view.BidCount)

	var zeroChange OrderbookUpdateRaw
	zeroChange.PrevChangeID = 101
	zeroChange.Bids.Append(OrderbookLevel{Action: LevelChange, Price: 3770, Size: 0})

	view, err = b.Apply(1, zeroChange, 102)
	require.NoError(t, err)
	require.Equal(t, uint8(1), view.BidCount)
	require.Equal(t, float32(3768), view.BidPrices[0])
}

func TestBook_FullSideInsertWorseThanWorstIsNoop(t *testing.T) {
	b := NewBook()
	u := snapshotWithBids(15)
	_, err := b.Apply(1, u, 100)
	require.NoError(t, err)

	worst := b.bids[bookDepth-1].price

	var change OrderbookUpdateRaw
	change.PrevChangeID = 100
	change.Bids.Append(OrderbookLevel{Action: LevelNew, Price: worst - 1, Size: 5})

	_, err = b.Apply(1, change, 101)
	require.NoError(t, err)
	require.Equal(t, uint8(15), b.bidCount)
	require.Equal(t, worst, b.bids[bookDepth-1].price)
}

func TestBook_DescendingBidsAscendingAsks(t *testing.T) {
	b := NewBook()
	view, err := b.Apply(1, snapshotWithBids(10), 1)
	require.NoError(t, err)
	for i := 0; i+1 < int(view.BidCount); i++ {
		require.Greater(t, view.BidPrices[i], view.BidPrices[i+1])
	}
}

func TestBook_CrossedBookDetected(t *testing.T) {
	b := NewBook()
	var snap OrderbookUpdateRaw
	snap.IsSnapshot = true
	snap.Bids.Append(OrderbookLevel{Action: LevelNew, Price: 100, Size: 1})
	snap.Asks.Append(OrderbookLevel{Action: LevelNew, Price: 90, Size: 1})
	_, err := b.Apply(1, snap, 1)
	require.NoError(t, err)

	crossed, bid, ask := b.CrossedBook()
	require.True(t, crossed)
	require.Equal(t, float32(100), bid)
	require.Equal(t, float32(90), ask)
}
