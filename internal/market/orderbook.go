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

// Package market also holds the per-instrument order-book engine: a
// depth-15 internal buffer per side that publishes only the top 10, with
// sequence-gap detection on every applied change.
package market

import "sort"

// bookDepth is the internal per-side buffer depth. Only the best 10 of
// these are ever published; levels at depth 11-15 exist purely so a
// level that falls out of the top 10 can be evicted cleanly instead of
// being silently forgotten the instant it drops below rank 10.
const bookDepth = 15

// publishDepth is how many levels per side reach Top10View.
const publishDepth = 10

type priceLevel struct {
	price float32
	size  float32
}

// Book is the engine for a single instrument: two depth-15 sorted arrays
// and the change id watermark used for gap detection. A Book is owned
// exclusively by the writer task; it is never shared or locked.
type Book struct {
	bids      [bookDepth]priceLevel
	bidCount  uint8
	asks      [bookDepth]priceLevel
	askCount  uint8
	lastChangeID uint64
	initialized  bool
}

// NewBook returns an empty book, not yet initialized by a snapshot.
func NewBook() *Book {
	return &Book{}
}

// Apply applies a decoded update to the book. For a change update, Apply
// checks prev_change_id against LastChangeID and returns
// *SequenceGapError without mutating state on a mismatch.
func (b *Book) Apply(instrumentIdx uint8, update OrderbookUpdateRaw, changeID uint64) (Top10View, error) {
	if update.IsSnapshot {
		b.reset()
	} else if update.PrevChangeID != b.lastChangeID {
		return Top10View{}, &SequenceGapError{
			InstrumentIdx: instrumentIdx,
			Expected:      b.lastChangeID,
			Received:      update.PrevChangeID,
		}
	}

	for i := 0; i < update.Bids.Len(); i++ {
		applyLevel(&b.bids, &b.bidCount, update.Bids.At(i), true)
	}
	for i := 0; i < update.Asks.Len(); i++ {
		applyLevel(&b.asks, &b.askCount, update.Asks.At(i), false)
	}

	b.lastChangeID = changeID
	b.initialized = true
	return b.publish(), nil
}

// reset clears book state ahead of applying a snapshot.
func (b *Book) reset() {
	b.bidCount = 0
	b.askCount = 0
}

// LastChangeID returns the watermark used for the next sequence check.
func (b *Book) LastChangeID() uint64 { return b.lastChangeID }

// Initialized reports whether at least one snapshot or change has been
// applied.
func (b *Book) Initialized() bool { return b.initialized }

// CrossedBook reports whether the best bid is at or above the best ask,
// given both sides are non-empty. The engine never rejects on this; it is
// surfaced purely so the caller can log it.
func (b *Book) CrossedBook() (crossed bool, bid, ask float32) {
	if b.bidCount == 0 || b.askCount == 0 {
		return false, 0, 0
	}
	return b.bids[0].price >= b.asks[0].price, b.bids[0].price, b.asks[0].price
}

func applyLevel(levels *[bookDepth]priceLevel, count *uint8, lvl OrderbookLevel, isBid bool) {
	switch lvl.Action {
	case LevelNew, LevelChange:
		if lvl.Size > 0 {
			insertLevel(levels, count, lvl.Price, lvl.Size, isBid)
		} else {
			removeLevel(levels, count, lvl.Price, isBid)
		}
	case LevelDelete:
		removeLevel(levels, count, lvl.Price, isBid)
	}
}

// insertLevel inserts or updates a level at its sorted position. When the
// side is already at bookDepth and the incoming price is worse than the
// worst tracked level, the update is silently dropped: the engine tracks
// 15 levels deep but only ever publishes 10, so depth-15 churn the venue
// sends beyond that is intentionally not retained.
func insertLevel(levels *[bookDepth]priceLevel, count *uint8, price, size float32, isBid bool) {
	if *count >= bookDepth {
		worst := levels[bookDepth-1]
		if isBid && price <= worst.price {
			return
		}
		if !isBid && price >= worst.price {
			return
		}
		*count = bookDepth - 1
	}

	n := int(*count)
	idx, found := findPriceIndex(levels[:n], price, isBid)
	if found {
		levels[idx].size = size
		return
	}
	if idx < n {
		copy(levels[idx+1:n+1], levels[idx:n])
	}
	levels[idx] = priceLevel{price: price, size: size}
	*count++
}

// removeLevel deletes the level at price if present; a miss is a no-op.
func removeLevel(levels *[bookDepth]priceLevel, count *uint8, price float32, isBid bool) {
	n := int(*count)
	idx, found := findPriceIndex(levels[:n], price, isBid)
	if !found {
		return
	}
	if idx+1 < n {
		copy(levels[idx:n-1], levels[idx+1:n])
	}
	*count--
}

// findPriceIndex binary-searches the sorted prefix levels[:len] for price.
// Bids are sorted strictly descending, asks strictly ascending.
func findPriceIndex(levels []priceLevel, price float32, isBid bool) (idx int, found bool) {
	n := len(levels)
	if n == 0 {
		return 0, false
	}
	var less func(i int) bool
	if isBid {
		less = func(i int) bool { return levels[i].price <= price }
	} else {
		less = func(i int) bool { return levels[i].price >= price }
	}
	i := sort.Search(n, less)
	if i < n && levels[i].price == price {
		return i, true
	}
	return i, false
}

// publish builds the zero-padded top-10 projection of current state.
func (b *Book) publish() Top10View {
	var v Top10View
	bidN := int(b.bidCount)
	if bidN > publishDepth {
		bidN = publishDepth
	}
	for i := 0; i < bidN; i++ {
		v.BidPrices[i] = b.bids[i].price
		v.BidSizes[i] = b.bids[i].size
	}
	v.BidCount = uint8(bidN)

	askN := int(b.askCount)
	if askN > publishDepth {
		askN = publishDepth
	}
	for i := 0; i < askN; i++ {
		v.AskPrices[i] = b.asks[i].price
		v.AskSizes[i] = b.asks[i].size
	}
	v.AskCount = uint8(askN)
	return v
}
