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

// Package market implements the hot-path byte parser and the per-instrument
// order-book engine that together form the core of the feed handler.
//
// HOT PATH [1]: types.go defines the fixed-size records that cross from the
// parser to the channels without a heap allocation per message.
package market

// Side identifies which side of the book or which aggressor a trade took.
type Side uint8

const (
	SideSell Side = 0
	SideBuy  Side = 1
)

// TradeEvent is the fixed-size record handed to the trade channel and
// ultimately pushed into the ring buffer. Field order groups the 8-byte
// values first to keep the struct compact and alignment-friendly.
type TradeEvent struct {
	TimestampNs    uint64
	TradeID        uint64
	Price          float32
	Size           float32
	InstrumentIdx  uint8
	Side           Side
	_              [6]byte // pad to a cache-line-friendly multiple of 8
}

// LevelAction distinguishes the three ways a raw order-book level entry can
// mutate engine state.
type LevelAction uint8

const (
	LevelNew LevelAction = iota
	LevelChange
	LevelDelete
)

// OrderbookLevel is one decoded "[action, price, size]" entry.
type OrderbookLevel struct {
	Action LevelAction
	Price  float32
	Size   float32
}

// maxInlineTrades is the small-buffer-optimized capacity for a trade burst;
// a single "data" array practically never exceeds this on the exchange's
// wire, so TradeBurst never spills to the heap in the common case.
const maxInlineTrades = 4

// TradeBurst is a fixed-capacity inline container for the trades decoded
// from one frame, spilling to an overflow slice only past maxInlineTrades.
type TradeBurst struct {
	inline   [maxInlineTrades]TradeEvent
	n        int
	overflow []TradeEvent
}

// Append adds a trade to the burst, spilling to the heap past the inline
// capacity. This is the only allocation path in the hot trade decoder, and
// only triggers on bursts larger than four trades.
func (b *TradeBurst) Append(ev TradeEvent) {
	if b.n < maxInlineTrades {
		b.inline[b.n] = ev
		b.n++
		return
	}
	b.overflow = append(b.overflow, ev)
}

// Len returns the number of trades held.
func (b *TradeBurst) Len() int { return b.n + len(b.overflow) }

// At returns the i-th trade, panicking if i is out of range. Callers should
// bound i by Len().
func (b *TradeBurst) At(i int) TradeEvent {
	if i < b.n {
		return b.inline[i]
	}
	return b.overflow[i-b.n]
}

// maxInlineLevels is the small-buffer-optimized capacity for a per-side
// level burst; the engine only ever tracks 15 levels deep, so 16 inline
// slots cover every update the engine can use without spilling.
const maxInlineLevels = 16

// LevelBurst is a fixed-capacity inline container for the ordered levels
// decoded for one side of an order-book update.
type LevelBurst struct {
	inline   [maxInlineLevels]OrderbookLevel
	n        int
	overflow []OrderbookLevel
}

// Append adds a level to the burst.
func (b *LevelBurst) Append(lvl OrderbookLevel) {
	if b.n < maxInlineLevels {
		b.inline[b.n] = lvl
		b.n++
		return
	}
	b.overflow = append(b.overflow, lvl)
}

// Len returns the number of levels held.
func (b *LevelBurst) Len() int { return b.n + len(b.overflow) }

// At returns the i-th level, panicking if i is out of range.
func (b *LevelBurst) At(i int) OrderbookLevel {
	if i < b.n {
		return b.inline[i]
	}
	return b.overflow[i-b.n]
}

// UpdateFlags bits indicate which sides an OrderbookUpdateRaw carries, so a
// downstream consumer can skip unchanged sides.
type UpdateFlags uint8

const (
	FlagHasBids UpdateFlags = 1 << 0
	FlagHasAsks UpdateFlags = 1 << 1
)

// OrderbookUpdateRaw is the decoded, not-yet-applied order-book delta.
type OrderbookUpdateRaw struct {
	PrevChangeID uint64
	Bids         LevelBurst
	Asks         LevelBurst
	Flags        UpdateFlags
	IsSnapshot   bool
}

// OrderbookResult pairs a decoded update with its envelope metadata, as
// handed from the parser to the book channel.
type OrderbookResult struct {
	ChangeID      uint64
	TimestampNs   uint64
	InstrumentIdx uint8
	Update        OrderbookUpdateRaw
}

// Top10View is the publishable projection of one instrument's book: the
// best 10 levels per side, zero-padded where fewer are present.
type Top10View struct {
	BidPrices [10]float32
	BidSizes  [10]float32
	AskPrices [10]float32
	AskSizes  [10]float32
	BidCount  uint8
	AskCount  uint8
}
