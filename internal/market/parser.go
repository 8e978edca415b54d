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

// HOT PATH [2]: parser.go is the byte-streaming parser for the subscription
// envelope. It never builds a generic value tree: every field is read by
// comparing literal byte slices at the cursor and advancing past them. The
// exchange is trusted to emit a stable field order; reordering any field
// breaks this parser by design, in exchange for parse times the benchmark
// suite expects in the hundreds-of-nanoseconds range.
package market

import (
	"strconv"

	"github.com/Alex-MGB/haiku-fh/internal/instrument"
)

// subscriptionPrefix is the fixed envelope header every streaming message
// starts with. Its length anchors every offset computed after it.
var subscriptionPrefix = []byte(`{"jsonrpc":"2.0","method":"subscription","params":{"`)

const (
	channelField   = `channel`
	tradesPrefix   = "trades."
	bookPrefix     = "book."
	minFrameLength = 100
)

// ChannelType classifies a decoded envelope's channel so the caller can
// route the buffer to the matching decoder, or to the slow path.
type ChannelType uint8

const (
	ChannelUnknown ChannelType = iota
	ChannelTrades
	ChannelOrderbook
)

// Parser holds the read-only instrument map consulted on every trade and
// order-book decode. A Parser has no mutable state and is safe to invoke
// concurrently over distinct buffers.
type Parser struct {
	instruments *instrument.Index
}

// NewParser builds a Parser bound to an instrument index. The index must
// already be fully populated; Parser never mutates it.
func NewParser(instruments *instrument.Index) *Parser {
	return &Parser{instruments: instruments}
}

// FastResult is the hot-path decode outcome: exactly one of Trades or
// Orderbook is populated, selected by Channel.
type FastResult struct {
	Channel   ChannelType
	Trades    TradeBurst
	Orderbook OrderbookResult
}

// ParseFast classifies buf and decodes it on the hot path. Channel is
// ChannelUnknown, with no error, when buf does not match the known
// envelope shape; the caller should then hand buf to the slow-path parser.
func (p *Parser) ParseFast(buf []byte) (FastResult, error) {
	channel := p.detectChannel(buf)
	switch channel {
	case ChannelTrades:
		burst, err := p.parseTradeBurst(buf)
		if err != nil {
			return FastResult{}, err
		}
		return FastResult{Channel: ChannelTrades, Trades: burst}, nil
	case ChannelOrderbook:
		ob, err := p.parseOrderbookEnvelope(buf)
		if err != nil {
			return FastResult{}, err
		}
		return FastResult{Channel: ChannelOrderbook, Orderbook: ob}, nil
	default:
		return FastResult{Channel: ChannelUnknown}, nil
	}
}

// detectChannel inspects the channel prefix at its fixed offset within the
// envelope. Any buffer shorter than minFrameLength, or whose first 52 bytes
// don't match the known header, is Unknown rather than an error: a caller
// must be able to fall back to the slow path without treating a short
// buffer as a protocol violation.
func (p *Parser) detectChannel(buf []byte) ChannelType {
	if len(buf) < minFrameLength {
		return ChannelUnknown
	}
	if !bytesEqual(buf[:len(subscriptionPrefix)], subscriptionPrefix) {
		return ChannelUnknown
	}
	channelStart := len(subscriptionPrefix) + len(channelField) + 3
	if channelStart+len(tradesPrefix) <= len(buf) && bytesEqual(buf[channelStart:channelStart+len(tradesPrefix)], []byte(tradesPrefix)) {
		return ChannelTrades
	}
	if channelStart+len(bookPrefix) <= len(buf) && bytesEqual(buf[channelStart:channelStart+len(bookPrefix)], []byte(bookPrefix)) {
		return ChannelOrderbook
	}
	return ChannelUnknown
}

// parseTradeBurst decodes the "data":[...] trade array of a trades.*
// envelope. It never allocates for bursts up to maxInlineTrades.
func (p *Parser) parseTradeBurst(buf []byte) (TradeBurst, error) {
	channelStart := len(subscriptionPrefix) + len(channelField) + 3
	dataIdx, err := findLiteral(buf, channelStart, []byte("data"))
	if err != nil {
		return TradeBurst{}, err
	}
	pos, err := expectDelimiter(buf, dataIdx+len("data"), '[')
	if err != nil {
		return TradeBurst{}, err
	}

	var burst TradeBurst
	for {
		pos = skipWhitespace(buf, pos)
		if pos >= len(buf) || buf[pos] == ']' {
			break
		}
		trade, newPos, err := p.parseTradeObject(buf, pos)
		if err != nil {
			return TradeBurst{}, err
		}
		burst.Append(trade)
		pos = skipWhitespace(buf, newPos)
		if pos < len(buf) && buf[pos] == ',' {
			pos++
		}
	}
	return burst, nil
}

// parseTradeObject decodes one trade object in the exchange's fixed field
// order: timestamp, price, amount, direction, index_price, instrument_name,
// trade_seq, mark_price, tick_direction, trade_id, contracts. Only the
// fields feeding TradeEvent are retained; the rest are parsed and discarded
// purely to advance the cursor past them.
func (p *Parser) parseTradeObject(buf []byte, pos int) (TradeEvent, int, error) {
	pos, err := expectDelimiter(buf, pos, '{')
	if err != nil {
		return TradeEvent{}, 0, err
	}

	pos, err = expectField(buf, pos, "timestamp")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	timestamp, pos, err := parseUint(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "price")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	price, pos, err := parseFloat(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "amount")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	amount, pos, err := parseFloat(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "direction")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	dirStart, dirEnd, err := parseString(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	var side Side
	switch string(buf[dirStart:dirEnd]) {
	case "buy":
		side = SideBuy
	case "sell":
		side = SideSell
	default:
		return TradeEvent{}, 0, errBadDirection(string(buf[dirStart:dirEnd]), dirStart)
	}
	pos = expectComma(buf, dirEnd+1)

	pos, err = expectField(buf, pos, "index_price")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	_, pos, err = parseFloat(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "instrument_name")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	nameStart, nameEnd, err := parseString(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	instrumentIdx, ok := p.instruments.Lookup(buf[nameStart:nameEnd])
	if !ok {
		return TradeEvent{}, 0, errUnknownInstrument(string(buf[nameStart:nameEnd]), nameStart)
	}
	pos = expectComma(buf, nameEnd+1)

	pos, err = expectField(buf, pos, "trade_seq")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	_, pos, err = parseFloat(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "mark_price")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	_, pos, err = parseFloat(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "tick_direction")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	_, pos, err = parseUint(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "trade_id")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	idStart, idEnd, err := parseString(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	tradeID, err := parseTradeIDSuffix(buf[idStart:idEnd])
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = expectComma(buf, idEnd+1)

	pos, err = expectField(buf, pos, "contracts")
	if err != nil {
		return TradeEvent{}, 0, err
	}
	_, pos, err = parseFloat(buf, pos)
	if err != nil {
		return TradeEvent{}, 0, err
	}
	pos = skipWhitespace(buf, pos)
	if pos >= len(buf) || buf[pos] != '}' {
		return TradeEvent{}, 0, errFormat("expected trade object close", pos)
	}
	pos++

	return TradeEvent{
		TimestampNs:   timestamp,
		TradeID:       tradeID,
		Price:         float32(price),
		Size:          float32(amount),
		InstrumentIdx: instrumentIdx,
		Side:          side,
	}, pos, nil
}

// parseTradeIDSuffix extracts the numeric suffix of an exchange trade id,
// e.g. "ETH-259727165" -> 259727165.
func parseTradeIDSuffix(id []byte) (uint64, error) {
	lastDash := -1
	for i := len(id) - 1; i >= 0; i-- {
		if id[i] == '-' {
			lastDash = i
			break
		}
	}
	suffix := id
	if lastDash >= 0 {
		suffix = id[lastDash+1:]
	}
	v, err := strconv.ParseUint(string(suffix), 10, 64)
	if err != nil {
		return 0, errBadTradeID(string(id), 0)
	}
	return v, nil
}

// parseOrderbookEnvelope decodes a book.* channel envelope: the shared
// timestamp/type/change_id/instrument_name header, then the bid/ask level
// arrays via the snapshot or change decoder.
func (p *Parser) parseOrderbookEnvelope(buf []byte) (OrderbookResult, error) {
	channelStart := len(subscriptionPrefix) + len(channelField) + 3
	dataIdx, err := findLiteral(buf, channelStart, []byte("data"))
	if err != nil {
		return OrderbookResult{}, err
	}
	pos, err := expectDelimiter(buf, dataIdx+len("data"), '{')
	if err != nil {
		return OrderbookResult{}, err
	}

	pos, err = expectField(buf, pos, "timestamp")
	if err != nil {
		return OrderbookResult{}, err
	}
	timestamp, pos, err := parseUint(buf, pos)
	if err != nil {
		return OrderbookResult{}, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "type")
	if err != nil {
		return OrderbookResult{}, err
	}
	typeStart, typeEnd, err := parseString(buf, pos)
	if err != nil {
		return OrderbookResult{}, err
	}
	isSnapshot := false
	switch string(buf[typeStart:typeEnd]) {
	case "snapshot":
		isSnapshot = true
	case "change":
		isSnapshot = false
	default:
		return OrderbookResult{}, errFormat("unknown orderbook type "+string(buf[typeStart:typeEnd]), typeStart)
	}
	pos = expectComma(buf, typeEnd+1)

	pos, err = expectField(buf, pos, "change_id")
	if err != nil {
		return OrderbookResult{}, err
	}
	changeID, pos, err := parseUint(buf, pos)
	if err != nil {
		return OrderbookResult{}, err
	}
	pos = expectComma(buf, pos)

	pos, err = expectField(buf, pos, "instrument_name")
	if err != nil {
		return OrderbookResult{}, err
	}
	nameStart, nameEnd, err := parseString(buf, pos)
	if err != nil {
		return OrderbookResult{}, err
	}
	instrumentIdx, ok := p.instruments.Lookup(buf[nameStart:nameEnd])
	if !ok {
		return OrderbookResult{}, errUnknownInstrument(string(buf[nameStart:nameEnd]), nameStart)
	}
	pos = expectComma(buf, nameEnd+1)

	pos, err = expectField(buf, pos, "bids")
	if err != nil {
		return OrderbookResult{}, err
	}
	pos, err = expectDelimiter(buf, pos, '[')
	if err != nil {
		return OrderbookResult{}, err
	}

	var update OrderbookUpdateRaw
	update.IsSnapshot = isSnapshot
	if isSnapshot {
		pos, err = p.parseOrderbookSnapshotSide(buf, pos, &update.Bids)
	} else {
		pos, err = p.parseOrderbookChangeSide(buf, pos, &update.Bids)
	}
	if err != nil {
		return OrderbookResult{}, err
	}
	if update.Bids.Len() > 0 {
		update.Flags |= FlagHasBids
	}
	pos = skipWhitespace(buf, pos)
	if pos < len(buf) && buf[pos] == ',' {
		pos++
	}

	pos, err = expectField(buf, pos, "asks")
	if err != nil {
		return OrderbookResult{}, err
	}
	pos, err = expectDelimiter(buf, pos, '[')
	if err != nil {
		return OrderbookResult{}, err
	}
	if isSnapshot {
		pos, err = p.parseOrderbookSnapshotSide(buf, pos, &update.Asks)
	} else {
		pos, err = p.parseOrderbookChangeSide(buf, pos, &update.Asks)
	}
	if err != nil {
		return OrderbookResult{}, err
	}
	if update.Asks.Len() > 0 {
		update.Flags |= FlagHasAsks
	}

	if !isSnapshot {
		pos = skipWhitespace(buf, pos)
		if pos < len(buf) && buf[pos] == ',' {
			pos++
		}
		pos, err = expectField(buf, pos, "prev_change_id")
		if err != nil {
			return OrderbookResult{}, err
		}
		update.PrevChangeID, _, err = parseUint(buf, pos)
		if err != nil {
			return OrderbookResult{}, err
		}
	}

	return OrderbookResult{
		ChangeID:      changeID,
		TimestampNs:   timestamp,
		InstrumentIdx: instrumentIdx,
		Update:        update,
	}, nil
}

// parseOrderbookChangeSide decodes every level present for one side of a
// "change" update: the venue only ever sends the levels that actually
// moved, so there is no depth cap here.
func (p *Parser) parseOrderbookChangeSide(buf []byte, pos int, into *LevelBurst) (int, error) {
	for {
		pos = skipWhitespace(buf, pos)
		if pos >= len(buf) || buf[pos] == ']' {
			return pos + 1, nil
		}
		level, newPos, ok := parseOrderbookEntry(buf, pos)
		if !ok {
			return pos + 1, nil
		}
		into.Append(level)
		pos = skipWhitespace(buf, newPos)
		if pos < len(buf) && buf[pos] == ',' {
			pos++
		}
	}
}

// parseOrderbookSnapshotSide decodes up to 10 levels (the engine's
// published depth) for one side of a "snapshot" update, then skips any
// remaining levels past the cap without retaining them: a snapshot
// commonly carries hundreds of levels per side, and only the top 10 are
// ever surfaced. The skip still walks each tuple via parseOrderbookEntry
// rather than searching for a bare "]", since a literal bracket search
// matches the next uncapped tuple's own closing bracket instead of the
// enclosing array's terminator once 2+ levels remain past the cap.
func (p *Parser) parseOrderbookSnapshotSide(buf []byte, pos int, into *LevelBurst) (int, error) {
	for i := 0; i < 10; i++ {
		pos = skipWhitespace(buf, pos)
		if pos >= len(buf) || buf[pos] == ']' {
			return pos + 1, nil
		}
		level, newPos, ok := parseOrderbookEntry(buf, pos)
		if !ok {
			return pos + 1, nil
		}
		into.Append(level)
		pos = skipWhitespace(buf, newPos)
		if pos < len(buf) && buf[pos] == ',' {
			pos++
		}
	}
	for {
		pos = skipWhitespace(buf, pos)
		if pos >= len(buf) || buf[pos] == ']' {
			return pos + 1, nil
		}
		_, newPos, ok := parseOrderbookEntry(buf, pos)
		if !ok {
			return pos + 1, nil
		}
		pos = skipWhitespace(buf, newPos)
		if pos < len(buf) && buf[pos] == ',' {
			pos++
		}
	}
}

// parseOrderbookEntry decodes one ["new"|"change"|"delete", price, size]
// tuple. pos must point at the opening '[' of the tuple. ok is false when
// pos instead points at the closing ']' of the level array.
func parseOrderbookEntry(buf []byte, pos int) (OrderbookLevel, int, bool) {
	if pos >= len(buf) {
		return OrderbookLevel{}, pos, false
	}
	if buf[pos] == ']' {
		return OrderbookLevel{}, pos, false
	}
	if buf[pos] != '[' {
		return OrderbookLevel{}, pos, false
	}
	pos++
	actionStart, actionEnd, err := parseString(buf, pos)
	if err != nil {
		return OrderbookLevel{}, pos, false
	}
	var action LevelAction
	switch string(buf[actionStart:actionEnd]) {
	case "new":
		action = LevelNew
	case "change":
		action = LevelChange
	case "delete":
		action = LevelDelete
	default:
		return OrderbookLevel{}, pos, false
	}
	pos = actionEnd + 2

	price, pos, err := parseFloat(buf, pos)
	if err != nil {
		return OrderbookLevel{}, pos, false
	}
	pos++ // comma

	size, pos, err := parseFloat(buf, pos)
	if err != nil {
		return OrderbookLevel{}, pos, false
	}
	pos = skipWhitespace(buf, pos)
	if pos < len(buf) && buf[pos] == ']' {
		pos++
	}
	return OrderbookLevel{Action: action, Price: float32(price), Size: float32(size)}, pos, true
}
