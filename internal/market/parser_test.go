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

// Tests for the byte-streaming parser. These pin the parser against the
// literal envelope shapes the exchange actually emits.
package market

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Alex-MGB/haiku-fh/internal/instrument"
)

func testParser(t *testing.T) *Parser {
	t.Helper()
	idx, err := instrument.New([]string{"BTC-PERPETUAL", "ETH-PERPETUAL"})
	require.NoError(t, err)
	return NewParser(idx)
}

func TestParseFast_SingleTrade(t *testing.T) {
	p := testParser(t)
	envelope := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"trades.ETH-PERPETUAL.raw","data":[{"timestamp":1753469821143,"price":3653.4,"amount":139.0,"direction":"buy","index_price":3654.33,"instrument_name":"ETH-PERPETUAL","trade_seq":187471866,"mark_price":3653.79,"tick_direction":0,"trade_id":"ETH-259727165","contracts":139.0}]}}`

	res, err := p.ParseFast([]byte(envelope))
	require.NoError(t, err)
	require.Equal(t, ChannelTrades, res.Channel)
	require.Equal(t, 1, res.Trades.Len())

	trade := res.Trades.At(0)
	require.Equal(t, uint8(1), trade.InstrumentIdx)
	require.Equal(t, float32(3653.4), trade.Price)
	require.Equal(t, float32(139.0), trade.Size)
	require.Equal(t, SideBuy, trade.Side)
	require.Equal(t, uint64(1753469821143), trade.TimestampNs)
	require.Equal(t, uint64(259727165), trade.TradeID)
}

func TestParseFast_TwoTradesDistinctIDs(t *testing.T) {
	p := testParser(t)
	envelope := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"trades.ETH-PERPETUAL.raw","data":[` +
		`{"timestamp":1753469786907,"price":3652.7,"amount":13830.0,"direction":"sell","index_price":3652.65,"instrument_name":"ETH-PERPETUAL","trade_seq":187471858,"mark_price":3652.16,"tick_direction":0,"trade_id":"ETH-259727150","contracts":13830.0},` +
		`{"timestamp":1753469786907,"price":3652.7,"amount":29.0,"direction":"sell","index_price":3652.65,"instrument_name":"ETH-PERPETUAL","trade_seq":187471859,"mark_price":3652.16,"tick_direction":1,"trade_id":"ETH-259727151","contracts":29.0}` +
		`]}}`

	res, err := p.ParseFast([]byte(envelope))
	require.NoError(t, err)
	require.Equal(t, 2, res.Trades.Len())

	first, second := res.Trades.At(0), res.Trades.At(1)
	require.Equal(t, SideSell, first.Side)
	require.Equal(t, SideSell, second.Side)
	require.NotEqual(t, first.TradeID, second.TradeID)
	require.Equal(t, uint64(259727150), first.TradeID)
	require.Equal(t, uint64(259727151), second.TradeID)
}

func TestParseFast_UnknownBelowMinimumLength(t *testing.T) {
	p := testParser(t)
	res, err := p.ParseFast([]byte(`{"short":"frame"}`))
	require.NoError(t, err)
	require.Equal(t, ChannelUnknown, res.Channel)
}

func TestParseFast_BadDirectionRejected(t *testing.T) {
	p := testParser(t)
	envelope := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"trades.ETH-PERPETUAL.raw","data":[{"timestamp":1753469821143,"price":3653.4,"amount":139.0,"direction":"hold","index_price":3654.33,"instrument_name":"ETH-PERPETUAL","trade_seq":187471866,"mark_price":3653.79,"tick_direction":0,"trade_id":"ETH-259727165","contracts":139.0}]}}`

	_, err := p.ParseFast([]byte(envelope))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrBadDirection, perr.Kind)
}

func TestParseFast_UnknownInstrumentRejected(t *testing.T) {
	p := testParser(t)
	envelope := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"trades.SOL-PERPETUAL.raw","data":[{"timestamp":1753469821143,"price":3653.4,"amount":139.0,"direction":"buy","index_price":3654.33,"instrument_name":"SOL-PERPETUAL","trade_seq":187471866,"mark_price":3653.79,"tick_direction":0,"trade_id":"SOL-259727165","contracts":139.0}]}}`

	_, err := p.ParseFast([]byte(envelope))
	require.Error(t, err)
	var perr *ParseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, ErrUnknownInstrument, perr.Kind)
}

func TestParseFast_OrderbookChangeSingleBidLevel(t *testing.T) {
	p := testParser(t)
	envelope := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.ETH-PERPETUAL.raw","data":{"timestamp":1753616120667,"type":"change","change_id":78324750698,"instrument_name":"ETH-PERPETUAL","bids":[["change",3825.7,132934.0]],"asks":[],"prev_change_id":78324750697}}}`

	res, err := p.ParseFast([]byte(envelope))
	require.NoError(t, err)
	require.Equal(t, ChannelOrderbook, res.Channel)

	ob := res.Orderbook
	require.Equal(t, uint64(78324750698), ob.ChangeID)
	require.Equal(t, uint64(78324750697), ob.Update.PrevChangeID)
	require.False(t, ob.Update.IsSnapshot)
	require.Equal(t, 1, ob.Update.Bids.Len())
	require.Equal(t, 0, ob.Update.Asks.Len())

	lvl := ob.Update.Bids.At(0)
	require.Equal(t, LevelChange, lvl.Action)
	require.Equal(t, float32(3825.7), lvl.Price)
	require.Equal(t, float32(132934.0), lvl.Size)
}

func TestParseFast_OrderbookDeleteZeroSize(t *testing.T) {
	p := testParser(t)
	envelope := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.ETH-PERPETUAL.raw","data":{"timestamp":1753687679384,"type":"change","change_id":78452945932,"instrument_name":"ETH-PERPETUAL","bids":[],"asks":[["delete",3900.0,0.0]],"prev_change_id":78452945931}}}`

	res, err := p.ParseFast([]byte(envelope))
	require.NoError(t, err)
	require.Equal(t, 1, res.Orderbook.Update.Asks.Len())
	lvl := res.Orderbook.Update.Asks.At(0)
	require.Equal(t, LevelDelete, lvl.Action)
	require.Equal(t, float32(3900.0), lvl.Price)
}

func TestParseFast_OrderbookSnapshotCapsAtTenPerSide(t *testing.T) {
	p := testParser(t)
	bids := ""
	for i := 0; i < 12; i++ {
		if i > 0 {
			bids += ","
		}
		bids += `["new",` + floatLit(3770.0-float64(i)) + `,100.0]`
	}
	envelope := `{"jsonrpc":"2.0","method":"subscription","params":{"channel":"book.ETH-PERPETUAL.raw","data":{"timestamp":1753607648212,"type":"snapshot","change_id":78311875036,"instrument_name":"ETH-PERPETUAL","bids":[` + bids + `],"asks":[["new",3780.0,50.0]]}}}`

	res, err := p.ParseFast([]byte(envelope))
	require.NoError(t, err)
	require.True(t, res.Orderbook.Update.IsSnapshot)
	require.Equal(t, 10, res.Orderbook.Update.Bids.Len())
	require.Equal(t, 1, res.Orderbook.Update.Asks.Len())
}

func TestParseFloat_Exponent(t *testing.T) {
	v, pos, err := parseFloat([]byte("1.5e4,"), 0)
	require.NoError(t, err)
	require.Equal(t, 15000.0, v)
	require.Equal(t, 5, pos)
}

func TestParseFloat_RejectsSignOnly(t *testing.T) {
	_, _, err := parseFloat([]byte("-"), 0)
	require.Error(t, err)
}

func floatLit(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
