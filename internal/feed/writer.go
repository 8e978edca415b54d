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

// writer.go drains the trade and order-book channels, owns the
// per-instrument book state, and is the only task that touches the
// shared-memory writer and the trade ring buffer.
//
// Open question decision: depth 11-15 is tracked internally so the
// engine has eviction headroom, but republish policy only ever
// considers the top 10. Every successful Apply republishes that
// instrument's top10 view unconditionally, even when a pure depth-11+
// change leaves the visible top 10 byte-for-byte identical, so a
// downstream reader's timestamp always reflects the most recent
// update the writer has accepted.
package feed

import (
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Alex-MGB/haiku-fh/internal/market"
	"github.com/Alex-MGB/haiku-fh/internal/metrics"
)

// ShmWriter is the subset of shmfeed.OrderbookWriter the writer task
// needs; kept as an interface so tests can substitute a recorder.
type ShmWriter interface {
	WriteOrderbookUpdate(instrumentIdx uint8, view market.Top10View, timestampNs uint64, flags market.UpdateFlags)
}

// TradeSink is the subset of shmfeed.TradeRingBuffer the writer task
// needs.
type TradeSink interface {
	PushTrade(ev market.TradeEvent) error
}

// Writer owns one market.Book per instrument and is the sole consumer
// of tradeCh and bookCh.
type Writer struct {
	log     *zap.Logger
	shm     ShmWriter
	ring    TradeSink
	metrics *metrics.Metrics
	books   []*market.Book
	names   []string
	latency *LatencyTracker

	tradeCh <-chan market.TradeEvent
	bookCh  <-chan market.OrderbookResult

	shutdown <-chan struct{}
}

// NewWriter allocates one Book per instrument. instrumentNames supplies
// the metric label for each dense index; when shorter than the book it
// indexes, the dense index itself is used as the label.
func NewWriter(
	log *zap.Logger,
	shm ShmWriter,
	ring TradeSink,
	m *metrics.Metrics,
	instrumentNames []string,
	tradeCh <-chan market.TradeEvent,
	bookCh <-chan market.OrderbookResult,
	shutdown <-chan struct{},
) *Writer {
	books := make([]*market.Book, len(instrumentNames))
	for i := range books {
		books[i] = market.NewBook()
	}
	return &Writer{
		log:      log,
		shm:      shm,
		ring:     ring,
		metrics:  m,
		books:    books,
		names:    instrumentNames,
		latency:  NewLatencyTracker(),
		tradeCh:  tradeCh,
		bookCh:   bookCh,
		shutdown: shutdown,
	}
}

func (w *Writer) instrumentLabel(idx uint8) string {
	if int(idx) < len(w.names) {
		return w.names[idx]
	}
	return strconv.Itoa(int(idx))
}

// Run drains both channels, preferring a tight non-blocking drain loop
// over falling into select every iteration: under load this avoids
// paying the scheduler's per-wakeup cost for every single message.
func (w *Writer) Run() error {
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()

	for {
		processedAny := w.drainOnce()
		if processedAny {
			continue
		}

		select {
		case trade, ok := <-w.tradeCh:
			if !ok {
				return nil
			}
			w.handleTrade(trade)

		case book, ok := <-w.bookCh:
			if !ok {
				return nil
			}
			w.handleBook(book)

		case <-statsTicker.C:
			w.logStats()

		case <-w.shutdown:
			return nil
		}
	}
}

func (w *Writer) drainOnce() bool {
	processedAny := false

	for {
		select {
		case trade, ok := <-w.tradeCh:
			if !ok {
				return processedAny
			}
			w.handleTrade(trade)
			processedAny = true
			continue
		default:
		}
		break
	}

	for {
		select {
		case book, ok := <-w.bookCh:
			if !ok {
				return processedAny
			}
			w.handleBook(book)
			processedAny = true
			continue
		default:
		}
		break
	}

	return processedAny
}

func (w *Writer) handleTrade(ev market.TradeEvent) {
	if err := w.ring.PushTrade(ev); err != nil {
		w.log.Error("trade ring push failed", zap.Error(err))
	}
}

func (w *Writer) handleBook(res market.OrderbookResult) {
	start := time.Now()

	if int(res.InstrumentIdx) >= len(w.books) {
		w.log.Error("orderbook update for out-of-range instrument", zap.Uint8("idx", res.InstrumentIdx))
		return
	}

	book := w.books[res.InstrumentIdx]
	view, err := book.Apply(res.InstrumentIdx, res.Update, res.ChangeID)
	if err != nil {
		var gapErr *market.SequenceGapError
		if errors.As(err, &gapErr) {
			w.metrics.SequenceGaps.WithLabelValues(w.instrumentLabel(res.InstrumentIdx)).Inc()
		}
		w.log.Warn("orderbook apply rejected", zap.Error(err), zap.Uint8("idx", res.InstrumentIdx))
		return
	}

	w.shm.WriteOrderbookUpdate(res.InstrumentIdx, view, res.TimestampNs, res.Update.Flags)
	elapsed := time.Since(start).Nanoseconds()
	w.latency.Record(elapsed)

	if crossed, bid, ask := book.CrossedBook(); crossed {
		w.metrics.CrossedBooks.WithLabelValues(w.instrumentLabel(res.InstrumentIdx)).Inc()
		w.log.Warn("crossed book detected", zap.Uint8("idx", res.InstrumentIdx), zap.Float32("bid", bid), zap.Float32("ask", ask))
	}
}

func (w *Writer) logStats() {
	stats := w.latency.Snapshot()
	w.log.Info("writer stats",
		zap.Int("latency_samples", stats.Count),
		zap.Int64("latency_min_ns", stats.MinNs),
		zap.Int64("latency_p50_ns", stats.P50Ns),
		zap.Int64("latency_p99_ns", stats.P99Ns),
		zap.Int64("latency_max_ns", stats.MaxNs),
	)
}
