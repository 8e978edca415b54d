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

// connection.go runs the single task that owns the transport: it reads
// frames, classifies them through the hot-path parser, fans trades and
// book deltas out to bounded channels, drains the outbound mailbox, and
// services the ping and stats timers. It never touches the order-book
// engine directly; that's the writer task's job.
package feed

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Alex-MGB/haiku-fh/internal/market"
	"github.com/Alex-MGB/haiku-fh/internal/metrics"
)

const (
	pingInterval  = 480 * time.Second
	statsInterval = 10 * time.Second
	readTimeout   = 30 * time.Second

	parseBufInitialCapacity = 4 * 1024
	parseBufShrinkAbove     = 8 * 1024
)

// Connection owns the transport and the hot-path classify-and-fan-out
// loop. Construct with NewConnection and run with Run in its own
// goroutine.
type Connection struct {
	transport Transport
	parser    *market.Parser
	router    *Router
	log       *zap.Logger
	metrics   *metrics.Metrics

	mailbox chan Command
	tradeCh chan market.TradeEvent
	bookCh  chan market.OrderbookResult

	shutdown <-chan struct{}

	parseBuf []byte

	latency     *LatencyTracker
	msgCount    uint64
	errCount    uint64
	lastMsgTime time.Time
}

// NewConnection wires a Connection. tradeCh and bookCh are owned by the
// caller (the supervisor) and shared with the writer task; shutdown is a
// channel closed exactly once to broadcast teardown to every task.
func NewConnection(
	transport Transport,
	parser *market.Parser,
	router *Router,
	log *zap.Logger,
	m *metrics.Metrics,
	tradeCh chan market.TradeEvent,
	bookCh chan market.OrderbookResult,
	shutdown <-chan struct{},
) *Connection {
	return &Connection{
		transport: transport,
		parser:    parser,
		router:    router,
		log:       log,
		metrics:   m,
		mailbox:   make(chan Command, commandMailboxCapacity),
		tradeCh:   tradeCh,
		bookCh:    bookCh,
		shutdown:  shutdown,
		parseBuf:  make([]byte, 0, parseBufInitialCapacity),
		latency:   NewLatencyTracker(),
	}
}

// Send enqueues an outbound frame, blocking if the mailbox is full. It
// returns an error only if ctx is cancelled or shutdown is signalled
// before the frame is enqueued; transport-level send failures surface
// through cmd.Done.
func (c *Connection) Send(ctx context.Context, cmd Command) error {
	select {
	case c.mailbox <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.shutdown:
		return context.Canceled
	}
}

// Run is the connection task's main loop. It returns when the transport
// closes, a read times out, or shutdown is signalled.
func (c *Connection) Run(ctx context.Context) error {
	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()
	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	frames := make(chan []byte, 1)
	readErrs := make(chan error, 1)
	go c.readLoop(ctx, frames, readErrs)

	idleTimer := time.NewTimer(readTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case frame := <-frames:
			c.handleFrame(frame)
			resetTimer(idleTimer, readTimeout)

		case err := <-readErrs:
			return err

		case cmd := <-c.mailbox:
			err := c.transport.WriteMessage(ctx, cmd.Payload)
			if cmd.Done != nil {
				cmd.Done <- err
			}
			if err != nil {
				return err
			}

		case <-pingTicker.C:
			if err := c.transport.WriteMessage(ctx, BuildPing()); err != nil {
				c.log.Error("ping send failed", zap.Error(err))
				return err
			}

		case <-statsTicker.C:
			c.logStats()

		case <-idleTimer.C:
			c.log.Error("read timeout, no frames received")
			return context.DeadlineExceeded

		case <-c.shutdown:
			c.log.Warn("connection task shutting down")
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// resetTimer drains and reschedules t, matching the documented safe-reset
// pattern for a timer that is actively selected on elsewhere in the loop.
func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// readLoop pumps frames off the transport onto frames until it errors or
// shutdown closes. It runs as a child goroutine of Run because a blocking
// transport read can't itself participate in a select alongside timers.
func (c *Connection) readLoop(ctx context.Context, frames chan<- []byte, errs chan<- error) {
	for {
		msg, err := c.transport.ReadMessage(ctx)
		if err != nil {
			select {
			case errs <- err:
			case <-c.shutdown:
			}
			return
		}
		select {
		case frames <- msg:
		case <-c.shutdown:
			return
		}
	}
}

// handleFrame copies frame into the connection's reused parse buffer
// before decoding it, shrinking that buffer back down first if a prior
// large message grew it past the cap: this keeps memory bounded after
// sporadic large frames instead of letting one spike pin the capacity
// for the life of the connection.
func (c *Connection) handleFrame(frame []byte) {
	c.msgCount++
	start := time.Now()
	c.lastMsgTime = start

	if cap(c.parseBuf) > parseBufShrinkAbove {
		c.log.Warn("shrinking parse buffer", zap.Int("prev_capacity", cap(c.parseBuf)))
		c.parseBuf = make([]byte, 0, parseBufInitialCapacity)
	}
	c.parseBuf = append(c.parseBuf[:0], frame...)
	buf := c.parseBuf

	res, err := c.parser.ParseFast(buf)
	if err != nil {
		c.errCount++
		kind := "unknown"
		var perr *market.ParseError
		if errors.As(err, &perr) {
			kind = perr.Kind.String()
		}
		c.metrics.ParseErrorsTotal.WithLabelValues(kind).Inc()
		c.log.Error("parse error", zap.Error(err), zap.ByteString("frame", buf))
		return
	}

	elapsed := time.Since(start).Nanoseconds()

	switch res.Channel {
	case market.ChannelTrades:
		c.latency.Record(elapsed)
		c.metrics.ParseLatencyNs.Observe(float64(elapsed))
		c.metrics.MessagesTotal.WithLabelValues("trades").Inc()
		for i := 0; i < res.Trades.Len(); i++ {
			select {
			case c.tradeCh <- res.Trades.At(i):
			default:
				c.metrics.TradesDropped.Inc()
				c.log.Warn("trade channel full, dropping")
			}
		}

	case market.ChannelOrderbook:
		c.latency.Record(elapsed)
		c.metrics.ParseLatencyNs.Observe(float64(elapsed))
		c.metrics.MessagesTotal.WithLabelValues("orderbook").Inc()
		select {
		case c.bookCh <- res.Orderbook:
		default:
			c.metrics.BookUpdatesDropped.Inc()
			c.log.Warn("book channel full, dropping")
		}

	default:
		// Slow path: administrative replies (auth, subscription, pong).
		c.metrics.MessagesTotal.WithLabelValues("control").Inc()
		ctrl, err := market.ParseSlow(buf)
		if err != nil {
			c.errCount++
			c.metrics.ParseErrorsTotal.WithLabelValues("slow_path").Inc()
			c.log.Error("slow-path decode error", zap.Error(err))
			return
		}
		c.latency.Record(elapsed)
		c.router.Dispatch(ctrl)
	}
}

func (c *Connection) logStats() {
	if !c.lastMsgTime.IsZero() {
		c.metrics.LastMessageAge.Set(time.Since(c.lastMsgTime).Seconds())
	}
	stats := c.latency.Snapshot()
	c.log.Info("connection stats",
		zap.Uint64("messages", c.msgCount),
		zap.Uint64("errors", c.errCount),
		zap.Int("latency_samples", stats.Count),
		zap.Int64("latency_min_ns", stats.MinNs),
		zap.Int64("latency_p50_ns", stats.P50Ns),
		zap.Int64("latency_p99_ns", stats.P99Ns),
		zap.Int64("latency_max_ns", stats.MaxNs),
	)
}
