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

// supervisor.go wires the connection, router, and writer tasks together,
// performs the auth/subscribe handshake, and owns the shutdown broadcast
// every task selects on.
package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Alex-MGB/haiku-fh/internal/config"
	"github.com/Alex-MGB/haiku-fh/internal/instrument"
	"github.com/Alex-MGB/haiku-fh/internal/market"
	"github.com/Alex-MGB/haiku-fh/internal/metrics"
)

const (
	authTimeout      = 30 * time.Second
	subscribeTimeout = 10 * time.Second
)

// Supervisor owns the lifetime of one exchange connection: dial,
// authenticate, subscribe, run, and coordinated shutdown.
type Supervisor struct {
	feed    *config.FeedConfig
	shm     *config.ShmMetadata
	log     *zap.Logger
	metrics *metrics.Metrics

	dial func(ctx context.Context, url string) (Transport, error)
	shmw ShmWriter
	ring TradeSink

	shutdown chan struct{}
}

// New constructs a Supervisor. dial opens the transport (normally
// wsconn.Dial adapted to return a feed.Transport); shmw and ring are the
// already-opened shared-memory sinks the writer task publishes into.
func New(
	feedCfg *config.FeedConfig,
	shmMeta *config.ShmMetadata,
	log *zap.Logger,
	m *metrics.Metrics,
	dial func(ctx context.Context, url string) (Transport, error),
	shmw ShmWriter,
	ring TradeSink,
) *Supervisor {
	return &Supervisor{
		feed:     feedCfg,
		shm:      shmMeta,
		log:      log,
		metrics:  m,
		dial:     dial,
		shmw:     shmw,
		ring:     ring,
		shutdown: make(chan struct{}),
	}
}

// Run dials the exchange, authenticates, subscribes to the configured
// channels, and then blocks running the connection and writer tasks
// until ctx is cancelled or a task fails.
func (s *Supervisor) Run(ctx context.Context) error {
	idx, err := instrument.New(s.shm.Instruments)
	if err != nil {
		return fmt.Errorf("build instrument index: %w", err)
	}

	transport, err := s.dial(ctx, s.feed.URL)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	router := NewRouter(s.log)
	parser := market.NewParser(idx)

	tradeCh := make(chan market.TradeEvent, fastChannelCapacity)
	bookCh := make(chan market.OrderbookResult, fastChannelCapacity)

	conn := NewConnection(transport, parser, router, s.log, s.metrics, tradeCh, bookCh, s.shutdown)
	writer := NewWriter(s.log, s.shmw, s.ring, s.metrics, s.shm.Instruments, tradeCh, bookCh, s.shutdown)

	connErrCh := make(chan error, 1)
	go func() { connErrCh <- conn.Run(ctx) }()

	writerErrCh := make(chan error, 1)
	go func() { writerErrCh <- writer.Run() }()

	if err := s.handshake(ctx, conn, router); err != nil {
		close(s.shutdown)
		transport.Close()
		<-connErrCh
		<-writerErrCh
		return fmt.Errorf("handshake: %w", err)
	}

	var runErr error
	select {
	case runErr = <-connErrCh:
		s.log.Error("connection task exited", zap.Error(runErr))
	case runErr = <-writerErrCh:
		s.log.Error("writer task exited", zap.Error(runErr))
	case <-ctx.Done():
		s.log.Info("shutdown requested")
		runErr = ctx.Err()
	}

	close(s.shutdown)
	transport.Close()
	<-connErrCh
	<-writerErrCh

	return runErr
}

func (s *Supervisor) handshake(ctx context.Context, conn *Connection, router *Router) error {
	authCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()
	if err := conn.Send(authCtx, Command{Payload: BuildAuth(s.feed.Key, s.feed.Secret)}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if _, err := router.WaitForAuth(authCtx); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	subCtx, cancel2 := context.WithTimeout(ctx, subscribeTimeout)
	defer cancel2()
	if err := conn.Send(subCtx, Command{Payload: BuildSubscribe(s.feed.Channels)}); err != nil {
		return fmt.Errorf("send subscribe: %w", err)
	}
	if _, err := router.WaitForSubscription(subCtx); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.log.Info("handshake complete", zap.Strings("channels", s.feed.Channels))
	return nil
}
