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

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Alex-MGB/haiku-fh/internal/config"
	"github.com/Alex-MGB/haiku-fh/internal/feed"
	"github.com/Alex-MGB/haiku-fh/internal/metrics"
	"github.com/Alex-MGB/haiku-fh/internal/shmfeed"
	"github.com/Alex-MGB/haiku-fh/internal/wsconn"
)

func main() {
	configFh := flag.String("config-fh", "", "path to the feed-handler connection config file (required)")
	configShm := flag.String("config-shm", "", "path to the shared-memory metadata file (required)")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve Prometheus metrics on")
	flag.Parse()

	if *configFh == "" || *configShm == "" {
		fmt.Fprintln(os.Stderr, "both -config-fh and -config-shm are required")
		os.Exit(2)
	}

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(*configFh, *configShm, *metricsAddr, log); err != nil {
		log.Error("feed handler exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(configFhPath, configShmPath, metricsAddr string, log *zap.Logger) error {
	feedCfg, err := config.LoadFeedConfig(configFhPath)
	if err != nil {
		return err
	}

	shmMeta, err := config.LoadShmMetadata(configShmPath)
	if err != nil {
		return err
	}

	m := metrics.New()
	go serveMetrics(metricsAddr, m, log)

	shmWriter, err := shmfeed.NewOrderbookWriter(shmMeta.OrderbookPath, len(shmMeta.Instruments))
	if err != nil {
		return err
	}
	defer shmWriter.Close()

	tradeRing, err := shmfeed.NewTradeRingBuffer(shmMeta.TradeRingPath, shmMeta.TradeRingSlots)
	if err != nil {
		return err
	}
	defer tradeRing.Close()

	dial := func(ctx context.Context, url string) (feed.Transport, error) {
		return wsconn.Dial(ctx, url)
	}

	supervisor := feed.New(feedCfg, shmMeta, log, m, dial, shmWriter, tradeRing)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("starting feed handler", zap.Strings("instruments", shmMeta.Instruments))
	return supervisor.Run(ctx)
}

func serveMetrics(addr string, m *metrics.Metrics, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		log.Error("metrics server stopped", zap.Error(err))
	}
}
