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

// Package metrics exposes the feed handler's operational counters on a
// dedicated prometheus registry, separate from the default global one
// so the handler can run embedded in a larger process without clobbering
// its metric namespace.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every counter, gauge, and histogram the feed handler
// reports.
type Metrics struct {
	registry *prometheus.Registry

	MessagesTotal      *prometheus.CounterVec
	ParseErrorsTotal   *prometheus.CounterVec
	TradesDropped      prometheus.Counter
	BookUpdatesDropped prometheus.Counter
	SequenceGaps       *prometheus.CounterVec
	CrossedBooks       *prometheus.CounterVec
	ParseLatencyNs     prometheus.Histogram
	LastMessageAge     prometheus.Gauge
}

// New builds a Metrics instance and registers every collector against a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedhandler",
			Name:      "messages_total",
			Help:      "Frames received from the exchange, by classified channel.",
		}, []string{"channel"}),
		ParseErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedhandler",
			Name:      "parse_errors_total",
			Help:      "Parse failures, by error kind.",
		}, []string{"kind"}),
		TradesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedhandler",
			Name:      "trades_dropped_total",
			Help:      "Trades dropped because the fast channel was full.",
		}),
		BookUpdatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "feedhandler",
			Name:      "book_updates_dropped_total",
			Help:      "Order-book updates dropped because the fast channel was full.",
		}),
		SequenceGaps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedhandler",
			Name:      "sequence_gaps_total",
			Help:      "Order-book sequence gaps detected, by instrument.",
		}, []string{"instrument"}),
		CrossedBooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "feedhandler",
			Name:      "crossed_books_total",
			Help:      "Crossed-book conditions observed, by instrument.",
		}, []string{"instrument"}),
		ParseLatencyNs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "feedhandler",
			Name:      "parse_latency_ns",
			Help:      "Hot-path parse latency in nanoseconds.",
			Buckets:   prometheus.ExponentialBuckets(100, 2, 16),
		}),
		LastMessageAge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "feedhandler",
			Name:      "last_message_age_seconds",
			Help:      "Seconds since the last frame was received from the exchange.",
		}),
	}

	reg.MustRegister(
		m.MessagesTotal,
		m.ParseErrorsTotal,
		m.TradesDropped,
		m.BookUpdatesDropped,
		m.SequenceGaps,
		m.CrossedBooks,
		m.ParseLatencyNs,
		m.LastMessageAge,
	)

	return m
}

// Handler returns the http.Handler that serves this registry's metrics
// in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
