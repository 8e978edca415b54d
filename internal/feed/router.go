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

// router.go demultiplexes decoded slow-path control messages to whichever
// caller is waiting on that correlation id, and otherwise logs them.
package feed

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Alex-MGB/haiku-fh/internal/market"
)

// Router receives every decoded ControlMessage from the connection task
// and either hands it to a registered waiter or drops it with a log line.
type Router struct {
	log *zap.Logger

	mu      sync.Mutex
	waiters map[uint64]chan market.ControlMessage
}

// NewRouter constructs a Router. log must not be nil.
func NewRouter(log *zap.Logger) *Router {
	return &Router{
		log:     log,
		waiters: make(map[uint64]chan market.ControlMessage),
	}
}

// Dispatch delivers msg to its waiter, if one is registered. It never
// blocks: a registered waiter channel always has capacity 1.
func (r *Router) Dispatch(msg market.ControlMessage) {
	r.mu.Lock()
	ch, ok := r.waiters[msg.ID]
	if ok {
		delete(r.waiters, msg.ID)
	}
	r.mu.Unlock()

	if !ok {
		r.log.Debug("unrouted control message", zap.Uint64("id", msg.ID), zap.Uint8("kind", uint8(msg.Kind)))
		return
	}
	ch <- msg
}

// register allocates a one-shot waiter channel for id, replacing any
// stale one already present.
func (r *Router) register(id uint64) chan market.ControlMessage {
	ch := make(chan market.ControlMessage, 1)
	r.mu.Lock()
	r.waiters[id] = ch
	r.mu.Unlock()
	return ch
}

func (r *Router) unregister(id uint64) {
	r.mu.Lock()
	delete(r.waiters, id)
	r.mu.Unlock()
}

// WaitForAuth blocks until an auth response (or RPC error) with
// authRequestID arrives, or ctx is done.
func (r *Router) WaitForAuth(ctx context.Context) (market.AuthResult, error) {
	ch := r.register(authRequestID)
	select {
	case msg := <-ch:
		if msg.Kind == market.ControlError {
			return market.AuthResult{}, fmt.Errorf("auth rejected: %d %s", msg.Err.Code, msg.Err.Message)
		}
		return msg.Auth, nil
	case <-ctx.Done():
		r.unregister(authRequestID)
		return market.AuthResult{}, ctx.Err()
	}
}

// WaitForSubscription blocks until a subscription response (or RPC
// error) with subscribeRequestID arrives, or ctx is done.
func (r *Router) WaitForSubscription(ctx context.Context) (market.SubscriptionResult, error) {
	ch := r.register(subscribeRequestID)
	select {
	case msg := <-ch:
		if msg.Kind == market.ControlError {
			return market.SubscriptionResult{}, fmt.Errorf("subscribe rejected: %d %s", msg.Err.Code, msg.Err.Message)
		}
		return msg.Subscription, nil
	case <-ctx.Done():
		r.unregister(subscribeRequestID)
		return market.SubscriptionResult{}, ctx.Err()
	}
}
