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

// slowpath.go decodes administrative replies (auth, subscription, pong)
// that do not go through the byte-streaming parser: these are rare,
// latency-insensitive, and benefit from a generic decoder rather than a
// hand-rolled cursor. This is the one place package market reaches for
// encoding/json.
package market

import "encoding/json"

// ControlKind tags the decoded shape of a slow-path message.
type ControlKind uint8

const (
	ControlUnknown ControlKind = iota
	ControlAuth
	ControlSubscription
	ControlPong
	ControlError
)

// AuthResult is the decoded result object of an auth response.
type AuthResult struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   uint64 `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

// SubscriptionResult is the decoded result array of a subscribe response.
type SubscriptionResult struct {
	Channels []string
}

// PongResult carries the Deribit round-trip timing fields when present;
// a bare {"result":"pong"} leaves all three zero.
type PongResult struct {
	USIn   int64
	USOut  int64
	USDiff int64
}

// RPCError carries a JSON-RPC error object's code and message.
type RPCError struct {
	Code    int
	Message string
}

// ControlMessage is the uniform decoded envelope the slow path produces,
// tagged by Kind so a caller can switch on it without type assertions.
type ControlMessage struct {
	Kind         ControlKind
	ID           uint64
	Auth         AuthResult
	Subscription SubscriptionResult
	Pong         PongResult
	Err          RPCError
}

type rpcEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *uint64         `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseSlow decodes a non-hot-path frame into a ControlMessage. It is
// invoked only for the small minority of frames the fast classifier
// didn't recognize: auth replies, subscription replies, and pongs.
func ParseSlow(buf []byte) (ControlMessage, error) {
	var env rpcEnvelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return ControlMessage{}, errFormat("slow-path decode: "+err.Error(), 0)
	}

	if env.Error != nil {
		return ControlMessage{
			Kind: ControlError,
			ID:   idOrZero(env.ID),
			Err:  RPCError{Code: env.Error.Code, Message: env.Error.Message},
		}, nil
	}

	if len(env.Result) == 0 {
		return ControlMessage{}, errMissing("result", 0)
	}

	// Auth: result is an object carrying access_token.
	var auth AuthResult
	if err := json.Unmarshal(env.Result, &auth); err == nil && auth.AccessToken != "" {
		return ControlMessage{Kind: ControlAuth, ID: idOrZero(env.ID), Auth: auth}, nil
	}

	// Subscription: result is an array of channel names.
	var channels []string
	if err := json.Unmarshal(env.Result, &channels); err == nil {
		return ControlMessage{Kind: ControlSubscription, ID: idOrZero(env.ID), Subscription: SubscriptionResult{Channels: channels}}, nil
	}

	// Pong: result is either the literal "pong" or a timing object.
	var literal string
	if err := json.Unmarshal(env.Result, &literal); err == nil && literal == "pong" {
		return ControlMessage{Kind: ControlPong, ID: idOrZero(env.ID)}, nil
	}
	var timing struct {
		USIn   int64 `json:"usIn"`
		USOut  int64 `json:"usOut"`
		USDiff int64 `json:"usDiff"`
	}
	if err := json.Unmarshal(env.Result, &timing); err == nil && (timing.USIn != 0 || timing.USOut != 0 || timing.USDiff != 0) {
		return ControlMessage{
			Kind: ControlPong,
			ID:   idOrZero(env.ID),
			Pong: PongResult{USIn: timing.USIn, USOut: timing.USOut, USDiff: timing.USDiff},
		}, nil
	}

	return ControlMessage{Kind: ControlUnknown, ID: idOrZero(env.ID)}, nil
}

func idOrZero(id *uint64) uint64 {
	if id == nil {
		return 0
	}
	return *id
}
