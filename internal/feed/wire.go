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

package feed

import (
	"fmt"
	"strings"
)

// authRequestID and subscribeRequestID are the fixed correlation ids the
// connection task uses for the two startup RPCs. The exchange echoes the
// id back verbatim in its reply, which is how the control router matches
// a response to the request that produced it.
const (
	authRequestID      = 1
	subscribeRequestID = 2
)

// BuildAuth constructs the public/auth client-credentials request.
//
//	cmd := BuildAuth("key", "secret")
//	conn.Send(ctx, cmd)
func BuildAuth(clientID, clientSecret string) []byte {
	return []byte(fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%d,"method":"public/auth","params":{"grant_type":"client_credentials","client_id":%q,"client_secret":%q}}`,
		authRequestID, clientID, clientSecret,
	))
}

// BuildSubscribe constructs the public/subscribe request for the given
// channel names.
//
//	cmd := BuildSubscribe([]string{"trades.BTC-PERPETUAL.raw", "book.BTC-PERPETUAL.raw"})
func BuildSubscribe(channels []string) []byte {
	quoted := make([]string, len(channels))
	for i, c := range channels {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return []byte(fmt.Sprintf(
		`{"jsonrpc":"2.0","id":%d,"method":"public/subscribe","params":{"channels":[%s]}}`,
		subscribeRequestID, strings.Join(quoted, ","),
	))
}

// pingLiteral is the fixed heartbeat frame. It carries no id: the reply
// is logged for visibility but never correlated back to this request,
// so there is nothing for an id to key into.
const pingLiteral = `{"jsonrpc":"2.0","method":"public/ping"}`

// BuildPing returns the fixed public/ping heartbeat frame.
func BuildPing() []byte {
	return []byte(pingLiteral)
}
