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

// Package instrument holds the process-wide symbol-to-index map.
//
// The map is built once at startup and never mutated again. Every hot-path
// lookup after that point uses the dense uint8 index, never the symbol
// string, so the map itself only needs to serve the initial symbol->index
// translation at parse time.
package instrument

import "fmt"

// MaxInstruments bounds the dense index space. A single byte carries the
// instrument index end to end (TradeEvent.InstrumentIdx, book state slot).
const MaxInstruments = 256

// Index is an immutable symbol -> dense index map shared without locking
// by every task once built.
type Index struct {
	bySymbol map[string]uint8
	symbols  []string
}

// New builds an Index from an ordered list of instrument symbols. The
// symbol's position in the slice becomes its dense index, so callers that
// need a stable mapping across restarts must pass a stable order.
func New(symbols []string) (*Index, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("instrument: empty symbol list")
	}
	if len(symbols) > MaxInstruments {
		return nil, fmt.Errorf("instrument: %d symbols exceeds max %d", len(symbols), MaxInstruments)
	}
	idx := &Index{
		bySymbol: make(map[string]uint8, len(symbols)),
		symbols:  make([]string, len(symbols)),
	}
	for i, sym := range symbols {
		if sym == "" {
			return nil, fmt.Errorf("instrument: empty symbol at position %d", i)
		}
		if _, dup := idx.bySymbol[sym]; dup {
			return nil, fmt.Errorf("instrument: duplicate symbol %q", sym)
		}
		idx.bySymbol[sym] = uint8(i)
		idx.symbols[i] = sym
	}
	return idx, nil
}

// Lookup returns the dense index for a symbol given as raw bytes. This is
// called from the hot parser with a slice view into the read buffer; Go's
// compiler recognizes the map[string(b)] pattern and avoids allocating a
// copy of b for the lookup itself.
func (x *Index) Lookup(symbol []byte) (uint8, bool) {
	v, ok := x.bySymbol[string(symbol)]
	return v, ok
}

// Symbol returns the symbol for a dense index, or "" if idx is out of range.
func (x *Index) Symbol(idx uint8) string {
	if int(idx) >= len(x.symbols) {
		return ""
	}
	return x.symbols[idx]
}

// Len returns the number of known instruments.
func (x *Index) Len() int { return len(x.symbols) }
