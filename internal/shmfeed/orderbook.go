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

// Package shmfeed is the zero-copy IPC boundary: one fixed-size,
// seqlock-protected slot per instrument for order-book top-10 snapshots,
// and one power-of-two seqlock ring for trade events. Downstream readers
// (outside this process) mmap the same file read-only and spin on the
// seqlock to get a consistent snapshot without taking a lock.
package shmfeed

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/Alex-MGB/haiku-fh/internal/market"
)

// orderbookSlotSize is sized to hold the top10Slot layout with padding to
// a cache-line multiple, matching the wire layout a non-Go reader expects.
const orderbookSlotSize = 256

// top10Slot is the in-memory layout of one instrument's published book.
// Field order and sizes are load-bearing: a foreign reader reconstructs
// this layout by byte offset, not by importing this package.
type top10Slot struct {
	Seqlock       uint32
	InstrumentIdx uint8
	Flags         uint8
	_pad0         [2]byte
	TimestampNs   uint64
	BidCount      uint8
	AskCount      uint8
	_pad1         [6]byte
	BidPrices     [10]float32
	BidSizes      [10]float32
	AskPrices     [10]float32
	AskSizes      [10]float32
}

func init() {
	if unsafe.Sizeof(top10Slot{}) > orderbookSlotSize {
		panic(fmt.Sprintf("top10Slot size %d exceeds orderbookSlotSize %d", unsafe.Sizeof(top10Slot{}), orderbookSlotSize))
	}
}

// OrderbookWriter is the single-writer handle onto the mmap'd top10Slot
// array, one slot per dense instrument index. HOT PATH [1]:
// WriteOrderbookUpdate is called once per applied order-book delta.
type OrderbookWriter struct {
	data []byte
}

// NewOrderbookWriter creates or truncates the backing file at path,
// sized for numInstruments slots, and maps it shared.
func NewOrderbookWriter(path string, numInstruments int) (*OrderbookWriter, error) {
	size := numInstruments * orderbookSlotSize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open shm file: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate shm file: %w", err)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap shm file: %w", err)
	}

	return &OrderbookWriter{data: data}, nil
}

func (w *OrderbookWriter) slot(idx uint8) *top10Slot {
	offset := int(idx) * orderbookSlotSize
	return (*top10Slot)(unsafe.Pointer(&w.data[offset]))
}

// WriteOrderbookUpdate publishes view for instrumentIdx using the
// seqlock protocol: an odd counter tells a reader a write is in
// progress, and the reader must retry if the counter changed across
// its read.
func (w *OrderbookWriter) WriteOrderbookUpdate(instrumentIdx uint8, view market.Top10View, timestampNs uint64, flags market.UpdateFlags) {
	slot := w.slot(instrumentIdx)
	seqAddr := (*uint32)(unsafe.Pointer(&slot.Seqlock))

	seq := atomic.LoadUint32(seqAddr)
	atomic.StoreUint32(seqAddr, seq+1)

	slot.InstrumentIdx = instrumentIdx
	slot.Flags = uint8(flags)
	slot.TimestampNs = timestampNs
	slot.BidCount = view.BidCount
	slot.AskCount = view.AskCount
	slot.BidPrices = view.BidPrices
	slot.BidSizes = view.BidSizes
	slot.AskPrices = view.AskPrices
	slot.AskSizes = view.AskSizes

	atomic.StoreUint32(seqAddr, seq+2)
}

// Close unmaps the shared region.
func (w *OrderbookWriter) Close() error {
	return syscall.Munmap(w.data)
}
