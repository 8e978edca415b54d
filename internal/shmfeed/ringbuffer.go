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

package shmfeed

import (
	"fmt"
	"os"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/Alex-MGB/haiku-fh/internal/market"
)

// tradeSlotSize is the cache-line-aligned size of one tradeSlot.
const tradeSlotSize = 64

// tradeSlot is one entry of the trade ring. Layout mirrors TradeEvent
// plus the leading seqlock word.
type tradeSlot struct {
	Seqlock       uint32
	InstrumentIdx uint8
	Side          uint8
	_pad0         [2]byte
	TimestampNs   uint64
	TradeID       uint64
	Price         float32
	Size          float32
	_pad1         [32]byte
}

func init() {
	if unsafe.Sizeof(tradeSlot{}) != tradeSlotSize {
		panic(fmt.Sprintf("tradeSlot size is %d, expected %d", unsafe.Sizeof(tradeSlot{}), tradeSlotSize))
	}
}

// ErrNotPowerOfTwo is returned when a requested ring size isn't a power
// of two, which the index mask arithmetic requires.
var ErrNotPowerOfTwo = fmt.Errorf("ring buffer slot count must be a power of 2")

// TradeRingBuffer is a single-writer seqlock ring buffer of trade
// events, backed by an mmap'd file for zero-copy consumption by a
// separate reader process.
type TradeRingBuffer struct {
	data      []byte
	slots     uint64
	indexMask uint64
	writeIdx  uint64
}

// NewTradeRingBuffer creates or truncates the backing file at path,
// sized for slots entries. slots must be a power of 2.
func NewTradeRingBuffer(path string, slots int) (*TradeRingBuffer, error) {
	if slots <= 0 || slots&(slots-1) != 0 {
		return nil, ErrNotPowerOfTwo
	}
	size := slots * tradeSlotSize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open trade ring file: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("truncate trade ring file: %w", err)
	}

	data, err := syscall.Mmap(int(f.Fd()), 0, size, syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap trade ring file: %w", err)
	}

	return &TradeRingBuffer{
		data:      data,
		slots:     uint64(slots),
		indexMask: uint64(slots - 1),
	}, nil
}

func (rb *TradeRingBuffer) slotAt(idx uint64) *tradeSlot {
	offset := int(idx&rb.indexMask) * tradeSlotSize
	return (*tradeSlot)(unsafe.Pointer(&rb.data[offset]))
}

// PushTrade writes ev into the next ring slot using the seqlock
// protocol. HOT PATH [1]: called once per decoded trade by the writer
// task; never blocks and never allocates.
func (rb *TradeRingBuffer) PushTrade(ev market.TradeEvent) error {
	idx := rb.writeIdx
	rb.writeIdx++

	slot := rb.slotAt(idx)
	seqAddr := (*uint32)(unsafe.Pointer(&slot.Seqlock))

	seq := atomic.LoadUint32(seqAddr)
	atomic.StoreUint32(seqAddr, seq+1)

	slot.InstrumentIdx = ev.InstrumentIdx
	slot.Side = uint8(ev.Side)
	slot.TimestampNs = ev.TimestampNs
	slot.TradeID = ev.TradeID
	slot.Price = ev.Price
	slot.Size = ev.Size

	atomic.StoreUint32(seqAddr, seq+2)
	return nil
}

// Close unmaps the shared region.
func (rb *TradeRingBuffer) Close() error {
	return syscall.Munmap(rb.data)
}
