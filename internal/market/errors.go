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

package market

import "fmt"

// ParseErrorKind tags the taxonomy of parse failures a caller can act on.
type ParseErrorKind int

const (
	ErrBufferTooShort ParseErrorKind = iota
	ErrInvalidFormat
	ErrMissingField
	ErrUnknownMessageType
	ErrBadDirection
	ErrUnknownInstrument
	ErrBadTradeID
)

func (k ParseErrorKind) String() string {
	switch k {
	case ErrBufferTooShort:
		return "BufferTooShort"
	case ErrInvalidFormat:
		return "InvalidFormat"
	case ErrMissingField:
		return "MissingField"
	case ErrUnknownMessageType:
		return "UnknownMessageType"
	case ErrBadDirection:
		return "BadDirection"
	case ErrUnknownInstrument:
		return "UnknownInstrument"
	case ErrBadTradeID:
		return "BadTradeID"
	default:
		return "Unknown"
	}
}

// ParseError carries enough context to log the offending frame without
// re-scanning it: the field or reason, and the byte offset where the
// parser gave up.
type ParseError struct {
	Kind   ParseErrorKind
	Detail string
	Offset int
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("market: %s at offset %d", e.Kind, e.Offset)
	}
	return fmt.Sprintf("market: %s(%s) at offset %d", e.Kind, e.Detail, e.Offset)
}

func errShort(offset int) *ParseError {
	return &ParseError{Kind: ErrBufferTooShort, Offset: offset}
}

func errFormat(detail string, offset int) *ParseError {
	return &ParseError{Kind: ErrInvalidFormat, Detail: detail, Offset: offset}
}

func errMissing(field string, offset int) *ParseError {
	return &ParseError{Kind: ErrMissingField, Detail: field, Offset: offset}
}

func errBadDirection(detail string, offset int) *ParseError {
	return &ParseError{Kind: ErrBadDirection, Detail: detail, Offset: offset}
}

func errUnknownInstrument(detail string, offset int) *ParseError {
	return &ParseError{Kind: ErrUnknownInstrument, Detail: detail, Offset: offset}
}

func errBadTradeID(detail string, offset int) *ParseError {
	return &ParseError{Kind: ErrBadTradeID, Detail: detail, Offset: offset}
}

// SequenceGapError is returned by the order-book engine when an update's
// prev_change_id does not match the engine's last_change_id.
type SequenceGapError struct {
	InstrumentIdx uint8
	Expected      uint64
	Received      uint64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("market: sequence gap on instrument %d: expected prev_change_id %d, got %d",
		e.InstrumentIdx, e.Expected, e.Received)
}
