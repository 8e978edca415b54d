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

// HOT PATH [1]: cursor.go holds the byte-cursor primitives shared by the
// trade and order-book decoders: literal field matching, the custom
// numeric scanner, and string-span extraction. None of these allocate.
package market

import "bytes"

func bytesEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}

func skipWhitespace(buf []byte, pos int) int {
	for pos < len(buf) {
		switch buf[pos] {
		case ' ', '\t', '\n', '\r':
			pos++
		default:
			return pos
		}
	}
	return pos
}

func expectComma(buf []byte, pos int) int {
	pos = skipWhitespace(buf, pos)
	if pos < len(buf) && buf[pos] == ',' {
		return pos + 1
	}
	return pos
}

// expectDelimiter skips whitespace then requires buf[pos] == d, returning
// the position just past it.
func expectDelimiter(buf []byte, pos int, d byte) (int, error) {
	pos = skipWhitespace(buf, pos)
	if pos >= len(buf) || buf[pos] != d {
		return 0, errFormat("expected delimiter "+string(d), pos)
	}
	return pos + 1, nil
}

// expectField requires the next non-whitespace bytes to be `"field":` and
// returns the position of the first byte of the field's value. This is the
// cursor's one repeated primitive: every fixed-order field in both the
// trade and order-book decoders is consumed through it.
func expectField(buf []byte, pos int, field string) (int, error) {
	pos = skipWhitespace(buf, pos)
	if pos >= len(buf) || buf[pos] != '"' {
		return 0, errMissing(field, pos)
	}
	pos++
	if pos+len(field) > len(buf) || string(buf[pos:pos+len(field)]) != field {
		return 0, errMissing(field, pos)
	}
	pos += len(field)
	if pos >= len(buf) || buf[pos] != '"' {
		return 0, errMissing(field, pos)
	}
	pos++
	pos = skipWhitespace(buf, pos)
	if pos >= len(buf) || buf[pos] != ':' {
		return 0, errMissing(field, pos)
	}
	pos++
	pos = skipWhitespace(buf, pos)
	return pos, nil
}

// parseString returns the [start, end) byte span of a string body; pos
// must point at the opening quote. Escaped bytes are skipped
// without interpretation, matching the hot path's job of locating spans,
// not decoding escape sequences.
func parseString(buf []byte, pos int) (int, int, error) {
	if pos >= len(buf) || buf[pos] != '"' {
		return 0, 0, errFormat("expected string", pos)
	}
	start := pos + 1
	end := start
	for end < len(buf) && buf[end] != '"' {
		if buf[end] == '\\' {
			end += 2
		} else {
			end++
		}
	}
	if end >= len(buf) {
		return 0, 0, &ParseError{Kind: ErrInvalidFormat, Detail: "unterminated string", Offset: start}
	}
	return start, end, nil
}

// parseUint scans an unsigned decimal integer starting at pos.
func parseUint(buf []byte, pos int) (uint64, int, error) {
	pos = skipWhitespace(buf, pos)
	start := pos
	var v uint64
	for pos < len(buf) && buf[pos] >= '0' && buf[pos] <= '9' {
		v = v*10 + uint64(buf[pos]-'0')
		pos++
	}
	if pos == start {
		return 0, 0, errFormat("expected integer", pos)
	}
	return v, pos, nil
}

// parseFloat is the custom numeric scanner: signed integer part, optional
// fractional part, optional scientific exponent. It rejects a buffer that
// is only a sign or that contributes no digits at all.
func parseFloat(buf []byte, pos int) (float64, int, error) {
	pos = skipWhitespace(buf, pos)
	start := pos
	negative := false
	if pos < len(buf) && buf[pos] == '-' {
		negative = true
		pos++
	}

	var integerPart uint64
	intDigits := 0
	for pos < len(buf) && buf[pos] >= '0' && buf[pos] <= '9' {
		integerPart = integerPart*10 + uint64(buf[pos]-'0')
		pos++
		intDigits++
	}

	var fracPart uint64
	fracDigits := 0
	if pos < len(buf) && buf[pos] == '.' {
		pos++
		for pos < len(buf) && buf[pos] >= '0' && buf[pos] <= '9' {
			fracPart = fracPart*10 + uint64(buf[pos]-'0')
			fracDigits++
			pos++
		}
	}

	if intDigits == 0 && fracDigits == 0 {
		return 0, 0, errFormat("expected number", start)
	}

	exponent := 0
	if pos < len(buf) && (buf[pos] == 'e' || buf[pos] == 'E') {
		epos := pos + 1
		expNegative := false
		if epos < len(buf) && buf[epos] == '-' {
			expNegative = true
			epos++
		} else if epos < len(buf) && buf[epos] == '+' {
			epos++
		}
		expStart := epos
		for epos < len(buf) && buf[epos] >= '0' && buf[epos] <= '9' {
			exponent = exponent*10 + int(buf[epos]-'0')
			epos++
		}
		if epos > expStart {
			if expNegative {
				exponent = -exponent
			}
			pos = epos
		}
	}

	result := float64(integerPart)
	if fracDigits > 0 {
		result += float64(fracPart) / pow10(fracDigits)
	}
	if exponent != 0 {
		result *= pow10f(exponent)
	}
	if negative {
		result = -result
	}
	return result, pos, nil
}

func pow10(n int) float64 {
	r := 1.0
	for i := 0; i < n; i++ {
		r *= 10
	}
	return r
}

func pow10f(exp int) float64 {
	neg := exp < 0
	if neg {
		exp = -exp
	}
	r := pow10(exp)
	if neg {
		return 1 / r
	}
	return r
}

// findLiteral returns the index of the first occurrence of pattern in
// buf[start:], relative to the start of buf, or an InvalidFormat error.
func findLiteral(buf []byte, start int, pattern []byte) (int, error) {
	if start > len(buf) {
		return 0, errFormat(string(pattern)+" not found", start)
	}
	idx := bytes.Index(buf[start:], pattern)
	if idx < 0 {
		return 0, errFormat(string(pattern)+" not found", start)
	}
	return start + idx, nil
}
