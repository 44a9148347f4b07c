/*
 * MIT License
 *
 * Copyright (c) 2026 Consoled Authors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package control is the hook applied to bytes read from a ClientSocket
// before fan-out (spec.md §4.6): it may delete control-byte sequences,
// toggle per-client state (the GotIAC flag), or — in a fuller
// implementation — emit side-band commands to the link manager. It is a
// pure function over a mutable byte slice plus per-client state, so it can
// be property-tested in isolation (Design Note 9.d), and it must never
// perform I/O itself.
package control

import "github.com/sabouaram/consoled/object"

// Parser consumes bytes freshly read from a ClientSocket and returns the
// remaining payload to fan out, having stripped any control sequences and
// updated o's per-client state (GotIAC) in place.
type Parser interface {
	Parse(o *object.Object, buf []byte) []byte
}

const (
	iac = 255 // telnet IAC (RFC 854)
	// the two-byte sequences IAC WILL/WONT/DO/DONT are each followed by one
	// option byte; everything else after a bare IAC is a single byte.
	will = 251
	wont = 252
	do   = 253
	dont = 254
	sb   = 250 // subnegotiation begin
	se   = 240 // subnegotiation end
)

// IAC is the concrete Parser used by default: it strips Telnet IAC
// negotiation sequences from a ClientSocket's input, setting o.GotIAC
// after a bare IAC so a sequence split right after the IAC byte is still
// recognized on the next read. A split after WILL/WONT/DO/DONT (before the
// option byte) or inside a subnegotiation block is not carried across
// reads. Payloads with no control bytes pass through unchanged (idempotent
// on clean input).
type IAC struct{}

// Parse implements Parser.
func (IAC) Parse(o *object.Object, buf []byte) []byte {
	out := buf[:0]
	inSubneg := false

	for i := 0; i < len(buf); i++ {
		b := buf[i]

		if o.GotIAC {
			o.GotIAC = false
			switch b {
			case will, wont, do, dont:
				// the option byte follows; skip it too.
				if i+1 < len(buf) {
					i++
				}
				continue
			case sb:
				inSubneg = true
				continue
			case se:
				inSubneg = false
				continue
			case iac:
				// escaped 0xFF data byte.
				out = append(out, iac)
				continue
			default:
				continue
			}
		}

		if b == iac {
			o.GotIAC = true
			continue
		}

		if inSubneg {
			continue
		}

		out = append(out, b)
	}

	return out
}
