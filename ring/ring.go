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

// Package ring implements the bounded, overwrite-on-overflow byte ring used
// by every object in the graph. Push never blocks: a slow subscriber loses
// its oldest unread bytes rather than stalling the console that feeds it.
package ring

import (
	"sync"

	"github.com/sabouaram/consoled/errs"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Status is the outcome of a Drain call that did not error.
type Status uint8

const (
	// Wrote indicates the write went through; the byte count is zero when
	// the ring was already empty. It is also the status returned alongside
	// a fatal Io error.
	Wrote Status = iota
	// WouldBlock indicates the fd was not ready; state is unchanged.
	WouldBlock
	// Eof indicates the peer hung up (EPIPE); got_eof is now set and the
	// ring has been emptied.
	Eof
)

// Ring is a fixed-capacity circular byte buffer with one slot reserved to
// distinguish "empty" from "full" (invariant 5 of the data model): usable
// capacity is Cap-1 bytes.
type Ring struct {
	mu     sync.Mutex
	name   string
	log    *logrus.Logger
	buf    []byte
	in     int
	out    int
	gotEOF bool
}

// New allocates a ring of the given physical capacity for the named owner.
// log may be nil, in which case overwrite diagnostics are discarded.
func New(name string, capacity int, log *logrus.Logger) *Ring {
	if capacity < 2 {
		capacity = 2
	}
	return &Ring{
		name: name,
		log:  log,
		buf:  make([]byte, capacity),
	}
}

func (r *Ring) length() int {
	return (r.in - r.out + len(r.buf)) % len(r.buf)
}

// Len reports the number of unread bytes currently buffered.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.length()
}

// Empty reports whether the ring currently holds no unread bytes.
func (r *Ring) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.in == r.out
}

// GotEOF reports whether the ring has seen EOF and will admit no further
// bytes (invariant 7).
func (r *Ring) GotEOF() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gotEOF
}

// SetEOF marks the ring closed to further Push calls without touching its
// contents; used by the link manager when an object is told to drain-then-
// close (spec §4.4 step 3).
func (r *Ring) SetEOF() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gotEOF = true
}

// ClearEOF resets got_eof once an object has fully closed and is about to be
// reused by a fresh attach.
func (r *Ring) ClearEOF() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gotEOF = false
}

func (r *Ring) copyAt(start int, data []byte) {
	n := len(r.buf)
	first := n - start
	if first > len(data) {
		first = len(data)
	}
	copy(r.buf[start:], data[:first])
	if rest := data[first:]; len(rest) > 0 {
		copy(r.buf, rest)
	}
}

// Push copies up to len(src) bytes into the ring, wrapping and overwriting
// the oldest unread bytes when the ring cannot hold the full payload. It
// never blocks and always returns len(src) on success; the only failure
// mode is pushing into a ring that has already seen EOF.
func (r *Ring) Push(src []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.gotEOF {
		return 0, errs.New(errs.Closed, "ring.push", r.name, nil)
	}
	n := len(src)
	if n == 0 {
		return 0, nil
	}

	cap_ := len(r.buf)
	usable := cap_ - 1
	curLen := r.length()
	free := usable - curLen

	newIn := (r.in + n) % cap_

	var effective []byte
	var writeStart int
	if n <= cap_ {
		effective = src
		writeStart = r.in
	} else {
		effective = src[n-cap_:]
		writeStart = newIn
	}
	r.copyAt(writeStart, effective)
	r.in = newIn

	if n > free {
		overwrite := n - free
		r.out = (r.in + 1) % cap_
		if r.log != nil {
			r.log.WithFields(logrus.Fields{
				"object": r.name,
				"bytes":  overwrite,
			}).Debugf("overwrote %d bytes from %s", overwrite, r.name)
		}
	}

	return n, nil
}

// Drain writes the contiguous unread prefix of the ring (in ≥ out ? in-out :
// Cap-out bytes — i.e. one syscall's worth, not necessarily the whole ring)
// to the raw file descriptor fd, retrying internally on EINTR. EPIPE marks
// the ring closed and empties it; EAGAIN/EWOULDBLOCK leaves state untouched
// and is reported as WouldBlock; any other error is fatal (Io).
func (r *Ring) Drain(fd int) (int, Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.in == r.out {
		return 0, Wrote, nil
	}

	var chunk []byte
	if r.in > r.out {
		chunk = r.buf[r.out:r.in]
	} else {
		chunk = r.buf[r.out:]
	}

	for {
		n, err := unix.Write(fd, chunk)
		switch {
		case err == nil:
			r.out = (r.out + n) % len(r.buf)
			return n, Wrote, nil
		case err == unix.EINTR:
			continue
		case err == unix.EPIPE:
			r.gotEOF = true
			r.in, r.out = 0, 0
			return 0, Eof, nil
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return 0, WouldBlock, nil
		default:
			return 0, Wrote, errs.New(errs.Io, "ring.drain", r.name, err)
		}
	}
}
