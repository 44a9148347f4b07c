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

// Package object implements the single typed endpoint ("Object") of the
// concentrator's data-flow graph: Console, LogFile and ClientSocket are
// tagged variants of the same struct, each owning one fd, one ring buffer,
// one writer back-pointer and an ordered list of reader forward-pointers.
//
// Topology fields (Writer, Readers, FD) are mutated only from the single
// I/O-engine goroutine that owns the object graph (see package link); the
// Ring is the one field with its own mutex, so it is safe to use off that
// goroutine (package daemon's open pool builds and opens Console objects on
// worker goroutines).
package object

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sabouaram/consoled/ring"
)

// Kind is the tagged variant of an Object.
type Kind uint8

const (
	Console Kind = iota
	LogFile
	ClientSocket
)

func (k Kind) String() string {
	switch k {
	case Console:
		return "console"
	case LogFile:
		return "logfile"
	case ClientSocket:
		return "client"
	default:
		return "unknown"
	}
}

// NoFD is the "not open" sentinel for Object.FD.
const NoFD = -1

// DefaultRingCapacity is the Cap used by New* constructors when the caller
// does not override it; spec.md §1 cites 4 KiB as the example size.
const DefaultRingCapacity = 4096

// Clock supplies the current time to NewClient; it is an interface rather
// than a bare time.Now() call so a client socket's construction can report
// the Clock error kind when the wall clock is unreadable (spec.md §4.2).
type Clock interface {
	Now() (time.Time, error)
}

// SystemClock is the Clock backed by time.Now, which never fails on any
// platform Go runs on; it exists so production callers do not have to
// construct one explicitly.
type SystemClock struct{}

func (SystemClock) Now() (time.Time, error) { return time.Now(), nil }

// Object is the single entity type for Console, LogFile and ClientSocket
// endpoints (spec.md §3). Variant-specific fields are zero-valued for
// kinds that do not use them.
type Object struct {
	Name string
	Kind Kind
	FD   int
	Buf  *ring.Ring

	Writer  *Object
	Readers []*Object

	// Console-only.
	Device string
	Baud   int
	Reset  string

	// ClientSocket-only.
	GotIAC       bool
	TimeLastRead time.Time

	log *logrus.Logger
}

// Active reports whether the object currently owns an open fd.
func (o *Object) Active() bool {
	return o.FD != NoFD
}

// Compare implements the stable lexicographic name ordering the registry
// uses for deterministic iteration (spec.md §4.2 "compare").
func Compare(a, b *Object) int {
	switch {
	case a.Name < b.Name:
		return -1
	case a.Name > b.Name:
		return 1
	default:
		return 0
	}
}
