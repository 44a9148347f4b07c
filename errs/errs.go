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

// Package errs defines the typed error kinds shared by every component of
// the concentrator: Config, OpenFailed, Closed, Duplicate, Clock, Io and
// OutOfMemory, plus the propagation helpers used to test for them with
// errors.Is.
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the error categories named in the error handling design.
type Kind uint8

const (
	Unknown Kind = iota
	Config
	OpenFailed
	Closed
	Duplicate
	Clock
	Io
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "Config"
	case OpenFailed:
		return "OpenFailed"
	case Closed:
		return "Closed"
	case Duplicate:
		return "Duplicate"
	case Clock:
		return "Clock"
	case Io:
		return "Io"
	case OutOfMemory:
		return "OutOfMemory"
	default:
		return "Unknown"
	}
}

// Error wraps an underlying cause with the Kind it belongs to plus enough
// context (Op, Name) to build a useful log line without string parsing.
type Error struct {
	Kind Kind
	Op   string
	Name string
	Err  error
}

func New(kind Kind, op, name string, err error) *Error {
	return &Error{Kind: kind, Op: op, Name: name, Err: err}
}

func (e *Error) Error() string {
	var s string
	switch {
	case e.Op != "" && e.Name != "":
		s = fmt.Sprintf("%s: %s(%s)", e.Kind, e.Op, e.Name)
	case e.Op != "":
		s = fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		s = e.Kind.String()
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, errs.Closed) style checks work against a bare Kind
// by treating a Kind value on the right-hand side as a wildcard match on
// e.Kind, ignoring Op/Name/Err.
func (e *Error) Is(target error) bool {
	var k kindSentinel
	if errors.As(target, &k) {
		return e.Kind == Kind(k)
	}
	var o *Error
	if errors.As(target, &o) {
		return e.Kind == o.Kind
	}
	return false
}

// kindSentinel lets a bare Kind value be used as the target of errors.Is.
type kindSentinel Kind

func (k kindSentinel) Error() string { return Kind(k).String() }

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, k Kind) bool {
	return errors.Is(err, kindSentinel(k))
}
