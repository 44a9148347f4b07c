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

package object

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sabouaram/consoled/errs"
	"github.com/sabouaram/consoled/ring"
)

// Opener is the capability that knows how to turn a Console's variant
// state into a live fd; the engine never speaks telnet, tty ioctls or
// exec directly, it only ever sees the returned fd (Design Note 9.c).
type Opener interface {
	Open(o *Object) (fd int, err error)
}

// NewConsole builds an inactive Console object. device is opaque to this
// package; concrete Openers interpret its scheme (tty://, telnet://, ...).
func NewConsole(name, device string, baud int, reset string, log *logrus.Logger) *Object {
	return &Object{
		Name:   name,
		Kind:   Console,
		FD:     NoFD,
		Buf:    ring.New(name, DefaultRingCapacity, log),
		Device: device,
		Baud:   baud,
		Reset:  reset,
		log:    log,
	}
}

// NewLogFile builds an inactive LogFile object; its writer, once set by the
// link manager, must be a Console (invariant 3).
func NewLogFile(name string, log *logrus.Logger) *Object {
	return &Object{
		Name: name,
		Kind: LogFile,
		FD:   NoFD,
		Buf:  ring.New(name, DefaultRingCapacity, log),
		log:  log,
	}
}

// NewClient builds an active ClientSocket object from an already-accepted
// connection fd, with the synthetic name "user@host". It fails with a
// Clock error if clk cannot report the current time.
func NewClient(user, host string, fd int, clk Clock, log *logrus.Logger) (*Object, error) {
	if clk == nil {
		clk = SystemClock{}
	}
	now, err := clk.Now()
	if err != nil {
		return nil, errs.New(errs.Clock, "object.NewClient", fmt.Sprintf("%s@%s", user, host), err)
	}
	name := fmt.Sprintf("%s@%s", user, host)
	return &Object{
		Name:         name,
		Kind:         ClientSocket,
		FD:           fd,
		Buf:          ring.New(name, DefaultRingCapacity, log),
		TimeLastRead: now,
		log:          log,
	}, nil
}

// Open performs the variant-specific connect; it is idempotent (an
// already-open object returns success without re-opening).
//
// ClientSocket is a no-op (born open). LogFile opens its backing file with
// create+append+nonblock (truncating first when truncate is true, i.e. the
// daemon was started with -z) and writes the standard header line into its
// own ring. Console delegates to op, the injected Opener.
func Open(o *Object, op Opener, truncate bool) error {
	if o.Active() {
		return nil
	}

	switch o.Kind {
	case ClientSocket:
		return nil

	case LogFile:
		flags := unix.O_CREAT | unix.O_APPEND | unix.O_WRONLY | unix.O_NONBLOCK
		if truncate {
			flags |= unix.O_TRUNC
		}
		fd, err := unix.Open(o.Name, flags, 0644)
		if err != nil {
			return errs.New(errs.OpenFailed, "object.Open", o.Name, err)
		}
		o.FD = fd
		writerName := "?"
		if o.Writer != nil {
			writerName = o.Writer.Name
		}
		header := fmt.Sprintf("* Console [%s] log started on %s.\n\n", writerName, nowStamp())
		if _, err := o.Buf.Push([]byte(header)); err != nil {
			return errs.New(errs.OpenFailed, "object.Open", o.Name, err)
		}
		return nil

	case Console:
		if op == nil {
			return errs.New(errs.OpenFailed, "object.Open", o.Name, os.ErrInvalid)
		}
		fd, err := op.Open(o)
		if err != nil {
			return errs.New(errs.OpenFailed, "object.Open", o.Name, err)
		}
		o.FD = fd
		return nil

	default:
		return errs.New(errs.OpenFailed, "object.Open", o.Name, os.ErrInvalid)
	}
}

// WriteIn admits bytes to the object's ring; the caller (the I/O engine's
// fan-out step) must not call this once GotEOF() is true.
func WriteIn(o *Object, src []byte) (int, error) {
	if o.Buf.GotEOF() {
		return 0, errs.New(errs.Closed, "object.write_in", o.Name, nil)
	}
	return o.Buf.Push(src)
}

func nowStamp() string {
	return time.Now().Format("Mon Jan  2 15:04:05 2006")
}
