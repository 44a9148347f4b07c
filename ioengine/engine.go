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

// Package ioengine is the level-triggered readiness loop (spec.md §4.5):
// each Tick drains readable fds into producer rings (fanning out to every
// reader), then drains non-empty rings back to their writable fds. Reads
// precede fan-out which precedes writes, so a byte read from a console can,
// at the earliest, reach a subscriber's fd on the next tick.
package ioengine

import (
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/sabouaram/consoled/control"
	"github.com/sabouaram/consoled/errs"
	"github.com/sabouaram/consoled/link"
	"github.com/sabouaram/consoled/object"
	"github.com/sabouaram/consoled/registry"
)

// DefaultTimeout bounds each readiness wait so idle-timeout policy and
// signal delivery are serviced promptly even with no I/O activity.
const DefaultTimeout = 1 * time.Second

// Engine is the single-threaded scheduler that owns the object graph; every
// method here must run on one goroutine.
type Engine struct {
	Reg     *registry.Registry
	Link    *link.Manager
	Control control.Parser
	Log     *logrus.Logger
	Timeout time.Duration
}

func New(reg *registry.Registry, lm *link.Manager, ctl control.Parser, log *logrus.Logger) *Engine {
	return &Engine{Reg: reg, Link: lm, Control: ctl, Log: log, Timeout: DefaultTimeout}
}

// Tick runs exactly one readiness cycle: poll, then read+fan-out, then
// write. It returns the number of readiness events it handled (a fd that
// was both readable and writable counts twice), and a fatal error if one
// occurred (an Io error other than EINTR/EAGAIN/EPIPE).
func (e *Engine) Tick() (int, error) {
	snapshot := e.Reg.Iterate()
	if len(snapshot) == 0 {
		time.Sleep(e.timeout())
		return 0, nil
	}

	pollfds := make([]unix.PollFd, 0, len(snapshot))
	owners := make([]*object.Object, 0, len(snapshot))
	for _, o := range snapshot {
		if !o.Active() {
			continue
		}
		var events int16
		if o.Kind != object.LogFile {
			events |= unix.POLLIN
		}
		if !o.Buf.Empty() || (o.Buf.GotEOF() && o.Buf.Empty()) {
			events |= unix.POLLOUT
		}
		if events == 0 {
			continue
		}
		pollfds = append(pollfds, unix.PollFd{Fd: int32(o.FD), Events: events})
		owners = append(owners, o)
	}

	if len(pollfds) == 0 {
		time.Sleep(e.timeout())
		return 0, nil
	}

	n, err := unix.Poll(pollfds, int(e.timeout()/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, errs.New(errs.Io, "ioengine.poll", "", err)
	}
	if n == 0 {
		return 0, nil
	}

	ready := 0
	for i, pfd := range pollfds {
		o := owners[i]
		if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			ready++
			if err := e.handleReadable(o); err != nil {
				return ready, err
			}
		}
		if pfd.Revents&unix.POLLOUT != 0 {
			ready++
			if err := e.handleWritable(o); err != nil {
				return ready, err
			}
		}
	}
	return ready, nil
}

func (e *Engine) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultTimeout
	}
	return e.Timeout
}

func (e *Engine) handleReadable(o *object.Object) error {
	buf := make([]byte, object.DefaultRingCapacity-1)

	var n int
	var rerr error
	for {
		n, rerr = unix.Read(o.FD, buf)
		if rerr == unix.EINTR {
			continue
		}
		break
	}

	switch {
	case rerr == nil && n == 0:
		e.Link.Close(o)
		return nil
	case rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK:
		return nil
	case rerr != nil:
		return errs.New(errs.Io, "ioengine.read", o.Name, rerr)
	}

	payload := buf[:n]
	if o.Kind == object.ClientSocket {
		o.TimeLastRead = time.Now()
		if e.Control != nil {
			payload = e.Control.Parse(o, payload)
		}
	}

	for _, r := range o.Readers {
		if r.Buf.GotEOF() {
			continue
		}
		_, _ = object.WriteIn(r, payload)
	}
	return nil
}

func (e *Engine) handleWritable(o *object.Object) error {
	if _, _, err := o.Buf.Drain(o.FD); err != nil {
		return err
	}
	e.Link.Tick(o)
	return nil
}
