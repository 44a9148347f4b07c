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

// Package link is the only writer of the graph topology (spec.md §4.4): it
// creates and dissolves writer→readers edges, enforces the "steal"
// protocol by which a new client preempts a console's current writer, and
// cascades close over objects that become orphaned as a result.
//
// Every exported function here must be called from the single I/O-engine
// goroutine; that is what lets Writer/Readers/FD go unsynchronized.
package link

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sabouaram/consoled/errs"
	"github.com/sabouaram/consoled/object"
	"github.com/sabouaram/consoled/registry"
)

// Manager owns the registry and is the sole mutator of writer/readers
// edges.
type Manager struct {
	reg *registry.Registry
	log *logrus.Logger
}

func New(reg *registry.Registry, log *logrus.Logger) *Manager {
	return &Manager{reg: reg, log: log}
}

func validPair(src, dst *object.Object) bool {
	switch src.Kind {
	case object.ClientSocket, object.Console:
	default:
		return false
	}
	switch dst.Kind {
	case object.Console:
		return src.Kind == object.ClientSocket
	case object.LogFile:
		return src.Kind == object.Console
	default:
		return false
	}
}

// Attach makes src write to dst, stealing dst's current writer if any
// (spec.md §4.4). truncate and op are forwarded to object.Open for any
// endpoint that still needs to be opened.
func (m *Manager) Attach(src, dst *object.Object, op object.Opener, truncate bool) error {
	if !validPair(src, dst) {
		return errs.New(errs.OpenFailed, "link.attach", dst.Name, fmt.Errorf("invalid pair %s->%s", src.Kind, dst.Kind))
	}

	if dst.Writer != nil && dst.Writer != src {
		m.steal(src, dst)
	}

	if !src.Active() {
		if err := object.Open(src, op, truncate); err != nil {
			return err
		}
	}
	// dst.Writer is set before dst is opened so a LogFile's header line can
	// name the console that writes to it.
	dst.Writer = src
	if !dst.Active() {
		if err := object.Open(dst, op, truncate); err != nil {
			dst.Writer = nil
			return err
		}
	}

	src.Readers = append(src.Readers, dst)
	return nil
}

// steal synthesizes the displacement notice, delivers it to the object
// being preempted, and closes it.
func (m *Manager) steal(src, dst *object.Object) {
	old := dst.Writer
	notice := fmt.Sprintf("\nConsole '%s' stolen by <%s> at %s.\n", dst.Name, src.Name, time.Now().Format("Mon Jan  2 15:04:05 2006"))
	_, _ = object.WriteIn(old, []byte(notice))
	if m.log != nil {
		m.log.WithFields(logrus.Fields{"console": dst.Name, "by": src.Name, "displaced": old.Name}).Info("console stolen")
	}
	m.Close(old)
}

// detach removes obj from its writer's readers list and clears obj.Writer.
func (m *Manager) detach(obj *object.Object) {
	w := obj.Writer
	if w == nil {
		return
	}
	for i, r := range w.Readers {
		if r == obj {
			w.Readers = append(w.Readers[:i], w.Readers[i+1:]...)
			break
		}
	}
	obj.Writer = nil
}

// Close implements the drain-then-close lifecycle of spec.md §4.4: it
// unlinks obj from its writer and readers, cascades close to any endpoint
// left orphaned by that unlinking, and either finalizes the close
// immediately (empty ring) or marks the ring for EOF and defers the fd
// close to a later call once the I/O engine has drained it.
func (m *Manager) Close(obj *object.Object) {
	if w := obj.Writer; w != nil {
		m.detach(obj)
		if w.Writer == nil && len(w.Readers) == 0 {
			m.Close(w)
		}
	}

	readers := append([]*object.Object(nil), obj.Readers...)
	for _, r := range readers {
		r.Writer = nil
	}
	obj.Readers = obj.Readers[:0]
	for _, r := range readers {
		if len(r.Readers) == 0 {
			m.Close(r)
		}
	}

	if !obj.Buf.Empty() {
		obj.Buf.SetEOF()
		return
	}

	m.finalizeClose(obj)
}

// finalizeClose performs the part of Close that can only happen once the
// ring has fully drained: clearing got_eof, closing the fd, and — for
// ClientSocket objects only — removing the object from the registry.
func (m *Manager) finalizeClose(obj *object.Object) {
	obj.Buf.ClearEOF()
	closeFD(obj)
	if obj.Kind == object.ClientSocket {
		m.reg.Remove(obj)
	}
}

// Tick is called by the I/O engine after draining obj's ring; if obj is
// mid-close (got_eof with a now-empty ring) it finishes the close that
// Close deferred at step 3.
func (m *Manager) Tick(obj *object.Object) {
	if obj.Buf.GotEOF() && obj.Buf.Empty() && obj.Active() {
		m.finalizeClose(obj)
	}
}
