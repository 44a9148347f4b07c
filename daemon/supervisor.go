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

package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Supervisor runs a single start/stop function pair as a supervised
// background task: Start launches fct_start in a goroutine and returns
// immediately, Stop cancels the context passed to fct_start, waits for it
// to return, and then runs fct_stop. Calling Start again stops whatever
// instance is currently running first.
type Supervisor struct {
	fctStart func(ctx context.Context) error
	fctStop  func(ctx context.Context) error

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	startedAt time.Time

	errMu sync.Mutex
	errs  []error
}

// NewSupervisor builds a Supervisor around the given start/stop pair. Either
// may be nil; calling Start or Stop against a nil function records an
// "invalid start/stop function" error instead of panicking.
func NewSupervisor(start, stop func(ctx context.Context) error) *Supervisor {
	return &Supervisor{fctStart: start, fctStop: stop}
}

// Start stops any running instance, then launches fct_start on a derived,
// cancelable context and returns immediately; it never blocks on fct_start
// itself.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.Stop(ctx)
		s.mu.Lock()
	}

	if s.fctStart == nil {
		s.mu.Unlock()
		s.recordErr(fmt.Errorf("invalid start function"))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.startedAt = time.Now()
	s.running = true
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		if err := s.fctStart(runCtx); err != nil {
			s.recordErr(err)
		}
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	return nil
}

// Stop cancels the running instance's context, waits for it to return, and
// then runs fct_stop. Calling Stop when not running is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	<-done

	if s.fctStop == nil {
		s.recordErr(fmt.Errorf("invalid stop function"))
		return nil
	}
	if err := s.fctStop(ctx); err != nil {
		s.recordErr(err)
		return err
	}
	return nil
}

// IsRunning reports whether fct_start is currently active.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Uptime is zero before the first Start and while stopped, and grows
// monotonically while running.
func (s *Supervisor) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.startedAt.IsZero() {
		return 0
	}
	return time.Since(s.startedAt)
}

// ErrorsLast returns the most recently recorded error from fct_start or
// fct_stop, or nil if none has occurred.
func (s *Supervisor) ErrorsLast() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if len(s.errs) == 0 {
		return nil
	}
	return s.errs[len(s.errs)-1]
}

// ErrorsList returns every error recorded so far, oldest first.
func (s *Supervisor) ErrorsList() []error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return append([]error(nil), s.errs...)
}

func (s *Supervisor) recordErr(err error) {
	s.errMu.Lock()
	s.errs = append(s.errs, err)
	s.errMu.Unlock()
}
