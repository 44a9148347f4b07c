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
	"errors"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDaemon(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Daemon Suite")
}

var _ = Describe("Supervisor", func() {
	It("is not running and has zero uptime before Start", func() {
		s := NewSupervisor(
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error { return nil },
		)
		Expect(s.IsRunning()).To(BeFalse())
		Expect(s.Uptime()).To(BeZero())
	})

	It("starts asynchronously and tracks uptime while running", func() {
		x, n := context.WithTimeout(context.Background(), 5*time.Second)
		defer n()

		var running atomic.Bool
		start := func(c context.Context) error {
			running.Store(true)
			<-c.Done()
			running.Store(false)
			return nil
		}
		stop := func(c context.Context) error { return nil }

		s := NewSupervisor(start, stop)
		Expect(s.Start(x)).To(Succeed())

		Eventually(func() bool { return running.Load() && s.IsRunning() }, time.Second).Should(BeTrue())
		time.Sleep(20 * time.Millisecond)
		Expect(s.Uptime()).To(BeNumerically(">", 0))

		Expect(s.Stop(x)).To(Succeed())
		Eventually(s.IsRunning, time.Second).Should(BeFalse())
	})

	It("captures an error returned by the stop function", func() {
		x, n := context.WithTimeout(context.Background(), 5*time.Second)
		defer n()

		boom := errors.New("stop failed")
		start := func(c context.Context) error { <-c.Done(); return nil }
		stop := func(c context.Context) error { return boom }

		s := NewSupervisor(start, stop)
		Expect(s.Start(x)).To(Succeed())
		Eventually(s.IsRunning, time.Second).Should(BeTrue())

		err := s.Stop(x)
		Expect(err).To(MatchError(boom))
		Expect(s.ErrorsLast()).To(MatchError(boom))
	})

	It("records an error for a nil start function instead of panicking", func() {
		s := NewSupervisor(nil, func(ctx context.Context) error { return nil })
		Expect(s.Start(context.Background())).To(Succeed())
		Eventually(s.ErrorsLast, time.Second).Should(HaveOccurred())
		Expect(s.ErrorsLast().Error()).To(ContainSubstring("invalid start function"))
	})

	It("is a no-op when Stop is called while not running", func() {
		s := NewSupervisor(
			func(ctx context.Context) error { return nil },
			func(ctx context.Context) error { return nil },
		)
		Expect(s.Stop(context.Background())).To(Succeed())
	})
})
