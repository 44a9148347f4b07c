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

package transport_test

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/sys/unix"

	"github.com/sabouaram/consoled/object"
	"github.com/sabouaram/consoled/transport"
)

func TestTransport(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Transport Suite")
}

var _ = Describe("Exec", func() {
	It("adopts a helper process's combined stdio as the console's fd", func() {
		o := object.NewConsole("echoer", "exec:///bin/cat", 0, "", nil)
		op := transport.Exec{Command: "/bin/cat"}

		fd, err := op.Open(o)
		Expect(err).ToNot(HaveOccurred())
		defer unix.Close(fd)

		_, err = unix.Write(fd, []byte("ping\n"))
		Expect(err).ToNot(HaveOccurred())

		buf := make([]byte, 16)
		var n int
		Eventually(func() int {
			n, _ = unix.Read(fd, buf)
			return n
		}, time.Second, 10*time.Millisecond).Should(BeNumerically(">", 0))
		Expect(string(buf[:n])).To(Equal("ping\n"))
	})

	It("parses a bare exec:// device into command and arguments", func() {
		o := object.NewConsole("echoer", "exec:///bin/echo hello world", 0, "", nil)
		op := transport.Exec{}

		fd, err := op.Open(o)
		Expect(err).ToNot(HaveOccurred())
		defer unix.Close(fd)

		buf := make([]byte, 64)
		var n int
		Eventually(func() int {
			n, _ = unix.Read(fd, buf)
			return n
		}, time.Second, 10*time.Millisecond).Should(BeNumerically(">", 0))
		Expect(string(buf[:n])).To(Equal("hello world\n"))
	})
})

var _ = Describe("Registry", func() {
	It("dispatches on the device URL scheme", func() {
		r := transport.NewRegistry(nil)
		o := object.NewConsole("c1", "exec:///bin/cat", 0, "", nil)

		fd, err := r.Open(o)
		Expect(err).ToNot(HaveOccurred())
		unix.Close(fd)
	})

	It("rejects an unknown scheme", func() {
		r := transport.NewRegistry(nil)
		o := object.NewConsole("c1", "carrier-pigeon://nowhere", 0, "", nil)

		_, err := r.Open(o)
		Expect(err).To(HaveOccurred())
	})
})
